package analytics

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"FinFactor/internal/domain/models"
	"FinFactor/internal/services/normalize"
)

// Correlation returns the Pearson or Spearman correlation of two equally long
// vectors without missing values. The result is missing when it is undefined
// (fewer than two points or a constant vector) and otherwise lies in [-1, 1].
func Correlation(x, y []float64, method models.ICMethod) float64 {
	if len(x) != len(y) || len(x) < 2 || constant(x) || constant(y) {
		return models.Missing()
	}
	if method == models.ICSpearman {
		x = normalize.RankSlice(x, models.RankAverage, false)
		y = normalize.RankSlice(y, models.RankAverage, false)
	}
	c := stat.Correlation(x, y, nil)
	if models.IsMissing(c) {
		return models.Missing()
	}
	return math.Max(-1, math.Min(1, c))
}

// alignment pairs the rows and columns two tables share, in the first table's order.
type alignment struct {
	dates      []int // row in a
	otherDates []int // row in b
	cols       []int // column in a
	otherCols  []int // column in b
	names      []string
}

func align(a, b *models.Table) alignment {
	var al alignment
	for i := 0; i < a.NumRows(); i++ {
		if k, ok := b.RowIndex(a.Date(i)); ok {
			al.dates = append(al.dates, i)
			al.otherDates = append(al.otherDates, k)
		}
	}
	for j := 0; j < a.NumCols(); j++ {
		if k, ok := b.ColIndex(a.Instrument(j)); ok {
			al.cols = append(al.cols, j)
			al.otherCols = append(al.otherCols, k)
			al.names = append(al.names, a.Instrument(j))
		}
	}
	return al
}

// pairsAt returns the factor and return values of row r where both are present.
func (al alignment) pairsAt(a, b *models.Table, r int) (x, y []float64) {
	ia, ib := al.dates[r], al.otherDates[r]
	for k := range al.cols {
		fv, rv := a.At(ia, al.cols[k]), b.At(ib, al.otherCols[k])
		if models.IsMissing(fv) || models.IsMissing(rv) {
			continue
		}
		x = append(x, fv)
		y = append(y, rv)
	}
	return x, y
}

// forEachChunk calls fn over contiguous [lo, hi) partitions of n items. With
// parallelism above one the partitions run concurrently; fn must only write to
// its own index range.
func forEachChunk(ctx context.Context, n, parallelism int, fn func(lo, hi int) error) error {
	if n == 0 {
		return nil
	}
	if parallelism <= 1 || n < 2*parallelism {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(0, n)
	}
	g, gctx := errgroup.WithContext(ctx)
	size := (n + parallelism - 1) / parallelism
	for lo := 0; lo < n; lo += size {
		lo, hi := lo, min(lo+size, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(lo, hi)
		})
	}
	return g.Wait()
}

func constant(vals []float64) bool {
	for _, v := range vals[1:] {
		if v != vals[0] {
			return false
		}
	}
	return true
}

func meanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return models.Missing()
	}
	return stat.Mean(vals, nil)
}
