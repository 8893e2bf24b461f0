package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"FinFactor/internal/domain/models"
	applogger "FinFactor/pkg/logger"
)

const DefaultQuantiles = 5

type QuantileConfig struct {
	NQuantiles  int
	Parallelism int
}

type QuantileOption func(*QuantileConfig)

func WithQuantiles(n int) QuantileOption { return func(c *QuantileConfig) { c.NQuantiles = n } }
func WithQuantileParallelism(n int) QuantileOption {
	return func(c *QuantileConfig) { c.Parallelism = n }
}

// QuantileAnalyzer sorts instruments into equal-population buckets by factor
// value on every date and measures the forward return of each bucket.
type QuantileAnalyzer struct {
	cfg QuantileConfig
	l   *applogger.Logger
}

func NewQuantileAnalyzer(opts ...QuantileOption) (*QuantileAnalyzer, error) {
	cfg := QuantileConfig{NQuantiles: DefaultQuantiles, Parallelism: 1}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.NQuantiles < 2 {
		return nil, models.NewInvalidParameter("n_quantiles", cfg.NQuantiles, "must be >= 2")
	}
	return &QuantileAnalyzer{cfg: cfg}, nil
}

// SetLogger injects a structured logger.
func (a *QuantileAnalyzer) SetLogger(l *applogger.Logger) { a.l = l }

func (a *QuantileAnalyzer) NQuantiles() int { return a.cfg.NQuantiles }

// dateBuckets is the per-date outcome; each worker fills its own slots.
type dateBuckets struct {
	assigned  []float64 // per aligned column, bucket number or missing
	means     []float64 // per bucket
	counts    []float64
	longShort float64
	monotonic float64
	formed    bool
}

// Analyze buckets every date present in both tables.
//
// A date with fewer valid factor values than buckets is left unassigned.
// Bucket edges are linearly interpolated quantiles at i/n of the date's
// values; repeated edges are dropped, leaving fewer populated buckets.
// Bucket returns average the non-missing forward returns of the members.
// The long-short spread is the highest populated bucket's mean minus the
// lowest's. Monotonicity is the Spearman correlation between bucket number
// and bucket mean per date, averaged over dates and mapped to [0, 1] as (m+1)/2.
func (a *QuantileAnalyzer) Analyze(ctx context.Context, factor, fwd *models.Table) (*models.QuantileResult, error) {
	if factor == nil || fwd == nil {
		return nil, models.NewInvalidParameter("table", nil, "factor and forward returns are required")
	}
	started := time.Now()
	n := a.cfg.NQuantiles
	al := align(factor, fwd)
	per := make([]dateBuckets, len(al.dates))

	err := forEachChunk(ctx, len(per), a.cfg.Parallelism, func(lo, hi int) error {
		for r := lo; r < hi; r++ {
			per[r] = a.bucketDate(factor, fwd, al, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, len(al.dates))
	for r, i := range al.dates {
		dates[r] = factor.Date(i)
	}
	bucketNames := make([]string, n)
	for b := range bucketNames {
		bucketNames[b] = fmt.Sprintf("Q%d", b+1)
	}
	assignGrid := models.NewGrid(len(dates), len(al.names))
	meanGrid := models.NewGrid(len(dates), n)
	countGrid := models.NewGrid(len(dates), n)

	res := &models.QuantileResult{NQuantiles: n}
	var lsVals, monoVals []float64
	for r, db := range per {
		res.LongShortSeries = append(res.LongShortSeries, models.SeriesPoint{Date: dates[r], Value: db.longShort})
		if !db.formed {
			continue
		}
		res.ValidDates++
		copy(assignGrid[r], db.assigned)
		copy(meanGrid[r], db.means)
		copy(countGrid[r], db.counts)
		if !models.IsMissing(db.longShort) {
			lsVals = append(lsVals, db.longShort)
		}
		if !models.IsMissing(db.monotonic) {
			monoVals = append(monoVals, db.monotonic)
		}
	}
	if res.ValidDates == 0 {
		return nil, &models.InsufficientDataError{
			Need:   n,
			Reason: fmt.Sprintf("no date has at least %d valid factor values", n),
		}
	}

	if res.Assignments, err = models.NewTable(dates, al.names, assignGrid); err != nil {
		return nil, err
	}
	if res.BucketReturns, err = models.NewTable(dates, bucketNames, meanGrid); err != nil {
		return nil, err
	}
	if res.BucketCounts, err = models.NewTable(dates, bucketNames, countGrid); err != nil {
		return nil, err
	}

	res.MeanBucketReturns = make([]*float64, n)
	for b := 0; b < n; b++ {
		var col []float64
		for _, v := range res.BucketReturns.Column(b) {
			if !models.IsMissing(v) {
				col = append(col, v)
			}
		}
		res.MeanBucketReturns[b] = models.OptionalFloat(meanOf(col))
	}
	res.LongShortReturn = models.OptionalFloat(meanOf(lsVals))
	if m := meanOf(monoVals); !models.IsMissing(m) {
		score := (m + 1) / 2
		res.MonotonicityScore = &score
	}

	if a.l != nil {
		a.l.Debug("quantile analysis done",
			applogger.Int("n_quantiles", n),
			applogger.Int("dates", len(dates)),
			applogger.Int("valid", res.ValidDates),
			applogger.Duration("took_ms", time.Since(started)),
		)
	}
	return res, nil
}

func (a *QuantileAnalyzer) bucketDate(factor, fwd *models.Table, al alignment, r int) dateBuckets {
	n := a.cfg.NQuantiles
	db := dateBuckets{
		assigned:  missingSlice(len(al.cols)),
		means:     missingSlice(n),
		counts:    missingSlice(n),
		longShort: models.Missing(),
		monotonic: models.Missing(),
	}
	ia, ib := al.dates[r], al.otherDates[r]

	var vals []float64
	for _, j := range al.cols {
		if v := factor.At(ia, j); !models.IsMissing(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) < n {
		return db
	}
	sort.Float64s(vals)
	edges := QuantileEdges(vals, n)
	db.formed = true

	sums := make([]float64, n)
	counts := make([]int, n)
	for k, j := range al.cols {
		v := factor.At(ia, j)
		if models.IsMissing(v) {
			continue
		}
		b := sort.SearchFloat64s(edges[1:], v)
		if b >= n {
			b = n - 1
		}
		db.assigned[k] = float64(b + 1)
		ret := fwd.At(ib, al.otherCols[k])
		if models.IsMissing(ret) {
			continue
		}
		sums[b] += ret
		counts[b]++
	}

	var bucketNo, bucketMean []float64
	for b := 0; b < n; b++ {
		if counts[b] == 0 {
			continue
		}
		m := sums[b] / float64(counts[b])
		db.means[b] = m
		db.counts[b] = float64(counts[b])
		bucketNo = append(bucketNo, float64(b+1))
		bucketMean = append(bucketMean, m)
	}
	if len(bucketMean) >= 2 {
		db.longShort = bucketMean[len(bucketMean)-1] - bucketMean[0]
		db.monotonic = Correlation(bucketNo, bucketMean, models.ICSpearman)
	}
	return db
}

// QuantileEdges returns the bucket boundaries for sorted values: the linearly
// interpolated quantiles at 0, 1/n, ..., 1 with repeated edges removed. The
// lowest edge belongs to the first bucket; every other bucket is (e[b-1], e[b]].
func QuantileEdges(sorted []float64, n int) []float64 {
	m := len(sorted)
	if m == 0 || n < 1 {
		return nil
	}
	edges := make([]float64, 0, n+1)
	for i := 0; i <= n; i++ {
		// position (m-1)*i/n split into integer and fractional parts exactly
		num := (m - 1) * i
		lo, rem := num/n, num%n
		e := sorted[lo]
		if rem != 0 {
			e += float64(rem) / float64(n) * (sorted[lo+1] - sorted[lo])
		}
		if len(edges) > 0 && e <= edges[len(edges)-1] {
			continue
		}
		edges = append(edges, e)
	}
	return edges
}

func missingSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = models.Missing()
	}
	return out
}
