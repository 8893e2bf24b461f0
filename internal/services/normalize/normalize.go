package normalize

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"FinFactor/internal/domain/models"
)

// MinWinsorizeCount is the smallest slice that gets clipped; smaller slices pass through.
const MinWinsorizeCount = 10

// Default winsorize limits.
const (
	DefaultLower = 0.01
	DefaultUpper = 0.99
)

// ZScore standardizes each slice along axis with its own mean and sample
// standard deviation. Slices with fewer than two values or no dispersion
// become missing.
func ZScore(t *models.Table, axis models.Axis) (*models.NormalizedTable, error) {
	p := models.NormalizationParams{Method: models.NormZScore, Axis: axis}
	if err := p.Check(); err != nil {
		return nil, err
	}
	return models.NewNormalizedTable(applySlices(t, axis, zscoreSlice), p), nil
}

// Rank replaces each value by its rank within the slice, ties broken by method.
// With pct the ranks are scaled into (0, 1].
func Rank(t *models.Table, axis models.Axis, method models.RankMethod, pct bool) (*models.NormalizedTable, error) {
	p := models.NormalizationParams{Method: models.NormRank, Axis: axis, RankMethod: method, Pct: pct}
	if err := p.Check(); err != nil {
		return nil, err
	}
	fn := func(vals []float64) []float64 { return RankSlice(vals, method, pct) }
	return models.NewNormalizedTable(applySlices(t, axis, fn), p), nil
}

// Winsorize clips each slice to its own [lower, upper] nearest-rank percentiles.
// Slices with fewer than MinWinsorizeCount values are returned unchanged.
func Winsorize(t *models.Table, axis models.Axis, lower, upper float64) (*models.NormalizedTable, error) {
	p := models.NormalizationParams{Method: models.NormWinsorize, Axis: axis, Lower: lower, Upper: upper}
	if err := p.Check(); err != nil {
		return nil, err
	}
	fn := func(vals []float64) []float64 { return winsorizeSlice(vals, lower, upper) }
	return models.NewNormalizedTable(applySlices(t, axis, fn), p), nil
}

// Apply runs the normalization described by params.
func Apply(t *models.Table, params models.NormalizationParams) (*models.NormalizedTable, error) {
	if params.Axis == "" {
		params.Axis = models.AxisCrossSection
	}
	switch params.Method {
	case models.NormZScore:
		return ZScore(t, params.Axis)
	case models.NormRank:
		if params.RankMethod == "" {
			params.RankMethod = models.RankAverage
		}
		return Rank(t, params.Axis, params.RankMethod, params.Pct)
	case models.NormWinsorize:
		if params.Lower == 0 && params.Upper == 0 {
			params.Lower, params.Upper = DefaultLower, DefaultUpper
		}
		return Winsorize(t, params.Axis, params.Lower, params.Upper)
	default:
		return nil, models.NewInvalidParameter("method", params.Method, "unknown normalization")
	}
}

// applySlices maps fn over every row (cross-section) or column (time series)
// and assembles the results into a new table.
func applySlices(t *models.Table, axis models.Axis, fn func([]float64) []float64) *models.Table {
	g := models.NewGrid(t.NumRows(), t.NumCols())
	if axis == models.AxisTimeSeries {
		for j := 0; j < t.NumCols(); j++ {
			out := fn(t.Column(j))
			for i, v := range out {
				g[i][j] = v
			}
		}
	} else {
		for i := 0; i < t.NumRows(); i++ {
			g[i] = fn(t.Row(i))
		}
	}
	return models.MustTable(t.Dates(), t.Instruments(), g)
}

// compact returns the positions and values of the non-missing entries.
func compact(vals []float64) ([]int, []float64) {
	idx := make([]int, 0, len(vals))
	data := make([]float64, 0, len(vals))
	for i, v := range vals {
		if models.IsMissing(v) {
			continue
		}
		idx = append(idx, i)
		data = append(data, v)
	}
	return idx, data
}

func missingLike(vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i := range out {
		out[i] = models.Missing()
	}
	return out
}

func zscoreSlice(vals []float64) []float64 {
	out := missingLike(vals)
	idx, data := compact(vals)
	if len(data) < 2 {
		return out
	}
	mean, err := stats.Mean(data)
	if err != nil {
		return out
	}
	sd, err := stats.StandardDeviationSample(data)
	if err != nil || models.IsMissing(sd) || sd <= 1e-12*math.Max(1, math.Abs(mean)) {
		return out
	}
	for k, i := range idx {
		out[i] = (data[k] - mean) / sd
	}
	return out
}

// RankSlice ranks the non-missing values of vals (1 = smallest). Missing
// entries stay missing. Tie handling:
//
//	average  mean of the positions the tied group spans
//	min      lowest position of the group
//	max      highest position of the group
//	first    positions in order of appearance
//	dense    like min, but groups are numbered consecutively
//
// With pct, ranks are divided by the number of values, or by the number of
// distinct values for dense.
func RankSlice(vals []float64, method models.RankMethod, pct bool) []float64 {
	out := missingLike(vals)
	idx, data := compact(vals)
	n := len(data)
	if n == 0 {
		return out
	}
	order := make([]int, n)
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool { return data[order[a]] < data[order[b]] })

	ranks := make([]float64, n)
	dense := 0
	for i := 0; i < n; {
		j := i + 1
		for j < n && data[order[j]] == data[order[i]] {
			j++
		}
		dense++
		for k := i; k < j; k++ {
			var r float64
			switch method {
			case models.RankMin:
				r = float64(i + 1)
			case models.RankMax:
				r = float64(j)
			case models.RankFirst:
				r = float64(k + 1)
			case models.RankDense:
				r = float64(dense)
			default:
				r = float64(i+1+j) / 2
			}
			ranks[order[k]] = r
		}
		i = j
	}

	denom := float64(n)
	if method == models.RankDense {
		denom = float64(dense)
	}
	for k, i := range idx {
		if pct {
			out[i] = ranks[k] / denom
		} else {
			out[i] = ranks[k]
		}
	}
	return out
}

func winsorizeSlice(vals []float64, lower, upper float64) []float64 {
	out := make([]float64, len(vals))
	copy(out, vals)
	_, data := compact(vals)
	if len(data) < MinWinsorizeCount {
		return out
	}
	lo, err := stats.PercentileNearestRank(data, lower*100)
	if err != nil {
		return out
	}
	hi, err := stats.PercentileNearestRank(data, upper*100)
	if err != nil {
		return out
	}
	for i, v := range out {
		if models.IsMissing(v) {
			continue
		}
		out[i] = math.Min(math.Max(v, lo), hi)
	}
	return out
}
