package factors_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"FinFactor/internal/domain/models"
	"FinFactor/internal/domain/service"
	"FinFactor/internal/repository"
	"FinFactor/internal/services/factors"
)

var d0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time { return d0.AddDate(0, 0, i) }

func days(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = day(i)
	}
	return out
}

func priceProvider(cols map[string][]float64) *repository.MemoryProvider {
	p := repository.NewMemoryProvider()
	for inst, vals := range cols {
		p.SetSeries(models.SeriesPrices, inst, days(len(vals)), vals)
	}
	return p
}

func at(t *testing.T, tbl *models.Table, i int, inst string) float64 {
	t.Helper()
	v, ok := tbl.Value(day(i), inst)
	require.True(t, ok, "row %d / %s not in table", i, inst)
	return v
}

func TestMomentumSimpleReturn(t *testing.T) {
	prov := priceProvider(map[string][]float64{"A": {100, 102, 104, 103, 105}})
	ctx := context.Background()

	m4, err := factors.NewMomentum(factors.MomentumParams{Lookback: 4, SkipRecent: 0})
	require.NoError(t, err)
	out, err := m4.Compute(ctx, prov, []string{"A"}, day(0), day(4))
	require.NoError(t, err)
	assert.Equal(t, 5, out.NumRows())
	assert.InDelta(t, 0.05, at(t, out, 4, "A"), 1e-12)
	for i := 0; i < 4; i++ {
		assert.True(t, models.IsMissing(at(t, out, i, "A")), "row %d has no lookback", i)
	}

	m3, err := factors.NewMomentum(factors.MomentumParams{Lookback: 3, SkipRecent: 0})
	require.NoError(t, err)
	out, err = m3.Compute(ctx, prov, []string{"A"}, day(0), day(4))
	require.NoError(t, err)
	assert.InDelta(t, 103.0/100-1, at(t, out, 3, "A"), 1e-12)
	assert.InDelta(t, 105.0/102-1, at(t, out, 4, "A"), 1e-12)
}

func TestMomentumSkipRecent(t *testing.T) {
	prov := priceProvider(map[string][]float64{"A": {100, 102, 104, 103, 105}})
	m, err := factors.NewMomentum(factors.MomentumParams{Lookback: 3, SkipRecent: 1})
	require.NoError(t, err)
	out, err := m.Compute(context.Background(), prov, []string{"A"}, day(0), day(4))
	require.NoError(t, err)
	assert.InDelta(t, 103.0/102-1, at(t, out, 4, "A"), 1e-12)
}

func TestMomentumTrimsToRange(t *testing.T) {
	prov := priceProvider(map[string][]float64{"A": {100, 102, 104, 103, 105}})
	m, err := factors.NewMomentum(factors.MomentumParams{Lookback: 2, SkipRecent: 0})
	require.NoError(t, err)
	out, err := m.Compute(context.Background(), prov, []string{"A"}, day(3), day(4))
	require.NoError(t, err)
	require.Equal(t, 2, out.NumRows())
	assert.True(t, out.Date(0).Equal(day(3)))
	assert.InDelta(t, 103.0/102-1, at(t, out, 3, "A"), 1e-12, "warmup rows feed the first date")
}

func TestMomentumParamValidation(t *testing.T) {
	_, err := factors.NewMomentum(factors.MomentumParams{Lookback: 5, SkipRecent: 5})
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
	_, err = factors.NewMomentum(factors.MomentumParams{Lookback: 0})
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
	_, err = factors.NewMomentum(factors.MomentumParams{Lookback: 5, SkipRecent: -1})
	assert.ErrorIs(t, err, models.ErrInvalidParameter)

	var verr *models.ValidationError
	_, err = factors.NewMomentum(factors.MomentumParams{Lookback: 0})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "lookback", verr.Field)
}

func TestReversal(t *testing.T) {
	prov := priceProvider(map[string][]float64{"A": {100, 102, 104, 103, 105}})
	r, err := factors.NewReversal(factors.ReversalParams{Lookback: 2})
	require.NoError(t, err)
	out, err := r.Compute(context.Background(), prov, []string{"A"}, day(0), day(4))
	require.NoError(t, err)
	assert.InDelta(t, -0.04, at(t, out, 2, "A"), 1e-12)
	assert.InDelta(t, -(105.0/104 - 1), at(t, out, 4, "A"), 1e-12)
	assert.True(t, models.IsMissing(at(t, out, 1, "A")))
}

func TestVolatility(t *testing.T) {
	prices := []float64{100, 102, 104, 103, 105}
	prov := priceProvider(map[string][]float64{"A": prices})
	ctx := context.Background()

	v, err := factors.NewVolatility(factors.VolatilityParams{Lookback: 2, Annualize: false, PeriodsPerYear: 252})
	require.NoError(t, err)
	assert.False(t, v.Metadata().HigherIsBetter)

	out, err := v.Compute(ctx, prov, []string{"A"}, day(0), day(4))
	require.NoError(t, err)
	r3, r4 := prices[3]/prices[2]-1, prices[4]/prices[3]-1
	want := stat.StdDev([]float64{r3, r4}, nil)
	assert.InDelta(t, want, at(t, out, 4, "A"), 1e-12)
	assert.True(t, models.IsMissing(at(t, out, 1, "A")), "window not full")

	va, err := factors.NewVolatility(factors.VolatilityParams{Lookback: 2, Annualize: true, PeriodsPerYear: 252})
	require.NoError(t, err)
	out, err = va.Compute(ctx, prov, []string{"A"}, day(0), day(4))
	require.NoError(t, err)
	assert.InDelta(t, want*math.Sqrt(252), at(t, out, 4, "A"), 1e-12)
}

func TestZeroPriceIsComputationError(t *testing.T) {
	prov := priceProvider(map[string][]float64{"A": {100, 0, 104, 103, 105}})
	m, err := factors.NewMomentum(factors.MomentumParams{Lookback: 1, SkipRecent: 0})
	require.NoError(t, err)
	_, err = m.Compute(context.Background(), prov, []string{"A"}, day(0), day(4))
	require.ErrorIs(t, err, models.ErrComputation)

	var cerr *models.ComputationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "A", cerr.Instrument)
	assert.True(t, cerr.Date.Equal(day(2)))
	assert.Equal(t, "momentum", cerr.Factor)
}

func TestInputValidation(t *testing.T) {
	prov := priceProvider(map[string][]float64{"A": {100, 102, 104}})
	m, err := factors.NewMomentum(factors.MomentumParams{Lookback: 1, SkipRecent: 0})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = m.Compute(ctx, prov, nil, day(0), day(2))
	assert.ErrorIs(t, err, models.ErrInvalidUniverse)
	_, err = m.Compute(ctx, prov, []string{"", ""}, day(0), day(2))
	assert.ErrorIs(t, err, models.ErrInvalidUniverse)
	_, err = m.Compute(ctx, prov, []string{"A"}, day(2), day(0))
	assert.ErrorIs(t, err, models.ErrInvalidDateRange)
	_, err = m.Compute(ctx, prov, []string{"A"}, time.Time{}, day(0))
	assert.ErrorIs(t, err, models.ErrInvalidDateRange)

	u, err := factors.ValidateInputs([]string{"B", "A", "B"}, day(0), day(0))
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, u)
}

func TestInsufficientHistory(t *testing.T) {
	prov := priceProvider(map[string][]float64{"A": {100, 102, 104}, "B": {10, 11}})
	m, err := factors.NewMomentum(factors.MomentumParams{Lookback: 10, SkipRecent: 0})
	require.NoError(t, err)
	_, err = m.Compute(context.Background(), prov, []string{"A", "B"}, day(0), day(2))
	require.ErrorIs(t, err, models.ErrInsufficientData)

	var ierr *models.InsufficientDataError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "A", ierr.Instrument)
	assert.Equal(t, 11, ierr.Need)
	assert.Equal(t, 3, ierr.Have)
}

func TestUnavailableUniverse(t *testing.T) {
	prov := priceProvider(map[string][]float64{"A": {100, 102, 104}})
	m, err := factors.NewMomentum(factors.MomentumParams{Lookback: 1, SkipRecent: 0})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = m.Compute(ctx, prov, []string{"X", "Y"}, day(0), day(2))
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	out, err := m.Compute(ctx, prov, []string{"A", "X"}, day(0), day(2))
	require.NoError(t, err, "partial data is kept")
	assert.Equal(t, []string{"A", "X"}, out.Instruments())
	assert.Equal(t, []string{"X"}, out.EmptyColumns())
	assert.InDelta(t, 0.02, at(t, out, 1, "A"), 1e-12)
}

func TestMissingPricePropagates(t *testing.T) {
	prov := priceProvider(map[string][]float64{
		"A": {100, 102, 104, 103, 105},
		"B": {50, math.NaN(), 52, 53, 54},
	})
	m, err := factors.NewMomentum(factors.MomentumParams{Lookback: 1, SkipRecent: 0})
	require.NoError(t, err)
	out, err := m.Compute(context.Background(), prov, []string{"A", "B"}, day(0), day(4))
	require.NoError(t, err)
	assert.True(t, models.IsMissing(at(t, out, 1, "B")))
	assert.True(t, models.IsMissing(at(t, out, 2, "B")))
	assert.InDelta(t, 53.0/52-1, at(t, out, 3, "B"), 1e-12)
}

func fundamentalsProvider() *repository.MemoryProvider {
	p := repository.NewMemoryProvider()
	for _, inst := range []string{"A", "B"} {
		p.SetSeries(models.SeriesPrices, inst, days(5), []float64{1, 1, 1, 1, 1})
	}
	p.Set(repository.FundamentalsSeries("per"), "A", []repository.Observation{{Date: day(0), Value: 10}, {Date: day(3), Value: 12}})
	p.Set(repository.FundamentalsSeries("per"), "B", []repository.Observation{{Date: day(2), Value: 20}})
	p.Set(repository.FundamentalsSeries("dividend_yield"), "A", []repository.Observation{{Date: day(0), Value: 0.03}})
	p.Set(repository.FundamentalsSeries("dividend_yield"), "B", []repository.Observation{{Date: day(0), Value: 0.01}})
	return p
}

func TestValueForwardFillsAndInverts(t *testing.T) {
	prov := fundamentalsProvider()
	ctx := context.Background()

	v, err := factors.NewValue(factors.DefaultValueParams())
	require.NoError(t, err)
	out, err := v.Compute(ctx, prov, []string{"A", "B"}, day(0), day(4))
	require.NoError(t, err)
	require.Equal(t, 5, out.NumRows(), "price calendar")
	assert.InDelta(t, -10, at(t, out, 1, "A"), 1e-12)
	assert.InDelta(t, -12, at(t, out, 4, "A"), 1e-12)
	assert.True(t, models.IsMissing(at(t, out, 1, "B")), "no report yet")
	assert.InDelta(t, -20, at(t, out, 4, "B"), 1e-12)

	p := factors.DefaultValueParams()
	p.ForwardFill = false
	v, err = factors.NewValue(p)
	require.NoError(t, err)
	out, err = v.Compute(ctx, prov, []string{"A", "B"}, day(0), day(4))
	require.NoError(t, err)
	assert.InDelta(t, -10, at(t, out, 0, "A"), 1e-12)
	assert.True(t, models.IsMissing(at(t, out, 1, "A")))
}

func TestValueDividendYieldNotInverted(t *testing.T) {
	v, err := factors.NewValue(factors.ValueParams{Metric: factors.ValueDividendYield, ForwardFill: true})
	require.NoError(t, err)
	out, err := v.Compute(context.Background(), fundamentalsProvider(), []string{"A", "B"}, day(0), day(4))
	require.NoError(t, err)
	assert.InDelta(t, 0.03, at(t, out, 2, "A"), 1e-12)
	assert.Greater(t, at(t, out, 2, "A"), at(t, out, 2, "B"))

	inv := true
	v, err = factors.NewValue(factors.ValueParams{Metric: factors.ValueDividendYield, Invert: &inv, ForwardFill: true})
	require.NoError(t, err)
	out, err = v.Compute(context.Background(), fundamentalsProvider(), []string{"A", "B"}, day(0), day(4))
	require.NoError(t, err)
	assert.InDelta(t, -0.03, at(t, out, 2, "A"), 1e-12)
}

func TestValueUnknownMetric(t *testing.T) {
	_, err := factors.NewValue(factors.ValueParams{Metric: "peg"})
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
}

func TestQualityDebtRatioInvertsByDefault(t *testing.T) {
	prov := repository.NewMemoryProvider()
	prov.Set(repository.FundamentalsSeries("debt_ratio"), "A", []repository.Observation{{Date: day(0), Value: 0.4}})
	prov.Set(repository.FundamentalsSeries("debt_ratio"), "B", []repository.Observation{{Date: day(0), Value: 0.8}})

	q, err := factors.NewQuality(factors.QualityParams{Metric: factors.QualityDebtRatio, ForwardFill: true})
	require.NoError(t, err)
	out, err := q.Compute(context.Background(), prov, []string{"A", "B"}, day(0), day(0))
	require.NoError(t, err)
	require.Equal(t, 1, out.NumRows(), "report dates when no prices")
	assert.Greater(t, at(t, out, 0, "A"), at(t, out, 0, "B"))
}

func TestQualityEarningsStability(t *testing.T) {
	prov := repository.NewMemoryProvider()
	prov.Set(repository.FundamentalsSeries(factors.EPSMetric), "A", []repository.Observation{
		{Date: day(0), Value: 1}, {Date: day(1), Value: 3}, {Date: day(2), Value: 3},
	})
	prov.Set(repository.FundamentalsSeries(factors.EPSMetric), "B", []repository.Observation{
		{Date: day(0), Value: 2}, {Date: day(1), Value: -2},
	})

	q, err := factors.NewQuality(factors.QualityParams{Metric: factors.QualityEarningsStability, Window: 2})
	require.NoError(t, err)
	out, err := q.Compute(context.Background(), prov, []string{"A", "B"}, day(0), day(2))
	require.NoError(t, err)
	assert.True(t, models.IsMissing(at(t, out, 0, "A")), "one report")
	assert.InDelta(t, -math.Sqrt2/2, at(t, out, 1, "A"), 1e-12)
	assert.InDelta(t, 0, at(t, out, 2, "A"), 1e-12, "last two reports equal")
	assert.True(t, models.IsMissing(at(t, out, 1, "B")), "zero mean")

	_, err = factors.NewQuality(factors.QualityParams{Metric: factors.QualityEarningsStability, Window: 1})
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
}

func TestSizeLogMarketCap(t *testing.T) {
	prov := repository.NewMemoryProvider()
	prov.SetSeries(models.SeriesMarketCap, "A", days(2), []float64{100, 200})
	prov.SetSeries(models.SeriesMarketCap, "B", days(2), []float64{1000, 0})
	ctx := context.Background()

	s, err := factors.NewSize(factors.DefaultSizeParams())
	require.NoError(t, err)
	out, err := s.Compute(ctx, prov, []string{"A", "B"}, day(0), day(1))
	require.NoError(t, err)
	assert.InDelta(t, math.Log(200), at(t, out, 1, "A"), 1e-12)
	assert.True(t, models.IsMissing(at(t, out, 1, "B")), "log of zero")

	s, err = factors.NewSize(factors.SizeParams{Source: factors.SizeMarketCap, Invert: true, ForwardFill: true})
	require.NoError(t, err)
	out, err = s.Compute(ctx, prov, []string{"A", "B"}, day(0), day(1))
	require.NoError(t, err)
	assert.InDelta(t, -1000, at(t, out, 0, "B"), 1e-9)
	assert.InDelta(t, 0, at(t, out, 1, "B"), 1e-12, "no log keeps zero")

	_, err = factors.NewSize(factors.SizeParams{Source: "employees"})
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
}

func crossSection() *repository.MemoryProvider {
	return priceProvider(map[string][]float64{
		"A": {100, 101, 103, 102, 106},
		"B": {50, 49, 52, 55, 54},
		"C": {20, 22, 21, 21.5, 23},
	})
}

func TestCompositeCancelsOpposites(t *testing.T) {
	m, err := factors.NewMomentum(factors.MomentumParams{Lookback: 1, SkipRecent: 0})
	require.NoError(t, err)
	r, err := factors.NewReversal(factors.ReversalParams{Lookback: 1})
	require.NoError(t, err)
	c, err := factors.NewComposite([]factors.Component{{Factor: m, Weight: 1}, {Factor: r, Weight: 1}})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryPrice, c.Metadata().Category)

	out, err := c.Compute(context.Background(), crossSection(), []string{"A", "B", "C"}, day(0), day(4))
	require.NoError(t, err)
	for i := 1; i < 5; i++ {
		for _, inst := range []string{"A", "B", "C"} {
			assert.InDelta(t, 0, at(t, out, i, inst), 1e-9)
		}
	}
	assert.True(t, models.IsMissing(at(t, out, 0, "A")))
}

func TestCompositeOrientsLowerIsBetter(t *testing.T) {
	v, err := factors.NewVolatility(factors.VolatilityParams{Lookback: 2, PeriodsPerYear: 252})
	require.NoError(t, err)
	c, err := factors.NewComposite([]factors.Component{{Factor: v, Weight: 2}})
	require.NoError(t, err)
	ctx := context.Background()
	universe := []string{"A", "B", "C"}

	raw, err := v.Compute(ctx, crossSection(), universe, day(0), day(4))
	require.NoError(t, err)
	out, err := c.Compute(ctx, crossSection(), universe, day(0), day(4))
	require.NoError(t, err)

	row := raw.Row(4)
	mean, sd := stat.MeanStdDev(row, nil)
	for j, inst := range universe {
		assert.InDelta(t, -2*(row[j]-mean)/sd, at(t, out, 4, inst), 1e-9)
	}
}

func TestCompositeRejectsZeroWeights(t *testing.T) {
	m, err := factors.NewMomentum(factors.DefaultMomentumParams())
	require.NoError(t, err)
	_, err = factors.NewComposite([]factors.Component{{Factor: m, Weight: 0}})
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
	_, err = factors.NewComposite(nil)
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
}

func TestCompositeRejectsNilComponent(t *testing.T) {
	m, err := factors.NewMomentum(factors.DefaultMomentumParams())
	require.NoError(t, err)
	for _, comps := range [][]factors.Component{
		{{Factor: nil, Weight: 1}},
		{{Factor: m, Weight: 1}, {Factor: nil, Weight: 1}},
	} {
		var verr *models.ValidationError
		_, err := factors.NewComposite(comps)
		require.ErrorAs(t, err, &verr)
		assert.ErrorIs(t, err, models.ErrInvalidParameter)
	}
}

func TestRegistryBuild(t *testing.T) {
	reg := factors.NewDefaultRegistry()
	assert.Equal(t, []string{"composite", "momentum", "quality", "reversal", "size", "value", "volatility"}, reg.Names())

	f, err := reg.Build(models.FactorSpec{Name: "momentum", Params: map[string]any{"lookback": 4, "skip_recent": 0}})
	require.NoError(t, err)
	meta := f.Metadata()
	assert.Equal(t, "momentum", meta.Name)
	assert.Equal(t, 4, meta.DefaultParams["lookback"])
	assert.Equal(t, 0, meta.DefaultParams["skip_recent"], "explicit zero survives defaults")

	out, err := f.Compute(context.Background(), crossSection(), []string{"A"}, day(0), day(4))
	require.NoError(t, err)
	assert.InDelta(t, 0.06, at(t, out, 4, "A"), 1e-12)

	f, err = reg.Build(models.FactorSpec{Name: "momentum"})
	require.NoError(t, err)
	assert.Equal(t, 252, f.Metadata().DefaultParams["lookback"])
	assert.Equal(t, 21, f.Metadata().DefaultParams["skip_recent"])
}

func TestRegistryErrors(t *testing.T) {
	reg := factors.NewDefaultRegistry()

	_, err := reg.Build(models.FactorSpec{Name: "carry"})
	assert.ErrorIs(t, err, models.ErrUnknownFactor)

	_, err = reg.Build(models.FactorSpec{Name: "momentum", Params: map[string]any{"lookbak": 3}})
	assert.ErrorIs(t, err, models.ErrInvalidParameter)

	_, err = reg.Build(models.FactorSpec{Name: "momentum", Params: map[string]any{"lookback": 3, "skip_recent": 3}})
	assert.ErrorIs(t, err, models.ErrInvalidParameter)

	_, err = reg.Build(models.FactorSpec{Name: "value", Params: map[string]any{"metric": "peg"}})
	assert.ErrorIs(t, err, models.ErrInvalidParameter)

	err = reg.Register("momentum", func(map[string]any, *factors.Registry) (service.Factor, error) { return nil, nil })
	assert.ErrorIs(t, err, models.ErrDuplicateFactor)
}

func TestRegistryRenameAndBuildAll(t *testing.T) {
	reg := factors.NewDefaultRegistry()
	specs := []models.FactorSpec{
		{Name: "momentum", As: "mom_short", Params: map[string]any{"lookback": 2, "skip_recent": 0}},
		{Name: "momentum"},
	}
	fs, err := reg.BuildAll(specs)
	require.NoError(t, err)
	require.Len(t, fs, 2)
	assert.Equal(t, "mom_short", fs[0].Metadata().Name)
	assert.Equal(t, models.CategoryPrice, fs[0].Metadata().Category)
	assert.Equal(t, "momentum", fs[1].Metadata().Name)

	_, err = reg.BuildAll([]models.FactorSpec{{Name: "momentum"}, {Name: "reversal", As: "momentum"}})
	assert.ErrorIs(t, err, models.ErrDuplicateFactor)
}

func TestRegistryComposite(t *testing.T) {
	reg := factors.NewDefaultRegistry()
	f, err := reg.Build(models.FactorSpec{Name: "composite", Params: map[string]any{
		"components": []any{
			map[string]any{"name": "momentum", "params": map[string]any{"lookback": 1, "skip_recent": 0}},
			map[string]any{"name": "volatility", "params": map[string]any{"lookback": 2}, "weight": 0.5},
		},
	}})
	require.NoError(t, err)
	c, ok := f.(*factors.Composite)
	require.True(t, ok)
	comps := c.Components()
	require.Len(t, comps, 2)
	assert.Equal(t, 1.0, comps[0].Weight)
	assert.Equal(t, 0.5, comps[1].Weight)

	_, err = reg.Build(models.FactorSpec{Name: "composite", Params: map[string]any{
		"components": []any{map[string]any{"name": "carry"}},
	}})
	assert.ErrorIs(t, err, models.ErrUnknownFactor)

	_, err = reg.Build(models.FactorSpec{Name: "composite", Params: map[string]any{"components": []any{}}})
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
}

func TestRegistryPresets(t *testing.T) {
	reg := factors.NewDefaultRegistry()
	require.NoError(t, reg.RegisterPresets([]models.FactorSpec{
		{Name: "momentum", As: "mom_1d", Params: map[string]any{"lookback": 1, "skip_recent": 0}},
		{Name: "size"},
	}))
	assert.True(t, reg.Has("mom_1d"))
	assert.False(t, reg.Has(""))

	f, err := reg.Build(models.FactorSpec{Name: "mom_1d"})
	require.NoError(t, err)
	assert.Equal(t, "mom_1d", f.Metadata().Name)
	assert.Equal(t, 1, f.Metadata().DefaultParams["lookback"])

	f, err = reg.Build(models.FactorSpec{Name: "mom_1d", Params: map[string]any{"lookback": 3}})
	require.NoError(t, err)
	assert.Equal(t, 3, f.Metadata().DefaultParams["lookback"])

	err = reg.RegisterPresets([]models.FactorSpec{{Name: "reversal", As: "momentum"}})
	assert.ErrorIs(t, err, models.ErrDuplicateFactor)
}
