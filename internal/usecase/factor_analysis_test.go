package usecase_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFactor/internal/domain/models"
	"FinFactor/internal/domain/service"
	"FinFactor/internal/repository"
	"FinFactor/internal/services/factors"
	"FinFactor/internal/usecase"
)

var d0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time { return d0.AddDate(0, 0, i) }

// growthProvider holds prices compounding at a constant, distinct rate per
// instrument, so one-day momentum equals the next day's return.
func growthProvider(insts []string, n int) *repository.MemoryProvider {
	p := repository.NewMemoryProvider()
	for k, inst := range insts {
		g := 0.001 * float64(k+1)
		dates := make([]time.Time, n)
		vals := make([]float64, n)
		for i := range dates {
			dates[i] = day(i)
			vals[i] = 100 * math.Pow(1+g, float64(i))
		}
		p.SetSeries(models.SeriesPrices, inst, dates, vals)
	}
	return p
}

var sixNames = []string{"A", "B", "C", "D", "E", "F"}

func momentumInput(universe []string) usecase.AnalyzeInput {
	return usecase.AnalyzeInput{
		ComputeInput: usecase.ComputeInput{
			Factor:   models.FactorSpec{Name: "momentum", Params: map[string]any{"lookback": 1, "skip_recent": 0}},
			Universe: universe,
			Start:    day(10),
			End:      day(25),
		},
		Periods:    []int{1, 2},
		NQuantiles: 3,
	}
}

type recordingStore struct {
	mu      sync.Mutex
	reports []*models.AnalysisReport
	err     error
}

func (s *recordingStore) Init(context.Context) error   { return nil }
func (s *recordingStore) Health(context.Context) error { return nil }
func (s *recordingStore) Close() error                 { return nil }
func (s *recordingStore) SaveReport(_ context.Context, r *models.AnalysisReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.reports = append(s.reports, r)
	return nil
}

type recordingPublisher struct {
	runIDs []string
}

func (p *recordingPublisher) PublishReport(_ context.Context, r *models.AnalysisReport) error {
	p.runIDs = append(p.runIDs, r.RunID)
	return nil
}
func (p *recordingPublisher) Close() error { return nil }

type recordingMetrics struct {
	mu       sync.Mutex
	computes []string
	errors   []string
	meanIC   map[int]float64
}

func (m *recordingMetrics) RecordFactorCompute(factor string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.computes = append(m.computes, factor)
}
func (m *recordingMetrics) RecordAnalysis(string, float64) {}
func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, kind)
}
func (m *recordingMetrics) RecordMeanIC(_ string, _ string, period int, ic float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.meanIC == nil {
		m.meanIC = map[int]float64{}
	}
	m.meanIC[period] = ic
}
func (m *recordingMetrics) RecordMissingRatio(string, float64) {}

func newAnalysis(p *repository.MemoryProvider) *usecase.FactorAnalysis {
	return usecase.NewFactorAnalysis(p, factors.NewDefaultRegistry(), usecase.AnalysisConfig{})
}

func TestAnalyzePerfectFactor(t *testing.T) {
	a := newAnalysis(growthProvider(sixNames, 40))
	store := &recordingStore{}
	pub := &recordingPublisher{}
	met := &recordingMetrics{}
	a.SetStore(store)
	a.SetPublisher(pub)
	a.SetMetrics(met)

	report, err := a.Analyze(context.Background(), momentumInput(sixNames))
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "momentum", report.Factor.Name)
	assert.Equal(t, sixNames, report.Universe)
	assert.Equal(t, day(10), report.Start)
	assert.InDelta(t, 1.0, report.Coverage, 1e-12)
	require.Len(t, report.Horizons, 2)

	h := report.Horizons[0]
	assert.Equal(t, 1, h.Period)
	assert.Empty(t, h.Errors)
	require.NotNil(t, h.IC)
	assert.InDelta(t, 1.0, h.IC.MeanIC, 1e-9)
	assert.Equal(t, 16, h.IC.ValidPeriods)
	require.NotNil(t, h.Quantiles)
	require.NotNil(t, h.Quantiles.LongShortReturn)
	assert.Greater(t, *h.Quantiles.LongShortReturn, 0.0)
	require.NotNil(t, h.Quantiles.MonotonicityScore)
	assert.InDelta(t, 1.0, *h.Quantiles.MonotonicityScore, 1e-9)

	require.Len(t, store.reports, 1)
	assert.Equal(t, report.RunID, store.reports[0].RunID)
	assert.Equal(t, []string{report.RunID}, pub.runIDs)
	assert.Equal(t, []string{"momentum"}, met.computes)
	assert.InDelta(t, 1.0, met.meanIC[1], 1e-9)
	assert.Empty(t, met.errors)
}

// lowerIsBetter reports its inner factor's values under HigherIsBetter=false.
type lowerIsBetter struct{ service.Factor }

func (f lowerIsBetter) Metadata() models.FactorMetadata {
	m := f.Factor.Metadata()
	m.Name = "inverse_momentum"
	m.HigherIsBetter = false
	return m
}

func TestAnalyzeOrientsLowerIsBetter(t *testing.T) {
	reg := factors.NewDefaultRegistry()
	require.NoError(t, reg.Register("inverse_momentum", func(params map[string]any, r *factors.Registry) (service.Factor, error) {
		inner, err := r.Build(models.FactorSpec{Name: "momentum", Params: params})
		if err != nil {
			return nil, err
		}
		return lowerIsBetter{inner}, nil
	}))
	a := usecase.NewFactorAnalysis(growthProvider(sixNames, 40), reg, usecase.AnalysisConfig{})

	in := momentumInput(sixNames)
	in.Factor.Name = "inverse_momentum"
	report, err := a.Analyze(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, report.Horizons[0].IC)
	assert.InDelta(t, -1.0, report.Horizons[0].IC.MeanIC, 1e-9)
}

func TestAnalyzeSinkFailureBecomesWarning(t *testing.T) {
	a := newAnalysis(growthProvider(sixNames, 40))
	met := &recordingMetrics{}
	a.SetStore(&recordingStore{err: errors.New("clickhouse down")})
	a.SetMetrics(met)

	report, err := a.Analyze(context.Background(), momentumInput(sixNames))
	require.NoError(t, err)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[len(report.Warnings)-1], "clickhouse down")
	assert.Equal(t, []string{"store"}, met.errors)
}

func TestAnalyzeAllHorizonsFail(t *testing.T) {
	insts := []string{"A", "B", "C"}
	a := newAnalysis(growthProvider(insts, 40))
	met := &recordingMetrics{}
	a.SetMetrics(met)

	_, err := a.Analyze(context.Background(), momentumInput(insts))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
	assert.Equal(t, []string{"insufficient_data"}, met.errors)

	var ide *models.InsufficientDataError
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, "momentum", ide.Factor)
	assert.Contains(t, err.Error(), "factor momentum")
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	a := newAnalysis(growthProvider(sixNames, 40))

	in := momentumInput(sixNames)
	in.Factor.Name = "nope"
	_, err := a.Analyze(context.Background(), in)
	assert.ErrorIs(t, err, models.ErrUnknownFactor)

	in = momentumInput(sixNames)
	in.Periods = []int{0}
	_, err = a.Analyze(context.Background(), in)
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
}

func TestComputeNormalizes(t *testing.T) {
	a := newAnalysis(growthProvider(sixNames, 40))
	in := momentumInput(sixNames).ComputeInput
	in.Normalize = &models.NormalizationParams{Method: models.NormZScore, Axis: models.AxisCrossSection}

	out, err := a.Compute(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, out.Normalization)
	assert.Equal(t, 16, out.Values.NumRows())
	row := out.Values.Row(0)
	sum := 0.0
	for _, v := range row {
		sum += v
	}
	assert.InDelta(t, 0, sum, 1e-9)
	assert.Less(t, row[0], row[5])
}

func TestFactorsListsBuiltins(t *testing.T) {
	a := newAnalysis(repository.NewMemoryProvider())
	infos := a.Factors()
	byName := map[string]usecase.FactorInfo{}
	for _, fi := range infos {
		byName[fi.Name] = fi
	}
	require.Contains(t, byName, "momentum")
	require.NotNil(t, byName["momentum"].Metadata)
	assert.True(t, byName["momentum"].Metadata.HigherIsBetter)
	require.Contains(t, byName, "volatility")
	assert.False(t, byName["volatility"].Metadata.HigherIsBetter)
	require.Contains(t, byName, "composite")
}

func TestStreamICEmitsInOrder(t *testing.T) {
	a := newAnalysis(growthProvider(sixNames, 40))
	in := momentumInput(sixNames)
	in.Periods = []int{1}

	var got []models.ICPoint
	res, err := a.StreamIC(context.Background(), in, func(p models.ICPoint) error {
		got = append(got, p)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 16)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Date.Before(got[i].Date))
	}
	assert.Equal(t, 1, res.Period)
	assert.InDelta(t, 1.0, res.MeanIC, 1e-9)

	stop := errors.New("client gone")
	n := 0
	_, err = a.StreamIC(context.Background(), in, func(models.ICPoint) error {
		n++
		if n == 3 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, n)
}

func TestAnalyzeInputFrom(t *testing.T) {
	in, err := usecase.AnalyzeInputFrom(models.AnalyzeRequest{
		Factor:   models.FactorSpec{Name: "momentum"},
		Universe: []string{"A"},
		Start:    "2024-01-02",
		End:      "2024-03-01",
		Method:   "pearson",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), in.Start)
	assert.Equal(t, models.ICPearson, in.Method)

	_, err = usecase.AnalyzeInputFrom(models.AnalyzeRequest{Start: "01/02/2024", End: "2024-03-01"})
	assert.ErrorIs(t, err, models.ErrInvalidDateRange)

	s, err := usecase.StreamInputFrom(models.ICStreamRequest{Factor: "size", Universe: "A, B,,C", Start: "2024-01-02", End: "2024-02-01", Period: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, s.Universe)
	assert.Equal(t, []int{5}, s.Periods)
}
