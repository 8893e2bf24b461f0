package repository_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFactor/internal/domain/models"
	"FinFactor/internal/repository"
	"FinFactor/pkg/cache"
)

var d0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time { return d0.AddDate(0, 0, i) }

func days(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = day(i)
	}
	return out
}

func memProvider() *repository.MemoryProvider {
	p := repository.NewMemoryProvider()
	p.SetSeries(models.SeriesPrices, "A", days(3), []float64{10, 11, 12})
	p.SetSeries(models.SeriesPrices, "B", []time.Time{day(1), day(2)}, []float64{20, 21})
	p.SetSeries(repository.FundamentalsSeries("per"), "A", []time.Time{day(0)}, []float64{15})
	return p
}

// countingProvider counts calls and can fail on demand.
type countingProvider struct {
	*repository.MemoryProvider
	calls atomic.Int32
	err   error
}

func (c *countingProvider) GetPrices(ctx context.Context, insts []string, start, end time.Time) (*models.Table, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.MemoryProvider.GetPrices(ctx, insts, start, end)
}

func (c *countingProvider) GetFundamentals(ctx context.Context, insts, metrics []string, start, end time.Time) (*models.Fundamentals, error) {
	c.calls.Add(1)
	return c.MemoryProvider.GetFundamentals(ctx, insts, metrics, start, end)
}

func TestMemoryProvider_UnionDatesAndDedupe(t *testing.T) {
	tbl, err := memProvider().GetPrices(context.Background(), []string{"B", "A", "B"}, day(0), day(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, tbl.Instruments())
	assert.Equal(t, 3, tbl.NumRows())
	v, _ := tbl.Value(day(0), "B")
	assert.True(t, models.IsMissing(v))
	v, _ = tbl.Value(day(2), "A")
	assert.Equal(t, 12.0, v)
}

func TestMemoryProvider_PartialData(t *testing.T) {
	tbl, err := memProvider().GetPrices(context.Background(), []string{"A", "ZZZ"}, day(0), day(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
	var du *models.DataUnavailableError
	require.True(t, errors.As(err, &du))
	assert.Equal(t, []string{"ZZZ"}, du.Instruments)
	require.NotNil(t, tbl)
	assert.Equal(t, []string{"A", "ZZZ"}, tbl.Instruments())
}

func TestCSVProvider_ReadsWideFiles(t *testing.T) {
	dir := t.TempDir()
	prices := "date,A,B\n2024-03-01,10,\n2024-03-02,11,20\n2024-03-03,12,21\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prices.csv"), []byte(prices), 0o644))
	per := "date,A\n2024-03-01,15\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fundamentals_per.csv"), []byte(per), 0o644))

	p, err := repository.NewCSVProvider(dir)
	require.NoError(t, err)
	ctx := context.Background()

	tbl, err := p.GetPrices(ctx, []string{"A", "B"}, day(1), day(2))
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.NumRows())
	v, _ := tbl.Value(day(1), "B")
	assert.Equal(t, 20.0, v)

	f, err := p.GetFundamentals(ctx, []string{"A"}, []string{"per"}, day(0), day(2))
	require.NoError(t, err)
	v, ok := f.Value("A", "per", day(0))
	require.True(t, ok)
	assert.Equal(t, 15.0, v)

	// no volumes.csv: every instrument unavailable
	_, err = p.GetVolumes(ctx, []string{"A"}, day(0), day(2))
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

func TestCSVProvider_RejectsMissingDir(t *testing.T) {
	_, err := repository.NewCSVProvider(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestFileFor(t *testing.T) {
	assert.Equal(t, "prices.csv", repository.FileFor(models.SeriesPrices))
	assert.Equal(t, "market_cap.csv", repository.FileFor(models.SeriesMarketCap))
	assert.Equal(t, "fundamentals_pbr.csv", repository.FileFor(repository.FundamentalsSeries("pbr")))
}

func TestFrameRoundTrip(t *testing.T) {
	src := models.MustTable(days(2), []string{"A", "B"}, [][]float64{{1.5, math.NaN()}, {2, 3}})
	var buf bytes.Buffer
	require.NoError(t, repository.WriteTableCSV(&buf, src))

	df, err := repository.ReadFrameCSV(&buf)
	require.NoError(t, err)
	back, err := repository.FrameToTable(df)
	require.NoError(t, err)
	assert.Equal(t, src.Instruments(), back.Instruments())
	assert.Equal(t, src.Dates(), back.Dates())
	assert.True(t, models.IsMissing(back.At(0, 1)))
	assert.Equal(t, 3.0, back.At(1, 1))
}

func TestFrameToTable_SortsRows(t *testing.T) {
	df, err := repository.ReadFrameCSV(bytes.NewBufferString("date,A,B\n2024-03-03,3,30\n2024-03-01,1,10\n2024-03-02,2,\n"))
	require.NoError(t, err)
	tbl, err := repository.FrameToTable(df)
	require.NoError(t, err)
	assert.Equal(t, days(3), tbl.Dates())
	assert.Equal(t, []float64{1, 2, 3}, tbl.Column(0))
	assert.True(t, models.IsMissing(tbl.At(1, 1)))

	df, err = repository.ReadFrameCSV(bytes.NewBufferString("date,A\n2024-03-01,1\n2024-03-01,2\n"))
	require.NoError(t, err)
	_, err = repository.FrameToTable(df)
	assert.Error(t, err)
}

func TestCachedProvider_HitsAndReplaysPartial(t *testing.T) {
	next := &countingProvider{MemoryProvider: memProvider()}
	mc := cache.NewMemoryCache()
	defer mc.Close()
	p := repository.NewCachedProvider(next, mc, time.Minute)
	ctx := context.Background()

	first, err1 := p.GetPrices(ctx, []string{"A", "ZZZ"}, day(0), day(2))
	second, err2 := p.GetPrices(ctx, []string{"A", "ZZZ"}, day(0), day(2))
	assert.Equal(t, int32(1), next.calls.Load())
	assert.ErrorIs(t, err1, models.ErrDataUnavailable)
	assert.ErrorIs(t, err2, models.ErrDataUnavailable)
	assert.Equal(t, first.Dates(), second.Dates())
	assert.Equal(t, first.Instruments(), second.Instruments())
	assert.Equal(t, 12.0, second.At(2, 0))

	_, err := p.GetFundamentals(ctx, []string{"A"}, []string{"per"}, day(0), day(2))
	require.NoError(t, err)
	f, err := p.GetFundamentals(ctx, []string{"A"}, []string{"per"}, day(0), day(2))
	require.NoError(t, err)
	v, _ := f.Value("A", "per", day(0))
	assert.Equal(t, 15.0, v)
	assert.Equal(t, int32(2), next.calls.Load())

	require.NoError(t, p.Invalidate(ctx, models.SeriesPrices))
	_, _ = p.GetPrices(ctx, []string{"A", "ZZZ"}, day(0), day(2))
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestCachedProvider_DoesNotCacheFailures(t *testing.T) {
	next := &countingProvider{MemoryProvider: memProvider(), err: errors.New("connection refused")}
	mc := cache.NewMemoryCache()
	defer mc.Close()
	p := repository.NewCachedProvider(next, mc, time.Minute)

	_, err := p.GetPrices(context.Background(), []string{"A"}, day(0), day(2))
	require.Error(t, err)
	_, err = p.GetPrices(context.Background(), []string{"A"}, day(0), day(2))
	require.Error(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
	assert.Equal(t, 0, mc.Len())
}

func TestBreakerProvider_OpensOnOutage(t *testing.T) {
	next := &countingProvider{MemoryProvider: memProvider(), err: errors.New("connection refused")}
	cfg := repository.DefaultBreakerConfig("test")
	cfg.ConsecutiveFailures = 2
	cfg.Retries = 0
	p := repository.NewBreakerProvider(next, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := p.GetPrices(ctx, []string{"A"}, day(0), day(2))
		require.Error(t, err)
	}
	assert.Equal(t, "open", p.State())
	_, err := p.GetPrices(ctx, []string{"A"}, day(0), day(2))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestBreakerProvider_RetriesTransientFailures(t *testing.T) {
	next := &countingProvider{MemoryProvider: memProvider(), err: errors.New("timeout")}
	cfg := repository.DefaultBreakerConfig("retry")
	cfg.Retries = 2
	cfg.Backoff = time.Millisecond
	p := repository.NewBreakerProvider(next, cfg)

	_, err := p.GetPrices(context.Background(), []string{"A"}, day(0), day(2))
	require.Error(t, err)
	assert.Equal(t, int32(3), next.calls.Load())
	assert.Equal(t, "closed", p.State())
}

func TestBreakerProvider_PartialDataKeepsBreakerClosed(t *testing.T) {
	next := &countingProvider{MemoryProvider: memProvider()}
	cfg := repository.DefaultBreakerConfig("partial")
	cfg.ConsecutiveFailures = 1
	p := repository.NewBreakerProvider(next, cfg)

	for i := 0; i < 3; i++ {
		tbl, err := p.GetPrices(context.Background(), []string{"A", "ZZZ"}, day(0), day(2))
		assert.ErrorIs(t, err, models.ErrDataUnavailable)
		require.NotNil(t, tbl)
	}
	assert.Equal(t, "closed", p.State())
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestCompositeProvider_Routes(t *testing.T) {
	market := repository.NewMemoryProvider()
	market.SetSeries(models.SeriesPrices, "A", days(1), []float64{1})
	company := repository.NewMemoryProvider()
	company.SetSeries(models.SeriesMarketCap, "A", days(1), []float64{1e9})

	p := repository.NewCompositeProvider(market, company)
	ctx := context.Background()
	_, err := p.GetPrices(ctx, []string{"A"}, day(0), day(0))
	require.NoError(t, err)
	mcap, err := p.GetMarketCap(ctx, []string{"A"}, day(0), day(0))
	require.NoError(t, err)
	assert.Equal(t, 1e9, mcap.At(0, 0))

	// nil company falls back to market, which has no market cap
	_, err = repository.NewCompositeProvider(market, nil).GetMarketCap(ctx, []string{"A"}, day(0), day(0))
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}
