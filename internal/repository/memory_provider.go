package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"FinFactor/internal/domain/models"
	domrepo "FinFactor/internal/domain/repository"
)

// Observation is one dated value of a series.
type Observation struct {
	Date  time.Time
	Value float64
}

// seriesData holds observations per instrument, sorted by date.
type seriesData map[string][]Observation

// FundamentalsSeries is the series key under which a fundamentals metric is stored.
func FundamentalsSeries(metric string) string {
	return models.SeriesFundamentals + ":" + metric
}

// assembleTable builds the table for instruments over [start, end]. Rows are the
// union of observation dates; instruments without any observation in range are
// reported in a DataUnavailableError returned alongside the table.
func assembleTable(series string, data seriesData, instruments []string, start, end time.Time) (*models.Table, error) {
	insts := domrepo.DedupeInstruments(instruments)
	s, e := models.NormalizeDate(start), models.NormalizeDate(end)

	dateSet := map[int64]time.Time{}
	var missing []string
	for _, inst := range insts {
		found := false
		for _, o := range data[inst] {
			d := models.NormalizeDate(o.Date)
			if d.Before(s) || d.After(e) || models.IsMissing(o.Value) {
				continue
			}
			dateSet[models.DateKey(d)] = d
			found = true
		}
		if !found {
			missing = append(missing, inst)
		}
	}
	dates := make([]time.Time, 0, len(dateSet))
	for _, d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(a, b int) bool { return dates[a].Before(dates[b]) })

	t, err := models.NewTable(dates, insts, nil)
	if err != nil {
		return nil, err
	}
	g := t.Grid()
	for j, inst := range insts {
		for _, o := range data[inst] {
			if i, ok := t.RowIndex(o.Date); ok && !models.IsMissing(o.Value) {
				g[i][j] = o.Value
			}
		}
	}
	if t, err = models.NewTable(dates, insts, g); err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return t, &models.DataUnavailableError{Series: series, Instruments: missing}
	}
	return t, nil
}

// assembleFundamentals builds one table per metric and merges unavailability.
func assembleFundamentals(lookup func(metric string) seriesData, instruments, metrics []string, start, end time.Time) (*models.Fundamentals, error) {
	insts := domrepo.DedupeInstruments(instruments)
	tables := make(map[string]*models.Table, len(metrics))
	var missing []string
	seen := map[string]bool{}
	for _, m := range domrepo.DedupeInstruments(metrics) {
		t, err := assembleTable(FundamentalsSeries(m), lookup(m), insts, start, end)
		if err != nil {
			var du *models.DataUnavailableError
			if !errors.As(err, &du) {
				return nil, err
			}
			for _, inst := range du.Instruments {
				if !seen[inst] {
					seen[inst] = true
					missing = append(missing, inst)
				}
			}
		}
		tables[m] = t
	}
	f := models.NewFundamentals(insts, tables)
	if len(missing) > 0 {
		return f, &models.DataUnavailableError{Series: models.SeriesFundamentals + ":" + strings.Join(metrics, ","), Instruments: missing}
	}
	return f, nil
}

// MemoryProvider serves series held in memory. It is the reference
// DataProvider and the test double for everything above it.
type MemoryProvider struct {
	mu     sync.RWMutex
	series map[string]seriesData
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{series: make(map[string]seriesData)}
}

// Set replaces the observations of one instrument in one series.
func (m *MemoryProvider) Set(series, instrument string, obs []Observation) {
	cp := make([]Observation, len(obs))
	for i, o := range obs {
		cp[i] = Observation{Date: models.NormalizeDate(o.Date), Value: o.Value}
	}
	sort.SliceStable(cp, func(a, b int) bool { return cp[a].Date.Before(cp[b].Date) })
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.series[series] == nil {
		m.series[series] = seriesData{}
	}
	m.series[series][instrument] = cp
}

// SetSeries stores parallel dates and values for one instrument.
func (m *MemoryProvider) SetSeries(series, instrument string, dates []time.Time, values []float64) {
	obs := make([]Observation, 0, len(dates))
	for i := range dates {
		if i < len(values) {
			obs = append(obs, Observation{Date: dates[i], Value: values[i]})
		}
	}
	m.Set(series, instrument, obs)
}

// LoadTable stores every column of t as a series.
func (m *MemoryProvider) LoadTable(series string, t *models.Table) {
	for j := 0; j < t.NumCols(); j++ {
		m.SetSeries(series, t.Instrument(j), t.Dates(), t.Column(j))
	}
}

func (m *MemoryProvider) snapshot(series string) seriesData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(seriesData, len(m.series[series]))
	for k, v := range m.series[series] {
		out[k] = v
	}
	return out
}

func (m *MemoryProvider) get(ctx context.Context, series string, instruments []string, start, end time.Time) (*models.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return assembleTable(series, m.series[series], instruments, start, end)
}

func (m *MemoryProvider) GetPrices(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return m.get(ctx, models.SeriesPrices, instruments, start, end)
}

func (m *MemoryProvider) GetVolumes(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return m.get(ctx, models.SeriesVolumes, instruments, start, end)
}

func (m *MemoryProvider) GetMarketCap(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return m.get(ctx, models.SeriesMarketCap, instruments, start, end)
}

func (m *MemoryProvider) GetFundamentals(ctx context.Context, instruments []string, metrics []string, start, end time.Time) (*models.Fundamentals, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return assembleFundamentals(func(metric string) seriesData {
		return m.snapshot(FundamentalsSeries(metric))
	}, instruments, metrics, start, end)
}

var _ domrepo.DataProvider = (*MemoryProvider)(nil)
