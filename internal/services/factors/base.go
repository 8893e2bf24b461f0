package factors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinFactor/internal/domain/models"
	"FinFactor/internal/domain/repository"
	"FinFactor/internal/services/features"
	applogger "FinFactor/pkg/logger"
)

// FundamentalsWarmupDays is how far before start fundamentals are read so the
// first dates of the range can be forward-filled from the previous report.
const FundamentalsWarmupDays = 370

// ValidateInputs checks the universe and date range shared by every factor and
// returns the universe with duplicates removed.
func ValidateInputs(universe []string, start, end time.Time) ([]string, error) {
	u := repository.DedupeInstruments(universe)
	if len(u) == 0 {
		return nil, &models.ValidationError{Kind: models.ErrInvalidUniverse, Field: "universe", Value: universe, Reason: "must contain at least one instrument"}
	}
	if start.IsZero() || end.IsZero() {
		return nil, &models.ValidationError{Kind: models.ErrInvalidDateRange, Field: "start/end", Value: fmt.Sprintf("%v..%v", start, end), Reason: "both dates are required"}
	}
	if models.NormalizeDate(start).After(models.NormalizeDate(end)) {
		return nil, &models.ValidationError{
			Kind:   models.ErrInvalidDateRange,
			Field:  "start",
			Value:  start.Format(models.DateLayout),
			Reason: "must not be after end " + end.Format(models.DateLayout),
		}
	}
	return u, nil
}

// warmupDays converts a number of trading rows into calendar days to read ahead of start.
func warmupDays(rows int) int {
	if rows <= 0 {
		return 0
	}
	return rows*7/5 + rows/10 + 10
}

// base carries what every built-in factor shares.
type base struct {
	meta models.FactorMetadata
	l    *applogger.Logger
}

func (b *base) Metadata() models.FactorMetadata { return b.meta.Copy() }

// SetLogger injects a structured logger.
func (b *base) SetLogger(l *applogger.Logger) { b.l = l }

func (b *base) name() string { return b.meta.Name }

// absorb turns a provider result into a table over exactly the universe.
// Partial unavailability is logged and kept as missing columns; a universe with
// no data at all becomes InsufficientData.
func (b *base) absorb(series string, universe []string, t *models.Table, err error) (*models.Table, error) {
	if err != nil {
		var du *models.DataUnavailableError
		if !errors.As(err, &du) || t == nil {
			return nil, fmt.Errorf("%s: get %s: %w", b.name(), series, err)
		}
		if b.l != nil {
			b.l.Warn("partial data",
				applogger.String("factor", b.name()),
				applogger.String("series", series),
				applogger.Strings("unavailable", du.Instruments),
			)
		}
	}
	if t == nil {
		return nil, fmt.Errorf("%s: get %s: provider returned no table", b.name(), series)
	}
	sel, err := t.Select(universe)
	if err != nil {
		return nil, fmt.Errorf("%s: align %s: %w", b.name(), series, err)
	}
	if len(sel.EmptyColumns()) == len(universe) {
		return nil, &models.InsufficientDataError{
			Factor: b.name(),
			Reason: fmt.Sprintf("no %s for any instrument in the universe", series),
		}
	}
	return sel, nil
}

func (b *base) loadPrices(ctx context.Context, p repository.DataProvider, universe []string, start, end time.Time, rows int) (*models.Table, error) {
	t, err := p.GetPrices(ctx, universe, start.AddDate(0, 0, -warmupDays(rows)), end)
	return b.absorb(models.SeriesPrices, universe, t, err)
}

// requireHistory fails when no instrument has at least need observations.
func (b *base) requireHistory(t *models.Table, need int, start time.Time) error {
	best, have := "", 0
	for j := 0; j < t.NumCols(); j++ {
		if n := features.CountValid(t.Column(j)); n > have {
			best, have = t.Instrument(j), n
		}
	}
	if have < need {
		return &models.InsufficientDataError{
			Factor:     b.name(),
			Instrument: best,
			Date:       start,
			Need:       need,
			Have:       have,
		}
	}
	return nil
}

// kernel maps one instrument's column to factor values. bad is the index of
// the first cell that could not be computed numerically, or -1.
type kernel func(col []float64) (out []float64, bad int)

// applyKernel runs k over every column of t and trims the result to [start, end].
func (b *base) applyKernel(t *models.Table, start, end time.Time, k kernel, cause string) (*models.Table, error) {
	g := models.NewGrid(t.NumRows(), t.NumCols())
	for j := 0; j < t.NumCols(); j++ {
		out, bad := k(t.Column(j))
		if bad >= 0 {
			return nil, &models.ComputationError{
				Factor:     b.name(),
				Instrument: t.Instrument(j),
				Date:       t.Date(bad),
				Err:        errors.New(cause),
			}
		}
		for i, v := range out {
			g[i][j] = v
		}
	}
	full, err := models.NewTable(t.Dates(), t.Instruments(), g)
	if err != nil {
		return nil, err
	}
	return full.Between(start, end), nil
}

// calendar picks the output dates for fundamentals-based factors: the price
// dates in range when the provider has them, else the dates of fallback.
func (b *base) calendar(ctx context.Context, p repository.DataProvider, universe []string, start, end time.Time, fallback *models.Table) []time.Time {
	t, err := p.GetPrices(ctx, universe, start, end)
	if t != nil && t.NumRows() > 0 && (err == nil || errors.Is(err, models.ErrDataUnavailable)) {
		return t.Between(start, end).Dates()
	}
	if err != nil && b.l != nil {
		b.l.Debug("price calendar unavailable, using report dates",
			applogger.String("factor", b.name()),
			applogger.Error(err),
		)
	}
	if fallback == nil {
		return nil
	}
	return fallback.Between(start, end).Dates()
}

// loadFundamental reads one metric and the matching calendar.
func (b *base) loadFundamental(ctx context.Context, p repository.DataProvider, universe []string, metric string, start, end time.Time, warmup int) (*models.Table, []time.Time, error) {
	f, err := p.GetFundamentals(ctx, universe, []string{metric}, start.AddDate(0, 0, -warmup), end)
	series := models.SeriesFundamentals + ":" + metric
	var raw *models.Table
	if f != nil {
		if t, ok := f.Metric(metric); ok {
			raw = t
		}
	}
	if f != nil && raw == nil && (err == nil || errors.Is(err, models.ErrDataUnavailable)) {
		return nil, nil, &models.InsufficientDataError{Factor: b.name(), Reason: "provider has no " + series}
	}
	raw, err = b.absorb(series, universe, raw, err)
	if err != nil {
		return nil, nil, err
	}
	return raw, b.calendar(ctx, p, universe, start, end, raw), nil
}

// AsOf samples src onto dates: each cell takes the observation on that date,
// or with ffill the latest observation on or before it.
func AsOf(src *models.Table, dates []time.Time, ffill bool) *models.Table {
	g := models.NewGrid(len(dates), src.NumCols())
	for j := 0; j < src.NumCols(); j++ {
		k, last := 0, models.Missing()
		for i, d := range dates {
			for k < src.NumRows() && !src.Date(k).After(d) {
				if v := src.At(k, j); !models.IsMissing(v) {
					last = v
				}
				if !ffill && src.Date(k).Equal(d) {
					g[i][j] = src.At(k, j)
				}
				k++
			}
			if ffill {
				g[i][j] = last
			}
		}
	}
	return models.MustTable(dates, src.Instruments(), g)
}

// orient flips the sign of t when invert is set.
func orient(t *models.Table, invert bool) *models.Table {
	if invert {
		return t.Negate()
	}
	return t
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// requireAnyValue fails when the computed table has no value at all.
func (b *base) requireAnyValue(t *models.Table, start time.Time) error {
	if t.NumRows() > 0 && len(t.EmptyColumns()) < t.NumCols() {
		return nil
	}
	return &models.InsufficientDataError{Factor: b.name(), Date: start, Reason: "no instrument has a value in the requested range"}
}
