package factors

import (
	"context"
	"math"
	"time"

	"github.com/creasty/defaults"
	"gonum.org/v1/gonum/stat"

	"FinFactor/internal/domain/models"
	"FinFactor/internal/domain/repository"
	"FinFactor/internal/services/features"
)

// ValueMetric is the closed set of valuation ratios the value factor reads.
type ValueMetric string

const (
	ValuePER           ValueMetric = "per"
	ValuePBR           ValueMetric = "pbr"
	ValueDividendYield ValueMetric = "dividend_yield"
	ValueEVEBITDA      ValueMetric = "ev_ebitda"
)

// invertByDefault reports whether a lower raw value means a cheaper instrument.
func (m ValueMetric) invertByDefault() (bool, error) {
	switch m {
	case ValuePER, ValuePBR, ValueEVEBITDA:
		return true, nil
	case ValueDividendYield:
		return false, nil
	}
	return false, models.NewInvalidParameter("metric", m, "must be one of per, pbr, dividend_yield, ev_ebitda")
}

type ValueParams struct {
	Metric      ValueMetric `yaml:"metric" default:"per" validate:"required"`
	Invert      *bool       `yaml:"invert,omitempty"`
	ForwardFill bool        `yaml:"forward_fill" default:"true"`
}

func DefaultValueParams() ValueParams {
	var p ValueParams
	_ = defaults.Set(&p)
	return p
}

// Value scores a valuation ratio, sign-flipped when invert is set so that
// cheaper instruments score higher. Reports are carried forward to each date.
type Value struct {
	base
	p      ValueParams
	invert bool
}

func NewValue(p ValueParams) (*Value, error) {
	if err := checkStruct(&p); err != nil {
		return nil, err
	}
	def, err := p.Metric.invertByDefault()
	if err != nil {
		return nil, err
	}
	return &Value{
		base: base{meta: models.FactorMetadata{
			Name:           "value",
			Category:       models.CategoryValue,
			Inputs:         []string{models.SeriesFundamentals + ":" + string(p.Metric), models.SeriesPrices},
			Frequency:      models.FrequencyDaily,
			DefaultParams:  paramsMap(p),
			HigherIsBetter: true,
			Description:    "valuation ratio " + string(p.Metric),
		}},
		p:      p,
		invert: boolOr(p.Invert, def),
	}, nil
}

func newValueFromParams(raw map[string]any, _ *Registry) (*Value, error) {
	var p ValueParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return NewValue(p)
}

func (v *Value) Compute(ctx context.Context, prov repository.DataProvider, universe []string, start, end time.Time) (*models.Table, error) {
	u, err := ValidateInputs(universe, start, end)
	if err != nil {
		return nil, err
	}
	raw, cal, err := v.loadFundamental(ctx, prov, u, string(v.p.Metric), start, end, FundamentalsWarmupDays)
	if err != nil {
		return nil, err
	}
	out := orient(AsOf(raw, cal, v.p.ForwardFill), v.invert)
	if err := v.requireAnyValue(out, start); err != nil {
		return nil, err
	}
	return out, nil
}

// QualityMetric is the closed set of profitability and balance-sheet measures.
type QualityMetric string

const (
	QualityROE               QualityMetric = "roe"
	QualityROA               QualityMetric = "roa"
	QualityEarningsStability QualityMetric = "earnings_stability"
	QualityDebtRatio         QualityMetric = "debt_ratio"
)

// EPSMetric is the fundamentals series earnings stability is derived from.
const EPSMetric = "eps"

func (m QualityMetric) invertByDefault() (bool, error) {
	switch m {
	case QualityROE, QualityROA, QualityEarningsStability:
		return false, nil
	case QualityDebtRatio:
		return true, nil
	}
	return false, models.NewInvalidParameter("metric", m, "must be one of roe, roa, earnings_stability, debt_ratio")
}

// source is the fundamentals series a quality metric reads.
func (m QualityMetric) source() string {
	switch m {
	case QualityEarningsStability:
		return EPSMetric
	default:
		return string(m)
	}
}

type QualityParams struct {
	Metric      QualityMetric `yaml:"metric" default:"roe" validate:"required"`
	Invert      *bool         `yaml:"invert,omitempty"`
	ForwardFill bool          `yaml:"forward_fill" default:"true"`
	// Window is the number of reported EPS values earnings stability looks at.
	Window int `yaml:"window" default:"8" validate:"gte=2"`
}

func DefaultQualityParams() QualityParams {
	var p QualityParams
	_ = defaults.Set(&p)
	return p
}

// Quality scores profitability (roe, roa), leverage (debt_ratio, inverted by
// default) or earnings stability: the negated coefficient of variation of the
// last window reported EPS values.
type Quality struct {
	base
	p      QualityParams
	invert bool
}

func NewQuality(p QualityParams) (*Quality, error) {
	if p.Window == 0 {
		p.Window = 8
	}
	if err := checkStruct(&p); err != nil {
		return nil, err
	}
	def, err := p.Metric.invertByDefault()
	if err != nil {
		return nil, err
	}
	return &Quality{
		base: base{meta: models.FactorMetadata{
			Name:           "quality",
			Category:       models.CategoryQuality,
			Inputs:         []string{models.SeriesFundamentals + ":" + p.Metric.source(), models.SeriesPrices},
			Frequency:      models.FrequencyDaily,
			DefaultParams:  paramsMap(p),
			HigherIsBetter: true,
			Description:    "quality measure " + string(p.Metric),
		}},
		p:      p,
		invert: boolOr(p.Invert, def),
	}, nil
}

func newQualityFromParams(raw map[string]any, _ *Registry) (*Quality, error) {
	var p QualityParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return NewQuality(p)
}

func (q *Quality) Compute(ctx context.Context, prov repository.DataProvider, universe []string, start, end time.Time) (*models.Table, error) {
	u, err := ValidateInputs(universe, start, end)
	if err != nil {
		return nil, err
	}
	warmup := FundamentalsWarmupDays
	if q.p.Metric == QualityEarningsStability {
		// quarterly reports: window quarters plus one year of slack
		warmup = max(warmup, q.p.Window*92+365)
	}
	raw, cal, err := q.loadFundamental(ctx, prov, u, q.p.Metric.source(), start, end, warmup)
	if err != nil {
		return nil, err
	}
	var out *models.Table
	if q.p.Metric == QualityEarningsStability {
		out = earningsStability(raw, cal, q.p.Window)
	} else {
		out = AsOf(raw, cal, q.p.ForwardFill)
	}
	out = orient(out, q.invert)
	if err := q.requireAnyValue(out, start); err != nil {
		return nil, err
	}
	return out, nil
}

// earningsStability evaluates -(std/|mean|) of the last window reported values
// known on each date. Fewer than window reports or a zero mean give missing.
func earningsStability(raw *models.Table, dates []time.Time, window int) *models.Table {
	g := models.NewGrid(len(dates), raw.NumCols())
	for j := 0; j < raw.NumCols(); j++ {
		col := raw.Column(j)
		k := 0
		for i, d := range dates {
			for k < raw.NumRows() && !raw.Date(k).After(d) {
				k++
			}
			last := features.LastN(col, k-1, window)
			if len(last) < window {
				continue
			}
			mean, sd := stat.MeanStdDev(last, nil)
			if mean == 0 || models.IsMissing(sd) {
				continue
			}
			g[i][j] = -(sd / math.Abs(mean))
		}
	}
	return models.MustTable(dates, raw.Instruments(), g)
}

// SizeSource is the closed set of size measures.
type SizeSource string

const (
	SizeMarketCap   SizeSource = "market_cap"
	SizeRevenue     SizeSource = "revenue"
	SizeTotalAssets SizeSource = "total_assets"
)

func (s SizeSource) check() error {
	switch s {
	case SizeMarketCap, SizeRevenue, SizeTotalAssets:
		return nil
	}
	return models.NewInvalidParameter("source", s, "must be one of market_cap, revenue, total_assets")
}

type SizeParams struct {
	Source      SizeSource `yaml:"source" default:"market_cap" validate:"required"`
	Log         bool       `yaml:"log" default:"true"`
	Invert      bool       `yaml:"invert"`
	ForwardFill bool       `yaml:"forward_fill" default:"true"`
}

func DefaultSizeParams() SizeParams {
	var p SizeParams
	_ = defaults.Set(&p)
	return p
}

// Size scores company size, optionally log-transformed (non-positive values
// become missing) and sign-inverted for a small-cap tilt.
type Size struct {
	base
	p SizeParams
}

func NewSize(p SizeParams) (*Size, error) {
	if err := checkStruct(&p); err != nil {
		return nil, err
	}
	if err := p.Source.check(); err != nil {
		return nil, err
	}
	input := models.SeriesMarketCap
	if p.Source != SizeMarketCap {
		input = models.SeriesFundamentals + ":" + string(p.Source)
	}
	return &Size{
		base: base{meta: models.FactorMetadata{
			Name:           "size",
			Category:       models.CategorySize,
			Inputs:         []string{input, models.SeriesPrices},
			Frequency:      models.FrequencyDaily,
			DefaultParams:  paramsMap(p),
			HigherIsBetter: true,
			Description:    "company size from " + string(p.Source),
		}},
		p: p,
	}, nil
}

func newSizeFromParams(raw map[string]any, _ *Registry) (*Size, error) {
	var p SizeParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return NewSize(p)
}

func (s *Size) Compute(ctx context.Context, prov repository.DataProvider, universe []string, start, end time.Time) (*models.Table, error) {
	u, err := ValidateInputs(universe, start, end)
	if err != nil {
		return nil, err
	}
	var raw *models.Table
	var cal []time.Time
	switch s.p.Source {
	case SizeMarketCap:
		t, err := prov.GetMarketCap(ctx, u, start.AddDate(0, 0, -warmupDays(5)), end)
		if raw, err = s.absorb(models.SeriesMarketCap, u, t, err); err != nil {
			return nil, err
		}
		cal = s.calendar(ctx, prov, u, start, end, raw)
	case SizeRevenue, SizeTotalAssets:
		if raw, cal, err = s.loadFundamental(ctx, prov, u, string(s.p.Source), start, end, FundamentalsWarmupDays); err != nil {
			return nil, err
		}
	}
	out := AsOf(raw, cal, s.p.ForwardFill)
	if s.p.Log {
		out = out.Map(func(x float64) float64 {
			if x <= 0 {
				return models.Missing()
			}
			return math.Log(x)
		})
	}
	out = orient(out, s.p.Invert)
	if err := s.requireAnyValue(out, start); err != nil {
		return nil, err
	}
	return out, nil
}
