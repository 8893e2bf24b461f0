package factors

import (
	"context"
	"math"
	"time"

	"github.com/creasty/defaults"

	"FinFactor/internal/domain/models"
	"FinFactor/internal/domain/repository"
	"FinFactor/internal/services/features"
)

type MomentumParams struct {
	Lookback   int `yaml:"lookback" default:"252" validate:"gte=1"`
	SkipRecent int `yaml:"skip_recent" default:"21" validate:"gte=0"`
}

func DefaultMomentumParams() MomentumParams {
	var p MomentumParams
	_ = defaults.Set(&p)
	return p
}

// Momentum scores the return from lookback rows ago up to skip_recent rows ago:
// P[t-skip]/P[t-lookback] - 1.
type Momentum struct {
	base
	p MomentumParams
}

func NewMomentum(p MomentumParams) (*Momentum, error) {
	if err := checkStruct(&p); err != nil {
		return nil, err
	}
	if p.SkipRecent >= p.Lookback {
		return nil, models.NewInvalidParameter("skip_recent", p.SkipRecent, "must be smaller than lookback")
	}
	return &Momentum{
		base: base{meta: models.FactorMetadata{
			Name:           "momentum",
			Category:       models.CategoryPrice,
			Inputs:         []string{models.SeriesPrices},
			Frequency:      models.FrequencyDaily,
			DefaultParams:  paramsMap(p),
			HigherIsBetter: true,
			Description:    "price return over lookback excluding the most recent skip_recent periods",
		}},
		p: p,
	}, nil
}

func newMomentumFromParams(raw map[string]any, _ *Registry) (*Momentum, error) {
	var p MomentumParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return NewMomentum(p)
}

func (m *Momentum) Compute(ctx context.Context, prov repository.DataProvider, universe []string, start, end time.Time) (*models.Table, error) {
	u, err := ValidateInputs(universe, start, end)
	if err != nil {
		return nil, err
	}
	prices, err := m.loadPrices(ctx, prov, u, start, end, m.p.Lookback)
	if err != nil {
		return nil, err
	}
	if err := m.requireHistory(prices, m.p.Lookback+1, start); err != nil {
		return nil, err
	}
	lb, skip := m.p.Lookback, m.p.SkipRecent
	return m.applyKernel(prices, start, end, func(col []float64) ([]float64, int) {
		out, bad := missingCol(len(col)), -1
		for i := lb; i < len(col); i++ {
			past, recent := col[i-lb], col[i-skip]
			if models.IsMissing(past) || models.IsMissing(recent) {
				continue
			}
			if past == 0 {
				if bad < 0 {
					bad = i
				}
				continue
			}
			out[i] = recent/past - 1
		}
		return out, bad
	}, "zero price in momentum denominator")
}

type ReversalParams struct {
	Lookback int `yaml:"lookback" default:"21" validate:"gte=1"`
}

func DefaultReversalParams() ReversalParams {
	var p ReversalParams
	_ = defaults.Set(&p)
	return p
}

// Reversal scores the negated return over lookback rows: -(P[t]/P[t-lookback] - 1).
type Reversal struct {
	base
	p ReversalParams
}

func NewReversal(p ReversalParams) (*Reversal, error) {
	if err := checkStruct(&p); err != nil {
		return nil, err
	}
	return &Reversal{
		base: base{meta: models.FactorMetadata{
			Name:           "reversal",
			Category:       models.CategoryPrice,
			Inputs:         []string{models.SeriesPrices},
			Frequency:      models.FrequencyDaily,
			DefaultParams:  paramsMap(p),
			HigherIsBetter: true,
			Description:    "negated short-term return",
		}},
		p: p,
	}, nil
}

func newReversalFromParams(raw map[string]any, _ *Registry) (*Reversal, error) {
	var p ReversalParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return NewReversal(p)
}

func (r *Reversal) Compute(ctx context.Context, prov repository.DataProvider, universe []string, start, end time.Time) (*models.Table, error) {
	u, err := ValidateInputs(universe, start, end)
	if err != nil {
		return nil, err
	}
	prices, err := r.loadPrices(ctx, prov, u, start, end, r.p.Lookback)
	if err != nil {
		return nil, err
	}
	if err := r.requireHistory(prices, r.p.Lookback+1, start); err != nil {
		return nil, err
	}
	lb := r.p.Lookback
	return r.applyKernel(prices, start, end, func(col []float64) ([]float64, int) {
		out, bad := missingCol(len(col)), -1
		for i := lb; i < len(col); i++ {
			past, cur := col[i-lb], col[i]
			if models.IsMissing(past) || models.IsMissing(cur) {
				continue
			}
			if past == 0 {
				if bad < 0 {
					bad = i
				}
				continue
			}
			out[i] = -(cur/past - 1)
		}
		return out, bad
	}, "zero price in reversal denominator")
}

type VolatilityParams struct {
	Lookback       int     `yaml:"lookback" default:"21" validate:"gte=2"`
	Annualize      bool    `yaml:"annualize" default:"true"`
	PeriodsPerYear float64 `yaml:"periods_per_year" default:"252" validate:"gt=0"`
}

func DefaultVolatilityParams() VolatilityParams {
	var p VolatilityParams
	_ = defaults.Set(&p)
	return p
}

// Volatility is the rolling sample standard deviation of simple returns over
// lookback returns, scaled by sqrt(periods_per_year) when annualized.
type Volatility struct {
	base
	p VolatilityParams
}

func NewVolatility(p VolatilityParams) (*Volatility, error) {
	if p.PeriodsPerYear == 0 {
		p.PeriodsPerYear = features.PeriodsPerYear(models.FrequencyDaily)
	}
	if err := checkStruct(&p); err != nil {
		return nil, err
	}
	return &Volatility{
		base: base{meta: models.FactorMetadata{
			Name:           "volatility",
			Category:       models.CategoryPrice,
			Inputs:         []string{models.SeriesPrices},
			Frequency:      models.FrequencyDaily,
			DefaultParams:  paramsMap(p),
			HigherIsBetter: false, // low-volatility tilt
			Description:    "rolling standard deviation of simple returns",
		}},
		p: p,
	}, nil
}

func newVolatilityFromParams(raw map[string]any, _ *Registry) (*Volatility, error) {
	var p VolatilityParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return NewVolatility(p)
}

func (v *Volatility) Compute(ctx context.Context, prov repository.DataProvider, universe []string, start, end time.Time) (*models.Table, error) {
	u, err := ValidateInputs(universe, start, end)
	if err != nil {
		return nil, err
	}
	prices, err := v.loadPrices(ctx, prov, u, start, end, v.p.Lookback+1)
	if err != nil {
		return nil, err
	}
	if err := v.requireHistory(prices, v.p.Lookback+1, start); err != nil {
		return nil, err
	}
	scale := 1.0
	if v.p.Annualize {
		scale = math.Sqrt(v.p.PeriodsPerYear)
	}
	return v.applyKernel(prices, start, end, func(col []float64) ([]float64, int) {
		rets, bad := features.SimpleReturns(col)
		out := features.RollingStd(rets, v.p.Lookback)
		for i, s := range out {
			if !models.IsMissing(s) {
				out[i] = s * scale
			}
		}
		return out, bad
	}, "zero price in return denominator")
}

func missingCol(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = models.Missing()
	}
	return out
}
