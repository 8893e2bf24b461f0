package analytics

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"FinFactor/internal/domain/models"
	applogger "FinFactor/pkg/logger"
)

// DefaultMinInstruments is the smallest cross-section an IC is computed on.
const DefaultMinInstruments = 5

type ICConfig struct {
	Method         models.ICMethod
	MinInstruments int
	Parallelism    int
}

type ICOption func(*ICConfig)

func WithMethod(m models.ICMethod) ICOption { return func(c *ICConfig) { c.Method = m } }
func WithMinInstruments(n int) ICOption { return func(c *ICConfig) { c.MinInstruments = n } }
func WithICParallelism(n int) ICOption { return func(c *ICConfig) { c.Parallelism = n } }

// ICAnalyzer correlates factor values with forward returns date by date.
// It holds no state between calls.
type ICAnalyzer struct {
	cfg ICConfig
	l   *applogger.Logger
}

func NewICAnalyzer(opts ...ICOption) (*ICAnalyzer, error) {
	cfg := ICConfig{Method: models.ICSpearman, MinInstruments: DefaultMinInstruments, Parallelism: 1}
	for _, o := range opts {
		o(&cfg)
	}
	if !cfg.Method.Valid() {
		return nil, models.NewInvalidParameter("method", cfg.Method, "must be spearman or pearson")
	}
	if cfg.MinInstruments < 2 {
		return nil, models.NewInvalidParameter("min_instruments", cfg.MinInstruments, "must be >= 2")
	}
	return &ICAnalyzer{cfg: cfg}, nil
}

// SetLogger injects a structured logger.
func (a *ICAnalyzer) SetLogger(l *applogger.Logger) { a.l = l }

func (a *ICAnalyzer) Method() models.ICMethod { return a.cfg.Method }

// Series returns one point per date present in both tables. A date whose
// overlapping non-missing cross-section is smaller than the minimum, or whose
// correlation is undefined, gets a missing IC.
func (a *ICAnalyzer) Series(ctx context.Context, factor, fwd *models.Table) ([]models.ICPoint, error) {
	if factor == nil || fwd == nil {
		return nil, models.NewInvalidParameter("table", nil, "factor and forward returns are required")
	}
	al := align(factor, fwd)
	points := make([]models.ICPoint, len(al.dates))
	err := forEachChunk(ctx, len(points), a.cfg.Parallelism, func(lo, hi int) error {
		for r := lo; r < hi; r++ {
			x, y := al.pairsAt(factor, fwd, r)
			p := models.ICPoint{Date: factor.Date(al.dates[r]), IC: models.Missing(), N: len(x)}
			if len(x) >= a.cfg.MinInstruments {
				p.IC = Correlation(x, y, a.cfg.Method)
			}
			points[r] = p
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// Analyze computes the IC series and its summary statistics.
func (a *ICAnalyzer) Analyze(ctx context.Context, factor, fwd *models.Table) (*models.ICResult, error) {
	started := time.Now()
	series, err := a.Series(ctx, factor, fwd)
	if err != nil {
		return nil, err
	}
	res := Summarize(series, a.cfg.Method)
	if res.ValidPeriods < 2 {
		return nil, &models.InsufficientDataError{
			Need:   2,
			Have:   res.ValidPeriods,
			Reason: "fewer than 2 dates produced a valid IC",
		}
	}
	if a.l != nil {
		a.l.Debug("ic analysis done",
			applogger.String("method", string(a.cfg.Method)),
			applogger.Int("dates", len(series)),
			applogger.Int("valid", res.ValidPeriods),
			applogger.Float64("mean_ic", res.MeanIC),
			applogger.Duration("took_ms", time.Since(started)),
		)
	}
	return res, nil
}

// Summarize derives mean, dispersion and significance from an IC series.
// MeanIC and StdIC are missing when there are too few valid points; IR, TStat
// and PValue stay nil unless the standard deviation is positive.
func Summarize(series []models.ICPoint, method models.ICMethod) *models.ICResult {
	res := &models.ICResult{Method: method, Series: series, MeanIC: models.Missing(), StdIC: models.Missing()}
	valid := make([]float64, 0, len(series))
	for _, p := range series {
		if p.Valid() {
			valid = append(valid, p.IC)
		}
	}
	n := len(valid)
	res.ValidPeriods = n
	if n == 0 {
		return res
	}
	res.MeanIC = stat.Mean(valid, nil)
	if n < 2 {
		return res
	}
	res.StdIC = stat.StdDev(valid, nil)
	if res.StdIC < 1e-12 || models.IsMissing(res.StdIC) {
		// constant series: rounding noise is not dispersion
		res.StdIC = 0
		return res
	}
	ir := res.MeanIC / res.StdIC
	t := res.MeanIC / (res.StdIC / math.Sqrt(float64(n)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	p := 2 * dist.Survival(math.Abs(t))
	res.IR, res.TStat, res.PValue = &ir, &t, &p
	return res
}
