package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"FinFactor/internal/domain/models"
	domrepo "FinFactor/internal/domain/repository"
	domsvc "FinFactor/internal/domain/service"
	"FinFactor/internal/services/analytics"
	"FinFactor/internal/services/factors"
	"FinFactor/internal/services/normalize"
	applogger "FinFactor/pkg/logger"
)

// AnalysisConfig holds the defaults applied when a request leaves a field unset.
type AnalysisConfig struct {
	Periods        []int
	Method         models.ICMethod
	MinInstruments int
	NQuantiles     int
	Parallelism    int
}

func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		Periods:        []int{1, 5, 10},
		Method:         models.ICSpearman,
		MinInstruments: analytics.DefaultMinInstruments,
		NQuantiles:     analytics.DefaultQuantiles,
		Parallelism:    1,
	}
}

// ComputeInput selects a factor, a universe and a date range.
type ComputeInput struct {
	Factor    models.FactorSpec
	Universe  []string
	Start     time.Time
	End       time.Time
	Normalize *models.NormalizationParams
}

// AnalyzeInput extends ComputeInput with the analysis settings.
// Zero values fall back to AnalysisConfig.
type AnalyzeInput struct {
	ComputeInput
	Periods    []int
	Method     models.ICMethod
	NQuantiles int
}

// ComputeOutput is a factor table, normalized when requested.
type ComputeOutput struct {
	Factor        models.FactorMetadata       `json:"factor"`
	Values        *models.Table               `json:"values"`
	Normalization *models.NormalizationParams `json:"normalization,omitempty"`
	Coverage      float64                     `json:"coverage"`
	Warnings      []string                    `json:"warnings,omitempty"`
}

// FactorInfo describes a registered factor. Metadata is nil for factors that
// cannot be built without parameters (composite).
type FactorInfo struct {
	Name     string                 `json:"name"`
	Metadata *models.FactorMetadata `json:"metadata,omitempty"`
}

// FactorAnalysis runs the provider → factor → normalizer → analyzers pipeline.
type FactorAnalysis struct {
	provider  domrepo.DataProvider
	registry  *factors.Registry
	store     domrepo.ResultStore
	publisher domrepo.ResultPublisher
	metrics   domrepo.Metrics
	cfg       AnalysisConfig
	l         *applogger.Logger
	now       func() time.Time
}

func NewFactorAnalysis(provider domrepo.DataProvider, registry *factors.Registry, cfg AnalysisConfig) *FactorAnalysis {
	def := DefaultAnalysisConfig()
	if len(cfg.Periods) == 0 {
		cfg.Periods = def.Periods
	}
	if cfg.Method == "" {
		cfg.Method = def.Method
	}
	if cfg.MinInstruments == 0 {
		cfg.MinInstruments = def.MinInstruments
	}
	if cfg.NQuantiles == 0 {
		cfg.NQuantiles = def.NQuantiles
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	return &FactorAnalysis{provider: provider, registry: registry, cfg: cfg, now: time.Now}
}

// SetLogger injects a structured logger.
func (a *FactorAnalysis) SetLogger(l *applogger.Logger) { a.l = l }

// SetMetrics attaches a metrics sink.
func (a *FactorAnalysis) SetMetrics(m domrepo.Metrics) { a.metrics = m }

// SetStore attaches a result store; reports are saved after each analysis.
func (a *FactorAnalysis) SetStore(s domrepo.ResultStore) { a.store = s }

// SetPublisher attaches a publisher; report summaries are sent after saving.
func (a *FactorAnalysis) SetPublisher(p domrepo.ResultPublisher) { a.publisher = p }

// Config returns the effective defaults.
func (a *FactorAnalysis) Config() AnalysisConfig { return a.cfg }

// Factors lists registered factors with their default metadata.
func (a *FactorAnalysis) Factors() []FactorInfo {
	names := a.registry.Names()
	out := make([]FactorInfo, 0, len(names))
	for _, name := range names {
		info := FactorInfo{Name: name}
		if f, err := a.registry.Build(models.FactorSpec{Name: name}); err == nil {
			m := f.Metadata()
			info.Metadata = &m
		}
		out = append(out, info)
	}
	return out
}

func (a *FactorAnalysis) recordError(err error) {
	if a.metrics != nil && err != nil {
		a.metrics.RecordError(models.ErrorKind(err))
	}
}

// compute builds the factor and evaluates it. The returned table is the raw
// factor output; warnings name instruments with no values at all.
func (a *FactorAnalysis) compute(ctx context.Context, in ComputeInput) (domsvc.Factor, *models.Table, []string, error) {
	f, err := a.registry.Build(in.Factor)
	if err != nil {
		return nil, nil, nil, err
	}
	name := f.Metadata().Name
	began := time.Now()
	tbl, err := f.Compute(ctx, a.provider, in.Universe, in.Start, in.End)
	if a.metrics != nil {
		a.metrics.RecordFactorCompute(name, time.Since(began).Seconds())
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("compute %s: %w", name, err)
	}
	if a.metrics != nil {
		a.metrics.RecordMissingRatio(name, tbl.MissingRatio())
	}
	var warnings []string
	if empty := tbl.EmptyColumns(); len(empty) > 0 {
		warnings = append(warnings, fmt.Sprintf("no %s values for %d instrument(s): %v", name, len(empty), empty))
	}
	if a.l != nil {
		a.l.Debug("factor computed",
			applogger.String("factor", name),
			applogger.Int("rows", tbl.NumRows()),
			applogger.Int("instruments", tbl.NumCols()),
			applogger.Float64("missing_ratio", tbl.MissingRatio()),
			applogger.Duration("duration", time.Since(began)),
		)
	}
	return f, tbl, warnings, nil
}

func coverage(t *models.Table) float64 {
	if t.NumRows() == 0 || t.NumCols() == 0 {
		return 0
	}
	return 1 - t.MissingRatio()
}

// Compute evaluates one factor and optionally normalizes it.
func (a *FactorAnalysis) Compute(ctx context.Context, in ComputeInput) (*ComputeOutput, error) {
	f, tbl, warnings, err := a.compute(ctx, in)
	if err != nil {
		a.recordError(err)
		return nil, err
	}
	out := &ComputeOutput{Factor: f.Metadata(), Values: tbl, Coverage: coverage(tbl), Warnings: warnings}
	if in.Normalize != nil {
		nt, err := normalize.Apply(tbl, *in.Normalize)
		if err != nil {
			a.recordError(err)
			return nil, err
		}
		params := nt.Params()
		out.Values, out.Normalization = nt.Table(), &params
	}
	return out, nil
}

// resolve fills unset analysis settings from the defaults and validates them.
func (a *FactorAnalysis) resolve(in AnalyzeInput) ([]int, *analytics.ICAnalyzer, *analytics.QuantileAnalyzer, error) {
	periods := in.Periods
	if len(periods) == 0 {
		periods = a.cfg.Periods
	}
	seen := map[int]bool{}
	uniq := make([]int, 0, len(periods))
	for _, p := range periods {
		if p < 1 {
			return nil, nil, nil, models.NewInvalidParameter("periods", p, "must be >= 1")
		}
		if !seen[p] {
			seen[p] = true
			uniq = append(uniq, p)
		}
	}
	sort.Ints(uniq)

	method := in.Method
	if method == "" {
		method = a.cfg.Method
	}
	nq := in.NQuantiles
	if nq == 0 {
		nq = a.cfg.NQuantiles
	}
	ic, err := analytics.NewICAnalyzer(
		analytics.WithMethod(method),
		analytics.WithMinInstruments(a.cfg.MinInstruments),
		analytics.WithICParallelism(a.cfg.Parallelism),
	)
	if err != nil {
		return nil, nil, nil, err
	}
	q, err := analytics.NewQuantileAnalyzer(
		analytics.WithQuantiles(nq),
		analytics.WithQuantileParallelism(a.cfg.Parallelism),
	)
	if err != nil {
		return nil, nil, nil, err
	}
	if a.l != nil {
		ic.SetLogger(a.l)
		q.SetLogger(a.l)
	}
	return uniq, ic, q, nil
}

// prepare computes the oriented (and optionally normalized) factor table and
// the price table forward returns are derived from.
func (a *FactorAnalysis) prepare(ctx context.Context, in ComputeInput, maxPeriod int) (models.FactorMetadata, *models.Table, *models.Table, []string, error) {
	f, tbl, warnings, err := a.compute(ctx, in)
	if err != nil {
		return models.FactorMetadata{}, nil, nil, nil, err
	}
	meta := f.Metadata()
	if !meta.HigherIsBetter {
		tbl = tbl.Negate()
	}
	if in.Normalize != nil {
		nt, err := normalize.Apply(tbl, *in.Normalize)
		if err != nil {
			return meta, nil, nil, nil, err
		}
		tbl = nt.Table()
	}

	// forward returns at the last factor date need prices maxPeriod rows later
	horizon := maxPeriod*7/5 + 10
	prices, err := a.provider.GetPrices(ctx, in.Universe, in.Start, in.End.AddDate(0, 0, horizon))
	if err != nil {
		var du *models.DataUnavailableError
		if !errors.As(err, &du) || prices == nil {
			return meta, nil, nil, nil, fmt.Errorf("forward returns: get prices: %w", err)
		}
		warnings = append(warnings, fmt.Sprintf("no prices for forward returns: %v", du.Instruments))
	}
	if prices, err = prices.Select(tbl.Instruments()); err != nil {
		return meta, nil, nil, nil, fmt.Errorf("forward returns: %w", err)
	}
	return meta, tbl, prices, warnings, nil
}

// Analyze computes the factor and runs the IC and quantile analyses for every
// forward-return period. A period whose analyses fail keeps the error in its
// horizon report; the call fails only when no period produced any result.
func (a *FactorAnalysis) Analyze(ctx context.Context, in AnalyzeInput) (*models.AnalysisReport, error) {
	report, err := a.analyze(ctx, in)
	if err != nil {
		a.recordError(err)
		if a.l != nil {
			a.l.Warn("factor analysis failed",
				applogger.String("factor", in.Factor.DisplayName()),
				applogger.String("kind", models.ErrorKind(err)),
				applogger.Error(err),
			)
		}
		return nil, err
	}
	a.persist(ctx, report)
	return report, nil
}

func (a *FactorAnalysis) analyze(ctx context.Context, in AnalyzeInput) (*models.AnalysisReport, error) {
	periods, icA, qA, err := a.resolve(in)
	if err != nil {
		return nil, err
	}
	meta, fac, prices, warnings, err := a.prepare(ctx, in.ComputeInput, periods[len(periods)-1])
	if err != nil {
		return nil, err
	}

	report := &models.AnalysisReport{
		RunID:         uuid.NewString(),
		Factor:        meta,
		Universe:      fac.Instruments(),
		Start:         models.NormalizeDate(in.Start),
		End:           models.NormalizeDate(in.End),
		Normalization: in.Normalize,
		Coverage:      coverage(fac),
		Warnings:      warnings,
		CreatedAt:     a.now().UTC(),
	}

	var firstErr error
	produced := false
	for _, p := range periods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h := models.HorizonReport{Period: p}
		fwd, err := analytics.ForwardReturns(prices, p)
		if err != nil {
			return nil, err
		}

		began := time.Now()
		ic, err := icA.Analyze(ctx, fac, fwd)
		a.recordAnalysis("ic", began)
		if err != nil {
			err = withFactor(err, meta.Name)
			h.Errors = append(h.Errors, "ic: "+err.Error())
			firstErr = firstOf(firstErr, err)
		} else {
			ic.Factor, ic.Period = meta.Name, p
			h.IC = ic
			produced = true
			if a.metrics != nil && !models.IsMissing(ic.MeanIC) {
				a.metrics.RecordMeanIC(meta.Name, string(ic.Method), p, ic.MeanIC)
			}
		}

		began = time.Now()
		qr, err := qA.Analyze(ctx, fac, fwd)
		a.recordAnalysis("quantile", began)
		if err != nil {
			err = withFactor(err, meta.Name)
			h.Errors = append(h.Errors, "quantile: "+err.Error())
			firstErr = firstOf(firstErr, err)
		} else {
			qr.Factor, qr.Period = meta.Name, p
			h.Quantiles = qr
			produced = true
		}
		report.Horizons = append(report.Horizons, h)
	}
	if !produced {
		return nil, firstErr
	}
	return report, nil
}

// withFactor names the factor on insufficient-data errors raised by the
// analyzers, which only see tables.
func withFactor(err error, name string) error {
	var ide *models.InsufficientDataError
	if errors.As(err, &ide) && ide.Factor == "" {
		ide.Factor = name
	}
	return err
}

func firstOf(cur, err error) error {
	if cur != nil {
		return cur
	}
	return err
}

func (a *FactorAnalysis) recordAnalysis(analyzer string, began time.Time) {
	if a.metrics != nil {
		a.metrics.RecordAnalysis(analyzer, time.Since(began).Seconds())
	}
}

// persist saves and publishes a finished report. Failures become warnings on
// the report; the analysis itself already succeeded.
func (a *FactorAnalysis) persist(ctx context.Context, r *models.AnalysisReport) {
	if a.store != nil {
		if err := a.store.SaveReport(ctx, r); err != nil {
			r.Warnings = append(r.Warnings, "result store: "+err.Error())
			a.sinkFailure("store", r, err)
		}
	}
	if a.publisher != nil {
		if err := a.publisher.PublishReport(ctx, r); err != nil {
			r.Warnings = append(r.Warnings, "publish: "+err.Error())
			a.sinkFailure("publish", r, err)
		}
	}
}

func (a *FactorAnalysis) sinkFailure(sink string, r *models.AnalysisReport, err error) {
	if a.metrics != nil {
		a.metrics.RecordError(sink)
	}
	if a.l != nil {
		a.l.Error("report sink failed",
			applogger.String("sink", sink),
			applogger.String("run_id", r.RunID),
			applogger.Error(err),
		)
	}
}

// StreamIC computes the factor and emits the IC of each date for one period
// in date order, stopping at the first emit error. The summary fails with
// insufficient data when fewer than two points were valid.
func (a *FactorAnalysis) StreamIC(ctx context.Context, in AnalyzeInput, emit func(models.ICPoint) error) (*models.ICResult, error) {
	if len(in.Periods) == 0 {
		in.Periods = []int{1}
	}
	in.Periods = in.Periods[:1]
	periods, icA, _, err := a.resolve(in)
	if err != nil {
		return nil, err
	}
	meta, fac, prices, _, err := a.prepare(ctx, in.ComputeInput, periods[0])
	if err != nil {
		a.recordError(err)
		return nil, err
	}
	fwd, err := analytics.ForwardReturns(prices, periods[0])
	if err != nil {
		return nil, err
	}
	series, err := icA.Series(ctx, fac, fwd)
	if err != nil {
		return nil, withFactor(err, meta.Name)
	}
	for _, p := range series {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := emit(p); err != nil {
			return nil, err
		}
	}
	res := analytics.Summarize(series, icA.Method())
	if res.ValidPeriods < 2 {
		return nil, &models.InsufficientDataError{
			Factor: meta.Name,
			Need:   2,
			Have:   res.ValidPeriods,
			Reason: "fewer than 2 dates produced a valid IC",
		}
	}
	res.Factor, res.Period = meta.Name, periods[0]
	return res, nil
}
