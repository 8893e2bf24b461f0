package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	factorDuration   *prometheus.HistogramVec
	analysisDuration *prometheus.HistogramVec
	errorsTotal      *prometheus.CounterVec
	meanIC           *prometheus.GaugeVec
	missingRatio     *prometheus.HistogramVec
}

// New creates a recorder registered on reg, or on the default registry when reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		factorDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finfactor_factor_compute_seconds",
				Help:    "Duration of factor computations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"factor"},
		),
		analysisDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finfactor_analysis_seconds",
				Help:    "Duration of IC and quantile analyses in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"analyzer"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfactor_errors_total",
				Help: "Total number of errors by kind",
			},
			[]string{"kind"},
		),
		meanIC: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finfactor_mean_ic",
				Help: "Mean information coefficient of the last analysis",
			},
			[]string{"factor", "method", "period"},
		),
		missingRatio: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finfactor_factor_missing_ratio",
				Help:    "Share of missing cells in computed factor tables",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"factor"},
		),
	}
}

// RecordFactorCompute records one factor computation.
func (r *Recorder) RecordFactorCompute(factor string, seconds float64) {
	r.factorDuration.WithLabelValues(factor).Observe(seconds)
}

// RecordAnalysis records one analyzer run.
func (r *Recorder) RecordAnalysis(analyzer string, seconds float64) {
	r.analysisDuration.WithLabelValues(analyzer).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordMeanIC(factor, method string, period int, ic float64) {
	r.meanIC.WithLabelValues(factor, method, strconv.Itoa(period)).Set(ic)
}

func (r *Recorder) RecordMissingRatio(factor string, ratio float64) {
	r.missingRatio.WithLabelValues(factor).Observe(ratio)
}
