package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finfactor",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of factor API endpoints",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finfactor",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by factor API endpoint and error kind",
		},
		[]string{"endpoint", "kind"},
	)

	APICacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finfactor",
			Subsystem: "api",
			Name:      "cache_hits_total",
			Help:      "Responses served from the response cache",
		},
		[]string{"endpoint"},
	)

	ICStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "finfactor",
			Subsystem: "api",
			Name:      "ic_streams",
			Help:      "Open IC websocket streams",
		},
	)
)

// Register adds the API collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, APICacheHits, ICStreams)
	})
}
