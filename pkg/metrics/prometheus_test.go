package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordError("insufficient_data")
	r.RecordError("insufficient_data")
	r.RecordMeanIC("momentum", "spearman", 5, 0.04)
	r.RecordFactorCompute("momentum", 0.2)
	r.RecordAnalysis("ic", 0.01)
	r.RecordMissingRatio("momentum", 0.25)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("insufficient_data")))
	assert.Equal(t, 0.04, testutil.ToFloat64(r.meanIC.WithLabelValues("momentum", "spearman", "5")))

	n, err := testutil.GatherAndCount(reg, "finfactor_factor_compute_seconds", "finfactor_analysis_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
