package features

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"FinFactor/internal/domain/models"
)

func TestSimpleReturns(t *testing.T) {
	nan := models.Missing()
	got, bad := SimpleReturns([]float64{100, 110, nan, 121, 0, 5})
	assert.True(t, models.IsMissing(got[0]))
	assert.InDelta(t, 0.1, got[1], 1e-12)
	assert.True(t, models.IsMissing(got[2]))
	assert.True(t, models.IsMissing(got[3]))
	assert.InDelta(t, -1, got[4], 1e-12)
	assert.True(t, models.IsMissing(got[5]))
	assert.Equal(t, 5, bad)
}

func TestRollingStd(t *testing.T) {
	got := RollingStd([]float64{1, 2, 3, 4, models.Missing(), 6}, 3)
	assert.True(t, models.IsMissing(got[0]))
	assert.True(t, models.IsMissing(got[1]))
	assert.InDelta(t, 1, got[2], 1e-12)
	assert.InDelta(t, 1, got[3], 1e-12)
	assert.True(t, models.IsMissing(got[4]))
	assert.True(t, models.IsMissing(got[5]))
}

func TestLastNAndHelpers(t *testing.T) {
	assert.Equal(t, []float64{2, 4}, LastN([]float64{1, 2, models.Missing(), 4, 5}, 3, 2))
	assert.Equal(t, []float64{1}, LastN([]float64{1, models.Missing()}, 1, 3))
	assert.Empty(t, LastN([]float64{1, 2}, -1, 2))
	assert.Equal(t, 252.0, PeriodsPerYear(models.FrequencyDaily))
	assert.Equal(t, 2, CountValid([]float64{1, models.Missing(), 3}))
}
