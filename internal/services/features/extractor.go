package features

import (
	"math"

	"FinFactor/internal/domain/models"
)

// SimpleReturns computes r_t = P_t / P_{t-1} - 1 over a price column.
// The first entry and any entry next to a missing price are missing. A zero
// previous price cannot be divided by; its index is returned as bad (else -1).
func SimpleReturns(prices []float64) (returns []float64, bad int) {
	out := make([]float64, len(prices))
	bad = -1
	for i := range out {
		out[i] = models.Missing()
		if i == 0 {
			continue
		}
		prev, cur := prices[i-1], prices[i]
		if models.IsMissing(prev) || models.IsMissing(cur) {
			continue
		}
		if prev == 0 {
			if bad < 0 {
				bad = i
			}
			continue
		}
		out[i] = cur/prev - 1
	}
	return out, bad
}

// RollingStd returns the sample standard deviation of the window values ending
// at each index. Windows that are not full or contain a missing value are missing.
func RollingStd(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	for i := range out {
		out[i] = models.Missing()
	}
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(vals); i++ {
		sum, ok := 0.0, true
		for k := i - window + 1; k <= i; k++ {
			if models.IsMissing(vals[k]) {
				ok = false
				break
			}
			sum += vals[k]
		}
		if !ok {
			continue
		}
		n := float64(window)
		mean := sum / n
		ss := 0.0
		for k := i - window + 1; k <= i; k++ {
			d := vals[k] - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / (n - 1))
	}
	return out
}

// LastN returns up to n most recent non-missing values at or before index i, oldest first.
func LastN(vals []float64, i, n int) []float64 {
	out := make([]float64, 0, n)
	for k := i; k >= 0 && len(out) < n; k-- {
		if !models.IsMissing(vals[k]) {
			out = append(out, vals[k])
		}
	}
	for a, b := 0, len(out)-1; a < b; a, b = a+1, b-1 {
		out[a], out[b] = out[b], out[a]
	}
	return out
}

// PeriodsPerYear returns the annualization count for a sampling frequency.
func PeriodsPerYear(f models.Frequency) float64 {
	switch f {
	case models.FrequencyWeekly:
		return 52
	case models.FrequencyMonthly:
		return 12
	default:
		return 252
	}
}

// CountValid returns the number of non-missing entries.
func CountValid(vals []float64) int {
	n := 0
	for _, v := range vals {
		if !models.IsMissing(v) {
			n++
		}
	}
	return n
}
