package models

import (
	"encoding/json"
	"time"
)

// ICMethod is the correlation used for information coefficients.
type ICMethod string

const (
	ICSpearman ICMethod = "spearman"
	ICPearson  ICMethod = "pearson"
)

func (m ICMethod) Valid() bool { return m == ICSpearman || m == ICPearson }

// OptionalFloat returns nil for a missing value, else a pointer to v.
func OptionalFloat(v float64) *float64 {
	if IsMissing(v) {
		return nil
	}
	return &v
}

// ICPoint is one date of an IC series. IC is missing when fewer than the
// minimum number of instruments overlapped or the correlation was undefined.
type ICPoint struct {
	Date time.Time
	IC   float64
	N    int
}

func (p ICPoint) Valid() bool { return !IsMissing(p.IC) }

func (p ICPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date string   `json:"date"`
		IC   *float64 `json:"ic"`
		N    int      `json:"n"`
	}{p.Date.Format(DateLayout), OptionalFloat(p.IC), p.N})
}

// SeriesPoint is a dated scalar where Value may be missing.
type SeriesPoint struct {
	Date  time.Time
	Value float64
}

func (p SeriesPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date  string   `json:"date"`
		Value *float64 `json:"value"`
	}{p.Date.Format(DateLayout), OptionalFloat(p.Value)})
}

// ICResult is the outcome of one IC analysis. IR, TStat and PValue are nil
// when the IC standard deviation is zero.
type ICResult struct {
	Factor       string    `json:"factor,omitempty"`
	Method       ICMethod  `json:"method"`
	Period       int       `json:"period,omitempty"`
	Series       []ICPoint `json:"series"`
	MeanIC       float64   `json:"mean_ic"`
	StdIC        float64   `json:"std_ic"`
	IR           *float64  `json:"ir"`
	TStat        *float64  `json:"t_stat"`
	PValue       *float64  `json:"p_value"`
	ValidPeriods int       `json:"valid_periods"`
}

// QuantileResult is the outcome of one quantile analysis.
type QuantileResult struct {
	Factor     string `json:"factor,omitempty"`
	Period     int    `json:"period,omitempty"`
	NQuantiles int    `json:"n_quantiles"`
	// Assignments holds the bucket number (1..NQuantiles) per date and instrument.
	// It lives only as long as the result and is never serialized.
	Assignments *Table `json:"-"`
	// BucketReturns has one column per bucket (Q1..Qn) with the mean forward return.
	BucketReturns *Table `json:"bucket_returns"`
	// BucketCounts has the number of instruments averaged into each bucket mean.
	BucketCounts      *Table        `json:"bucket_counts"`
	MeanBucketReturns []*float64    `json:"mean_bucket_returns"`
	LongShortSeries   []SeriesPoint `json:"long_short_series"`
	LongShortReturn   *float64      `json:"long_short_return"`
	MonotonicityScore *float64      `json:"monotonicity_score"`
	ValidDates        int           `json:"valid_dates"`
}

// HorizonReport holds the analyses for one forward-return period.
type HorizonReport struct {
	Period    int             `json:"period"`
	IC        *ICResult       `json:"ic,omitempty"`
	Quantiles *QuantileResult `json:"quantiles,omitempty"`
	Errors    []string        `json:"errors,omitempty"`
}

// AnalysisReport is the full output of a factor analysis run.
type AnalysisReport struct {
	RunID         string               `json:"run_id"`
	Factor        FactorMetadata       `json:"factor"`
	Universe      []string             `json:"universe"`
	Start         time.Time            `json:"start"`
	End           time.Time            `json:"end"`
	Normalization *NormalizationParams `json:"normalization,omitempty"`
	Coverage      float64              `json:"coverage"`
	Horizons      []HorizonReport      `json:"horizons"`
	Warnings      []string             `json:"warnings,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}
