package models

import (
	"encoding/json"
	"fmt"
)

// NormMethod names a normalization transform.
type NormMethod string

const (
	NormZScore    NormMethod = "zscore"
	NormRank      NormMethod = "rank"
	NormWinsorize NormMethod = "winsorize"
)

// Axis selects the slice a normalization is computed over.
type Axis string

const (
	// AxisCrossSection normalizes each date across instruments.
	AxisCrossSection Axis = "cross_section"
	// AxisTimeSeries normalizes each instrument across dates.
	AxisTimeSeries Axis = "time_series"
)

// RankMethod is the tie-break rule used when ranking.
type RankMethod string

const (
	RankAverage RankMethod = "average"
	RankMin     RankMethod = "min"
	RankMax     RankMethod = "max"
	RankFirst   RankMethod = "first"
	RankDense   RankMethod = "dense"
)

func (m RankMethod) Valid() bool {
	switch m {
	case RankAverage, RankMin, RankMax, RankFirst, RankDense:
		return true
	}
	return false
}

// NormalizationParams fully describes a normalization.
type NormalizationParams struct {
	Method     NormMethod `json:"method" yaml:"method" validate:"required,oneof=zscore rank winsorize"`
	Axis       Axis       `json:"axis" yaml:"axis" default:"cross_section" validate:"oneof=cross_section time_series"`
	RankMethod RankMethod `json:"rank_method,omitempty" yaml:"rank_method" default:"average" validate:"omitempty,oneof=average min max first dense"`
	Pct        bool       `json:"pct,omitempty" yaml:"pct"`
	Lower      float64    `json:"lower,omitempty" yaml:"lower" default:"0.01"`
	Upper      float64    `json:"upper,omitempty" yaml:"upper" default:"0.99"`
}

// Check validates the cross-field constraints a struct tag cannot express.
func (p NormalizationParams) Check() error {
	switch p.Axis {
	case AxisCrossSection, AxisTimeSeries:
	default:
		return NewInvalidParameter("axis", p.Axis, "must be cross_section or time_series")
	}
	switch p.Method {
	case NormZScore:
	case NormRank:
		if !p.RankMethod.Valid() {
			return NewInvalidParameter("rank_method", p.RankMethod, "unknown tie-break method")
		}
	case NormWinsorize:
		if p.Lower < 0 || p.Upper > 1 || p.Lower >= p.Upper {
			return NewInvalidParameter("limits", fmt.Sprintf("(%g, %g)", p.Lower, p.Upper), "need 0 <= lower < upper <= 1")
		}
	default:
		return NewInvalidParameter("method", p.Method, "unknown normalization")
	}
	return nil
}

// NormalizedTable is a factor table that has been through a normalization.
// It is deliberately not a *Table so it cannot be normalized again by accident;
// call Table to read the values.
type NormalizedTable struct {
	table  *Table
	params NormalizationParams
}

func NewNormalizedTable(t *Table, params NormalizationParams) *NormalizedTable {
	return &NormalizedTable{table: t, params: params}
}

func (n *NormalizedTable) Table() *Table               { return n.table }
func (n *NormalizedTable) Params() NormalizationParams { return n.params }
func (n *NormalizedTable) Method() NormMethod          { return n.params.Method }

func (n *NormalizedTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Normalization NormalizationParams `json:"normalization"`
		Table         *Table              `json:"table"`
	}{n.params, n.table})
}
