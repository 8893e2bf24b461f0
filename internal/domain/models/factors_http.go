package models

// Requests for factor HTTP endpoints. Defined in domain for reuse by the CLI.

type ComputeRequest struct {
	Factor    FactorSpec           `json:"factor"`
	Universe  []string             `json:"universe" validate:"required,min=1,dive,required"`
	Start     string               `json:"start" validate:"required,datetime=2006-01-02"`
	End       string               `json:"end" validate:"required,datetime=2006-01-02"`
	Normalize *NormalizationParams `json:"normalize,omitempty"`
}

type AnalyzeRequest struct {
	Factor     FactorSpec           `json:"factor"`
	Universe   []string             `json:"universe" validate:"required,min=1,dive,required"`
	Start      string               `json:"start" validate:"required,datetime=2006-01-02"`
	End        string               `json:"end" validate:"required,datetime=2006-01-02"`
	Periods    []int                `json:"periods" validate:"omitempty,dive,gte=1,lte=252"`
	Method     string               `json:"method" default:"spearman" validate:"oneof=spearman pearson"`
	NQuantiles int                  `json:"n_quantiles" default:"5" validate:"gte=2,lte=20"`
	Normalize  *NormalizationParams `json:"normalize,omitempty"`
}

// ICStreamRequest is the query of the websocket IC stream.
type ICStreamRequest struct {
	Factor   string `query:"factor" validate:"required"`
	Universe string `query:"universe" validate:"required"`
	Start    string `query:"start" validate:"required,datetime=2006-01-02"`
	End      string `query:"end" validate:"required,datetime=2006-01-02"`
	Period   int    `query:"period" default:"1" validate:"gte=1,lte=252"`
	Method   string `query:"method" default:"spearman" validate:"oneof=spearman pearson"`
}
