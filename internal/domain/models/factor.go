package models

// Category groups factors by the kind of input they are derived from.
type Category string

const (
	CategoryPrice   Category = "price"
	CategoryValue   Category = "value"
	CategoryQuality Category = "quality"
	CategorySize    Category = "size"
	CategoryMacro   Category = "macro"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryPrice, CategoryValue, CategoryQuality, CategorySize, CategoryMacro:
		return true
	}
	return false
}

// Frequency is the native sampling frequency of a factor.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Input series names, as used in FactorMetadata.Inputs and provider errors.
const (
	SeriesPrices       = "prices"
	SeriesVolumes      = "volumes"
	SeriesMarketCap    = "market_cap"
	SeriesFundamentals = "fundamentals"
)

// FactorMetadata describes a factor. It is attached to every factor and never
// changes after construction; accessors hand out copies.
type FactorMetadata struct {
	Name           string         `json:"name" yaml:"name"`
	Category       Category       `json:"category" yaml:"category"`
	Inputs         []string       `json:"inputs" yaml:"inputs"`
	Frequency      Frequency      `json:"frequency" yaml:"frequency"`
	DefaultParams  map[string]any `json:"default_params" yaml:"default_params"`
	HigherIsBetter bool           `json:"higher_is_better" yaml:"higher_is_better"`
	Description    string         `json:"description,omitempty" yaml:"description,omitempty"`
}

// Copy returns a deep-enough copy: slices and the params map are duplicated.
func (m FactorMetadata) Copy() FactorMetadata {
	out := m
	out.Inputs = append([]string(nil), m.Inputs...)
	if m.DefaultParams != nil {
		out.DefaultParams = make(map[string]any, len(m.DefaultParams))
		for k, v := range m.DefaultParams {
			out.DefaultParams[k] = v
		}
	}
	return out
}

// FactorSpec is a configuration record naming a registered factor and its params.
type FactorSpec struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	// As optionally renames the built factor, so one constructor can be
	// configured several times.
	As     string         `json:"as,omitempty" yaml:"as,omitempty"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// DisplayName is the name results are reported under.
func (s FactorSpec) DisplayName() string {
	if s.As != "" {
		return s.As
	}
	return s.Name
}
