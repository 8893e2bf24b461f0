package factors

import (
	"context"
	"fmt"
	"time"

	"FinFactor/internal/domain/models"
	"FinFactor/internal/domain/repository"
	"FinFactor/internal/domain/service"
	"FinFactor/internal/services/normalize"
	applogger "FinFactor/pkg/logger"
)

// ComponentSpec is one weighted child of a composite, by registry name.
type ComponentSpec struct {
	Name   string         `yaml:"name" validate:"required"`
	Params map[string]any `yaml:"params,omitempty"`
	Weight *float64       `yaml:"weight,omitempty"`
}

type CompositeParams struct {
	Components []ComponentSpec `yaml:"components" validate:"required,min=1,dive"`
}

// Component is a built child factor and its weight.
type Component struct {
	Factor service.Factor
	Weight float64
}

// Composite is the weighted sum of child factors, each z-scored across
// instruments first and oriented so that higher is better. A cell is missing
// when any component is missing there. Rows follow the first component.
type Composite struct {
	base
	components []Component
}

func NewComposite(components []Component) (*Composite, error) {
	if len(components) == 0 {
		return nil, models.NewInvalidParameter("components", 0, "need at least one component")
	}
	allZero := true
	var inputs []string
	seen := map[string]bool{}
	var cat models.Category
	summary := make([]map[string]any, 0, len(components))
	for i, c := range components {
		if c.Factor == nil {
			return nil, models.NewInvalidParameter(fmt.Sprintf("components[%d]", i), nil, "factor is required")
		}
		if models.IsMissing(c.Weight) {
			return nil, models.NewInvalidParameter(fmt.Sprintf("components[%d].weight", i), c.Weight, "must be finite")
		}
		if c.Weight != 0 {
			allZero = false
		}
		meta := c.Factor.Metadata()
		if i == 0 {
			cat = meta.Category
		} else if meta.Category != cat {
			cat = models.CategoryMacro
		}
		for _, in := range meta.Inputs {
			if !seen[in] {
				seen[in] = true
				inputs = append(inputs, in)
			}
		}
		summary = append(summary, map[string]any{"name": meta.Name, "weight": c.Weight})
	}
	if allZero {
		return nil, models.NewInvalidParameter("weights", 0, "must not all be zero")
	}
	return &Composite{
		base: base{meta: models.FactorMetadata{
			Name:           "composite",
			Category:       cat,
			Inputs:         inputs,
			Frequency:      models.FrequencyDaily,
			DefaultParams:  map[string]any{"components": summary},
			HigherIsBetter: true,
			Description:    "weighted sum of cross-sectionally z-scored components",
		}},
		components: append([]Component(nil), components...),
	}, nil
}

func newCompositeFromParams(raw map[string]any, reg *Registry) (*Composite, error) {
	var p CompositeParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, models.NewInvalidParameter("components", nil, "composite needs a registry to build components")
	}
	comps := make([]Component, 0, len(p.Components))
	for _, cs := range p.Components {
		f, err := reg.Build(models.FactorSpec{Name: cs.Name, Params: cs.Params})
		if err != nil {
			return nil, fmt.Errorf("composite component %s: %w", cs.Name, err)
		}
		w := 1.0
		if cs.Weight != nil {
			w = *cs.Weight
		}
		comps = append(comps, Component{Factor: f, Weight: w})
	}
	return NewComposite(comps)
}

// SetLogger injects a structured logger into the composite and its children.
func (c *Composite) SetLogger(l *applogger.Logger) {
	c.l = l
	for _, comp := range c.components {
		if s, ok := comp.Factor.(interface{ SetLogger(*applogger.Logger) }); ok {
			s.SetLogger(l)
		}
	}
}

func (c *Composite) Compute(ctx context.Context, prov repository.DataProvider, universe []string, start, end time.Time) (*models.Table, error) {
	u, err := ValidateInputs(universe, start, end)
	if err != nil {
		return nil, err
	}
	var acc [][]float64
	var dates []time.Time
	var first *models.Table
	for _, comp := range c.components {
		meta := comp.Factor.Metadata()
		raw, err := comp.Factor.Compute(ctx, prov, u, start, end)
		if err != nil {
			return nil, fmt.Errorf("composite: %s: %w", meta.Name, err)
		}
		z, err := normalize.ZScore(raw, models.AxisCrossSection)
		if err != nil {
			return nil, fmt.Errorf("composite: %s: %w", meta.Name, err)
		}
		zt := z.Table()
		if !meta.HigherIsBetter {
			zt = zt.Negate()
		}
		if first == nil {
			first = zt
			dates = zt.Dates()
			acc = make([][]float64, len(dates))
			for i := range acc {
				acc[i] = make([]float64, len(u))
			}
		}
		for i, d := range dates {
			r, ok := zt.RowIndex(d)
			for k, inst := range u {
				if models.IsMissing(acc[i][k]) {
					continue
				}
				j, okc := zt.ColIndex(inst)
				if !ok || !okc || models.IsMissing(zt.At(r, j)) {
					acc[i][k] = models.Missing()
					continue
				}
				acc[i][k] += comp.Weight * zt.At(r, j)
			}
		}
	}
	out, err := models.NewTable(dates, u, acc)
	if err != nil {
		return nil, &models.ComputationError{Factor: c.name(), Err: err}
	}
	if err := c.requireAnyValue(out, start); err != nil {
		return nil, err
	}
	return out, nil
}

// Components returns the children with their weights.
func (c *Composite) Components() []Component { return append([]Component(nil), c.components...) }
