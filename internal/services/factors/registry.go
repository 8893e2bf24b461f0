package factors

import (
	"fmt"
	"sort"
	"sync"

	"FinFactor/internal/domain/models"
	"FinFactor/internal/domain/service"
	applogger "FinFactor/pkg/logger"
)

// Constructor builds a factor from a params map. The registry is passed so
// that factors made of other factors can build their children.
type Constructor func(params map[string]any, reg *Registry) (service.Factor, error)

// Registry maps factor names to constructors. It is created by the caller and
// passed around explicitly; there is no package-level instance.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
	l     *applogger.Logger
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// NewDefaultRegistry returns a registry holding the built-in factor family.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	builtins := map[string]Constructor{
		"momentum":   adapt(newMomentumFromParams),
		"reversal":   adapt(newReversalFromParams),
		"volatility": adapt(newVolatilityFromParams),
		"value":      adapt(newValueFromParams),
		"quality":    adapt(newQualityFromParams),
		"size":       adapt(newSizeFromParams),
		"composite":  adapt(newCompositeFromParams),
	}
	for name, c := range builtins {
		if err := r.Register(name, c); err != nil {
			panic(err)
		}
	}
	return r
}

// adapt erases the concrete factor type of a typed constructor.
func adapt[F service.Factor](fn func(map[string]any, *Registry) (F, error)) Constructor {
	return func(params map[string]any, reg *Registry) (service.Factor, error) {
		f, err := fn(params, reg)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

// SetLogger injects a structured logger into every factor built afterwards.
func (r *Registry) SetLogger(l *applogger.Logger) { r.l = l }

// Register adds a constructor. A name that is already taken fails with ErrDuplicateFactor.
func (r *Registry) Register(name string, c Constructor) error {
	if name == "" || c == nil {
		return models.NewInvalidParameter("name", name, "name and constructor are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctors[name]; exists {
		return &models.RegistryError{Name: name, Kind: models.ErrDuplicateFactor}
	}
	r.ctors[name] = c
	return nil
}

// Names lists registered factor names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ctors))
	for k := range r.ctors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[name]
	return ok
}

// Build constructs the factor a spec names. Unknown names fail with ErrUnknownFactor.
func (r *Registry) Build(spec models.FactorSpec) (service.Factor, error) {
	r.mu.RLock()
	c, ok := r.ctors[spec.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, &models.RegistryError{Name: spec.Name, Kind: models.ErrUnknownFactor}
	}
	f, err := c(spec.Params, r)
	if err != nil {
		return nil, fmt.Errorf("build factor %s: %w", spec.Name, err)
	}
	if spec.As != "" && spec.As != f.Metadata().Name {
		f = &renamed{Factor: f, name: spec.As}
	}
	if r.l != nil {
		if s, ok := f.(interface{ SetLogger(*applogger.Logger) }); ok {
			s.SetLogger(r.l)
		}
	}
	return f, nil
}

// RegisterPresets registers each configured spec under its display name, so a
// request naming the preset builds the configured factor. Params given at
// build time override the preset's. Specs without an alias are skipped.
func (r *Registry) RegisterPresets(specs []models.FactorSpec) error {
	for _, spec := range specs {
		if spec.As == "" || spec.As == spec.Name {
			continue
		}
		preset := spec
		err := r.Register(preset.As, func(params map[string]any, reg *Registry) (service.Factor, error) {
			merged := make(map[string]any, len(preset.Params)+len(params))
			for k, v := range preset.Params {
				merged[k] = v
			}
			for k, v := range params {
				merged[k] = v
			}
			return reg.Build(models.FactorSpec{Name: preset.Name, As: preset.As, Params: merged})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// BuildAll builds every spec, failing on the first error. Display names must be unique.
func (r *Registry) BuildAll(specs []models.FactorSpec) ([]service.Factor, error) {
	out := make([]service.Factor, 0, len(specs))
	names := make(map[string]bool, len(specs))
	for _, s := range specs {
		if names[s.DisplayName()] {
			return nil, &models.RegistryError{Name: s.DisplayName(), Kind: models.ErrDuplicateFactor}
		}
		names[s.DisplayName()] = true
		f, err := r.Build(s)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// renamed reports a configured factor under a different name.
type renamed struct {
	service.Factor
	name string
}

func (r *renamed) Metadata() models.FactorMetadata {
	m := r.Factor.Metadata()
	m.Name = r.name
	return m
}

func (r *renamed) SetLogger(l *applogger.Logger) {
	if s, ok := r.Factor.(interface{ SetLogger(*applogger.Logger) }); ok {
		s.SetLogger(l)
	}
}
