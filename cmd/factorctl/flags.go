package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"FinFactor/internal/domain/models"
	"FinFactor/pkg/util"
)

// parseParams turns key=value pairs into a params map. Values are decoded as
// YAML scalars so numbers and booleans keep their types.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("param %q: expected key=value", p)
		}
		var val any
		if err := yaml.Unmarshal([]byte(strings.TrimSpace(v)), &val); err != nil {
			return nil, fmt.Errorf("param %q: %w", p, err)
		}
		out[k] = val
	}
	return out, nil
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	now := time.Now()
	s, ok := util.ParseDay(start, now)
	if !ok {
		return time.Time{}, time.Time{}, &models.ValidationError{Kind: models.ErrInvalidDateRange, Field: "start", Value: start, Reason: "unrecognized date"}
	}
	e, ok := util.ParseDay(end, now)
	if !ok {
		return time.Time{}, time.Time{}, &models.ValidationError{Kind: models.ErrInvalidDateRange, Field: "end", Value: end, Reason: "unrecognized date"}
	}
	return s, e, nil
}

func splitUniverse(s string) []string { return util.SplitList(s) }

func normalizationParams(method, axis string) (*models.NormalizationParams, error) {
	np := &models.NormalizationParams{}
	if err := defaults.Set(np); err != nil {
		return nil, fmt.Errorf("normalization defaults: %w", err)
	}
	np.Method = models.NormMethod(method)
	if axis != "" {
		np.Axis = models.Axis(axis)
	}
	return np, nil
}
