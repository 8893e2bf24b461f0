package models

import (
	"sort"
	"time"
)

// Fundamentals holds one table per metric, all sharing the requested instruments.
type Fundamentals struct {
	instruments []string
	metrics     map[string]*Table
}

// NewFundamentals wraps per-metric tables. Tables are not copied since they are immutable.
func NewFundamentals(instruments []string, metrics map[string]*Table) *Fundamentals {
	f := &Fundamentals{
		instruments: append([]string(nil), instruments...),
		metrics:     make(map[string]*Table, len(metrics)),
	}
	for k, t := range metrics {
		f.metrics[k] = t
	}
	return f
}

// Metric returns the table for one metric.
func (f *Fundamentals) Metric(name string) (*Table, bool) {
	t, ok := f.metrics[name]
	return t, ok
}

// Metrics lists available metric names in sorted order.
func (f *Fundamentals) Metrics() []string {
	out := make([]string, 0, len(f.metrics))
	for k := range f.metrics {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (f *Fundamentals) Instruments() []string { return append([]string(nil), f.instruments...) }

// Value looks up one (instrument, metric) observation on a date.
func (f *Fundamentals) Value(inst, metric string, d time.Time) (float64, bool) {
	t, ok := f.metrics[metric]
	if !ok {
		return Missing(), false
	}
	return t.Value(d, inst)
}
