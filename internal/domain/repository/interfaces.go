package repository

import (
	"context"
	"time"

	"FinFactor/internal/domain/models"
)

// DataProvider supplies raw series for a set of instruments over a date range.
// Rows are calendar dates, columns follow the requested instruments with
// duplicates dropped in first-seen order. When some instruments have no data
// the provider returns the usable table together with a
// *models.DataUnavailableError; the table then has all-missing columns for them.
// Retry and backoff are the provider's concern.
type DataProvider interface {
	GetPrices(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error)
	GetVolumes(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error)
	GetFundamentals(ctx context.Context, instruments []string, metrics []string, start, end time.Time) (*models.Fundamentals, error)
	GetMarketCap(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error)
}

// ResultStore persists analysis reports.
type ResultStore interface {
	Init(ctx context.Context) error // ensure tables
	SaveReport(ctx context.Context, r *models.AnalysisReport) error
	Health(ctx context.Context) error
	Close() error
}

// ResultPublisher distributes analysis summaries to downstream consumers.
type ResultPublisher interface {
	PublishReport(ctx context.Context, r *models.AnalysisReport) error
	Close() error
}

type Metrics interface {
	RecordFactorCompute(factor string, seconds float64)
	RecordAnalysis(analyzer string, seconds float64)
	RecordError(kind string)
	RecordMeanIC(factor, method string, period int, ic float64)
	RecordMissingRatio(factor string, ratio float64)
}

// DedupeInstruments drops empty and repeated identifiers, keeping first-seen order.
func DedupeInstruments(instruments []string) []string {
	seen := make(map[string]struct{}, len(instruments))
	out := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		if inst == "" {
			continue
		}
		if _, ok := seen[inst]; ok {
			continue
		}
		seen[inst] = struct{}{}
		out = append(out, inst)
	}
	return out
}
