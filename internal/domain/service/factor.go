package service

import (
	"context"
	"time"

	"FinFactor/internal/domain/models"
	"FinFactor/internal/domain/repository"
)

// Factor computes a date x instrument table of scores from provider data.
// Compute has no side effects: identical provider state gives identical output.
type Factor interface {
	Metadata() models.FactorMetadata
	Compute(ctx context.Context, p repository.DataProvider, universe []string, start, end time.Time) (*models.Table, error)
}
