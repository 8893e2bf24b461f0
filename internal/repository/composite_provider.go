package repository

import (
	"context"
	"time"

	"FinFactor/internal/domain/models"
	domrepo "FinFactor/internal/domain/repository"
)

// CompositeProvider routes market series (prices, volumes) to one source and
// company series (fundamentals, market cap) to another.
type CompositeProvider struct {
	market  domrepo.DataProvider
	company domrepo.DataProvider
}

func NewCompositeProvider(market, company domrepo.DataProvider) *CompositeProvider {
	if company == nil {
		company = market
	}
	return &CompositeProvider{market: market, company: company}
}

func (p *CompositeProvider) GetPrices(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return p.market.GetPrices(ctx, instruments, start, end)
}

func (p *CompositeProvider) GetVolumes(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return p.market.GetVolumes(ctx, instruments, start, end)
}

func (p *CompositeProvider) GetFundamentals(ctx context.Context, instruments []string, metrics []string, start, end time.Time) (*models.Fundamentals, error) {
	return p.company.GetFundamentals(ctx, instruments, metrics, start, end)
}

func (p *CompositeProvider) GetMarketCap(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return p.company.GetMarketCap(ctx, instruments, start, end)
}

var _ domrepo.DataProvider = (*CompositeProvider)(nil)
