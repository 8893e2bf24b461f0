package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"FinFactor/internal/domain/models"
	domrepo "FinFactor/internal/domain/repository"
	"FinFactor/pkg/cache"
	applogger "FinFactor/pkg/logger"
)

// cachedTable is what the cache holds for one provider call: the table and the
// instruments the source reported as unavailable, so partial results replay
// with the same error.
type cachedTable struct {
	Table       *models.Table `json:"table"`
	Series      string        `json:"series,omitempty"`
	Unavailable []string      `json:"unavailable,omitempty"`
}

type cachedFundamentals struct {
	Instruments []string                 `json:"instruments"`
	Metrics     map[string]*models.Table `json:"metrics"`
	Series      string                   `json:"series,omitempty"`
	Unavailable []string                 `json:"unavailable,omitempty"`
}

// CachedProvider memoizes another provider's results in a cache.Service.
// The provider owns the cache; nothing above it keeps cached state.
type CachedProvider struct {
	next   domrepo.DataProvider
	cache  cache.Service
	ttl    time.Duration
	prefix string
	l      *applogger.Logger
}

func NewCachedProvider(next domrepo.DataProvider, c cache.Service, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: c, ttl: ttl, prefix: "provider"}
}

// SetLogger injects a structured logger.
func (p *CachedProvider) SetLogger(l *applogger.Logger) { p.l = l }

func (p *CachedProvider) key(series string, instruments []string, start, end time.Time) string {
	raw := strings.Join(domrepo.DedupeInstruments(instruments), ",") + "|" +
		models.NormalizeDate(start).Format(models.DateLayout) + "|" +
		models.NormalizeDate(end).Format(models.DateLayout)
	return cache.Key(p.prefix, series, cache.HashKey(raw))
}

// Invalidate drops every cached entry of a series, or all entries when series is empty.
func (p *CachedProvider) Invalidate(ctx context.Context, series string) error {
	prefix := p.prefix + ":"
	if series != "" {
		prefix += series + ":"
	}
	return p.cache.DeleteByPattern(ctx, cache.PrefixPattern(prefix))
}

func unavailable(err error) (string, []string, bool) {
	var du *models.DataUnavailableError
	if errors.As(err, &du) {
		return du.Series, du.Instruments, true
	}
	return "", nil, false
}

func (p *CachedProvider) table(ctx context.Context, series string, instruments []string, start, end time.Time,
	load func(context.Context, []string, time.Time, time.Time) (*models.Table, error)) (*models.Table, error) {
	key := p.key(series, instruments, start, end)
	var hit cachedTable
	if err := p.cache.Get(ctx, key, &hit); err == nil && hit.Table != nil {
		if len(hit.Unavailable) > 0 {
			return hit.Table, &models.DataUnavailableError{Series: hit.Series, Instruments: hit.Unavailable}
		}
		return hit.Table, nil
	} else if err != nil && !errors.Is(err, cache.ErrCacheMiss) && p.l != nil {
		p.l.Warn("provider cache read failed", applogger.String("key", key), applogger.Error(err))
	}

	t, err := load(ctx, instruments, start, end)
	if err != nil {
		s, missing, ok := unavailable(err)
		if !ok || t == nil {
			return nil, err
		}
		p.store(ctx, key, cachedTable{Table: t, Series: s, Unavailable: missing})
		return t, err
	}
	p.store(ctx, key, cachedTable{Table: t})
	return t, nil
}

func (p *CachedProvider) store(ctx context.Context, key string, v any) {
	if err := p.cache.Set(ctx, key, v, p.ttl); err != nil && p.l != nil {
		p.l.Warn("provider cache write failed", applogger.String("key", key), applogger.Error(err))
	}
}

func (p *CachedProvider) GetPrices(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return p.table(ctx, models.SeriesPrices, instruments, start, end, p.next.GetPrices)
}

func (p *CachedProvider) GetVolumes(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return p.table(ctx, models.SeriesVolumes, instruments, start, end, p.next.GetVolumes)
}

func (p *CachedProvider) GetMarketCap(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return p.table(ctx, models.SeriesMarketCap, instruments, start, end, p.next.GetMarketCap)
}

func (p *CachedProvider) GetFundamentals(ctx context.Context, instruments []string, metrics []string, start, end time.Time) (*models.Fundamentals, error) {
	series := fmt.Sprintf("%s:%s", models.SeriesFundamentals, strings.Join(domrepo.DedupeInstruments(metrics), ","))
	key := p.key(series, instruments, start, end)
	var hit cachedFundamentals
	if err := p.cache.Get(ctx, key, &hit); err == nil && hit.Metrics != nil {
		f := models.NewFundamentals(hit.Instruments, hit.Metrics)
		if len(hit.Unavailable) > 0 {
			return f, &models.DataUnavailableError{Series: hit.Series, Instruments: hit.Unavailable}
		}
		return f, nil
	}

	f, err := p.next.GetFundamentals(ctx, instruments, metrics, start, end)
	if f == nil {
		return nil, err
	}
	entry := cachedFundamentals{Instruments: f.Instruments(), Metrics: map[string]*models.Table{}}
	for _, m := range f.Metrics() {
		t, _ := f.Metric(m)
		entry.Metrics[m] = t
	}
	if err != nil {
		s, missing, ok := unavailable(err)
		if !ok {
			return nil, err
		}
		entry.Series, entry.Unavailable = s, missing
	}
	p.store(ctx, key, entry)
	return f, err
}

var _ domrepo.DataProvider = (*CachedProvider)(nil)
