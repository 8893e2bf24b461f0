package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"FinFactor/internal/domain/models"
	domrepo "FinFactor/internal/domain/repository"
	applogger "FinFactor/pkg/logger"
)

// BreakerConfig tunes the circuit breaker and retry loop around a provider.
type BreakerConfig struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
	Retries             int
	Backoff             time.Duration
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		Retries:             2,
		Backoff:             200 * time.Millisecond,
	}
}

// BreakerProvider guards a remote provider with gobreaker and retries transient
// failures with exponential backoff. Partial data and input errors count as
// successes: they are answers, not outages.
type BreakerProvider struct {
	next domrepo.DataProvider
	cb   *gobreaker.CircuitBreaker
	cfg  BreakerConfig
	l    *applogger.Logger
}

func NewBreakerProvider(next domrepo.DataProvider, cfg BreakerConfig) *BreakerProvider {
	p := &BreakerProvider{next: next, cfg: cfg}
	p.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if p.l != nil {
				p.l.Warn("provider breaker state change",
					applogger.String("breaker", name),
					applogger.String("from", from.String()),
					applogger.String("to", to.String()),
				)
			}
		},
		IsSuccessful: isProviderSuccess,
	})
	return p
}

// SetLogger injects a structured logger.
func (p *BreakerProvider) SetLogger(l *applogger.Logger) { p.l = l }

// State reports the breaker state (closed, half-open, open).
func (p *BreakerProvider) State() string { return p.cb.State().String() }

func isProviderSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, models.ErrDataUnavailable) ||
		errors.Is(err, models.ErrInvalidUniverse) ||
		errors.Is(err, models.ErrInvalidDateRange) ||
		errors.Is(err, models.ErrInvalidParameter) ||
		errors.Is(err, context.Canceled)
}

func retryable(err error) bool {
	return !isProviderSuccess(err) &&
		!errors.Is(err, gobreaker.ErrOpenState) &&
		!errors.Is(err, gobreaker.ErrTooManyRequests) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// call runs fn through the breaker, retrying transient failures.
func (p *BreakerProvider) call(ctx context.Context, op string, fn func() (interface{}, error)) (interface{}, error) {
	backoff := p.cfg.Backoff
	var (
		res interface{}
		err error
	)
	for attempt := 0; ; attempt++ {
		res, err = p.cb.Execute(fn)
		if err == nil || !retryable(err) || attempt >= p.cfg.Retries {
			return res, err
		}
		if p.l != nil {
			p.l.Warn("provider call failed, retrying",
				applogger.String("op", op),
				applogger.Int("attempt", attempt+1),
				applogger.Duration("backoff", backoff),
				applogger.Error(err),
			)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (p *BreakerProvider) table(ctx context.Context, op string, instruments []string, start, end time.Time,
	load func(context.Context, []string, time.Time, time.Time) (*models.Table, error)) (*models.Table, error) {
	res, err := p.call(ctx, op, func() (interface{}, error) {
		return load(ctx, instruments, start, end)
	})
	t, _ := res.(*models.Table)
	return t, err
}

func (p *BreakerProvider) GetPrices(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return p.table(ctx, "get_prices", instruments, start, end, p.next.GetPrices)
}

func (p *BreakerProvider) GetVolumes(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return p.table(ctx, "get_volumes", instruments, start, end, p.next.GetVolumes)
}

func (p *BreakerProvider) GetMarketCap(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return p.table(ctx, "get_market_cap", instruments, start, end, p.next.GetMarketCap)
}

func (p *BreakerProvider) GetFundamentals(ctx context.Context, instruments []string, metrics []string, start, end time.Time) (*models.Fundamentals, error) {
	res, err := p.call(ctx, "get_fundamentals", func() (interface{}, error) {
		return p.next.GetFundamentals(ctx, instruments, metrics, start, end)
	})
	f, _ := res.(*models.Fundamentals)
	return f, err
}

var _ domrepo.DataProvider = (*BreakerProvider)(nil)
