package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"FinFactor/internal/domain/models"
	domrepo "FinFactor/internal/domain/repository"
	applogger "FinFactor/pkg/logger"
)

// PostgresSchema creates the tables PostgresProvider reads.
var PostgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS daily_prices (
		date DATE NOT NULL,
		instrument TEXT NOT NULL,
		close DOUBLE PRECISION,
		volume DOUBLE PRECISION,
		PRIMARY KEY (instrument, date)
	)`,
	`CREATE TABLE IF NOT EXISTS market_caps (
		date DATE NOT NULL,
		instrument TEXT NOT NULL,
		market_cap DOUBLE PRECISION,
		PRIMARY KEY (instrument, date)
	)`,
	`CREATE TABLE IF NOT EXISTS fundamentals (
		report_date DATE NOT NULL,
		instrument TEXT NOT NULL,
		metric TEXT NOT NULL,
		value DOUBLE PRECISION,
		PRIMARY KEY (metric, instrument, report_date)
	)`,
}

// pgSeries maps a market series to its table and value column.
var pgSeries = map[string]struct{ table, column string }{
	models.SeriesPrices:    {"daily_prices", "close"},
	models.SeriesVolumes:   {"daily_prices", "volume"},
	models.SeriesMarketCap: {"market_caps", "market_cap"},
}

type pgObservation struct {
	Instrument string          `db:"instrument"`
	Date       time.Time       `db:"date"`
	Value      sql.NullFloat64 `db:"value"`
}

type pgFundamental struct {
	Metric string `db:"metric"`
	pgObservation
}

// PostgresProvider serves company data (fundamentals, market cap) and, when
// loaded, daily prices from Postgres.
type PostgresProvider struct {
	db      *sqlx.DB
	timeout time.Duration
	l       *applogger.Logger
}

func NewPostgresProvider(db *sqlx.DB, timeout time.Duration) *PostgresProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PostgresProvider{db: db, timeout: timeout}
}

// OpenPostgres connects with lib/pq and pings.
func OpenPostgres(ctx context.Context, dsn string, maxOpen int) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen / 2)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// SetLogger injects a structured logger.
func (p *PostgresProvider) SetLogger(l *applogger.Logger) { p.l = l }

// InitSchema creates the provider tables if missing.
func (p *PostgresProvider) InitSchema(ctx context.Context) error {
	for _, stmt := range PostgresSchema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}

func toSeries(rows []pgObservation) seriesData {
	out := seriesData{}
	for _, r := range rows {
		v := models.Missing()
		if r.Value.Valid {
			v = r.Value.Float64
		}
		out[r.Instrument] = append(out[r.Instrument], Observation{Date: models.NormalizeDate(r.Date), Value: v})
	}
	return out
}

func (p *PostgresProvider) series(ctx context.Context, series string, instruments []string, start, end time.Time) (*models.Table, error) {
	src, ok := pgSeries[series]
	if !ok {
		return nil, fmt.Errorf("postgres provider: unknown series %q", series)
	}
	insts := domrepo.DedupeInstruments(instruments)
	if len(insts) == 0 {
		return assembleTable(series, nil, insts, start, end)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	q := fmt.Sprintf(`
		SELECT instrument, date, %s AS value
		FROM %s
		WHERE instrument = ANY($1) AND date >= $2 AND date <= $3
		ORDER BY date ASC`, src.column, src.table)
	var rows []pgObservation
	if err := p.db.SelectContext(ctx, &rows, q, pq.Array(insts), models.NormalizeDate(start), models.NormalizeDate(end)); err != nil {
		if p.l != nil {
			p.l.Error("postgres series query error", applogger.String("series", series), applogger.Error(err))
		}
		return nil, fmt.Errorf("query %s: %w", series, err)
	}
	return assembleTable(series, toSeries(rows), insts, start, end)
}

func (p *PostgresProvider) GetPrices(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return p.series(ctx, models.SeriesPrices, instruments, start, end)
}

func (p *PostgresProvider) GetVolumes(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return p.series(ctx, models.SeriesVolumes, instruments, start, end)
}

func (p *PostgresProvider) GetMarketCap(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return p.series(ctx, models.SeriesMarketCap, instruments, start, end)
}

func (p *PostgresProvider) GetFundamentals(ctx context.Context, instruments []string, metrics []string, start, end time.Time) (*models.Fundamentals, error) {
	insts := domrepo.DedupeInstruments(instruments)
	ms := domrepo.DedupeInstruments(metrics)
	byMetric := map[string]seriesData{}
	if len(insts) > 0 && len(ms) > 0 {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		const q = `
		SELECT metric, instrument, report_date AS date, value
		FROM fundamentals
		WHERE metric = ANY($1) AND instrument = ANY($2) AND report_date >= $3 AND report_date <= $4
		ORDER BY report_date ASC`
		var rows []pgFundamental
		if err := p.db.SelectContext(ctx, &rows, q, pq.Array(ms), pq.Array(insts), models.NormalizeDate(start), models.NormalizeDate(end)); err != nil {
			if p.l != nil {
				p.l.Error("postgres fundamentals query error", applogger.Strings("metrics", ms), applogger.Error(err))
			}
			return nil, fmt.Errorf("query fundamentals: %w", err)
		}
		grouped := map[string][]pgObservation{}
		for _, r := range rows {
			grouped[r.Metric] = append(grouped[r.Metric], r.pgObservation)
		}
		for m, obs := range grouped {
			byMetric[m] = toSeries(obs)
		}
	}
	return assembleFundamentals(func(metric string) seriesData { return byMetric[metric] }, insts, ms, start, end)
}

var _ domrepo.DataProvider = (*PostgresProvider)(nil)
