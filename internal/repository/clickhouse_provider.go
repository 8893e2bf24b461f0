package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinFactor/internal/domain/models"
	domrepo "FinFactor/internal/domain/repository"
	pkgch "FinFactor/pkg/clickhouse"
	applogger "FinFactor/pkg/logger"
)

// barColumns maps market series to daily_bars columns.
var barColumns = map[string]string{
	models.SeriesPrices:    "close",
	models.SeriesVolumes:   "volume",
	models.SeriesMarketCap: "market_cap",
}

// ClickHouseProvider reads daily bars and fundamentals from ClickHouse. Both
// tables are ReplacingMergeTree, so queries take the latest version of each
// (instrument, date) with argMax over updated_at instead of relying on merges.
type ClickHouseProvider struct {
	db *sql.DB
	// database qualifier for table names
	database string
	l        *applogger.Logger
}

func NewClickHouseProvider(ch *pkgch.Client) *ClickHouseProvider {
	return &ClickHouseProvider{db: ch.DB(), database: ch.Database()}
}

// SetLogger injects a structured logger.
func (p *ClickHouseProvider) SetLogger(l *applogger.Logger) { p.l = l }

func (p *ClickHouseProvider) table(name string) string {
	if p.database == "" {
		return name
	}
	return p.database + "." + name
}

func (p *ClickHouseProvider) bars(ctx context.Context, series string, instruments []string, start, end time.Time) (*models.Table, error) {
	col, ok := barColumns[series]
	if !ok {
		return nil, fmt.Errorf("clickhouse provider: unknown series %q", series)
	}
	insts := domrepo.DedupeInstruments(instruments)
	if len(insts) == 0 {
		return assembleTable(series, nil, insts, start, end)
	}
	began := time.Now()
	q := fmt.Sprintf(`
        SELECT instrument, date, argMax(%s, updated_at) AS v
        FROM %s
        WHERE instrument IN (%s) AND date >= ? AND date <= ?
        GROUP BY instrument, date
        ORDER BY date ASC, instrument ASC
    `, col, p.table(pkgch.TableDailyBars), placeholders(len(insts)))

	args := make([]interface{}, 0, len(insts)+2)
	for _, inst := range insts {
		args = append(args, inst)
	}
	args = append(args, models.NormalizeDate(start), models.NormalizeDate(end))

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		if p.l != nil {
			p.l.Error("clickhouse bars query error",
				applogger.String("series", series),
				applogger.Int("instruments", len(insts)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query %s: %w", series, err)
	}
	defer rows.Close()

	data, err := scanLong(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", series, err)
	}
	if p.l != nil {
		p.l.Debug("clickhouse bars ok",
			applogger.String("series", series),
			applogger.Int("instruments", len(insts)),
			applogger.Int("with_data", len(data)),
			applogger.Duration("duration_ms", time.Since(began)),
		)
	}
	return assembleTable(series, data, insts, start, end)
}

func (p *ClickHouseProvider) GetPrices(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return p.bars(ctx, models.SeriesPrices, instruments, start, end)
}

func (p *ClickHouseProvider) GetVolumes(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return p.bars(ctx, models.SeriesVolumes, instruments, start, end)
}

func (p *ClickHouseProvider) GetMarketCap(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return p.bars(ctx, models.SeriesMarketCap, instruments, start, end)
}

func (p *ClickHouseProvider) GetFundamentals(ctx context.Context, instruments []string, metrics []string, start, end time.Time) (*models.Fundamentals, error) {
	insts := domrepo.DedupeInstruments(instruments)
	ms := domrepo.DedupeInstruments(metrics)
	byMetric := map[string]seriesData{}
	if len(insts) > 0 && len(ms) > 0 {
		q := fmt.Sprintf(`
            SELECT metric, instrument, report_date, argMax(value, updated_at) AS v
            FROM %s
            WHERE metric IN (%s) AND instrument IN (%s) AND report_date >= ? AND report_date <= ?
            GROUP BY metric, instrument, report_date
            ORDER BY report_date ASC
        `, p.table(pkgch.TableFundamentals), placeholders(len(ms)), placeholders(len(insts)))
		args := make([]interface{}, 0, len(ms)+len(insts)+2)
		for _, m := range ms {
			args = append(args, m)
		}
		for _, inst := range insts {
			args = append(args, inst)
		}
		args = append(args, models.NormalizeDate(start), models.NormalizeDate(end))

		rows, err := p.db.QueryContext(ctx, q, args...)
		if err != nil {
			if p.l != nil {
				p.l.Error("clickhouse fundamentals query error", applogger.Strings("metrics", ms), applogger.Error(err))
			}
			return nil, fmt.Errorf("query fundamentals: %w", err)
		}
		defer rows.Close()
		if byMetric, err = scanLongByMetric(rows); err != nil {
			return nil, err
		}
	}
	return assembleFundamentals(func(metric string) seriesData { return byMetric[metric] }, insts, ms, start, end)
}

var _ domrepo.DataProvider = (*ClickHouseProvider)(nil)
