package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"FinFactor/internal/domain/models"
	domrepo "FinFactor/internal/domain/repository"
	pkgch "FinFactor/pkg/clickhouse"
	applogger "FinFactor/pkg/logger"
)

// reportChunk bounds the rows sent in one multi-row INSERT.
const reportChunk = 2000

// CHResultStore persists analysis reports to ClickHouse: one summary row with
// the JSON payload, the IC series per horizon and the per-bucket quantile summary.
type CHResultStore struct {
	ch *pkgch.Client
	l  *applogger.Logger
}

func NewCHResultStore(ch *pkgch.Client) *CHResultStore {
	return &CHResultStore{ch: ch}
}

// SetLogger injects a structured logger.
func (s *CHResultStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHResultStore) table(name string) string {
	if db := s.ch.Database(); db != "" {
		return db + "." + name
	}
	return name
}

func (s *CHResultStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, pkgch.Schema(s.ch.Database()))
}

func (s *CHResultStore) Health(ctx context.Context) error { return s.ch.Health(ctx) }

func (s *CHResultStore) Close() error { return s.ch.Close() }

func (s *CHResultStore) SaveReport(ctx context.Context, r *models.AnalysisReport) error {
	if r == nil {
		return fmt.Errorf("save report: nil report")
	}
	start := time.Now()
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (run_id, factor, start_date, end_date, universe_size, coverage, created_at, payload) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.table(pkgch.TableReports))
	if _, err := s.ch.DB().ExecContext(ctx, q,
		r.RunID, r.Factor.Name, r.Start, r.End, uint32(len(r.Universe)), r.Coverage, r.CreatedAt, string(payload),
	); err != nil {
		return fmt.Errorf("insert report %s: %w", r.RunID, err)
	}

	var icRows, qRows [][]interface{}
	for _, h := range r.Horizons {
		if h.IC != nil {
			for _, p := range h.IC.Series {
				icRows = append(icRows, []interface{}{
					r.RunID, r.Factor.Name, string(h.IC.Method), uint16(h.Period), p.Date, models.OptionalFloat(p.IC), uint32(p.N),
				})
			}
		}
		if h.Quantiles != nil {
			for b, m := range h.Quantiles.MeanBucketReturns {
				qRows = append(qRows, []interface{}{
					r.RunID, r.Factor.Name, uint16(h.Period), uint16(b + 1), m, h.Quantiles.LongShortReturn, h.Quantiles.MonotonicityScore,
				})
			}
		}
	}
	if err := s.insertRows(ctx, pkgch.TableICSeries, "run_id, factor, method, period, date, ic, n", icRows); err != nil {
		return err
	}
	if err := s.insertRows(ctx, pkgch.TableQuantiles, "run_id, factor, period, bucket, mean_return, long_short, monotonicity", qRows); err != nil {
		return err
	}
	if s.l != nil {
		s.l.Info("clickhouse report saved",
			applogger.String("run_id", r.RunID),
			applogger.String("factor", r.Factor.Name),
			applogger.Int("ic_rows", len(icRows)),
			applogger.Int("quantile_rows", len(qRows)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHResultStore) insertRows(ctx context.Context, table, columns string, rows [][]interface{}) error {
	for from := 0; from < len(rows); from += reportChunk {
		to := from + reportChunk
		if to > len(rows) {
			to = len(rows)
		}
		values := make([]string, 0, to-from)
		args := make([]interface{}, 0, (to-from)*len(rows[from]))
		for _, row := range rows[from:to] {
			values = append(values, "("+placeholders(len(row))+")")
			args = append(args, row...)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table(table), columns, strings.Join(values, ", "))
		if _, err := s.ch.DB().ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

var _ domrepo.ResultStore = (*CHResultStore)(nil)
