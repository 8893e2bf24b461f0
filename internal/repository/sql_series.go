package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FinFactor/internal/domain/models"
)

// placeholders returns n comma-separated "?" binds for an IN list.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// scanLong reads (instrument, date, value) rows ordered by date.
func scanLong(rows *sql.Rows) (seriesData, error) {
	out := seriesData{}
	for rows.Next() {
		var (
			inst string
			d    time.Time
			v    sql.NullFloat64
		)
		if err := rows.Scan(&inst, &d, &v); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		val := models.Missing()
		if v.Valid {
			val = v.Float64
		}
		out[inst] = append(out[inst], Observation{Date: models.NormalizeDate(d), Value: val})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// scanLongByMetric reads (metric, instrument, date, value) rows ordered by date.
func scanLongByMetric(rows *sql.Rows) (map[string]seriesData, error) {
	out := map[string]seriesData{}
	for rows.Next() {
		var (
			metric, inst string
			d            time.Time
			v            sql.NullFloat64
		)
		if err := rows.Scan(&metric, &inst, &d, &v); err != nil {
			return nil, fmt.Errorf("scan fundamental: %w", err)
		}
		if out[metric] == nil {
			out[metric] = seriesData{}
		}
		val := models.Missing()
		if v.Valid {
			val = v.Float64
		}
		out[metric][inst] = append(out[metric][inst], Observation{Date: models.NormalizeDate(d), Value: val})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
