package clickhouse

import "fmt"

// Table names used by the FinFactor stores.
const (
	TableDailyBars    = "daily_bars"
	TableFundamentals = "fundamentals"
	TableReports      = "factor_reports"
	TableICSeries     = "factor_ic_series"
	TableQuantiles    = "factor_quantile_summary"
)

// Schema returns the DDL for the market data and report tables in db.
// Market tables are ReplacingMergeTree keyed by instrument and date; readers
// pick the latest version with argMax over updated_at.
func Schema(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	date Date,
	instrument LowCardinality(String),
	close Nullable(Float64),
	volume Nullable(Float64),
	market_cap Nullable(Float64),
	updated_at DateTime64(3) DEFAULT now64(3)
) ENGINE = ReplacingMergeTree(updated_at)
PARTITION BY toYYYYMM(date)
ORDER BY (instrument, date)`, db, TableDailyBars),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	report_date Date,
	instrument LowCardinality(String),
	metric LowCardinality(String),
	value Nullable(Float64),
	updated_at DateTime64(3) DEFAULT now64(3)
) ENGINE = ReplacingMergeTree(updated_at)
ORDER BY (metric, instrument, report_date)`, db, TableFundamentals),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	run_id String,
	factor LowCardinality(String),
	start_date Date,
	end_date Date,
	universe_size UInt32,
	coverage Float64,
	created_at DateTime64(3),
	payload String CODEC(ZSTD(3))
) ENGINE = MergeTree
ORDER BY (factor, created_at, run_id)`, db, TableReports),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	run_id String,
	factor LowCardinality(String),
	method LowCardinality(String),
	period UInt16,
	date Date,
	ic Nullable(Float64),
	n UInt32
) ENGINE = MergeTree
ORDER BY (factor, run_id, period, date)`, db, TableICSeries),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	run_id String,
	factor LowCardinality(String),
	period UInt16,
	bucket UInt16,
	mean_return Nullable(Float64),
	long_short Nullable(Float64),
	monotonicity Nullable(Float64)
) ENGINE = MergeTree
ORDER BY (factor, run_id, period, bucket)`, db, TableQuantiles),
	}
}
