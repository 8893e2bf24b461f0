package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"FinFactor/internal/repository"
)

// writePrices writes six instruments compounding at distinct daily rates.
func writePrices(t *testing.T, days int) string {
	t.Helper()
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("date,A,B,C,D,E,F\n")
	d0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		b.WriteString(d0.AddDate(0, 0, i).Format("2006-01-02"))
		for k := 1; k <= 6; k++ {
			fmt.Fprintf(&b, ",%.6f", 100*math.Pow(1+0.001*float64(k), float64(i)))
		}
		b.WriteString("\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prices.csv"), []byte(b.String()), 0o644))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func momentumArgs(command, dir string) []string {
	return []string{command,
		"--csv-dir", dir,
		"--factor", "momentum",
		"--param", "lookback=1", "--param", "skip_recent=0",
		"--universe", "A,B,C,D,E,F",
		"--start", "2024-01-11", "--end", "2024-01-26",
	}
}

func TestParseParams(t *testing.T) {
	p, err := parseParams([]string{"lookback=20", "skip_recent= 0", "metric=book_value", "log=true", "ratio=0.5"})
	require.NoError(t, err)
	assert.Equal(t, 20, p["lookback"])
	assert.Equal(t, 0, p["skip_recent"])
	assert.Equal(t, "book_value", p["metric"])
	assert.Equal(t, true, p["log"])
	assert.Equal(t, 0.5, p["ratio"])

	none, err := parseParams(nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = parseParams([]string{"lookback"})
	assert.Error(t, err)
	_, err = parseParams([]string{"=3"})
	assert.Error(t, err)
}

func TestNormalizationParamsDefaults(t *testing.T) {
	np, err := normalizationParams("winsorize", "")
	require.NoError(t, err)
	assert.EqualValues(t, "winsorize", np.Method)
	assert.EqualValues(t, "cross_section", np.Axis)
	assert.Equal(t, 0.01, np.Lower)
	assert.Equal(t, 0.99, np.Upper)
}

func TestParseRangeRejectsGarbage(t *testing.T) {
	_, _, err := parseRange("yesterday-ish", "today")
	assert.Error(t, err)
	s, e, err := parseRange("2024-01-02", "2024-03-01")
	require.NoError(t, err)
	assert.True(t, s.Before(e))
}

func TestListCommand(t *testing.T) {
	out, err := run(t, "list")
	require.NoError(t, err)
	out = strings.ToLower(out)
	assert.Contains(t, out, "momentum")
	assert.Contains(t, out, "category")
}

func TestComputeWritesCSV(t *testing.T) {
	dir := writePrices(t, 40)
	path := filepath.Join(t.TempDir(), "momentum.csv")

	_, err := run(t, append(momentumArgs("compute", dir), "--out", path)...)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	df, err := repository.ReadFrameCSV(f)
	require.NoError(t, err)
	assert.Equal(t, 16, df.Nrow())
	assert.Equal(t, []string{"date", "A", "B", "C", "D", "E", "F"}, df.Names())
}

func TestComputeWritesXLSX(t *testing.T) {
	dir := writePrices(t, 40)
	path := filepath.Join(t.TempDir(), "momentum.xlsx")

	_, err := run(t, append(momentumArgs("compute", dir), "--out", path)...)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("values")
	require.NoError(t, err)
	require.Len(t, rows, 17)
	assert.Equal(t, []string{"date", "A", "B", "C", "D", "E", "F"}, rows[0])
	assert.Equal(t, "2024-01-11", rows[1][0])

	name, err := f.GetCellValue("metadata", "B1")
	require.NoError(t, err)
	assert.Equal(t, "momentum", name)
}

func TestComputeRejectsUnknownExtension(t *testing.T) {
	dir := writePrices(t, 40)
	_, err := run(t, append(momentumArgs("compute", dir), "--out", filepath.Join(t.TempDir(), "x.parquet"))...)
	assert.ErrorContains(t, err, "unsupported output extension")
}

func TestComputeTable(t *testing.T) {
	dir := writePrices(t, 40)
	out, err := run(t, momentumArgs("compute", dir)...)
	require.NoError(t, err)
	assert.Contains(t, out, "2024-01-26")
	assert.Contains(t, strings.ToLower(out), "coverage")
}

func TestAnalyzeJSON(t *testing.T) {
	dir := writePrices(t, 40)
	out, err := run(t, append(momentumArgs("analyze", dir), "--periods", "1,2", "--quantiles", "3", "--json")...)
	require.NoError(t, err)

	var report struct {
		Factor struct {
			Name string `json:"name"`
		} `json:"factor"`
		Horizons []struct {
			Period int `json:"period"`
			IC     struct {
				MeanIC float64 `json:"mean_ic"`
			} `json:"ic"`
		} `json:"horizons"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "momentum", report.Factor.Name)
	require.Len(t, report.Horizons, 2)
	assert.Equal(t, 1, report.Horizons[0].Period)
	assert.InDelta(t, 1.0, report.Horizons[0].IC.MeanIC, 1e-9)
}

func TestAnalyzeTable(t *testing.T) {
	dir := writePrices(t, 40)
	out, err := run(t, append(momentumArgs("analyze", dir), "--periods", "1", "--quantiles", "3")...)
	require.NoError(t, err)
	out = strings.ToLower(out)
	assert.Contains(t, out, "information coefficient")
	assert.Contains(t, out, "quantile returns")
	assert.Contains(t, out, "q3")
}

func TestAnalyzeRequiresFactor(t *testing.T) {
	_, err := run(t, "analyze", "--universe", "A,B")
	assert.Error(t, err)
}
