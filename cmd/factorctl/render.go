package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/xuri/excelize/v2"

	"FinFactor/internal/domain/models"
	"FinFactor/internal/usecase"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func cell(v float64) string {
	if models.IsMissing(v) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func optCell(v *float64) string {
	if v == nil {
		return "-"
	}
	return cell(*v)
}

func renderValues(w io.Writer, res *usecase.ComputeOutput) {
	vals := res.Values
	t := newTable(w)
	header := table.Row{"date"}
	for _, inst := range vals.Instruments() {
		header = append(header, inst)
	}
	t.AppendHeader(header)
	for i := 0; i < vals.NumRows(); i++ {
		row := table.Row{vals.Date(i).Format(models.DateLayout)}
		for j := 0; j < vals.NumCols(); j++ {
			row = append(row, cell(vals.At(i, j)))
		}
		t.AppendRow(row)
	}
	t.SetCaption("%s: coverage %.1f%%", res.Factor.Name, res.Coverage*100)
	t.Render()
	for _, warn := range res.Warnings {
		fmt.Fprintln(w, "warning:", warn)
	}
}

func renderReport(w io.Writer, r *models.AnalysisReport) {
	fmt.Fprintf(w, "run %s  factor %s  %s..%s  %d instruments  coverage %.1f%%\n",
		r.RunID, r.Factor.Name, r.Start.Format(models.DateLayout), r.End.Format(models.DateLayout),
		len(r.Universe), r.Coverage*100)

	ic := newTable(w)
	ic.SetTitle("Information coefficient")
	ic.AppendHeader(table.Row{"Period", "Mean IC", "Std IC", "IR", "t-stat", "p-value", "Valid"})
	q := newTable(w)
	q.SetTitle("Quantile returns")
	qHeader := table.Row{"Period"}
	buckets := 0
	for _, h := range r.Horizons {
		if h.Quantiles != nil && h.Quantiles.NQuantiles > buckets {
			buckets = h.Quantiles.NQuantiles
		}
	}
	for b := 1; b <= buckets; b++ {
		qHeader = append(qHeader, fmt.Sprintf("Q%d", b))
	}
	qHeader = append(qHeader, "Long-short", "Monotonicity")
	q.AppendHeader(qHeader)

	var errs []string
	for _, h := range r.Horizons {
		if h.IC != nil {
			ic.AppendRow(table.Row{h.Period, cell(h.IC.MeanIC), cell(h.IC.StdIC), optCell(h.IC.IR),
				optCell(h.IC.TStat), optCell(h.IC.PValue), h.IC.ValidPeriods})
		}
		if h.Quantiles != nil {
			row := table.Row{h.Period}
			for b := 0; b < buckets; b++ {
				if b < len(h.Quantiles.MeanBucketReturns) {
					row = append(row, optCell(h.Quantiles.MeanBucketReturns[b]))
				} else {
					row = append(row, "-")
				}
			}
			row = append(row, optCell(h.Quantiles.LongShortReturn), optCell(h.Quantiles.MonotonicityScore))
			q.AppendRow(row)
		}
		for _, e := range h.Errors {
			errs = append(errs, fmt.Sprintf("period %d: %s", h.Period, e))
		}
	}
	ic.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}})
	ic.Render()
	q.Render()
	for _, e := range errs {
		fmt.Fprintln(w, "error:", e)
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "warnings:", strings.Join(r.Warnings, "; "))
	}
}

// writeXLSX writes the values to a "values" sheet and the factor metadata to a
// "metadata" sheet.
func writeXLSX(path string, res *usecase.ComputeOutput) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "values"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	vals := res.Values
	set := func(sh string, col, row int, v any) error {
		name, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sh, name, v)
	}
	if err := set(sheet, 1, 1, "date"); err != nil {
		return fmt.Errorf("xlsx header: %w", err)
	}
	for j, inst := range vals.Instruments() {
		if err := set(sheet, j+2, 1, inst); err != nil {
			return fmt.Errorf("xlsx header: %w", err)
		}
	}
	for i := 0; i < vals.NumRows(); i++ {
		if err := set(sheet, 1, i+2, vals.Date(i).Format(models.DateLayout)); err != nil {
			return fmt.Errorf("xlsx row %d: %w", i+1, err)
		}
		for j := 0; j < vals.NumCols(); j++ {
			v := vals.At(i, j)
			if models.IsMissing(v) {
				continue
			}
			if err := set(sheet, j+2, i+2, v); err != nil {
				return fmt.Errorf("xlsx row %d: %w", i+1, err)
			}
		}
	}

	const meta = "metadata"
	if _, err := f.NewSheet(meta); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	rows := [][2]any{
		{"factor", res.Factor.Name},
		{"category", string(res.Factor.Category)},
		{"inputs", strings.Join(res.Factor.Inputs, ",")},
		{"higher_is_better", res.Factor.HigherIsBetter},
		{"coverage", res.Coverage},
	}
	if res.Normalization != nil {
		rows = append(rows, [2]any{"normalization", string(res.Normalization.Method)})
	}
	for i, kv := range rows {
		if err := set(meta, 1, i+1, kv[0]); err != nil {
			return fmt.Errorf("xlsx metadata: %w", err)
		}
		if err := set(meta, 2, i+1, kv[1]); err != nil {
			return fmt.Errorf("xlsx metadata: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx save: %w", err)
	}
	return nil
}
