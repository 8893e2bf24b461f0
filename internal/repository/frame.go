package repository

import (
	"fmt"
	"io"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"FinFactor/internal/domain/models"
)

// DateColumn names the date column of wide-format frames.
const DateColumn = "date"

// TableToFrame renders a table as a wide frame: a date column followed by one
// float column per instrument, missing cells as NaN.
func TableToFrame(t *models.Table) dataframe.DataFrame {
	dates := make([]string, t.NumRows())
	for i, d := range t.Dates() {
		dates[i] = d.Format(models.DateLayout)
	}
	cols := make([]series.Series, 0, t.NumCols()+1)
	cols = append(cols, series.New(dates, series.String, DateColumn))
	for j := 0; j < t.NumCols(); j++ {
		cols = append(cols, series.New(t.Column(j), series.Float, t.Instrument(j)))
	}
	return dataframe.New(cols...)
}

// FrameToTable parses a wide frame back into a table. Rows may come in any
// date order.
func FrameToTable(df dataframe.DataFrame) (*models.Table, error) {
	dates, data, insts, err := frameSeries(df)
	if err != nil {
		return nil, err
	}
	g := models.NewGrid(len(dates), len(insts))
	for j, inst := range insts {
		for i, o := range data[inst] {
			g[i][j] = o.Value
		}
	}
	return models.NewTableFromRows(dates, insts, g)
}

// WriteTableCSV writes t in the wide CSV layout CSVProvider reads.
func WriteTableCSV(w io.Writer, t *models.Table) error {
	return TableToFrame(t).WriteCSV(w)
}

// ReadFrameCSV loads a wide CSV: the date column as text, every other column as float.
func ReadFrameCSV(r io.Reader) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.Float),
		dataframe.WithTypes(map[string]series.Type{DateColumn: series.String}),
		dataframe.NaNValues([]string{"", "NA", "NaN", "nan", "null"}),
	)
	if df.Err != nil {
		return df, fmt.Errorf("read csv: %w", df.Err)
	}
	return df, nil
}

// frameSeries splits a wide frame into per-instrument observations in row order.
func frameSeries(df dataframe.DataFrame) ([]time.Time, seriesData, []string, error) {
	names := df.Names()
	if len(names) == 0 || names[0] != DateColumn {
		return nil, nil, nil, fmt.Errorf("first column must be %q, got %v", DateColumn, names)
	}
	raw := df.Col(DateColumn).Records()
	dates := make([]time.Time, len(raw))
	for i, s := range raw {
		d, err := time.Parse(models.DateLayout, s)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("row %d: parse date %q: %w", i+1, s, err)
		}
		dates[i] = d
	}
	insts := names[1:]
	data := make(seriesData, len(insts))
	for _, inst := range insts {
		vals := df.Col(inst).Float()
		obs := make([]Observation, len(vals))
		for i, v := range vals {
			obs[i] = Observation{Date: dates[i], Value: v}
		}
		data[inst] = obs
	}
	return dates, data, insts, nil
}
