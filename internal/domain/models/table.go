package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// DateLayout is the ISO-8601 calendar date layout used for row labels.
const DateLayout = "2006-01-02"

// Missing returns the marker stored in cells that hold no value.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v is the missing marker or a non-finite number.
func IsMissing(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }

// NormalizeDate strips time-of-day and location, keeping the calendar date.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateKey returns a comparable key for the calendar date of t.
func DateKey(t time.Time) int64 {
	return NormalizeDate(t).Unix() / 86400
}

// Table is a date-indexed, instrument-keyed numeric table.
// Rows are dates in ascending order, columns are instrument identifiers.
// A Table is never mutated after construction; every transform returns a new one.
type Table struct {
	dates       []time.Time
	instruments []string
	values      [][]float64

	rowIndex map[int64]int
	colIndex map[string]int
}

// NewTable builds a table from row labels, column labels and a row-major grid.
// Inputs are copied. Dates are normalized to calendar dates and must be strictly
// increasing; instruments must be unique and non-empty. A nil grid yields an
// all-missing table.
func NewTable(dates []time.Time, instruments []string, values [][]float64) (*Table, error) {
	t := &Table{
		dates:       make([]time.Time, len(dates)),
		instruments: make([]string, len(instruments)),
		rowIndex:    make(map[int64]int, len(dates)),
		colIndex:    make(map[string]int, len(instruments)),
	}
	for i, d := range dates {
		nd := NormalizeDate(d)
		if i > 0 && !nd.After(t.dates[i-1]) {
			return nil, fmt.Errorf("table: dates not strictly increasing at row %d (%s)", i, nd.Format(DateLayout))
		}
		t.dates[i] = nd
		t.rowIndex[DateKey(nd)] = i
	}
	for j, inst := range instruments {
		if inst == "" {
			return nil, fmt.Errorf("table: empty instrument at column %d", j)
		}
		if _, dup := t.colIndex[inst]; dup {
			return nil, fmt.Errorf("table: duplicate instrument %q", inst)
		}
		t.instruments[j] = inst
		t.colIndex[inst] = j
	}
	if values != nil && len(values) != len(dates) {
		return nil, fmt.Errorf("table: %d rows of values for %d dates", len(values), len(dates))
	}
	t.values = make([][]float64, len(dates))
	for i := range t.values {
		row := make([]float64, len(instruments))
		if values == nil {
			for j := range row {
				row[j] = Missing()
			}
		} else {
			if len(values[i]) != len(instruments) {
				return nil, fmt.Errorf("table: row %d has %d values for %d instruments", i, len(values[i]), len(instruments))
			}
			for j, v := range values[i] {
				if IsMissing(v) {
					v = Missing()
				}
				row[j] = v
			}
		}
		t.values[i] = row
	}
	return t, nil
}

// NewTableFromRows is NewTable for rows in any order: rows are sorted by date
// first. Two rows on the same calendar date are rejected.
func NewTableFromRows(dates []time.Time, instruments []string, values [][]float64) (*Table, error) {
	if values != nil && len(values) != len(dates) {
		return nil, fmt.Errorf("table: %d rows of values for %d dates", len(values), len(dates))
	}
	order := make([]int, len(dates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return DateKey(dates[order[a]]) < DateKey(dates[order[b]]) })
	sd := make([]time.Time, len(dates))
	var sv [][]float64
	if values != nil {
		sv = make([][]float64, len(values))
	}
	for i, k := range order {
		sd[i] = dates[k]
		if i > 0 && DateKey(sd[i]) == DateKey(sd[i-1]) {
			return nil, fmt.Errorf("table: duplicate date %s", NormalizeDate(sd[i]).Format(DateLayout))
		}
		if sv != nil {
			sv[i] = values[k]
		}
	}
	return NewTable(sd, instruments, sv)
}

// MustTable is NewTable for statically known shapes; it panics on error.
func MustTable(dates []time.Time, instruments []string, values [][]float64) *Table {
	t, err := NewTable(dates, instruments, values)
	if err != nil {
		panic(err)
	}
	return t
}

// NewGrid allocates a rows x cols grid filled with the missing marker.
func NewGrid(rows, cols int) [][]float64 {
	g := make([][]float64, rows)
	for i := range g {
		g[i] = make([]float64, cols)
		for j := range g[i] {
			g[i][j] = Missing()
		}
	}
	return g
}

func (t *Table) NumRows() int { return len(t.dates) }
func (t *Table) NumCols() int { return len(t.instruments) }

// Dates returns a copy of the row labels.
func (t *Table) Dates() []time.Time {
	out := make([]time.Time, len(t.dates))
	copy(out, t.dates)
	return out
}

// Instruments returns a copy of the column labels.
func (t *Table) Instruments() []string {
	out := make([]string, len(t.instruments))
	copy(out, t.instruments)
	return out
}

// Date returns the row label at index i.
func (t *Table) Date(i int) time.Time { return t.dates[i] }

// Instrument returns the column label at index j.
func (t *Table) Instrument(j int) string { return t.instruments[j] }

// At returns the cell at row i, column j.
func (t *Table) At(i, j int) float64 { return t.values[i][j] }

// RowIndex returns the row holding the calendar date of d.
func (t *Table) RowIndex(d time.Time) (int, bool) {
	i, ok := t.rowIndex[DateKey(d)]
	return i, ok
}

// ColIndex returns the column holding instrument inst.
func (t *Table) ColIndex(inst string) (int, bool) {
	j, ok := t.colIndex[inst]
	return j, ok
}

// Value looks a cell up by labels. ok is false when a label is absent or the cell is missing.
func (t *Table) Value(d time.Time, inst string) (float64, bool) {
	i, ok := t.RowIndex(d)
	if !ok {
		return Missing(), false
	}
	j, ok := t.ColIndex(inst)
	if !ok {
		return Missing(), false
	}
	v := t.values[i][j]
	return v, !IsMissing(v)
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []float64 {
	out := make([]float64, len(t.instruments))
	copy(out, t.values[i])
	return out
}

// Column returns a copy of column j.
func (t *Table) Column(j int) []float64 {
	out := make([]float64, len(t.dates))
	for i := range t.dates {
		out[i] = t.values[i][j]
	}
	return out
}

// Grid returns a deep copy of the cell grid.
func (t *Table) Grid() [][]float64 {
	out := make([][]float64, len(t.values))
	for i, row := range t.values {
		out[i] = make([]float64, len(row))
		copy(out[i], row)
	}
	return out
}

// Map applies fn to every non-missing cell and returns the result as a new table.
func (t *Table) Map(fn func(v float64) float64) *Table {
	g := t.Grid()
	for i := range g {
		for j, v := range g[i] {
			if !IsMissing(v) {
				g[i][j] = fn(v)
			}
		}
	}
	return MustTable(t.dates, t.instruments, g)
}

// Negate flips the sign of every non-missing cell.
func (t *Table) Negate() *Table {
	return t.Map(func(v float64) float64 { return -v })
}

// Between returns the rows whose dates fall within [start, end].
func (t *Table) Between(start, end time.Time) *Table {
	s, e := NormalizeDate(start), NormalizeDate(end)
	lo := sort.Search(len(t.dates), func(i int) bool { return !t.dates[i].Before(s) })
	hi := sort.Search(len(t.dates), func(i int) bool { return t.dates[i].After(e) })
	if hi < lo {
		hi = lo
	}
	return MustTable(t.dates[lo:hi], t.instruments, t.values[lo:hi])
}

// Select returns the columns named by instruments in the given order.
// Instruments absent from t become all-missing columns.
func (t *Table) Select(instruments []string) (*Table, error) {
	g := NewGrid(len(t.dates), len(instruments))
	for k, inst := range instruments {
		j, ok := t.colIndex[inst]
		if !ok {
			continue
		}
		for i := range t.dates {
			g[i][k] = t.values[i][j]
		}
	}
	return NewTable(t.dates, instruments, g)
}

// MissingCount returns the number of missing cells.
func (t *Table) MissingCount() int {
	n := 0
	for _, row := range t.values {
		for _, v := range row {
			if IsMissing(v) {
				n++
			}
		}
	}
	return n
}

// MissingRatio returns the share of missing cells, or 1 for an empty table.
func (t *Table) MissingRatio() float64 {
	total := len(t.dates) * len(t.instruments)
	if total == 0 {
		return 1
	}
	return float64(t.MissingCount()) / float64(total)
}

// EmptyColumns lists instruments whose column has no value at all.
func (t *Table) EmptyColumns() []string {
	var out []string
	for j, inst := range t.instruments {
		empty := true
		for i := range t.dates {
			if !IsMissing(t.values[i][j]) {
				empty = false
				break
			}
		}
		if empty {
			out = append(out, inst)
		}
	}
	return out
}

// tableJSON is the exchange format: ISO dates, instrument labels and a
// row-major grid where null marks a missing cell.
type tableJSON struct {
	Dates       []string     `json:"dates"`
	Instruments []string     `json:"instruments"`
	Values      [][]*float64 `json:"values"`
}

func (t *Table) MarshalJSON() ([]byte, error) {
	out := tableJSON{
		Dates:       make([]string, len(t.dates)),
		Instruments: t.Instruments(),
		Values:      make([][]*float64, len(t.values)),
	}
	for i, d := range t.dates {
		out.Dates[i] = d.Format(DateLayout)
	}
	for i, row := range t.values {
		out.Values[i] = make([]*float64, len(row))
		for j, v := range row {
			if IsMissing(v) {
				continue
			}
			v := v
			out.Values[i][j] = &v
		}
	}
	return json.Marshal(out)
}

func (t *Table) UnmarshalJSON(b []byte) error {
	var in tableJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	dates := make([]time.Time, len(in.Dates))
	for i, s := range in.Dates {
		d, err := time.Parse(DateLayout, s)
		if err != nil {
			return fmt.Errorf("table: row %d: %w", i, err)
		}
		dates[i] = d
	}
	g := NewGrid(len(dates), len(in.Instruments))
	if len(in.Values) != len(dates) {
		return fmt.Errorf("table: %d rows of values for %d dates", len(in.Values), len(dates))
	}
	for i, row := range in.Values {
		if len(row) != len(in.Instruments) {
			return fmt.Errorf("table: row %d has %d values for %d instruments", i, len(row), len(in.Instruments))
		}
		for j, v := range row {
			if v != nil {
				g[i][j] = *v
			}
		}
	}
	parsed, err := NewTableFromRows(dates, in.Instruments, g)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}
