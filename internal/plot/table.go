// Package plot turns a benchmark results table into a faceted log-log scatter
// chart: one panel per access operator, points colored by nesting level.
package plot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MissingColumnError reports a results table without a column the chart needs.
// Candidates lists the accepted names, in order of preference.
type MissingColumnError struct {
	Column     string
	Candidates []string
}

func (e *MissingColumnError) Error() string {
	if len(e.Candidates) > 1 {
		return fmt.Sprintf("results table has no %s column (looked for %s); run the benchmark first to produce it",
			e.Column, strings.Join(e.Candidates, ", "))
	}
	return fmt.Sprintf("results table has no %s column; run the benchmark first to produce it", e.Column)
}

// Table is a header-indexed view of a CSV results file. Unknown columns are kept
// but never required.
type Table struct {
	Columns []string
	Rows    [][]string
	index   map[string]int
}

// LoadTable reads a results CSV with a header row
func LoadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("results table is empty: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	t := &Table{
		Columns: make([]string, len(header)),
		index:   make(map[string]int, len(header)),
	}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		t.Columns[i] = name
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(t.Rows)+1, err)
		}
		t.Rows = append(t.Rows, rec)
	}

	return t, nil
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Has reports whether the table has the named column
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// first returns the first of candidates present in the table
func (t *Table) first(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if t.Has(c) {
			return c, true
		}
	}
	return "", false
}

// String returns a trimmed cell; short rows read as empty
func (t *Table) String(row int, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][i])
}

// Float parses a numeric cell. Empty and NaN cells are absent (ok=false).
func (t *Table) Float(row int, col string) (v float64, ok bool, err error) {
	s := t.String(row, col)
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("row %d: invalid %s %q", row+1, col, s)
	}
	return v, true, nil
}

// allEmpty reports whether every cell of col is absent
func (t *Table) allEmpty(col string) bool {
	for i := range t.Rows {
		if _, ok, err := t.Float(i, col); ok || err != nil {
			return false
		}
	}
	return true
}
