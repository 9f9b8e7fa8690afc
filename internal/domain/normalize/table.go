// Package normalize turns raw tabular session logs into typed, time-sorted
// sample streams.
//
// A log is read once into a Table. The decoders then pull the columns they
// need and fail the whole log on the first missing column or unparsable
// cell, reporting the offending row and column.
package normalize

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Table is a parsed log: a header and its rows, cells trimmed.
type Table struct {
	header []string
	index  map[string]int
	rows   [][]string
}

// ReadTable reads a comma separated log with a header row.
func ReadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedValue, err)
	}

	t := &Table{index: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(h)
		t.header = append(t.header, h)
		t.index[h] = i
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedValue, err)
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

// Len is the number of payload rows.
func (t *Table) Len() int { return len(t.rows) }

// Header returns the column names in file order.
func (t *Table) Header() []string { return t.header }

// Has reports whether the table carries the named column.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the position of a required column.
func (t *Table) Column(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingColumn, name)
	}
	return i, nil
}

// columns resolves several required columns at once.
func (t *Table) columns(names ...string) ([]int, error) {
	out := make([]int, len(names))
	for i, n := range names {
		c, err := t.Column(n)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// cell addresses one payload row of a table.
type cell struct {
	t   *Table
	row int
}

func (c cell) str(col int) string {
	rec := c.t.rows[c.row]
	if col >= len(rec) {
		return ""
	}
	return rec[col]
}

func (c cell) fail(col int, err error) error {
	return fmt.Errorf("%w: row %d column %q: %v", ErrMalformedValue, c.row+2, c.t.header[col], err)
}

func (c cell) float(col int) (float64, error) {
	v, err := strconv.ParseFloat(c.str(col), 64)
	if err != nil {
		return 0, c.fail(col, err)
	}
	return v, nil
}

func (c cell) int(col int) (int, error) {
	s := c.str(col)
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	// pixel columns are sometimes logged as "123.0"
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, c.fail(col, err)
	}
	return int(v), nil
}
