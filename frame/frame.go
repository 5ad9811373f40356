package frame

import (
	"fmt"
	"math"
	"strconv"
)

// Frame is an in-memory table of string cells with ordered, named columns.
// An empty cell is treated as a missing value.
type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// New creates an empty Frame with the given columns.
func New(columns []string) *Frame {
	f := &Frame{
		columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	copy(f.columns, columns)
	for i, c := range f.columns {
		f.index[c] = i
	}
	return f
}

// Columns returns a copy of the column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.columns))
	copy(out, f.columns)
	return out
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.rows)
}

// Width returns the number of columns.
func (f *Frame) Width() int {
	return len(f.columns)
}

// Has reports whether the column exists.
func (f *Frame) Has(column string) bool {
	_, ok := f.index[column]
	return ok
}

// Append adds a row. The row is copied.
func (f *Frame) Append(row []string) error {
	if len(row) != len(f.columns) {
		return fmt.Errorf("row has %d cells, frame has %d columns", len(row), len(f.columns))
	}
	r := make([]string, len(row))
	copy(r, row)
	f.rows = append(f.rows, r)
	return nil
}

// Row returns row i. The returned slice must not be modified.
func (f *Frame) Row(i int) []string {
	return f.rows[i]
}

// Value returns the cell at row i of the named column, or "" if the column is unknown.
func (f *Frame) Value(i int, column string) string {
	c, ok := f.index[column]
	if !ok {
		return ""
	}
	return f.rows[i][c]
}

// Strings returns a copy of the named column.
func (f *Frame) Strings(column string) ([]string, error) {
	c, ok := f.index[column]
	if !ok {
		return nil, fmt.Errorf("column %q not found", column)
	}
	out := make([]string, len(f.rows))
	for i, r := range f.rows {
		out[i] = r[c]
	}
	return out, nil
}

// Floats returns the named column parsed as float64. Missing or unparsable
// cells become NaN.
func (f *Frame) Floats(column string) ([]float64, error) {
	c, ok := f.index[column]
	if !ok {
		return nil, fmt.Errorf("column %q not found", column)
	}
	out := make([]float64, len(f.rows))
	for i, r := range f.rows {
		out[i] = ParseFloat(r[c])
	}
	return out, nil
}

// ParseFloat converts a cell to float64, returning NaN for missing values.
func ParseFloat(cell string) float64 {
	if cell == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Filter returns a new Frame holding the rows for which keep returns true.
func (f *Frame) Filter(keep func(i int) bool) *Frame {
	out := New(f.columns)
	for i, r := range f.rows {
		if keep(i) {
			out.rows = append(out.rows, r)
		}
	}
	return out
}

// Take returns a new Frame with the rows at the given positions, in that order.
func (f *Frame) Take(positions []int) *Frame {
	out := New(f.columns)
	out.rows = make([][]string, 0, len(positions))
	for _, p := range positions {
		out.rows = append(out.rows, f.rows[p])
	}
	return out
}

// Drop returns a new Frame without the named columns. Unknown names are ignored.
func (f *Frame) Drop(columns ...string) *Frame {
	drop := make(map[string]bool, len(columns))
	for _, c := range columns {
		drop[c] = true
	}
	keep := make([]string, 0, len(f.columns))
	for _, c := range f.columns {
		if !drop[c] {
			keep = append(keep, c)
		}
	}
	out, _ := f.Select(keep...)
	return out
}

// Select returns a new Frame holding only the named columns, in the given order.
func (f *Frame) Select(columns ...string) (*Frame, error) {
	pos := make([]int, len(columns))
	for i, c := range columns {
		p, ok := f.index[c]
		if !ok {
			return nil, fmt.Errorf("column %q not found", c)
		}
		pos[i] = p
	}
	out := New(columns)
	out.rows = make([][]string, len(f.rows))
	for i, r := range f.rows {
		nr := make([]string, len(pos))
		for j, p := range pos {
			nr[j] = r[p]
		}
		out.rows[i] = nr
	}
	return out, nil
}

// SetColumn replaces the named column, or appends it if it does not exist.
// Rows are copied on write since Filter and Take share them with their source.
func (f *Frame) SetColumn(column string, values []string) error {
	if len(values) != len(f.rows) {
		return fmt.Errorf("column %q has %d values, frame has %d rows", column, len(values), len(f.rows))
	}
	c, ok := f.index[column]
	if !ok {
		c = len(f.columns)
		f.columns = append(f.columns, column)
		f.index[column] = c
	}
	for i, r := range f.rows {
		nr := make([]string, len(f.columns))
		copy(nr, r)
		nr[c] = values[i]
		f.rows[i] = nr
	}
	return nil
}

// GroupBy returns the row positions of each distinct value of the column.
// Keys are returned in first-seen order.
func (f *Frame) GroupBy(column string) ([]string, map[string][]int, error) {
	c, ok := f.index[column]
	if !ok {
		return nil, nil, fmt.Errorf("column %q not found", column)
	}
	var keys []string
	groups := make(map[string][]int)
	for i, r := range f.rows {
		k := r[c]
		if _, seen := groups[k]; !seen {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], i)
	}
	return keys, groups, nil
}

// Concat stacks frames vertically. The result carries the union of the
// columns in first-appearance order; cells absent from a source frame are
// left empty.
func Concat(frames ...*Frame) *Frame {
	var columns []string
	seen := make(map[string]bool)
	total := 0
	for _, fr := range frames {
		if fr == nil {
			continue
		}
		total += len(fr.rows)
		for _, c := range fr.columns {
			if !seen[c] {
				seen[c] = true
				columns = append(columns, c)
			}
		}
	}

	out := New(columns)
	out.rows = make([][]string, 0, total)
	for _, fr := range frames {
		if fr == nil {
			continue
		}
		mapping := make([]int, len(fr.columns))
		for i, c := range fr.columns {
			mapping[i] = out.index[c]
		}
		for _, r := range fr.rows {
			nr := make([]string, len(columns))
			for i, v := range r {
				nr[mapping[i]] = v
			}
			out.rows = append(out.rows, nr)
		}
	}
	return out
}
