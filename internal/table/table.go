// Package table is the abstract tabular model shared by the readers, the
// equivalence builder and the filter evaluator: named columns over rows of
// typed cells that keep their original text.
package table

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the inferred type of a cell.
type Kind uint8

const (
	Missing Kind = iota
	Number
	Time
	Text
)

func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case Time:
		return "time"
	case Text:
		return "text"
	default:
		return "missing"
	}
}

// Value is a single cell. Raw keeps the source text so identifiers such as
// "001" survive numeric inference.
type Value struct {
	Kind Kind
	Num  float64
	T    time.Time
	Raw  string
}

// Num returns a numeric cell.
func Num(f float64) Value { return Value{Kind: Number, Num: f} }

// Str returns a text cell.
func Str(s string) Value { return Value{Kind: Text, Raw: s} }

// At returns a time cell; raw may be empty.
func At(t time.Time, raw string) Value { return Value{Kind: Time, T: t, Raw: raw} }

// Null returns a missing cell.
func Null() Value { return Value{} }

// IsMissing reports whether the cell holds no value.
func (v Value) IsMissing() bool { return v.Kind == Missing }

// Float returns the numeric value of a Number cell.
func (v Value) Float() (float64, bool) {
	if v.Kind != Number {
		return 0, false
	}
	return v.Num, true
}

// String renders the cell for text comparison and export.
func (v Value) String() string {
	if v.Raw != "" {
		return v.Raw
	}
	switch v.Kind {
	case Number:
		return FormatFloat(v.Num)
	case Time:
		return v.T.Format("2006-01-02")
	}
	return ""
}

// FormatFloat renders a float compactly; NaN and infinities keep Go's spelling.
func FormatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "+Inf"
	}
	if math.IsInf(f, -1) {
		return "-Inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Compare orders two cells: missing first, then numbers, times and text.
// Cells of equal kind compare by value.
func Compare(a, b Value) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case Number:
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		}
		return 0
	case Time:
		return a.T.Compare(b.T)
	case Text:
		return strings.Compare(a.Raw, b.Raw)
	}
	return 0
}

// Table is a header plus rows. Rows may be shorter than the header when the
// source was ragged; such cells are absent, not missing.
type Table struct {
	Name     string
	Columns  []string
	Rows     [][]Value
	Warnings []string
}

// New returns an empty table with the given header.
func New(name string, columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Name: name, Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of a column, or -1.
func (t *Table) Index(col string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Has reports whether the header declares col.
func (t *Table) Has(col string) bool { return t.Index(col) >= 0 }

// Append adds a row.
func (t *Table) Append(row []Value) { t.Rows = append(t.Rows, row) }

// Cell returns the value of col in row i. ok is false when the column is not
// declared or the row does not reach it.
func (t *Table) Cell(i int, col string) (Value, bool) {
	j := t.Index(col)
	if j < 0 || i < 0 || i >= len(t.Rows) || j >= len(t.Rows[i]) {
		return Value{}, false
	}
	return t.Rows[i][j], true
}

// Distinct returns the distinct non-missing values of col in first-seen order.
func (t *Table) Distinct(col string) []Value {
	j := t.Index(col)
	if j < 0 {
		return nil
	}
	seen := map[string]bool{}
	var out []Value
	for _, row := range t.Rows {
		if j >= len(row) || row[j].IsMissing() {
			continue
		}
		k := row[j].Kind.String() + "\x00" + row[j].String()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, row[j])
	}
	return out
}
