package equivalence

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/hydrochem-cli/internal/chem"
	"github.com/KaramelBytes/hydrochem-cli/internal/diag"
	"github.com/KaramelBytes/hydrochem-cli/internal/table"
)

// Record is one sample: its key tuple and the canonical concentrations.
type Record struct {
	Keys         []table.Value
	Mg           [chem.NumIons]float64
	Meq          [chem.NumIons]float64
	TotalCations float64
	TotalAnions  float64
	ErrorPercent float64
}

// BalanceOK reports whether the charge-balance error is within threshold
// percent. Undefined errors are never within threshold.
func (r Record) BalanceOK(threshold float64) bool {
	return r.ErrorPercent <= threshold
}

// WideTable is the immutable Builder output.
type WideTable struct {
	KeyColumns []string
	Records    []Record
	Notes      []string
	Weights    chem.Weights
}

// Len returns the number of records.
func (w *WideTable) Len() int { return len(w.Records) }

// Columns lists the key columns, the nine mg/L and meq/L columns and the
// derived totals, in export order.
func (w *WideTable) Columns() []string {
	cols := append([]string(nil), w.KeyColumns...)
	for _, ion := range chem.All() {
		cols = append(cols, ion.MgLabel())
	}
	for _, ion := range chem.All() {
		cols = append(cols, ion.MeqLabel())
	}
	return append(cols, chem.TotalCationsLabel, chem.TotalAnionsLabel, chem.ErrorLabel)
}

// KeyIndex returns the position of a key column, or -1.
func (w *WideTable) KeyIndex(col string) int {
	for i, c := range w.KeyColumns {
		if c == col {
			return i
		}
	}
	return -1
}

// Key returns record i's value for key column col.
func (w *WideTable) Key(i int, col string) (table.Value, bool) {
	j := w.KeyIndex(col)
	if j < 0 || i < 0 || i >= len(w.Records) || j >= len(w.Records[i].Keys) {
		return table.Value{}, false
	}
	return w.Records[i].Keys[j], true
}

// Table materialises the wide table for filtering and export.
func (w *WideTable) Table() *table.Table {
	t := table.New("equivalence", w.Columns())
	for _, r := range w.Records {
		row := append([]table.Value(nil), r.Keys...)
		for _, ion := range chem.All() {
			row = append(row, table.Num(r.Mg[ion]))
		}
		for _, ion := range chem.All() {
			row = append(row, table.Num(r.Meq[ion]))
		}
		row = append(row, table.Num(r.TotalCations), table.Num(r.TotalAnions), table.Num(r.ErrorPercent))
		t.Append(row)
	}
	return t
}

// Long melts the mg/L columns back into long form with the given parameter
// and value column names. Building it with IdentityRename reproduces w.
func (w *WideTable) Long(parameterColumn, valueColumn string) *table.Table {
	cols := append(append([]string(nil), w.KeyColumns...), parameterColumn, valueColumn)
	t := table.New("long", cols)
	for _, r := range w.Records {
		for _, ion := range chem.All() {
			row := append([]table.Value(nil), r.Keys...)
			row = append(row, table.Str(ion.MgLabel()), table.Num(r.Mg[ion]))
			t.Append(row)
		}
	}
	return t
}

// Subset returns a new WideTable with the records at rows, in that order.
// Out-of-range positions are ignored.
func (w *WideTable) Subset(rows []int) *WideTable {
	out := &WideTable{
		KeyColumns: append([]string(nil), w.KeyColumns...),
		Notes:      append([]string(nil), w.Notes...),
		Weights:    w.Weights,
	}
	for _, i := range rows {
		if i >= 0 && i < len(w.Records) {
			out.Records = append(out.Records, w.Records[i])
		}
	}
	return out
}

// Flagged returns the positions of records whose error exceeds threshold.
func (w *WideTable) Flagged(threshold float64) []int {
	var out []int
	for i, r := range w.Records {
		if !r.BalanceOK(threshold) {
			out = append(out, i)
		}
	}
	return out
}

// BalanceDiagnostics reports every flagged record as BalanceExceeded.
func (w *WideTable) BalanceDiagnostics(threshold float64) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, i := range w.Flagged(threshold) {
		r := w.Records[i]
		msg := fmt.Sprintf("charge-balance error %.4g%% above %.4g%%", r.ErrorPercent, threshold)
		if math.IsNaN(r.ErrorPercent) || math.IsInf(r.ErrorPercent, 0) {
			msg = "charge-balance error undefined (cation and anion totals are equal)"
		}
		out = append(out, diag.Diagnostic{
			Kind:    diag.BalanceExceeded,
			Row:     i,
			Message: w.keyLabel(i) + ": " + msg,
		})
	}
	return out
}

// keyLabel joins the key values of record i for display.
func (w *WideTable) keyLabel(i int) string {
	parts := make([]string, len(w.Records[i].Keys))
	for k, v := range w.Records[i].Keys {
		parts[k] = v.String()
	}
	return strings.Join(parts, " / ")
}

// FromTable re-imports an exported wide table. Key columns are every column
// that is not a canonical or derived label; meq, totals and error are
// recomputed from the mg/L columns.
func FromTable(tbl *table.Table, weights chem.Weights) (*WideTable, error) {
	if weights.IsZero() {
		weights = chem.DefaultWeights()
	}
	wt := &WideTable{Weights: weights}
	if tbl == nil || len(tbl.Columns) == 0 {
		return wt, nil
	}
	derived := map[string]bool{chem.TotalCationsLabel: true, chem.TotalAnionsLabel: true, chem.ErrorLabel: true}
	for _, ion := range chem.All() {
		derived[ion.MgLabel()] = true
		derived[ion.MeqLabel()] = true
	}
	var present int
	for _, ion := range chem.All() {
		if tbl.Has(ion.MgLabel()) {
			present++
		} else {
			wt.Notes = append(wt.Notes, fmt.Sprintf("%s: column absent, filled with 0", ion.MgLabel()))
		}
	}
	if present == 0 {
		return nil, &StructuralError{Op: "import", Column: chem.Ca.MgLabel(), Err: ErrMissingColumn}
	}
	var keyIdx []int
	for i, c := range tbl.Columns {
		if !derived[c] {
			wt.KeyColumns = append(wt.KeyColumns, c)
			keyIdx = append(keyIdx, i)
		}
	}
	skipped := 0
	for i, row := range tbl.Rows {
		rec := Record{Keys: make([]table.Value, len(keyIdx))}
		for k, j := range keyIdx {
			if j < len(row) {
				rec.Keys[k] = row[j]
			}
		}
		for _, ion := range chem.All() {
			v, ok := tbl.Cell(i, ion.MgLabel())
			if !ok || v.IsMissing() {
				continue
			}
			x, ok := v.Float()
			if !ok {
				skipped++
				continue
			}
			rec.Mg[ion] = x
		}
		rec.compute(weights)
		wt.Records = append(wt.Records, rec)
	}
	if skipped > 0 {
		wt.Notes = append(wt.Notes, fmt.Sprintf("skipped %d non-numeric mg/L cells", skipped))
	}
	return wt, nil
}
