// Package equivalence pivots long-form lab analyses into one record per
// sample with mg/L and meq/L columns, ion totals and the charge-balance error.
package equivalence

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aclements/go-moremath/stats"

	"github.com/KaramelBytes/hydrochem-cli/internal/chem"
	"github.com/KaramelBytes/hydrochem-cli/internal/table"
)

// MissingKey replaces an absent grouping-key cell.
const MissingKey = "--"

// Options configures Build.
type Options struct {
	ParameterColumn string
	ValueColumn     string
	// GroupColumns are the grouping keys. Empty means every column except
	// the parameter and value columns.
	GroupColumns []string
	// Weights defaults to chem.DefaultWeights when zero.
	Weights chem.Weights
}

type group struct {
	keys []table.Value
	vals [chem.NumIons][]float64
}

// Build pivots tbl into a WideTable. Structural problems are reported as
// *StructuralError before any row is read; data problems never fail.
func Build(tbl *table.Table, rename RenameMap, opt Options) (*WideTable, error) {
	if err := rename.Validate(); err != nil {
		return nil, err
	}
	w := opt.Weights
	if w.IsZero() {
		w = chem.DefaultWeights()
	}
	if tbl == nil || len(tbl.Columns) == 0 {
		return &WideTable{KeyColumns: append([]string(nil), opt.GroupColumns...), Weights: w}, nil
	}
	keys, err := checkColumns(tbl, opt)
	if err != nil {
		return nil, err
	}
	keyIdx := make([]int, len(keys))
	for i, k := range keys {
		keyIdx[i] = tbl.Index(k)
	}
	pi, vi := tbl.Index(opt.ParameterColumn), tbl.Index(opt.ValueColumn)

	groups := map[string]*group{}
	var order []*group
	var found [chem.NumIons]bool
	skipped, unknown := 0, map[string]bool{}
	for _, row := range tbl.Rows {
		if pi >= len(row) || row[pi].IsMissing() {
			skipped++
			continue
		}
		label := row[pi].String()
		ion, ok := rename.resolve(label)
		if !ok {
			unknown[label] = true
			continue
		}
		var x float64
		if vi < len(row) {
			x, ok = row[vi].Float()
		}
		if vi >= len(row) || !ok {
			skipped++
			continue
		}
		kv := make([]table.Value, len(keyIdx))
		for i, j := range keyIdx {
			if j < len(row) && !row[j].IsMissing() {
				kv[i] = row[j]
			} else {
				kv[i] = table.Str(MissingKey)
			}
		}
		id := tupleID(kv)
		g, ok := groups[id]
		if !ok {
			g = &group{keys: kv}
			groups[id] = g
			order = append(order, g)
		}
		g.vals[ion] = append(g.vals[ion], x)
		found[ion] = true
	}
	sort.SliceStable(order, func(a, b int) bool { return lessKeys(order[a].keys, order[b].keys) })

	wt := &WideTable{KeyColumns: keys, Weights: w}
	for _, g := range order {
		rec := Record{Keys: g.keys}
		for ion, xs := range g.vals {
			if len(xs) > 0 {
				rec.Mg[ion] = stats.Mean(xs)
			}
		}
		rec.compute(w)
		wt.Records = append(wt.Records, rec)
	}
	for _, ion := range chem.All() {
		if !found[ion] && !rename.isUnassigned(ion) {
			wt.Notes = append(wt.Notes, fmt.Sprintf("%s: no source values, filled with 0", ion.MgLabel()))
		}
	}
	if skipped > 0 {
		wt.Notes = append(wt.Notes, fmt.Sprintf("skipped %d rows with missing or non-numeric values", skipped))
	}
	if len(unknown) > 0 {
		names := make([]string, 0, len(unknown))
		for n := range unknown {
			names = append(names, n)
		}
		sort.Strings(names)
		wt.Notes = append(wt.Notes, fmt.Sprintf("ignored %d unmapped parameters: %s", len(names), strings.Join(names, ", ")))
	}
	return wt, nil
}

func checkColumns(tbl *table.Table, opt Options) ([]string, error) {
	for _, c := range []string{opt.ParameterColumn, opt.ValueColumn} {
		if !tbl.Has(c) {
			return nil, &StructuralError{Op: "build", Column: c, Err: ErrMissingColumn}
		}
	}
	if len(opt.GroupColumns) == 0 {
		var keys []string
		for _, c := range tbl.Columns {
			if c != opt.ParameterColumn && c != opt.ValueColumn {
				keys = append(keys, c)
			}
		}
		return keys, nil
	}
	for _, c := range opt.GroupColumns {
		if c == opt.ParameterColumn || c == opt.ValueColumn {
			return nil, &StructuralError{Op: "build", Column: c, Err: ErrInvalidGroupColumn}
		}
		if !tbl.Has(c) {
			return nil, &StructuralError{Op: "build", Column: c, Err: ErrMissingColumn}
		}
	}
	return append([]string(nil), opt.GroupColumns...), nil
}

func tupleID(kv []table.Value) string {
	var sb strings.Builder
	for _, v := range kv {
		sb.WriteString(v.Kind.String())
		sb.WriteByte(0)
		switch v.Kind {
		case table.Number:
			sb.WriteString(table.FormatFloat(v.Num))
		case table.Time:
			sb.WriteString(v.T.UTC().Format("2006-01-02T15:04:05.999999999"))
		default:
			sb.WriteString(v.String())
		}
		sb.WriteByte(0)
	}
	return sb.String()
}

func lessKeys(a, b []table.Value) bool {
	for i := range a {
		if c := table.Compare(a[i], b[i]); c != 0 {
			return c < 0
		}
	}
	return false
}

// compute fills the derived columns from Mg.
func (r *Record) compute(w chem.Weights) {
	r.TotalCations, r.TotalAnions = 0, 0
	for _, ion := range chem.All() {
		r.Meq[ion] = w.Meq(ion, r.Mg[ion])
		if ion.IsCation() {
			r.TotalCations += r.Meq[ion]
		} else {
			r.TotalAnions += r.Meq[ion]
		}
	}
	// Anions are negative, so this is |C - |A|| / (C + |A|). A zero
	// denominator yields NaN or Inf.
	r.ErrorPercent = math.Abs((r.TotalCations + r.TotalAnions) * 100 / (r.TotalCations - r.TotalAnions))
}
