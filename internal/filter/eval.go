package filter

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/hydrochem-cli/internal/diag"
	"github.com/KaramelBytes/hydrochem-cli/internal/table"
)

// Result holds the matching 0-based row positions in input order and one
// diagnostic per skipped row.
type Result struct {
	Rows        []int
	Diagnostics []diag.Diagnostic
}

// Evaluate applies e to every row of tbl.
func Evaluate(e *Expr, tbl *table.Table) Result {
	var res Result
	if tbl == nil {
		return res
	}
	for i := range tbl.Rows {
		var missing []string
		for _, c := range e.cols {
			if _, ok := tbl.Cell(i, c); !ok {
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 {
			res.Diagnostics = append(res.Diagnostics, diag.Diagnostic{
				Kind:    diag.UnknownColumn,
				Row:     i,
				Column:  missing[0],
				Message: fmt.Sprintf("row has no column %s", quoteAll(missing)),
			})
			continue
		}
		if eval(e.root, tbl, i) {
			res.Rows = append(res.Rows, i)
		}
	}
	return res
}

func quoteAll(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = fmt.Sprintf("%q", c)
	}
	return strings.Join(q, ", ")
}

func eval(n Node, tbl *table.Table, row int) bool {
	switch x := n.(type) {
	case And:
		return eval(x.L, tbl, row) && eval(x.R, tbl, row)
	case Or:
		return eval(x.L, tbl, row) || eval(x.R, tbl, row)
	case Not:
		return !eval(x.X, tbl, row)
	case Comparison:
		v, _ := tbl.Cell(row, x.Col.Name)
		if v.IsMissing() {
			return x.Op == Ne
		}
		c := compare(v, x.Lit)
		switch x.Op {
		case Eq:
			return c == 0
		case Ne:
			return c != 0
		case Gt:
			return c > 0
		case Ge:
			return c >= 0
		case Lt:
			return c < 0
		case Le:
			return c <= 0
		}
	case InList:
		v, _ := tbl.Cell(row, x.Col.Name)
		hit := false
		if !v.IsMissing() {
			for _, lit := range x.Items {
				if compare(v, lit) == 0 {
					hit = true
					break
				}
			}
		}
		return hit != x.Negate
	case *Like:
		v, _ := tbl.Cell(row, x.Col.Name)
		hit := !v.IsMissing() && x.re.MatchString(v.String())
		return hit != x.Negate
	}
	return false
}

// compare orders a cell against a literal: numerically when both are
// numbers, chronologically when the cell is a time and the literal a date,
// and as text otherwise.
func compare(v table.Value, lit Literal) int {
	switch {
	case v.Kind == table.Number && lit.IsNum:
		switch {
		case v.Num < lit.Num:
			return -1
		case v.Num > lit.Num:
			return 1
		}
		return 0
	case v.Kind == table.Time && lit.IsTime:
		return v.T.Compare(lit.T)
	}
	return strings.Compare(v.String(), lit.Text)
}
