package diagram

import (
	"fmt"
	"math"
	"sort"

	"github.com/aclements/go-moremath/stats"

	"github.com/KaramelBytes/hydrochem-cli/internal/chem"
	"github.com/KaramelBytes/hydrochem-cli/internal/diag"
	"github.com/KaramelBytes/hydrochem-cli/internal/equivalence"
	"github.com/KaramelBytes/hydrochem-cli/internal/table"
)

// StiffStep is the vertical distance between successive polygons of a point.
const StiffStep = 5

// Vertex is a labelled polygon corner.
type Vertex struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// StiffEntry is the polygon of one (point, date) record.
type StiffEntry struct {
	Row      int       `json:"row"`
	Date     string    `json:"date"`
	Label    string    `json:"label"`
	Offset   float64   `json:"offset"`
	Vertices [6]Vertex `json:"vertices"`
}

// Tick is an axis label pair at height Y.
type Tick struct {
	Y     float64 `json:"y"`
	Left  string  `json:"left"`
	Right string  `json:"right"`
}

// StiffGroup is the stack of polygons for one sampling point.
type StiffGroup struct {
	Point   string       `json:"point"`
	Entries []StiffEntry `json:"entries"`
	Offset  float64      `json:"offset"`
	MaxAbsX float64      `json:"max_abs_x"`
	Ticks   []Tick       `json:"ticks"`
}

// AxisLimit is the symmetric x-axis bound: max(1, ceil(MaxAbsX)).
func (g StiffGroup) AxisLimit() float64 {
	return math.Max(1, math.Ceil(g.MaxAbsX))
}

// YLimit is the top of the y-axis, one unit above the highest tick.
func (g StiffGroup) YLimit() float64 {
	top := 0.0
	for _, t := range g.Ticks {
		top = math.Max(top, t.Y)
	}
	return top + 1
}

// XTicks returns tick positions from -AxisLimit up to, but excluding,
// AxisLimit in steps of a fifth of the limit rounded to one decimal.
// Labels are the absolute values.
func (g StiffGroup) XTicks() []float64 {
	lim := g.AxisLimit()
	step := math.Round(lim*2/10*10) / 10
	if step <= 0 {
		return nil
	}
	n := int(math.Ceil(2*lim/step - 1e-9))
	out := make([]float64, 0, n)
	for k := 0; k < n; k++ {
		out = append(out, -lim+float64(k)*step)
	}
	return out
}

// StiffResult holds one group per sampling point, in point order.
type StiffResult struct {
	Groups      []StiffGroup      `json:"groups"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty"`
}

// StiffOptions names the point and date key columns.
type StiffOptions struct {
	PointColumn string
	DateColumn  string
}

type stiffDate struct {
	date table.Value
	rows []int
}

// Stiff lays out one hexagon per (point, date). Dates are stacked in
// chronological or lexicographic order; a date with more than one record is
// reported as DuplicateRecord and skipped without consuming an offset.
func Stiff(wt *equivalence.WideTable, opt StiffOptions) (StiffResult, error) {
	for _, c := range []string{opt.PointColumn, opt.DateColumn} {
		if wt.KeyIndex(c) < 0 {
			return StiffResult{}, fmt.Errorf("%w: %q", ErrMissingColumn, c)
		}
	}
	type pointGroup struct {
		point table.Value
		dates map[string]*stiffDate
	}
	points := map[string]*pointGroup{}
	var order []*pointGroup
	for i := range wt.Records {
		p, _ := wt.Key(i, opt.PointColumn)
		d, _ := wt.Key(i, opt.DateColumn)
		pk := valueID(p)
		pg, ok := points[pk]
		if !ok {
			pg = &pointGroup{point: p, dates: map[string]*stiffDate{}}
			points[pk] = pg
			order = append(order, pg)
		}
		dk := valueID(d)
		sd, ok := pg.dates[dk]
		if !ok {
			sd = &stiffDate{date: d}
			pg.dates[dk] = sd
		}
		sd.rows = append(sd.rows, i)
	}
	sort.SliceStable(order, func(a, b int) bool { return table.Compare(order[a].point, order[b].point) < 0 })

	var res StiffResult
	for _, pg := range order {
		dates := make([]*stiffDate, 0, len(pg.dates))
		for _, sd := range pg.dates {
			dates = append(dates, sd)
		}
		sort.Slice(dates, func(a, b int) bool { return table.Compare(dates[a].date, dates[b].date) < 0 })

		g := StiffGroup{Point: pg.point.String()}
		h := 0.0
		for _, sd := range dates {
			ds := dateText(sd.date)
			if len(sd.rows) > 1 {
				res.Diagnostics = append(res.Diagnostics, diag.Diagnostic{
					Kind:    diag.DuplicateRecord,
					Row:     sd.rows[0],
					Point:   g.Point,
					Date:    ds,
					Message: fmt.Sprintf("%d records for the same point and date", len(sd.rows)),
				})
				continue
			}
			r := wt.Records[sd.rows[0]]
			e := StiffEntry{Row: sd.rows[0], Date: ds, Label: g.Point + " " + ds, Offset: h, Vertices: hexagon(r, h)}
			xs := make([]float64, len(e.Vertices))
			for k, v := range e.Vertices {
				xs[k] = math.Abs(v.X)
			}
			if _, hi := stats.Bounds(xs); hi > g.MaxAbsX {
				g.MaxAbsX = hi
			}
			g.Entries = append(g.Entries, e)
			g.Ticks = append(g.Ticks,
				Tick{Y: 1 + h, Left: "Mg", Right: "SO4+NO3"},
				Tick{Y: 2 + h, Left: "Ca", Right: "HCO3+CO3"},
				Tick{Y: 3 + h, Left: "Na+K", Right: "Cl"},
			)
			h += StiffStep
		}
		g.Offset = h
		res.Groups = append(res.Groups, g)
	}
	return res, nil
}

// hexagon returns the six corners in drawing order: Na+K, Cl, HCO3+CO3,
// SO4+NO3, Mg, Ca. Cations sit left of the axis and anions right.
func hexagon(r equivalence.Record, h float64) [6]Vertex {
	m := func(ion chem.Ion) float64 { return math.Abs(r.Meq[ion]) }
	return [6]Vertex{
		{Label: "Na+K", X: -(m(chem.Na) + m(chem.K)), Y: 3 + h},
		{Label: "Cl", X: m(chem.Cl), Y: 3 + h},
		{Label: "HCO3+CO3", X: m(chem.HCO3) + m(chem.CO3), Y: 2 + h},
		{Label: "SO4+NO3", X: m(chem.SO4) + m(chem.NO3), Y: 1 + h},
		{Label: "Mg", X: -m(chem.Mg), Y: 1 + h},
		{Label: "Ca", X: -m(chem.Ca), Y: 2 + h},
	}
}

func valueID(v table.Value) string {
	if v.Kind == table.Time {
		return "t\x00" + v.T.UTC().String()
	}
	return v.Kind.String() + "\x00" + v.String()
}

func dateText(v table.Value) string {
	if v.Kind == table.Time {
		return v.T.Format("2006-01-02")
	}
	return v.String()
}
