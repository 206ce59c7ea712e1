package diagram

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/hydrochem-cli/internal/chem"
	"github.com/KaramelBytes/hydrochem-cli/internal/diag"
	"github.com/KaramelBytes/hydrochem-cli/internal/equivalence"
)

// Layout holds the Piper drawing constants: origin offset O, percent to
// pixel scale S, inter-triangle gap G and triangle width W.
type Layout struct {
	O float64 `json:"o"`
	S float64 `json:"s"`
	G float64 `json:"g"`
	W float64 `json:"w"`
}

// DefaultLayout matches the standard Piper background image.
func DefaultLayout() Layout { return Layout{O: 40, S: 3.6, G: 100, W: 360} }

// Shares are the ion percentages of the cation and anion totals.
type Shares struct {
	Ca      float64
	Mg      float64
	NaK     float64
	Cl      float64
	SO4     float64
	HCO3CO3 float64
}

// PiperSample is one record's projection.
type PiperSample struct {
	Row     int    `json:"row"`
	Shares  Shares `json:"shares"`
	Cation  Point  `json:"cation"`
	Anion   Point  `json:"anion"`
	Diamond Point  `json:"diamond"`
}

// PiperResult holds one sample per record.
type PiperResult struct {
	Layout      Layout            `json:"layout"`
	Samples     []PiperSample     `json:"samples"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty"`
}

// PiperOptions configures Piper. A zero Layout means DefaultLayout.
type PiperOptions struct {
	Tags
	Layout Layout
}

// Piper projects every record onto the cation triangle, the anion triangle
// and the central diamond. The anion shares are taken over Cl, SO4, HCO3 and
// CO3 so that the three plotted shares sum to 100. A zero total yields NaN
// coordinates and an UndefinedShares diagnostic.
func Piper(wt *equivalence.WideTable, opt PiperOptions) (PiperResult, error) {
	if err := opt.check(wt); err != nil {
		return PiperResult{}, err
	}
	l := opt.Layout
	if l == (Layout{}) {
		l = DefaultLayout()
	}
	res := PiperResult{Layout: l}
	sqrt3 := math.Sqrt(3)
	for i, r := range wt.Records {
		sh := shares(r)
		xc := l.O + l.W - (sh.Ca+sh.Mg/2)*l.S
		yc := l.O + (sqrt3*sh.Mg/2)*l.S
		xa := l.O + l.W + l.G + (sh.Cl+sh.SO4/2)*l.S
		ya := l.O + (sqrt3*sh.SO4/2)*l.S
		xd := 0.5 * (xc + xa + (ya-yc)/sqrt3)
		yd := 0.5 * (ya + yc + sqrt3*(xa-xc))
		res.Samples = append(res.Samples, PiperSample{
			Row:     i,
			Shares:  sh,
			Cation:  opt.point(wt, i, xc, yc),
			Anion:   opt.point(wt, i, xa, ya),
			Diamond: opt.point(wt, i, xd, yd),
		})
		if math.IsNaN(sh.Ca) || math.IsNaN(sh.Cl) {
			res.Diagnostics = append(res.Diagnostics, diag.Diagnostic{
				Kind:    diag.UndefinedShares,
				Row:     i,
				Message: fmt.Sprintf("cation total %g, anion total %g", r.TotalCations, anionTotal(r)),
			})
		}
	}
	return res, nil
}

func anionTotal(r equivalence.Record) float64 {
	return r.Meq[chem.Cl] + r.Meq[chem.SO4] + r.Meq[chem.HCO3] + r.Meq[chem.CO3]
}

// shares divides signed by signed, so anion percentages come out positive.
// Zero totals produce NaN.
func shares(r equivalence.Record) Shares {
	var s Shares
	tc := r.TotalCations
	if tc == 0 {
		s.Ca, s.Mg, s.NaK = math.NaN(), math.NaN(), math.NaN()
	} else {
		s.Ca = r.Meq[chem.Ca] / tc * 100
		s.Mg = r.Meq[chem.Mg] / tc * 100
		s.NaK = (r.Meq[chem.Na] + r.Meq[chem.K]) / tc * 100
	}
	ta := anionTotal(r)
	if ta == 0 {
		s.Cl, s.SO4, s.HCO3CO3 = math.NaN(), math.NaN(), math.NaN()
	} else {
		s.Cl = r.Meq[chem.Cl] / ta * 100
		s.SO4 = r.Meq[chem.SO4] / ta * 100
		s.HCO3CO3 = (r.Meq[chem.HCO3] + r.Meq[chem.CO3]) / ta * 100
	}
	return s
}
