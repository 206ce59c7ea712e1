package diagram

import (
	"math"

	"github.com/KaramelBytes/hydrochem-cli/internal/chem"
	"github.com/KaramelBytes/hydrochem-cli/internal/equivalence"
)

// Regime is the Mifflin groundwater flow class.
type Regime string

const (
	Local        Regime = "local"
	Intermediate Regime = "intermediate"
	Regional     Regime = "regional"
	Unknown      Regime = "unknown"
)

// MifflinRegime classifies a sample by the product of its Na+K and Cl+SO4
// equivalents against the guide lines x*y = 10 and x*y = 100.
func MifflinRegime(naK, clSO4 float64) Regime {
	p := naK * clSO4
	switch {
	case math.IsNaN(p):
		return Unknown
	case p < 10:
		return Local
	case p < 100:
		return Intermediate
	}
	return Regional
}

// RatioSet holds the Gibbs and Mifflin scalars of one record.
type RatioSet struct {
	Row int
	// Gibbs, mass basis.
	NaNaCa   float64
	ClClHCO3 float64
	TDS      float64
	// Mifflin, equivalent basis.
	NaK    float64
	ClSO4  float64
	Regime Regime
	Style  string
	Color  string
}

// Gibbs returns the two Gibbs diagram points: (Na/(Na+Ca), TDS) and
// (Cl/(Cl+HCO3), TDS).
func (r RatioSet) Gibbs() (cation, anion Point) {
	return Point{X: r.NaNaCa, Y: r.TDS, Style: r.Style, Color: r.Color},
		Point{X: r.ClClHCO3, Y: r.TDS, Style: r.Style, Color: r.Color}
}

// Mifflin returns the Mifflin diagram point (Cl+SO4, Na+K).
func (r RatioSet) Mifflin() Point {
	return Point{X: r.ClSO4, Y: r.NaK, Style: r.Style, Color: r.Color}
}

// Ratios computes the classification scalars for every record. Undefined
// ratios are NaN.
func Ratios(wt *equivalence.WideTable, tags Tags) ([]RatioSet, error) {
	if err := tags.check(wt); err != nil {
		return nil, err
	}
	out := make([]RatioSet, 0, wt.Len())
	for i, r := range wt.Records {
		na, ca, cl, hco3 := r.Mg[chem.Na], r.Mg[chem.Ca], r.Mg[chem.Cl], r.Mg[chem.HCO3]
		rs := RatioSet{
			Row:      i,
			NaNaCa:   ratio(na, na+ca),
			ClClHCO3: ratio(cl, cl+hco3),
			TDS:      na + ca + cl + hco3,
			NaK:      r.Meq[chem.Na] + r.Meq[chem.K],
			ClSO4:    math.Abs(r.Meq[chem.Cl] + r.Meq[chem.SO4]),
			Style:    keyText(wt, i, tags.StyleColumn),
			Color:    keyText(wt, i, tags.ColorColumn),
		}
		rs.Regime = MifflinRegime(rs.NaK, rs.ClSO4)
		out = append(out, rs)
	}
	return out, nil
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return num / den
}
