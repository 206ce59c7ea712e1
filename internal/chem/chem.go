// Package chem holds the canonical ion set and the mg/L to meq/L
// equivalence weights used across the pipeline.
package chem

import (
	"errors"
	"fmt"
	"strings"
)

// Ion identifies one of the nine canonical species.
type Ion int

const (
	Ca Ion = iota
	Mg
	Na
	K
	Cl
	SO4
	CO3
	HCO3
	NO3
)

// NumIons is the number of canonical ions.
const NumIons = 9

// ErrUnknownIon is returned by ParseIon for labels that match no canonical ion.
var ErrUnknownIon = errors.New("chem: unknown ion")

type ionInfo struct {
	symbol string
	name   string // Spanish base name used in column labels
	cation bool
}

var ions = [NumIons]ionInfo{
	Ca:   {"Ca", "Calcio", true},
	Mg:   {"Mg", "Magnesio", true},
	Na:   {"Na", "Sodio", true},
	K:    {"K", "Potasio", true},
	Cl:   {"Cl", "Cloruros", false},
	SO4:  {"SO4", "Sulfatos", false},
	CO3:  {"CO3", "Carbonato", false},
	HCO3: {"HCO3", "Bicarbonato", false},
	NO3:  {"NO3", "Nitratos", false},
}

// All returns the canonical ions in column order.
func All() []Ion {
	out := make([]Ion, NumIons)
	for i := range out {
		out[i] = Ion(i)
	}
	return out
}

// Cations returns Ca, Mg, Na, K.
func Cations() []Ion { return []Ion{Ca, Mg, Na, K} }

// Anions returns Cl, SO4, CO3, HCO3, NO3.
func Anions() []Ion { return []Ion{Cl, SO4, CO3, HCO3, NO3} }

// Valid reports whether i is one of the canonical ions.
func (i Ion) Valid() bool { return i >= 0 && int(i) < NumIons }

// Symbol returns the chemical symbol, e.g. "HCO3".
func (i Ion) Symbol() string {
	if !i.Valid() {
		return fmt.Sprintf("Ion(%d)", int(i))
	}
	return ions[i].symbol
}

func (i Ion) String() string { return i.Symbol() }

// IsCation reports whether the ion carries a positive charge.
func (i Ion) IsCation() bool { return i.Valid() && ions[i].cation }

// MgLabel is the canonical wide-table column for the mass concentration.
func (i Ion) MgLabel() string { return ions[i].name + " (mg/L)" }

// MeqLabel is the canonical wide-table column for the equivalent concentration.
func (i Ion) MeqLabel() string { return ions[i].name + " (meq/L)" }

// ParseIon resolves a symbol ("na", "SO4") or a canonical mg/L or meq/L label.
func ParseIon(s string) (Ion, error) {
	t := strings.TrimSpace(s)
	for i, info := range ions {
		ion := Ion(i)
		if strings.EqualFold(t, info.symbol) || strings.EqualFold(t, info.name) ||
			strings.EqualFold(t, ion.MgLabel()) || strings.EqualFold(t, ion.MeqLabel()) {
			return ion, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownIon, s)
}

// LookupMgLabel returns the ion whose canonical mg/L label is exactly label.
func LookupMgLabel(label string) (Ion, bool) {
	for i := range ions {
		if Ion(i).MgLabel() == label {
			return Ion(i), true
		}
	}
	return 0, false
}

// Wide-table derived column names.
const (
	TotalCationsLabel = "Total Cationes (meq/L)"
	TotalAnionsLabel  = "Total Aniones (meq/L)"
	ErrorLabel        = "Error %"
)

// Weights is an immutable table of signed conversion factors from mg/L to
// meq/L. Cations are positive and anions negative.
type Weights struct {
	f [NumIons]float64
}

// DefaultWeights returns charge / molar mass for every canonical ion.
func DefaultWeights() Weights {
	var w Weights
	w.f[Ca] = 2 / 40.08
	w.f[Mg] = 2 / 24.31
	w.f[Na] = 1 / 22.99
	w.f[K] = 1 / 39.1
	w.f[Cl] = -1 / 35.45
	w.f[SO4] = -2 / 96.06
	w.f[CO3] = -2 / 60.01
	w.f[HCO3] = -1 / 61.01
	w.f[NO3] = -1 / 62.0
	return w
}

// NewWeights builds a table from explicit factors. Every ion must be present
// and carry the sign of its charge.
func NewWeights(factors map[Ion]float64) (Weights, error) {
	var w Weights
	for _, ion := range All() {
		f, ok := factors[ion]
		if !ok {
			return Weights{}, fmt.Errorf("chem: missing weight for %s", ion)
		}
		if ion.IsCation() && f <= 0 || !ion.IsCation() && f >= 0 {
			return Weights{}, fmt.Errorf("chem: weight for %s has wrong sign: %g", ion, f)
		}
		w.f[ion] = f
	}
	return w, nil
}

// Of returns the factor for ion.
func (w Weights) Of(ion Ion) float64 { return w.f[ion] }

// IsZero reports whether w is the zero value (no factors set).
func (w Weights) IsZero() bool { return w == Weights{} }

// Meq converts a mass concentration to a signed equivalent concentration.
func (w Weights) Meq(ion Ion, mg float64) float64 {
	if mg == 0 {
		return 0
	}
	return mg * w.f[ion]
}

// DefaultLabels returns the raw parameter labels commonly found in lab
// exports, used as the initial rename selection.
func DefaultLabels() map[Ion]string {
	return map[Ion]string{
		Ca:   "Calcio (mg/L)",
		Mg:   "Magnesio (mg/L)",
		Na:   "Sodio (mg/L)",
		K:    "Potasio (mg/L)",
		Cl:   "Cloruros (mg/L Cl-)",
		SO4:  "Sulfatos (mg/L SO4-2)",
		CO3:  "Carbonato (mg/L)",
		HCO3: "Bicarbonato (mg/L)",
		NO3:  "Nitratos (mg/L N-NO3)",
	}
}
