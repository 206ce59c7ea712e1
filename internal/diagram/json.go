package diagram

import (
	"encoding/json"
	"math"
)

// finite maps NaN and infinities to JSON null.
func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		X     *float64 `json:"x"`
		Y     *float64 `json:"y"`
		Style string   `json:"style,omitempty"`
		Color string   `json:"color,omitempty"`
	}{finite(p.X), finite(p.Y), p.Style, p.Color})
}

func (s Shares) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Ca      *float64 `json:"ca"`
		Mg      *float64 `json:"mg"`
		NaK     *float64 `json:"na_k"`
		Cl      *float64 `json:"cl"`
		SO4     *float64 `json:"so4"`
		HCO3CO3 *float64 `json:"hco3_co3"`
	}{finite(s.Ca), finite(s.Mg), finite(s.NaK), finite(s.Cl), finite(s.SO4), finite(s.HCO3CO3)})
}

func (r RatioSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Row      int      `json:"row"`
		NaNaCa   *float64 `json:"na_na_ca"`
		ClClHCO3 *float64 `json:"cl_cl_hco3"`
		TDS      *float64 `json:"tds_mg_l"`
		NaK      *float64 `json:"na_k_meq_l"`
		ClSO4    *float64 `json:"cl_so4_meq_l"`
		Regime   Regime   `json:"regime"`
		Style    string   `json:"style,omitempty"`
		Color    string   `json:"color,omitempty"`
	}{r.Row, finite(r.NaNaCa), finite(r.ClClHCO3), finite(r.TDS), finite(r.NaK), finite(r.ClSO4), r.Regime, r.Style, r.Color})
}
