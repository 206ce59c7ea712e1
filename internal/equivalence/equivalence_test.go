package equivalence

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/hydrochem-cli/internal/chem"
	"github.com/KaramelBytes/hydrochem-cli/internal/diag"
	"github.com/KaramelBytes/hydrochem-cli/internal/table"
)

func longTable(rows ...[]table.Value) *table.Table {
	t := table.New("lab", []string{"Punto", "Fecha", "Parametro", "Valor"})
	for _, r := range rows {
		t.Append(r)
	}
	return t
}

func obs(point, date, param string, v float64) []table.Value {
	return []table.Value{table.Str(point), table.Str(date), table.Str(param), table.Num(v)}
}

func labRename(t *testing.T) RenameMap {
	t.Helper()
	m, err := SelectionRename(chem.DefaultLabels())
	require.NoError(t, err)
	return m
}

var labOpts = Options{ParameterColumn: "Parametro", ValueColumn: "Valor", GroupColumns: []string{"Punto", "Fecha"}}

func TestBuildPivotsAndTotals(t *testing.T) {
	tbl := longTable(
		obs("P2", "2021-01-01", "Calcio (mg/L)", 40.08),
		obs("P1", "2021-01-01", "Calcio (mg/L)", 20),
		obs("P1", "2021-01-01", "Calcio (mg/L)", 30),
		obs("P1", "2021-01-01", "Cloruros (mg/L Cl-)", 35.45),
		obs("P1", "2021-01-01", "Sodio (mg/L)", 22.99),
		obs("P1", "2021-01-01", "pH", 7.1),
	)
	wt, err := Build(tbl, labRename(t), labOpts)
	require.NoError(t, err)
	require.Equal(t, 2, wt.Len())

	p1 := wt.Records[0]
	assert.Equal(t, "P1", p1.Keys[0].String(), "records sorted by key")
	assert.InDelta(t, 25.0, p1.Mg[chem.Ca], 1e-12, "duplicates averaged")
	assert.InDelta(t, 1.0, p1.Meq[chem.Na], 1e-12)
	assert.InDelta(t, -1.0, p1.Meq[chem.Cl], 1e-12)

	for _, r := range wt.Records {
		var tc, ta float64
		for _, ion := range chem.Cations() {
			tc += r.Meq[ion]
		}
		for _, ion := range chem.Anions() {
			ta += r.Meq[ion]
		}
		assert.InDelta(t, tc, r.TotalCations, 1e-9)
		assert.InDelta(t, ta, r.TotalAnions, 1e-9)
	}

	p2 := wt.Records[1]
	assert.Equal(t, 0.0, p2.Meq[chem.Mg])
	assert.InDelta(t, 2.0, p2.TotalCations, 1e-12)
	assert.InDelta(t, 100.0, p2.ErrorPercent, 1e-9)
	assert.Contains(t, wt.Notes, "ignored 1 unmapped parameters: pH")
}

func TestBalanceDiagnostics(t *testing.T) {
	tbl := longTable(
		obs("P1", "2021-01-01", "Calcio (mg/L)", 25),
		obs("P1", "2021-01-01", "Sodio (mg/L)", 22.99),
		obs("P1", "2021-01-01", "Cloruros (mg/L Cl-)", 35.45),
		obs("P2", "2021-01-01", "Calcio (mg/L)", 40.08),
		obs("P3", "2021-01-01", "Calcio (mg/L)", 0),
	)
	wt, err := Build(tbl, labRename(t), labOpts)
	require.NoError(t, err)

	ds := wt.BalanceDiagnostics(50)
	require.Len(t, ds, 2, "P2 at 100 percent and undefined P3")
	assert.Equal(t, diag.BalanceExceeded, ds[0].Kind)
	assert.Equal(t, 1, ds[0].Row)
	assert.Contains(t, ds[0].Message, "P2 / 2021-01-01")
	assert.Contains(t, ds[1].Message, "undefined")

	assert.Len(t, wt.BalanceDiagnostics(10), 3)
}

func TestBuildZeroSampleIsUndefined(t *testing.T) {
	tbl := longTable(obs("P1", "d", "Calcio (mg/L)", 0))
	wt, err := Build(tbl, labRename(t), labOpts)
	require.NoError(t, err)
	r := wt.Records[0]
	for _, ion := range chem.All() {
		assert.Equal(t, 0.0, r.Meq[ion])
	}
	assert.True(t, math.IsNaN(r.ErrorPercent))
	assert.False(t, r.BalanceOK(10))
}

func TestBuildUnassignedAndMissingNotes(t *testing.T) {
	sel := chem.DefaultLabels()
	sel[chem.CO3] = ""
	m, err := SelectionRename(sel)
	require.NoError(t, err)
	wt, err := Build(longTable(obs("P1", "d", "Calcio (mg/L)", 10)), m, labOpts)
	require.NoError(t, err)
	assert.NotContains(t, wt.Notes, "Carbonato (mg/L): no source values, filled with 0")
	assert.Contains(t, wt.Notes, "Sodio (mg/L): no source values, filled with 0")
}

func TestBuildMissingKeyAndBadValue(t *testing.T) {
	tbl := longTable(
		[]table.Value{table.Str("P1"), table.Null(), table.Str("Calcio (mg/L)"), table.Num(10)},
		[]table.Value{table.Str("P1"), table.Null(), table.Str("Sodio (mg/L)"), table.Str("n.d.")},
		[]table.Value{table.Str("P1"), table.Null(), table.Str("Sodio (mg/L)")},
	)
	wt, err := Build(tbl, labRename(t), labOpts)
	require.NoError(t, err)
	require.Equal(t, 1, wt.Len())
	assert.Equal(t, MissingKey, wt.Records[0].Keys[1].String())
	assert.Contains(t, wt.Notes, "skipped 2 rows with missing or non-numeric values")
}

func TestBuildStructuralErrors(t *testing.T) {
	tbl := longTable(obs("P1", "d", "Calcio (mg/L)", 1))

	_, err := Build(tbl, labRename(t), Options{ParameterColumn: "Param", ValueColumn: "Valor"})
	var se *StructuralError
	require.True(t, errors.As(err, &se))
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.Equal(t, "Param", se.Column)

	_, err = Build(tbl, labRename(t), Options{ParameterColumn: "Parametro", ValueColumn: "Valor", GroupColumns: []string{"Punto", "Valor"}})
	assert.True(t, errors.Is(err, ErrInvalidGroupColumn))

	_, err = Build(tbl, labRename(t), Options{ParameterColumn: "Parametro", ValueColumn: "Valor", GroupColumns: []string{"Pozo"}})
	assert.True(t, errors.Is(err, ErrMissingColumn))

	bad := RenameMap{Assigned: map[string]chem.Ion{"Ca1": chem.Ca, "Ca2": chem.Ca}}
	_, err = Build(tbl, bad, labOpts)
	assert.True(t, errors.Is(err, ErrDuplicateTarget))
}

func TestRenameValidation(t *testing.T) {
	m := RenameMap{Assigned: map[string]chem.Ion{"x": chem.Na}, Unassigned: []chem.Ion{chem.Na}}
	assert.True(t, errors.Is(m.Validate(), ErrDuplicateTarget))

	sel := chem.DefaultLabels()
	sel[chem.K] = sel[chem.Na]
	_, err := SelectionRename(sel)
	assert.True(t, errors.Is(err, ErrDuplicateTarget))

	assert.NoError(t, IdentityRename().Validate())
}

func TestBuildEmptyInput(t *testing.T) {
	for _, tbl := range []*table.Table{longTable(), {}} {
		wt, err := Build(tbl, labRename(t), labOpts)
		require.NoError(t, err)
		assert.Equal(t, 0, wt.Len())
		cols := wt.Columns()
		for _, ion := range chem.All() {
			assert.Contains(t, cols, ion.MgLabel())
			assert.Contains(t, cols, ion.MeqLabel())
		}
	}
}

func TestBuildDefaultGroupColumns(t *testing.T) {
	wt, err := Build(longTable(obs("P1", "d", "Calcio (mg/L)", 1)), labRename(t),
		Options{ParameterColumn: "Parametro", ValueColumn: "Valor"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Punto", "Fecha"}, wt.KeyColumns)
}

func TestRebuildIsIdempotent(t *testing.T) {
	tbl := longTable(
		obs("P1", "2021-01-01", "Calcio (mg/L)", 51.3),
		obs("P1", "2021-01-01", "Magnesio (mg/L)", 12.2),
		obs("P1", "2021-01-01", "Bicarbonato (mg/L)", 180.4),
		obs("P1", "2021-01-01", "Sulfatos (mg/L SO4-2)", 44),
		obs("P2", "2021-02-01", "Nitratos (mg/L N-NO3)", 3.3),
		obs("P2", "2021-02-01", "Potasio (mg/L)", 2.1),
	)
	first, err := Build(tbl, labRename(t), labOpts)
	require.NoError(t, err)
	second, err := Build(first.Long("Parametro", "Valor"), IdentityRename(), labOpts)
	require.NoError(t, err)
	require.Equal(t, first.Len(), second.Len())
	for i := range first.Records {
		for _, ion := range chem.All() {
			assert.InDelta(t, first.Records[i].Meq[ion], second.Records[i].Meq[ion], 1e-9)
		}
	}
}

func TestFromTableAndSubset(t *testing.T) {
	wt, err := Build(longTable(
		obs("P1", "d", "Calcio (mg/L)", 40.08),
		obs("P2", "d", "Cloruros (mg/L Cl-)", 35.45),
	), labRename(t), labOpts)
	require.NoError(t, err)

	back, err := FromTable(wt.Table(), chem.Weights{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Punto", "Fecha"}, back.KeyColumns)
	require.Equal(t, 2, back.Len())
	assert.InDelta(t, wt.Records[1].TotalAnions, back.Records[1].TotalAnions, 1e-12)

	sub := back.Subset([]int{1, 7})
	require.Equal(t, 1, sub.Len())
	v, ok := sub.Key(0, "Punto")
	require.True(t, ok)
	assert.Equal(t, "P2", v.String())

	_, err = FromTable(table.New("x", []string{"a"}), chem.Weights{})
	assert.True(t, errors.Is(err, ErrMissingColumn))
}

func TestSuggestSelection(t *testing.T) {
	got := SuggestSelection([]string{"pH", "Calcio total (mg/L)", "Sodio (mg/L)", "Sulfatos (mg/L SO4-2)", "Sodio [meq/L]"})
	assert.Equal(t, "Sodio (mg/L)", got[chem.Na])
	assert.Equal(t, "Sulfatos (mg/L SO4-2)", got[chem.SO4])
	_, ok := got[chem.Ca]
	assert.False(t, ok)
}

func TestBuildConcurrent(t *testing.T) {
	tbl := longTable(obs("P1", "d", "Calcio (mg/L)", 10), obs("P1", "d", "Sodio (mg/L)", 5))
	m := labRename(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wt, err := Build(tbl, m, labOpts)
			assert.NoError(t, err)
			assert.Equal(t, 1, wt.Len())
		}()
	}
	wg.Wait()
}
