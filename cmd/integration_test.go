package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/hydrochem-cli/internal/chem"
	"github.com/KaramelBytes/hydrochem-cli/internal/filter"
)

const labCSV = `Punto,Fecha,Parametro,Valor
001,02/03/2021,Calcio (mg/L),40.08
001,02/03/2021,Cloruros (mg/L Cl-),35.45
001,02/03/2021,Sodio (mg/L),22.99
001,15/06/2021,Calcio (mg/L),20.04
001,15/06/2021,Bicarbonato (mg/L),61.02
002,02/03/2021,Calcio (mg/L),80.16
002,02/03/2021,Sulfatos (mg/L SO4-2),48.03
002,02/03/2021,pH,7.4
`

// resetFlags restores every flag of c and its children to its default so
// invocations do not leak into each other.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd is a helper to execute the root command with args. It returns
// what the command wrote to its output stream.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

func execCmd(args ...string) (string, error) {
	resetFlags(rootCmd)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	defer rootCmd.SetOut(nil)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func setupLab(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	p := filepath.Join(home, "lab.csv")
	if err := os.WriteFile(p, []byte(labCSV), 0o644); err != nil {
		t.Fatalf("write lab: %v", err)
	}
	return home
}

type diagramJSON struct {
	Records int `json:"records"`
	Piper   *struct {
		Samples []json.RawMessage `json:"samples"`
	} `json:"piper"`
	Stiff *struct {
		Groups []struct {
			Point   string `json:"point"`
			Entries []struct {
				Offset float64 `json:"offset"`
			} `json:"entries"`
		} `json:"groups"`
	} `json:"stiff"`
	Ratios      []json.RawMessage `json:"ratios"`
	Diagnostics []struct {
		Kind string `json:"kind"`
	} `json:"diagnostics"`
}

func TestCLI_BuildThenDiagram(t *testing.T) {
	home := setupLab(t)
	wide := filepath.Join(home, "out", "wide.csv")
	prom := filepath.Join(home, "hydrochem.prom")

	runCmd(t, "build", filepath.Join(home, "lab.csv"), "-o", wide, "--save", "--metrics-file", prom)

	b, err := os.ReadFile(wide)
	if err != nil {
		t.Fatalf("wide not written: %v", err)
	}
	header := strings.SplitN(string(b), "\n", 2)[0]
	for _, want := range []string{"Punto", "Fecha", chem.Ca.MgLabel(), chem.HCO3.MeqLabel(), chem.ErrorLabel} {
		if !strings.Contains(header, want) {
			t.Errorf("header %q lacks %q", header, want)
		}
	}
	if strings.Contains(header, "pH") {
		t.Errorf("unmapped parameter leaked into header: %q", header)
	}
	if m, err := os.ReadFile(prom); err != nil || !strings.Contains(string(m), "hydrochem_records_built_total") {
		t.Errorf("metrics textfile: %v\n%s", err, m)
	}

	dia := filepath.Join(home, "diagram.json")
	runCmd(t, "diagram", wide, "-o", dia, "--style-col", "Punto")
	b, err = os.ReadFile(dia)
	if err != nil {
		t.Fatalf("diagram not written: %v", err)
	}
	var rep diagramJSON
	if err := json.Unmarshal(b, &rep); err != nil {
		t.Fatalf("decode diagram: %v", err)
	}
	if rep.Records != 3 || rep.Piper == nil || len(rep.Piper.Samples) != 3 || len(rep.Ratios) != 3 {
		t.Fatalf("unexpected report: %s", b)
	}
	if rep.Stiff == nil || len(rep.Stiff.Groups) != 2 {
		t.Fatalf("stiff groups: %s", b)
	}
	g := rep.Stiff.Groups[0]
	if g.Point != "001" || len(g.Entries) != 2 || g.Entries[0].Offset != 0 || g.Entries[1].Offset != 5 {
		t.Errorf("stiff group 001 = %+v", g)
	}
	if !strings.Contains(string(b), `"style": "002"`) {
		t.Errorf("style tags not copied: %s", b)
	}
}

func TestCLI_FilterAndDiagnostics(t *testing.T) {
	home := setupLab(t)
	wide := filepath.Join(home, "wide.csv")
	runCmd(t, "build", filepath.Join(home, "lab.csv"), "-o", wide)

	out := runCmd(t, "filter", wide, `[$"Punto"] == '002'`)
	if !strings.Contains(out, "1 of 3 records match") {
		t.Errorf("filter output:\n%s", out)
	}
	out = runCmd(t, "filter", wide, `[$"Calcio (mg/L)"] > 30 and [$"Fecha"] < '01/06/2021'`)
	if !strings.Contains(out, "2 of 3 records match") {
		t.Errorf("filter output:\n%s", out)
	}

	// pH is not a wide column: every row is skipped and reported.
	out = runCmd(t, "diagram", wide, "--kind", "piper", "--filter", `[$"pH"] > 7`)
	var rep diagramJSON
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode diagram: %v\n%s", err, out)
	}
	if rep.Records != 0 || len(rep.Diagnostics) != 3 || rep.Diagnostics[0].Kind != "unknown_column" {
		t.Errorf("unexpected report: %s", out)
	}
	if rep.Stiff != nil || rep.Ratios != nil {
		t.Errorf("only piper requested: %s", out)
	}

	if _, err := execCmd("filter", wide, `([$"Punto"] == '002'`); !errors.Is(err, filter.ErrSyntax) {
		t.Errorf("expected syntax error, got %v", err)
	}
}

func TestCLI_RunsAndConfig(t *testing.T) {
	home := setupLab(t)
	runCmd(t, "build", filepath.Join(home, "lab.csv"), "--save", "--filter", `[$"Punto"] like '00%'`)

	out := runCmd(t, "runs", "list")
	if !strings.Contains(out, "lab.csv") || !strings.Contains(out, "records=3") {
		t.Fatalf("runs list:\n%s", out)
	}
	id := strings.Fields(out)[0]

	out = runCmd(t, "runs", "show", id)
	if !strings.Contains(out, "[EQUIVALENCE SUMMARY]") || !strings.Contains(out, "like '00%'") {
		t.Errorf("runs show:\n%s", out)
	}

	out = runCmd(t, "diagram", "--run", id, "--kind", "ratios")
	if !strings.Contains(out, `"ratios"`) || strings.Contains(out, `"piper"`) {
		t.Errorf("diagram --run:\n%s", out)
	}

	runCmd(t, "config", "set", "error_threshold", "5")
	runCmd(t, "config", "set", "labels.NO3", "Nitrato total")
	out = runCmd(t, "config", "show")
	if !strings.Contains(out, "error_threshold: 5") || !strings.Contains(out, "labels.NO3: Nitrato total") {
		t.Errorf("config show:\n%s", out)
	}
	out = runCmd(t, "ions")
	if !strings.Contains(out, "Bicarbonato (mg/L)") || !strings.Contains(out, "Nitrato total") {
		t.Errorf("ions:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(home, ".hydrochem", "runs.db")); err != nil {
		t.Errorf("run store not created: %v", err)
	}
}

func TestCLI_BuildErrors(t *testing.T) {
	home := setupLab(t)
	lab := filepath.Join(home, "lab.csv")

	if _, err := execCmd("build", lab, "--ion", "Xx=foo"); !errors.Is(err, chem.ErrUnknownIon) {
		t.Errorf("expected unknown ion, got %v", err)
	}
	if _, err := execCmd("build", lab, "--value-col", "Resultado"); err == nil || !strings.Contains(err.Error(), "Resultado") {
		t.Errorf("expected missing column error, got %v", err)
	}
	if _, err := execCmd("build", lab, "--ion", "Ca=Sodio (mg/L)"); err == nil {
		t.Error("expected duplicate target error")
	}
	if _, err := execCmd("build", lab, "-o", filepath.Join(home, "wide.xlsx")); err == nil {
		t.Error("expected unsupported output format")
	}
}
