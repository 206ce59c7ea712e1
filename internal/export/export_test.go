package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/hydrochem-cli/internal/chem"
	"github.com/KaramelBytes/hydrochem-cli/internal/diagram"
	"github.com/KaramelBytes/hydrochem-cli/internal/equivalence"
	"github.com/KaramelBytes/hydrochem-cli/internal/table"
)

func sampleWide(t *testing.T) *equivalence.WideTable {
	t.Helper()
	long := table.New("lab", []string{"Punto", "Parametro", "Valor"})
	add := func(p, param string, v float64) {
		long.Append([]table.Value{table.Str(p), table.Str(param), table.Num(v)})
	}
	add("P1", "Calcio (mg/L)", 40.08)
	add("P1", "Cloruros (mg/L)", 35.45)
	add("P2", "Sodio (mg/L)", 22.99)
	add("P3", "Calcio (mg/L)", 0)
	wt, err := equivalence.Build(long, equivalence.IdentityRename(),
		equivalence.Options{ParameterColumn: "Parametro", ValueColumn: "Valor"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return wt
}

func TestCSVRoundTrip(t *testing.T) {
	wt := sampleWide(t)
	var buf bytes.Buffer
	if err := WriteCSV(&buf, wt); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "Punto,Calcio (mg/L),") {
		t.Fatalf("unexpected header: %q", strings.SplitN(buf.String(), "\n", 2)[0])
	}
	tbl, err := table.ParseCSV(&buf, table.DefaultOptions())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	back, err := equivalence.FromTable(tbl, chem.Weights{})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if back.Len() != wt.Len() {
		t.Fatalf("expected %d records, got %d", wt.Len(), back.Len())
	}
	for i := range wt.Records {
		for _, ion := range chem.All() {
			if d := wt.Records[i].Meq[ion] - back.Records[i].Meq[ion]; d > 1e-9 || d < -1e-9 {
				t.Fatalf("record %d %s drifted by %g", i, ion, d)
			}
		}
	}
}

func TestMarkdownSections(t *testing.T) {
	md := Markdown(sampleWide(t), "lab.csv", 10)
	for _, want := range []string{
		"[EQUIVALENCE SUMMARY]", "File: lab.csv", "Records: 3", "Keys: Punto",
		"[CHARGE BALANCE]", "above 10%: 3 of 3 (1 undefined)",
		"[RECORDS]", "| Punto | Calcio (meq/L) |", "| P3 |", "NaN",
		"[NOTES]",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestWriteFileFormats(t *testing.T) {
	wt := sampleWide(t)
	dir := t.TempDir()

	p := filepath.Join(dir, "out.json")
	if err := WriteFile(p, wt, "lab.csv", 10); err != nil {
		t.Fatalf("json: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var rep WideReport
	if err := json.Unmarshal(b, &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rep.Records) != 3 || rep.Records[2]["Error %"] != nil {
		t.Fatalf("expected NaN error as null, got %+v", rep.Records)
	}
	if len(rep.Flagged) != 3 {
		t.Fatalf("expected 3 flagged, got %v", rep.Flagged)
	}

	for _, name := range []string{"out.csv", "out.md"} {
		if err := WriteFile(filepath.Join(dir, name), wt, "", 10); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	if err := WriteFile(filepath.Join(dir, "out.xlsx"), wt, "", 10); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestDiagramReportJSON(t *testing.T) {
	wt := sampleWide(t)
	piper, err := diagram.Piper(wt, diagram.PiperOptions{})
	if err != nil {
		t.Fatalf("piper: %v", err)
	}
	p := filepath.Join(t.TempDir(), "diagram.json")
	if err := WriteJSON(p, DiagramReport{Records: wt.Len(), Piper: &piper, Diagnostics: piper.Diagnostics}); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, _ := os.ReadFile(p)
	if !strings.Contains(string(b), `"undefined_shares"`) {
		t.Fatalf("expected undefined shares diagnostic in %s", b)
	}
}
