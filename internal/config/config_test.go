package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/hydrochem-cli/internal/chem"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ParameterColumn != "Parametro" || c.ValueColumn != "Valor" {
		t.Errorf("columns = %q/%q", c.ParameterColumn, c.ValueColumn)
	}
	if c.PointColumn != "Punto" || c.DateColumn != "Fecha" || c.DateFormat != "02/01/2006" {
		t.Errorf("point/date = %q/%q/%q", c.PointColumn, c.DateColumn, c.DateFormat)
	}
	if c.ErrorThreshold != 10 {
		t.Errorf("threshold = %v", c.ErrorThreshold)
	}
	if want := filepath.Join(home, ".hydrochem", "runs.db"); c.DBPath != want {
		t.Errorf("db path = %q, want %q", c.DBPath, want)
	}
	sel, err := c.Selection()
	if err != nil {
		t.Fatalf("Selection: %v", err)
	}
	if sel[chem.Ca] != "Calcio (mg/L)" || sel[chem.NO3] != "Nitratos (mg/L N-NO3)" {
		t.Errorf("default labels = %v", sel)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	body := "value_column: Resultado\nerror_threshold: 5\nlabels:\n  Ca: Ca total\n  NO3: \"\"\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HYDROCHEM_POINT_COLUMN", "Estacion")

	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ValueColumn != "Resultado" || c.ErrorThreshold != 5 {
		t.Errorf("file values not applied: %+v", c)
	}
	if c.PointColumn != "Estacion" {
		t.Errorf("env override = %q", c.PointColumn)
	}
	sel, err := c.Selection()
	if err != nil {
		t.Fatalf("Selection: %v", err)
	}
	if sel[chem.Ca] != "Ca total" {
		t.Errorf("Ca label = %q", sel[chem.Ca])
	}
	if sel[chem.NO3] != "" {
		t.Errorf("NO3 should be unassigned, got %q", sel[chem.NO3])
	}
	if sel[chem.Mg] != "Magnesio (mg/L)" {
		t.Errorf("Mg should keep its default, got %q", sel[chem.Mg])
	}
}

func TestSetGetSave(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		key, val string
		wantErr  bool
	}{
		{"error_threshold", "7.5", false},
		{"error_threshold", "-1", true},
		{"error_threshold", "abc", true},
		{"date_column", "Fecha muestreo", false},
		{"labels.so4", "Sulfato", false},
		{"labels.Xx", "nope", true},
		{"nope", "x", true},
	}
	for _, tc := range cases {
		err := c.Set(tc.key, tc.val)
		if (err != nil) != tc.wantErr {
			t.Errorf("Set(%q,%q) err = %v, wantErr %v", tc.key, tc.val, err, tc.wantErr)
		}
	}
	if v, _ := c.Get("error_threshold"); v != "7.5" {
		t.Errorf("error_threshold = %q", v)
	}
	if v, _ := c.Get("labels.SO4"); v != "Sulfato" {
		t.Errorf("labels.SO4 = %q", v)
	}
	if _, err := c.Get("nope"); err == nil {
		t.Error("expected unknown key error")
	}

	if err := Save(c, ""); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".hydrochem", "config.yaml")); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	again, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if again.ErrorThreshold != 7.5 || again.DateColumn != "Fecha muestreo" {
		t.Errorf("reloaded = %+v", again)
	}
	sel, err := again.Selection()
	if err != nil {
		t.Fatal(err)
	}
	if sel[chem.SO4] != "Sulfato" {
		t.Errorf("SO4 label after reload = %q", sel[chem.SO4])
	}
}

func TestLabelKeysOrder(t *testing.T) {
	keys := (&Global{}).LabelKeys()
	if len(keys) != chem.NumIons || keys[0] != "labels.Ca" || keys[len(keys)-1] != "labels.NO3" {
		t.Errorf("LabelKeys = %v", keys)
	}
}
