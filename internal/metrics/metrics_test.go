package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/hydrochem-cli/internal/diag"
)

func TestWriteTextfile(t *testing.T) {
	RowsRead.WithLabelValues("csv").Add(12)
	RecordsBuilt.Add(3)
	ObserveFilter(10, 4, 1)
	ObserveDiagnostics([]diag.Diagnostic{
		{Kind: diag.DuplicateRecord}, {Kind: diag.DuplicateRecord}, {Kind: diag.UnknownColumn},
	})

	p := filepath.Join(t.TempDir(), "hydrochem.prom")
	require.NoError(t, WriteTextfile(p))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	out := string(b)

	for _, want := range []string{
		`hydrochem_rows_read_total{format="csv"}`,
		`hydrochem_filter_rows_total{outcome="rejected"} 5`,
		`hydrochem_diagnostics_total{kind="duplicate_record"}`,
		"# TYPE hydrochem_records_built_total counter",
	} {
		assert.Contains(t, out, want)
	}
	assert.False(t, strings.Contains(out, "go_goroutines"), "private registry must not carry runtime collectors")
}
