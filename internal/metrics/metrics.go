// Package metrics counts pipeline activity on a private registry that the
// CLI can dump in the node-exporter textfile format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/KaramelBytes/hydrochem-cli/internal/diag"
)

// Registry holds only hydrochem collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	RowsRead = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrochem_rows_read_total",
			Help: "Total input rows read",
		},
		[]string{"format"},
	)

	RecordsBuilt = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "hydrochem_records_built_total",
			Help: "Total wide equivalence records built",
		},
	)

	RecordsFlagged = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "hydrochem_records_flagged_total",
			Help: "Total records whose charge-balance error exceeded the threshold",
		},
	)

	FilterRows = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrochem_filter_rows_total",
			Help: "Rows evaluated by filter expressions, by outcome",
		},
		[]string{"outcome"},
	)

	Diagnostics = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydrochem_diagnostics_total",
			Help: "Non-fatal diagnostics reported, by kind",
		},
		[]string{"kind"},
	)

	CommandDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hydrochem_command_duration_seconds",
			Help:    "CLI command latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	RunsSaved = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "hydrochem_runs_saved_total",
			Help: "Total runs persisted to the store",
		},
	)
)

// ObserveDiagnostics counts ds by kind.
func ObserveDiagnostics(ds []diag.Diagnostic) {
	for kind, n := range diag.Count(ds) {
		Diagnostics.WithLabelValues(string(kind)).Add(float64(n))
	}
}

// ObserveFilter counts matched, rejected and skipped rows of one evaluation.
func ObserveFilter(total, matched, skipped int) {
	FilterRows.WithLabelValues("matched").Add(float64(matched))
	FilterRows.WithLabelValues("skipped").Add(float64(skipped))
	FilterRows.WithLabelValues("rejected").Add(float64(total - matched - skipped))
}

// WriteTextfile writes every registered metric to path atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
