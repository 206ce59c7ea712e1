// Package diag defines the non-fatal anomalies reported next to
// best-effort results.
package diag

import "fmt"

// Kind classifies a diagnostic.
type Kind string

const (
	// UnknownColumn: a filtered row lacks a referenced column.
	UnknownColumn Kind = "unknown_column"
	// DuplicateRecord: a Stiff (point, date) group holds more than one record.
	DuplicateRecord Kind = "duplicate_record"
	// UndefinedShares: a Piper record has a zero cation or anion total.
	UndefinedShares Kind = "undefined_shares"
	// BalanceExceeded: a record's charge-balance error is above threshold.
	BalanceExceeded Kind = "balance_exceeded"
)

// Diagnostic is one anomaly. Row is -1 when it does not apply.
type Diagnostic struct {
	Kind    Kind   `json:"kind"`
	Row     int    `json:"row"`
	Point   string `json:"point,omitempty"`
	Date    string `json:"date,omitempty"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	switch {
	case d.Point != "":
		return fmt.Sprintf("%s: point %s date %s: %s", d.Kind, d.Point, d.Date, d.Message)
	case d.Row >= 0:
		return fmt.Sprintf("%s: row %d: %s", d.Kind, d.Row, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// Count tallies diagnostics by kind.
func Count(ds []Diagnostic) map[Kind]int {
	out := map[Kind]int{}
	for _, d := range ds {
		out[d.Kind]++
	}
	return out
}
