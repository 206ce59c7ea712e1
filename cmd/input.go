package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/hydrochem-cli/internal/chem"
	"github.com/KaramelBytes/hydrochem-cli/internal/equivalence"
	"github.com/KaramelBytes/hydrochem-cli/internal/filter"
	"github.com/KaramelBytes/hydrochem-cli/internal/metrics"
	"github.com/KaramelBytes/hydrochem-cli/internal/table"
)

// readFlags are the input parsing flags shared by every command that reads a file.
type readFlags struct {
	delimiter  string
	decimal    string
	thousands  string
	sheetName  string
	sheetIndex int
	maxRows    int
}

func (r *readFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.delimiter, "delimiter", "", "CSV delimiter: ',', ';', 'tab' (default: sniffed)")
	cmd.Flags().StringVar(&r.decimal, "decimal", "", "decimal separator: '.'|'comma' (default: auto)")
	cmd.Flags().StringVar(&r.thousands, "thousands", "", "thousands separator: ','|'.'|'space' (default: auto)")
	cmd.Flags().StringVar(&r.sheetName, "sheet-name", "", "XLSX worksheet name")
	cmd.Flags().IntVar(&r.sheetIndex, "sheet-index", 0, "XLSX worksheet index (1-based)")
	cmd.Flags().IntVar(&r.maxRows, "max-rows", 0, "read at most this many rows (0 = all)")
}

func (r *readFlags) options() (table.Options, error) {
	opt := table.DefaultOptions()
	if cfg.DateFormat != "" {
		opt.DateLayouts = []string{cfg.DateFormat}
	}
	opt.TextColumns = []string{cfg.PointColumn}
	opt.DateColumns = []string{cfg.DateColumn}
	opt.MaxRows = r.maxRows
	switch r.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", r.delimiter)
	}
	// Locale separators
	switch strings.ToLower(strings.TrimSpace(r.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", r.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(r.thousands)) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", r.thousands)
	}
	return opt, nil
}

// readTable loads path with the registered reader for its extension.
func (r *readFlags) readTable(path string) (*table.Table, error) {
	opt, err := r.options()
	if err != nil {
		return nil, err
	}
	tbl, err := table.Open(path, opt, table.Sheet{Name: r.sheetName, Index: r.sheetIndex})
	if err != nil {
		return nil, err
	}
	for _, w := range tbl.Warnings {
		warnf("Warning: %s", w)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	metrics.RowsRead.WithLabelValues(format).Add(float64(tbl.Len()))
	debugf("read %d rows x %d columns from %s", tbl.Len(), len(tbl.Columns), path)
	return tbl, nil
}

// readWide loads a previously exported wide table.
func (r *readFlags) readWide(path string) (*equivalence.WideTable, error) {
	tbl, err := r.readTable(path)
	if err != nil {
		return nil, err
	}
	return equivalence.FromTable(tbl, chem.DefaultWeights())
}

// applyFilter compiles text and keeps the matching records of wt.
// An empty text returns wt unchanged.
func applyFilter(wt *equivalence.WideTable, text string) (*equivalence.WideTable, filter.Result, error) {
	if strings.TrimSpace(text) == "" {
		return wt, filter.Result{}, nil
	}
	expr, err := filter.Compile(text)
	if err != nil {
		return nil, filter.Result{}, err
	}
	tbl := wt.Table()
	if missing := expr.Check(tbl.Columns); len(missing) > 0 {
		warnf("Warning: filter references columns not in the table: %s", strings.Join(missing, ", "))
	}
	res := filter.Evaluate(expr, tbl)
	metrics.ObserveFilter(tbl.Len(), len(res.Rows), len(res.Diagnostics))
	metrics.ObserveDiagnostics(res.Diagnostics)
	for _, d := range res.Diagnostics {
		warnf("%s", d)
	}
	debugf("filter %s kept %d of %d records", expr, len(res.Rows), tbl.Len())
	return wt.Subset(res.Rows), res, nil
}
