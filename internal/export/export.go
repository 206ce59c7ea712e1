// Package export renders wide tables and diagram projections to CSV,
// Markdown and JSON.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/hydrochem-cli/internal/equivalence"
	"github.com/KaramelBytes/hydrochem-cli/internal/table"
	"github.com/KaramelBytes/hydrochem-cli/internal/utils"
)

// ErrFormat indicates an output extension with no writer.
var ErrFormat = errors.New("export: unsupported output format")

// WriteCSV writes the wide table with its full column set.
func WriteCSV(w io.Writer, wt *equivalence.WideTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(wt.Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	tbl := wt.Table()
	for _, row := range tbl.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = v.String()
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// JSONRecords converts the wide table into one object per record keyed by
// column name. NaN and infinities become null.
func JSONRecords(wt *equivalence.WideTable) []map[string]any {
	tbl := wt.Table()
	out := make([]map[string]any, 0, tbl.Len())
	for _, row := range tbl.Rows {
		m := make(map[string]any, len(row))
		for i, v := range row {
			m[tbl.Columns[i]] = jsonValue(v)
		}
		out = append(out, m)
	}
	return out
}

func jsonValue(v table.Value) any {
	switch v.Kind {
	case table.Missing:
		return nil
	case table.Number:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return nil
		}
		if v.Raw != "" {
			return v.Raw
		}
		return v.Num
	}
	return v.String()
}

// WideReport is the JSON document written for a built table.
type WideReport struct {
	Source  string           `json:"source,omitempty"`
	Columns []string         `json:"columns"`
	Records []map[string]any `json:"records"`
	Flagged []int            `json:"flagged,omitempty"`
	Notes   []string         `json:"notes,omitempty"`
}

// WriteFile writes wt to path, choosing the format from the extension.
// threshold marks charge-balance outliers in Markdown and JSON output.
func WriteFile(path string, wt *equivalence.WideTable, source string, threshold float64) error {
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		var buf bytes.Buffer
		if err := WriteCSV(&buf, wt); err != nil {
			return err
		}
		data = buf.Bytes()
	case ".md", ".markdown":
		data = []byte(Markdown(wt, source, threshold))
	case ".json":
		b, err := utils.PrettyJSON(WideReport{
			Source:  source,
			Columns: wt.Columns(),
			Records: JSONRecords(wt),
			Flagged: wt.Flagged(threshold),
			Notes:   wt.Notes,
		})
		if err != nil {
			return err
		}
		data = b
	default:
		return fmt.Errorf("%w: %q", ErrFormat, filepath.Ext(path))
	}
	return utils.SafeWriteFile(path, data)
}

// WriteJSON writes any JSON-marshalable report atomically.
func WriteJSON(path string, v any) error {
	b, err := utils.PrettyJSON(v)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(path, b)
}
