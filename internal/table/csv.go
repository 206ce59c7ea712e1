package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// ReadCSV loads a CSV/TSV file into a Table.
func ReadCSV(path string, opt Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	if opt.Delimiter == 0 {
		opt.Delimiter = sniffDelimiter(path)
	}
	t, err := ParseCSV(f, opt)
	if err != nil {
		return nil, err
	}
	t.Name = filepath.Base(path)
	return t, nil
}

// ParseCSV reads a header row followed by records from r.
func ParseCSV(r io.Reader, opt Options) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if opt.Delimiter != 0 {
		cr.Comma = opt.Delimiter
	}
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Table{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	t := New("", cols)
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	total := 0
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", total+1, err)
		}
		total++
		if t.Len() >= maxRows {
			continue
		}
		t.Append(parseRecord(cols, rec, opt))
	}
	if t.Len() < total {
		t.Warnings = append(t.Warnings, fmt.Sprintf("read only %d/%d rows due to MaxRows", t.Len(), total))
	}
	return t, nil
}

// parseRecord converts raw fields; a short record yields a short row.
func parseRecord(cols []string, rec []string, opt Options) []Value {
	n := len(rec)
	if n > len(cols) {
		n = len(cols)
	}
	row := make([]Value, n)
	for j := 0; j < n; j++ {
		row[j] = opt.ParseCell(cols[j], rec[j])
	}
	return row
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
