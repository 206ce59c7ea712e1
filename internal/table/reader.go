package table

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupported indicates no reader is registered for a file extension.
var ErrUnsupported = errors.New("table: unsupported file format")

// Sheet selects a worksheet for workbook formats. Name wins over Index.
type Sheet struct {
	Name  string
	Index int
}

// Reader loads a file into a Table.
type Reader interface {
	CanRead(path string) bool
	Read(path string, opt Options, sheet Sheet) (*Table, error)
}

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

// Open selects a reader by file extension and loads path.
func Open(path string, opt Options, sheet Sheet) (*Table, error) {
	for _, r := range registry {
		if r.CanRead(path) {
			return r.Read(path, opt, sheet)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}

type csvReader struct{}

func (csvReader) CanRead(path string) bool {
	name := strings.ToLower(path)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv") || strings.HasSuffix(name, ".txt")
}

func (csvReader) Read(path string, opt Options, _ Sheet) (*Table, error) {
	return ReadCSV(path, opt)
}

type xlsxReader struct{}

func (xlsxReader) CanRead(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".xlsx")
}

func (xlsxReader) Read(path string, opt Options, sheet Sheet) (*Table, error) {
	return ReadXLSX(path, opt, sheet.Name, sheet.Index)
}

func init() {
	Register(csvReader{})
	Register(xlsxReader{})
}
