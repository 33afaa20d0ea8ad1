// Package export writes materialized tables to files on the local
// filesystem and produces the text previews returned alongside them.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/tsforge/iotdb-mcp/internal/result"
)

// Format is a supported export file format.
type Format string

const (
	// FormatCSV writes an RFC 4180 CSV file with a .csv extension.
	FormatCSV Format = "csv"
	// FormatExcel writes an xlsx workbook with a single sheet.
	FormatExcel Format = "excel"
)

// ErrUnsupportedFormat is returned for format strings other than the two
// recognized ones.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// previewRows caps how many data rows an Artifact preview holds.
const previewRows = 10

// ParseFormat normalizes a caller-provided format string. Matching is
// case-insensitive; anything but csv or excel fails.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "excel":
		return FormatExcel, nil
	default:
		return "", fmt.Errorf("%w: %q (want csv or excel)", ErrUnsupportedFormat, s)
	}
}

func (f Format) extension() string {
	if f == FormatExcel {
		return ".xlsx"
	}
	return ".csv"
}

// Artifact describes one completed export.
type Artifact struct {
	Format   Format
	Path     string
	RowCount int
	Preview  string
}

// Exporter writes tables into one directory. The directory must exist; the
// server creates it at startup.
type Exporter struct {
	dir string
}

// New creates an Exporter rooted at dir.
func New(dir string) *Exporter {
	return &Exporter{dir: dir}
}

// Dir returns the directory exports are written into.
func (e *Exporter) Dir() string { return e.dir }

// Export writes table to a file in the exporter's directory and returns the
// artifact with a preview of the first rows. An existing file at the target
// path is overwritten. filename may be empty, in which case a collision-safe
// name is generated; a filename already carrying the format's extension does
// not get a second one.
func (e *Exporter) Export(table *result.Table, format Format, filename string) (*Artifact, error) {
	path := filepath.Join(e.dir, e.resolveName(format, filename))

	var err error
	switch format {
	case FormatCSV:
		err = writeCSV(path, table)
	case FormatExcel:
		err = writeXLSX(path, table)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("export to %s: %w", path, err)
	}

	return &Artifact{
		Format:   format,
		Path:     path,
		RowCount: table.Len(),
		Preview:  table.Preview(previewRows),
	}, nil
}

// resolveName produces the final file name: generated when hint is empty,
// otherwise the hint with exactly one canonical extension.
func (e *Exporter) resolveName(format Format, hint string) string {
	ext := format.extension()
	name := strings.TrimSpace(hint)
	if name == "" {
		name = fmt.Sprintf("dump_%s_%d", uuid.NewString()[:8], time.Now().Unix())
	} else if strings.HasSuffix(strings.ToLower(name), ext) {
		name = name[:len(name)-len(ext)]
	}
	return name + ext
}

func writeCSV(path string, table *result.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	records := make([][]string, 0, table.Len()+1)
	records = append(records, table.Columns())
	records = append(records, table.StringRows()...)

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return w.Error()
}

func writeXLSX(path string, table *result.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := make([]any, len(table.Columns()))
	for i, name := range table.Columns() {
		header[i] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range table.ValueRows() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
