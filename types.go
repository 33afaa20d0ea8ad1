package iotdbmcp

import "fmt"

// QueryResult is the outcome of a successful query tool call. Text is the
// delimited rendering returned to the caller: one comma-joined header line
// followed by one comma-joined line per row. Embedded commas and newlines
// are not escaped.
type QueryResult struct {
	Columns  []string `json:"columns"`
	RowCount int      `json:"row_count"`
	Text     string   `json:"text"`
}

// ExportResult is the outcome of a successful export tool call. Preview
// holds the header plus the first rows of the written table, rendered the
// same way as QueryResult.Text.
type ExportResult struct {
	Path     string `json:"path"`
	Format   string `json:"format"`
	RowCount int    `json:"row_count"`
	Preview  string `json:"preview"`
}

// Summary renders the caller-facing confirmation text: destination path
// followed by the bounded preview.
func (r *ExportResult) Summary() string {
	n := r.RowCount
	if n > 10 {
		n = 10
	}
	return fmt.Sprintf("Query results exported to %s\n\nPreview (first %d rows):\n%s", r.Path, n, r.Preview)
}
