// Package result materializes driver cursors into in-memory tables and
// renders their text projections.
package result

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tsforge/iotdb-mcp/internal/driver"
)

// TimeColumn is the column name IoTDB uses for the timestamp of a
// tree-dialect series query. When it leads the result, its values render as
// raw epoch integers.
const TimeColumn = "Time"

// Table is a fully materialized query result. Column order and each row's
// positional values are preserved exactly as the cursor produced them;
// duplicate column names are permitted. Cells are stored per column.
type Table struct {
	columns []string
	cells   [][]any
	rows    int
}

// New builds a Table directly from column names and row slices. Every row
// must have one value per column.
func New(columns []string, rows [][]any) (*Table, error) {
	t := &Table{
		columns: append([]string(nil), columns...),
		cells:   make([][]any, len(columns)),
	}
	for _, row := range rows {
		if err := t.appendRow(row); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Drain consumes rs to exhaustion and materializes it as a Table. The
// cursor is closed exactly once, whether draining succeeds or fails.
func Drain(rs driver.ResultSet) (_ *Table, err error) {
	defer func() {
		cerr := rs.Close()
		if err == nil && cerr != nil {
			err = fmt.Errorf("close result set: %w", cerr)
		}
	}()

	columns := rs.Columns()
	t := &Table{
		columns: append([]string(nil), columns...),
		cells:   make([][]any, len(columns)),
	}
	for rs.HasNext() {
		row, rerr := rs.Next()
		if rerr != nil {
			return nil, fmt.Errorf("read row %d: %w", t.rows, rerr)
		}
		if aerr := t.appendRow(row); aerr != nil {
			return nil, aerr
		}
	}
	return t, nil
}

func (t *Table) appendRow(row []any) error {
	if len(row) != len(t.columns) {
		return fmt.Errorf("row %d has %d values, want %d", t.rows, len(row), len(t.columns))
	}
	for i, v := range row {
		t.cells[i] = append(t.cells[i], v)
	}
	t.rows++
	return nil
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return t.rows
}

// Row returns a copy of row i's values in column order.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.columns))
	for c := range t.columns {
		row[c] = t.cells[c][i]
	}
	return row
}

// Transform applies fn to every cell in place. Used for sanitization before
// the table is rendered or exported.
func (t *Table) Transform(fn func(any) any) {
	for _, col := range t.cells {
		for i, v := range col {
			col[i] = fn(v)
		}
	}
}

// timeLeading reports whether the leading column carries series timestamps.
func (t *Table) timeLeading() bool {
	return len(t.columns) > 0 && t.columns[0] == TimeColumn
}

// Text renders the whole table: one comma-joined header line plus one
// comma-joined line per row. Values are not quoted or escaped; callers that
// need a parseable file use the exporter instead.
func (t *Table) Text() string {
	return t.render(t.rows)
}

// Preview renders the header plus the first min(n, Len()) rows in the same
// form as Text.
func (t *Table) Preview(n int) string {
	if n > t.rows {
		n = t.rows
	}
	if n < 0 {
		n = 0
	}
	return t.render(n)
}

func (t *Table) render(n int) string {
	var b strings.Builder
	b.WriteString(strings.Join(t.columns, ","))
	timeFirst := t.timeLeading()
	for r := 0; r < n; r++ {
		b.WriteByte('\n')
		for c := range t.columns {
			if c > 0 {
				b.WriteByte(',')
			}
			b.WriteString(renderCell(t.cells[c][r], timeFirst && c == 0))
		}
	}
	return b.String()
}

// StringRows returns every row rendered to strings with the same rules as
// Text, without the header. Used for delimited file output.
func (t *Table) StringRows() [][]string {
	timeFirst := t.timeLeading()
	rows := make([][]string, t.rows)
	for r := 0; r < t.rows; r++ {
		row := make([]string, len(t.columns))
		for c := range t.columns {
			row[c] = renderCell(t.cells[c][r], timeFirst && c == 0)
		}
		rows[r] = row
	}
	return rows
}

// ValueRows returns every row with cell values normalized for typed writers
// (spreadsheets): leading timestamps become epoch integers, byte slices
// become strings, nil stays nil so the cell ends up empty.
func (t *Table) ValueRows() [][]any {
	timeFirst := t.timeLeading()
	rows := make([][]any, t.rows)
	for r := 0; r < t.rows; r++ {
		row := make([]any, len(t.columns))
		for c := range t.columns {
			row[c] = normalizeCell(t.cells[c][r], timeFirst && c == 0)
		}
		rows[r] = row
	}
	return rows
}

// renderCell stringifies one value. Timestamp cells always render as their
// raw epoch integer, never as a formatted date, regardless of the session
// timezone.
func renderCell(v any, isTime bool) string {
	if v == nil {
		return "null"
	}
	if isTime {
		switch ts := v.(type) {
		case int64:
			return strconv.FormatInt(ts, 10)
		case int32:
			return strconv.FormatInt(int64(ts), 10)
		case time.Time:
			return strconv.FormatInt(ts.UnixMilli(), 10)
		}
	}
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(v)
	}
}

func normalizeCell(v any, isTime bool) any {
	if v == nil {
		return nil
	}
	if isTime {
		switch ts := v.(type) {
		case int64:
			return ts
		case int32:
			return int64(ts)
		case time.Time:
			return ts.UnixMilli()
		}
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
