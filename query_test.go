package iotdbmcp_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	iotdbmcp "github.com/tsforge/iotdb-mcp"
	"github.com/tsforge/iotdb-mcp/internal/driver"
)

func TestSelectQueryRendersDelimitedText(t *testing.T) {
	t.Parallel()
	engine, factory := newTestEngine(t, driver.DialectTree, defaultConfig(t))
	factory.OnExecute = rowsExec(
		[]string{"Time", "temperature"},
		[][]any{{int64(1000), 36.5}},
	)

	output, err := engine.SelectQuery(context.Background(), "select * from root.a.b")
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if output.Text != "Time,temperature\n1000,36.5" {
		t.Fatalf("unexpected text: %q", output.Text)
	}
	if output.RowCount != 1 {
		t.Fatalf("expected 1 row, got %d", output.RowCount)
	}
	if len(output.Columns) != 2 || output.Columns[0] != "Time" {
		t.Fatalf("unexpected columns: %v", output.Columns)
	}

	executed := factory.Sessions()[0].Executed()
	if len(executed) != 1 || executed[0] != "select * from root.a.b" {
		t.Fatalf("expected raw statement forwarded to the session, got %v", executed)
	}
}

func TestSelectQueryHeaderLinePlusOneLinePerRow(t *testing.T) {
	t.Parallel()
	engine, factory := newTestEngine(t, driver.DialectTree, defaultConfig(t))
	rows := [][]any{
		{int64(1), "a", true},
		{int64(2), "b", false},
		{int64(3), "c", true},
	}
	factory.OnExecute = rowsExec([]string{"id", "name", "flag"}, rows)

	output, err := engine.SelectQuery(context.Background(), "SELECT id, name, flag FROM root.sg.d1")
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}

	lines := strings.Split(output.Text, "\n")
	if len(lines) != 1+len(rows) {
		t.Fatalf("expected %d lines, got %d", 1+len(rows), len(lines))
	}
	for i, line := range lines {
		if fields := strings.Split(line, ","); len(fields) != 3 {
			t.Fatalf("line %d: expected 3 fields, got %d (%q)", i, len(fields), line)
		}
	}
}

func TestSelectQueryRejectsNonSelect(t *testing.T) {
	t.Parallel()
	engine, factory := newTestEngine(t, driver.DialectTree, defaultConfig(t))

	for _, sql := range []string{
		"DROP DATABASE root.a",
		"INSERT INTO root.sg.d1(timestamp, s1) VALUES (1, 2)",
		"DELETE FROM root.sg.d1",
		"SHOW DEVICES",
		"",
		"   ",
	} {
		_, err := engine.SelectQuery(context.Background(), sql)
		if !errors.Is(err, iotdbmcp.ErrUnsupportedStatement) {
			t.Fatalf("%q: expected ErrUnsupportedStatement, got %v", sql, err)
		}
	}

	// Rejected statements are never executed and never check out a session.
	if dials := factory.Dials(); dials != 0 {
		t.Fatalf("expected no dials for rejected statements, got %d", dials)
	}
}

func TestMetadataQueryAllowsShowAndCountPrefixes(t *testing.T) {
	t.Parallel()
	engine, factory := newTestEngine(t, driver.DialectTree, defaultConfig(t))
	factory.OnExecute = rowsExec([]string{"databases"}, [][]any{{"root.sg"}})

	for _, sql := range []string{
		"SHOW DATABASES",
		"SHOW TIMESERIES root.**",
		"SHOW CHILD PATHS root.sg",
		"SHOW CHILD NODES root.sg",
		"SHOW DEVICES root.sg.**",
		"COUNT TIMESERIES root.**",
		"COUNT NODES root LEVEL=2",
		"COUNT DEVICES",
		"show databases",
	} {
		if _, err := engine.MetadataQuery(context.Background(), sql); err != nil {
			t.Fatalf("%q: expected metadata statement accepted, got %v", sql, err)
		}
	}
}

func TestMetadataQueryRejectsSelectAndBareShow(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t, driver.DialectTree, defaultConfig(t))

	for _, sql := range []string{
		"SELECT * FROM root.sg.d1",
		"SHOW TABLES",
		"SHOW VERSION",
		"COUNT POINTS root.**",
	} {
		_, err := engine.MetadataQuery(context.Background(), sql)
		if !errors.Is(err, iotdbmcp.ErrUnsupportedStatement) {
			t.Fatalf("%q: expected ErrUnsupportedStatement, got %v", sql, err)
		}
	}
}

func TestReadQueryAllowsTableStatements(t *testing.T) {
	t.Parallel()
	engine, factory := newTestEngine(t, driver.DialectTable, defaultConfig(t))
	factory.OnExecute = rowsExec([]string{"value"}, [][]any{{int64(1)}})

	for _, sql := range []string{
		"SELECT * FROM sensors",
		"SHOW TABLES",
		"SHOW DEVICES",
		"DESCRIBE sensors",
		"DESC sensors details",
		"desc sensors",
	} {
		if _, err := engine.ReadQuery(context.Background(), sql); err != nil {
			t.Fatalf("%q: expected read statement accepted, got %v", sql, err)
		}
	}
}

func TestReadQueryRejectsWrites(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t, driver.DialectTable, defaultConfig(t))

	for _, sql := range []string{
		"INSERT INTO sensors VALUES (1, 2)",
		"DROP TABLE sensors",
		"UPDATE sensors SET v = 1",
		"CREATE TABLE t (id INT64)",
	} {
		_, err := engine.ReadQuery(context.Background(), sql)
		if !errors.Is(err, iotdbmcp.ErrUnsupportedStatement) {
			t.Fatalf("%q: expected ErrUnsupportedStatement, got %v", sql, err)
		}
	}
}

func TestUnsupportedStatementErrorNamesPermittedPrefixes(t *testing.T) {
	t.Parallel()
	engine, _ := newTestEngine(t, driver.DialectTree, defaultConfig(t))

	_, err := engine.SelectQuery(context.Background(), "DROP DATABASE root.a")
	if err == nil {
		t.Fatal("expected rejection")
	}
	if !strings.Contains(err.Error(), "SELECT") {
		t.Fatalf("expected permitted prefixes in error, got %q", err)
	}
}

func TestQueryRejectsOversizedSQL(t *testing.T) {
	t.Parallel()
	config := defaultConfig(t)
	config.Query.MaxSQLLength = 32
	engine, factory := newTestEngine(t, driver.DialectTree, config)

	long := "SELECT " + strings.Repeat("s1, ", 20) + "s0 FROM root.sg.d1"
	_, err := engine.SelectQuery(context.Background(), long)
	if err == nil || !strings.Contains(err.Error(), "statement too long") {
		t.Fatalf("expected length rejection, got %v", err)
	}
	if factory.Dials() != 0 {
		t.Fatal("oversized statement must be rejected before the pool is touched")
	}
}

func TestQueryRejectsOversizedResult(t *testing.T) {
	t.Parallel()
	config := defaultConfig(t)
	config.Query.MaxResultLength = 40
	engine, factory := newTestEngine(t, driver.DialectTree, config)

	rows := make([][]any, 20)
	for i := range rows {
		rows[i] = []any{strings.Repeat("x", 30)}
	}
	factory.OnExecute = rowsExec([]string{"payload"}, rows)

	_, err := engine.SelectQuery(context.Background(), "SELECT payload FROM root.sg.d1")
	if err == nil || !strings.Contains(err.Error(), "result too long") {
		t.Fatalf("expected oversized result error, got %v", err)
	}
	if !strings.Contains(err.Error(), "LIMIT") {
		t.Fatalf("expected guidance to add LIMIT, got %q", err)
	}
	// The session survives an oversized result; only the rendering is refused.
	if open := factory.OpenSessions(); open != 1 {
		t.Fatalf("expected session released back to pool, got %d open", open)
	}
}

func TestErrorHintsAppendedToMatchingErrors(t *testing.T) {
	t.Parallel()
	config := defaultConfig(t)
	config.ErrorHints = []iotdbmcp.ErrorHintRule{
		{Pattern: `(?i)path .* does not exist`, Message: "Check the path with SHOW TIMESERIES first."},
	}
	engine, factory := newTestEngine(t, driver.DialectTree, config)
	factory.OnExecute = func(sql string) (driver.ResultSet, error) {
		return nil, errors.New("301: Path [root.sg.zz] does not exist")
	}

	_, err := engine.SelectQuery(context.Background(), "SELECT * FROM root.sg.zz")
	if err == nil {
		t.Fatal("expected remote error")
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected original error preserved, got %q", err)
	}
	if !strings.Contains(err.Error(), "Check the path with SHOW TIMESERIES first.") {
		t.Fatalf("expected hint appended, got %q", err)
	}
}

func TestErrorHintsLeaveUnmatchedErrorsUntouched(t *testing.T) {
	t.Parallel()
	config := defaultConfig(t)
	config.ErrorHints = []iotdbmcp.ErrorHintRule{
		{Pattern: "never-matches-anything", Message: "unused"},
	}
	engine, factory := newTestEngine(t, driver.DialectTree, config)
	factory.OnExecute = func(sql string) (driver.ResultSet, error) {
		return nil, errors.New("700: internal server error")
	}

	_, err := engine.SelectQuery(context.Background(), "SELECT * FROM root.sg.d1")
	if err == nil {
		t.Fatal("expected remote error")
	}
	if strings.Contains(err.Error(), "unused") {
		t.Fatalf("hint appended without a match: %q", err)
	}
}

func TestSanitizationRedactsCells(t *testing.T) {
	t.Parallel()
	config := defaultConfig(t)
	config.Sanitization = []iotdbmcp.SanitizationRule{
		{Pattern: `(\+\d{2})\d+(\d{3})`, Replacement: "${1}xxx${2}", Description: "mask phone numbers"},
	}
	engine, factory := newTestEngine(t, driver.DialectTree, config)
	factory.OnExecute = rowsExec(
		[]string{"Time", "owner_phone"},
		[][]any{{int64(1000), "+62812345678"}},
	)

	output, err := engine.SelectQuery(context.Background(), "SELECT owner_phone FROM root.sg.d1")
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if !strings.Contains(output.Text, "+62xxx678") {
		t.Fatalf("expected masked phone number, got %q", output.Text)
	}
	if strings.Contains(output.Text, "+62812345678") {
		t.Fatalf("raw phone number leaked: %q", output.Text)
	}
}

func TestTimeColumnRendersRawEpoch(t *testing.T) {
	t.Parallel()
	engine, factory := newTestEngine(t, driver.DialectTree, defaultConfig(t))
	factory.OnExecute = rowsExec(
		[]string{"Time", "value"},
		[][]any{{int64(1704067200000), int64(7)}},
	)

	output, err := engine.SelectQuery(context.Background(), "SELECT value FROM root.sg.d1")
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if output.Text != "Time,value\n1704067200000,7" {
		t.Fatalf("expected raw epoch rendering, got %q", output.Text)
	}
}
