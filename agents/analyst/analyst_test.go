package analyst

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	copilot "github.com/armatrix/copilot-sdk-go"
)

func call(t *testing.T, opts Options, name string, args any) map[string]any {
	t.Helper()
	for _, tool := range Tools(opts) {
		if tool.Name != name {
			continue
		}
		raw, err := json.Marshal(args)
		require.NoError(t, err)
		res, err := tool.Handler(context.Background(), copilot.ToolInvocation{ToolName: name, Arguments: raw})
		require.NoError(t, err)
		var out map[string]any
		require.NoError(t, json.Unmarshal([]byte(res.TextResultForLLM), &out))
		return out
	}
	t.Fatalf("tool %s not found", name)
	return nil
}

func TestValidateSQL(t *testing.T) {
	for _, q := range []string{
		"SELECT * FROM users",
		"  select id from orders",
		"WITH cte AS (SELECT 1) SELECT * FROM cte",
	} {
		assert.NoError(t, ValidateSQL(q), q)
	}
	for _, q := range []string{
		"INSERT INTO users VALUES (1)",
		"UPDATE users SET name='x'",
		"DELETE FROM logs",
		"DROP TABLE users",
		"TRUNCATE orders",
	} {
		assert.ErrorIs(t, ValidateSQL(q), ErrNotSelect, q)
	}
	for _, q := range []string{
		"SELECT 1; DROP TABLE users",
		"SELECT * FROM users; DELETE FROM logs",
	} {
		assert.ErrorIs(t, ValidateSQL(q), ErrSemicolon, q)
	}
}

func TestValidateSQL_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		body := rapid.StringMatching(`[a-zA-Z0-9_ (),*=']{0,40}`).Draw(rt, "body")
		verb := rapid.SampledFrom([]string{"SELECT", "select", "With", "  SELECT"}).Draw(rt, "verb")
		if err := ValidateSQL(verb + " " + body); err != nil {
			rt.Fatalf("read query rejected: %v", err)
		}
		stacked := verb + " " + body + ";" + rapid.StringMatching(`[A-Z ]{0,20}`).Draw(rt, "tail")
		if ValidateSQL(stacked) == nil {
			rt.Fatalf("stacked query %q accepted", stacked)
		}
		write := rapid.SampledFrom([]string{"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "PRAGMA", "ATTACH"}).Draw(rt, "write")
		if ValidateSQL(write+" "+body) == nil {
			rt.Fatalf("write query accepted")
		}
	})
}

func TestResolveCSVPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	p, err := ResolveCSVPath(dir, "data.csv")
	require.NoError(t, err)
	assert.Equal(t, "data.csv", filepath.Base(p))

	_, err = ResolveCSVPath(dir, "subdir/data.csv")
	assert.NoError(t, err)

	_, err = ResolveCSVPath(dir, "DATA.CSV")
	assert.NoError(t, err)

	for _, bad := range []string{"/etc/passwd", "../secret.csv", "subdir/../../etc/shadow.csv"} {
		_, err = ResolveCSVPath(dir, bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
	_, err = ResolveCSVPath(dir, "data.json")
	assert.ErrorIs(t, err, ErrNotCSV)
}

func TestResolveCSVPath_Symlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks")
	}
	outside := t.TempDir()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.csv"), []byte("a\n1\n"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.csv"), filepath.Join(dir, "link.csv")))
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "escape")))

	_, err := ResolveCSVPath(dir, "link.csv")
	assert.ErrorIs(t, err, ErrOutsideData)
	_, err = ResolveCSVPath(dir, "escape/secret.csv")
	assert.ErrorIs(t, err, ErrOutsideData)
}

func TestComputeStats(t *testing.T) {
	s, err := ComputeStats([]float64{1, 2, 3, 4, 5}, "value")
	require.NoError(t, err)
	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 5.0, s.Max)
	assert.Equal(t, 3.0, s.Mean)
	assert.Equal(t, 3.0, s.Median)
	assert.Equal(t, 1.41, s.StdDev)
	assert.Equal(t, 2.0, s.P25)
	assert.Equal(t, 4.0, s.P75)

	s, err = ComputeStats([]float64{4, 1, 3, 2}, "revenue")
	require.NoError(t, err)
	assert.Equal(t, 2.5, s.Median)
	assert.Equal(t, "revenue", s.Column)

	s, err = ComputeStats([]float64{2, 4, 4, 4, 5, 5, 7, 9}, "v")
	require.NoError(t, err)
	assert.Equal(t, 2.0, s.StdDev)

	s, err = ComputeStats([]float64{42}, "v")
	require.NoError(t, err)
	assert.Equal(t, 42.0, s.Mean)
	assert.Equal(t, 0.0, s.StdDev)

	s, err = ComputeStats([]float64{1, 2, 2}, "v")
	require.NoError(t, err)
	assert.Equal(t, 1.67, s.Mean)

	s, err = ComputeStats([]float64{0, 0.25}, "v")
	require.NoError(t, err)
	assert.Equal(t, 0.12, s.Mean)

	_, err = ComputeStats(nil, "v")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = ComputeStats([]float64{1e308, 1e308}, "v")
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = ComputeStats([]float64{-1e308, 1e308, 1e308}, "v")
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestComputeStats_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		vals := rapid.SliceOfN(rapid.Float64Range(-1e6, 1e6), 1, 200).Draw(rt, "vals")
		s, err := ComputeStats(vals, "v")
		if err != nil {
			rt.Fatal(err)
		}
		if s.Count != len(vals) {
			rt.Fatalf("count %d != %d", s.Count, len(vals))
		}
		if !(s.Min <= s.P25 && s.P25 <= s.P75 && s.P75 <= s.Max) {
			rt.Fatalf("percentiles out of order: %+v", s)
		}
		if s.Mean < s.Min-0.01 || s.Mean > s.Max+0.01 {
			rt.Fatalf("mean %v outside [%v, %v]", s.Mean, s.Min, s.Max)
		}
		if s.StdDev < 0 {
			rt.Fatalf("negative std dev %v", s.StdDev)
		}
	})
}

func TestRunSQLQuery_Simulated(t *testing.T) {
	out := call(t, Options{}, "run_sql_query", map[string]any{"sql": "SELECT * FROM sales"})
	assert.Equal(t, []any{"date", "product", "revenue", "orders"}, out["columns"])
	assert.EqualValues(t, 2, out["row_count"])
	assert.Contains(t, out["note"], "DATABASE_URL")

	out = call(t, Options{}, "run_sql_query", map[string]any{"sql": "DELETE FROM sales"})
	assert.Equal(t, "Only SELECT queries are permitted", out["error"])

	out = call(t, Options{}, "run_sql_query", map[string]any{"sql": "SELECT 1; DROP TABLE x"})
	assert.Equal(t, "Semicolons are not permitted in queries", out["error"])
}

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE sales (date TEXT, product TEXT, revenue REAL, orders INTEGER)`)
	require.NoError(t, err)
	for i, p := range []string{"Widget Pro", "Widget Lite", "Gadget"} {
		_, err = db.Exec(`INSERT INTO sales VALUES (?, ?, ?, ?)`, "2024-01-0"+string(rune('1'+i)), p, 100.5*float64(i+1), 10*(i+1))
		require.NoError(t, err)
	}
	return path
}

func TestRunSQLQuery_SQLite(t *testing.T) {
	path := seedDB(t)
	opts := Options{DatabaseURL: "sqlite:" + path}

	out := call(t, opts, "run_sql_query", map[string]any{"sql": "SELECT product, orders FROM sales ORDER BY orders DESC"})
	assert.Equal(t, []any{"product", "orders"}, out["columns"])
	assert.EqualValues(t, 3, out["row_count"])
	assert.Equal(t, []any{"Gadget", float64(30)}, out["rows"].([]any)[0])

	out = call(t, opts, "run_sql_query", map[string]any{"sql": "WITH top AS (SELECT * FROM sales) SELECT date FROM top", "limit": 2})
	assert.EqualValues(t, 2, out["row_count"])
	assert.Equal(t, true, out["truncated"])

	out = call(t, Options{DatabaseURL: "file:" + path}, "run_sql_query", map[string]any{"sql": "SELECT count(*) AS n FROM sales"})
	assert.Equal(t, []any{float64(3)}, out["rows"].([]any)[0])
}

func TestRunSQLQuery_ReadOnly(t *testing.T) {
	path := seedDB(t)
	db, err := OpenDatabase("sqlite://" + path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO sales VALUES ('x', 'y', 1, 1)`)
	assert.Error(t, err)
}

func TestRunSQLQuery_UnsupportedScheme(t *testing.T) {
	out := call(t, Options{DatabaseURL: "postgresql://localhost/db"}, "run_sql_query", map[string]any{"sql": "SELECT 1"})
	assert.Contains(t, out["error"], `Unsupported database scheme "postgresql"`)
}

func TestLoadCSVTool(t *testing.T) {
	dir := t.TempDir()
	content := "date,revenue,orders\n2024-01-01,1000,10\n2024-01-02,2000,20\n2024-01-03,1500,15\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales.csv"), []byte(content), 0o644))

	out := call(t, Options{DataDir: dir}, "load_csv", map[string]any{"file_path": "sales.csv", "rows": 2})
	assert.Equal(t, []any{"date", "revenue", "orders"}, out["columns"])
	assert.EqualValues(t, 3, out["total_rows"])
	preview := out["preview"].([]any)
	require.Len(t, preview, 2)
	assert.Equal(t, map[string]any{"date": "2024-01-01", "revenue": "1000", "orders": "10"}, preview[0])

	out = call(t, Options{DataDir: dir}, "load_csv", map[string]any{"file_path": "sales.csv"})
	assert.Len(t, out["preview"], 3)

	out = call(t, Options{DataDir: dir}, "load_csv", map[string]any{"file_path": "../x.csv"})
	assert.True(t, strings.HasPrefix(out["error"].(string), "Invalid file path"))

	out = call(t, Options{DataDir: dir}, "load_csv", map[string]any{"file_path": "missing.csv"})
	assert.Contains(t, out, "error")
}

func TestReadCSV_Ragged(t *testing.T) {
	p, err := readCSV(strings.NewReader("a,b\n1\n2,3,4\n"), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, p.TotalRows)
	assert.Equal(t, map[string]string{"a": "1", "b": ""}, p.Preview[0])

	p, err = readCSV(strings.NewReader(""), 10)
	require.NoError(t, err)
	assert.Empty(t, p.Columns)
}

func TestComputeStatsTool(t *testing.T) {
	out := call(t, Options{}, "compute_stats", map[string]any{"data": []float64{10, 20, 30}})
	assert.Equal(t, "value", out["column"])
	assert.EqualValues(t, 20, out["mean"])

	out = call(t, Options{}, "compute_stats", map[string]any{"data": []float64{}})
	assert.Equal(t, "Empty array", out["error"])

	out = call(t, Options{}, "compute_stats", map[string]any{"data": []float64{1e308, 1e308}})
	assert.Equal(t, "Values are too large to summarize", out["error"])
}

func TestSessionConfig(t *testing.T) {
	cfg := SessionConfig(Options{})
	assert.Equal(t, SystemPrompt, cfg.SystemMessage.Content)
	assert.Len(t, cfg.Tools, 3)
}
