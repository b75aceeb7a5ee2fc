package analyst

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// simulatedNote accompanies rows returned without a database.
const simulatedNote = "Simulated data. Configure DATABASE_URL to use a real database."

// QueryResult is the output of run_sql_query.
type QueryResult struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated,omitempty"`
	Note      string   `json:"note,omitempty"`
}

// SimulatedResult is returned when no database is configured.
func SimulatedResult() QueryResult {
	return QueryResult{
		Columns: []string{"date", "product", "revenue", "orders"},
		Rows: [][]any{
			{"2024-01-01", "Widget Pro", 12500.00, 245},
			{"2024-01-02", "Widget Lite", 8200.50, 167},
		},
		RowCount: 2,
		Note:     simulatedNote,
	}
}

// OpenDatabase opens a DATABASE_URL read-only. Only SQLite URLs
// ("sqlite:path", "sqlite://path", "file:path") are supported.
func OpenDatabase(url string) (*sql.DB, error) {
	dsn, err := sqliteDSN(url)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	return db, nil
}

func sqliteDSN(url string) (string, error) {
	var path string
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		path = strings.TrimPrefix(url, "sqlite://")
	case strings.HasPrefix(url, "sqlite:"):
		path = strings.TrimPrefix(url, "sqlite:")
	case strings.HasPrefix(url, "file:"):
		path = strings.TrimPrefix(url, "file:")
	default:
		scheme, _, _ := strings.Cut(url, ":")
		return "", fmt.Errorf("Unsupported database scheme %q. Only sqlite: and file: URLs are supported.", scheme)
	}
	if path == "" {
		return "", fmt.Errorf("DATABASE_URL has no database path")
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + "mode=ro&_pragma=query_only(1)", nil
}

// RunQuery executes a validated query and returns at most limit rows.
func RunQuery(ctx context.Context, db *sql.DB, query string, limit int) (QueryResult, error) {
	if err := ValidateSQL(query); err != nil {
		return QueryResult{}, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return QueryResult{}, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return QueryResult{}, fmt.Errorf("columns: %w", err)
	}
	res := QueryResult{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if len(res.Rows) == limit {
			res.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return QueryResult{}, fmt.Errorf("scan: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, fmt.Errorf("rows: %w", err)
	}
	res.RowCount = len(res.Rows)
	return res, nil
}
