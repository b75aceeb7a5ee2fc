package analyst

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	copilot "github.com/armatrix/copilot-sdk-go"
	"github.com/armatrix/copilot-sdk-go/agents"
)

type sqlArgs struct {
	SQL   string `json:"sql" jsonschema:"required,description=SELECT query to execute"`
	Limit *int   `json:"limit,omitempty" jsonschema:"default=100,description=Maximum rows to return"`
}

type csvArgs struct {
	FilePath string `json:"file_path" jsonschema:"required,description=Relative path to the CSV file within the application's data directory"`
	Rows     *int   `json:"rows,omitempty" jsonschema:"default=50,description=Number of rows to return"`
}

type statsArgs struct {
	Data       []float64 `json:"data" jsonschema:"required,description=Array of numeric values"`
	ColumnName string    `json:"column_name,omitempty" jsonschema:"default=value,description=Column name for labeling"`
}

// Tools returns the analyst agent's tools.
func Tools(opts Options) []copilot.Tool {
	t := &toolset{opts: opts.withDefaults()}
	return []copilot.Tool{
		copilot.DefineTool("run_sql_query", "Execute a read-only SQL query and return results", t.runSQL),
		copilot.DefineTool("load_csv", "Load a CSV file from the data directory and return its contents for analysis", t.loadCSV),
		copilot.DefineTool("compute_stats", "Compute descriptive statistics for a numeric array", t.computeStats),
	}
}

type toolset struct {
	opts Options

	once    sync.Once
	db      *sql.DB
	openErr error
}

func (t *toolset) database() (*sql.DB, error) {
	if t.opts.DB != nil {
		return t.opts.DB, nil
	}
	t.once.Do(func() {
		t.db, t.openErr = OpenDatabase(t.opts.DatabaseURL)
	})
	return t.db, t.openErr
}

func (t *toolset) runSQL(ctx context.Context, in sqlArgs, _ copilot.ToolInvocation) (any, error) {
	if err := ValidateSQL(in.SQL); err != nil {
		return agents.Failure{Error: err.Error()}, nil
	}
	if t.opts.DB == nil && t.opts.DatabaseURL == "" {
		return SimulatedResult(), nil
	}
	db, err := t.database()
	if err != nil {
		return agents.Failure{Error: err.Error()}, nil
	}
	limit := 100
	if in.Limit != nil {
		limit = *in.Limit
	}
	t.opts.Logger.Debug().Str("sql", in.SQL).Int("limit", limit).Msg("run query")
	res, err := RunQuery(ctx, db, in.SQL, limit)
	if err != nil {
		return agents.Failure{Error: err.Error()}, nil
	}
	return res, nil
}

func (t *toolset) loadCSV(_ context.Context, in csvArgs, _ copilot.ToolInvocation) (any, error) {
	path, err := ResolveCSVPath(t.opts.DataDir, in.FilePath)
	if err != nil {
		return agents.Failure{Error: err.Error()}, nil
	}
	rows := 50
	if in.Rows != nil {
		rows = *in.Rows
	}
	preview, err := LoadCSV(path, rows)
	if err != nil {
		return agents.Failure{Error: err.Error()}, nil
	}
	return preview, nil
}

func (t *toolset) computeStats(_ context.Context, in statsArgs, _ copilot.ToolInvocation) (any, error) {
	if in.ColumnName == "" {
		in.ColumnName = "value"
	}
	stats, err := ComputeStats(in.Data, in.ColumnName)
	if errors.Is(err, ErrEmpty) || errors.Is(err, ErrOverflow) {
		return agents.Failure{Error: err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}
