// Package analyst is a data analyst agent: read-only SQL, CSV previews and
// descriptive statistics.
package analyst

import (
	"database/sql"
	"os"

	copilot "github.com/armatrix/copilot-sdk-go"
	"github.com/armatrix/copilot-sdk-go/internal/logging"
)

const (
	Label  = "Analyst: "
	Banner = "Data Analyst Agent (type 'exit' to quit)"
	Hint   = "Try: 'What were our top 5 products last month?'"
)

// SystemPrompt instructs the model how to behave as a data analyst.
const SystemPrompt = "You are a senior data analyst assistant. " +
	"Execute SQL queries and analyze data to answer business questions. " +
	"Show SQL before executing. Round numbers to 2 decimal places. " +
	"Always highlight key insights, trends, and anomalies. " +
	"Suggest follow-up questions to deepen the analysis."

// Options configures the analyst tools.
type Options struct {
	// DatabaseURL selects the SQL backend. Empty returns simulated rows.
	// "sqlite:" and "file:" URLs are opened read-only.
	DatabaseURL string
	// DB overrides DatabaseURL with an open connection.
	DB *sql.DB
	// DataDir is the root load_csv reads from. Empty uses the working directory.
	DataDir string
	Logger  *logging.Logger
}

// OptionsFromEnv reads DATABASE_URL and DATA_DIR.
func OptionsFromEnv() Options {
	return Options{DatabaseURL: os.Getenv("DATABASE_URL"), DataDir: os.Getenv("DATA_DIR")}
}

func (o Options) withDefaults() Options {
	if o.DataDir == "" {
		o.DataDir, _ = os.Getwd()
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	return o
}

// SessionConfig returns the session configuration for the analyst agent.
func SessionConfig(opts Options) *copilot.SessionConfig {
	return &copilot.SessionConfig{
		Model:         copilot.DefaultModel,
		Streaming:     true,
		SystemMessage: &copilot.SystemMessageConfig{Content: SystemPrompt},
		Tools:         Tools(opts),
	}
}
