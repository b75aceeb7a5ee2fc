package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type SearchInput struct {
	Query string `json:"query" jsonschema:"description=Natural language search query"`
}

type LogsInput struct {
	Service   string `json:"service" jsonschema:"description=App label selector value"`
	Namespace string `json:"namespace,omitempty" jsonschema:"default=production"`
	Lines     int    `json:"lines,omitempty" jsonschema:"default=100"`
}

type TicketInput struct {
	Title    string  `json:"title"`
	Priority string  `json:"priority" jsonschema:"enum=low,enum=medium,enum=high"`
	Category *string `json:"category,omitempty"`
}

type StatsInput struct {
	Data []float64 `json:"data" jsonschema:"description=Array of numeric values"`
}

type NestedInput struct {
	Filter struct {
		Column string `json:"column"`
	} `json:"filter"`
}

func props(t *testing.T, s map[string]any) map[string]any {
	t.Helper()
	p, ok := s["properties"].(map[string]any)
	require.True(t, ok, "properties should be map[string]any")
	return p
}

func TestGenerateSimple(t *testing.T) {
	s := Generate[SearchInput]()
	assert.Equal(t, "object", s["type"])

	q, ok := props(t, s)["query"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", q["type"])
	assert.Equal(t, "Natural language search query", q["description"])
	assert.Contains(t, s["required"], "query")
}

func TestGenerateOptionalWithDefaults(t *testing.T) {
	s := Generate[LogsInput]()

	assert.Contains(t, s["required"], "service")
	assert.NotContains(t, s["required"], "namespace")
	assert.NotContains(t, s["required"], "lines")

	p := props(t, s)
	ns := p["namespace"].(map[string]any)
	assert.Equal(t, "production", ns["default"])
	lines := p["lines"].(map[string]any)
	assert.Equal(t, "integer", lines["type"])
}

func TestGenerateEnumAndPointer(t *testing.T) {
	s := Generate[TicketInput]()
	p := props(t, s)

	pr := p["priority"].(map[string]any)
	assert.Equal(t, []any{"low", "medium", "high"}, pr["enum"])

	_, hasCategory := p["category"]
	assert.True(t, hasCategory)
	assert.NotContains(t, s["required"], "category")
}

func TestGenerateArrayItems(t *testing.T) {
	s := Generate[StatsInput]()
	data := props(t, s)["data"].(map[string]any)
	assert.Equal(t, "array", data["type"])
	items := data["items"].(map[string]any)
	assert.Equal(t, "number", items["type"])
}

func TestGenerateNestedObject(t *testing.T) {
	s := Generate[NestedInput]()
	f := props(t, s)["filter"].(map[string]any)
	assert.Equal(t, "object", f["type"])
	assert.Contains(t, f["properties"], "column")
}

func TestGenerateEmptyStruct(t *testing.T) {
	s := Generate[struct{}]()
	assert.Equal(t, map[string]any{}, s["properties"])
	assert.NotContains(t, s, "required")
}

func TestGenerateJSON(t *testing.T) {
	raw, err := GenerateJSON[SearchInput]()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "object", m["type"])
	assert.NotNil(t, m["properties"])
	assert.NotNil(t, m["required"])
}
