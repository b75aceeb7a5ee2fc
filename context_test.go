package copilot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ContextSessionID(ctx))
	assert.Empty(t, ContextToolCallID(ctx))

	ctx = WithContextToolCallID(WithContextSessionID(ctx, "sess-1"), "tc-9")
	assert.Equal(t, "sess-1", ContextSessionID(ctx))
	assert.Equal(t, "tc-9", ContextToolCallID(ctx))
}
