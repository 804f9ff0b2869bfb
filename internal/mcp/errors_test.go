package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolErrorRendering(t *testing.T) {
	err := InvalidArgument("recall_conversations", "limit must be 0-%d, got %d", 1000, -1)
	assert.Equal(t, "invalid_argument: recall_conversations: limit must be 0-1000, got -1", err.Error())

	bare := &ToolError{Kind: KindInternal, Message: "boom"}
	assert.Equal(t, "internal: boom", bare.Error())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindInvalidArgument, KindOf(InvalidArgument("t", "bad")))
	assert.Equal(t, KindUnknownTool, KindOf(UnknownTool("mystery_tool")))
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("extract: %w", context.Canceled)))
	assert.Equal(t, KindInternal, KindOf(errors.New("anything else")))

	wrapped := fmt.Errorf("tool failed: %w", Errorf(KindIO, "export", "disk full"))
	assert.Equal(t, KindIO, KindOf(wrapped))
}

func TestValidateToolName(t *testing.T) {
	for _, name := range ToolNames() {
		assert.NoError(t, ValidateToolName(name))
	}

	err := ValidateToolName("summon_balrog")
	var te *ToolError
	assert.ErrorAs(t, err, &te)
	assert.Equal(t, KindUnknownTool, te.Kind)
	assert.Equal(t, "summon_balrog", te.Subject)
}
