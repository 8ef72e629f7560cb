package openai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docintel/internal/llm"
)

func TestAdaptSchemasIncludesNameAndDescription(t *testing.T) {
	schemas := []llm.ToolSchema{
		{
			Name:        "do_thing",
			Description: "does a thing",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"foo": map[string]any{"type": "string"}},
			},
		},
	}
	out := AdaptSchemas(schemas)
	require.Len(t, out, 1)

	b, err := json.Marshal(out[0])
	require.NoError(t, err)
	s := string(b)
	assert.Contains(t, s, "do_thing")
	assert.Contains(t, s, "does a thing")
}

func TestAdaptMessagesPreservesRoleAndContent(t *testing.T) {
	msgs := []llm.Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	}
	out := AdaptMessages(msgs)
	require.Len(t, out, len(msgs))

	for i, want := range []string{"be terse", "hello", "hi there"} {
		b, err := json.Marshal(out[i])
		require.NoError(t, err)
		assert.Contains(t, string(b), want)
	}
}
