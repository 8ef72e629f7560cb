package vectorstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMetadataFlattensNested(t *testing.T) {
	in := map[string]any{
		"doc_id": "abc123",
		"page":   3,
		"nested": map[string]any{
			"a": "x",
			"b": nil,
		},
		"tags": []any{"finance", "q4", nil},
	}
	out := SanitizeMetadata(in)
	assert.Equal(t, "abc123", out["doc_id"])
	assert.Equal(t, "3", out["page"])
	assert.Equal(t, "x", out["nested.a"])
	_, hasB := out["nested.b"]
	assert.False(t, hasB)
	assert.Equal(t, "finance,q4", out["tags"])
}

func TestSanitizeMetadataTruncatesOverlongStrings(t *testing.T) {
	in := map[string]any{"blob": strings.Repeat("x", metadataStringCap+100)}
	out := SanitizeMetadata(in)
	assert.Len(t, out["blob"], metadataStringCap)
}
