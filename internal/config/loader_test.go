package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("S3_BUCKET", "")
	t.Setenv("QDRANT_DSN", "")
	t.Setenv("LLM_PROVIDER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "doc_visual", cfg.Qdrant.VisualCollection)
	assert.Equal(t, "doc_text", cfg.Qdrant.TextCollection)
	assert.Equal(t, 128, cfg.Qdrant.VisualDim)
	assert.Equal(t, int64(1024), cfg.Sidecar.InlineMaxSize)
	assert.Equal(t, int64(10*1024*1024), cfg.Sidecar.HardCapSize)
	assert.Equal(t, 4, cfg.Queue.MaxParallelJobs)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("S3_BUCKET", "docs-bucket")
	t.Setenv("S3_USE_PATH_STYLE", "true")
	t.Setenv("QDRANT_VISUAL_DIM", "256")
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("MAX_PARALLEL_JOBS", "16")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "docs-bucket", cfg.S3.Bucket)
	assert.True(t, cfg.S3.UsePathStyle)
	assert.Equal(t, 256, cfg.Qdrant.VisualDim)
	assert.Equal(t, "anthropic", cfg.LLMClient.Provider)
	assert.Equal(t, 16, cfg.Queue.MaxParallelJobs)
}

func TestParseIntDefaultFallsBackOnGarbage(t *testing.T) {
	assert.Equal(t, 4, parseIntDefault("not-a-number", 4))
	assert.Equal(t, 9, parseIntDefault("9", 4))
}
