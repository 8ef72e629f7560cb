package sidecar

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docintel/internal/model"
)

func TestEncodeMarkdownInline(t *testing.T) {
	short := "# hello world"
	fm, err := EncodeMarkdown(short)
	require.NoError(t, err)
	assert.Equal(t, model.MarkdownNone, fm.Compression)
	assert.Equal(t, short, fm.Body)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	// Property 3: decompress(compress(m)) == m, including non-ASCII/emoji.
	inputs := []string{
		strings.Repeat("lorem ipsum ", 200),
		"héllo wörld 😀😀😀 " + strings.Repeat("x", 5000),
	}
	for _, m := range inputs {
		fm, err := EncodeMarkdown(m)
		require.NoError(t, err)
		assert.Equal(t, model.MarkdownGzipBase64, fm.Compression)
		got, err := DecodeMarkdown(fm)
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
}

func TestCompressIsDeterministic(t *testing.T) {
	// Property 4: compress(m) == compress(m) byte-for-byte.
	m := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 1000)
	a, err := compressDeterministic([]byte(m))
	require.NoError(t, err)
	b, err := compressDeterministic([]byte(m))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMarkdownHardCap(t *testing.T) {
	atCap := strings.Repeat("x", hardCap)
	_, err := EncodeMarkdown(atCap)
	assert.NoError(t, err)

	overCap := strings.Repeat("x", hardCap+1)
	_, err = EncodeMarkdown(overCap)
	assert.ErrorIs(t, err, ErrMarkdownTooLarge)
}

func TestDecodeCorruptedBlob(t *testing.T) {
	fm := model.FullMarkdown{Body: "not-valid-base64-gzip!!", Compression: model.MarkdownGzipBase64}
	_, err := DecodeMarkdown(fm)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestMarkdownRoundTripScenarioS6(t *testing.T) {
	m := "# T\n" + strings.Repeat("x", 1_048_576)

	start := time.Now()
	fm, err := EncodeMarkdown(m)
	require.NoError(t, err)
	compressTime := time.Since(start)

	start = time.Now()
	got, err := DecodeMarkdown(fm)
	require.NoError(t, err)
	decompressTime := time.Since(start)

	assert.Equal(t, m, got)
	assert.Greater(t, len(m), len(fm.Body)*3, "expected compression ratio >= 3x")
	assert.Less(t, compressTime, 100*time.Millisecond)
	assert.Less(t, decompressTime, 50*time.Millisecond)
}
