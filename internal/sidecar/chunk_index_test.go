package sidecar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docintel/internal/model"
)

func TestChunkIndexIndexAndGet(t *testing.T) {
	idx := NewChunkIndex()
	idx.IndexChunks("doc1", []model.TextChunk{
		{ChunkID: "c1", Page: 1, Text: "first"},
		{ChunkID: "c2", Page: 1, Text: "second"},
	})

	c, err := idx.GetChunk(context.Background(), "doc1", "c2")
	require.NoError(t, err)
	assert.Equal(t, "second", c.Text)

	_, err = idx.GetChunk(context.Background(), "doc1", "missing")
	assert.ErrorIs(t, err, ErrChunkNotFound)
}

func TestChunkIndexListByDocPreservesOrder(t *testing.T) {
	idx := NewChunkIndex()
	idx.IndexChunks("doc1", []model.TextChunk{
		{ChunkID: "c1", Text: "a"},
		{ChunkID: "c2", Text: "b"},
		{ChunkID: "c3", Text: "c"},
	})
	got := idx.ListByDoc("doc1")
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c1", "c2", "c3"}, []string{got[0].ChunkID, got[1].ChunkID, got[2].ChunkID})
}

func TestChunkIndexReindexReplacesPriorSet(t *testing.T) {
	idx := NewChunkIndex()
	idx.IndexChunks("doc1", []model.TextChunk{{ChunkID: "c1", Text: "old"}})
	idx.IndexChunks("doc1", []model.TextChunk{{ChunkID: "c2", Text: "new"}})

	_, err := idx.GetChunk(context.Background(), "doc1", "c1")
	assert.ErrorIs(t, err, ErrChunkNotFound)
	c, err := idx.GetChunk(context.Background(), "doc1", "c2")
	require.NoError(t, err)
	assert.Equal(t, "new", c.Text)
}

func TestChunkIndexDeleteDocument(t *testing.T) {
	idx := NewChunkIndex()
	idx.IndexChunks("doc1", []model.TextChunk{{ChunkID: "c1", Text: "x"}})
	idx.DeleteDocument("doc1")
	assert.Empty(t, idx.ListByDoc("doc1"))
	_, err := idx.GetChunk(context.Background(), "doc1", "c1")
	assert.ErrorIs(t, err, ErrChunkNotFound)
}
