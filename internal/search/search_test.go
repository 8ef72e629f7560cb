package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docintel/internal/model"
	"docintel/internal/vectorstore"
)

type fakeEncoder struct{}

func (fakeEncoder) EmbedQuery(_ context.Context, text string) (model.MultiVector, error) {
	return model.MultiVector{{1, 0}, {0, 1}}, nil
}

type fakeStore struct {
	visual, text []vectorstore.Candidate
	vectors      map[string]model.MultiVector
}

func (f *fakeStore) Query(_ context.Context, col vectorstore.Collection, _ []float32, _ uint64, _ map[string]string) ([]vectorstore.Candidate, error) {
	if col == vectorstore.CollectionVisual {
		return f.visual, nil
	}
	return f.text, nil
}

func (f *fakeStore) Get(_ context.Context, _ vectorstore.Collection, embeddingID string) (model.MultiVector, map[string]string, error) {
	return f.vectors[embeddingID], nil, nil
}

type fakeDocs struct {
	docs map[string]model.Document
}

func (f *fakeDocs) GetDocument(_ context.Context, docID string) (model.Document, error) {
	return f.docs[docID], nil
}

type fakeChunks struct{}

func (fakeChunks) GetChunk(_ context.Context, _, chunkID string) (model.TextChunk, error) {
	return model.TextChunk{ChunkID: chunkID, Text: "chunk body for " + chunkID}, nil
}

func TestEngineSearchHybridFusionAndDedup(t *testing.T) {
	store := &fakeStore{
		visual: []vectorstore.Candidate{
			{EmbeddingID: "doc1:visual:1", Metadata: map[string]string{"doc_id": "doc1", "page": "1"}},
			{EmbeddingID: "doc2:visual:1", Metadata: map[string]string{"doc_id": "doc2", "page": "1"}},
		},
		text: []vectorstore.Candidate{
			{EmbeddingID: "doc1:text:c1", Metadata: map[string]string{"doc_id": "doc1", "page": "1", "chunk_id": "c1"}},
		},
		vectors: map[string]model.MultiVector{
			"doc1:visual:1": {{1, 0}},
			"doc2:visual:1": {{0.1, 0}},
			"doc1:text:c1":  {{1, 0}},
		},
	}
	docs := &fakeDocs{docs: map[string]model.Document{
		"doc1": {DocID: "doc1", Filename: "a.pdf", UploadTS: time.Unix(100, 0)},
		"doc2": {DocID: "doc2", Filename: "b.pdf", UploadTS: time.Unix(50, 0)},
	}}
	eng := New(fakeEncoder{}, store, docs, fakeChunks{})

	results, err := eng.Search(context.Background(), Request{Query: "revenue", Mode: ModeHybrid})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "doc1", results[0].DocID)
	assert.Equal(t, "both", results[0].Type)
	assert.Equal(t, "a.pdf", results[0].Filename)
	assert.Contains(t, results[0].Preview, "c1")

	assert.Equal(t, "doc2", results[1].DocID)
	assert.Equal(t, "visual", results[1].Type)
}

func TestEngineSearchVisualOnlySkipsTextCollection(t *testing.T) {
	store := &fakeStore{
		visual: []vectorstore.Candidate{
			{EmbeddingID: "doc1:visual:1", Metadata: map[string]string{"doc_id": "doc1", "page": "1"}},
		},
		vectors: map[string]model.MultiVector{"doc1:visual:1": {{1, 0}}},
	}
	eng := New(fakeEncoder{}, store, nil, nil)

	results, err := eng.Search(context.Background(), Request{Query: "q", Mode: ModeVisual})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "visual", results[0].Type)
	assert.Empty(t, results[0].Filename)
}

func TestEngineSearchRejectsEmptyQuery(t *testing.T) {
	eng := New(fakeEncoder{}, &fakeStore{}, nil, nil)
	_, err := eng.Search(context.Background(), Request{Query: "  "})
	assert.Error(t, err)
}

func TestModeAlphaDefaults(t *testing.T) {
	assert.Equal(t, 1.0, ModeVisual.alpha(0))
	assert.Equal(t, 0.0, ModeText.alpha(0))
	assert.Equal(t, 0.5, ModeHybrid.alpha(0))
	assert.Equal(t, 0.7, ModeHybrid.alpha(0.7))
}
