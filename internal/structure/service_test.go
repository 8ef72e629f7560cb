package structure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docintel/internal/model"
	"docintel/internal/sidecar"
	"docintel/internal/vectorstore"
)

type fakeVectorStore struct {
	structures map[string]model.PageStructure
	markdown   map[string]string
	compress   map[string]string
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		structures: map[string]model.PageStructure{},
		markdown:   map[string]string{},
		compress:   map[string]string{},
	}
}

func (f *fakeVectorStore) PutPageStructure(_ context.Context, docID string, ps model.PageStructure) error {
	f.structures[sidecar.Key(docID, ps.Page)] = ps
	return nil
}

func (f *fakeVectorStore) GetPageStructure(_ context.Context, docID string, page int) (model.PageStructure, bool, error) {
	ps, ok := f.structures[sidecar.Key(docID, page)]
	return ps, ok, nil
}

func (f *fakeVectorStore) GetDocumentMarkdown(_ context.Context, col vectorstore.Collection, docID string) (string, string, bool, error) {
	body, ok := f.markdown[string(col)+":"+docID]
	return body, f.compress[string(col)+":"+docID], ok, nil
}

type fakeChunkLookup struct {
	chunks map[string]model.TextChunk
}

func (f *fakeChunkLookup) GetChunk(_ context.Context, docID, chunkID string) (model.TextChunk, error) {
	ch, ok := f.chunks[docID+":"+chunkID]
	if !ok {
		return model.TextChunk{}, ErrChunkNotFound
	}
	return ch, nil
}

func TestServiceSaveAndGetPageStructureUsesCache(t *testing.T) {
	store := newFakeVectorStore()
	svc := NewService(store, sidecar.NewStructureCache(10), &fakeChunkLookup{}, nil)

	_, err := svc.SaveStructure(context.Background(), "doc1", 1, 612, 792, []model.StructureElement{
		{ID: "e1", Bbox: model.BBox{Left: 0, Bottom: 0, Right: 10, Top: 10}},
	}, "v1")
	require.NoError(t, err)

	ps, err := svc.GetPageStructure(context.Background(), "doc1", 1)
	require.NoError(t, err)
	assert.True(t, ps.HasStructure)
}

func TestServiceGetPageStructureNotFound(t *testing.T) {
	store := newFakeVectorStore()
	svc := NewService(store, sidecar.NewStructureCache(10), &fakeChunkLookup{}, nil)

	_, err := svc.GetPageStructure(context.Background(), "docX", 1)
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestServiceGetMarkedUpMarkdownInjectsMarkers(t *testing.T) {
	store := newFakeVectorStore()
	store.markdown["text:doc1"] = "# T\n\nhello world"
	svc := NewService(store, sidecar.NewStructureCache(10), &fakeChunkLookup{}, nil)

	chunks := []model.TextChunk{{ChunkID: "c1", Page: 1, Text: "hello world"}}
	out, err := svc.GetMarkedUpMarkdown(context.Background(), "doc1", chunks)
	require.NoError(t, err)
	assert.Contains(t, out, "CHUNK_START: c1")
}
