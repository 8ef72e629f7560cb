package sidecar

import (
	"context"
	"errors"
	"sync"

	"docintel/internal/model"
)

// ErrChunkNotFound is returned when a requested (doc_id, chunk_id) pair is
// not present in the index.
var ErrChunkNotFound = errors.New("sidecar: chunk not found")

// ChunkIndex is the Processor's in-memory record of every TextChunk it has
// produced, keyed by (doc_id, chunk_id): the backing store for
// GET /documents/{doc_id}/chunks/{chunk_id} and for the Search/Research
// engines' chunk previews and prev/next expansion. Durability is not
// required here — a restart simply loses chunk-level lookups for documents
// already completed before the restart, the same tradeoff the structure
// cache makes for page structure.
type ChunkIndex struct {
	mu     sync.RWMutex
	chunks map[string]model.TextChunk
	byDoc  map[string][]string // doc_id -> ordered chunk_ids, for prev/next and preview scans
}

// NewChunkIndex constructs an empty ChunkIndex.
func NewChunkIndex() *ChunkIndex {
	return &ChunkIndex{
		chunks: make(map[string]model.TextChunk),
		byDoc:  make(map[string][]string),
	}
}

func chunkKey(docID, chunkID string) string { return docID + ":" + chunkID }

// IndexChunks records every chunk of docID, replacing any prior entries for
// that document (re-ingestion of a forced re-upload supersedes the old set).
func (idx *ChunkIndex) IndexChunks(docID string, chunks []model.TextChunk) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, old := range idx.byDoc[docID] {
		delete(idx.chunks, old)
	}
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		idx.chunks[chunkKey(docID, c.ChunkID)] = c
		ids = append(ids, c.ChunkID)
	}
	idx.byDoc[docID] = ids
}

// GetChunk implements structure.ChunkLookup.
func (idx *ChunkIndex) GetChunk(_ context.Context, docID, chunkID string) (model.TextChunk, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	c, ok := idx.chunks[chunkKey(docID, chunkID)]
	if !ok {
		return model.TextChunk{}, ErrChunkNotFound
	}
	return c, nil
}

// ListByDoc returns every indexed chunk for docID in ingestion order.
func (idx *ChunkIndex) ListByDoc(docID string) []model.TextChunk {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := idx.byDoc[docID]
	out := make([]model.TextChunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := idx.chunks[chunkKey(docID, id)]; ok {
			out = append(out, c)
		}
	}
	return out
}

// DeleteDocument drops every chunk belonging to docID, called by the Delete
// Coordinator's markdown/temp-state purge stage.
func (idx *ChunkIndex) DeleteDocument(docID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, id := range idx.byDoc[docID] {
		delete(idx.chunks, chunkKey(docID, id))
	}
	delete(idx.byDoc, docID)
}
