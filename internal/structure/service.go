package structure

import (
	"context"
	"errors"
	"fmt"

	"docintel/internal/model"
	"docintel/internal/registry"
	"docintel/internal/sidecar"
	"docintel/internal/vectorstore"
)

// VectorStore is the subset of *vectorstore.Client the service depends on.
type VectorStore interface {
	PutPageStructure(ctx context.Context, docID string, ps model.PageStructure) error
	GetPageStructure(ctx context.Context, docID string, page int) (model.PageStructure, bool, error)
	GetDocumentMarkdown(ctx context.Context, col vectorstore.Collection, docID string) (body string, compression string, found bool, err error)
}

// ErrPageNotFound is returned when a document has no structure for the
// requested page.
var ErrPageNotFound = errors.New("structure: page not found")

// Service serves the Structure & Bbox Service's read paths: per-page
// structure, per-chunk lookup, and marked-up markdown, backed by the hot
// in-process cache in front of the vector store's durable copy.
type Service struct {
	store   VectorStore
	cache   *sidecar.StructureCache
	chunks  ChunkLookup
	regDocs registry.Store
}

// ChunkLookup resolves a chunk_id to its TextChunk, typically backed by the
// Processor's in-memory index of the document it just ingested, or a
// registry-side chunk table for completed documents.
type ChunkLookup interface {
	GetChunk(ctx context.Context, docID, chunkID string) (model.TextChunk, error)
}

// NewService constructs a Service.
func NewService(store VectorStore, cache *sidecar.StructureCache, chunks ChunkLookup, regDocs registry.Store) *Service {
	return &Service{store: store, cache: cache, chunks: chunks, regDocs: regDocs}
}

// SaveStructure validates and persists one page's structure, populating the
// hot cache at the same time.
func (s *Service) SaveStructure(ctx context.Context, docID string, page int, pageWidth, pageHeight float64, rawElements []model.StructureElement, metadataVersion string) (model.PageStructure, error) {
	ps := BuildPageStructure(page, pageWidth, pageHeight, rawElements, metadataVersion)
	if err := s.store.PutPageStructure(ctx, docID, ps); err != nil {
		return model.PageStructure{}, fmt.Errorf("structure: save page %d: %w", page, err)
	}
	s.cache.Put(sidecar.Key(docID, page), ps)
	return ps, nil
}

// GetPageStructure serves GET /documents/{doc_id}/pages/{page}/structure.
func (s *Service) GetPageStructure(ctx context.Context, docID string, page int) (model.PageStructure, error) {
	key := sidecar.Key(docID, page)
	if ps, ok := s.cache.Get(key); ok {
		return ps, nil
	}
	ps, ok, err := s.store.GetPageStructure(ctx, docID, page)
	if err != nil {
		return model.PageStructure{}, err
	}
	if !ok {
		return model.PageStructure{}, ErrPageNotFound
	}
	s.cache.Put(key, ps)
	return ps, nil
}

// GetChunk serves GET /documents/{doc_id}/chunks/{chunk_id}.
func (s *Service) GetChunk(ctx context.Context, docID, chunkID string) (model.TextChunk, error) {
	return s.chunks.GetChunk(ctx, docID, chunkID)
}

// GetMarkedUpMarkdown serves GET /documents/{doc_id}/markdown: the full
// document markdown with inline chunk markers.
func (s *Service) GetMarkedUpMarkdown(ctx context.Context, docID string, chunks []model.TextChunk) (string, error) {
	raw, compression, ok, err := s.store.GetDocumentMarkdown(ctx, vectorstore.CollectionText, docID)
	if err != nil {
		return "", err
	}
	if !ok {
		raw, compression, ok, err = s.store.GetDocumentMarkdown(ctx, vectorstore.CollectionVisual, docID)
		if err != nil {
			return "", err
		}
	}
	if !ok {
		return "", ErrPageNotFound
	}
	markdown, err := sidecar.DecodeMarkdown(model.FullMarkdown{Body: raw, Compression: model.MarkdownCompression(compression)})
	if err != nil {
		return "", fmt.Errorf("structure: decode markdown: %w", err)
	}
	return InjectChunkMarkers(markdown, chunks), nil
}
