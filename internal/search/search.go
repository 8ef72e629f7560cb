// Package search is the Search Engine (spec §4.8): hybrid retrieval over the
// visual and text vector collections, with ColBERT/ColPali-style
// late-interaction rescoring on top of the cheap ANN candidate pass.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"docintel/internal/model"
	"docintel/internal/vectorstore"
)

// Mode selects the fusion weight between the visual and text collections.
type Mode string

const (
	ModeVisual Mode = "visual"
	ModeText   Mode = "text"
	ModeHybrid Mode = "hybrid"
)

func (m Mode) alpha(override float64) float64 {
	switch m {
	case ModeVisual:
		return 1
	case ModeText:
		return 0
	default:
		if override > 0 {
			return override
		}
		return 0.5
	}
}

const (
	defaultCandidateK = 50
	defaultTopN       = 10
)

// Request is one hybrid search query.
type Request struct {
	Query      string
	Mode       Mode
	Alpha      float64 // hybrid-only override; zero means spec default 0.5
	CandidateK int     // per-collection ANN fan-out width, default 50
	TopN       int     // final result count, default 10
}

// Result is one ranked hit, matching spec §4.8's response shape.
type Result struct {
	DocID    string
	Filename string
	Page     int
	Score    float64
	Type     string // "visual" | "text" | "both"
	Preview  string
	ChunkID  string // set when a text-collection chunk contributed to this hit
}

// QueryEncoder embeds a free-text query into the same multi-vector space as
// indexed pages/chunks.
type QueryEncoder interface {
	EmbedQuery(ctx context.Context, text string) (model.MultiVector, error)
}

// VectorSearcher is the subset of vectorstore.Client the Search Engine uses.
type VectorSearcher interface {
	Query(ctx context.Context, col vectorstore.Collection, queryVector []float32, topK uint64, where map[string]string) ([]vectorstore.Candidate, error)
	Get(ctx context.Context, col vectorstore.Collection, embeddingID string) (model.MultiVector, map[string]string, error)
}

// DocumentLookup resolves a doc_id to its registry record, used to fill in
// filename and to break score ties by upload_ts.
type DocumentLookup interface {
	GetDocument(ctx context.Context, docID string) (model.Document, error)
}

// ChunkLookup resolves a text chunk's body for preview text.
type ChunkLookup interface {
	GetChunk(ctx context.Context, docID, chunkID string) (model.TextChunk, error)
}

// Engine runs the two-stage hybrid search pipeline.
type Engine struct {
	encoder QueryEncoder
	store   VectorSearcher
	docs    DocumentLookup
	chunks  ChunkLookup
}

func New(encoder QueryEncoder, store VectorSearcher, docs DocumentLookup, chunks ChunkLookup) *Engine {
	return &Engine{encoder: encoder, store: store, docs: docs, chunks: chunks}
}

// fusedHit is one (doc_id, page) bucket accumulated from both collections
// during fusion, before ordering and truncation to the final result count.
type fusedHit struct {
	docID, page        string
	pageNum            int
	score              float64
	hasVisual, hasText bool
	bestChunkID        string
	bestChunkWeight    float64
}

// scored is one rescored candidate before the (doc_id, page) dedup pass.
type scored struct {
	col         vectorstore.Collection
	embeddingID string
	docID       string
	page        int
	chunkID     string
	raw         float64
	norm        float64
}

// Search runs Stage 1 ANN fan-out, Stage 2 late-interaction rescoring,
// alpha-weighted fusion, (doc_id, page) dedup, and stable ordering.
func (e *Engine) Search(ctx context.Context, req Request) ([]Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("search: query must not be empty")
	}
	candidateK := req.CandidateK
	if candidateK <= 0 {
		candidateK = defaultCandidateK
	}
	topN := req.TopN
	if topN <= 0 {
		topN = defaultTopN
	}
	alpha := req.Mode.alpha(req.Alpha)

	queryMV, err := e.encoder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}
	queryVec := vectorstore.MeanPool(queryMV)

	var visual, text []scored
	g, gctx := errgroup.WithContext(ctx)
	if alpha > 0 {
		g.Go(func() error {
			s, err := e.rescoreCollection(gctx, vectorstore.CollectionVisual, queryVec, queryMV, uint64(candidateK))
			if err != nil {
				return err
			}
			visual = s
			return nil
		})
	}
	if alpha < 1 {
		g.Go(func() error {
			s, err := e.rescoreCollection(gctx, vectorstore.CollectionText, queryVec, queryMV, uint64(candidateK))
			if err != nil {
				return err
			}
			text = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	normalize(visual)
	normalize(text)

	byPage := make(map[string]*fusedHit)
	upsert := func(docID string, page int, weighted float64, isText bool, chunkID string) {
		key := docID + ":" + fmt.Sprint(page)
		h, ok := byPage[key]
		if !ok {
			h = &fusedHit{docID: docID, page: key, pageNum: page}
			byPage[key] = h
		}
		if isText {
			h.hasText = true
			if chunkID != "" && (h.bestChunkID == "" || weighted > h.bestChunkWeight) {
				h.bestChunkID = chunkID
				h.bestChunkWeight = weighted
			}
		} else {
			h.hasVisual = true
		}
		h.score += weighted
	}
	for _, c := range visual {
		upsert(c.docID, c.page, alpha*c.norm, false, "")
	}
	for _, c := range text {
		upsert(c.docID, c.page, (1-alpha)*c.norm, true, c.chunkID)
	}

	hits := make([]*fusedHit, 0, len(byPage))
	for _, h := range byPage {
		hits = append(hits, h)
	}

	uploadTS := e.uploadTimestamps(ctx, hits)

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		ti, tj := uploadTS[hits[i].docID], uploadTS[hits[j].docID]
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return hits[i].pageNum < hits[j].pageNum
	})
	if len(hits) > topN {
		hits = hits[:topN]
	}

	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		typ := "both"
		switch {
		case h.hasVisual && !h.hasText:
			typ = "visual"
		case h.hasText && !h.hasVisual:
			typ = "text"
		}
		out = append(out, Result{
			DocID:    h.docID,
			Filename: e.filenameOf(h.docID),
			Page:     h.pageNum,
			Score:    h.score,
			Type:     typ,
			Preview:  e.previewFor(ctx, h.docID, h.bestChunkID),
			ChunkID:  h.bestChunkID,
		})
	}
	return out, nil
}

func (e *Engine) rescoreCollection(ctx context.Context, col vectorstore.Collection, queryVec []float32, queryMV model.MultiVector, topK uint64) ([]scored, error) {
	candidates, err := e.store.Query(ctx, col, queryVec, topK, nil)
	if err != nil {
		return nil, fmt.Errorf("search: query %s: %w", col, err)
	}

	out := make([]scored, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			docMV, _, err := e.store.Get(gctx, col, cand.EmbeddingID)
			if err != nil {
				return fmt.Errorf("search: fetch multivector %s: %w", cand.EmbeddingID, err)
			}
			page, _ := parseInt(cand.Metadata["page"])
			out[i] = scored{
				col: col, embeddingID: cand.EmbeddingID, docID: cand.Metadata["doc_id"],
				page: page, chunkID: cand.Metadata["chunk_id"],
				raw: vectorstore.SumOfMax(queryMV, docMV),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// normalize applies spec §4.8's per-collection min-max normalization in
// place. A single-candidate (or empty) set normalizes to 1.0, since there is
// no spread to measure.
func normalize(items []scored) {
	if len(items) == 0 {
		return
	}
	min, max := items[0].raw, items[0].raw
	for _, it := range items[1:] {
		if it.raw < min {
			min = it.raw
		}
		if it.raw > max {
			max = it.raw
		}
	}
	spread := max - min
	for i := range items {
		if spread <= 0 {
			items[i].norm = 1
			continue
		}
		items[i].norm = (items[i].raw - min) / spread
	}
}

func (e *Engine) filenameOf(docID string) string {
	if e.docs == nil {
		return ""
	}
	doc, err := e.docs.GetDocument(context.Background(), docID)
	if err != nil {
		return ""
	}
	return doc.Filename
}

func (e *Engine) uploadTimestamps(ctx context.Context, hits []*fusedHit) map[string]time.Time {
	out := make(map[string]time.Time)
	if e.docs == nil {
		return out
	}
	seen := make(map[string]struct{})
	for _, h := range hits {
		if _, ok := seen[h.docID]; ok {
			continue
		}
		seen[h.docID] = struct{}{}
		if doc, err := e.docs.GetDocument(ctx, h.docID); err == nil {
			out[h.docID] = doc.UploadTS
		}
	}
	return out
}

func (e *Engine) previewFor(ctx context.Context, docID, chunkID string) string {
	if chunkID == "" || e.chunks == nil {
		return ""
	}
	chunk, err := e.chunks.GetChunk(ctx, docID, chunkID)
	if err != nil {
		return ""
	}
	return truncate(chunk.Text, 280)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func parseInt(s string) (int, bool) {
	n := 0
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
