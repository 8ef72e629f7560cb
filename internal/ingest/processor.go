package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"docintel/internal/docparse"
	"docintel/internal/encoder"
	"docintel/internal/model"
	"docintel/internal/registry"
	"docintel/internal/sidecar"
	"docintel/internal/vectorstore"
)

// DocumentStore is the subset of registry.Store the Processor uses to
// record terminal document state.
type DocumentStore interface {
	UpsertDocument(ctx context.Context, doc model.Document) error
}

// Parser is the subset of docparse.Service the Processor depends on.
type Parser interface {
	Route(ctx context.Context, filePath, filename string) (docparse.ParsedDoc, docparse.Pipeline, error)
}

// Encoder is the subset of encoder.Facade the Processor depends on.
type Encoder interface {
	EmbedPages(ctx context.Context, images []encoder.PageImage) ([]model.VisualEmbedding, error)
	EmbedChunks(ctx context.Context, texts []string) ([]model.MultiVector, error)
}

// VectorStore is the subset of vectorstore.Client the Processor writes to.
type VectorStore interface {
	Upsert(ctx context.Context, col vectorstore.Collection, embeddingID string, vectors model.MultiVector, metadata map[string]any) error
	PutPageStructure(ctx context.Context, docID string, ps model.PageStructure) error
}

// AssetStore is the subset of sidecar.AssetStore the Processor writes to.
type AssetStore interface {
	WriteFile(path string, data []byte) error
	PageImagePath(docID string, page int) string
	PageThumbPath(docID string, page int) string
	CoverArtPath(docID, ext string) string
}

// ChunkIndexer records chunks for later lookup by internal/structure's
// ChunkLookup (GET /documents/{doc_id}/chunks/{chunk_id}).
type ChunkIndexer interface {
	IndexChunks(docID string, chunks []model.TextChunk)
}

// Processor drives one document through the ingestion state machine:
// queued -> parsing -> embedding_visual -> embedding_text -> storing ->
// emitting_structure -> completed (or failed from any stage), per spec §4.5.
type Processor struct {
	parser   Parser
	encoder  Encoder
	store    VectorStore
	assets   AssetStore
	chunks   ChunkIndexer
	docs     DocumentStore
	registry *registry.Registry
	sink     ProgressSink

	heartbeat   time.Duration
	pageTimeout time.Duration // per-page budget for everything after parsing, spec §4.6: "default 300s/page"
}

// WithPageTimeout overrides the per-page timeout budget (0 disables it).
func (p *Processor) WithPageTimeout(d time.Duration) *Processor {
	p.pageTimeout = d
	return p
}

// NewProcessor constructs a Processor. heartbeat governs the maximum
// interval between progress events inside long-running stages (spec §4.5:
// "at least every 5 s").
func NewProcessor(parser Parser, enc Encoder, store VectorStore, assets AssetStore, chunks ChunkIndexer, docs DocumentStore, reg *registry.Registry, sink ProgressSink) *Processor {
	if sink == nil {
		sink = NoopSink{}
	}
	return &Processor{
		parser: parser, encoder: enc, store: store, assets: assets,
		chunks: chunks, docs: docs, registry: reg, sink: sink,
		heartbeat: 5 * time.Second, pageTimeout: 300 * time.Second,
	}
}

// Process runs item through every stage, publishing progress events and
// returning the terminal error, if any. It never panics on stage failure:
// a failing stage is recorded on the job's Document and returned.
func (p *Processor) Process(ctx context.Context, item WorkItem) error {
	if item.Cancel.Cancelled() {
		return p.fail(item, model.StageQueued, fmt.Errorf("ingest: cancelled before start"))
	}

	p.emit(item, model.StageParsing, 0.1, "")
	parsed, pipeline, err := p.parser.Route(ctx, item.FilePath, item.Filename)
	if err != nil {
		return p.fail(item, model.StageParsing, err)
	}
	if item.Cancel.Cancelled() {
		return p.fail(item, model.StageParsing, fmt.Errorf("ingest: cancelled"))
	}

	formatType := formatTypeOf(pipeline)

	// Deterministic tie-break for concurrent page processing (spec §4.5):
	// pages always process in ascending page number.
	sort.Slice(parsed.Pages, func(i, j int) bool { return parsed.Pages[i].PageNumber < parsed.Pages[j].PageNumber })
	sort.Slice(parsed.PageAssets, func(i, j int) bool { return parsed.PageAssets[i].Page < parsed.PageAssets[j].Page })

	if p.pageTimeout > 0 {
		pages := len(parsed.Pages)
		if pages < 1 {
			pages = 1
		}
		var cancelDeadline context.CancelFunc
		ctx, cancelDeadline = context.WithTimeout(ctx, p.pageTimeout*time.Duration(pages))
		defer cancelDeadline()
	}

	if formatType == model.FormatVisual {
		if err := p.writePageAssets(item.DocID, &parsed); err != nil {
			return p.fail(item, model.StageParsing, err)
		}
	}

	p.emit(item, model.StageEmbeddingVisual, 0.3, "")
	var visualEmbeddings []model.VisualEmbedding
	if formatType == model.FormatVisual {
		err = p.withHeartbeat(item, model.StageEmbeddingVisual, 0.3, func() error {
			var embedErr error
			visualEmbeddings, embedErr = p.embedVisual(ctx, item.DocID, parsed.PageAssets)
			return embedErr
		})
		if err != nil {
			return p.fail(item, model.StageEmbeddingVisual, err)
		}
	}
	if item.Cancel.Cancelled() {
		return p.fail(item, model.StageEmbeddingVisual, fmt.Errorf("ingest: cancelled"))
	}

	p.emit(item, model.StageEmbeddingText, 0.55, "")
	var textEmbeddings []model.TextEmbedding
	err = p.withHeartbeat(item, model.StageEmbeddingText, 0.55, func() error {
		var embedErr error
		textEmbeddings, embedErr = p.embedText(ctx, item.DocID, parsed.Chunks)
		return embedErr
	})
	if err != nil {
		return p.fail(item, model.StageEmbeddingText, err)
	}
	if item.Cancel.Cancelled() {
		return p.fail(item, model.StageEmbeddingText, fmt.Errorf("ingest: cancelled"))
	}

	p.emit(item, model.StageStoring, 0.8, "")
	if err := p.withHeartbeat(item, model.StageStoring, 0.8, func() error {
		return p.store2(ctx, item.DocID, parsed, visualEmbeddings, textEmbeddings)
	}); err != nil {
		return p.fail(item, model.StageStoring, err)
	}
	if item.Cancel.Cancelled() {
		return p.fail(item, model.StageStoring, fmt.Errorf("ingest: cancelled"))
	}

	p.emit(item, model.StageEmittingStructure, 0.95, "")
	hasStructure, metadataVersion := p.emitStructure(ctx, item.DocID, parsed)

	if p.chunks != nil {
		p.chunks.IndexChunks(item.DocID, parsed.Chunks)
	}

	if p.docs != nil {
		doc := model.Document{
			DocID: item.DocID, Filename: item.Filename, SourceKey: item.SourceKey,
			Checksum: item.Checksum, Format: formatOf(item.Filename), FormatType: formatType,
			UploadTS: time.Now().UTC(), Status: model.StatusCompleted,
			NumPages: len(parsed.Pages), HasStructure: hasStructure,
			MetadataVersion: metadataVersion, MarkdownError: parsed.MarkdownError,
		}
		if err := p.docs.UpsertDocument(ctx, doc); err != nil {
			return p.fail(item, model.StageEmittingStructure, fmt.Errorf("ingest: record document: %w", err))
		}
	}

	p.sink.Publish(Event{
		Type: "processing_complete", JobID: item.JobID, DocID: item.DocID,
		Filename: item.Filename, Status: string(model.StatusCompleted),
		Stage: model.StageCompleted, Progress: 1.0,
		Chunks: len(parsed.Chunks), Pages: len(parsed.Pages),
		FileType: string(formatType),
	})
	if p.registry != nil {
		p.registry.ReleaseJob(item.DocID)
	}
	return nil
}

// writePageAssets persists every page rendering through the Asset &
// Markdown Sidecar Store before any storage call is enqueued (spec §4.5),
// and records the resulting on-disk paths onto the matching model.Page.
func (p *Processor) writePageAssets(docID string, parsed *docparse.ParsedDoc) error {
	pathsByPage := make(map[int][2]string, len(parsed.PageAssets))
	for _, asset := range parsed.PageAssets {
		imgPath := p.assets.PageImagePath(docID, asset.Page)
		if err := p.assets.WriteFile(imgPath, asset.PNG); err != nil {
			return fmt.Errorf("ingest: write page %d image: %w", asset.Page, err)
		}
		thumbPath := ""
		if len(asset.ThumbJPEG) > 0 {
			thumbPath = p.assets.PageThumbPath(docID, asset.Page)
			if err := p.assets.WriteFile(thumbPath, asset.ThumbJPEG); err != nil {
				return fmt.Errorf("ingest: write page %d thumbnail: %w", asset.Page, err)
			}
		}
		pathsByPage[asset.Page] = [2]string{imgPath, thumbPath}
	}
	for i, pg := range parsed.Pages {
		if paths, ok := pathsByPage[pg.PageNumber]; ok {
			parsed.Pages[i].ImagePath = paths[0]
			parsed.Pages[i].ThumbPath = paths[1]
		}
	}
	return nil
}

func (p *Processor) embedVisual(ctx context.Context, docID string, assets []docparse.PageAsset) ([]model.VisualEmbedding, error) {
	if len(assets) == 0 {
		return nil, nil
	}
	images := make([]encoder.PageImage, 0, len(assets))
	for _, a := range assets {
		images = append(images, encoder.PageImage{Page: a.Page, PNG: a.PNG})
	}
	embeddings, err := p.encoder.EmbedPages(ctx, images)
	if err != nil {
		return nil, fmt.Errorf("ingest: embed visual: %w", err)
	}
	for i := range embeddings {
		embeddings[i].DocID = docID
		embeddings[i].EmbeddingID = fmt.Sprintf("%s:visual:%d", docID, embeddings[i].Page)
	}
	return embeddings, nil
}

func (p *Processor) embedText(ctx context.Context, docID string, chunks []model.TextChunk) ([]model.TextEmbedding, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.encoder.EmbedChunks(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ingest: embed text: %w", err)
	}
	out := make([]model.TextEmbedding, len(vectors))
	for i, v := range vectors {
		chunkID := chunks[i].ChunkID
		if chunkID == "" {
			chunkID = fmt.Sprintf("%s:chunk:%d", docID, i)
		}
		out[i] = model.TextEmbedding{
			EmbeddingID: fmt.Sprintf("%s:text:%s", docID, chunkID),
			DocID:       docID,
			ChunkID:     chunkID,
			Page:        chunks[i].Page,
			Vectors:     v,
		}
	}
	return out, nil
}

// store2 writes every embedding to the vector store, attaching the
// document's markdown to each point's metadata (spec §4.5: "sidecar
// redundancy so retrieval can find it from either collection").
func (p *Processor) store2(ctx context.Context, docID string, parsed docparse.ParsedDoc, visual []model.VisualEmbedding, text []model.TextEmbedding) error {
	markdown, err := sidecar.EncodeMarkdown(parsed.Markdown)
	if err != nil {
		// Markdown extraction/encoding failure is non-fatal (spec §7):
		// the document still stores without a markdown sidecar.
		markdown = model.FullMarkdown{}
	}

	for _, ve := range visual {
		meta := map[string]any{
			"doc_id":                     docID,
			"page":                       ve.Page,
			"full_markdown":              markdown.Body,
			"full_markdown_compression":  string(markdown.Compression),
		}
		if err := p.store.Upsert(ctx, vectorstore.CollectionVisual, ve.EmbeddingID, ve.Vectors, meta); err != nil {
			return fmt.Errorf("ingest: store visual embedding %s: %w", ve.EmbeddingID, err)
		}
	}
	for _, te := range text {
		meta := map[string]any{
			"doc_id":                    docID,
			"chunk_id":                  te.ChunkID,
			"page":                      te.Page,
			"full_markdown":             markdown.Body,
			"full_markdown_compression": string(markdown.Compression),
		}
		if err := p.store.Upsert(ctx, vectorstore.CollectionText, te.EmbeddingID, te.Vectors, meta); err != nil {
			return fmt.Errorf("ingest: store text embedding %s: %w", te.EmbeddingID, err)
		}
	}
	return nil
}

// emitStructure persists per-page structure, swallowing extraction failures
// per spec §4.5: "does not fail the job", but flags has_structure=false and
// metadata_version "0.0" when it cannot.
func (p *Processor) emitStructure(ctx context.Context, docID string, parsed docparse.ParsedDoc) (bool, string) {
	if len(parsed.PerPageStructure) == 0 {
		return false, "0.0"
	}
	ok := true
	for _, ps := range parsed.PerPageStructure {
		if err := p.store.PutPageStructure(ctx, docID, ps); err != nil {
			ok = false
		}
	}
	if !ok {
		return false, "0.0"
	}
	return true, "1.0"
}

// withHeartbeat runs fn to completion while re-publishing a progress event
// for stage at least every p.heartbeat (spec §4.5: "at least every 5 s inside
// long-running stages"), so a client watching a slow embed/store call still
// sees liveness between stage transitions instead of a silent gap.
func (p *Processor) withHeartbeat(item WorkItem, stage model.JobStage, progress float64, fn func() error) error {
	if p.heartbeat <= 0 {
		return fn()
	}

	done := make(chan error, 1)
	go func() { done <- fn() }()

	ticker := time.NewTicker(p.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			return err
		case <-ticker.C:
			p.emit(item, stage, progress, "still working")
		}
	}
}

func (p *Processor) emit(item WorkItem, stage model.JobStage, progress float64, message string) {
	p.sink.Publish(Event{
		Type: "processing_update", JobID: item.JobID, DocID: item.DocID,
		Filename: item.Filename, Status: string(model.StatusProcessing),
		Stage: stage, Progress: progress, Message: message,
	})
}

func (p *Processor) fail(item WorkItem, stage model.JobStage, cause error) error {
	p.sink.Publish(Event{
		Type: "processing_error", JobID: item.JobID, DocID: item.DocID,
		Filename: item.Filename, Status: string(model.StatusFailed),
		Stage: stage, Error: cause.Error(),
	})
	if p.docs != nil {
		_ = p.docs.UpsertDocument(context.Background(), model.Document{
			DocID: item.DocID, Filename: item.Filename, SourceKey: item.SourceKey,
			Checksum: item.Checksum, Format: formatOf(item.Filename),
			UploadTS: time.Now().UTC(), Status: model.StatusFailed,
			Error: cause.Error(),
		})
	}
	if p.registry != nil {
		p.registry.ReleaseJob(item.DocID)
	}
	return fmt.Errorf("ingest: stage %s: %w", stage, cause)
}

func formatOf(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

func formatTypeOf(pipeline docparse.Pipeline) model.FormatType {
	switch pipeline {
	case docparse.PipelineVisual:
		return model.FormatVisual
	case docparse.PipelineAudio:
		return model.FormatAudio
	default:
		return model.FormatText
	}
}
