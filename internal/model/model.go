// Package model defines the entities shared across the ingestion pipeline
// and the search/research engines.
package model

import "time"

// FormatType classifies a document by how it is embedded.
type FormatType string

const (
	FormatVisual FormatType = "visual"
	FormatText   FormatType = "text"
	FormatAudio  FormatType = "audio"
)

// DocumentStatus tracks a Document through the ingestion pipeline.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// MarkdownCompression tags how FullMarkdown.Body is encoded.
type MarkdownCompression string

const (
	MarkdownNone      MarkdownCompression = "none"
	MarkdownGzipBase64 MarkdownCompression = "gzip+base64"
)

// Document is the top-level record for one ingested file.
type Document struct {
	DocID           string
	Filename        string
	SourceKey       string
	Checksum        string
	Format          string
	FormatType      FormatType
	UploadTS        time.Time
	Status          DocumentStatus
	NumPages        int
	HasStructure    bool
	MetadataVersion string
	MarkdownError   string
	Error           string
}

// Page is one rendered/parsed page of a Document.
type Page struct {
	DocID        string
	PageNumber   int
	ImagePath    string
	ThumbPath    string
	Text         string
	StructureRef string
}

// TextChunk is a contiguous span of text used for text embedding and citation.
type TextChunk struct {
	ChunkID        string
	DocID          string
	Page           int
	Index          int
	Text           string
	TokenCount     int
	ElementID      string
	Bbox           *BBox
	ElementType    string
	PrevChunkID    string
	NextChunkID    string
	SectionHeading string
}

// MultiVector is a per-token embedding matrix, shape (T, D).
type MultiVector [][]float32

// VisualEmbedding is the multi-vector embedding of one page image.
type VisualEmbedding struct {
	EmbeddingID string
	DocID       string
	Page        int
	Vectors     MultiVector
}

// TextEmbedding is the multi-vector embedding of one TextChunk.
type TextEmbedding struct {
	EmbeddingID string
	DocID       string
	ChunkID     string
	Page        int
	Vectors     MultiVector
}

// BBox is a bounding box in PDF coordinates: origin bottom-left, y-up, points.
type BBox struct {
	Left   float64
	Bottom float64
	Right  float64
	Top    float64
}

// Valid reports whether b satisfies the ordering and page-bound invariants.
func (b BBox) Valid(pageWidth, pageHeight float64) bool {
	if b.Left >= b.Right || b.Bottom >= b.Top {
		return false
	}
	if b.Left < 0 || b.Right > pageWidth {
		return false
	}
	if b.Bottom < 0 || b.Top > pageHeight {
		return false
	}
	return true
}

// Union returns the tightest enclosing box of b and other.
func (b BBox) Union(other BBox) BBox {
	return BBox{
		Left:   minF(b.Left, other.Left),
		Bottom: minF(b.Bottom, other.Bottom),
		Right:  maxF(b.Right, other.Right),
		Top:    maxF(b.Top, other.Top),
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// StructureElementType enumerates the typed layout elements a page can contain.
type StructureElementType string

const (
	ElementHeading   StructureElementType = "heading"
	ElementParagraph StructureElementType = "paragraph"
	ElementList      StructureElementType = "list"
	ElementTable     StructureElementType = "table"
	ElementFigure    StructureElementType = "figure"
	ElementCode      StructureElementType = "code"
	ElementQuote     StructureElementType = "quote"
	ElementCaption   StructureElementType = "caption"
	ElementFooter    StructureElementType = "footer"
	ElementHeader    StructureElementType = "header"
)

// StructureElement is one typed, bounded layout region of a Page.
type StructureElement struct {
	ID         string
	Type       StructureElementType
	Bbox       BBox
	Text       string
	ChunkID    string
	Page       int
	Confidence float64
}

// PageStructure is the full structural decomposition of one Page.
type PageStructure struct {
	Page            int
	PageWidth       float64
	PageHeight      float64
	Elements        []StructureElement
	MetadataVersion string
	HasStructure    bool
}

// FullMarkdown is the full-document markdown export, inline or compressed.
type FullMarkdown struct {
	Body        string
	Compression MarkdownCompression
}

// AudioMetadata captures ID3 and audio-property fields for format_type=audio.
type AudioMetadata struct {
	DurationS    float64
	BitrateKbps  int
	SampleRateHz int
	Channels     int
	Encoder      string
	Format       string

	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Year        string
	Genre       string
	TrackNumber string
	Composer    string
	Comment     string
	Publisher   string

	AlbumArtPath string
	AlbumArtMime string
	AlbumArtSize int64
}

// JobStage enumerates the Processor state machine's stages.
type JobStage string

const (
	StageQueued           JobStage = "queued"
	StageParsing          JobStage = "parsing"
	StageEmbeddingVisual  JobStage = "embedding_visual"
	StageEmbeddingText    JobStage = "embedding_text"
	StageStoring          JobStage = "storing"
	StageEmittingStructure JobStage = "emitting_structure"
	StageCompleted        JobStage = "completed"
	StageFailed           JobStage = "failed"
	StageCancelled        JobStage = "cancelled"
)

// Job tracks one ingestion task through the queue and processor.
type Job struct {
	JobID       string
	DocID       string
	SourceKey   string
	Stage       JobStage
	Progress    float64
	UpdatedAt   time.Time
	StartedAt   time.Time
	Error       string
	RetryCounts map[JobStage]int
}
