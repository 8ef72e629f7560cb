// Package docparse is the Format Router & Parser Adapter: it classifies an
// uploaded file by extension, dispatches to the legacy-office converter, the
// audio metadata extractor, or the external parser library, and normalises
// the result into a ParsedDoc.
package docparse

import (
	"path/filepath"
	"strings"

	"docintel/internal/model"
)

// Pipeline is the embedding pipeline a document's format routes to.
type Pipeline string

const (
	PipelineVisual       Pipeline = "visual"
	PipelineTextOnly     Pipeline = "text_only"
	PipelineAudio        Pipeline = "audio"
	PipelineLegacyOffice Pipeline = "legacy_office"
	PipelineUnsupported  Pipeline = "unsupported"
)

var visualExt = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true,
	".tiff": true, ".tif": true, ".bmp": true, ".webp": true,
}

var textOnlyExt = map[string]bool{
	".docx": true, ".xlsx": true, ".pptx": true, ".md": true,
	".html": true, ".htm": true, ".xhtml": true, ".adoc": true,
	".asciidoc": true, ".csv": true, ".xml": true, ".json": true, ".vtt": true,
}

var audioExt = map[string]bool{
	".mp3": true, ".wav": true,
}

var legacyOfficeExt = map[string]bool{
	".doc": true, ".dot": true,
}

// Classify maps a filename's extension to the pipeline that handles it.
func Classify(filename string) Pipeline {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case visualExt[ext]:
		return PipelineVisual
	case textOnlyExt[ext]:
		return PipelineTextOnly
	case audioExt[ext]:
		return PipelineAudio
	case legacyOfficeExt[ext]:
		return PipelineLegacyOffice
	default:
		return PipelineUnsupported
	}
}

// PageAsset is a page rendering the Processor must persist through the
// Asset & Markdown Sidecar Store before storage, per spec §4.5: "for VISUAL
// formats, writes page images before enqueuing storage calls".
type PageAsset struct {
	Page      int
	PNG       []byte
	ThumbJPEG []byte
}

// ParsedDoc is the normalised output of the Format Router & Parser Adapter,
// consumed by the Processor (internal/ingest) to drive embedding and storage.
type ParsedDoc struct {
	Pages            []model.Page
	PageAssets       []PageAsset
	Chunks           []model.TextChunk
	Markdown         string
	MarkdownError    string
	PerPageStructure map[int]model.PageStructure
	AudioMetadata    *model.AudioMetadata
}
