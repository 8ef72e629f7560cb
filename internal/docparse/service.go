package docparse

import (
	"context"
	"fmt"
	"path/filepath"

	"docintel/internal/config"
)

// Service is the Format Router & Parser Adapter entrypoint: it classifies a
// file, recurses through the legacy-office converter when needed, and
// dispatches to the audio extractor or the parser library.
type Service struct {
	parser    *ParserClient
	converter *ConverterClient
	outputDir string
}

// NewService constructs a Service from resolved configuration. outputDir is
// where converted legacy-office files are written.
func NewService(cfg config.ParserConfig, outputDir string) *Service {
	return &Service{
		parser:    NewParserClient(cfg),
		converter: NewConverterClient(cfg),
		outputDir: outputDir,
	}
}

// Route classifies filePath and produces a ParsedDoc, recursing through the
// legacy-office converter (preserving filename/docID of the original) and
// delegating audio files to ExtractAudioMetadata before any ASR stage runs.
func (s *Service) Route(ctx context.Context, filePath, filename string) (ParsedDoc, Pipeline, error) {
	pipeline := Classify(filename)

	switch pipeline {
	case PipelineLegacyOffice:
		docxPath, err := s.converter.Convert(ctx, filePath, s.outputDir)
		if err != nil {
			return ParsedDoc{}, pipeline, fmt.Errorf("docparse: legacy-office conversion: %w", err)
		}
		convertedName := filename[:len(filename)-len(filepath.Ext(filename))] + ".docx"
		doc, _, err := s.Route(ctx, docxPath, convertedName)
		return doc, pipeline, err

	case PipelineAudio:
		meta, _, err := ExtractAudioMetadata(filePath)
		if err != nil {
			return ParsedDoc{}, pipeline, fmt.Errorf("docparse: audio metadata: %w", err)
		}
		return ParsedDoc{AudioMetadata: &meta}, pipeline, nil

	case PipelineVisual, PipelineTextOnly:
		doc, err := s.parser.Parse(ctx, filePath, string(pipeline))
		if err != nil {
			return ParsedDoc{}, pipeline, fmt.Errorf("docparse: parse: %w", err)
		}
		return doc, pipeline, nil

	default:
		return ParsedDoc{}, pipeline, fmt.Errorf("docparse: unsupported format for %q", filename)
	}
}
