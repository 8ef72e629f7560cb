package docparse

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"docintel/internal/config"
	"docintel/internal/model"
)

// ParserClient calls out to the external document-parsing library service:
// build a JSON request, POST with a bounded timeout, and surface non-2xx
// bodies as errors rather than panicking on them.
type ParserClient struct {
	cfg        config.ParserConfig
	httpClient *http.Client
}

// NewParserClient constructs a ParserClient from the resolved configuration.
func NewParserClient(cfg config.ParserConfig) *ParserClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ParserClient{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
}

type parseRequest struct {
	FilePath string `json:"file_path"`
	Format   string `json:"format"`
}

type parsedPage struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
	ImagePNG   string `json:"image_png,omitempty"`  // base64
	ThumbJPEG  string `json:"thumb_jpeg,omitempty"` // base64
}

type parsedChunk struct {
	Page           int     `json:"page"`
	Index          int     `json:"index"`
	Text           string  `json:"text"`
	ElementID      string  `json:"element_id,omitempty"`
	ElementType    string  `json:"element_type,omitempty"`
	SectionHeading string  `json:"section_heading,omitempty"`
	Bbox           *bboxDTO `json:"bbox,omitempty"`
}

type bboxDTO struct {
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
}

type structureElementDTO struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Bbox       bboxDTO `json:"bbox"`
	Text       string  `json:"text"`
	ChunkID    string  `json:"chunk_id,omitempty"`
	Confidence float64 `json:"confidence"`
}

type pageStructureDTO struct {
	Page       int                   `json:"page"`
	PageWidth  float64               `json:"page_width"`
	PageHeight float64               `json:"page_height"`
	Elements   []structureElementDTO `json:"elements"`
}

type parseResponse struct {
	Pages            []parsedPage         `json:"pages"`
	Chunks           []parsedChunk        `json:"chunks"`
	Markdown         string               `json:"markdown"`
	MarkdownError    string               `json:"markdown_error,omitempty"`
	PerPageStructure []pageStructureDTO   `json:"per_page_structure,omitempty"`
	Error            string               `json:"error,omitempty"`
}

// Parse invokes the external parser library for a VISUAL or TEXT_ONLY file.
// Markdown extraction failures are non-fatal: the page list and chunks still
// populate ParsedDoc, with MarkdownError describing the failure.
func (c *ParserClient) Parse(ctx context.Context, filePath, format string) (ParsedDoc, error) {
	reqBody, err := json.Marshal(parseRequest{FilePath: filePath, Format: format})
	if err != nil {
		return ParsedDoc{}, fmt.Errorf("docparse: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ParserEndpoint, bytes.NewReader(reqBody))
	if err != nil {
		return ParsedDoc{}, fmt.Errorf("docparse: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ParsedDoc{}, fmt.Errorf("docparse: call parser: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ParsedDoc{}, fmt.Errorf("docparse: read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return ParsedDoc{}, fmt.Errorf("docparse: parser returned %s: %s", resp.Status, string(raw))
	}

	var parsed parseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ParsedDoc{}, fmt.Errorf("docparse: parse response: %w", err)
	}
	if parsed.Error != "" {
		return ParsedDoc{}, fmt.Errorf("docparse: parser error: %s", parsed.Error)
	}

	return toParsedDoc(parsed), nil
}

func toParsedDoc(p parseResponse) ParsedDoc {
	pages := make([]model.Page, len(p.Pages))
	assets := make([]PageAsset, 0, len(p.Pages))
	for i, pg := range p.Pages {
		pages[i] = model.Page{
			PageNumber: pg.PageNumber,
			Text:       pg.Text,
		}
		if pg.ImagePNG == "" {
			continue
		}
		png, err := base64.StdEncoding.DecodeString(pg.ImagePNG)
		if err != nil {
			continue
		}
		asset := PageAsset{Page: pg.PageNumber, PNG: png}
		if pg.ThumbJPEG != "" {
			if thumb, err := base64.StdEncoding.DecodeString(pg.ThumbJPEG); err == nil {
				asset.ThumbJPEG = thumb
			}
		}
		assets = append(assets, asset)
	}

	chunks := make([]model.TextChunk, len(p.Chunks))
	for i, ch := range p.Chunks {
		var bbox *model.BBox
		if ch.Bbox != nil {
			bbox = &model.BBox{
				Left: ch.Bbox.Left, Bottom: ch.Bbox.Bottom,
				Right: ch.Bbox.Right, Top: ch.Bbox.Top,
			}
		}
		chunks[i] = model.TextChunk{
			Page: ch.Page, Index: ch.Index, Text: ch.Text,
			ElementID: ch.ElementID, ElementType: ch.ElementType,
			SectionHeading: ch.SectionHeading, Bbox: bbox,
		}
	}

	var structure map[int]model.PageStructure
	if len(p.PerPageStructure) > 0 {
		structure = make(map[int]model.PageStructure, len(p.PerPageStructure))
		for _, ps := range p.PerPageStructure {
			elements := make([]model.StructureElement, len(ps.Elements))
			for i, el := range ps.Elements {
				elements[i] = model.StructureElement{
					ID:   el.ID,
					Type: model.StructureElementType(el.Type),
					Bbox: model.BBox{
						Left: el.Bbox.Left, Bottom: el.Bbox.Bottom,
						Right: el.Bbox.Right, Top: el.Bbox.Top,
					},
					Text: el.Text, ChunkID: el.ChunkID,
					Page: ps.Page, Confidence: el.Confidence,
				}
			}
			structure[ps.Page] = model.PageStructure{
				Page: ps.Page, PageWidth: ps.PageWidth, PageHeight: ps.PageHeight,
				Elements: elements, HasStructure: len(elements) > 0,
			}
		}
	}

	return ParsedDoc{
		Pages:            pages,
		PageAssets:       assets,
		Chunks:           chunks,
		Markdown:         p.Markdown,
		MarkdownError:    p.MarkdownError,
		PerPageStructure: structure,
	}
}
