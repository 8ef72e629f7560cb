package docparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"docintel/internal/config"
)

// ConverterClient talks to the legacy-office converter: it takes a .doc/.dot
// path and returns the path to an equivalent .docx, so the router can
// re-enter classification and fall through to the TEXT_ONLY pipeline.
type ConverterClient struct {
	cfg        config.ParserConfig
	httpClient *http.Client
}

// NewConverterClient constructs a ConverterClient sharing the parser's timeout.
func NewConverterClient(cfg config.ParserConfig) *ConverterClient {
	return &ConverterClient{cfg: cfg, httpClient: NewParserClient(cfg).httpClient}
}

type convertRequest struct {
	FilePath  string `json:"file_path"`
	OutputDir string `json:"output_dir"`
}

type convertResponse struct {
	DocxPath string `json:"docx_path"`
	Error    string `json:"error,omitempty"`
}

// Convert requests a legacy .doc/.dot be converted to .docx, returning the
// path of the converted file. The caller re-enters Classify/Parse with it,
// preserving the original filename and doc_id per spec §4.3.
func (c *ConverterClient) Convert(ctx context.Context, filePath, outputDir string) (string, error) {
	reqBody, err := json.Marshal(convertRequest{FilePath: filePath, OutputDir: outputDir})
	if err != nil {
		return "", fmt.Errorf("docparse: marshal convert request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ConverterEndpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("docparse: build convert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("docparse: call converter: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("docparse: read convert response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("docparse: converter returned %s: %s", resp.Status, string(raw))
	}

	var parsed convertResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("docparse: parse convert response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("docparse: converter error: %s", parsed.Error)
	}
	if parsed.DocxPath == "" {
		return "", fmt.Errorf("docparse: converter returned empty docx_path")
	}
	return parsed.DocxPath, nil
}
