package encoder

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docintel/internal/model"
)

// HTTPBackend calls out to the ColPali-family visual-text encoder and the
// text encoder over HTTP, returning per-token multi-vector tensors.
type HTTPBackend struct {
	visualURL  string
	textURL    string
	httpClient *http.Client
	name       string
}

// NewHTTPBackend constructs a Backend that POSTs to two independent
// endpoints: one for page images, one for chunk/query text.
func NewHTTPBackend(visualURL, textURL string, timeout time.Duration) *HTTPBackend {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPBackend{
		visualURL:  visualURL,
		textURL:    textURL,
		httpClient: &http.Client{Timeout: timeout},
		name:       "http-multivector-encoder",
	}
}

func (b *HTTPBackend) Name() string { return b.name }

type multiVectorReq struct {
	Images []string `json:"images,omitempty"` // base64 PNG
	Texts  []string `json:"texts,omitempty"`
}

type multiVectorResp struct {
	Embeddings [][][]float32 `json:"embeddings"` // one (T,D) matrix per input
	Error      string        `json:"error,omitempty"`
}

func (b *HTTPBackend) EmbedImages(ctx context.Context, images [][]byte) ([]model.MultiVector, error) {
	if len(images) == 0 {
		return nil, nil
	}
	encoded := make([]string, len(images))
	for i, img := range images {
		encoded[i] = base64.StdEncoding.EncodeToString(img)
	}
	return b.call(ctx, b.visualURL, multiVectorReq{Images: encoded})
}

func (b *HTTPBackend) EmbedTexts(ctx context.Context, texts []string) ([]model.MultiVector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return b.call(ctx, b.textURL, multiVectorReq{Texts: texts})
}

func (b *HTTPBackend) call(ctx context.Context, url string, reqBody multiVectorReq) ([]model.MultiVector, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoder: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("encoder: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("encoder: call %s: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("encoder: read response: %w", err)
	}

	if resp.StatusCode == http.StatusInsufficientStorage || isOOMBody(raw) {
		return nil, fmt.Errorf("%w: %s", ErrOutOfMemory, string(raw))
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("encoder: %s returned %s: %s", url, resp.Status, string(raw))
	}

	var parsed multiVectorResp
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("encoder: parse response: %w", err)
	}
	if parsed.Error != "" {
		if isOOMBody([]byte(parsed.Error)) {
			return nil, fmt.Errorf("%w: %s", ErrOutOfMemory, parsed.Error)
		}
		return nil, fmt.Errorf("encoder: %s", parsed.Error)
	}

	out := make([]model.MultiVector, len(parsed.Embeddings))
	for i, mat := range parsed.Embeddings {
		mv := make(model.MultiVector, len(mat))
		for j, row := range mat {
			mv[j] = row
		}
		out[i] = mv
	}
	return out, nil
}

// isOOMBody recognises the textual out-of-memory signal an accelerated
// inference server reports in its body, since HTTP backends have no typed
// exception channel to the caller.
func isOOMBody(body []byte) bool {
	s := strings.ToLower(string(body))
	return strings.Contains(s, "out of memory") || strings.Contains(s, "cuda oom") || strings.Contains(s, "oom")
}
