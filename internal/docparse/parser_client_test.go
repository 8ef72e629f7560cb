package docparse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docintel/internal/config"
)

func TestParserClientParseSuccess(t *testing.T) {
	var gotReq parseRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(parseResponse{
			Pages: []parsedPage{{PageNumber: 1, Text: "hello"}},
			Chunks: []parsedChunk{
				{Page: 1, Index: 0, Text: "hello", Bbox: &bboxDTO{Left: 0, Bottom: 0, Right: 10, Top: 10}},
			},
			Markdown: "# hello",
			PerPageStructure: []pageStructureDTO{
				{Page: 1, PageWidth: 612, PageHeight: 792, Elements: []structureElementDTO{
					{ID: "e1", Type: "heading", Bbox: bboxDTO{Left: 0, Bottom: 0, Right: 10, Top: 10}, Text: "hello", Confidence: 0.9},
				}},
			},
		})
	}))
	defer srv.Close()

	client := NewParserClient(config.ParserConfig{ParserEndpoint: srv.URL})
	doc, err := client.Parse(context.Background(), "/tmp/file.pdf", "visual")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/file.pdf", gotReq.FilePath)
	assert.Equal(t, "visual", gotReq.Format)
	assert.Len(t, doc.Pages, 1)
	assert.Equal(t, "hello", doc.Pages[0].Text)
	assert.Equal(t, "# hello", doc.Markdown)
	require.Len(t, doc.Chunks, 1)
	require.NotNil(t, doc.Chunks[0].Bbox)
	assert.True(t, doc.Chunks[0].Bbox.Valid(612, 792))
	require.Contains(t, doc.PerPageStructure, 1)
	assert.Len(t, doc.PerPageStructure[1].Elements, 1)
}

func TestParserClientMarkdownErrorNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(parseResponse{
			Pages:         []parsedPage{{PageNumber: 1, Text: "body"}},
			MarkdownError: "export timed out",
		})
	}))
	defer srv.Close()

	client := NewParserClient(config.ParserConfig{ParserEndpoint: srv.URL})
	doc, err := client.Parse(context.Background(), "/tmp/file.pdf", "visual")
	require.NoError(t, err)
	assert.Len(t, doc.Pages, 1)
	assert.Equal(t, "export timed out", doc.MarkdownError)
}

func TestParserClientErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"parser crashed"}`))
	}))
	defer srv.Close()

	client := NewParserClient(config.ParserConfig{ParserEndpoint: srv.URL})
	_, err := client.Parse(context.Background(), "/tmp/file.pdf", "visual")
	assert.Error(t, err)
}
