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

func TestServiceRouteLegacyOfficeRecursesToParser(t *testing.T) {
	var parseCalls []parseRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/convert":
			_ = json.NewEncoder(w).Encode(convertResponse{DocxPath: "/tmp/out/report.docx"})
		case "/parse":
			var req parseRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			parseCalls = append(parseCalls, req)
			_ = json.NewEncoder(w).Encode(parseResponse{
				Pages: []parsedPage{{PageNumber: 1, Text: "converted body"}},
			})
		}
	}))
	defer srv.Close()

	svc := NewService(config.ParserConfig{
		ParserEndpoint:    srv.URL + "/parse",
		ConverterEndpoint: srv.URL + "/convert",
	}, "/tmp/out")

	doc, pipeline, err := svc.Route(context.Background(), "/tmp/report.doc", "report.doc")
	require.NoError(t, err)
	assert.Equal(t, PipelineLegacyOffice, pipeline)
	require.Len(t, parseCalls, 1)
	assert.Equal(t, "/tmp/out/report.docx", parseCalls[0].FilePath)
	assert.Equal(t, "text_only", parseCalls[0].Format)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, "converted body", doc.Pages[0].Text)
}

func TestServiceRouteUnsupportedExtension(t *testing.T) {
	svc := NewService(config.ParserConfig{}, "/tmp")
	_, pipeline, err := svc.Route(context.Background(), "/tmp/archive.zip", "archive.zip")
	assert.Equal(t, PipelineUnsupported, pipeline)
	assert.Error(t, err)
}
