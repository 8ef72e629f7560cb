package structure

import (
	"fmt"
	"regexp"
	"strings"

	"docintel/internal/model"
)

var chunkMarkerRe = regexp.MustCompile(`<!-- CHUNK_(START|END):[^>]*-->`)

// StripChunkMarkers removes markers previously added by InjectChunkMarkers,
// for the `include_markers=false` case of GET /documents/{doc_id}/markdown.
func StripChunkMarkers(markdown string) string {
	return chunkMarkerRe.ReplaceAllString(markdown, "")
}

// InjectChunkMarkers wraps each chunk's text span in markdown with an
// invisible HTML-comment marker pair, per spec §4.10:
//
//	<!-- CHUNK_START: id, PAGE: n, BBOX: l,b,r,t -->...<!-- CHUNK_END: id -->
//
// Matching is best-effort: a chunk whose text cannot be located verbatim in
// markdown (the parser's markdown export and chunker do not always agree on
// exact whitespace) is left unmarked rather than corrupting the document.
func InjectChunkMarkers(markdown string, chunks []model.TextChunk) string {
	out := markdown
	for _, chunk := range chunks {
		if chunk.Text == "" {
			continue
		}
		idx := strings.Index(out, chunk.Text)
		if idx < 0 {
			continue
		}
		start := markerStart(chunk)
		end := fmt.Sprintf("<!-- CHUNK_END: %s -->", chunk.ChunkID)
		out = out[:idx] + start + chunk.Text + end + out[idx+len(chunk.Text):]
	}
	return out
}

func markerStart(chunk model.TextChunk) string {
	if chunk.Bbox == nil {
		return fmt.Sprintf("<!-- CHUNK_START: %s, PAGE: %d -->", chunk.ChunkID, chunk.Page)
	}
	b := chunk.Bbox
	return fmt.Sprintf("<!-- CHUNK_START: %s, PAGE: %d, BBOX: %g,%g,%g,%g -->",
		chunk.ChunkID, chunk.Page, b.Left, b.Bottom, b.Right, b.Top)
}
