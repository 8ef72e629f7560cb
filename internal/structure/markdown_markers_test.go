package structure

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"docintel/internal/model"
)

func TestInjectChunkMarkersWrapsMatchedText(t *testing.T) {
	markdown := "# Title\n\nFirst paragraph text.\n\nSecond paragraph."
	chunks := []model.TextChunk{
		{ChunkID: "c1", Page: 1, Text: "First paragraph text.", Bbox: &model.BBox{Left: 1, Bottom: 2, Right: 3, Top: 4}},
	}
	out := InjectChunkMarkers(markdown, chunks)
	assert.True(t, strings.Contains(out, "<!-- CHUNK_START: c1, PAGE: 1, BBOX: 1,2,3,4 -->"))
	assert.True(t, strings.Contains(out, "<!-- CHUNK_END: c1 -->"))
	assert.True(t, strings.Contains(out, "First paragraph text."))
}

func TestInjectChunkMarkersSkipsUnmatchedChunk(t *testing.T) {
	markdown := "# Title\n\nBody."
	chunks := []model.TextChunk{{ChunkID: "c1", Text: "not present anywhere"}}
	out := InjectChunkMarkers(markdown, chunks)
	assert.Equal(t, markdown, out)
}

func TestInjectChunkMarkersWithoutBbox(t *testing.T) {
	markdown := "Body text here."
	chunks := []model.TextChunk{{ChunkID: "c1", Page: 2, Text: "Body text here."}}
	out := InjectChunkMarkers(markdown, chunks)
	assert.True(t, strings.Contains(out, "<!-- CHUNK_START: c1, PAGE: 2 -->"))
}

func TestStripChunkMarkersRemovesBothMarkers(t *testing.T) {
	marked := "# Title\n\n<!-- CHUNK_START: c1, PAGE: 1, BBOX: 1,2,3,4 -->First paragraph text.<!-- CHUNK_END: c1 -->\n\nSecond."
	stripped := StripChunkMarkers(marked)
	assert.Equal(t, "# Title\n\nFirst paragraph text.\n\nSecond.", stripped)
}
