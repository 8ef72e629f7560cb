// Package structure is the Structure & Bbox Service: it validates per-page
// layout elements, maps chunks to the elements (or element unions) that
// produced them, and serves the structure, chunk, and marked-up markdown
// views the HTTP API exposes.
package structure

import (
	"strings"

	"docintel/internal/model"
	"docintel/internal/sidecar"
)

// FilterValidElements drops elements whose bbox is inverted or falls
// outside the page bounds, per spec §4.10.
func FilterValidElements(elements []model.StructureElement, pageWidth, pageHeight float64) []model.StructureElement {
	out := make([]model.StructureElement, 0, len(elements))
	for _, el := range elements {
		if el.Bbox.Valid(pageWidth, pageHeight) {
			out = append(out, el)
		}
	}
	return out
}

// elementIDSeparator joins multiple source element ids on TextChunk.ElementID
// when a chunk spans more than one layout element.
const elementIDSeparator = ","

// ResolveChunkBBox looks up chunk's source element(s) by id and returns the
// bbox it should carry: a single element's bbox, or the tightest enclosing
// rectangle when the chunk spans several (spec §4.10).
func ResolveChunkBBox(chunk model.TextChunk, elementsByID map[string]model.StructureElement) (*model.BBox, bool) {
	if chunk.ElementID == "" {
		return nil, false
	}
	ids := strings.Split(chunk.ElementID, elementIDSeparator)

	var union model.BBox
	found := false
	for _, id := range ids {
		el, ok := elementsByID[strings.TrimSpace(id)]
		if !ok {
			continue
		}
		if !found {
			union = el.Bbox
			found = true
			continue
		}
		union = union.Union(el.Bbox)
	}
	if !found {
		return nil, false
	}
	return &union, true
}

// AssignChunkBBoxes resolves and attaches bboxes to every chunk in place,
// given the page's validated elements.
func AssignChunkBBoxes(chunks []model.TextChunk, elements []model.StructureElement) []model.TextChunk {
	byID := make(map[string]model.StructureElement, len(elements))
	for _, el := range elements {
		byID[el.ID] = el
	}
	out := make([]model.TextChunk, len(chunks))
	for i, ch := range chunks {
		if bbox, ok := ResolveChunkBBox(ch, byID); ok {
			ch.Bbox = bbox
		}
		out[i] = ch
	}
	return out
}

// BuildPageStructure validates raw elements against the page's bounds and
// assembles the served PageStructure payload.
func BuildPageStructure(page int, pageWidth, pageHeight float64, rawElements []model.StructureElement, metadataVersion string) model.PageStructure {
	valid := FilterValidElements(rawElements, pageWidth, pageHeight)
	return model.PageStructure{
		Page:            page,
		PageWidth:       pageWidth,
		PageHeight:      pageHeight,
		Elements:        valid,
		MetadataVersion: metadataVersion,
		HasStructure:    len(valid) > 0,
	}
}

// ErrChunkNotFound is returned when a requested chunk id does not exist.
var ErrChunkNotFound = sidecar.ErrChunkNotFound
