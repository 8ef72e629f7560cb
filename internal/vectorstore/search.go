package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// Candidate is one ANN result from Stage 1 of the Search Engine, identified
// by its original (pre-UUID-mapping) embedding id.
type Candidate struct {
	EmbeddingID string
	Score       float32
	Metadata    map[string]string
}

// Query runs an ANN search over col's pooled vectors, filtered by an
// optional set of exact-match metadata constraints. Returns up to topK
// candidates; full late-interaction rescoring is the Search Engine's job.
func (c *Client) Query(ctx context.Context, col Collection, queryVector []float32, topK uint64, where map[string]string) ([]Candidate, error) {
	conds := make([]*qdrant.Condition, 0, len(where))
	for k, v := range where {
		conds = append(conds, qdrant.NewMatch(k, v))
	}
	filter := &qdrant.Filter{
		Must:    conds,
		MustNot: []*qdrant.Condition{excludeStructureFilter()},
	}

	withPayload := true
	resp, err := c.qc.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.collection[col],
		Query:          qdrant.NewQuery(queryVector...),
		Filter:         filter,
		Limit:          &topK,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: withPayload}},
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query %s: %w", c.collection[col], err)
	}

	out := make([]Candidate, 0, len(resp))
	for _, p := range resp {
		meta := make(map[string]string, len(p.Payload))
		var embeddingID string
		for k, v := range p.Payload {
			if k == payloadVectorsField {
				continue
			}
			s := v.GetStringValue()
			meta[k] = s
			if k == payloadIDField {
				embeddingID = s
			}
		}
		out = append(out, Candidate{EmbeddingID: embeddingID, Score: p.Score, Metadata: meta})
	}
	return out, nil
}

// DeleteByDocID removes every point in col whose doc_id metadata matches
// docID, returning the number of points removed.
func (c *Client) DeleteByDocID(ctx context.Context, col Collection, docID string) (int, error) {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch(payloadDocIDField, docID)}}

	count, err := c.countByFilter(ctx, col, filter)
	if err != nil {
		return 0, err
	}

	wait := true
	_, err = c.qc.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: c.collection[col],
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
		Wait: &wait,
	})
	if err != nil {
		return 0, fmt.Errorf("vectorstore: delete doc %s from %s: %w", docID, c.collection[col], err)
	}
	return count, nil
}

func (c *Client) countByFilter(ctx context.Context, col Collection, filter *qdrant.Filter) (int, error) {
	exact := true
	resp, err := c.qc.Count(ctx, &qdrant.CountPoints{
		CollectionName: c.collection[col],
		Filter:         filter,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("vectorstore: count %s: %w", c.collection[col], err)
	}
	return int(resp), nil
}

// payloadMarkdownField and payloadMarkdownCompressionField carry the
// document's full markdown export (inline or gzip+base64) on one point's
// metadata, per the Asset & Markdown Sidecar Store's inline/compressed
// policy (internal/sidecar.EncodeMarkdown).
const payloadMarkdownField = "full_markdown"
const payloadMarkdownCompressionField = "full_markdown_compression"

// GetDocumentMarkdown scans col for any point carrying docID's full_markdown
// metadata and returns the body plus its compression tag. The Processor
// writes the markdown only into this vector-store metadata; the registry's
// Document record does not carry it.
func (c *Client) GetDocumentMarkdown(ctx context.Context, col Collection, docID string) (body string, compression string, found bool, err error) {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch(payloadDocIDField, docID)}}
	limit := uint32(1)
	withPayload := true
	points, err := c.qc.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: c.collection[col],
		Filter:         filter,
		Limit:          &limit,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: withPayload}},
	})
	if err != nil {
		return "", "", false, fmt.Errorf("vectorstore: scroll %s for doc %s: %w", c.collection[col], docID, err)
	}
	if len(points) == 0 {
		return "", "", false, nil
	}
	meta := make(map[string]string, len(points[0].Payload))
	for k, v := range points[0].Payload {
		meta[k] = v.GetStringValue()
	}
	v, ok := meta[payloadMarkdownField]
	if !ok {
		return "", "", false, nil
	}
	return v, meta[payloadMarkdownCompressionField], true, nil
}
