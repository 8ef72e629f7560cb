package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"docintel/internal/model"
)

// payloadKindField distinguishes ordinary embedding points from the
// structure sidecar points this file adds to the visual collection; the
// structure cache's durable copy lives alongside the embeddings it
// describes rather than in a separate store.
const payloadKindField = "_kind"
const payloadStructureField = "_structure_json"
const kindStructure = "structure"

func structurePointID(docID string, page int) string {
	return fmt.Sprintf("structure:%s:page:%d", docID, page)
}

// PutPageStructure persists one page's structural decomposition as a
// metadata-only point in the visual collection, keyed so it never collides
// with a real embedding id and is always excluded from ANN queries.
func (c *Client) PutPageStructure(ctx context.Context, docID string, ps model.PageStructure) error {
	blob, err := json.Marshal(ps)
	if err != nil {
		return fmt.Errorf("vectorstore: marshal structure: %w", err)
	}

	id := structurePointID(docID, ps.Page)
	payload := map[string]*qdrant.Value{
		payloadIDField:        qdrant.NewValueString(id),
		payloadKindField:      qdrant.NewValueString(kindStructure),
		payloadDocIDField:     qdrant.NewValueString(docID),
		payloadPageField:      qdrant.NewValueString(fmt.Sprintf("%d", ps.Page)),
		payloadStructureField: qdrant.NewValueString(string(blob)),
	}

	dim := c.dims[CollectionVisual]
	zero := make([]float32, dim)

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(pointUUID(id)),
		Vectors: qdrant.NewVectors(zero...),
		Payload: payload,
	}

	wait := true
	_, err = c.qc.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collection[CollectionVisual],
		Points:         []*qdrant.PointStruct{point},
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: upsert structure %s: %w", id, err)
	}
	return nil
}

// GetPageStructure retrieves one page's structural decomposition.
func (c *Client) GetPageStructure(ctx context.Context, docID string, page int) (model.PageStructure, bool, error) {
	id := structurePointID(docID, page)
	withPayload := true
	points, err := c.qc.Get(ctx, &qdrant.GetPoints{
		CollectionName: c.collection[CollectionVisual],
		Ids:            []*qdrant.PointId{qdrant.NewID(pointUUID(id))},
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: withPayload}},
	})
	if err != nil {
		return model.PageStructure{}, false, fmt.Errorf("vectorstore: get structure %s: %w", id, err)
	}
	if len(points) == 0 {
		return model.PageStructure{}, false, nil
	}
	raw, ok := points[0].Payload[payloadStructureField]
	if !ok {
		return model.PageStructure{}, false, nil
	}
	var ps model.PageStructure
	if err := json.Unmarshal([]byte(raw.GetStringValue()), &ps); err != nil {
		return model.PageStructure{}, false, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return ps, true, nil
}

// excludeStructureFilter returns the must_not condition every ANN query
// applies, so structure sidecar points (zero vectors) never surface as
// search candidates.
func excludeStructureFilter() *qdrant.Condition {
	return qdrant.NewMatch(payloadKindField, kindStructure)
}
