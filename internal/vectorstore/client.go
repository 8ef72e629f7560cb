// Package vectorstore is the Vector Store Client: two logical Qdrant
// collections ("visual" and "text"), addressed by deterministic ids, with
// multi-vector payloads mean-pooled for ANN search and gzip-compressed for
// late-interaction rescoring.
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"docintel/internal/config"
	"docintel/internal/model"
)

// ErrCorrupted is returned when a stored multi-vector payload cannot be
// decoded; per spec §4.2 this is fatal to the read, logged with the
// embedding_id, but never fatal to the document as a whole.
var ErrCorrupted = errors.New("vectorstore: corrupted embedding payload")

// ErrNotFound is returned by Get when embedding_id does not exist.
var ErrNotFound = errors.New("vectorstore: embedding not found")

// payloadIDField mirrors the reference system's "_original_id" payload key:
// Qdrant only accepts UUID or integer point ids, so arbitrary string
// embedding_ids are mapped to a deterministic UUID and the original id is
// retained in the payload for lookups and deletes.
const payloadIDField = "_original_id"
const payloadVectorsField = "_vectors_gz"
const payloadDocIDField = "doc_id"
const payloadPageField = "page"

// Collection names the two logical collections this client manages.
type Collection string

const (
	CollectionVisual Collection = "visual"
	CollectionText   Collection = "text"
)

// Client is the Vector Store Client, wrapping one Qdrant connection shared
// by both collections.
type Client struct {
	qc         *qdrant.Client
	collection map[Collection]string
	dims       map[Collection]int
}

// New connects to Qdrant and ensures both collections exist with the
// configured dimensionality.
func New(ctx context.Context, cfg config.QdrantConfig) (*Client, error) {
	host, port, useTLS, apiKey, err := parseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: %w", err)
	}
	qc, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		UseTLS: useTLS,
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: connect qdrant: %w", err)
	}

	c := &Client{
		qc: qc,
		collection: map[Collection]string{
			CollectionVisual: cfg.VisualCollection,
			CollectionText:   cfg.TextCollection,
		},
		dims: map[Collection]int{
			CollectionVisual: cfg.VisualDim,
			CollectionText:   cfg.TextDim,
		},
	}
	for _, col := range []Collection{CollectionVisual, CollectionText} {
		if err := c.ensureCollection(ctx, col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Client) ensureCollection(ctx context.Context, col Collection) error {
	name := c.collection[col]
	exists, err := c.qc.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("vectorstore: check collection %s: %w", name, err)
	}
	if exists {
		return nil
	}
	dim := uint64(c.dims[col])
	err = c.qc.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dim,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: create collection %s: %w", name, err)
	}
	return nil
}

// pointUUID derives a deterministic UUID for an arbitrary string id, the
// same mapping the reference persistence layer uses since Qdrant rejects
// non-UUID/int point ids.
func pointUUID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

// Upsert stores one embedding's full multi-vector (compressed, for
// late-interaction rescoring) and its mean-pooled form (for ANN), under
// sanitised metadata.
func (c *Client) Upsert(ctx context.Context, col Collection, embeddingID string, vectors model.MultiVector, metadata map[string]any) error {
	blob, err := EncodeMultiVector(vectors)
	if err != nil {
		return fmt.Errorf("vectorstore: encode embedding %s: %w", embeddingID, err)
	}
	pooled := MeanPool(vectors)

	payload := SanitizeMetadata(metadata)
	payload[payloadIDField] = embeddingID

	qpayload := make(map[string]*qdrant.Value, len(payload)+1)
	for k, v := range payload {
		qpayload[k] = qdrant.NewValueString(v)
	}
	qpayload[payloadVectorsField] = qdrant.NewValueString(encodeBase64(blob))

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(pointUUID(embeddingID)),
		Vectors: qdrant.NewVectors(pooled...),
		Payload: qpayload,
	}

	wait := true
	_, err = c.qc.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collection[col],
		Points:         []*qdrant.PointStruct{point},
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: upsert %s: %w", embeddingID, err)
	}
	return nil
}

// Get retrieves and decompresses the full multi-vector and metadata for
// embeddingID. Returns ErrNotFound when absent, ErrCorrupted on a bad blob.
func (c *Client) Get(ctx context.Context, col Collection, embeddingID string) (model.MultiVector, map[string]string, error) {
	withVectors := true
	withPayload := true
	points, err := c.qc.Get(ctx, &qdrant.GetPoints{
		CollectionName: c.collection[col],
		Ids:            []*qdrant.PointId{qdrant.NewID(pointUUID(embeddingID))},
		WithVectors:    &qdrant.WithVectorsSelector{SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: withVectors}},
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: withPayload}},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("vectorstore: get %s: %w", embeddingID, err)
	}
	if len(points) == 0 {
		return nil, nil, ErrNotFound
	}
	return decodePoint(points[0].Payload)
}

func decodePoint(payload map[string]*qdrant.Value) (model.MultiVector, map[string]string, error) {
	meta := make(map[string]string, len(payload))
	var blobB64 string
	for k, v := range payload {
		s := v.GetStringValue()
		if k == payloadVectorsField {
			blobB64 = s
			continue
		}
		meta[k] = s
	}
	if blobB64 == "" {
		return nil, meta, fmt.Errorf("%w: missing vector payload", ErrCorrupted)
	}
	blob, err := decodeBase64(blobB64)
	if err != nil {
		return nil, meta, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	mv, err := DecodeMultiVector(blob)
	if err != nil {
		return nil, meta, err
	}
	return mv, meta, nil
}

// Close releases the underlying Qdrant connection.
func (c *Client) Close() error {
	return c.qc.Close()
}
