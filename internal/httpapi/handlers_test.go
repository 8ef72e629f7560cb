package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docintel/internal/config"
	"docintel/internal/ingest"
	"docintel/internal/model"
	"docintel/internal/objectstore"
	"docintel/internal/registry"
	"docintel/internal/sidecar"
)

type fakeQueue struct {
	submitted []ingest.WorkItem
	err       error
}

func (f *fakeQueue) Submit(item ingest.WorkItem) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, item)
	return nil
}

func (f *fakeQueue) Depth() int { return len(f.submitted) }

type fakeDeleter struct {
	lastDocID string
	report    ingest.DeleteReport
}

func (f *fakeDeleter) Delete(_ context.Context, docID, sourceKey string) ingest.DeleteReport {
	f.lastDocID = docID
	f.report.DocID = docID
	return f.report
}

type fakePresigner struct{}

func (fakePresigner) PresignPut(_ context.Context, key string, expiry time.Duration, _ string) (string, error) {
	return "https://example.test/put/" + key, nil
}

func (fakePresigner) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	return "https://example.test/get/" + key, nil
}

func newTestServer(t *testing.T) (*Server, *registry.Registry, *fakeQueue, *fakeDeleter, *objectstore.MemoryStore) {
	t.Helper()
	reg := registry.New(registry.NewMemoryStore())
	assets, err := sidecar.NewAssetStore(t.TempDir())
	require.NoError(t, err)
	queue := &fakeQueue{}
	del := &fakeDeleter{}
	objects := objectstore.NewMemoryStore()

	srv := NewServer(Deps{
		Config:    config.Config{},
		Registry:  reg,
		Queue:     queue,
		Deleter:   del,
		Assets:    assets,
		Chunks:    sidecar.NewChunkIndex(),
		Objects:   objects,
		Presigner: fakePresigner{},
	})
	return srv, reg, queue, del, objects
}

func TestHandleHealth(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "unavailable", body["vector_db"])
}

func TestHandleGetDocumentNotFound(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/documents/"+strings.Repeat("a", 64), nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetDocumentRejectsBadDocID(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/documents/not-hex!", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetDocumentFound(t *testing.T) {
	srv, reg, _, _, _ := newTestServer(t)
	docID := strings.Repeat("b", 64)
	require.NoError(t, reg.Store().UpsertDocument(context.Background(), model.Document{DocID: docID, Filename: "a.pdf", Status: model.StatusCompleted}))

	req := httptest.NewRequest(http.MethodGet, "/documents/"+docID, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	var doc model.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "a.pdf", doc.Filename)
}

func TestHandleDeleteDocument(t *testing.T) {
	srv, reg, _, del, _ := newTestServer(t)
	docID := strings.Repeat("c", 64)
	require.NoError(t, reg.Store().UpsertDocument(context.Background(), model.Document{DocID: docID, SourceKey: "uploads/c/a.pdf"}))

	req := httptest.NewRequest(http.MethodDelete, "/documents/"+docID, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, docID, del.lastDocID)
}

func TestHandlePageStructureNoVectorStoreReturnsHasStructureFalse(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	docID := strings.Repeat("d", 64)
	req := httptest.NewRequest(http.MethodGet, "/documents/"+docID+"/pages/1/structure", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	var ps model.PageStructure
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ps))
	assert.False(t, ps.HasStructure)
}

func TestHandleGetChunkNotFound(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	docID := strings.Repeat("e", 64)
	req := httptest.NewRequest(http.MethodGet, "/documents/"+docID+"/chunks/missing", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleUploadPresign(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	body, _ := json.Marshal(uploadPresignRequest{Filename: "report.pdf", ContentType: "application/pdf", Size: 100})
	req := httptest.NewRequest(http.MethodPost, "/upload/presign", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["uploadUrl"], "report.pdf")
	assert.NotEmpty(t, resp["docId"])
}

func TestHandleAssetPresignRejectsPathOutsideUploads(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)
	body, _ := json.Marshal(assetPresignRequest{Bucket: "b", Key: "other/secret.txt"})
	req := httptest.NewRequest(http.MethodPost, "/assets/presign", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandleS3EventEnqueuesCreatedObject(t *testing.T) {
	srv, _, queue, _, objects := newTestServer(t)
	_, err := objects.Put(context.Background(), "uploads/doc1/report.pdf", strings.NewReader("hello"), objectstore.PutOptions{ContentType: "application/pdf"})
	require.NoError(t, err)

	payload := `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"bucket"},"object":{"key":"uploads/doc1/report.pdf","size":5,"eTag":"abc123"}}}]}`
	req := httptest.NewRequest(http.MethodPost, "/s3-event", strings.NewReader(payload))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["events_processed"])
	require.Len(t, queue.submitted, 1)
	assert.Equal(t, "report.pdf", queue.submitted[0].Filename)
}

func TestHandleS3EventSkipsRemovalWithoutChecksum(t *testing.T) {
	srv, _, _, del, _ := newTestServer(t)
	payload := `{"Records":[{"eventName":"ObjectRemoved:Delete","s3":{"bucket":{"name":"bucket"},"object":{"key":"uploads/doc1/report.pdf"}}}]}`
	req := httptest.NewRequest(http.MethodPost, "/s3-event", strings.NewReader(payload))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, del.lastDocID)
}
