package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"docintel/internal/model"
)

// ErrDuplicate names the case of a doc_id that already exists when the caller
// did not set force_upload. RegisterUploadBatch does not return it; it reports
// that case through Registration.IsDuplicate.
var ErrDuplicate = errors.New("registry: duplicate document")

// ErrNotFound is returned when a Document or Job lookup misses.
var ErrNotFound = errors.New("registry: not found")

// UploadFile describes one file in a register_upload_batch request.
type UploadFile struct {
	Filename     string
	ExpectedSize int64
	Checksum     string // optional, pre-computed content hash
}

// Registration is the per-file outcome of RegisterUploadBatch.
type Registration struct {
	Filename     string
	DocID        string
	ExpectedSize int64
	IsDuplicate  bool
	Existing     *model.Document
}

// Store is the durable Document/Job ledger behind the Deduplication &
// Registry component. Implementations: Postgres-backed (production) and an
// in-memory fallback (tests, single-node deployments without REGISTRY_DSN).
type Store interface {
	GetDocument(ctx context.Context, docID string) (model.Document, error)
	UpsertDocument(ctx context.Context, doc model.Document) error
	DeleteDocument(ctx context.Context, docID string) error

	GetJob(ctx context.Context, jobID string) (model.Job, error)
	UpsertJob(ctx context.Context, job model.Job) error
	DeleteJob(ctx context.Context, jobID string) error

	Close(ctx context.Context) error
}

// Registry coordinates doc_id derivation, duplicate detection, and in-flight
// job collapsing on top of a Store.
type Registry struct {
	store Store

	mu sync.Mutex
	// inFlight maps doc_id -> job_id for jobs currently processing, so a
	// concurrent upload of the same content joins the running job's event
	// stream instead of starting a second one (spec §4.12).
	inFlight map[string]string
}

// New wraps store with in-flight collapsing.
func New(store Store) *Registry {
	return &Registry{store: store, inFlight: make(map[string]string)}
}

// RegisterUploadBatch computes doc_id for each file and reports duplicates.
// When forceUpload is false, a file whose doc_id already has a completed
// Document is marked IsDuplicate and its descriptor attached; the processor
// is expected to skip re-ingestion for those entries.
func (r *Registry) RegisterUploadBatch(ctx context.Context, files []UploadFile, forceUpload bool) ([]Registration, error) {
	out := make([]Registration, 0, len(files))
	for _, f := range files {
		var docID string
		if f.Checksum != "" {
			docID = DeriveDocID(f.Checksum)
		} else {
			docID = FallbackDocID(f.Filename, time.Now())
		}
		reg := Registration{Filename: f.Filename, DocID: docID, ExpectedSize: f.ExpectedSize}
		existing, err := r.store.GetDocument(ctx, docID)
		switch {
		case err == nil:
			reg.IsDuplicate = !forceUpload && existing.Status == model.StatusCompleted
			d := existing
			reg.Existing = &d
		case errors.Is(err, ErrNotFound):
			// not a duplicate
		default:
			return nil, err
		}
		out = append(out, reg)
	}
	return out, nil
}

// ClaimJob atomically associates docID with jobID if no job is already
// in-flight for it, returning the existing job id and ok=false when one is
// already running (the caller should attach to that job's event stream
// instead of starting a new one).
func (r *Registry) ClaimJob(docID, jobID string) (existing string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, found := r.inFlight[docID]; found {
		return existing, false
	}
	r.inFlight[docID] = jobID
	return "", true
}

// ReleaseJob clears the in-flight marker for docID once its job terminates.
func (r *Registry) ReleaseJob(docID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, docID)
}

// Store exposes the underlying Store for callers that need direct CRUD
// (HTTP handlers for GET/DELETE /documents/{doc_id}).
func (r *Registry) Store() Store { return r.store }
