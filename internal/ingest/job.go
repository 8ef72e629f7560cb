// Package ingest implements the Processor, the Ingestion Queue & Worker API,
// and the Delete Coordinator: the pipeline that turns one uploaded object
// into embedded, searchable content, and the ordered teardown that reverses it.
package ingest

import (
	"sync/atomic"

	"docintel/internal/model"
)

// CancelToken is a cooperative cancellation flag checked at every stage
// boundary (spec §5): a running encoder batch always finishes before the
// token is observed.
type CancelToken struct {
	flag atomic.Bool
}

// Cancel requests cancellation. Idempotent.
func (t *CancelToken) Cancel() { t.flag.Store(true) }

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool { return t.flag.Load() }

// WorkItem is one unit of work admitted to the ingestion queue.
type WorkItem struct {
	JobID     string
	DocID     string
	SourceKey string
	Filename  string
	FilePath  string // local/staged path the parser reads from
	Checksum  string
	Cancel    *CancelToken
}

// Event is the Processor's progress notification, consumed by the
// WebSocket Broadcaster and translated into the wire message shapes spec §6
// defines (processing_update / processing_complete / processing_error).
type Event struct {
	Type      string // "processing_update" | "processing_complete" | "processing_error"
	JobID     string
	DocID     string
	Filename  string
	Status    string
	Stage     model.JobStage
	Progress  float64
	Message   string
	Error     string
	Chunks    int
	Pages     int
	FileType  string
}

// ProgressSink receives Processor events. Implemented by internal/ws.Broadcaster.
type ProgressSink interface {
	Publish(Event)
}

// NoopSink discards events, used where no broadcaster is wired (tests, or a
// headless batch-ingest mode).
type NoopSink struct{}

func (NoopSink) Publish(Event) {}
