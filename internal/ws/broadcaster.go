package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"docintel/internal/ingest"
	"docintel/internal/registry"
)

const registerTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// BatchRegistrar is the subset of *registry.Registry the Broadcaster needs
// to service register_upload_batch requests.
type BatchRegistrar interface {
	RegisterUploadBatch(ctx context.Context, files []registry.UploadFile, forceUpload bool) ([]registry.Registration, error)
}

// Broadcaster is the WebSocket Broadcaster (spec §4.7): a mutex-guarded
// connection set with best-effort fan-out, implementing ingest.ProgressSink
// so the Processor's events reach every connected client without either
// package knowing about the other's wire format.
type Broadcaster struct {
	mu             sync.Mutex
	conns          map[*connection]struct{}
	maxConnections int

	registrar BatchRegistrar

	stats struct {
		mu                        sync.Mutex
		active, completed, failed int
	}
}

// NewBroadcaster builds a Broadcaster. maxConnections <= 0 means unbounded,
// per spec §6.1's WS_MAX_CONNECTIONS default.
func NewBroadcaster(registrar BatchRegistrar, maxConnections int) *Broadcaster {
	return &Broadcaster{
		conns:          make(map[*connection]struct{}),
		maxConnections: maxConnections,
		registrar:      registrar,
	}
}

// ServeHTTP upgrades the request to a WebSocket and services it until the
// client disconnects or the connection is evicted as a slow consumer.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	full := b.maxConnections > 0 && len(b.conns) >= b.maxConnections
	b.mu.Unlock()
	if full {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws: upgrade failed")
		return
	}
	conn := b.connect(ws)
	defer b.disconnect(conn)

	go conn.writePump()
	conn.readPump(func(cm ClientMessage) { b.handleClientMessage(conn, cm) })
}

func (b *Broadcaster) connect(ws *websocket.Conn) *connection {
	conn := newConnection(ws)
	b.mu.Lock()
	b.conns[conn] = struct{}{}
	b.mu.Unlock()
	return conn
}

func (b *Broadcaster) disconnect(conn *connection) {
	b.mu.Lock()
	delete(b.conns, conn)
	b.mu.Unlock()
	conn.close()
}

// broadcast fans msg out to every connected client; a saturated subscriber
// is disconnected rather than allowed to backlog the broadcaster (spec §4.7).
func (b *Broadcaster) broadcast(msg Message) {
	b.mu.Lock()
	targets := make([]*connection, 0, len(b.conns))
	for c := range b.conns {
		targets = append(targets, c)
	}
	b.mu.Unlock()

	for _, c := range targets {
		if !c.enqueue(msg) {
			b.disconnect(c)
		}
	}
}

func (b *Broadcaster) handleClientMessage(conn *connection, cm ClientMessage) {
	switch cm.Type {
	case "ping":
		conn.enqueue(Message{Type: "pong", Timestamp: nowUTC()})
	case "register_upload_batch":
		b.handleRegisterUploadBatch(conn, cm)
	default:
		conn.enqueue(Message{Type: "error", Timestamp: nowUTC(), Error: "unknown message type: " + cm.Type, Code: "bad_request"})
	}
}

func (b *Broadcaster) handleRegisterUploadBatch(conn *connection, cm ClientMessage) {
	files := make([]registry.UploadFile, len(cm.Files))
	for i, f := range cm.Files {
		files[i] = registry.UploadFile{Filename: f.Filename, ExpectedSize: f.Size}
	}

	ctx, cancel := context.WithTimeout(context.Background(), registerTimeout)
	defer cancel()

	regs, err := b.registrar.RegisterUploadBatch(ctx, files, cm.ForceUpload)
	if err != nil {
		conn.enqueue(Message{
			Type: "error", Timestamp: nowUTC(), CorrelationID: cm.CorrelationID,
			Error: err.Error(), Code: "registration_failed",
		})
		return
	}

	wire := make([]Reg, len(regs))
	for i, r := range regs {
		wire[i] = Reg{Filename: r.Filename, DocID: r.DocID, ExpectedSize: r.ExpectedSize, IsDuplicate: r.IsDuplicate}
	}
	conn.enqueue(Message{
		Type: "upload_batch_registered", Timestamp: nowUTC(),
		CorrelationID: cm.CorrelationID, Registrations: wire,
	})
}

// Publish implements ingest.ProgressSink, translating a Processor Event into
// the wire message shapes spec §6 defines, and rolling it into in-flight
// job stats served by GET /status.
func (b *Broadcaster) Publish(ev ingest.Event) {
	msg := Message{
		Timestamp: nowUTC(), DocID: ev.DocID, Filename: ev.Filename,
		Status: ev.Status, Stage: string(ev.Stage), Progress: ev.Progress,
		Message: ev.Message, Error: ev.Error, Chunks: ev.Chunks,
		Pages: ev.Pages, FileType: ev.FileType,
	}
	switch ev.Type {
	case "processing_update":
		msg.Type = "processing_update"
		b.recordActive()
	case "processing_complete":
		msg.Type = "processing_complete"
		b.recordTerminal(true)
	case "processing_error":
		msg.Type = "processing_error"
		b.recordTerminal(false)
	default:
		return
	}
	b.broadcast(msg)
}

func (b *Broadcaster) recordActive() {
	b.stats.mu.Lock()
	defer b.stats.mu.Unlock()
	b.stats.active++
}

func (b *Broadcaster) recordTerminal(ok bool) {
	b.stats.mu.Lock()
	defer b.stats.mu.Unlock()
	if b.stats.active > 0 {
		b.stats.active--
	}
	if ok {
		b.stats.completed++
	} else {
		b.stats.failed++
	}
}

// Stats reports the running active/completed/failed/total counters served
// by GET /status and the `stats` WebSocket message.
func (b *Broadcaster) Stats() (active, completed, failed, total int) {
	b.stats.mu.Lock()
	defer b.stats.mu.Unlock()
	return b.stats.active, b.stats.completed, b.stats.failed, b.stats.active + b.stats.completed + b.stats.failed
}

// BroadcastStats pushes a `stats` message to every connected client.
func (b *Broadcaster) BroadcastStats() {
	active, completed, failed, total := b.Stats()
	b.broadcast(Message{
		Type: "stats", Timestamp: nowUTC(),
		Active: active, Completed: completed, Failed: failed, Total: total,
	})
}

// ConnectionCount reports the number of currently connected clients.
func (b *Broadcaster) ConnectionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}
