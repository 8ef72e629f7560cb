// Package httpapi exposes the document ingestion, search, research, and
// operational endpoints described in spec §6 over Go 1.22+ method-pattern
// ServeMux routing, mirroring the teacher's internal/httpapi server shape.
package httpapi

import (
	"context"
	"net/http"

	"docintel/internal/config"
	"docintel/internal/ingest"
	"docintel/internal/objectstore"
	"docintel/internal/registry"
	"docintel/internal/research"
	"docintel/internal/search"
	"docintel/internal/sidecar"
	"docintel/internal/structure"
	"docintel/internal/vectorstore"
)

// Ingestor admits a newly-observed object into the ingestion queue.
type Ingestor interface {
	Submit(item ingest.WorkItem) error
	Depth() int
}

// Deleter tears down every owned resource for a document.
type Deleter interface {
	Delete(ctx context.Context, docID string, sourceKey string) ingest.DeleteReport
}

// Broadcaster is the subset of ws.Broadcaster the HTTP layer depends on.
type Broadcaster interface {
	http.Handler
	Stats() (active, completed, failed, total int)
}

// Deps bundles every dependency Server needs, so NewServer's signature
// stays stable as components are added.
type Deps struct {
	Config    config.Config
	Registry  *registry.Registry
	Queue     Ingestor
	Deleter   Deleter
	Assets    *sidecar.AssetStore
	Chunks    *sidecar.ChunkIndex
	Vectors   *vectorstore.Client
	Structure *structure.Service
	Objects   objectstore.ObjectStore
	Presigner objectstore.Presigner // nil when the deployment has no S3 backend
	Search    *search.Engine
	Research  *research.Engine
	Broadcast Broadcaster
}

// Server wires every HTTP endpoint to the ingestion, search, research, and
// broadcaster components.
type Server struct {
	mux *http.ServeMux

	cfg        config.Config
	reg        *registry.Registry
	queue      Ingestor
	deleter    Deleter
	assets     *sidecar.AssetStore
	chunks     *sidecar.ChunkIndex
	vectors    *vectorstore.Client
	structureS *structure.Service
	objects    objectstore.ObjectStore
	presigner  objectstore.Presigner
	searchEng  *search.Engine
	researchEn *research.Engine
	broadcast  Broadcaster
}

// NewServer builds the HTTP API and registers every route.
func NewServer(d Deps) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		cfg:        d.Config,
		reg:        d.Registry,
		queue:      d.Queue,
		deleter:    d.Deleter,
		assets:     d.Assets,
		chunks:     d.Chunks,
		vectors:    d.Vectors,
		structureS: d.Structure,
		objects:    d.Objects,
		presigner:  d.Presigner,
		searchEng:  d.Search,
		researchEn: d.Research,
		broadcast:  d.Broadcast,
	}
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /s3-event", s.handleS3Event)
	s.mux.HandleFunc("GET /assets/{docID}/{filename}", s.handleGetAsset)
	s.mux.HandleFunc("POST /upload/presign", s.handleUploadPresign)
	s.mux.HandleFunc("POST /assets/presign", s.handleAssetPresign)

	s.mux.HandleFunc("POST /search", s.handleSearch)

	s.mux.HandleFunc("GET /documents/{docID}", s.handleGetDocument)
	s.mux.HandleFunc("DELETE /documents/{docID}", s.handleDeleteDocument)
	s.mux.HandleFunc("GET /documents/{docID}/pages/{page}/structure", s.handleGetPageStructure)
	s.mux.HandleFunc("GET /documents/{docID}/chunks/{chunkID}", s.handleGetChunk)
	s.mux.HandleFunc("GET /documents/{docID}/markdown", s.handleGetMarkdown)

	s.mux.HandleFunc("POST /api/research/ask", s.handleResearchAsk)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /status", s.handleStatus)

	if s.broadcast != nil {
		s.mux.Handle("GET /ws", s.broadcast)
	}
}
