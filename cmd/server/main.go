// Command server runs the document ingestion, search, and research HTTP API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"docintel/internal/config"
	"docintel/internal/docparse"
	"docintel/internal/encoder"
	"docintel/internal/httpapi"
	"docintel/internal/ingest"
	"docintel/internal/objectstore"
	"docintel/internal/observability"
	"docintel/internal/registry"
	"docintel/internal/research"
	"docintel/internal/search"
	"docintel/internal/sidecar"
	"docintel/internal/structure"
	"docintel/internal/vectorstore"
	"docintel/internal/ws"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server: fatal error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	baseCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.InitOTel(baseCtx, cfg.Obs)
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("server: otel shutdown error")
		}
	}()

	store, err := registry.NewStore(baseCtx, cfg.Registry.DSN)
	if err != nil {
		return fmt.Errorf("open registry store: %w", err)
	}
	reg := registry.New(store)

	vectors, err := vectorstore.New(baseCtx, cfg.Qdrant)
	if err != nil {
		return fmt.Errorf("connect vector store: %w", err)
	}

	objects, presigner, err := buildObjectStore(baseCtx, cfg.S3)
	if err != nil {
		return fmt.Errorf("build object store: %w", err)
	}

	if err := os.MkdirAll(cfg.Sidecar.DataRoot, 0o755); err != nil {
		return fmt.Errorf("create data root %q: %w", cfg.Sidecar.DataRoot, err)
	}
	assets, err := sidecar.NewAssetStore(cfg.Sidecar.DataRoot)
	if err != nil {
		return fmt.Errorf("open asset store: %w", err)
	}
	chunks := sidecar.NewChunkIndex()
	structureCache := sidecar.NewStructureCache(cfg.Sidecar.StructureLRU)

	backend := encoder.NewHTTPBackend(cfg.Encoder.VisualEndpoint, cfg.Encoder.TextEndpoint, cfg.Encoder.Timeout)
	enc := encoder.New(backend, encoder.Device(cfg.Encoder.Device), encoder.WithBatchSizes(cfg.Encoder.MaxBatch, cfg.Encoder.MaxBatch))

	parser := docparse.NewService(cfg.Parser, os.TempDir())

	broadcaster := ws.NewBroadcaster(reg, cfg.WS.MaxConnections)

	processor := ingest.NewProcessor(parser, enc, vectors, assets, chunks, store, reg, broadcaster)
	if cfg.Queue.JobTimeout > 0 {
		processor = processor.WithPageTimeout(cfg.Queue.JobTimeout)
	}
	queue := ingest.NewQueue(processor, cfg.Queue.MaxParallelJobs, cfg.Queue.QueueCapacity)
	defer queue.Close()

	deleteCoordinator := ingest.NewDeleteCoordinator(vectors, assets, structureCache, chunks, objects, reg)

	structureService := structure.NewService(vectors, structureCache, chunks, store)

	searchEngine := search.New(enc, vectors, store, chunks)

	var researchEngine *research.Engine
	if cfg.LLMClient.Provider != "" {
		researchClient := observability.NewHTTPClient(&http.Client{Timeout: 2 * time.Minute})
		researchEngine = research.New(searchEngine, chunks, cfg, researchClient)
	} else {
		log.Warn().Msg("server: LLM_PROVIDER unset, research engine disabled")
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Config:    cfg,
		Registry:  reg,
		Queue:     queue,
		Deleter:   deleteCoordinator,
		Assets:    assets,
		Chunks:    chunks,
		Vectors:   vectors,
		Structure: structureService,
		Objects:   objects,
		Presigner: presigner,
		Search:    searchEngine,
		Research:  researchEngine,
		Broadcast: broadcaster,
	})

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: srv,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("server: listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-baseCtx.Done():
		log.Info().Msg("server: shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info().Msg("server: stopped")
	return nil
}

// buildObjectStore selects S3Store when a bucket is configured, falling
// back to the in-memory store for local development; only S3Store supports
// presigned URLs, so presigner is nil in the in-memory case.
func buildObjectStore(ctx context.Context, cfg config.S3Config) (objectstore.ObjectStore, objectstore.Presigner, error) {
	if cfg.Bucket == "" {
		log.Warn().Msg("server: S3_BUCKET unset, using in-memory object store (not for production)")
		return objectstore.NewMemoryStore(), nil, nil
	}
	s3Store, err := objectstore.NewS3Store(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return s3Store, s3Store, nil
}
