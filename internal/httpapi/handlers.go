package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"docintel/internal/ingest"
	"docintel/internal/model"
	"docintel/internal/registry"
	"docintel/internal/research"
	"docintel/internal/search"
	"docintel/internal/sidecar"
	"docintel/internal/structure"
	"docintel/internal/vectorstore"
	"docintel/internal/version"
)

// --- object-store webhook -------------------------------------------------

type s3EventPayload struct {
	Records []struct {
		EventName string `json:"eventName"`
		S3        struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key         string `json:"key"`
				Size        int64  `json:"size"`
				ETag        string `json:"eTag"`
				ContentType string `json:"contentType"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

func (s *Server) handleS3Event(w http.ResponseWriter, r *http.Request) {
	var payload s3EventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	processed := 0
	for _, rec := range payload.Records {
		switch {
		case strings.HasPrefix(rec.EventName, "ObjectCreated") || strings.Contains(rec.EventName, "s3:ObjectCreated"):
			if err := s.enqueueFromEvent(r.Context(), rec.S3.Object.Key, rec.S3.Object.ETag); err != nil {
				log.Error().Err(err).Str("key", rec.S3.Object.Key).Msg("httpapi: enqueue from s3 event failed")
				continue
			}
		case strings.HasPrefix(rec.EventName, "ObjectRemoved") || strings.Contains(rec.EventName, "s3:ObjectRemoved"):
			// Removal notifications are only actionable when they carry the
			// object's checksum: that is the only stable way to recover the
			// doc_id this object was registered under (FallbackDocID's
			// filename+upload-time derivation cannot be replayed after the
			// fact). A removal without one is logged and skipped.
			checksum := strings.Trim(rec.S3.Object.ETag, `"`)
			if checksum == "" {
				log.Warn().Str("key", rec.S3.Object.Key).Msg("httpapi: object-removed event missing checksum, cannot resolve doc_id")
				continue
			}
			docID := registry.DeriveDocID(checksum)
			if s.deleter != nil {
				s.deleter.Delete(r.Context(), docID, rec.S3.Object.Key)
			}
		default:
			continue
		}
		processed++
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "events_processed": processed})
}

// enqueueFromEvent stages the object locally (the Processor reads from a
// filesystem path) and submits it to the ingestion queue.
func (s *Server) enqueueFromEvent(ctx context.Context, key, etag string) error {
	if key == "" {
		return fmt.Errorf("httpapi: empty object key")
	}
	filename := filenameOf(key)
	checksum := strings.Trim(etag, `"`)
	var docID string
	if checksum != "" {
		docID = registry.DeriveDocID(checksum)
	} else {
		docID = registry.FallbackDocID(filename, time.Now())
	}

	path, err := s.stageObject(ctx, key)
	if err != nil {
		return fmt.Errorf("httpapi: stage object %s: %w", key, err)
	}

	item := ingest.WorkItem{
		JobID:     uuid.NewString(),
		DocID:     docID,
		SourceKey: key,
		Filename:  filename,
		FilePath:  path,
		Checksum:  checksum,
		Cancel:    &ingest.CancelToken{},
	}
	if s.queue == nil {
		return fmt.Errorf("httpapi: no ingestion queue wired")
	}
	return s.queue.Submit(item)
}

func (s *Server) stageObject(ctx context.Context, key string) (string, error) {
	if s.objects == nil {
		return "", fmt.Errorf("httpapi: no object store wired")
	}
	rc, _, err := s.objects.Get(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	f, err := os.CreateTemp("", "docintel-upload-*-"+filenameOf(key))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, rc); err != nil {
		return "", err
	}
	return f.Name(), nil
}

func filenameOf(key string) string {
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		return key
	}
	return key[idx+1:]
}

// --- asset serving & presign ----------------------------------------------

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	docID, err := registry.ValidateDocID(r.PathValue("docID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	filename := r.PathValue("filename")
	if s.assets == nil {
		respondError(w, http.StatusNotFound, errors.New("asset store not configured"))
		return
	}
	f, err := s.assets.Open(docID, filename)
	if err != nil {
		if errors.Is(err, sidecar.ErrInvalidAssetPath) {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		if errors.Is(err, os.ErrNotExist) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	defer f.Close()

	w.Header().Set("Cache-Control", "max-age=86400")
	if _, err := io.Copy(w, f); err != nil {
		log.Error().Err(err).Str("doc_id", docID).Msg("httpapi: stream asset failed")
	}
}

type uploadPresignRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

func (s *Server) handleUploadPresign(w http.ResponseWriter, r *http.Request) {
	if s.presigner == nil {
		respondError(w, http.StatusNotImplemented, errors.New("presigned uploads not supported in this deployment"))
		return
	}
	var req uploadPresignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Filename == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("filename is required"))
		return
	}

	docID := registry.FallbackDocID(req.Filename, time.Now())
	key := "uploads/" + docID + "/" + req.Filename
	expiry := s.cfg.S3.PresignExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	url, err := s.presigner.PresignPut(r.Context(), key, expiry, req.ContentType)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"uploadUrl": url,
		"docId":     docID,
		"expiresIn": int(expiry.Seconds()),
	})
}

type assetPresignRequest struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (s *Server) handleAssetPresign(w http.ResponseWriter, r *http.Request) {
	if s.presigner == nil {
		respondError(w, http.StatusNotImplemented, errors.New("presigned asset URLs not supported in this deployment"))
		return
	}
	var req assetPresignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("key is required"))
		return
	}
	if !strings.HasPrefix(req.Key, "uploads/") {
		respondError(w, http.StatusForbidden, fmt.Errorf("path rooted outside uploads/ is not allowed"))
		return
	}
	expiry := s.cfg.S3.PresignExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	url, err := s.presigner.PresignGet(r.Context(), req.Key, expiry)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"url": url, "expiresIn": int(expiry.Seconds())})
}

// --- search ----------------------------------------------------------------

type searchRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results"`
	Mode       string `json:"mode"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.searchEng == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("search engine not configured"))
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	mode := search.ModeHybrid
	switch req.Mode {
	case "visual":
		mode = search.ModeVisual
	case "text":
		mode = search.ModeText
	case "", "hybrid":
		mode = search.ModeHybrid
	default:
		respondError(w, http.StatusBadRequest, fmt.Errorf("unknown mode %q", req.Mode))
		return
	}

	start := time.Now()
	results, err := s.searchEng.Search(r.Context(), search.Request{Query: req.Query, Mode: mode, TopN: req.NumResults})
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"query":      req.Query,
		"results":    results,
		"latency_ms": time.Since(start).Milliseconds(),
	})
}

// --- document CRUD -----------------------------------------------------

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	docID, err := registry.ValidateDocID(r.PathValue("docID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	doc, err := s.reg.Store().GetDocument(r.Context(), docID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID, err := ingest.DocIDOrBadRequest(r.PathValue("docID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	sourceKey := ""
	if doc, err := s.reg.Store().GetDocument(r.Context(), docID); err == nil {
		sourceKey = doc.SourceKey
	}
	report := s.deleter.Delete(r.Context(), docID, sourceKey)
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetPageStructure(w http.ResponseWriter, r *http.Request) {
	docID, err := registry.ValidateDocID(r.PathValue("docID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("invalid page number"))
		return
	}

	if s.structureS != nil {
		ps, err := s.structureS.GetPageStructure(r.Context(), docID, page)
		if err != nil {
			if errors.Is(err, structure.ErrPageNotFound) {
				respondJSON(w, http.StatusOK, model.PageStructure{Page: page, HasStructure: false})
				return
			}
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		respondJSON(w, http.StatusOK, ps)
		return
	}

	if s.vectors == nil {
		respondJSON(w, http.StatusOK, model.PageStructure{Page: page, HasStructure: false})
		return
	}
	ps, found, err := s.vectors.GetPageStructure(r.Context(), docID, page)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		respondJSON(w, http.StatusOK, model.PageStructure{Page: page, HasStructure: false})
		return
	}
	respondJSON(w, http.StatusOK, ps)
}

func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	docID, err := registry.ValidateDocID(r.PathValue("docID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	chunkID := r.PathValue("chunkID")
	if s.chunks == nil {
		respondError(w, http.StatusNotFound, structure.ErrChunkNotFound)
		return
	}
	chunk, err := s.chunks.GetChunk(r.Context(), docID, chunkID)
	if err != nil {
		if errors.Is(err, structure.ErrChunkNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, chunk)
}

func (s *Server) handleGetMarkdown(w http.ResponseWriter, r *http.Request) {
	docID, err := registry.ValidateDocID(r.PathValue("docID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	includeMarkers := r.URL.Query().Get("include_markers") != "false"

	if includeMarkers && s.structureS != nil && s.chunks != nil {
		markdown, err := s.structureS.GetMarkedUpMarkdown(r.Context(), docID, s.chunks.ListByDoc(docID))
		if err != nil {
			if errors.Is(err, structure.ErrPageNotFound) {
				respondError(w, http.StatusNotFound, errors.New("markdown not found"))
				return
			}
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"markdown": markdown})
		return
	}

	if s.vectors == nil {
		respondError(w, http.StatusNotFound, errors.New("markdown not available"))
		return
	}
	body, compression, found, err := s.vectors.GetDocumentMarkdown(r.Context(), vectorstore.CollectionVisual, docID)
	if err == nil && !found {
		body, compression, found, err = s.vectors.GetDocumentMarkdown(r.Context(), vectorstore.CollectionText, docID)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, errors.New("markdown not found"))
		return
	}

	markdown, err := sidecar.DecodeMarkdown(model.FullMarkdown{Body: body, Compression: model.MarkdownCompression(compression)})
	if err != nil {
		log.Warn().Err(err).Str("doc_id", docID).Msg("httpapi: markdown decode failed")
		respondJSON(w, http.StatusOK, map[string]any{"markdown": nil})
		return
	}

	if includeMarkers && s.chunks != nil {
		markdown = structure.InjectChunkMarkers(markdown, s.chunks.ListByDoc(docID))
	} else if !includeMarkers {
		markdown = structure.StripChunkMarkers(markdown)
	}

	respondJSON(w, http.StatusOK, map[string]any{"markdown": markdown})
}

// --- research ---------------------------------------------------------

type researchAskRequest struct {
	Question              string   `json:"question"`
	NumSources            int      `json:"num_sources"`
	Model                 string   `json:"model"`
	PreprocessingEnabled  *bool    `json:"preprocessing_enabled"`
	PreprocessingStrategy string   `json:"preprocessing_strategy"`
	Temperature           *float64 `json:"temperature"`
}

func (s *Server) handleResearchAsk(w http.ResponseWriter, r *http.Request) {
	if s.researchEn == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("research engine not configured"))
		return
	}
	var req researchAskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := s.researchEn.Ask(r.Context(), research.Request{
		Question:              req.Question,
		NumSources:            req.NumSources,
		Model:                 req.Model,
		PreprocessingEnabled:  req.PreprocessingEnabled,
		PreprocessingStrategy: req.PreprocessingStrategy,
		Temperature:           req.Temperature,
	})
	if err != nil {
		var rle *research.RateLimitExceeded
		if errors.As(err, &rle) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rle.RetryAfter.Seconds())))
			respondError(w, http.StatusTooManyRequests, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// --- health & status ----------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	vectorDB := "unavailable"
	if s.vectors != nil {
		vectorDB = "connected"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"vector_db":     vectorDB,
		"enhanced_mode": s.cfg.LLMClient.Provider != "",
		"version":       version.Version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	depth := 0
	if s.queue != nil {
		depth = s.queue.Depth()
	}
	active, completed, failed, total := 0, 0, 0, 0
	if s.broadcast != nil {
		active, completed, failed, total = s.broadcast.Stats()
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"queue_depth": depth,
		"active":      active,
		"completed":   completed,
		"failed":      failed,
		"total":       total,
	})
}

// --- response helpers ----------------------------------------------------

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}
