package ingest

import (
	"context"
	"fmt"

	"docintel/internal/registry"
	"docintel/internal/vectorstore"
)

// StageReport records the outcome of one Delete Coordinator stage.
type StageReport struct {
	Stage   string
	OK      bool
	Removed int
	Error   string
}

// DeleteReport is the per-stage status returned for DELETE /documents/{doc_id},
// even when an earlier stage aborts the rest (spec §4.11).
type DeleteReport struct {
	DocID   string
	Stages  []StageReport
	Aborted bool
}

// VectorDeleter is the subset of vectorstore.Client the coordinator uses.
type VectorDeleter interface {
	DeleteByDocID(ctx context.Context, col vectorstore.Collection, docID string) (int, error)
}

// AssetDeleter is the subset of sidecar.AssetStore the coordinator uses.
type AssetDeleter interface {
	DeletePageAssets(docID string) (int, error)
	DeleteCoverArt(docID string) error
}

// StructurePurger is the subset of sidecar.StructureCache the coordinator uses.
type StructurePurger interface {
	Delete(docID string)
}

// ChunkPurger is the subset of sidecar.ChunkIndex the coordinator uses to
// drop inline chunk/markdown state during stage 5.
type ChunkPurger interface {
	DeleteDocument(docID string)
}

// SourceDeleter removes the originally uploaded object from the object store.
type SourceDeleter interface {
	Delete(ctx context.Context, key string) error
}

// DeleteCoordinator runs the ordered, best-effort-after-the-critical-stage
// teardown of everything a Document owns, per spec §4.11.
type DeleteCoordinator struct {
	vectors   VectorDeleter
	assets    AssetDeleter
	structure StructurePurger
	chunks    ChunkPurger
	source    SourceDeleter
	registry  *registry.Registry
}

// NewDeleteCoordinator builds a DeleteCoordinator. source may be nil when no
// object-store deletion is configured (e.g. webhook-only deployments where
// the bucket owns its own retention policy); chunks may be nil when no
// chunk index is wired (headless batch mode).
func NewDeleteCoordinator(vectors VectorDeleter, assets AssetDeleter, structure StructurePurger, chunks ChunkPurger, source SourceDeleter, reg *registry.Registry) *DeleteCoordinator {
	return &DeleteCoordinator{vectors: vectors, assets: assets, structure: structure, chunks: chunks, source: source, registry: reg}
}

// Delete tears down every owned resource for docID in order. Stage 1 (vector
// collections) is critical: a failure there aborts the remaining stages,
// since a partially-deleted index is worse than a stale asset directory. Every
// later stage is best-effort and always runs, so a single missing asset
// directory never hides the outcome of the stages after it.
func (d *DeleteCoordinator) Delete(ctx context.Context, docID string, sourceKey string) DeleteReport {
	report := DeleteReport{DocID: docID}

	visualRemoved, err := d.vectors.DeleteByDocID(ctx, vectorstore.CollectionVisual, docID)
	textRemoved, textErr := 0, error(nil)
	if err == nil {
		textRemoved, textErr = d.vectors.DeleteByDocID(ctx, vectorstore.CollectionText, docID)
	}
	if err == nil && textErr != nil {
		err = textErr
	}
	stage1 := StageReport{Stage: "vector_collections", OK: err == nil, Removed: visualRemoved + textRemoved}
	if err != nil {
		stage1.Error = err.Error()
		report.Stages = append(report.Stages, stage1)
		report.Aborted = true
		return report
	}
	report.Stages = append(report.Stages, stage1)

	pagesRemoved, err := d.assets.DeletePageAssets(docID)
	report.Stages = append(report.Stages, stageResult("page_assets", pagesRemoved, err))

	err = d.assets.DeleteCoverArt(docID)
	report.Stages = append(report.Stages, stageResult("cover_art", 0, err))

	if d.structure != nil {
		d.structure.Delete(docID)
	}
	report.Stages = append(report.Stages, StageReport{Stage: "structure_cache", OK: true})

	if d.chunks != nil {
		d.chunks.DeleteDocument(docID)
	}
	report.Stages = append(report.Stages, StageReport{Stage: "markdown_and_temp", OK: true})

	if d.source != nil && sourceKey != "" {
		err = d.source.Delete(ctx, sourceKey)
		report.Stages = append(report.Stages, stageResult("source_object", 0, err))
	} else {
		report.Stages = append(report.Stages, StageReport{Stage: "source_object", OK: true})
	}

	if d.registry != nil {
		if rerr := d.registry.Store().DeleteDocument(ctx, docID); rerr != nil {
			report.Stages = append(report.Stages, stageResult("registry_record", 0, rerr))
		} else {
			report.Stages = append(report.Stages, StageReport{Stage: "registry_record", OK: true})
		}
	}

	return report
}

func stageResult(stage string, removed int, err error) StageReport {
	if err != nil {
		return StageReport{Stage: stage, OK: false, Error: err.Error(), Removed: removed}
	}
	return StageReport{Stage: stage, OK: true, Removed: removed}
}

// DocIDOrBadRequest validates docID per spec §4.11 ("doc_id must match the
// hex-id regex, else 400"). A failure wraps registry.ErrInvalidDocID with an
// "ingest:" prefix, so callers can still match it with errors.Is.
func DocIDOrBadRequest(docID string) (string, error) {
	valid, err := registry.ValidateDocID(docID)
	if err != nil {
		return "", fmt.Errorf("ingest: %w", err)
	}
	return valid, nil
}
