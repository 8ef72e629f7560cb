package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docintel/internal/model"
)

// PostgresStore is the durable Store backend, used when REGISTRY_DSN is set.
// It keeps the Document/Job ledger alive across restarts, unlike MemoryStore.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and ensures the registry schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("registry: connect postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
	doc_id            TEXT PRIMARY KEY,
	filename          TEXT NOT NULL,
	source_key        TEXT NOT NULL,
	checksum          TEXT NOT NULL,
	format            TEXT NOT NULL,
	format_type       TEXT NOT NULL,
	upload_ts         TIMESTAMPTZ NOT NULL,
	status            TEXT NOT NULL,
	num_pages         INTEGER NOT NULL DEFAULT 0,
	has_structure     BOOLEAN NOT NULL DEFAULT FALSE,
	metadata_version  TEXT NOT NULL DEFAULT '0.0',
	markdown_error    TEXT NOT NULL DEFAULT '',
	error             TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS jobs (
	job_id      TEXT PRIMARY KEY,
	doc_id      TEXT NOT NULL,
	source_key  TEXT NOT NULL,
	stage       TEXT NOT NULL,
	progress    DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at  TIMESTAMPTZ NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_jobs_doc_id ON jobs(doc_id);
`
	_, err := s.pool.Exec(ctx, ddl)
	if err != nil {
		return fmt.Errorf("registry: ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, docID string) (model.Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT doc_id, filename, source_key, checksum, format, format_type,
		upload_ts, status, num_pages, has_structure, metadata_version, markdown_error, error
		FROM documents WHERE doc_id = $1`, docID)

	var d model.Document
	var uploadTS time.Time
	err := row.Scan(&d.DocID, &d.Filename, &d.SourceKey, &d.Checksum, &d.Format, &d.FormatType,
		&uploadTS, &d.Status, &d.NumPages, &d.HasStructure, &d.MetadataVersion, &d.MarkdownError, &d.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Document{}, ErrNotFound
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("registry: get document: %w", err)
	}
	d.UploadTS = uploadTS
	return d, nil
}

func (s *PostgresStore) UpsertDocument(ctx context.Context, doc model.Document) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (doc_id, filename, source_key, checksum, format, format_type,
			upload_ts, status, num_pages, has_structure, metadata_version, markdown_error, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (doc_id) DO UPDATE SET
			filename = EXCLUDED.filename,
			source_key = EXCLUDED.source_key,
			checksum = EXCLUDED.checksum,
			format = EXCLUDED.format,
			format_type = EXCLUDED.format_type,
			status = EXCLUDED.status,
			num_pages = EXCLUDED.num_pages,
			has_structure = EXCLUDED.has_structure,
			metadata_version = EXCLUDED.metadata_version,
			markdown_error = EXCLUDED.markdown_error,
			error = EXCLUDED.error`,
		doc.DocID, doc.Filename, doc.SourceKey, doc.Checksum, doc.Format, doc.FormatType,
		doc.UploadTS, doc.Status, doc.NumPages, doc.HasStructure, doc.MetadataVersion, doc.MarkdownError, doc.Error)
	if err != nil {
		return fmt.Errorf("registry: upsert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, docID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE doc_id = $1`, docID)
	if err != nil {
		return fmt.Errorf("registry: delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (model.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT job_id, doc_id, source_key, stage, progress, updated_at, started_at, error
		FROM jobs WHERE job_id = $1`, jobID)

	var j model.Job
	err := row.Scan(&j.JobID, &j.DocID, &j.SourceKey, &j.Stage, &j.Progress, &j.UpdatedAt, &j.StartedAt, &j.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Job{}, ErrNotFound
	}
	if err != nil {
		return model.Job{}, fmt.Errorf("registry: get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) UpsertJob(ctx context.Context, job model.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (job_id, doc_id, source_key, stage, progress, updated_at, started_at, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (job_id) DO UPDATE SET
			stage = EXCLUDED.stage,
			progress = EXCLUDED.progress,
			updated_at = EXCLUDED.updated_at,
			error = EXCLUDED.error`,
		job.JobID, job.DocID, job.SourceKey, job.Stage, job.Progress, job.UpdatedAt, job.StartedAt, job.Error)
	if err != nil {
		return fmt.Errorf("registry: upsert job: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteJob(ctx context.Context, jobID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("registry: delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close(_ context.Context) error {
	s.pool.Close()
	return nil
}
