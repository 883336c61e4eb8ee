package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Schema creates the tables PostgresStore expects. Column-level JSONB holds
// the structured document and the job request so they round-trip unchanged.
const Schema = `
CREATE TABLE IF NOT EXISTS materials (
	id           TEXT PRIMARY KEY,
	course_id    TEXT NOT NULL,
	filename     TEXT NOT NULL,
	title        TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	document     JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS materials_course_hash ON materials (course_id, content_hash);

CREATE TABLE IF NOT EXISTS generation_jobs (
	id              TEXT PRIMARY KEY,
	material_id     TEXT NOT NULL REFERENCES materials (id),
	course_id       TEXT NOT NULL,
	requirement     JSONB NOT NULL,
	chunking        JSONB NOT NULL,
	status          TEXT NOT NULL,
	progress        INTEGER NOT NULL,
	generated_count INTEGER NOT NULL,
	requested_count INTEGER NOT NULL,
	total_units     INTEGER NOT NULL,
	failed_units    INTEGER NOT NULL,
	error_message   TEXT NOT NULL DEFAULT '',
	reset_of        TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS generated_items (
	id              TEXT PRIMARY KEY,
	job_id          TEXT NOT NULL REFERENCES generation_jobs (id),
	chunk_id        TEXT NOT NULL,
	chunk_index     INTEGER NOT NULL,
	text            TEXT NOT NULL,
	answer          TEXT NOT NULL DEFAULT '',
	difficulty      TEXT NOT NULL DEFAULT '',
	cognitive_level TEXT NOT NULL DEFAULT '',
	marks           INTEGER NOT NULL,
	keywords        TEXT[] NOT NULL DEFAULT '{}',
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS generated_items_job ON generated_items (job_id, created_at);
`

// PostgresStore is a Store on database/sql with the lib/pq driver.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema applies Schema.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const materialColumns = `id, course_id, filename, title, content_hash, document, created_at`

func (s *PostgresStore) CreateMaterial(ctx context.Context, m *Material) error {
	doc, err := json.Marshal(m.Document)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	query := `INSERT INTO materials (` + materialColumns + `) VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING created_at`
	return s.db.QueryRowContext(ctx, query, m.ID, m.CourseID, m.Filename, m.Title, m.ContentHash, doc).Scan(&m.CreatedAt)
}

func (s *PostgresStore) GetMaterial(ctx context.Context, id string) (*Material, error) {
	query := `SELECT ` + materialColumns + ` FROM materials WHERE id = $1`
	return scanMaterial(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) FindMaterialByHash(ctx context.Context, courseID, hash string) (*Material, error) {
	query := `SELECT ` + materialColumns + ` FROM materials WHERE course_id = $1 AND content_hash = $2 ORDER BY created_at LIMIT 1`
	return scanMaterial(s.db.QueryRowContext(ctx, query, courseID, hash))
}

func scanMaterial(row *sql.Row) (*Material, error) {
	m := &Material{}
	var doc []byte
	if err := row.Scan(&m.ID, &m.CourseID, &m.Filename, &m.Title, &m.ContentHash, &doc, &m.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal(doc, &m.Document); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return m, nil
}

const jobColumns = `id, material_id, course_id, requirement, chunking, status, progress, generated_count, requested_count, total_units, failed_units, error_message, reset_of, created_at, updated_at`

func (s *PostgresStore) CreateJob(ctx context.Context, j *Job) error {
	req, err := json.Marshal(j.Requirement)
	if err != nil {
		return fmt.Errorf("encode requirement: %w", err)
	}
	chunking, err := json.Marshal(j.Chunking)
	if err != nil {
		return fmt.Errorf("encode chunking config: %w", err)
	}
	query := `INSERT INTO generation_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING created_at, updated_at`
	return s.db.QueryRowContext(ctx, query,
		j.ID, j.MaterialID, j.CourseID, req, chunking, string(j.Status), j.Progress,
		j.GeneratedCount, j.RequestedCount, j.TotalUnits, j.FailedUnits, j.ErrorMessage, j.ResetOf,
	).Scan(&j.CreatedAt, &j.UpdatedAt)
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*Job, error) {
	j := &Job{}
	var req, chunking []byte
	var status string
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1`
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&j.ID, &j.MaterialID, &j.CourseID, &req, &chunking, &status, &j.Progress,
		&j.GeneratedCount, &j.RequestedCount, &j.TotalUnits, &j.FailedUnits, &j.ErrorMessage, &j.ResetOf,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	j.Status = Status(status)
	if err := json.Unmarshal(req, &j.Requirement); err != nil {
		return nil, fmt.Errorf("decode requirement: %w", err)
	}
	if err := json.Unmarshal(chunking, &j.Chunking); err != nil {
		return nil, fmt.Errorf("decode chunking config: %w", err)
	}
	return j, nil
}

// UpdateJob writes the mutable fields of a job. The request itself is
// immutable after creation.
func (s *PostgresStore) UpdateJob(ctx context.Context, j *Job) error {
	query := `UPDATE generation_jobs
		SET status = $2, progress = $3, generated_count = $4, total_units = $5, failed_units = $6, error_message = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := s.db.QueryRowContext(ctx, query,
		j.ID, string(j.Status), j.Progress, j.GeneratedCount, j.TotalUnits, j.FailedUnits, j.ErrorMessage,
	).Scan(&j.UpdatedAt)
	return notFound(err)
}

func (s *PostgresStore) CreateItem(ctx context.Context, it *Item) error {
	query := `INSERT INTO generated_items (id, job_id, chunk_id, chunk_index, text, answer, difficulty, cognitive_level, marks, keywords, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING created_at`
	keywords := it.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return s.db.QueryRowContext(ctx, query,
		it.ID, it.JobID, it.ChunkID, it.ChunkIndex, it.Text, it.Answer, it.Difficulty, it.Cognitive, it.Marks, pq.Array(keywords),
	).Scan(&it.CreatedAt)
}

func (s *PostgresStore) ListItems(ctx context.Context, jobID string) ([]Item, error) {
	query := `SELECT id, job_id, chunk_id, chunk_index, text, answer, difficulty, cognitive_level, marks, keywords, created_at
		FROM generated_items WHERE job_id = $1 ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.JobID, &it.ChunkID, &it.ChunkIndex, &it.Text, &it.Answer,
			&it.Difficulty, &it.Cognitive, &it.Marks, pq.Array(&it.Keywords), &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
