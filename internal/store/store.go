// Package store persists source materials, generation jobs and generated
// items. The orchestrator owns job semantics; stores only read and write
// whole records.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dgallion1/quizgest/internal/chunker"
	"github.com/dgallion1/quizgest/internal/doctree"
	"github.com/dgallion1/quizgest/internal/quota"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Status is the lifecycle state of a generation job.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Material is an uploaded source document after structuring.
type Material struct {
	ID          string           `json:"id"`
	CourseID    string           `json:"course_id"`
	Filename    string           `json:"filename"`
	Title       string           `json:"title"`
	ContentHash string           `json:"content_hash"`
	Document    doctree.Document `json:"document"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Job is the persisted generation job record.
type Job struct {
	ID             string            `json:"job_id"`
	MaterialID     string            `json:"source_material_id"`
	CourseID       string            `json:"course_id"`
	Requirement    quota.Requirement `json:"quota_requirement"`
	Chunking       chunker.Config    `json:"chunking_config"`
	Status         Status            `json:"status"`
	Progress       int               `json:"progress"`
	GeneratedCount int               `json:"generated_count"`
	RequestedCount int               `json:"requested_count"`
	TotalUnits     int               `json:"total_units"`
	FailedUnits    int               `json:"failed_units"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	ResetOf        string            `json:"reset_of,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Item is one generated question.
type Item struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	ChunkID    string    `json:"chunk_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Answer     string    `json:"answer,omitempty"`
	Difficulty string    `json:"difficulty,omitempty"`
	Cognitive  string    `json:"cognitive_level,omitempty"`
	Marks      int       `json:"marks"`
	Keywords   []string  `json:"keywords"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the persistence collaborator used by the pipeline and the API.
type Store interface {
	CreateMaterial(ctx context.Context, m *Material) error
	GetMaterial(ctx context.Context, id string) (*Material, error)
	// FindMaterialByHash returns the earliest material in a course with the
	// given content hash, or ErrNotFound.
	FindMaterialByHash(ctx context.Context, courseID, hash string) (*Material, error)

	CreateJob(ctx context.Context, j *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	UpdateJob(ctx context.Context, j *Job) error

	CreateItem(ctx context.Context, it *Item) error
	ListItems(ctx context.Context, jobID string) ([]Item, error)
}
