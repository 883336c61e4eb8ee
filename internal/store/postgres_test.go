package store_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/quizgest/internal/store"
)

var jobCols = []string{
	"id", "material_id", "course_id", "requirement", "chunking", "status", "progress",
	"generated_count", "requested_count", "total_units", "failed_units", "error_message", "reset_of",
	"created_at", "updated_at",
}

func newMock(t *testing.T) (*store.PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewPostgresStore(db), mock
}

func TestPostgresStore_CreateMaterial(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO materials (id, course_id, filename, title, content_hash, document, created_at)")).
		WithArgs("m1", "c1", "a.pdf", "A", "hash", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	m := &store.Material{ID: "m1", CourseID: "c1", Filename: "a.pdf", Title: "A", ContentHash: "hash"}
	require.NoError(t, s.CreateMaterial(context.Background(), m))
	assert.Equal(t, now, m.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMaterial(t *testing.T) {
	s, mock := newMock(t)

	t.Run("Success", func(t *testing.T) {
		doc := `{"title":"Intro","sections":[{"id":"sec-1","title":"Introduction","level":1,"page":1,"content":"Body"}]}`
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_id, filename, title, content_hash, document, created_at FROM materials WHERE id = $1")).
			WithArgs("m1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "filename", "title", "content_hash", "document", "created_at"}).
				AddRow("m1", "c1", "a.md", "Intro", "h", []byte(doc), time.Now()))

		m, err := s.GetMaterial(context.Background(), "m1")
		require.NoError(t, err)
		assert.Equal(t, "c1", m.CourseID)
		require.Len(t, m.Document.Sections, 1)
		assert.Equal(t, "Body", m.Document.Sections[0].Content)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM materials WHERE id = $1")).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := s.GetMaterial(context.Background(), "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestPostgresStore_FindMaterialByHash(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM materials WHERE course_id = $1 AND content_hash = $2 ORDER BY created_at LIMIT 1")).
		WithArgs("c1", "h").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "filename", "title", "content_hash", "document", "created_at"}).
			AddRow("m1", "c1", "a.md", "A", "h", []byte(`{}`), time.Now()))

	m, err := s.FindMaterialByHash(context.Background(), "c1", "h")
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)
}

func TestPostgresStore_CreateJob(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO generation_jobs")).
		WithArgs("j1", "m1", "c1", sqlmock.AnyArg(), sqlmock.AnyArg(), "PENDING", 0, 0, 5, 3, 0, "", "").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	j := &store.Job{ID: "j1", MaterialID: "m1", CourseID: "c1", Status: store.StatusPending, RequestedCount: 5, TotalUnits: 3}
	require.NoError(t, s.CreateJob(context.Background(), j))
	assert.Equal(t, now, j.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetJob(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM generation_jobs WHERE id = $1")).
		WithArgs("j1").
		WillReturnRows(sqlmock.NewRows(jobCols).AddRow(
			"j1", "m1", "c1",
			[]byte(`{"difficulty":{"easy":2},"cognitive_level":{"apply":2}}`),
			[]byte(`{"max_tokens_per_chunk":800,"min_tokens_per_chunk":100,"method":"by_heading"}`),
			"PROCESSING", 40, 1, 2, 2, 0, "", "", now, now,
		))

	j, err := s.GetJob(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusProcessing, j.Status)
	assert.Equal(t, 40, j.Progress)
	assert.Equal(t, 2, j.Requirement.Difficulty["easy"])
	assert.Equal(t, 800, j.Chunking.MaxTokens)
}

func TestPostgresStore_UpdateJob(t *testing.T) {
	s, mock := newMock(t)

	t.Run("Success", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE generation_jobs")).
			WithArgs("j1", "COMPLETED", 100, 4, 3, 1, "").
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

		j := &store.Job{ID: "j1", Status: store.StatusCompleted, Progress: 100, GeneratedCount: 4, TotalUnits: 3, FailedUnits: 1}
		require.NoError(t, s.UpdateJob(context.Background(), j))
		assert.Equal(t, now, j.UpdatedAt)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE generation_jobs")).
			WillReturnError(sql.ErrNoRows)

		err := s.UpdateJob(context.Background(), &store.Job{ID: "nope"})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestPostgresStore_CreateItem(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO generated_items")).
		WithArgs("i1", "j1", "chunk-1", 0, "What is X?", "X is Y.", "easy", "remember", 1, pq.Array([]string{"X"})).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	it := &store.Item{
		ID: "i1", JobID: "j1", ChunkID: "chunk-1", Text: "What is X?", Answer: "X is Y.",
		Difficulty: "easy", Cognitive: "remember", Marks: 1, Keywords: []string{"X"},
	}
	require.NoError(t, s.CreateItem(context.Background(), it))
	assert.Equal(t, now, it.CreatedAt)
}

func TestPostgresStore_ListItems(t *testing.T) {
	s, mock := newMock(t)

	rows := sqlmock.NewRows([]string{"id", "job_id", "chunk_id", "chunk_index", "text", "answer", "difficulty", "cognitive_level", "marks", "keywords", "created_at"}).
		AddRow("i1", "j1", "chunk-1", 0, "Q1", "", "easy", "", 1, "{alpha,beta}", time.Now()).
		AddRow("i2", "j1", "chunk-2", 1, "Q2", "", "hard", "apply", 3, "{}", time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("FROM generated_items WHERE job_id = $1")).
		WithArgs("j1").
		WillReturnRows(rows)

	items, err := s.ListItems(context.Background(), "j1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, []string{"alpha", "beta"}, items[0].Keywords)
	assert.Equal(t, 3, items[1].Marks)
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS materials")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.NoError(t, s.EnsureSchema(context.Background()))
}
