package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dgallion1/quizgest/internal/chunker"
	"github.com/dgallion1/quizgest/internal/config"
	"github.com/dgallion1/quizgest/internal/doctree"
	"github.com/dgallion1/quizgest/internal/quota"
	"github.com/dgallion1/quizgest/internal/retrieval"
	"github.com/dgallion1/quizgest/internal/store"
)

func testConfig() config.Config {
	return config.Config{
		WorkerCount:              1,
		MaxQueueSize:             10,
		MaxConcurrentUnits:       2,
		GenerationRate:           1000,
		GenerationBurst:          100,
		UnitTimeout:              5 * time.Second,
		UnitMaxRetries:           3,
		RetrievalTopK:            2,
		DefaultMaxTokensPerChunk: 1500,
		DefaultMinTokensPerChunk: 100,
		DefaultChunkMethod:       string(chunker.MethodByHeading),
		JobTTL:                   time.Hour,
	}
}

type fakeGen struct {
	mu      sync.Mutex
	prompts []string
	fn      func(prompt string) (string, error)
}

func (f *fakeGen) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.fn(prompt)
}

func (f *fakeGen) Model() string { return "fake-model" }

func (f *fakeGen) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeGen) allPrompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// itemsJSON renders n valid provider items.
func itemsJSON(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf(`{"question":"What does concept number %d describe?","answer":"It describes part %d.","marks":2}`, i, i)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func okGen() *fakeGen {
	return &fakeGen{fn: func(string) (string, error) { return itemsJSON(10), nil }}
}

type fakeRetriever struct {
	mu     sync.Mutex
	scopes []map[string]string
	topK   int
	hits   []retrieval.Passage
	err    error
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, scope map[string]string, topK int) ([]retrieval.Passage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scopes = append(f.scopes, scope)
	f.topK = topK
	return f.hits, f.err
}

type fakeIndexer struct {
	mu     sync.Mutex
	calls  int
	chunks []doctree.Chunk
	err    error
}

func (f *fakeIndexer) Index(_ context.Context, _, _ string, chunks []doctree.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.chunks = chunks
	return f.err
}

// progressStore records every progress value written.
type progressStore struct {
	*store.MemoryStore
	mu       sync.Mutex
	progress []int
}

func (s *progressStore) UpdateJob(ctx context.Context, j *store.Job) error {
	s.mu.Lock()
	s.progress = append(s.progress, j.Progress)
	s.mu.Unlock()
	return s.MemoryStore.UpdateJob(ctx, j)
}

// brokenItemStore fails every item write.
type brokenItemStore struct {
	*store.MemoryStore
}

func (brokenItemStore) CreateItem(context.Context, *store.Item) error {
	return errors.New("disk full")
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOrchestrator(t *testing.T, st store.Store, gen *fakeGen, opts ...Option) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(testConfig(), st, gen, quietLog(), opts...)
	o.backoff = func(int) time.Duration { return 0 }
	return o
}

// seedMaterial stores a three-section material whose sections have equal
// length, so every chunk gets the same weight.
func seedMaterial(t *testing.T, st store.Store) *store.Material {
	t.Helper()
	var sections []doctree.Section
	for i, l := range []string{"A", "B", "C"} {
		sections = append(sections, doctree.Section{
			ID:      fmt.Sprintf("sec-%d", i+1),
			Title:   "Part " + l,
			Level:   1,
			Page:    1,
			Content: strings.TrimSpace(strings.Repeat(fmt.Sprintf("Topic %s explains **concept %s** clearly. ", l, l), 6)),
		})
	}
	m := &store.Material{
		ID:          "mat-1",
		CourseID:    "course-1",
		Filename:    "bio.md",
		Title:       "Biology",
		ContentHash: "hash-1",
		Document:    doctree.Document{Title: "Biology", Sections: sections},
	}
	require.NoError(t, st.CreateMaterial(context.Background(), m))
	return m
}

// threeChunks splits seedMaterial into one chunk per section.
var threeChunks = chunker.Config{MaxTokens: 80, MinTokens: 10, Method: chunker.MethodByHeading}

func testRequirement() quota.Requirement {
	return quota.Requirement{
		Difficulty: map[string]int{"easy": 3, "hard": 2},
		Cognitive:  map[string]int{"remember": 5},
	}
}

// submit submits a request and takes its task off the queue.
func submit(t *testing.T, o *Orchestrator, req Request) (*store.Job, task) {
	t.Helper()
	job, err := o.Submit(context.Background(), req)
	require.NoError(t, err)
	select {
	case tk := <-o.queue:
		require.Equal(t, job.ID, tk.jobID)
		return job, tk
	default:
		t.Fatal("job was not queued")
		return nil, task{}
	}
}

func getJob(t *testing.T, st store.Store, id string) *store.Job {
	t.Helper()
	j, err := st.GetJob(context.Background(), id)
	require.NoError(t, err)
	return j
}
