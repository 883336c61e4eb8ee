package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dgallion1/quizgest/internal/chunker"
	"github.com/dgallion1/quizgest/internal/config"
	"github.com/dgallion1/quizgest/internal/doctree"
	"github.com/dgallion1/quizgest/internal/generate"
	"github.com/dgallion1/quizgest/internal/quota"
	"github.com/dgallion1/quizgest/internal/retrieval"
	"github.com/dgallion1/quizgest/internal/store"
)

// Request is a job submission.
type Request struct {
	MaterialID  string            `json:"source_material_id"`
	Requirement quota.Requirement `json:"quota_requirement"`
	Chunking    chunker.Config    `json:"chunking_config"`
}

// task is a planned job waiting for a worker.
type task struct {
	jobID      string
	materialID string
	title      string
	chunks     []doctree.Chunk
	units      []quota.Unit
}

// Orchestrator manages generation jobs: it plans them synchronously, queues
// them and runs them on a fixed worker pool.
type Orchestrator struct {
	store     store.Store
	gen       generate.Generator
	retriever retrieval.Retriever
	indexer   retrieval.Indexer
	log       *slog.Logger
	cfg       config.Config

	queue   chan task
	locks   keyedMutex
	runs    liveRuns
	limiter *rate.Limiter
	backoff func(attempt int) time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures optional collaborators.
type Option func(*Orchestrator)

// WithRetriever enables retrieval augmentation of prompts.
func WithRetriever(r retrieval.Retriever) Option {
	return func(o *Orchestrator) { o.retriever = r }
}

// WithIndexer indexes chunks of every new material for retrieval.
func WithIndexer(ix retrieval.Indexer) Option {
	return func(o *Orchestrator) { o.indexer = ix }
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, st store.Store, gen generate.Generator, log *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   st,
		gen:     gen,
		log:     log,
		cfg:     cfg,
		queue:   make(chan task, cfg.MaxQueueSize),
		limiter: rate.NewLimiter(rate.Limit(cfg.GenerationRate), cfg.GenerationBurst),
		backoff: newRetryPolicy(cfg).delay,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case t, ok := <-o.queue:
					if !ok {
						return
					}
					o.process(workerCtx, t)
				}
			}
		}()
	}

	// Evict old terminal jobs when the store supports it.
	cleaner, ok := o.store.(interface{ Cleanup() int })
	if !ok {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if n := cleaner.Cleanup(); n > 0 {
					o.log.Info("evicted expired jobs", "count", n)
				}
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline. Queued jobs stay PENDING.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit validates and plans a request, records a PENDING job and queues it.
// Configuration problems are returned before any job exists.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*store.Job, error) {
	if err := req.Requirement.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	req.Chunking = fillChunking(req.Chunking, o.cfg.DefaultChunking())
	if err := req.Chunking.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	m, err := o.Material(ctx, req.MaterialID)
	if err != nil {
		return nil, err
	}
	job := &store.Job{
		ID:          uuid.NewString(),
		MaterialID:  m.ID,
		CourseID:    m.CourseID,
		Requirement: req.Requirement,
		Chunking:    req.Chunking,
	}
	return o.launch(ctx, job, m)
}

// launch plans job against its material, persists it as PENDING and queues it.
func (o *Orchestrator) launch(ctx context.Context, job *store.Job, m *store.Material) (*store.Job, error) {
	t, err := plan(m, job.Requirement, job.Chunking)
	if err != nil {
		return nil, err
	}
	t.jobID = job.ID
	job.Status = store.StatusPending
	job.RequestedCount = job.Requirement.Total()
	job.TotalUnits = len(t.units)

	if err := o.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("%w: create job: %w", ErrPersistence, err)
	}

	select {
	case o.queue <- t:
		o.log.Info("job queued", "job_id", job.ID, "material_id", m.ID, "units", len(t.units), "chunks", len(t.chunks))
		return job, nil
	default:
		if err := o.fail(ctx, job.ID, ErrQueueFull.Error()); err != nil {
			o.log.Error("failed to record queue rejection", "job_id", job.ID, "error", err)
		}
		return nil, fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
	}
}

// plan chunks the material and spreads the requirement over the chunks.
func plan(m *store.Material, req quota.Requirement, cfg chunker.Config) (task, error) {
	chunks, err := chunker.ChunkDocument(&m.Document, cfg)
	if err != nil {
		return task{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	alloc, err := quota.Distribute(chunks, req)
	if err != nil {
		return task{}, fmt.Errorf("%w: material %s: %w", ErrConfiguration, m.ID, err)
	}
	return task{
		materialID: m.ID,
		title:      m.Title,
		chunks:     chunks,
		units:      alloc.Units,
	}, nil
}

func fillChunking(c, d chunker.Config) chunker.Config {
	if c.MaxTokens == 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.MinTokens == 0 && c.MaxTokens >= d.MinTokens {
		c.MinTokens = d.MinTokens
	}
	if c.Method == "" {
		c.Method = d.Method
	}
	return c
}

// Material loads a stored material.
func (o *Orchestrator) Material(ctx context.Context, id string) (*store.Material, error) {
	m, err := o.store.GetMaterial(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("%w: %w", ErrMaterialNotFound, err)
	case err != nil:
		return nil, fmt.Errorf("%w: load material: %w", ErrPersistence, err)
	}
	return m, nil
}

// GetJob returns the current job record.
func (o *Orchestrator) GetJob(ctx context.Context, id string) (*store.Job, error) {
	j, err := o.store.GetJob(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("%w: %w", ErrJobNotFound, err)
	case err != nil:
		return nil, fmt.Errorf("%w: load job: %w", ErrPersistence, err)
	}
	return j, nil
}

// Items lists the items persisted for a job so far.
func (o *Orchestrator) Items(ctx context.Context, id string) ([]store.Item, error) {
	if _, err := o.GetJob(ctx, id); err != nil {
		return nil, err
	}
	items, err := o.store.ListItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: list items: %w", ErrPersistence, err)
	}
	return items, nil
}

// Cancel stops a job. A PENDING job fails at once; a PROCESSING job is
// flagged so its run starts no more units, drops further writes and ends
// FAILED. In-flight provider calls are not interrupted. A PROCESSING job
// with no live run, such as one left by a restart, can only be reset.
func (o *Orchestrator) Cancel(ctx context.Context, id string) (*store.Job, error) {
	return o.update(ctx, id, func(j *store.Job) error {
		switch j.Status {
		case store.StatusPending:
			return failJob(j, MsgCancelled)
		case store.StatusProcessing:
			if !o.runs.halt(j.ID, MsgCancelled) {
				return fmt.Errorf("%w: job %s has no active run; reset it instead", ErrInvalidTransition, j.ID)
			}
			return errNoChange
		default:
			return fmt.Errorf("%w: job is %s", ErrInvalidTransition, j.Status)
		}
	})
}

// Reset starts a fresh lifecycle for a PROCESSING or terminal job: a new
// PENDING job with the same request. A PROCESSING original is forced FAILED
// and its run's further writes are ignored.
func (o *Orchestrator) Reset(ctx context.Context, id string) (*store.Job, error) {
	old, err := o.update(ctx, id, func(j *store.Job) error {
		switch j.Status {
		case store.StatusPending:
			return fmt.Errorf("%w: pending job %s has not started", ErrInvalidTransition, j.ID)
		case store.StatusProcessing:
			o.runs.halt(j.ID, MsgSuperseded)
			return failJob(j, MsgSuperseded)
		default:
			return errNoChange
		}
	})
	if err != nil {
		return nil, err
	}

	m, err := o.Material(ctx, old.MaterialID)
	if err != nil {
		return nil, err
	}
	job := &store.Job{
		ID:          uuid.NewString(),
		MaterialID:  old.MaterialID,
		CourseID:    old.CourseID,
		Requirement: old.Requirement,
		Chunking:    old.Chunking,
		ResetOf:     old.ID,
	}
	o.log.Info("job reset", "job_id", job.ID, "reset_of", old.ID)
	return o.launch(ctx, job, m)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Generator returns the active provider client.
func (o *Orchestrator) Generator() generate.Generator {
	return o.gen
}

// errNoChange makes update return the record without writing it.
var errNoChange = errors.New("no change")

// update is the single writer for job records: it loads the job under the
// job's lock, applies fn and writes the result back.
func (o *Orchestrator) update(ctx context.Context, id string, fn func(*store.Job) error) (*store.Job, error) {
	unlock := o.locks.Lock(id)
	defer unlock()

	j, err := o.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(j); err != nil {
		if errors.Is(err, errNoChange) {
			return j, nil
		}
		return nil, err
	}
	if err := o.store.UpdateJob(ctx, j); err != nil {
		return nil, fmt.Errorf("%w: update job: %w", ErrPersistence, err)
	}
	return j, nil
}

func failJob(j *store.Job, msg string) error {
	if err := transition(j, store.StatusFailed); err != nil {
		return err
	}
	j.Progress = FailedProgress
	j.ErrorMessage = msg
	return nil
}

// fail moves a non-terminal job to FAILED with msg.
func (o *Orchestrator) fail(ctx context.Context, id, msg string) error {
	_, err := o.update(ctx, id, func(j *store.Job) error { return failJob(j, msg) })
	return err
}
