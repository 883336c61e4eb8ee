package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/quizgest/internal/doctree"
	"github.com/dgallion1/quizgest/internal/generate"
	"github.com/dgallion1/quizgest/internal/quota"
	"github.com/dgallion1/quizgest/internal/retrieval"
	"github.com/dgallion1/quizgest/internal/store"
)

// errHalted ends a run whose job was cancelled or superseded.
var errHalted = errors.New("job halted")

// tally counts unit outcomes of one run.
type tally struct {
	mu        sync.Mutex
	done      int
	failed    int
	generated int
}

func (t *tally) record(saved int, failed bool) (done, nfailed, generated int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done++
	t.generated += saved
	if failed {
		t.failed++
	}
	return t.done, t.failed, t.generated
}

// process runs one job to a terminal state. A panic anywhere in the run
// fails the job.
func (o *Orchestrator) process(ctx context.Context, t task) {
	log := o.log.With("job_id", t.jobID, "material_id", t.materialID)
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", "panic", r)
			if err := o.fail(context.WithoutCancel(ctx), t.jobID, fmt.Sprintf("internal error: %v", r)); err != nil {
				log.Error("failed to record panic", "error", err)
			}
		}
	}()

	// PENDING -> PROCESSING. Anything else is a duplicate start and the
	// record is left untouched.
	_, err := o.update(ctx, t.jobID, func(j *store.Job) error {
		if j.Status != store.StatusPending {
			return fmt.Errorf("%w: job is %s", ErrJobNotPending, j.Status)
		}
		j.Status = store.StatusProcessing
		j.Progress = ProgressStarted
		o.runs.start(j.ID)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPersistence) {
			o.runs.finish(t.jobID)
		}
		log.Warn("start rejected", "error", err)
		return
	}
	defer o.runs.finish(t.jobID)

	if _, err := o.Material(ctx, t.materialID); err != nil {
		log.Error("precondition failed", "error", err)
		o.finishFailed(ctx, log, t.jobID, err.Error())
		return
	}
	if err := o.setProgress(ctx, t.jobID, UnitsStart, 0, 0); err != nil {
		o.abort(ctx, log, t.jobID, err)
		return
	}

	res := &tally{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrentUnits)
	for _, u := range t.units {
		if o.runs.reason(t.jobID) != "" {
			break
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("unit panicked: %v", r)
				}
			}()
			return o.runUnit(gctx, log, t, u, res)
		})
	}
	err = g.Wait()

	if ctx.Err() != nil {
		// Shutdown mid-run leaves the job PROCESSING until it is reset.
		log.Warn("run interrupted by shutdown", "error", ctx.Err())
		return
	}
	switch reason := o.runs.reason(t.jobID); {
	case reason == MsgSuperseded:
		log.Info("run superseded by reset")
		return
	case reason == MsgCancelled:
		log.Info("run cancelled")
		o.finishFailed(ctx, log, t.jobID, MsgCancelled)
		return
	case err != nil:
		o.abort(ctx, log, t.jobID, err)
		return
	}

	if res.generated == 0 {
		msg := fmt.Sprintf("no items generated (%d of %d units failed)", res.failed, len(t.units))
		log.Error("job failed", "reason", msg)
		o.finishFailed(ctx, log, t.jobID, msg)
		return
	}

	_, err = o.update(ctx, t.jobID, func(j *store.Job) error {
		if err := transition(j, store.StatusCompleted); err != nil {
			return err
		}
		j.Progress = ProgressComplete
		j.GeneratedCount = res.generated
		j.FailedUnits = res.failed
		return nil
	})
	if err != nil {
		o.abort(ctx, log, t.jobID, err)
		return
	}
	log.Info("job completed", "generated", res.generated, "requested", t.requested(), "failed_units", res.failed)
}

// runUnit generates and persists one unit. Generation failures are logged
// and counted; only persistence failures are returned, aborting the job.
func (o *Orchestrator) runUnit(ctx context.Context, log *slog.Logger, t task, u quota.Unit, res *tally) error {
	if o.runs.reason(t.jobID) != "" {
		return nil
	}
	ulog := log.With("chunk", u.ChunkIndex, "difficulty", u.Difficulty, "cognitive_level", u.Cognitive)

	items, unitErr := o.generateUnit(ctx, ulog, t, u)
	if unitErr != nil {
		ulog.Error("unit failed", "error", unitErr)
	}

	saved := 0
	for i := range items {
		if o.runs.reason(t.jobID) != "" {
			return nil
		}
		if err := o.store.CreateItem(ctx, &items[i]); err != nil {
			return fmt.Errorf("%w: save item: %w", ErrPersistence, err)
		}
		saved++
	}

	done, failed, generated := res.record(saved, unitErr != nil)
	if o.runs.reason(t.jobID) != "" {
		return nil
	}
	if err := o.setProgress(ctx, t.jobID, unitProgress(done, len(t.units)), generated, failed); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return errHalted
		}
		return err
	}
	return nil
}

// setProgress raises progress and counters of a PROCESSING job. Values never
// go down, so concurrent units may report out of order.
func (o *Orchestrator) setProgress(ctx context.Context, id string, progress, generated, failed int) error {
	_, err := o.update(ctx, id, func(j *store.Job) error {
		if j.Status != store.StatusProcessing {
			return fmt.Errorf("%w: progress on %s job", ErrInvalidTransition, j.Status)
		}
		j.Progress = max(j.Progress, progress)
		j.GeneratedCount = max(j.GeneratedCount, generated)
		j.FailedUnits = max(j.FailedUnits, failed)
		return nil
	})
	return err
}

// abort fails the job after a fatal error in the run.
func (o *Orchestrator) abort(ctx context.Context, log *slog.Logger, id string, err error) {
	if errors.Is(err, errHalted) || errors.Is(err, ErrInvalidTransition) {
		log.Info("run stopped", "reason", err)
		return
	}
	log.Error("job aborted", "error", err)
	o.finishFailed(ctx, log, id, err.Error())
}

func (o *Orchestrator) finishFailed(ctx context.Context, log *slog.Logger, id, msg string) {
	if err := o.fail(context.WithoutCancel(ctx), id, msg); err != nil {
		log.Error("failed to record job failure", "error", err)
	}
}

// generateUnit asks the provider for one unit's items and validates them.
func (o *Orchestrator) generateUnit(ctx context.Context, log *slog.Logger, t task, u quota.Unit) ([]store.Item, error) {
	if u.ChunkIndex < 0 || u.ChunkIndex >= len(t.chunks) {
		return nil, fmt.Errorf("unit references chunk %d of %d", u.ChunkIndex, len(t.chunks))
	}
	chunk := t.chunks[u.ChunkIndex]

	req := generate.PromptRequest{
		DocumentTitle: t.title,
		Chunk:         chunk,
		Count:         u.Count,
		Passages:      o.passages(ctx, log, t, chunk),
	}
	if tier, ok := quota.LookupDifficulty(u.Difficulty); ok {
		req.Difficulty = &tier
	}
	if tier, ok := quota.LookupCognitive(u.Cognitive); ok {
		req.Cognitive = &tier
	}

	unitCtx, cancel := context.WithTimeout(ctx, o.cfg.UnitTimeout)
	defer cancel()

	raw, err := o.generateWithRetry(unitCtx, log, generate.BuildPrompt(req))
	if err != nil {
		return nil, err
	}
	parsed, err := generate.ParseItems(raw, generate.Expect{
		Difficulty: u.Difficulty,
		Cognitive:  u.Cognitive,
		Count:      u.Count,
	})
	if err != nil {
		return nil, err
	}

	items := make([]store.Item, len(parsed))
	for i, p := range parsed {
		items[i] = store.Item{
			ID:         uuid.NewString(),
			JobID:      t.jobID,
			ChunkID:    chunk.ID,
			ChunkIndex: chunk.Index,
			Text:       p.Question,
			Answer:     p.Answer,
			Difficulty: p.Difficulty,
			Cognitive:  p.Cognitive,
			Marks:      p.Marks,
			Keywords:   chunk.Keywords,
		}
	}
	return items, nil
}

func (o *Orchestrator) generateWithRetry(ctx context.Context, log *slog.Logger, prompt string) (string, error) {
	var lastErr error
	for attempt := range o.cfg.UnitMaxRetries {
		if err := o.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
		raw, err := o.gen.Generate(ctx, prompt)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == o.cfg.UnitMaxRetries-1 {
			break
		}
		wait := o.backoff(attempt)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			// The retry could not finish inside the unit timeout.
			break
		}
		log.Warn("retryable generation error", "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

// passages retrieves related material for the chunk, skipping hits on the
// chunk itself. Retrieval errors degrade to chunk-only context.
func (o *Orchestrator) passages(ctx context.Context, log *slog.Logger, t task, chunk doctree.Chunk) []string {
	if o.retriever == nil {
		return nil
	}
	query := strings.TrimSpace(chunk.Title + " " + strings.Join(chunk.Keywords, " "))
	if query == "" {
		return nil
	}
	hits, err := o.retriever.Retrieve(ctx, query, map[string]string{retrieval.ScopeMaterial: t.materialID}, o.cfg.RetrievalTopK)
	if err != nil {
		log.Warn("retrieval failed", "error", err)
		return nil
	}
	var out []string
	for _, h := range hits {
		if h.MaterialID == t.materialID && h.ChunkIndex == chunk.Index {
			continue
		}
		out = append(out, h.Content)
	}
	return out
}

func (t task) requested() int {
	return quota.TotalCount(t.units)
}
