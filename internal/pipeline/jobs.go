package pipeline

import (
	"fmt"
	"slices"
	"sync"

	"github.com/dgallion1/quizgest/internal/store"
)

// Progress checkpoints. Work units report inside [UnitsStart, UnitsEnd].
const (
	ProgressStarted  = 10
	UnitsStart       = 30
	UnitsEnd         = 90
	ProgressComplete = 100
	// FailedProgress is the progress recorded on every FAILED job.
	FailedProgress = 0
)

// Messages recorded on jobs stopped from outside the run.
const (
	MsgCancelled  = "cancelled"
	MsgSuperseded = "superseded by reset"
)

var transitions = map[store.Status][]store.Status{
	store.StatusPending:    {store.StatusProcessing, store.StatusFailed},
	store.StatusProcessing: {store.StatusCompleted, store.StatusFailed},
}

// CanTransition reports whether the state machine allows from -> to.
// COMPLETED and FAILED are terminal.
func CanTransition(from, to store.Status) bool {
	return slices.Contains(transitions[from], to)
}

func transition(j *store.Job, to store.Status) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	return nil
}

// unitProgress maps done of total units into the reserved window.
func unitProgress(done, total int) int {
	if total <= 0 {
		return UnitsEnd
	}
	return UnitsStart + (UnitsEnd-UnitsStart)*done/total
}

// keyedMutex serializes writers per job id. Entries are dropped when the
// last holder unlocks.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// liveRuns tracks the jobs a worker is running and whether their run was
// halted. A halt reason exists only while its run is live.
type liveRuns struct {
	mu  sync.Mutex
	run map[string]string // job id -> halt reason, "" while not halted
}

func (r *liveRuns) start(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run == nil {
		r.run = make(map[string]string)
	}
	r.run[id] = ""
}

// halt flags a live run; a later reason overwrites an earlier one. It
// reports false when no run holds the job.
func (r *liveRuns) halt(id, reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.run[id]; !ok {
		return false
	}
	r.run[id] = reason
	return true
}

func (r *liveRuns) reason(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run[id]
}

func (r *liveRuns) finish(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.run, id)
}
