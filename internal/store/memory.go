package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryStore is a thread-safe in-memory Store with TTL eviction of
// terminal jobs.
type MemoryStore struct {
	mu        sync.Mutex
	materials map[string]Material
	jobs      map[string]Job
	items     map[string][]Item
	ttl       time.Duration
	now       func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		materials: make(map[string]Material),
		jobs:      make(map[string]Job),
		items:     make(map[string][]Item),
		ttl:       ttl,
		now:       time.Now,
	}
}

func (s *MemoryStore) CreateMaterial(_ context.Context, m *Material) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.materials[m.ID]; ok {
		return fmt.Errorf("material %s already exists", m.ID)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	s.materials[m.ID] = *m
	return nil
}

func (s *MemoryStore) GetMaterial(_ context.Context, id string) (*Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.materials[id]
	if !ok {
		return nil, fmt.Errorf("material %s: %w", id, ErrNotFound)
	}
	return &m, nil
}

func (s *MemoryStore) FindMaterialByHash(_ context.Context, courseID, hash string) (*Material, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *Material
	for _, m := range s.materials {
		if m.CourseID != courseID || m.ContentHash != hash {
			continue
		}
		if found == nil || m.CreatedAt.Before(found.CreatedAt) {
			m := m
			found = &m
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s *MemoryStore) CreateJob(_ context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("job %s already exists", j.ID)
	}
	now := s.now()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	s.jobs[j.ID] = *j
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return &j, nil
}

func (s *MemoryStore) UpdateJob(_ context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		return fmt.Errorf("job %s: %w", j.ID, ErrNotFound)
	}
	j.UpdatedAt = s.now()
	s.jobs[j.ID] = *j
	return nil
}

func (s *MemoryStore) CreateItem(_ context.Context, it *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[it.JobID]; !ok {
		return fmt.Errorf("job %s: %w", it.JobID, ErrNotFound)
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = s.now()
	}
	cp := *it
	cp.Keywords = slices.Clone(it.Keywords)
	s.items[it.JobID] = append(s.items[it.JobID], cp)
	return nil
}

func (s *MemoryStore) ListItems(_ context.Context, jobID string) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	return slices.Clone(s.items[jobID]), nil
}

// Cleanup removes terminal jobs, and their items, not updated within the TTL.
// Materials are kept. It returns the number of jobs evicted.
func (s *MemoryStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, j := range s.jobs {
		if j.Status.Terminal() && now.Sub(j.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
			delete(s.items, id)
			n++
		}
	}
	return n
}
