package jobstore

import (
	"sort"
	"sync"
	"time"

	"github.com/edgeorchestra/orchestra/pkg/apperrors"
)

// MemoryJobStore is the in-process JobStore backend.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*Job)}
}

func (m *MemoryJobStore) Create(j *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[j.ID]; exists {
		return apperrors.New(apperrors.FailedPrecondition, "job already exists")
	}
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *MemoryJobStore) Get(id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, errJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *MemoryJobStore) Update(id string, f Fields) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, errJobNotFound
	}
	f.apply(j, time.Now().UTC())
	cp := *j
	return &cp, nil
}

func (m *MemoryJobStore) ListAll(status *JobStatus) ([]*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if status != nil && j.Status != *status {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out, nil
}

func (m *MemoryJobStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return errJobNotFound
	}
	delete(m.jobs, id)
	return nil
}

func (m *MemoryJobStore) Close() error { return nil }

// MemoryModelStore is the in-process ModelStore backend.
type MemoryModelStore struct {
	mu     sync.RWMutex
	models map[string]*Model
	// referencedBy tracks, for a model id, whether a training job
	// currently references it, as recorded through MarkReferenced, so
	// Delete can enforce the rule that a referenced model cannot be
	// removed. Nothing in this module besides the tests calls
	// MarkReferenced.
	referencedBy map[string]bool
}

func NewMemoryModelStore() *MemoryModelStore {
	return &MemoryModelStore{
		models:       make(map[string]*Model),
		referencedBy: make(map[string]bool),
	}
}

func (m *MemoryModelStore) Create(mdl *Model) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.models[mdl.ID]; exists {
		return apperrors.New(apperrors.FailedPrecondition, "model already exists")
	}
	cp := *mdl
	m.models[mdl.ID] = &cp
	return nil
}

func (m *MemoryModelStore) Get(id string) (*Model, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mdl, ok := m.models[id]
	if !ok {
		return nil, errModelNotFound
	}
	cp := *mdl
	return &cp, nil
}

func (m *MemoryModelStore) Update(id string, status ModelStatus, bumpVersion bool) (*Model, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mdl, ok := m.models[id]
	if !ok {
		return nil, errModelNotFound
	}
	mdl.Status = status
	if bumpVersion {
		mdl.Version++
	}
	mdl.UpdatedAt = time.Now().UTC()
	cp := *mdl
	return &cp, nil
}

func (m *MemoryModelStore) ListAll() ([]*Model, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Model, 0, len(m.models))
	for _, mdl := range m.models {
		cp := *mdl
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out, nil
}

// MarkReferenced records whether model id is currently referenced by a
// training-status job, so Delete can reject removal per spec.md §4.5.
func (m *MemoryModelStore) MarkReferenced(id string, referenced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if referenced {
		m.referencedBy[id] = true
	} else {
		delete(m.referencedBy, id)
	}
}

func (m *MemoryModelStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.models[id]; !ok {
		return errModelNotFound
	}
	if m.referencedBy[id] {
		return apperrors.New(apperrors.FailedPrecondition, "model is referenced by a training job")
	}
	delete(m.models, id)
	return nil
}

func (m *MemoryModelStore) Close() error { return nil }

var _ JobStore = (*MemoryJobStore)(nil)
var _ ModelStore = (*MemoryModelStore)(nil)
