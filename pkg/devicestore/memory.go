package devicestore

import (
	"sort"
	"sync"
	"time"

	"github.com/edgeorchestra/orchestra/pkg/apperrors"
)

// MemoryStore is the in-process backend, grounded on the teacher's
// MemoryStorageBackend: a mutex-guarded map standing in for a database in
// tests and single-process deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	devices map[string]*Device
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{devices: make(map[string]*Device)}
}

func (m *MemoryStore) Register(d *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.devices[d.ID]; exists {
		return apperrors.New(apperrors.FailedPrecondition, "device already registered")
	}
	cp := *d
	m.devices[d.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(id string) (*Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) Update(id string, u Update) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, errNotFound
	}
	u.apply(d, time.Now().UTC())
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) UpdateMetrics(id string, metrics map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return errNotFound
	}
	if d.Metrics == nil {
		d.Metrics = make(map[string]string, len(metrics))
	}
	for k, v := range metrics {
		d.Metrics[k] = v
	}
	d.LastSeenAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) ListAll(status *Status) ([]*Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Device, 0, len(m.devices))
	for _, d := range m.devices {
		if status != nil && d.Status != *status {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.After(out[j].RegisteredAt) })
	return out, nil
}

func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[id]; !ok {
		return errNotFound
	}
	delete(m.devices, id)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
