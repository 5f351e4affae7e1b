package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryBus is the in-process Interface backend, grounded on the teacher's
// MemoryStorageBackend: plain maps plus a mutex, with TTL entries expired
// lazily on read the way an in-memory cache without a background reaper
// normally does.
type MemoryBus struct {
	mu         sync.Mutex
	blobs      map[string][]byte
	metas      map[string]ModelMeta
	gradients  map[string][]GradientSubmission
	stopFlags  map[string]bool
	latest     map[string]any
	heartbeats map[string]time.Time
	commands   map[string][][]byte
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		blobs:      make(map[string][]byte),
		metas:      make(map[string]ModelMeta),
		gradients:  make(map[string][]GradientSubmission),
		stopFlags:  make(map[string]bool),
		heartbeats: make(map[string]time.Time),
		commands:   make(map[string][][]byte),
	}
}

func (m *MemoryBus) PutModel(_ context.Context, modelID string, blob []byte, meta ModelMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(blob))
	copy(cp, blob)
	m.blobs[modelID] = cp
	m.metas[modelID] = meta
	return nil
}

func (m *MemoryBus) GetModel(_ context.Context, modelID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.blobs[modelID]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)
	return cp, nil
}

func (m *MemoryBus) GetModelMeta(_ context.Context, modelID string) (*ModelMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.metas[modelID]
	if !ok {
		return nil, nil
	}
	cp := meta
	return &cp, nil
}

func (m *MemoryBus) DeleteModel(_ context.Context, modelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, modelID)
	delete(m.metas, modelID)
	return nil
}

func (m *MemoryBus) AppendGradient(_ context.Context, modelID string, round int, sub GradientSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s:%d", modelID, round)
	m.gradients[key] = append(m.gradients[key], sub)
	return nil
}

func (m *MemoryBus) GradientBucket(_ context.Context, modelID string, round int) ([]GradientSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("%s:%d", modelID, round)
	out := make([]GradientSubmission, len(m.gradients[key]))
	copy(out, m.gradients[key])
	return out, nil
}

func (m *MemoryBus) DeleteGradientBucket(_ context.Context, modelID string, round int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.gradients, fmt.Sprintf("%s:%d", modelID, round))
	return nil
}

func (m *MemoryBus) SetStop(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopFlags[jobID] = true
	return nil
}

func (m *MemoryBus) IsStopSet(_ context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopFlags[jobID], nil
}

func (m *MemoryBus) ClearStop(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stopFlags, jobID)
	return nil
}

func (m *MemoryBus) SetLatestMetrics(_ context.Context, metrics map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// round-trip through JSON so callers observe the same numeric types
	// (float64) that the Redis-backed Bus would hand back after decoding.
	data, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("bus: marshal latest metrics: %w", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("bus: unmarshal latest metrics: %w", err)
	}
	m.latest = decoded
	return nil
}

func (m *MemoryBus) GetLatestMetrics(_ context.Context) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return nil, nil
	}
	out := make(map[string]any, len(m.latest))
	for k, v := range m.latest {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryBus) Heartbeat(_ context.Context, deviceID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartbeats[deviceID] = time.Now().UTC().Add(ttl)
	return nil
}

func (m *MemoryBus) HasLiveHeartbeat(_ context.Context, deviceID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.heartbeats[deviceID]
	if !ok {
		return false, nil
	}
	if time.Now().UTC().After(expiry) {
		delete(m.heartbeats, deviceID)
		return false, nil
	}
	return true, nil
}

func (m *MemoryBus) EnqueueCommand(_ context.Context, deviceID string, command any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := json.Marshal(command)
	if err != nil {
		return fmt.Errorf("bus: marshal command: %w", err)
	}
	m.commands[deviceID] = append(m.commands[deviceID], data)
	return nil
}

func (m *MemoryBus) PopCommand(_ context.Context, deviceID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.commands[deviceID]
	if len(queue) == 0 {
		return nil, nil
	}
	head := queue[0]
	m.commands[deviceID] = queue[1:]
	return head, nil
}

func (m *MemoryBus) Close() error { return nil }
