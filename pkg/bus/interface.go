package bus

import (
	"context"
	"time"
)

// Interface is the shared blob/keyvalue namespace contract. Bus satisfies
// it against real Redis; MemoryBus satisfies it in-process for tests and
// the coordinator's unit test harness, the same way the teacher's storage
// package lets MemoryStorageBackend stand in for Redis/Postgres.
type Interface interface {
	PutModel(ctx context.Context, modelID string, blob []byte, meta ModelMeta) error
	GetModel(ctx context.Context, modelID string) ([]byte, error)
	GetModelMeta(ctx context.Context, modelID string) (*ModelMeta, error)
	DeleteModel(ctx context.Context, modelID string) error

	AppendGradient(ctx context.Context, modelID string, round int, sub GradientSubmission) error
	GradientBucket(ctx context.Context, modelID string, round int) ([]GradientSubmission, error)
	DeleteGradientBucket(ctx context.Context, modelID string, round int) error

	SetStop(ctx context.Context, jobID string) error
	IsStopSet(ctx context.Context, jobID string) (bool, error)
	ClearStop(ctx context.Context, jobID string) error

	SetLatestMetrics(ctx context.Context, metrics map[string]any) error
	GetLatestMetrics(ctx context.Context) (map[string]any, error)

	Heartbeat(ctx context.Context, deviceID string, ttl time.Duration) error
	HasLiveHeartbeat(ctx context.Context, deviceID string) (bool, error)

	EnqueueCommand(ctx context.Context, deviceID string, command any) error
	PopCommand(ctx context.Context, deviceID string) ([]byte, error)

	Close() error
}

var _ Interface = (*Bus)(nil)
var _ Interface = (*MemoryBus)(nil)
