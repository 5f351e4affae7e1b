// Package bus is the shared blob/keyvalue namespace (spec.md §6) backing
// model blobs, per-round gradient buckets, the stop flag, latest metrics,
// heartbeat liveness keys, and per-device command queues. It is the
// concurrency contract between the coordinator, the streaming RPC
// services, and the operator-facing API.
package bus

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config mirrors the teacher's RedisConfig field-for-field.
type Config struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	Database int    `yaml:"database"`
	PoolSize int    `yaml:"pool_size"`
}

// Bus is the Redis-backed implementation of the shared namespace.
type Bus struct {
	client *redis.Client
}

func New(cfg Config) (*Bus, error) {
	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.Database,
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("bus: connect to redis: %w", err)
	}
	return &Bus{client: client}, nil
}

func (b *Bus) Close() error { return b.client.Close() }

func globalKey(modelID string) string { return fmt.Sprintf("model:%s:global", modelID) }
func metaKey(modelID string) string   { return fmt.Sprintf("model:%s:meta", modelID) }
func gradientsKey(modelID string, round int) string {
	return fmt.Sprintf("gradients:%s:%d", modelID, round)
}
func stopKey(jobID string) string  { return fmt.Sprintf("training:%s:stop", jobID) }
func heartbeatKey(deviceID string) string { return fmt.Sprintf("heartbeat:%s", deviceID) }
func commandKey(deviceID string) string   { return fmt.Sprintf("command:%s", deviceID) }

const latestMetricsKey = "training:latest_metrics"

// ModelMeta is the JSON metadata record stored alongside a model's blob.
type ModelMeta struct {
	ModelID   string `json:"model_id"`
	Name      string `json:"name"`
	Version   int    `json:"version"`
	Framework string `json:"framework"`
	SizeBytes int    `json:"size_bytes"`
}

// PutModel stores the model's global blob and metadata. Writer: coordinator
// or the upload RPC. Lifetime: until explicit cleanup.
func (b *Bus) PutModel(ctx context.Context, modelID string, blob []byte, meta ModelMeta) error {
	encoded := base64.StdEncoding.EncodeToString(blob)
	if err := b.client.Set(ctx, globalKey(modelID), encoded, 0).Err(); err != nil {
		return fmt.Errorf("bus: put model blob: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("bus: marshal model meta: %w", err)
	}
	if err := b.client.Set(ctx, metaKey(modelID), metaJSON, 0).Err(); err != nil {
		return fmt.Errorf("bus: put model meta: %w", err)
	}
	return nil
}

// GetModel reads back the model's global blob.
func (b *Bus) GetModel(ctx context.Context, modelID string) ([]byte, error) {
	encoded, err := b.client.Get(ctx, globalKey(modelID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bus: get model blob: %w", err)
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// GetModelMeta reads back the model's metadata record.
func (b *Bus) GetModelMeta(ctx context.Context, modelID string) (*ModelMeta, error) {
	data, err := b.client.Get(ctx, metaKey(modelID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bus: get model meta: %w", err)
	}
	var meta ModelMeta
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, fmt.Errorf("bus: unmarshal model meta: %w", err)
	}
	return &meta, nil
}

// DeleteModel removes both the blob and its metadata.
func (b *Bus) DeleteModel(ctx context.Context, modelID string) error {
	return b.client.Del(ctx, globalKey(modelID), metaKey(modelID)).Err()
}

// GradientSubmission is one device's JSON submission envelope in a round's
// gradient bucket.
type GradientSubmission struct {
	DeviceID   string `json:"device_id"`
	Gradients  string `json:"gradients"` // base64
	NumSamples int    `json:"num_samples"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// AppendGradient appends a submission to the round's ordered bucket.
func (b *Bus) AppendGradient(ctx context.Context, modelID string, round int, sub GradientSubmission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("bus: marshal gradient submission: %w", err)
	}
	return b.client.RPush(ctx, gradientsKey(modelID, round), data).Err()
}

// GradientBucket returns a round's ordered submissions.
func (b *Bus) GradientBucket(ctx context.Context, modelID string, round int) ([]GradientSubmission, error) {
	entries, err := b.client.LRange(ctx, gradientsKey(modelID, round), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("bus: read gradient bucket: %w", err)
	}
	out := make([]GradientSubmission, 0, len(entries))
	for _, e := range entries {
		var sub GradientSubmission
		if err := json.Unmarshal([]byte(e), &sub); err != nil {
			return nil, fmt.Errorf("bus: unmarshal gradient submission: %w", err)
		}
		out = append(out, sub)
	}
	return out, nil
}

// DeleteGradientBucket deletes a round's bucket once aggregation finishes.
func (b *Bus) DeleteGradientBucket(ctx context.Context, modelID string, round int) error {
	return b.client.Del(ctx, gradientsKey(modelID, round)).Err()
}

// SetStop raises the per-job stop flag.
func (b *Bus) SetStop(ctx context.Context, jobID string) error {
	return b.client.Set(ctx, stopKey(jobID), "1", 0).Err()
}

// IsStopSet reports whether the stop flag is raised.
func (b *Bus) IsStopSet(ctx context.Context, jobID string) (bool, error) {
	n, err := b.client.Exists(ctx, stopKey(jobID)).Result()
	if err != nil {
		return false, fmt.Errorf("bus: check stop flag: %w", err)
	}
	return n > 0, nil
}

// ClearStop removes the per-job stop flag once the coordinator consumes it.
func (b *Bus) ClearStop(ctx context.Context, jobID string) error {
	return b.client.Del(ctx, stopKey(jobID)).Err()
}

// SetLatestMetrics overwrites the cross-job scalar metrics snapshot.
func (b *Bus) SetLatestMetrics(ctx context.Context, metrics map[string]any) error {
	data, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("bus: marshal latest metrics: %w", err)
	}
	return b.client.Set(ctx, latestMetricsKey, data, 0).Err()
}

// GetLatestMetrics reads the cross-job scalar metrics snapshot, returning
// nil if the coordinator has not published one yet.
func (b *Bus) GetLatestMetrics(ctx context.Context) (map[string]any, error) {
	data, err := b.client.Get(ctx, latestMetricsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bus: get latest metrics: %w", err)
	}
	var metrics map[string]any
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, fmt.Errorf("bus: unmarshal latest metrics: %w", err)
	}
	return metrics, nil
}

// Heartbeat writes the device's liveness key with the given TTL.
func (b *Bus) Heartbeat(ctx context.Context, deviceID string, ttl time.Duration) error {
	return b.client.Set(ctx, heartbeatKey(deviceID), time.Now().UTC().Format(time.RFC3339Nano), ttl).Err()
}

// HasLiveHeartbeat reports whether the device's liveness key is still
// present (i.e. has not expired).
func (b *Bus) HasLiveHeartbeat(ctx context.Context, deviceID string) (bool, error) {
	n, err := b.client.Exists(ctx, heartbeatKey(deviceID)).Result()
	if err != nil {
		return false, fmt.Errorf("bus: check heartbeat key: %w", err)
	}
	return n > 0, nil
}

// EnqueueCommand pushes a command onto a device's FIFO command queue.
func (b *Bus) EnqueueCommand(ctx context.Context, deviceID string, command any) error {
	data, err := json.Marshal(command)
	if err != nil {
		return fmt.Errorf("bus: marshal command: %w", err)
	}
	return b.client.RPush(ctx, commandKey(deviceID), data).Err()
}

// PopCommand pops the oldest pending command for a device, or returns nil
// if the queue is empty.
func (b *Bus) PopCommand(ctx context.Context, deviceID string) ([]byte, error) {
	data, err := b.client.LPop(ctx, commandKey(deviceID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bus: pop command: %w", err)
	}
	return data, nil
}
