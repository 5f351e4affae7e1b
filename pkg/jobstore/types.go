// Package jobstore is the durable repository for training jobs and models
// (spec.md §3, §4.5): the system of record for job lifecycle state, its
// per-round metrics checkpoint, and the model rows that track aggregation
// provenance.
package jobstore

import "time"

// ModelStatus is a model's lifecycle status.
type ModelStatus string

const (
	ModelInitial  ModelStatus = "initial"
	ModelTraining ModelStatus = "training"
	ModelTrained  ModelStatus = "trained"
	ModelError    ModelStatus = "error"
)

// Model is a versioned, architecture-bound aggregation target.
type Model struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Architecture   string      `json:"architecture"`
	Version        int         `json:"version"`
	Status         ModelStatus `json:"status"`
	ParentModelID  *string     `json:"parent_model_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// JobStatus is a training job's lifecycle status.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobStopped   JobStatus = "stopped"
	JobFailed    JobStatus = "failed"
)

// DeviceMetric is one device's contribution to a round's evaluation record.
type DeviceMetric struct {
	DeviceID   string  `json:"device_id"`
	NumSamples int     `json:"num_samples"`
}

// RoundMetric is one per-round outcome record appended to a job's
// round_metrics sequence as each round's aggregation persists.
type RoundMetric struct {
	Round         int            `json:"round"`
	Participants  int            `json:"participants"`
	Dispatched    int            `json:"dispatched"`
	AvgLoss       float64        `json:"avg_loss,omitempty"`
	AvgAccuracy   float64        `json:"avg_accuracy,omitempty"`
	DeviceMetrics []DeviceMetric `json:"device_metrics,omitempty"`
	Skipped       bool           `json:"skipped,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	EndedAt       time.Time      `json:"ended_at"`
}

// Job is one training job row.
type Job struct {
	ID                string        `json:"id"`
	ModelID           string        `json:"model_id"`
	ImplicitModel     bool          `json:"implicit_model"`
	Status            JobStatus     `json:"status"`
	NumRounds         int           `json:"num_rounds"`
	CurrentRound      int           `json:"current_round"`
	MinDevices        int           `json:"min_devices"`
	BaseLearningRate  float32       `json:"base_learning_rate"`
	RoundMetrics      []RoundMetric `json:"round_metrics"`
	SchedulerOverride []byte        `json:"scheduler_override,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
}

// IsTerminal reports whether status is a sticky terminal status.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobStopped || s == JobFailed
}

// Fields carries the arbitrary column updates job Update(id, **kw) supports
// in the original contract; every non-nil field is written.
type Fields struct {
	Status       *JobStatus
	CurrentRound *int
	RoundMetrics []RoundMetric
	CompletedAt  *time.Time
}
