package jobstore

import (
	"time"

	"github.com/edgeorchestra/orchestra/pkg/apperrors"
)

// JobStore is the job repository interface. Update supports arbitrary
// column updates the way the original job update(id, **kw) contract does;
// Fields' non-nil members are the ones actually written.
type JobStore interface {
	Create(j *Job) error
	Get(id string) (*Job, error)
	Update(id string, f Fields) (*Job, error)
	ListAll(status *JobStatus) ([]*Job, error)
	Delete(id string) error
	Close() error
}

// ModelStore is the model repository interface.
type ModelStore interface {
	Create(m *Model) error
	Get(id string) (*Model, error)
	Update(id string, status ModelStatus, bumpVersion bool) (*Model, error)
	ListAll() ([]*Model, error)
	Delete(id string) error
	Close() error
}

var errJobNotFound = apperrors.New(apperrors.NotFound, "job not found")
var errModelNotFound = apperrors.New(apperrors.NotFound, "model not found")

func (f Fields) apply(j *Job, now time.Time) {
	if f.Status != nil {
		j.Status = *f.Status
	}
	if f.CurrentRound != nil {
		j.CurrentRound = *f.CurrentRound
	}
	if f.RoundMetrics != nil {
		j.RoundMetrics = f.RoundMetrics
	}
	if f.CompletedAt != nil {
		j.CompletedAt = f.CompletedAt
	}
	j.UpdatedAt = now
}
