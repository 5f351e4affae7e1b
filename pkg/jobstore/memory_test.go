package jobstore

import (
	"testing"
	"time"

	"github.com/edgeorchestra/orchestra/pkg/apperrors"
)

func newTestJob(id, modelID string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:               id,
		ModelID:          modelID,
		Status:           JobPending,
		NumRounds:        10,
		MinDevices:       1,
		BaseLearningRate: 0.01,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestJobStoreCreateAndGet(t *testing.T) {
	s := NewMemoryJobStore()
	j := newTestJob("job-1", "model-1")
	if err := s.Create(j); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.Get("job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != JobPending {
		t.Errorf("got status %v want pending", got.Status)
	}
}

func TestJobStoreUpdateCurrentRoundAndMetrics(t *testing.T) {
	s := NewMemoryJobStore()
	j := newTestJob("job-1", "model-1")
	if err := s.Create(j); err != nil {
		t.Fatalf("Create: %v", err)
	}
	running := JobRunning
	round := 1
	metrics := []RoundMetric{{Round: 1, Participants: 1}}
	updated, err := s.Update("job-1", Fields{Status: &running, CurrentRound: &round, RoundMetrics: metrics})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.CurrentRound != 1 || updated.Status != JobRunning || len(updated.RoundMetrics) != 1 {
		t.Fatalf("unexpected job state: %+v", updated)
	}
}

func TestJobStoreListAllFiltersByStatus(t *testing.T) {
	s := NewMemoryJobStore()
	j1 := newTestJob("job-1", "model-1")
	j2 := newTestJob("job-2", "model-1")
	j2.Status = JobCompleted
	if err := s.Create(j1); err != nil {
		t.Fatalf("Create j1: %v", err)
	}
	if err := s.Create(j2); err != nil {
		t.Fatalf("Create j2: %v", err)
	}
	completed := JobCompleted
	got, err := s.ListAll(&completed)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(got) != 1 || got[0].ID != "job-2" {
		t.Fatalf("expected only job-2 completed, got %+v", got)
	}
}

func TestModelStoreDeleteRejectedWhileReferenced(t *testing.T) {
	s := NewMemoryModelStore()
	m := &Model{ID: "model-1", Name: "m", Architecture: "mlp_tabular_small", Status: ModelTraining, CreatedAt: time.Now()}
	if err := s.Create(m); err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.MarkReferenced("model-1", true)
	err := s.Delete("model-1")
	if !apperrors.IsFailedPrecondition(err) {
		t.Fatalf("expected failed_precondition, got %v", err)
	}
	s.MarkReferenced("model-1", false)
	if err := s.Delete("model-1"); err != nil {
		t.Fatalf("expected delete to succeed once unreferenced, got %v", err)
	}
}

func TestModelStoreUpdateBumpsVersion(t *testing.T) {
	s := NewMemoryModelStore()
	m := &Model{ID: "model-1", Name: "m", Architecture: "cnn_mnist", Status: ModelInitial, CreatedAt: time.Now()}
	if err := s.Create(m); err != nil {
		t.Fatalf("Create: %v", err)
	}
	updated, err := s.Update("model-1", ModelTrained, true)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Version != 1 || updated.Status != ModelTrained {
		t.Fatalf("unexpected model state: %+v", updated)
	}
}
