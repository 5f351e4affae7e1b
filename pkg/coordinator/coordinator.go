package coordinator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgeorchestra/orchestra/pkg/apperrors"
	"github.com/edgeorchestra/orchestra/pkg/bus"
	"github.com/edgeorchestra/orchestra/pkg/devicestore"
	"github.com/edgeorchestra/orchestra/pkg/jobstore"
	"github.com/edgeorchestra/orchestra/pkg/modelcontainer"
)

// Coordinator owns every training job's lifecycle. It is the only writer
// of job status after creation (spec.md §3 "Ownership"), except for the
// operator-initiated stop/retry entry points below.
type Coordinator struct {
	jobs      jobstore.JobStore
	models    jobstore.ModelStore
	devices   devicestore.Store
	bus       bus.Interface
	registry  *modelcontainer.Registry
	evaluator Evaluator
	config    Config

	mu     sync.Mutex
	active map[string]chan struct{} // job id -> done channel, so Resume never double-schedules
}

func New(jobs jobstore.JobStore, models jobstore.ModelStore, devices devicestore.Store, b bus.Interface, registry *modelcontainer.Registry, evaluator Evaluator, cfg Config) *Coordinator {
	if evaluator == nil {
		evaluator = DefaultEvaluator{}
	}
	return &Coordinator{
		jobs:      jobs,
		models:    models,
		devices:   devices,
		bus:       b,
		registry:  registry,
		evaluator: evaluator,
		config:    cfg,
		active:    make(map[string]chan struct{}),
	}
}

// StartJob launches a pending job's round loop as a background task. It is
// the normal entry point for a freshly created job.
func (c *Coordinator) StartJob(ctx context.Context, jobID string) error {
	job, err := c.jobs.Get(jobID)
	if err != nil {
		return err
	}
	if job.Status != jobstore.JobPending {
		return apperrors.New(apperrors.FailedPrecondition, "job is not pending")
	}
	return c.schedule(ctx, job)
}

// Resume re-owns every job left in status "running" from a prior process
// (spec.md §4.8 "Resume semantics"). Call once at startup before serving
// any RPC traffic.
func (c *Coordinator) Resume(ctx context.Context) error {
	running := jobstore.JobRunning
	jobs, err := c.jobs.ListAll(&running)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if err := c.ensureModelBlob(ctx, job); err != nil {
			log.Printf("coordinator: resume %s: recreate model blob: %v", job.ID, err)
		}
		if err := c.schedule(ctx, job); err != nil {
			log.Printf("coordinator: resume %s: %v", job.ID, err)
		}
	}
	return nil
}

// ensureModelBlob recreates a model's blob from its architecture
// descriptor if it went missing (e.g. the bus was flushed between
// crashes), with a warning rather than failing resume outright.
func (c *Coordinator) ensureModelBlob(ctx context.Context, job *jobstore.Job) error {
	existing, err := c.bus.GetModel(ctx, job.ModelID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	log.Printf("coordinator: model blob for %s missing on resume, recreating from architecture descriptor", job.ModelID)
	model, err := c.models.Get(job.ModelID)
	if err != nil {
		return err
	}
	desc, err := c.registry.Get(model.Architecture)
	if err != nil {
		return err
	}
	blobBytes, err := modelcontainer.Marshal(modelcontainer.NewBlob(desc))
	if err != nil {
		return err
	}
	return c.bus.PutModel(ctx, job.ModelID, blobBytes, bus.ModelMeta{
		ModelID: job.ModelID, Name: model.Name, Version: model.Version, Framework: "edgeorchestra",
		SizeBytes: len(blobBytes),
	})
}

// schedule starts runJob in the background exactly once per job id.
func (c *Coordinator) schedule(ctx context.Context, job *jobstore.Job) error {
	c.mu.Lock()
	if _, ok := c.active[job.ID]; ok {
		c.mu.Unlock()
		return nil
	}
	done := make(chan struct{})
	c.active[job.ID] = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			c.mu.Lock()
			delete(c.active, job.ID)
			c.mu.Unlock()
		}()
		c.runJob(ctx, job)
	}()
	return nil
}

// StopJob raises the stop flag; the coordinator consumes it at the next
// round boundary.
func (c *Coordinator) StopJob(ctx context.Context, jobID string) error {
	if _, err := c.jobs.Get(jobID); err != nil {
		return err
	}
	return c.bus.SetStop(ctx, jobID)
}

// RetryJob transitions a failed job back to running, resuming from
// current_round+1, per spec.md §4.8. Returns an apperrors FailedPrecondition
// error if the job is not currently failed.
func (c *Coordinator) RetryJob(ctx context.Context, jobID string) (resumeFromRound int, err error) {
	job, err := c.jobs.Get(jobID)
	if err != nil {
		return 0, err
	}
	if job.Status != jobstore.JobFailed {
		return 0, apperrors.New(apperrors.FailedPrecondition, "retry requires a failed job")
	}
	running := jobstore.JobRunning
	updated, err := c.jobs.Update(jobID, jobstore.Fields{Status: &running})
	if err != nil {
		return 0, err
	}
	if err := c.schedule(ctx, updated); err != nil {
		return 0, err
	}
	return updated.CurrentRound + 1, nil
}

// CreateJob persists a new job row, auto-creating a private model first if
// ModelID is empty (spec.md §3 "model_id (optional; if absent a default
// model is auto-created on start)").
func (c *Coordinator) CreateJob(job *jobstore.Job, architecture string) error {
	if job.MinDevices < 1 {
		return apperrors.New(apperrors.InvalidArgument, "min_devices must be >= 1")
	}
	now := time.Now().UTC()
	if job.ModelID == "" {
		desc, err := c.registry.Get(architecture)
		if err != nil {
			return apperrors.Wrap(apperrors.InvalidArgument, "unknown architecture", err)
		}
		model := &jobstore.Model{
			ID: uuid.NewString(), Name: job.ID + "-implicit-model", Architecture: desc.Key,
			Status: jobstore.ModelInitial, CreatedAt: now, UpdatedAt: now,
		}
		if err := c.models.Create(model); err != nil {
			return err
		}
		blobBytes, err := modelcontainer.Marshal(modelcontainer.NewBlob(desc))
		if err != nil {
			return err
		}
		if err := c.bus.PutModel(context.Background(), model.ID, blobBytes, bus.ModelMeta{
			ModelID: model.ID, Name: model.Name, Version: 0, Framework: "edgeorchestra", SizeBytes: len(blobBytes),
		}); err != nil {
			return err
		}
		job.ModelID = model.ID
		job.ImplicitModel = true
	}
	job.Status = jobstore.JobPending
	job.CreatedAt = now
	job.UpdatedAt = now
	return c.jobs.Create(job)
}
