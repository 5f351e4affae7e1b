package coordinator_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/edgeorchestra/orchestra/pkg/bus"
	"github.com/edgeorchestra/orchestra/pkg/codec"
	"github.com/edgeorchestra/orchestra/pkg/coordinator"
	"github.com/edgeorchestra/orchestra/pkg/devicestore"
	"github.com/edgeorchestra/orchestra/pkg/heartbeat"
	"github.com/edgeorchestra/orchestra/pkg/jobstore"
	"github.com/edgeorchestra/orchestra/pkg/modelcontainer"
)

func testConfig() coordinator.Config {
	return coordinator.Config{
		RoundTimeout:       300 * time.Millisecond,
		PollInterval:       10 * time.Millisecond,
		MaxWaitAttempts:    5,
		MaxDispatchRetries: 1,
		BaseBackoff:        10 * time.Millisecond,
		MaxBackoff:         30 * time.Millisecond,
	}
}

func registerDevice(t *testing.T, devices devicestore.Store, id string, status devicestore.Status) {
	t.Helper()
	now := time.Now().UTC()
	err := devices.Register(&devicestore.Device{
		ID:           id,
		Status:       status,
		Hardware:     devicestore.Hardware{ChipLabel: "test-soc", MemoryBytes: 4 << 30, CPUCores: 4, NeuralAccelerators: 1},
		RegisteredAt: now,
		LastSeenAt:   now,
	})
	if err != nil {
		t.Fatalf("register device %s: %v", id, err)
	}
}

func gradientFor(desc *modelcontainer.ArchitectureDescriptor) *codec.Gradient {
	g := &codec.Gradient{}
	for _, p := range desc.Parameters {
		size := 1
		for _, d := range p.Shape {
			size *= d
		}
		values := make([]float32, size)
		for i := range values {
			values[i] = 0.01
		}
		g.Layers = append(g.Layers, codec.Layer{Name: p.Name, Values: values})
	}
	return g
}

// simulateDevice pops start_training commands for deviceID and answers
// every one with a synthetic gradient submission, until done is closed.
func simulateDevice(ctx context.Context, b bus.Interface, deviceID string, desc *modelcontainer.ArchitectureDescriptor, done <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			data, err := b.PopCommand(ctx, deviceID)
			if err != nil || data == nil {
				continue
			}
			var cmd heartbeat.Command
			if err := json.Unmarshal(data, &cmd); err != nil || cmd.Type != heartbeat.CommandStartTraining {
				continue
			}
			round, _ := strconv.Atoi(cmd.Parameters["round"])
			raw := codec.Encode(gradientFor(desc))
			sub := bus.GradientSubmission{
				DeviceID:   deviceID,
				Gradients:  base64.StdEncoding.EncodeToString(raw),
				NumSamples: 10,
			}
			b.AppendGradient(ctx, cmd.Parameters["model_id"], round, sub)
		}
	}
}

func waitForTerminal(t *testing.T, jobs jobstore.JobStore, jobID string, timeout time.Duration) *jobstore.Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		j, err := jobs.Get(jobID)
		if err != nil {
			t.Fatalf("get job %s: %v", jobID, err)
		}
		if j.Status.IsTerminal() {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal status within %s", jobID, timeout)
	return nil
}

func TestCoordinatorHappyPathSingleRound(t *testing.T) {
	registry := modelcontainer.DefaultRegistry()
	desc, err := registry.Get("mlp_tabular_small")
	if err != nil {
		t.Fatalf("get architecture: %v", err)
	}
	jobs := jobstore.NewMemoryJobStore()
	models := jobstore.NewMemoryModelStore()
	devices := devicestore.NewMemoryStore()
	b := bus.NewMemoryBus()
	co := coordinator.New(jobs, models, devices, b, registry, nil, testConfig())

	registerDevice(t, devices, "dev-1", devicestore.StatusOnline)

	job := &jobstore.Job{ID: "job-happy", NumRounds: 1, MinDevices: 1, BaseLearningRate: 0.1}
	if err := co.CreateJob(job, desc.Key); err != nil {
		t.Fatalf("create job: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go simulateDevice(ctx, b, "dev-1", desc, done)
	defer close(done)

	if err := co.StartJob(ctx, job.ID); err != nil {
		t.Fatalf("start job: %v", err)
	}

	final := waitForTerminal(t, jobs, job.ID, 2*time.Second)
	if final.Status != jobstore.JobCompleted {
		t.Fatalf("status = %s, want completed", final.Status)
	}
	if len(final.RoundMetrics) != 1 {
		t.Fatalf("round metrics = %d, want 1", len(final.RoundMetrics))
	}
	if final.RoundMetrics[0].Participants != 1 {
		t.Fatalf("participants = %d, want 1", final.RoundMetrics[0].Participants)
	}

	dev, err := devices.Get("dev-1")
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if dev.Status != devicestore.StatusOnline {
		t.Fatalf("device status = %s, want released back to online", dev.Status)
	}
}

func TestCoordinatorStopMidJob(t *testing.T) {
	registry := modelcontainer.DefaultRegistry()
	desc, err := registry.Get("mlp_tabular_small")
	if err != nil {
		t.Fatalf("get architecture: %v", err)
	}
	jobs := jobstore.NewMemoryJobStore()
	models := jobstore.NewMemoryModelStore()
	devices := devicestore.NewMemoryStore()
	b := bus.NewMemoryBus()
	co := coordinator.New(jobs, models, devices, b, registry, nil, testConfig())

	// No device is ever registered, so the round loop sits in its
	// device-wait backoff until the stop flag is observed.
	job := &jobstore.Job{ID: "job-stop", NumRounds: 2, MinDevices: 1, BaseLearningRate: 0.1}
	if err := co.CreateJob(job, desc.Key); err != nil {
		t.Fatalf("create job: %v", err)
	}

	ctx := context.Background()
	if err := co.StartJob(ctx, job.ID); err != nil {
		t.Fatalf("start job: %v", err)
	}

	time.Sleep(15 * time.Millisecond)
	if err := co.StopJob(ctx, job.ID); err != nil {
		t.Fatalf("stop job: %v", err)
	}

	final := waitForTerminal(t, jobs, job.ID, 2*time.Second)
	if final.Status != jobstore.JobStopped {
		t.Fatalf("status = %s, want stopped", final.Status)
	}
}

func TestCoordinatorDeviceWaitExhaustionFails(t *testing.T) {
	registry := modelcontainer.DefaultRegistry()
	desc, err := registry.Get("mlp_tabular_small")
	if err != nil {
		t.Fatalf("get architecture: %v", err)
	}
	jobs := jobstore.NewMemoryJobStore()
	models := jobstore.NewMemoryModelStore()
	devices := devicestore.NewMemoryStore()
	b := bus.NewMemoryBus()
	cfg := testConfig()
	cfg.MaxWaitAttempts = 3
	co := coordinator.New(jobs, models, devices, b, registry, nil, cfg)

	job := &jobstore.Job{ID: "job-exhaust", NumRounds: 1, MinDevices: 1, BaseLearningRate: 0.1}
	if err := co.CreateJob(job, desc.Key); err != nil {
		t.Fatalf("create job: %v", err)
	}

	ctx := context.Background()
	if err := co.StartJob(ctx, job.ID); err != nil {
		t.Fatalf("start job: %v", err)
	}

	final := waitForTerminal(t, jobs, job.ID, 2*time.Second)
	if final.Status != jobstore.JobFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}

	blob, err := b.GetModel(ctx, job.ModelID)
	if err != nil {
		t.Fatalf("get model blob: %v", err)
	}
	if len(blob) == 0 {
		t.Fatalf("model blob missing after failure, want preserved")
	}
}

func TestCoordinatorRetryResumesFromCheckpoint(t *testing.T) {
	registry := modelcontainer.DefaultRegistry()
	desc, err := registry.Get("mlp_tabular_small")
	if err != nil {
		t.Fatalf("get architecture: %v", err)
	}
	jobs := jobstore.NewMemoryJobStore()
	models := jobstore.NewMemoryModelStore()
	devices := devicestore.NewMemoryStore()
	b := bus.NewMemoryBus()
	cfg := testConfig()
	cfg.MaxWaitAttempts = 3
	co := coordinator.New(jobs, models, devices, b, registry, nil, cfg)

	// The device starts offline, so round 1 exhausts its wait and the job
	// fails before any round's metric record persists, so current_round
	// stays at its pre-round checkpoint of 0 and retry re-attempts round 1.
	registerDevice(t, devices, "dev-1", devicestore.StatusOffline)

	job := &jobstore.Job{ID: "job-retry", NumRounds: 2, MinDevices: 1, BaseLearningRate: 0.1}
	if err := co.CreateJob(job, desc.Key); err != nil {
		t.Fatalf("create job: %v", err)
	}

	ctx := context.Background()
	if err := co.StartJob(ctx, job.ID); err != nil {
		t.Fatalf("start job: %v", err)
	}

	failed := waitForTerminal(t, jobs, job.ID, 2*time.Second)
	if failed.Status != jobstore.JobFailed {
		t.Fatalf("status = %s, want failed", failed.Status)
	}
	if failed.CurrentRound != 0 {
		t.Fatalf("current_round = %d, want 0 (no round persisted yet)", failed.CurrentRound)
	}
	if len(failed.RoundMetrics) != 0 {
		t.Fatalf("round metrics = %d, want 0 before any round completes", len(failed.RoundMetrics))
	}

	online := devicestore.StatusOnline
	if _, err := devices.Update("dev-1", devicestore.Update{Status: &online}); err != nil {
		t.Fatalf("bring device online: %v", err)
	}
	done := make(chan struct{})
	go simulateDevice(ctx, b, "dev-1", desc, done)
	defer close(done)

	resumeFrom, err := co.RetryJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("retry job: %v", err)
	}
	if resumeFrom != 1 {
		t.Fatalf("resume round = %d, want 1 (the failed round is re-attempted)", resumeFrom)
	}

	final := waitForTerminal(t, jobs, job.ID, 2*time.Second)
	if final.Status != jobstore.JobCompleted {
		t.Fatalf("status = %s, want completed", final.Status)
	}
	if len(final.RoundMetrics) != 2 {
		t.Fatalf("round metrics = %d, want 2 (rounds 1 and 2)", len(final.RoundMetrics))
	}
	if final.RoundMetrics[0].Round != 1 || final.RoundMetrics[1].Round != 2 {
		t.Fatalf("round metric rounds = [%d, %d], want [1, 2]", final.RoundMetrics[0].Round, final.RoundMetrics[1].Round)
	}
}

// TestCoordinatorHonorsSchedulerOverride proves the job's scheduler override
// actually reaches schedule.Select through the round loop: with
// allow_low_power_mode disabled, the only device in low-power mode must
// never participate, even though it alone satisfies min_devices.
func TestCoordinatorHonorsSchedulerOverride(t *testing.T) {
	registry := modelcontainer.DefaultRegistry()
	desc, err := registry.Get("mlp_tabular_small")
	if err != nil {
		t.Fatalf("get architecture: %v", err)
	}
	jobs := jobstore.NewMemoryJobStore()
	models := jobstore.NewMemoryModelStore()
	devices := devicestore.NewMemoryStore()
	b := bus.NewMemoryBus()
	cfg := testConfig()
	cfg.MaxWaitAttempts = 3
	co := coordinator.New(jobs, models, devices, b, registry, nil, cfg)

	registerDevice(t, devices, "lp-only", devicestore.StatusOnline)
	if _, err := devices.Update("lp-only", devicestore.Update{
		Telemetry: &devicestore.Telemetry{IsLowPowerMode: true},
	}); err != nil {
		t.Fatalf("set low-power telemetry: %v", err)
	}

	override, err := json.Marshal(map[string]any{
		"scheduler": map[string]any{"allow_low_power_mode": false},
	})
	if err != nil {
		t.Fatalf("marshal override: %v", err)
	}
	job := &jobstore.Job{
		ID: "job-lpmode", NumRounds: 1, MinDevices: 1, BaseLearningRate: 0.1,
		SchedulerOverride: override,
	}
	if err := co.CreateJob(job, desc.Key); err != nil {
		t.Fatalf("create job: %v", err)
	}

	ctx := context.Background()
	if err := co.StartJob(ctx, job.ID); err != nil {
		t.Fatalf("start job: %v", err)
	}

	final := waitForTerminal(t, jobs, job.ID, 2*time.Second)
	if final.Status != jobstore.JobFailed {
		t.Fatalf("status = %s, want failed (low-power device excluded, pool exhausted)", final.Status)
	}

	dev, err := devices.Get("lp-only")
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if dev.Status != devicestore.StatusOnline {
		t.Fatalf("device status = %s, want left online (never selected)", dev.Status)
	}
}
