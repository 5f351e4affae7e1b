package coordinator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/edgeorchestra/orchestra/pkg/aggregate"
	"github.com/edgeorchestra/orchestra/pkg/apperrors"
	"github.com/edgeorchestra/orchestra/pkg/bus"
	"github.com/edgeorchestra/orchestra/pkg/codec"
	"github.com/edgeorchestra/orchestra/pkg/devicestore"
	"github.com/edgeorchestra/orchestra/pkg/heartbeat"
	"github.com/edgeorchestra/orchestra/pkg/jobstore"
	"github.com/edgeorchestra/orchestra/pkg/modelcontainer"
	"github.com/edgeorchestra/orchestra/pkg/schedule"
)

var (
	errStopDuringWait = errors.New("coordinator: stop flag raised during device wait")
	errWaitExhausted  = errors.New("coordinator: device wait attempts exhausted")
)

type validSubmission struct {
	DeviceID   string
	Gradient   *codec.Gradient
	NumSamples int
}

// runJob drives one job through its round loop to a terminal state. It
// runs in its own goroutine; all exits (completion, stop, failure, panic)
// go through a cleanup path that releases any devices still reserved.
func (c *Coordinator) runJob(ctx context.Context, job *jobstore.Job) {
	var reserved []string
	var currentRound int
	defer func() {
		if r := recover(); r != nil {
			log.Printf("coordinator: job %s panic: %v", job.ID, r)
			c.releaseDevices(context.Background(), reserved)
			c.failJob(context.Background(), job, currentRound)
		}
	}()

	if job.Status == jobstore.JobPending {
		running := jobstore.JobRunning
		updated, err := c.jobs.Update(job.ID, jobstore.Fields{Status: &running})
		if err != nil {
			log.Printf("coordinator: job %s: start transition: %v", job.ID, err)
			return
		}
		job = updated
	}

	model, err := c.models.Get(job.ModelID)
	if err != nil {
		log.Printf("coordinator: job %s: load model: %v", job.ID, err)
		c.failJob(ctx, job, 0)
		return
	}
	desc, err := c.registry.Get(model.Architecture)
	if err != nil {
		log.Printf("coordinator: job %s: load architecture descriptor: %v", job.ID, err)
		c.failJob(ctx, job, 0)
		return
	}

	for r := job.CurrentRound + 1; r <= job.NumRounds; r++ {
		reserved = nil
		currentRound = r

		if stopped, err := c.checkStop(ctx, job); err != nil {
			log.Printf("coordinator: job %s: check stop: %v", job.ID, err)
		} else if stopped {
			c.stopJobCleanup(ctx, job, r)
			return
		}

		selected, err := c.waitForDevices(ctx, job)
		if err == errStopDuringWait {
			c.stopJobCleanup(ctx, job, r)
			return
		}
		if err != nil {
			log.Printf("coordinator: job %s: device wait: %v", job.ID, err)
			c.failJob(ctx, job, r)
			return
		}

		reserved = candidateIDs(selected)
		if err := c.reserveDevices(ctx, reserved); err != nil {
			log.Printf("coordinator: job %s: reserve devices: %v", job.ID, err)
			c.releaseDevices(ctx, reserved)
			c.failJob(ctx, job, r)
			return
		}

		lr := aggregate.CosineDecayLR(job.BaseLearningRate, r, job.NumRounds)
		if err := c.writeLearningRate(ctx, job.ModelID, lr); err != nil {
			log.Printf("coordinator: job %s: write lr schedule: %v", job.ID, err)
			c.releaseDevices(ctx, reserved)
			c.failJob(ctx, job, r)
			return
		}

		submissions, err := c.dispatchAndCollect(ctx, job, r, selected, desc.Key)
		if err != nil {
			log.Printf("coordinator: job %s: dispatch/collect round %d: %v", job.ID, r, err)
			c.releaseDevices(ctx, reserved)
			c.failJob(ctx, job, r)
			return
		}

		if len(submissions) == 0 {
			job = c.skipRound(ctx, job, r, len(selected), "empty gradient bucket after retries")
			c.releaseDevices(ctx, reserved)
			c.bus.DeleteGradientBucket(ctx, job.ModelID, r)
			continue
		}

		valid := validateSubmissions(submissions)
		if len(valid) == 0 {
			job = c.skipRound(ctx, job, r, len(selected), "all submissions invalid")
			c.releaseDevices(ctx, reserved)
			c.bus.DeleteGradientBucket(ctx, job.ModelID, r)
			continue
		}

		updatedJob, err := c.aggregateAndEvaluate(ctx, job, desc.Key, r, len(selected), valid)
		if err != nil {
			log.Printf("coordinator: job %s: aggregate round %d: %v", job.ID, r, err)
			c.releaseDevices(ctx, reserved)
			c.failJob(ctx, job, r)
			return
		}
		job = updatedJob

		c.releaseDevices(ctx, reserved)
		c.bus.DeleteGradientBucket(ctx, job.ModelID, r)
		reserved = nil
	}

	c.completeJob(ctx, job)
}

func (c *Coordinator) checkStop(ctx context.Context, job *jobstore.Job) (bool, error) {
	return c.bus.IsStopSet(ctx, job.ID)
}

func (c *Coordinator) waitForDevices(ctx context.Context, job *jobstore.Job) ([]schedule.Candidate, error) {
	cfg, err := c.schedulerConfig(job)
	if err != nil {
		return nil, err
	}
	for attempt := 0; attempt < c.config.MaxWaitAttempts; attempt++ {
		stopped, err := c.checkStop(ctx, job)
		if err != nil {
			return nil, err
		}
		if stopped {
			return nil, errStopDuringWait
		}

		online := devicestore.StatusOnline
		devices, err := c.devices.ListAll(&online)
		if err != nil {
			return nil, err
		}
		if selected, ok := schedule.Select(toCandidates(devices), cfg); ok {
			return selected, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.config.backoff(attempt)):
		}
	}
	return nil, errWaitExhausted
}

func toCandidates(devices []*devicestore.Device) []schedule.Candidate {
	out := make([]schedule.Candidate, len(devices))
	for i, d := range devices {
		charging := d.Telemetry.BatteryState != nil &&
			(*d.Telemetry.BatteryState == devicestore.BatteryCharging || *d.Telemetry.BatteryState == devicestore.BatteryFull)
		out[i] = schedule.Candidate{
			ID:              d.ID,
			BatteryLevel:    d.Telemetry.BatteryLevel,
			BatteryCharging: charging,
			IsLowPowerMode:  d.Telemetry.IsLowPowerMode,
			ThermalPressure: d.Telemetry.ThermalPressure,
			CPUUsage:        d.Telemetry.CPUUsage,
			MemoryUsage:     d.Telemetry.MemoryUsage,
			NeuralCores:     d.Hardware.NeuralAccelerators,
			MemoryBytes:     d.Hardware.MemoryBytes,
		}
	}
	return out
}

func candidateIDs(candidates []schedule.Candidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	return ids
}

func (c *Coordinator) reserveDevices(ctx context.Context, ids []string) error {
	training := devicestore.StatusTraining
	for _, id := range ids {
		if _, err := c.devices.Update(id, devicestore.Update{Status: &training}); err != nil {
			return err
		}
	}
	return nil
}

// releaseDevices returns every reserved device to online. It is the
// terminal cleanup block invoked on every exit path so no device is left
// in "training" once a round (or the job) ends.
func (c *Coordinator) releaseDevices(ctx context.Context, ids []string) {
	online := devicestore.StatusOnline
	for _, id := range ids {
		if _, err := c.devices.Update(id, devicestore.Update{Status: &online}); err != nil && !apperrors.IsNotFound(err) {
			log.Printf("coordinator: release device %s: %v", id, err)
		}
	}
}

func (c *Coordinator) dispatchAndCollect(ctx context.Context, job *jobstore.Job, round int, selected []schedule.Candidate, architecture string) ([]bus.GradientSubmission, error) {
	for attempt := 0; ; attempt++ {
		if err := c.dispatch(ctx, job, round, selected, architecture); err != nil {
			return nil, err
		}
		submissions, err := c.collect(ctx, job.ModelID, round, len(selected))
		if err != nil {
			return nil, err
		}
		if len(submissions) > 0 || attempt >= c.config.MaxDispatchRetries {
			return submissions, nil
		}
		if err := c.bus.DeleteGradientBucket(ctx, job.ModelID, round); err != nil {
			return nil, err
		}
	}
}

func (c *Coordinator) dispatch(ctx context.Context, job *jobstore.Job, round int, selected []schedule.Candidate, architecture string) error {
	n := len(selected)
	for i, cand := range selected {
		cmd := heartbeat.Command{
			Type: heartbeat.CommandStartTraining,
			Parameters: map[string]string{
				"job_id":          job.ID,
				"model_id":        job.ModelID,
				"round":           strconv.Itoa(round),
				"partition_index": strconv.Itoa(i),
				"partition_total": strconv.Itoa(n),
				"architecture":    architecture,
			},
		}
		if err := c.bus.EnqueueCommand(ctx, cand.ID, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) collect(ctx context.Context, modelID string, round, want int) ([]bus.GradientSubmission, error) {
	deadline := time.Now().Add(c.config.RoundTimeout)
	for {
		subs, err := c.bus.GradientBucket(ctx, modelID, round)
		if err != nil {
			return nil, err
		}
		if len(subs) >= want || time.Now().After(deadline) {
			return subs, nil
		}
		select {
		case <-ctx.Done():
			return subs, nil
		case <-time.After(c.config.PollInterval):
		}
	}
}

func validateSubmissions(subs []bus.GradientSubmission) []validSubmission {
	out := make([]validSubmission, 0, len(subs))
	for _, s := range subs {
		if s.NumSamples <= 0 {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(s.Gradients)
		if err != nil || len(raw) < codec.MinEncodedSize {
			continue
		}
		grad, err := codec.Decompress(raw)
		if err != nil {
			continue
		}
		out = append(out, validSubmission{DeviceID: s.DeviceID, Gradient: grad, NumSamples: s.NumSamples})
	}
	return out
}

func (c *Coordinator) writeLearningRate(ctx context.Context, modelID string, lr float32) error {
	blob, err := c.bus.GetModel(ctx, modelID)
	if err != nil {
		return err
	}
	newBlob, err := modelcontainer.SetLearningRate(blob, lr)
	if err != nil {
		return err
	}
	meta, err := c.bus.GetModelMeta(ctx, modelID)
	if err != nil {
		return err
	}
	if meta == nil {
		meta = &bus.ModelMeta{ModelID: modelID, Framework: "edgeorchestra"}
	}
	meta.SizeBytes = len(newBlob)
	return c.bus.PutModel(ctx, modelID, newBlob, *meta)
}

// schedulerOverride is the optional per-job JSON override stored in
// training_jobs.scheduler_override. The round loop's required aggregation
// behavior is FedAvg; an override lets an operator opt a job into the
// server-optimizer variants without changing any coordinator invariant. The
// nested Scheduler block carries the job's eligibility/scoring config
// (spec.md §4.7); any field left nil falls back to schedule.DefaultConfig.
type schedulerOverride struct {
	Algorithm   aggregate.AlgorithmName  `json:"algorithm"`
	Hyperparams map[string]float64       `json:"hyperparams"`
	Scheduler   *schedulerConfigOverride `json:"scheduler,omitempty"`
}

type schedulerConfigOverride struct {
	Enabled            *bool             `json:"enabled"`
	MinBattery         *float64          `json:"min_battery"`
	AllowLowPowerMode  *bool             `json:"allow_low_power_mode"`
	MaxThermalPressure *float64          `json:"max_thermal_pressure"`
	MaxCPUUsage        *float64          `json:"max_cpu_usage"`
	TargetDevices      *int              `json:"target_devices"`
	Weights            *schedule.Weights `json:"weights"`
}

func (c *Coordinator) parseSchedulerOverride(job *jobstore.Job) (schedulerOverride, error) {
	var override schedulerOverride
	if len(job.SchedulerOverride) == 0 {
		return override, nil
	}
	if err := json.Unmarshal(job.SchedulerOverride, &override); err != nil {
		return schedulerOverride{}, err
	}
	return override, nil
}

func (c *Coordinator) jobAlgorithm(job *jobstore.Job) (aggregate.Algorithm, error) {
	override, err := c.parseSchedulerOverride(job)
	if err != nil {
		return nil, err
	}
	return aggregate.NewAlgorithm(override.Algorithm, override.Hyperparams)
}

// schedulerConfig builds the per-job eligibility/scoring policy the round
// loop hands to schedule.Select, applying the job's scheduler override (if
// any) on top of the §4.7 defaults.
func (c *Coordinator) schedulerConfig(job *jobstore.Job) (schedule.Config, error) {
	cfg := schedule.DefaultConfig(job.MinDevices)
	override, err := c.parseSchedulerOverride(job)
	if err != nil {
		return schedule.Config{}, err
	}
	so := override.Scheduler
	if so == nil {
		return cfg, nil
	}
	if so.Enabled != nil {
		cfg.Enabled = *so.Enabled
	}
	if so.MinBattery != nil {
		cfg.MinBattery = *so.MinBattery
	}
	if so.AllowLowPowerMode != nil {
		cfg.AllowLowPowerMode = *so.AllowLowPowerMode
	}
	if so.MaxThermalPressure != nil {
		cfg.MaxThermalPressure = *so.MaxThermalPressure
	}
	if so.MaxCPUUsage != nil {
		cfg.MaxCPUUsage = *so.MaxCPUUsage
	}
	if so.TargetDevices != nil {
		cfg.TargetDevices = so.TargetDevices
	}
	if so.Weights != nil {
		cfg.Weights = *so.Weights
	}
	return cfg, nil
}

func (c *Coordinator) aggregateAndEvaluate(ctx context.Context, job *jobstore.Job, architecture string, round, dispatched int, valid []validSubmission) (*jobstore.Job, error) {
	subs := make([]aggregate.Submission, len(valid))
	for i, v := range valid {
		subs[i] = aggregate.Submission{Gradient: v.Gradient, NumSamples: v.NumSamples}
	}
	averaged := aggregate.Average(subs)

	algo, err := c.jobAlgorithm(job)
	if err != nil {
		return nil, err
	}

	blob, err := c.bus.GetModel(ctx, job.ModelID)
	if err != nil {
		return nil, err
	}
	weights, err := modelcontainer.ExtractWeights(blob)
	if err != nil {
		return nil, err
	}
	applied := algo.Aggregate(weights, averaged)
	newBlob, err := modelcontainer.InjectWeights(blob, applied)
	if err != nil {
		return nil, err
	}

	meta, err := c.bus.GetModelMeta(ctx, job.ModelID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		meta = &bus.ModelMeta{ModelID: job.ModelID, Framework: "edgeorchestra"}
	}
	meta.Version = round
	meta.SizeBytes = len(newBlob)
	if err := c.bus.PutModel(ctx, job.ModelID, newBlob, *meta); err != nil {
		return nil, err
	}

	result, err := c.evaluator.Evaluate(ctx, architecture, applied)
	if err != nil {
		return nil, err
	}

	deviceMetrics := make([]jobstore.DeviceMetric, len(valid))
	for i, v := range valid {
		deviceMetrics[i] = jobstore.DeviceMetric{DeviceID: v.DeviceID, NumSamples: v.NumSamples}
	}
	metric := jobstore.RoundMetric{
		Round: round, Participants: len(valid), Dispatched: dispatched,
		AvgLoss: result.Loss, AvgAccuracy: result.Accuracy, DeviceMetrics: deviceMetrics,
		StartedAt: time.Now().UTC(), EndedAt: time.Now().UTC(),
	}
	newMetrics := append(append([]jobstore.RoundMetric{}, job.RoundMetrics...), metric)
	updated, err := c.jobs.Update(job.ID, jobstore.Fields{CurrentRound: &round, RoundMetrics: newMetrics})
	if err != nil {
		return nil, err
	}

	c.bus.SetLatestMetrics(ctx, map[string]any{
		"job_id": job.ID, "round": round, "avg_loss": result.Loss, "avg_accuracy": result.Accuracy,
	})
	return updated, nil
}

func (c *Coordinator) skipRound(ctx context.Context, job *jobstore.Job, round, dispatched int, reason string) *jobstore.Job {
	metric := jobstore.RoundMetric{
		Round: round, Dispatched: dispatched, Skipped: true, Reason: reason,
		StartedAt: time.Now().UTC(), EndedAt: time.Now().UTC(),
	}
	newMetrics := append(append([]jobstore.RoundMetric{}, job.RoundMetrics...), metric)
	updated, err := c.jobs.Update(job.ID, jobstore.Fields{CurrentRound: &round, RoundMetrics: newMetrics})
	if err != nil {
		log.Printf("coordinator: job %s: persist skipped round %d: %v", job.ID, round, err)
		return job
	}
	return updated
}

// failJob marks the job failed and cleans up the stop flag and any stray
// gradient bucket left by the round that was in flight when it failed.
// round is 0 when no round had started yet (e.g. model load failure).
func (c *Coordinator) failJob(ctx context.Context, job *jobstore.Job, round int) {
	status := jobstore.JobFailed
	if _, err := c.jobs.Update(job.ID, jobstore.Fields{Status: &status}); err != nil {
		log.Printf("coordinator: job %s: persist failed status: %v", job.ID, err)
	}
	if err := c.bus.ClearStop(ctx, job.ID); err != nil {
		log.Printf("coordinator: job %s: clear stop flag: %v", job.ID, err)
	}
	if round > 0 {
		if err := c.bus.DeleteGradientBucket(ctx, job.ModelID, round); err != nil {
			log.Printf("coordinator: job %s: delete stray gradient bucket round %d: %v", job.ID, round, err)
		}
	}
}

func (c *Coordinator) stopJobCleanup(ctx context.Context, job *jobstore.Job, round int) {
	status := jobstore.JobStopped
	if _, err := c.jobs.Update(job.ID, jobstore.Fields{Status: &status}); err != nil {
		log.Printf("coordinator: job %s: persist stopped status: %v", job.ID, err)
	}
	if err := c.bus.ClearStop(ctx, job.ID); err != nil {
		log.Printf("coordinator: job %s: clear stop flag: %v", job.ID, err)
	}
	if err := c.bus.DeleteGradientBucket(ctx, job.ModelID, round); err != nil {
		log.Printf("coordinator: job %s: delete gradient bucket: %v", job.ID, err)
	}
}

func (c *Coordinator) completeJob(ctx context.Context, job *jobstore.Job) {
	status := jobstore.JobCompleted
	now := time.Now().UTC()
	if _, err := c.jobs.Update(job.ID, jobstore.Fields{Status: &status, CompletedAt: &now}); err != nil {
		log.Printf("coordinator: job %s: persist completed status: %v", job.ID, err)
	}
	if !job.ImplicitModel {
		if _, err := c.models.Update(job.ModelID, jobstore.ModelTrained, false); err != nil {
			log.Printf("coordinator: job %s: mark model trained: %v", job.ID, err)
		}
	}
}
