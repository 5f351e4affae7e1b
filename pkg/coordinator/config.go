// Package coordinator is the per-job training round state machine
// (spec.md §4.8): the core of the orchestrator. It drives a job through
// rounds, dispatches work via the heartbeat command queue, waits for
// gradient uploads on the shared bus, aggregates, checkpoints, and
// resumes after a crash.
package coordinator

import "time"

// Config holds the coordinator's timing policy. Spec.md §4.8 gives the
// device-wait backoff formula and retry counts as fixed constants; they
// are exposed here as overridable fields so tests can run the full state
// machine without real sleeps.
type Config struct {
	RoundTimeout       time.Duration
	PollInterval       time.Duration
	MaxWaitAttempts    int
	MaxDispatchRetries int
	BaseBackoff        time.Duration
	MaxBackoff         time.Duration
}

// DefaultConfig returns the §4.8 defaults: 120s round timeout, 2s poll,
// 30 wait attempts, 2 dispatch retries, 10s/120s backoff bounds.
func DefaultConfig() Config {
	return Config{
		RoundTimeout:       120 * time.Second,
		PollInterval:       2 * time.Second,
		MaxWaitAttempts:    30,
		MaxDispatchRetries: 2,
		BaseBackoff:        10 * time.Second,
		MaxBackoff:         120 * time.Second,
	}
}

// backoff implements min(base·2^min(attempt,4), max).
func (c Config) backoff(attempt int) time.Duration {
	shift := attempt
	if shift > 4 {
		shift = 4
	}
	d := c.BaseBackoff << uint(shift)
	if d > c.MaxBackoff {
		return c.MaxBackoff
	}
	return d
}
