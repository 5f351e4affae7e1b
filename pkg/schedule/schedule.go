// Package schedule is the device eligibility/selection policy (spec.md
// §4.7): a deterministic pure function with no I/O, so the coordinator can
// re-run it cheaply on every device-wait iteration.
package schedule

import "sort"

// Candidate is the subset of a device's state the scheduler needs. Pointer
// fields distinguish "metric never reported" (nil, treated as eligible
// with the documented default sub-score) from "reported as zero".
type Candidate struct {
	ID                 string
	BatteryLevel       *float64
	BatteryCharging    bool
	IsLowPowerMode     bool
	ThermalPressure    *float64
	CPUUsage           *float64
	MemoryUsage        *float64
	NeuralCores        int
	MemoryBytes        int64
}

// Weights are the per-sub-score weights in the scoring function, summing
// to 1.0 under the documented defaults.
type Weights struct {
	Battery    float64
	Thermal    float64
	CPULoad    float64
	MemoryLoad float64
	Hardware   float64
}

// DefaultWeights are the §4.7 defaults.
func DefaultWeights() Weights {
	return Weights{Battery: 0.35, Thermal: 0.25, CPULoad: 0.20, MemoryLoad: 0.10, Hardware: 0.10}
}

// Config is the scheduler's tunable policy, all overridable per job.
type Config struct {
	Enabled               bool
	MinBattery            float64
	AllowLowPowerMode     bool
	MaxThermalPressure    float64
	MaxCPUUsage           float64
	MinDevices            int
	TargetDevices         *int
	Weights               Weights
}

// DefaultConfig returns a permissive baseline: scheduling enabled, no
// eligibility floor beyond the spec's stated defaults, default weights.
func DefaultConfig(minDevices int) Config {
	return Config{
		Enabled:            true,
		MinBattery:         0,
		AllowLowPowerMode:  true,
		MaxThermalPressure: 1,
		MaxCPUUsage:        1,
		MinDevices:         minDevices,
		Weights:            DefaultWeights(),
	}
}

// Select applies the eligibility filter, scores and ranks survivors, and
// returns the selected subset. ok is false when fewer than MinDevices
// survive eligibility filtering ("insufficient pool" per §4.7 step 3) — the
// caller must wait and retry rather than treat an empty slice as success.
func Select(candidates []Candidate, cfg Config) (selected []Candidate, ok bool) {
	if !cfg.Enabled {
		return candidates, true
	}

	eligible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if isEligible(c, cfg) {
			eligible = append(eligible, c)
		}
	}

	if len(eligible) < cfg.MinDevices {
		return nil, false
	}

	maxNeuralCores, maxMemoryBytes := poolMaxima(eligible)
	scored := make([]scoredCandidate, len(eligible))
	for i, c := range eligible {
		scored[i] = scoredCandidate{c, score(c, cfg.Weights, maxNeuralCores, maxMemoryBytes)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	n := len(scored)
	if cfg.TargetDevices != nil {
		n = *cfg.TargetDevices
		if n < cfg.MinDevices {
			n = cfg.MinDevices
		}
		if n > len(scored) {
			n = len(scored)
		}
	}

	out := make([]Candidate, n)
	for i := 0; i < n; i++ {
		out[i] = scored[i].Candidate
	}
	return out, true
}

func isEligible(c Candidate, cfg Config) bool {
	if c.BatteryLevel != nil && *c.BatteryLevel < cfg.MinBattery {
		return false
	}
	if c.IsLowPowerMode && !cfg.AllowLowPowerMode {
		return false
	}
	if c.ThermalPressure != nil && *c.ThermalPressure > cfg.MaxThermalPressure {
		return false
	}
	if c.CPUUsage != nil && *c.CPUUsage > cfg.MaxCPUUsage {
		return false
	}
	return true
}

type scoredCandidate struct {
	Candidate
	score float64
}

func poolMaxima(candidates []Candidate) (maxNeuralCores int, maxMemoryBytes int64) {
	for _, c := range candidates {
		if c.NeuralCores > maxNeuralCores {
			maxNeuralCores = c.NeuralCores
		}
		if c.MemoryBytes > maxMemoryBytes {
			maxMemoryBytes = c.MemoryBytes
		}
	}
	return
}

func score(c Candidate, w Weights, maxNeuralCores int, maxMemoryBytes int64) float64 {
	battery := 0.5
	if c.BatteryLevel != nil {
		battery = *c.BatteryLevel
		if c.BatteryCharging {
			battery += 0.15
		}
		if battery > 1.0 {
			battery = 1.0
		}
	}

	thermal := 0.5
	if c.ThermalPressure != nil {
		thermal = 1 - *c.ThermalPressure
	}

	cpuLoad := 0.5
	if c.CPUUsage != nil {
		cpuLoad = 1 - *c.CPUUsage
	}

	memoryLoad := 0.5
	if c.MemoryUsage != nil {
		memoryLoad = 1 - *c.MemoryUsage
	}

	neuralScore := 0.5
	if maxNeuralCores > 0 {
		neuralScore = float64(c.NeuralCores) / float64(maxNeuralCores)
	}
	memScore := 0.5
	if maxMemoryBytes > 0 {
		memScore = float64(c.MemoryBytes) / float64(maxMemoryBytes)
	}
	hardware := (neuralScore + memScore) / 2

	return w.Battery*battery + w.Thermal*thermal + w.CPULoad*cpuLoad + w.MemoryLoad*memoryLoad + w.Hardware*hardware
}
