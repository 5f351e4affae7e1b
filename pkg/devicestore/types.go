// Package devicestore is the durable device repository (spec.md §3, §4.4):
// devices, their hardware descriptors, latest telemetry, and lifecycle
// status.
package devicestore

import "time"

// Status is a device's lifecycle status.
type Status string

const (
	StatusOnline   Status = "online"
	StatusOffline  Status = "offline"
	StatusTraining Status = "training"
	StatusError    Status = "error"
)

// BatteryState mirrors the platform-reported charging state.
type BatteryState string

const (
	BatteryCharging    BatteryState = "charging"
	BatteryDischarging BatteryState = "discharging"
	BatteryFull        BatteryState = "full"
	BatteryNotCharging BatteryState = "not_charging"
	BatteryUnknown     BatteryState = "unknown"
)

// Hardware is a device's static hardware descriptor.
type Hardware struct {
	ChipLabel          string `json:"chip_label"`
	MemoryBytes        int64  `json:"memory_bytes"`
	CPUCores           int    `json:"cpu_cores"`
	GPUCores           int    `json:"gpu_cores"`
	NeuralAccelerators int    `json:"neural_accelerator_cores"`
}

// Telemetry is a device's most recently reported live metrics, scaled 0-1
// except where noted. Pointer fields distinguish "never reported" from
// "reported as zero" for the scheduler's eligibility defaults.
type Telemetry struct {
	CPUUsage       *float64      `json:"cpu_usage,omitempty"`
	MemoryUsage    *float64      `json:"memory_usage,omitempty"`
	ThermalPressure *float64     `json:"thermal_pressure,omitempty"`
	BatteryLevel   *float64      `json:"battery_level,omitempty"`
	BatteryState   *BatteryState `json:"battery_state,omitempty"`
	IsLowPowerMode bool          `json:"is_low_power_mode"`
}

// Device is one registered edge device.
type Device struct {
	ID           string            `json:"id"`
	DisplayName  string            `json:"display_name"`
	Hardware     Hardware          `json:"hardware"`
	Telemetry    Telemetry         `json:"telemetry"`
	Status       Status            `json:"status"`
	RegisteredAt time.Time         `json:"registered_at"`
	LastSeenAt   time.Time         `json:"last_seen_at"`
	Metrics      map[string]string `json:"metrics"`
}

// Update carries the partial fields update() is allowed to change. Nil
// pointers/fields mean "leave as-is"; last_seen_at is always bumped to now.
type Update struct {
	DisplayName *string
	Status      *Status
	Telemetry   *Telemetry
}
