package pb

// HardwareDescriptor mirrors devicestore.Hardware on the wire.
type HardwareDescriptor struct {
	ChipLabel          string `json:"chip_label"`
	MemoryBytes        int64  `json:"memory_bytes"`
	CPUCores           int    `json:"cpu_cores"`
	GPUCores           int    `json:"gpu_cores"`
	NeuralAcceleratorCores int `json:"neural_accelerator_cores"`
}

// TelemetryReport mirrors devicestore.Telemetry on the wire.
type TelemetryReport struct {
	CPUUsage        *float64 `json:"cpu_usage,omitempty"`
	MemoryUsage     *float64 `json:"memory_usage,omitempty"`
	ThermalPressure *float64 `json:"thermal_pressure,omitempty"`
	BatteryLevel    *float64 `json:"battery_level,omitempty"`
	BatteryState    string   `json:"battery_state,omitempty"`
	IsLowPowerMode  bool     `json:"is_low_power_mode"`
}

// Device is the wire projection of a device repository row.
type Device struct {
	ID           string             `json:"id"`
	DisplayName  string             `json:"display_name"`
	Hardware     HardwareDescriptor `json:"hardware"`
	Telemetry    TelemetryReport    `json:"telemetry"`
	Status       string             `json:"status"`
	RegisteredAt string             `json:"registered_at"`
	LastSeenAt   string             `json:"last_seen_at"`
}

// --- DeviceRegistry ---

type RegisterRequest struct {
	DeviceID    string             `json:"device_id"`
	DisplayName string             `json:"display_name"`
	Hardware    HardwareDescriptor `json:"hardware"`
}

type RegisterResponse struct {
	Device Device `json:"device"`
	Token  string `json:"token"`
}

type UnregisterRequest struct {
	DeviceID string `json:"device_id"`
}

type UnregisterResponse struct{}

type ListDevicesRequest struct {
	Status string `json:"status,omitempty"`
}

type ListDevicesResponse struct {
	Devices []Device `json:"devices"`
}

type GetDeviceRequest struct {
	DeviceID string `json:"device_id"`
}

type GetDeviceResponse struct {
	Device Device `json:"device"`
}

// --- HeartbeatService ---

type HeartbeatRequest struct {
	DeviceID  string            `json:"device_id"`
	Sequence  int64             `json:"sequence"`
	Metrics   map[string]string `json:"metrics,omitempty"`
	Telemetry *TelemetryReport  `json:"telemetry,omitempty"`
}

type HeartbeatResponse struct {
	Command     string            `json:"command"`
	AckSequence int64             `json:"ack_sequence"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// --- ModelService ---

type ModelMetadata struct {
	ModelID   string `json:"model_id"`
	Name      string `json:"name"`
	Version   int    `json:"version"`
	Framework string `json:"framework"`
	SizeBytes int    `json:"size_bytes"`
}

// ModelChunk is ModelService's streamed unit in both directions. Exactly
// one of Metadata/Data is set per message: the first chunk carries
// Metadata, every subsequent chunk carries up to 32 KiB of blob bytes.
// A real .proto would express this as a oneof; without codegen the two
// optional fields serve the same purpose.
type ModelChunk struct {
	Metadata *ModelMetadata `json:"metadata,omitempty"`
	Data     []byte         `json:"data,omitempty"`
}

type DownloadModelRequest struct {
	ModelID string `json:"model_id"`
}

type UploadModelResponse struct {
	Accepted  bool   `json:"accepted"`
	ModelID   string `json:"model_id"`
	SizeBytes int    `json:"size_bytes"`
}

type SubmitGradientsRequest struct {
	DeviceID   string             `json:"device_id"`
	ModelID    string             `json:"model_id"`
	Round      int                `json:"round"`
	Gradients  []byte             `json:"gradients"`
	NumSamples int                `json:"num_samples"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

type SubmitGradientsResponse struct {
	Accepted bool `json:"accepted"`
}
