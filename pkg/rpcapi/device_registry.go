package rpcapi

import (
	"context"
	"time"

	"github.com/edgeorchestra/orchestra/pkg/apperrors"
	"github.com/edgeorchestra/orchestra/pkg/devicestore"
	"github.com/edgeorchestra/orchestra/pkg/rpcapi/pb"
)

func toPBDevice(d *devicestore.Device) pb.Device {
	batteryState := ""
	if d.Telemetry.BatteryState != nil {
		batteryState = string(*d.Telemetry.BatteryState)
	}
	return pb.Device{
		ID:          d.ID,
		DisplayName: d.DisplayName,
		Hardware: pb.HardwareDescriptor{
			ChipLabel:              d.Hardware.ChipLabel,
			MemoryBytes:            d.Hardware.MemoryBytes,
			CPUCores:               d.Hardware.CPUCores,
			GPUCores:               d.Hardware.GPUCores,
			NeuralAcceleratorCores: d.Hardware.NeuralAccelerators,
		},
		Telemetry: pb.TelemetryReport{
			CPUUsage:        d.Telemetry.CPUUsage,
			MemoryUsage:     d.Telemetry.MemoryUsage,
			ThermalPressure: d.Telemetry.ThermalPressure,
			BatteryLevel:    d.Telemetry.BatteryLevel,
			BatteryState:    batteryState,
			IsLowPowerMode:  d.Telemetry.IsLowPowerMode,
		},
		Status:       string(d.Status),
		RegisteredAt: d.RegisteredAt.Format(time.RFC3339Nano),
		LastSeenAt:   d.LastSeenAt.Format(time.RFC3339Nano),
	}
}

func (s *Service) Register(ctx context.Context, req *pb.RegisterRequest) (*pb.RegisterResponse, error) {
	if req.DeviceID == "" {
		return nil, apperrors.New(apperrors.InvalidArgument, "device_id is required")
	}
	now := time.Now().UTC()
	device := &devicestore.Device{
		ID:          req.DeviceID,
		DisplayName: req.DisplayName,
		Hardware: devicestore.Hardware{
			ChipLabel:          req.Hardware.ChipLabel,
			MemoryBytes:        req.Hardware.MemoryBytes,
			CPUCores:           req.Hardware.CPUCores,
			GPUCores:           req.Hardware.GPUCores,
			NeuralAccelerators: req.Hardware.NeuralAcceleratorCores,
		},
		Status:       devicestore.StatusOnline,
		RegisteredAt: now,
		LastSeenAt:   now,
	}
	if err := s.devices.Register(device); err != nil {
		return nil, err
	}
	token, err := s.authMgr.IssueDeviceToken(device.ID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "issue device token", err)
	}
	return &pb.RegisterResponse{Device: toPBDevice(device), Token: token}, nil
}

func (s *Service) Unregister(ctx context.Context, req *pb.UnregisterRequest) (*pb.UnregisterResponse, error) {
	if req.DeviceID == "" {
		return nil, apperrors.New(apperrors.InvalidArgument, "device_id is required")
	}
	if err := s.devices.Delete(req.DeviceID); err != nil {
		return nil, err
	}
	return &pb.UnregisterResponse{}, nil
}

func (s *Service) ListDevices(ctx context.Context, req *pb.ListDevicesRequest) (*pb.ListDevicesResponse, error) {
	var status *devicestore.Status
	if req.Status != "" {
		st := devicestore.Status(req.Status)
		status = &st
	}
	devices, err := s.devices.ListAll(status)
	if err != nil {
		return nil, err
	}
	out := make([]pb.Device, len(devices))
	for i, d := range devices {
		out[i] = toPBDevice(d)
	}
	return &pb.ListDevicesResponse{Devices: out}, nil
}

func (s *Service) GetDevice(ctx context.Context, req *pb.GetDeviceRequest) (*pb.GetDeviceResponse, error) {
	if req.DeviceID == "" {
		return nil, apperrors.New(apperrors.InvalidArgument, "device_id is required")
	}
	device, err := s.devices.Get(req.DeviceID)
	if err != nil {
		return nil, err
	}
	return &pb.GetDeviceResponse{Device: toPBDevice(device)}, nil
}
