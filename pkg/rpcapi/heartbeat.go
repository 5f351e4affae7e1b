package rpcapi

import (
	"fmt"
	"io"

	"github.com/edgeorchestra/orchestra/pkg/apperrors"
	"github.com/edgeorchestra/orchestra/pkg/devicestore"
	"github.com/edgeorchestra/orchestra/pkg/heartbeat"
	"github.com/edgeorchestra/orchestra/pkg/rpcapi/pb"
)

// Heartbeat implements the bidi streaming RPC (spec.md §4.9): one response
// per request, in order. The server reads any pending command for the
// device; absent one it emits an ack. Peer-closed stream (io.EOF) ends
// both directions cleanly.
func (s *Service) Heartbeat(stream pb.HeartbeatService_HeartbeatServer) error {
	for {
		req, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if req.DeviceID == "" {
			return apperrors.New(apperrors.InvalidArgument, "device_id is required")
		}

		var telemetry *devicestore.Telemetry
		if req.Telemetry != nil {
			state := devicestore.BatteryState(req.Telemetry.BatteryState)
			var statePtr *devicestore.BatteryState
			if req.Telemetry.BatteryState != "" {
				statePtr = &state
			}
			telemetry = &devicestore.Telemetry{
				CPUUsage:        req.Telemetry.CPUUsage,
				MemoryUsage:     req.Telemetry.MemoryUsage,
				ThermalPressure: req.Telemetry.ThermalPressure,
				BatteryLevel:    req.Telemetry.BatteryLevel,
				BatteryState:    statePtr,
				IsLowPowerMode:  req.Telemetry.IsLowPowerMode,
			}
		}
		if err := s.monitor.ProcessHeartbeat(stream.Context(), req.DeviceID, telemetry); err != nil {
			return err
		}

		resp := pb.HeartbeatResponse{Command: string(heartbeat.CommandAck), AckSequence: req.Sequence}
		cmd, err := s.monitor.PopPendingCommand(stream.Context(), req.DeviceID)
		if err != nil {
			return err
		}
		if cmd != nil {
			resp.Command = string(cmd.Type)
			resp.Parameters = cmd.Parameters
		}
		latest, err := s.bus.GetLatestMetrics(stream.Context())
		if err == nil && latest != nil {
			resp.Metadata = stringifyMetrics(latest)
		}

		if err := stream.Send(&resp); err != nil {
			return err
		}
	}
}

func stringifyMetrics(metrics map[string]any) map[string]string {
	out := make(map[string]string, len(metrics))
	for k, v := range metrics {
		out[k] = toDisplayString(v)
	}
	return out
}

func toDisplayString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
