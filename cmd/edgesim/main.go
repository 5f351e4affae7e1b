// Command edgesim is a device simulator: it registers against the
// coordinator, maintains a heartbeat stream, and on a start_training
// command downloads the current model, fabricates a gradient update, and
// submits it back over the gradient RPC. Grounded on the teacher's
// pkg/collaborator.SimpleCollaborator (connect, receive, submit loop)
// with device-side model training itself out of scope.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"math/rand"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/edgeorchestra/orchestra/pkg/codec"
	"github.com/edgeorchestra/orchestra/pkg/heartbeat"
	"github.com/edgeorchestra/orchestra/pkg/rpcapi/pb"
)

func main() {
	addr := flag.String("addr", "localhost:9090", "Coordinator gRPC address")
	deviceID := flag.String("id", "sim-device-1", "Device id to register as")
	chipLabel := flag.String("chip", "sim-cpu", "Reported chip label")
	flag.Parse()

	conn, err := grpc.NewClient(*addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(pb.Codec{})),
	)
	if err != nil {
		log.Fatalf("edgesim: dial %s: %v", *addr, err)
	}
	defer conn.Close()

	registry := pb.NewDeviceRegistryClient(conn)
	heartbeats := pb.NewHeartbeatServiceClient(conn)
	models := pb.NewModelServiceClient(conn)

	ctx := context.Background()
	regResp, err := registry.Register(ctx, &pb.RegisterRequest{
		DeviceID:    *deviceID,
		DisplayName: *deviceID,
		Hardware:    pb.HardwareDescriptor{ChipLabel: *chipLabel, CPUCores: 4, MemoryBytes: 4 << 30},
	})
	if err != nil {
		log.Fatalf("edgesim: register: %v", err)
	}
	log.Printf("edgesim: registered %s, token=%s", regResp.Device.ID, regResp.Token)

	stream, err := heartbeats.Heartbeat(ctx)
	if err != nil {
		log.Fatalf("edgesim: open heartbeat stream: %v", err)
	}

	var sequence int64
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		sequence++
		cpuUsage := 0.2 + rand.Float64()*0.3
		memUsage := 0.3
		batteryLevel := 0.9
		if err := stream.Send(&pb.HeartbeatRequest{
			DeviceID: *deviceID,
			Sequence: sequence,
			Telemetry: &pb.TelemetryReport{
				CPUUsage:     &cpuUsage,
				MemoryUsage:  &memUsage,
				BatteryLevel: &batteryLevel,
				BatteryState: "discharging",
			},
		}); err != nil {
			log.Fatalf("edgesim: send heartbeat: %v", err)
		}
		resp, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Fatalf("edgesim: recv heartbeat: %v", err)
		}
		if resp.Command == string(heartbeat.CommandStartTraining) {
			if err := runTrainingRound(ctx, models, *deviceID, resp.Parameters); err != nil {
				log.Printf("edgesim: training round failed: %v", err)
			}
		}
		if resp.Command == string(heartbeat.CommandShutdown) {
			log.Println("edgesim: received shutdown command")
			return
		}
	}
}

// runTrainingRound downloads the model, fabricates a single-layer
// gradient (no real forward/backward pass; device-side training is out
// of scope), and submits it.
func runTrainingRound(ctx context.Context, models pb.ModelServiceClient, deviceID string, params map[string]string) error {
	modelID := params["model_id"]
	round, err := strconv.Atoi(params["round"])
	if err != nil {
		round = 1
	}

	download, err := models.DownloadModel(ctx, &pb.DownloadModelRequest{ModelID: modelID})
	if err != nil {
		return err
	}
	for {
		_, err := download.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}

	gradient := &codec.Gradient{Layers: []codec.Layer{
		{Name: "sim", Values: []float32{rand.Float32(), rand.Float32(), rand.Float32()}},
	}}
	payload, err := codec.Compress(gradient)
	if err != nil {
		return err
	}

	_, err = models.SubmitGradients(ctx, &pb.SubmitGradientsRequest{
		DeviceID:   deviceID,
		ModelID:    modelID,
		Round:      round,
		Gradients:  payload,
		NumSamples: 100,
	})
	return err
}
