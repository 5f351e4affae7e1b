package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/edgeorchestra/orchestra/pkg/bus"
	"github.com/edgeorchestra/orchestra/pkg/devicestore"
)

func setup(t *testing.T, status devicestore.Status) (*Monitor, *devicestore.MemoryStore, *bus.MemoryBus) {
	t.Helper()
	devs := devicestore.NewMemoryStore()
	now := time.Now().UTC().Add(-time.Hour)
	if err := devs.Register(&devicestore.Device{
		ID: "dev-1", Status: status, RegisteredAt: now, LastSeenAt: now,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	b := bus.NewMemoryBus()
	mon := New(b, devs, Config{Interval: 30 * time.Second, Multiplier: 3})
	return mon, devs, b
}

func TestProcessHeartbeatOfflineToOnline(t *testing.T) {
	mon, devs, b := setup(t, devicestore.StatusOffline)
	ctx := context.Background()
	if err := mon.ProcessHeartbeat(ctx, "dev-1", nil); err != nil {
		t.Fatalf("ProcessHeartbeat: %v", err)
	}
	d, err := devs.Get("dev-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Status != devicestore.StatusOnline {
		t.Errorf("expected online, got %v", d.Status)
	}
	alive, err := b.HasLiveHeartbeat(ctx, "dev-1")
	if err != nil || !alive {
		t.Fatalf("expected live heartbeat, got %v err %v", alive, err)
	}
}

func TestProcessHeartbeatNeverDowngradesTraining(t *testing.T) {
	mon, devs, _ := setup(t, devicestore.StatusTraining)
	ctx := context.Background()
	if err := mon.ProcessHeartbeat(ctx, "dev-1", nil); err != nil {
		t.Fatalf("ProcessHeartbeat: %v", err)
	}
	d, err := devs.Get("dev-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Status != devicestore.StatusTraining {
		t.Errorf("expected training to remain training, got %v", d.Status)
	}
}

func TestProcessHeartbeatMergesTelemetry(t *testing.T) {
	mon, devs, _ := setup(t, devicestore.StatusOnline)
	ctx := context.Background()
	battery := 0.8
	if err := mon.ProcessHeartbeat(ctx, "dev-1", &devicestore.Telemetry{BatteryLevel: &battery}); err != nil {
		t.Fatalf("ProcessHeartbeat: %v", err)
	}
	d, err := devs.Get("dev-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Telemetry.BatteryLevel == nil || *d.Telemetry.BatteryLevel != 0.8 {
		t.Fatalf("expected battery level merged, got %+v", d.Telemetry)
	}
}

func TestCommandQueueFIFO(t *testing.T) {
	mon, _, _ := setup(t, devicestore.StatusOnline)
	ctx := context.Background()
	if err := mon.QueueCommand(ctx, "dev-1", Command{Type: CommandStartTraining}); err != nil {
		t.Fatalf("QueueCommand: %v", err)
	}
	cmd, err := mon.PopPendingCommand(ctx, "dev-1")
	if err != nil {
		t.Fatalf("PopPendingCommand: %v", err)
	}
	if cmd == nil || cmd.Type != CommandStartTraining {
		t.Fatalf("expected start_training command, got %+v", cmd)
	}
	empty, err := mon.PopPendingCommand(ctx, "dev-1")
	if err != nil || empty != nil {
		t.Fatalf("expected empty queue, got %+v err %v", empty, err)
	}
}

func TestSweepOnceTransitionsStaleOnlineToOffline(t *testing.T) {
	mon, devs, _ := setup(t, devicestore.StatusOnline)
	ctx := context.Background()
	// No heartbeat key set and last_seen_at is an hour old, well past the
	// 90s timeout (30s interval * 3 multiplier).
	if err := mon.sweepOnce(ctx); err != nil {
		t.Fatalf("sweepOnce: %v", err)
	}
	d, err := devs.Get("dev-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Status != devicestore.StatusOffline {
		t.Errorf("expected stale device swept offline, got %v", d.Status)
	}
}

func TestSweepOnceIgnoresTrainingDevices(t *testing.T) {
	mon, devs, _ := setup(t, devicestore.StatusTraining)
	ctx := context.Background()
	if err := mon.sweepOnce(ctx); err != nil {
		t.Fatalf("sweepOnce: %v", err)
	}
	d, err := devs.Get("dev-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Status != devicestore.StatusTraining {
		t.Errorf("sweep must never touch training devices, got %v", d.Status)
	}
}

func TestSweepOnceSkipsLiveHeartbeat(t *testing.T) {
	mon, devs, b := setup(t, devicestore.StatusOnline)
	ctx := context.Background()
	if err := b.Heartbeat(ctx, "dev-1", time.Minute); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if err := mon.sweepOnce(ctx); err != nil {
		t.Fatalf("sweepOnce: %v", err)
	}
	d, err := devs.Get("dev-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if d.Status != devicestore.StatusOnline {
		t.Errorf("expected device with live heartbeat to remain online, got %v", d.Status)
	}
}
