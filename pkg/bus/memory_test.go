package bus

import (
	"context"
	"testing"
	"time"
)

func TestMemoryBusModelRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()
	meta := ModelMeta{ModelID: "m1", Name: "demo", Version: 1, Framework: "edgeorchestra", SizeBytes: 128}
	if err := b.PutModel(ctx, "m1", []byte("blob-bytes"), meta); err != nil {
		t.Fatalf("PutModel: %v", err)
	}
	got, err := b.GetModel(ctx, "m1")
	if err != nil || string(got) != "blob-bytes" {
		t.Fatalf("GetModel: got %q err %v", got, err)
	}
	gotMeta, err := b.GetModelMeta(ctx, "m1")
	if err != nil || gotMeta.Version != 1 {
		t.Fatalf("GetModelMeta: got %+v err %v", gotMeta, err)
	}
	if err := b.DeleteModel(ctx, "m1"); err != nil {
		t.Fatalf("DeleteModel: %v", err)
	}
	got, _ = b.GetModel(ctx, "m1")
	if got != nil {
		t.Fatalf("expected nil after delete, got %v", got)
	}
}

func TestMemoryBusGradientBucketOrderedAndDeletable(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()
	subs := []GradientSubmission{
		{DeviceID: "d1", Gradients: "AA==", NumSamples: 5},
		{DeviceID: "d2", Gradients: "BB==", NumSamples: 7},
	}
	for _, s := range subs {
		if err := b.AppendGradient(ctx, "m1", 1, s); err != nil {
			t.Fatalf("AppendGradient: %v", err)
		}
	}
	got, err := b.GradientBucket(ctx, "m1", 1)
	if err != nil {
		t.Fatalf("GradientBucket: %v", err)
	}
	if len(got) != 2 || got[0].DeviceID != "d1" || got[1].DeviceID != "d2" {
		t.Fatalf("expected insertion order preserved, got %+v", got)
	}
	if err := b.DeleteGradientBucket(ctx, "m1", 1); err != nil {
		t.Fatalf("DeleteGradientBucket: %v", err)
	}
	got, _ = b.GradientBucket(ctx, "m1", 1)
	if len(got) != 0 {
		t.Fatalf("expected empty bucket after delete, got %+v", got)
	}
}

func TestMemoryBusStopFlag(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()
	set, err := b.IsStopSet(ctx, "job-1")
	if err != nil || set {
		t.Fatalf("expected unset stop flag initially, got %v err %v", set, err)
	}
	if err := b.SetStop(ctx, "job-1"); err != nil {
		t.Fatalf("SetStop: %v", err)
	}
	set, err = b.IsStopSet(ctx, "job-1")
	if err != nil || !set {
		t.Fatalf("expected stop flag set, got %v err %v", set, err)
	}
	if err := b.ClearStop(ctx, "job-1"); err != nil {
		t.Fatalf("ClearStop: %v", err)
	}
	set, _ = b.IsStopSet(ctx, "job-1")
	if set {
		t.Fatalf("expected stop flag cleared")
	}
}

func TestMemoryBusHeartbeatExpires(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()
	if err := b.Heartbeat(ctx, "dev-1", 10*time.Millisecond); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	alive, err := b.HasLiveHeartbeat(ctx, "dev-1")
	if err != nil || !alive {
		t.Fatalf("expected live heartbeat, got %v err %v", alive, err)
	}
	time.Sleep(20 * time.Millisecond)
	alive, err = b.HasLiveHeartbeat(ctx, "dev-1")
	if err != nil || alive {
		t.Fatalf("expected expired heartbeat, got %v err %v", alive, err)
	}
}

func TestMemoryBusCommandQueueFIFO(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBus()
	if err := b.EnqueueCommand(ctx, "dev-1", map[string]string{"cmd": "start_training"}); err != nil {
		t.Fatalf("EnqueueCommand 1: %v", err)
	}
	if err := b.EnqueueCommand(ctx, "dev-1", map[string]string{"cmd": "stop"}); err != nil {
		t.Fatalf("EnqueueCommand 2: %v", err)
	}
	first, err := b.PopCommand(ctx, "dev-1")
	if err != nil {
		t.Fatalf("PopCommand 1: %v", err)
	}
	if string(first) == "" {
		t.Fatalf("expected first command, got empty")
	}
	second, err := b.PopCommand(ctx, "dev-1")
	if err != nil || second == nil {
		t.Fatalf("PopCommand 2: %v err %v", second, err)
	}
	third, err := b.PopCommand(ctx, "dev-1")
	if err != nil || third != nil {
		t.Fatalf("expected empty queue, got %v err %v", third, err)
	}
}
