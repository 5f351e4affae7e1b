package heartbeat

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/edgeorchestra/orchestra/pkg/bus"
	"github.com/edgeorchestra/orchestra/pkg/devicestore"
)

// Config controls the liveness TTL and sweep cadence. Source carries two
// conflicting defaults (1s interval * 5 multiplier, and 30s * 3); per
// spec.md §9 we pick the 30s/3 pair as authoritative since it is the one
// exercised by the longer-lived device simulator scenarios.
type Config struct {
	Interval   time.Duration
	Multiplier int
}

func (c Config) ttl() time.Duration {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	mult := c.Multiplier
	if mult <= 0 {
		mult = 3
	}
	return c.Interval * time.Duration(mult)
}

// Monitor processes inbound heartbeats, serves the per-device command
// queue, and sweeps stale devices offline in the background.
type Monitor struct {
	bus    bus.Interface
	devs   devicestore.Store
	config Config
}

func New(b bus.Interface, devs devicestore.Store, cfg Config) *Monitor {
	return &Monitor{bus: b, devs: devs, config: cfg}
}

// ProcessHeartbeat handles one inbound heartbeat: refresh the liveness key,
// and merge any reported telemetry into the device row without ever
// downgrading a training device to online.
func (m *Monitor) ProcessHeartbeat(ctx context.Context, deviceID string, telemetry *devicestore.Telemetry) error {
	if err := m.bus.Heartbeat(ctx, deviceID, m.config.ttl()); err != nil {
		return err
	}

	d, err := m.devs.Get(deviceID)
	if err != nil {
		return err
	}

	status := d.Status
	if status != devicestore.StatusTraining {
		status = devicestore.StatusOnline
	}

	update := devicestore.Update{Status: &status}
	if telemetry != nil {
		merged := d.Telemetry
		mergeTelemetry(&merged, telemetry)
		update.Telemetry = &merged
	}

	_, err = m.devs.Update(deviceID, update)
	return err
}

func mergeTelemetry(dst, src *devicestore.Telemetry) {
	if src.CPUUsage != nil {
		dst.CPUUsage = src.CPUUsage
	}
	if src.MemoryUsage != nil {
		dst.MemoryUsage = src.MemoryUsage
	}
	if src.ThermalPressure != nil {
		dst.ThermalPressure = src.ThermalPressure
	}
	if src.BatteryLevel != nil {
		dst.BatteryLevel = src.BatteryLevel
	}
	if src.BatteryState != nil {
		dst.BatteryState = src.BatteryState
	}
	dst.IsLowPowerMode = src.IsLowPowerMode
}

// QueueCommand appends a command to a device's FIFO.
func (m *Monitor) QueueCommand(ctx context.Context, deviceID string, cmd Command) error {
	return m.bus.EnqueueCommand(ctx, deviceID, cmd)
}

// PopPendingCommand removes and returns the head of a device's FIFO, or nil
// if empty.
func (m *Monitor) PopPendingCommand(ctx context.Context, deviceID string) (*Command, error) {
	data, err := m.bus.PopCommand(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// RunSweep blocks, sweeping stale online devices to offline at the
// configured interval until ctx is cancelled.
func (m *Monitor) RunSweep(ctx context.Context) {
	interval := m.config.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.sweepOnce(ctx); err != nil {
				log.Printf("heartbeat: sweep error: %v", err)
			}
		}
	}
}

func (m *Monitor) sweepOnce(ctx context.Context) error {
	online := devicestore.StatusOnline
	devices, err := m.devs.ListAll(&online)
	if err != nil {
		return err
	}
	timeout := m.config.ttl()
	now := time.Now().UTC()
	for _, d := range devices {
		alive, err := m.bus.HasLiveHeartbeat(ctx, d.ID)
		if err != nil {
			log.Printf("heartbeat: check liveness for %s: %v", d.ID, err)
			continue
		}
		if alive {
			continue
		}
		if now.Sub(d.LastSeenAt) <= timeout {
			continue
		}
		offline := devicestore.StatusOffline
		if _, err := m.devs.Update(d.ID, devicestore.Update{Status: &offline}); err != nil {
			log.Printf("heartbeat: mark %s offline: %v", d.ID, err)
		}
	}
	return nil
}
