package schedule

import "testing"

func ptr(f float64) *float64 { return &f }

func TestSelectDisabledReturnsVerbatim(t *testing.T) {
	candidates := []Candidate{{ID: "a"}, {ID: "b"}}
	cfg := Config{Enabled: false}
	got, ok := Select(candidates, cfg)
	if !ok || len(got) != 2 {
		t.Fatalf("expected verbatim passthrough, got %+v ok=%v", got, ok)
	}
}

func TestSelectInsufficientPoolSignalsAbsent(t *testing.T) {
	candidates := []Candidate{{ID: "a", BatteryLevel: ptr(0.1)}}
	cfg := DefaultConfig(2)
	cfg.MinBattery = 0.5
	_, ok := Select(candidates, cfg)
	if ok {
		t.Fatalf("expected insufficient pool signal (ok=false)")
	}
}

func TestSelectFiltersLowBattery(t *testing.T) {
	candidates := []Candidate{
		{ID: "low", BatteryLevel: ptr(0.1)},
		{ID: "high", BatteryLevel: ptr(0.9)},
	}
	cfg := DefaultConfig(1)
	cfg.MinBattery = 0.2
	got, ok := Select(candidates, cfg)
	if !ok || len(got) != 1 || got[0].ID != "high" {
		t.Fatalf("expected only high-battery device selected, got %+v ok=%v", got, ok)
	}
}

func TestSelectFiltersLowPowerModeUnlessAllowed(t *testing.T) {
	candidates := []Candidate{{ID: "lp", IsLowPowerMode: true}, {ID: "ok"}}
	cfg := DefaultConfig(1)
	cfg.AllowLowPowerMode = false
	got, ok := Select(candidates, cfg)
	if !ok || len(got) != 1 || got[0].ID != "ok" {
		t.Fatalf("expected low-power device filtered, got %+v ok=%v", got, ok)
	}
}

func TestSelectMissingMetricsTreatedEligible(t *testing.T) {
	candidates := []Candidate{{ID: "unknown"}}
	cfg := DefaultConfig(1)
	cfg.MinBattery = 0.9
	got, ok := Select(candidates, cfg)
	if !ok || len(got) != 1 {
		t.Fatalf("expected missing metrics to pass eligibility, got %+v ok=%v", got, ok)
	}
}

func TestSelectTopNByTargetDevices(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", BatteryLevel: ptr(0.9)},
		{ID: "b", BatteryLevel: ptr(0.5)},
		{ID: "c", BatteryLevel: ptr(0.1)},
	}
	cfg := DefaultConfig(1)
	target := 2
	cfg.TargetDevices = &target
	got, ok := Select(candidates, cfg)
	if !ok || len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("expected top 2 by score [a,b], got %+v ok=%v", got, ok)
	}
}

func TestSelectMonotonicityIncreasingBatteryNeverLowersRank(t *testing.T) {
	base := []Candidate{
		{ID: "a", BatteryLevel: ptr(0.5)},
		{ID: "b", BatteryLevel: ptr(0.5)},
	}
	cfg := DefaultConfig(1)
	before, _ := Select(base, cfg)
	rankBefore := indexOf(before, "a")

	improved := []Candidate{
		{ID: "a", BatteryLevel: ptr(0.9)},
		{ID: "b", BatteryLevel: ptr(0.5)},
	}
	after, _ := Select(improved, cfg)
	rankAfter := indexOf(after, "a")

	if rankAfter > rankBefore {
		t.Fatalf("increasing a positive sub-score must not lower rank: before=%d after=%d", rankBefore, rankAfter)
	}
}

func indexOf(candidates []Candidate, id string) int {
	for i, c := range candidates {
		if c.ID == id {
			return i
		}
	}
	return -1
}
