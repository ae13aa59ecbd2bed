package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tuning.yaml")
	raw := []byte("tick_rate_hz: 5\nphase_thresholds: [10, 100, 1000, 10000]\nrate_limits:\n  action_burst: 7\n")
	if err := os.WriteFile(p, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TickRateHz != 5 {
		t.Fatalf("tick_rate_hz=%d want 5", got.TickRateHz)
	}
	if len(got.PhaseThresholds) != 4 || got.PhaseThresholds[1] != 100 {
		t.Fatalf("phase_thresholds=%v", got.PhaseThresholds)
	}
	if got.PricePerLetter != 0.25 || got.ReadPhase != 4 {
		t.Fatalf("defaults lost: price=%v read=%d", got.PricePerLetter, got.ReadPhase)
	}
	if got.RateLimits.ActionBurst != 7 || got.RateLimits.ActionsPerSecond != 30 {
		t.Fatalf("rate limits=%+v", got.RateLimits)
	}
}

func TestLoad_RejectsDescendingThresholds(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(p, []byte("phase_thresholds: [100, 10]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ReadPhaseNeedsThresholds(t *testing.T) {
	tu := Defaults()
	tu.PhaseThresholds = []float64{10, 100}
	if err := tu.Validate(); err == nil {
		t.Fatalf("read_phase %d with %d thresholds accepted", tu.ReadPhase, len(tu.PhaseThresholds))
	}
	tu.ReadPhase = 2
	if err := tu.Validate(); err != nil {
		t.Fatalf("read_phase 2 with 2 thresholds: %v", err)
	}
}

func TestLoad_RepoConfig(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load configs/tuning.yaml: %v", err)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
