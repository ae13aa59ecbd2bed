package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz     int `yaml:"tick_rate_hz"`
	SaveEveryTicks int `yaml:"save_every_ticks"`

	PricePerLetter  float64   `yaml:"price_per_letter"`
	StartingLetters float64   `yaml:"starting_letters"`
	PhaseThresholds []float64 `yaml:"phase_thresholds"`
	ReadPhase       int       `yaml:"read_phase"`

	DayLengthMs  int64 `yaml:"day_length_ms"`
	RateWindowMs int64 `yaml:"rate_window_ms"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

// RateLimits bounds how fast a single connection may submit actions.
type RateLimits struct {
	ActionsPerSecond float64 `yaml:"actions_per_second"`
	ActionBurst      int     `yaml:"action_burst"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      20,
		SaveEveryTicks:  1,
		PricePerLetter:  0.25,
		StartingLetters: 4,
		PhaseThresholds: []float64{1e4, 1e6, 1e8, 1e10},
		ReadPhase:       4,
		DayLengthMs:     600_000,
		RateWindowMs:    1000,
		RateLimits: RateLimits{
			ActionsPerSecond: 30,
			ActionBurst:      60,
		},
	}
}

// Load reads path over Defaults, so a partial file only overrides what it names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return errors.New("tick_rate_hz must be > 0")
	}
	if t.SaveEveryTicks < 0 {
		return errors.New("save_every_ticks must be >= 0")
	}
	if t.PricePerLetter <= 0 {
		return errors.New("price_per_letter must be > 0")
	}
	if t.StartingLetters < 0 {
		return errors.New("starting_letters must be >= 0")
	}
	for i := 1; i < len(t.PhaseThresholds); i++ {
		if t.PhaseThresholds[i] <= t.PhaseThresholds[i-1] {
			return fmt.Errorf("phase_thresholds must be ascending (index %d)", i)
		}
	}
	if t.ReadPhase < 1 {
		return errors.New("read_phase must be >= 1")
	}
	if t.ReadPhase > len(t.PhaseThresholds) {
		return fmt.Errorf("read_phase %d needs %d phase_thresholds, got %d", t.ReadPhase, t.ReadPhase, len(t.PhaseThresholds))
	}
	if t.DayLengthMs <= 0 || t.RateWindowMs <= 0 {
		return errors.New("day_length_ms and rate_window_ms must be > 0")
	}
	return nil
}
