package game

import (
	"math"

	"postmaster.game/internal/sim/tuning"
)

// Rules are the balance knobs that are not part of the generator table.
type Rules struct {
	LetterPrice     float64
	StartingLetters float64
	PhaseThresholds []float64
	ReadPhase       int
	DayLengthMs     int64
	RateWindowMs    int64
}

func RulesFromTuning(t tuning.Tuning) Rules {
	return Rules{
		LetterPrice:     t.PricePerLetter,
		StartingLetters: t.StartingLetters,
		PhaseThresholds: append([]float64(nil), t.PhaseThresholds...),
		ReadPhase:       t.ReadPhase,
		DayLengthMs:     t.DayLengthMs,
		RateWindowMs:    t.RateWindowMs,
	}
}

func DefaultRules() Rules { return RulesFromTuning(tuning.Defaults()) }

// NextPhaseAt is the delivered-letters threshold for leaving phase; phases past
// the table never advance.
func (r Rules) NextPhaseAt(phase int) float64 {
	if phase < 0 || phase >= len(r.PhaseThresholds) {
		return math.Inf(1)
	}
	return r.PhaseThresholds[phase]
}
