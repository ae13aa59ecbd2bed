package game

import (
	"fmt"
	"sort"

	"postmaster.game/internal/persistence/snapshot"
	"postmaster.game/internal/sim/economy"
)

// ExportSave converts s into its on-disk form. tick is the last executed tick.
func ExportSave(s *State, r Rules, tickRateHz int, tick uint64, reason string) snapshot.SaveV1 {
	out := snapshot.SaveV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			GameID:  s.GameID,
			Tick:    tick,
			Reason:  reason,
			SavedMs: s.LastTickMs,
		},
		TickRateHz: tickRateHz,
		Rules: snapshot.RulesV1{
			LetterPrice:     r.LetterPrice,
			StartingLetters: r.StartingLetters,
			PhaseThresholds: append([]float64(nil), r.PhaseThresholds...),
			ReadPhase:       r.ReadPhase,
			DayLengthMs:     r.DayLengthMs,
			RateWindowMs:    r.RateWindowMs,
		},

		Letters:          s.Letters,
		Money:            s.Money,
		Curiosity:        s.Curiosity,
		LettersDelivered: s.LettersDelivered,
		ClickDelivery:    s.ClickDelivery,
		ClickInc:         s.ClickInc,

		Counts: map[string]int{},
		Flags:  map[string]bool{},
		Timers: map[string]int64{},

		Phase:            s.Phase,
		ChoosingPowerups: s.ChoosingPowerups,
		NumChosen:        s.NumChosen,
		Powerups:         s.Powerups.Names(),

		Correspondence: s.Correspondence,
		Reading:        s.Reading,
		OpenLetter:     s.OpenLetter,
		OpenedKey:      s.OpenedKey,

		Day:        s.Day,
		DayTimerMs: s.DayTimerMs,

		LettersRate:  snapshot.RateWindowV1(s.LettersRate),
		DeliveryRate: snapshot.RateWindowV1(s.DeliveryRate),

		LastTickMs: s.LastTickMs,
	}
	for k, v := range s.Counts {
		if v != 0 {
			out.Counts[string(k)] = v
		}
	}
	for k, v := range s.Flags {
		if v {
			out.Flags[string(k)] = true
		}
	}
	for k, v := range s.Timers {
		if v != 0 {
			out.Timers[string(k)] = v
		}
	}
	for _, p := range s.Selection {
		out.Selection = append(out.Selection, string(p))
	}
	keys := make([]string, 0, len(s.Puzzle))
	for k := range s.Puzzle {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		a := s.Puzzle[k]
		out.Puzzle = append(out.Puzzle, snapshot.PuzzleEntryV1{Key: k, Unlocked: a.Unlocked, Text: a.Text})
	}
	return out
}

// ImportSave rebuilds a State from a save. Unknown kinds or powerups fail the
// import rather than being dropped.
func ImportSave(in snapshot.SaveV1) (*State, Rules, error) {
	s := NewState(in.Header.GameID, in.LastTickMs)
	s.Letters = in.Letters
	s.Money = in.Money
	s.Curiosity = in.Curiosity
	s.LettersDelivered = in.LettersDelivered
	s.ClickDelivery = in.ClickDelivery
	if in.ClickInc > 0 {
		s.ClickInc = in.ClickInc
	}

	for k, v := range in.Counts {
		kind, ok := economy.ParseKind(k)
		if !ok {
			return nil, Rules{}, fmt.Errorf("import counts: %w: %q", ErrUnknownKind, k)
		}
		s.Counts[kind] = v
	}
	for k, v := range in.Timers {
		kind, ok := economy.ParseKind(k)
		if !ok {
			return nil, Rules{}, fmt.Errorf("import timers: %w: %q", ErrUnknownKind, k)
		}
		s.Timers[kind] = v
	}
	for k, v := range in.Flags {
		if v {
			s.Flags[Flag(k)] = true
		}
	}

	s.Phase = in.Phase
	s.ChoosingPowerups = in.ChoosingPowerups
	s.NumChosen = in.NumChosen
	for _, name := range in.Powerups {
		p, ok := economy.ParsePowerup(name)
		if !ok {
			return nil, Rules{}, fmt.Errorf("import powerups: %w: %q", ErrUnknownPowerup, name)
		}
		s.Powerups[p] = true
	}
	for _, name := range in.Selection {
		p, ok := economy.ParsePowerup(name)
		if !ok {
			return nil, Rules{}, fmt.Errorf("import selection: %w: %q", ErrUnknownPowerup, name)
		}
		s.Selection = append(s.Selection, p)
	}

	for _, e := range in.Puzzle {
		s.Puzzle[e.Key] = Attempt{Unlocked: e.Unlocked, Text: e.Text}
	}
	s.Correspondence = in.Correspondence
	s.Reading = in.Reading
	s.OpenLetter = in.OpenLetter
	s.OpenedKey = in.OpenedKey

	if in.Day > 0 {
		s.Day = in.Day
	}
	s.DayTimerMs = in.DayTimerMs
	s.LettersRate = RateWindow(in.LettersRate)
	s.DeliveryRate = RateWindow(in.DeliveryRate)

	r := Rules{
		LetterPrice:     in.Rules.LetterPrice,
		StartingLetters: in.Rules.StartingLetters,
		PhaseThresholds: append([]float64(nil), in.Rules.PhaseThresholds...),
		ReadPhase:       in.Rules.ReadPhase,
		DayLengthMs:     in.Rules.DayLengthMs,
		RateWindowMs:    in.Rules.RateWindowMs,
	}
	return s, r, nil
}
