package game

import (
	"errors"

	"postmaster.game/internal/sim/economy"
)

var (
	ErrUnknownPowerup = errors.New("unknown powerup")
	ErrNotFound       = errors.New("letter not found")
)

// PrestigeState is the controller position derived from State.
type PrestigeState string

const (
	PrestigeActive   PrestigeState = "ACTIVE"
	PrestigeChoosing PrestigeState = "CHOOSING_POWERUPS"
	PrestigeReading  PrestigeState = "READING"
)

func (s *State) PrestigeState() PrestigeState {
	switch {
	case s.Reading:
		return PrestigeReading
	case s.ChoosingPowerups:
		return PrestigeChoosing
	default:
		return PrestigeActive
	}
}

// RequestPrestige is the player asking to move on. Below the threshold it does
// nothing. The last phase before reading transitions directly; every other
// phase first asks for powerups.
func RequestPrestige(s *State, r Rules) bool {
	if s.Paused() || !s.NextPhaseAvailable(r) {
		return false
	}
	if s.Phase != r.ReadPhase-1 {
		s.ChoosingPowerups = true
		return true
	}
	return Prestige(s, r)
}

// Choose toggles a powerup and its path character. The first choice of a
// phase-0 run drops whatever selection a previous run left behind. A second
// choice in the same phase transitions immediately.
func Choose(s *State, r Rules, p economy.Powerup) (prestiged bool, err error) {
	if !p.Valid() {
		return false, ErrUnknownPowerup
	}
	if s.Phase == 0 && s.NumChosen == 0 {
		s.Selection = nil
	}
	if s.Powerups.Has(p) {
		delete(s.Powerups, p)
		s.Selection = without(s.Selection, p)
		if s.NumChosen > 0 {
			s.NumChosen--
		}
	} else {
		s.Powerups[p] = true
		s.Selection = append(s.Selection, p)
		s.NumChosen++
	}
	if s.NumChosen >= 2 {
		return Prestige(s, r), nil
	}
	return false, nil
}

func without(sel []economy.Powerup, p economy.Powerup) []economy.Powerup {
	out := sel[:0:0]
	for _, q := range sel {
		if q != p {
			out = append(out, q)
		}
	}
	return out
}

// Prestige resets the run into the next phase, carrying over powerups, the
// selection, puzzle progress, correspondence and the calendar. It refuses to
// go past the reading phase.
func Prestige(s *State, r Rules) bool {
	if s.Phase >= r.ReadPhase {
		return false
	}
	next := NewState(s.GameID, s.LastTickMs)
	next.Powerups = s.Powerups
	next.Selection = s.Selection
	next.Puzzle = s.Puzzle
	next.Correspondence = s.Correspondence
	next.Day = s.Day
	next.DayTimerMs = s.DayTimerMs
	next.Phase = s.Phase + 1
	next.Letters = r.StartingLetters
	*s = *next

	if s.Phase == r.ReadPhase {
		key := s.SortedPath()
		s.Reading = true
		s.OpenLetter = true
		s.OpenedKey = key
		if key != "" {
			if _, ok := s.Puzzle[key]; !ok {
				s.Puzzle[key] = Attempt{}
			}
		}
	}
	return true
}

// RecordAttempt stores the submitted text for key and unlocks it when the
// submission was judged correct for a real letter. Unlocks are permanent.
func RecordAttempt(s *State, key, text string, deciphered, known bool) bool {
	a := s.Puzzle[key]
	a.Text = text
	if deciphered && known {
		a.Unlocked = true
	}
	s.Puzzle[key] = a
	return a.Unlocked
}

// OpenLetter opens an already found letter from the correspondence page.
func OpenLetter(s *State, key string, known func(string) bool) error {
	if _, ok := s.Puzzle[key]; !ok || !known(key) {
		return ErrNotFound
	}
	s.OpenLetter = true
	s.OpenedKey = key
	s.Correspondence = true
	return nil
}

func CloseLetter(s *State) {
	s.OpenLetter = false
	s.OpenedKey = ""
}

// NewGame starts over. Puzzle progress, the save identity, the calendar and
// the last selection survive; the selection is dropped on the first choice of
// the new run.
func NewGame(s *State, r Rules) {
	next := NewState(s.GameID, s.LastTickMs)
	next.Letters = r.StartingLetters
	next.Puzzle = s.Puzzle
	next.Selection = s.Selection
	next.Day = s.Day
	next.DayTimerMs = s.DayTimerMs
	*s = *next
}
