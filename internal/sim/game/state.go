package game

import (
	"math"
	"sort"
	"strings"

	"postmaster.game/internal/letters"
	"postmaster.game/internal/sim/economy"
)

type Flag string

const (
	FlagBootstrapUnlocked Flag = "bootstrap_unlocked"
	FlagTwoHands          Flag = "two_hands"
	FlagBoxMod            Flag = "box_mod"
)

// Attempt is the lifetime record for one letter key.
type Attempt struct {
	Unlocked bool   `json:"unlocked"`
	Text     string `json:"text"`
}

// RateWindow accumulates a quantity over a fixed window and exposes the
// previous window's total as the displayed per-second rate.
type RateWindow struct {
	ElapsedMs int64   `json:"elapsed_ms"`
	Current   float64 `json:"current"`
	Previous  float64 `json:"previous"`
}

func (w *RateWindow) add(v float64) { w.Current += v }

func (w *RateWindow) roll(elapsedMs, windowMs int64) {
	if w.ElapsedMs < windowMs {
		w.ElapsedMs += elapsedMs
		return
	}
	w.Previous = w.Current
	w.Current = 0
	w.ElapsedMs = 0
}

// State is everything a save slot holds. It is owned by exactly one goroutine.
type State struct {
	GameID string

	Letters          float64
	Money            float64
	Curiosity        float64
	LettersDelivered float64
	ClickDelivery    int
	ClickInc         float64

	Counts map[economy.Kind]int
	Flags  map[Flag]bool
	Timers map[economy.Kind]int64

	Phase            int
	ChoosingPowerups bool
	NumChosen        int
	Powerups         economy.Powerups
	// Selection is the authoritative order powerups were chosen in; the path
	// string is always derived from it.
	Selection []economy.Powerup

	Puzzle         map[string]Attempt
	Correspondence bool
	Reading        bool
	OpenLetter     bool
	OpenedKey      string

	Day        int
	DayTimerMs int64

	LettersRate  RateWindow
	DeliveryRate RateWindow

	LastTickMs int64
}

// NewState is a fresh game anchored at nowMs.
func NewState(gameID string, nowMs int64) *State {
	return &State{
		GameID:     gameID,
		ClickInc:   1,
		Counts:     map[economy.Kind]int{},
		Flags:      map[Flag]bool{},
		Timers:     map[economy.Kind]int64{},
		Powerups:   economy.Powerups{},
		Puzzle:     map[string]Attempt{},
		Day:        1,
		LastTickMs: nowMs,
	}
}

// Path concatenates the characters of the selected powerups in selection order.
func (s *State) Path() string {
	var b strings.Builder
	for _, p := range s.Selection {
		b.WriteByte(p.Char())
	}
	return b.String()
}

func (s *State) SortedPath() string { return letters.SortKey(s.Path()) }

// Multiplier is 1 plus the number of deciphered letters.
func (s *State) Multiplier() float64 {
	n := 1
	for _, a := range s.Puzzle {
		if a.Unlocked {
			n++
		}
	}
	return float64(n)
}

// Paused reports whether production is suspended.
func (s *State) Paused() bool { return s.ChoosingPowerups || s.Reading }

func (s *State) PricePerLetter(r Rules) float64 {
	p := r.LetterPrice
	if s.Powerups.Has(economy.Worms) && s.Phase > 0 {
		p += r.LetterPrice * math.Pow(4, float64(s.Phase-1))
	}
	return p
}

func (s *State) NextPhaseAt(r Rules) float64 { return r.NextPhaseAt(s.Phase) }

func (s *State) NextPhaseAvailable(r Rules) bool {
	return s.LettersDelivered >= s.NextPhaseAt(r)
}

func (s *State) Price(k economy.Kind) float64 {
	return economy.Price(k, s.Counts[k], s.Powerups)
}

// BootstrapInc is how much one bootstrap purchase raises letters per click.
func (s *State) BootstrapInc() float64 {
	v := 1.0
	if n := s.Counts[economy.TwoHands]; n > 0 {
		v *= 2 * float64(n)
	}
	if s.Powerups.Has(economy.LeeLeesPinky) {
		v *= 4
	}
	return v
}

// FoundLetters are the keys with stored progress that name a real letter.
func (s *State) FoundLetters(known func(string) bool) []string {
	var out []string
	for k := range s.Puzzle {
		if k != "" && known(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (s *State) balance(c economy.Currency) *float64 {
	if c == economy.Curiosity {
		return &s.Curiosity
	}
	return &s.Money
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.Counts = make(map[economy.Kind]int, len(s.Counts))
	for k, v := range s.Counts {
		c.Counts[k] = v
	}
	c.Flags = make(map[Flag]bool, len(s.Flags))
	for k, v := range s.Flags {
		c.Flags[k] = v
	}
	c.Timers = make(map[economy.Kind]int64, len(s.Timers))
	for k, v := range s.Timers {
		c.Timers[k] = v
	}
	c.Powerups = make(economy.Powerups, len(s.Powerups))
	for k, v := range s.Powerups {
		c.Powerups[k] = v
	}
	c.Selection = append([]economy.Powerup(nil), s.Selection...)
	c.Puzzle = make(map[string]Attempt, len(s.Puzzle))
	for k, v := range s.Puzzle {
		c.Puzzle[k] = v
	}
	return &c
}
