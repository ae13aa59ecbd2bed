package game

import (
	"errors"
	"math"

	"postmaster.game/internal/sim/economy"
)

var ErrLocked = errors.New("manual generation locked")

// Deliver sells up to requested letters. Asking for more than is on hand
// delivers what is there; having less than one letter is a no-op.
func Deliver(s *State, r Rules, requested float64) float64 {
	if requested <= 0 || s.Letters < 1 {
		return 0
	}
	n := math.Min(requested, s.Letters)
	s.Letters -= n
	s.Money += n * s.PricePerLetter(r)
	s.LettersDelivered += n
	s.DeliveryRate.add(n)
	return n
}

// ClickGenerate writes letters by hand once bootstrap is unlocked.
func ClickGenerate(s *State) (float64, error) {
	if !s.Flags[FlagBootstrapUnlocked] {
		return 0, ErrLocked
	}
	v := s.ClickInc * s.Multiplier()
	generate(s, v)
	return v, nil
}

// ClickDeliver delivers by hand and earns curiosity.
func ClickDeliver(s *State, r Rules) float64 {
	if s.Letters == 0 {
		return 0
	}
	n := Deliver(s, r, math.Ceil(s.ClickInc)*s.Multiplier())
	s.ClickDelivery++
	gain := 1.0
	if s.Powerups.Has(economy.CuriosityCabinet) {
		gain = 2
	}
	s.Curiosity += gain
	return n
}
