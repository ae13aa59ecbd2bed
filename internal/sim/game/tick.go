package game

import (
	"postmaster.game/internal/sim/economy"
)

// Advance moves the simulation forward by elapsedMs of wall time.
//
// Time is cut at every firing across all producers, so a long gap loops
// production and units granted mid-gap only produce from the moment they
// exist. Producers due at the same instant fire in TickOrder.
func Advance(s *State, r Rules, elapsedMs int64) {
	if elapsedMs <= 0 {
		return
	}
	advanceCalendar(s, r, elapsedMs)
	if s.Paused() {
		return
	}
	order := economy.TickOrder()
	for left := elapsedMs; ; {
		step := nextFiring(s, order, left)
		for _, k := range order {
			if producing(s, k) && Interval(s, k) > 0 {
				s.Timers[k] += step
			}
		}
		left -= step
		for _, k := range order {
			fireDue(s, r, k)
		}
		if left <= 0 {
			break
		}
	}
	if r.RateWindowMs > 0 {
		s.LettersRate.roll(elapsedMs, r.RateWindowMs)
		s.DeliveryRate.roll(elapsedMs, r.RateWindowMs)
	}
}

// nextFiring is the time until the earliest producer is due, capped at left.
func nextFiring(s *State, order []economy.Kind, left int64) int64 {
	step := left
	for _, k := range order {
		if !producing(s, k) {
			continue
		}
		interval := Interval(s, k)
		if interval <= 0 {
			continue
		}
		if d := interval - s.Timers[k]; d < step {
			step = d
		}
	}
	if step < 0 {
		return 0
	}
	return step
}

func advanceCalendar(s *State, r Rules, elapsedMs int64) {
	if r.DayLengthMs <= 0 {
		return
	}
	s.DayTimerMs += elapsedMs
	for s.DayTimerMs >= r.DayLengthMs {
		s.DayTimerMs -= r.DayLengthMs
		s.Day++
	}
}

// fireDue fires k once if its timer has reached the interval. A timer that
// is still due afterwards fires on the next zero-length step.
func fireDue(s *State, r Rules, k economy.Kind) {
	if !producing(s, k) {
		return
	}
	interval := Interval(s, k)
	if interval <= 0 || s.Timers[k] < interval {
		return
	}
	produce(s, r, k)
	s.Timers[k] -= interval
}

// producing reports whether k has anything to fire; idle timers stay at zero.
func producing(s *State, k economy.Kind) bool {
	if k == economy.Bootstrap {
		return s.Flags[FlagBootstrapUnlocked] && s.Counts[k] > 0
	}
	return s.Counts[k] > 0
}

// Interval is the production interval for k after powerups.
func Interval(s *State, k economy.Kind) int64 {
	d, ok := economy.Lookup(k)
	if !ok {
		return 0
	}
	iv := d.IntervalMs
	switch {
	case k == economy.Mailbox && s.Powerups.Has(economy.Muel):
		iv -= iv * 3 / 4
	case k == economy.Mailman && s.Powerups.Has(economy.NightShift):
		iv /= 2
	}
	return iv
}

// Yield is what one firing of k emits, per owned unit where that applies.
func Yield(s *State, k economy.Kind) float64 {
	d, ok := economy.Lookup(k)
	if !ok {
		return 0
	}
	amt := d.Amount
	switch k {
	case economy.Mailbox:
		if s.Flags[FlagBoxMod] {
			amt += boxModBoost
		}
	case economy.Pigeon:
		if s.Powerups.Has(economy.CarrierInstinct) {
			amt *= 2
		}
	case economy.Factory:
		if s.Powerups.Has(economy.AssemblyLine) {
			amt *= 2
		}
	case economy.Advertiser:
		if s.Powerups.Has(economy.WordOfMouth) {
			amt *= 2
		}
	}
	return amt
}

const boxModBoost = 2

func produce(s *State, r Rules, k economy.Kind) {
	d, _ := economy.Lookup(k)
	n := float64(s.Counts[k])
	mult := s.Multiplier()

	switch d.Output {
	case economy.OutputLetters:
		generate(s, n*Yield(s, k)*mult)
	case economy.OutputDelivery:
		Deliver(s, r, n*Yield(s, k)*mult)
	case economy.OutputUnits:
		grant := int(n * Yield(s, k))
		for _, g := range d.Grants {
			s.Counts[g] += grant
		}
	case economy.OutputClickInc:
		s.ClickInc += n * Yield(s, k)
	case economy.OutputAutoClick:
		generate(s, s.ClickInc*mult)
	}
}

func generate(s *State, v float64) {
	if v <= 0 {
		return
	}
	s.Letters += v
	s.LettersRate.add(v)
}
