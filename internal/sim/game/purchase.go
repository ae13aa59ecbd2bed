package game

import (
	"errors"

	"postmaster.game/internal/sim/economy"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownKind       = errors.New("unknown generator kind")
)

var oneTimeFlags = map[economy.Kind]Flag{
	economy.TwoHands: FlagTwoHands,
	economy.BoxMod:   FlagBoxMod,
}

// Owned reports whether a one-time purchase has already been made.
func (s *State) Owned(k economy.Kind) bool {
	f, ok := oneTimeFlags[k]
	return ok && s.Flags[f]
}

func (s *State) Affordable(k economy.Kind) bool {
	d, ok := economy.Lookup(k)
	if !ok || s.Owned(k) {
		return false
	}
	return *s.balance(d.Currency) >= s.Price(k)
}

// BuyOne buys a single unit of k. It returns ErrInsufficientFunds without
// touching s when the balance is short. Re-buying an owned one-time upgrade
// is a no-op.
func BuyOne(s *State, k economy.Kind) error {
	d, ok := economy.Lookup(k)
	if !ok {
		return ErrUnknownKind
	}
	if s.Owned(k) {
		return nil
	}
	price := s.Price(k)
	bal := s.balance(d.Currency)
	if *bal < price {
		return ErrInsufficientFunds
	}
	*bal -= price
	s.Counts[k]++

	if f, ok := oneTimeFlags[k]; ok {
		s.Flags[f] = true
	}
	if k == economy.Bootstrap {
		s.ClickInc += s.BootstrapInc()
		s.Flags[FlagBootstrapUnlocked] = true
	}
	return nil
}

// BuyMax buys units one at a time, re-pricing after each, until the next one
// is unaffordable. It returns how many were bought.
func BuyMax(s *State, k economy.Kind) (int, error) {
	d, ok := economy.Lookup(k)
	if !ok {
		return 0, ErrUnknownKind
	}
	if d.OneTime {
		if s.Owned(k) {
			return 0, nil
		}
		if err := BuyOne(s, k); err != nil {
			return 0, err
		}
		return 1, nil
	}
	n := 0
	for {
		if err := BuyOne(s, k); err != nil {
			if n == 0 {
				return 0, err
			}
			return n, nil
		}
		n++
	}
}
