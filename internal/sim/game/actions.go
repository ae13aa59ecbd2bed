package game

import (
	"errors"
	"fmt"

	"postmaster.game/internal/protocol"
	"postmaster.game/internal/sim/economy"
)

// Correspondence is the letter content the core consults. It must not do I/O.
type Correspondence interface {
	Known(key string) bool
	Deciphered(key, text string) bool
	Ciphertext(key string) (text string, fallback bool)
}

// Result is the outcome of one applied action.
type Result struct {
	Code    string
	Message string

	Bought    int
	Delivered float64
	Prestiged bool
	Unlocked  bool
	NewGame   bool
}

func (r Result) Accepted() bool { return r.Code == "" }

func reject(code, msg string) Result { return Result{Code: code, Message: msg} }

// Apply executes one player action against s.
func Apply(s *State, r Rules, c Correspondence, act protocol.ActMsg) Result {
	switch act.Action {
	case protocol.ActBuyOne, protocol.ActBuyMax:
		if s.Paused() {
			return reject(protocol.ErrBlocked, "shop closed while "+string(s.PrestigeState()))
		}
		k, ok := economy.ParseKind(act.Kind)
		if !ok {
			return reject(protocol.ErrInvalidTarget, fmt.Sprintf("unknown kind %q", act.Kind))
		}
		var (
			n   int
			err error
		)
		if act.Action == protocol.ActBuyOne {
			err = BuyOne(s, k)
			if err == nil {
				n = 1
			}
		} else {
			n, err = BuyMax(s, k)
		}
		if err != nil {
			return purchaseErr(err)
		}
		return Result{Bought: n}

	case protocol.ActChoose:
		if !s.ChoosingPowerups {
			return reject(protocol.ErrConflict, "not choosing powerups")
		}
		p, ok := economy.ParsePowerup(act.Powerup)
		if !ok {
			return reject(protocol.ErrInvalidTarget, fmt.Sprintf("unknown powerup %q", act.Powerup))
		}
		prestiged, err := Choose(s, r, p)
		if err != nil {
			return reject(protocol.ErrInvalidTarget, err.Error())
		}
		return Result{Prestiged: prestiged}

	case protocol.ActDeliver:
		if s.Paused() {
			return reject(protocol.ErrBlocked, "delivery paused")
		}
		if act.Amount <= 0 {
			return reject(protocol.ErrBadRequest, "amount must be > 0")
		}
		return Result{Delivered: Deliver(s, r, act.Amount)}

	case protocol.ActClickGenerate:
		if s.Paused() {
			return reject(protocol.ErrBlocked, "generation paused")
		}
		if _, err := ClickGenerate(s); err != nil {
			return reject(protocol.ErrLocked, err.Error())
		}
		return Result{}

	case protocol.ActClickDeliver:
		if s.Paused() {
			return reject(protocol.ErrBlocked, "delivery paused")
		}
		return Result{Delivered: ClickDeliver(s, r)}

	case protocol.ActRequestPrestige:
		if s.Paused() {
			return reject(protocol.ErrConflict, "already "+string(s.PrestigeState()))
		}
		if !s.NextPhaseAvailable(r) {
			return reject(protocol.ErrConflict, "next phase not reached")
		}
		before := s.Phase
		RequestPrestige(s, r)
		return Result{Prestiged: s.Phase != before}

	case protocol.ActSubmitText:
		key := act.Key
		if key == "" {
			key = s.OpenedKey
		}
		if !s.OpenLetter || key == "" || key != s.OpenedKey {
			return reject(protocol.ErrConflict, "no such letter open")
		}
		ok := RecordAttempt(s, key, act.Text, c.Deciphered(key, act.Text), c.Known(key))
		return Result{Unlocked: ok}

	case protocol.ActOpenLetter:
		if err := OpenLetter(s, act.Key, c.Known); err != nil {
			return reject(protocol.ErrInvalidTarget, err.Error())
		}
		return Result{}

	case protocol.ActCloseLetter:
		CloseLetter(s)
		return Result{}

	case protocol.ActNewGame:
		NewGame(s, r)
		return Result{NewGame: true}
	}
	return reject(protocol.ErrBadRequest, fmt.Sprintf("unknown action %q", act.Action))
}

func purchaseErr(err error) Result {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return reject(protocol.ErrNoResource, err.Error())
	case errors.Is(err, ErrUnknownKind):
		return reject(protocol.ErrInvalidTarget, err.Error())
	default:
		return reject(protocol.ErrInternal, err.Error())
	}
}
