package game

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"sort"

	"lukechampine.com/blake3"

	"postmaster.game/internal/sim/economy"
)

// Digest is a canonical hash of the state at tick. Two states that would
// behave identically from here on hash the same.
func Digest(s *State, tick uint64) string {
	h := blake3.New(32, nil)
	var tmp [8]byte

	digestU64(h, &tmp, tick)
	digestString(h, &tmp, s.GameID)

	for _, v := range []float64{s.Letters, s.Money, s.Curiosity, s.LettersDelivered, s.ClickInc} {
		digestF64(h, &tmp, v)
	}
	digestU64(h, &tmp, uint64(s.ClickDelivery))

	kinds := economy.ShopOrder()
	for _, k := range kinds {
		digestU64(h, &tmp, uint64(s.Counts[k]))
		digestU64(h, &tmp, uint64(s.Timers[k]))
	}
	for _, f := range []Flag{FlagBootstrapUnlocked, FlagTwoHands, FlagBoxMod} {
		digestBool(h, s.Flags[f])
	}

	digestU64(h, &tmp, uint64(s.Phase))
	digestBool(h, s.ChoosingPowerups)
	digestU64(h, &tmp, uint64(s.NumChosen))
	for _, p := range economy.AllPowerups() {
		digestBool(h, s.Powerups.Has(p))
	}
	digestString(h, &tmp, s.Path())

	keys := make([]string, 0, len(s.Puzzle))
	for k := range s.Puzzle {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	digestU64(h, &tmp, uint64(len(keys)))
	for _, k := range keys {
		a := s.Puzzle[k]
		digestString(h, &tmp, k)
		digestBool(h, a.Unlocked)
		digestString(h, &tmp, a.Text)
	}
	digestBool(h, s.Correspondence)
	digestBool(h, s.Reading)
	digestBool(h, s.OpenLetter)
	digestString(h, &tmp, s.OpenedKey)

	digestU64(h, &tmp, uint64(s.Day))
	digestU64(h, &tmp, uint64(s.DayTimerMs))
	digestU64(h, &tmp, uint64(s.LastTickMs))

	return hex.EncodeToString(h.Sum(nil))
}

func digestU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestF64(h hash.Hash, tmp *[8]byte, v float64) {
	digestU64(h, tmp, math.Float64bits(v))
}

func digestBool(h hash.Hash, v bool) {
	if v {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
}

func digestString(h hash.Hash, tmp *[8]byte, s string) {
	digestU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}
