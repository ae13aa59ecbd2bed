package game

import (
	"fmt"
	"math"

	"postmaster.game/internal/protocol"
	"postmaster.game/internal/sim/economy"
)

// Describe is the shop text for k under the current state.
func Describe(s *State, k economy.Kind) string {
	secs := func() string { return economy.Format(economy.Floor2(float64(Interval(s, k)) / 1000)) }
	amt := Yield(s, k)
	n := economy.Format(amt)

	switch k {
	case economy.Mailman:
		return fmt.Sprintf("Delivers %s %s every %s seconds.", n, plural(amt, "letter", "letters"), secs())
	case economy.Pigeon:
		return fmt.Sprintf("Deliver %s %s every %s seconds. Pigeons do not get more expensive.", n, plural(amt, "letter", "letters"), secs())
	case economy.Mailbox:
		return fmt.Sprintf("Generates %s %s every %s seconds.", n, plural(amt, "letter", "letters"), secs())
	case economy.PostOffice:
		return fmt.Sprintf("Generates %s letters every %s seconds.", n, secs())
	case economy.Factory:
		return fmt.Sprintf("Generates %s %s every %s seconds at no cost.", n, plural(amt, "Mailbox", "Mailboxes"), secs())
	case economy.CorporateOffice:
		return fmt.Sprintf("Generates %s Mailman and Factory every %s seconds at no cost.", n, secs())
	case economy.Breeder:
		return fmt.Sprintf("Generates %s %s every %s seconds at no cost.", n, plural(amt, "Pigeon", "Pigeons"), secs())
	case economy.Advertiser:
		return fmt.Sprintf("Increases deliveries per click by %s every %s seconds.", n, secs())
	case economy.Bootstrap:
		return fmt.Sprintf("Increases letters per click by %s. Also gives the ability to manually generate letters.", economy.Format(s.BootstrapInc()))
	case economy.TwoHands:
		return "Multiplies Bootstrap increase by 2."
	case economy.BoxMod:
		return fmt.Sprintf("Mailboxes generate %d more letters.", boxModBoost)
	}
	return ""
}

func plural(n float64, one, many string) string {
	if n > 1 {
		return many
	}
	return one
}

// BuildView renders the presentation snapshot of s.
func BuildView(s *State, r Rules, c Correspondence, tick uint64) protocol.StateMsg {
	v := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		GameID:          s.GameID,

		Letters:          s.Letters,
		Money:            s.Money,
		Curiosity:        s.Curiosity,
		LettersDelivered: s.LettersDelivered,
		ClickDelivery:    s.ClickDelivery,
		ClickInc:         s.ClickInc,
		Multiplier:       s.Multiplier(),
		PricePerLetter:   s.PricePerLetter(r),
		LettersPerSec:    s.LettersRate.Previous,
		DeliveredPerSec:  s.DeliveryRate.Previous,

		Phase:              s.Phase,
		PrestigeState:      string(s.PrestigeState()),
		NextPhaseAvailable: s.NextPhaseAvailable(r),
		NumChosen:          s.NumChosen,
		Path:               s.Path(),
		SortedPath:         s.SortedPath(),
		Powerups:           s.Powerups.Names(),

		Correspondence: s.Correspondence,
		OpenLetter:     s.OpenLetter,
		OpenedKey:      s.OpenedKey,
		FoundLetters:   s.FoundLetters(c.Known),

		Day: s.Day,
	}
	if at := s.NextPhaseAt(r); !math.IsInf(at, 1) {
		v.NextPhaseAt = &at
	}
	if v.FoundLetters == nil {
		v.FoundLetters = []string{}
	}

	for _, k := range economy.ShopOrder() {
		d, _ := economy.Lookup(k)
		price := s.Price(k)
		v.Generators = append(v.Generators, protocol.GeneratorView{
			Kind:        string(k),
			Count:       s.Counts[k],
			Price:       price,
			PriceText:   economy.Format(price),
			Currency:    string(d.Currency),
			Owned:       s.Owned(k),
			Affordable:  s.Affordable(k),
			Description: Describe(s, k),
		})
	}

	v.Display = map[string]string{
		"letters":           economy.Format(economy.Floor2(s.Letters)),
		"money":             economy.Format(economy.Floor2(s.Money)),
		"curiosity":         economy.Format(s.Curiosity),
		"letters_delivered": economy.Format(s.LettersDelivered),
		"next_phase_at":     economy.Format(s.NextPhaseAt(r)),
		"letters_per_sec":   economy.Format(s.LettersRate.Previous),
		"delivered_per_sec": economy.Format(s.DeliveryRate.Previous),
	}
	return v
}

// BuildLetter renders the currently opened letter, if any.
func BuildLetter(s *State, c Correspondence) (protocol.LetterMsg, bool) {
	if !s.OpenLetter || s.OpenedKey == "" {
		return protocol.LetterMsg{}, false
	}
	text, fallback := c.Ciphertext(s.OpenedKey)
	a := s.Puzzle[s.OpenedKey]
	return protocol.LetterMsg{
		Type:            protocol.TypeLetter,
		ProtocolVersion: protocol.Version,
		Key:             s.OpenedKey,
		Ciphertext:      text,
		Fallback:        fallback,
		Draft:           a.Text,
		Unlocked:        a.Unlocked,
	}, true
}

// Catalog lists the static generator and powerup tables.
func Catalog(lettersDigest string) protocol.Catalog {
	cat := protocol.Catalog{LettersDigest: lettersDigest}
	for _, k := range economy.ShopOrder() {
		d, _ := economy.Lookup(k)
		cat.Generators = append(cat.Generators, protocol.CatalogGenerator{
			Kind:       string(k),
			Label:      d.Label,
			BasePrice:  d.BasePrice,
			Exponent:   d.Exponent,
			Currency:   string(d.Currency),
			OneTime:    d.OneTime,
			IntervalMs: d.IntervalMs,
		})
	}
	for _, p := range economy.AllPowerups() {
		cat.Powerups = append(cat.Powerups, protocol.CatalogPowerup{
			Name:  string(p),
			Char:  string([]byte{p.Char()}),
			Blurb: p.Blurb(),
		})
	}
	return cat
}
