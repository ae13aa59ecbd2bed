package main

import (
	"strconv"
	"strings"

	"postmaster.game/internal/protocol"
)

// player is a greedy click-and-buy strategy. It never waits for ACKs; the
// next STATE shows whether anything took.
type player struct {
	catalog protocol.Catalog
	guess   string

	seq       int
	submitted map[string]bool
}

func (p *player) act(action string) protocol.ActMsg {
	p.seq++
	return protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		ID:              "B" + strconv.Itoa(p.seq),
		Action:          action,
	}
}

func (p *player) plan(st protocol.StateMsg) []protocol.ActMsg {
	switch st.PrestigeState {
	case "CHOOSING_POWERUPS":
		if name := p.nextPowerup(st); name != "" {
			a := p.act(protocol.ActChoose)
			a.Powerup = name
			return []protocol.ActMsg{a}
		}
		return nil
	case "READING":
		if st.OpenLetter && p.guess != "" && !p.submitted[st.OpenedKey] {
			if p.submitted == nil {
				p.submitted = map[string]bool{}
			}
			p.submitted[st.OpenedKey] = true
			a := p.act(protocol.ActSubmitText)
			a.Key = st.OpenedKey
			a.Text = p.guess
			return []protocol.ActMsg{a}
		}
		return nil
	}

	if st.NextPhaseAvailable {
		return []protocol.ActMsg{p.act(protocol.ActRequestPrestige)}
	}

	var out []protocol.ActMsg
	if unlocked(st) {
		out = append(out, p.act(protocol.ActClickGenerate))
	}
	if st.Letters >= 1 {
		out = append(out, p.act(protocol.ActClickDeliver))
	}
	if kind := cheapestAffordable(st); kind != "" {
		a := p.act(protocol.ActBuyMax)
		a.Kind = kind
		out = append(out, a)
	}
	return out
}

func unlocked(st protocol.StateMsg) bool {
	for _, g := range st.Generators {
		if g.Kind == "bootstrap" {
			return g.Count > 0
		}
	}
	return false
}

// cheapestAffordable skips one-time upgrades already owned. Prices in
// different currencies compare as plain numbers.
func cheapestAffordable(st protocol.StateMsg) string {
	best, bestPrice := "", 0.0
	for _, g := range st.Generators {
		if !g.Affordable || g.Owned {
			continue
		}
		if best == "" || g.Price < bestPrice {
			best, bestPrice = g.Kind, g.Price
		}
	}
	return best
}

// nextPowerup picks the first catalog powerup not already held.
func (p *player) nextPowerup(st protocol.StateMsg) string {
	held := map[string]bool{}
	for _, name := range st.Powerups {
		held[strings.ToLower(name)] = true
	}
	for _, pw := range p.catalog.Powerups {
		if !held[strings.ToLower(pw.Name)] {
			return pw.Name
		}
	}
	return ""
}
