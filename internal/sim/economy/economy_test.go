package economy

import (
	"math"
	"testing"
)

func TestPrice_StrictlyIncreasing(t *testing.T) {
	for _, k := range ShopOrder() {
		d, _ := Lookup(k)
		if d.Flat {
			continue
		}
		for n := 0; n < 300; n++ {
			a, b := Price(k, n, nil), Price(k, n+1, nil)
			if !(b > a) {
				t.Fatalf("%s: price(%d)=%v price(%d)=%v", k, n+1, b, n, a)
			}
		}
	}

	slow := Powerups{SlowAndSteady: true}
	for n := 0; n < 300; n++ {
		a, b := Price(Bootstrap, n, slow), Price(Bootstrap, n+1, slow)
		if !(b > a) {
			t.Fatalf("slow bootstrap: price(%d)=%v price(%d)=%v", n+1, b, n, a)
		}
	}
}

func TestPrice_BalancingTable(t *testing.T) {
	cases := []struct {
		k     Kind
		owned int
		want  float64
	}{
		{Mailbox, 0, 5},
		{Mailbox, 1, 6},
		{Mailman, 4, 18},
		{Factory, 3, 259},
		{CorporateOffice, 2, 5004},
		{Breeder, 10, 1100},
		{Advertiser, 4, 508},
		{TwoHands, 1, 101},
		{BoxMod, 0, 150},
		{Bootstrap, 4, 9},
		{Pigeon, 1000, 10},
		// 2^1.2 = 2.2973967...
		{Mailbox, 2, 7.29},
		// 3^2.3 = 12.513502...
		{PostOffice, 3, 25012.51},
	}
	for _, c := range cases {
		if got := Price(c.k, c.owned, nil); got != c.want {
			t.Fatalf("%s owned=%d: got %v want %v", c.k, c.owned, got, c.want)
		}
	}
	if got := Price(Bootstrap, 4, Powerups{SlowAndSteady: true}); got != 3 {
		t.Fatalf("slow bootstrap owned=4: got %v want 3", got)
	}
	if !math.IsInf(Price("nope", 0, nil), 1) {
		t.Fatalf("unknown kind should be unaffordable")
	}
}

func TestFloor2_Truncates(t *testing.T) {
	if got := Floor2(1.999); got != 1.99 {
		t.Fatalf("Floor2(1.999)=%v", got)
	}
	if got := Floor2(7); got != 7 {
		t.Fatalf("Floor2(7)=%v", got)
	}
}

func TestFormat(t *testing.T) {
	cases := map[float64]string{
		0:           "0",
		999:         "999",
		12.5:        "12.5",
		1500:        "1.5k",
		1000:        "1k",
		1999999:     "1.99m",
		2.5e9:       "2.5b",
		7e12:        "7t",
		3.14159e15:  "3.14s",
		4.2e18:      "4.2q",
		math.Inf(1): "Infinity",
	}
	for v, want := range cases {
		if got := Format(v); got != want {
			t.Fatalf("Format(%v)=%q want %q", v, got, want)
		}
	}
}

func TestPowerups_CharsAreUniqueAndParse(t *testing.T) {
	seen := map[byte]Powerup{}
	for _, p := range AllPowerups() {
		c := p.Char()
		if prev, ok := seen[c]; ok {
			t.Fatalf("char %q shared by %s and %s", c, prev, p)
		}
		seen[c] = p

		byName, ok := ParsePowerup(string(p))
		if !ok || byName != p {
			t.Fatalf("parse name %q", p)
		}
		byChar, ok := ParsePowerup(string([]byte{c}))
		if !ok || byChar != p {
			t.Fatalf("parse char %q", c)
		}
	}
	if _, ok := ParsePowerup("Z"); ok {
		t.Fatalf("unknown char accepted")
	}
}
