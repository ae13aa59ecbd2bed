package economy

type Powerup string

const (
	Worms            Powerup = "Worms"
	Muel             Powerup = "Muel"
	LeeLeesPinky     Powerup = "LeeLees Pinky"
	SlowAndSteady    Powerup = "Slow and Steady"
	CarrierInstinct  Powerup = "Carrier Instinct"
	NightShift       Powerup = "Night Shift"
	AssemblyLine     Powerup = "Assembly Line"
	WordOfMouth      Powerup = "Word of Mouth"
	CuriosityCabinet Powerup = "Curiosity Cabinet"
)

var powerupOrder = []Powerup{
	Worms, Muel, LeeLeesPinky, SlowAndSteady, CarrierInstinct, NightShift, AssemblyLine, WordOfMouth, CuriosityCabinet,
}

var powerupChars = map[Powerup]byte{
	Worms:            'A',
	Muel:             'B',
	LeeLeesPinky:     'C',
	SlowAndSteady:    'D',
	CarrierInstinct:  'E',
	NightShift:       'F',
	AssemblyLine:     'G',
	WordOfMouth:      'H',
	CuriosityCabinet: 'I',
}

var powerupBlurbs = map[Powerup]string{
	Worms:            "Letters sell for more in every later phase.",
	Muel:             "Mailboxes produce four times as often.",
	LeeLeesPinky:     "Bootstrap increases clicks four times as much.",
	SlowAndSteady:    "Bootstrap gets more expensive much slower.",
	CarrierInstinct:  "Pigeons carry twice as many letters.",
	NightShift:       "Mailmen deliver twice as often.",
	AssemblyLine:     "Factories build twice as many mailboxes.",
	WordOfMouth:      "Advertisers are twice as effective.",
	CuriosityCabinet: "Manual deliveries earn twice the curiosity.",
}

// Char is the path character the powerup contributes when chosen.
func (p Powerup) Char() byte { return powerupChars[p] }

func (p Powerup) Blurb() string { return powerupBlurbs[p] }

func (p Powerup) Valid() bool {
	_, ok := powerupChars[p]
	return ok
}

// ParsePowerup accepts either the full name or the single path character.
func ParsePowerup(s string) (Powerup, bool) {
	if p := Powerup(s); p.Valid() {
		return p, true
	}
	if len(s) == 1 {
		for p, c := range powerupChars {
			if c == s[0] {
				return p, true
			}
		}
	}
	return "", false
}

func AllPowerups() []Powerup { return append([]Powerup(nil), powerupOrder...) }

// Powerups is the set of permanently chosen effects.
type Powerups map[Powerup]bool

func (ps Powerups) Has(p Powerup) bool { return ps != nil && ps[p] }

// Names lists active powerups in canonical order.
func (ps Powerups) Names() []string {
	out := make([]string, 0, len(ps))
	for _, p := range powerupOrder {
		if ps.Has(p) {
			out = append(out, string(p))
		}
	}
	return out
}
