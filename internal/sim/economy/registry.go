package economy

// Kind is the closed set of purchasable generators and upgrades.
type Kind string

const (
	Mailman         Kind = "mailman"
	Pigeon          Kind = "pigeon"
	Mailbox         Kind = "mailbox"
	Factory         Kind = "factory"
	CorporateOffice Kind = "corporate_office"
	Breeder         Kind = "breeder"
	Advertiser      Kind = "advertiser"
	PostOffice      Kind = "post_office"
	Bootstrap       Kind = "bootstrap"
	TwoHands        Kind = "two_hands"
	BoxMod          Kind = "box_mod"
)

type Currency string

const (
	Money     Currency = "money"
	Curiosity Currency = "curiosity"
)

// Output names what a producing kind emits when its timer fires.
type Output string

const (
	OutputNone      Output = ""
	OutputLetters   Output = "letters"   // generated, not delivered
	OutputDelivery  Output = "delivery"  // converts letters to money
	OutputUnits     Output = "units"     // grants units of Grants
	OutputClickInc  Output = "click_inc" // raises letters per click
	OutputAutoClick Output = "auto_click"
)

type Def struct {
	Kind  Kind
	Label string

	BasePrice float64
	Exponent  float64
	Currency  Currency
	OneTime   bool
	// Flat prices ignore the owned count entirely.
	Flat bool

	IntervalMs int64
	Output     Output
	// Amount is produced per owned unit per interval.
	Amount float64
	Grants []Kind
}

var defs = map[Kind]Def{
	Mailman: {
		Kind: Mailman, Label: "Mailman",
		BasePrice: 10, Exponent: 1.5, Currency: Money,
		IntervalMs: 4000, Output: OutputDelivery, Amount: 1,
	},
	Pigeon: {
		Kind: Pigeon, Label: "Pigeon",
		BasePrice: 10, Currency: Curiosity, Flat: true,
		IntervalMs: 2000, Output: OutputDelivery, Amount: 1,
	},
	Mailbox: {
		Kind: Mailbox, Label: "Mailbox",
		BasePrice: 5, Exponent: 1.2, Currency: Money,
		IntervalMs: 5000, Output: OutputLetters, Amount: 1,
	},
	Factory: {
		Kind: Factory, Label: "Factory",
		BasePrice: 250, Exponent: 2.0, Currency: Money,
		IntervalMs: 20000, Output: OutputUnits, Amount: 1, Grants: []Kind{Mailbox},
	},
	CorporateOffice: {
		Kind: CorporateOffice, Label: "Corporate Office",
		BasePrice: 5000, Exponent: 2.0, Currency: Money,
		IntervalMs: 60000, Output: OutputUnits, Amount: 1, Grants: []Kind{Mailman, Factory},
	},
	Breeder: {
		Kind: Breeder, Label: "Breeder",
		BasePrice: 1000, Exponent: 2.0, Currency: Money,
		IntervalMs: 30000, Output: OutputUnits, Amount: 1, Grants: []Kind{Pigeon},
	},
	Advertiser: {
		Kind: Advertiser, Label: "Advertiser",
		BasePrice: 500, Exponent: 1.5, Currency: Money,
		IntervalMs: 15000, Output: OutputClickInc, Amount: 1,
	},
	PostOffice: {
		Kind: PostOffice, Label: "Post Office",
		BasePrice: 25000, Exponent: 2.3, Currency: Money,
		IntervalMs: 10000, Output: OutputLetters, Amount: 25,
	},
	Bootstrap: {
		Kind: Bootstrap, Label: "Bootstrap",
		BasePrice: 1, Exponent: 1.5, Currency: Money,
		IntervalMs: 1000, Output: OutputAutoClick, Amount: 1,
	},
	TwoHands: {
		Kind: TwoHands, Label: "Two Hands",
		BasePrice: 100, Exponent: 7, Currency: Money, OneTime: true,
	},
	BoxMod: {
		Kind: BoxMod, Label: "Box Mod",
		BasePrice: 150, Exponent: 1, Currency: Money, OneTime: true,
	},
}

// tickOrder is the fixed order producers fire in within one tick.
var tickOrder = []Kind{
	Bootstrap, Mailman, Advertiser, Breeder, Mailbox, CorporateOffice, Pigeon, Factory, PostOffice,
}

// shopOrder is the order purchasables are listed to players.
var shopOrder = []Kind{
	Bootstrap, TwoHands, Mailbox, BoxMod, Mailman, Pigeon, Factory, Advertiser, Breeder, CorporateOffice, PostOffice,
}

func Lookup(k Kind) (Def, bool) {
	d, ok := defs[k]
	return d, ok
}

func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	_, ok := defs[k]
	return k, ok
}

// TickOrder returns a copy of the producer firing order.
func TickOrder() []Kind { return append([]Kind(nil), tickOrder...) }

// ShopOrder returns a copy of every purchasable kind in display order.
func ShopOrder() []Kind { return append([]Kind(nil), shopOrder...) }
