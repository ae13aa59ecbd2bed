package protocol

// STATE (server -> client), sent after every tick.
type StateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	GameID          string `json:"game_id"`

	Letters          float64 `json:"letters"`
	Money            float64 `json:"money"`
	Curiosity        float64 `json:"curiosity"`
	LettersDelivered float64 `json:"letters_delivered"`
	ClickDelivery    int     `json:"click_delivery"`
	ClickInc         float64 `json:"click_inc"`
	Multiplier       float64 `json:"multiplier"`
	PricePerLetter   float64 `json:"price_per_letter"`
	LettersPerSec    float64 `json:"letters_per_sec"`
	DeliveredPerSec  float64 `json:"delivered_per_sec"`

	Phase              int      `json:"phase"`
	PrestigeState      string   `json:"prestige_state"`
	NextPhaseAt        *float64 `json:"next_phase_at"` // null once no phase is left
	NextPhaseAvailable bool     `json:"next_phase_available"`
	NumChosen          int      `json:"num_chosen"`
	Path               string   `json:"path"`
	SortedPath         string   `json:"sorted_path"`
	Powerups           []string `json:"powerups"`

	Correspondence bool     `json:"correspondence"`
	OpenLetter     bool     `json:"open_letter"`
	OpenedKey      string   `json:"opened_key,omitempty"`
	FoundLetters   []string `json:"found_letters"`

	Day int `json:"day"`

	Generators []GeneratorView   `json:"generators"`
	Display    map[string]string `json:"display"`
}

type GeneratorView struct {
	Kind        string  `json:"kind"`
	Count       int     `json:"count"`
	Price       float64 `json:"price"`
	PriceText   string  `json:"price_text"`
	Currency    string  `json:"currency"`
	Owned       bool    `json:"owned,omitempty"`
	Affordable  bool    `json:"affordable"`
	Description string  `json:"description"`
}
