package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
	// NoState asks the server not to stream STATE; ACK and LETTER still flow.
	NoState bool `json:"no_state,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	SessionID       string     `json:"session_id"`
	GameID          string     `json:"game_id"`
	GameParams      GameParams `json:"game_params"`
	Catalog         Catalog    `json:"catalog"`
}

type GameParams struct {
	TickRateHz      int       `json:"tick_rate_hz"`
	PricePerLetter  float64   `json:"price_per_letter"`
	PhaseThresholds []float64 `json:"phase_thresholds"`
	ReadPhase       int       `json:"read_phase"`
	DayLengthMs     int64     `json:"day_length_ms"`
}

type Catalog struct {
	Generators    []CatalogGenerator `json:"generators"`
	Powerups      []CatalogPowerup   `json:"powerups"`
	LettersDigest string             `json:"letters_digest"`
}

type CatalogGenerator struct {
	Kind       string  `json:"kind"`
	Label      string  `json:"label"`
	BasePrice  float64 `json:"base_price"`
	Exponent   float64 `json:"exponent"`
	Currency   string  `json:"currency"`
	OneTime    bool    `json:"one_time,omitempty"`
	IntervalMs int64   `json:"interval_ms,omitempty"`
}

type CatalogPowerup struct {
	Name  string `json:"name"`
	Char  string `json:"char"`
	Blurb string `json:"blurb"`
}

// ACT (client -> server)
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Action          string `json:"action"`

	Kind    string  `json:"kind,omitempty"`
	Powerup string  `json:"powerup,omitempty"`
	Amount  float64 `json:"amount,omitempty"`
	Key     string  `json:"key,omitempty"`
	Text    string  `json:"text,omitempty"`
}

// ACK (server -> client), one per ACT.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick"`
}

// LETTER (server -> client): the enciphered text of the opened letter.
type LetterMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Key             string `json:"key"`
	Ciphertext      string `json:"ciphertext"`
	Fallback        bool   `json:"fallback,omitempty"`
	Draft           string `json:"draft"`
	Unlocked        bool   `json:"unlocked"`
}
