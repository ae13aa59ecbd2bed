package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeState   = "STATE"
	TypeAct     = "ACT"
	TypeAck     = "ACK"
	TypeLetter  = "LETTER"
)

// Player actions carried by ACT.
const (
	ActBuyOne          = "BUY_ONE"
	ActBuyMax          = "BUY_MAX"
	ActChoose          = "CHOOSE"
	ActDeliver         = "DELIVER"
	ActClickGenerate   = "CLICK_GENERATE"
	ActClickDeliver    = "CLICK_DELIVER"
	ActRequestPrestige = "REQUEST_PRESTIGE"
	ActSubmitText      = "SUBMIT_TEXT"
	ActOpenLetter      = "OPEN_LETTER"
	ActCloseLetter     = "CLOSE_LETTER"
	ActNewGame         = "NEW_GAME"
)

var knownActions = map[string]struct{}{
	ActBuyOne:          {},
	ActBuyMax:          {},
	ActChoose:          {},
	ActDeliver:         {},
	ActClickGenerate:   {},
	ActClickDeliver:    {},
	ActRequestPrestige: {},
	ActSubmitText:      {},
	ActOpenLetter:      {},
	ActCloseLetter:     {},
	ActNewGame:         {},
}

func IsKnownAction(a string) bool {
	_, ok := knownActions[a]
	return ok
}

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
