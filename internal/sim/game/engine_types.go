package game

import (
	"time"

	"postmaster.game/internal/protocol"
	"postmaster.game/internal/sim/tuning"
)

type Config struct {
	GameID         string
	TickRateHz     int
	SaveEveryTicks int
	Rules          Rules

	// StartMs anchors a fresh game. Zero means Now().
	StartMs int64
	Now     func() time.Time

	Letters       Correspondence
	LettersDigest string
}

// ConfigFromTuning fills the tick and balance knobs from t.
func ConfigFromTuning(gameID string, t tuning.Tuning) Config {
	return Config{
		GameID:         gameID,
		TickRateHz:     t.TickRateHz,
		SaveEveryTicks: t.SaveEveryTicks,
		Rules:          RulesFromTuning(t),
	}
}

type ActionEnvelope struct {
	SessionID string
	Act       protocol.ActMsg
}

type SubscribeRequest struct {
	SessionID  string
	ClientName string
	NoState    bool
	Out        chan []byte
	Resp       chan protocol.WelcomeMsg
}

type StepLogger interface {
	WriteStep(entry StepLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type StepLogEntry struct {
	Tick    uint64           `json:"tick"`
	PrevMs  int64            `json:"prev_ms"`
	NowMs   int64            `json:"now_ms"`
	Actions []RecordedAction `json:"actions,omitempty"`
	Digest  string           `json:"digest"`
}

type RecordedAction struct {
	SessionID string          `json:"session_id"`
	Act       protocol.ActMsg `json:"act"`
}

// AuditEntry is one applied action and what it did.
type AuditEntry struct {
	Tick      uint64 `json:"tick"`
	NowMs     int64  `json:"now_ms"`
	SessionID string `json:"session_id"`
	ActID     string `json:"act_id"`
	Action    string `json:"action"`
	Target    string `json:"target,omitempty"`
	Accepted  bool   `json:"accepted"`
	Code      string `json:"code,omitempty"`

	Phase     int    `json:"phase"`
	Path      string `json:"path,omitempty"`
	Prestiged bool   `json:"prestiged,omitempty"`
	Key       string `json:"key,omitempty"`
	Unlocked  bool   `json:"unlocked,omitempty"`
}

// Save reasons recorded in snapshot headers.
const (
	SaveReasonTick     = "tick"
	SaveReasonPrestige = "prestige"
	SaveReasonNewGame  = "new_game"
	SaveReasonAdmin    = "admin"
	SaveReasonShutdown = "shutdown"
)
