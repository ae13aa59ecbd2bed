package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"postmaster.game/internal/letters"
	"postmaster.game/internal/persistence/snapshot"
	"postmaster.game/internal/protocol"
)

var ErrStopped = errors.New("engine stopped")

type subscriber struct {
	id      string
	name    string
	noState bool
	out     chan []byte
}

type adminSaveReq struct {
	reason string
	resp   chan snapshot.SaveV1
}

// Engine owns one save slot and is the only goroutine that touches its State.
type Engine struct {
	cfg   Config
	rules Rules
	corr  Correspondence

	state *State
	tick  atomic.Uint64

	inbox       chan ActionEnvelope
	subscribe   chan SubscribeRequest
	unsubscribe chan string
	admin       chan adminSaveReq
	stop        chan struct{}
	stopOnce    atomic.Bool

	subs map[string]*subscriber

	stepLogger  StepLogger
	auditLogger AuditLogger
	saveSink    chan<- snapshot.SaveV1
	// Non-tick saves the sink had no room for, oldest first.
	pendingSaves []snapshot.SaveV1

	lastLetter string

	actionsTotal      uint64
	rejectedTotal     uint64
	prestigeTotal     uint64
	saveDroppedTotal  uint64
	stepLogErrorTotal uint64
	auditErrorTotal   uint64

	metrics atomic.Value // Metrics
	view    atomic.Value // protocol.StateMsg
}

func New(cfg Config) (*Engine, error) {
	if cfg.GameID == "" {
		cfg.GameID = "main"
	}
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("tick rate must be > 0, got %d", cfg.TickRateHz)
	}
	if cfg.SaveEveryTicks < 0 {
		return nil, fmt.Errorf("save every ticks must be >= 0, got %d", cfg.SaveEveryTicks)
	}
	if cfg.Rules.ReadPhase <= 0 {
		cfg.Rules = DefaultRules()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Letters == nil {
		lib := letters.Builtin()
		cfg.Letters = lib
		cfg.LettersDigest = lib.Digest()
	}
	start := cfg.StartMs
	if start == 0 {
		start = cfg.Now().UnixMilli()
	}
	e := &Engine{
		cfg:         cfg,
		rules:       cfg.Rules,
		corr:        cfg.Letters,
		state:       NewState(cfg.GameID, start),
		inbox:       make(chan ActionEnvelope, 1024),
		subscribe:   make(chan SubscribeRequest, 64),
		unsubscribe: make(chan string, 64),
		admin:       make(chan adminSaveReq, 16),
		stop:        make(chan struct{}),
		subs:        map[string]*subscriber{},
	}
	e.state.Letters = e.rules.StartingLetters
	e.publish(0, 0)
	return e, nil
}

func (e *Engine) SetStepLogger(l StepLogger)            { e.stepLogger = l }
func (e *Engine) SetAuditLogger(l AuditLogger)          { e.auditLogger = l }
func (e *Engine) SetSaveSink(ch chan<- snapshot.SaveV1) { e.saveSink = ch }

func (e *Engine) GameID() string  { return e.cfg.GameID }
func (e *Engine) TickRateHz() int { return e.cfg.TickRateHz }
func (e *Engine) Rules() Rules    { return e.rules }
func (e *Engine) CurrentTick() uint64 {
	return e.tick.Load()
}

// Inbox is where transports push player actions.
func (e *Engine) Inbox() chan<- ActionEnvelope       { return e.inbox }
func (e *Engine) Subscribe() chan<- SubscribeRequest { return e.subscribe }
func (e *Engine) Unsubscribe() chan<- string         { return e.unsubscribe }

// View is the most recent STATE the loop published.
func (e *Engine) View() protocol.StateMsg {
	v, _ := e.view.Load().(protocol.StateMsg)
	return v
}

// ImportSave replaces the in-memory state. The next simulated tick is the
// saved tick plus one. Call it only before Run or from the loop goroutine.
func (e *Engine) ImportSave(in snapshot.SaveV1) error {
	s, _, err := ImportSave(in)
	if err != nil {
		return err
	}
	if s.GameID == "" {
		s.GameID = e.cfg.GameID
	}
	e.state = s
	e.tick.Store(in.Header.Tick + 1)
	e.lastLetter = ""
	e.publish(e.tick.Load(), 0)
	return nil
}

// ExportSave copies the current state. Same goroutine rules as ImportSave.
func (e *Engine) ExportSave(reason string) snapshot.SaveV1 {
	t := e.tick.Load()
	if t > 0 {
		t--
	}
	return ExportSave(e.state, e.rules, e.cfg.TickRateHz, t, reason)
}

func (e *Engine) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(e.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingAdmin []adminSaveReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stop:
			return nil
		case req := <-e.subscribe:
			e.handleSubscribe(req)
		case id := <-e.unsubscribe:
			delete(e.subs, id)
		case req := <-e.admin:
			pendingAdmin = append(pendingAdmin, req)
		case env := <-e.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			e.stepInternal(e.cfg.Now().UnixMilli(), pendingActions)
			e.handleAdminSaves(pendingAdmin)
			pendingActions = pendingActions[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (e *Engine) Stop() {
	if e.stopOnce.CompareAndSwap(false, true) {
		close(e.stop)
	}
}

// StepOnce runs a single tick with the same ordering as the live loop. It is
// meant for replays and tests.
func (e *Engine) StepOnce(nowMs int64, actions []ActionEnvelope) (tick uint64, digest string) {
	return e.stepInternal(nowMs, actions)
}

// RequestSave asks the loop for a copy of the state taken right after the
// next tick.
func (e *Engine) RequestSave(ctx context.Context, reason string) (snapshot.SaveV1, error) {
	if reason == "" {
		reason = SaveReasonAdmin
	}
	req := adminSaveReq{reason: reason, resp: make(chan snapshot.SaveV1, 1)}
	select {
	case e.admin <- req:
	case <-e.stop:
		return snapshot.SaveV1{}, ErrStopped
	case <-ctx.Done():
		return snapshot.SaveV1{}, ctx.Err()
	}
	select {
	case s := <-req.resp:
		return s, nil
	case <-e.stop:
		return snapshot.SaveV1{}, ErrStopped
	case <-ctx.Done():
		return snapshot.SaveV1{}, ctx.Err()
	}
}

func (e *Engine) handleAdminSaves(reqs []adminSaveReq) {
	for _, req := range reqs {
		s := e.ExportSave(req.reason)
		select {
		case req.resp <- s:
		default:
		}
	}
}

func (e *Engine) handleSubscribe(req SubscribeRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	e.subs[req.SessionID] = &subscriber{id: req.SessionID, name: req.ClientName, noState: req.NoState, out: req.Out}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       req.SessionID,
		GameID:          e.cfg.GameID,
		GameParams: protocol.GameParams{
			TickRateHz:      e.cfg.TickRateHz,
			PricePerLetter:  e.rules.LetterPrice,
			PhaseThresholds: append([]float64(nil), e.rules.PhaseThresholds...),
			ReadPhase:       e.rules.ReadPhase,
			DayLengthMs:     e.rules.DayLengthMs,
		},
		Catalog: Catalog(e.cfg.LettersDigest),
	}
	if req.Resp != nil {
		select {
		case req.Resp <- welcome:
		default:
		}
	}
	if !req.NoState {
		if b, err := json.Marshal(e.View()); err == nil {
			sendLatest(req.Out, b)
		}
	}
	if msg, ok := BuildLetter(e.state, e.corr); ok {
		if b, err := json.Marshal(msg); err == nil {
			sendLatest(req.Out, b)
		}
	}
}

func (e *Engine) stepInternal(nowMs int64, actions []ActionEnvelope) (uint64, string) {
	start := time.Now()
	tick := e.tick.Load()
	s := e.state
	prevMs := s.LastTickMs

	var recorded []RecordedAction
	saveReason := ""
	letterDirty := false

	for _, env := range actions {
		act := env.Act
		recorded = append(recorded, RecordedAction{SessionID: env.SessionID, Act: act})
		res := Apply(s, e.rules, e.corr, act)
		e.actionsTotal++
		if !res.Accepted() {
			e.rejectedTotal++
		}
		if res.Prestiged {
			e.prestigeTotal++
			saveReason = SaveReasonPrestige
		}
		if res.NewGame && saveReason == "" {
			saveReason = SaveReasonNewGame
		}
		switch act.Action {
		case protocol.ActSubmitText, protocol.ActOpenLetter:
			letterDirty = true
		}
		e.audit(tick, nowMs, env, res)
		e.ack(env, res, tick)
	}

	elapsed := nowMs - s.LastTickMs
	if elapsed > 0 {
		s.LastTickMs = nowMs
		Advance(s, e.rules, elapsed)
	}

	digest := Digest(s, tick)
	if e.stepLogger != nil {
		if err := e.stepLogger.WriteStep(StepLogEntry{
			Tick:    tick,
			PrevMs:  prevMs,
			NowMs:   nowMs,
			Actions: recorded,
			Digest:  digest,
		}); err != nil {
			e.stepLogErrorTotal++
		}
	}

	if saveReason == "" && e.cfg.SaveEveryTicks > 0 && tick%uint64(e.cfg.SaveEveryTicks) == 0 {
		saveReason = SaveReasonTick
	}
	if e.saveSink != nil && saveReason != "" {
		e.queueSave(ExportSave(s, e.rules, e.cfg.TickRateHz, tick, saveReason))
	} else {
		e.flushSaves()
	}

	e.publish(tick, float64(time.Since(start).Microseconds())/1000.0)
	e.broadcast(letterDirty)
	e.tick.Add(1)
	return tick, digest
}

// queueSave hands sv to the save sink. Tick saves are dropped when the sink
// is full or an older non-tick save is still waiting; other saves wait in
// pendingSaves and are retried on every step until the sink takes them.
func (e *Engine) queueSave(sv snapshot.SaveV1) {
	if sv.Header.Reason != SaveReasonTick {
		e.pendingSaves = append(e.pendingSaves, sv)
		e.flushSaves()
		return
	}
	if !e.flushSaves() {
		e.saveDroppedTotal++
		return
	}
	select {
	case e.saveSink <- sv:
	default:
		e.saveDroppedTotal++
	}
}

// TakePendingSaves returns the non-tick saves the sink never accepted and
// forgets them. Call it only after Run has returned.
func (e *Engine) TakePendingSaves() []snapshot.SaveV1 {
	out := e.pendingSaves
	e.pendingSaves = nil
	return out
}

// flushSaves sends pending non-tick saves in order and reports whether none
// are left.
func (e *Engine) flushSaves() bool {
	if e.saveSink == nil {
		return len(e.pendingSaves) == 0
	}
	for len(e.pendingSaves) > 0 {
		select {
		case e.saveSink <- e.pendingSaves[0]:
			e.pendingSaves[0] = snapshot.SaveV1{}
			e.pendingSaves = e.pendingSaves[1:]
		default:
			return false
		}
	}
	e.pendingSaves = nil
	return true
}

func (e *Engine) audit(tick uint64, nowMs int64, env ActionEnvelope, res Result) {
	if e.auditLogger == nil {
		return
	}
	target := env.Act.Kind
	if target == "" {
		target = env.Act.Powerup
	}
	entry := AuditEntry{
		Tick:      tick,
		NowMs:     nowMs,
		SessionID: env.SessionID,
		ActID:     env.Act.ID,
		Action:    env.Act.Action,
		Target:    target,
		Accepted:  res.Accepted(),
		Code:      res.Code,
		Phase:     e.state.Phase,
		Path:      e.state.Path(),
		Prestiged: res.Prestiged,
	}
	if env.Act.Action == protocol.ActSubmitText && res.Accepted() {
		entry.Key = e.state.OpenedKey
		entry.Unlocked = res.Unlocked
	}
	if err := e.auditLogger.WriteAudit(entry); err != nil {
		e.auditErrorTotal++
	}
}

func (e *Engine) ack(env ActionEnvelope, res Result, tick uint64) {
	sub := e.subs[env.SessionID]
	if sub == nil {
		return
	}
	b, err := json.Marshal(protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          env.Act.ID,
		Accepted:        res.Accepted(),
		Code:            res.Code,
		Message:         res.Message,
		ServerTick:      tick,
	})
	if err != nil {
		return
	}
	sendLatest(sub.out, b)
}

func (e *Engine) publish(tick uint64, stepMS float64) {
	s := e.state
	view := BuildView(s, e.rules, e.corr, tick)
	e.view.Store(view)
	e.metrics.Store(Metrics{
		Tick:              tick,
		Sessions:          len(e.subs),
		Phase:             s.Phase,
		PrestigeState:     string(s.PrestigeState()),
		Letters:           s.Letters,
		Money:             s.Money,
		LettersDelivered:  s.LettersDelivered,
		Multiplier:        s.Multiplier(),
		ActionsTotal:      e.actionsTotal,
		RejectedTotal:     e.rejectedTotal,
		PrestigeTotal:     e.prestigeTotal,
		SaveDroppedTotal:  e.saveDroppedTotal,
		StepLogErrorTotal: e.stepLogErrorTotal,
		AuditErrorTotal:   e.auditErrorTotal,
		SavePending:       len(e.pendingSaves),
		QueueDepths: QueueDepths{
			Inbox:     len(e.inbox),
			Subscribe: len(e.subscribe),
			Admin:     len(e.admin),
		},
		StepMS: stepMS,
	})
}

func (e *Engine) broadcast(letterDirty bool) {
	if len(e.subs) == 0 {
		e.lastLetter = e.state.OpenedKey
		return
	}
	var stateBytes []byte
	if b, err := json.Marshal(e.View()); err == nil {
		stateBytes = b
	}

	var letterBytes []byte
	key := ""
	if e.state.OpenLetter {
		key = e.state.OpenedKey
	}
	if key != e.lastLetter || letterDirty {
		if msg, ok := BuildLetter(e.state, e.corr); ok {
			if b, err := json.Marshal(msg); err == nil {
				letterBytes = b
			}
		}
	}
	e.lastLetter = key

	for _, sub := range e.subs {
		if letterBytes != nil {
			sendLatest(sub.out, letterBytes)
		}
		if !sub.noState && stateBytes != nil {
			sendLatest(sub.out, stateBytes)
		}
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
