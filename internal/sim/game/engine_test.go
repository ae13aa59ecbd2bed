package game

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"postmaster.game/internal/persistence/snapshot"
	"postmaster.game/internal/protocol"
	"postmaster.game/internal/sim/economy"
)

type memStepLog struct{ entries []StepLogEntry }

func (m *memStepLog) WriteStep(e StepLogEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

type memAudit struct{ entries []AuditEntry }

func (m *memAudit) WriteAudit(e AuditEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Config{GameID: "g", TickRateHz: 20, SaveEveryTicks: 0, StartMs: 1000})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func scriptedActions(tick int) []ActionEnvelope {
	switch tick {
	case 0:
		return []ActionEnvelope{{SessionID: "s", Act: protocol.ActMsg{ID: "1", Action: protocol.ActClickGenerate}}}
	case 3:
		return []ActionEnvelope{{SessionID: "s", Act: protocol.ActMsg{ID: "2", Action: protocol.ActBuyMax, Kind: "mailbox"}}}
	case 5:
		return []ActionEnvelope{{SessionID: "s", Act: protocol.ActMsg{ID: "3", Action: protocol.ActClickDeliver}}}
	}
	return nil
}

func TestEngine_StepOnceIsDeterministic(t *testing.T) {
	run := func() []string {
		e := newTestEngine(t)
		e.state.Money = 50
		var digests []string
		for i := 0; i < 40; i++ {
			_, d := e.StepOnce(1000+int64(i+1)*250, scriptedActions(i))
			digests = append(digests, d)
		}
		return digests
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("digest diverged at tick %d", i)
		}
	}
}

func TestEngine_StepLogReplays(t *testing.T) {
	e := newTestEngine(t)
	e.state.Money = 50
	log := &memStepLog{}
	e.SetStepLogger(log)
	for i := 0; i < 30; i++ {
		e.StepOnce(1000+int64(i+1)*333, scriptedActions(i))
	}

	first := log.entries[0]
	r, err := New(Config{GameID: "g", TickRateHz: 20, StartMs: first.PrevMs})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.state.Money = 50
	for _, ent := range log.entries {
		var actions []ActionEnvelope
		for _, ra := range ent.Actions {
			actions = append(actions, ActionEnvelope{SessionID: ra.SessionID, Act: ra.Act})
		}
		tick, d := r.StepOnce(ent.NowMs, actions)
		if tick != ent.Tick || d != ent.Digest {
			t.Fatalf("replay mismatch at tick %d", ent.Tick)
		}
	}
}

func TestEngine_AppliesActionsBeforeAdvance(t *testing.T) {
	e := newTestEngine(t)
	e.state.Money = 5
	before := e.state.Letters
	e.StepOnce(1000+5000, []ActionEnvelope{{Act: protocol.ActMsg{Action: protocol.ActBuyOne, Kind: "mailbox"}}})
	// The mailbox bought this tick fires on the elapsed 5s.
	if e.state.Letters != before+1 {
		t.Fatalf("letters: %v", e.state.Letters)
	}
}

func TestEngine_ClockRegressionIsIgnored(t *testing.T) {
	e := newTestEngine(t)
	e.state.Counts[economy.Mailbox] = 1
	e.state.Letters = 0
	e.StepOnce(6000, nil)
	e.StepOnce(3000, nil)
	e.StepOnce(6000, nil)
	if e.state.Letters != 1 || e.state.LastTickMs != 6000 {
		t.Fatalf("letters=%v last=%d", e.state.Letters, e.state.LastTickMs)
	}
}

func TestEngine_SaveSinkReasons(t *testing.T) {
	e, err := New(Config{GameID: "g", TickRateHz: 20, SaveEveryTicks: 2, StartMs: 1000})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ch := make(chan snapshot.SaveV1, 16)
	e.SetSaveSink(ch)
	e.state.LettersDelivered = 1e4

	e.StepOnce(1050, nil) // tick 0: periodic
	e.StepOnce(1100, nil) // tick 1: nothing
	e.StepOnce(1150, []ActionEnvelope{{Act: protocol.ActMsg{Action: protocol.ActRequestPrestige}}}) // tick 2: periodic
	e.StepOnce(1200, []ActionEnvelope{{Act: protocol.ActMsg{Action: protocol.ActChoose, Powerup: "A"}}})
	e.StepOnce(1250, []ActionEnvelope{{Act: protocol.ActMsg{Action: protocol.ActChoose, Powerup: "B"}}})
	e.StepOnce(1300, []ActionEnvelope{{Act: protocol.ActMsg{Action: protocol.ActNewGame}}})

	var got []string
	var ticks []uint64
	for len(ch) > 0 {
		s := <-ch
		got = append(got, s.Header.Reason)
		ticks = append(ticks, s.Header.Tick)
	}
	want := []string{SaveReasonTick, SaveReasonTick, SaveReasonPrestige, SaveReasonNewGame}
	if len(got) != len(want) {
		t.Fatalf("saves: got %v (ticks %v) want %v", got, ticks, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("save %d: got %q want %q", i, got[i], want[i])
		}
	}
	if ticks[2] != 4 {
		t.Fatalf("prestige save tick: %d", ticks[2])
	}
}

func TestEngine_SaveSinkFullCountsDrops(t *testing.T) {
	e, err := New(Config{GameID: "g", TickRateHz: 20, SaveEveryTicks: 1, StartMs: 1000})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ch := make(chan snapshot.SaveV1, 1)
	e.SetSaveSink(ch)
	for i := 0; i < 3; i++ {
		e.StepOnce(1000+int64(i)*50, nil)
	}
	if got := e.Metrics().SaveDroppedTotal; got != 2 {
		t.Fatalf("dropped: %d", got)
	}
}

func TestEngine_PrestigeSaveWaitsForFullSink(t *testing.T) {
	e, err := New(Config{GameID: "g", TickRateHz: 20, SaveEveryTicks: 1, StartMs: 1000})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ch := make(chan snapshot.SaveV1, 1)
	ch <- snapshot.SaveV1{Header: snapshot.Header{Reason: SaveReasonTick}}
	e.SetSaveSink(ch)
	e.state.LettersDelivered = 1e4

	e.StepOnce(1050, []ActionEnvelope{{Act: protocol.ActMsg{Action: protocol.ActRequestPrestige}}})
	e.StepOnce(1100, []ActionEnvelope{{Act: protocol.ActMsg{Action: protocol.ActChoose, Powerup: "A"}}})
	e.StepOnce(1150, []ActionEnvelope{{Act: protocol.ActMsg{Action: protocol.ActChoose, Powerup: "B"}}})

	m := e.Metrics()
	if m.Phase != 1 || m.SavePending != 1 || m.SaveDroppedTotal != 2 {
		t.Fatalf("phase=%d pending=%d dropped=%d", m.Phase, m.SavePending, m.SaveDroppedTotal)
	}

	<-ch // writer catches up
	e.StepOnce(1200, nil)
	got := <-ch
	if got.Header.Reason != SaveReasonPrestige || got.Header.Tick != 2 || got.Phase != 1 {
		t.Fatalf("first save after backlog: reason=%q tick=%d phase=%d", got.Header.Reason, got.Header.Tick, got.Phase)
	}
	if m := e.Metrics(); m.SavePending != 0 || m.SaveDroppedTotal != 3 {
		t.Fatalf("pending=%d dropped=%d", m.SavePending, m.SaveDroppedTotal)
	}

	e.StepOnce(1250, nil)
	if got := <-ch; got.Header.Reason != SaveReasonTick || got.Header.Tick != 4 {
		t.Fatalf("tick save resumed: reason=%q tick=%d", got.Header.Reason, got.Header.Tick)
	}
}

func TestEngine_TakePendingSaves(t *testing.T) {
	e := newTestEngine(t)
	e.SetSaveSink(make(chan snapshot.SaveV1))
	e.StepOnce(1050, []ActionEnvelope{{Act: protocol.ActMsg{Action: protocol.ActNewGame}}})

	pending := e.TakePendingSaves()
	if len(pending) != 1 || pending[0].Header.Reason != SaveReasonNewGame {
		t.Fatalf("pending: %+v", pending)
	}
	if len(e.TakePendingSaves()) != 0 {
		t.Fatalf("pending saves not cleared")
	}
}

type failingAudit struct{}

func (failingAudit) WriteAudit(AuditEntry) error { return errors.New("disk full") }

func TestEngine_AuditErrorsAreCounted(t *testing.T) {
	e := newTestEngine(t)
	e.SetAuditLogger(failingAudit{})
	e.StepOnce(1050, []ActionEnvelope{
		{SessionID: "s", Act: protocol.ActMsg{ID: "1", Action: protocol.ActClickDeliver}},
		{SessionID: "s", Act: protocol.ActMsg{ID: "2", Action: protocol.ActClickDeliver}},
	})
	if got := e.Metrics().AuditErrorTotal; got != 2 {
		t.Fatalf("audit errors: %d", got)
	}
}

func TestEngine_ImportExportRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	e.state.Money = 500
	for i := 0; i < 10; i++ {
		e.StepOnce(1000+int64(i+1)*1000, scriptedActions(i))
	}
	saved := e.ExportSave(SaveReasonAdmin)
	if saved.Header.Tick != 9 {
		t.Fatalf("saved tick: %d", saved.Header.Tick)
	}

	f := newTestEngine(t)
	if err := f.ImportSave(saved); err != nil {
		t.Fatalf("ImportSave: %v", err)
	}
	if f.CurrentTick() != 10 {
		t.Fatalf("resumed tick: %d", f.CurrentTick())
	}
	_, d1 := e.StepOnce(20_000, nil)
	_, d2 := f.StepOnce(20_000, nil)
	if d1 != d2 {
		t.Fatalf("resumed engine diverged")
	}
}

func TestEngine_AuditEntries(t *testing.T) {
	e := newTestEngine(t)
	a := &memAudit{}
	e.SetAuditLogger(a)
	e.StepOnce(1050, []ActionEnvelope{
		{SessionID: "s1", Act: protocol.ActMsg{ID: "x", Action: protocol.ActBuyOne, Kind: "mailman"}},
		{SessionID: "s1", Act: protocol.ActMsg{ID: "y", Action: protocol.ActClickDeliver}},
	})
	if len(a.entries) != 2 {
		t.Fatalf("entries: %d", len(a.entries))
	}
	if a.entries[0].Accepted || a.entries[0].Code != protocol.ErrNoResource || a.entries[0].Target != "mailman" {
		t.Fatalf("first: %+v", a.entries[0])
	}
	if !a.entries[1].Accepted {
		t.Fatalf("second: %+v", a.entries[1])
	}
	if m := e.Metrics(); m.ActionsTotal != 2 || m.RejectedTotal != 1 {
		t.Fatalf("metrics: %+v", m)
	}
}

func TestEngine_RunServesSubscribers(t *testing.T) {
	e, err := New(Config{GameID: "g", TickRateHz: 50})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	out := make(chan []byte, 16)
	resp := make(chan protocol.WelcomeMsg, 1)
	e.Subscribe() <- SubscribeRequest{SessionID: "s1", ClientName: "t", Out: out, Resp: resp}

	var welcome protocol.WelcomeMsg
	select {
	case welcome = <-resp:
	case <-time.After(2 * time.Second):
		t.Fatalf("no welcome")
	}
	if welcome.SessionID != "s1" || welcome.GameParams.ReadPhase != 4 || len(welcome.Catalog.Generators) == 0 {
		t.Fatalf("welcome: %+v", welcome)
	}

	e.Inbox() <- ActionEnvelope{SessionID: "s1", Act: protocol.ActMsg{ID: "k1", Action: protocol.ActClickDeliver}}

	deadline := time.After(3 * time.Second)
	sawState, sawAck := false, false
	for !(sawState && sawAck) {
		select {
		case b := <-out:
			base, err := protocol.DecodeBase(b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			switch base.Type {
			case protocol.TypeState:
				sawState = true
			case protocol.TypeAck:
				var ack protocol.AckMsg
				if err := json.Unmarshal(b, &ack); err != nil {
					t.Fatalf("ack: %v", err)
				}
				if ack.AckFor != "k1" || !ack.Accepted {
					t.Fatalf("ack: %+v", ack)
				}
				sawAck = true
			}
		case <-deadline:
			t.Fatalf("state=%v ack=%v", sawState, sawAck)
		}
	}

	s, err := e.RequestSave(ctx, "")
	if err != nil {
		t.Fatalf("RequestSave: %v", err)
	}
	if s.Header.Reason != SaveReasonAdmin || s.Header.GameID != "g" {
		t.Fatalf("save header: %+v", s.Header)
	}
	e.Stop()
}
