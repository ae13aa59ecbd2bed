package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"postmaster.game/internal/protocol"
	"postmaster.game/internal/sim/game"
	"postmaster.game/internal/sim/tuning"
)

func startServer(t *testing.T, limits tuning.RateLimits) string {
	t.Helper()
	e, err := game.New(game.Config{GameID: "ws", TickRateHz: 50})
	if err != nil {
		t.Fatalf("game.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = e.Run(ctx) }()
	t.Cleanup(cancel)

	srv := httptest.NewServer(NewServer(e, limits, nil).Handler())
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialHello(t *testing.T, url string) (*websocket.Conn, protocol.WelcomeMsg) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "t"}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if welcome.Type != protocol.TypeWelcome || welcome.SessionID == "" || welcome.GameID != "ws" {
		t.Fatalf("welcome: %+v", welcome)
	}
	return conn, welcome
}

// waitAck reads until the ACK for id shows up.
func waitAck(t *testing.T, conn *websocket.Conn, id string) protocol.AckMsg {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for ack %s: %v", id, err)
		}
		base, err := protocol.DecodeBase(b)
		if err != nil || base.Type != protocol.TypeAck {
			continue
		}
		var ack protocol.AckMsg
		if err := json.Unmarshal(b, &ack); err != nil {
			t.Fatalf("ack: %v", err)
		}
		if ack.AckFor == id {
			return ack
		}
	}
}

func act(id, action string) protocol.ActMsg {
	return protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version, ID: id, Action: action}
}

func TestServer_HandshakeAndAck(t *testing.T) {
	url := startServer(t, tuning.Defaults().RateLimits)
	conn, _ := dialHello(t, url)

	if err := conn.WriteJSON(act("a1", protocol.ActClickDeliver)); err != nil {
		t.Fatalf("write act: %v", err)
	}
	if ack := waitAck(t, conn, "a1"); !ack.Accepted {
		t.Fatalf("click deliver rejected: %+v", ack)
	}

	if err := conn.WriteJSON(act("a2", "LAUNCH_ROCKET")); err != nil {
		t.Fatalf("write act: %v", err)
	}
	if ack := waitAck(t, conn, "a2"); ack.Accepted || ack.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("unknown action ack: %+v", ack)
	}

	buy := act("a3", protocol.ActBuyOne)
	buy.Kind = "mailbox"
	if err := conn.WriteJSON(buy); err != nil {
		t.Fatalf("write act: %v", err)
	}
	if ack := waitAck(t, conn, "a3"); ack.Accepted || ack.Code != protocol.ErrNoResource {
		t.Fatalf("broke buy ack: %+v", ack)
	}
}

func TestServer_StreamsState(t *testing.T) {
	url := startServer(t, tuning.Defaults().RateLimits)
	conn, _ := dialHello(t, url)

	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for STATE: %v", err)
		}
		base, _ := protocol.DecodeBase(b)
		if base.Type != protocol.TypeState {
			continue
		}
		var st protocol.StateMsg
		if err := json.Unmarshal(b, &st); err != nil {
			t.Fatalf("state: %v", err)
		}
		if st.GameID != "ws" || len(st.Generators) == 0 {
			t.Fatalf("state: %+v", st)
		}
		return
	}
}

func TestServer_RateLimit(t *testing.T) {
	url := startServer(t, tuning.RateLimits{ActionsPerSecond: 0.001, ActionBurst: 1})
	conn, _ := dialHello(t, url)

	_ = conn.WriteJSON(act("r1", protocol.ActClickDeliver))
	_ = conn.WriteJSON(act("r2", protocol.ActClickDeliver))
	if ack := waitAck(t, conn, "r2"); ack.Accepted || ack.Code != protocol.ErrRateLimit {
		t.Fatalf("second act should be rate limited: %+v", ack)
	}
}

func TestServer_RejectsBadHello(t *testing.T) {
	url := startServer(t, tuning.Defaults().RateLimits)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.WriteJSON(map[string]string{"type": protocol.TypeHello, "protocol_version": "0.1"})
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
}

// stalledEngine never reads its channels, like a loop that already exited.
type stalledEngine struct {
	inbox chan game.ActionEnvelope
	sub   chan game.SubscribeRequest
	unsub chan string
}

func (e stalledEngine) Inbox() chan<- game.ActionEnvelope       { return e.inbox }
func (e stalledEngine) Subscribe() chan<- game.SubscribeRequest { return e.sub }
func (e stalledEngine) Unsubscribe() chan<- string              { return e.unsub }

func TestServer_HandshakeGivesUpOnStalledEngine(t *testing.T) {
	e := stalledEngine{inbox: make(chan game.ActionEnvelope), sub: make(chan game.SubscribeRequest), unsub: make(chan string)}
	s := NewServer(e, tuning.Defaults().RateLimits, nil)
	s.engineTimeout = 50 * time.Millisecond

	done := make(chan struct{})
	h := s.Handler()
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		defer close(done)
		h(rw, r)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version}); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
		t.Fatalf("expected try-again close, got %v", err)
	}
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("handler still blocked on the engine")
	}
}
