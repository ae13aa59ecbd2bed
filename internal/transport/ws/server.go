package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"postmaster.game/internal/protocol"
	"postmaster.game/internal/sim/game"
	"postmaster.game/internal/sim/tuning"
)

// Engine is the part of game.Engine the transport talks to.
type Engine interface {
	Inbox() chan<- game.ActionEnvelope
	Subscribe() chan<- game.SubscribeRequest
	Unsubscribe() chan<- string
}

type Server struct {
	engine Engine
	log    *log.Logger
	limits tuning.RateLimits

	// engineTimeout bounds every send to and reply from the engine loop.
	engineTimeout time.Duration

	upgrader websocket.Upgrader
}

func NewServer(e Engine, limits tuning.RateLimits, logger *log.Logger) *Server {
	return &Server{
		engine:        e,
		log:           logger,
		limits:        limits,
		engineTimeout: 5 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, out := s.handshake(r.Context(), conn)
		if sessionID == "" {
			return
		}
		defer s.unsubscribe(sessionID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		limiter := rate.NewLimiter(rate.Limit(s.limits.ActionsPerSecond), s.limits.ActionBurst)

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeAct {
				continue
			}
			var act protocol.ActMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				continue
			}
			if code := validate(act); code != "" {
				reject(out, act.ID, code)
				continue
			}
			if !limiter.Allow() {
				reject(out, act.ID, protocol.ErrRateLimit)
				continue
			}
			select {
			case s.engine.Inbox() <- game.ActionEnvelope{SessionID: sessionID, Act: act}:
			default:
				reject(out, act.ID, protocol.ErrRateLimit)
			}
		}
		s.logf("session %s closed", sessionID)
	}
}

func validate(act protocol.ActMsg) string {
	if act.ProtocolVersion != protocol.Version || act.ID == "" {
		return protocol.ErrProtoBadRequest
	}
	if !protocol.IsKnownAction(act.Action) {
		return protocol.ErrProtoBadRequest
	}
	return ""
}

// reject answers an ACT that never reached the engine. ACKs share the
// session queue, so a full queue drops its oldest message first.
func reject(out chan []byte, actID, code string) {
	b, err := json.Marshal(protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          actID,
		Accepted:        false,
		Code:            code,
	})
	if err != nil {
		return
	}
	select {
	case out <- b:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- b:
	default:
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(conn, "expected HELLO")
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closePolicy(conn, "bad protocol_version")
		return "", nil
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)
	sessionID = uuid.NewString()

	resp := make(chan protocol.WelcomeMsg, 1)
	req := game.SubscribeRequest{
		SessionID:  sessionID,
		ClientName: hello.ClientName,
		NoState:    hello.Capabilities.NoState,
		Out:        out,
		Resp:       resp,
	}
	timer := time.NewTimer(s.engineTimeout)
	defer timer.Stop()
	select {
	case s.engine.Subscribe() <- req:
	case <-ctx.Done():
		return "", nil
	case <-timer.C:
		closeTryAgain(conn)
		return "", nil
	}
	var welcome protocol.WelcomeMsg
	select {
	case welcome = <-resp:
	case <-ctx.Done():
		s.unsubscribe(sessionID)
		return "", nil
	case <-timer.C:
		s.unsubscribe(sessionID)
		closeTryAgain(conn)
		return "", nil
	}

	// WELCOME goes out before anything queued on out.
	if err := writeJSON(conn, welcome); err != nil {
		s.unsubscribe(sessionID)
		return "", nil
	}
	s.logf("session %s joined as %q", sessionID, hello.ClientName)
	return sessionID, out
}

// unsubscribe gives up after engineTimeout when the loop is gone.
func (s *Server) unsubscribe(sessionID string) {
	select {
	case s.engine.Unsubscribe() <- sessionID:
	case <-time.After(s.engineTimeout):
		s.logf("session %s: engine did not take unsubscribe", sessionID)
	}
}

func closeTryAgain(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "engine unavailable"), time.Now().Add(time.Second))
}

func closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
