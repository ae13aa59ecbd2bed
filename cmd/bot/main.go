package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"postmaster.game/internal/protocol"
)

func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name  = flag.String("name", "bot", "client name")
		every = flag.Int("every", 4, "act on every Nth STATE")
		guess = flag.String("guess", "", "text to submit when a letter opens")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 8},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	p := &player{guess: *guess}
	seen := 0
	for {
		select {
		case <-stop:
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("read: %v", err)
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			p.catalog = w.Catalog
			logger.Printf("WELCOME session=%s game=%s tick_rate=%d", w.SessionID, w.GameID, w.GameParams.TickRateHz)

		case protocol.TypeState:
			var st protocol.StateMsg
			if err := json.Unmarshal(msg, &st); err != nil {
				continue
			}
			seen++
			if *every > 1 && seen%*every != 0 {
				continue
			}
			for _, act := range p.plan(st) {
				if err := conn.WriteJSON(act); err != nil {
					logger.Printf("send ACT: %v", err)
					return
				}
			}
			if st.Tick%200 == 0 {
				logger.Printf("tick=%d phase=%d letters=%s money=%s delivered=%s path=%q",
					st.Tick, st.Phase, st.Display["letters"], st.Display["money"], st.Display["letters_delivered"], st.Path)
			}

		case protocol.TypeLetter:
			var l protocol.LetterMsg
			if err := json.Unmarshal(msg, &l); err != nil {
				continue
			}
			logger.Printf("LETTER key=%s unlocked=%v fallback=%v\n%s", l.Key, l.Unlocked, l.Fallback, l.Ciphertext)

		case protocol.TypeAck:
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err != nil {
				continue
			}
			if !ack.Accepted && ack.Code != protocol.ErrNoResource {
				logger.Printf("ACK %s rejected: %s %s", ack.AckFor, ack.Code, ack.Message)
			}
		}
	}
}
