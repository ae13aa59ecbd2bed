package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"postmaster.game/internal/persistence/indexdb"
	"postmaster.game/internal/persistence/snapshot"
	"postmaster.game/internal/protocol"
	"postmaster.game/internal/sim/game"
	"postmaster.game/internal/sim/tuning"
	"postmaster.game/internal/transport/ws"
)

type muxConfig struct {
	Engine    *game.Engine
	Index     runtimeIndex
	Saves     chan<- snapshot.SaveV1
	Limits    tuning.RateLimits
	AdminHTTP bool
	PprofHTTP bool
	Logger    *log.Logger
}

func newMux(cfg muxConfig) *http.ServeMux {
	e := cfg.Engine
	logf := func(format string, args ...any) {
		if cfg.Logger != nil {
			cfg.Logger.Printf(format, args...)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, e.GameID(), e.Metrics(), e.CurrentTick())
		if cfg.Index != nil {
			writeIndexMetrics(rw, e.GameID(), cfg.Index.Stats())
		}
	})

	if cfg.AdminHTTP {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				GameID  string            `json:"game_id"`
				Tick    uint64            `json:"tick"`
				Metrics game.Metrics      `json:"metrics"`
				State   protocol.StateMsg `json:"state"`
			}{
				GameID:  e.GameID(),
				Tick:    e.CurrentTick(),
				Metrics: e.Metrics(),
				State:   e.View(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/save", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			rw.Header().Set("Content-Type", "application/json")

			sv, err := e.RequestSave(ctx2, game.SaveReasonAdmin)
			if err == nil {
				select {
				case cfg.Saves <- sv:
				case <-ctx2.Done():
					err = ctx2.Err()
				}
			}
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			logf("admin save queued tick=%d", sv.Header.Tick)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": sv.Header.Tick})
		})
	} else {
		logf("admin endpoints disabled (PM_ENABLE_ADMIN_HTTP=false)")
	}
	if cfg.PprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logf("pprof endpoints disabled (PM_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(e, cfg.Limits, cfg.Logger).Handler())
	return mux
}

// writeMetrics emits a minimal Prometheus exposition.
func writeMetrics(rw http.ResponseWriter, gameID string, m game.Metrics, tick uint64) {
	if m.Tick != 0 {
		tick = m.Tick
	}
	gauge := func(name, help string, v any) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
		fmt.Fprintf(rw, "%s{game=%q} %v\n", name, gameID, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s counter\n", name)
		fmt.Fprintf(rw, "%s{game=%q} %d\n", name, gameID, v)
	}

	gauge("postmaster_tick", "Current game tick.", tick)
	gauge("postmaster_sessions", "Connected websocket sessions.", m.Sessions)
	gauge("postmaster_phase", "Current prestige phase.", m.Phase)
	gauge("postmaster_letters", "Letters on hand.", m.Letters)
	gauge("postmaster_money", "Money on hand.", m.Money)
	gauge("postmaster_letters_delivered", "Letters delivered this phase.", m.LettersDelivered)
	gauge("postmaster_multiplier", "Production multiplier.", m.Multiplier)
	gauge("postmaster_step_ms", "Last tick step duration in milliseconds.", fmt.Sprintf("%.3f", m.StepMS))

	counter("postmaster_actions_total", "Actions applied.", m.ActionsTotal)
	counter("postmaster_actions_rejected_total", "Actions rejected by the rules.", m.RejectedTotal)
	counter("postmaster_prestige_total", "Phase transitions.", m.PrestigeTotal)
	counter("postmaster_save_dropped_total", "Saves dropped because the writer was behind.", m.SaveDroppedTotal)
	counter("postmaster_step_log_error_total", "Step log write failures.", m.StepLogErrorTotal)
	counter("postmaster_audit_error_total", "Audit log write failures.", m.AuditErrorTotal)
	gauge("postmaster_save_pending", "Non-tick saves waiting for the writer.", m.SavePending)

	fmt.Fprintf(rw, "# HELP postmaster_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE postmaster_queue_depth gauge\n")
	fmt.Fprintf(rw, "postmaster_queue_depth{game=%q,queue=%q} %d\n", gameID, "inbox", m.QueueDepths.Inbox)
	fmt.Fprintf(rw, "postmaster_queue_depth{game=%q,queue=%q} %d\n", gameID, "subscribe", m.QueueDepths.Subscribe)
	fmt.Fprintf(rw, "postmaster_queue_depth{game=%q,queue=%q} %d\n", gameID, "admin", m.QueueDepths.Admin)
}

func writeIndexMetrics(rw http.ResponseWriter, gameID string, s indexdb.Stats) {
	fmt.Fprintf(rw, "# HELP postmaster_index_queue_depth Index writer queue depth.\n")
	fmt.Fprintf(rw, "# TYPE postmaster_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "postmaster_index_queue_depth{game=%q} %d\n", gameID, s.QueueDepth)

	fmt.Fprintf(rw, "# HELP postmaster_index_dropped_total Index rows dropped on backpressure.\n")
	fmt.Fprintf(rw, "# TYPE postmaster_index_dropped_total counter\n")
	fmt.Fprintf(rw, "postmaster_index_dropped_total{game=%q,kind=%q} %d\n", gameID, "step", s.DropStepTotal)
	fmt.Fprintf(rw, "postmaster_index_dropped_total{game=%q,kind=%q} %d\n", gameID, "audit", s.DropAuditTotal)
	fmt.Fprintf(rw, "postmaster_index_dropped_total{game=%q,kind=%q} %d\n", gameID, "save", s.DropSaveTotal)
	fmt.Fprintf(rw, "postmaster_index_dropped_total{game=%q,kind=%q} %d\n", gameID, "archive", s.DropArchiveTotal)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
