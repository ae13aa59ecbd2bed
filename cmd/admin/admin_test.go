package main

import (
	"database/sql"
	"path/filepath"
	"testing"

	"postmaster.game/internal/persistence/archive"
	"postmaster.game/internal/persistence/indexdb"
	persistlog "postmaster.game/internal/persistence/log"
	"postmaster.game/internal/persistence/snapshot"
	"postmaster.game/internal/protocol"
	"postmaster.game/internal/sim/game"
)

func TestReadAudit_Filters(t *testing.T) {
	dir := t.TempDir()
	l := persistlog.NewAuditLogger(dir)
	entries := []game.AuditEntry{
		{Tick: 1, SessionID: "a", Action: protocol.ActClickDeliver, Accepted: true},
		{Tick: 2, SessionID: "b", Action: protocol.ActBuyOne, Code: protocol.ErrNoResource},
		{Tick: 3, SessionID: "a", Action: protocol.ActBuyOne, Accepted: true},
	}
	for _, e := range entries {
		if err := l.WriteAudit(e); err != nil {
			t.Fatalf("WriteAudit: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	all, err := readAudit(dir, auditFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("all: %d %v", len(all), err)
	}
	got, _ := readAudit(dir, auditFilter{SessionID: "a", Action: protocol.ActBuyOne})
	if len(got) != 1 || got[0].Tick != 3 {
		t.Fatalf("session+action: %+v", got)
	}
	got, _ = readAudit(dir, auditFilter{Rejected: true})
	if len(got) != 1 || got[0].SessionID != "b" {
		t.Fatalf("rejected: %+v", got)
	}
	got, _ = readAudit(dir, auditFilter{Since: 2, To: 2})
	if len(got) != 1 || got[0].Tick != 2 {
		t.Fatalf("tick range: %+v", got)
	}
}

func TestRestorePhase(t *testing.T) {
	dir := t.TempDir()
	live := filepath.Join(dir, "save.snap.zst")

	s := game.NewState("g", 0)
	s.Phase = 1
	archived := game.ExportSave(s, game.DefaultRules(), 20, 50, game.SaveReasonPrestige)
	if err := snapshot.WriteSave(live, archived); err != nil {
		t.Fatalf("WriteSave: %v", err)
	}
	if _, _, ok, err := archive.ArchivePhaseSave(dir, live, archived); err != nil || !ok {
		t.Fatalf("archive: ok=%v err=%v", ok, err)
	}

	s.Phase = 2
	s.Money = 999
	if err := snapshot.WriteSave(live, game.ExportSave(s, game.DefaultRules(), 20, 90, game.SaveReasonTick)); err != nil {
		t.Fatalf("WriteSave: %v", err)
	}

	if _, err := restorePhase(dir, 1); err != nil {
		t.Fatalf("restorePhase: %v", err)
	}
	got, err := snapshot.ReadSave(live)
	if err != nil {
		t.Fatalf("ReadSave: %v", err)
	}
	if got.Header.Tick != 50 || got.Phase != 1 || got.Money != 0 {
		t.Fatalf("restored: tick=%d phase=%d money=%v", got.Header.Tick, got.Phase, got.Money)
	}
	if _, err := restorePhase(dir, 3); err == nil {
		t.Fatalf("missing archive should fail")
	}
}

func TestQueryRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	_ = idx.WriteStep(game.StepLogEntry{Tick: 1, PrevMs: 0, NowMs: 50, Digest: "d1"})
	_ = idx.WriteStep(game.StepLogEntry{Tick: 2, PrevMs: 50, NowMs: 100, Digest: "d2"})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	rows, err := queryRows(db, "steps", 1)
	if err != nil {
		t.Fatalf("queryRows: %v", err)
	}
	if len(rows) != 1 || rows[0]["digest"] != "d2" {
		t.Fatalf("rows: %+v", rows)
	}
	if _, err := queryRows(db, "nope", 1); err == nil {
		t.Fatalf("unknown query should fail")
	}
}
