package main

import (
	"path/filepath"
	"strconv"
	"testing"

	persistlog "postmaster.game/internal/persistence/log"
	"postmaster.game/internal/persistence/snapshot"
	"postmaster.game/internal/protocol"
	"postmaster.game/internal/sim/game"
)

func act(i int, action string) game.ActionEnvelope {
	return game.ActionEnvelope{SessionID: "s1", Act: protocol.ActMsg{
		Type: protocol.TypeAct, ProtocolVersion: protocol.Version, ID: strconv.Itoa(i), Action: action,
	}}
}

// record plays ten ticks into dir and returns the save taken after tick 4.
func record(t *testing.T, dir string) snapshot.SaveV1 {
	t.Helper()
	e, err := game.New(game.Config{GameID: "g", TickRateHz: 20, StartMs: 1000})
	if err != nil {
		t.Fatalf("game.New: %v", err)
	}
	steps := persistlog.NewStepLogger(dir)
	e.SetStepLogger(steps)

	var mid snapshot.SaveV1
	for i := 0; i < 10; i++ {
		var acts []game.ActionEnvelope
		switch i % 3 {
		case 0:
			acts = append(acts, act(i, protocol.ActClickDeliver))
		case 1:
			acts = append(acts, act(i, protocol.ActClickGenerate))
		}
		e.StepOnce(1000+int64(i+1)*50, acts)
		if i == 4 {
			mid = e.ExportSave(game.SaveReasonAdmin)
		}
	}
	if err := steps.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return mid
}

func TestReplay_FreshGameMatchesDigests(t *testing.T) {
	dir := t.TempDir()
	record(t, dir)

	files, err := persistlog.Files(filepath.Join(dir, "steps"), "steps")
	if err != nil || len(files) == 0 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	first, err := firstEntry(files)
	if err != nil {
		t.Fatalf("firstEntry: %v", err)
	}
	e, err := game.New(game.Config{GameID: "g", TickRateHz: 20, StartMs: first.PrevMs})
	if err != nil {
		t.Fatalf("game.New: %v", err)
	}
	r := replayer{engine: e}
	for _, f := range files {
		if err := r.replayFile(f); err != nil {
			t.Fatalf("replay: %v", err)
		}
	}
	if r.checked != 10 {
		t.Fatalf("checked=%d", r.checked)
	}
}

func TestReplay_FromSaveAndStopTick(t *testing.T) {
	dir := t.TempDir()
	mid := record(t, dir)

	e, err := game.New(game.Config{GameID: "g", TickRateHz: 20})
	if err != nil {
		t.Fatalf("game.New: %v", err)
	}
	if err := e.ImportSave(mid); err != nil {
		t.Fatalf("ImportSave: %v", err)
	}
	if e.CurrentTick() != 5 {
		t.Fatalf("resume tick=%d", e.CurrentTick())
	}

	files, _ := persistlog.Files(filepath.Join(dir, "steps"), "steps")
	r := replayer{engine: e, start: 5, verifyFrom: 5, to: 7}
	for _, f := range files {
		if err := r.replayFile(f); err != nil {
			t.Fatalf("replay: %v", err)
		}
	}
	if r.checked != 3 || !r.done {
		t.Fatalf("checked=%d done=%v", r.checked, r.done)
	}
}

func TestReplay_WrongGameDiverges(t *testing.T) {
	dir := t.TempDir()
	record(t, dir)

	files, _ := persistlog.Files(filepath.Join(dir, "steps"), "steps")
	first, _ := firstEntry(files)
	e, err := game.New(game.Config{GameID: "other", TickRateHz: 20, StartMs: first.PrevMs})
	if err != nil {
		t.Fatalf("game.New: %v", err)
	}
	r := replayer{engine: e}
	if err := r.replayFile(files[0]); err == nil {
		t.Fatalf("expected digest mismatch for a different game id")
	}
}
