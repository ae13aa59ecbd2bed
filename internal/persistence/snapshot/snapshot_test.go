package snapshot

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func sample() SaveV1 {
	return SaveV1{
		Header:     Header{Version: Version, GameID: "g1", Tick: 42, Reason: "tick"},
		TickRateHz: 20,
		Rules:      RulesV1{LetterPrice: 0.25, PhaseThresholds: []float64{1e4, 1e6}, ReadPhase: 4, DayLengthMs: 600000, RateWindowMs: 1000},
		Letters:    12.5,
		Money:      3.75,
		ClickInc:   3,
		Counts:     map[string]int{"mailbox": 2},
		Flags:      map[string]bool{"bootstrap_unlocked": true},
		Timers:     map[string]int64{"mailbox": 150},
		Selection:  []string{"Worms", "Muel"},
		Puzzle:     []PuzzleEntryV1{{Key: "AB", Unlocked: true, Text: "hello"}},
		Day:        3,
	}
}

func TestWriteReadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games", "g1", "save.snap.zst")
	in := sample()
	if err := WriteSave(path, in); err != nil {
		t.Fatalf("WriteSave: %v", err)
	}
	out, err := ReadSave(path)
	if err != nil {
		t.Fatalf("ReadSave: %v", err)
	}
	if out.Header != in.Header {
		t.Fatalf("header: got %+v want %+v", out.Header, in.Header)
	}
	if out.Letters != in.Letters || out.Counts["mailbox"] != 2 || out.Timers["mailbox"] != 150 {
		t.Fatalf("body mismatch: %+v", out)
	}
	if len(out.Puzzle) != 1 || out.Puzzle[0] != in.Puzzle[0] {
		t.Fatalf("puzzle: %+v", out.Puzzle)
	}
	if len(out.Selection) != 2 || out.Selection[1] != "Muel" {
		t.Fatalf("selection: %v", out.Selection)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Tick != 42 || h.GameID != "g1" {
		t.Fatalf("header: %+v", h)
	}
}

func TestWriteSave_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save.snap.zst")
	a := sample()
	if err := WriteSave(path, a); err != nil {
		t.Fatalf("WriteSave: %v", err)
	}
	a.Header.Tick = 99
	if err := WriteSave(path, a); err != nil {
		t.Fatalf("WriteSave: %v", err)
	}
	out, err := ReadSave(path)
	if err != nil {
		t.Fatalf("ReadSave: %v", err)
	}
	if out.Header.Tick != 99 {
		t.Fatalf("tick=%d", out.Header.Tick)
	}
}

func TestDecode_RejectsVersion(t *testing.T) {
	var buf bytes.Buffer
	s := sample()
	s.Header.Version = 7
	if err := Encode(&buf, s); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode(&buf); !errors.Is(err, ErrVersion) {
		t.Fatalf("expected ErrVersion, got %v", err)
	}
}

func TestDecode_Garbage(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte("not a save"))); err == nil {
		t.Fatalf("expected error")
	}
}
