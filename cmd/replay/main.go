package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"postmaster.game/internal/letters"
	persistlog "postmaster.game/internal/persistence/log"
	"postmaster.game/internal/persistence/snapshot"
	"postmaster.game/internal/sim/game"
	"postmaster.game/internal/sim/tuning"
)

func main() {
	var (
		gameID     = flag.String("game", "main", "game id")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		stepsDir   = flag.String("steps", "", "steps dir containing steps-*.jsonl.zst (default: <data>/games/<game>/steps)")
		savePath   = flag.String("save", "", "save to start from (optional; default is a fresh game)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		lettersDir = flag.String("letters", "./configs/letters", "letters directory")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	dir := *stepsDir
	if dir == "" {
		dir = filepath.Join(*dataDir, "games", *gameID, "steps")
	}
	files, err := persistlog.Files(dir, "steps")
	if err != nil {
		fail("list steps", err)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no steps files found in", dir)
		os.Exit(1)
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil && !os.IsNotExist(err) {
		fail("load tuning", err)
	}
	lib, err := letters.Load(*lettersDir)
	if err != nil {
		fail("load letters", err)
	}

	cfg := game.ConfigFromTuning(*gameID, tune)
	cfg.SaveEveryTicks = 0
	cfg.Letters = lib
	cfg.LettersDigest = lib.Digest()

	var save *snapshot.SaveV1
	if *savePath != "" {
		sv, err := snapshot.ReadSave(*savePath)
		if err != nil {
			fail("read save", err)
		}
		fmt.Printf("save v%d game=%s tick=%d reason=%s phase=%d path=%v\n",
			sv.Header.Version, sv.Header.GameID, sv.Header.Tick, sv.Header.Reason, sv.Phase, sv.Selection)
		save = &sv
	} else {
		first, err := firstEntry(files)
		if err != nil {
			fail("read steps", err)
		}
		cfg.StartMs = first.PrevMs
	}

	e, err := game.New(cfg)
	if err != nil {
		fail("game", err)
	}
	if save != nil {
		if err := e.ImportSave(*save); err != nil {
			fail("import save", err)
		}
	}

	start := e.CurrentTick()
	if start > 0 {
		// Journals from before the save hold nothing to replay.
		if files, err = persistlog.FilesFrom(dir, "steps", start); err != nil {
			fail("list steps", err)
		}
	}
	r := replayer{engine: e, start: start, verifyFrom: *fromTick, to: *toTick}
	if r.verifyFrom == 0 {
		r.verifyFrom = start
	}
	for _, path := range files {
		if err := r.replayFile(path); err != nil {
			fail("replay", err)
		}
		if r.done {
			break
		}
	}
	fmt.Printf("replay ok: checked=%d ticks (from tick=%d)\n", r.checked, start)
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}
