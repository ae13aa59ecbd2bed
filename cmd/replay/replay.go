package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	persistlog "postmaster.game/internal/persistence/log"
	"postmaster.game/internal/sim/game"
)

type replayer struct {
	engine     *game.Engine
	start      uint64
	verifyFrom uint64
	to         uint64

	checked uint64
	done    bool
}

var errStop = errors.New("stop")

func (r *replayer) replayFile(path string) error {
	err := persistlog.ReadLines(path, func(line []byte) error {
		var entry game.StepLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if entry.Tick < r.start {
			return nil
		}
		if r.to != 0 && entry.Tick > r.to {
			r.done = true
			return errStop
		}
		if want := r.engine.CurrentTick(); entry.Tick != want {
			return fmt.Errorf("tick mismatch: want=%d got=%d (file=%s)", want, entry.Tick, filepath.Base(path))
		}

		acts := make([]game.ActionEnvelope, 0, len(entry.Actions))
		for _, ra := range entry.Actions {
			acts = append(acts, game.ActionEnvelope{SessionID: ra.SessionID, Act: ra.Act})
		}
		tick, digest := r.engine.StepOnce(entry.NowMs, acts)
		if tick != entry.Tick {
			return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d (file=%s)", tick, entry.Tick, filepath.Base(path))
		}
		if tick >= r.verifyFrom {
			r.checked++
			if digest != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, digest, entry.Digest)
			}
		}
		return nil
	})
	if errors.Is(err, errStop) {
		return nil
	}
	return err
}

// firstEntry reads the oldest step on record.
func firstEntry(files []string) (game.StepLogEntry, error) {
	var first game.StepLogEntry
	found := false
	for _, path := range files {
		err := persistlog.ReadLines(path, func(line []byte) error {
			if err := json.Unmarshal(line, &first); err != nil {
				return err
			}
			found = true
			return errStop
		})
		if found {
			return first, nil
		}
		if err != nil && !errors.Is(err, errStop) {
			return first, err
		}
	}
	return first, errors.New("no steps recorded")
}
