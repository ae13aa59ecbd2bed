package main

import (
	"context"
	"log"
	"path/filepath"

	"postmaster.game/internal/persistence/archive"
	"postmaster.game/internal/persistence/snapshot"
	"postmaster.game/internal/sim/game"
)

// saveWriter persists saves handed off by the engine. There is one live save
// file per game; prestige saves are also archived per phase.
type saveWriter struct {
	gameDir string
	idx     runtimeIndex
	log     *log.Logger
}

func newSaveWriter(gameDir string, idx runtimeIndex, logger *log.Logger) *saveWriter {
	return &saveWriter{gameDir: gameDir, idx: idx, log: logger}
}

func (w *saveWriter) path() string { return filepath.Join(w.gameDir, "save.snap.zst") }

func (w *saveWriter) logf(format string, args ...any) {
	if w.log != nil {
		w.log.Printf(format, args...)
	}
}

func (w *saveWriter) run(ctx context.Context, ch <-chan snapshot.SaveV1) {
	for {
		select {
		case <-ctx.Done():
			w.flush(drain(nil, ch))
			return
		case sv := <-ch:
			w.flush(drain([]snapshot.SaveV1{sv}, ch))
		}
	}
}

func (w *saveWriter) flush(batch []snapshot.SaveV1) {
	for _, sv := range coalesce(batch) {
		if err := w.write(sv); err != nil {
			// The next save retries; the previous file is still intact.
			w.logf("save write tick=%d reason=%s: %v", sv.Header.Tick, sv.Header.Reason, err)
		}
	}
}

func (w *saveWriter) write(sv snapshot.SaveV1) error {
	path := w.path()
	if err := snapshot.WriteSave(path, sv); err != nil {
		return err
	}
	if w.idx != nil {
		w.idx.RecordSave(path, sv)
	}
	phase, archivedPath, ok, err := archive.ArchivePhaseSave(w.gameDir, path, sv)
	if err != nil {
		w.logf("archive phase save: %v", err)
		return nil
	}
	if ok {
		w.logf("archived phase %d at tick=%d", phase, sv.Header.Tick)
		if w.idx != nil {
			w.idx.RecordPhaseArchive(phase, sv.Header.Tick, archivedPath)
		}
	}
	return nil
}

func drain(batch []snapshot.SaveV1, ch <-chan snapshot.SaveV1) []snapshot.SaveV1 {
	for {
		select {
		case sv := <-ch:
			batch = append(batch, sv)
		default:
			return batch
		}
	}
}

// coalesce keeps every non-periodic save, since prestige saves get archived,
// and the newest save overall. Order is preserved.
func coalesce(batch []snapshot.SaveV1) []snapshot.SaveV1 {
	if len(batch) == 0 {
		return nil
	}
	out := make([]snapshot.SaveV1, 0, len(batch))
	last := len(batch) - 1
	for i, sv := range batch {
		if i == last || sv.Header.Reason != game.SaveReasonTick {
			out = append(out, sv)
		}
	}
	return out
}
