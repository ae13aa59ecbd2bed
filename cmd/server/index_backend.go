package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"postmaster.game/internal/persistence/indexdb"
	"postmaster.game/internal/persistence/snapshot"
	"postmaster.game/internal/protocol"
	"postmaster.game/internal/sim/game"
	"postmaster.game/internal/sim/tuning"
)

type runtimeIndex interface {
	game.StepLogger
	game.AuditLogger
	Close() error
	Stats() indexdb.Stats
	UpsertCatalog(cat protocol.Catalog, tune tuning.Tuning) error
	RecordSave(path string, sv snapshot.SaveV1)
	RecordPhaseArchive(phase int, tick uint64, archivedPath string)
}

func openRuntimeIndex(gameDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("PM_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(gameDir, "index", "game.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported PM_INDEX_BACKEND: %s", backend)
	}
}

type multiStepLogger struct {
	a game.StepLogger
	b game.StepLogger
}

func (m multiStepLogger) WriteStep(entry game.StepLogEntry) error {
	var first error
	if m.a != nil {
		first = m.a.WriteStep(entry)
	}
	if m.b != nil {
		_ = m.b.WriteStep(entry)
	}
	return first
}

type multiAuditLogger struct {
	a game.AuditLogger
	b game.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry game.AuditEntry) error {
	var first error
	if m.a != nil {
		first = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return first
}
