package indexdb

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"lukechampine.com/blake3"
	_ "modernc.org/sqlite"

	"postmaster.game/internal/persistence/snapshot"
	"postmaster.game/internal/protocol"
	"postmaster.game/internal/sim/economy"
	"postmaster.game/internal/sim/game"
	"postmaster.game/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary index over the step and audit logs.
// It never blocks the simulation: when the writer falls behind, rows are
// dropped and counted. The JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropStep    atomic.Uint64
	dropAudit   atomic.Uint64
	dropSave    atomic.Uint64
	dropArchive atomic.Uint64
}

type Stats struct {
	DropStepTotal    uint64 `json:"drop_step_total"`
	DropAuditTotal   uint64 `json:"drop_audit_total"`
	DropSaveTotal    uint64 `json:"drop_save_total"`
	DropArchiveTotal uint64 `json:"drop_archive_total"`
	QueueDepth       int    `json:"queue_depth"`
	QueueCapacity    int    `json:"queue_capacity"`
}

type reqKind int

const (
	reqStep reqKind = iota + 1
	reqAudit
	reqSave
	reqArchive
)

type req struct {
	kind reqKind

	step    game.StepLogEntry
	audit   game.AuditEntry
	save    saveRow
	archive archiveRow
}

type saveRow struct {
	Tick             uint64
	Reason           string
	Path             string
	Phase            int
	PowerupPath      string
	LettersDelivered float64
	Money            float64
	Unlocked         int
	RecordedAt       string
}

type archiveRow struct {
	Phase      int
	Tick       uint64
	Path       string
	RecordedAt string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS steps (
			tick INTEGER PRIMARY KEY,
			prev_ms INTEGER NOT NULL,
			now_ms INTEGER NOT NULL,
			digest TEXT NOT NULL,
			actions INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			session_id TEXT NOT NULL,
			act_id TEXT NOT NULL,
			action TEXT NOT NULL,
			target TEXT,
			accepted INTEGER NOT NULL,
			code TEXT,
			phase INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_session_tick ON actions(session_id, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_action_tick ON actions(action, tick);`,
		`CREATE TABLE IF NOT EXISTS prestiges (
			tick INTEGER NOT NULL,
			phase INTEGER NOT NULL,
			path TEXT NOT NULL,
			session_id TEXT NOT NULL,
			now_ms INTEGER NOT NULL,
			PRIMARY KEY (tick, phase)
		);`,
		`CREATE TABLE IF NOT EXISTS attempts (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			letter_key TEXT NOT NULL,
			unlocked INTEGER NOT NULL,
			session_id TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_key ON attempts(letter_key, tick);`,
		`CREATE TABLE IF NOT EXISTS saves (
			tick INTEGER PRIMARY KEY,
			reason TEXT NOT NULL,
			path TEXT NOT NULL,
			phase INTEGER NOT NULL,
			powerup_path TEXT NOT NULL,
			letters_delivered REAL NOT NULL,
			money REAL NOT NULL,
			unlocked_letters INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS phase_archives (
			phase INTEGER PRIMARY KEY,
			tick INTEGER NOT NULL,
			save_path TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		if s.db != nil {
			err = s.db.Close()
		}
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropStepTotal:    s.dropStep.Load(),
		DropAuditTotal:   s.dropAudit.Load(),
		DropSaveTotal:    s.dropSave.Load(),
		DropArchiveTotal: s.dropArchive.Load(),
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) WriteStep(entry game.StepLogEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqStep, step: entry}, &s.dropStep)
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry game.AuditEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqAudit, audit: entry}, &s.dropAudit)
	return nil
}

// RecordSave indexes a written save. Periodic saves only move the
// last_save_tick marker; every other reason gets its own row.
func (s *SQLiteIndex) RecordSave(path string, sv snapshot.SaveV1) {
	if s == nil {
		return
	}
	unlocked := 0
	for _, p := range sv.Puzzle {
		if p.Unlocked {
			unlocked++
		}
	}
	var pp []byte
	for _, name := range sv.Selection {
		if p, ok := economy.ParsePowerup(name); ok {
			pp = append(pp, p.Char())
		}
	}
	r := saveRow{
		Tick:             sv.Header.Tick,
		Reason:           sv.Header.Reason,
		Path:             path,
		Phase:            sv.Phase,
		PowerupPath:      string(pp),
		LettersDelivered: sv.LettersDelivered,
		Money:            sv.Money,
		Unlocked:         unlocked,
		RecordedAt:       time.Now().UTC().Format(time.RFC3339Nano),
	}
	s.enqueue(req{kind: reqSave, save: r}, &s.dropSave)
}

func (s *SQLiteIndex) RecordPhaseArchive(phase int, tick uint64, archivedPath string) {
	if s == nil || phase <= 0 || archivedPath == "" {
		return
	}
	r := archiveRow{
		Phase:      phase,
		Tick:       tick,
		Path:       archivedPath,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	s.enqueue(req{kind: reqArchive, archive: r}, &s.dropArchive)
}

// UpsertCatalog stores the static tables and the tuning actually applied, so
// queries can be read against the balance that produced them.
func (s *SQLiteIndex) UpsertCatalog(cat protocol.Catalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	add := func(name string, v any) {
		b, err := json.Marshal(v)
		if err != nil || len(b) == 0 {
			return
		}
		sum := blake3.Sum256(b)
		rows = append(rows, kv{name: name, digest: hex.EncodeToString(sum[:]), json: b})
	}
	add("generators", cat.Generators)
	add("powerups", cat.Powerups)
	add("tuning", tune)
	if cat.LettersDigest != "" {
		rows = append(rows, kv{name: "letters", digest: cat.LettersDigest, json: []byte(`{}`)})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertStep, _ := s.db.Prepare(`INSERT OR REPLACE INTO steps(tick,prev_ms,now_ms,digest,actions) VALUES(?,?,?,?,?)`)
	insertAction, _ := s.db.Prepare(`INSERT OR REPLACE INTO actions(tick,seq,session_id,act_id,action,target,accepted,code,phase,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertPrestige, _ := s.db.Prepare(`INSERT OR REPLACE INTO prestiges(tick,phase,path,session_id,now_ms) VALUES(?,?,?,?,?)`)
	insertAttempt, _ := s.db.Prepare(`INSERT OR REPLACE INTO attempts(tick,seq,letter_key,unlocked,session_id) VALUES(?,?,?,?,?)`)
	insertSave, _ := s.db.Prepare(`INSERT OR REPLACE INTO saves(tick,reason,path,phase,powerup_path,letters_delivered,money,unlocked_letters,recorded_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertArchive, _ := s.db.Prepare(`INSERT OR REPLACE INTO phase_archives(phase,tick,save_path,recorded_at) VALUES(?,?,?,?)`)
	upsertMeta, _ := s.db.Prepare(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertStep, insertAction, insertPrestige, insertAttempt, insertSave, insertArchive, upsertMeta} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqStep:
			e := r.step
			exec(insertStep, int64(e.Tick), e.PrevMs, e.NowMs, e.Digest, len(e.Actions))

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			if !exec(insertAction, int64(a.Tick), seq, a.SessionID, a.ActID, a.Action, a.Target, boolInt(a.Accepted), a.Code, a.Phase, string(raw)) {
				continue
			}
			if a.Prestiged {
				exec(insertPrestige, int64(a.Tick), a.Phase, a.Path, a.SessionID, a.NowMs)
			}
			if a.Action == protocol.ActSubmitText && a.Accepted && a.Key != "" {
				exec(insertAttempt, int64(a.Tick), seq, a.Key, boolInt(a.Unlocked), a.SessionID)
			}

		case reqSave:
			sv := r.save
			if sv.Reason == game.SaveReasonTick {
				exec(upsertMeta, "last_save_tick", strconv.FormatUint(sv.Tick, 10))
				break
			}
			exec(insertSave, int64(sv.Tick), sv.Reason, sv.Path, sv.Phase, sv.PowerupPath, sv.LettersDelivered, sv.Money, sv.Unlocked, sv.RecordedAt)

		case reqArchive:
			ar := r.archive
			exec(insertArchive, ar.Phase, int64(ar.Tick), ar.Path, ar.RecordedAt)
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
