package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"postmaster.game/internal/letters"
	persistlog "postmaster.game/internal/persistence/log"
	"postmaster.game/internal/persistence/snapshot"
	"postmaster.game/internal/sim/game"
	"postmaster.game/internal/sim/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		gameID     = flag.String("game", "main", "game id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		lettersDir = flag.String("letters", "", "letters directory (default: <configs>/letters)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (steps, audit, saves)")
		savePath   = flag.String("save", "", "save to load (default: <data>/games/<game>/save.snap.zst)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	gameDir := filepath.Join(*dataDir, "games", *gameID)
	_ = os.MkdirAll(gameDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	ld := strings.TrimSpace(*lettersDir)
	if ld == "" {
		ld = filepath.Join(*configDir, "letters")
	}
	lib, err := letters.Load(ld)
	if err != nil {
		logger.Fatalf("load letters: %v", err)
	}
	logger.Printf("letters loaded: %d known, digest=%s", len(lib.Keys()), lib.Digest())

	// Optional read-model index; the game never depends on it.
	idx, err := openRuntimeIndex(gameDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalog(game.Catalog(lib.Digest()), tune); err != nil {
			logger.Printf("index backend: upsert catalog: %v", err)
		}
	}

	cfg := game.ConfigFromTuning(*gameID, tune)
	cfg.Letters = lib
	cfg.LettersDigest = lib.Digest()
	e, err := game.New(cfg)
	if err != nil {
		logger.Fatalf("game: %v", err)
	}

	saves := newSaveWriter(gameDir, idx, logger)
	toLoad := strings.TrimSpace(*savePath)
	if toLoad == "" {
		toLoad = saves.path()
	}
	if err := loadSave(e, toLoad, *gameID); err != nil {
		if errors.Is(err, errGameMismatch) {
			logger.Fatalf("load save: %v", err)
		}
		if !errors.Is(err, os.ErrNotExist) {
			logger.Printf("load save %s: %v; starting a fresh game", toLoad, err)
		}
	} else {
		logger.Printf("resumed from save=%s tick=%d", filepath.Base(toLoad), e.CurrentTick())
	}

	ctx, cancel := signalContext()
	defer cancel()

	stepLog := persistlog.NewStepLogger(gameDir)
	auditLog := persistlog.NewAuditLogger(gameDir)
	defer stepLog.Close()
	defer auditLog.Close()
	if idx != nil {
		e.SetStepLogger(multiStepLogger{a: stepLog, b: idx})
		e.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})
	} else {
		e.SetStepLogger(stepLog)
		e.SetAuditLogger(auditLog)
	}

	saveCh := make(chan snapshot.SaveV1, 8)
	e.SetSaveSink(saveCh)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		saves.run(ctx, saveCh)
	}()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := e.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("game stopped: %v", err)
		}
	}()

	mux := newMux(muxConfig{
		Engine:    e,
		Index:     idx,
		Saves:     saveCh,
		Limits:    tune.RateLimits,
		AdminHTTP: envBool("PM_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		PprofHTTP: envBool("PM_ENABLE_PPROF_HTTP", false),
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s game=%s", *addr, *gameID)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
		cancel()
	}

	<-engineDone
	<-writerDone
	// The loop has exited; the state is ours now.
	for _, sv := range e.TakePendingSaves() {
		if err := saves.write(sv); err != nil {
			logger.Printf("pending %s save tick=%d: %v", sv.Header.Reason, sv.Header.Tick, err)
		}
	}
	if err := saves.write(e.ExportSave(game.SaveReasonShutdown)); err != nil {
		logger.Printf("shutdown save: %v", err)
	} else {
		logger.Printf("shutdown save written tick=%d", e.CurrentTick()-1)
	}
}

var errGameMismatch = errors.New("save belongs to another game")

func loadSave(e *game.Engine, path, gameID string) error {
	sv, err := snapshot.ReadSave(path)
	if err != nil {
		return err
	}
	if sv.Header.GameID != "" && sv.Header.GameID != gameID {
		return errGameMismatch
	}
	return e.ImportSave(sv)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
