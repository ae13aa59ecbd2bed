package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistlog "postmaster.game/internal/persistence/log"
	"postmaster.game/internal/persistence/snapshot"
	"postmaster.game/internal/sim/game"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "restore":
			restoreCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "save":
			saveCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "games"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(*dataDir, "games", e.Name())
		phases, _ := filepath.Glob(filepath.Join(dir, "archives", "phase_*"))
		h, err := snapshot.ReadHeader(filepath.Join(dir, "save.snap.zst"))
		if err != nil {
			fmt.Printf("%s\t(no save) archives=%d\n", e.Name(), len(phases))
			continue
		}
		fmt.Printf("%s\ttick=%d reason=%s archives=%d\n", e.Name(), h.Tick, h.Reason, len(phases))
	}
}

func gameDirFlag(fs *flag.FlagSet) func() string {
	dataDir := fs.String("data", "./data", "runtime data directory")
	gameID := fs.String("game", "main", "game id")
	return func() string { return filepath.Join(*dataDir, "games", *gameID) }
}

type saveSummary struct {
	GameID           string   `json:"game_id"`
	Tick             uint64   `json:"tick"`
	Reason           string   `json:"reason"`
	Phase            int      `json:"phase"`
	Path             []string `json:"path"`
	Letters          float64  `json:"letters"`
	Money            float64  `json:"money"`
	LettersDelivered float64  `json:"letters_delivered"`
	Day              int      `json:"day"`
	Found            []string `json:"found"`
	Unlocked         []string `json:"unlocked"`
}

func summarize(sv snapshot.SaveV1) saveSummary {
	out := saveSummary{
		GameID:           sv.Header.GameID,
		Tick:             sv.Header.Tick,
		Reason:           sv.Header.Reason,
		Phase:            sv.Phase,
		Path:             sv.Selection,
		Letters:          sv.Letters,
		Money:            sv.Money,
		LettersDelivered: sv.LettersDelivered,
		Day:              sv.Day,
	}
	for _, p := range sv.Puzzle {
		out.Found = append(out.Found, p.Key)
		if p.Unlocked {
			out.Unlocked = append(out.Unlocked, p.Key)
		}
	}
	return out
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	gameDir := gameDirFlag(fs)
	savePath := fs.String("save", "", "save path (optional; defaults to the live save)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*savePath)
	if path == "" {
		path = filepath.Join(gameDir(), "save.snap.zst")
	}
	sv, err := snapshot.ReadSave(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read save:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(summarize(sv))
}

type auditFilter struct {
	SessionID string
	Action    string
	Since     uint64
	To        uint64
	Rejected  bool
}

func (f auditFilter) match(e game.AuditEntry) bool {
	if e.Tick < f.Since || (f.To != 0 && e.Tick > f.To) {
		return false
	}
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	return !f.Rejected || !e.Accepted
}

func readAudit(gameDir string, f auditFilter) ([]game.AuditEntry, error) {
	files, err := persistlog.FilesFrom(filepath.Join(gameDir, "audit"), "audit", f.Since)
	if err != nil {
		return nil, err
	}
	var out []game.AuditEntry
	for _, path := range files {
		err := persistlog.ReadLines(path, func(line []byte) error {
			var e game.AuditEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			if f.match(e) {
				out = append(out, e)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	gameDir := gameDirFlag(fs)
	session := fs.String("session", "", "session id filter")
	action := fs.String("action", "", "action filter (e.g. CHOOSE)")
	since := fs.Uint64("since_tick", 0, "first tick (inclusive)")
	to := fs.Uint64("to_tick", 0, "last tick (inclusive, optional)")
	rejected := fs.Bool("rejected", false, "only rejected actions")
	_ = fs.Parse(args)

	recs, err := readAudit(gameDir(), auditFilter{
		SessionID: *session,
		Action:    strings.ToUpper(strings.TrimSpace(*action)),
		Since:     *since,
		To:        *to,
		Rejected:  *rejected,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range recs {
		_ = enc.Encode(r)
	}
	fmt.Fprintf(os.Stderr, "%d entries\n", len(recs))
}

// restorePhase replaces the live save with the archive written when phase was
// entered. The server must be stopped, or its next save wins.
func restorePhase(gameDir string, phase int) (snapshot.SaveV1, error) {
	src := filepath.Join(gameDir, "archives", fmt.Sprintf("phase_%03d", phase), "save.snap.zst")
	sv, err := snapshot.ReadSave(src)
	if err != nil {
		return sv, err
	}
	if _, _, err := game.ImportSave(sv); err != nil {
		return sv, fmt.Errorf("archive does not import: %w", err)
	}
	return sv, snapshot.WriteSave(filepath.Join(gameDir, "save.snap.zst"), sv)
}

func restoreCmd(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	gameDir := gameDirFlag(fs)
	phase := fs.Int("phase", 0, "phase archive to restore (required)")
	_ = fs.Parse(args)

	if *phase <= 0 {
		fmt.Fprintln(os.Stderr, "missing -phase")
		os.Exit(2)
	}
	sv, err := restorePhase(gameDir(), *phase)
	if err != nil {
		fmt.Fprintln(os.Stderr, "restore:", err)
		os.Exit(1)
	}
	fmt.Printf("restored phase %d from tick=%d; restart the server to load it\n", sv.Phase, sv.Header.Tick)
}
