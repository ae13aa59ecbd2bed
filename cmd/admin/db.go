package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// queries maps a db subcommand to its SQL. Every query takes a LIMIT.
var queries = map[string]string{
	"saves":     `SELECT tick, reason, path, phase, powerup_path, letters_delivered, money, unlocked_letters, recorded_at FROM saves ORDER BY tick DESC LIMIT ?`,
	"prestiges": `SELECT tick, phase, path, session_id, now_ms FROM prestiges ORDER BY tick DESC LIMIT ?`,
	"attempts":  `SELECT tick, letter_key, unlocked, session_id FROM attempts ORDER BY tick DESC, seq DESC LIMIT ?`,
	"actions":   `SELECT tick, session_id, act_id, action, target, accepted, code, phase FROM actions ORDER BY tick DESC, seq DESC LIMIT ?`,
	"steps":     `SELECT tick, prev_ms, now_ms, digest, actions FROM steps ORDER BY tick DESC LIMIT ?`,
	"archives":  `SELECT phase, tick, save_path, recorded_at FROM phase_archives ORDER BY phase DESC LIMIT ?`,
	"catalogs":  `SELECT name, digest, updated_at FROM catalogs ORDER BY name LIMIT ?`,
	"meta":      `SELECT key, value FROM meta ORDER BY key LIMIT ?`,
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	gameDir := gameDirFlag(fs)
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "saves"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(gameDir(), "index", "game.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	rows, err := queryRows(db, q, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range rows {
		_ = enc.Encode(r)
	}
}

// queryRows runs a named query and returns each row keyed by column name.
func queryRows(db *sql.DB, name string, limit int) ([]map[string]any, error) {
	sqlText, ok := queries[name]
	if !ok {
		return nil, fmt.Errorf("unknown query %q", name)
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(sqlText, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
