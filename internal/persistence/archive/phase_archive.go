package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"postmaster.game/internal/persistence/snapshot"
	"postmaster.game/internal/sim/economy"
)

type PhaseArchiveMeta struct {
	Phase     int      `json:"phase"`
	Tick      uint64   `json:"tick"`
	GameID    string   `json:"game_id"`
	Save      string   `json:"save"`
	Path      string   `json:"path"`
	Powerups  []string `json:"powerups"`
	CreatedAt string   `json:"created_at"`
}

// ArchivePhaseSave copies the save written right after a prestige into
// `gameDir/archives/phase_<NNN>/`. Other saves are ignored.
func ArchivePhaseSave(gameDir, savePath string, s snapshot.SaveV1) (phase int, archivedPath string, archived bool, err error) {
	if s.Header.Reason != "prestige" || s.Phase <= 0 {
		return 0, "", false, nil
	}
	phase = s.Phase

	archiveDir := filepath.Join(gameDir, "archives", fmt.Sprintf("phase_%03d", phase))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return 0, "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(savePath))
	if err := copyFile(savePath, dst); err != nil {
		return 0, "", false, err
	}

	meta := PhaseArchiveMeta{
		Phase:     phase,
		Tick:      s.Header.Tick,
		GameID:    s.Header.GameID,
		Save:      filepath.Base(dst),
		Path:      pathOf(s.Selection),
		Powerups:  s.Powerups,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return phase, dst, true, nil
}

func pathOf(selection []string) string {
	var b []byte
	for _, name := range selection {
		if p, ok := economy.ParsePowerup(name); ok {
			b = append(b, p.Char())
		}
	}
	return string(b)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
