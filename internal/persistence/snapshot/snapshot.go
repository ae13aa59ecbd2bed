package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

var ErrVersion = errors.New("unsupported save version")

type Header struct {
	Version int    `json:"version"`
	GameID  string `json:"game_id"`
	Tick    uint64 `json:"tick"`
	// Reason is what triggered the save: tick, prestige, new_game, admin or shutdown.
	Reason string `json:"reason,omitempty"`
	SavedMs int64  `json:"saved_ms,omitempty"`
}

// SaveV1 is the on-disk form of one save slot.
type SaveV1 struct {
	Header Header `json:"header"`

	TickRateHz int     `json:"tick_rate_hz"`
	Rules      RulesV1 `json:"rules"`

	Letters          float64 `json:"letters"`
	Money            float64 `json:"money"`
	Curiosity        float64 `json:"curiosity"`
	LettersDelivered float64 `json:"letters_delivered"`
	ClickDelivery    int     `json:"click_delivery"`
	ClickInc         float64 `json:"click_inc"`

	Counts map[string]int   `json:"counts"`
	Flags  map[string]bool  `json:"flags"`
	Timers map[string]int64 `json:"timers"`

	Phase            int      `json:"phase"`
	ChoosingPowerups bool     `json:"choosing_powerups"`
	NumChosen        int      `json:"num_chosen"`
	Powerups         []string `json:"powerups"`
	Selection        []string `json:"selection"`

	Puzzle         []PuzzleEntryV1 `json:"puzzle"`
	Correspondence bool            `json:"correspondence"`
	Reading        bool            `json:"reading"`
	OpenLetter     bool            `json:"open_letter"`
	OpenedKey      string          `json:"opened_key"`

	Day        int   `json:"day"`
	DayTimerMs int64 `json:"day_timer_ms"`

	LettersRate  RateWindowV1 `json:"letters_rate"`
	DeliveryRate RateWindowV1 `json:"delivery_rate"`

	LastTickMs int64 `json:"last_tick_ms"`
}

type RulesV1 struct {
	LetterPrice     float64   `json:"letter_price"`
	StartingLetters float64   `json:"starting_letters"`
	PhaseThresholds []float64 `json:"phase_thresholds"`
	ReadPhase       int       `json:"read_phase"`
	DayLengthMs     int64     `json:"day_length_ms"`
	RateWindowMs    int64     `json:"rate_window_ms"`
}

type PuzzleEntryV1 struct {
	Key      string `json:"key"`
	Unlocked bool   `json:"unlocked"`
	Text     string `json:"text"`
}

type RateWindowV1 struct {
	ElapsedMs int64   `json:"elapsed_ms"`
	Current   float64 `json:"current"`
	Previous  float64 `json:"previous"`
}

// WriteSave writes s to path through a temp file so a crash never leaves a
// torn save behind.
func WriteSave(path string, s SaveV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".save-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := Encode(tmp, s); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Encode writes a zstd stream holding a JSON header line followed by the gob body.
func Encode(w io.Writer, s SaveV1) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	if s.Header.Version == 0 {
		s.Header.Version = Version
	}
	hb, _ := json.Marshal(s.Header)
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&s); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSave(path string) (SaveV1, error) {
	f, err := os.Open(path)
	if err != nil {
		return SaveV1{}, err
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (SaveV1, error) {
	var s SaveV1
	dec, err := zstd.NewReader(r)
	if err != nil {
		return s, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	h, err := readHeader(br)
	if err != nil {
		return s, err
	}
	if h.Version != Version {
		return s, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	if err := gob.NewDecoder(br).Decode(&s); err != nil {
		return s, fmt.Errorf("gob decode: %w", err)
	}
	return s, nil
}

// ReadHeader decodes only the header line, without touching the body.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return Header{}, err
	}
	defer dec.Close()
	return readHeader(bufio.NewReader(dec))
}

func readHeader(br *bufio.Reader) (Header, error) {
	var h Header
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("parse header: %w", err)
	}
	return h, nil
}
