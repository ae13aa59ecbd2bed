package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"postmaster.game/internal/sim/game"
)

const hourLayout = "2006-01-02-15"

// JSONLZstdWriter appends tick-stamped JSON lines to zstd files named
// <prefix>-<UTC hour>-t<first tick>.jsonl.zst. A new file starts every hour
// and on every process start, so a file name tells where its ticks begin.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	open    bool
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Write appends v, which belongs to tick.
func (w *JSONLZstdWriter) Write(tick uint64, v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format(hourLayout)
	if !w.open || hour != w.curHour {
		if err := w.rotateLocked(hour, tick); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string, tick uint64) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathFor(hour, tick), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	w.open = true
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.open = false
	return err1
}

func (w *JSONLZstdWriter) pathFor(hour string, tick uint64) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s-t%012d.jsonl.zst", w.prefix, hour, tick))
}

// StepLogger writes one JSONL entry per tick (compressed). Together with
// the starting save it is enough to replay a game exactly.
type StepLogger struct{ w *JSONLZstdWriter }

func NewStepLogger(gameDir string) *StepLogger {
	return &StepLogger{w: NewJSONLZstdWriter(filepath.Join(gameDir, "steps"), "steps")}
}

func (l *StepLogger) WriteStep(v game.StepLogEntry) error { return l.w.Write(v.Tick, v) }
func (l *StepLogger) Close() error                        { return l.w.Close() }

// AuditLogger writes one JSONL entry per applied action (compressed).
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(gameDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(gameDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(v game.AuditEntry) error { return l.w.Write(v.Tick, v) }
func (l *AuditLogger) Close() error                       { return l.w.Close() }

// Files lists dir's rotated files for prefix in write order.
func Files(dir, prefix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// FirstTick reads the starting tick from a rotated file's name.
func FirstTick(path string) (uint64, bool) {
	name := strings.TrimSuffix(filepath.Base(path), ".jsonl.zst")
	i := strings.LastIndex(name, "-t")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(name[i+2:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FilesFrom is Files without the files that end before fromTick: a file is
// skipped when the next one already starts at or before fromTick.
func FilesFrom(dir, prefix string, fromTick uint64) ([]string, error) {
	files, err := Files(dir, prefix)
	if err != nil || fromTick == 0 {
		return files, err
	}
	start := 0
	for i := 1; i < len(files); i++ {
		if t, ok := FirstTick(files[i]); ok && t <= fromTick {
			start = i
		}
	}
	return files[start:], nil
}

// ReadLines decodes every line of a rotated file into fn. Several zstd frames
// appended to one file read back as a single stream.
func ReadLines(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 1024*1024), 8*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}
