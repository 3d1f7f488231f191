package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/emergence/internal/engine"
)

// JSONLZstdWriter appends JSON lines to zstd-compressed segment files,
// starting a new segment once the current one has taken rotateBytes of
// uncompressed input.
type JSONLZstdWriter struct {
	baseDir     string
	prefix      string
	rotateBytes int64

	mu      sync.Mutex
	segment int
	written int64
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewJSONLZstdWriter writes segments named prefix-NNNNNN.jsonl.zst under baseDir.
// A rotateBytes of zero never rotates.
func NewJSONLZstdWriter(baseDir, prefix string, rotateBytes int64) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir:     baseDir,
		prefix:      prefix,
		rotateBytes: rotateBytes,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil || (w.rotateBytes > 0 && w.written >= w.rotateBytes) {
		if err := w.rotateLocked(); err != nil {
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
	w.written += int64(len(b)) + 1
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked() error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	w.segment++
	f, err := os.OpenFile(w.pathForSegment(w.segment), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
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
	w.written = 0
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
	return err1
}

func (w *JSONLZstdWriter) pathForSegment(n int) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%06d.jsonl.zst", w.prefix, n))
}

// TickLogger writes one JSONL entry per tick (compressed).
type TickLogger struct{ w *JSONLZstdWriter }

// NewTickLogger logs under dir/runID.
func NewTickLogger(dir, runID string, rotateBytes int64) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(dir, runID), "ticks", rotateBytes)}
}

func (l *TickLogger) WriteTick(v engine.TickSummary) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// ReadTicks decodes every entry of one tick log segment.
func ReadTicks(path string) ([]engine.TickSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []engine.TickSummary
	jd := json.NewDecoder(dec)
	for {
		var s engine.TickSummary
		if err := jd.Decode(&s); err == io.EOF {
			return out, nil
		} else if err != nil {
			return out, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, s)
	}
}
