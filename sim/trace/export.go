package trace

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Envelope is one line of a JSONL trace export.
type Envelope struct {
	Type         string              `json:"type"` // "conversation" or "lifecycle"
	Conversation *ConversationRecord `json:"conversation,omitempty"`
	Lifecycle    *LifecycleRecord    `json:"lifecycle,omitempty"`
}

// JSONLZstdWriter appends JSON values as zstd-compressed lines to hourly files
// named <prefix>-YYYY-MM-DD-HH.jsonl.zst under baseDir. It is safe for concurrent use.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	nowFunc func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewJSONLZstdWriter creates a writer; no file is opened until the first Write.
func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		nowFunc: time.Now,
	}
}

// Write marshals v and appends it as one line, rotating files on the hour.
// Each line is flushed to the file so an open export can be read.
func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.nowFunc().UTC().Format("2006-01-02-15")
	if hour != w.curHour || w.w == nil {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling trace record: %w", err)
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	// Emit a zstd block so the line is on disk before the frame is closed.
	return w.enc.Flush()
}

// Close flushes and closes the current file.
func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// CurrentPath returns the file being written, or "" before the first Write.
func (w *JSONLZstdWriter) CurrentPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.curHour == "" {
		return ""
	}
	return w.pathForHour(w.curHour)
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
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
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		err1 = w.w.Flush()
	}
	if w.enc != nil {
		if err := w.enc.Close(); err1 == nil {
			err1 = err
		}
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// ZstdSink is a Sink writing Envelopes through a JSONLZstdWriter.
type ZstdSink struct{ w *JSONLZstdWriter }

// NewZstdSink creates a sink writing trace-*.jsonl.zst files under dir.
func NewZstdSink(dir string) *ZstdSink {
	return &ZstdSink{w: NewJSONLZstdWriter(dir, "trace")}
}

func (s *ZstdSink) WriteConversation(r ConversationRecord) error {
	return s.w.Write(Envelope{Type: "conversation", Conversation: &r})
}

func (s *ZstdSink) WriteLifecycle(r LifecycleRecord) error {
	return s.w.Write(Envelope{Type: "lifecycle", Lifecycle: &r})
}

func (s *ZstdSink) Close() error { return s.w.Close() }

// Path returns the file currently written by the sink.
func (s *ZstdSink) Path() string { return s.w.CurrentPath() }

// ReadEnvelopes decodes every envelope from a .jsonl.zst trace file. A file
// that is still open for writing yields the lines flushed so far.
func ReadEnvelopes(path string) ([]Envelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening zstd stream: %w", err)
	}
	defer dec.Close()

	var out []Envelope
	jd := json.NewDecoder(bufio.NewReader(dec))
	for {
		var e Envelope
		if err := jd.Decode(&e); err != nil {
			// An unterminated frame is a file still being written.
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return out, nil
			}
			return out, fmt.Errorf("decoding trace line %d: %w", len(out)+1, err)
		}
		out = append(out, e)
	}
}
