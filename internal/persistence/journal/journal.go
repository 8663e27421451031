// Package journal appends world events as zstd-compressed JSON lines,
// one file per hour. Appends are fire and forget: the server publishes
// into a buffered channel and a single goroutine drains it, dropping
// records (and counting the drops) rather than blocking the simulation
// when the disk cannot keep up.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Record is one journaled world event.
type Record struct {
	Time    string `json:"time"`
	Kind    string `json:"kind"`
	Entity  string `json:"entity,omitempty"`
	X       int32  `json:"x"`
	Y       int32  `json:"y"`
	Tile    string `json:"tile,omitempty"`
	Request uint32 `json:"request,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Record kinds written by the server.
const (
	KindJoin         = "join"
	KindLeave        = "leave"
	KindMoveRejected = "move_rejected"
	KindTileChange   = "tile_change"
	KindDetonate     = "detonate"
	KindPurchase     = "purchase"
)

const appendBuffer = 1024

// Journal owns the writer goroutine. A nil *Journal is valid and
// discards everything, so callers never branch on whether journaling
// is configured.
type Journal struct {
	w       *rotatingWriter
	records chan Record
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
	dropped atomic.Uint64
	log     *log.Logger
}

// Open starts a journal writing into dir. An empty dir disables
// journaling and returns nil.
func Open(dir string, logger *log.Logger) (*Journal, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	j := &Journal{
		w:       newRotatingWriter(dir, "events"),
		records: make(chan Record, appendBuffer),
		done:    make(chan struct{}),
		log:     logger,
	}
	go j.run()
	return j, nil
}

// Append queues rec for writing. It never blocks; when the buffer is
// full the record is dropped and counted.
func (j *Journal) Append(rec Record) {
	if j == nil {
		return
	}
	j.closeMu.Lock()
	if j.closed {
		j.closeMu.Unlock()
		return
	}
	if rec.Time == "" {
		rec.Time = time.Now().UTC().Format(time.RFC3339Nano)
	}
	select {
	case j.records <- rec:
	default:
		j.dropped.Add(1)
	}
	j.closeMu.Unlock()
}

// Dropped reports how many records were discarded because the writer
// fell behind.
func (j *Journal) Dropped() uint64 {
	if j == nil {
		return 0
	}
	return j.dropped.Load()
}

// Close drains queued records and closes the current file.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.closeMu.Lock()
	if j.closed {
		j.closeMu.Unlock()
		return nil
	}
	j.closed = true
	close(j.records)
	j.closeMu.Unlock()
	<-j.done
	return j.w.Close()
}

func (j *Journal) run() {
	defer close(j.done)
	for rec := range j.records {
		if err := j.w.Write(rec); err != nil && j.log != nil {
			j.log.Printf("journal write: %v", err)
		}
	}
}

// rotatingWriter writes JSON lines through zstd, starting a new file
// whenever the UTC hour changes.
type rotatingWriter struct {
	mu     sync.Mutex
	dir    string
	prefix string
	hour   string
	file   *os.File
	enc    *zstd.Encoder
	buf    *bufio.Writer
}

func newRotatingWriter(dir, prefix string) *rotatingWriter {
	return &rotatingWriter{dir: dir, prefix: prefix}
}

func (w *rotatingWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.hour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal journal record: %w", err)
	}
	line = append(line, '\n')
	if _, err := w.buf.Write(line); err != nil {
		return fmt.Errorf("write journal record: %w", err)
	}
	return w.buf.Flush()
}

func (w *rotatingWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		f.Close()
		return fmt.Errorf("new zstd writer: %w", err)
	}
	w.file = f
	w.enc = enc
	w.buf = bufio.NewWriterSize(enc, 128*1024)
	w.hour = hour
	return nil
}

func (w *rotatingWriter) closeLocked() error {
	if w.file == nil {
		return nil
	}
	var first error
	if err := w.buf.Flush(); err != nil && first == nil {
		first = err
	}
	if err := w.enc.Close(); err != nil && first == nil {
		first = err
	}
	if err := w.file.Close(); err != nil && first == nil {
		first = err
	}
	w.file = nil
	w.enc = nil
	w.buf = nil
	w.hour = ""
	return first
}

// Close flushes and closes the current file, if any.
func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}
