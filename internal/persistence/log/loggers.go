package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"combatkeep.ai/internal/sim/combat"
)

var ErrClosed = errors.New("log: writer closed")

// hourLayout names one segment per UTC hour.
const hourLayout = "2006-01-02-15"

// HourlyLog appends JSON lines to <dir>/<prefix>-<hour>.jsonl.zst. Every
// segment opened on an existing file adds a new zstd frame, and readers
// decode concatenated frames as one stream.
type HourlyLog struct {
	dir    string
	prefix string
	clock  func() time.Time

	mu     sync.Mutex
	seg    *segment
	closed bool
}

func NewHourlyLog(dir, prefix string) *HourlyLog {
	return &HourlyLog{dir: dir, prefix: prefix, clock: time.Now}
}

// Path returns the segment file for the hour containing at.
func (l *HourlyLog) Path(at time.Time) string {
	return filepath.Join(l.dir, l.prefix+"-"+at.UTC().Format(hourLayout)+".jsonl.zst")
}

// Append writes v as one line and flushes it through to the file.
func (l *HourlyLog) Append(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s entry: %w", l.prefix, err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	at := l.clock()
	if hour := at.UTC().Format(hourLayout); l.seg == nil || l.seg.hour != hour {
		if err := l.switchTo(hour, l.Path(at)); err != nil {
			return err
		}
	}
	return l.seg.append(line)
}

func (l *HourlyLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return l.release()
}

func (l *HourlyLog) switchTo(hour, path string) error {
	if err := l.release(); err != nil {
		return err
	}
	seg, err := openSegment(hour, path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	l.seg = seg
	return nil
}

func (l *HourlyLog) release() error {
	if l.seg == nil {
		return nil
	}
	err := l.seg.close()
	l.seg = nil
	return err
}

// segment is one open hour file.
type segment struct {
	hour string
	file *os.File
	zw   *zstd.Encoder
	buf  *bufio.Writer
}

func openSegment(hour, path string) (*segment, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(file,
		zstd.WithEncoderLevel(zstd.SpeedFastest),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &segment{hour: hour, file: file, zw: zw, buf: bufio.NewWriterSize(zw, 32*1024)}, nil
}

func (s *segment) append(line []byte) error {
	if _, err := s.buf.Write(line); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.zw.Flush()
}

func (s *segment) close() error {
	return errors.Join(s.buf.Flush(), s.zw.Close(), s.file.Close())
}

// RetentionLogger is the on-disk AuditSink: one compressed segment per hour
// under <data>/audit.
type RetentionLogger struct{ log *HourlyLog }

func NewRetentionLogger(dataDir string) *RetentionLogger {
	return &RetentionLogger{log: NewHourlyLog(filepath.Join(dataDir, "audit"), "audit")}
}

func (r *RetentionLogger) WriteAudit(e combat.AuditEntry) error { return r.log.Append(e) }
func (r *RetentionLogger) Close() error                         { return r.log.Close() }
