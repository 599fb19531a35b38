package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotatingWriter is a file writer that rolls the file over once it grows
// past maxSize or gets older than maxAge, keeping maxBackups old files.
type RotatingWriter struct {
	filename   string
	maxSize    int64
	maxAge     time.Duration
	maxBackups int
	compress   bool

	mu       sync.Mutex
	file     *os.File
	size     int64
	openedAt time.Time
	now      func() time.Time
}

// NewRotatingWriter opens filename for appending.
func NewRotatingWriter(filename string, maxSize int64, maxAge time.Duration, maxBackups int, compress bool) (*RotatingWriter, error) {
	rw := &RotatingWriter{
		filename:   filename,
		maxSize:    maxSize,
		maxAge:     maxAge,
		maxBackups: maxBackups,
		compress:   compress,
		now:        time.Now,
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

func newRotatingWriterFromConfig(path string, cfg *RotationConfig) (*RotatingWriter, error) {
	maxSize, err := parseSize(cfg.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("parse max size: %w", err)
	}
	maxAge, err := parseDuration(cfg.MaxAge)
	if err != nil {
		return nil, fmt.Errorf("parse max age: %w", err)
	}
	return NewRotatingWriter(path, maxSize, maxAge, cfg.MaxBackups, cfg.Compress)
}

func (rw *RotatingWriter) open() error {
	file, err := os.OpenFile(rw.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	rw.file = file
	rw.size = stat.Size()
	rw.openedAt = rw.now()
	return nil
}

// Write implements io.Writer
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return 0, os.ErrClosed
	}
	if rw.due(int64(len(p))) {
		if err := rw.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log file: %w", err)
		}
	}
	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

// Close closes the current file.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return nil
	}
	err := rw.file.Close()
	rw.file = nil
	return err
}

func (rw *RotatingWriter) due(incoming int64) bool {
	if rw.size == 0 {
		return false
	}
	if rw.maxSize > 0 && rw.size+incoming > rw.maxSize {
		return true
	}
	return rw.maxAge > 0 && rw.now().Sub(rw.openedAt) >= rw.maxAge
}

func (rw *RotatingWriter) rotate() error {
	if err := rw.file.Close(); err != nil {
		return fmt.Errorf("close current file: %w", err)
	}

	backup := fmt.Sprintf("%s.%s", rw.filename, rw.now().Format("20060102-150405.000"))
	if err := os.Rename(rw.filename, backup); err != nil {
		return fmt.Errorf("rename log file: %w", err)
	}
	if rw.compress {
		if err := gzipFile(backup); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation: compress %s: %v\n", backup, err)
		}
	}
	if err := rw.prune(); err != nil {
		fmt.Fprintf(os.Stderr, "log rotation: prune backups: %v\n", err)
	}
	return rw.open()
}

func gzipFile(name string) error {
	src, err := os.Open(name)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(name + ".gz")
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		dst.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}

// prune removes the oldest backups beyond maxBackups.
func (rw *RotatingWriter) prune() error {
	dir, base := filepath.Dir(rw.filename), filepath.Base(rw.filename)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var backups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), base+".") {
			backups = append(backups, filepath.Join(dir, e.Name()))
		}
	}
	if len(backups) <= rw.maxBackups {
		return nil
	}
	// Backup names embed a sortable timestamp.
	sort.Strings(backups)
	for _, name := range backups[:len(backups)-rw.maxBackups] {
		if err := os.Remove(name); err != nil {
			return err
		}
	}
	return nil
}
