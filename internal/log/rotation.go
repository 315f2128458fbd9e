package log

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Rotation defaults used when a size or backup count is not positive.
const (
	DefaultMaxSize    = 10 << 20 // 10MB
	DefaultMaxBackups = 3
)

// ErrClosed is returned by writes to a closed RotatingFile.
var ErrClosed = errors.New("log: file closed")

// RotatingFile is an io.WriteCloser that rotates the file once it would grow
// past maxSize. Backups are named path.1 (newest) to path.N.
type RotatingFile struct {
	mu sync.Mutex

	path       string
	maxSize    int64
	maxBackups int

	file *os.File
	size int64
}

// NewRotatingFile opens or creates path for appending.
func NewRotatingFile(path string, maxSize int64, maxBackups int) (*RotatingFile, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}
	rf := &RotatingFile{
		path:       path,
		maxSize:    maxSize,
		maxBackups: maxBackups,
	}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (rf *RotatingFile) open() error {
	if err := os.MkdirAll(filepath.Dir(rf.path), 0750); err != nil {
		return fmt.Errorf("log: create directory: %w", err)
	}

	// Wire logs carry message bodies; owner-only access.
	f, err := os.OpenFile(rf.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("log: open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("log: stat file: %w", err)
	}

	rf.file = f
	rf.size = info.Size()
	return nil
}

// Write implements io.Writer. A single write larger than maxSize goes to a
// fresh file rather than being split.
func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, ErrClosed
	}
	if rf.size > 0 && rf.size+int64(len(p)) > rf.maxSize {
		if err := rf.rotate(); err != nil {
			return 0, fmt.Errorf("log: rotate: %w", err)
		}
	}

	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

// rotate shifts path.N-1 to path.N down to path to path.1, then reopens
// path. The oldest backup is dropped. mu must be held.
func (rf *RotatingFile) rotate() error {
	if err := rf.file.Close(); err != nil {
		return err
	}
	rf.file = nil

	oldest := backupName(rf.path, rf.maxBackups)
	if err := os.Remove(oldest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	for i := rf.maxBackups - 1; i >= 1; i-- {
		err := os.Rename(backupName(rf.path, i), backupName(rf.path, i+1))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if err := os.Rename(rf.path, backupName(rf.path, 1)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return rf.open()
}

func backupName(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}

// Sync commits the current file to stable storage.
func (rf *RotatingFile) Sync() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file == nil {
		return ErrClosed
	}
	return rf.file.Sync()
}

// Close implements io.Closer. Closing twice is a no-op.
func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file == nil {
		return nil
	}
	err := rf.file.Close()
	rf.file = nil
	return err
}
