package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileSink implements audit logging to newline-delimited JSON files with
// size-based rotation.
type FileSink struct {
	basePath string
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	rotate   bool
	maxSize  int64
	maxFiles int
}

// FileSinkConfig configures the file sink
type FileSinkConfig struct {
	BasePath string // Base directory for audit logs
	Rotate   bool   // Enable log rotation
	MaxSize  int64  // Max file size in bytes (default: 100MB)
	MaxFiles int    // Max number of rotated files to keep (default: 10)
}

// DefaultFileSinkConfig returns default configuration
func DefaultFileSinkConfig() FileSinkConfig {
	return FileSinkConfig{
		BasePath: "/var/log/chordme/audit",
		Rotate:   true,
		MaxSize:  100 * 1024 * 1024,
		MaxFiles: 10,
	}
}

// NewFileSink creates a new file-based audit sink
func NewFileSink(config FileSinkConfig) (*FileSink, error) {
	if err := os.MkdirAll(config.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	sink := &FileSink{
		basePath: config.BasePath,
		rotate:   config.Rotate,
		maxSize:  config.MaxSize,
		maxFiles: config.MaxFiles,
	}
	if sink.maxSize == 0 {
		sink.maxSize = 100 * 1024 * 1024
	}
	if sink.maxFiles == 0 {
		sink.maxFiles = 10
	}

	if err := sink.openLogFile(); err != nil {
		return nil, err
	}
	return sink, nil
}

// Append writes one event as a JSON line.
func (s *FileSink) Append(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rotate {
		if info, err := s.file.Stat(); err == nil && info.Size() >= s.maxSize {
			if err := s.rotateFile(); err != nil {
				return fmt.Errorf("failed to rotate audit log: %w", err)
			}
		}
	}
	return s.encoder.Encode(event)
}

// Close flushes and closes the current log file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// openLogFile opens or creates the current log file
func (s *FileSink) openLogFile() error {
	filename := filepath.Join(s.basePath, "audit.log")

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	s.file = file
	s.encoder = json.NewEncoder(file)
	return nil
}

// rotateFile renames the current log aside and opens a fresh one.
// Caller must hold s.mu.
func (s *FileSink) rotateFile() error {
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return err
		}
	}

	current := filepath.Join(s.basePath, "audit.log")
	rotated := filepath.Join(s.basePath, fmt.Sprintf("audit-%s.log", time.Now().UTC().Format("20060102T150405")))
	if err := os.Rename(current, rotated); err != nil && !os.IsNotExist(err) {
		return err
	}

	if err := s.pruneRotated(); err != nil {
		return err
	}
	return s.openLogFile()
}

// pruneRotated deletes the oldest rotated files beyond maxFiles.
func (s *FileSink) pruneRotated() error {
	matches, err := filepath.Glob(filepath.Join(s.basePath, "audit-*.log"))
	if err != nil {
		return err
	}
	if len(matches) <= s.maxFiles {
		return nil
	}

	sort.Strings(matches) // timestamped names sort oldest first
	for _, path := range matches[:len(matches)-s.maxFiles] {
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}
