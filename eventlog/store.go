// Package eventlog stores per-thread event history as append-only JSONL
// files under a per-process temporary directory.
package eventlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store owns the backing files. One file per thread, named by the sanitized
// thread id, one JSON line per event.
type Store struct {
	dir string
}

// New creates a store rooted at a fresh temporary directory.
func New() (*Store, error) {
	dir, err := os.MkdirTemp("", "darkhold-events-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create event directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the backing directory.
func (s *Store) Dir() string {
	return s.dir
}

// Append writes one line to the thread's log under its file lock.
func (s *Store) Append(ctx context.Context, threadId string, line string) error {
	lock := newFileLock(s.lockPath(threadId))
	if err := lock.Acquire(ctx); err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()
	file, err := os.OpenFile(s.path(threadId), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.path(threadId), err)
	}
	defer file.Close()
	if _, err = file.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to append to %s: %w", s.path(threadId), err)
	}
	return nil
}

// Read returns all non-empty lines in insertion order. A missing file is an
// empty history, not an error. Reads are lock-free: each append is a single
// newline-terminated write and rehydration swaps the file atomically.
func (s *Store) Read(threadId string) ([]string, error) {
	data, err := os.ReadFile(s.path(threadId))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.path(threadId), err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Count returns the number of lines in the thread's log.
func (s *Store) Count(threadId string) (int, error) {
	lines, err := s.Read(threadId)
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}

// Rehydrate derives the thread's history from a thread/read result and
// atomically replaces the log file. A result without a thread object leaves
// the log untouched.
func (s *Store) Rehydrate(ctx context.Context, threadId string, result []byte) error {
	lines, ok, err := deriveEvents(threadId, result)
	if err != nil || !ok {
		return err
	}
	lock := newFileLock(s.lockPath(threadId))
	if err = lock.Acquire(ctx); err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	temp, err := os.CreateTemp(s.dir, sanitizeName(threadId)+".rehydrate-*")
	if err != nil {
		return fmt.Errorf("failed to create rehydration file: %w", err)
	}
	var content strings.Builder
	for _, line := range lines {
		content.WriteString(line)
		content.WriteByte('\n')
	}
	if _, err = temp.WriteString(content.String()); err != nil {
		_ = temp.Close()
		_ = os.Remove(temp.Name())
		return fmt.Errorf("failed to write rehydration file: %w", err)
	}
	if err = temp.Close(); err != nil {
		_ = os.Remove(temp.Name())
		return fmt.Errorf("failed to close rehydration file: %w", err)
	}
	if err = os.Rename(temp.Name(), s.path(threadId)); err != nil {
		_ = os.Remove(temp.Name())
		return fmt.Errorf("failed to replace %s: %w", s.path(threadId), err)
	}
	return nil
}

// Cleanup removes the directory and every thread log in it.
func (s *Store) Cleanup() error {
	return os.RemoveAll(s.dir)
}

func (s *Store) path(threadId string) string {
	return filepath.Join(s.dir, sanitizeName(threadId)+".jsonl")
}

func (s *Store) lockPath(threadId string) string {
	return s.path(threadId) + ".lock"
}

// sanitizeName maps a thread id to a safe file name: any character outside
// [A-Za-z0-9._-] becomes an underscore.
func sanitizeName(threadId string) string {
	var builder strings.Builder
	for _, r := range threadId {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			builder.WriteRune(r)
		default:
			builder.WriteByte('_')
		}
	}
	return builder.String()
}
