package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileStore persists entries as individual JSON files in a directory.
// File names are the base64url encoding of the key plus ".json".
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

var _ Registry = (*FileStore)(nil)

// NewFileStore creates a FileStore that saves entries to the given directory.
// The directory is created if it does not exist.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Get reads an entry from disk.
func (f *FileStore) Get(_ context.Context, key string) (Entry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.read(key)
}

// Put writes an entry to disk, replacing any previous one.
func (f *FileStore) Put(_ context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}

	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session entry: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	tmp := f.path(e.Key) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, f.path(e.Key)); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Delete removes an entry file.
func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return notFound(key)
		}
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// Keys lists the keys stored on disk. Files that are not entries are skipped.
func (f *FileStore) Keys(_ context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("read session dir: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		keys = append(keys, string(raw))
	}
	return keys, nil
}

// Prune deletes entries not used for longer than maxIdle and returns them.
func (f *FileStore) Prune(ctx context.Context, maxIdle time.Duration) ([]Entry, error) {
	keys, err := f.Keys(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-maxIdle)

	var pruned []Entry
	for _, k := range keys {
		e, err := f.Get(ctx, k)
		if err != nil || !e.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := f.Delete(ctx, k); err != nil && !errors.Is(err, ErrNotFound) {
			return pruned, err
		}
		pruned = append(pruned, e)
	}
	return pruned, nil
}

func (f *FileStore) read(key string) (Entry, error) {
	b, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Entry{}, notFound(key)
		}
		return Entry{}, fmt.Errorf("read session file: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return Entry{}, fmt.Errorf("unmarshal session entry: %w", err)
	}
	return e, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, base64.RawURLEncoding.EncodeToString([]byte(key))+".json")
}
