package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const fileSuffix = ".json"

// FileStore stores one JSON file per key under a directory. Writes go
// to a temporary file that is renamed into place, so readers never see
// a partial entry.
type FileStore struct {
	rootDir string
}

// NewFileStore creates a file-backed store under rootDir.
// The directory will be created if it does not exist.
func NewFileStore(rootDir string) (*FileStore, error) {
	if rootDir == "" {
		return nil, errors.New("rootDir is required")
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{rootDir: rootDir}, nil
}

// Dir returns the store's directory.
func (s *FileStore) Dir() string { return s.rootDir }

func (s *FileStore) path(key string) string {
	return filepath.Join(s.rootDir, key+fileSuffix)
}

func (s *FileStore) Get(key string) (Entry, bool) {
	b, err := os.ReadFile(s.path(key))
	if err != nil {
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		_ = os.Remove(s.path(key))
		return Entry{}, false
	}
	return e, true
}

func (s *FileStore) Set(key string, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	tmp, err := os.CreateTemp(s.rootDir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename entry: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *FileStore) Range(fn func(key string, e Entry) bool) error {
	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		return err
	}
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		key := strings.TrimSuffix(name, fileSuffix)
		e, ok := s.Get(key)
		if !ok {
			continue
		}
		if !fn(key, e) {
			return nil
		}
	}
	return nil
}
