package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
)

// FileStore persists the session id in a small JSON file so it survives restarts
type FileStore struct {
	path string

	mu     sync.Mutex
	cached string // Protected by mu
}

type fileRecord map[string]string

// NewFileStore opens (or lazily creates) the store at path.
// The current value is read once here.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var rec fileRecord
	if err := sonic.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	s.cached = rec[Key]
	return s, nil
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cached, s.cached != ""
}

func (s *FileStore) Set(id string) error {
	if id == "" {
		return fmt.Errorf("empty session id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" {
		return nil
	}
	if err := s.write(fileRecord{Key: id}); err != nil {
		return err
	}
	s.cached = id
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	s.cached = ""
	return nil
}

func (s *FileStore) write(rec fileRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	b, err := sonic.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
