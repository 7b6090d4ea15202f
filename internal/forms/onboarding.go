package forms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

const firstTimeKey = "IS_FIRST_TIME"

// Store persists small string values on the device.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// FirstTime tracks whether onboarding should be shown.
type FirstTime struct {
	store Store
}

// NewFirstTime returns a tracker backed by store.
func NewFirstTime(store Store) *FirstTime {
	return &FirstTime{store: store}
}

// IsFirstTime is true until Set(false) has been stored. A missing, unreadable
// or malformed value counts as first time.
func (f *FirstTime) IsFirstTime(ctx context.Context) bool {
	raw, ok, err := f.store.Get(ctx, firstTimeKey)
	if err != nil || !ok {
		return true
	}
	first, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return first
}

// Set records whether onboarding should be shown next time.
func (f *FirstTime) Set(ctx context.Context, first bool) error {
	return f.store.Set(ctx, firstTimeKey, strconv.FormatBool(first))
}

// MemoryStore keeps values for the life of the process.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// FileStore keeps values in a JSON object on disk.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", s.path, err)
	}
	return values, nil
}
