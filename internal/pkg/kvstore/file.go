package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ignite/warmup-scheduler/internal/pkg/clock"
)

// FileStore keeps keys in process memory and, when path is set, rewrites a
// local JSON file after every mutation. It is the single-instance fallback:
// there is no cross-process locking, so two processes sharing one file will
// overwrite each other.
type FileStore struct {
	mu      sync.Mutex
	path    string
	clock   clock.Clock
	entries map[string]fileEntry
}

type fileEntry struct {
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewFileStore opens (or creates) the JSON file at path. An empty path gives
// a purely in-memory store. A file that exists but cannot be decoded is
// rejected rather than silently reset.
func NewFileStore(path string, clk clock.Clock) (*FileStore, error) {
	if clk == nil {
		clk = &clock.System{}
	}
	s := &FileStore{
		path:    path,
		clock:   clk,
		entries: make(map[string]fileEntry),
	}
	if path == "" {
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading store file: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.entries); err != nil {
			return nil, fmt.Errorf("decoding store file %s: %w", path, err)
		}
	}
	s.purgeLocked()
	return s, nil
}

// NewMemoryStore is a FileStore without a backing file.
func NewMemoryStore(clk clock.Clock) *FileStore {
	s, _ := NewFileStore("", clk)
	return s
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveLocked(key)
	if !ok {
		return "", false, nil
	}
	return e.Value, true, nil
}

func (s *FileStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := fileEntry{Value: value}
	if ttl > 0 {
		exp := s.clock.Now().Add(ttl)
		e.ExpiresAt = &exp
	}
	s.entries[key] = e
	return s.flushLocked()
}

func (s *FileStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return s.flushLocked()
}

func (s *FileStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	e, ok := s.liveLocked(key)
	if ok {
		v, err := strconv.ParseInt(e.Value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("incr %s: %w", key, ErrNotInteger)
		}
		n = v
	} else {
		e = fileEntry{}
	}
	n++
	e.Value = strconv.FormatInt(n, 10)
	s.entries[key] = e
	return n, s.flushLocked()
}

func (s *FileStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveLocked(key)
	if !ok {
		return nil
	}
	exp := s.clock.Now().Add(ttl)
	e.ExpiresAt = &exp
	s.entries[key] = e
	return s.flushLocked()
}

func (s *FileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.entries {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if _, ok := s.liveLocked(k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// liveLocked returns the entry for key unless it has expired, in which case
// the entry is dropped.
func (s *FileStore) liveLocked(key string) (fileEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return fileEntry{}, false
	}
	if e.ExpiresAt != nil && !s.clock.Now().Before(*e.ExpiresAt) {
		delete(s.entries, key)
		return fileEntry{}, false
	}
	return e, true
}

func (s *FileStore) purgeLocked() {
	for k := range s.entries {
		s.liveLocked(k)
	}
}

// flushLocked rewrites the backing file through a temp file + rename so a
// crash never leaves a half-written store behind.
func (s *FileStore) flushLocked() error {
	if s.path == "" {
		return nil
	}
	s.purgeLocked()

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding store: %v", ErrUnavailable, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: writing store: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: replacing store: %v", ErrUnavailable, err)
	}
	return nil
}
