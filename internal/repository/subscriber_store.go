package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"chart-signal-bot/internal/domain"
)

// SubscriberStore keeps the chat ids that receive broadcasts in a JSON file
// shaped {"subscribers": [..]}. A missing file is an empty list.
type SubscriberStore struct {
	mu     sync.Mutex
	path   string
	ids    map[int64]struct{}
	loaded bool
}

func NewSubscriberStore(path string) *SubscriberStore {
	return &SubscriberStore{path: path, ids: map[int64]struct{}{}}
}

func (s *SubscriberStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *SubscriberStore) loadLocked() error {
	s.ids = map[int64]struct{}{}
	s.loaded = true

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read subscribers: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}
	var file domain.Subscribers
	if err := json.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("decode subscribers %s: %w", s.path, err)
	}
	for _, id := range file.Subscribers {
		s.ids[id] = struct{}{}
	}
	return nil
}

func (s *SubscriberStore) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	return s.loadLocked()
}

// Add registers chatID. It reports whether the id was new.
func (s *SubscriberStore) Add(chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return false, err
	}
	if _, ok := s.ids[chatID]; ok {
		return false, nil
	}
	s.ids[chatID] = struct{}{}
	if err := s.saveLocked(); err != nil {
		delete(s.ids, chatID)
		return false, err
	}
	return true, nil
}

func (s *SubscriberStore) Remove(chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	if _, ok := s.ids[chatID]; !ok {
		return nil
	}
	delete(s.ids, chatID)
	if err := s.saveLocked(); err != nil {
		s.ids[chatID] = struct{}{}
		return err
	}
	return nil
}

// List returns the subscribers in ascending order.
func (s *SubscriberStore) List() ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return s.sortedLocked(), nil
}

func (s *SubscriberStore) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return 0, err
	}
	return len(s.ids), nil
}

func (s *SubscriberStore) sortedLocked() []int64 {
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// saveLocked replaces the file atomically so a crash never leaves it half written.
func (s *SubscriberStore) saveLocked() error {
	raw, err := json.MarshalIndent(domain.Subscribers{Subscribers: s.sortedLocked()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode subscribers: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create subscriber dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".subscribers-*.json")
	if err != nil {
		return fmt.Errorf("create temp subscriber file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write subscribers: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close subscribers: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace subscribers: %w", err)
	}
	return nil
}
