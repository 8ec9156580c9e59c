package memory

import (
	"context"
	"sync"
)

// DraftStorage is a process-local key/value store for drafts.
type DraftStorage struct {
	mu     sync.Mutex
	data   map[string]string
	sets   int
	SetErr error
}

func NewDraftStorage() *DraftStorage {
	return &DraftStorage{data: make(map[string]string)}
}

func (s *DraftStorage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *DraftStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SetErr != nil {
		return s.SetErr
	}
	s.data[key] = value
	s.sets++
	return nil
}

func (s *DraftStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Sets returns how many writes reached the store.
func (s *DraftStorage) Sets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

// Put stores a raw value, bypassing the write counter.
func (s *DraftStorage) Put(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}
