package session

import (
	"fmt"
	"sync"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps the session id for the lifetime of the process
type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (s *MemoryStore) Get() (string, bool) {
	if x, found := s.cache.Get(Key); found {
		return x.(string), true
	}
	return "", false
}

func (s *MemoryStore) Set(id string) error {
	if id == "" {
		return fmt.Errorf("empty session id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Add fails when the key exists, which is exactly first-write-wins
	_ = s.cache.Add(Key, id, cache.NoExpiration)
	return nil
}

func (s *MemoryStore) Clear() error {
	s.cache.Delete(Key)
	return nil
}
