package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data    Data
	expires time.Time
}

// sweepInterval bounds how often save scans for expired entries.
const sweepInterval = time.Minute

// MemoryStore keeps sessions in process. Expired entries are dropped when
// read and swept from time to time on writes.
type MemoryStore struct {
	ops
	mu        sync.Mutex
	entries   map[string]memoryEntry
	ttl       time.Duration
	now       func() time.Time
	nextSweep time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
	s.ops = ops{b: s}
	return s
}

func (s *MemoryStore) load(_ context.Context, id string) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return Data{}, ErrNotFound
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, id)
		return Data{}, ErrNotFound
	}
	return e.data, nil
}

func (s *MemoryStore) save(_ context.Context, id string, d Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !now.Before(s.nextSweep) {
		for k, e := range s.entries {
			if !now.Before(e.expires) {
				delete(s.entries, k)
			}
		}
		s.nextSweep = now.Add(sweepInterval)
	}
	s.entries[id] = memoryEntry{data: d, expires: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
	return nil
}

// Len reports the number of stored sessions, including expired ones not yet
// swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
