package cache

import (
	"sync"
	"time"
)

// memoryRecord pairs a cached entry with the modification time of its
// backing disk file as observed when the record was stored. A zero
// fileMtime means no backing file was observed (memory-only operation).
// The mtime is a cheap dirty-check against the disk tier, not a
// correctness guarantee.
type memoryRecord struct {
	entry     Entry
	fileMtime time.Time
}

// memoryStore is the process-local tier: a map from key to memoryRecord
// guarded by a reader/writer lock. Concurrent readers proceed together;
// writers are exclusive.
type memoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]memoryRecord)}
}

func (s *memoryStore) get(key string) (memoryRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	return rec, ok
}

func (s *memoryStore) put(key string, rec memoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = rec
}

func (s *memoryStore) delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
}

func (s *memoryStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]memoryRecord)
}
