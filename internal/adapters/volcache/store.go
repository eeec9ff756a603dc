package volcache

import (
	"sync"
	"time"
)

// Store is an in-memory last-known-volume cache. Entries expire after the
// configured lifetime so a stale reading is never preferred over asking the
// player. The cache is best-effort UI state and is not persisted.
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

type entry struct {
	level float64
	muted bool
	at    time.Time
}

// New creates a volume cache with the given entry lifetime.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Store{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Put records the volume last seen or set for a player.
func (s *Store) Put(playerID string, level float64, muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[playerID] = entry{level: level, muted: muted, at: s.now()}
}

// Get reports the cached volume; fresh is false when the entry is missing
// or older than the cache lifetime.
func (s *Store) Get(playerID string) (float64, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[playerID]
	if !ok || s.now().Sub(e.at) > s.ttl {
		return 0, false, false
	}
	return e.level, e.muted, true
}
