// Package oauth2 implements external-identity linking: provider authorize
// URLs with PKCE and CSRF correlation, and the one-shot code exchange.
package oauth2

import (
	"sync"
	"time"
)

type pkceEntry struct {
	verifier  string
	expiresAt time.Time
}

// PkceStore correlates a CSRF state token with its PKCE verifier between the
// authorize redirect and the matching callback. It is the only shared
// mutable resource in the service and is guarded by one process-wide lock.
// Entries are one-shot: Take removes on first successful lookup.
type PkceStore struct {
	mu      sync.RWMutex
	entries map[string]pkceEntry
	ttl     time.Duration
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// NewPkceStore creates a store whose entries expire after ttl.
func NewPkceStore(ttl time.Duration) *PkceStore {
	return newPkceStore(ttl, time.Now)
}

// NewPkceStoreAt creates a store with an injected clock, for tests.
func NewPkceStoreAt(ttl time.Duration, now func() time.Time) *PkceStore {
	return newPkceStore(ttl, now)
}

func newPkceStore(ttl time.Duration, now func() time.Time) *PkceStore {
	return &PkceStore{
		entries: make(map[string]pkceEntry),
		ttl:     ttl,
		now:     now,
		done:    make(chan struct{}),
	}
}

// Insert records the verifier for a state token.
func (s *PkceStore) Insert(state, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[state] = pkceEntry{verifier: verifier, expiresAt: s.now().Add(s.ttl)}
}

// Take atomically looks up and removes the verifier for a state token. Two
// callbacks racing on the same state must not both succeed, so the lookup
// and delete happen under a single write lock. An expired entry is removed
// and reported exactly like an absent one.
func (s *PkceStore) Take(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[state]
	if !ok {
		return "", false
	}
	delete(s.entries, state)
	if s.now().After(entry.expiresAt) {
		return "", false
	}
	return entry.verifier, true
}

// Len reports the number of live entries, counting expired-but-unswept ones.
func (s *PkceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep evicts expired entries and returns how many were removed.
func (s *PkceStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for state, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, state)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps expired entries on the given interval until Close.
func (s *PkceStore) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.done:
				return
			}
		}
	}()
}

// Close stops the janitor. Safe to call more than once.
func (s *PkceStore) Close() {
	s.once.Do(func() { close(s.done) })
}
