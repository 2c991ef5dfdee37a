package revocation

import (
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
)

// Memory is a process-local Registry. Entries are keyed by the token
// fingerprint so raw credentials are not retained.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]time.Time // fingerprint -> evict after

	Now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]time.Time),
		Now:     time.Now,
	}
}

func (m *Memory) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	key := cryptox.FingerprintToken(token)
	until := evictAt(expiresAt, m.Now())

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.entries[key]; !ok || until.After(cur) {
		m.entries[key] = until
	}
	return nil
}

func (m *Memory) IsRevoked(_ context.Context, token string) (bool, error) {
	key := cryptox.FingerprintToken(token)

	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key]
	return ok, nil
}

// Sweep evicts entries whose credential has expired by now and returns how
// many were removed.
func (m *Memory) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for key, until := range m.entries {
		if !now.Before(until) {
			delete(m.entries, key)
			n++
		}
	}
	return n
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
