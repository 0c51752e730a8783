package cookie

import (
	"context"
	"sync"
)

// MemoryJar is an in-memory Jar used by tests and by dry-run invocations.
type MemoryJar struct {
	mu      sync.Mutex
	cookies []Cookie
}

// NewMemoryJar returns an empty in-memory jar.
func NewMemoryJar(seed ...Cookie) *MemoryJar {
	return &MemoryJar{cookies: seed}
}

// List returns cookies matching the query.
func (m *MemoryJar) List(_ context.Context, q Query) ([]Cookie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Cookie
	for _, c := range m.cookies {
		if q.Matches(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Set stores the cookie, replacing any existing cookie with the same name
// and domain.
func (m *MemoryJar) Set(_ context.Context, c Cookie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.cookies {
		if existing.Name == c.Name && normalizeDomain(existing.Domain) == normalizeDomain(c.Domain) {
			m.cookies[i] = c
			return nil
		}
	}
	m.cookies = append(m.cookies, c)
	return nil
}

// Remove deletes all cookies matching the query.
func (m *MemoryJar) Remove(_ context.Context, q Query) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.cookies[:0]
	for _, c := range m.cookies {
		if !q.Matches(c) {
			kept = append(kept, c)
		}
	}
	m.cookies = kept
	return nil
}
