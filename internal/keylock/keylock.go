// Package keylock serializes work per key (a child, a submission, a
// redemption) inside one process.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Mutex hands out one lock per key. Entries are reference counted and
// removed once no goroutine holds or waits on them.
type Mutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Mutex {
	return &Mutex{
		entries: make(map[string]*entry),
	}
}

// Lock blocks until key is free and returns the matching unlock func.
func (m *Mutex) Lock(key string) func() {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()

		m.mu.Lock()
		defer m.mu.Unlock()
		e.refs--
		if e.refs == 0 {
			delete(m.entries, key)
		}
	}
}

// Len returns the number of keys currently held or awaited.
func (m *Mutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
