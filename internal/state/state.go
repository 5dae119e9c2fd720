// Package state tracks the proxy's health status for the /health
// endpoint. It deliberately does not persist session or in-flight request
// data, per spec.md's non-goals; the session count it reports always comes
// from the live session.Table, not from this store.
package state

import "sync/atomic"

// Health is the point-in-time snapshot the /health endpoint renders.
type Health struct {
	Status string
}

// Store is how the health status is held. The in-memory implementation is
// the default; a Redis-backed one lets multiple replicas behind a load
// balancer agree on a single reported status.
type Store interface {
	Load() Health
	Store(Health)
}

// memoryStore implements Store with an atomic.Value, safe for concurrent
// use within a single process.
type memoryStore struct {
	v atomic.Value
}

// NewMemoryStore returns a Store initialized to "starting".
func NewMemoryStore() Store {
	m := &memoryStore{}
	m.v.Store(Health{Status: "starting"})
	return m
}

func (m *memoryStore) Load() Health {
	if h, ok := m.v.Load().(Health); ok {
		return h
	}
	return Health{Status: "unknown"}
}

func (m *memoryStore) Store(h Health) {
	m.v.Store(h)
}
