// Package lock provides keyed mutexes for per-user and per-order critical
// sections within a single process.
package lock

import "sync"

// Keyed hands out one mutex per key. Mutexes are retained for the process
// lifetime; the key space (users, orders in flight) is bounded in practice.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *Keyed) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
