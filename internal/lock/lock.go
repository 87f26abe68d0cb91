// Package lock provides per-key mutual exclusion for compound
// check-then-act sequences against the user directory, which offers no
// transactions of its own. Locks are process-local; running multiple
// service instances against one directory is not supported.
package lock

import (
	"sort"
	"sync"
)

// Manager is a process-wide table of named locks. Waiters on a key are
// granted ownership in arrival order. There is no acquisition timeout:
// a caller that never releases permanently blocks all future acquirers
// of that key, so every acquisition must pair with a deferred release.
type Manager struct {
	mu   sync.Mutex
	keys map[string]*keyLock
}

type keyLock struct {
	// waiters holds one channel per suspended acquirer, in FIFO order.
	// The lock is held whenever the entry exists in Manager.keys.
	waiters []chan struct{}
}

// Handle is a single-use capability over one acquired key.
type Handle struct {
	m        *Manager
	key      string
	released bool
}

// NewManager creates an empty lock table.
func NewManager() *Manager {
	return &Manager{
		keys: make(map[string]*keyLock),
	}
}

// Acquire blocks until the calling goroutine exclusively owns key, then
// returns a handle that must be released exactly once.
func (m *Manager) Acquire(key string) *Handle {
	m.mu.Lock()
	kl, held := m.keys[key]
	if !held {
		m.keys[key] = &keyLock{}
		m.mu.Unlock()
		return &Handle{m: m, key: key}
	}

	ready := make(chan struct{})
	kl.waiters = append(kl.waiters, ready)
	m.mu.Unlock()

	<-ready
	return &Handle{m: m, key: key}
}

// AcquireMany acquires every key in the set, deduplicated and in sorted
// order regardless of the order the caller supplied. Canonical ordering
// is what prevents two flows locking the same pair of keys from
// deadlocking against each other. Handles are returned in acquisition
// order; release order does not matter.
func (m *Manager) AcquireMany(keys ...string) []*Handle {
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if !seen[key] {
			seen[key] = true
			sorted = append(sorted, key)
		}
	}
	sort.Strings(sorted)

	handles := make([]*Handle, 0, len(sorted))
	for _, key := range sorted {
		handles = append(handles, m.Acquire(key))
	}
	return handles
}

// Release relinquishes ownership of the handle's key, waking the next
// waiter if one is queued. Releasing a handle twice is a programmer
// error and panics rather than silently corrupting the lock table.
func (h *Handle) Release() {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()

	if h.released {
		panic("lock: handle released twice for key " + h.key)
	}
	h.released = true

	kl := h.m.keys[h.key]
	if kl == nil {
		panic("lock: release of unknown key " + h.key)
	}

	if len(kl.waiters) == 0 {
		// Queue drained; reclaim the table entry.
		delete(h.m.keys, h.key)
		return
	}

	next := kl.waiters[0]
	kl.waiters = kl.waiters[1:]
	close(next)
}

// ReleaseAll releases a set of handles, typically the result of
// AcquireMany, in a single deferred call.
func ReleaseAll(handles []*Handle) {
	for _, h := range handles {
		h.Release()
	}
}
