package orchestrator

import (
	"sync"

	"github.com/google/uuid"
)

// keyedMutex serializes work per saga identifier. Two requests rehydrating
// the same saga concurrently would otherwise race their fire/persist
// sequences; the repository provides no cross-instance locking, so the
// trigger surface must.
//
// Entries are reference-counted and removed when the last holder releases,
// so the map does not grow with the number of sagas ever seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uuid.UUID]*lockEntry)}
}

// lock blocks until the identifier's lock is held and returns the release
// function.
func (k *keyedMutex) lock(id uuid.UUID) func() {
	k.mu.Lock()
	entry, ok := k.locks[id]
	if !ok {
		entry = &lockEntry{}
		k.locks[id] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
