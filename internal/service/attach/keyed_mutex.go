package attach

import (
	"sync"

	"github.com/google/uuid"
)

// keyedMutex hands out one mutex per parent id so batches for different
// parents never contend. Entries are dropped when their last user releases.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uuid.UUID]*refMutex)}
}

// get returns the mutex for id without locking it. Every get must be paired
// with a release.
func (k *keyedMutex) get(id uuid.UUID) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	return &m.Mutex
}

func (k *keyedMutex) release(id uuid.UUID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[id]
	if !ok {
		return
	}
	m.refs--
	if m.refs <= 0 {
		delete(k.locks, id)
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
