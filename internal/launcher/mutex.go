package launcher

import "sync"

// keyedMutex serializes operations per experiment id. The record store does
// no cross-process locking beyond atomic rename, so the launcher is the only
// line of defense against two workers mutating the same id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for id, creating it on first use, and returns the
// unlock function.
func (k *keyedMutex) lock(id string) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
