// Package locks serializes operations per identity.
//
// Provisioning and teardown must never run concurrently for the same server
// or storage identity, while unrelated identities proceed in parallel. A
// KeyedMutex holds one mutex per key and drops the entry once the last
// holder releases it, so the map does not grow with identity churn.
package locks

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex provides one mutex per string key.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty KeyedMutex.
func New() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*entry)}
}

// Lock blocks until the mutex for key is held and returns the release
// function. Callers must invoke the returned function exactly once,
// typically via defer.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
