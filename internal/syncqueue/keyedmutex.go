package syncqueue

import "sync"

// keyedMutex grants one exclusive lock per string key, so the consumer
// can serialize operations on the same path (spec section 5) while
// letting different paths proceed concurrently.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu  sync.Mutex
	ref int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is exclusively held by this call. The returned
// func releases it.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	rm, ok := k.locks[key]
	if !ok {
		rm = &refMutex{}
		k.locks[key] = rm
	}
	rm.ref++
	k.mu.Unlock()

	rm.mu.Lock()

	return func() {
		rm.mu.Unlock()
		k.mu.Lock()
		rm.ref--
		if rm.ref == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
