package service

import "sync"

// keyedMutex serializes the read-check-write sequence per product name so
// two concurrent requests cannot both observe a stale availability figure.
// Entries are never evicted; the key space is the product catalog.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{m: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.m[key]
	if !ok {
		l = &sync.Mutex{}
		k.m[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
