package kvstore

import (
	"context"
	"sync"
)

type memBackend struct {
	m     map[string]string
	mutex sync.RWMutex
}

// NewMemory creates a process-local store.
func NewMemory() Store {
	return &memBackend{m: make(map[string]string)}
}

func (b *memBackend) Get(_ context.Context, k string) (string, error) {
	b.mutex.RLock()
	v, ok := b.m[k]
	b.mutex.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (b *memBackend) Set(_ context.Context, k, v string) error {
	b.mutex.Lock()
	b.m[k] = v
	b.mutex.Unlock()
	return nil
}

func (b *memBackend) Del(_ context.Context, k string) error {
	b.mutex.Lock()
	delete(b.m, k)
	b.mutex.Unlock()
	return nil
}

func (b *memBackend) Close() error { return nil }
