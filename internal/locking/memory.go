package locking

import (
	"context"
	"fmt"
	"sync"

	"story-engine/internal/interfaces"
	"story-engine/internal/models"
)

var _ interfaces.SessionLocker = (*MemoryLocker)(nil)

// MemoryLocker is a process-local SessionLocker for single-instance deployments and tests.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// keyLock is a one-slot semaphore; refs counts holders plus waiters.
type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*keyLock)}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (interfaces.UnlockFunc, error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl)
		return nil, fmt.Errorf("%w: %s", models.ErrSessionLocked, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(key, kl)
		})
	}, nil
}

func (l *MemoryLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}
