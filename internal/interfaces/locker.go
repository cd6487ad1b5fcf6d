package interfaces

import "context"

// UnlockFunc releases a lock taken by SessionLocker.Lock. It is safe to call once.
type UnlockFunc func()

// SessionLocker serializes mutations of a single play session.
// Lock returns models.ErrSessionLocked when the lock cannot be taken before ctx is done.
//
//go:generate mockery --name SessionLocker --output ./mocks --outpkg mocks --case=underscore
type SessionLocker interface {
	Lock(ctx context.Context, key string) (UnlockFunc, error)
}
