package mocks

import (
	"context"

	"story-engine/internal/interfaces"

	"github.com/stretchr/testify/mock"
)

// SessionLocker is a testify mock of interfaces.SessionLocker.
type SessionLocker struct {
	mock.Mock
}

func (m *SessionLocker) Lock(ctx context.Context, key string) (interfaces.UnlockFunc, error) {
	args := m.Called(ctx, key)
	if unlock, ok := args.Get(0).(interfaces.UnlockFunc); ok {
		return unlock, args.Error(1)
	}
	return nil, args.Error(1)
}
