package mocks

import (
	"context"

	"story-engine/internal/messaging"

	"github.com/stretchr/testify/mock"
)

// SessionEventPublisher is a testify mock of messaging.SessionEventPublisher.
type SessionEventPublisher struct {
	mock.Mock
}

func (m *SessionEventPublisher) PublishSessionEvent(ctx context.Context, event messaging.SessionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
