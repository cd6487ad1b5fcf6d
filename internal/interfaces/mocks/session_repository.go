package mocks

import (
	"context"

	"story-engine/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// SessionRepository is a testify mock of interfaces.SessionRepository.
type SessionRepository struct {
	mock.Mock
}

func (m *SessionRepository) Create(ctx context.Context, session *models.PlaySession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *SessionRepository) GetByID(ctx context.Context, sessionID uuid.UUID) (*models.PlaySession, error) {
	args := m.Called(ctx, sessionID)
	if session, ok := args.Get(0).(*models.PlaySession); ok {
		return session, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionRepository) Update(ctx context.Context, session *models.PlaySession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

// SavedGameRepository is a testify mock of interfaces.SavedGameRepository.
type SavedGameRepository struct {
	mock.Mock
}

func (m *SavedGameRepository) Create(ctx context.Context, save *models.SavedGame) error {
	args := m.Called(ctx, save)
	return args.Error(0)
}

func (m *SavedGameRepository) GetByID(ctx context.Context, saveID uuid.UUID) (*models.SavedGame, error) {
	args := m.Called(ctx, saveID)
	if save, ok := args.Get(0).(*models.SavedGame); ok {
		return save, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SavedGameRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.SavedGame, error) {
	args := m.Called(ctx, sessionID)
	if saves, ok := args.Get(0).([]*models.SavedGame); ok {
		return saves, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SavedGameRepository) Delete(ctx context.Context, saveID uuid.UUID) error {
	args := m.Called(ctx, saveID)
	return args.Error(0)
}
