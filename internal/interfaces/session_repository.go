package interfaces

import (
	"context"

	"story-engine/internal/models"

	"github.com/google/uuid"
)

// SessionRepository persists play sessions.
//
//go:generate mockery --name SessionRepository --output ./mocks --outpkg mocks --case=underscore
type SessionRepository interface {
	// Create inserts a new session. session.Version is set to 1.
	Create(ctx context.Context, session *models.PlaySession) error

	// GetByID returns models.ErrSessionNotFound if no session has the given ID.
	GetByID(ctx context.Context, sessionID uuid.UUID) (*models.PlaySession, error)

	// Update writes the session if its stored version still equals session.Version and
	// bumps session.Version on success. Returns models.ErrConcurrentUpdate when the
	// stored version moved on and models.ErrSessionNotFound when the row is gone.
	Update(ctx context.Context, session *models.PlaySession) error
}

// SavedGameRepository persists saved-game snapshots.
//
//go:generate mockery --name SavedGameRepository --output ./mocks --outpkg mocks --case=underscore
type SavedGameRepository interface {
	Create(ctx context.Context, save *models.SavedGame) error

	// GetByID returns models.ErrSavedGameNotFound if no save has the given ID.
	GetByID(ctx context.Context, saveID uuid.UUID) (*models.SavedGame, error)

	// ListBySession returns the session's saves, newest first. Empty slice if none.
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.SavedGame, error)

	// Delete returns models.ErrSavedGameNotFound if the save does not exist.
	Delete(ctx context.Context, saveID uuid.UUID) error
}
