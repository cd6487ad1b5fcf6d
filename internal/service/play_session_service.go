package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"story-engine/internal/interfaces"
	"story-engine/internal/messaging"
	"story-engine/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlaySessionService drives play sessions through a story.
// Every method takes the authenticated user's id; sessions and saves owned by
// another user yield models.ErrForbidden.
type PlaySessionService interface {
	StartSession(ctx context.Context, userID, storyID string, startingNodeID *string) (*models.PlaySession, error)
	GetSession(ctx context.Context, userID string, sessionID uuid.UUID) (*models.PlaySession, error)
	GetCurrentNode(ctx context.Context, userID string, sessionID uuid.UUID) (*models.NodeView, error)
	GetAvailableChoices(ctx context.Context, userID string, sessionID uuid.UUID) ([]models.Choice, error)
	MakeChoice(ctx context.Context, userID string, sessionID uuid.UUID, choiceID string, gameStateUpdate *models.StatePatch) (*models.PlaySession, error)
	UpdateGameState(ctx context.Context, userID string, sessionID uuid.UUID, patch *models.StatePatch) (*models.PlaySession, error)
	CompleteSession(ctx context.Context, userID string, sessionID uuid.UUID) (*models.PlaySession, error)

	SaveGame(ctx context.Context, userID string, sessionID uuid.UUID, name *string) (*models.SavedGame, error)
	ListSavedGames(ctx context.Context, userID string, sessionID uuid.UUID) ([]*models.SavedGame, error)
	LoadSavedGame(ctx context.Context, userID string, saveID uuid.UUID) (*models.PlaySession, error)
	DeleteSavedGame(ctx context.Context, userID string, saveID uuid.UUID) error

	ValidateConditionsAndEffects(ctx context.Context, userID, storyID string, condition models.Condition, effects []models.Effect) (models.ValidationResult, error)
}

// Options tune the service behaviour.
type Options struct {
	// AcceptClientState merges the client's gameStateUpdate on top of effect output in MakeChoice.
	AcceptClientState bool
}

type playSessionServiceImpl struct {
	stories   interfaces.StoryRepository
	sessions  interfaces.SessionRepository
	saves     interfaces.SavedGameRepository
	locker    interfaces.SessionLocker
	publisher messaging.SessionEventPublisher
	opts      Options
	now       func() time.Time
	logger    *zap.Logger
}

// NewPlaySessionService wires the service. A nil publisher disables session events.
func NewPlaySessionService(
	stories interfaces.StoryRepository,
	sessions interfaces.SessionRepository,
	saves interfaces.SavedGameRepository,
	locker interfaces.SessionLocker,
	publisher messaging.SessionEventPublisher,
	opts Options,
	logger *zap.Logger,
) PlaySessionService {
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	return &playSessionServiceImpl{
		stories:   stories,
		sessions:  sessions,
		saves:     saves,
		locker:    locker,
		publisher: publisher,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.Named("PlaySessionService"),
	}
}

// wrapRepoError keeps domain errors and hides everything else behind ErrInternalServer.
func wrapRepoError(log *zap.Logger, err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrConcurrentUpdate) {
		return err
	}
	log.Error("Repository call failed", zap.String("entity", what), zap.Error(err))
	return fmt.Errorf("%w: %s", models.ErrInternalServer, what)
}

func (s *playSessionServiceImpl) loadSchema(ctx context.Context, log *zap.Logger, storyID string) (*models.StorySchema, error) {
	schema, err := s.stories.GetSchema(ctx, storyID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Warn("Story not found", zap.String("storyID", storyID))
			return nil, models.ErrStoryNotFound
		}
		return nil, wrapRepoError(log, err, "story")
	}
	return schema, nil
}

func (s *playSessionServiceImpl) loadOwnedSession(ctx context.Context, log *zap.Logger, userID string, sessionID uuid.UUID) (*models.PlaySession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Warn("Play session not found")
			return nil, models.ErrSessionNotFound
		}
		return nil, wrapRepoError(log, err, "play session")
	}
	if session.UserID != userID {
		log.Warn("User attempted to access a session they do not own", zap.String("ownerID", session.UserID))
		return nil, models.ErrForbidden
	}
	return session, nil
}

func (s *playSessionServiceImpl) loadOwnedSave(ctx context.Context, log *zap.Logger, userID string, saveID uuid.UUID) (*models.SavedGame, error) {
	save, err := s.saves.GetByID(ctx, saveID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Warn("Saved game not found")
			return nil, models.ErrSavedGameNotFound
		}
		return nil, wrapRepoError(log, err, "saved game")
	}
	if save.UserID != userID {
		log.Warn("User attempted to access a save they do not own", zap.String("ownerID", save.UserID))
		return nil, models.ErrForbidden
	}
	return save, nil
}

// lockSession serializes writers of one session. The returned unlock is never nil.
func (s *playSessionServiceImpl) lockSession(ctx context.Context, log *zap.Logger, sessionID uuid.UUID) (interfaces.UnlockFunc, error) {
	unlock, err := s.locker.Lock(ctx, "session:"+sessionID.String())
	if err != nil {
		log.Warn("Failed to acquire session lock", zap.Error(err))
		if errors.Is(err, models.ErrConcurrentUpdate) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: session lock", models.ErrInternalServer)
	}
	if unlock == nil {
		unlock = func() {}
	}
	return unlock, nil
}

// sessionChange derives the new session from the one read under the lock and returns
// the events to publish once the lock is released.
type sessionChange func(session *models.PlaySession) (*models.PlaySession, []messaging.SessionEvent, error)

// mutateSession checks ownership before contending for the lock, then applies change to a
// fresh read under the lock and publishes its events after unlocking.
func (s *playSessionServiceImpl) mutateSession(ctx context.Context, log *zap.Logger, userID string, sessionID uuid.UUID, change sessionChange) (*models.PlaySession, error) {
	if _, err := s.loadOwnedSession(ctx, log, userID, sessionID); err != nil {
		return nil, err
	}
	updated, events, err := s.changeLocked(ctx, log, userID, sessionID, change)
	if err != nil {
		return nil, err
	}
	for _, event := range events {
		s.publish(ctx, log, event)
	}
	return updated, nil
}

func (s *playSessionServiceImpl) changeLocked(ctx context.Context, log *zap.Logger, userID string, sessionID uuid.UUID, change sessionChange) (*models.PlaySession, []messaging.SessionEvent, error) {
	unlock, err := s.lockSession(ctx, log, sessionID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	session, err := s.loadOwnedSession(ctx, log, userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return change(session)
}

// persist writes the derived session with a single versioned update.
func (s *playSessionServiceImpl) persist(ctx context.Context, log *zap.Logger, session *models.PlaySession) error {
	if err := s.sessions.Update(ctx, session); err != nil {
		if errors.Is(err, models.ErrConcurrentUpdate) {
			log.Warn("Session changed concurrently, update rejected", zap.Int64("version", session.Version))
		}
		return wrapRepoError(log, err, "play session")
	}
	return nil
}

// publish never fails the caller: the change is already committed.
func (s *playSessionServiceImpl) publish(ctx context.Context, log *zap.Logger, event messaging.SessionEvent) {
	if err := s.publisher.PublishSessionEvent(ctx, event); err != nil {
		log.Error("Failed to publish session event", zap.String("eventType", string(event.Type)), zap.Error(err))
	}
}

func (s *playSessionServiceImpl) sessionLogger(userID string, sessionID uuid.UUID) *zap.Logger {
	return s.logger.With(zap.String("userID", userID), zap.String("sessionID", sessionID.String()))
}
