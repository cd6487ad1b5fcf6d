package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"story-engine/internal/interfaces"
	"story-engine/internal/interfaces/mocks"
	messagingmocks "story-engine/internal/messaging/mocks"
	"story-engine/internal/models"
	"story-engine/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockDeps struct {
	stories   *mocks.StoryRepository
	sessions  *mocks.SessionRepository
	saves     *mocks.SavedGameRepository
	locker    *mocks.SessionLocker
	publisher *messagingmocks.SessionEventPublisher
	svc       service.PlaySessionService
}

func newMockDeps() *mockDeps {
	d := &mockDeps{
		stories:   new(mocks.StoryRepository),
		sessions:  new(mocks.SessionRepository),
		saves:     new(mocks.SavedGameRepository),
		locker:    new(mocks.SessionLocker),
		publisher: new(messagingmocks.SessionEventPublisher),
	}
	d.svc = service.NewPlaySessionService(d.stories, d.sessions, d.saves, d.locker, d.publisher, service.Options{}, zap.NewNop())
	return d
}

func (d *mockDeps) assertExpectations(t *testing.T) {
	d.stories.AssertExpectations(t)
	d.sessions.AssertExpectations(t)
	d.saves.AssertExpectations(t)
	d.locker.AssertExpectations(t)
	d.publisher.AssertExpectations(t)
}

func storedSession(id uuid.UUID) *models.PlaySession {
	now := time.Now().UTC()
	return &models.PlaySession{
		ID:            id,
		StoryID:       "cave",
		UserID:        playerID,
		CurrentNodeID: "A",
		GameState: models.PlayerState{
			Variables: map[string]any{"health": float64(100)},
			Inventory: []string{},
			Fields:    map[string]any{},
		},
		StartedAt: now,
		UpdatedAt: now,
		Version:   3,
	}
}

func noopUnlock() interfaces.UnlockFunc { return func() {} }

func TestStartSessionErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("story repository failure is hidden", func(t *testing.T) {
		d := newMockDeps()
		d.stories.On("GetSchema", mock.Anything, "cave").Return(nil, errors.New("connection refused"))

		_, err := d.svc.StartSession(ctx, playerID, "cave", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrInternalServer)
		assert.NotContains(t, err.Error(), "connection refused")
		d.assertExpectations(t)
	})

	t.Run("session insert failure", func(t *testing.T) {
		d := newMockDeps()
		d.stories.On("GetSchema", mock.Anything, "cave").Return(caveStory(true), nil)
		d.sessions.On("Create", mock.Anything, mock.AnythingOfType("*models.PlaySession")).Return(errors.New("disk full"))

		_, err := d.svc.StartSession(ctx, playerID, "cave", nil)
		assert.ErrorIs(t, err, models.ErrInternalServer)
		d.assertExpectations(t)
	})

	t.Run("publish failure does not fail the call", func(t *testing.T) {
		d := newMockDeps()
		d.stories.On("GetSchema", mock.Anything, "cave").Return(caveStory(true), nil)
		d.sessions.On("Create", mock.Anything, mock.AnythingOfType("*models.PlaySession")).Return(nil)
		d.publisher.On("PublishSessionEvent", mock.Anything, mock.Anything).Return(errors.New("broker down"))

		session, err := d.svc.StartSession(ctx, playerID, "cave", nil)
		require.NoError(t, err)
		assert.Equal(t, "A", session.CurrentNodeID)
		d.assertExpectations(t)
	})
}

func TestMakeChoiceErrors(t *testing.T) {
	ctx := context.Background()
	sessionID := uuid.New()
	lockKey := "session:" + sessionID.String()

	t.Run("lock not acquired", func(t *testing.T) {
		d := newMockDeps()
		d.sessions.On("GetByID", mock.Anything, sessionID).Return(storedSession(sessionID), nil)
		d.locker.On("Lock", mock.Anything, lockKey).Return(nil, models.ErrSessionLocked)

		_, err := d.svc.MakeChoice(ctx, playerID, sessionID, "fight", nil)
		assert.ErrorIs(t, err, models.ErrSessionLocked)
		assert.ErrorIs(t, err, models.ErrConcurrentUpdate)
		d.assertExpectations(t)
	})

	t.Run("locker backend failure", func(t *testing.T) {
		d := newMockDeps()
		d.sessions.On("GetByID", mock.Anything, sessionID).Return(storedSession(sessionID), nil)
		d.locker.On("Lock", mock.Anything, lockKey).Return(nil, errors.New("redis timeout"))

		_, err := d.svc.MakeChoice(ctx, playerID, sessionID, "fight", nil)
		assert.ErrorIs(t, err, models.ErrInternalServer)
		d.assertExpectations(t)
	})

	t.Run("version conflict surfaces and releases the lock", func(t *testing.T) {
		d := newMockDeps()
		released := false
		d.locker.On("Lock", mock.Anything, lockKey).Return(interfaces.UnlockFunc(func() { released = true }), nil)
		d.sessions.On("GetByID", mock.Anything, sessionID).Return(storedSession(sessionID), nil)
		d.stories.On("GetSchema", mock.Anything, "cave").Return(caveStory(true), nil)
		d.sessions.On("Update", mock.Anything, mock.MatchedBy(func(s *models.PlaySession) bool {
			return s.Version == 3 && s.CurrentNodeID == "B"
		})).Return(models.ErrConcurrentUpdate)

		_, err := d.svc.MakeChoice(ctx, playerID, sessionID, "fight", nil)
		assert.ErrorIs(t, err, models.ErrConcurrentUpdate)
		assert.True(t, released)
		d.assertExpectations(t)
	})

	t.Run("missing session is reported without locking", func(t *testing.T) {
		d := newMockDeps()
		d.sessions.On("GetByID", mock.Anything, sessionID).Return(nil, models.ErrNotFound)

		_, err := d.svc.MakeChoice(ctx, playerID, sessionID, "fight", nil)
		assert.ErrorIs(t, err, models.ErrSessionNotFound)
		d.locker.AssertNotCalled(t, "Lock", mock.Anything, mock.Anything)
		d.assertExpectations(t)
	})

	t.Run("session deleted while waiting for the lock", func(t *testing.T) {
		d := newMockDeps()
		d.sessions.On("GetByID", mock.Anything, sessionID).Return(storedSession(sessionID), nil).Once()
		d.locker.On("Lock", mock.Anything, lockKey).Return(noopUnlock(), nil)
		d.sessions.On("GetByID", mock.Anything, sessionID).Return(nil, models.ErrNotFound).Once()

		_, err := d.svc.MakeChoice(ctx, playerID, sessionID, "fight", nil)
		assert.ErrorIs(t, err, models.ErrSessionNotFound)
		d.assertExpectations(t)
	})

	t.Run("stored state is not mutated on failure", func(t *testing.T) {
		d := newMockDeps()
		stored := storedSession(sessionID)
		d.locker.On("Lock", mock.Anything, lockKey).Return(noopUnlock(), nil)
		d.sessions.On("GetByID", mock.Anything, sessionID).Return(stored, nil)
		d.stories.On("GetSchema", mock.Anything, "cave").Return(caveStory(true), nil)
		d.sessions.On("Update", mock.Anything, mock.Anything).Return(errors.New("write failed"))

		_, err := d.svc.MakeChoice(ctx, playerID, sessionID, "fight", nil)
		assert.ErrorIs(t, err, models.ErrInternalServer)
		assert.Equal(t, float64(100), stored.GameState.Variables["health"])
		assert.Equal(t, "A", stored.CurrentNodeID)
		assert.Equal(t, int64(3), stored.Version)
		d.assertExpectations(t)
	})

	t.Run("success publishes after the lock is released", func(t *testing.T) {
		d := newMockDeps()
		locked := false
		d.sessions.On("GetByID", mock.Anything, sessionID).Return(storedSession(sessionID), nil)
		d.locker.On("Lock", mock.Anything, lockKey).Run(func(mock.Arguments) { locked = true }).
			Return(interfaces.UnlockFunc(func() { locked = false }), nil)
		d.stories.On("GetSchema", mock.Anything, "cave").Return(caveStory(true), nil)
		d.sessions.On("Update", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			assert.True(t, locked)
			args.Get(1).(*models.PlaySession).Version++
		}).Return(nil)
		var lockedWhilePublishing []bool
		d.publisher.On("PublishSessionEvent", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			lockedWhilePublishing = append(lockedWhilePublishing, locked)
		}).Return(nil)

		updated, err := d.svc.MakeChoice(ctx, playerID, sessionID, "fight", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(4), updated.Version)
		assert.Equal(t, float64(80), updated.GameState.Variables["health"])
		assert.Equal(t, []bool{false}, lockedWhilePublishing)
		d.assertExpectations(t)
	})
}

func TestSessionOwnershipIsCheckedBeforeLocking(t *testing.T) {
	ctx := context.Background()
	sessionID := uuid.New()

	calls := map[string]func(svc service.PlaySessionService) error{
		"make choice": func(svc service.PlaySessionService) error {
			_, err := svc.MakeChoice(ctx, strangerID, sessionID, "fight", nil)
			return err
		},
		"update state": func(svc service.PlaySessionService) error {
			_, err := svc.UpdateGameState(ctx, strangerID, sessionID, &models.StatePatch{Inventory: []string{"sword"}})
			return err
		},
		"complete": func(svc service.PlaySessionService) error {
			_, err := svc.CompleteSession(ctx, strangerID, sessionID)
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			d := newMockDeps()
			d.sessions.On("GetByID", mock.Anything, sessionID).Return(storedSession(sessionID), nil)

			err := call(d.svc)
			assert.ErrorIs(t, err, models.ErrForbidden)
			d.locker.AssertNotCalled(t, "Lock", mock.Anything, mock.Anything)
			d.assertExpectations(t)
		})
	}
}

func TestSavedGameErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("list repository failure", func(t *testing.T) {
		d := newMockDeps()
		sessionID := uuid.New()
		d.sessions.On("GetByID", mock.Anything, sessionID).Return(storedSession(sessionID), nil)
		d.saves.On("ListBySession", mock.Anything, sessionID).Return(nil, errors.New("timeout"))

		_, err := d.svc.ListSavedGames(ctx, playerID, sessionID)
		assert.ErrorIs(t, err, models.ErrInternalServer)
		d.assertExpectations(t)
	})

	t.Run("load of a save whose node was removed", func(t *testing.T) {
		d := newMockDeps()
		sessionID := uuid.New()
		save := &models.SavedGame{
			ID: uuid.New(), SessionID: sessionID, StoryID: "cave", UserID: playerID,
			Name: "old", GameState: models.PlayerState{}.Clone(), CurrentNodeID: "gone",
		}
		d.saves.On("GetByID", mock.Anything, save.ID).Return(save, nil)
		d.locker.On("Lock", mock.Anything, "session:"+sessionID.String()).Return(noopUnlock(), nil)
		d.sessions.On("GetByID", mock.Anything, sessionID).Return(storedSession(sessionID), nil)
		d.stories.On("GetSchema", mock.Anything, "cave").Return(caveStory(true), nil)

		_, err := d.svc.LoadSavedGame(ctx, playerID, save.ID)
		assert.ErrorIs(t, err, models.ErrNodeNotFound)
		d.assertExpectations(t)
	})
}
