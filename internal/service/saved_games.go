package service

import (
	"context"
	"strings"

	"story-engine/internal/messaging"
	"story-engine/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SaveGame snapshots the session's state and node. The snapshot does not follow later changes.
func (s *playSessionServiceImpl) SaveGame(ctx context.Context, userID string, sessionID uuid.UUID, name *string) (*models.SavedGame, error) {
	log := s.sessionLogger(userID, sessionID)
	log.Info("SaveGame called")

	session, err := s.loadOwnedSession(ctx, log, userID, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	saveName := models.DefaultSaveName(now)
	if name != nil && strings.TrimSpace(*name) != "" {
		saveName = strings.TrimSpace(*name)
	}

	save := &models.SavedGame{
		ID:            uuid.New(),
		SessionID:     session.ID,
		StoryID:       session.StoryID,
		UserID:        userID,
		Name:          saveName,
		GameState:     session.GameState.Clone(),
		CurrentNodeID: session.CurrentNodeID,
		CreatedAt:     now,
	}
	if err := s.saves.Create(ctx, save); err != nil {
		return nil, wrapRepoError(log, err, "saved game")
	}

	savesTotal.WithLabelValues("save").Inc()
	log.Info("Game saved", zap.String("saveID", save.ID.String()), zap.String("name", save.Name))

	event := messaging.NewSessionEvent(messaging.EventGameSaved, session)
	event.SaveID = &save.ID
	s.publish(ctx, log, event)
	return save, nil
}

// ListSavedGames returns the session's saves, newest first.
func (s *playSessionServiceImpl) ListSavedGames(ctx context.Context, userID string, sessionID uuid.UUID) ([]*models.SavedGame, error) {
	log := s.sessionLogger(userID, sessionID)

	if _, err := s.loadOwnedSession(ctx, log, userID, sessionID); err != nil {
		return nil, err
	}
	saves, err := s.saves.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, wrapRepoError(log, err, "saved games")
	}
	if saves == nil {
		saves = []*models.SavedGame{}
	}
	return saves, nil
}

// LoadSavedGame overwrites the owning session's state, node and completion flag from the save.
func (s *playSessionServiceImpl) LoadSavedGame(ctx context.Context, userID string, saveID uuid.UUID) (*models.PlaySession, error) {
	log := s.logger.With(zap.String("userID", userID), zap.String("saveID", saveID.String()))
	log.Info("LoadSavedGame called")

	save, err := s.loadOwnedSave(ctx, log, userID, saveID)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("sessionID", save.SessionID.String()))

	updated, events, err := s.changeLocked(ctx, log, userID, save.SessionID, func(session *models.PlaySession) (*models.PlaySession, []messaging.SessionEvent, error) {
		schema, err := s.loadSchema(ctx, log, session.StoryID)
		if err != nil {
			return nil, nil, err
		}
		node, ok := schema.Node(save.CurrentNodeID)
		if !ok {
			log.Error("Saved node no longer exists in the story", zap.String("nodeID", save.CurrentNodeID))
			return nil, nil, models.ErrNodeNotFound
		}

		updated := *session
		updated.GameState = save.GameState.Clone()
		updated.MoveTo(node, s.now())
		if err := s.persist(ctx, log, &updated); err != nil {
			return nil, nil, err
		}

		savesTotal.WithLabelValues("load").Inc()
		if updated.IsCompleted && !session.IsCompleted {
			sessionsCompletedTotal.WithLabelValues("load").Inc()
		}
		log.Info("Saved game loaded", zap.String("nodeID", updated.CurrentNodeID))

		loaded := messaging.NewSessionEvent(messaging.EventGameLoaded, &updated)
		loaded.SaveID = &save.ID
		return &updated, []messaging.SessionEvent{loaded}, nil
	})
	if err != nil {
		return nil, err
	}
	for _, event := range events {
		s.publish(ctx, log, event)
	}
	return updated, nil
}

// DeleteSavedGame removes a save. The session is not touched.
func (s *playSessionServiceImpl) DeleteSavedGame(ctx context.Context, userID string, saveID uuid.UUID) error {
	log := s.logger.With(zap.String("userID", userID), zap.String("saveID", saveID.String()))
	log.Info("DeleteSavedGame called")

	save, err := s.loadOwnedSave(ctx, log, userID, saveID)
	if err != nil {
		return err
	}
	if err := s.saves.Delete(ctx, saveID); err != nil {
		return wrapRepoError(log, err, "saved game")
	}

	savesTotal.WithLabelValues("delete").Inc()
	event := messaging.SessionEvent{
		EventID:    uuid.NewString(),
		Type:       messaging.EventSaveDeleted,
		SessionID:  save.SessionID,
		StoryID:    save.StoryID,
		UserID:     save.UserID,
		NodeID:     save.CurrentNodeID,
		SaveID:     &save.ID,
		OccurredAt: s.now(),
	}
	s.publish(ctx, log, event)
	return nil
}
