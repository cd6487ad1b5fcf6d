package service

import (
	"context"
	"fmt"
	"time"

	"story-engine/internal/mechanics"
	"story-engine/internal/messaging"
	"story-engine/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StartSession creates a session at the story's start node (or startingNodeID).
func (s *playSessionServiceImpl) StartSession(ctx context.Context, userID, storyID string, startingNodeID *string) (*models.PlaySession, error) {
	log := s.logger.With(zap.String("userID", userID), zap.String("storyID", storyID))
	log.Info("StartSession called")

	schema, err := s.loadSchema(ctx, log, storyID)
	if err != nil {
		return nil, err
	}
	if !schema.CanBePlayedBy(userID) {
		log.Warn("Attempt to play an unpublished story of another author", zap.String("authorID", schema.Story.AuthorID))
		return nil, fmt.Errorf("%w: story is not published", models.ErrForbidden)
	}

	node, ok := schema.StartNode(startingNodeID)
	if !ok {
		log.Warn("Starting node does not belong to the story", zap.Stringp("startingNodeID", startingNodeID))
		return nil, models.ErrNodeNotFound
	}

	now := s.now()
	session := &models.PlaySession{
		ID:        uuid.New(),
		StoryID:   schema.Story.ID,
		UserID:    userID,
		GameState: models.NewPlayerState(schema.Variables),
		StartedAt: now,
	}
	session.MoveTo(node, now)

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, wrapRepoError(log, err, "play session")
	}

	sessionsStartedTotal.Inc()
	log.Info("Play session started", zap.String("sessionID", session.ID.String()), zap.String("nodeID", node.ID))
	s.publish(ctx, log, messaging.NewSessionEvent(messaging.EventSessionStarted, session))
	if session.IsCompleted {
		sessionsCompletedTotal.WithLabelValues("ending").Inc()
		s.publish(ctx, log, messaging.NewSessionEvent(messaging.EventSessionCompleted, session))
	}
	return session, nil
}

// GetSession returns the session as stored.
func (s *playSessionServiceImpl) GetSession(ctx context.Context, userID string, sessionID uuid.UUID) (*models.PlaySession, error) {
	log := s.sessionLogger(userID, sessionID)
	return s.loadOwnedSession(ctx, log, userID, sessionID)
}

// GetCurrentNode returns the session, its current node and the choices available there.
func (s *playSessionServiceImpl) GetCurrentNode(ctx context.Context, userID string, sessionID uuid.UUID) (*models.NodeView, error) {
	log := s.sessionLogger(userID, sessionID)

	session, err := s.loadOwnedSession(ctx, log, userID, sessionID)
	if err != nil {
		return nil, err
	}
	schema, err := s.loadSchema(ctx, log, session.StoryID)
	if err != nil {
		return nil, err
	}
	node, ok := schema.Node(session.CurrentNodeID)
	if !ok {
		log.Error("Session points at a node missing from the story", zap.String("nodeID", session.CurrentNodeID))
		return nil, models.ErrNodeNotFound
	}
	return &models.NodeView{
		Session: *session,
		Node:    node,
		Choices: mechanics.AvailableChoices(schema, node.ID, session.GameState),
	}, nil
}

// GetAvailableChoices evaluates the current node's choices against the live state.
func (s *playSessionServiceImpl) GetAvailableChoices(ctx context.Context, userID string, sessionID uuid.UUID) ([]models.Choice, error) {
	view, err := s.GetCurrentNode(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return view.Choices, nil
}

// MakeChoice takes a choice from the current node. The condition is re-checked against the
// stored state, effects are applied, the client patch is merged on top and the node pointer
// advances; the result is written with one versioned update.
func (s *playSessionServiceImpl) MakeChoice(ctx context.Context, userID string, sessionID uuid.UUID, choiceID string, gameStateUpdate *models.StatePatch) (*models.PlaySession, error) {
	start := time.Now()
	defer func() { choiceDuration.Observe(time.Since(start).Seconds()) }()

	log := s.sessionLogger(userID, sessionID).With(zap.String("choiceID", choiceID))
	log.Info("MakeChoice called")

	return s.mutateSession(ctx, log, userID, sessionID, func(session *models.PlaySession) (*models.PlaySession, []messaging.SessionEvent, error) {
		if session.IsCompleted {
			choicesTotal.WithLabelValues("completed_session").Inc()
			log.Warn("Attempt to make a choice in a completed session")
			return nil, nil, models.ErrSessionCompleted
		}

		schema, err := s.loadSchema(ctx, log, session.StoryID)
		if err != nil {
			return nil, nil, err
		}

		var (
			choice models.Choice
			found  bool
		)
		for _, c := range schema.ChoicesFrom(session.CurrentNodeID) {
			if c.ID == choiceID {
				choice, found = c, true
				break
			}
		}
		if !found {
			choicesTotal.WithLabelValues("not_found").Inc()
			log.Warn("Choice is not an outgoing choice of the current node", zap.String("nodeID", session.CurrentNodeID))
			return nil, nil, models.ErrChoiceNotFound
		}
		if !mechanics.IsChoiceAvailable(choice, session.GameState) {
			choicesTotal.WithLabelValues("unavailable").Inc()
			log.Warn("Choice condition does not hold for the stored state")
			return nil, nil, models.ErrChoiceUnavailable
		}

		target, ok := schema.Node(choice.ToNodeID)
		if !ok {
			log.Error("Choice points at a node missing from the story", zap.String("toNodeID", choice.ToNodeID))
			return nil, nil, models.ErrNodeNotFound
		}

		result := mechanics.Apply(choice.Effects, session.GameState, schema.ItemCatalog())
		for _, skipped := range result.Skipped {
			skippedEffectsTotal.WithLabelValues(string(skipped.Type)).Inc()
			log.Warn("Effect skipped",
				zap.Int("index", skipped.Index),
				zap.String("effectType", string(skipped.Type)),
				zap.String("reason", skipped.Reason),
			)
		}

		newState := result.State
		if !gameStateUpdate.IsEmpty() {
			if s.opts.AcceptClientState {
				newState = newState.Merge(gameStateUpdate)
			} else {
				log.Warn("Client state update ignored: client state is not accepted")
			}
		}

		updated := *session
		updated.GameState = newState
		updated.MoveTo(target, s.now())
		if err := s.persist(ctx, log, &updated); err != nil {
			return nil, nil, err
		}

		choicesTotal.WithLabelValues("made").Inc()
		log.Info("Choice made", zap.String("nodeID", updated.CurrentNodeID), zap.Bool("completed", updated.IsCompleted))

		made := messaging.NewSessionEvent(messaging.EventChoiceMade, &updated)
		made.ChoiceID = choice.ID
		events := []messaging.SessionEvent{made}
		if updated.IsCompleted {
			sessionsCompletedTotal.WithLabelValues("ending").Inc()
			events = append(events, messaging.NewSessionEvent(messaging.EventSessionCompleted, &updated))
		}
		return &updated, events, nil
	})
}

// UpdateGameState overwrites parts of the live state directly, bypassing conditions and effects.
// It is allowed on completed sessions too; the node pointer and completion flag are untouched.
func (s *playSessionServiceImpl) UpdateGameState(ctx context.Context, userID string, sessionID uuid.UUID, patch *models.StatePatch) (*models.PlaySession, error) {
	log := s.sessionLogger(userID, sessionID)
	log.Info("UpdateGameState called")

	if patch == nil {
		return nil, fmt.Errorf("%w: game state update is empty", models.ErrBadRequest)
	}

	return s.mutateSession(ctx, log, userID, sessionID, func(session *models.PlaySession) (*models.PlaySession, []messaging.SessionEvent, error) {
		if patch.IsEmpty() {
			return session, nil, nil
		}

		updated := *session
		updated.GameState = session.GameState.Merge(patch)
		updated.UpdatedAt = s.now()
		if err := s.persist(ctx, log, &updated); err != nil {
			return nil, nil, err
		}
		return &updated, []messaging.SessionEvent{messaging.NewSessionEvent(messaging.EventStateUpdated, &updated)}, nil
	})
}

// CompleteSession marks the session completed. Completing a completed session is a no-op.
func (s *playSessionServiceImpl) CompleteSession(ctx context.Context, userID string, sessionID uuid.UUID) (*models.PlaySession, error) {
	log := s.sessionLogger(userID, sessionID)
	log.Info("CompleteSession called")

	return s.mutateSession(ctx, log, userID, sessionID, func(session *models.PlaySession) (*models.PlaySession, []messaging.SessionEvent, error) {
		if session.IsCompleted {
			return session, nil, nil
		}

		updated := *session
		updated.Complete(s.now())
		if err := s.persist(ctx, log, &updated); err != nil {
			return nil, nil, err
		}

		sessionsCompletedTotal.WithLabelValues("explicit").Inc()
		return &updated, []messaging.SessionEvent{messaging.NewSessionEvent(messaging.EventSessionCompleted, &updated)}, nil
	})
}
