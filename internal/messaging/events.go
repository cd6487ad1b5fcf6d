package messaging

import (
	"time"

	"story-engine/internal/models"

	"github.com/google/uuid"
)

// SessionEventType identifies what happened to a play session.
type SessionEventType string

const (
	EventSessionStarted   SessionEventType = "session_started"
	EventChoiceMade       SessionEventType = "choice_made"
	EventStateUpdated     SessionEventType = "state_updated"
	EventSessionCompleted SessionEventType = "session_completed"
	EventGameSaved        SessionEventType = "game_saved"
	EventGameLoaded       SessionEventType = "game_loaded"
	EventSaveDeleted      SessionEventType = "save_deleted"
)

// SessionEvent is published after a session change has been committed.
type SessionEvent struct {
	EventID     string               `json:"event_id"`
	Type        SessionEventType     `json:"type"`
	SessionID   uuid.UUID            `json:"session_id"`
	StoryID     string               `json:"story_id"`
	UserID      string               `json:"user_id"`
	NodeID      string               `json:"node_id"`
	ChoiceID    string               `json:"choice_id,omitempty"`
	SaveID      *uuid.UUID           `json:"save_id,omitempty"`
	IsCompleted bool                 `json:"is_completed"`
	Status      models.SessionStatus `json:"status,omitempty"`
	Version     int64                `json:"version"`
	OccurredAt  time.Time            `json:"occurred_at"`
}

// NewSessionEvent builds an event from the committed session.
func NewSessionEvent(eventType SessionEventType, session *models.PlaySession) SessionEvent {
	return SessionEvent{
		EventID:     uuid.NewString(),
		Type:        eventType,
		SessionID:   session.ID,
		StoryID:     session.StoryID,
		UserID:      session.UserID,
		NodeID:      session.CurrentNodeID,
		IsCompleted: session.IsCompleted,
		Status:      session.Status(),
		Version:     session.Version,
		OccurredAt:  time.Now().UTC(),
	}
}
