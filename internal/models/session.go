package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the derived state of a play session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// PlaySession is one player's traversal of one story.
// Version is bumped on every persisted write and guards against lost updates.
type PlaySession struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	StoryID       string      `json:"storyId" db:"story_id"`
	UserID        string      `json:"userId" db:"user_id"`
	CurrentNodeID string      `json:"currentNodeId" db:"current_node_id"`
	GameState     PlayerState `json:"gameState" db:"game_state"`
	IsCompleted   bool        `json:"isCompleted" db:"is_completed"`
	StartedAt     time.Time   `json:"startedAt" db:"started_at"`
	UpdatedAt     time.Time   `json:"updatedAt" db:"updated_at"`
	CompletedAt   *time.Time  `json:"completedAt,omitempty" db:"completed_at"`
	Version       int64       `json:"version" db:"version"`
}

// Status reports whether the session is still playable.
func (s *PlaySession) Status() SessionStatus {
	if s.IsCompleted {
		return SessionCompleted
	}
	return SessionActive
}

// MarshalJSON adds the derived "status" to the stored fields.
func (s PlaySession) MarshalJSON() ([]byte, error) {
	type stored PlaySession
	return json.Marshal(struct {
		stored
		Status SessionStatus `json:"status"`
	}{stored: stored(s), Status: s.Status()})
}

// MoveTo points the session at node and marks it completed when node is an ending.
// Moving to a non-ending node reopens a completed session (used when loading a save).
func (s *PlaySession) MoveTo(node Node, now time.Time) {
	s.CurrentNodeID = node.ID
	s.UpdatedAt = now
	if node.IsEnding() {
		s.Complete(now)
		return
	}
	s.IsCompleted = false
	s.CompletedAt = nil
}

// Complete marks the session completed. Completing twice keeps the first timestamp.
func (s *PlaySession) Complete(now time.Time) {
	s.UpdatedAt = now
	if s.IsCompleted && s.CompletedAt != nil {
		return
	}
	s.IsCompleted = true
	completedAt := now
	s.CompletedAt = &completedAt
}

// SavedGame is an independent point-in-time snapshot of a session.
type SavedGame struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	SessionID     uuid.UUID   `json:"sessionId" db:"session_id"`
	StoryID       string      `json:"storyId" db:"story_id"`
	UserID        string      `json:"userId" db:"user_id"`
	Name          string      `json:"name" db:"name"`
	GameState     PlayerState `json:"gameState" db:"game_state"`
	CurrentNodeID string      `json:"currentNodeId" db:"current_node_id"`
	CreatedAt     time.Time   `json:"createdAt" db:"created_at"`
}

// DefaultSaveName is the name given to a save when the player does not supply one.
func DefaultSaveName(now time.Time) string {
	return "Save " + now.UTC().Format(time.RFC3339)
}

// NodeView is what a player sees at their current position.
type NodeView struct {
	Session PlaySession `json:"session"`
	Node    Node        `json:"node"`
	Choices []Choice    `json:"choices"`
}
