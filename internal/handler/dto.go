package handler

import (
	"story-engine/internal/models"
)

// startSessionRequest is the body of POST /sessions.
type startSessionRequest struct {
	StoryID        string  `json:"storyId" validate:"required"`
	StartingNodeID *string `json:"startingNodeId,omitempty" validate:"omitempty,min=1"`
}

// makeChoiceRequest is the optional body of POST /sessions/:id/choices/:choiceId.
type makeChoiceRequest struct {
	GameStateUpdate *models.StatePatch `json:"gameStateUpdate,omitempty"`
}

type saveGameRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
}

// validateRequest carries authoring input; both parts are optional.
type validateRequest struct {
	Condition models.ConditionNode `json:"condition"`
	Effects   models.EffectList    `json:"effects"`
}

// savedGameListResponse wraps the list so it can grow pagination fields later.
type savedGameListResponse struct {
	Data []*models.SavedGame `json:"data"`
}

type choiceListResponse struct {
	Data []models.Choice `json:"data"`
}
