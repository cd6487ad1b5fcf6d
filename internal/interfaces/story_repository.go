package interfaces

import (
	"context"

	"story-engine/internal/models"
)

// StoryRepository provides read-only access to authored stories.
//
//go:generate mockery --name StoryRepository --output ./mocks --outpkg mocks --case=underscore
type StoryRepository interface {
	// GetSchema returns the full schema of a story.
	// Returns models.ErrStoryNotFound if the story does not exist.
	GetSchema(ctx context.Context, storyID string) (*models.StorySchema, error)
}
