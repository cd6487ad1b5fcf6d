package mocks

import (
	"context"

	"story-engine/internal/models"

	"github.com/stretchr/testify/mock"
)

// StoryRepository is a testify mock of interfaces.StoryRepository.
type StoryRepository struct {
	mock.Mock
}

func (m *StoryRepository) GetSchema(ctx context.Context, storyID string) (*models.StorySchema, error) {
	args := m.Called(ctx, storyID)
	if schema, ok := args.Get(0).(*models.StorySchema); ok {
		return schema, args.Error(1)
	}
	return nil, args.Error(1)
}
