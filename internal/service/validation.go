package service

import (
	"context"

	"story-engine/internal/mechanics"
	"story-engine/internal/models"

	"go.uber.org/zap"
)

// ValidateConditionsAndEffects checks authoring input against the story's declarations.
// Only the story's author may validate.
func (s *playSessionServiceImpl) ValidateConditionsAndEffects(ctx context.Context, userID, storyID string, condition models.Condition, effects []models.Effect) (models.ValidationResult, error) {
	log := s.logger.With(zap.String("userID", userID), zap.String("storyID", storyID))

	schema, err := s.loadSchema(ctx, log, storyID)
	if err != nil {
		return models.ValidationResult{}, err
	}
	if schema.Story.AuthorID != userID {
		log.Warn("Non-author attempted to validate story content", zap.String("authorID", schema.Story.AuthorID))
		return models.ValidationResult{}, models.ErrForbidden
	}

	result := mechanics.Validate(condition, effects, schema)
	if !result.Valid {
		log.Debug("Validation found problems", zap.Strings("errors", result.Errors))
	}
	return result, nil
}
