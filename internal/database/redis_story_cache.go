package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"story-engine/internal/interfaces"
	"story-engine/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const storySchemaKeyPrefix = "story_schema:"

var _ interfaces.StoryRepository = (*cachedStoryRepository)(nil)

// cachedStoryRepository puts a Redis read-through cache in front of another StoryRepository.
// Cache failures are logged and fall through to the source.
type cachedStoryRepository struct {
	source interfaces.StoryRepository
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedStoryRepository wraps source with a Redis cache holding schemas for ttl.
func NewCachedStoryRepository(source interfaces.StoryRepository, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) interfaces.StoryRepository {
	return &cachedStoryRepository{
		source: source,
		client: client,
		ttl:    ttl,
		logger: logger.Named("StoryCache"),
	}
}

func (r *cachedStoryRepository) GetSchema(ctx context.Context, storyID string) (*models.StorySchema, error) {
	key := storySchemaKeyPrefix + storyID
	log := r.logger.With(zap.String("storyID", storyID))

	data, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		schema := &models.StorySchema{}
		decodeErr := json.Unmarshal(data, schema)
		if decodeErr == nil {
			return schema, nil
		}
		log.Warn("Cached story schema is corrupt, reloading", zap.Error(decodeErr))
	case errors.Is(err, redis.Nil):
	default:
		log.Warn("Failed to read story schema from cache", zap.Error(err))
	}

	schema, err := r.source.GetSchema(ctx, storyID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(schema); err != nil {
		log.Warn("Failed to encode story schema for cache", zap.Error(err))
	} else if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		log.Warn("Failed to cache story schema", zap.Error(err))
	}
	return schema, nil
}

// InvalidateStory drops a cached schema, e.g. after an import.
func InvalidateStory(ctx context.Context, client redis.UniversalClient, storyID string) error {
	return client.Del(ctx, storySchemaKeyPrefix+storyID).Err()
}
