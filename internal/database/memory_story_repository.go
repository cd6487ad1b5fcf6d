package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"story-engine/internal/interfaces"
	"story-engine/internal/models"
)

var _ interfaces.StoryRepository = (*MemoryStoryRepository)(nil)

// MemoryStoryRepository serves schemas held in memory. Callers get deep copies.
type MemoryStoryRepository struct {
	mu      sync.RWMutex
	schemas map[string][]byte
}

// NewMemoryStoryRepository creates a repository preloaded with schemas.
func NewMemoryStoryRepository(schemas ...*models.StorySchema) (*MemoryStoryRepository, error) {
	r := &MemoryStoryRepository{schemas: make(map[string][]byte, len(schemas))}
	for _, s := range schemas {
		if err := r.Put(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Put adds or replaces a schema.
func (r *MemoryStoryRepository) Put(schema *models.StorySchema) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encode story %s: %w", schema.Story.ID, err)
	}
	r.mu.Lock()
	r.schemas[schema.Story.ID] = data
	r.mu.Unlock()
	return nil
}

// StoryIDs lists the ids of every stored story.
func (r *MemoryStoryRepository) StoryIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.schemas))
	for id := range r.schemas {
		ids = append(ids, id)
	}
	return ids
}

func (r *MemoryStoryRepository) GetSchema(_ context.Context, storyID string) (*models.StorySchema, error) {
	r.mu.RLock()
	data, ok := r.schemas[storyID]
	r.mu.RUnlock()
	if !ok {
		return nil, models.ErrStoryNotFound
	}
	schema := &models.StorySchema{}
	if err := json.Unmarshal(data, schema); err != nil {
		return nil, fmt.Errorf("decode story %s: %w", storyID, err)
	}
	return schema, nil
}
