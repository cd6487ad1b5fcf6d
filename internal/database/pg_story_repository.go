package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"story-engine/internal/interfaces"
	"story-engine/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	getStoryQuery = `
        SELECT id, author_id, title, description, start_node_id, is_published, created_at, updated_at
        FROM stories
        WHERE id = $1
    `
	listStoryVariablesQuery = `
        SELECT name, type, COALESCE(default_value, 'null'::jsonb) AS default_value
        FROM story_variables
        WHERE story_id = $1
        ORDER BY position, name
    `
	listStoryItemsQuery = `
        SELECT id, name, description
        FROM story_items
        WHERE story_id = $1
        ORDER BY position, id
    `
	listStoryNodesQuery = `
        SELECT id, story_id, title, content, type
        FROM story_nodes
        WHERE story_id = $1
        ORDER BY position, id
    `
	listStoryChoicesQuery = `
        SELECT id, from_node_id, to_node_id, text, sort_order,
               COALESCE(condition, 'null'::jsonb) AS condition,
               effects
        FROM story_choices
        WHERE story_id = $1
        ORDER BY position, id
    `

	upsertStoryQuery = `
        INSERT INTO stories (id, author_id, title, description, start_node_id, is_published, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        ON CONFLICT (id) DO UPDATE SET
            author_id = EXCLUDED.author_id,
            title = EXCLUDED.title,
            description = EXCLUDED.description,
            start_node_id = EXCLUDED.start_node_id,
            is_published = EXCLUDED.is_published,
            updated_at = NOW()
    `
	deleteStoryChoicesQuery   = `DELETE FROM story_choices WHERE story_id = $1`
	deleteStoryNodesQuery     = `DELETE FROM story_nodes WHERE story_id = $1`
	deleteStoryItemsQuery     = `DELETE FROM story_items WHERE story_id = $1`
	deleteStoryVariablesQuery = `DELETE FROM story_variables WHERE story_id = $1`
	insertStoryVariableQuery  = `INSERT INTO story_variables (story_id, position, name, type, default_value) VALUES ($1, $2, $3, $4, $5)`
	insertStoryItemQuery      = `INSERT INTO story_items (story_id, position, id, name, description) VALUES ($1, $2, $3, $4, $5)`
	insertStoryNodeQuery      = `INSERT INTO story_nodes (story_id, position, id, title, content, type) VALUES ($1, $2, $3, $4, $5, $6)`
	insertStoryChoiceQuery    = `
        INSERT INTO story_choices (story_id, position, id, from_node_id, to_node_id, text, sort_order, condition, effects)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
)

// Compile-time check that pgStoryRepository implements the interface.
var _ interfaces.StoryRepository = (*pgStoryRepository)(nil)

type pgStoryRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgStoryRepository creates a Postgres-backed story repository.
func NewPgStoryRepository(db interfaces.DBTX, logger *zap.Logger) *pgStoryRepository {
	return &pgStoryRepository{
		db:     db,
		logger: logger.Named("PgStoryRepo"),
	}
}

type variableRow struct {
	Name         string              `db:"name"`
	Type         models.VariableType `db:"type"`
	DefaultValue []byte              `db:"default_value"`
}

type choiceRow struct {
	ID         string `db:"id"`
	FromNodeID string `db:"from_node_id"`
	ToNodeID   string `db:"to_node_id"`
	Text       string `db:"text"`
	Order      int    `db:"sort_order"`
	Condition  []byte `db:"condition"`
	Effects    []byte `db:"effects"`
}

// GetSchema loads the story header and all its declarations.
func (r *pgStoryRepository) GetSchema(ctx context.Context, storyID string) (*models.StorySchema, error) {
	log := r.logger.With(zap.String("storyID", storyID))

	schema := &models.StorySchema{}
	if err := pgxscan.Get(ctx, r.db, &schema.Story, getStoryQuery, storyID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Debug("Story not found")
			return nil, models.ErrStoryNotFound
		}
		log.Error("Failed to get story", zap.Error(err))
		return nil, fmt.Errorf("failed to get story %s: %w", storyID, err)
	}

	var variables []variableRow
	if err := pgxscan.Select(ctx, r.db, &variables, listStoryVariablesQuery, storyID); err != nil {
		log.Error("Failed to list story variables", zap.Error(err))
		return nil, fmt.Errorf("failed to list variables of story %s: %w", storyID, err)
	}
	schema.Variables = make([]models.VariableDeclaration, 0, len(variables))
	for _, v := range variables {
		var def any
		if err := json.Unmarshal(v.DefaultValue, &def); err != nil {
			return nil, fmt.Errorf("story %s: decode default of variable %q: %w", storyID, v.Name, err)
		}
		schema.Variables = append(schema.Variables, models.VariableDeclaration{Name: v.Name, Type: v.Type, DefaultValue: def})
	}

	schema.Items = []models.ItemDeclaration{}
	if err := pgxscan.Select(ctx, r.db, &schema.Items, listStoryItemsQuery, storyID); err != nil {
		log.Error("Failed to list story items", zap.Error(err))
		return nil, fmt.Errorf("failed to list items of story %s: %w", storyID, err)
	}

	schema.Nodes = []models.Node{}
	if err := pgxscan.Select(ctx, r.db, &schema.Nodes, listStoryNodesQuery, storyID); err != nil {
		log.Error("Failed to list story nodes", zap.Error(err))
		return nil, fmt.Errorf("failed to list nodes of story %s: %w", storyID, err)
	}

	var choices []choiceRow
	if err := pgxscan.Select(ctx, r.db, &choices, listStoryChoicesQuery, storyID); err != nil {
		log.Error("Failed to list story choices", zap.Error(err))
		return nil, fmt.Errorf("failed to list choices of story %s: %w", storyID, err)
	}
	schema.Choices = make([]models.Choice, 0, len(choices))
	for _, row := range choices {
		choice, err := row.toModel()
		if err != nil {
			log.Error("Stored choice is malformed", zap.String("choiceID", row.ID), zap.Error(err))
			return nil, fmt.Errorf("story %s: %w", storyID, err)
		}
		schema.Choices = append(schema.Choices, choice)
	}

	log.Debug("Story schema loaded",
		zap.Int("nodes", len(schema.Nodes)),
		zap.Int("choices", len(schema.Choices)),
	)
	return schema, nil
}

func (row choiceRow) toModel() (models.Choice, error) {
	choice := models.Choice{
		ID:         row.ID,
		FromNodeID: row.FromNodeID,
		ToNodeID:   row.ToNodeID,
		Text:       row.Text,
		Order:      row.Order,
	}
	if err := choice.Condition.UnmarshalJSON(row.Condition); err != nil {
		return models.Choice{}, fmt.Errorf("choice %q condition: %w", row.ID, err)
	}
	if err := choice.Effects.UnmarshalJSON(row.Effects); err != nil {
		return models.Choice{}, fmt.Errorf("choice %q effects: %w", row.ID, err)
	}
	return choice, nil
}

// SaveSchema replaces the stored story with schema. It must run inside a transaction
// (see WithTx) so readers never see a half-written story.
func (r *pgStoryRepository) SaveSchema(ctx context.Context, schema *models.StorySchema) error {
	storyID := schema.Story.ID
	log := r.logger.With(zap.String("storyID", storyID))

	s := schema.Story
	if _, err := r.db.Exec(ctx, upsertStoryQuery, s.ID, s.AuthorID, s.Title, s.Description, s.StartNodeID, s.IsPublished); err != nil {
		log.Error("Failed to upsert story", zap.Error(err))
		return fmt.Errorf("failed to upsert story %s: %w", storyID, err)
	}

	for _, q := range []string{deleteStoryChoicesQuery, deleteStoryNodesQuery, deleteStoryItemsQuery, deleteStoryVariablesQuery} {
		if _, err := r.db.Exec(ctx, q, storyID); err != nil {
			return fmt.Errorf("failed to clear story %s: %w", storyID, err)
		}
	}

	for i, v := range schema.Variables {
		def, err := json.Marshal(models.NormalizeValue(v.DefaultValue))
		if err != nil {
			return fmt.Errorf("story %s: encode default of variable %q: %w", storyID, v.Name, err)
		}
		if _, err := r.db.Exec(ctx, insertStoryVariableQuery, storyID, i, v.Name, string(v.Type), def); err != nil {
			return fmt.Errorf("failed to insert variable %q of story %s: %w", v.Name, storyID, err)
		}
	}
	for i, it := range schema.Items {
		if _, err := r.db.Exec(ctx, insertStoryItemQuery, storyID, i, it.ID, it.Name, it.Description); err != nil {
			return fmt.Errorf("failed to insert item %q of story %s: %w", it.ID, storyID, err)
		}
	}
	for i, n := range schema.Nodes {
		if _, err := r.db.Exec(ctx, insertStoryNodeQuery, storyID, i, n.ID, n.Title, n.Content, string(n.Type)); err != nil {
			return fmt.Errorf("failed to insert node %q of story %s: %w", n.ID, storyID, err)
		}
	}
	for i, c := range schema.Choices {
		cond, err := c.Condition.MarshalJSON()
		if err != nil {
			return fmt.Errorf("story %s: encode condition of choice %q: %w", storyID, c.ID, err)
		}
		effects, err := c.Effects.MarshalJSON()
		if err != nil {
			return fmt.Errorf("story %s: encode effects of choice %q: %w", storyID, c.ID, err)
		}
		var condArg any
		if !c.Condition.IsZero() {
			condArg = string(cond)
		}
		if _, err := r.db.Exec(ctx, insertStoryChoiceQuery, storyID, i, c.ID, c.FromNodeID, c.ToNodeID, c.Text, c.Order, condArg, string(effects)); err != nil {
			return fmt.Errorf("failed to insert choice %q of story %s: %w", c.ID, storyID, err)
		}
	}

	log.Info("Story schema saved", zap.Int("nodes", len(schema.Nodes)), zap.Int("choices", len(schema.Choices)))
	return nil
}
