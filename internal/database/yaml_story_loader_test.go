package database_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"story-engine/internal/database"
	"story-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const forestStory = `
story:
  id: forest
  authorId: author-1
  title: The Forest
  startNodeId: A
  isPublished: true
variables:
  - name: health
    type: integer
    defaultValue: 100
  - name: brave
    type: boolean
items:
  - id: potion
    name: Potion
nodes:
  - id: A
    title: Edge of the forest
    type: choice
  - id: B
    title: Clearing
    type: ending
choices:
  - id: go
    fromNodeId: A
    toNodeId: B
    text: Walk in
    condition:
      type: and
      children:
        - type: variable
          name: health
          operator: gt
          value: 50
        - type: item
          itemId: potion
    effects:
      - type: modifyVariable
        name: health
        operator: sub
        amount: 20
      - type: removeItem
        itemId: potion
`

func TestParseStoryYAML(t *testing.T) {
	t.Run("valid story", func(t *testing.T) {
		schema, err := database.ParseStoryYAML([]byte(forestStory))
		require.NoError(t, err)

		assert.Equal(t, "forest", schema.Story.ID)
		assert.True(t, schema.Story.IsPublished)
		require.Len(t, schema.Nodes, 2)
		assert.Equal(t, "forest", schema.Nodes[0].StoryID)

		health, ok := schema.Variable("health")
		require.True(t, ok)
		assert.Equal(t, float64(100), health.DefaultValue)

		choice, ok := schema.Choice("go")
		require.True(t, ok)
		and, ok := choice.Condition.Condition.(models.AndCondition)
		require.True(t, ok)
		require.Len(t, and.Children, 2)
		assert.Equal(t, models.VariableCondition{Name: "health", Operator: models.OpGt, Value: float64(50)}, and.Children[0])
		assert.Equal(t, models.ItemCondition{ItemID: "potion"}, and.Children[1])

		require.Len(t, choice.Effects, 2)
		assert.Equal(t, models.ModifyVariableEffect{Name: "health", Operator: models.OpSub, Amount: float64(20)}, choice.Effects[0])
		assert.Equal(t, models.RemoveItemEffect{ItemID: "potion"}, choice.Effects[1])
	})

	t.Run("undeclared variable is rejected", func(t *testing.T) {
		doc := `
story: {id: s, startNodeId: A}
nodes:
  - {id: A, type: choice}
  - {id: B, type: ending}
choices:
  - id: c
    fromNodeId: A
    toNodeId: B
    condition: {type: variable, name: mana, operator: gt, value: 1}
`
		_, err := database.ParseStoryYAML([]byte(doc))
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrValidation)
		assert.Contains(t, err.Error(), `variable "mana" is not declared`)
	})

	t.Run("missing story id", func(t *testing.T) {
		_, err := database.ParseStoryYAML([]byte("nodes: []\n"))
		assert.ErrorIs(t, err, models.ErrBadRequest)
	})

	t.Run("empty document", func(t *testing.T) {
		_, err := database.ParseStoryYAML([]byte(""))
		assert.ErrorIs(t, err, models.ErrBadRequest)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := database.ParseStoryYAML([]byte("story: [unclosed"))
		assert.Error(t, err)
	})
}

func TestLoadStoryDir(t *testing.T) {
	t.Run("loads yaml files and ignores others", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "forest.yaml"), []byte(forestStory), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# stories"), 0o600))

		repo, err := database.LoadStoryDir(dir, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, []string{"forest"}, repo.StoryIDs())

		schema, err := repo.GetSchema(context.Background(), "forest")
		require.NoError(t, err)
		assert.Equal(t, "The Forest", schema.Story.Title)

		_, err = repo.GetSchema(context.Background(), "missing")
		assert.ErrorIs(t, err, models.ErrStoryNotFound)
	})

	t.Run("duplicate story ids fail the load", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(forestStory), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte(forestStory), 0o600))

		_, err := database.LoadStoryDir(dir, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already defined")
	})

	t.Run("missing dir", func(t *testing.T) {
		_, err := database.LoadStoryDir(filepath.Join(t.TempDir(), "nope"), zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("directory without stories gives an empty repository", func(t *testing.T) {
		repo, err := database.LoadStoryDir(t.TempDir(), zap.NewNop())
		require.NoError(t, err)
		require.NotNil(t, repo)
		assert.Empty(t, repo.StoryIDs())
	})
}

func TestMemoryStoryRepositoryReturnsCopies(t *testing.T) {
	schema, err := database.ParseStoryYAML([]byte(forestStory))
	require.NoError(t, err)
	repo, err := database.NewMemoryStoryRepository(schema)
	require.NoError(t, err)

	first, err := repo.GetSchema(context.Background(), "forest")
	require.NoError(t, err)
	first.Nodes[0].Title = "changed"

	second, err := repo.GetSchema(context.Background(), "forest")
	require.NoError(t, err)
	assert.Equal(t, "Edge of the forest", second.Nodes[0].Title)
}

func TestBundledStoriesAreValid(t *testing.T) {
	repo, err := database.LoadStoryDir(filepath.Join("..", "..", "stories"), zap.NewNop())
	require.NoError(t, err)
	assert.Contains(t, repo.StoryIDs(), "cave")

	schema, err := repo.GetSchema(context.Background(), "cave")
	require.NoError(t, err)
	assert.Equal(t, "entrance", schema.Story.StartNodeID)
}
