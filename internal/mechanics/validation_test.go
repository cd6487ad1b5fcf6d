package mechanics_test

import (
	"errors"
	"strings"
	"testing"

	"story-engine/internal/mechanics"
	"story-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validationSchema() *models.StorySchema {
	return &models.StorySchema{
		Story: models.Story{ID: "s1", AuthorID: "author", StartNodeID: "A"},
		Variables: []models.VariableDeclaration{
			{Name: "health", Type: models.VariableInteger, DefaultValue: 100},
		},
		Items: []models.ItemDeclaration{{ID: "potion", Name: "Potion"}},
		Nodes: []models.Node{
			{ID: "A", StoryID: "s1", Type: models.NodeStory},
			{ID: "B", StoryID: "s1", Type: models.NodeEnding},
		},
		Choices: []models.Choice{{
			ID: "go", FromNodeID: "A", ToNodeID: "B",
			Condition: models.ConditionNode{Condition: models.VariableCondition{Name: "health", Operator: models.OpGt, Value: 50}},
			Effects:   models.EffectList{models.ModifyVariableEffect{Name: "health", Operator: models.OpSub, Amount: 20}},
		}},
	}
}

func containsError(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

func TestValidate(t *testing.T) {
	schema := validationSchema()

	t.Run("well-formed trees", func(t *testing.T) {
		res := mechanics.Validate(
			models.AndCondition{Children: []models.Condition{
				models.VariableCondition{Name: "health", Operator: models.OpGt, Value: 50},
				models.NotCondition{Child: models.ItemCondition{ItemID: "potion"}},
			}},
			[]models.Effect{
				models.SetVariableEffect{Name: "health", Value: 10},
				models.AddItemEffect{ItemID: "potion"},
				models.RemoveItemEffect{ItemID: "potion"},
			},
			schema,
		)
		assert.True(t, res.Valid)
		assert.NotNil(t, res.Errors)
		assert.Empty(t, res.Errors)
		assert.NoError(t, res.Err())
	})

	t.Run("undeclared variable is named", func(t *testing.T) {
		res := mechanics.Validate(models.VariableCondition{Name: "nonexistent", Operator: models.OpEq, Value: 1}, nil, schema)
		assert.False(t, res.Valid)
		require.Len(t, res.Errors, 1)
		assert.Contains(t, res.Errors[0], "nonexistent")

		err := res.Err()
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrValidation))
	})

	t.Run("reports every problem", func(t *testing.T) {
		res := mechanics.Validate(
			models.OrCondition{Children: []models.Condition{
				models.ItemCondition{ItemID: "ghost"},
				models.UnknownCondition{Tag: "dice"},
				models.VariableCondition{Name: "health", Operator: "between"},
			}},
			[]models.Effect{
				models.ModifyVariableEffect{Name: "health", Operator: models.OpAdd, Amount: "many"},
				models.ModifyVariableEffect{Name: "mana", Operator: "pow", Amount: 1},
				models.UnknownEffect{Tag: "teleport"},
				models.AddItemEffect{ItemID: "dragon"},
			},
			schema,
		)
		assert.False(t, res.Valid)
		for _, want := range []string{`"ghost"`, `"dice"`, `"between"`, `amount for "health"`, `"mana"`, `"pow"`, `"teleport"`, `"dragon"`} {
			assert.True(t, containsError(res.Errors, want), "missing error mentioning %s in %v", want, res.Errors)
		}
		assert.Len(t, res.Errors, 8)
	})

	t.Run("nil trees are valid", func(t *testing.T) {
		res := mechanics.Validate(nil, nil, schema)
		assert.True(t, res.Valid)
	})
}

func TestValidateSchema(t *testing.T) {
	t.Run("valid story", func(t *testing.T) {
		res := mechanics.ValidateSchema(validationSchema())
		assert.True(t, res.Valid, "%v", res.Errors)
	})

	t.Run("graph problems", func(t *testing.T) {
		schema := validationSchema()
		schema.Story.StartNodeID = "Z"
		schema.Nodes = append(schema.Nodes, models.Node{ID: "A", Type: "portal"})
		schema.Choices = append(schema.Choices,
			models.Choice{ID: "dead", FromNodeID: "B", ToNodeID: "A"},
			models.Choice{ID: "lost", FromNodeID: "A", ToNodeID: "nowhere",
				Effects: models.EffectList{models.AddItemEffect{ItemID: "ghost"}}},
		)

		res := mechanics.ValidateSchema(schema)
		assert.False(t, res.Valid)
		for _, want := range []string{
			`start node "Z"`,
			`duplicate node "A"`,
			`unknown type "portal"`,
			`ending node "B"`,
			`target node "nowhere"`,
			`choice "lost".effects[0]: item "ghost" is not declared`,
		} {
			assert.True(t, containsError(res.Errors, want), "missing %q in %v", want, res.Errors)
		}
	})

	t.Run("nil schema", func(t *testing.T) {
		assert.False(t, mechanics.ValidateSchema(nil).Valid)
	})
}
