package mechanics

import (
	"fmt"

	"story-engine/internal/models"
)

// Validate checks a condition tree and an effect list against the story's declarations.
// It reports one error per problem and never stops at the first one.
func Validate(cond models.Condition, effects []models.Effect, schema *models.StorySchema) models.ValidationResult {
	v := newValidator(schema)
	v.condition("condition", cond)
	v.effects("effects", effects)
	return v.result()
}

// ValidateSchema checks the story graph and every choice's condition and effects.
func ValidateSchema(schema *models.StorySchema) models.ValidationResult {
	if schema == nil {
		return models.ValidationResult{Valid: false, Errors: []string{"story schema is empty"}}
	}
	v := newValidator(schema)

	if schema.Story.ID == "" {
		v.addf("story: id is empty")
	}

	seenVars := make(map[string]bool, len(schema.Variables))
	for i, d := range schema.Variables {
		switch {
		case d.Name == "":
			v.addf("variables[%d]: name is empty", i)
		case seenVars[d.Name]:
			v.addf("variables[%d]: duplicate variable %q", i, d.Name)
		}
		seenVars[d.Name] = true
		switch d.Type {
		case models.VariableInteger, models.VariableBoolean, models.VariableString:
		default:
			v.addf("variables[%d]: variable %q has unknown type %q", i, d.Name, d.Type)
		}
	}

	seenItems := make(map[string]bool, len(schema.Items))
	for i, it := range schema.Items {
		switch {
		case it.ID == "":
			v.addf("items[%d]: id is empty", i)
		case seenItems[it.ID]:
			v.addf("items[%d]: duplicate item %q", i, it.ID)
		}
		seenItems[it.ID] = true
	}

	nodes := make(map[string]models.Node, len(schema.Nodes))
	for i, n := range schema.Nodes {
		switch {
		case n.ID == "":
			v.addf("nodes[%d]: id is empty", i)
		case nodes[n.ID].ID != "":
			v.addf("nodes[%d]: duplicate node %q", i, n.ID)
		}
		if !n.Type.Valid() {
			v.addf("node %q: unknown type %q", n.ID, n.Type)
		}
		if n.StoryID != "" && n.StoryID != schema.Story.ID {
			v.addf("node %q: belongs to story %q", n.ID, n.StoryID)
		}
		nodes[n.ID] = n
	}

	if _, ok := nodes[schema.Story.StartNodeID]; !ok {
		v.addf("story: start node %q does not exist", schema.Story.StartNodeID)
	}

	seenChoices := make(map[string]bool, len(schema.Choices))
	for i, c := range schema.Choices {
		prefix := fmt.Sprintf("choice %q", c.ID)
		switch {
		case c.ID == "":
			prefix = fmt.Sprintf("choices[%d]", i)
			v.addf("%s: id is empty", prefix)
		case seenChoices[c.ID]:
			v.addf("%s: duplicate choice", prefix)
		}
		seenChoices[c.ID] = true

		from, ok := nodes[c.FromNodeID]
		if !ok {
			v.addf("%s: source node %q does not exist", prefix, c.FromNodeID)
		} else if from.IsEnding() {
			v.addf("%s: ending node %q cannot have outgoing choices", prefix, c.FromNodeID)
		}
		if _, ok := nodes[c.ToNodeID]; !ok {
			v.addf("%s: target node %q does not exist", prefix, c.ToNodeID)
		}

		v.condition(prefix+".condition", c.Condition.Condition)
		v.effects(prefix+".effects", c.Effects)
	}

	return v.result()
}

type validator struct {
	variables map[string]bool
	items     map[string]bool
	errors    []string
}

func newValidator(schema *models.StorySchema) *validator {
	v := &validator{variables: map[string]bool{}, items: map[string]bool{}}
	if schema != nil {
		for _, d := range schema.Variables {
			v.variables[d.Name] = true
		}
		for _, it := range schema.Items {
			v.items[it.ID] = true
		}
	}
	return v
}

func (v *validator) addf(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) result() models.ValidationResult {
	if len(v.errors) == 0 {
		return models.ValidationResult{Valid: true, Errors: []string{}}
	}
	return models.ValidationResult{Valid: false, Errors: v.errors}
}

func (v *validator) condition(path string, cond models.Condition) {
	if cond == nil {
		return
	}
	switch c := cond.(type) {
	case models.VariableCondition:
		if c.Name == "" {
			v.addf("%s: variable name is empty", path)
		} else if !v.variables[c.Name] {
			v.addf("%s: variable %q is not declared", path, c.Name)
		}
		if !c.Operator.Valid() {
			v.addf("%s: unknown comparison operator %q", path, c.Operator)
		}
	case models.ItemCondition:
		v.item(path, c.ItemID)
	case models.AndCondition:
		for i, child := range c.Children {
			v.condition(fmt.Sprintf("%s.children[%d]", path, i), child)
		}
	case models.OrCondition:
		for i, child := range c.Children {
			v.condition(fmt.Sprintf("%s.children[%d]", path, i), child)
		}
	case models.NotCondition:
		v.condition(path+".child", c.Child)
	case models.UnknownCondition:
		v.addf("%s: unknown condition type %q", path, c.Tag)
	default:
		v.addf("%s: unsupported condition %T", path, cond)
	}
}

func (v *validator) effects(path string, effects []models.Effect) {
	for i, effect := range effects {
		p := fmt.Sprintf("%s[%d]", path, i)
		switch e := effect.(type) {
		case nil:
			v.addf("%s: effect is empty", p)
		case models.SetVariableEffect:
			v.variable(p, e.Name)
		case models.ModifyVariableEffect:
			v.variable(p, e.Name)
			if !e.Operator.Valid() {
				v.addf("%s: unknown arithmetic operator %q", p, e.Operator)
			}
			if _, ok := models.AsNumber(e.Amount); !ok {
				v.addf("%s: amount for %q is not numeric", p, e.Name)
			}
		case models.AddItemEffect:
			v.item(p, e.ItemID)
		case models.RemoveItemEffect:
			v.item(p, e.ItemID)
		case models.UnknownEffect:
			v.addf("%s: unknown effect type %q", p, e.Tag)
		default:
			v.addf("%s: unsupported effect %T", p, effect)
		}
	}
}

func (v *validator) variable(path, name string) {
	if name == "" {
		v.addf("%s: variable name is empty", path)
		return
	}
	if !v.variables[name] {
		v.addf("%s: variable %q is not declared", path, name)
	}
}

func (v *validator) item(path, itemID string) {
	if itemID == "" {
		v.addf("%s: item id is empty", path)
		return
	}
	if !v.items[itemID] {
		v.addf("%s: item %q is not declared", path, itemID)
	}
}
