package mechanics

import "story-engine/internal/models"

// AvailableChoices returns the outgoing choices of nodeID whose conditions hold for state,
// in story order. The result is never cached; it reflects state at call time.
func AvailableChoices(schema *models.StorySchema, nodeID string, state models.PlayerState) []models.Choice {
	if schema == nil {
		return []models.Choice{}
	}
	outgoing := schema.ChoicesFrom(nodeID)
	available := make([]models.Choice, 0, len(outgoing))
	for _, choice := range outgoing {
		if IsChoiceAvailable(choice, state) {
			available = append(available, choice)
		}
	}
	return available
}

// IsChoiceAvailable reports whether the choice's condition holds. A choice without
// a condition is always available.
func IsChoiceAvailable(choice models.Choice, state models.PlayerState) bool {
	return Evaluate(choice.Condition.Condition, state)
}
