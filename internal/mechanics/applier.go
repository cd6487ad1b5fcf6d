package mechanics

import (
	"math"

	"story-engine/internal/models"
)

// Reasons reported for effects that were skipped.
const (
	ReasonVariableNotSet     = "variable is not set"
	ReasonValueNotNumeric    = "current value is not numeric"
	ReasonAmountNotNumeric   = "amount is not numeric"
	ReasonDivisionByZero     = "division by zero"
	ReasonResultNotFinite    = "result is not a finite number"
	ReasonUnknownOperator    = "unknown operator"
	ReasonItemAlreadyHeld    = "item is already held"
	ReasonItemNotDeclared    = "item is not declared in the story"
	ReasonItemNotHeld        = "item is not held"
	ReasonUnknownEffectType  = "unknown effect type"
	ReasonEmptyEffectPayload = "effect has no target"
)

// SkippedEffect describes an effect that left the state unchanged.
type SkippedEffect struct {
	Index  int               `json:"index"`
	Type   models.EffectType `json:"type"`
	Reason string            `json:"reason"`
}

// ApplyResult is the state produced by Apply and the effects it had to skip.
type ApplyResult struct {
	State   models.PlayerState
	Skipped []SkippedEffect
}

// Apply runs effects in order against a copy of state; the input is never modified.
// An effect that cannot be applied is skipped and reported, later effects still run.
// A nil catalog disables the declared-item check for addItem.
func Apply(effects []models.Effect, state models.PlayerState, catalog models.ItemCatalog) ApplyResult {
	res := ApplyResult{State: state.Clone()}
	skip := func(i int, e models.Effect, reason string) {
		res.Skipped = append(res.Skipped, SkippedEffect{Index: i, Type: e.Type(), Reason: reason})
	}

	for i, effect := range effects {
		if effect == nil {
			continue
		}
		switch e := effect.(type) {
		case models.SetVariableEffect:
			if e.Name == "" {
				skip(i, e, ReasonEmptyEffectPayload)
				continue
			}
			res.State.Variables[e.Name] = models.NormalizeValue(e.Value)
		case models.ModifyVariableEffect:
			if reason := modifyVariable(res.State, e); reason != "" {
				skip(i, e, reason)
			}
		case models.AddItemEffect:
			switch {
			case e.ItemID == "":
				skip(i, e, ReasonEmptyEffectPayload)
			case res.State.HasItem(e.ItemID):
				skip(i, e, ReasonItemAlreadyHeld)
			case catalog != nil && !catalog.Has(e.ItemID):
				skip(i, e, ReasonItemNotDeclared)
			default:
				res.State.Inventory = append(res.State.Inventory, e.ItemID)
			}
		case models.RemoveItemEffect:
			if !res.State.HasItem(e.ItemID) {
				skip(i, e, ReasonItemNotHeld)
				continue
			}
			res.State.Inventory = removeItem(res.State.Inventory, e.ItemID)
		default:
			skip(i, effect, ReasonUnknownEffectType)
		}
	}
	return res
}

// modifyVariable updates state in place and returns a non-empty reason when it did nothing.
func modifyVariable(state models.PlayerState, e models.ModifyVariableEffect) string {
	raw, ok := state.Variables[e.Name]
	if !ok {
		return ReasonVariableNotSet
	}
	current, ok := models.AsNumber(raw)
	if !ok {
		return ReasonValueNotNumeric
	}
	amount, ok := models.AsNumber(e.Amount)
	if !ok {
		return ReasonAmountNotNumeric
	}

	var next float64
	switch e.Operator {
	case models.OpAdd:
		next = current + amount
	case models.OpSub:
		next = current - amount
	case models.OpMul:
		next = current * amount
	case models.OpDiv:
		if amount == 0 {
			return ReasonDivisionByZero
		}
		next = current / amount
	default:
		return ReasonUnknownOperator
	}
	// JSON has no Inf or NaN, so such a value could never be stored.
	if math.IsInf(next, 0) || math.IsNaN(next) {
		return ReasonResultNotFinite
	}
	state.Variables[e.Name] = next
	return ""
}

func removeItem(inventory []string, itemID string) []string {
	out := inventory[:0]
	for _, id := range inventory {
		if id != itemID {
			out = append(out, id)
		}
	}
	return out
}
