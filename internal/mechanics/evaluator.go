// Package mechanics holds the pure narrative rules: condition evaluation,
// effect application, choice resolution and authoring validation.
package mechanics

import (
	"reflect"
	"strings"

	"story-engine/internal/models"
)

// Evaluate reports whether cond holds for state. It never panics and never fails:
// a nil condition holds, unknown node types and unknown operators hold, and
// comparisons between mismatched types do not hold.
func Evaluate(cond models.Condition, state models.PlayerState) bool {
	if cond == nil {
		return true
	}

	switch c := cond.(type) {
	case models.VariableCondition:
		current, ok := state.Variable(c.Name)
		return compare(c.Operator, current, ok, c.Value)
	case models.ItemCondition:
		return state.HasItem(c.ItemID)
	case models.AndCondition:
		for _, child := range c.Children {
			if !Evaluate(child, state) {
				return false
			}
		}
		return true
	case models.OrCondition:
		for _, child := range c.Children {
			if Evaluate(child, state) {
				return true
			}
		}
		return false
	case models.NotCondition:
		// A "not" without an operand holds.
		if c.Child == nil {
			return true
		}
		return !Evaluate(c.Child, state)
	default:
		return true
	}
}

func compare(op models.ComparisonOperator, current any, present bool, expected any) bool {
	if !present {
		return op == models.OpNeq
	}

	switch op {
	case models.OpEq:
		return valuesEqual(current, expected)
	case models.OpNeq:
		return !valuesEqual(current, expected)
	case models.OpGt, models.OpLt:
		a, aok := models.AsNumber(current)
		b, bok := models.AsNumber(expected)
		if !aok || !bok {
			return false
		}
		if op == models.OpGt {
			return a > b
		}
		return a < b
	case models.OpContains:
		return contains(current, expected)
	default:
		return true
	}
}

// valuesEqual is strict: values of different kinds are never equal, numbers compare
// numerically and lists/maps compare structurally.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	an, aNum := models.AsNumber(a)
	bn, bNum := models.AsNumber(b)
	if aNum || bNum {
		return aNum && bNum && an == bn
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return reflect.DeepEqual(models.NormalizeValue(a), models.NormalizeValue(b))
}

func contains(container, needle any) bool {
	switch c := models.NormalizeValue(container).(type) {
	case []any:
		for _, el := range c {
			if valuesEqual(el, needle) {
				return true
			}
		}
		return false
	case string:
		s, ok := needle.(string)
		return ok && strings.Contains(c, s)
	default:
		return false
	}
}
