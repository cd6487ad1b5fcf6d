package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ConditionType is the tag of a condition node on the wire.
type ConditionType string

const (
	ConditionVariable ConditionType = "variable" // Compare a variable with a value
	ConditionItem     ConditionType = "item"     // Item is held
	ConditionAnd      ConditionType = "and"
	ConditionOr       ConditionType = "or"
	ConditionNot      ConditionType = "not"
)

// ComparisonOperator is the operator of a variable condition.
type ComparisonOperator string

const (
	OpEq       ComparisonOperator = "eq"
	OpNeq      ComparisonOperator = "neq"
	OpGt       ComparisonOperator = "gt"
	OpLt       ComparisonOperator = "lt"
	OpContains ComparisonOperator = "contains"
)

// Valid reports whether the operator is one of the known comparison operators.
func (op ComparisonOperator) Valid() bool {
	switch op {
	case OpEq, OpNeq, OpGt, OpLt, OpContains:
		return true
	}
	return false
}

// Condition is a node of the condition tree attached to a choice.
// The set of implementations is closed: VariableCondition, ItemCondition,
// AndCondition, OrCondition, NotCondition and UnknownCondition.
type Condition interface {
	Type() ConditionType
	isCondition()
}

// VariableCondition compares Value against the current value of variable Name.
type VariableCondition struct {
	Name     string
	Operator ComparisonOperator
	Value    any
}

// ItemCondition holds when ItemID is in the player's inventory.
type ItemCondition struct {
	ItemID string
}

// AndCondition holds when every child holds. No children => true.
type AndCondition struct {
	Children []Condition
}

// OrCondition holds when any child holds. No children => false.
type OrCondition struct {
	Children []Condition
}

// NotCondition negates Child. A nil Child evaluates to true.
type NotCondition struct {
	Child Condition
}

// UnknownCondition keeps a node whose tag is not recognised so that it can be
// reported by validation instead of being lost on decode.
type UnknownCondition struct {
	Tag string
	Raw json.RawMessage
}

func (VariableCondition) Type() ConditionType  { return ConditionVariable }
func (ItemCondition) Type() ConditionType      { return ConditionItem }
func (AndCondition) Type() ConditionType       { return ConditionAnd }
func (OrCondition) Type() ConditionType        { return ConditionOr }
func (NotCondition) Type() ConditionType       { return ConditionNot }
func (c UnknownCondition) Type() ConditionType { return ConditionType(c.Tag) }

func (VariableCondition) isCondition() {}
func (ItemCondition) isCondition()     {}
func (AndCondition) isCondition()      {}
func (OrCondition) isCondition()       {}
func (NotCondition) isCondition()      {}
func (UnknownCondition) isCondition()  {}

// conditionWire is the JSON shape shared by all condition kinds.
// "children" on a "not" node is the legacy shape; only the first child is used.
type conditionWire struct {
	Type     string            `json:"type"`
	Name     string            `json:"name,omitempty"`
	Operator string            `json:"operator,omitempty"`
	Value    json.RawMessage   `json:"value,omitempty"`
	ItemID   string            `json:"itemId,omitempty"`
	Children []json.RawMessage `json:"children,omitempty"`
	Child    json.RawMessage   `json:"child,omitempty"`
}

func isNullJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// DecodeCondition parses a condition tree. Empty input or JSON null yields a nil Condition.
// Unknown tags decode into UnknownCondition; only malformed JSON is an error.
func DecodeCondition(data []byte) (Condition, error) {
	if isNullJSON(data) {
		return nil, nil
	}
	var w conditionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode condition: %w", err)
	}

	switch ConditionType(w.Type) {
	case ConditionVariable:
		value, err := decodeValue(w.Value)
		if err != nil {
			return nil, fmt.Errorf("decode condition value for %q: %w", w.Name, err)
		}
		return VariableCondition{Name: w.Name, Operator: ComparisonOperator(w.Operator), Value: value}, nil
	case ConditionItem:
		return ItemCondition{ItemID: w.ItemID}, nil
	case ConditionAnd, ConditionOr:
		children, err := decodeConditionList(w.Children)
		if err != nil {
			return nil, err
		}
		if ConditionType(w.Type) == ConditionAnd {
			return AndCondition{Children: children}, nil
		}
		return OrCondition{Children: children}, nil
	case ConditionNot:
		raw := w.Child
		if isNullJSON(raw) && len(w.Children) > 0 {
			raw = w.Children[0]
		}
		child, err := DecodeCondition(raw)
		if err != nil {
			return nil, err
		}
		return NotCondition{Child: child}, nil
	default:
		return UnknownCondition{Tag: w.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

func decodeConditionList(raws []json.RawMessage) ([]Condition, error) {
	children := make([]Condition, 0, len(raws))
	for i, raw := range raws {
		child, err := DecodeCondition(raw)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		if child != nil {
			children = append(children, child)
		}
	}
	return children, nil
}

// EncodeCondition renders a condition tree in its wire form. A nil Condition encodes as null.
func EncodeCondition(c Condition) ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	return json.Marshal(conditionToWire(c))
}

func conditionToWire(c Condition) any {
	switch n := c.(type) {
	case VariableCondition:
		return struct {
			Type     ConditionType      `json:"type"`
			Name     string             `json:"name"`
			Operator ComparisonOperator `json:"operator"`
			Value    any                `json:"value"`
		}{ConditionVariable, n.Name, n.Operator, n.Value}
	case ItemCondition:
		return struct {
			Type   ConditionType `json:"type"`
			ItemID string        `json:"itemId"`
		}{ConditionItem, n.ItemID}
	case AndCondition:
		return struct {
			Type     ConditionType `json:"type"`
			Children []any         `json:"children"`
		}{ConditionAnd, conditionsToWire(n.Children)}
	case OrCondition:
		return struct {
			Type     ConditionType `json:"type"`
			Children []any         `json:"children"`
		}{ConditionOr, conditionsToWire(n.Children)}
	case NotCondition:
		var child any
		if n.Child != nil {
			child = conditionToWire(n.Child)
		}
		return struct {
			Type  ConditionType `json:"type"`
			Child any           `json:"child"`
		}{ConditionNot, child}
	case UnknownCondition:
		if len(n.Raw) > 0 {
			return n.Raw
		}
		return struct {
			Type string `json:"type"`
		}{n.Tag}
	default:
		return nil
	}
}

func conditionsToWire(children []Condition) []any {
	out := make([]any, 0, len(children))
	for _, child := range children {
		out = append(out, conditionToWire(child))
	}
	return out
}

// ConditionNode wraps a Condition so it can live in JSON documents and JSONB columns.
// The zero value means "no condition" and encodes as null.
type ConditionNode struct {
	Condition Condition
}

// MarshalJSON implements json.Marshaler.
func (n ConditionNode) MarshalJSON() ([]byte, error) {
	return EncodeCondition(n.Condition)
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *ConditionNode) UnmarshalJSON(data []byte) error {
	c, err := DecodeCondition(data)
	if err != nil {
		return err
	}
	n.Condition = c
	return nil
}

// IsZero reports whether no condition is set.
func (n ConditionNode) IsZero() bool {
	return n.Condition == nil
}

// decodeValue parses a JSON scalar/composite value; numbers become float64.
func decodeValue(raw json.RawMessage) (any, error) {
	if isNullJSON(raw) {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
