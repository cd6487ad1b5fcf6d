package models

import (
	"encoding/json"
	"fmt"
)

// EffectType is the tag of an effect on the wire.
type EffectType string

const (
	EffectSetVariable    EffectType = "setVariable"
	EffectModifyVariable EffectType = "modifyVariable"
	EffectAddItem        EffectType = "addItem"
	EffectRemoveItem     EffectType = "removeItem"
)

// ArithmeticOperator is the operator of a modifyVariable effect.
type ArithmeticOperator string

const (
	OpAdd ArithmeticOperator = "add"
	OpSub ArithmeticOperator = "sub"
	OpMul ArithmeticOperator = "mul"
	OpDiv ArithmeticOperator = "div"
)

// Valid reports whether the operator is one of the known arithmetic operators.
func (op ArithmeticOperator) Valid() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv:
		return true
	}
	return false
}

// Effect is a single state mutation attached to a choice.
// The set of implementations is closed.
type Effect interface {
	Type() EffectType
	isEffect()
}

// SetVariableEffect overwrites variable Name with Value.
type SetVariableEffect struct {
	Name  string
	Value any
}

// ModifyVariableEffect applies Operator with Amount to a numeric variable.
// Amount stays untyped so a non-numeric amount survives decoding and can be reported.
type ModifyVariableEffect struct {
	Name     string
	Operator ArithmeticOperator
	Amount   any
}

// AddItemEffect puts ItemID into the inventory.
type AddItemEffect struct {
	ItemID string
}

// RemoveItemEffect takes ItemID out of the inventory.
type RemoveItemEffect struct {
	ItemID string
}

// UnknownEffect keeps an effect whose tag is not recognised.
type UnknownEffect struct {
	Tag string
	Raw json.RawMessage
}

func (SetVariableEffect) Type() EffectType    { return EffectSetVariable }
func (ModifyVariableEffect) Type() EffectType { return EffectModifyVariable }
func (AddItemEffect) Type() EffectType        { return EffectAddItem }
func (RemoveItemEffect) Type() EffectType     { return EffectRemoveItem }
func (e UnknownEffect) Type() EffectType      { return EffectType(e.Tag) }

func (SetVariableEffect) isEffect()    {}
func (ModifyVariableEffect) isEffect() {}
func (AddItemEffect) isEffect()        {}
func (RemoveItemEffect) isEffect()     {}
func (UnknownEffect) isEffect()        {}

type effectWire struct {
	Type     string          `json:"type"`
	Name     string          `json:"name,omitempty"`
	Operator string          `json:"operator,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
	Amount   json.RawMessage `json:"amount,omitempty"`
	ItemID   string          `json:"itemId,omitempty"`
}

// DecodeEffect parses one effect. Unknown tags decode into UnknownEffect.
func DecodeEffect(data []byte) (Effect, error) {
	var w effectWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode effect: %w", err)
	}

	switch EffectType(w.Type) {
	case EffectSetVariable:
		value, err := decodeValue(w.Value)
		if err != nil {
			return nil, fmt.Errorf("decode effect value for %q: %w", w.Name, err)
		}
		return SetVariableEffect{Name: w.Name, Value: value}, nil
	case EffectModifyVariable:
		amount, err := decodeValue(w.Amount)
		if err != nil {
			return nil, fmt.Errorf("decode effect amount for %q: %w", w.Name, err)
		}
		return ModifyVariableEffect{Name: w.Name, Operator: ArithmeticOperator(w.Operator), Amount: amount}, nil
	case EffectAddItem:
		return AddItemEffect{ItemID: w.ItemID}, nil
	case EffectRemoveItem:
		return RemoveItemEffect{ItemID: w.ItemID}, nil
	default:
		return UnknownEffect{Tag: w.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

func effectToWire(e Effect) any {
	switch n := e.(type) {
	case SetVariableEffect:
		return struct {
			Type  EffectType `json:"type"`
			Name  string     `json:"name"`
			Value any        `json:"value"`
		}{EffectSetVariable, n.Name, n.Value}
	case ModifyVariableEffect:
		return struct {
			Type     EffectType         `json:"type"`
			Name     string             `json:"name"`
			Operator ArithmeticOperator `json:"operator"`
			Amount   any                `json:"amount"`
		}{EffectModifyVariable, n.Name, n.Operator, n.Amount}
	case AddItemEffect:
		return struct {
			Type   EffectType `json:"type"`
			ItemID string     `json:"itemId"`
		}{EffectAddItem, n.ItemID}
	case RemoveItemEffect:
		return struct {
			Type   EffectType `json:"type"`
			ItemID string     `json:"itemId"`
		}{EffectRemoveItem, n.ItemID}
	case UnknownEffect:
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

// EffectList is an ordered list of effects with a JSON codec.
// null and a missing list both decode to an empty list.
type EffectList []Effect

// MarshalJSON implements json.Marshaler. A nil list encodes as [].
func (l EffectList) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(l))
	for _, e := range l {
		if e == nil {
			continue
		}
		out = append(out, effectToWire(e))
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *EffectList) UnmarshalJSON(data []byte) error {
	if isNullJSON(data) {
		*l = EffectList{}
		return nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("decode effects: %w", err)
	}
	list := make(EffectList, 0, len(raws))
	for i, raw := range raws {
		e, err := DecodeEffect(raw)
		if err != nil {
			return fmt.Errorf("effect %d: %w", i, err)
		}
		list = append(list, e)
	}
	*l = list
	return nil
}
