package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// PlayerState is the mutable part of a play session: variable values, held items
// and custom fields pushed by the client.
// Inventory is a set kept as a JSON array; it never contains duplicates.
type PlayerState struct {
	Variables map[string]any `json:"variables"`
	Inventory []string       `json:"inventory"`
	Fields    map[string]any `json:"fields"`
}

// NewPlayerState seeds a state from variable defaults with an empty inventory.
func NewPlayerState(decls []VariableDeclaration) PlayerState {
	s := PlayerState{
		Variables: make(map[string]any, len(decls)),
		Inventory: []string{},
		Fields:    map[string]any{},
	}
	for _, d := range decls {
		s.Variables[d.Name] = d.InitialValue()
	}
	return s
}

// Clone returns a deep copy of the state. Nil maps and slices come back empty.
func (s PlayerState) Clone() PlayerState {
	out := PlayerState{
		Variables: make(map[string]any, len(s.Variables)),
		Inventory: make([]string, 0, len(s.Inventory)),
		Fields:    make(map[string]any, len(s.Fields)),
	}
	for k, v := range s.Variables {
		out.Variables[k] = cloneValue(v)
	}
	out.Inventory = append(out.Inventory, s.Inventory...)
	for k, v := range s.Fields {
		out.Fields[k] = cloneValue(v)
	}
	return out
}

// Variable returns the current value of a variable.
func (s PlayerState) Variable(name string) (any, bool) {
	v, ok := s.Variables[name]
	return v, ok
}

// HasItem reports whether itemID is held.
func (s PlayerState) HasItem(itemID string) bool {
	for _, id := range s.Inventory {
		if id == itemID {
			return true
		}
	}
	return false
}

// Merge returns a copy of s with the patch applied on top. Variables and fields
// are merged key by key; a non-nil Inventory replaces the inventory (deduplicated).
func (s PlayerState) Merge(p *StatePatch) PlayerState {
	out := s.Clone()
	if p == nil {
		return out
	}
	for k, v := range p.Variables {
		out.Variables[k] = NormalizeValue(v)
	}
	if p.Inventory != nil {
		out.Inventory = dedupe(p.Inventory)
	}
	for k, v := range p.Fields {
		out.Fields[k] = NormalizeValue(v)
	}
	return out
}

// Value implements driver.Valuer so the state can be written into a JSONB column.
func (s PlayerState) Value() (driver.Value, error) {
	data, err := json.Marshal(s.Clone())
	if err != nil {
		return nil, fmt.Errorf("player state: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for JSONB/TEXT columns.
func (s *PlayerState) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*s = PlayerState{}.Clone()
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("player state: unsupported scan type %T", src)
	}
	var decoded PlayerState
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("player state: %w", err)
	}
	decoded.Inventory = dedupe(decoded.Inventory)
	*s = decoded.Clone()
	return nil
}

// StatePatch is a client-supplied partial overwrite of a PlayerState.
// A nil Inventory leaves the inventory untouched; an empty one clears it.
type StatePatch struct {
	Variables map[string]any `json:"variables,omitempty"`
	Inventory []string       `json:"inventory,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *StatePatch) IsEmpty() bool {
	return p == nil || (len(p.Variables) == 0 && p.Inventory == nil && len(p.Fields) == 0)
}

// ItemCatalog is the set of item ids declared by a story.
type ItemCatalog map[string]struct{}

// Has reports whether itemID is declared.
func (c ItemCatalog) Has(itemID string) bool {
	_, ok := c[itemID]
	return ok
}

// NormalizeValue converts Go integer and float32 values (as produced by YAML decoding or
// hand-built structs) into float64, recursing into lists and maps.
func NormalizeValue(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = NormalizeValue(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = NormalizeValue(e)
		}
		return out
	default:
		return v
	}
}

// AsNumber reports the float64 value of v if v is any Go numeric type.
func AsNumber(v any) (float64, bool) {
	f, ok := NormalizeValue(v).(float64)
	return f, ok
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	default:
		return NormalizeValue(v)
	}
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
