package models

import (
	"sort"
	"time"
)

// VariableType is the declared type of a story variable.
type VariableType string

const (
	VariableInteger VariableType = "integer"
	VariableBoolean VariableType = "boolean"
	VariableString  VariableType = "string"
)

// NodeType classifies story nodes. Reaching an ending node completes the session.
type NodeType string

const (
	NodeStory     NodeType = "story"
	NodeChoice    NodeType = "choice"
	NodeCondition NodeType = "condition"
	NodeEnding    NodeType = "ending"
)

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	switch t {
	case NodeStory, NodeChoice, NodeCondition, NodeEnding:
		return true
	}
	return false
}

// Story is the header of an authored story.
type Story struct {
	ID          string    `json:"id" db:"id"`
	AuthorID    string    `json:"authorId" db:"author_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	StartNodeID string    `json:"startNodeId" db:"start_node_id"`
	IsPublished bool      `json:"isPublished" db:"is_published"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// VariableDeclaration declares a story variable and its default value.
type VariableDeclaration struct {
	Name         string       `json:"name" db:"name"`
	Type         VariableType `json:"type" db:"type"`
	DefaultValue any          `json:"defaultValue" db:"default_value"`
}

// InitialValue is the value a new session starts with. A missing default falls back
// to the zero value of the declared type.
func (d VariableDeclaration) InitialValue() any {
	if d.DefaultValue != nil {
		return cloneValue(d.DefaultValue)
	}
	switch d.Type {
	case VariableInteger:
		return float64(0)
	case VariableBoolean:
		return false
	case VariableString:
		return ""
	default:
		return nil
	}
}

// ItemDeclaration declares an inventory item.
type ItemDeclaration struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
}

// Node is a single passage of a story.
type Node struct {
	ID      string   `json:"id" db:"id"`
	StoryID string   `json:"storyId" db:"story_id"`
	Title   string   `json:"title" db:"title"`
	Content string   `json:"content" db:"content"`
	Type    NodeType `json:"type" db:"type"`
}

// IsEnding reports whether the node terminates the story.
func (n Node) IsEnding() bool {
	return n.Type == NodeEnding
}

// Choice is a directed edge between two nodes, optionally gated by a condition
// and carrying effects applied when it is taken.
type Choice struct {
	ID         string        `json:"id" db:"id"`
	FromNodeID string        `json:"fromNodeId" db:"from_node_id"`
	ToNodeID   string        `json:"toNodeId" db:"to_node_id"`
	Text       string        `json:"text" db:"text"`
	Order      int           `json:"order" db:"sort_order"`
	Condition  ConditionNode `json:"condition" db:"condition"`
	Effects    EffectList    `json:"effects" db:"effects"`
}

// StorySchema is the immutable authored definition of a story.
type StorySchema struct {
	Story     Story                 `json:"story"`
	Variables []VariableDeclaration `json:"variables"`
	Items     []ItemDeclaration     `json:"items"`
	Nodes     []Node                `json:"nodes"`
	Choices   []Choice              `json:"choices"`
}

// Node looks a node up by id.
func (s *StorySchema) Node(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Choice looks a choice up by id.
func (s *StorySchema) Choice(id string) (Choice, bool) {
	for _, c := range s.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// ChoicesFrom returns the outgoing choices of a node ordered by Order, ties broken by
// declaration order.
func (s *StorySchema) ChoicesFrom(nodeID string) []Choice {
	out := make([]Choice, 0)
	for _, c := range s.Choices {
		if c.FromNodeID == nodeID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Variable looks up a variable declaration by name.
func (s *StorySchema) Variable(name string) (VariableDeclaration, bool) {
	for _, v := range s.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return VariableDeclaration{}, false
}

// ItemCatalog returns the set of declared item ids.
func (s *StorySchema) ItemCatalog() ItemCatalog {
	catalog := make(ItemCatalog, len(s.Items))
	for _, it := range s.Items {
		catalog[it.ID] = struct{}{}
	}
	return catalog
}

// StartNode resolves the node a new session begins at: startingNodeID when given,
// otherwise the story's start node.
func (s *StorySchema) StartNode(startingNodeID *string) (Node, bool) {
	id := s.Story.StartNodeID
	if startingNodeID != nil && *startingNodeID != "" {
		id = *startingNodeID
	}
	return s.Node(id)
}

// CanBePlayedBy reports whether userID may start a session on the story.
func (s *StorySchema) CanBePlayedBy(userID string) bool {
	return s.Story.IsPublished || s.Story.AuthorID == userID
}
