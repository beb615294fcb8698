// Package schema defines the typed description of extraction targets and
// compiles it into the JSON Schema enforced on model output.
package schema

import (
	"encoding/json"
	"fmt"
)

// Kind tags a node in the schema tree.
type Kind string

const (
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
)

// Node is one node of the typed schema tree. Leaves (string/number/boolean)
// describe a semantic field; during compilation every leaf is wrapped into
// the four-key FieldValue object so a bare scalar in model output fails
// validation.
type Node struct {
	Kind        Kind             `json:"kind"`
	Description string           `json:"description,omitempty"`
	Properties  map[string]*Node `json:"properties,omitempty"` // objects
	Order       []string         `json:"order,omitempty"`      // property order for prompt rendering
	Items       *Node            `json:"items,omitempty"`      // arrays
}

// Object builds an object node. Property order is preserved as given.
func Object(props ...Prop) *Node {
	n := &Node{Kind: KindObject, Properties: make(map[string]*Node, len(props))}
	for _, p := range props {
		n.Properties[p.Name] = p.Node
		n.Order = append(n.Order, p.Name)
	}
	return n
}

// Prop is a named property of an object node.
type Prop struct {
	Name string
	Node *Node
}

// P pairs a name with a node.
func P(name string, node *Node) Prop { return Prop{Name: name, Node: node} }

// Array builds an array node with the given item shape.
func Array(items *Node) *Node { return &Node{Kind: KindArray, Items: items} }

// String builds a string leaf.
func String(desc string) *Node { return &Node{Kind: KindString, Description: desc} }

// Number builds a number leaf.
func Number(desc string) *Node { return &Node{Kind: KindNumber, Description: desc} }

// Boolean builds a boolean leaf.
func Boolean(desc string) *Node { return &Node{Kind: KindBoolean, Description: desc} }

// IsLeaf reports whether the node is a scalar field.
func (n *Node) IsLeaf() bool {
	switch n.Kind {
	case KindString, KindNumber, KindBoolean:
		return true
	}
	return false
}

// JSONSchema renders the node tree as a JSON Schema document with every leaf
// wrapped in the FieldValue shape. Sections (objects/arrays) are nullable:
// the model may return null when a document carries no evidence for them.
func (n *Node) JSONSchema() (json.RawMessage, error) {
	doc, err := n.schemaValue(true)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize schema: %w", err)
	}
	return out, nil
}

func (n *Node) schemaValue(root bool) (map[string]any, error) {
	switch n.Kind {
	case KindObject:
		props := make(map[string]any, len(n.Properties))
		for name, child := range n.Properties {
			cv, err := child.schemaValue(false)
			if err != nil {
				return nil, err
			}
			props[name] = cv
		}
		typ := any([]string{"object", "null"})
		if root {
			typ = "object"
		}
		out := map[string]any{
			"type":       typ,
			"properties": props,
		}
		if n.Description != "" {
			out["description"] = n.Description
		}
		return out, nil

	case KindArray:
		items, err := n.Items.schemaValue(false)
		if err != nil {
			return nil, err
		}
		out := map[string]any{
			"type":  []string{"array", "null"},
			"items": items,
		}
		if n.Description != "" {
			out["description"] = n.Description
		}
		return out, nil

	case KindString, KindNumber, KindBoolean:
		return fieldValueSchema(n), nil

	default:
		return nil, fmt.Errorf("unknown schema node kind %q", n.Kind)
	}
}

// fieldValueSchema wraps a leaf into the mandatory four-key object:
// {value, position, confidence, review_required}, all required. value keeps
// the leaf's scalar type (nullable: absent evidence is a null value, not a
// missing field); position is the [x0, y0, x1, y1] box, empty when value is
// null.
func fieldValueSchema(leaf *Node) map[string]any {
	valueType := []string{string(leaf.Kind), "null"}

	value := map[string]any{"type": valueType}
	if leaf.Description != "" {
		value["description"] = leaf.Description
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": value,
			"position": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "number"},
				"maxItems": 4,
			},
			"confidence": map[string]any{
				"type":    "number",
				"minimum": 0,
				"maximum": 1,
			},
			"review_required": map[string]any{"type": "boolean"},
		},
		"required":             []string{"value", "position", "confidence", "review_required"},
		"additionalProperties": false,
	}
}
