// Package condition evaluates declarative failure conditions.
//
// A Tree is a boolean formula over leaf conditions: a leaf, a conjunction
// (All) or a disjunction (Any). Leaves are typed by the facts they are
// evaluated against, so the same machinery serves compile-time and
// run-time expectations.
//
// JSON form:
//
//	{"all": [<tree>, ...]}
//	{"any": [<tree>, ...]}
//	<leaf object>
package condition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Condition is a leaf predicate over facts F.
type Condition[F any] interface {
	Holds(facts F) bool
}

// Kind discriminates tree nodes.
type Kind int

// Node kinds.
const (
	KindLeaf Kind = iota
	KindAll
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindAll:
		return "all"
	case KindAny:
		return "any"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Tree is an immutable condition tree with leaves of type C.
type Tree[C any] struct {
	kind     Kind
	leaf     C
	children []*Tree[C]
}

// Leaf returns a tree holding a single leaf condition.
func Leaf[C any](c C) *Tree[C] {
	return &Tree[C]{kind: KindLeaf, leaf: c}
}

// All returns a conjunction. An empty conjunction holds.
func All[C any](children ...*Tree[C]) *Tree[C] {
	return &Tree[C]{kind: KindAll, children: children}
}

// Any returns a disjunction. An empty disjunction does not hold.
func Any[C any](children ...*Tree[C]) *Tree[C] {
	return &Tree[C]{kind: KindAny, children: children}
}

// Kind returns the node kind.
func (t *Tree[C]) Kind() Kind { return t.kind }

// Children returns the sub-trees of an All or Any node.
func (t *Tree[C]) Children() []*Tree[C] { return t.children }

// Value returns the leaf condition of a leaf node.
func (t *Tree[C]) Value() C { return t.leaf }

// Evaluate reports whether tree holds for facts.
// An absent (nil) tree never holds.
func Evaluate[F any, C Condition[F]](tree *Tree[C], facts F) bool {
	if tree == nil {
		return false
	}
	switch tree.kind {
	case KindLeaf:
		return tree.leaf.Holds(facts)
	case KindAll:
		for _, child := range tree.children {
			if !Evaluate(child, facts) {
				return false
			}
		}
		return true
	case KindAny:
		for _, child := range tree.children {
			if Evaluate(child, facts) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// OneOf restricts a fact to a set of accepted values.
// A nil OneOf is unconstrained; a non-nil empty OneOf admits nothing.
type OneOf[T comparable] []T

// Admits reports whether v satisfies the constraint.
func (o OneOf[T]) Admits(v T) bool {
	if o == nil {
		return true
	}
	return slices.Contains(o, v)
}

var errMixedNode = errors.New("condition: a node must be exactly one of \"all\", \"any\", or a leaf")

// UnmarshalJSON decodes a tree, rejecting unknown leaf fields and nodes
// that mix combinator and leaf keys.
func (t *Tree[C]) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("condition: expected object: %w", err)
	}
	if fields == nil {
		return errors.New("condition: tree must not be null")
	}

	rawAll, hasAll := fields["all"]
	rawAny, hasAny := fields["any"]
	switch {
	case hasAll && hasAny, (hasAll || hasAny) && len(fields) != 1:
		return errMixedNode
	case hasAll:
		return t.decodeChildren(KindAll, rawAll)
	case hasAny:
		return t.decodeChildren(KindAny, rawAny)
	}

	var leaf C
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&leaf); err != nil {
		return fmt.Errorf("condition: invalid leaf: %w", err)
	}
	*t = Tree[C]{kind: KindLeaf, leaf: leaf}
	return nil
}

func (t *Tree[C]) decodeChildren(kind Kind, raw json.RawMessage) error {
	var children []*Tree[C]
	if err := json.Unmarshal(raw, &children); err != nil {
		return fmt.Errorf("condition: invalid %s: %w", kind, err)
	}
	if slices.Contains(children, nil) {
		return fmt.Errorf("condition: %s must not contain null", kind)
	}
	*t = Tree[C]{kind: kind, children: children}
	return nil
}

// MarshalJSON encodes the tree in the same shape UnmarshalJSON accepts.
func (t *Tree[C]) MarshalJSON() ([]byte, error) {
	switch t.kind {
	case KindLeaf:
		return json.Marshal(t.leaf)
	case KindAll, KindAny:
		children := t.children
		if children == nil {
			children = []*Tree[C]{}
		}
		return json.Marshal(map[string][]*Tree[C]{t.kind.String(): children})
	default:
		return nil, fmt.Errorf("condition: cannot encode %s", t.kind)
	}
}
