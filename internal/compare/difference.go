// Package compare находит различия между двумя графами конфигурации.
package compare

import (
	"fmt"

	"configurator/internal/node"
)

type Kind string

const (
	KindProperty      Kind = "property"
	KindArrayElement  Kind = "array_element"
	KindArrayLength   Kind = "array_length"
	KindArrayOrdering Kind = "array_ordering"
	KindChild         Kind = "child"
)

// Change — характер различия для сводок.
type Change string

const (
	Modification Change = "modification"
	Addition     Change = "addition"
	Deletion     Change = "deletion"
)

type Difference interface {
	Kind() Kind
	Change() Change
	// Owner — узел первого графа, к которому относится различие.
	Owner() *node.Node
	Message() string
}

// PropertyDifference: Value — значение в первом графе, OtherValue — во втором.
type PropertyDifference struct {
	Node       *node.Node
	Property   string
	Value      any
	OtherValue any
}

func (d *PropertyDifference) Kind() Kind { return KindProperty }
func (d *PropertyDifference) Change() Change { return Modification }
func (d *PropertyDifference) Owner() *node.Node { return d.Node }

func (d *PropertyDifference) Message() string {
	return fmt.Sprintf("%s - Property %s (from %v to %v)", describeNode(d.Node), d.Property, d.OtherValue, d.Value)
}

// ArrayElementDifference — на одной позиции элемент заменен другим.
type ArrayElementDifference struct {
	Node         *node.Node
	Property     string
	Index        int
	Element      any
	OtherElement any
}

func (d *ArrayElementDifference) Kind() Kind { return KindArrayElement }
func (d *ArrayElementDifference) Change() Change { return Modification }
func (d *ArrayElementDifference) Owner() *node.Node { return d.Node }

func (d *ArrayElementDifference) Message() string {
	return fmt.Sprintf("%s - Property %s, index %d (from %v to %v)", describeNode(d.Node), d.Property, d.Index, d.OtherElement, d.Element)
}

// ArrayLengthDifference: Added — элемент есть только в первом графе, иначе только во втором.
type ArrayLengthDifference struct {
	Node     *node.Node
	Property string
	Added    bool
	Element  any
}

func (d *ArrayLengthDifference) Kind() Kind { return KindArrayLength }
func (d *ArrayLengthDifference) Owner() *node.Node { return d.Node }

func (d *ArrayLengthDifference) Change() Change {
	if d.Added {
		return Addition
	}
	return Deletion
}

func (d *ArrayLengthDifference) Message() string {
	if d.Added {
		return fmt.Sprintf("%s - Property %s - New element %v", describeNode(d.Node), d.Property, d.Element)
	}
	return fmt.Sprintf("%s - Property %s - Missing element %v", describeNode(d.Node), d.Property, d.Element)
}

type ArrayOrderingDifference struct {
	Node     *node.Node
	Property string
}

func (d *ArrayOrderingDifference) Kind() Kind { return KindArrayOrdering }
func (d *ArrayOrderingDifference) Change() Change { return Modification }
func (d *ArrayOrderingDifference) Owner() *node.Node { return d.Node }

func (d *ArrayOrderingDifference) Message() string {
	return fmt.Sprintf("%s - Property %s has been mixed up", describeNode(d.Node), d.Property)
}

// ChildDifference — ребенок без пары. Added: есть только в первом графе (Child из первого),
// иначе только во втором (Child из второго). Поддерево не сравнивается.
type ChildDifference struct {
	Node   *node.Node
	Entity string
	Child  *node.Node
	Added  bool
}

func (d *ChildDifference) Kind() Kind { return KindChild }
func (d *ChildDifference) Owner() *node.Node { return d.Node }
func (d *ChildDifference) ChildID() string { return d.Child.ID() }

func (d *ChildDifference) Change() Change {
	if d.Added {
		return Addition
	}
	return Deletion
}

func (d *ChildDifference) Message() string {
	label := d.Child.Entity().Label
	if d.Added {
		return fmt.Sprintf("%s - New child %s %s", describeNode(d.Node), label, d.ChildID())
	}
	return fmt.Sprintf("%s - Missing child %s %s", describeNode(d.Node), label, d.ChildID())
}

func describeNode(n *node.Node) string {
	e := n.Entity()
	label := e.Label
	if label == "" {
		label = e.Name
	}
	return label + " " + n.ID()
}
