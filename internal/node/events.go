package node

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type CreateNode struct {
	Node *Node
}

func (e CreateNode) Callbacks() []string {
	return []string{"onCreate" + e.Node.EntityName(), "onCreate"}
}

type DeleteNode struct {
	Node *Node
}

func (e DeleteNode) Callbacks() []string {
	return []string{"onDelete" + e.Node.EntityName(), "onDelete"}
}

// AddChild — Child добавлен в слот Slot узла Node.
type AddChild struct {
	Node  *Node
	Child *Node
	Slot  int
}

func (e AddChild) Callbacks() []string {
	return []string{"onAddChild" + e.Child.EntityName(), "onAddChild"}
}

type ChangeProperty struct {
	Node     *Node
	Property string
	Old      any
	New      any
}

func (e ChangeProperty) Callbacks() []string {
	entity := e.Node.EntityName()
	return []string{"onChange" + entity + capitalize(e.Property), "onChange" + entity, "onChange"}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	var b strings.Builder
	b.WriteRune(unicode.ToUpper(r))
	b.WriteString(s[size:])
	return b.String()
}
