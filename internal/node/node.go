package node

import (
	"fmt"
	"sort"

	"configurator/internal/bus"
	"configurator/internal/schema"
)

// Node — экземпляр сущности схемы. Свойства хранятся как значения JSON,
// дочерние узлы лежат в свойствах как *Node.
type Node struct {
	session *Session
	entity  *schema.Entity
	props   map[string]any
}

func (n *Node) Session() *Session { return n.session }
func (n *Node) Entity() *schema.Entity { return n.entity }
func (n *Node) EntityName() string { return n.entity.Name }

func (n *Node) ID() string {
	s, _ := n.props["id"].(string)
	return s
}

func (n *Node) Get(name string) any {
	return n.props[name]
}

// Put присваивает свойство без события изменения.
func (n *Node) Put(name string, value any) {
	n.props[name] = value
}

// SetProperty меняет свойство и рассылает ChangeProperty; равное значение игнорируется.
func (n *Node) SetProperty(name string, value any) {
	old, had := n.props[name]
	if had && Equal(old, value) {
		return
	}
	n.props[name] = value
	n.session.bus.Dispatch(ChangeProperty{Node: n, Property: name, Old: old, New: value})
}

// Properties — имена заданных свойств в порядке схемы, затем прочие по алфавиту.
func (n *Node) Properties() []string {
	out := make([]string, 0, len(n.props))
	seen := make(map[string]bool, len(n.props))
	for _, p := range n.entity.Properties {
		if _, ok := n.props[p.Name]; ok {
			out = append(out, p.Name)
			seen[p.Name] = true
		}
	}
	var rest []string
	for k := range n.props {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func (n *Node) String() string {
	if id := n.ID(); id != "" {
		return fmt.Sprintf("%s:%s", n.entity.Name, id)
	}
	return n.entity.Name
}

// Callback реализует bus.Listener: объединяет поведения, зарегистрированные для сущности.
func (n *Node) Callback(name string) bus.Handler {
	fns := n.session.behaviors[n.entity.Name][name]
	if len(fns) == 0 {
		return nil
	}
	return func(ev bus.Event) {
		for _, fn := range fns {
			fn(n, ev)
		}
	}
}

// Delete снимает узел с шины и рассылает DeleteNode. Потомки не трогаются.
func (n *Node) Delete() {
	n.session.bus.Unregister(n)
	n.session.bus.Dispatch(DeleteNode{Node: n})
}

// DeleteTree удаляет сначала всех потомков, затем сам узел.
func (n *Node) DeleteTree() {
	for _, c := range n.AllChildren() {
		c.DeleteTree()
	}
	n.Delete()
}
