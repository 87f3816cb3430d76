package node

import (
	"fmt"
	"sort"
	"strconv"

	"configurator/internal/schema"
)

// AllSlots в Children выбирает детей из всех слотов по порядку.
const AllSlots = -1

// HasParent сообщает, объявляет ли сущность обратную ссылку на родителя.
func (n *Node) HasParent() bool {
	return len(n.entity.BackReferences()) > 0
}

// Parent возвращает родителя. Для корневых сущностей — (nil, nil),
// для еще не присоединенного узла — ErrParentNotSet.
func (n *Node) Parent() (*Node, error) {
	refs := n.entity.BackReferences()
	if len(refs) == 0 {
		return nil, nil
	}
	for _, p := range refs {
		if parent, ok := n.props[p.Name].(*Node); ok && parent != nil {
			return parent, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", n, ErrParentNotSet)
}

func (n *Node) childRelation(entity string) (schema.ChildRelation, error) {
	rel, ok := n.entity.Child(entity)
	if !ok {
		return rel, fmt.Errorf("%s is not a child of %s: %w", entity, n.entity.Name, ErrNotRelated)
	}
	if len(rel.Slots) == 0 {
		return rel, fmt.Errorf("children %s of %s: %w", entity, n.entity.Name, ErrNotImplemented)
	}
	return rel, nil
}

// Children возвращает детей сущности entity из слота slot (или из всех при AllSlots).
func (n *Node) Children(entity string, slot int) ([]*Node, error) {
	rel, err := n.childRelation(entity)
	if err != nil {
		return nil, err
	}
	if slot == AllSlots {
		var out []*Node
		for _, s := range rel.Slots {
			out = append(out, n.slotNodes(s)...)
		}
		return out, nil
	}
	if slot < 0 || slot >= len(rel.Slots) {
		return nil, fmt.Errorf("slot %d of %s children in %s: %w", slot, entity, n.entity.Name, ErrNoSuchChild)
	}
	return n.slotNodes(rel.Slots[slot]), nil
}

// Child ищет ребенка по id; числовой id, не совпавший ни с одним ребенком, трактуется как позиция в слоте.
func (n *Node) Child(entity string, slot int, id string) (*Node, error) {
	children, err := n.Children(entity, slot)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		if c.ID() == id {
			return c, nil
		}
	}
	if i, err := strconv.Atoi(id); err == nil && i >= 0 && i < len(children) {
		return children[i], nil
	}
	return nil, fmt.Errorf("%s %q in %s: %w", entity, id, n, ErrNoSuchChild)
}

// AllChildren — все дети в порядке объявления сущностей и слотов.
func (n *Node) AllChildren() []*Node {
	var out []*Node
	for _, rel := range n.entity.Children {
		for _, s := range rel.Slots {
			out = append(out, n.slotNodes(s)...)
		}
	}
	return out
}

func (n *Node) slotNodes(s schema.Slot) []*Node {
	v := n.props[s.Property]
	switch {
	case s.Key != "":
		m, _ := v.(map[string]any)
		return nodesOf(m[s.Key])
	case s.Values:
		m, _ := v.(map[string]any)
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []*Node
		for _, k := range keys {
			out = append(out, nodesOf(m[k])...)
		}
		return out
	}
	return nodesOf(v)
}

func nodesOf(v any) []*Node {
	switch t := v.(type) {
	case *Node:
		if t != nil {
			return []*Node{t}
		}
	case []any:
		out := make([]*Node, 0, len(t))
		for _, it := range t {
			if c, ok := it.(*Node); ok && c != nil {
				out = append(out, c)
			}
		}
		return out
	}
	return nil
}

// slotOf находит слот и позицию ребенка у n; slot -1, если ребенка нет.
func (n *Node) slotOf(child *Node) (slot, index int) {
	rel, ok := n.entity.Child(child.EntityName())
	if !ok {
		return -1, -1
	}
	for i, s := range rel.Slots {
		for j, c := range n.slotNodes(s) {
			if c == child {
				return i, j
			}
		}
	}
	return -1, -1
}

// AddChild кладет child в слот и выставляет ему обратную ссылку. Событие — AddChild.
func (n *Node) AddChild(child *Node, slot int) error {
	rel, err := n.childRelation(child.EntityName())
	if err != nil {
		return err
	}
	if slot < 0 || slot >= len(rel.Slots) {
		return fmt.Errorf("slot %d of %s children in %s: %w", slot, child.EntityName(), n.entity.Name, ErrNoSuchChild)
	}
	s := rel.Slots[slot]
	if s.Values {
		return fmt.Errorf("add %s to %s{}: %w", child.EntityName(), s.Property, ErrNotImplemented)
	}
	child.attachTo(n)
	switch {
	case s.Single:
		n.props[s.Property] = child
	case s.Key != "":
		m := make(map[string]any)
		if old, ok := n.props[s.Property].(map[string]any); ok {
			for k, v := range old {
				m[k] = v
			}
		}
		m[s.Key] = appendNode(m[s.Key], child)
		n.props[s.Property] = m
	default:
		n.props[s.Property] = appendNode(n.props[s.Property], child)
	}
	n.session.bus.Dispatch(AddChild{Node: n, Child: child, Slot: slot})
	return nil
}

func appendNode(v any, child *Node) []any {
	old, _ := v.([]any)
	out := make([]any, len(old), len(old)+1)
	copy(out, old)
	return append(out, child)
}

// attachTo выставляет обратную ссылку: предпочтительно типизированную родителем, иначе нетипизированную.
func (n *Node) attachTo(parent *Node) {
	var untyped string
	for _, p := range n.entity.BackReferences() {
		if p.Type == parent.EntityName() {
			n.props[p.Name] = parent
			return
		}
		if p.Type == "" && untyped == "" {
			untyped = p.Name
		}
	}
	if untyped != "" {
		n.props[untyped] = parent
	}
}

// removeChild вынимает child из всех слотов через SetProperty.
func (n *Node) removeChild(child *Node) {
	rel, ok := n.entity.Child(child.EntityName())
	if !ok {
		return
	}
	done := make(map[string]bool)
	for _, s := range rel.Slots {
		if done[s.Property] {
			continue
		}
		switch v := n.props[s.Property].(type) {
		case *Node:
			if v == child {
				n.SetProperty(s.Property, nil)
			}
		case []any:
			if out, changed := without(v, child); changed {
				n.SetProperty(s.Property, out)
			}
		case map[string]any:
			m := make(map[string]any, len(v))
			changed := false
			for k, it := range v {
				switch t := it.(type) {
				case *Node:
					if t == child {
						changed = true
						continue
					}
				case []any:
					if out, ok := without(t, child); ok {
						m[k] = out
						changed = true
						continue
					}
				}
				m[k] = it
			}
			if changed {
				n.SetProperty(s.Property, m)
			}
			done[s.Property] = true
		}
	}
}

func without(list []any, child *Node) ([]any, bool) {
	out := make([]any, 0, len(list))
	for _, it := range list {
		if c, ok := it.(*Node); ok && c == child {
			continue
		}
		out = append(out, it)
	}
	return out, len(out) != len(list)
}

// Descendants — все потомки сущности entity (сам узел не входит).
func (n *Node) Descendants(entity string) ([]*Node, error) {
	target, err := n.session.registry.Entity(entity)
	if err != nil {
		return nil, err
	}
	if !n.entity.IsAncestorOf(target) {
		return nil, fmt.Errorf("%s is not a descendant of %s: %w", entity, n.entity.Name, ErrNotRelated)
	}
	var out []*Node
	var visit func(*Node)
	visit = func(cur *Node) {
		for _, c := range cur.AllChildren() {
			if c.entity == target {
				out = append(out, c)
			}
			if c.entity.IsAncestorOf(target) {
				visit(c)
			}
		}
	}
	visit(n)
	return out, nil
}

// IsDescendantOf проходит по родителям; ErrParentNotSet по пути возвращается как есть.
func (n *Node) IsDescendantOf(other *Node) (bool, error) {
	cur := n
	for {
		parent, err := cur.Parent()
		if err != nil {
			return false, err
		}
		if parent == nil {
			return false, nil
		}
		if parent == other {
			return true, nil
		}
		cur = parent
	}
}

func (n *Node) IsAncestorOf(other *Node) (bool, error) {
	return other.IsDescendantOf(n)
}

// Ancestor — ближайший предок сущности entity.
func (n *Node) Ancestor(entity string) (*Node, error) {
	cur := n
	for {
		parent, err := cur.Parent()
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("%s has no %s ancestor: %w", n, entity, ErrNotRelated)
		}
		if parent.entity.Name == entity {
			return parent, nil
		}
		cur = parent
	}
}

// Root поднимается, пока есть родитель; у отсоединенного узла корнем считается он сам
// (или самый верхний из присоединенных предков).
func (n *Node) Root() *Node {
	cur := n
	for {
		parent, err := cur.Parent()
		if err != nil || parent == nil {
			return cur
		}
		cur = parent
	}
}

// Siblings — дети родителя той же сущности, кроме самого узла.
func (n *Node) Siblings() ([]*Node, error) {
	parent, err := n.Parent()
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, nil
	}
	all, err := parent.Children(n.entity.Name, AllSlots)
	if err != nil {
		return nil, err
	}
	out := make([]*Node, 0, len(all))
	for _, c := range all {
		if c != n {
			out = append(out, c)
		}
	}
	return out, nil
}

// Walk обходит поддерево в глубину, начиная с n. Если fn вернула false, дети узла пропускаются.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.AllChildren() {
		c.Walk(fn)
	}
}
