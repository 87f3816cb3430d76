package node

import (
	"errors"
	"fmt"
)

// Relations разрешает ссылки на сущность entity по описанию связи в схеме.
// Прямая связь: id берутся из свойств узла (или его потомков Via) в порядке появления.
// Обратная: цель связана, если она (или ее потомки Via) хранит id этого узла.
func (n *Node) Relations(entity string) ([]*Node, error) {
	rel, ok := n.entity.Relation(entity)
	if !ok {
		return nil, fmt.Errorf("%s is not related to %s: %w", n.entity.Name, entity, ErrNotRelated)
	}
	if len(rel.Properties) == 0 {
		return nil, fmt.Errorf("relation %s -> %s: %w", n.entity.Name, entity, ErrNotImplemented)
	}
	candidates := n.Root().ofEntity(entity)

	if !rel.Inverse {
		var ids []string
		seen := make(map[string]bool)
		for _, h := range n.holders(rel.Via) {
			for _, p := range rel.Properties {
				for _, id := range Strings(h.props[p]) {
					if !seen[id] {
						seen[id] = true
						ids = append(ids, id)
					}
				}
			}
		}
		var out []*Node
		for _, id := range ids {
			for _, c := range candidates {
				if c.ID() == id {
					out = append(out, c)
					break
				}
			}
		}
		return out, nil
	}

	id := n.ID()
	if id == "" {
		return nil, nil
	}
	var out []*Node
	for _, c := range candidates {
		if c.holdsID(rel.Via, rel.Properties, id) {
			out = append(out, c)
		}
	}
	return out, nil
}

// ofEntity — сам узел (если подходит) и все его потомки сущности entity.
func (n *Node) ofEntity(entity string) []*Node {
	var out []*Node
	if n.entity.Name == entity {
		out = append(out, n)
	}
	desc, _ := n.Descendants(entity)
	return append(out, desc...)
}

func (n *Node) holders(via string) []*Node {
	if via == "" {
		return []*Node{n}
	}
	return n.ofEntity(via)
}

func (n *Node) holdsID(via string, props []string, id string) bool {
	for _, h := range n.holders(via) {
		for _, p := range props {
			for _, v := range Strings(h.props[p]) {
				if v == id {
					return true
				}
			}
		}
	}
	return false
}

// Usage — узлы по структурирующим связям, сгруппированные по сущности.
// Нереализованные связи пропускаются.
func (n *Node) Usage() map[string][]*Node {
	out := make(map[string][]*Node)
	for _, rel := range n.entity.Relations {
		if !rel.Structuring {
			continue
		}
		related, err := n.Relations(rel.Entity)
		if errors.Is(err, ErrNotImplemented) {
			n.session.log.Debug("usage: relation skipped", "entity", n.entity.Name, "target", rel.Entity)
			continue
		}
		if err != nil || len(related) == 0 {
			continue
		}
		out[rel.Entity] = related
	}
	return out
}

func (n *Node) IsUsed() bool {
	return n.entity.AlwaysUsed || len(n.Usage()) > 0
}
