package node

import (
	"configurator/internal/bus"
)

type holderRef struct {
	holder, property, target string
}

// installReferenceKeeping вешает поведения, поддерживающие целостность графа:
// удаленный ребенок вынимается из родителя, id удаленной цели стираются из ссылок,
// переименованная цель переименовывается во всех ссылках.
func (s *Session) installReferenceKeeping() {
	seen := make(map[holderRef]bool)
	for _, e := range s.registry.Entities() {
		for _, c := range e.Children {
			s.Handle(e.Name, "onDelete"+c.Entity, func(self *Node, ev bus.Event) {
				del, ok := ev.(DeleteNode)
				if !ok {
					return
				}
				if parent, err := del.Node.Parent(); err == nil && parent == self {
					self.removeChild(del.Node)
				}
			})
		}
		for _, r := range e.Relations {
			holder, target := r.Holder(e.Name)
			for _, p := range r.Properties {
				ref := holderRef{holder: holder, property: p, target: target}
				if seen[ref] {
					continue
				}
				seen[ref] = true
				s.keepReference(ref)
			}
		}
	}
}

func (s *Session) keepReference(ref holderRef) {
	prop := ref.property
	s.Handle(ref.holder, "onDelete"+ref.target, func(self *Node, ev bus.Event) {
		del, ok := ev.(DeleteNode)
		if !ok || del.Node.Root() != self.Root() || del.Node.ID() == "" {
			return
		}
		self.replaceID(prop, del.Node.ID(), nil)
	})
	s.Handle(ref.holder, "onChange"+ref.target+"Id", func(self *Node, ev bus.Event) {
		ch, ok := ev.(ChangeProperty)
		if !ok || ch.Node.Root() != self.Root() {
			return
		}
		old, _ := ch.Old.(string)
		renamed, _ := ch.New.(string)
		if old == "" {
			return
		}
		if renamed == "" {
			self.replaceID(prop, old, nil)
			return
		}
		self.replaceID(prop, old, &renamed)
	})
}

// replaceID заменяет id в свойстве-ссылке; to == nil — удаляет.
func (n *Node) replaceID(prop, from string, to *string) {
	switch v := n.props[prop].(type) {
	case string:
		if v != from {
			return
		}
		if to == nil {
			n.SetProperty(prop, nil)
			return
		}
		n.SetProperty(prop, *to)
	case []any:
		out := make([]any, 0, len(v))
		changed := false
		for _, it := range v {
			if s, ok := it.(string); ok && s == from {
				changed = true
				if to != nil {
					out = append(out, *to)
				}
				continue
			}
			out = append(out, it)
		}
		if changed {
			n.SetProperty(prop, out)
		}
	}
}
