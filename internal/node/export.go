package node

import (
	"encoding/json"
)

// Export превращает поддерево в обычные значения JSON: className плюс свойства,
// без обратных ссылок.
func (n *Node) Export() map[string]any {
	out := make(map[string]any, len(n.props)+1)
	out[EntityProperty] = n.entity.Name
	for k, v := range n.props {
		if p, ok := n.entity.Property(k); ok && p.BackReference {
			continue
		}
		out[k] = exportValue(v)
	}
	return out
}

func exportValue(v any) any {
	switch t := v.(type) {
	case *Node:
		if t == nil {
			return nil
		}
		return t.Export()
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = exportValue(t[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, it := range t {
			out[k] = exportValue(it)
		}
		return out
	}
	return v
}

func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Export())
}
