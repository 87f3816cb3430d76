package node

import (
	"sort"
	"strings"
)

// Search ищет без учета регистра по id и подписи среди потомков; сам узел не проверяется.
// Пустой languages — подпись на любом языке.
func (n *Node) Search(text string, languages []string) []*Node {
	q := strings.ToLower(strings.TrimSpace(text))
	var out []*Node
	for _, child := range n.AllChildren() {
		child.Walk(func(cur *Node) bool {
			if cur.matches(q, languages) {
				out = append(out, cur)
			}
			return true
		})
	}
	return out
}

func (n *Node) matches(q string, languages []string) bool {
	if strings.Contains(strings.ToLower(n.ID()), q) {
		return true
	}
	for _, v := range n.labels(languages) {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

func (n *Node) labels(languages []string) []string {
	if n.entity.LabelProperty == "" {
		return nil
	}
	switch v := n.props[n.entity.LabelProperty].(type) {
	case string:
		return []string{v}
	case map[string]any:
		if len(languages) == 0 {
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			languages = keys
		}
		var out []string
		for _, lang := range languages {
			if s, ok := v[lang].(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Label — подпись на первом найденном языке из languages, иначе на любом, иначе id.
func (n *Node) Label(languages ...string) string {
	if l := n.labels(languages); len(l) > 0 {
		return l[0]
	}
	if len(languages) > 0 {
		if l := n.labels(nil); len(l) > 0 {
			return l[0]
		}
	}
	return n.ID()
}
