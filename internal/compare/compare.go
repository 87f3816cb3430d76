package compare

import (
	"configurator/internal/node"
	"configurator/internal/schema"
)

const (
	// matchThreshold — пара детей принимается, только если оценка строго меньше.
	matchThreshold = 3
	// sameIDBonus вычитается из оценки, если id у пары совпадает.
	sameIDBonus = 5
)

// CompareSelf сравнивает собственные свойства a и b: ссылки и обратные ссылки пропускаются,
// словари тоже, массивы сравниваются поэлементно.
func CompareSelf(a, b *node.Node) []Difference {
	var out []Difference
	e := a.Entity()
	for _, p := range e.Properties {
		if e.IsLink(p) {
			continue
		}
		value, other := a.Get(p.Name), b.Get(p.Name)
		if _, isMap := value.(map[string]any); isMap {
			continue
		}
		list, isList := value.([]any)
		if !isList {
			if !node.Equal(value, other) {
				out = append(out, &PropertyDifference{Node: a, Property: p.Name, Value: value, OtherValue: other})
			}
			continue
		}
		otherList, ok := other.([]any)
		if !ok {
			out = append(out, &PropertyDifference{Node: a, Property: p.Name, Value: value, OtherValue: other})
			continue
		}
		out = append(out, compareArrays(a, p.Name, list, otherList)...)
	}
	return out
}

func compareArrays(n *node.Node, property string, value, other []any) []Difference {
	var out []Difference
	additions := make(map[int]any)
	deletions := make(map[int]any)
	var positions []int
	for i, el := range value {
		if j := indexOf(other, el); j == -1 {
			additions[i] = el
		} else {
			positions = append(positions, j)
		}
	}
	if len(positions) < len(other) {
		for i := range other {
			if !containsInt(positions, i) {
				deletions[i] = other[i]
			}
		}
	}
	added := valuesByIndex(additions)
	deleted := valuesByIndex(deletions)

	for i := range value {
		el, isAdded := additions[i]
		otherEl, isDeleted := deletions[i]
		if isAdded && isDeleted {
			out = append(out, &ArrayElementDifference{Node: n, Property: property, Index: i, Element: el, OtherElement: otherEl})
			delete(additions, i)
			delete(deletions, i)
		}
	}
	for _, el := range valuesByIndex(additions) {
		out = append(out, &ArrayLengthDifference{Node: n, Property: property, Added: true, Element: el})
	}
	for _, el := range valuesByIndex(deletions) {
		out = append(out, &ArrayLengthDifference{Node: n, Property: property, Added: false, Element: el})
	}
	if !node.Equal(removeAll(value, added), removeAll(other, deleted)) {
		out = append(out, &ArrayOrderingDifference{Node: n, Property: property})
	}
	return out
}

// Compare — CompareSelf плюс жадное сопоставление детей по каждому слоту.
// Для каждого ребенка a берется свободный ребенок b с наименьшей оценкой.
func Compare(a, b *node.Node) []Difference {
	out := CompareSelf(a, b)
	for _, rel := range a.Entity().Children {
		for slot := range rel.Slots {
			children, err := a.Children(rel.Entity, slot)
			if err != nil {
				continue
			}
			others, err := b.Children(rel.Entity, slot)
			if err != nil {
				continue
			}
			out = append(out, compareSlot(a, rel, slot, children, others)...)
		}
	}
	return out
}

func compareSlot(a *node.Node, rel schema.ChildRelation, slot int, children, others []*node.Node) []Difference {
	var out []Difference
	var positions []int
	var added []*node.Node
	for _, child := range children {
		best, bestScore, found := -1, 0, false
		for j, other := range others {
			if containsInt(positions, j) {
				continue
			}
			score := matchScore(CompareSelf(child, other))
			if !found || score < bestScore {
				best, bestScore, found = j, score, true
			}
		}
		if found && bestScore < matchThreshold {
			positions = append(positions, best)
			out = append(out, Compare(child, others[best])...)
		} else {
			added = append(added, child)
		}
	}
	for _, child := range added {
		out = append(out, &ChildDifference{Node: a, Entity: rel.Entity, Child: child, Added: true})
	}
	deleted := 0
	for j, other := range others {
		if !containsInt(positions, j) {
			deleted++
			out = append(out, &ChildDifference{Node: a, Entity: rel.Entity, Child: other, Added: false})
		}
	}
	if len(added) == 0 && deleted == 0 && !ascending(positions) {
		if e, err := a.Session().Registry().Entity(rel.Entity); err == nil && e.ComparisonStructural {
			out = append(out, &ArrayOrderingDifference{Node: a, Property: rel.Slots[slot].Property})
		}
	}
	return out
}

func matchScore(diffs []Difference) int {
	score := len(diffs)
	for _, d := range diffs {
		if p, ok := d.(*PropertyDifference); ok && p.Property == "id" {
			return score
		}
	}
	return score - sameIDBonus
}

func indexOf(list []any, v any) int {
	for i, it := range list {
		if node.Equal(it, v) {
			return i
		}
	}
	return -1
}

func containsInt(list []int, v int) bool {
	for _, it := range list {
		if it == v {
			return true
		}
	}
	return false
}

func ascending(list []int) bool {
	for i := 1; i < len(list); i++ {
		if list[i] < list[i-1] {
			return false
		}
	}
	return true
}

func valuesByIndex(m map[int]any) []any {
	if len(m) == 0 {
		return nil
	}
	last := -1
	for i := range m {
		if i > last {
			last = i
		}
	}
	out := make([]any, 0, len(m))
	for i := 0; i <= last; i++ {
		if v, ok := m[i]; ok {
			out = append(out, v)
		}
	}
	return out
}

func removeAll(list, remove []any) []any {
	out := make([]any, 0, len(list))
	for _, it := range list {
		if indexOf(remove, it) == -1 {
			out = append(out, it)
		}
	}
	return out
}
