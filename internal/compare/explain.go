package compare

import (
	"configurator/internal/node"
)

// Record — различие в виде, пригодном для JSON.
type Record struct {
	Kind        Kind     `json:"kind"`
	Change      Change   `json:"change"`
	Node        string   `json:"node"`
	Entity      string   `json:"entity"`
	Property    string   `json:"property,omitempty"`
	Value       any      `json:"value,omitempty"`
	OtherValue  any      `json:"otherValue,omitempty"`
	Index       *int     `json:"index,omitempty"`
	ChildEntity string   `json:"childEntity,omitempty"`
	ChildID     string   `json:"childId,omitempty"`
	Message     string   `json:"message"`
	Results     []Record `json:"results,omitempty"`
}

// Describe переводит различие в Record; Node — глобальный id узла-владельца.
func Describe(d Difference) Record {
	owner := d.Owner()
	gid, err := owner.GlobalID(nil)
	if err != nil {
		gid = owner.String()
	}
	r := Record{Kind: d.Kind(), Change: d.Change(), Node: gid, Entity: owner.EntityName(), Message: d.Message()}
	switch t := d.(type) {
	case *PropertyDifference:
		r.Property, r.Value, r.OtherValue = t.Property, exportValue(t.Value), exportValue(t.OtherValue)
	case *ArrayElementDifference:
		index := t.Index
		r.Property, r.Index, r.Value, r.OtherValue = t.Property, &index, t.Element, t.OtherElement
	case *ArrayLengthDifference:
		r.Property, r.Value = t.Property, t.Element
	case *ArrayOrderingDifference:
		r.Property = t.Property
	case *ChildDifference:
		r.ChildEntity, r.ChildID = t.Entity, t.ChildID()
	}
	return r
}

func exportValue(v any) any {
	if n, ok := v.(*node.Node); ok && n != nil {
		return n.Export()
	}
	return v
}

// Entry — различие вместе с различиями, которые из него следуют
// (например, замены id в ссылках после переименования).
type Entry struct {
	Difference Difference
	Results    []Difference
}

// Explain группирует следствия: изменения id поглощают такие же замены в ссылках,
// удаленные дети поглощают исчезнувшие ссылки на себя.
func Explain(diffs []Difference) []Entry {
	var renames []*PropertyDifference
	for _, d := range diffs {
		if p, ok := d.(*PropertyDifference); ok && p.Property == "id" {
			renames = append(renames, p)
		}
	}
	results := make(map[Difference][]Difference)
	consumed := make(map[Difference]bool)

	for _, d := range diffs {
		for i := len(renames) - 1; i >= 0; i-- {
			id := renames[i]
			if resultsFromRename(d, id) {
				results[id] = append(results[id], d)
				consumed[d] = true
				break
			}
		}
	}

	var removals []*ChildDifference
	for _, d := range diffs {
		if c, ok := d.(*ChildDifference); ok && !c.Added {
			removals = append(removals, c)
		}
	}
	for _, d := range diffs {
		if consumed[d] {
			continue
		}
		for _, c := range removals {
			if resultsFromRemoval(d, c) {
				results[c] = append(results[c], d)
				consumed[d] = true
				break
			}
		}
	}

	out := make([]Entry, 0, len(diffs))
	for _, d := range diffs {
		if !consumed[d] {
			out = append(out, Entry{Difference: d, Results: results[d]})
		}
	}
	return out
}

func resultsFromRename(d Difference, id *PropertyDifference) bool {
	switch t := d.(type) {
	case *PropertyDifference:
		return t.Property != "id" && node.Equal(t.Value, id.Value) && node.Equal(t.OtherValue, id.OtherValue)
	case *ArrayElementDifference:
		return node.Equal(t.Element, id.Value) && node.Equal(t.OtherElement, id.OtherValue)
	}
	return false
}

func resultsFromRemoval(d Difference, c *ChildDifference) bool {
	id := c.ChildID()
	if id == "" {
		return false
	}
	switch t := d.(type) {
	case *PropertyDifference:
		return t.Property != "id" && node.Equal(t.OtherValue, id) && empty(t.Value)
	case *ArrayLengthDifference:
		return node.Equal(t.Element, id)
	}
	return false
}

func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	}
	if f, ok := node.Number(v); ok {
		return f == 0
	}
	return false
}

// Summary — число различий по характеру, как в итоговой строке сравнения.
type Summary struct {
	Modifications int `json:"modifications"`
	Additions     int `json:"additions"`
	Deletions     int `json:"deletions"`
}

func (s Summary) Total() int { return s.Modifications + s.Additions + s.Deletions }

func Summarize(entries []Entry) Summary {
	var s Summary
	for _, e := range entries {
		switch e.Difference.Change() {
		case Modification:
			s.Modifications++
		case Addition:
			s.Additions++
		case Deletion:
			s.Deletions++
		}
	}
	return s
}

// DescribeEntries — Explain в виде записей для JSON.
func DescribeEntries(entries []Entry) []Record {
	out := make([]Record, len(entries))
	for i, e := range entries {
		out[i] = Describe(e.Difference)
		for _, r := range e.Results {
			out[i].Results = append(out[i].Results, Describe(r))
		}
	}
	return out
}
