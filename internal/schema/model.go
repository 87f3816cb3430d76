package schema

import "strings"

// Примитивные типы свойств. Все остальные непустые типы — имена сущностей.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
)

func IsPrimitive(t string) bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeObject, TypeArray:
		return true
	}
	return false
}

// RelationKind выбирает граф, по которому идет поиск пути.
type RelationKind int

const (
	Children RelationKind = iota
	Relations
)

func (k RelationKind) String() string {
	if k == Relations {
		return "relations"
	}
	return "children"
}

// ParseRelationKind понимает "children" и "relations" (по умолчанию children).
func ParseRelationKind(s string) (RelationKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "children":
		return Children, true
	case "relations":
		return Relations, true
	}
	return Children, false
}

type Property struct {
	Name          string `json:"name"`
	Type          string `json:"type,omitempty"`
	Subtype       string `json:"subtype,omitempty"`
	BackReference bool   `json:"backReference,omitempty"`
	Default       any    `json:"default,omitempty"`
}

// Slot — место хранения детей одного индекса.
// Key != "" — элемент словаря Property[Key]; Values — все значения словаря; Single — одиночный узел.
type Slot struct {
	Property string `json:"property"`
	Key      string `json:"key,omitempty"`
	Values   bool   `json:"values,omitempty"`
	Single   bool   `json:"single,omitempty"`
}

type ChildRelation struct {
	Entity string   `json:"entity"`
	Size   int      `json:"size"`
	Names  []string `json:"names,omitempty"`
	Slots  []Slot   `json:"slots,omitempty"`
}

// Relation — ссылка без владения.
// Inverse: свойство принадлежит целевой сущности и хранит id этого узла.
// Via: свойство принадлежит потомкам типа Via (у этого узла либо у цели при Inverse).
type Relation struct {
	Entity      string   `json:"entity"`
	Structuring bool     `json:"structuring"`
	Properties  []string `json:"properties,omitempty"`
	Inverse     bool     `json:"inverse,omitempty"`
	Via         string   `json:"via,omitempty"`
}

// Holder возвращает сущность, в свойствах которой лежат id, и сущность, на которую они указывают.
func (r Relation) Holder(owner string) (holder, target string) {
	holder, target = owner, r.Entity
	if r.Inverse {
		holder, target = r.Entity, owner
	}
	if r.Via != "" {
		holder = r.Via
	}
	return holder, target
}

type Entity struct {
	Name                 string          `json:"name"`
	Label                string          `json:"label"`
	PluralLabel          string          `json:"pluralLabel"`
	ConfigurationName    string          `json:"configurationName"`
	ComparisonStructural bool            `json:"comparisonStructural"`
	LabelProperty        string          `json:"labelProperty"`
	AlwaysUsed           bool            `json:"alwaysUsed,omitempty"`
	Properties           []Property      `json:"properties"`
	Children             []ChildRelation `json:"children"`
	Relations            []Relation      `json:"relations"`

	registry *Registry
	props    map[string]int
}

func (e *Entity) Property(name string) (Property, bool) {
	i, ok := e.props[name]
	if !ok {
		return Property{}, false
	}
	return e.Properties[i], true
}

func (e *Entity) Child(name string) (ChildRelation, bool) {
	for _, c := range e.Children {
		if c.Entity == name {
			return c, true
		}
	}
	return ChildRelation{}, false
}

func (e *Entity) Relation(name string) (Relation, bool) {
	for _, r := range e.Relations {
		if r.Entity == name {
			return r, true
		}
	}
	return Relation{}, false
}

func (e *Entity) BackReferences() []Property {
	var out []Property
	for _, p := range e.Properties {
		if p.BackReference {
			out = append(out, p)
		}
	}
	return out
}

// IsLink — свойство описывает структуру (ссылка на сущность или обратная ссылка), а не значение.
func (e *Entity) IsLink(p Property) bool {
	if p.BackReference {
		return true
	}
	if e.registry == nil {
		return !IsPrimitive(p.Type) && p.Type != ""
	}
	return e.registry.has(p.Type) || e.registry.has(p.Subtype)
}

func (e *Entity) GetPath(other *Entity) []*Entity {
	return e.registry.findPath(Children, e, other)
}

func (e *Entity) IsAncestorOf(other *Entity) bool {
	return len(e.GetPath(other)) > 0
}

func (e *Entity) IsDescendantOf(other *Entity) bool {
	return other.IsAncestorOf(e)
}

func (e *Entity) IsDirectlyRelatedTo(other *Entity) bool {
	_, ok := e.Relation(other.Name)
	return ok
}

func (e *Entity) IsRelatedTo(other *Entity) bool {
	return len(e.registry.findPath(Relations, e, other)) > 0
}

func (e *Entity) edges(kind RelationKind) []string {
	if kind == Relations {
		out := make([]string, len(e.Relations))
		for i, r := range e.Relations {
			out[i] = r.Entity
		}
		return out
	}
	out := make([]string, len(e.Children))
	for i, c := range e.Children {
		out[i] = c.Entity
	}
	return out
}
