package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"configurator/internal/reference"

	"gopkg.in/yaml.v3"
)

//go:embed entities.yaml
var embedded []byte

var ErrUnknownEntity = errors.New("unknown entity")

// Registry — неизменяемый после загрузки каталог сущностей.
type Registry struct {
	entities map[string]*Entity
	order    []*Entity
}

// Default загружает встроенную схему.
func Default(catalog reference.Catalog) (*Registry, error) {
	return Parse(embedded, catalog)
}

func LoadFile(path string, catalog reference.Catalog) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Parse(data, catalog)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse строит реестр и сразу проверяет его: имя сущности обязано совпадать с ключом,
// а Lint не должен находить проблем.
func Parse(data []byte, catalog reference.Catalog) (*Registry, error) {
	var doc ordered[entityDecl]
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	r := &Registry{entities: make(map[string]*Entity, len(doc))}
	for _, en := range doc {
		d := en.Value
		if d.Name != en.Key {
			return nil, fmt.Errorf("entity name %q does not match its key %q (line %d)", d.Name, en.Key, en.Line)
		}
		e, err := build(d, catalog)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", d.Name, err)
		}
		e.registry = r
		r.entities[e.Name] = e
		r.order = append(r.order, e)
	}
	if issues := r.Lint(); len(issues) > 0 {
		return nil, &LintError{Issues: issues}
	}
	return r, nil
}

func build(d entityDecl, catalog reference.Catalog) (*Entity, error) {
	e := &Entity{
		Name:                 d.Name,
		Label:                d.Label,
		PluralLabel:          d.PluralLabel,
		ConfigurationName:    d.ConfigurationName,
		ComparisonStructural: d.ComparisonStructural,
		LabelProperty:        d.LabelProperty,
		AlwaysUsed:           d.AlwaysUsed,
		props:                make(map[string]int, len(d.Properties)),
	}
	if e.LabelProperty == "" {
		e.LabelProperty = "shortname"
	}
	for _, p := range d.Properties {
		e.props[p.Key] = len(e.Properties)
		e.Properties = append(e.Properties, Property{
			Name:          p.Key,
			Type:          p.Value.Type,
			Subtype:       p.Value.Subtype,
			BackReference: p.Value.BackReference,
			Default:       normalizeNumber(p.Value.Default),
		})
	}
	for _, c := range d.Children {
		slots, err := parseSlots(c.Value.Slots, catalog)
		if err != nil {
			return nil, fmt.Errorf("child %s: %w", c.Key, err)
		}
		for i := range slots {
			if p, ok := e.Property(slots[i].Property); ok && slots[i].Key == "" && !slots[i].Values {
				slots[i].Single = p.Type != TypeArray
			}
		}
		size := c.Value.Size
		if size == 0 {
			size = max(len(slots), 1)
		}
		e.Children = append(e.Children, ChildRelation{
			Entity: c.Key,
			Size:   size,
			Names:  c.Value.Names,
			Slots:  slots,
		})
	}
	for _, rel := range d.Relations {
		e.Relations = append(e.Relations, Relation{
			Entity:      rel.Key,
			Structuring: rel.Value.Structuring,
			Properties:  rel.Value.Property,
			Inverse:     rel.Value.Inverse,
			Via:         rel.Value.Via,
		})
	}
	return e, nil
}

// parseSlots разбирает "prop", "prop.KEY", "prop{}" и "prop[@справочник]".
func parseSlots(raw []string, catalog reference.Catalog) ([]Slot, error) {
	var out []Slot
	for _, s := range raw {
		switch {
		case strings.HasSuffix(s, "]"):
			open := strings.Index(s, "[@")
			if open <= 0 {
				return nil, fmt.Errorf("malformed slot %q", s)
			}
			name := s[open+2 : len(s)-1]
			dir, ok := catalog[name]
			if !ok {
				return nil, fmt.Errorf("slot %q: unknown enum directory %q", s, name)
			}
			for _, code := range dir.Codes() {
				out = append(out, Slot{Property: s[:open], Key: code})
			}
		case strings.HasSuffix(s, "{}"):
			out = append(out, Slot{Property: strings.TrimSuffix(s, "{}"), Values: true})
		case strings.Contains(s, "."):
			prop, key, _ := strings.Cut(s, ".")
			out = append(out, Slot{Property: prop, Key: key})
		default:
			out = append(out, Slot{Property: s})
		}
	}
	return out, nil
}

func normalizeNumber(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return v
}

// Entity возвращает схему по имени или ErrUnknownEntity.
func (r *Registry) Entity(name string) (*Entity, error) {
	if e, ok := r.entities[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
}

func (r *Registry) MustEntity(name string) *Entity {
	e, err := r.Entity(name)
	if err != nil {
		panic(err)
	}
	return e
}

func (r *Registry) has(name string) bool {
	_, ok := r.entities[name]
	return ok
}

// Entities — все сущности в порядке объявления.
func (r *Registry) Entities() []*Entity {
	return append([]*Entity(nil), r.order...)
}

// Normalize ищет сущность без учета регистра ("scopemodel" -> "ScopeModel").
func (r *Registry) Normalize(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	if _, ok := r.entities[name]; ok {
		return name, true
	}
	for _, e := range r.order {
		if strings.EqualFold(e.Name, name) || strings.EqualFold(e.ConfigurationName, name) {
			return e.Name, true
		}
	}
	return "", false
}

// FindPath ищет путь от source до target в графе детей или связей.
// Результат не содержит source и заканчивается target; пустой, если пути нет.
func (r *Registry) FindPath(kind RelationKind, source, target string) ([]*Entity, error) {
	src, err := r.Entity(source)
	if err != nil {
		return nil, err
	}
	dst, err := r.Entity(target)
	if err != nil {
		return nil, err
	}
	return r.findPath(kind, src, dst), nil
}

// findPath — поиск в глубину с множеством посещенных: граф связей содержит циклы.
func (r *Registry) findPath(kind RelationKind, source, target *Entity) []*Entity {
	visited := make(map[string]bool)
	var walk func(current *Entity) []*Entity
	walk = func(current *Entity) []*Entity {
		if visited[current.Name] {
			return nil
		}
		visited[current.Name] = true
		edges := current.edges(kind)
		for _, name := range edges {
			if name == target.Name {
				return []*Entity{target}
			}
		}
		for _, name := range edges {
			next, ok := r.entities[name]
			if !ok {
				continue
			}
			if rest := walk(next); len(rest) > 0 {
				return append([]*Entity{next}, rest...)
			}
		}
		return nil
	}
	return walk(source)
}

// Parents возвращает сущности, объявившие name своим ребенком.
func (r *Registry) Parents(name string) []*Entity {
	var out []*Entity
	for _, e := range r.order {
		if _, ok := e.Child(name); ok {
			out = append(out, e)
		}
	}
	return out
}

type LintError struct {
	Issues []Issue
}

func (e *LintError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		msgs = append(msgs, is.String())
	}
	sort.Strings(msgs)
	if len(msgs) > 3 {
		msgs = append(msgs[:3], fmt.Sprintf("and %d more", len(e.Issues)-3))
	}
	return "schema lint: " + strings.Join(msgs, "; ")
}
