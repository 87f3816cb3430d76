package schema

import "fmt"

type Issue struct {
	Entity  string `json:"entity"`
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("%s: %s", i.Entity, i.Message)
	}
	return fmt.Sprintf("%s.%s: %s", i.Entity, i.Field, i.Message)
}

// Lint проверяет базовые противоречия схемы: неизвестные типы, слоты детей,
// обратные ссылки детей на родителя и свойства, на которых держатся связи.
func (r *Registry) Lint() []Issue {
	var issues []Issue
	add := func(entity, field, code, format string, args ...any) {
		issues = append(issues, Issue{Entity: entity, Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	for _, e := range r.order {
		for _, p := range e.Properties {
			if p.Type != "" && !IsPrimitive(p.Type) && !r.has(p.Type) {
				add(e.Name, p.Name, "property_type_unknown", "unknown type %q", p.Type)
			}
			if p.Subtype != "" && !IsPrimitive(p.Subtype) && !r.has(p.Subtype) {
				add(e.Name, p.Name, "property_subtype_unknown", "unknown subtype %q", p.Subtype)
			}
		}

		for _, c := range e.Children {
			child, ok := r.entities[c.Entity]
			if !ok {
				add(e.Name, "", "child_unknown", "unknown child entity %q", c.Entity)
				continue
			}
			if len(c.Slots) > 0 && len(c.Slots) != c.Size {
				add(e.Name, "", "slot_count", "child %s declares size %d but %d slots", c.Entity, c.Size, len(c.Slots))
			}
			if len(c.Names) > 0 && len(c.Names) != c.Size {
				add(e.Name, "", "slot_names", "child %s declares size %d but %d slot names", c.Entity, c.Size, len(c.Names))
			}
			for _, s := range c.Slots {
				p, ok := e.Property(s.Property)
				if !ok {
					add(e.Name, s.Property, "slot_property_unknown", "slot property for child %s is not declared", c.Entity)
					continue
				}
				switch {
				case s.Key != "" || s.Values:
					if p.Type != TypeObject {
						add(e.Name, p.Name, "slot_property_type", "keyed slot for child %s requires an object property", c.Entity)
					}
				case s.Single:
					if p.Type != c.Entity {
						add(e.Name, p.Name, "slot_property_type", "single slot for child %s has type %q", c.Entity, p.Type)
					}
				default:
					if p.Subtype != "" && p.Subtype != c.Entity {
						add(e.Name, p.Name, "slot_property_type", "list slot for child %s has subtype %q", c.Entity, p.Subtype)
					}
				}
			}
			if !hasBackReferenceTo(child, e.Name) {
				add(child.Name, "", "back_reference_missing", "no back-reference to parent %s", e.Name)
			}
		}

		for _, rel := range e.Relations {
			target, ok := r.entities[rel.Entity]
			if !ok {
				add(e.Name, "", "relation_unknown", "unknown related entity %q", rel.Entity)
				continue
			}
			holderName, _ := rel.Holder(e.Name)
			holder, ok := r.entities[holderName]
			if !ok {
				add(e.Name, "", "via_unknown", "relation %s goes through unknown entity %q", rel.Entity, holderName)
				continue
			}
			for _, prop := range rel.Properties {
				if _, ok := holder.Property(prop); !ok {
					add(e.Name, prop, "relation_property_unknown", "relation %s: property is not declared on %s", rel.Entity, holder.Name)
				}
			}
			if rel.Via != "" {
				base := e
				if rel.Inverse {
					base = target
				}
				if len(r.findPath(Children, base, holder)) == 0 {
					add(e.Name, "", "via_unreachable", "relation %s: %s is not a descendant of %s", rel.Entity, holder.Name, base.Name)
				}
			}
		}
	}
	return issues
}

func hasBackReferenceTo(child *Entity, parent string) bool {
	for _, p := range child.BackReferences() {
		if p.Type == "" || p.Type == parent {
			return true
		}
	}
	return false
}
