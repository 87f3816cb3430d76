package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ordered сохраняет порядок ключей YAML-маппинга.
type ordered[T any] []entry[T]

type entry[T any] struct {
	Key   string
	Value T
	Line  int
}

func (o *ordered[T]) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected mapping", n.Line)
	}
	seen := make(map[string]struct{}, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if _, dup := seen[k.Value]; dup {
			return fmt.Errorf("line %d: duplicate key %q", k.Line, k.Value)
		}
		seen[k.Value] = struct{}{}
		var val T
		if err := v.Decode(&val); err != nil {
			return fmt.Errorf("%s: %w", k.Value, err)
		}
		*o = append(*o, entry[T]{Key: k.Value, Value: val, Line: k.Line})
	}
	return nil
}

// stringList принимает как скаляр, так и последовательность.
type stringList []string

func (s *stringList) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		if n.Value != "" {
			*s = []string{n.Value}
		}
		return nil
	}
	var list []string
	if err := n.Decode(&list); err != nil {
		return err
	}
	*s = list
	return nil
}

type entityDecl struct {
	Name                 string                `yaml:"name"`
	Label                string                `yaml:"label"`
	PluralLabel          string                `yaml:"plural_label"`
	ConfigurationName    string                `yaml:"configuration_name"`
	ComparisonStructural bool                  `yaml:"comparison_structural"`
	LabelProperty        string                `yaml:"label_property"`
	AlwaysUsed           bool                  `yaml:"always_used"`
	Properties           ordered[propertyDecl] `yaml:"properties"`
	Children             ordered[childDecl]    `yaml:"children"`
	Relations            ordered[relationDecl] `yaml:"relations"`
}

type propertyDecl struct {
	Type          string `yaml:"type"`
	Subtype       string `yaml:"subtype"`
	BackReference bool   `yaml:"back_reference"`
	Default       any    `yaml:"default"`
}

// UnmarshalYAML: "id: string" — краткая форма {type: string}.
func (p *propertyDecl) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		p.Type = n.Value
		return nil
	}
	type plain propertyDecl
	return n.Decode((*plain)(p))
}

type childDecl struct {
	Size  int      `yaml:"size"`
	Names []string `yaml:"names"`
	Slots []string `yaml:"slots"`
}

type relationDecl struct {
	Structuring bool       `yaml:"structuring"`
	Property    stringList `yaml:"property"`
	Inverse     bool       `yaml:"inverse"`
	Via         string     `yaml:"via"`
}
