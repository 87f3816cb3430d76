// Package reviver превращает разобранный JSON конфигурации в граф типизированных объектов.
package reviver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"configurator/internal/schema"
)

var ErrTypeMismatch = errors.New("type mismatch")

type TypeMismatchError struct {
	Expected string
	Actual   string
	Path     string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s: %v", e.Path, e.Expected, e.Actual, ErrTypeMismatch)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// Object — то, во что оживляется типизированный JSON-объект.
type Object interface {
	EntityName() string
	Put(name string, value any)
}

type Options struct {
	// EntityProperty — ключ с именем сущности; по умолчанию "className".
	EntityProperty string

	// Factory строит объект по имени сущности и исходному JSON.
	Factory func(entity string, raw map[string]any) (Object, error)
	// Constructors включает режим нескольких конструкторов: обратная ссылка
	// присваивается только если ее тип совпадает с сущностью контейнера.
	Constructors func(entity string) (func() Object, bool)
	Properties   func(entity string) ([]schema.Property, bool)

	EnforceTypes              bool
	PreserveUnknownProperties bool
	PreserveEntityProperty    bool
	Debug                     bool

	// Callback вызывается после того, как объект заполнен.
	Callback func(obj Object, entity string, container Object, raw map[string]any)
	Logger   *slog.Logger
}

type Reviver struct {
	opts Options
	log  *slog.Logger
}

func New(opts Options) (*Reviver, error) {
	if opts.Factory == nil && opts.Constructors == nil {
		return nil, errors.New("reviver: either Factory or Constructors is required")
	}
	if opts.Properties == nil {
		return nil, errors.New("reviver: Properties is required")
	}
	if opts.EntityProperty == "" {
		opts.EntityProperty = "className"
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Reviver{opts: opts, log: log}, nil
}

// Revive оживляет value; container станет обратной ссылкой объектов верхнего уровня,
// expected — объявленный тип значения (пустой — без проверки).
func (r *Reviver) Revive(value any, container Object, expected string) (any, error) {
	return r.revive(value, container, expected, "$")
}

func (r *Reviver) revive(value any, container Object, expected, path string) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		if err := r.check(expected, schema.TypeArray, path); err != nil {
			return nil, err
		}
		out := make([]any, len(v))
		for i, it := range v {
			rv, err := r.revive(it, container, "", path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	case map[string]any:
		if err := r.check(expected, schema.TypeObject, path); err != nil {
			return nil, err
		}
		if entity, ok := v[r.opts.EntityProperty].(string); ok {
			return r.reviveObject(entity, v, container, path)
		}
		out := make(map[string]any, len(v))
		for _, k := range sortedKeys(v) {
			rv, err := r.revive(v[k], container, "", path+"."+k)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	}
	if err := r.check(expected, jsType(value), path); err != nil {
		return nil, err
	}
	return value, nil
}

// check сравнивает объявленный тип с фактическим. Объектный тип совместим
// с любой сущностью.
func (r *Reviver) check(expected, actual, path string) error {
	if !r.opts.EnforceTypes || expected == "" || expected == actual {
		return nil
	}
	if actual == schema.TypeObject && !schema.IsPrimitive(expected) {
		return nil
	}
	return &TypeMismatchError{Expected: expected, Actual: actual, Path: path}
}

func (r *Reviver) reviveObject(entity string, raw map[string]any, container Object, path string) (Object, error) {
	props, ok := r.opts.Properties(entity)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", path, schema.ErrUnknownEntity, entity)
	}
	obj, err := r.construct(entity, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	path = path + "<" + entity + ">"

	declared := make(map[string]schema.Property, len(props))
	for _, p := range props {
		declared[p.Name] = p
	}
	for _, k := range r.keys(props, raw) {
		value := raw[k]
		if k == r.opts.EntityProperty {
			if r.opts.PreserveEntityProperty {
				obj.Put(k, value)
			}
			continue
		}
		p, ok := declared[k]
		switch {
		case ok && p.BackReference:
			continue
		case ok:
			rv, err := r.revive(value, obj, p.Type, path+"."+k)
			if err != nil {
				return nil, err
			}
			obj.Put(k, rv)
		case r.opts.PreserveUnknownProperties:
			rv, err := r.revive(value, obj, "", path+"."+k)
			if err != nil {
				return nil, err
			}
			obj.Put(k, rv)
		case r.opts.Debug:
			r.log.Debug("reviver: undeclared property dropped", "entity", entity, "property", k, "path", path)
		}
	}

	if container != nil {
		r.assignBackReference(obj, entity, props, container, path)
	}
	if r.opts.Callback != nil {
		r.opts.Callback(obj, entity, container, raw)
	}
	return obj, nil
}

func (r *Reviver) construct(entity string, raw map[string]any) (Object, error) {
	if r.opts.Constructors != nil {
		ctor, ok := r.opts.Constructors(entity)
		if !ok {
			return nil, fmt.Errorf("%w: %s", schema.ErrUnknownEntity, entity)
		}
		return ctor(), nil
	}
	return r.opts.Factory(entity, raw)
}

func (r *Reviver) assignBackReference(obj Object, entity string, props []schema.Property, container Object, path string) {
	candidates, set := 0, 0
	for _, p := range props {
		if !p.BackReference {
			continue
		}
		candidates++
		if r.opts.Constructors == nil || p.Type == "" || p.Type == container.EntityName() {
			obj.Put(p.Name, container)
			set++
		}
	}
	if candidates > 0 && set == 0 && r.opts.Debug {
		r.log.Debug("reviver: no back-reference matches container",
			"entity", entity, "container", container.EntityName(), "path", path)
	}
}

// keys — объявленные свойства в порядке объявления, затем остальные по алфавиту.
func (r *Reviver) keys(props []schema.Property, raw map[string]any) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, p := range props {
		if _, ok := raw[p.Name]; ok {
			out = append(out, p.Name)
			seen[p.Name] = true
		}
	}
	for _, k := range sortedKeys(raw) {
		if !seen[k] {
			out = append(out, k)
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func jsType(v any) string {
	switch v.(type) {
	case string:
		return schema.TypeString
	case bool:
		return schema.TypeBoolean
	case float64, float32, int, int32, int64, json.Number:
		return schema.TypeNumber
	}
	return fmt.Sprintf("%T", v)
}
