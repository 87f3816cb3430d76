package node

import (
	"fmt"
	"log/slog"

	"configurator/internal/bus"
	"configurator/internal/reviver"
	"configurator/internal/schema"
)

// EntityProperty — ключ, по которому в JSON узнаются типизированные узлы.
const EntityProperty = "className"

// Behavior — поведение сущности на событие шины; self — узел-получатель.
type Behavior func(self *Node, ev bus.Event)

// Session связывает реестр схем, шину изменений и поведения сущностей.
// Каждый граф (снимок конфигурации) живет в своей сессии.
type Session struct {
	registry  *schema.Registry
	bus       *bus.Bus
	log       *slog.Logger
	behaviors map[string]map[string][]Behavior
}

type Option func(*Session)

func WithBus(b *bus.Bus) Option {
	return func(s *Session) { s.bus = b }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

func NewSession(registry *schema.Registry, opts ...Option) *Session {
	s := &Session{
		registry:  registry,
		behaviors: make(map[string]map[string][]Behavior),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = bus.New()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.installReferenceKeeping()
	return s
}

func (s *Session) Registry() *schema.Registry { return s.registry }
func (s *Session) Bus() *bus.Bus { return s.bus }
func (s *Session) Logger() *slog.Logger { return s.log }

// Handle добавляет поведение всем узлам сущности entity на обработчик callback.
func (s *Session) Handle(entity, callback string, fn Behavior) {
	byName := s.behaviors[entity]
	if byName == nil {
		byName = make(map[string][]Behavior)
		s.behaviors[entity] = byName
	}
	byName[callback] = append(byName[callback], fn)
}

// Construct создает отсоединенный узел со значениями по умолчанию. Узел не зарегистрирован на шине.
func (s *Session) Construct(entity string) (*Node, error) {
	e, err := s.registry.Entity(entity)
	if err != nil {
		return nil, err
	}
	n := &Node{session: s, entity: e, props: make(map[string]any, len(e.Properties))}
	for _, p := range e.Properties {
		switch {
		case p.BackReference:
		case p.Default != nil:
			n.props[p.Name] = clone(p.Default)
		case p.Type == schema.TypeArray:
			n.props[p.Name] = []any{}
		case p.Type == schema.TypeObject:
			n.props[p.Name] = map[string]any{}
		}
	}
	return n, nil
}

// Attach делает узел живым: регистрирует на шине и отправляет CreateNode.
func (s *Session) Attach(n *Node) {
	s.bus.Register(n)
	s.bus.Dispatch(CreateNode{Node: n})
}

// New создает живой узел; values присваиваются без событий изменения.
func (s *Session) New(entity string, values map[string]any) (*Node, error) {
	n, err := s.Construct(entity)
	if err != nil {
		return nil, err
	}
	for k, v := range values {
		n.props[k] = v
	}
	s.Attach(n)
	return n, nil
}

// Reviver настраивает оживление JSON в узлы этой сессии. Поля opts, не касающиеся
// создания узлов (флаги, логгер, пользовательский callback), сохраняются.
func (s *Session) Reviver(opts reviver.Options) (*reviver.Reviver, error) {
	if opts.EntityProperty == "" {
		opts.EntityProperty = EntityProperty
	}
	if opts.Logger == nil {
		opts.Logger = s.log
	}
	opts.Factory = nil
	opts.Constructors = func(entity string) (func() reviver.Object, bool) {
		if _, err := s.registry.Entity(entity); err != nil {
			return nil, false
		}
		return func() reviver.Object {
			n, _ := s.Construct(entity)
			return n
		}, true
	}
	opts.Properties = func(entity string) ([]schema.Property, bool) {
		e, err := s.registry.Entity(entity)
		if err != nil {
			return nil, false
		}
		return e.Properties, true
	}
	user := opts.Callback
	opts.Callback = func(obj reviver.Object, entity string, container reviver.Object, raw map[string]any) {
		if n, ok := obj.(*Node); ok {
			s.Attach(n)
		}
		if user != nil {
			user(obj, entity, container, raw)
		}
	}
	return reviver.New(opts)
}

// Revive оживляет корень конфигурации.
func (s *Session) Revive(raw any, opts reviver.Options) (*Node, error) {
	r, err := s.Reviver(opts)
	if err != nil {
		return nil, err
	}
	v, err := r.Revive(raw, nil, "")
	if err != nil {
		return nil, err
	}
	root, ok := v.(*Node)
	if !ok {
		return nil, fmt.Errorf("revived value is %T, not a node", v)
	}
	return root, nil
}
