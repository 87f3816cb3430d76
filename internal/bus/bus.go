// Package bus доставляет события изменения графа зарегистрированным слушателям.
//
// Доставка идет волнами: событие, отправленное во время обработки другого, ставится в очередь
// последствий и доставляется только после того, как текущее событие получили все слушатели.
package bus

// Event перечисляет имена обработчиков от самого частного к общему.
type Event interface {
	Callbacks() []string
}

type Handler func(Event)

// Listener отдает обработчик по имени или nil. Реализация должна быть сравнимой (обычно указатель).
type Listener interface {
	Callback(name string) Handler
}

// Callbacks — слушатель из таблицы имя -> обработчик.
type Callbacks struct {
	handlers map[string]Handler
}

func NewCallbacks() *Callbacks {
	return &Callbacks{handlers: make(map[string]Handler)}
}

func (c *Callbacks) On(name string, h Handler) *Callbacks {
	c.handlers[name] = h
	return c
}

func (c *Callbacks) Callback(name string) Handler {
	return c.handlers[name]
}

type Option func(*Bus)

// WithDeliveryHook вызывает fn после доставки каждого события.
func WithDeliveryHook(fn func(Event)) Option {
	return func(b *Bus) { b.hook = fn }
}

type Bus struct {
	listeners  []Listener
	registered map[Listener]struct{}

	enabled     bool
	locked      bool
	paused      bool
	dispatching bool

	consequences []Event
	awaiting     []Event

	hook func(Event)
}

func New(opts ...Option) *Bus {
	b := &Bus{registered: make(map[Listener]struct{}), enabled: true}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Enable() { b.enabled = true }
func (b *Bus) Disable() { b.enabled = false }
func (b *Bus) IsEnabled() bool { return b.enabled }
func (b *Bus) Lock() { b.locked = true }
func (b *Bus) Unlock() { b.locked = false }
func (b *Bus) IsLocked() bool { return b.locked }
func (b *Bus) Pause() { b.paused = true }
func (b *Bus) IsPaused() bool { return b.paused }
func (b *Bus) Listeners() int { return len(b.listeners) }
func (b *Bus) Pending() int { return len(b.awaiting) }
func (b *Bus) Dispatching() bool { return b.dispatching }

// Resume снимает паузу и доставляет накопленные события в исходном порядке.
func (b *Bus) Resume() {
	b.paused = false
	pending := b.awaiting
	b.awaiting = nil
	for _, ev := range pending {
		b.Dispatch(ev)
	}
}

// Reset возвращает шину в начальное состояние: без слушателей, очередей, блокировки и паузы.
func (b *Bus) Reset() {
	b.listeners = nil
	b.registered = make(map[Listener]struct{})
	b.consequences = nil
	b.awaiting = nil
	b.enabled = true
	b.locked = false
	b.paused = false
}

func (b *Bus) IsRegistered(l Listener) bool {
	_, ok := b.registered[l]
	return ok
}

// Register добавляет слушателя в конец списка; во время блокировки ничего не делает.
func (b *Bus) Register(l Listener) {
	if b.locked || b.IsRegistered(l) {
		return
	}
	b.registered[l] = struct{}{}
	b.listeners = append(b.listeners, l)
}

func (b *Bus) Unregister(l Listener) {
	if b.locked || !b.IsRegistered(l) {
		return
	}
	delete(b.registered, l)
	for i, other := range b.listeners {
		if other == l {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			break
		}
	}
}

func (b *Bus) Dispatch(ev Event) {
	if !b.enabled {
		return
	}
	if b.paused {
		b.awaiting = append(b.awaiting, ev)
		return
	}
	if b.dispatching {
		b.consequences = append(b.consequences, ev)
		return
	}

	b.dispatching = true
	defer func() {
		b.dispatching = false
		if r := recover(); r != nil {
			b.consequences = nil
			panic(r)
		}
	}()

	b.deliver(ev)
	for len(b.consequences) > 0 {
		next := b.consequences[0]
		b.consequences = b.consequences[1:]
		b.deliver(next)
	}
}

func (b *Bus) deliver(ev Event) {
	names := ev.Callbacks()
	listeners := append([]Listener(nil), b.listeners...)
	for _, l := range listeners {
		// слушатель мог быть снят обработчиком этого же события
		if !b.IsRegistered(l) {
			continue
		}
		for _, name := range names {
			if h := l.Callback(name); h != nil {
				h(ev)
				break
			}
		}
	}
	if b.hook != nil {
		b.hook(ev)
	}
}
