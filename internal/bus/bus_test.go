package bus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	name      string
	callbacks []string
}

func (e testEvent) Callbacks() []string { return e.callbacks }

func ev(name string, callbacks ...string) testEvent {
	if len(callbacks) == 0 {
		callbacks = []string{"on"}
	}
	return testEvent{name: name, callbacks: callbacks}
}

// recorder пишет "<слушатель>:<событие>" в общий журнал.
func recorder(log *[]string, id string) *Callbacks {
	return NewCallbacks().On("on", func(e Event) {
		*log = append(*log, id+":"+e.(testEvent).name)
	})
}

func TestDeliveryFollowsRegistrationOrder(t *testing.T) {
	b := New()
	var log []string
	b.Register(recorder(&log, "a"))
	b.Register(recorder(&log, "b"))
	b.Register(recorder(&log, "c"))

	b.Dispatch(ev("e1"))
	assert.Equal(t, []string{"a:e1", "b:e1", "c:e1"}, log)
}

func TestWaveOrdering(t *testing.T) {
	b := New()
	var log []string

	first := NewCallbacks().On("on", func(e Event) {
		name := e.(testEvent).name
		log = append(log, "first:"+name)
		if name == "e1" {
			b.Dispatch(ev("e2"))
		}
		if name == "e2" {
			b.Dispatch(ev("e3"))
		}
	})
	b.Register(first)
	b.Register(recorder(&log, "second"))

	b.Dispatch(ev("e1"))
	assert.Equal(t, []string{
		"first:e1", "second:e1",
		"first:e2", "second:e2",
		"first:e3", "second:e3",
	}, log)
	assert.False(t, b.Dispatching())
}

func TestPauseResume(t *testing.T) {
	b := New()
	var log []string
	b.Register(recorder(&log, "a"))

	b.Pause()
	b.Dispatch(ev("e1"))
	b.Dispatch(ev("e2"))
	assert.Empty(t, log)
	assert.Equal(t, 2, b.Pending())

	b.Resume()
	assert.Equal(t, []string{"a:e1", "a:e2"}, log)
	assert.Equal(t, 0, b.Pending())
	assert.False(t, b.IsPaused())
}

func TestCallbackFallback(t *testing.T) {
	b := New()
	var got []string
	specific := NewCallbacks().
		On("onDeleteScopeModel", func(Event) { got = append(got, "specific") }).
		On("onDelete", func(Event) { got = append(got, "generic") })
	generic := NewCallbacks().On("onDelete", func(Event) { got = append(got, "fallback") })
	deaf := NewCallbacks()

	b.Register(specific)
	b.Register(generic)
	b.Register(deaf)

	b.Dispatch(ev("delete", "onDeleteScopeModel", "onDelete"))
	assert.Equal(t, []string{"specific", "fallback"}, got)
}

func TestLock(t *testing.T) {
	b := New()
	var log []string
	a := recorder(&log, "a")
	b.Register(a)

	b.Lock()
	b.Register(recorder(&log, "b"))
	b.Unregister(a)
	assert.Equal(t, 1, b.Listeners())

	b.Unlock()
	b.Unregister(a)
	assert.Equal(t, 0, b.Listeners())
}

func TestDisable(t *testing.T) {
	b := New()
	var log []string
	b.Register(recorder(&log, "a"))

	b.Disable()
	b.Dispatch(ev("lost"))
	b.Enable()
	b.Dispatch(ev("kept"))
	assert.Equal(t, []string{"a:kept"}, log)
}

func TestUnregisterDuringDelivery(t *testing.T) {
	b := New()
	var log []string
	victim := recorder(&log, "victim")
	killer := NewCallbacks().On("on", func(Event) { b.Unregister(victim) })

	b.Register(killer)
	b.Register(victim)
	b.Dispatch(ev("e1"))
	assert.Empty(t, log)
}

func TestRegisterTwice(t *testing.T) {
	b := New()
	var log []string
	a := recorder(&log, "a")
	b.Register(a)
	b.Register(a)

	b.Dispatch(ev("e1"))
	assert.Equal(t, []string{"a:e1"}, log)
}

func TestReset(t *testing.T) {
	b := New()
	var log []string
	b.Register(recorder(&log, "a"))
	b.Lock()
	b.Pause()
	b.Dispatch(ev("e1"))

	b.Reset()
	assert.Equal(t, 0, b.Listeners())
	assert.Equal(t, 0, b.Pending())
	assert.False(t, b.IsLocked())
	assert.False(t, b.IsPaused())

	b.Dispatch(ev("e2"))
	assert.Empty(t, log)
}

func TestIndependentInstances(t *testing.T) {
	one, two := New(), New()
	var log []string
	one.Register(recorder(&log, "one"))
	two.Register(recorder(&log, "two"))

	one.Dispatch(ev("e1"))
	assert.Equal(t, []string{"one:e1"}, log)
}

func TestPanicResetsWave(t *testing.T) {
	b := New()
	var log []string
	boom := NewCallbacks().On("on", func(e Event) {
		if e.(testEvent).name == "e1" {
			b.Dispatch(ev("queued"))
			panic(fmt.Errorf("boom"))
		}
	})
	b.Register(boom)
	b.Register(recorder(&log, "a"))

	require.Panics(t, func() { b.Dispatch(ev("e1")) })
	assert.False(t, b.Dispatching())

	b.Dispatch(ev("e2"))
	assert.Equal(t, []string{"a:e2"}, log)
}

func TestDeliveryHook(t *testing.T) {
	var seen []string
	b := New(WithDeliveryHook(func(e Event) { seen = append(seen, e.(testEvent).name) }))
	b.Dispatch(ev("e1"))
	b.Dispatch(ev("e2"))
	assert.Equal(t, []string{"e1", "e2"}, seen)
}
