package vent

import (
	"sync"
)

// Topics shared across the widget.
const (
	ReceiveMessage  = "receive:message"
	MessageReceived = "message:received"
	MessageSent     = "message:sent"
	UnreadChanged   = "unread"
)

type Handler func(payload any)

// Handle is returned by Subscribe; Dispose detaches the handler.
type Handle interface {
	Dispose()
}

type listener struct {
	id   int64
	fn   Handler
	once bool
}

// Bus is a topic based publish/subscribe point. Handlers run synchronously on
// the publishing goroutine, outside of the bus lock, so a handler may
// subscribe, dispose or publish again.
type Bus struct {
	mu        sync.RWMutex
	nextID    int64
	listeners map[string][]listener
}

func New() *Bus {
	return &Bus{listeners: make(map[string][]listener)}
}

func (b *Bus) Subscribe(topic string, fn Handler) Handle {
	return b.add(topic, fn, false)
}

// Once registers a handler that is removed after its first call.
func (b *Bus) Once(topic string, fn Handler) Handle {
	return b.add(topic, fn, true)
}

func (b *Bus) add(topic string, fn Handler, once bool) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners[topic] = append(b.listeners[topic], listener{id: id, fn: fn, once: once})
	return &subscription{bus: b, topic: topic, id: id}
}

func (b *Bus) remove(topic string, id int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	ls := b.listeners[topic]
	for i, l := range ls {
		if l.id == id {
			b.listeners[topic] = append(ls[:i:i], ls[i+1:]...)
			if len(b.listeners[topic]) == 0 {
				delete(b.listeners, topic)
			}
			return true
		}
	}
	return false
}

func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	ls := make([]listener, len(b.listeners[topic]))
	copy(ls, b.listeners[topic])
	b.mu.RUnlock()

	for _, l := range ls {
		if l.once && !b.remove(topic, l.id) {
			// already fired or disposed by a concurrent publish
			continue
		}
		l.fn(payload)
	}
}

// Count returns the number of handlers attached to topic.
func (b *Bus) Count(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[topic])
}

type subscription struct {
	bus   *Bus
	topic string
	id    int64
	once  sync.Once
}

func (s *subscription) Dispose() {
	s.once.Do(func() {
		s.bus.remove(s.topic, s.id)
	})
}

// HandleFunc adapts a plain function into a Handle.
type HandleFunc func()

func (f HandleFunc) Dispose() { f() }

// Teardown collects handles owned by a component and disposes all of them, in
// reverse order, exactly once.
type Teardown struct {
	mu      sync.Mutex
	handles []Handle
	done    bool
}

// Add registers h. If the teardown already ran, h is disposed immediately.
func (t *Teardown) Add(h Handle) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		h.Dispose()
		return
	}
	t.handles = append(t.handles, h)
	t.mu.Unlock()
}

func (t *Teardown) Run() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	hs := t.handles
	t.handles = nil
	t.mu.Unlock()

	for i := len(hs) - 1; i >= 0; i-- {
		hs[i].Dispose()
	}
}
