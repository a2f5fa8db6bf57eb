// Package events carries fire-and-forget notifications about entity
// lifecycle changes. Delivery is at most once and never blocks the caller.
package events

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type Name string

const (
	EntityEncoded      Name = "entity.encoded"
	EntityEvolved      Name = "entity.evolved"
	EntityHealed       Name = "entity.healed"
	EntitiesInteracted Name = "entities.interacted"
)

type Event struct {
	ID        string    `json:"id"`
	Name      Name      `json:"name"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher receives events after the corresponding write has committed.
type Publisher interface {
	Emit(name Name, payload any)
}

type Nop struct{}

func (Nop) Emit(Name, any) {}

type Handler func(Event)

// Bus fans events out to subscribed handlers on the emitting goroutine. A
// panicking handler is isolated from the others and from the emitter.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[Name]map[uint64]Handler
	all      map[uint64]Handler

	Now   func() time.Time
	NewID func() string
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Name]map[uint64]Handler),
		all:      make(map[uint64]Handler),
		Now:      time.Now,
		NewID:    uuid.NewString,
	}
}

// Subscribe registers h for one event name and returns its cancel func.
func (b *Bus) Subscribe(name Name, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.handlers[name] == nil {
		b.handlers[name] = make(map[uint64]Handler)
	}
	b.handlers[name][id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[name], id)
	}
}

// SubscribeAll registers h for every event name.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.all[id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.all, id)
	}
}

func (b *Bus) Emit(name Name, payload any) {
	b.mu.RLock()
	targets := make([]subscription, 0, len(b.handlers[name])+len(b.all))
	for id, h := range b.handlers[name] {
		targets = append(targets, subscription{id: id, h: h})
	}
	for id, h := range b.all {
		targets = append(targets, subscription{id: id, h: h})
	}
	b.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	slices.SortFunc(targets, func(x, y subscription) int { return cmp.Compare(x.id, y.id) })
	evt := newEvent(name, payload, b.Now, b.NewID)
	for _, t := range targets {
		deliver(t.h, evt)
	}
}

type subscription struct {
	id uint64
	h  Handler
}

func deliver(h Handler, evt Event) {
	defer func() { _ = recover() }()
	h(evt)
}

// Channel buffers events for a consumer goroutine. When the buffer is full
// the event is dropped and counted.
type Channel struct {
	mu      sync.RWMutex
	ch      chan Event
	closed  bool
	dropped atomic.Int64

	Now   func() time.Time
	NewID func() string
}

func NewChannel(buffer int) *Channel {
	if buffer < 0 {
		buffer = 0
	}
	return &Channel{ch: make(chan Event, buffer), Now: time.Now, NewID: uuid.NewString}
}

func (c *Channel) Emit(name Name, payload any) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		c.dropped.Add(1)
		return
	}
	select {
	case c.ch <- newEvent(name, payload, c.Now, c.NewID):
	default:
		c.dropped.Add(1)
	}
}

func (c *Channel) Events() <-chan Event {
	return c.ch
}

func (c *Channel) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops delivery and closes the events channel. Later emits are
// counted as dropped.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

func newEvent(name Name, payload any, now func() time.Time, newID func() string) Event {
	evt := Event{Name: name, Payload: payload}
	if now != nil {
		evt.Timestamp = now().UTC()
	} else {
		evt.Timestamp = time.Now().UTC()
	}
	if newID != nil {
		evt.ID = newID()
	} else {
		evt.ID = uuid.NewString()
	}
	return evt
}
