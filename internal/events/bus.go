// Package events implements the in-process publish/subscribe bus that
// decouples the simulation core from its collaborators (transport,
// persistence, diagnostics).
package events

import (
	"fmt"
	"log"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonJonesBR/Ecosse-sub003/internal/protocol"
)

// Handler receives the payload of one published event.
type Handler func(payload any)

// DefaultHistoryCap bounds the diagnostic event history ring.
const DefaultHistoryCap = 50

// maxPublishDepth bounds synchronous publish-from-within-publish so an
// accidental event cycle cannot grow the call stack without limit.
const maxPublishDepth = 32

// Recorded is one entry of the diagnostic history ring.
type Recorded struct {
	Name    string    `json:"name"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

type subscriber struct {
	id    uint64
	fn    Handler
	fnPtr uintptr
	owner any
	since time.Time
}

// Bus dispatches named events synchronously, in registration order.
// All state is mutex-guarded; dispatch itself runs outside the lock on the
// publisher's goroutine, so handlers may subscribe, unsubscribe, and publish
// recursively. The subscriber slice is captured when a publish begins:
// changes made mid-dispatch affect only later publishes.
type Bus struct {
	log *log.Logger

	mu      sync.Mutex
	subs    map[string][]*subscriber
	history []Recorded // oldest-first; RecentEvents reverses
	histCap int
	nextID  uint64

	depth atomic.Int32
}

func New(logger *log.Logger, historyCap int) *Bus {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &Bus{
		log:     logger,
		subs:    map[string][]*subscriber{},
		histCap: historyCap,
	}
}

// Subscribe registers fn for name. The optional owner value participates in
// identity matching for Unsubscribe and must be comparable. Duplicate
// registrations of the same fn+owner are kept, each with its own handle.
// The returned handle removes exactly this registration and reports whether
// it was still present. Bad input is logged and yields a no-op handle;
// Subscribe never panics.
func (b *Bus) Subscribe(name string, fn Handler, owner any) (unsubscribe func() bool) {
	noop := func() bool { return false }
	if name == "" {
		b.log.Printf("events: subscribe with empty event name ignored")
		return noop
	}
	if fn == nil {
		b.log.Printf("events: subscribe to %q with nil handler ignored", name)
		return noop
	}

	b.mu.Lock()
	b.nextID++
	s := &subscriber{
		id:    b.nextID,
		fn:    fn,
		fnPtr: reflect.ValueOf(fn).Pointer(),
		owner: owner,
		since: time.Now(),
	}
	b.subs[name] = append(b.subs[name], s)
	b.mu.Unlock()

	return func() bool { return b.removeByID(name, s.id) }
}

// Unsubscribe removes the first registration matching fn and owner exactly
// and reports whether any removal occurred. Duplicates are removed one per
// call; a repeated call once no match remains returns false.
func (b *Bus) Unsubscribe(name string, fn Handler, owner any) bool {
	if name == "" || fn == nil {
		return false
	}
	ptr := reflect.ValueOf(fn).Pointer()

	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[name]
	for i, s := range list {
		if s.fnPtr == ptr && s.owner == owner {
			b.subs[name] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

func (b *Bus) removeByID(name string, id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[name]
	for i, s := range list {
		if s.id == id {
			b.subs[name] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Publish records the event in the history ring and synchronously invokes
// every subscriber registered at the moment dispatch begins, in registration
// order. It returns the number of subscribers notified, computed before the
// first invocation. A panicking subscriber is logged, converted into one
// SYSTEM_ERROR publish (unless the failing event is SYSTEM_ERROR itself),
// and does not stop dispatch to the remaining subscribers.
func (b *Bus) Publish(name string, payload any) int {
	if name == "" {
		b.log.Printf("events: publish with empty event name ignored")
		return 0
	}
	if d := b.depth.Add(1); d > maxPublishDepth {
		b.depth.Add(-1)
		b.log.Printf("events: publish %q dropped, recursion depth %d exceeds %d", name, d, maxPublishDepth)
		return 0
	}
	defer b.depth.Add(-1)

	b.mu.Lock()
	b.history = append(b.history, Recorded{Name: name, Payload: payload, At: time.Now()})
	if len(b.history) > b.histCap {
		b.history = b.history[len(b.history)-b.histCap:]
	}
	snap := append([]*subscriber(nil), b.subs[name]...)
	b.mu.Unlock()

	for _, s := range snap {
		b.invoke(name, s, payload)
	}
	return len(snap)
}

func (b *Bus) invoke(name string, s *subscriber, payload any) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		b.log.Printf("events: subscriber panic during %q: %v", name, r)
		if name == protocol.EvSystemError {
			return
		}
		b.Publish(protocol.EvSystemError, protocol.SystemError{
			Source: "events",
			Action: name,
			Error:  fmt.Sprint(r),
		})
	}()
	s.fn(payload)
}

// ClearEvent drops every subscriber of name.
func (b *Bus) ClearEvent(name string) {
	b.mu.Lock()
	delete(b.subs, name)
	b.mu.Unlock()
}

// ClearAll drops every subscriber of every event.
func (b *Bus) ClearAll() {
	b.mu.Lock()
	b.subs = map[string][]*subscriber{}
	b.mu.Unlock()
}

func (b *Bus) HasSubscribers(name string) bool { return b.SubscriberCount(name) > 0 }

func (b *Bus) SubscriberCount(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[name])
}

// RecentEvents returns a defensive copy of the history ring, newest first.
func (b *Bus) RecentEvents() []Recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Recorded, len(b.history))
	for i, r := range b.history {
		out[len(b.history)-1-i] = r
	}
	return out
}
