// Package observer is the notification primitive shared by the panel client
// and everything that watches it. Attaching returns a Subscription; dropping
// a subscription is the only way to detach, so a handler can never be
// removed by accident and a forgotten detach is visible as a held value.
package observer

import "sync"

// Handler is invoked on every notification.
type Handler func()

// Subscription cancels one Attach.
type Subscription interface {
	// Unsubscribe detaches the handler. Calling it more than once is a no-op.
	Unsubscribe()
}

type entry struct {
	id      uint64
	handler Handler
}

// Observer fans a zero-argument notification out to its handlers.
// The zero value is ready to use.
type Observer struct {
	mu      sync.Mutex
	nextID  uint64
	entries []entry
}

func New() *Observer {
	return &Observer{}
}

// Attach registers h and returns its cancellation handle.
func (o *Observer) Attach(h Handler) Subscription {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	id := o.nextID
	o.entries = append(o.entries, entry{id: id, handler: h})
	return &subscription{observer: o, id: id}
}

// Notify calls every attached handler in attach order. Handlers run outside
// the lock so they may attach or detach freely.
func (o *Observer) Notify() {
	o.mu.Lock()
	handlers := make([]Handler, len(o.entries))
	for i, e := range o.entries {
		handlers[i] = e.handler
	}
	o.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}

// Len returns the number of attached handlers.
func (o *Observer) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

func (o *Observer) detach(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, e := range o.entries {
		if e.id == id {
			o.entries = append(o.entries[:i], o.entries[i+1:]...)
			return
		}
	}
}

type subscription struct {
	observer *Observer
	id       uint64
	once     sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.observer.detach(s.id) })
}

// Group collects subscriptions so they can be cancelled together.
type Group struct {
	mu   sync.Mutex
	subs []Subscription
}

func (g *Group) Add(s Subscription) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subs = append(g.subs, s)
}

// Len returns the number of subscriptions held.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

// UnsubscribeAll cancels every held subscription and empties the group.
func (g *Group) UnsubscribeAll() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}
