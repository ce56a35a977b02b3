package entity

import (
	"errors"
	"sync"

	"github.com/daemonp/bosch2mqtt/internal/observer"
)

var ErrAlreadyBound = errors.New("entity: already bound")

// Binding ties an entity's change handler to the observers it renders from.
// One Bind pairs with one Unbind; the zero value is unbound.
type Binding struct {
	mu    sync.Mutex
	bound bool
	subs  observer.Group
}

// Bind attaches onChange to every observer. Binding twice without an
// Unbind in between returns ErrAlreadyBound and attaches nothing.
func (b *Binding) Bind(onChange observer.Handler, observers ...*observer.Observer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bound {
		return ErrAlreadyBound
	}
	for _, o := range observers {
		if o == nil {
			continue
		}
		b.subs.Add(o.Attach(onChange))
	}
	b.bound = true
	return nil
}

// Unbind detaches from every observer. It is a no-op when not bound.
func (b *Binding) Unbind() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.bound {
		return
	}
	b.subs.UnsubscribeAll()
	b.bound = false
}

func (b *Binding) Bound() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bound
}
