package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/daemonp/bosch2mqtt/internal/log"
	"github.com/daemonp/bosch2mqtt/internal/observer"
	"github.com/daemonp/bosch2mqtt/internal/types"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Connection owns one panel client for the lifetime of a configured panel.
// It turns the client's connection status reports into state transitions
// and runs the deferred setup queue on the first transition into Connected.
type Connection struct {
	client   Client
	uniqueID string
	model    string
	log      *log.Logger

	setup     DeferredSetup
	status    *observer.Observer
	clientSub observer.Subscription

	mu     sync.Mutex
	state  State
	closed bool
}

func NewConnection(client Client, uniqueID, model string, logger *log.Logger) *Connection {
	c := &Connection{
		client:   client,
		uniqueID: uniqueID,
		model:    model,
		log:      logger,
		status:   observer.New(),
	}
	c.clientSub = client.ConnectionStatusObserver().Attach(c.onClientStatus)
	return c
}

func (c *Connection) Client() Client   { return c.client }
func (c *Connection) UniqueID() string { return c.uniqueID }

// Model prefers what the panel reported over the configured model.
func (c *Connection) Model() string {
	if m := c.client.Model(); m != "" {
		return m
	}
	return c.model
}

func (c *Connection) DeviceInfo() types.DeviceInfo {
	return types.NewDeviceInfo(c.uniqueID, c.Model(), c.client.FirmwareVersion())
}

// Connect blocks until the client is connected or the attempt fails. The
// returned error is classified (see Classify) or ErrClosed.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == Connected {
		c.mu.Unlock()
		return nil
	}
	c.state = Connecting
	c.mu.Unlock()
	c.status.Notify()

	c.log.Info("Connecting to panel...")
	err := c.client.Connect(ctx, LoadAll)

	c.mu.Lock()
	closed := c.closed
	stillConnecting := c.state == Connecting
	if err != nil && stillConnecting {
		c.state = Disconnected
	}
	c.mu.Unlock()

	if closed {
		if err == nil {
			// Disconnect ran while the attempt was in flight and could not
			// end a session that did not exist yet.
			if derr := c.client.Disconnect(context.WithoutCancel(ctx)); derr != nil {
				c.log.Warn("Error releasing panel session opened during teardown: %v", derr)
			}
		}
		return ErrClosed
	}
	if err != nil {
		err = Classify(err)
		switch {
		case errors.Is(err, ErrAuthentication):
			c.log.Error("Panel rejected credentials: %v", err)
		case errors.Is(err, ErrConnectivity):
			c.log.Warn("Failed to connect to panel: %v", err)
		default:
			c.log.Error("Unexpected error connecting to panel: %+v", err)
		}
		if stillConnecting {
			c.status.Notify()
		}
		return err
	}

	// The client may report through its observer before Connect returns,
	// after it, or not at all; the transition logic tolerates all three.
	c.onClientStatus()
	c.log.Info("Connected to panel")
	return nil
}

// Disconnect releases the session. It is idempotent, may run before or
// during Connect, and guarantees that queued deferred setup never runs.
func (c *Connection) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	changed := c.state != Disconnected
	c.state = Disconnected
	c.mu.Unlock()

	c.setup.Cancel()
	c.clientSub.Unsubscribe()

	c.log.Info("Disconnecting from panel...")
	err := c.client.Disconnect(ctx)
	if changed {
		c.status.Notify()
	}
	if err != nil {
		c.log.Warn("Error while disconnecting from panel: %v", err)
		return fmt.Errorf("disconnecting from panel: %w", err)
	}
	c.log.Info("Disconnected from panel")
	return nil
}

func (c *Connection) Status() bool {
	return c.State() == Connected
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnStatusChange registers fn for every state transition. Cancel with the
// returned subscription.
func (c *Connection) OnStatusChange(fn func()) observer.Subscription {
	return c.status.Attach(fn)
}

// StatusObserver exposes the transition notifications for binding entities.
func (c *Connection) StatusObserver() *observer.Observer {
	return c.status
}

// RegisterDeferredSetup queues fn until the first connection. If that has
// already happened fn runs immediately on the calling goroutine. Each fn
// runs at most once, in registration order.
func (c *Connection) RegisterDeferredSetup(fn func()) {
	if c.setup.Register(fn) {
		fn()
	}
}

func (c *Connection) onClientStatus() {
	connected := c.client.ConnectionStatus()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	next := Disconnected
	if connected {
		next = Connected
	}
	// A not-connected report while an attempt is in flight does not end the
	// attempt; Connect's return does.
	if next == c.state || (c.state == Connecting && !connected) {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.state = next
	fire := next == Connected && c.setup.Fire()
	c.mu.Unlock()

	c.log.Debug("Panel connection %s -> %s", prev, next)
	if fire {
		c.runSetup()
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	c.status.Notify()
}

// runSetup drains the deferred setup queue one initializer at a time. It
// stops early if an initializer, or anything else, disconnects.
func (c *Connection) runSetup() {
	if n := c.setup.Pending(); n > 0 {
		c.log.Debug("Running %d deferred setup step(s)", n)
	}
	for fn, ok := c.setup.Next(); ok; fn, ok = c.setup.Next() {
		fn()
	}
}
