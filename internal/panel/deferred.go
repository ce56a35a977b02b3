package panel

import "sync"

type setupPhase int

const (
	setupEmpty setupPhase = iota
	setupPending
	setupFiring
	setupFired
	setupCancelled
)

func (p setupPhase) String() string {
	switch p {
	case setupEmpty:
		return "empty"
	case setupPending:
		return "pending"
	case setupFiring:
		return "firing"
	case setupFired:
		return "fired"
	default:
		return "cancelled"
	}
}

// DeferredSetup holds initializers until the first successful connection.
//
//	Empty --Register--> Pending --Fire--> Firing --drained--> Fired
//	  |                    |                 |
//	  +------Cancel--------+-----------------+--------------> Cancelled
//
// While Firing the caller pops initializers one at a time with Next, so a
// Cancel between two of them stops the rest, and registrations made in the
// meantime queue behind the earlier ones. Once Fired, Register tells the
// caller to run the initializer itself. Once cancelled, initializers are
// dropped.
type DeferredSetup struct {
	mu      sync.Mutex
	phase   setupPhase
	pending []func()
}

// Register queues fn, or returns true if the queue has already been drained
// and fn should run now.
func (d *DeferredSetup) Register(fn func()) (runNow bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.phase {
	case setupFired:
		return true
	case setupCancelled:
		return false
	case setupEmpty:
		d.phase = setupPending
	}
	d.pending = append(d.pending, fn)
	return false
}

// Fire starts draining the queue. Only the first call returns true; that
// caller then runs the initializers with Next.
func (d *DeferredSetup) Fire() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.phase != setupEmpty && d.phase != setupPending {
		return false
	}
	d.phase = setupFiring
	return true
}

// Next pops the oldest queued initializer. It returns false once the queue
// is empty, which completes the move to Fired, or once setup was cancelled.
func (d *DeferredSetup) Next() (func(), bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.phase != setupFiring {
		return nil, false
	}
	if len(d.pending) == 0 {
		d.phase = setupFired
		return nil, false
	}
	fn := d.pending[0]
	d.pending[0] = nil
	d.pending = d.pending[1:]
	return fn, true
}

// Cancel drops anything queued and refuses later registrations.
func (d *DeferredSetup) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = nil
	d.phase = setupCancelled
}

func (d *DeferredSetup) Fired() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase == setupFired
}

func (d *DeferredSetup) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
