package types

import (
	"sync"

	"github.com/daemonp/bosch2mqtt/internal/observer"
)

// The objects in this file are owned by the panel client. The client is the
// only writer; the bridge reads them through the accessors and learns about
// changes through the observers.

type Area struct {
	ID   int
	Name string

	StatusObserver *observer.Observer
	ReadyObserver  *observer.Observer
	AlarmObserver  *observer.Observer

	mu        sync.RWMutex
	state     ArmingState
	allReady  bool
	partReady bool
	faults    int
	alarms    []string
}

func NewArea(id int, name string) *Area {
	return &Area{
		ID:             id,
		Name:           name,
		StatusObserver: observer.New(),
		ReadyObserver:  observer.New(),
		AlarmObserver:  observer.New(),
	}
}

func (a *Area) ArmingState() ArmingState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// IsTriggered is true while the area reports an alarm, whatever its arming
// state.
func (a *Area) IsTriggered() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state == ArmingTriggered || len(a.alarms) > 0
}

func (a *Area) IsDisarmed() bool  { return a.ArmingState() == ArmingDisarmed }
func (a *Area) IsArming() bool    { return a.ArmingState() == ArmingArming }
func (a *Area) IsPending() bool   { return a.ArmingState() == ArmingPending }
func (a *Area) IsPartArmed() bool { return a.ArmingState() == ArmingPartArmed }
func (a *Area) IsAllArmed() bool  { return a.ArmingState() == ArmingAllArmed }

func (a *Area) AllReady() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.allReady
}

func (a *Area) PartReady() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.partReady
}

// Faults is the number of faulted points in the area.
func (a *Area) Faults() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.faults
}

func (a *Area) Alarms() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.alarms...)
}

func (a *Area) SetArmingState(s ArmingState) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
	a.StatusObserver.Notify()
}

func (a *Area) SetReady(all, part bool) {
	a.mu.Lock()
	a.allReady, a.partReady = all, part
	a.mu.Unlock()
	a.ReadyObserver.Notify()
}

func (a *Area) SetFaults(n int) {
	a.mu.Lock()
	a.faults = n
	a.mu.Unlock()
	a.ReadyObserver.Notify()
}

func (a *Area) SetAlarms(alarms []string) {
	a.mu.Lock()
	a.alarms = append([]string(nil), alarms...)
	a.mu.Unlock()
	a.AlarmObserver.Notify()
}

type Point struct {
	ID   int
	Name string

	StatusObserver *observer.Observer

	mu     sync.RWMutex
	status PointStatus
}

func NewPoint(id int, name string) *Point {
	return &Point{ID: id, Name: name, StatusObserver: observer.New()}
}

func (p *Point) Status() PointStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *Point) IsOpen() bool   { return p.Status() == PointOpen }
func (p *Point) IsNormal() bool { return p.Status() == PointNormal }

func (p *Point) SetStatus(s PointStatus) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
	p.StatusObserver.Notify()
}

type Door struct {
	ID   int
	Name string

	StatusObserver *observer.Observer

	mu     sync.RWMutex
	status DoorStatus
}

func NewDoor(id int, name string) *Door {
	return &Door{ID: id, Name: name, StatusObserver: observer.New()}
}

func (d *Door) Status() DoorStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// IsOpen means the strike is released.
func (d *Door) IsOpen() bool   { return d.Status() == DoorUnlocked }
func (d *Door) IsLocked() bool { return d.Status() == DoorLocked }

func (d *Door) SetStatus(s DoorStatus) {
	d.mu.Lock()
	d.status = s
	d.mu.Unlock()
	d.StatusObserver.Notify()
}

type Output struct {
	ID   int
	Name string

	StatusObserver *observer.Observer

	mu     sync.RWMutex
	active bool
}

func NewOutput(id int, name string) *Output {
	return &Output{ID: id, Name: name, StatusObserver: observer.New()}
}

func (o *Output) IsActive() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.active
}

func (o *Output) SetActive(active bool) {
	o.mu.Lock()
	o.active = active
	o.mu.Unlock()
	o.StatusObserver.Notify()
}
