package simulator

import (
	"time"

	"github.com/daemonp/bosch2mqtt/internal/types"
)

// The methods in this file drive the simulated panel from outside, the way
// protocol notifications would drive a real client.

// FailConnect makes every following Connect return err until cleared with
// nil.
func (p *Panel) FailConnect(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connectErr = err
}

// FailCommands makes every following command return err until cleared.
func (p *Panel) FailCommands(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commandErr = err
}

// SetConnected simulates the session dropping or coming back.
func (p *Panel) SetConnected(connected bool) {
	p.mu.Lock()
	changed := p.connected != connected
	p.connected = connected
	p.mu.Unlock()
	if changed {
		p.connObserver.Notify()
	}
}

// SetModel changes what the panel reports, e.g. to exercise credential tiers.
func (p *Panel) SetModel(model string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = model
}

// AddEvent appends a history event with the next ID and notifies.
func (p *Panel) AddEvent(date time.Time, message string) types.HistoryEvent {
	p.mu.Lock()
	ev := types.HistoryEvent{ID: p.nextID, Date: date, Message: message}
	p.nextID++
	p.events = append(p.events, ev)
	p.mu.Unlock()
	p.historyObserver.Notify()
	return ev
}

func (p *Panel) SetFaults(faults []string) {
	p.mu.Lock()
	p.faults = append([]string(nil), faults...)
	p.mu.Unlock()
	p.faultsObserver.Notify()
}

// Calls lists the commands received, e.g. "area_arm_all(1)".
func (p *Panel) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Connects counts Connect calls, including failed ones.
func (p *Panel) Connects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connects
}

func (p *Panel) PanelDate() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.panelDate
}
