// Package simulator is an in-memory panel client. It backs the "simulator"
// driver for trying the bridge without hardware and is the panel double in
// tests across the module.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/daemonp/bosch2mqtt/internal/config"
	"github.com/daemonp/bosch2mqtt/internal/log"
	"github.com/daemonp/bosch2mqtt/internal/observer"
	"github.com/daemonp/bosch2mqtt/internal/panel"
	"github.com/daemonp/bosch2mqtt/internal/types"
)

// ErrNotConnected is returned by commands issued while offline.
var ErrNotConnected = errors.New("simulator: not connected")

func init() {
	panel.RegisterDriver("simulator", func(cfg config.PanelConfig, logger *log.Logger) (panel.Client, error) {
		return New(cfg, logger), nil
	})
}

type Panel struct {
	log         *log.Logger
	credentials panel.Credentials

	connObserver    *observer.Observer
	historyObserver *observer.Observer
	faultsObserver  *observer.Observer

	areas   map[int]*types.Area
	points  map[int]*types.Point
	doors   map[int]*types.Door
	outputs map[int]*types.Output

	mu         sync.Mutex
	model      string
	serial     string
	firmware   string
	connected  bool
	connectErr error
	commandErr error
	connects   int
	calls      []string
	events     []types.HistoryEvent
	nextID     int64
	faults     []string
	panelDate  time.Time
}

// New builds a simulator from the panel's simulator section. Without one it
// serves a small B-series style inventory.
func New(cfg config.PanelConfig, logger *log.Logger) *Panel {
	sim := cfg.Simulator
	if sim == nil {
		sim = &config.SimulatorConfig{
			Areas:   []config.NamedObject{{ID: 1, Name: "Area 1"}},
			Points:  []config.NamedObject{{ID: 1, Name: "Front Door"}, {ID: 2, Name: "Hall Motion"}},
			Doors:   []config.NamedObject{{ID: 1, Name: "Main Entrance"}},
			Outputs: []config.NamedObject{{ID: 1, Name: "Siren"}},
		}
	}

	p := &Panel{
		log:             logger,
		credentials:     panel.CredentialsFrom(cfg),
		connObserver:    observer.New(),
		historyObserver: observer.New(),
		faultsObserver:  observer.New(),
		areas:           make(map[int]*types.Area),
		points:          make(map[int]*types.Point),
		doors:           make(map[int]*types.Door),
		outputs:         make(map[int]*types.Output),
		model:           valueOr(sim.Model, "B5512 (US1B)"),
		serial:          valueOr(sim.Serial, "0123456789"),
		firmware:        valueOr(sim.Firmware, "3.14"),
		nextID:          1,
	}
	for _, o := range sim.Areas {
		p.areas[o.ID] = types.NewArea(o.ID, o.Name)
	}
	for _, o := range sim.Points {
		p.points[o.ID] = types.NewPoint(o.ID, o.Name)
	}
	for _, o := range sim.Doors {
		p.doors[o.ID] = types.NewDoor(o.ID, o.Name)
	}
	for _, o := range sim.Outputs {
		p.outputs[o.ID] = types.NewOutput(o.ID, o.Name)
	}
	return p
}

func (p *Panel) Connect(ctx context.Context, load panel.LoadSelector) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	p.connects++
	if p.connectErr != nil {
		err := p.connectErr
		p.mu.Unlock()
		return err
	}
	model := p.model
	p.mu.Unlock()

	if err := p.credentials.Check(model); err != nil {
		return err
	}

	if load == panel.LoadBasicInfo {
		return nil
	}

	p.mu.Lock()
	wasConnected := p.connected
	p.connected = true
	p.mu.Unlock()

	for _, a := range p.areas {
		if a.ArmingState() == types.ArmingUnknown {
			a.SetArmingState(types.ArmingDisarmed)
			a.SetReady(true, true)
		}
	}
	for _, pt := range p.points {
		if pt.Status() == types.PointUnknown {
			pt.SetStatus(types.PointNormal)
		}
	}
	for _, d := range p.doors {
		if d.Status() == types.DoorUnknown {
			d.SetStatus(types.DoorLocked)
		}
	}

	if !wasConnected {
		p.log.Debug("Simulated panel %s online", model)
		p.connObserver.Notify()
	}
	return nil
}

func (p *Panel) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	was := p.connected
	p.connected = false
	p.mu.Unlock()
	if was {
		p.connObserver.Notify()
	}
	return nil
}

func (p *Panel) ConnectionStatus() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *Panel) ConnectionStatusObserver() *observer.Observer { return p.connObserver }
func (p *Panel) HistoryObserver() *observer.Observer          { return p.historyObserver }
func (p *Panel) FaultsObserver() *observer.Observer           { return p.faultsObserver }

func (p *Panel) Areas() map[int]*types.Area     { return p.areas }
func (p *Panel) Points() map[int]*types.Point   { return p.points }
func (p *Panel) Doors() map[int]*types.Door     { return p.doors }
func (p *Panel) Outputs() map[int]*types.Output { return p.outputs }

func (p *Panel) Events() []types.HistoryEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.HistoryEvent(nil), p.events...)
}

func (p *Panel) PanelFaults() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.faults...)
}

func (p *Panel) SetHistoryCursor(lastID int64, events []types.HistoryEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append([]types.HistoryEvent(nil), events...)
	sort.Slice(p.events, func(i, j int) bool { return p.events[i].ID < p.events[j].ID })
	if lastID >= p.nextID {
		p.nextID = lastID + 1
	}
}

func (p *Panel) Model() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.model
}

func (p *Panel) SerialNumber() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.serial
}

func (p *Panel) FirmwareVersion() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firmware
}

func (p *Panel) AreaDisarm(ctx context.Context, id int) error {
	a, err := lookup(p, "area_disarm", id, p.areas)
	if err != nil {
		return err
	}
	a.SetAlarms(nil)
	a.SetArmingState(types.ArmingDisarmed)
	return nil
}

func (p *Panel) AreaArmPart(ctx context.Context, id int) error {
	a, err := lookup(p, "area_arm_part", id, p.areas)
	if err != nil {
		return err
	}
	a.SetArmingState(types.ArmingPartArmed)
	return nil
}

func (p *Panel) AreaArmAll(ctx context.Context, id int) error {
	a, err := lookup(p, "area_arm_all", id, p.areas)
	if err != nil {
		return err
	}
	a.SetArmingState(types.ArmingAllArmed)
	return nil
}

func (p *Panel) DoorRelock(ctx context.Context, id int) error {
	d, err := lookup(p, "door_relock", id, p.doors)
	if err != nil {
		return err
	}
	d.SetStatus(types.DoorLocked)
	return nil
}

func (p *Panel) DoorUnlock(ctx context.Context, id int) error {
	d, err := lookup(p, "door_unlock", id, p.doors)
	if err != nil {
		return err
	}
	d.SetStatus(types.DoorUnlocked)
	return nil
}

// DoorCycle releases the strike; a real panel relocks after its configured
// strike time, which the simulator leaves to the caller.
func (p *Panel) DoorCycle(ctx context.Context, id int) error {
	d, err := lookup(p, "door_cycle", id, p.doors)
	if err != nil {
		return err
	}
	d.SetStatus(types.DoorUnlocked)
	return nil
}

func (p *Panel) SetOutputActive(ctx context.Context, id int) error {
	o, err := lookup(p, "set_output_active", id, p.outputs)
	if err != nil {
		return err
	}
	o.SetActive(true)
	return nil
}

func (p *Panel) SetOutputInactive(ctx context.Context, id int) error {
	o, err := lookup(p, "set_output_inactive", id, p.outputs)
	if err != nil {
		return err
	}
	o.SetActive(false)
	return nil
}

func (p *Panel) SetPanelDate(ctx context.Context, t time.Time) error {
	if err := p.command("set_panel_date", 0); err != nil {
		return err
	}
	p.mu.Lock()
	p.panelDate = t
	p.mu.Unlock()
	return nil
}

// command records the call and fails when offline or when a failure was
// injected with FailCommands.
func (p *Panel) command(name string, id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, fmt.Sprintf("%s(%d)", name, id))
	if !p.connected {
		return ErrNotConnected
	}
	return p.commandErr
}

func lookup[T any](p *Panel, name string, id int, objects map[int]T) (T, error) {
	var zero T
	if err := p.command(name, id); err != nil {
		return zero, err
	}
	obj, ok := objects[id]
	if !ok {
		return zero, fmt.Errorf("simulator: %s: no object %d", name, id)
	}
	return obj, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
