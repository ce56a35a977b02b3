// Package dispatch forwards platform commands to a panel client, applying
// the arming code policy to area commands.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/daemonp/bosch2mqtt/internal/clock"
	"github.com/daemonp/bosch2mqtt/internal/log"
	"github.com/daemonp/bosch2mqtt/internal/panel"
)

var ErrNoSuchObject = errors.New("dispatch: no such object")

// Target is what the dispatcher needs from a panel client.
type Target interface {
	panel.Inventory
	panel.Commander
}

type Dispatcher struct {
	target     Target
	armingCode string
	clock      clock.Clock
	log        *log.Logger
}

// New returns a dispatcher for target. An empty armingCode accepts every
// submitted code.
func New(target Target, armingCode string, clk clock.Clock, logger *log.Logger) *Dispatcher {
	if clk == nil {
		clk = clock.New()
	}
	return &Dispatcher{target: target, armingCode: armingCode, clock: clk, log: logger}
}

// CodeRequired reports whether area commands need a code.
func (d *Dispatcher) CodeRequired() bool {
	return d.armingCode != ""
}

// CodeMatches applies the arming code policy. With nothing configured any
// submission passes. A numeric configured code is compared as an integer,
// so "01234" matches "1234"; anything else must match exactly.
func CodeMatches(configured, submitted string) bool {
	if configured == "" {
		return true
	}
	if want, err := strconv.Atoi(configured); err == nil {
		got, err := strconv.Atoi(submitted)
		return err == nil && got == want
	}
	return submitted == configured
}

func (d *Dispatcher) Disarm(ctx context.Context, areaID int, code string) error {
	return d.areaCommand(ctx, "disarm", areaID, code, d.target.AreaDisarm)
}

func (d *Dispatcher) ArmHome(ctx context.Context, areaID int, code string) error {
	return d.areaCommand(ctx, "arm_home", areaID, code, d.target.AreaArmPart)
}

func (d *Dispatcher) ArmAway(ctx context.Context, areaID int, code string) error {
	return d.areaCommand(ctx, "arm_away", areaID, code, d.target.AreaArmAll)
}

// areaCommand drops the command without error when the code does not
// match. The panel is never contacted in that case.
func (d *Dispatcher) areaCommand(ctx context.Context, name string, areaID int, code string, send func(context.Context, int) error) error {
	if _, ok := d.target.Areas()[areaID]; !ok {
		return fmt.Errorf("%w: area %d", ErrNoSuchObject, areaID)
	}
	if !CodeMatches(d.armingCode, code) {
		d.log.Debug("Ignoring %s for area %d: arming code mismatch", name, areaID)
		return nil
	}
	d.log.Info("Sending %s to area %d", name, areaID)
	return send(ctx, areaID)
}

func (d *Dispatcher) Lock(ctx context.Context, doorID int) error {
	return d.doorCommand(ctx, "lock", doorID, d.target.DoorRelock)
}

func (d *Dispatcher) Unlock(ctx context.Context, doorID int) error {
	return d.doorCommand(ctx, "unlock", doorID, d.target.DoorUnlock)
}

// OpenDoor cycles the door: unlock, then relock after the panel's strike
// time.
func (d *Dispatcher) OpenDoor(ctx context.Context, doorID int) error {
	return d.doorCommand(ctx, "open", doorID, d.target.DoorCycle)
}

func (d *Dispatcher) doorCommand(ctx context.Context, name string, doorID int, send func(context.Context, int) error) error {
	if _, ok := d.target.Doors()[doorID]; !ok {
		return fmt.Errorf("%w: door %d", ErrNoSuchObject, doorID)
	}
	d.log.Info("Sending %s to door %d", name, doorID)
	return send(ctx, doorID)
}

func (d *Dispatcher) SetOutputActive(ctx context.Context, outputID int) error {
	return d.outputCommand(ctx, true, outputID)
}

func (d *Dispatcher) SetOutputInactive(ctx context.Context, outputID int) error {
	return d.outputCommand(ctx, false, outputID)
}

func (d *Dispatcher) outputCommand(ctx context.Context, active bool, outputID int) error {
	if _, ok := d.target.Outputs()[outputID]; !ok {
		return fmt.Errorf("%w: output %d", ErrNoSuchObject, outputID)
	}
	if active {
		d.log.Info("Activating output %d", outputID)
		return d.target.SetOutputActive(ctx, outputID)
	}
	d.log.Info("Deactivating output %d", outputID)
	return d.target.SetOutputInactive(ctx, outputID)
}

// SetPanelClock sets the panel date and time, to now when when is nil.
func (d *Dispatcher) SetPanelClock(ctx context.Context, when *time.Time) error {
	t := d.clock.Now()
	if when != nil {
		t = *when
	}
	d.log.Info("Setting panel clock to %s", t.Format(time.RFC3339))
	return d.target.SetPanelDate(ctx, t)
}
