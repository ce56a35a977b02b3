// Package entity adapts panel objects into platform entities. Each entity
// renders a Snapshot from the objects it wraps and, while added to the
// platform, re-renders whenever one of their observers fires.
package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/daemonp/bosch2mqtt/internal/observer"
	"github.com/daemonp/bosch2mqtt/internal/panel"
	"github.com/daemonp/bosch2mqtt/internal/types"
)

var ErrUnknownCommand = errors.New("entity: unknown command")

type Platform string

const (
	AlarmControlPanel Platform = "alarm_control_panel"
	BinarySensor      Platform = "binary_sensor"
	Lock              Platform = "lock"
	Sensor            Platform = "sensor"
	Switch            Platform = "switch"
)

// Snapshot is what the platform shows for an entity at one moment. An
// empty State means unknown.
type Snapshot struct {
	State      string
	Available  bool
	Attributes map[string]any
}

// Link is the connection an entity belongs to.
type Link interface {
	UniqueID() string
	Status() bool
	StatusObserver() *observer.Observer
	DeviceInfo() types.DeviceInfo
	Client() panel.Client
}

type Entity interface {
	// UniqueID is {connection}_{kind}_{object id}, stable across restarts.
	UniqueID() string
	Platform() Platform
	// PanelID is the unique id of the connection the entity belongs to.
	PanelID() string
	// ObjectID is the per-connection part of UniqueID, used in topics.
	ObjectID() string
	Name() string
	Device() types.DeviceInfo
	// Discovery returns the platform specific discovery keys.
	Discovery() map[string]any
	Render() Snapshot

	// Added binds onChange to everything the entity renders from.
	Added(onChange func()) error
	// Removed undoes Added.
	Removed()
}

// Commandable entities accept payloads from the platform's command topic.
type Commandable interface {
	Entity
	HandleCommand(ctx context.Context, payload []byte) error
}

type base struct {
	link      Link
	objectID  string
	name      string
	observers []*observer.Observer
	binding   *Binding
}

// newBase takes the object id as used in unique ids and topics: objectKey
// for panel objects, a bare name for the per-panel singletons.
func newBase(link Link, objectID, name string, observers ...*observer.Observer) base {
	return base{link: link, objectID: objectID, name: name, observers: observers, binding: &Binding{}}
}

func objectKey(kind string, id int) string {
	return fmt.Sprintf("%s_%d", kind, id)
}

func (b *base) UniqueID() string         { return b.link.UniqueID() + "_" + b.objectID }
func (b *base) PanelID() string          { return b.link.UniqueID() }
func (b *base) ObjectID() string         { return b.objectID }
func (b *base) Name() string             { return b.name }
func (b *base) Device() types.DeviceInfo { return b.link.DeviceInfo() }

func (b *base) Added(onChange func()) error {
	return b.binding.Bind(onChange, b.observers...)
}

func (b *base) Removed() {
	b.binding.Unbind()
}

var (
	_ Commandable = (*AlarmPanel)(nil)
	_ Commandable = (*DoorLock)(nil)
	_ Commandable = (*OutputSwitch)(nil)
	_ Entity      = (*PointSensor)(nil)
	_ Entity      = (*ConnectionSensor)(nil)
	_ Entity      = (*HistorySensor)(nil)
	_ Entity      = (*FaultsSensor)(nil)
)

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
