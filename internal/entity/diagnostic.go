package entity

import (
	"fmt"
	"strings"
)

// ConnectionSensor shows whether the panel session is up. It is the one
// entity that stays available while disconnected.
type ConnectionSensor struct {
	base
}

func NewConnectionSensor(link Link) *ConnectionSensor {
	name := fmt.Sprintf("%s Connection Status", link.DeviceInfo().Model)
	return &ConnectionSensor{base: newBase(link, "connection_status", name, link.StatusObserver())}
}

func (e *ConnectionSensor) Platform() Platform { return BinarySensor }

func (e *ConnectionSensor) Discovery() map[string]any {
	return map[string]any{"device_class": "connectivity", "entity_category": "diagnostic"}
}

func (e *ConnectionSensor) Render() Snapshot {
	return Snapshot{State: onOff(e.link.Status()), Available: true}
}

// HistorySensor counts the panel event log and carries it, newest last, in
// the history attribute. A positive limit keeps only that many of the newest
// lines in the attribute; the count always covers the whole log.
type HistorySensor struct {
	base
	limit int
}

func NewHistorySensor(link Link, limit int) *HistorySensor {
	name := fmt.Sprintf("%s History", link.DeviceInfo().Model)
	return &HistorySensor{
		base:  newBase(link, "history", name, link.Client().HistoryObserver(), link.StatusObserver()),
		limit: limit,
	}
}

func (e *HistorySensor) Platform() Platform { return Sensor }

func (e *HistorySensor) Discovery() map[string]any {
	return map[string]any{"icon": "mdi:history", "entity_category": "diagnostic"}
}

func (e *HistorySensor) Render() Snapshot {
	events := e.link.Client().Events()
	shown := events
	if e.limit > 0 && len(shown) > e.limit {
		shown = shown[len(shown)-e.limit:]
	}
	lines := make([]string, len(shown))
	for i, ev := range shown {
		lines[i] = ev.String()
	}
	return Snapshot{
		State:      fmt.Sprint(len(events)),
		Available:  e.link.Status(),
		Attributes: map[string]any{"history": strings.Join(lines, "\n")},
	}
}

// FaultsSensor counts the panel-wide faults and lists them.
type FaultsSensor struct {
	base
}

func NewFaultsSensor(link Link) *FaultsSensor {
	name := fmt.Sprintf("%s Faults", link.DeviceInfo().Model)
	return &FaultsSensor{
		base: newBase(link, "faults", name, link.Client().FaultsObserver(), link.StatusObserver()),
	}
}

func (e *FaultsSensor) Platform() Platform { return Sensor }

func (e *FaultsSensor) Discovery() map[string]any {
	return map[string]any{"icon": "mdi:alert-circle", "entity_category": "diagnostic"}
}

func (e *FaultsSensor) Render() Snapshot {
	faults := e.link.Client().PanelFaults()
	return Snapshot{
		State:      fmt.Sprint(len(faults)),
		Available:  e.link.Status(),
		Attributes: map[string]any{"faults": faults},
	}
}
