package types

import (
	"fmt"
	"time"
)

const Manufacturer = "Bosch Security Systems"

// DeviceInfo is the device block every entity of one panel points at.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

func NewDeviceInfo(uniqueID, model, firmware string) DeviceInfo {
	return DeviceInfo{
		Identifiers:  []string{uniqueID},
		Name:         fmt.Sprintf("Bosch %s", model),
		Manufacturer: Manufacturer,
		Model:        model,
		SWVersion:    firmware,
	}
}

// HistoryEvent is one line of the panel event log. IDs increase strictly
// over the lifetime of a panel.
type HistoryEvent struct {
	ID      int64     `json:"id"`
	Date    time.Time `json:"date"`
	Message string    `json:"message"`
}

func (e HistoryEvent) String() string {
	if e.Date.IsZero() {
		return e.Message
	}
	return fmt.Sprintf("%s | %s", e.Date.Format("2006-01-02 15:04:05"), e.Message)
}

type ArmingState int

const (
	ArmingUnknown ArmingState = iota
	ArmingDisarmed
	ArmingArming
	ArmingPending
	ArmingPartArmed
	ArmingAllArmed
	ArmingTriggered
)

func (a ArmingState) String() string {
	switch a {
	case ArmingUnknown:
		return "Unknown"
	case ArmingDisarmed:
		return "Disarmed"
	case ArmingArming:
		return "Arming"
	case ArmingPending:
		return "Pending"
	case ArmingPartArmed:
		return "Part Armed"
	case ArmingAllArmed:
		return "All Armed"
	case ArmingTriggered:
		return "Triggered"
	default:
		return fmt.Sprintf("Unknown ArmingState(%d)", a)
	}
}

type PointStatus int

const (
	PointUnknown PointStatus = iota
	PointNormal
	PointOpen
	PointFaulted
)

func (p PointStatus) String() string {
	switch p {
	case PointUnknown:
		return "Unknown"
	case PointNormal:
		return "Normal"
	case PointOpen:
		return "Open"
	case PointFaulted:
		return "Faulted"
	default:
		return fmt.Sprintf("Unknown PointStatus(%d)", p)
	}
}

type DoorStatus int

const (
	DoorUnknown DoorStatus = iota
	DoorLocked
	DoorUnlocked
	DoorSecured
)

func (d DoorStatus) String() string {
	switch d {
	case DoorUnknown:
		return "Unknown"
	case DoorLocked:
		return "Locked"
	case DoorUnlocked:
		return "Unlocked"
	case DoorSecured:
		return "Secured"
	default:
		return fmt.Sprintf("Unknown DoorStatus(%d)", d)
	}
}
