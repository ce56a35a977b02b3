package entity

import (
	"regexp"
	"strings"

	"github.com/daemonp/bosch2mqtt/internal/types"
)

// Alarm panel states as the platform names them.
const (
	StateTriggered = "triggered"
	StateDisarmed  = "disarmed"
	StateArming    = "arming"
	StatePending   = "pending"
	StateArmedHome = "armed_home"
	StateArmedAway = "armed_away"
)

// Values of the ready_to_arm attribute.
const (
	ReadyNo   = "no"
	ReadyHome = "home"
	ReadyAway = "away"
)

// AlarmState maps an area to the platform alarm state. The first matching
// predicate wins, so an armed area with an active alarm is triggered. An
// area in none of the states renders as "".
func AlarmState(a *types.Area) string {
	switch {
	case a.IsTriggered():
		return StateTriggered
	case a.IsDisarmed():
		return StateDisarmed
	case a.IsArming():
		return StateArming
	case a.IsPending():
		return StatePending
	case a.IsPartArmed():
		return StateArmedHome
	case a.IsAllArmed():
		return StateArmedAway
	default:
		return ""
	}
}

// ReadyToArm reports the widest arming mode the area could enter now.
func ReadyToArm(a *types.Area) string {
	switch {
	case a.AllReady():
		return ReadyAway
	case a.PartReady():
		return ReadyHome
	default:
		return ReadyNo
	}
}

// PointAvailable is true for open or normal points. Faulted and unknown
// points cannot be trusted to report their contact state.
func PointAvailable(p *types.Point) bool {
	return p.IsOpen() || p.IsNormal()
}

func DoorAvailable(d *types.Door) bool {
	return d.IsOpen() || d.IsLocked()
}

var deviceClasses = []struct {
	pattern *regexp.Regexp
	class   string
}{
	{regexp.MustCompile(`\b(win(d)?(ow)?|wn)\b`), "window"},
	{regexp.MustCompile(`\b(door|dr)\b`), "door"},
	{regexp.MustCompile(`\b(motion|md)\b`), "motion"},
	{regexp.MustCompile(`\bco\b`), "carbon_monoxide"},
	{regexp.MustCompile(`\bsmoke\b`), "smoke"},
	{regexp.MustCompile(`\bglassbr(ea)?k\b`), "tamper"},
}

// DeviceClass guesses a binary sensor class from a point name by whole word
// keywords, in a fixed order. No match returns "".
func DeviceClass(name string) string {
	name = strings.ToLower(name)
	for _, dc := range deviceClasses {
		if dc.pattern.MatchString(name) {
			return dc.class
		}
	}
	return ""
}
