package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/daemonp/bosch2mqtt/internal/dispatch"
	"github.com/daemonp/bosch2mqtt/internal/types"
)

// Area commands as sent by the platform.
const (
	CommandDisarm  = "DISARM"
	CommandArmHome = "ARM_HOME"
	CommandArmAway = "ARM_AWAY"
)

// AlarmPanel is the alarm control panel for one area.
type AlarmPanel struct {
	base
	area       *types.Area
	dispatcher *dispatch.Dispatcher
}

func NewAlarmPanel(link Link, area *types.Area, d *dispatch.Dispatcher) *AlarmPanel {
	return &AlarmPanel{
		base: newBase(link, objectKey("area", area.ID), area.Name,
			area.StatusObserver, area.ReadyObserver, area.AlarmObserver, link.StatusObserver()),
		area:       area,
		dispatcher: d,
	}
}

func (e *AlarmPanel) Platform() Platform { return AlarmControlPanel }

func (e *AlarmPanel) Discovery() map[string]any {
	d := map[string]any{
		"supported_features": []string{"arm_home", "arm_away"},
		"command_template":   `{"action":"{{ action }}","code":"{{ code }}"}`,
	}
	if e.dispatcher.CodeRequired() {
		d["code"] = "REMOTE_CODE"
		d["code_arm_required"] = true
		d["code_disarm_required"] = true
	} else {
		d["code_arm_required"] = false
		d["code_disarm_required"] = false
	}
	return d
}

func (e *AlarmPanel) Render() Snapshot {
	return Snapshot{
		State:     AlarmState(e.area),
		Available: e.link.Status(),
		Attributes: map[string]any{
			"ready_to_arm":   ReadyToArm(e.area),
			"faulted_points": e.area.Faults(),
			"alarms":         e.area.Alarms(),
		},
	}
}

type areaCommand struct {
	Action string `json:"action"`
	Code   string `json:"code"`
}

// HandleCommand accepts either a bare action or the JSON form produced by
// the discovery command template.
func (e *AlarmPanel) HandleCommand(ctx context.Context, payload []byte) error {
	var cmd areaCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		cmd = areaCommand{Action: string(payload)}
	}

	switch strings.ToUpper(strings.TrimSpace(cmd.Action)) {
	case CommandDisarm:
		return e.dispatcher.Disarm(ctx, e.area.ID, cmd.Code)
	case CommandArmHome:
		return e.dispatcher.ArmHome(ctx, e.area.ID, cmd.Code)
	case CommandArmAway:
		return e.dispatcher.ArmAway(ctx, e.area.ID, cmd.Code)
	default:
		return fmt.Errorf("%w %q for area %d", ErrUnknownCommand, cmd.Action, e.area.ID)
	}
}
