package entity

import (
	"context"
	"fmt"
	"strings"

	"github.com/daemonp/bosch2mqtt/internal/dispatch"
	"github.com/daemonp/bosch2mqtt/internal/types"
)

// OutputSwitch turns a panel output (relay) on and off.
type OutputSwitch struct {
	base
	output     *types.Output
	dispatcher *dispatch.Dispatcher
}

func NewOutputSwitch(link Link, output *types.Output, d *dispatch.Dispatcher) *OutputSwitch {
	return &OutputSwitch{
		base:       newBase(link, objectKey("output", output.ID), output.Name, output.StatusObserver, link.StatusObserver()),
		output:     output,
		dispatcher: d,
	}
}

func (e *OutputSwitch) Platform() Platform { return Switch }

func (e *OutputSwitch) Discovery() map[string]any { return map[string]any{} }

func (e *OutputSwitch) Render() Snapshot {
	return Snapshot{State: onOff(e.output.IsActive()), Available: e.link.Status()}
}

func (e *OutputSwitch) HandleCommand(ctx context.Context, payload []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case "ON":
		return e.dispatcher.SetOutputActive(ctx, e.output.ID)
	case "OFF":
		return e.dispatcher.SetOutputInactive(ctx, e.output.ID)
	default:
		return fmt.Errorf("%w %q for output %d", ErrUnknownCommand, payload, e.output.ID)
	}
}
