package entity

import (
	"context"
	"fmt"
	"strings"

	"github.com/daemonp/bosch2mqtt/internal/dispatch"
	"github.com/daemonp/bosch2mqtt/internal/types"
)

const (
	CommandLock   = "LOCK"
	CommandUnlock = "UNLOCK"
	CommandOpen   = "OPEN"
)

// DoorLock is the lock entity for one access-controlled door.
type DoorLock struct {
	base
	door       *types.Door
	dispatcher *dispatch.Dispatcher
}

func NewDoorLock(link Link, door *types.Door, d *dispatch.Dispatcher) *DoorLock {
	return &DoorLock{
		base:       newBase(link, objectKey("door", door.ID), door.Name, door.StatusObserver, link.StatusObserver()),
		door:       door,
		dispatcher: d,
	}
}

func (e *DoorLock) Platform() Platform { return Lock }

func (e *DoorLock) Discovery() map[string]any {
	return map[string]any{"payload_open": CommandOpen}
}

func (e *DoorLock) Render() Snapshot {
	state := ""
	switch {
	case e.door.IsLocked():
		state = "LOCKED"
	case e.door.IsOpen():
		state = "UNLOCKED"
	}
	return Snapshot{
		State:     state,
		Available: e.link.Status() && DoorAvailable(e.door),
	}
}

func (e *DoorLock) HandleCommand(ctx context.Context, payload []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case CommandLock:
		return e.dispatcher.Lock(ctx, e.door.ID)
	case CommandUnlock:
		return e.dispatcher.Unlock(ctx, e.door.ID)
	case CommandOpen:
		return e.dispatcher.OpenDoor(ctx, e.door.ID)
	default:
		return fmt.Errorf("%w %q for door %d", ErrUnknownCommand, payload, e.door.ID)
	}
}
