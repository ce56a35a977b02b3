package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daemonp/bosch2mqtt/internal/clock"
	"github.com/daemonp/bosch2mqtt/internal/config"
	"github.com/daemonp/bosch2mqtt/internal/log"
	"github.com/daemonp/bosch2mqtt/internal/panel"
	"github.com/daemonp/bosch2mqtt/internal/panel/simulator"
	"github.com/daemonp/bosch2mqtt/internal/types"
)

func TestCodeMatches(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		submitted  string
		want       bool
	}{
		{"numeric match", "1234", "1234", true},
		{"numeric mismatch", "1234", "1235", false},
		{"numeric leading zero", "1234", "01234", true},
		{"numeric against text", "1234", "abcd", false},
		{"numeric against empty", "1234", "", false},
		{"text exact", "hunter2", "hunter2", true},
		{"text case differs", "hunter2", "Hunter2", false},
		{"nothing configured", "", "anything", true},
		{"nothing configured or submitted", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeMatches(tt.configured, tt.submitted))
		})
	}
}

func newDispatcher(t *testing.T, code string) (*Dispatcher, *simulator.Panel, *clock.MockClock) {
	t.Helper()
	sim := simulator.New(config.PanelConfig{Password: "1234567890"}, log.Nop())
	require.NoError(t, sim.Connect(context.Background(), panel.LoadAll))
	clk := clock.NewMock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return New(sim, code, clk, log.Nop()), sim, clk
}

func TestDispatcher_AreaCommands(t *testing.T) {
	ctx := context.Background()
	d, sim, _ := newDispatcher(t, "1234")
	area := sim.Areas()[1]

	require.NoError(t, d.ArmAway(ctx, 1, "1234"))
	assert.Equal(t, types.ArmingAllArmed, area.ArmingState())

	require.NoError(t, d.ArmHome(ctx, 1, "1234"))
	assert.Equal(t, types.ArmingPartArmed, area.ArmingState())

	require.NoError(t, d.Disarm(ctx, 1, "1234"))
	assert.Equal(t, types.ArmingDisarmed, area.ArmingState())

	assert.Equal(t, []string{"area_arm_all(1)", "area_arm_part(1)", "area_disarm(1)"}, sim.Calls())
}

func TestDispatcher_CodeMismatchIsDropped(t *testing.T) {
	ctx := context.Background()
	d, sim, _ := newDispatcher(t, "1234")
	assert.True(t, d.CodeRequired())

	assert.NoError(t, d.ArmAway(ctx, 1, "1235"))
	assert.NoError(t, d.Disarm(ctx, 1, ""))

	assert.Empty(t, sim.Calls())
	assert.Equal(t, types.ArmingDisarmed, sim.Areas()[1].ArmingState())
}

func TestDispatcher_NoCodeConfigured(t *testing.T) {
	d, sim, _ := newDispatcher(t, "")
	assert.False(t, d.CodeRequired())
	require.NoError(t, d.ArmAway(context.Background(), 1, "whatever"))
	assert.Equal(t, []string{"area_arm_all(1)"}, sim.Calls())
}

func TestDispatcher_PropagatesPanelErrors(t *testing.T) {
	ctx := context.Background()
	d, sim, _ := newDispatcher(t, "")
	boom := errors.New("panel busy")
	sim.FailCommands(boom)

	assert.ErrorIs(t, d.ArmAway(ctx, 1, ""), boom)
	assert.ErrorIs(t, d.Unlock(ctx, 1), boom)
	assert.ErrorIs(t, d.SetOutputActive(ctx, 1), boom)

	sim.FailCommands(nil)
	sim.SetConnected(false)
	assert.ErrorIs(t, d.Lock(ctx, 1), simulator.ErrNotConnected)
}

func TestDispatcher_UnknownObjects(t *testing.T) {
	ctx := context.Background()
	d, sim, _ := newDispatcher(t, "")

	assert.ErrorIs(t, d.Disarm(ctx, 9, ""), ErrNoSuchObject)
	assert.ErrorIs(t, d.OpenDoor(ctx, 9), ErrNoSuchObject)
	assert.ErrorIs(t, d.SetOutputInactive(ctx, 9), ErrNoSuchObject)
	assert.Empty(t, sim.Calls())
}

func TestDispatcher_DoorsAndOutputs(t *testing.T) {
	ctx := context.Background()
	d, sim, _ := newDispatcher(t, "1234")
	door := sim.Doors()[1]
	out := sim.Outputs()[1]

	require.NoError(t, d.Unlock(ctx, 1))
	assert.True(t, door.IsOpen())
	require.NoError(t, d.Lock(ctx, 1))
	assert.True(t, door.IsLocked())
	require.NoError(t, d.OpenDoor(ctx, 1))
	assert.True(t, door.IsOpen())

	require.NoError(t, d.SetOutputActive(ctx, 1))
	assert.True(t, out.IsActive())
	require.NoError(t, d.SetOutputInactive(ctx, 1))
	assert.False(t, out.IsActive())
}

func TestDispatcher_SetPanelClock(t *testing.T) {
	ctx := context.Background()
	d, sim, clk := newDispatcher(t, "")

	require.NoError(t, d.SetPanelClock(ctx, nil))
	assert.Equal(t, clk.Now(), sim.PanelDate())

	when := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, d.SetPanelClock(ctx, &when))
	assert.Equal(t, when, sim.PanelDate())
}
