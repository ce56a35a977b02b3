package bridge

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daemonp/bosch2mqtt/internal/clock"
	"github.com/daemonp/bosch2mqtt/internal/config"
	"github.com/daemonp/bosch2mqtt/internal/entity"
	"github.com/daemonp/bosch2mqtt/internal/history"
	"github.com/daemonp/bosch2mqtt/internal/log"
	"github.com/daemonp/bosch2mqtt/internal/panel"
	"github.com/daemonp/bosch2mqtt/internal/panel/simulator"
)

type fakePlatform struct {
	mu       sync.Mutex
	entities map[string]entity.Entity
	adds     int
	failNext error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{entities: make(map[string]entity.Entity)}
}

func (f *fakePlatform) AddEntities(entities ...entity.Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failNext; err != nil {
		f.failNext = nil
		return err
	}
	for _, e := range entities {
		if err := e.Added(func() {}); err != nil {
			return err
		}
		f.entities[e.UniqueID()] = e
		f.adds++
	}
	return nil
}

func (f *fakePlatform) RemoveEntities(panelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, e := range f.entities {
		if e.PanelID() == panelID {
			e.Removed()
			delete(f.entities, id)
		}
	}
}

func (f *fakePlatform) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.entities))
	for id := range f.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *fakePlatform) addCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.adds
}

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	sim      *simulator.Panel
	clock    *clock.MockClock
	platform *fakePlatform
	runtime  *Runtime
}

func newHarness(t *testing.T, cfg config.PanelConfig) *harness {
	t.Helper()
	if cfg.UniqueID == "" {
		cfg.UniqueID = "house"
	}
	sim := simulator.New(cfg, log.Nop())
	clk := clock.NewMock(start)
	store := history.NewStore(history.NewFileBackend(filepath.Join(t.TempDir(), "history.json")), clk, 0, 0, log.Nop())
	platform := newFakePlatform()
	r := NewRuntime(cfg, sim, store, platform, clk, log.Nop())
	t.Cleanup(func() { r.Stop(context.Background()) })
	return &harness{sim: sim, clock: clk, platform: platform, runtime: r}
}

func (h *harness) waitConnected(t *testing.T) {
	t.Helper()
	require.Eventually(t, h.runtime.Connection().Status, time.Second, 5*time.Millisecond)
}

func (h *harness) waitPending(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.clock.Pending() == n }, time.Second, 5*time.Millisecond)
}

var allEntities = []string{
	"house_area_1",
	"house_connection_status",
	"house_door_1",
	"house_faults",
	"house_history",
	"house_output_1",
	"house_point_1",
	"house_point_2",
}

func TestRuntime_CreatesEntitiesOnFirstConnect(t *testing.T) {
	h := newHarness(t, config.PanelConfig{Password: "1234567890"})
	h.sim.FailConnect(context.DeadlineExceeded)

	require.NoError(t, h.runtime.Start(context.Background()))
	h.waitPending(t, 1)
	assert.Equal(t, []string{"house_connection_status", "house_faults", "house_history"}, h.platform.ids())

	h.sim.FailConnect(nil)
	h.clock.Advance(5 * time.Second)
	h.waitConnected(t)
	assert.Equal(t, allEntities, h.platform.ids())
}

func TestRuntime_HistoryDisabled(t *testing.T) {
	off := false
	h := newHarness(t, config.PanelConfig{Password: "1234567890", ShowHistory: &off})
	require.NoError(t, h.runtime.Start(context.Background()))
	h.waitConnected(t)
	assert.NotContains(t, h.platform.ids(), "house_history")
	assert.NotContains(t, h.platform.ids(), "house_faults")
	assert.Contains(t, h.platform.ids(), "house_connection_status")
}

func TestRuntime_ReconnectDoesNotRecreateEntities(t *testing.T) {
	h := newHarness(t, config.PanelConfig{Password: "1234567890"})
	require.NoError(t, h.runtime.Start(context.Background()))
	h.waitConnected(t)
	adds := h.platform.addCount()

	h.sim.SetConnected(false)
	h.waitPending(t, 1)
	assert.False(t, h.runtime.Connection().Status())

	h.clock.Advance(5 * time.Second)
	h.waitConnected(t)
	assert.Equal(t, 2, h.sim.Connects())
	assert.Equal(t, adds, h.platform.addCount())
}

func TestRuntime_BackoffDoubles(t *testing.T) {
	h := newHarness(t, config.PanelConfig{
		Password:  "1234567890",
		Reconnect: config.ReconnectConfig{Min: "1s", Max: "3s"},
	})
	h.sim.FailConnect(context.DeadlineExceeded)
	require.NoError(t, h.runtime.Start(context.Background()))

	waitConnects := func(n int) {
		require.Eventually(t, func() bool { return h.sim.Connects() == n }, time.Second, 5*time.Millisecond)
		h.waitPending(t, 1)
	}

	waitConnects(1)
	h.clock.Advance(time.Second)
	waitConnects(2)

	h.clock.Advance(time.Second)
	assert.Equal(t, 2, h.sim.Connects())
	h.clock.Advance(time.Second)
	waitConnects(3)

	h.clock.Advance(3 * time.Second)
	waitConnects(4)
	h.clock.Advance(3 * time.Second)
	waitConnects(5)
}

func TestRuntime_AuthFailureIsPermanent(t *testing.T) {
	h := newHarness(t, config.PanelConfig{})
	require.NoError(t, h.runtime.Start(context.Background()))

	require.Eventually(t, func() bool { return h.runtime.Failed() != nil }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, h.runtime.Failed(), panel.ErrAuthentication)
	assert.Equal(t, 0, h.clock.Pending())
	assert.Equal(t, 1, h.sim.Connects())
	assert.Equal(t, []string{"house_connection_status", "house_faults", "house_history"}, h.platform.ids())
}

func TestRuntime_StartFailureCanBeRetried(t *testing.T) {
	h := newHarness(t, config.PanelConfig{Password: "1234567890"})
	h.platform.mu.Lock()
	h.platform.failNext = errors.New("broker unavailable")
	h.platform.mu.Unlock()

	assert.Error(t, h.runtime.Start(context.Background()))
	assert.Equal(t, 0, h.sim.HistoryObserver().Len())
	assert.Equal(t, 0, h.sim.Connects())
	assert.Empty(t, h.platform.ids())

	require.NoError(t, h.runtime.Start(context.Background()))
	h.waitConnected(t)
	assert.Equal(t, allEntities, h.platform.ids())
}

func TestRuntime_HistoryCountLimitsHistoryAttribute(t *testing.T) {
	h := newHarness(t, config.PanelConfig{Password: "1234567890", HistoryCount: 1})
	require.NoError(t, h.runtime.Start(context.Background()))
	h.waitConnected(t)
	h.sim.AddEvent(start, "Area 1 armed")
	h.sim.AddEvent(start.Add(time.Minute), "Area 1 disarmed")

	h.platform.mu.Lock()
	snap := h.platform.entities["house_history"].Render()
	h.platform.mu.Unlock()
	assert.Equal(t, "2", snap.State)
	assert.Equal(t, "2024-03-01 12:01:00 | Area 1 disarmed", snap.Attributes["history"])
}

func TestRuntime_Stop(t *testing.T) {
	h := newHarness(t, config.PanelConfig{Password: "1234567890"})
	require.NoError(t, h.runtime.Start(context.Background()))
	h.waitConnected(t)

	require.NoError(t, h.runtime.Stop(context.Background()))
	assert.Empty(t, h.platform.ids())
	assert.False(t, h.sim.ConnectionStatus())
	assert.Equal(t, 0, h.sim.HistoryObserver().Len())
	assert.Equal(t, 0, h.sim.ConnectionStatusObserver().Len())

	require.NoError(t, h.runtime.Stop(context.Background()))
}

func TestRuntime_StopWhileRetrying(t *testing.T) {
	h := newHarness(t, config.PanelConfig{Password: "1234567890"})
	h.sim.FailConnect(context.DeadlineExceeded)
	require.NoError(t, h.runtime.Start(context.Background()))
	h.waitPending(t, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.runtime.Stop(ctx))
	assert.NoError(t, ctx.Err())
	assert.Equal(t, 0, h.clock.Pending())
}

func newManager(t *testing.T) (*Manager, *fakePlatform, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.json")
	cfg := &config.Config{Panels: []config.PanelConfig{
		{UniqueID: "house", Driver: "simulator", Password: "1"},
		{UniqueID: "garage", Driver: "simulator", Password: "2"},
	}}
	clk := clock.NewMock(start)
	store := history.NewStore(history.NewFileBackend(path), clk, 0, 0, log.Nop())
	store.Initialize(context.Background())
	platform := newFakePlatform()
	m, err := NewManager(cfg, platform, store, clk, log.Nop())
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	for _, r := range m.Runtimes() {
		require.Eventually(t, r.Connection().Status, time.Second, 5*time.Millisecond)
	}
	return m, platform, path
}

func simOf(t *testing.T, m *Manager, id string) *simulator.Panel {
	t.Helper()
	r, ok := m.Runtime(id)
	require.True(t, ok)
	return r.Connection().Client().(*simulator.Panel)
}

func TestManager_SetPanelClock(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newManager(t)
	defer m.Stop(ctx)
	house, garage := simOf(t, m, "house"), simOf(t, m, "garage")

	when := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, m.SetPanelClock(ctx, []string{"garage"}, &when))
	assert.Equal(t, when, garage.PanelDate())
	assert.True(t, house.PanelDate().IsZero())

	require.NoError(t, m.SetPanelClock(ctx, nil, nil))
	assert.Equal(t, start, house.PanelDate())
	assert.Equal(t, start, garage.PanelDate())

	err := m.SetPanelClock(ctx, []string{"house", "shed"}, &when)
	assert.ErrorIs(t, err, ErrUnknownPanel)
	assert.Equal(t, start, house.PanelDate())
}

func TestManager_StopFlushesHistory(t *testing.T) {
	ctx := context.Background()
	m, platform, path := newManager(t)
	simOf(t, m, "house").AddEvent(start, "Area 1 armed")
	simOf(t, m, "garage").AddEvent(start, "Door 1 unlocked")

	require.NoError(t, m.Stop(ctx))
	assert.Empty(t, platform.ids())

	cursors, err := history.NewFileBackend(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cursors["house"].LastID)
	assert.Equal(t, int64(1), cursors["garage"].LastID)
}

func TestNewManager_UnknownDriver(t *testing.T) {
	cfg := &config.Config{Panels: []config.PanelConfig{{UniqueID: "house", Driver: "mode2"}}}
	_, err := NewManager(cfg, newFakePlatform(), nil, clock.New(), log.Nop())
	assert.ErrorIs(t, err, panel.ErrUnknownDriver)
}
