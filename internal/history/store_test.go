package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daemonp/bosch2mqtt/internal/clock"
	"github.com/daemonp/bosch2mqtt/internal/log"
	"github.com/daemonp/bosch2mqtt/internal/types"
)

type memBackend struct {
	mu      sync.Mutex
	data    map[string]Cursor
	loadErr error
	saveErr error
	saves   int
}

func (m *memBackend) Load(ctx context.Context) (map[string]Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make(map[string]Cursor, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out, nil
}

func (m *memBackend) Save(ctx context.Context, cursors map[string]Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = cursors
	return nil
}

func (m *memBackend) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleEvents() []types.HistoryEvent {
	return []types.HistoryEvent{
		{ID: 40, Date: start, Message: "Area 1 armed"},
		{ID: 41, Date: start.Add(time.Minute), Message: "Point 3 open"},
		{ID: 42, Date: start.Add(2 * time.Minute), Message: "Area 1 disarmed"},
	}
}

func TestStore_RoundTripAcrossRestart(t *testing.T) {
	ctx := context.Background()
	backend := &memBackend{}
	clk := clock.NewMock(start)

	s := NewStore(backend, clk, 0, 0, log.Nop())
	s.Initialize(ctx)
	s.Record("house", 42, sampleEvents())
	clk.Advance(DefaultDelay)
	require.Equal(t, 1, backend.Saves())

	restarted := NewStore(backend, clock.NewMock(start), 0, 0, log.Nop())
	restarted.Initialize(ctx)
	lastID, events := restarted.Load("house")
	assert.Equal(t, int64(42), lastID)
	assert.Equal(t, sampleEvents(), events)
}

func TestStore_EmptyOnFirstRun(t *testing.T) {
	s := NewStore(&memBackend{}, clock.NewMock(start), 0, 0, log.Nop())
	s.Initialize(context.Background())
	lastID, events := s.Load("house")
	assert.Zero(t, lastID)
	assert.Empty(t, events)
}

func TestStore_CorruptBackendDegradesToEmpty(t *testing.T) {
	backend := &memBackend{loadErr: ErrCorrupt}
	s := NewStore(backend, clock.NewMock(start), 0, 0, log.Nop())
	s.Initialize(context.Background())
	lastID, _ := s.Load("house")
	assert.Zero(t, lastID)
}

func TestStore_DebounceCoalescesWrites(t *testing.T) {
	backend := &memBackend{}
	clk := clock.NewMock(start)
	s := NewStore(backend, clk, 10*time.Second, 0, log.Nop())

	s.Record("house", 41, sampleEvents()[:2])
	s.Record("house", 42, sampleEvents())
	assert.Equal(t, 1, clk.Pending())

	clk.Advance(9 * time.Second)
	assert.Equal(t, 0, backend.Saves())
	clk.Advance(time.Second)
	assert.Equal(t, 1, backend.Saves())
	assert.Equal(t, int64(42), backend.data["house"].LastID)

	clk.Advance(time.Minute)
	assert.Equal(t, 1, backend.Saves())
}

func TestStore_RecordResetsTimer(t *testing.T) {
	backend := &memBackend{}
	clk := clock.NewMock(start)
	s := NewStore(backend, clk, 10*time.Second, 0, log.Nop())

	s.Record("house", 40, sampleEvents()[:1])
	clk.Advance(6 * time.Second)
	s.Record("house", 41, sampleEvents()[:2])
	clk.Advance(6 * time.Second)
	assert.Equal(t, 0, backend.Saves())

	clk.Advance(4 * time.Second)
	assert.Equal(t, 1, backend.Saves())
}

func TestStore_Flush(t *testing.T) {
	ctx := context.Background()
	backend := &memBackend{}
	clk := clock.NewMock(start)
	s := NewStore(backend, clk, 0, 0, log.Nop())

	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 0, backend.Saves())

	s.Record("house", 42, sampleEvents())
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 1, backend.Saves())
	assert.Equal(t, 0, clk.Pending())

	clk.Advance(DefaultDelay)
	assert.Equal(t, 1, backend.Saves())
}

func TestStore_FailedSaveIsRetriedOnFlush(t *testing.T) {
	ctx := context.Background()
	backend := &memBackend{saveErr: errors.New("disk full")}
	clk := clock.NewMock(start)
	s := NewStore(backend, clk, 0, 0, log.Nop())

	s.Record("house", 42, sampleEvents())
	clk.Advance(DefaultDelay)
	assert.Equal(t, 1, backend.Saves())

	backend.saveErr = nil
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 2, backend.Saves())
	assert.Equal(t, int64(42), backend.data["house"].LastID)
}

func TestStore_NormalizesEvents(t *testing.T) {
	s := NewStore(&memBackend{}, clock.NewMock(start), 0, 2, log.Nop())
	events := sampleEvents()
	s.Record("house", 42, []types.HistoryEvent{events[2], events[0], events[1], events[2]})

	_, got := s.Load("house")
	assert.Equal(t, events[1:], got)
}

func TestStore_Delete(t *testing.T) {
	backend := &memBackend{}
	clk := clock.NewMock(start)
	s := NewStore(backend, clk, 0, 0, log.Nop())

	s.Delete("house")
	assert.Equal(t, 0, clk.Pending())

	s.Record("house", 42, sampleEvents())
	s.Record("garage", 7, nil)
	s.Delete("house")
	clk.Advance(DefaultDelay)

	assert.Equal(t, 1, backend.Saves())
	assert.NotContains(t, backend.data, "house")
	assert.Contains(t, backend.data, "garage")
}

func TestStore_UnreachableAtStartupKeepsStoredCursors(t *testing.T) {
	ctx := context.Background()
	backend := &memBackend{
		data:    map[string]Cursor{"garage": {LastID: 7}, "shed": {LastID: 3}, "house": {LastID: 40}},
		loadErr: errors.New("connection refused"),
	}
	clk := clock.NewMock(start)
	s := NewStore(backend, clk, 0, 0, log.Nop())
	s.Initialize(ctx)

	s.Record("house", 42, sampleEvents())
	s.Delete("shed")
	clk.Advance(DefaultDelay)
	assert.Equal(t, 0, backend.Saves())
	assert.Error(t, s.Flush(ctx))
	assert.Equal(t, 0, backend.Saves())

	backend.mu.Lock()
	backend.loadErr = nil
	backend.mu.Unlock()

	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 1, backend.Saves())
	assert.Equal(t, int64(42), backend.data["house"].LastID)
	assert.Equal(t, int64(7), backend.data["garage"].LastID)
	assert.NotContains(t, backend.data, "shed")

	lastID, _ := s.Load("garage")
	assert.Equal(t, int64(7), lastID)
}
