// Package history persists each panel's history cursor, the last event ID
// seen plus the event log, so a restart resumes where it left off. Writes
// are debounced: every Record restarts the save timer.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/daemonp/bosch2mqtt/internal/clock"
	"github.com/daemonp/bosch2mqtt/internal/log"
	"github.com/daemonp/bosch2mqtt/internal/types"
)

const DefaultDelay = 10 * time.Second

var ErrCorrupt = errors.New("history: corrupt data")

// Cursor is the persisted state for one panel.
type Cursor struct {
	LastID int64                `json:"last_id"`
	Events []types.HistoryEvent `json:"events"`
}

// Backend stores every cursor as one document.
type Backend interface {
	// Load returns an empty map when nothing has been saved yet, and an
	// error wrapping ErrCorrupt when the stored data cannot be decoded.
	Load(ctx context.Context) (map[string]Cursor, error)
	Save(ctx context.Context, cursors map[string]Cursor) error
}

type Store struct {
	backend   Backend
	clock     clock.Clock
	delay     time.Duration
	maxEvents int
	log       *log.Logger

	mu      sync.Mutex
	cursors map[string]Cursor
	timer   clock.Timer
	dirty   bool

	// loadFailed is set when Initialize could not reach the backend. Saves
	// then wait for a successful load, and deleted remembers what to leave
	// out of the merge.
	loadFailed bool
	deleted    map[string]bool
}

// NewStore returns a store over backend. A zero delay means DefaultDelay and
// a maxEvents of zero keeps every event.
func NewStore(backend Backend, clk clock.Clock, delay time.Duration, maxEvents int, logger *log.Logger) *Store {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Store{
		backend:   backend,
		clock:     clk,
		delay:     delay,
		maxEvents: maxEvents,
		log:       logger,
		cursors:   make(map[string]Cursor),
	}
}

// Initialize loads every cursor. Missing or unreadable data leaves those
// cursors empty; it never stops startup. If the backend cannot be reached
// the load is retried before the first save, so stored cursors are not
// overwritten by an empty store.
func (s *Store) Initialize(ctx context.Context) {
	cursors, err := s.backend.Load(ctx)
	if err != nil {
		s.log.Warn("Ignoring unreadable history: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadFailed = err != nil && !errors.Is(err, ErrCorrupt)
	s.cursors = make(map[string]Cursor, len(cursors))
	for key, c := range cursors {
		s.cursors[key] = s.normalize(c)
	}
	s.log.Debug("Loaded history for %d panel(s)", len(s.cursors))
}

// Load returns the cursor for key, or zero and no events.
func (s *Store) Load(key string) (int64, []types.HistoryEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cursors[key]
	if !ok {
		return 0, nil
	}
	return c.LastID, append([]types.HistoryEvent(nil), c.Events...)
}

// Record replaces the cursor for key and schedules a save.
func (s *Store) Record(key string, lastID int64, events []types.HistoryEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[key] = s.normalize(Cursor{LastID: lastID, Events: events})
	s.scheduleLocked()
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadFailed {
		if s.deleted == nil {
			s.deleted = make(map[string]bool)
		}
		s.deleted[key] = true
	} else if _, ok := s.cursors[key]; !ok {
		return
	}
	delete(s.cursors, key)
	s.scheduleLocked()
}

// Flush cancels any pending save and writes now if anything changed.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.save(ctx)
}

func (s *Store) scheduleLocked() {
	s.dirty = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(s.delay, func() {
		if err := s.save(context.Background()); err != nil {
			s.log.Error("Failed to save history: %v", err)
		}
	})
}

func (s *Store) save(ctx context.Context) error {
	s.mu.Lock()
	dirty := s.dirty
	s.mu.Unlock()
	if !dirty {
		return nil
	}
	if err := s.retryLoad(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	snapshot := make(map[string]Cursor, len(s.cursors))
	for key, c := range s.cursors {
		snapshot[key] = c
	}
	s.dirty = false
	s.mu.Unlock()

	if err := s.backend.Save(ctx, snapshot); err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return err
	}
	s.log.Debug("Saved history for %d panel(s)", len(snapshot))
	return nil
}

// retryLoad finishes a load that failed in Initialize, merging what the
// backend holds under the cursors recorded since.
func (s *Store) retryLoad(ctx context.Context) error {
	s.mu.Lock()
	failed := s.loadFailed
	s.mu.Unlock()
	if !failed {
		return nil
	}

	cursors, err := s.backend.Load(ctx)
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return fmt.Errorf("history was never loaded, not overwriting it: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loadFailed {
		return nil
	}
	for key, c := range cursors {
		if _, ok := s.cursors[key]; ok || s.deleted[key] {
			continue
		}
		s.cursors[key] = s.normalize(c)
	}
	s.loadFailed = false
	s.deleted = nil
	s.log.Info("Loaded history for %d panel(s) after an earlier failure", len(cursors))
	return nil
}

// normalize orders events by ID, drops duplicate IDs and keeps the newest
// maxEvents.
func (s *Store) normalize(c Cursor) Cursor {
	events := append([]types.HistoryEvent(nil), c.Events...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].ID < events[j].ID })

	out := events[:0]
	for _, ev := range events {
		if len(out) > 0 && ev.ID == out[len(out)-1].ID {
			continue
		}
		out = append(out, ev)
	}
	if s.maxEvents > 0 && len(out) > s.maxEvents {
		out = out[len(out)-s.maxEvents:]
	}
	if len(out) == 0 {
		out = nil
	}
	return Cursor{LastID: c.LastID, Events: out}
}
