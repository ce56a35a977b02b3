package history

import (
	"context"
	"sync"

	"github.com/daemonp/bosch2mqtt/internal/log"
	"github.com/daemonp/bosch2mqtt/internal/observer"
	"github.com/daemonp/bosch2mqtt/internal/types"
)

// Source is the history side of a panel client.
type Source interface {
	HistoryObserver() *observer.Observer
	Events() []types.HistoryEvent
	SetHistoryCursor(lastID int64, events []types.HistoryEvent)
}

// Sink receives events the tracker has not seen before. Export runs on the
// notification path and must not block.
type Sink interface {
	Export(ctx context.Context, key string, events []types.HistoryEvent) error
}

// Tracker records a panel's history into the store as it arrives.
type Tracker struct {
	key    string
	source Source
	store  *Store
	sinks  []Sink
	log    *log.Logger

	mu     sync.Mutex
	lastID int64
	sub    observer.Subscription
}

func NewTracker(key string, source Source, store *Store, logger *log.Logger, sinks ...Sink) *Tracker {
	return &Tracker{key: key, source: source, store: store, sinks: sinks, log: logger}
}

// Start hands the stored cursor to the client, so already seen events are
// not replayed, and begins following its history observer.
func (t *Tracker) Start() {
	lastID, events := t.store.Load(t.key)

	t.mu.Lock()
	if t.sub != nil {
		t.mu.Unlock()
		return
	}
	t.lastID = lastID
	t.mu.Unlock()

	t.source.SetHistoryCursor(lastID, events)
	if lastID > 0 {
		t.log.Info("Resuming panel history after event %d", lastID)
	}

	sub := t.source.HistoryObserver().Attach(t.onHistory)
	t.mu.Lock()
	t.sub = sub
	t.mu.Unlock()
}

func (t *Tracker) Stop() {
	t.mu.Lock()
	sub := t.sub
	t.sub = nil
	t.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

func (t *Tracker) LastID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastID
}

func (t *Tracker) onHistory() {
	events := t.source.Events()

	t.mu.Lock()
	var fresh []types.HistoryEvent
	for _, ev := range events {
		if ev.ID > t.lastID {
			fresh = append(fresh, ev)
		}
	}
	if len(fresh) == 0 {
		t.mu.Unlock()
		return
	}
	for _, ev := range fresh {
		if ev.ID > t.lastID {
			t.lastID = ev.ID
		}
	}
	lastID := t.lastID
	t.mu.Unlock()

	t.store.Record(t.key, lastID, events)
	for _, ev := range fresh {
		t.log.History(ev.ID, ev.String())
	}
	for _, sink := range t.sinks {
		if err := sink.Export(context.Background(), t.key, fresh); err != nil {
			t.log.Warn("Failed to export panel history: %v", err)
		}
	}
}
