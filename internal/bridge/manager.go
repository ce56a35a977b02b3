package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daemonp/bosch2mqtt/internal/clock"
	"github.com/daemonp/bosch2mqtt/internal/config"
	"github.com/daemonp/bosch2mqtt/internal/history"
	"github.com/daemonp/bosch2mqtt/internal/log"
	"github.com/daemonp/bosch2mqtt/internal/panel"
)

var ErrUnknownPanel = errors.New("bridge: unknown panel")

// Manager owns the runtime of every configured panel and the history store
// they share.
type Manager struct {
	runtimes []*Runtime
	byID     map[string]*Runtime
	store    *history.Store
	log      *log.Logger
}

// NewManager builds a client and runtime for each configured panel.
func NewManager(cfg *config.Config, platform Platform, store *history.Store, clk clock.Clock, logger *log.Logger, sinks ...history.Sink) (*Manager, error) {
	m := &Manager{byID: make(map[string]*Runtime), store: store, log: logger}
	for _, pc := range cfg.Panels {
		client, err := panel.NewClient(pc, logger.With("panel", pc.UniqueID))
		if err != nil {
			return nil, fmt.Errorf("panel %s: %w", pc.UniqueID, err)
		}
		m.Add(NewRuntime(pc, client, store, platform, clk, logger, sinks...))
	}
	return m, nil
}

// Add registers a runtime built elsewhere.
func (m *Manager) Add(r *Runtime) {
	m.runtimes = append(m.runtimes, r)
	m.byID[r.UniqueID()] = r
}

func (m *Manager) Runtime(id string) (*Runtime, bool) {
	r, ok := m.byID[id]
	return r, ok
}

func (m *Manager) Runtimes() []*Runtime {
	return append([]*Runtime(nil), m.runtimes...)
}

func (m *Manager) Start(ctx context.Context) error {
	for _, r := range m.runtimes {
		if err := r.Start(ctx); err != nil {
			return fmt.Errorf("panel %s: %w", r.UniqueID(), err)
		}
	}
	m.log.Info("Started %d panel(s)", len(m.runtimes))
	return nil
}

// Stop stops every runtime and writes out pending history.
func (m *Manager) Stop(ctx context.Context) error {
	var errs []error
	for _, r := range m.runtimes {
		if err := r.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("panel %s: %w", r.UniqueID(), err))
		}
	}
	if err := m.store.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("saving history: %w", err))
	}
	return errors.Join(errs...)
}

// SetPanelClock sets the clock of the target panels, all of them when
// targets is empty. Unknown targets fail the whole call before any panel is
// touched.
func (m *Manager) SetPanelClock(ctx context.Context, targets []string, when *time.Time) error {
	selected := m.runtimes
	if len(targets) > 0 {
		selected = nil
		for _, id := range targets {
			r, ok := m.byID[id]
			if !ok {
				return fmt.Errorf("%w: %s", ErrUnknownPanel, id)
			}
			selected = append(selected, r)
		}
	}

	var errs []error
	for _, r := range selected {
		if err := r.Dispatcher().SetPanelClock(ctx, when); err != nil {
			errs = append(errs, fmt.Errorf("panel %s: %w", r.UniqueID(), err))
		}
	}
	return errors.Join(errs...)
}
