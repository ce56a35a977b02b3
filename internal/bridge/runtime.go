// Package bridge wires one panel client to the platform: a Runtime per
// configured panel, and a Manager that owns them all.
package bridge

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/daemonp/bosch2mqtt/internal/clock"
	"github.com/daemonp/bosch2mqtt/internal/config"
	"github.com/daemonp/bosch2mqtt/internal/dispatch"
	"github.com/daemonp/bosch2mqtt/internal/entity"
	"github.com/daemonp/bosch2mqtt/internal/history"
	"github.com/daemonp/bosch2mqtt/internal/log"
	"github.com/daemonp/bosch2mqtt/internal/panel"
)

// Platform receives the entities a runtime creates.
type Platform interface {
	AddEntities(entities ...entity.Entity) error
	RemoveEntities(panelID string)
}

// Runtime is everything that belongs to one configured panel. Components
// get what they need from it explicitly; there is no global lookup.
type Runtime struct {
	cfg        config.PanelConfig
	log        *log.Logger
	clock      clock.Clock
	client     panel.Client
	conn       *panel.Connection
	dispatcher *dispatch.Dispatcher
	tracker    *history.Tracker
	platform   Platform

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	failed error
}

func NewRuntime(cfg config.PanelConfig, client panel.Client, store *history.Store, platform Platform, clk clock.Clock, logger *log.Logger, sinks ...history.Sink) *Runtime {
	logger = logger.With("panel", cfg.UniqueID)
	return &Runtime{
		cfg:        cfg,
		log:        logger,
		clock:      clk,
		client:     client,
		conn:       panel.NewConnection(client, cfg.UniqueID, "", logger),
		dispatcher: dispatch.New(client, cfg.ArmingCode, clk, logger),
		tracker:    history.NewTracker(cfg.UniqueID, client, store, logger, sinks...),
		platform:   platform,
	}
}

func (r *Runtime) UniqueID() string                 { return r.cfg.UniqueID }
func (r *Runtime) Connection() *panel.Connection    { return r.conn }
func (r *Runtime) Dispatcher() *dispatch.Dispatcher { return r.dispatcher }

// Failed returns the permanent error that stopped the connect loop, if any.
func (r *Runtime) Failed() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

// Start restores the history cursor, registers the entities and starts
// connecting in the background. Entities backed by the panel inventory are
// created on the first successful connection.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.done != nil {
		r.mu.Unlock()
		return nil
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.mu.Unlock()

	r.tracker.Start()

	diagnostics := []entity.Entity{entity.NewConnectionSensor(r.conn)}
	if r.cfg.HistoryEnabled() {
		diagnostics = append(diagnostics, entity.NewHistorySensor(r.conn, r.cfg.HistoryCount), entity.NewFaultsSensor(r.conn))
	}
	if err := r.platform.AddEntities(diagnostics...); err != nil {
		r.tracker.Stop()
		r.platform.RemoveEntities(r.cfg.UniqueID)
		r.mu.Lock()
		r.cancel()
		r.cancel, r.done = nil, nil
		r.mu.Unlock()
		return err
	}

	r.conn.RegisterDeferredSetup(func() { r.addEntities("area", r.areaEntities()) })
	r.conn.RegisterDeferredSetup(func() { r.addEntities("point", r.pointEntities()) })
	r.conn.RegisterDeferredSetup(func() { r.addEntities("door", r.doorEntities()) })
	r.conn.RegisterDeferredSetup(func() { r.addEntities("output", r.outputEntities()) })

	go r.run(ctx)
	return nil
}

// Stop ends the connect loop, disconnects and removes the entities.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	err := r.conn.Disconnect(ctx)
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			r.log.Warn("Timed out waiting for the connect loop to stop")
		}
	}
	r.tracker.Stop()
	r.platform.RemoveEntities(r.cfg.UniqueID)
	return err
}

// run keeps the panel connected. Authentication failures stop it for good;
// anything else is retried with exponential backoff.
func (r *Runtime) run(ctx context.Context) {
	defer close(r.done)

	lost := make(chan struct{}, 1)
	sub := r.conn.OnStatusChange(func() {
		if r.conn.State() == panel.Disconnected {
			select {
			case lost <- struct{}{}:
			default:
			}
		}
	})
	defer sub.Unsubscribe()

	minDelay, maxDelay := r.cfg.Reconnect.MinDelay(), r.cfg.Reconnect.MaxDelay()
	delay := minDelay
	for {
		err := r.conn.Connect(ctx)
		switch {
		case err == nil:
			delay = minDelay
			select {
			case <-lost:
			default:
			}
			if r.conn.Status() {
				select {
				case <-ctx.Done():
					return
				case <-lost:
				}
			}
			r.log.Warn("Lost connection to panel")
		case errors.Is(err, panel.ErrClosed) || ctx.Err() != nil:
			return
		case !panel.Retryable(err):
			r.mu.Lock()
			r.failed = err
			r.mu.Unlock()
			r.log.Error("Giving up on panel until it is reconfigured: %v", err)
			return
		}

		r.log.Info("Reconnecting in %s", delay)
		if !r.sleep(ctx, delay) {
			return
		}
		if err != nil {
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		}
	}
}

func (r *Runtime) sleep(ctx context.Context, d time.Duration) bool {
	wake := make(chan struct{})
	t := r.clock.AfterFunc(d, func() { close(wake) })
	select {
	case <-ctx.Done():
		t.Stop()
		return false
	case <-wake:
		return true
	}
}

func (r *Runtime) addEntities(kind string, entities []entity.Entity) {
	if len(entities) == 0 {
		return
	}
	if err := r.platform.AddEntities(entities...); err != nil {
		r.log.Error("Failed to add %s entities: %v", kind, err)
		return
	}
	r.log.Info("Added %d %s entit(ies)", len(entities), kind)
}

func (r *Runtime) areaEntities() []entity.Entity {
	areas := r.client.Areas()
	var out []entity.Entity
	for _, id := range sortedIDs(areas) {
		out = append(out, entity.NewAlarmPanel(r.conn, areas[id], r.dispatcher))
	}
	return out
}

func (r *Runtime) pointEntities() []entity.Entity {
	points := r.client.Points()
	var out []entity.Entity
	for _, id := range sortedIDs(points) {
		out = append(out, entity.NewPointSensor(r.conn, points[id]))
	}
	return out
}

func (r *Runtime) doorEntities() []entity.Entity {
	doors := r.client.Doors()
	var out []entity.Entity
	for _, id := range sortedIDs(doors) {
		out = append(out, entity.NewDoorLock(r.conn, doors[id], r.dispatcher))
	}
	return out
}

func (r *Runtime) outputEntities() []entity.Entity {
	outputs := r.client.Outputs()
	var out []entity.Entity
	for _, id := range sortedIDs(outputs) {
		out = append(out, entity.NewOutputSwitch(r.conn, outputs[id], r.dispatcher))
	}
	return out
}

func sortedIDs[T any](m map[int]T) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
