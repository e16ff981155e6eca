// Package agent provides the JVMPulse runtime orchestrator.
// It manages the lifecycle of collectors, exporters and the event bus on top
// of one JVMTI environment.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sureshkrishnan-v/jvmpulse/internal/capability"
	"github.com/sureshkrishnan-v/jvmpulse/internal/collector"
	"github.com/sureshkrishnan-v/jvmpulse/internal/config"
	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/environment"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
	"github.com/sureshkrishnan-v/jvmpulse/internal/export"
	"github.com/sureshkrishnan-v/jvmpulse/internal/native"
)

// Runtime is the central orchestrator for JVMPulse. It decides which
// collectors can run on this VM, acquires their capabilities, installs one
// callback table covering all of them, enables their events and runs the
// exporters until shutdown.
type Runtime struct {
	cfg        *config.Config
	logger     *zap.Logger
	env        *environment.Environment
	collectors []collector.Collector
	exporters  []export.Exporter
	bus        *event.Bus
	limiter    *rate.Limiter

	active  []collector.Collector
	enabled []event.Kind
	added   capability.Capabilities

	group    errgroup.Group
	cancel   context.CancelFunc
	death    chan struct{}
	deathOne sync.Once
	release  sync.Once
	nativeMu sync.Mutex // guards enabled and added
	stopOnce sync.Once
	stopErr  error
}

// NewRuntime creates a Runtime over env. The event bus is created eagerly so
// exporters can subscribe before Start.
func NewRuntime(cfg *config.Config, env *environment.Environment, logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	rt := &Runtime{
		cfg:    cfg,
		logger: logger,
		env:    env,
		bus:    event.NewBus(cfg.Performance.EventBusBuffer, logger),
		death:  make(chan struct{}),
		cancel: func() {},
	}
	if n := cfg.Performance.MaxEventsPerSecond; n > 0 {
		rt.limiter = rate.NewLimiter(rate.Limit(n), max(1, int(n)))
	}
	return rt
}

// RegisterCollector adds a collector. It only runs if enabled in config.
// Must be called before Start.
func (rt *Runtime) RegisterCollector(c collector.Collector) {
	rt.collectors = append(rt.collectors, c)
}

// RegisterExporter adds an exporter. Must be called before Start.
func (rt *Runtime) RegisterExporter(e export.Exporter) {
	rt.exporters = append(rt.exporters, e)
}

// EventBus returns the event bus for exporter subscription.
func (rt *Runtime) EventBus() *event.Bus { return rt.bus }

// Environment returns the environment the runtime drives.
func (rt *Runtime) Environment() *environment.Environment { return rt.env }

// Active returns the names of the collectors that passed Start.
func (rt *Runtime) Active() []string {
	names := make([]string, len(rt.active))
	for i, c := range rt.active {
		names[i] = c.Name()
	}
	return names
}

// Done is closed once the VM reports death.
func (rt *Runtime) Done() <-chan struct{} { return rt.death }

// Start brings the agent up:
//  1. Init all enabled collectors (skip disabled or failing ones)
//  2. Drop collectors whose capabilities the VM cannot grant
//  3. Add the union of the remaining capabilities
//  4. Install one callback table and enable every collector's events
//  5. Start exporters
//
// Start must run during Agent_OnLoad or VMInit so that capabilities can
// still be added.
func (rt *Runtime) Start(ctx context.Context) error {
	rt.logger.Info("JVMPulse runtime starting",
		zap.String("jvmti_version", rt.env.VersionNumber().String()),
		zap.Int("collectors_registered", len(rt.collectors)),
		zap.Int("exporters_registered", len(rt.exporters)),
		zap.String("node", rt.cfg.Agent.NodeName))

	var initialized []collector.Collector
	for _, c := range rt.collectors {
		if !rt.cfg.CollectorEnabled(c.Name()) {
			rt.logger.Info("Collector disabled by config, skipping",
				zap.String("collector", c.Name()))
			continue
		}
		deps := collector.Dependencies{
			Logger:    rt.logger.Named(c.Name()),
			Config:    rt.cfg.CollectorConf(c.Name()),
			Bus:       rt.bus,
			Env:       rt.env,
			Node:      rt.cfg.Agent.NodeName,
			Limiter:   rt.limiter,
			OnVMDeath: rt.vmDied,
		}
		if err := c.Init(ctx, deps); err != nil {
			rt.logger.Error("Collector init failed, skipping",
				zap.String("collector", c.Name()), zap.Error(err))
			continue
		}
		initialized = append(initialized, c)
	}

	extra, err := rt.cfg.RequestedCapabilities()
	if err != nil {
		return err
	}
	potential, err := rt.env.PotentialCapabilities()
	if err != nil {
		return fmt.Errorf("reading potential capabilities: %w", err)
	}
	if missing := potential.Missing(extra); !missing.IsEmpty() {
		return fmt.Errorf("requested capabilities not available: %v", missing.Names())
	}

	want := extra
	for _, c := range initialized {
		need := RequiredCapabilities(c.Kinds())
		if missing := potential.Missing(need); !missing.IsEmpty() {
			rt.logger.Warn("Collector needs unavailable capabilities, skipping",
				zap.String("collector", c.Name()),
				zap.Strings("missing", missing.Names()))
			continue
		}
		want = want.Union(need)
		rt.active = append(rt.active, c)
	}
	if len(rt.active) == 0 {
		return errors.New("no collectors initialized successfully")
	}

	enabled, err := rt.install(want)
	if err != nil {
		return err
	}

	ctx, rt.cancel = context.WithCancel(ctx)
	for _, e := range rt.exporters {
		rt.group.Go(func() error {
			rt.logger.Info("Starting exporter", zap.String("exporter", e.Name()))
			if err := e.Start(ctx); err != nil && ctx.Err() == nil {
				rt.logger.Error("Exporter error",
					zap.String("exporter", e.Name()), zap.Error(err))
				return fmt.Errorf("exporter %s: %w", e.Name(), err)
			}
			return nil
		})
	}

	exporterNames := make([]string, len(rt.exporters))
	for i, e := range rt.exporters {
		exporterNames[i] = e.Name()
	}
	rt.logger.Info("JVMPulse running",
		zap.Strings("collectors", rt.Active()),
		zap.Strings("events", kindNames(enabled)),
		zap.Strings("capabilities", want.Names()),
		zap.Strings("exporters", exporterNames))
	return nil
}

// install adds want, installs the active collectors' callbacks and enables
// their events. On an enable failure the events enabled so far are disabled.
func (rt *Runtime) install(want capability.Capabilities) ([]event.Kind, error) {
	rt.nativeMu.Lock()
	defer rt.nativeMu.Unlock()

	before := rt.env.Capabilities()
	if _, err := rt.env.AddCapabilities(want); err != nil {
		return nil, fmt.Errorf("adding capabilities: %w", err)
	}
	rt.added = before.Missing(want)

	var cb event.Callbacks
	for _, c := range rt.active {
		c.Register(&cb)
	}
	if err := rt.env.SetEventCallbacks(cb); err != nil {
		return nil, fmt.Errorf("installing callbacks: %w", err)
	}
	for _, k := range cb.Kinds() {
		if err := rt.env.SetEventNotificationMode(k, true); err != nil {
			rt.disableEvents()
			return nil, fmt.Errorf("enabling %s events: %w", k, err)
		}
		rt.enabled = append(rt.enabled, k)
	}
	return append([]event.Kind(nil), rt.enabled...), nil
}

// Run starts the runtime and blocks until ctx is cancelled or the VM dies,
// then stops it.
func (rt *Runtime) Run(ctx context.Context) error {
	if err := rt.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		_ = rt.Stop(stopCtx)
		return err
	}
	select {
	case <-ctx.Done():
		rt.logger.Info("Shutdown signal received")
	case <-rt.death:
		rt.logger.Info("VM death, shutting down")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	return rt.Stop(stopCtx)
}

// Stop disables event delivery, closes the bus and stops the exporters.
// It is safe to call more than once; later calls return the first result.
func (rt *Runtime) Stop(ctx context.Context) error {
	rt.stopOnce.Do(func() {
		rt.stopErr = rt.stop(ctx)
	})
	return rt.stopErr
}

func (rt *Runtime) stop(ctx context.Context) error {
	rt.releaseNative()

	// Close event bus (triggers exporter channel close)
	rt.bus.Close()

	for _, e := range rt.exporters {
		rt.logger.Debug("Stopping exporter", zap.String("exporter", e.Name()))
		if err := e.Stop(ctx); err != nil {
			rt.logger.Warn("Error stopping exporter",
				zap.String("exporter", e.Name()), zap.Error(err))
		}
	}
	rt.cancel()

	done := make(chan error, 1)
	go func() { done <- rt.group.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("waiting for exporters: %w", ctx.Err())
	}

	stats := rt.bus.Stats()
	rt.logger.Info("JVMPulse stopped",
		zap.Int("collectors_stopped", len(rt.active)),
		zap.Uint64("events_published", stats.Published),
		zap.Uint64("events_dropped", rt.bus.Dropped()))
	return err
}

func (rt *Runtime) disableEvents() {
	for _, k := range rt.enabled {
		if err := rt.env.SetEventNotificationMode(k, false); err != nil {
			rt.logger.Debug("Error disabling event",
				zap.Stringer("kind", k), zap.Error(err))
		}
	}
	rt.enabled = nil
}

// releaseNative disables events, clears the callback table and relinquishes
// the capabilities this runtime added. It runs once: from the VMDeath
// callback while JVMTI calls are still allowed, or from Stop.
func (rt *Runtime) releaseNative() {
	rt.release.Do(func() {
		rt.nativeMu.Lock()
		defer rt.nativeMu.Unlock()

		rt.disableEvents()
		if err := rt.env.SetEventCallbacks(event.Callbacks{}); err != nil {
			rt.logger.Warn("Error clearing callbacks", zap.Error(err))
		}
		if !rt.added.IsEmpty() {
			if err := rt.env.RelinquishCapabilities(rt.added); err != nil {
				rt.logger.Debug("Error relinquishing capabilities", zap.Error(err))
			}
		}
	})
}

// vmDied runs on the VM thread delivering VMDeath. Native teardown happens
// here; the Stop that follows only flushes exporters.
func (rt *Runtime) vmDied() {
	rt.deathOne.Do(func() {
		rt.releaseNative()
		close(rt.death)
	})
}

// RequiredCapabilities returns the capabilities needed to enable kinds.
func RequiredCapabilities(kinds []event.Kind) capability.Capabilities {
	nk := make([]native.EventKind, len(kinds))
	for i, k := range kinds {
		nk[i] = k.Native()
	}
	return capability.ForEvents(nk...)
}

func kindNames(kinds []event.Kind) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return names
}
