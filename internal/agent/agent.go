package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/jvmpulse/internal/collector"
	"github.com/sureshkrishnan-v/jvmpulse/internal/config"
	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/environment"
	"github.com/sureshkrishnan-v/jvmpulse/internal/export"
	"github.com/sureshkrishnan-v/jvmpulse/internal/native"
)

// Agent is one loaded JVMPulse instance: config, logger, and a Runtime with
// every collector and the configured exporters registered.
type Agent struct {
	Config   *config.Config
	Logger   *zap.Logger
	Runtime  *Runtime
	Instance string

	prom *export.Prometheus
}

// Load builds an Agent for env from an -agentpath option string. The config
// file named by the options (or the default path) is merged over defaults,
// then environment variables, then the options themselves.
func Load(env *native.Env, options string) (*Agent, error) {
	opts, err := config.ParseAgentOptions(options)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.ConfigFile())
	if err != nil {
		return nil, err
	}
	if err := cfg.Apply(opts); err != nil {
		return nil, fmt.Errorf("invalid agent options: %w", err)
	}
	logger, err := NewLogger(cfg.Agent.LogLevel)
	if err != nil {
		return nil, err
	}
	return New(cfg, environment.New(env, logger.Named("jvmti")), logger), nil
}

// New wires an Agent over an existing environment.
func New(cfg *config.Config, env *environment.Environment, logger *zap.Logger) *Agent {
	a := &Agent{
		Config:   cfg,
		Logger:   logger,
		Runtime:  NewRuntime(cfg, env, logger),
		Instance: uuid.NewString(),
	}
	for _, c := range collector.All() {
		a.Runtime.RegisterCollector(c)
	}

	bus := a.Runtime.EventBus()
	enc := export.Encoder{Instance: a.Instance}
	node := cfg.Agent.NodeName
	ex := cfg.Exporters

	if ex.Prometheus.Enabled {
		a.prom = export.NewPrometheus(ex.Prometheus.Addr, node, bus, env.Registry(), logger)
		a.Runtime.RegisterExporter(a.prom)
	}
	if ex.NATS.Enabled {
		a.Runtime.RegisterExporter(export.NewNATSExporter(ex.NATS.NATSConfig, enc, bus, logger))
	}
	if ex.Redis.Enabled {
		a.Runtime.RegisterExporter(export.NewRedisLive(ex.Redis.RedisConfig, ex.Redis.Channel, node, enc, bus, logger))
	}
	return a
}

// Start starts the runtime and arranges for it to stop when the VM dies.
func (a *Agent) Start(ctx context.Context) error {
	a.Logger.Info("JVMPulse agent loading",
		zap.String("version", constants.Version),
		zap.String("instance", a.Instance))

	if err := a.Runtime.Start(ctx); err != nil {
		return err
	}
	if a.prom != nil {
		a.prom.SetReady(true)
	}

	// After VM death the native state is already released; Stop only flushes.
	go func() {
		select {
		case <-a.Runtime.Done():
		case <-ctx.Done():
		}
		stopCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := a.Stop(stopCtx); err != nil {
			a.Logger.Warn("Agent stopped with error", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the runtime down and flushes the logger. Safe to call more
// than once.
func (a *Agent) Stop(ctx context.Context) error {
	if a.prom != nil {
		a.prom.SetReady(false)
	}
	err := a.Runtime.Stop(ctx)
	_ = a.Logger.Sync()
	return err
}
