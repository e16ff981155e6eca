package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sureshkrishnan-v/jvmpulse/internal/agent"
	"github.com/sureshkrishnan-v/jvmpulse/internal/api"
	"github.com/sureshkrishnan-v/jvmpulse/internal/cache"
	"github.com/sureshkrishnan-v/jvmpulse/internal/config"
	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/consumer"
	"github.com/sureshkrishnan-v/jvmpulse/internal/storage"
)

var (
	sinkCmd = &cobra.Command{
		Use:   "sink",
		Short: "Consume exported events from NATS JetStream and store them in ClickHouse",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runService(cmd, "sink", runSink)
		},
	}

	apiCmd = &cobra.Command{
		Use:   "api",
		Short: "Serve stored events, node status and live events over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runService(cmd, "api", runAPI)
		},
	}
)

// runService loads config and a logger, then runs fn until SIGINT or SIGTERM.
func runService(cmd *cobra.Command, name string, fn func(context.Context, *config.Config, *zap.Logger) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := agent.NewLogger(cfg.Agent.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("JVMPulse "+name+" starting", zap.String("version", constants.Version))
	if err := fn(ctx, cfg, logger); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("JVMPulse " + name + " stopped")
	return nil
}

func runSink(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ch, err := storage.NewClickHouse(ctx, cfg.ClickHouse, logger)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.EnsureSchema(ctx); err != nil {
		return err
	}

	c := consumer.New(cfg.Sink, ch, logger)
	err = c.Run(ctx)
	st := c.Stats()
	logger.Info("Sink totals",
		zap.Uint64("received", st.Received),
		zap.Uint64("rejected", st.Rejected),
		zap.Uint64("flushed", st.Flushed),
		zap.Uint64("failed", st.Failed))
	return err
}

func runAPI(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ch, err := storage.NewClickHouse(ctx, cfg.ClickHouse, logger)
	if err != nil {
		return err
	}
	defer ch.Close()

	redis, err := cache.NewRedis(ctx, cfg.API.Redis, logger)
	if err != nil {
		return err
	}
	defer redis.Close()

	srv := api.NewServer(cfg.API.Config, ch, redis, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return srv.Stop(stopCtx)
	})
	return g.Wait()
}
