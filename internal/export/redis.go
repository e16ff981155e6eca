package export

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/jvmpulse/internal/cache"
	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
)

// liveStore is the part of *cache.Redis the live exporter uses.
type liveStore interface {
	Publish(ctx context.Context, channel string, msg any) (int64, error)
	PutStatus(ctx context.Context, node string, fields map[string]any, ttl time.Duration) error
	Close() error
}

// RedisLive publishes every VM event to a Redis pub/sub channel for live
// dashboards and keeps a per-node status hash (event counts by kind, last
// event time) that expires when the agent goes away.
type RedisLive struct {
	cfg     cache.RedisConfig
	channel string
	node    string
	enc     Encoder
	logger  *zap.Logger
	events  <-chan *event.Event

	mu     sync.Mutex
	store  liveStore
	counts map[event.Kind]int64
	last   time.Time
}

// NewRedisLive creates the exporter and subscribes it to the bus.
func NewRedisLive(cfg cache.RedisConfig, channel, node string, enc Encoder, bus *event.Bus, logger *zap.Logger) *RedisLive {
	return &RedisLive{
		cfg:     cfg,
		channel: channel,
		node:    node,
		enc:     enc,
		logger:  logger.Named(constants.ExporterRedis),
		events:  bus.Subscribe(constants.ExporterRedis),
		counts:  make(map[event.Kind]int64),
	}
}

func (r *RedisLive) Name() string { return constants.ExporterRedis }

func (r *RedisLive) Start(ctx context.Context) error {
	client, err := cache.NewRedis(ctx, r.cfg, r.logger)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.store = client
	r.mu.Unlock()

	r.logger.Info("Redis live exporter started",
		zap.String("addr", r.cfg.Addr),
		zap.String("channel", r.channel))

	return r.consume(ctx)
}

func (r *RedisLive) consume(ctx context.Context) error {
	ticker := time.NewTicker(constants.RedisStatusTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.writeStatus(ctx)
		case evt, ok := <-r.events:
			if !ok {
				r.writeStatus(ctx)
				return nil
			}
			r.publish(ctx, evt)
		}
	}
}

func (r *RedisLive) publish(ctx context.Context, evt *event.Event) {
	data, err := r.enc.Encode(evt)
	kind, ts := evt.Kind, evt.Timestamp
	evt.Release()
	if err != nil {
		return
	}

	r.mu.Lock()
	r.counts[kind]++
	r.last = ts
	store := r.store
	r.mu.Unlock()
	if store == nil {
		return
	}

	if _, err := store.Publish(ctx, r.channel, data); err != nil {
		r.logger.Debug("Redis publish failed", zap.Error(err))
	}
}

// writeStatus stores the counters as a hash of "<kind>" -> count plus
// "last_event" (Unix ms) and "agent_version".
func (r *RedisLive) writeStatus(ctx context.Context) {
	r.mu.Lock()
	fields := make(map[string]any, len(r.counts)+2)
	for k, n := range r.counts {
		fields[k.String()] = n
	}
	fields["agent_version"] = constants.Version
	if !r.last.IsZero() {
		fields["last_event"] = r.last.UnixMilli()
	}
	store := r.store
	r.mu.Unlock()
	if store == nil {
		return
	}

	if err := store.PutStatus(ctx, r.node, fields, constants.RedisStatusTTL); err != nil {
		r.logger.Debug("Redis status update failed", zap.Error(err))
	}
}

func (r *RedisLive) Stop(_ context.Context) error {
	r.mu.Lock()
	store := r.store
	r.store = nil
	r.mu.Unlock()
	if store != nil {
		return store.Close()
	}
	return nil
}
