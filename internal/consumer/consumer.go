// Package consumer implements the NATS→ClickHouse sink for exported VM
// events. It pulls from a durable JetStream consumer, accumulates rows and
// flushes them to ClickHouse when the batch fills or the flush interval
// elapses.
package consumer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/export"
	"github.com/sureshkrishnan-v/jvmpulse/internal/storage"
)

// Config holds sink settings.
type Config struct {
	NATSURL       string        `yaml:"nats_url" validate:"required"`
	Stream        string        `yaml:"stream" validate:"required"`
	Subject       string        `yaml:"subject" validate:"required"`
	ConsumerName  string        `yaml:"consumer_name" validate:"required"`
	BatchSize     int           `yaml:"batch_size" validate:"gte=1"`
	FlushInterval time.Duration `yaml:"flush_interval" validate:"gt=0"`
}

// DefaultConfig returns lean defaults.
func DefaultConfig() Config {
	return Config{
		NATSURL:       constants.NATSDefaultURL,
		Stream:        constants.NATSStream,
		Subject:       constants.NATSSubject,
		ConsumerName:  constants.SinkConsumerName,
		BatchSize:     constants.ClickHouseBatchSize,
		FlushInterval: constants.ClickHouseFlushInterval,
	}
}

// Sink receives flushed batches; *storage.ClickHouse implements it.
type Sink interface {
	InsertBatch(ctx context.Context, rows []storage.EventRow) error
}

// Stats are cumulative sink counters.
type Stats struct {
	Received uint64
	Rejected uint64
	Flushed  uint64
	Failed   uint64
}

// Consumer reads exported events from NATS and batch-inserts them.
type Consumer struct {
	cfg    Config
	sink   Sink
	logger *zap.Logger

	mu    sync.Mutex
	batch []storage.EventRow

	received atomic.Uint64
	rejected atomic.Uint64
	flushed  atomic.Uint64
	failed   atomic.Uint64
}

// New creates a consumer instance.
func New(cfg Config, sink Sink, logger *zap.Logger) *Consumer {
	return &Consumer{
		cfg:    cfg,
		sink:   sink,
		logger: logger.Named("sink"),
		batch:  make([]storage.EventRow, 0, cfg.BatchSize),
	}
}

// Run starts consuming from NATS JetStream and flushing to the sink.
// Blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	nc, err := nats.Connect(c.cfg.NATSURL,
		nats.Name(c.cfg.ConsumerName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return fmt.Errorf("nats connect %s: %w", c.cfg.NATSURL, err)
	}
	defer nc.Drain()

	js, err := jetstream.New(nc)
	if err != nil {
		return err
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, c.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       c.cfg.ConsumerName,
		FilterSubject: c.cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxAckPending: c.cfg.BatchSize * 2,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", c.cfg.ConsumerName, err)
	}

	go c.flusher(ctx)

	c.logger.Info("Sink started",
		zap.String("stream", c.cfg.Stream),
		zap.String("consumer", c.cfg.ConsumerName),
		zap.Int("batch_size", c.cfg.BatchSize))

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		full, err := c.add(msg.Data())
		if err != nil {
			c.logger.Warn("Failed to decode event", zap.Error(err))
			// Malformed records are terminated, not redelivered.
			msg.Term()
			return
		}
		msg.Ack()
		if full {
			c.flush(ctx)
		}
	})
	if err != nil {
		return err
	}
	defer cc.Stop()

	<-ctx.Done()

	flushCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	c.flush(flushCtx)
	return nil
}

// add decodes one wire record into the pending batch and reports whether the
// batch is now full.
func (c *Consumer) add(data []byte) (bool, error) {
	rec, err := export.Decode(data)
	if err != nil {
		c.rejected.Add(1)
		return false, err
	}
	c.received.Add(1)

	row := storage.EventRow{
		Timestamp: rec.Time(),
		Kind:      rec.Kind,
		Node:      rec.Node,
		Instance:  rec.Instance,
		Thread:    rec.Thread,
		Daemon:    rec.Daemon,
		Labels:    rec.Labels,
		Numerics:  rec.Numerics,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.batch = append(c.batch, row)
	return len(c.batch) >= c.cfg.BatchSize, nil
}

// flush writes accumulated rows to the sink. A failed batch is dropped.
func (c *Consumer) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.batch) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.batch
	c.batch = make([]storage.EventRow, 0, c.cfg.BatchSize)
	c.mu.Unlock()

	if err := c.sink.InsertBatch(ctx, batch); err != nil {
		c.failed.Add(uint64(len(batch)))
		c.logger.Error("ClickHouse batch insert failed",
			zap.Error(err), zap.Int("rows", len(batch)))
		return
	}
	c.flushed.Add(uint64(len(batch)))
	c.logger.Debug("Flushed to ClickHouse", zap.Int("rows", len(batch)))
}

func (c *Consumer) flusher(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.flush(ctx)
		}
	}
}

// Stats returns a snapshot of the sink counters.
func (c *Consumer) Stats() Stats {
	return Stats{
		Received: c.received.Load(),
		Rejected: c.rejected.Load(),
		Flushed:  c.flushed.Load(),
		Failed:   c.failed.Load(),
	}
}
