package export

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
)

// NATSConfig holds NATS exporter settings.
type NATSConfig struct {
	URL           string        `yaml:"url"`
	Stream        string        `yaml:"stream"`
	Subject       string        `yaml:"subject"`
	BatchSize     int           `yaml:"batch_size" validate:"gte=1"`
	FlushInterval time.Duration `yaml:"flush_interval" validate:"gt=0"`
}

// DefaultNATSConfig returns a lean default for small instances.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           constants.NATSDefaultURL,
		Stream:        constants.NATSStream,
		Subject:       constants.NATSSubject,
		BatchSize:     constants.NATSBatchSize,
		FlushInterval: constants.NATSFlushInterval,
	}
}

// natsPublisher is the part of *nats.Conn the exporter publishes through.
type natsPublisher interface {
	Publish(subject string, data []byte) error
	Flush() error
}

// NATSExporter publishes VM events as JSON to a JetStream-backed subject,
// batched by size and by time.
type NATSExporter struct {
	cfg    NATSConfig
	enc    Encoder
	logger *zap.Logger
	events <-chan *event.Event

	nc  *nats.Conn
	pub natsPublisher

	batch [][]byte
	mu    sync.Mutex
}

// NewNATSExporter creates a NATS exporter and subscribes it to the bus.
func NewNATSExporter(cfg NATSConfig, enc Encoder, bus *event.Bus, logger *zap.Logger) *NATSExporter {
	return &NATSExporter{
		cfg:    cfg,
		enc:    enc,
		logger: logger.Named(constants.ExporterNATS),
		events: bus.Subscribe(constants.ExporterNATS),
		batch:  make([][]byte, 0, cfg.BatchSize),
	}
}

func (e *NATSExporter) Name() string { return constants.ExporterNATS }

func (e *NATSExporter) Start(ctx context.Context) error {
	nc, err := nats.Connect(e.cfg.URL,
		nats.Name("jvmpulse/"+e.enc.Instance),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			e.logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			e.logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("nats connect %s: %w", e.cfg.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("jetstream: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      e.cfg.Stream,
		Subjects:  []string{e.cfg.Subject},
		Retention: jetstream.LimitsPolicy,
		MaxBytes:  constants.NATSStreamMaxBytes,
		Discard:   jetstream.DiscardOld,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("jetstream stream %s: %w", e.cfg.Stream, err)
	}

	e.mu.Lock()
	e.nc = nc
	e.pub = nc
	e.mu.Unlock()

	e.logger.Info("NATS exporter started",
		zap.String("url", e.cfg.URL),
		zap.String("stream", e.cfg.Stream),
		zap.String("subject", e.cfg.Subject))

	return e.consume(ctx)
}

// consume batches events until ctx is done or the bus closes.
func (e *NATSExporter) consume(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.flush()
			return ctx.Err()
		case <-ticker.C:
			e.flush()
		case evt, ok := <-e.events:
			if !ok {
				e.flush()
				return nil
			}
			e.enqueue(evt)
		}
	}
}

func (e *NATSExporter) Stop(_ context.Context) error {
	e.flush()
	e.mu.Lock()
	nc := e.nc
	e.mu.Unlock()
	if nc != nil {
		return nc.Drain()
	}
	return nil
}

func (e *NATSExporter) enqueue(evt *event.Event) {
	data, err := e.enc.Encode(evt)
	evt.Release()
	if err != nil {
		e.logger.Debug("dropping unencodable event", zap.Error(err))
		return
	}

	e.mu.Lock()
	e.batch = append(e.batch, data)
	full := len(e.batch) >= e.cfg.BatchSize
	e.mu.Unlock()

	if full {
		e.flush()
	}
}

func (e *NATSExporter) flush() {
	e.mu.Lock()
	if len(e.batch) == 0 || e.pub == nil {
		e.mu.Unlock()
		return
	}
	batch := e.batch
	pub := e.pub
	e.batch = make([][]byte, 0, e.cfg.BatchSize)
	e.mu.Unlock()

	for _, data := range batch {
		if err := pub.Publish(e.cfg.Subject, data); err != nil {
			e.logger.Warn("NATS publish failed", zap.Error(err), zap.Int("batch", len(batch)))
			return
		}
	}
	if err := pub.Flush(); err != nil {
		e.logger.Warn("NATS flush failed", zap.Error(err))
	}
}
