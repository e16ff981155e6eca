package event

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
)

// Bus fans VM events out to exporters.
//
//   - Publish never blocks: VM callbacks run on JVM threads and must return
//     quickly, so a full subscriber buffer drops the event for that subscriber.
//   - Each subscriber has a bounded buffer and its own drop counter.
//   - Safe for concurrent publishers.
type Bus struct {
	logger      *zap.Logger
	bufferSize  int
	subscribers map[string]chan *Event
	mu          sync.RWMutex
	closed      atomic.Bool

	published atomic.Uint64
	dropped   map[string]*atomic.Uint64
}

// NewBus creates a bus with the given per-subscriber buffer size. Sizes below
// MinEventBusBuffer are raised to it; zero selects the default.
func NewBus(bufferSize int, logger *zap.Logger) *Bus {
	switch {
	case bufferSize <= 0:
		bufferSize = constants.DefaultEventBusBuffer
	case bufferSize < constants.MinEventBusBuffer:
		bufferSize = constants.MinEventBusBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger:      logger.Named("bus"),
		bufferSize:  bufferSize,
		subscribers: make(map[string]chan *Event),
		dropped:     make(map[string]*atomic.Uint64),
	}
}

// Subscribe registers a named subscriber. Subscribing twice under the same
// name returns the existing channel. The channel is closed by Close.
// Receivers must call Release on every event they take.
func (b *Bus) Subscribe(name string) <-chan *Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[name]; ok {
		return ch
	}
	ch := make(chan *Event, b.bufferSize)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	b.subscribers[name] = ch
	b.dropped[name] = &atomic.Uint64{}

	b.logger.Info("subscriber registered",
		zap.String("name", name),
		zap.Int("buffer_size", b.bufferSize))

	return ch
}

// Publish hands e to every subscriber and takes over the caller's reference.
// The caller must not touch e after Publish returns.
func (b *Bus) Publish(e *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	defer e.Release()

	if b.closed.Load() {
		return
	}
	b.published.Add(1)

	e.retain(len(b.subscribers))
	for name, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			b.dropped[name].Add(1)
			e.Release()
		}
	}
}

// Close stops the bus and closes all subscriber channels. Events already
// buffered can still be drained.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Swap(true) {
		return
	}
	for name, ch := range b.subscribers {
		close(ch)
		b.logger.Debug("subscriber closed", zap.String("name", name))
	}
}

// Stats is a snapshot of bus counters.
type Stats struct {
	Published           uint64
	DroppedBySubscriber map[string]uint64
	QueueDepth          map[string]int
}

// Stats returns a snapshot of bus metrics.
func (b *Bus) Stats() Stats {
	s := Stats{
		Published:           b.published.Load(),
		DroppedBySubscriber: make(map[string]uint64),
		QueueDepth:          make(map[string]int),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for name, ch := range b.subscribers {
		s.QueueDepth[name] = len(ch)
		s.DroppedBySubscriber[name] = b.dropped[name].Load()
	}
	return s
}

// Dropped returns the total number of drops across all subscribers.
func (b *Bus) Dropped() uint64 {
	var total uint64
	b.mu.RLock()
	for _, counter := range b.dropped {
		total += counter.Load()
	}
	b.mu.RUnlock()
	return total
}

// Published returns the total number of published events.
func (b *Bus) Published() uint64 {
	return b.published.Load()
}
