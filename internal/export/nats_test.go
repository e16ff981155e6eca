package export

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
)

type fakePublisher struct {
	mu      sync.Mutex
	msgs    [][]byte
	flushes int
	err     error
}

func (f *fakePublisher) Publish(_ string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, data)
	return nil
}

func (f *fakePublisher) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func newTestNATS(t *testing.T, batch int) (*NATSExporter, *event.Bus, *fakePublisher) {
	t.Helper()
	bus := event.NewBus(0, nil)
	cfg := DefaultNATSConfig()
	cfg.BatchSize = batch
	cfg.FlushInterval = time.Hour
	e := NewNATSExporter(cfg, Encoder{Instance: "i-1"}, bus, zap.NewNop())
	pub := &fakePublisher{}
	e.pub = pub
	return e, bus, pub
}

func TestNATS_BatchesBySize(t *testing.T) {
	e, _, pub := newTestNATS(t, 3)

	e.enqueue(event.New(event.ThreadStart, "n1"))
	e.enqueue(event.New(event.ThreadStart, "n1"))
	assert.Equal(t, 0, pub.count())

	e.enqueue(event.New(event.ThreadEnd, "n1"))
	assert.Equal(t, 3, pub.count())
	assert.Equal(t, 1, pub.flushes)
}

func TestNATS_ConsumeFlushesOnBusClose(t *testing.T) {
	e, bus, pub := newTestNATS(t, 100)

	ev := event.New(event.MonitorContendedEnter, "n1")
	ev.ThreadName = "worker"
	bus.Publish(ev)
	bus.Close()

	require.NoError(t, e.consume(context.Background()))
	require.Equal(t, 1, pub.count())

	var w Record
	require.NoError(t, json.Unmarshal(pub.msgs[0], &w))
	assert.Equal(t, "monitor_contended_enter", w.Kind)
	assert.Equal(t, "worker", w.Thread)
	assert.Equal(t, "i-1", w.Instance)
}

func TestNATS_ConsumeStopsOnCancel(t *testing.T) {
	e, bus, pub := newTestNATS(t, 100)
	defer bus.Close()

	bus.Publish(event.New(event.VMDeath, "n1"))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.consume(ctx) }()
	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return len(e.batch) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 1, pub.count())
}

func TestNATS_PublishErrorKeepsRunning(t *testing.T) {
	e, _, pub := newTestNATS(t, 1)
	pub.err = errors.New("nats: connection closed")
	assert.NotPanics(t, func() { e.enqueue(event.New(event.VMStart, "n1")) })
	assert.Equal(t, 0, pub.count())
}

func TestNATS_Name(t *testing.T) {
	e, bus, _ := newTestNATS(t, 1)
	defer bus.Close()
	assert.Equal(t, constants.ExporterNATS, e.Name())
	assert.NoError(t, e.Stop(context.Background()))
}
