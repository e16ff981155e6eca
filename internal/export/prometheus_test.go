package export

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
	"github.com/sureshkrishnan-v/jvmpulse/internal/registry"
)

type fakeDispatch struct{ s registry.Stats }

func (f *fakeDispatch) Stats() registry.Stats { return f.s }

func newTestPrometheus(t *testing.T, dispatch DispatchStats) (*Prometheus, *event.Bus) {
	t.Helper()
	bus := event.NewBus(0, nil)
	t.Cleanup(bus.Close)
	return NewPrometheus(":0", "n1", bus, dispatch, zap.NewNop()), bus
}

func TestPrometheus_ProcessEvent(t *testing.T) {
	p, _ := newTestPrometheus(t, nil)

	ts := event.New(event.ThreadStart, "n1")
	ts.ThreadDaemon = true
	ts.SetNumeric(constants.KeyLiveThreads, 3)
	p.processEvent(ts)

	exc := event.New(event.Exception, "n1")
	exc.SetLabel(constants.KeyCaught, "false")
	p.processEvent(exc)

	alloc := event.New(event.VMObjectAlloc, "n1")
	alloc.SetNumeric(constants.KeyBytes, 4096)
	p.processEvent(alloc)
	p.processEvent(alloc)

	gc := event.New(event.GarbageCollectionFinish, "n1")
	gc.SetNumeric(constants.KeyPauseSec, 0.02)
	p.processEvent(gc)

	initEv := event.New(event.VMInit, "n1")
	initEv.SetLabel(constants.KeyVersion, "21.0.0")
	p.processEvent(initEv)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.threadsStarted.WithLabelValues("true", "n1")))
	assert.Equal(t, 3.0, testutil.ToFloat64(p.liveThreads.WithLabelValues("n1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.exceptions.WithLabelValues("false", "n1")))
	assert.Equal(t, 8192.0, testutil.ToFloat64(p.allocatedBytes.WithLabelValues("n1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.vmEvents.WithLabelValues("vm_object_alloc", "n1")))
	assert.Equal(t, 1, testutil.CollectAndCount(p.gcPause))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.vmInfo.WithLabelValues("21.0.0", constants.Version, "n1")))

	for _, e := range []*event.Event{ts, exc, alloc, gc, initEv} {
		e.Release()
	}
}

func TestPrometheus_GCFinishWithoutPause(t *testing.T) {
	p, _ := newTestPrometheus(t, nil)
	gc := event.New(event.GarbageCollectionFinish, "n1")
	p.processEvent(gc)
	gc.Release()
	assert.Equal(t, 0, testutil.CollectAndCount(p.gcPause))
}

func TestPrometheus_CollectStatsDeltas(t *testing.T) {
	d := &fakeDispatch{s: registry.Stats{
		Dispatched: map[event.Kind]uint64{event.MethodEntry: 5},
		Panics:     map[event.Kind]uint64{event.MethodEntry: 1},
	}}
	p, _ := newTestPrometheus(t, d)

	p.collectStats()
	d.s.Dispatched[event.MethodEntry] = 8
	p.collectStats()
	p.collectStats()

	assert.Equal(t, 8.0, testutil.ToFloat64(p.callbackDispatch.WithLabelValues("method_entry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.callbackPanics.WithLabelValues("method_entry")))
}

func TestPrometheus_BusDrops(t *testing.T) {
	p, bus := newTestPrometheus(t, nil)
	for i := 0; i < constants.DefaultEventBusBuffer+3; i++ {
		bus.Publish(event.New(event.ObjectFree, "n1"))
	}
	p.collectStats()
	p.collectStats()
	assert.Equal(t, 3.0, testutil.ToFloat64(p.eventsDropped.WithLabelValues(constants.ExporterPrometheus)))
	assert.Equal(t, float64(constants.DefaultEventBusBuffer),
		testutil.ToFloat64(p.busQueueDepth.WithLabelValues(constants.ExporterPrometheus)))
}

func TestPrometheus_Handler(t *testing.T) {
	p, _ := newTestPrometheus(t, nil)
	h := p.Handler()

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get(constants.PathHealthz).Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(constants.PathReadyz).Code)
	p.SetReady(true)
	assert.Equal(t, http.StatusOK, get(constants.PathReadyz).Code)

	e := event.New(event.ClassLoad, "n1")
	p.processEvent(e)
	e.Release()

	rec := get(constants.PathMetrics)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, constants.MetricClassesLoaded), "metrics output lacks %s", constants.MetricClassesLoaded)
	assert.Contains(t, body, "go_goroutines")
}
