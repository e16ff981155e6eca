package export

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
	"github.com/sureshkrishnan-v/jvmpulse/internal/registry"
)

// DispatchStats reports callback dispatch counters; *registry.Registry
// implements it.
type DispatchStats interface {
	Stats() registry.Stats
}

// Prometheus is an Exporter that turns bus events into Prometheus metrics and
// serves them with health and readiness endpoints.
type Prometheus struct {
	addr     string
	node     string
	logger   *zap.Logger
	bus      *event.Bus
	dispatch DispatchStats
	events   <-chan *event.Event
	registry *prometheus.Registry
	server   *http.Server
	ready    atomic.Bool

	// VM metrics
	vmEvents          *prometheus.CounterVec
	gcPause           *prometheus.HistogramVec
	liveThreads       *prometheus.GaugeVec
	threadsStarted    *prometheus.CounterVec
	exceptions        *prometheus.CounterVec
	monitorContention *prometheus.CounterVec
	allocatedBytes    *prometheus.CounterVec
	classesLoaded     *prometheus.CounterVec
	vmInfo            *prometheus.GaugeVec

	// Self-observability
	eventsProcessed  *prometheus.CounterVec
	eventsDropped    *prometheus.CounterVec
	busQueueDepth    *prometheus.GaugeVec
	callbackDispatch *prometheus.CounterVec
	callbackPanics   *prometheus.CounterVec

	// last seen cumulative values, for turning snapshots into counter deltas
	lastDropped    map[string]uint64
	lastDispatched map[event.Kind]uint64
	lastPanics     map[event.Kind]uint64
}

// NewPrometheus creates a Prometheus exporter on its own registry and
// subscribes it to the bus. dispatch may be nil.
func NewPrometheus(addr, node string, bus *event.Bus, dispatch DispatchStats, logger *zap.Logger) *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Prometheus{
		addr:     addr,
		node:     node,
		logger:   logger.Named(constants.ExporterPrometheus),
		bus:      bus,
		dispatch: dispatch,
		events:   bus.Subscribe(constants.ExporterPrometheus),
		registry: reg,

		vmEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: constants.MetricVMEvents,
			Help: "VM events observed, by kind.",
		}, constants.LabelsKindNode),

		gcPause: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    constants.MetricGCPause,
			Help:    "Time between GarbageCollectionStart and GarbageCollectionFinish.",
			Buckets: constants.GCPauseBuckets,
		}, constants.LabelsNode),

		liveThreads: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: constants.MetricLiveThreads,
			Help: "Threads started and not yet ended since the agent attached.",
		}, constants.LabelsNode),

		threadsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: constants.MetricThreadsStarted,
			Help: "Threads started, by daemon flag.",
		}, constants.LabelsDaemonNode),

		exceptions: f.NewCounterVec(prometheus.CounterOpts{
			Name: constants.MetricExceptions,
			Help: "Exceptions thrown, by whether a handler was found.",
		}, constants.LabelsCaughtNode),

		monitorContention: f.NewCounterVec(prometheus.CounterOpts{
			Name: constants.MetricMonitorContention,
			Help: "Attempts to enter a monitor already owned by another thread.",
		}, constants.LabelsNode),

		allocatedBytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: constants.MetricAllocatedBytes,
			Help: "Bytes allocated by the VM outside compiled code (VMObjectAlloc).",
		}, constants.LabelsNode),

		classesLoaded: f.NewCounterVec(prometheus.CounterOpts{
			Name: constants.MetricClassesLoaded,
			Help: "Classes loaded.",
		}, constants.LabelsNode),

		vmInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: constants.MetricVMInfo,
			Help: "Always 1; labels carry the JVMTI and agent versions.",
		}, constants.LabelsVMInfo),

		eventsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: constants.MetricEventsProcessed,
			Help: "Bus events processed by this exporter.",
		}, constants.LabelsKind),

		eventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: constants.MetricEventsDropped,
			Help: "Bus events dropped due to backpressure.",
		}, constants.LabelsSubscriber),

		busQueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: constants.MetricBusQueueDepth,
			Help: "Current event bus queue depth per subscriber.",
		}, constants.LabelsSubscriber),

		callbackDispatch: f.NewCounterVec(prometheus.CounterOpts{
			Name: constants.MetricCallbackDispatch,
			Help: "VM callbacks dispatched to a handler.",
		}, constants.LabelsKind),

		callbackPanics: f.NewCounterVec(prometheus.CounterOpts{
			Name: constants.MetricCallbackPanics,
			Help: "Handler panics recovered at the callback boundary.",
		}, constants.LabelsKind),

		lastDropped:    make(map[string]uint64),
		lastDispatched: make(map[event.Kind]uint64),
		lastPanics:     make(map[event.Kind]uint64),
	}
}

func (p *Prometheus) Name() string { return constants.ExporterPrometheus }

// Handler serves metrics, liveness and readiness.
func (p *Prometheus) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(constants.PathMetrics, promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc(constants.PathHealthz, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	mux.HandleFunc(constants.PathReadyz, func(w http.ResponseWriter, _ *http.Request) {
		if p.ready.Load() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready\n"))
	})
	return mux
}

func (p *Prometheus) Start(ctx context.Context) error {
	p.server = &http.Server{
		Addr:         p.addr,
		Handler:      p.Handler(),
		ReadTimeout:  constants.HTTPReadTimeout,
		WriteTimeout: constants.HTTPWriteTimeout,
		IdleTimeout:  constants.HTTPIdleTimeout,
	}

	go func() {
		p.logger.Info("Prometheus exporter listening",
			zap.String("addr", p.addr),
			zap.String("path", constants.PathMetrics))
		if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("Prometheus HTTP server error", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(constants.StatsCollectInterval)
	defer ticker.Stop()

	p.ready.Store(true)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.collectStats()
		case evt, ok := <-p.events:
			if !ok {
				return nil
			}
			p.processEvent(evt)
			evt.Release()
		}
	}
}

func (p *Prometheus) Stop(ctx context.Context) error {
	p.ready.Store(false)
	if p.server != nil {
		return p.server.Shutdown(ctx)
	}
	return nil
}

// SetReady marks the exporter ready for readiness probes.
func (p *Prometheus) SetReady(ready bool) {
	p.ready.Store(ready)
}

// processEvent updates the metrics for one event.
func (p *Prometheus) processEvent(e *event.Event) {
	p.eventsProcessed.WithLabelValues(e.Kind.String()).Inc()
	p.vmEvents.WithLabelValues(e.Kind.String(), e.Node).Inc()

	switch e.Kind {
	case event.VMInit:
		p.vmInfo.WithLabelValues(e.Label(constants.KeyVersion), constants.Version, e.Node).Set(1)

	case event.ThreadStart:
		p.threadsStarted.WithLabelValues(strconv.FormatBool(e.ThreadDaemon), e.Node).Inc()
		p.liveThreads.WithLabelValues(e.Node).Set(e.NumericVal(constants.KeyLiveThreads))

	case event.ThreadEnd:
		p.liveThreads.WithLabelValues(e.Node).Set(e.NumericVal(constants.KeyLiveThreads))

	case event.Exception:
		p.exceptions.WithLabelValues(e.Label(constants.KeyCaught), e.Node).Inc()

	case event.MonitorContendedEnter:
		p.monitorContention.WithLabelValues(e.Node).Inc()

	case event.VMObjectAlloc:
		p.allocatedBytes.WithLabelValues(e.Node).Add(e.NumericVal(constants.KeyBytes))

	case event.ClassLoad:
		p.classesLoaded.WithLabelValues(e.Node).Inc()

	case event.GarbageCollectionFinish:
		if pause, ok := e.Numeric[constants.KeyPauseSec]; ok {
			p.gcPause.WithLabelValues(e.Node).Observe(pause)
		}
	}
}

// collectStats folds bus and dispatch snapshots into the self-observability
// metrics.
func (p *Prometheus) collectStats() {
	stats := p.bus.Stats()
	for name, depth := range stats.QueueDepth {
		p.busQueueDepth.WithLabelValues(name).Set(float64(depth))
	}
	for name, drops := range stats.DroppedBySubscriber {
		if d := drops - p.lastDropped[name]; d > 0 {
			p.eventsDropped.WithLabelValues(name).Add(float64(d))
		}
		p.lastDropped[name] = drops
	}

	if p.dispatch == nil {
		return
	}
	ds := p.dispatch.Stats()
	for kind, n := range ds.Dispatched {
		if d := n - p.lastDispatched[kind]; d > 0 {
			p.callbackDispatch.WithLabelValues(kind.String()).Add(float64(d))
		}
		p.lastDispatched[kind] = n
	}
	for kind, n := range ds.Panics {
		if d := n - p.lastPanics[kind]; d > 0 {
			p.callbackPanics.WithLabelValues(kind.String()).Add(float64(d))
		}
		p.lastPanics[kind] = n
	}
}
