// Package collector defines the Collector interface implemented by every
// JVMPulse event group, and the collectors themselves. A collector owns a set
// of VM event kinds: it contributes typed handlers to the callback table and
// turns each delivered event into a bus Event.
package collector

import (
	"context"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sureshkrishnan-v/jvmpulse/internal/config"
	"github.com/sureshkrishnan-v/jvmpulse/internal/environment"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
	"github.com/sureshkrishnan-v/jvmpulse/internal/thread"
)

// Collector is the lifecycle contract for one event group.
//
// Lifecycle: Init(ctx, deps) → Register(cb) → events flow until the callback
// table is replaced.
type Collector interface {
	// Name returns the config key, e.g. "gc" or "threads".
	Name() string

	// Kinds lists the event kinds whose notification the collector needs.
	Kinds() []event.Kind

	// Init stores dependencies and reads any initial VM state.
	Init(ctx context.Context, deps Dependencies) error

	// Register sets the collector's handlers in cb. It must only touch the
	// slots for its own Kinds.
	Register(cb *event.Callbacks)
}

// Dependencies are the shared resources handed to each collector.
type Dependencies struct {
	Logger *zap.Logger
	Config *config.CollectorConfig
	Bus    *event.Bus
	Env    *environment.Environment
	Node   string

	// Limiter caps publishes across all collectors; nil means unlimited.
	Limiter *rate.Limiter

	// OnVMDeath is called once the VM reports death.
	OnVMDeath func()
}

// All returns one instance of every collector.
func All() []Collector {
	return []Collector{
		NewLifecycle(),
		NewThreads(),
		NewClasses(),
		NewExceptions(),
		NewFields(),
		NewMethods(),
		NewMonitors(),
		NewGC(),
		NewAlloc(),
	}
}

// emitter is embedded by collectors to publish sampled, rate-limited events.
type emitter struct {
	deps  Dependencies
	every uint64
	seen  atomic.Uint64
}

func (em *emitter) init(deps Dependencies) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	em.deps = deps
	em.every = sampleEvery(1)
	if deps.Config != nil {
		em.every = sampleEvery(deps.Config.SamplingRate)
	}
}

// sampleEvery converts a sampling rate into "keep one in n". A rate of zero
// or less keeps nothing (n = 0).
func sampleEvery(r float64) uint64 {
	switch {
	case r <= 0:
		return 0
	case r >= 1:
		return 1
	}
	return uint64(1/r + 0.5)
}

// sampled reports whether the next event should be kept.
func (em *emitter) sampled() bool {
	if em.every == 0 {
		return false
	}
	if em.every > 1 && (em.seen.Add(1)-1)%em.every != 0 {
		return false
	}
	if l := em.deps.Limiter; l != nil && !l.Allow() {
		return false
	}
	return true
}

// emit publishes one event of kind if it survives sampling and the rate
// limit. t may be nil for events without a thread. fill sets kind-specific
// attributes and may be nil.
func (em *emitter) emit(kind event.Kind, t *thread.Thread, fill func(e *event.Event)) {
	if em.sampled() {
		em.emitAlways(kind, t, fill)
	}
}

// emitAlways publishes regardless of sampling and rate limits. Used for rare
// events whose loss would skew gauges (thread counts, GC pauses).
func (em *emitter) emitAlways(kind event.Kind, t *thread.Thread, fill func(e *event.Event)) {
	if em.deps.Bus == nil {
		return
	}
	e := event.New(kind, em.deps.Node)
	if t != nil {
		e.ThreadName = t.Name
		e.ThreadDaemon = t.IsDaemon
	}
	if fill != nil {
		fill(e)
	}
	em.deps.Bus.Publish(e)
}

// handle renders an opaque VM handle for use as a label value.
func handle[H ~uintptr](h H) string {
	return "0x" + strconv.FormatUint(uint64(h), 16)
}
