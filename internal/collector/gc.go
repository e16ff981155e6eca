package collector

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
)

// GC reports garbage collection pauses and freed tagged objects.
//
// GC callbacks run while the VM is stopped for collection: they must not call
// back into the VM, which is why no thread metadata is attached.
type GC struct {
	emitter
	started atomic.Int64 // unix nanos of the pending GarbageCollectionStart, 0 if none
	now     func() time.Time
}

// NewGC creates the GC collector.
func NewGC() *GC { return &GC{now: time.Now} }

func (c *GC) Name() string { return constants.CollectorGC }

func (c *GC) Kinds() []event.Kind {
	return []event.Kind{event.GarbageCollectionStart, event.GarbageCollectionFinish, event.ObjectFree}
}

func (c *GC) Init(_ context.Context, deps Dependencies) error {
	c.init(deps)
	return nil
}

func (c *GC) Register(cb *event.Callbacks) {
	cb.GarbageCollectionStart = func() {
		c.started.Store(c.now().UnixNano())
		c.emitAlways(event.GarbageCollectionStart, nil, nil)
	}
	cb.GarbageCollectionFinish = func() {
		start := c.started.Swap(0)
		c.emitAlways(event.GarbageCollectionFinish, nil, func(e *event.Event) {
			// A finish without a matching start (agent attached mid-GC) has no pause.
			if start != 0 {
				pause := time.Duration(c.now().UnixNano() - start)
				e.SetNumeric(constants.KeyPauseSec, pause.Seconds())
			}
		})
	}
	cb.ObjectFree = func(tag int64) {
		c.emit(event.ObjectFree, nil, func(e *event.Event) {
			e.SetNumeric(constants.KeyTag, float64(tag))
		})
	}
}
