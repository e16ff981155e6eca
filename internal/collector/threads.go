package collector

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
	"github.com/sureshkrishnan-v/jvmpulse/internal/thread"
)

// Threads tracks thread start/end and the live thread count. The count is
// seeded from the VM's thread list at Init so that threads started before the
// agent attached are included.
type Threads struct {
	emitter
	live atomic.Int64
}

// NewThreads creates the thread collector.
func NewThreads() *Threads { return &Threads{} }

func (c *Threads) Name() string { return constants.CollectorThreads }

func (c *Threads) Kinds() []event.Kind {
	return []event.Kind{event.ThreadStart, event.ThreadEnd}
}

func (c *Threads) Init(_ context.Context, deps Dependencies) error {
	c.init(deps)
	if deps.Env == nil {
		return nil
	}
	threads, err := deps.Env.Threads()
	if err != nil {
		// Too early in the VM lifecycle; count from zero.
		c.deps.Logger.Debug("Thread baseline unavailable", zap.Error(err))
		return nil
	}
	c.live.Store(int64(len(threads)))
	return nil
}

// Live returns the current live thread count.
func (c *Threads) Live() int64 { return c.live.Load() }

func (c *Threads) Register(cb *event.Callbacks) {
	cb.ThreadStart = func(t thread.Thread) {
		c.publish(event.ThreadStart, t, c.live.Add(1))
	}
	cb.ThreadEnd = func(t thread.Thread) {
		n := c.live.Add(-1)
		if n < 0 {
			c.live.CompareAndSwap(n, 0)
			n = 0
		}
		c.publish(event.ThreadEnd, t, n)
	}
}

func (c *Threads) publish(kind event.Kind, t thread.Thread, live int64) {
	c.emitAlways(kind, &t, func(e *event.Event) {
		e.SetLabel(constants.KeyThreadID, t.ID.String())
		e.SetNumeric(constants.KeyLiveThreads, float64(live))
	})
}
