package collector

import (
	"context"
	"strconv"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
)

// Methods reports method entry and exit. These fire on every call, so the
// collector is disabled by default and sampled at MethodSamplingRate when on.
type Methods struct {
	emitter
}

// NewMethods creates the method collector.
func NewMethods() *Methods { return &Methods{} }

func (c *Methods) Name() string { return constants.CollectorMethods }

func (c *Methods) Kinds() []event.Kind {
	return []event.Kind{event.MethodEntry, event.MethodExit}
}

func (c *Methods) Init(_ context.Context, deps Dependencies) error {
	c.init(deps)
	return nil
}

func (c *Methods) Register(cb *event.Callbacks) {
	cb.MethodEntry = func(m event.MethodInvocation) {
		c.emit(event.MethodEntry, &m.Thread, func(e *event.Event) { c.common(e, m) })
	}
	cb.MethodExit = func(m event.MethodInvocation) {
		c.emit(event.MethodExit, &m.Thread, func(e *event.Event) {
			c.common(e, m)
			e.SetLabel(constants.KeyPopped, strconv.FormatBool(m.PoppedByException))
		})
	}
}

func (c *Methods) common(e *event.Event, m event.MethodInvocation) {
	e.SetLabel(constants.KeyThreadID, m.Thread.ID.String())
	e.SetLabel(constants.KeyMethod, handle(m.Method))
}
