package collector

import (
	"context"
	"strconv"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
)

// Exceptions reports thrown and caught exceptions. A thrown exception carries
// caught="true" when the VM already located a handler for it.
type Exceptions struct {
	emitter
}

// NewExceptions creates the exception collector.
func NewExceptions() *Exceptions { return &Exceptions{} }

func (c *Exceptions) Name() string { return constants.CollectorExceptions }

func (c *Exceptions) Kinds() []event.Kind {
	return []event.Kind{event.Exception, event.ExceptionCatch}
}

func (c *Exceptions) Init(_ context.Context, deps Dependencies) error {
	c.init(deps)
	return nil
}

func (c *Exceptions) Register(cb *event.Callbacks) {
	cb.Exception = func(x event.ExceptionEvent) {
		c.emit(event.Exception, &x.Thread, func(e *event.Event) {
			c.common(e, x)
			e.SetLabel(constants.KeyCaught, strconv.FormatBool(x.Caught()))
		})
	}
	cb.ExceptionCatch = func(x event.ExceptionEvent) {
		c.emit(event.ExceptionCatch, &x.Thread, func(e *event.Event) {
			c.common(e, x)
		})
	}
}

func (c *Exceptions) common(e *event.Event, x event.ExceptionEvent) {
	e.SetLabel(constants.KeyThreadID, x.Thread.ID.String())
	e.SetLabel(constants.KeyMethod, handle(x.Method))
	e.SetLabel(constants.KeyObject, handle(x.Exception))
}
