package collector

import (
	"context"
	"strconv"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
)

// Monitors reports monitor waits and contention.
type Monitors struct {
	emitter
}

// NewMonitors creates the monitor collector.
func NewMonitors() *Monitors { return &Monitors{} }

func (c *Monitors) Name() string { return constants.CollectorMonitors }

func (c *Monitors) Kinds() []event.Kind {
	return []event.Kind{
		event.MonitorWait,
		event.MonitorWaited,
		event.MonitorContendedEnter,
		event.MonitorContendedEntered,
	}
}

func (c *Monitors) Init(_ context.Context, deps Dependencies) error {
	c.init(deps)
	return nil
}

func (c *Monitors) Register(cb *event.Callbacks) {
	cb.MonitorWait = func(m event.MonitorEvent) {
		c.emit(event.MonitorWait, &m.Thread, func(e *event.Event) {
			c.common(e, m)
			e.SetNumeric(constants.KeyTimeoutSec, m.Timeout.Seconds())
		})
	}
	cb.MonitorWaited = func(m event.MonitorEvent) {
		c.emit(event.MonitorWaited, &m.Thread, func(e *event.Event) {
			c.common(e, m)
			e.SetLabel(constants.KeyTimedOut, strconv.FormatBool(m.TimedOut))
		})
	}
	cb.MonitorContendedEnter = func(m event.MonitorEvent) {
		c.emit(event.MonitorContendedEnter, &m.Thread, func(e *event.Event) { c.common(e, m) })
	}
	cb.MonitorContendedEntered = func(m event.MonitorEvent) {
		c.emit(event.MonitorContendedEntered, &m.Thread, func(e *event.Event) { c.common(e, m) })
	}
}

func (c *Monitors) common(e *event.Event, m event.MonitorEvent) {
	e.SetLabel(constants.KeyThreadID, m.Thread.ID.String())
	e.SetLabel(constants.KeyObject, handle(m.Object))
}
