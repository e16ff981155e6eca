package collector

import (
	"context"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
)

// Classes reports class load and prepare.
type Classes struct {
	emitter
}

// NewClasses creates the class collector.
func NewClasses() *Classes { return &Classes{} }

func (c *Classes) Name() string { return constants.CollectorClasses }

func (c *Classes) Kinds() []event.Kind {
	return []event.Kind{event.ClassLoad, event.ClassPrepare}
}

func (c *Classes) Init(_ context.Context, deps Dependencies) error {
	c.init(deps)
	return nil
}

func (c *Classes) Register(cb *event.Callbacks) {
	cb.ClassLoad = func(ce event.ClassEvent) { c.publish(event.ClassLoad, ce) }
	cb.ClassPrepare = func(ce event.ClassEvent) { c.publish(event.ClassPrepare, ce) }
}

func (c *Classes) publish(kind event.Kind, ce event.ClassEvent) {
	c.emit(kind, &ce.Thread, func(e *event.Event) {
		e.SetLabel(constants.KeyThreadID, ce.Thread.ID.String())
		e.SetLabel(constants.KeyClass, handle(ce.Class))
	})
}
