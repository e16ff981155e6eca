package collector

import (
	"context"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
)

// Fields reports watched field access and modification. The VM only delivers
// these for fields with a watch set, so the collector is off by default.
type Fields struct {
	emitter
}

// NewFields creates the field watch collector.
func NewFields() *Fields { return &Fields{} }

func (c *Fields) Name() string { return constants.CollectorFields }

func (c *Fields) Kinds() []event.Kind {
	return []event.Kind{event.FieldAccess, event.FieldModification}
}

func (c *Fields) Init(_ context.Context, deps Dependencies) error {
	c.init(deps)
	return nil
}

func (c *Fields) Register(cb *event.Callbacks) {
	cb.FieldAccess = func(f event.FieldEvent) {
		c.emit(event.FieldAccess, &f.Thread, func(e *event.Event) { c.common(e, f) })
	}
	cb.FieldModification = func(f event.FieldEvent) {
		c.emit(event.FieldModification, &f.Thread, func(e *event.Event) {
			c.common(e, f)
			e.SetLabel(constants.KeySignature, string(rune(f.Signature)))
		})
	}
}

func (c *Fields) common(e *event.Event, f event.FieldEvent) {
	e.SetLabel(constants.KeyThreadID, f.Thread.ID.String())
	e.SetLabel(constants.KeyMethod, handle(f.Method))
	e.SetLabel(constants.KeyClass, handle(f.FieldClass))
	e.SetLabel(constants.KeyField, handle(f.Field))
	if f.Object != 0 {
		e.SetLabel(constants.KeyObject, handle(f.Object))
	}
}
