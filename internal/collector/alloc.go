package collector

import (
	"context"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
)

// Alloc reports objects allocated by the VM itself (reflection, JNI, etc.).
// Allocations from bytecode are not covered by this event.
type Alloc struct {
	emitter
}

// NewAlloc creates the allocation collector.
func NewAlloc() *Alloc { return &Alloc{} }

func (c *Alloc) Name() string { return constants.CollectorAlloc }

func (c *Alloc) Kinds() []event.Kind { return []event.Kind{event.VMObjectAlloc} }

func (c *Alloc) Init(_ context.Context, deps Dependencies) error {
	c.init(deps)
	return nil
}

func (c *Alloc) Register(cb *event.Callbacks) {
	cb.VMObjectAlloc = func(a event.ObjectAllocEvent) {
		c.emit(event.VMObjectAlloc, &a.Thread, func(e *event.Event) {
			e.SetLabel(constants.KeyThreadID, a.Thread.ID.String())
			e.SetLabel(constants.KeyClass, handle(a.Class))
			e.SetNumeric(constants.KeyBytes, float64(a.Size))
		})
	}
}
