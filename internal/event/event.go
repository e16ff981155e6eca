// Package event defines the VM event vocabulary (kinds, typed payloads and
// the Callbacks table handed to the registry) and the pooled Event envelope
// plus Bus that carry observed events to exporters.
package event

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
)

// Event is the envelope published on the Bus for every observed VM event.
// Pool-allocated and reference counted: every holder calls Release() once
// when done, and the last release returns the event to the pool.
//
// Common attributes are fields; kind-specific data goes into Labels (low
// cardinality strings) and Numeric (sizes, durations, counts).
type Event struct {
	Kind      Kind
	Timestamp time.Time

	// Node identifies the JVM host, taken from config.
	Node string

	// Thread that raised the event; empty for GC and object-free events.
	ThreadName   string
	ThreadDaemon bool

	Labels  map[string]string
	Numeric map[string]float64

	refs atomic.Int32
}

var pool = sync.Pool{
	New: func() any {
		return &Event{
			Labels:  make(map[string]string, constants.EventPoolMapCapacity),
			Numeric: make(map[string]float64, constants.EventPoolMapCapacity),
		}
	},
}

// Acquire retrieves a cleared Event from the pool.
func Acquire() *Event {
	e := pool.Get().(*Event)
	e.refs.Store(1)
	return e
}

// New acquires an Event stamped with kind, node and the current time.
func New(kind Kind, node string) *Event {
	e := Acquire()
	e.Kind = kind
	e.Node = node
	e.Timestamp = time.Now()
	return e
}

// retain adds n references.
func (e *Event) retain(n int) {
	e.refs.Add(int32(n))
}

// Release drops one reference. The last release clears the Event and returns
// it to the pool; the caller must not use the event afterwards.
func (e *Event) Release() {
	if e.refs.Add(-1) > 0 {
		return
	}
	e.Kind = KindUnknown
	e.Timestamp = time.Time{}
	e.Node = ""
	e.ThreadName = ""
	e.ThreadDaemon = false
	clear(e.Labels)
	clear(e.Numeric)
	pool.Put(e)
}

// SetLabel sets a kind-specific string attribute.
func (e *Event) SetLabel(key, value string) {
	e.Labels[key] = value
}

// SetNumeric sets a kind-specific numeric attribute.
func (e *Event) SetNumeric(key string, value float64) {
	e.Numeric[key] = value
}

// Label returns a label value, or "" if not present.
func (e *Event) Label(key string) string {
	return e.Labels[key]
}

// NumericVal returns a numeric value, or 0 if not present.
func (e *Event) NumericVal(key string) float64 {
	return e.Numeric[key]
}
