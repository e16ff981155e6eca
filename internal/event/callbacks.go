package event

import (
	"time"

	"github.com/sureshkrishnan-v/jvmpulse/internal/native"
	"github.com/sureshkrishnan-v/jvmpulse/internal/thread"
)

// ClassEvent is delivered for ClassLoad and ClassPrepare.
type ClassEvent struct {
	Thread thread.Thread
	Class  native.Class
}

// MethodInvocation is delivered for MethodEntry and MethodExit. The exit-only
// fields are zero on entry.
type MethodInvocation struct {
	Thread            thread.Thread
	Method            native.MethodID
	PoppedByException bool
	ReturnValue       native.Value
}

// ExceptionEvent is delivered for Exception and ExceptionCatch. For a thrown
// exception Method/Location is the throw site and CatchMethod/CatchLocation
// the handler (zero when uncaught). For a catch, Method/Location is the
// handler and the catch fields are zero.
type ExceptionEvent struct {
	Thread        thread.Thread
	Method        native.MethodID
	Location      native.Location
	Exception     native.Object
	CatchMethod   native.MethodID
	CatchLocation native.Location
}

// Caught reports whether the VM found a handler for a thrown exception.
func (e ExceptionEvent) Caught() bool { return e.CatchMethod != 0 }

// FieldEvent is delivered for FieldAccess and FieldModification. Signature and
// NewValue are only set on modification.
type FieldEvent struct {
	Thread     thread.Thread
	Method     native.MethodID
	Location   native.Location
	FieldClass native.Class
	Object     native.Object
	Field      native.FieldID
	Signature  byte
	NewValue   native.Value
}

// MonitorEvent is delivered for the four monitor kinds. Timeout is set for
// MonitorWait, TimedOut for MonitorWaited.
type MonitorEvent struct {
	Thread   thread.Thread
	Object   native.Object
	Timeout  time.Duration
	TimedOut bool
}

// ObjectAllocEvent is delivered for VMObjectAlloc.
type ObjectAllocEvent struct {
	Thread thread.Thread
	Object native.Object
	Class  native.Class
	Size   int64
}

// Callbacks holds an optional typed handler per bridged kind. A nil field
// means no callback; the value is copied when registered, so later changes to
// the caller's copy have no effect.
type Callbacks struct {
	VMInit                  func(t thread.Thread)
	VMStart                 func()
	VMDeath                 func()
	ThreadStart             func(t thread.Thread)
	ThreadEnd               func(t thread.Thread)
	ClassLoad               func(e ClassEvent)
	ClassPrepare            func(e ClassEvent)
	Exception               func(e ExceptionEvent)
	ExceptionCatch          func(e ExceptionEvent)
	FieldAccess             func(e FieldEvent)
	FieldModification       func(e FieldEvent)
	MethodEntry             func(e MethodInvocation)
	MethodExit              func(e MethodInvocation)
	MonitorWait             func(e MonitorEvent)
	MonitorWaited           func(e MonitorEvent)
	MonitorContendedEnter   func(e MonitorEvent)
	MonitorContendedEntered func(e MonitorEvent)
	GarbageCollectionStart  func()
	GarbageCollectionFinish func()
	ObjectFree              func(tag int64)
	VMObjectAlloc           func(e ObjectAllocEvent)
}

// Has reports whether a handler is set for kind.
func (c *Callbacks) Has(kind Kind) bool {
	switch kind {
	case VMInit:
		return c.VMInit != nil
	case VMStart:
		return c.VMStart != nil
	case VMDeath:
		return c.VMDeath != nil
	case ThreadStart:
		return c.ThreadStart != nil
	case ThreadEnd:
		return c.ThreadEnd != nil
	case ClassLoad:
		return c.ClassLoad != nil
	case ClassPrepare:
		return c.ClassPrepare != nil
	case Exception:
		return c.Exception != nil
	case ExceptionCatch:
		return c.ExceptionCatch != nil
	case FieldAccess:
		return c.FieldAccess != nil
	case FieldModification:
		return c.FieldModification != nil
	case MethodEntry:
		return c.MethodEntry != nil
	case MethodExit:
		return c.MethodExit != nil
	case MonitorWait:
		return c.MonitorWait != nil
	case MonitorWaited:
		return c.MonitorWaited != nil
	case MonitorContendedEnter:
		return c.MonitorContendedEnter != nil
	case MonitorContendedEntered:
		return c.MonitorContendedEntered != nil
	case GarbageCollectionStart:
		return c.GarbageCollectionStart != nil
	case GarbageCollectionFinish:
		return c.GarbageCollectionFinish != nil
	case ObjectFree:
		return c.ObjectFree != nil
	case VMObjectAlloc:
		return c.VMObjectAlloc != nil
	}
	return false
}

// Kinds returns the kinds that have a handler set, in callback-table order.
func (c *Callbacks) Kinds() []Kind {
	var kinds []Kind
	for _, k := range bridged {
		if c.Has(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
