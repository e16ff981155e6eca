// Package registry holds the process-wide table of typed event handlers and
// the fixed native trampolines that dispatch into it.
//
// The handler table is published as one immutable value through an
// atomic.Pointer. Trampolines load it at call time without locking, so a
// concurrent replacement is observed either entirely or not at all. Writers
// are serialized by a mutex held across the native install, and a new table
// is published only after the install succeeds, which makes Apply
// all-or-nothing. While an install is in flight the trampolines keep
// dispatching to the previous table.
package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
	"github.com/sureshkrishnan-v/jvmpulse/internal/native"
	"github.com/sureshkrishnan-v/jvmpulse/internal/thread"
)

type counter struct {
	dispatched atomic.Uint64
	panics     atomic.Uint64
}

// Registry owns the registered handlers and the native trampoline table.
type Registry struct {
	logger *zap.Logger

	mu    sync.Mutex
	table atomic.Pointer[event.Callbacks]

	// trampolines has every bridged slot set; it is built once and never
	// modified, so the function values handed to the VM never change.
	trampolines native.EventCallbacks

	// counters is keyed by every bridged kind and never written after New.
	counters map[event.Kind]*counter
}

// New creates an unconfigured registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		logger:   logger.Named("registry"),
		counters: make(map[event.Kind]*counter),
	}
	for _, k := range event.BridgedKinds() {
		r.counters[k] = &counter{}
	}
	r.trampolines = native.EventCallbacks{
		VMInit:                  r.onVMInit,
		VMDeath:                 r.onVMDeath,
		ThreadStart:             r.onThreadStart,
		ThreadEnd:               r.onThreadEnd,
		ClassLoad:               r.onClassLoad,
		ClassPrepare:            r.onClassPrepare,
		VMStart:                 r.onVMStart,
		Exception:               r.onException,
		ExceptionCatch:          r.onExceptionCatch,
		FieldAccess:             r.onFieldAccess,
		FieldModification:       r.onFieldModification,
		MethodEntry:             r.onMethodEntry,
		MethodExit:              r.onMethodExit,
		MonitorWait:             r.onMonitorWait,
		MonitorWaited:           r.onMonitorWaited,
		MonitorContendedEnter:   r.onMonitorContendedEnter,
		MonitorContendedEntered: r.onMonitorContendedEntered,
		GarbageCollectionStart:  r.onGarbageCollectionStart,
		GarbageCollectionFinish: r.onGarbageCollectionFinish,
		ObjectFree:              r.onObjectFree,
		VMObjectAlloc:           r.onVMObjectAlloc,
	}
	return r
}

// Installer hands a native callback table to the VM.
type Installer func(table *native.EventCallbacks) error

// Apply replaces the whole handler table with cb and calls install with a
// native table whose populated slots are exactly the kinds cb handles. Kinds
// not set in cb stop dispatching even if they were set before. The handlers
// are published only once install succeeds; if it fails the previous
// handlers stay in effect and the error is returned.
//
// A nil install only swaps the handler table.
func (r *Registry) Apply(cb event.Callbacks, install Installer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := cb
	table := r.nativeTable(&next)

	if install != nil {
		if err := install(&table); err != nil {
			r.logger.Warn("native callback install failed, previous handlers kept",
				zap.Int("kinds", len(next.Kinds())),
				zap.Error(err))
			return err
		}
	}
	r.table.Store(&next)

	if install != nil {
		r.logger.Debug("event callbacks installed", zap.Stringers("kinds", next.Kinds()))
	}
	return nil
}

// Configured reports whether a handler table has been installed.
func (r *Registry) Configured() bool {
	return r.table.Load() != nil
}

// Current returns a copy of the installed handler table.
func (r *Registry) Current() (event.Callbacks, bool) {
	if cb := r.table.Load(); cb != nil {
		return *cb, true
	}
	return event.Callbacks{}, false
}

// Trampolines returns the full trampoline table.
func (r *Registry) Trampolines() native.EventCallbacks {
	return r.trampolines
}

// nativeTable selects the trampolines for the kinds cb handles.
func (r *Registry) nativeTable(cb *event.Callbacks) native.EventCallbacks {
	var t native.EventCallbacks
	if cb.VMInit != nil {
		t.VMInit = r.trampolines.VMInit
	}
	if cb.VMDeath != nil {
		t.VMDeath = r.trampolines.VMDeath
	}
	if cb.ThreadStart != nil {
		t.ThreadStart = r.trampolines.ThreadStart
	}
	if cb.ThreadEnd != nil {
		t.ThreadEnd = r.trampolines.ThreadEnd
	}
	if cb.ClassLoad != nil {
		t.ClassLoad = r.trampolines.ClassLoad
	}
	if cb.ClassPrepare != nil {
		t.ClassPrepare = r.trampolines.ClassPrepare
	}
	if cb.VMStart != nil {
		t.VMStart = r.trampolines.VMStart
	}
	if cb.Exception != nil {
		t.Exception = r.trampolines.Exception
	}
	if cb.ExceptionCatch != nil {
		t.ExceptionCatch = r.trampolines.ExceptionCatch
	}
	if cb.FieldAccess != nil {
		t.FieldAccess = r.trampolines.FieldAccess
	}
	if cb.FieldModification != nil {
		t.FieldModification = r.trampolines.FieldModification
	}
	if cb.MethodEntry != nil {
		t.MethodEntry = r.trampolines.MethodEntry
	}
	if cb.MethodExit != nil {
		t.MethodExit = r.trampolines.MethodExit
	}
	if cb.MonitorWait != nil {
		t.MonitorWait = r.trampolines.MonitorWait
	}
	if cb.MonitorWaited != nil {
		t.MonitorWaited = r.trampolines.MonitorWaited
	}
	if cb.MonitorContendedEnter != nil {
		t.MonitorContendedEnter = r.trampolines.MonitorContendedEnter
	}
	if cb.MonitorContendedEntered != nil {
		t.MonitorContendedEntered = r.trampolines.MonitorContendedEntered
	}
	if cb.GarbageCollectionStart != nil {
		t.GarbageCollectionStart = r.trampolines.GarbageCollectionStart
	}
	if cb.GarbageCollectionFinish != nil {
		t.GarbageCollectionFinish = r.trampolines.GarbageCollectionFinish
	}
	if cb.ObjectFree != nil {
		t.ObjectFree = r.trampolines.ObjectFree
	}
	if cb.VMObjectAlloc != nil {
		t.VMObjectAlloc = r.trampolines.VMObjectAlloc
	}
	return t
}

// Stats is a snapshot of per-kind dispatch counters.
type Stats struct {
	Dispatched map[event.Kind]uint64
	Panics     map[event.Kind]uint64
}

// Stats returns handler invocation and recovered panic counts per kind.
// Kinds with no activity are omitted.
func (r *Registry) Stats() Stats {
	s := Stats{
		Dispatched: make(map[event.Kind]uint64),
		Panics:     make(map[event.Kind]uint64),
	}
	for k, c := range r.counters {
		if n := c.dispatched.Load(); n > 0 {
			s.Dispatched[k] = n
		}
		if n := c.panics.Load(); n > 0 {
			s.Panics[k] = n
		}
	}
	return s
}

// dispatch runs fn, counting it and recovering any panic so it never unwinds
// into the VM.
func (r *Registry) dispatch(kind event.Kind, fn func()) {
	c := r.counters[kind]
	c.dispatched.Add(1)
	defer func() {
		if p := recover(); p != nil {
			c.panics.Add(1)
			r.logger.Error("event handler panicked",
				zap.Stringer("kind", kind),
				zap.Any("panic", p),
				zap.Stack("stack"))
		}
	}()
	fn()
}

// thread snapshots a callback's thread argument. A failed query still yields
// a Thread carrying the handle.
func (r *Registry) thread(env *native.Env, h native.Thread) thread.Thread {
	t, err := thread.Info(env, h)
	if err != nil {
		r.logger.Debug("thread info unavailable in callback",
			zap.Stringer("thread", thread.NewID(h)),
			zap.Error(err))
		return thread.Thread{ID: thread.NewID(h)}
	}
	return t
}

var unconfigured event.Callbacks

// handlers loads the current table; before the first Apply every slot is nil.
func (r *Registry) handlers() *event.Callbacks {
	if cb := r.table.Load(); cb != nil {
		return cb
	}
	return &unconfigured
}

func (r *Registry) onVMInit(env *native.Env, _ native.JNIEnv, t native.Thread) {
	if h := r.handlers().VMInit; h != nil {
		r.dispatch(event.VMInit, func() { h(r.thread(env, t)) })
	}
}

func (r *Registry) onVMDeath(_ *native.Env, _ native.JNIEnv) {
	if h := r.handlers().VMDeath; h != nil {
		r.dispatch(event.VMDeath, h)
	}
}

func (r *Registry) onVMStart(_ *native.Env, _ native.JNIEnv) {
	if h := r.handlers().VMStart; h != nil {
		r.dispatch(event.VMStart, h)
	}
}

func (r *Registry) onThreadStart(env *native.Env, _ native.JNIEnv, t native.Thread) {
	if h := r.handlers().ThreadStart; h != nil {
		r.dispatch(event.ThreadStart, func() { h(r.thread(env, t)) })
	}
}

func (r *Registry) onThreadEnd(env *native.Env, _ native.JNIEnv, t native.Thread) {
	if h := r.handlers().ThreadEnd; h != nil {
		r.dispatch(event.ThreadEnd, func() { h(r.thread(env, t)) })
	}
}

func (r *Registry) onClassLoad(env *native.Env, _ native.JNIEnv, t native.Thread, klass native.Class) {
	if h := r.handlers().ClassLoad; h != nil {
		r.dispatch(event.ClassLoad, func() {
			h(event.ClassEvent{Thread: r.thread(env, t), Class: klass})
		})
	}
}

func (r *Registry) onClassPrepare(env *native.Env, _ native.JNIEnv, t native.Thread, klass native.Class) {
	if h := r.handlers().ClassPrepare; h != nil {
		r.dispatch(event.ClassPrepare, func() {
			h(event.ClassEvent{Thread: r.thread(env, t), Class: klass})
		})
	}
}

func (r *Registry) onException(env *native.Env, _ native.JNIEnv, t native.Thread, method native.MethodID, loc native.Location, exc native.Object, catchMethod native.MethodID, catchLoc native.Location) {
	if h := r.handlers().Exception; h != nil {
		r.dispatch(event.Exception, func() {
			h(event.ExceptionEvent{
				Thread:        r.thread(env, t),
				Method:        method,
				Location:      loc,
				Exception:     exc,
				CatchMethod:   catchMethod,
				CatchLocation: catchLoc,
			})
		})
	}
}

func (r *Registry) onExceptionCatch(env *native.Env, _ native.JNIEnv, t native.Thread, method native.MethodID, loc native.Location, exc native.Object) {
	if h := r.handlers().ExceptionCatch; h != nil {
		r.dispatch(event.ExceptionCatch, func() {
			h(event.ExceptionEvent{
				Thread:    r.thread(env, t),
				Method:    method,
				Location:  loc,
				Exception: exc,
			})
		})
	}
}

func (r *Registry) onFieldAccess(env *native.Env, _ native.JNIEnv, t native.Thread, method native.MethodID, loc native.Location, fieldClass native.Class, obj native.Object, field native.FieldID) {
	if h := r.handlers().FieldAccess; h != nil {
		r.dispatch(event.FieldAccess, func() {
			h(event.FieldEvent{
				Thread:     r.thread(env, t),
				Method:     method,
				Location:   loc,
				FieldClass: fieldClass,
				Object:     obj,
				Field:      field,
			})
		})
	}
}

func (r *Registry) onFieldModification(env *native.Env, _ native.JNIEnv, t native.Thread, method native.MethodID, loc native.Location, fieldClass native.Class, obj native.Object, field native.FieldID, sig byte, val native.Value) {
	if h := r.handlers().FieldModification; h != nil {
		r.dispatch(event.FieldModification, func() {
			h(event.FieldEvent{
				Thread:     r.thread(env, t),
				Method:     method,
				Location:   loc,
				FieldClass: fieldClass,
				Object:     obj,
				Field:      field,
				Signature:  sig,
				NewValue:   val,
			})
		})
	}
}

func (r *Registry) onMethodEntry(env *native.Env, _ native.JNIEnv, t native.Thread, method native.MethodID) {
	if h := r.handlers().MethodEntry; h != nil {
		r.dispatch(event.MethodEntry, func() {
			h(event.MethodInvocation{Thread: r.thread(env, t), Method: method})
		})
	}
}

func (r *Registry) onMethodExit(env *native.Env, _ native.JNIEnv, t native.Thread, method native.MethodID, popped uint8, ret native.Value) {
	if h := r.handlers().MethodExit; h != nil {
		r.dispatch(event.MethodExit, func() {
			h(event.MethodInvocation{
				Thread:            r.thread(env, t),
				Method:            method,
				PoppedByException: popped != 0,
				ReturnValue:       ret,
			})
		})
	}
}

func (r *Registry) onMonitorWait(env *native.Env, _ native.JNIEnv, t native.Thread, obj native.Object, timeoutMillis int64) {
	if h := r.handlers().MonitorWait; h != nil {
		r.dispatch(event.MonitorWait, func() {
			h(event.MonitorEvent{
				Thread:  r.thread(env, t),
				Object:  obj,
				Timeout: time.Duration(timeoutMillis) * time.Millisecond,
			})
		})
	}
}

func (r *Registry) onMonitorWaited(env *native.Env, _ native.JNIEnv, t native.Thread, obj native.Object, timedOut uint8) {
	if h := r.handlers().MonitorWaited; h != nil {
		r.dispatch(event.MonitorWaited, func() {
			h(event.MonitorEvent{Thread: r.thread(env, t), Object: obj, TimedOut: timedOut != 0})
		})
	}
}

func (r *Registry) onMonitorContendedEnter(env *native.Env, _ native.JNIEnv, t native.Thread, obj native.Object) {
	if h := r.handlers().MonitorContendedEnter; h != nil {
		r.dispatch(event.MonitorContendedEnter, func() {
			h(event.MonitorEvent{Thread: r.thread(env, t), Object: obj})
		})
	}
}

func (r *Registry) onMonitorContendedEntered(env *native.Env, _ native.JNIEnv, t native.Thread, obj native.Object) {
	if h := r.handlers().MonitorContendedEntered; h != nil {
		r.dispatch(event.MonitorContendedEntered, func() {
			h(event.MonitorEvent{Thread: r.thread(env, t), Object: obj})
		})
	}
}

// GC callbacks run with the world stopped and must not call back into the
// VM, so they carry no thread.

func (r *Registry) onGarbageCollectionStart(_ *native.Env) {
	if h := r.handlers().GarbageCollectionStart; h != nil {
		r.dispatch(event.GarbageCollectionStart, h)
	}
}

func (r *Registry) onGarbageCollectionFinish(_ *native.Env) {
	if h := r.handlers().GarbageCollectionFinish; h != nil {
		r.dispatch(event.GarbageCollectionFinish, h)
	}
}

func (r *Registry) onObjectFree(_ *native.Env, tag int64) {
	if h := r.handlers().ObjectFree; h != nil {
		r.dispatch(event.ObjectFree, func() { h(tag) })
	}
}

func (r *Registry) onVMObjectAlloc(env *native.Env, _ native.JNIEnv, t native.Thread, obj native.Object, class native.Class, size int64) {
	if h := r.handlers().VMObjectAlloc; h != nil {
		r.dispatch(event.VMObjectAlloc, func() {
			h(event.ObjectAllocEvent{
				Thread: r.thread(env, t),
				Object: obj,
				Class:  class,
				Size:   size,
			})
		})
	}
}
