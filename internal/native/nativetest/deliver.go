package nativetest

import "github.com/sureshkrishnan-v/jvmpulse/internal/native"

// Args carries the raw arguments of a simulated native callback. Each kind
// reads only the fields its JVMTI signature has.
type Args struct {
	JNI           native.JNIEnv
	Thread        native.Thread
	Method        native.MethodID
	Location      native.Location
	Object        native.Object
	Class         native.Class
	Field         native.FieldID
	CatchMethod   native.MethodID
	CatchLocation native.Location
	Signature     byte
	Value         native.Value
	// Flag is was_popped_by_exception for MethodExit and timed_out for
	// MonitorWaited.
	Flag bool
	// Timeout is the MonitorWait timeout in milliseconds.
	Timeout int64
	Size    int64
	Tag     int64
}

func jboolean(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Deliver invokes the slot for kind in table, if populated, with args. It
// reports whether a slot was invoked.
func Deliver(env *native.Env, table *native.EventCallbacks, kind native.EventKind, a Args) bool {
	switch kind {
	case native.EventVMInit:
		if f := table.VMInit; f != nil {
			f(env, a.JNI, a.Thread)
			return true
		}
	case native.EventVMDeath:
		if f := table.VMDeath; f != nil {
			f(env, a.JNI)
			return true
		}
	case native.EventVMStart:
		if f := table.VMStart; f != nil {
			f(env, a.JNI)
			return true
		}
	case native.EventThreadStart:
		if f := table.ThreadStart; f != nil {
			f(env, a.JNI, a.Thread)
			return true
		}
	case native.EventThreadEnd:
		if f := table.ThreadEnd; f != nil {
			f(env, a.JNI, a.Thread)
			return true
		}
	case native.EventClassLoad:
		if f := table.ClassLoad; f != nil {
			f(env, a.JNI, a.Thread, a.Class)
			return true
		}
	case native.EventClassPrepare:
		if f := table.ClassPrepare; f != nil {
			f(env, a.JNI, a.Thread, a.Class)
			return true
		}
	case native.EventException:
		if f := table.Exception; f != nil {
			f(env, a.JNI, a.Thread, a.Method, a.Location, a.Object, a.CatchMethod, a.CatchLocation)
			return true
		}
	case native.EventExceptionCatch:
		if f := table.ExceptionCatch; f != nil {
			f(env, a.JNI, a.Thread, a.Method, a.Location, a.Object)
			return true
		}
	case native.EventFieldAccess:
		if f := table.FieldAccess; f != nil {
			f(env, a.JNI, a.Thread, a.Method, a.Location, a.Class, a.Object, a.Field)
			return true
		}
	case native.EventFieldModification:
		if f := table.FieldModification; f != nil {
			f(env, a.JNI, a.Thread, a.Method, a.Location, a.Class, a.Object, a.Field, a.Signature, a.Value)
			return true
		}
	case native.EventMethodEntry:
		if f := table.MethodEntry; f != nil {
			f(env, a.JNI, a.Thread, a.Method)
			return true
		}
	case native.EventMethodExit:
		if f := table.MethodExit; f != nil {
			f(env, a.JNI, a.Thread, a.Method, jboolean(a.Flag), a.Value)
			return true
		}
	case native.EventMonitorWait:
		if f := table.MonitorWait; f != nil {
			f(env, a.JNI, a.Thread, a.Object, a.Timeout)
			return true
		}
	case native.EventMonitorWaited:
		if f := table.MonitorWaited; f != nil {
			f(env, a.JNI, a.Thread, a.Object, jboolean(a.Flag))
			return true
		}
	case native.EventMonitorContendedEnter:
		if f := table.MonitorContendedEnter; f != nil {
			f(env, a.JNI, a.Thread, a.Object)
			return true
		}
	case native.EventMonitorContendedEntered:
		if f := table.MonitorContendedEntered; f != nil {
			f(env, a.JNI, a.Thread, a.Object)
			return true
		}
	case native.EventGarbageCollectionStart:
		if f := table.GarbageCollectionStart; f != nil {
			f(env)
			return true
		}
	case native.EventGarbageCollectionFinish:
		if f := table.GarbageCollectionFinish; f != nil {
			f(env)
			return true
		}
	case native.EventObjectFree:
		if f := table.ObjectFree; f != nil {
			f(env, a.Tag)
			return true
		}
	case native.EventVMObjectAlloc:
		if f := table.VMObjectAlloc; f != nil {
			f(env, a.JNI, a.Thread, a.Object, a.Class, a.Size)
			return true
		}
	}
	return false
}
