//go:build jvmti

package cjvmti

/*
#include "bridge.h"
*/
import "C"

import (
	"unsafe"

	"github.com/sureshkrishnan-v/jvmpulse/internal/native"
)

// Slot indexes of the C trampoline table in bridge.c.
const (
	slotVMInit = iota
	slotVMDeath
	slotThreadStart
	slotThreadEnd
	slotClassLoad
	slotClassPrepare
	slotVMStart
	slotException
	slotExceptionCatch
	slotFieldAccess
	slotFieldModification
	slotMethodEntry
	slotMethodExit
	slotMonitorWait
	slotMonitorWaited
	slotMonitorContendedEnter
	slotMonitorContendedEntered
	slotGarbageCollectionStart
	slotGarbageCollectionFinish
	slotObjectFree
	slotVMObjectAlloc
)

func slotMask(t *native.EventCallbacks) uint32 {
	var m uint32
	set := func(slot int, present bool) {
		if present {
			m |= 1 << slot
		}
	}
	set(slotVMInit, t.VMInit != nil)
	set(slotVMDeath, t.VMDeath != nil)
	set(slotThreadStart, t.ThreadStart != nil)
	set(slotThreadEnd, t.ThreadEnd != nil)
	set(slotClassLoad, t.ClassLoad != nil)
	set(slotClassPrepare, t.ClassPrepare != nil)
	set(slotVMStart, t.VMStart != nil)
	set(slotException, t.Exception != nil)
	set(slotExceptionCatch, t.ExceptionCatch != nil)
	set(slotFieldAccess, t.FieldAccess != nil)
	set(slotFieldModification, t.FieldModification != nil)
	set(slotMethodEntry, t.MethodEntry != nil)
	set(slotMethodExit, t.MethodExit != nil)
	set(slotMonitorWait, t.MonitorWait != nil)
	set(slotMonitorWaited, t.MonitorWaited != nil)
	set(slotMonitorContendedEnter, t.MonitorContendedEnter != nil)
	set(slotMonitorContendedEntered, t.MonitorContendedEntered != nil)
	set(slotGarbageCollectionStart, t.GarbageCollectionStart != nil)
	set(slotGarbageCollectionFinish, t.GarbageCollectionFinish != nil)
	set(slotObjectFree, t.ObjectFree != nil)
	set(slotVMObjectAlloc, t.VMObjectAlloc != nil)
	return m
}

// current returns the attached environment and its installed table, or nil
// when nothing is attached or no table is installed.
func current() (*native.Env, *native.EventCallbacks) {
	s := attached.Load()
	if s == nil {
		return nil, nil
	}
	t := s.table.Load()
	if t == nil {
		return nil, nil
	}
	return s.env, t
}

func jni(j *C.JNIEnv) native.JNIEnv { return native.JNIEnv(uintptr(unsafe.Pointer(j))) }
func thr(t C.jthread) native.Thread { return native.Thread(uintptr(unsafe.Pointer(t))) }
func obj(o C.jobject) native.Object { return native.Object(uintptr(unsafe.Pointer(o))) }
func cls(c C.jclass) native.Class { return native.Class(uintptr(unsafe.Pointer(c))) }
func mid(m C.jmethodID) native.MethodID { return native.MethodID(uintptr(unsafe.Pointer(m))) }
func fid(f C.jfieldID) native.FieldID { return native.FieldID(uintptr(unsafe.Pointer(f))) }
func loc(l C.jlocation) native.Location { return native.Location(l) }
func raw(v C.jlong) native.Value { return native.Value(uint64(v)) }

//export jpVMInit
func jpVMInit(_ *C.jvmtiEnv, j *C.JNIEnv, t C.jthread) {
	if env, cb := current(); cb != nil && cb.VMInit != nil {
		cb.VMInit(env, jni(j), thr(t))
	}
}

//export jpVMDeath
func jpVMDeath(_ *C.jvmtiEnv, j *C.JNIEnv) {
	if env, cb := current(); cb != nil && cb.VMDeath != nil {
		cb.VMDeath(env, jni(j))
	}
}

//export jpThreadStart
func jpThreadStart(_ *C.jvmtiEnv, j *C.JNIEnv, t C.jthread) {
	if env, cb := current(); cb != nil && cb.ThreadStart != nil {
		cb.ThreadStart(env, jni(j), thr(t))
	}
}

//export jpThreadEnd
func jpThreadEnd(_ *C.jvmtiEnv, j *C.JNIEnv, t C.jthread) {
	if env, cb := current(); cb != nil && cb.ThreadEnd != nil {
		cb.ThreadEnd(env, jni(j), thr(t))
	}
}

//export jpClassLoad
func jpClassLoad(_ *C.jvmtiEnv, j *C.JNIEnv, t C.jthread, k C.jclass) {
	if env, cb := current(); cb != nil && cb.ClassLoad != nil {
		cb.ClassLoad(env, jni(j), thr(t), cls(k))
	}
}

//export jpClassPrepare
func jpClassPrepare(_ *C.jvmtiEnv, j *C.JNIEnv, t C.jthread, k C.jclass) {
	if env, cb := current(); cb != nil && cb.ClassPrepare != nil {
		cb.ClassPrepare(env, jni(j), thr(t), cls(k))
	}
}

//export jpVMStart
func jpVMStart(_ *C.jvmtiEnv, j *C.JNIEnv) {
	if env, cb := current(); cb != nil && cb.VMStart != nil {
		cb.VMStart(env, jni(j))
	}
}

//export jpException
func jpException(_ *C.jvmtiEnv, j *C.JNIEnv, t C.jthread, m C.jmethodID, l C.jlocation, x C.jobject, cm C.jmethodID, cl C.jlocation) {
	if env, cb := current(); cb != nil && cb.Exception != nil {
		cb.Exception(env, jni(j), thr(t), mid(m), loc(l), obj(x), mid(cm), loc(cl))
	}
}

//export jpExceptionCatch
func jpExceptionCatch(_ *C.jvmtiEnv, j *C.JNIEnv, t C.jthread, m C.jmethodID, l C.jlocation, x C.jobject) {
	if env, cb := current(); cb != nil && cb.ExceptionCatch != nil {
		cb.ExceptionCatch(env, jni(j), thr(t), mid(m), loc(l), obj(x))
	}
}

//export jpFieldAccess
func jpFieldAccess(_ *C.jvmtiEnv, j *C.JNIEnv, t C.jthread, m C.jmethodID, l C.jlocation, fc C.jclass, o C.jobject, f C.jfieldID) {
	if env, cb := current(); cb != nil && cb.FieldAccess != nil {
		cb.FieldAccess(env, jni(j), thr(t), mid(m), loc(l), cls(fc), obj(o), fid(f))
	}
}

//export jpFieldModification
func jpFieldModification(_ *C.jvmtiEnv, j *C.JNIEnv, t C.jthread, m C.jmethodID, l C.jlocation, fc C.jclass, o C.jobject, f C.jfieldID, sig C.char, v C.jlong) {
	if env, cb := current(); cb != nil && cb.FieldModification != nil {
		cb.FieldModification(env, jni(j), thr(t), mid(m), loc(l), cls(fc), obj(o), fid(f), byte(sig), raw(v))
	}
}

//export jpMethodEntry
func jpMethodEntry(_ *C.jvmtiEnv, j *C.JNIEnv, t C.jthread, m C.jmethodID) {
	if env, cb := current(); cb != nil && cb.MethodEntry != nil {
		cb.MethodEntry(env, jni(j), thr(t), mid(m))
	}
}

//export jpMethodExit
func jpMethodExit(_ *C.jvmtiEnv, j *C.JNIEnv, t C.jthread, m C.jmethodID, popped C.jboolean, v C.jlong) {
	if env, cb := current(); cb != nil && cb.MethodExit != nil {
		cb.MethodExit(env, jni(j), thr(t), mid(m), uint8(popped), raw(v))
	}
}

//export jpMonitorWait
func jpMonitorWait(_ *C.jvmtiEnv, j *C.JNIEnv, t C.jthread, o C.jobject, timeout C.jlong) {
	if env, cb := current(); cb != nil && cb.MonitorWait != nil {
		cb.MonitorWait(env, jni(j), thr(t), obj(o), int64(timeout))
	}
}

//export jpMonitorWaited
func jpMonitorWaited(_ *C.jvmtiEnv, j *C.JNIEnv, t C.jthread, o C.jobject, timedOut C.jboolean) {
	if env, cb := current(); cb != nil && cb.MonitorWaited != nil {
		cb.MonitorWaited(env, jni(j), thr(t), obj(o), uint8(timedOut))
	}
}

//export jpMonitorContendedEnter
func jpMonitorContendedEnter(_ *C.jvmtiEnv, j *C.JNIEnv, t C.jthread, o C.jobject) {
	if env, cb := current(); cb != nil && cb.MonitorContendedEnter != nil {
		cb.MonitorContendedEnter(env, jni(j), thr(t), obj(o))
	}
}

//export jpMonitorContendedEntered
func jpMonitorContendedEntered(_ *C.jvmtiEnv, j *C.JNIEnv, t C.jthread, o C.jobject) {
	if env, cb := current(); cb != nil && cb.MonitorContendedEntered != nil {
		cb.MonitorContendedEntered(env, jni(j), thr(t), obj(o))
	}
}

//export jpGarbageCollectionStart
func jpGarbageCollectionStart(_ *C.jvmtiEnv) {
	if env, cb := current(); cb != nil && cb.GarbageCollectionStart != nil {
		cb.GarbageCollectionStart(env)
	}
}

//export jpGarbageCollectionFinish
func jpGarbageCollectionFinish(_ *C.jvmtiEnv) {
	if env, cb := current(); cb != nil && cb.GarbageCollectionFinish != nil {
		cb.GarbageCollectionFinish(env)
	}
}

//export jpObjectFree
func jpObjectFree(_ *C.jvmtiEnv, tag C.jlong) {
	if env, cb := current(); cb != nil && cb.ObjectFree != nil {
		cb.ObjectFree(env, int64(tag))
	}
}

//export jpVMObjectAlloc
func jpVMObjectAlloc(_ *C.jvmtiEnv, j *C.JNIEnv, t C.jthread, o C.jobject, k C.jclass, size C.jlong) {
	if env, cb := current(); cb != nil && cb.VMObjectAlloc != nil {
		cb.VMObjectAlloc(env, jni(j), thr(t), obj(o), cls(k), int64(size))
	}
}
