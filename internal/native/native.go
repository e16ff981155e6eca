// Package native mirrors the JVM Tool Interface ABI as Go types.
//
// Everything here is protocol: struct layouts, status code space, event
// numbers and the version word encoding are fixed by jvmti.h and must not be
// changed. Higher layers (capability, thread, registry, environment) convert
// these raw values into typed ones; nothing in this package interprets them.
//
// An Env is populated either by the cgo backend (package cjvmti, build tag
// "jvmti") or by the simulated VM in package nativetest.
package native

// ErrorCode is a jvmtiError status code.
type ErrorCode int32

// ErrNone is the only success status.
const ErrNone ErrorCode = 0

// EventKind is a jvmtiEvent number.
type EventKind int32

// jvmtiEvent numbers. 72 and 77..79 are reserved.
const (
	EventVMInit                  EventKind = 50
	EventVMDeath                 EventKind = 51
	EventThreadStart             EventKind = 52
	EventThreadEnd               EventKind = 53
	EventClassFileLoadHook       EventKind = 54
	EventClassLoad               EventKind = 55
	EventClassPrepare            EventKind = 56
	EventVMStart                 EventKind = 57
	EventException               EventKind = 58
	EventExceptionCatch          EventKind = 59
	EventSingleStep              EventKind = 60
	EventFramePop                EventKind = 61
	EventBreakpoint              EventKind = 62
	EventFieldAccess             EventKind = 63
	EventFieldModification       EventKind = 64
	EventMethodEntry             EventKind = 65
	EventMethodExit              EventKind = 66
	EventNativeMethodBind        EventKind = 67
	EventCompiledMethodLoad      EventKind = 68
	EventCompiledMethodUnload    EventKind = 69
	EventDynamicCodeGenerated    EventKind = 70
	EventDataDumpRequest         EventKind = 71
	EventMonitorWait             EventKind = 73
	EventMonitorWaited           EventKind = 74
	EventMonitorContendedEnter   EventKind = 75
	EventMonitorContendedEntered EventKind = 76
	EventResourceExhausted       EventKind = 80
	EventGarbageCollectionStart  EventKind = 81
	EventGarbageCollectionFinish EventKind = 82
	EventObjectFree              EventKind = 83
	EventVMObjectAlloc           EventKind = 84

	MinEventKind = EventVMInit
	MaxEventKind = EventVMObjectAlloc
)

// Valid reports whether k is a defined, non-reserved event number.
func (k EventKind) Valid() bool {
	switch {
	case k < MinEventKind || k > MaxEventKind:
		return false
	case k == 72, k >= 77 && k <= 79:
		return false
	}
	return true
}

// Mode is a jvmtiEventMode.
type Mode int32

const (
	ModeDisable Mode = 0
	ModeEnable  Mode = 1
)

// Version word layout (JVMTI_VERSION_MASK_* / JVMTI_VERSION_SHIFT_*).
const (
	VersionMaskInterfaceType uint32 = 0x70000000
	VersionMaskMajor         uint32 = 0x0FFF0000
	VersionMaskMinor         uint32 = 0x0000FF00
	VersionMaskMicro         uint32 = 0x000000FF

	VersionShiftMajor = 16
	VersionShiftMinor = 8
	VersionShiftMicro = 0

	// VersionInterfaceJVMTI is the interface type bits of a JVMTI version word.
	VersionInterfaceJVMTI uint32 = 0x30000000
)

// Opaque handles owned by the VM. They are only valid for the duration of
// the callback or query that produced them and are compared by identity.
type (
	Thread   uintptr // jthread
	Object   uintptr // jobject
	Class    uintptr // jclass
	MethodID uintptr // jmethodID
	FieldID  uintptr // jfieldID
	JNIEnv   uintptr // JNIEnv*
	Location int64   // jlocation
	Value    uint64  // jvalue, raw bits
)

// NullThread is the null jthread; as an argument it means "all threads".
const NullThread Thread = 0

// ThreadInfo mirrors jvmtiThreadInfo. Name points at a NUL-terminated,
// modified-UTF-8 buffer allocated by the VM (nil when the thread has no name).
type ThreadInfo struct {
	Name               *byte
	Priority           int32
	IsDaemon           uint8 // jboolean
	ThreadGroup        Object
	ContextClassLoader Object
}
