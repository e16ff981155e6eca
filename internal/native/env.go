package native

// Env is a JVMTI environment handle: one field per function-table slot used
// by this module. A nil slot means the environment does not implement that
// function; callers must check before calling.
type Env struct {
	GetVersionNumber         func(version *int32) ErrorCode
	GetCapabilities          func(caps *Capabilities) ErrorCode
	GetPotentialCapabilities func(caps *Capabilities) ErrorCode
	AddCapabilities          func(caps *Capabilities) ErrorCode
	RelinquishCapabilities   func(caps *Capabilities) ErrorCode
	SetEventCallbacks        func(callbacks *EventCallbacks) ErrorCode
	SetEventNotificationMode func(mode Mode, kind EventKind, thread Thread) ErrorCode
	GetThreadInfo            func(thread Thread, info *ThreadInfo) ErrorCode
	GetAllThreads            func(threads *[]Thread) ErrorCode
	Deallocate               func(mem *byte) ErrorCode
}

// EventCallbacks mirrors the bridged slots of jvmtiEventCallbacks. Each slot
// has the exact argument list of the corresponding JVMTI callback; a nil slot
// means no callback is installed and the VM sends no event for that kind.
// The table is copied by SetEventCallbacks.
type EventCallbacks struct {
	VMInit                  func(env *Env, jni JNIEnv, thread Thread)
	VMDeath                 func(env *Env, jni JNIEnv)
	ThreadStart             func(env *Env, jni JNIEnv, thread Thread)
	ThreadEnd               func(env *Env, jni JNIEnv, thread Thread)
	ClassLoad               func(env *Env, jni JNIEnv, thread Thread, klass Class)
	ClassPrepare            func(env *Env, jni JNIEnv, thread Thread, klass Class)
	VMStart                 func(env *Env, jni JNIEnv)
	Exception               func(env *Env, jni JNIEnv, thread Thread, method MethodID, location Location, exception Object, catchMethod MethodID, catchLocation Location)
	ExceptionCatch          func(env *Env, jni JNIEnv, thread Thread, method MethodID, location Location, exception Object)
	FieldAccess             func(env *Env, jni JNIEnv, thread Thread, method MethodID, location Location, fieldClass Class, object Object, field FieldID)
	FieldModification       func(env *Env, jni JNIEnv, thread Thread, method MethodID, location Location, fieldClass Class, object Object, field FieldID, signatureType byte, newValue Value)
	MethodEntry             func(env *Env, jni JNIEnv, thread Thread, method MethodID)
	MethodExit              func(env *Env, jni JNIEnv, thread Thread, method MethodID, wasPoppedByException uint8, returnValue Value)
	MonitorWait             func(env *Env, jni JNIEnv, thread Thread, object Object, timeout int64)
	MonitorWaited           func(env *Env, jni JNIEnv, thread Thread, object Object, timedOut uint8)
	MonitorContendedEnter   func(env *Env, jni JNIEnv, thread Thread, object Object)
	MonitorContendedEntered func(env *Env, jni JNIEnv, thread Thread, object Object)
	GarbageCollectionStart  func(env *Env)
	GarbageCollectionFinish func(env *Env)
	ObjectFree              func(env *Env, tag int64)
	VMObjectAlloc           func(env *Env, jni JNIEnv, thread Thread, object Object, class Class, size int64)
}
