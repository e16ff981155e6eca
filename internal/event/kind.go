package event

import (
	"fmt"
	"strings"

	"github.com/sureshkrishnan-v/jvmpulse/internal/native"
)

// Kind names a VM event. Values are the jvmtiEvent numbers, so a Kind
// converts to and from native.EventKind without a lookup.
type Kind int32

const (
	KindUnknown             Kind = 0
	VMInit                  Kind = Kind(native.EventVMInit)
	VMDeath                 Kind = Kind(native.EventVMDeath)
	ThreadStart             Kind = Kind(native.EventThreadStart)
	ThreadEnd               Kind = Kind(native.EventThreadEnd)
	ClassFileLoadHook       Kind = Kind(native.EventClassFileLoadHook)
	ClassLoad               Kind = Kind(native.EventClassLoad)
	ClassPrepare            Kind = Kind(native.EventClassPrepare)
	VMStart                 Kind = Kind(native.EventVMStart)
	Exception               Kind = Kind(native.EventException)
	ExceptionCatch          Kind = Kind(native.EventExceptionCatch)
	SingleStep              Kind = Kind(native.EventSingleStep)
	FramePop                Kind = Kind(native.EventFramePop)
	Breakpoint              Kind = Kind(native.EventBreakpoint)
	FieldAccess             Kind = Kind(native.EventFieldAccess)
	FieldModification       Kind = Kind(native.EventFieldModification)
	MethodEntry             Kind = Kind(native.EventMethodEntry)
	MethodExit              Kind = Kind(native.EventMethodExit)
	NativeMethodBind        Kind = Kind(native.EventNativeMethodBind)
	CompiledMethodLoad      Kind = Kind(native.EventCompiledMethodLoad)
	CompiledMethodUnload    Kind = Kind(native.EventCompiledMethodUnload)
	DynamicCodeGenerated    Kind = Kind(native.EventDynamicCodeGenerated)
	DataDumpRequest         Kind = Kind(native.EventDataDumpRequest)
	MonitorWait             Kind = Kind(native.EventMonitorWait)
	MonitorWaited           Kind = Kind(native.EventMonitorWaited)
	MonitorContendedEnter   Kind = Kind(native.EventMonitorContendedEnter)
	MonitorContendedEntered Kind = Kind(native.EventMonitorContendedEntered)
	ResourceExhausted       Kind = Kind(native.EventResourceExhausted)
	GarbageCollectionStart  Kind = Kind(native.EventGarbageCollectionStart)
	GarbageCollectionFinish Kind = Kind(native.EventGarbageCollectionFinish)
	ObjectFree              Kind = Kind(native.EventObjectFree)
	VMObjectAlloc           Kind = Kind(native.EventVMObjectAlloc)
)

var kindNames = map[Kind]string{
	VMInit:                  "vm_init",
	VMDeath:                 "vm_death",
	ThreadStart:             "thread_start",
	ThreadEnd:               "thread_end",
	ClassFileLoadHook:       "class_file_load_hook",
	ClassLoad:               "class_load",
	ClassPrepare:            "class_prepare",
	VMStart:                 "vm_start",
	Exception:               "exception",
	ExceptionCatch:          "exception_catch",
	SingleStep:              "single_step",
	FramePop:                "frame_pop",
	Breakpoint:              "breakpoint",
	FieldAccess:             "field_access",
	FieldModification:       "field_modification",
	MethodEntry:             "method_entry",
	MethodExit:              "method_exit",
	NativeMethodBind:        "native_method_bind",
	CompiledMethodLoad:      "compiled_method_load",
	CompiledMethodUnload:    "compiled_method_unload",
	DynamicCodeGenerated:    "dynamic_code_generated",
	DataDumpRequest:         "data_dump_request",
	MonitorWait:             "monitor_wait",
	MonitorWaited:           "monitor_waited",
	MonitorContendedEnter:   "monitor_contended_enter",
	MonitorContendedEntered: "monitor_contended_entered",
	ResourceExhausted:       "resource_exhausted",
	GarbageCollectionStart:  "garbage_collection_start",
	GarbageCollectionFinish: "garbage_collection_finish",
	ObjectFree:              "object_free",
	VMObjectAlloc:           "vm_object_alloc",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

// bridged lists the kinds that have a typed callback slot, in native
// callback-table order.
var bridged = []Kind{
	VMInit, VMDeath, ThreadStart, ThreadEnd, ClassLoad, ClassPrepare, VMStart,
	Exception, ExceptionCatch, FieldAccess, FieldModification,
	MethodEntry, MethodExit,
	MonitorWait, MonitorWaited, MonitorContendedEnter, MonitorContendedEntered,
	GarbageCollectionStart, GarbageCollectionFinish, ObjectFree, VMObjectAlloc,
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether k is a defined event number.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Native returns the jvmtiEvent number.
func (k Kind) Native() native.EventKind { return native.EventKind(k) }

// Bridged reports whether k has a typed callback slot.
func (k Kind) Bridged() bool {
	for _, b := range bridged {
		if b == k {
			return true
		}
	}
	return false
}

// ParseKind resolves a snake_case event name. Matching is case-insensitive
// and accepts '-' in place of '_'.
func ParseKind(s string) (Kind, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if k, ok := kindsByName[name]; ok {
		return k, nil
	}
	return KindUnknown, fmt.Errorf("unknown event kind %q", s)
}

// ParseKinds resolves a list of event names, reporting the first unknown one.
func ParseKinds(names []string) ([]Kind, error) {
	kinds := make([]Kind, 0, len(names))
	for _, n := range names {
		k, err := ParseKind(n)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// BridgedKinds returns every kind with a typed callback slot.
func BridgedKinds() []Kind {
	return append([]Kind(nil), bridged...)
}
