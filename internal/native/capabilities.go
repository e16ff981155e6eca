package native

// Capabilities mirrors jvmtiCapabilities: 128 one-bit fields packed LSB first
// into four 32-bit words. Bits at or above CapabilityBits are reserved.
type Capabilities [4]uint32

// CapabilitiesSize is sizeof(jvmtiCapabilities).
const CapabilitiesSize = 16

// Bit positions of the defined capabilities, in jvmti.h declaration order.
const (
	CapCanTagObjects = iota
	CapCanGenerateFieldModificationEvents
	CapCanGenerateFieldAccessEvents
	CapCanGetBytecodes
	CapCanGetSyntheticAttribute
	CapCanGetOwnedMonitorInfo
	CapCanGetCurrentContendedMonitor
	CapCanGetMonitorInfo
	CapCanPopFrame
	CapCanRedefineClasses
	CapCanSignalThread
	CapCanGetSourceFileName
	CapCanGetLineNumbers
	CapCanGetSourceDebugExtension
	CapCanAccessLocalVariables
	CapCanMaintainOriginalMethodOrder
	CapCanGenerateSingleStepEvents
	CapCanGenerateExceptionEvents
	CapCanGenerateFramePopEvents
	CapCanGenerateBreakpointEvents
	CapCanSuspend
	CapCanRedefineAnyClass
	CapCanGetCurrentThreadCPUTime
	CapCanGetThreadCPUTime
	CapCanGenerateMethodEntryEvents
	CapCanGenerateMethodExitEvents
	CapCanGenerateAllClassHookEvents
	CapCanGenerateCompiledMethodLoadEvents
	CapCanGenerateMonitorEvents
	CapCanGenerateVMObjectAllocEvents
	CapCanGenerateNativeMethodBindEvents
	CapCanGenerateGarbageCollectionEvents
	CapCanGenerateObjectFreeEvents
	CapCanForceEarlyReturn
	CapCanGetOwnedMonitorStackDepthInfo
	CapCanGetConstantPool
	CapCanSetNativeMethodPrefix
	CapCanRetransformClasses
	CapCanRetransformAnyClass
	CapCanGenerateResourceExhaustionHeapEvents
	CapCanGenerateResourceExhaustionThreadsEvents
	CapCanGenerateEarlyVMStart
	CapCanGenerateEarlyClassHookEvents
	CapCanGenerateSampledObjectAllocEvents
	CapCanSupportVirtualThreads

	// CapabilityBits is the number of defined capability bits.
	CapabilityBits
)

// Bit reports whether capability bit i is set.
func (c *Capabilities) Bit(i int) bool {
	return c[i/32]&(1<<(uint(i)%32)) != 0
}

// SetBit sets or clears capability bit i.
func (c *Capabilities) SetBit(i int, on bool) {
	mask := uint32(1) << (uint(i) % 32)
	if on {
		c[i/32] |= mask
	} else {
		c[i/32] &^= mask
	}
}

// RequiredCapability returns the capability bit that must be possessed before
// notification for kind can be enabled. ok is false for events that need no
// capability.
func RequiredCapability(kind EventKind) (bit int, ok bool) {
	bit, ok = requiredCapability[kind]
	return bit, ok
}

var requiredCapability = map[EventKind]int{
	EventException:               CapCanGenerateExceptionEvents,
	EventExceptionCatch:          CapCanGenerateExceptionEvents,
	EventSingleStep:              CapCanGenerateSingleStepEvents,
	EventFramePop:                CapCanGenerateFramePopEvents,
	EventBreakpoint:              CapCanGenerateBreakpointEvents,
	EventFieldAccess:             CapCanGenerateFieldAccessEvents,
	EventFieldModification:       CapCanGenerateFieldModificationEvents,
	EventMethodEntry:             CapCanGenerateMethodEntryEvents,
	EventMethodExit:              CapCanGenerateMethodExitEvents,
	EventNativeMethodBind:        CapCanGenerateNativeMethodBindEvents,
	EventCompiledMethodLoad:      CapCanGenerateCompiledMethodLoadEvents,
	EventCompiledMethodUnload:    CapCanGenerateCompiledMethodLoadEvents,
	EventMonitorWait:             CapCanGenerateMonitorEvents,
	EventMonitorWaited:           CapCanGenerateMonitorEvents,
	EventMonitorContendedEnter:   CapCanGenerateMonitorEvents,
	EventMonitorContendedEntered: CapCanGenerateMonitorEvents,
	EventGarbageCollectionStart:  CapCanGenerateGarbageCollectionEvents,
	EventGarbageCollectionFinish: CapCanGenerateGarbageCollectionEvents,
	EventObjectFree:              CapCanGenerateObjectFreeEvents,
	EventVMObjectAlloc:           CapCanGenerateVMObjectAllocEvents,
}
