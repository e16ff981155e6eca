// Package capability converts between the typed JVMTI capability set and the
// native jvmtiCapabilities bitfield.
package capability

import (
	"fmt"
	"sort"

	"github.com/sureshkrishnan-v/jvmpulse/internal/native"
)

// Capabilities is the set of JVMTI capabilities, one flag per defined bit.
// The zero value has every flag false.
type Capabilities struct {
	CanTagObjects                              bool `yaml:"can_tag_objects"`
	CanGenerateFieldModificationEvents         bool `yaml:"can_generate_field_modification_events"`
	CanGenerateFieldAccessEvents               bool `yaml:"can_generate_field_access_events"`
	CanGetBytecodes                            bool `yaml:"can_get_bytecodes"`
	CanGetSyntheticAttribute                   bool `yaml:"can_get_synthetic_attribute"`
	CanGetOwnedMonitorInfo                     bool `yaml:"can_get_owned_monitor_info"`
	CanGetCurrentContendedMonitor              bool `yaml:"can_get_current_contended_monitor"`
	CanGetMonitorInfo                          bool `yaml:"can_get_monitor_info"`
	CanPopFrame                                bool `yaml:"can_pop_frame"`
	CanRedefineClasses                         bool `yaml:"can_redefine_classes"`
	CanSignalThread                            bool `yaml:"can_signal_thread"`
	CanGetSourceFileName                       bool `yaml:"can_get_source_file_name"`
	CanGetLineNumbers                          bool `yaml:"can_get_line_numbers"`
	CanGetSourceDebugExtension                 bool `yaml:"can_get_source_debug_extension"`
	CanAccessLocalVariables                    bool `yaml:"can_access_local_variables"`
	CanMaintainOriginalMethodOrder             bool `yaml:"can_maintain_original_method_order"`
	CanGenerateSingleStepEvents                bool `yaml:"can_generate_single_step_events"`
	CanGenerateExceptionEvents                 bool `yaml:"can_generate_exception_events"`
	CanGenerateFramePopEvents                  bool `yaml:"can_generate_frame_pop_events"`
	CanGenerateBreakpointEvents                bool `yaml:"can_generate_breakpoint_events"`
	CanSuspend                                 bool `yaml:"can_suspend"`
	CanRedefineAnyClass                        bool `yaml:"can_redefine_any_class"`
	CanGetCurrentThreadCPUTime                 bool `yaml:"can_get_current_thread_cpu_time"`
	CanGetThreadCPUTime                        bool `yaml:"can_get_thread_cpu_time"`
	CanGenerateMethodEntryEvents               bool `yaml:"can_generate_method_entry_events"`
	CanGenerateMethodExitEvents                bool `yaml:"can_generate_method_exit_events"`
	CanGenerateAllClassHookEvents              bool `yaml:"can_generate_all_class_hook_events"`
	CanGenerateCompiledMethodLoadEvents        bool `yaml:"can_generate_compiled_method_load_events"`
	CanGenerateMonitorEvents                   bool `yaml:"can_generate_monitor_events"`
	CanGenerateVMObjectAllocEvents             bool `yaml:"can_generate_vm_object_alloc_events"`
	CanGenerateNativeMethodBindEvents          bool `yaml:"can_generate_native_method_bind_events"`
	CanGenerateGarbageCollectionEvents         bool `yaml:"can_generate_garbage_collection_events"`
	CanGenerateObjectFreeEvents                bool `yaml:"can_generate_object_free_events"`
	CanForceEarlyReturn                        bool `yaml:"can_force_early_return"`
	CanGetOwnedMonitorStackDepthInfo           bool `yaml:"can_get_owned_monitor_stack_depth_info"`
	CanGetConstantPool                         bool `yaml:"can_get_constant_pool"`
	CanSetNativeMethodPrefix                   bool `yaml:"can_set_native_method_prefix"`
	CanRetransformClasses                      bool `yaml:"can_retransform_classes"`
	CanRetransformAnyClass                     bool `yaml:"can_retransform_any_class"`
	CanGenerateResourceExhaustionHeapEvents    bool `yaml:"can_generate_resource_exhaustion_heap_events"`
	CanGenerateResourceExhaustionThreadsEvents bool `yaml:"can_generate_resource_exhaustion_threads_events"`
	CanGenerateEarlyVMStart                    bool `yaml:"can_generate_early_vmstart"`
	CanGenerateEarlyClassHookEvents            bool `yaml:"can_generate_early_class_hook_events"`
	CanGenerateSampledObjectAllocEvents        bool `yaml:"can_generate_sampled_object_alloc_events"`
	CanSupportVirtualThreads                   bool `yaml:"can_support_virtual_threads"`
}

// flag binds a capability name to its native bit and its field.
type flag struct {
	name  string
	bit   int
	field func(c *Capabilities) *bool
}

// flags lists every defined capability in native bit order.
var flags = [...]flag{
	{"can_tag_objects", native.CapCanTagObjects, func(c *Capabilities) *bool { return &c.CanTagObjects }},
	{"can_generate_field_modification_events", native.CapCanGenerateFieldModificationEvents, func(c *Capabilities) *bool { return &c.CanGenerateFieldModificationEvents }},
	{"can_generate_field_access_events", native.CapCanGenerateFieldAccessEvents, func(c *Capabilities) *bool { return &c.CanGenerateFieldAccessEvents }},
	{"can_get_bytecodes", native.CapCanGetBytecodes, func(c *Capabilities) *bool { return &c.CanGetBytecodes }},
	{"can_get_synthetic_attribute", native.CapCanGetSyntheticAttribute, func(c *Capabilities) *bool { return &c.CanGetSyntheticAttribute }},
	{"can_get_owned_monitor_info", native.CapCanGetOwnedMonitorInfo, func(c *Capabilities) *bool { return &c.CanGetOwnedMonitorInfo }},
	{"can_get_current_contended_monitor", native.CapCanGetCurrentContendedMonitor, func(c *Capabilities) *bool { return &c.CanGetCurrentContendedMonitor }},
	{"can_get_monitor_info", native.CapCanGetMonitorInfo, func(c *Capabilities) *bool { return &c.CanGetMonitorInfo }},
	{"can_pop_frame", native.CapCanPopFrame, func(c *Capabilities) *bool { return &c.CanPopFrame }},
	{"can_redefine_classes", native.CapCanRedefineClasses, func(c *Capabilities) *bool { return &c.CanRedefineClasses }},
	{"can_signal_thread", native.CapCanSignalThread, func(c *Capabilities) *bool { return &c.CanSignalThread }},
	{"can_get_source_file_name", native.CapCanGetSourceFileName, func(c *Capabilities) *bool { return &c.CanGetSourceFileName }},
	{"can_get_line_numbers", native.CapCanGetLineNumbers, func(c *Capabilities) *bool { return &c.CanGetLineNumbers }},
	{"can_get_source_debug_extension", native.CapCanGetSourceDebugExtension, func(c *Capabilities) *bool { return &c.CanGetSourceDebugExtension }},
	{"can_access_local_variables", native.CapCanAccessLocalVariables, func(c *Capabilities) *bool { return &c.CanAccessLocalVariables }},
	{"can_maintain_original_method_order", native.CapCanMaintainOriginalMethodOrder, func(c *Capabilities) *bool { return &c.CanMaintainOriginalMethodOrder }},
	{"can_generate_single_step_events", native.CapCanGenerateSingleStepEvents, func(c *Capabilities) *bool { return &c.CanGenerateSingleStepEvents }},
	{"can_generate_exception_events", native.CapCanGenerateExceptionEvents, func(c *Capabilities) *bool { return &c.CanGenerateExceptionEvents }},
	{"can_generate_frame_pop_events", native.CapCanGenerateFramePopEvents, func(c *Capabilities) *bool { return &c.CanGenerateFramePopEvents }},
	{"can_generate_breakpoint_events", native.CapCanGenerateBreakpointEvents, func(c *Capabilities) *bool { return &c.CanGenerateBreakpointEvents }},
	{"can_suspend", native.CapCanSuspend, func(c *Capabilities) *bool { return &c.CanSuspend }},
	{"can_redefine_any_class", native.CapCanRedefineAnyClass, func(c *Capabilities) *bool { return &c.CanRedefineAnyClass }},
	{"can_get_current_thread_cpu_time", native.CapCanGetCurrentThreadCPUTime, func(c *Capabilities) *bool { return &c.CanGetCurrentThreadCPUTime }},
	{"can_get_thread_cpu_time", native.CapCanGetThreadCPUTime, func(c *Capabilities) *bool { return &c.CanGetThreadCPUTime }},
	{"can_generate_method_entry_events", native.CapCanGenerateMethodEntryEvents, func(c *Capabilities) *bool { return &c.CanGenerateMethodEntryEvents }},
	{"can_generate_method_exit_events", native.CapCanGenerateMethodExitEvents, func(c *Capabilities) *bool { return &c.CanGenerateMethodExitEvents }},
	{"can_generate_all_class_hook_events", native.CapCanGenerateAllClassHookEvents, func(c *Capabilities) *bool { return &c.CanGenerateAllClassHookEvents }},
	{"can_generate_compiled_method_load_events", native.CapCanGenerateCompiledMethodLoadEvents, func(c *Capabilities) *bool { return &c.CanGenerateCompiledMethodLoadEvents }},
	{"can_generate_monitor_events", native.CapCanGenerateMonitorEvents, func(c *Capabilities) *bool { return &c.CanGenerateMonitorEvents }},
	{"can_generate_vm_object_alloc_events", native.CapCanGenerateVMObjectAllocEvents, func(c *Capabilities) *bool { return &c.CanGenerateVMObjectAllocEvents }},
	{"can_generate_native_method_bind_events", native.CapCanGenerateNativeMethodBindEvents, func(c *Capabilities) *bool { return &c.CanGenerateNativeMethodBindEvents }},
	{"can_generate_garbage_collection_events", native.CapCanGenerateGarbageCollectionEvents, func(c *Capabilities) *bool { return &c.CanGenerateGarbageCollectionEvents }},
	{"can_generate_object_free_events", native.CapCanGenerateObjectFreeEvents, func(c *Capabilities) *bool { return &c.CanGenerateObjectFreeEvents }},
	{"can_force_early_return", native.CapCanForceEarlyReturn, func(c *Capabilities) *bool { return &c.CanForceEarlyReturn }},
	{"can_get_owned_monitor_stack_depth_info", native.CapCanGetOwnedMonitorStackDepthInfo, func(c *Capabilities) *bool { return &c.CanGetOwnedMonitorStackDepthInfo }},
	{"can_get_constant_pool", native.CapCanGetConstantPool, func(c *Capabilities) *bool { return &c.CanGetConstantPool }},
	{"can_set_native_method_prefix", native.CapCanSetNativeMethodPrefix, func(c *Capabilities) *bool { return &c.CanSetNativeMethodPrefix }},
	{"can_retransform_classes", native.CapCanRetransformClasses, func(c *Capabilities) *bool { return &c.CanRetransformClasses }},
	{"can_retransform_any_class", native.CapCanRetransformAnyClass, func(c *Capabilities) *bool { return &c.CanRetransformAnyClass }},
	{"can_generate_resource_exhaustion_heap_events", native.CapCanGenerateResourceExhaustionHeapEvents, func(c *Capabilities) *bool { return &c.CanGenerateResourceExhaustionHeapEvents }},
	{"can_generate_resource_exhaustion_threads_events", native.CapCanGenerateResourceExhaustionThreadsEvents, func(c *Capabilities) *bool { return &c.CanGenerateResourceExhaustionThreadsEvents }},
	{"can_generate_early_vmstart", native.CapCanGenerateEarlyVMStart, func(c *Capabilities) *bool { return &c.CanGenerateEarlyVMStart }},
	{"can_generate_early_class_hook_events", native.CapCanGenerateEarlyClassHookEvents, func(c *Capabilities) *bool { return &c.CanGenerateEarlyClassHookEvents }},
	{"can_generate_sampled_object_alloc_events", native.CapCanGenerateSampledObjectAllocEvents, func(c *Capabilities) *bool { return &c.CanGenerateSampledObjectAllocEvents }},
	{"can_support_virtual_threads", native.CapCanSupportVirtualThreads, func(c *Capabilities) *bool { return &c.CanSupportVirtualThreads }},
}

var byName = func() map[string]flag {
	m := make(map[string]flag, len(flags))
	for _, f := range flags {
		m[f.name] = f
	}
	return m
}()

// ToNative packs c into the native bitfield. Reserved bits are zero.
func (c Capabilities) ToNative() native.Capabilities {
	var n native.Capabilities
	for _, f := range flags {
		n.SetBit(f.bit, *f.field(&c))
	}
	return n
}

// FromNative unpacks a native bitfield. Reserved bits are ignored.
func FromNative(n native.Capabilities) Capabilities {
	var c Capabilities
	for _, f := range flags {
		*f.field(&c) = n.Bit(f.bit)
	}
	return c
}

// Union returns the field-wise OR of c and other.
func (c Capabilities) Union(other Capabilities) Capabilities {
	a, b := c.ToNative(), other.ToNative()
	for i := range a {
		a[i] |= b[i]
	}
	return FromNative(a)
}

// Contains reports whether every flag set in other is also set in c.
func (c Capabilities) Contains(other Capabilities) bool {
	a, b := c.ToNative(), other.ToNative()
	for i := range a {
		if a[i]&b[i] != b[i] {
			return false
		}
	}
	return true
}

// Missing returns the flags set in want but not in c.
func (c Capabilities) Missing(want Capabilities) Capabilities {
	a, b := c.ToNative(), want.ToNative()
	for i := range a {
		a[i] = b[i] &^ a[i]
	}
	return FromNative(a)
}

// IsEmpty reports whether no flag is set.
func (c Capabilities) IsEmpty() bool {
	return c == Capabilities{}
}

// Names returns the snake_case names of the set flags, sorted.
func (c Capabilities) Names() []string {
	var names []string
	for _, f := range flags {
		if *f.field(&c) {
			names = append(names, f.name)
		}
	}
	sort.Strings(names)
	return names
}

// Set turns on the named flag.
func (c *Capabilities) Set(name string) error {
	f, ok := byName[name]
	if !ok {
		return fmt.Errorf("unknown capability %q", name)
	}
	*f.field(c) = true
	return nil
}

// Has reports whether the named flag is set. Unknown names report false.
func (c Capabilities) Has(name string) bool {
	f, ok := byName[name]
	return ok && *f.field(&c)
}

// Parse builds a capability set from flag names.
func Parse(names []string) (Capabilities, error) {
	var c Capabilities
	for _, n := range names {
		if err := c.Set(n); err != nil {
			return Capabilities{}, err
		}
	}
	return c, nil
}

// Known reports whether name is a defined capability.
func Known(name string) bool {
	_, ok := byName[name]
	return ok
}

// All returns a set with every defined flag on.
func All() Capabilities {
	var c Capabilities
	for _, f := range flags {
		*f.field(&c) = true
	}
	return c
}

// ForEvents returns the capabilities that must be possessed before
// notification can be enabled for every kind in kinds.
func ForEvents(kinds ...native.EventKind) Capabilities {
	var n native.Capabilities
	for _, k := range kinds {
		if bit, ok := native.RequiredCapability(k); ok {
			n.SetBit(bit, true)
		}
	}
	return FromNative(n)
}
