// Package nativetest provides an in-process simulated VM that implements the
// native.Env function table. It behaves like a JVMTI environment at the
// boundary: AddCapabilities only grants potential capabilities, events are
// delivered only when enabled and only to populated callback slots, and thread
// names come back as NUL-terminated buffers that must be deallocated.
package nativetest

import (
	"sync"

	"github.com/sureshkrishnan-v/jvmpulse/internal/native"
)

// Function-table slot names accepted by WithoutFunction and FailNext.
const (
	FnGetVersionNumber         = "GetVersionNumber"
	FnGetCapabilities          = "GetCapabilities"
	FnGetPotentialCapabilities = "GetPotentialCapabilities"
	FnAddCapabilities          = "AddCapabilities"
	FnRelinquishCapabilities   = "RelinquishCapabilities"
	FnSetEventCallbacks        = "SetEventCallbacks"
	FnSetEventNotificationMode = "SetEventNotificationMode"
	FnGetThreadInfo            = "GetThreadInfo"
	FnGetAllThreads            = "GetAllThreads"
	FnDeallocate               = "Deallocate"
)

// JVMTI status codes the simulator produces.
const (
	errInvalidThread       native.ErrorCode = 10
	errNotAvailable        native.ErrorCode = 98
	errMustPossess         native.ErrorCode = 99
	errNullPointer         native.ErrorCode = 100
	errInvalidEventType    native.ErrorCode = 102
	errIllegalArgument     native.ErrorCode = 103
	defaultVersion         uint32           = 0x30150000 // 21.0.0
	defaultThreadPriority  int32            = 5
	firstSyntheticThreadID native.Thread    = 0x1000
)

// ThreadRecord describes a simulated thread.
type ThreadRecord struct {
	Name     string
	Priority int32
	Daemon   bool
	// NoName makes GetThreadInfo return a nil name buffer.
	NoName bool
}

// VM is a simulated JVMTI environment. It is safe for concurrent use.
type VM struct {
	mu        sync.Mutex
	version   uint32
	potential native.Capabilities
	current   native.Capabilities
	callbacks *native.EventCallbacks
	modes     map[native.EventKind]bool
	threads   map[native.Thread]ThreadRecord
	order     []native.Thread
	failNext  map[string]native.ErrorCode
	absent    map[string]bool
	live      map[*byte]bool
	freed     int
	nextID    native.Thread
	env       *native.Env
}

// Option configures a VM.
type Option func(*VM)

// WithVersion sets the version word returned by GetVersionNumber.
func WithVersion(v uint32) Option {
	return func(vm *VM) { vm.version = v }
}

// WithPotential sets the capabilities the VM is willing to grant.
// By default every defined capability is potentially available.
func WithPotential(c native.Capabilities) Option {
	return func(vm *VM) { vm.potential = c }
}

// WithoutFunction leaves the named function-table slot empty.
func WithoutFunction(name string) Option {
	return func(vm *VM) { vm.absent[name] = true }
}

// New creates a simulated VM.
func New(opts ...Option) *VM {
	vm := &VM{
		version:  defaultVersion,
		modes:    make(map[native.EventKind]bool),
		threads:  make(map[native.Thread]ThreadRecord),
		failNext: make(map[string]native.ErrorCode),
		absent:   make(map[string]bool),
		live:     make(map[*byte]bool),
		nextID:   firstSyntheticThreadID,
	}
	for i := 0; i < native.CapabilityBits; i++ {
		vm.potential.SetBit(i, true)
	}
	for _, opt := range opts {
		opt(vm)
	}
	vm.env = vm.buildEnv()
	return vm
}

// Env returns the environment handle backed by this VM.
func (vm *VM) Env() *native.Env { return vm.env }

// FailNext makes the next call to the named function return code without
// side effects.
func (vm *VM) FailNext(fn string, code native.ErrorCode) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.failNext[fn] = code
}

// AddThread registers a thread and returns its handle.
func (vm *VM) AddThread(rec ThreadRecord) native.Thread {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	h := vm.nextID
	vm.nextID += 0x10
	vm.threads[h] = rec
	vm.order = append(vm.order, h)
	return h
}

// Enabled reports whether notification is enabled for kind.
func (vm *VM) Enabled(kind native.EventKind) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.modes[kind]
}

// Current returns the capabilities currently possessed.
func (vm *VM) Current() native.Capabilities {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.current
}

// Installed returns a copy of the installed callback table, or nil if
// SetEventCallbacks was never called successfully.
func (vm *VM) Installed() *native.EventCallbacks {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.callbacks == nil {
		return nil
	}
	cp := *vm.callbacks
	return &cp
}

// Outstanding returns the number of name buffers handed out by GetThreadInfo
// and not yet deallocated.
func (vm *VM) Outstanding() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return len(vm.live)
}

// Freed returns the number of successful Deallocate calls.
func (vm *VM) Freed() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.freed
}

// takeFailure reports an injected failure for fn. Caller holds vm.mu.
func (vm *VM) takeFailure(fn string) (native.ErrorCode, bool) {
	code, ok := vm.failNext[fn]
	if ok {
		delete(vm.failNext, fn)
	}
	return code, ok
}

func (vm *VM) buildEnv() *native.Env {
	env := &native.Env{
		GetVersionNumber:         vm.getVersionNumber,
		GetCapabilities:          vm.getCapabilities,
		GetPotentialCapabilities: vm.getPotentialCapabilities,
		AddCapabilities:          vm.addCapabilities,
		RelinquishCapabilities:   vm.relinquishCapabilities,
		SetEventCallbacks:        vm.setEventCallbacks,
		SetEventNotificationMode: vm.setEventNotificationMode,
		GetThreadInfo:            vm.getThreadInfo,
		GetAllThreads:            vm.getAllThreads,
		Deallocate:               vm.deallocate,
	}
	for name := range vm.absent {
		switch name {
		case FnGetVersionNumber:
			env.GetVersionNumber = nil
		case FnGetCapabilities:
			env.GetCapabilities = nil
		case FnGetPotentialCapabilities:
			env.GetPotentialCapabilities = nil
		case FnAddCapabilities:
			env.AddCapabilities = nil
		case FnRelinquishCapabilities:
			env.RelinquishCapabilities = nil
		case FnSetEventCallbacks:
			env.SetEventCallbacks = nil
		case FnSetEventNotificationMode:
			env.SetEventNotificationMode = nil
		case FnGetThreadInfo:
			env.GetThreadInfo = nil
		case FnGetAllThreads:
			env.GetAllThreads = nil
		case FnDeallocate:
			env.Deallocate = nil
		}
	}
	return env
}

func (vm *VM) getVersionNumber(version *int32) native.ErrorCode {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if code, ok := vm.takeFailure(FnGetVersionNumber); ok {
		return code
	}
	if version == nil {
		return errNullPointer
	}
	*version = int32(vm.version)
	return native.ErrNone
}

func (vm *VM) getCapabilities(caps *native.Capabilities) native.ErrorCode {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if code, ok := vm.takeFailure(FnGetCapabilities); ok {
		return code
	}
	if caps == nil {
		return errNullPointer
	}
	*caps = vm.current
	return native.ErrNone
}

func (vm *VM) getPotentialCapabilities(caps *native.Capabilities) native.ErrorCode {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if code, ok := vm.takeFailure(FnGetPotentialCapabilities); ok {
		return code
	}
	if caps == nil {
		return errNullPointer
	}
	for i := range caps {
		caps[i] = vm.potential[i] | vm.current[i]
	}
	return native.ErrNone
}

func (vm *VM) addCapabilities(caps *native.Capabilities) native.ErrorCode {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if code, ok := vm.takeFailure(FnAddCapabilities); ok {
		return code
	}
	if caps == nil {
		return errNullPointer
	}
	for i := range caps {
		if caps[i]&^(vm.potential[i]|vm.current[i]) != 0 {
			return errNotAvailable
		}
	}
	for i := range caps {
		vm.current[i] |= caps[i]
	}
	return native.ErrNone
}

func (vm *VM) relinquishCapabilities(caps *native.Capabilities) native.ErrorCode {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if code, ok := vm.takeFailure(FnRelinquishCapabilities); ok {
		return code
	}
	if caps == nil {
		return errNullPointer
	}
	for i := range caps {
		vm.current[i] &^= caps[i]
	}
	return native.ErrNone
}

func (vm *VM) setEventCallbacks(callbacks *native.EventCallbacks) native.ErrorCode {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if code, ok := vm.takeFailure(FnSetEventCallbacks); ok {
		return code
	}
	if callbacks == nil {
		vm.callbacks = nil
		return native.ErrNone
	}
	cp := *callbacks
	vm.callbacks = &cp
	return native.ErrNone
}

func (vm *VM) setEventNotificationMode(mode native.Mode, kind native.EventKind, thread native.Thread) native.ErrorCode {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if code, ok := vm.takeFailure(FnSetEventNotificationMode); ok {
		return code
	}
	if !kind.Valid() {
		return errInvalidEventType
	}
	if mode != native.ModeEnable && mode != native.ModeDisable {
		return errIllegalArgument
	}
	if thread != native.NullThread {
		if _, ok := vm.threads[thread]; !ok {
			return errInvalidThread
		}
	}
	if bit, ok := native.RequiredCapability(kind); ok && mode == native.ModeEnable && !vm.current.Bit(bit) {
		return errMustPossess
	}
	vm.modes[kind] = mode == native.ModeEnable
	return native.ErrNone
}

func (vm *VM) getThreadInfo(thread native.Thread, info *native.ThreadInfo) native.ErrorCode {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if code, ok := vm.takeFailure(FnGetThreadInfo); ok {
		return code
	}
	if info == nil {
		return errNullPointer
	}
	rec, ok := vm.threads[thread]
	if !ok {
		return errInvalidThread
	}
	*info = native.ThreadInfo{
		Priority: rec.Priority,
	}
	if info.Priority == 0 {
		info.Priority = defaultThreadPriority
	}
	if rec.Daemon {
		info.IsDaemon = 1
	}
	if !rec.NoName {
		buf := append([]byte(rec.Name), 0)
		info.Name = &buf[0]
		vm.live[info.Name] = true
	}
	return native.ErrNone
}

func (vm *VM) getAllThreads(threads *[]native.Thread) native.ErrorCode {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if code, ok := vm.takeFailure(FnGetAllThreads); ok {
		return code
	}
	if threads == nil {
		return errNullPointer
	}
	*threads = append([]native.Thread(nil), vm.order...)
	return native.ErrNone
}

func (vm *VM) deallocate(mem *byte) native.ErrorCode {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if code, ok := vm.takeFailure(FnDeallocate); ok {
		return code
	}
	if mem == nil {
		return native.ErrNone
	}
	if !vm.live[mem] {
		return errIllegalArgument
	}
	delete(vm.live, mem)
	vm.freed++
	return native.ErrNone
}

// Fire delivers a native event the way the VM would: only if notification is
// enabled for kind and the installed table has a slot for it. It reports
// whether a callback was invoked.
func (vm *VM) Fire(kind native.EventKind, args Args) bool {
	vm.mu.Lock()
	enabled := vm.modes[kind]
	cb := vm.callbacks
	vm.mu.Unlock()
	if !enabled || cb == nil {
		return false
	}
	return Deliver(vm.env, cb, kind, args)
}
