// Package environment is the public operation surface over one JVMTI
// environment. Each method is a single synchronous native call with the result
// translated at the call site; nothing is buffered or retried.
package environment

import (
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/jvmpulse/internal/capability"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
	"github.com/sureshkrishnan-v/jvmpulse/internal/jvmerr"
	"github.com/sureshkrishnan-v/jvmpulse/internal/native"
	"github.com/sureshkrishnan-v/jvmpulse/internal/registry"
	"github.com/sureshkrishnan-v/jvmpulse/internal/thread"
	"github.com/sureshkrishnan-v/jvmpulse/internal/version"
)

// Environment wraps a native environment handle and the callback registry
// whose trampolines are installed into it. The handle is borrowed: it belongs
// to the VM and outlives the Environment.
type Environment struct {
	env      *native.Env
	registry *registry.Registry
	logger   *zap.Logger
}

// New wraps env. A nil logger is replaced by a no-op logger.
func New(env *native.Env, logger *zap.Logger) *Environment {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Environment{
		env:      env,
		registry: registry.New(logger),
		logger:   logger.Named("environment"),
	}
}

// Registry returns the callback registry bound to this environment.
func (e *Environment) Registry() *registry.Registry { return e.registry }

// VersionNumber returns the JVMTI version implemented by the environment.
// The native call has no documented failure; a failure or missing slot is
// logged and yields the zero version.
func (e *Environment) VersionNumber() version.Number {
	if e.env.GetVersionNumber == nil {
		e.logger.Warn("GetVersionNumber not implemented by environment")
		return version.Number{}
	}
	var v int32
	if err := jvmerr.Check(e.env.GetVersionNumber(&v)); err != nil {
		e.logger.Warn("GetVersionNumber failed", zap.Error(err))
		return version.Number{}
	}
	return version.FromUint32(uint32(v))
}

// Capabilities returns a fresh snapshot of the capabilities this environment
// possesses. Like VersionNumber it never fails.
func (e *Environment) Capabilities() capability.Capabilities {
	if e.env.GetCapabilities == nil {
		e.logger.Warn("GetCapabilities not implemented by environment")
		return capability.Capabilities{}
	}
	var n native.Capabilities
	if err := jvmerr.Check(e.env.GetCapabilities(&n)); err != nil {
		e.logger.Warn("GetCapabilities failed", zap.Error(err))
		return capability.Capabilities{}
	}
	return capability.FromNative(n)
}

// PotentialCapabilities returns the capabilities the environment could grant
// in the current phase.
func (e *Environment) PotentialCapabilities() (capability.Capabilities, error) {
	if e.env.GetPotentialCapabilities == nil {
		return capability.Capabilities{}, jvmerr.Unsupported
	}
	var n native.Capabilities
	if err := jvmerr.Check(e.env.GetPotentialCapabilities(&n)); err != nil {
		return capability.Capabilities{}, err
	}
	return capability.FromNative(n), nil
}

// AddCapabilities asks the environment to add every flag set in c to its
// current set, then returns the set the environment actually holds afterwards.
// On failure nothing is added and the error is returned.
func (e *Environment) AddCapabilities(c capability.Capabilities) (capability.Capabilities, error) {
	if e.env.AddCapabilities == nil {
		return capability.Capabilities{}, jvmerr.Unsupported
	}
	n := c.ToNative()
	if err := jvmerr.Check(e.env.AddCapabilities(&n)); err != nil {
		return capability.Capabilities{}, err
	}
	got := e.Capabilities()
	if missing := got.Missing(c); !missing.IsEmpty() {
		e.logger.Warn("environment accepted capabilities it does not report",
			zap.Strings("missing", missing.Names()))
	}
	return got, nil
}

// RelinquishCapabilities gives up every flag set in c.
func (e *Environment) RelinquishCapabilities(c capability.Capabilities) error {
	if e.env.RelinquishCapabilities == nil {
		return jvmerr.Unsupported
	}
	n := c.ToNative()
	return jvmerr.Check(e.env.RelinquishCapabilities(&n))
}

// SetEventCallbacks replaces every registered handler with cb and installs the
// matching trampolines. Kinds without a handler in cb are cleared. If the
// environment rejects the table the previously registered handlers stay in
// effect.
func (e *Environment) SetEventCallbacks(cb event.Callbacks) error {
	if e.env.SetEventCallbacks == nil {
		return jvmerr.Unsupported
	}
	return e.registry.Apply(cb, func(t *native.EventCallbacks) error {
		return jvmerr.Check(e.env.SetEventCallbacks(t))
	})
}

// SetEventNotificationMode enables or disables delivery of kind for all
// threads. It does not touch the registered handlers.
func (e *Environment) SetEventNotificationMode(kind event.Kind, enabled bool) error {
	return e.SetThreadEventNotificationMode(kind, enabled, thread.ID{})
}

// SetThreadEventNotificationMode is SetEventNotificationMode restricted to one
// thread. The zero ID means all threads.
func (e *Environment) SetThreadEventNotificationMode(kind event.Kind, enabled bool, id thread.ID) error {
	if e.env.SetEventNotificationMode == nil {
		return jvmerr.Unsupported
	}
	mode := native.ModeDisable
	if enabled {
		mode = native.ModeEnable
	}
	return jvmerr.Check(e.env.SetEventNotificationMode(mode, kind.Native(), id.Native()))
}

// ThreadInfo returns a snapshot of one thread's metadata.
func (e *Environment) ThreadInfo(id thread.ID) (thread.Thread, error) {
	return thread.Info(e.env, id.Native())
}

// Threads returns a snapshot of every live thread.
func (e *Environment) Threads() ([]thread.Thread, error) {
	return thread.All(e.env)
}
