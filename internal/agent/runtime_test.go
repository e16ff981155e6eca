package agent

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sureshkrishnan-v/jvmpulse/internal/capability"
	"github.com/sureshkrishnan-v/jvmpulse/internal/collector"
	"github.com/sureshkrishnan-v/jvmpulse/internal/config"
	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/environment"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
	"github.com/sureshkrishnan-v/jvmpulse/internal/native"
	"github.com/sureshkrishnan-v/jvmpulse/internal/native/nativetest"
)

type fakeExporter struct {
	events  <-chan *event.Event
	got     atomic.Int64
	stopped atomic.Bool
}

func newFakeExporter(bus *event.Bus) *fakeExporter {
	return &fakeExporter{events: bus.Subscribe("fake")}
}

func (f *fakeExporter) Name() string { return "fake" }

func (f *fakeExporter) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-f.events:
			if !ok {
				return nil
			}
			f.got.Add(1)
			e.Release()
		}
	}
}

func (f *fakeExporter) Stop(context.Context) error {
	f.stopped.Store(true)
	return nil
}

func newRuntime(t *testing.T, cfg *config.Config, opts ...nativetest.Option) (*Runtime, *nativetest.VM, *fakeExporter) {
	t.Helper()
	vm := nativetest.New(opts...)
	vm.AddThread(nativetest.ThreadRecord{Name: "main"})
	rt := NewRuntime(cfg, environment.New(vm.Env(), zap.NewNop()), zap.NewNop())
	for _, c := range collector.All() {
		rt.RegisterCollector(c)
	}
	fx := newFakeExporter(rt.EventBus())
	rt.RegisterExporter(fx)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = rt.Stop(ctx)
	})
	return rt, vm, fx
}

func TestRuntime_StartEnablesCollectors(t *testing.T) {
	rt, vm, fx := newRuntime(t, config.Default())
	require.NoError(t, rt.Start(context.Background()))

	assert.ElementsMatch(t, []string{
		constants.CollectorLifecycle, constants.CollectorThreads, constants.CollectorClasses,
		constants.CollectorExceptions, constants.CollectorMonitors, constants.CollectorGC,
		constants.CollectorAlloc,
	}, rt.Active())

	assert.True(t, vm.Enabled(native.EventThreadStart))
	assert.True(t, vm.Enabled(native.EventMonitorContendedEnter))
	assert.False(t, vm.Enabled(native.EventMethodEntry), "methods collector is off by default")
	assert.False(t, vm.Enabled(native.EventFieldAccess))

	held := capability.FromNative(vm.Current())
	assert.True(t, held.CanGenerateMonitorEvents)
	assert.True(t, held.CanGenerateGarbageCollectionEvents)
	assert.True(t, held.CanGenerateExceptionEvents)
	assert.False(t, held.CanGenerateMethodEntryEvents)

	w := vm.AddThread(nativetest.ThreadRecord{Name: "worker"})
	require.True(t, vm.Fire(native.EventThreadStart, nativetest.Args{Thread: w}))
	require.True(t, vm.Fire(native.EventGarbageCollectionStart, nativetest.Args{}))
	assert.Eventually(t, func() bool { return fx.got.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestRuntime_SkipsCollectorWithoutCapability(t *testing.T) {
	potential := capability.All()
	potential.CanGenerateMonitorEvents = false
	rt, vm, _ := newRuntime(t, config.Default(), nativetest.WithPotential(potential.ToNative()))

	require.NoError(t, rt.Start(context.Background()))
	assert.NotContains(t, rt.Active(), constants.CollectorMonitors)
	assert.Contains(t, rt.Active(), constants.CollectorGC)
	assert.False(t, vm.Enabled(native.EventMonitorWait))
	assert.True(t, vm.Enabled(native.EventGarbageCollectionFinish))
}

func TestRuntime_RequestedCapabilityUnavailable(t *testing.T) {
	potential := capability.All()
	potential.CanTagObjects = false
	cfg := config.Default()
	cfg.Capabilities = []string{"can_tag_objects"}
	rt, vm, _ := newRuntime(t, cfg, nativetest.WithPotential(potential.ToNative()))

	err := rt.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can_tag_objects")
	assert.Nil(t, vm.Installed())
}

func TestRuntime_RequestedCapabilityAdded(t *testing.T) {
	cfg := config.Default()
	cfg.Capabilities = []string{"can_tag_objects"}
	rt, vm, _ := newRuntime(t, cfg)

	require.NoError(t, rt.Start(context.Background()))
	assert.True(t, capability.FromNative(vm.Current()).CanTagObjects)
}

func TestRuntime_NoCollectors(t *testing.T) {
	cfg := config.Default()
	for _, c := range cfg.Collectors {
		c.Enabled = false
	}
	rt, _, _ := newRuntime(t, cfg)
	require.ErrorContains(t, rt.Start(context.Background()), "no collectors")
}

func TestRuntime_EnableFailureRollsBack(t *testing.T) {
	rt, vm, _ := newRuntime(t, config.Default())
	vm.FailNext(nativetest.FnSetEventNotificationMode, 112)

	err := rt.Start(context.Background())
	require.Error(t, err)
	for _, k := range event.BridgedKinds() {
		assert.False(t, vm.Enabled(k.Native()), "%s left enabled", k)
	}
}

func TestRuntime_StopDisablesAndRelinquishes(t *testing.T) {
	rt, vm, fx := newRuntime(t, config.Default())
	require.NoError(t, rt.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rt.Stop(ctx))
	require.NoError(t, rt.Stop(ctx), "second stop is a no-op")

	assert.False(t, vm.Enabled(native.EventThreadStart))
	assert.True(t, capability.FromNative(vm.Current()).IsEmpty())
	assert.True(t, fx.stopped.Load())

	w := vm.AddThread(nativetest.ThreadRecord{Name: "late"})
	assert.False(t, vm.Fire(native.EventThreadStart, nativetest.Args{Thread: w}))
}

func TestRuntime_StopKeepsPreexistingCapabilities(t *testing.T) {
	rt, vm, _ := newRuntime(t, config.Default())
	_, err := rt.Environment().AddCapabilities(capability.Capabilities{CanGenerateMonitorEvents: true})
	require.NoError(t, err)

	require.NoError(t, rt.Start(context.Background()))
	require.NoError(t, rt.Stop(context.Background()))

	held := capability.FromNative(vm.Current())
	assert.Equal(t, capability.Capabilities{CanGenerateMonitorEvents: true}, held)
}

func TestRuntime_RunReturnsOnVMDeath(t *testing.T) {
	rt, vm, _ := newRuntime(t, config.Default())

	done := make(chan error, 1)
	go func() { done <- rt.Run(context.Background()) }()

	require.Eventually(t, func() bool { return vm.Enabled(native.EventVMDeath) }, time.Second, 5*time.Millisecond)
	require.True(t, vm.Fire(native.EventVMDeath, nativetest.Args{}))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after VM death")
	}
	select {
	case <-rt.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestRuntime_RunReleasesAfterStartFailure(t *testing.T) {
	rt, vm, fx := newRuntime(t, config.Default())
	vm.FailNext(nativetest.FnSetEventNotificationMode, 112)

	require.Error(t, rt.Run(context.Background()))

	assert.True(t, capability.FromNative(vm.Current()).IsEmpty(), "added capabilities relinquished")
	installed := vm.Installed()
	require.NotNil(t, installed)
	assert.Nil(t, installed.ThreadStart)
	assert.Nil(t, installed.VMDeath)
	assert.True(t, fx.stopped.Load())
}

func TestRuntime_VMDeathReleasesNativeStateSynchronously(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	vm := nativetest.New()
	vm.AddThread(nativetest.ThreadRecord{Name: "main"})
	rt := NewRuntime(config.Default(), environment.New(vm.Env(), zap.NewNop()), zap.New(core))
	for _, c := range collector.All() {
		rt.RegisterCollector(c)
	}
	require.NoError(t, rt.Start(context.Background()))

	require.True(t, vm.Fire(native.EventVMDeath, nativetest.Args{}))

	// Released before the VMDeath callback returned to the VM.
	assert.False(t, vm.Enabled(native.EventVMDeath))
	assert.False(t, vm.Enabled(native.EventThreadStart))
	assert.True(t, capability.FromNative(vm.Current()).IsEmpty())
	assert.Nil(t, vm.Installed().VMDeath)

	// Stop after death makes no further JVMTI calls.
	vm.FailNext(nativetest.FnSetEventCallbacks, 112)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rt.Stop(ctx))
	assert.Zero(t, logs.FilterMessage("Error clearing callbacks").Len())
}

func TestRuntime_RunReturnsOnCancel(t *testing.T) {
	rt, vm, _ := newRuntime(t, config.Default())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()
	require.Eventually(t, func() bool { return vm.Enabled(native.EventVMDeath) }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRuntime_RateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Performance.MaxEventsPerSecond = 1
	rt, vm, fx := newRuntime(t, cfg)
	require.NoError(t, rt.Start(context.Background()))

	th := vm.AddThread(nativetest.ThreadRecord{Name: "t"})
	for range 10 {
		vm.Fire(native.EventClassLoad, nativetest.Args{Thread: th, Class: 1})
	}
	assert.Eventually(t, func() bool { return fx.got.Load() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), fx.got.Load())
}

func TestRequiredCapabilities(t *testing.T) {
	got := RequiredCapabilities([]event.Kind{event.ThreadStart, event.MethodEntry, event.MethodExit})
	assert.Equal(t, capability.Capabilities{
		CanGenerateMethodEntryEvents: true,
		CanGenerateMethodExitEvents:  true,
	}, got)
}
