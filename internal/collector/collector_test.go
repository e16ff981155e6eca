package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sureshkrishnan-v/jvmpulse/internal/capability"
	"github.com/sureshkrishnan-v/jvmpulse/internal/config"
	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/environment"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
	"github.com/sureshkrishnan-v/jvmpulse/internal/native"
	"github.com/sureshkrishnan-v/jvmpulse/internal/native/nativetest"
	"github.com/sureshkrishnan-v/jvmpulse/internal/thread"
)

type harness struct {
	vm  *nativetest.VM
	env *environment.Environment
	bus *event.Bus
	out <-chan *event.Event
}

func newHarness(t *testing.T, opts ...nativetest.Option) *harness {
	t.Helper()
	vm := nativetest.New(opts...)
	bus := event.NewBus(0, zap.NewNop())
	t.Cleanup(bus.Close)
	return &harness{
		vm:  vm,
		env: environment.New(vm.Env(), zap.NewNop()),
		bus: bus,
		out: bus.Subscribe("test"),
	}
}

func (h *harness) deps(rate float64) Dependencies {
	return Dependencies{
		Logger: zap.NewNop(),
		Config: &config.CollectorConfig{Enabled: true, SamplingRate: rate},
		Bus:    h.bus,
		Env:    h.env,
		Node:   "node-a",
	}
}

// install initializes c, installs its handlers and enables its kinds, adding
// whatever capabilities those kinds need.
func (h *harness) install(t *testing.T, c Collector, deps Dependencies) {
	t.Helper()
	require.NoError(t, c.Init(context.Background(), deps))

	kinds := make([]native.EventKind, 0, len(c.Kinds()))
	for _, k := range c.Kinds() {
		kinds = append(kinds, k.Native())
	}
	_, err := h.env.AddCapabilities(capability.ForEvents(kinds...))
	require.NoError(t, err)

	var cb event.Callbacks
	c.Register(&cb)
	require.NoError(t, h.env.SetEventCallbacks(cb))
	for _, k := range c.Kinds() {
		require.NoError(t, h.env.SetEventNotificationMode(k, true))
	}
}

func (h *harness) next(t *testing.T) *event.Event {
	t.Helper()
	select {
	case e := <-h.out:
		t.Cleanup(e.Release)
		return e
	case <-time.After(time.Second):
		t.Fatal("no event published")
		return nil
	}
}

func (h *harness) none(t *testing.T) {
	t.Helper()
	select {
	case e := <-h.out:
		e.Release()
		t.Fatalf("unexpected %s event", e.Kind)
	default:
	}
}

func TestAll_NamesAndKindsAreDistinct(t *testing.T) {
	names := map[string]bool{}
	owner := map[event.Kind]string{}
	for _, c := range All() {
		assert.False(t, names[c.Name()], "duplicate collector %s", c.Name())
		names[c.Name()] = true
		assert.True(t, config.KnownCollector(c.Name()), c.Name())

		var cb event.Callbacks
		c.Register(&cb)
		assert.ElementsMatch(t, c.Kinds(), cb.Kinds(), "%s registers exactly its kinds", c.Name())
		for _, k := range c.Kinds() {
			assert.Empty(t, owner[k], "%s claimed by %s and %s", k, owner[k], c.Name())
			owner[k] = c.Name()
		}
	}
	assert.Len(t, owner, len(event.BridgedKinds()))
}

func TestSampleEvery(t *testing.T) {
	assert.Equal(t, uint64(0), sampleEvery(0))
	assert.Equal(t, uint64(0), sampleEvery(-1))
	assert.Equal(t, uint64(1), sampleEvery(1))
	assert.Equal(t, uint64(1), sampleEvery(2))
	assert.Equal(t, uint64(2), sampleEvery(0.5))
	assert.Equal(t, uint64(100), sampleEvery(0.01))
	assert.Equal(t, uint64(3), sampleEvery(0.3))
}

func TestEmitter_Sampling(t *testing.T) {
	h := newHarness(t)
	var em emitter
	em.init(h.deps(0.25))

	for range 8 {
		em.emit(event.ClassLoad, nil, nil)
	}
	h.next(t)
	h.next(t)
	h.none(t)
}

func TestEmitter_ZeroRateDropsEverything(t *testing.T) {
	h := newHarness(t)
	var em emitter
	em.init(h.deps(0))
	em.emit(event.ClassLoad, nil, nil)
	h.none(t)

	em.emitAlways(event.ClassLoad, nil, nil)
	h.next(t)
}

func TestEmitter_RateLimit(t *testing.T) {
	h := newHarness(t)
	deps := h.deps(1)
	deps.Limiter = rate.NewLimiter(rate.Every(time.Hour), 2)
	var em emitter
	em.init(deps)

	for range 5 {
		em.emit(event.ClassLoad, nil, nil)
	}
	h.next(t)
	h.next(t)
	h.none(t)
}

func TestEmitter_NilConfigIsFullRate(t *testing.T) {
	h := newHarness(t)
	var em emitter
	em.init(Dependencies{Bus: h.bus})
	em.emit(event.ClassLoad, &thread.Thread{Name: "main", IsDaemon: true}, nil)

	e := h.next(t)
	assert.Equal(t, "main", e.ThreadName)
	assert.True(t, e.ThreadDaemon)
}

func TestLifecycle(t *testing.T) {
	h := newHarness(t, nativetest.WithVersion(0x30110002))
	main := h.vm.AddThread(nativetest.ThreadRecord{Name: "main"})

	deaths := 0
	deps := h.deps(0)
	deps.OnVMDeath = func() { deaths++ }
	h.install(t, NewLifecycle(), deps)

	require.True(t, h.vm.Fire(native.EventVMStart, nativetest.Args{}))
	assert.Equal(t, event.VMStart, h.next(t).Kind)

	require.True(t, h.vm.Fire(native.EventVMInit, nativetest.Args{Thread: main}))
	e := h.next(t)
	assert.Equal(t, event.VMInit, e.Kind)
	assert.Equal(t, "17.0.2", e.Label(constants.KeyVersion))
	assert.Equal(t, "main", e.ThreadName)
	assert.Equal(t, "node-a", e.Node)

	require.True(t, h.vm.Fire(native.EventVMDeath, nativetest.Args{}))
	require.True(t, h.vm.Fire(native.EventVMDeath, nativetest.Args{}))
	assert.Equal(t, event.VMDeath, h.next(t).Kind)
	assert.Equal(t, event.VMDeath, h.next(t).Kind)
	assert.Equal(t, 1, deaths)
}

func TestThreads_LiveCount(t *testing.T) {
	h := newHarness(t)
	h.vm.AddThread(nativetest.ThreadRecord{Name: "main"})
	h.vm.AddThread(nativetest.ThreadRecord{Name: "Reference Handler", Daemon: true})

	c := NewThreads()
	h.install(t, c, h.deps(1))
	assert.Equal(t, int64(2), c.Live())

	w := h.vm.AddThread(nativetest.ThreadRecord{Name: "worker-1"})
	require.True(t, h.vm.Fire(native.EventThreadStart, nativetest.Args{Thread: w}))
	e := h.next(t)
	assert.Equal(t, event.ThreadStart, e.Kind)
	assert.Equal(t, "worker-1", e.ThreadName)
	assert.Equal(t, 3.0, e.NumericVal(constants.KeyLiveThreads))
	assert.Equal(t, thread.NewID(w).String(), e.Label(constants.KeyThreadID))

	require.True(t, h.vm.Fire(native.EventThreadEnd, nativetest.Args{Thread: w}))
	assert.Equal(t, 2.0, h.next(t).NumericVal(constants.KeyLiveThreads))
}

func TestThreads_BaselineUnavailable(t *testing.T) {
	h := newHarness(t)
	h.vm.AddThread(nativetest.ThreadRecord{Name: "main"})
	h.vm.FailNext(nativetest.FnGetAllThreads, 112)

	c := NewThreads()
	require.NoError(t, c.Init(context.Background(), h.deps(1)))
	assert.Equal(t, int64(0), c.Live())

	var cb event.Callbacks
	c.Register(&cb)
	cb.ThreadEnd(thread.Thread{Name: "early"})
	assert.Equal(t, int64(0), c.Live(), "count never goes negative")
	assert.Equal(t, 0.0, h.next(t).NumericVal(constants.KeyLiveThreads))
}

func TestExceptions(t *testing.T) {
	h := newHarness(t)
	th := h.vm.AddThread(nativetest.ThreadRecord{Name: "main"})
	h.install(t, NewExceptions(), h.deps(1))

	require.True(t, h.vm.Fire(native.EventException, nativetest.Args{Thread: th, Method: 0x10, Object: 0x20, CatchMethod: 0x30}))
	e := h.next(t)
	assert.Equal(t, event.Exception, e.Kind)
	assert.Equal(t, "true", e.Label(constants.KeyCaught))
	assert.Equal(t, "0x10", e.Label(constants.KeyMethod))
	assert.Equal(t, "0x20", e.Label(constants.KeyObject))

	require.True(t, h.vm.Fire(native.EventException, nativetest.Args{Thread: th, Method: 0x10, Object: 0x20}))
	assert.Equal(t, "false", h.next(t).Label(constants.KeyCaught))

	require.True(t, h.vm.Fire(native.EventExceptionCatch, nativetest.Args{Thread: th, Method: 0x30, Object: 0x20}))
	e = h.next(t)
	assert.Equal(t, event.ExceptionCatch, e.Kind)
	assert.Equal(t, "", e.Label(constants.KeyCaught))
}

func TestFields(t *testing.T) {
	h := newHarness(t)
	th := h.vm.AddThread(nativetest.ThreadRecord{Name: "main"})
	h.install(t, NewFields(), h.deps(1))

	require.True(t, h.vm.Fire(native.EventFieldAccess, nativetest.Args{Thread: th, Class: 0xa, Field: 0xb}))
	e := h.next(t)
	assert.Equal(t, "0xa", e.Label(constants.KeyClass))
	assert.Equal(t, "0xb", e.Label(constants.KeyField))
	assert.Equal(t, "", e.Label(constants.KeyObject), "static field has no object")

	require.True(t, h.vm.Fire(native.EventFieldModification, nativetest.Args{Thread: th, Object: 0xc, Field: 0xb, Signature: 'J', Value: 7}))
	e = h.next(t)
	assert.Equal(t, event.FieldModification, e.Kind)
	assert.Equal(t, "J", e.Label(constants.KeySignature))
	assert.Equal(t, "0xc", e.Label(constants.KeyObject))
}

func TestMethods(t *testing.T) {
	h := newHarness(t)
	th := h.vm.AddThread(nativetest.ThreadRecord{Name: "main"})
	h.install(t, NewMethods(), h.deps(1))

	require.True(t, h.vm.Fire(native.EventMethodEntry, nativetest.Args{Thread: th, Method: 0x99}))
	assert.Equal(t, "0x99", h.next(t).Label(constants.KeyMethod))

	require.True(t, h.vm.Fire(native.EventMethodExit, nativetest.Args{Thread: th, Method: 0x99, Flag: true}))
	assert.Equal(t, "true", h.next(t).Label(constants.KeyPopped))
}

func TestMonitors(t *testing.T) {
	h := newHarness(t)
	th := h.vm.AddThread(nativetest.ThreadRecord{Name: "main"})
	h.install(t, NewMonitors(), h.deps(1))

	require.True(t, h.vm.Fire(native.EventMonitorWait, nativetest.Args{Thread: th, Object: 0x5, Timeout: 1500}))
	e := h.next(t)
	assert.Equal(t, 1.5, e.NumericVal(constants.KeyTimeoutSec))
	assert.Equal(t, "0x5", e.Label(constants.KeyObject))

	require.True(t, h.vm.Fire(native.EventMonitorWaited, nativetest.Args{Thread: th, Object: 0x5, Flag: true}))
	assert.Equal(t, "true", h.next(t).Label(constants.KeyTimedOut))

	require.True(t, h.vm.Fire(native.EventMonitorContendedEnter, nativetest.Args{Thread: th, Object: 0x5}))
	assert.Equal(t, event.MonitorContendedEnter, h.next(t).Kind)
	require.True(t, h.vm.Fire(native.EventMonitorContendedEntered, nativetest.Args{Thread: th, Object: 0x5}))
	assert.Equal(t, event.MonitorContendedEntered, h.next(t).Kind)
}

func TestMonitors_NeedCapability(t *testing.T) {
	var potential native.Capabilities
	h := newHarness(t, nativetest.WithPotential(potential))
	c := NewMonitors()
	require.NoError(t, c.Init(context.Background(), h.deps(1)))

	_, err := h.env.AddCapabilities(capability.ForEvents(native.EventMonitorWait))
	require.Error(t, err)
	require.Error(t, h.env.SetEventNotificationMode(event.MonitorWait, true))
}

func TestGC_Pause(t *testing.T) {
	h := newHarness(t)
	c := NewGC()
	clock := time.Unix(100, 0)
	c.now = func() time.Time { return clock }
	h.install(t, c, h.deps(1))

	require.True(t, h.vm.Fire(native.EventGarbageCollectionStart, nativetest.Args{}))
	assert.Equal(t, event.GarbageCollectionStart, h.next(t).Kind)

	clock = clock.Add(25 * time.Millisecond)
	require.True(t, h.vm.Fire(native.EventGarbageCollectionFinish, nativetest.Args{}))
	e := h.next(t)
	assert.InDelta(t, 0.025, e.NumericVal(constants.KeyPauseSec), 1e-9)
	assert.Empty(t, e.ThreadName)

	// Finish without start carries no pause.
	require.True(t, h.vm.Fire(native.EventGarbageCollectionFinish, nativetest.Args{}))
	_, ok := h.next(t).Numeric[constants.KeyPauseSec]
	assert.False(t, ok)

	require.True(t, h.vm.Fire(native.EventObjectFree, nativetest.Args{Tag: 42}))
	assert.Equal(t, 42.0, h.next(t).NumericVal(constants.KeyTag))
}

func TestAlloc(t *testing.T) {
	h := newHarness(t)
	th := h.vm.AddThread(nativetest.ThreadRecord{Name: "main"})
	h.install(t, NewAlloc(), h.deps(1))

	require.True(t, h.vm.Fire(native.EventVMObjectAlloc, nativetest.Args{Thread: th, Object: 0x1, Class: 0x2, Size: 4096}))
	e := h.next(t)
	assert.Equal(t, 4096.0, e.NumericVal(constants.KeyBytes))
	assert.Equal(t, "0x2", e.Label(constants.KeyClass))
}

func TestHandle(t *testing.T) {
	assert.Equal(t, "0x0", handle(native.Object(0)))
	assert.Equal(t, "0xdeadbeef", handle(native.MethodID(0xdeadbeef)))
}
