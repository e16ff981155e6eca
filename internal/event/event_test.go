package event

import (
	"testing"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/native"
	"github.com/sureshkrishnan-v/jvmpulse/internal/thread"
)

func fillAll(c *Callbacks) {
	c.VMInit = func(thread.Thread) {}
	c.VMStart = func() {}
	c.VMDeath = func() {}
	c.ThreadStart = func(thread.Thread) {}
	c.ThreadEnd = func(thread.Thread) {}
	c.ClassLoad = func(ClassEvent) {}
	c.ClassPrepare = func(ClassEvent) {}
	c.Exception = func(ExceptionEvent) {}
	c.ExceptionCatch = func(ExceptionEvent) {}
	c.FieldAccess = func(FieldEvent) {}
	c.FieldModification = func(FieldEvent) {}
	c.MethodEntry = func(MethodInvocation) {}
	c.MethodExit = func(MethodInvocation) {}
	c.MonitorWait = func(MonitorEvent) {}
	c.MonitorWaited = func(MonitorEvent) {}
	c.MonitorContendedEnter = func(MonitorEvent) {}
	c.MonitorContendedEntered = func(MonitorEvent) {}
	c.GarbageCollectionStart = func() {}
	c.GarbageCollectionFinish = func() {}
	c.ObjectFree = func(int64) {}
	c.VMObjectAlloc = func(ObjectAllocEvent) {}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		k    Kind
		want string
	}{
		{VMInit, "vm_init"},
		{ThreadStart, "thread_start"},
		{MethodExit, "method_exit"},
		{MonitorContendedEntered, "monitor_contended_entered"},
		{GarbageCollectionFinish, "garbage_collection_finish"},
		{VMObjectAlloc, "vm_object_alloc"},
		{KindUnknown, "unknown"},
		{Kind(72), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.k, got, tt.want)
		}
	}
}

func TestKind_MatchesNative(t *testing.T) {
	for k := range kindNames {
		if !k.Native().Valid() {
			t.Errorf("%s: native event %d not valid", k, k)
		}
	}
	for n := native.MinEventKind; n <= native.MaxEventKind; n++ {
		if n.Valid() != Kind(n).Valid() {
			t.Errorf("event %d: native valid=%v, kind valid=%v", n, n.Valid(), Kind(n).Valid())
		}
	}
}

func TestParseKind(t *testing.T) {
	for k, name := range kindNames {
		got, err := ParseKind(name)
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v; want %v", name, got, err, k)
		}
	}
	if got, err := ParseKind(" Method-Entry "); err != nil || got != MethodEntry {
		t.Errorf("ParseKind(Method-Entry) = %v, %v", got, err)
	}
	if _, err := ParseKind("jit_deopt"); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := ParseKinds([]string{"vm_init", "nope"}); err == nil {
		t.Error("expected error for unknown kind in list")
	}
}

func TestBridgedKinds(t *testing.T) {
	kinds := BridgedKinds()
	if len(kinds) != 21 {
		t.Fatalf("bridged kinds = %d, want 21", len(kinds))
	}
	if !MethodEntry.Bridged() || Breakpoint.Bridged() {
		t.Error("method_entry must be bridged, breakpoint must not")
	}
	var all Callbacks
	fillAll(&all)
	for _, k := range kinds {
		if !all.Has(k) {
			t.Errorf("Callbacks has no slot for bridged kind %s", k)
		}
	}
}

func TestCallbacks_Kinds(t *testing.T) {
	cb := Callbacks{
		MethodEntry:            func(MethodInvocation) {},
		VMInit:                 func(thread.Thread) {},
		GarbageCollectionStart: func() {},
	}
	got := cb.Kinds()
	want := []Kind{VMInit, MethodEntry, GarbageCollectionStart}
	if len(got) != len(want) {
		t.Fatalf("Kinds() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Kinds()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if (&Callbacks{}).Kinds() != nil {
		t.Error("empty Callbacks should have no kinds")
	}
}

func TestExceptionEvent_Caught(t *testing.T) {
	if (ExceptionEvent{}).Caught() {
		t.Error("zero catch method must be uncaught")
	}
	if !(ExceptionEvent{CatchMethod: 0x10}).Caught() {
		t.Error("non-zero catch method must be caught")
	}
}

func TestAcquire_Release(t *testing.T) {
	e := New(ThreadStart, "node-a")
	if e.Timestamp.IsZero() {
		t.Error("New must stamp the event")
	}
	e.ThreadName = "main"
	e.SetLabel(constants.KeyThreadID, "thread@0x1000")
	e.SetNumeric(constants.KeyBytes, 42.0)

	if e.Label(constants.KeyThreadID) != "thread@0x1000" {
		t.Error("Label not set")
	}
	if e.NumericVal(constants.KeyBytes) != 42.0 {
		t.Error("Numeric not set")
	}

	e.Release()

	e2 := Acquire()
	if e2.Kind != KindUnknown || e2.ThreadName != "" || e2.Node != "" {
		t.Error("pool event not cleared")
	}
	if len(e2.Labels) != 0 || len(e2.Numeric) != 0 {
		t.Error("maps not cleared")
	}
	e2.Release()
}

func TestRelease_LastReferenceClears(t *testing.T) {
	e := New(MethodEntry, "n")
	e.retain(1)
	e.Release()
	if e.Kind != MethodEntry {
		t.Fatal("event cleared while still referenced")
	}
	e.Release()
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(16, nil)
	defer bus.Close()

	ch := bus.Subscribe("test")

	e := New(MethodEntry, "node-a")
	e.ThreadName = "worker-1"
	bus.Publish(e)

	received := <-ch
	if received.Kind != MethodEntry {
		t.Errorf("got kind %v, want method_entry", received.Kind)
	}
	if received.ThreadName != "worker-1" {
		t.Errorf("got thread %q, want worker-1", received.ThreadName)
	}
	received.Release()
}

func TestBus_SubscribeSameNameTwice(t *testing.T) {
	bus := NewBus(16, nil)
	defer bus.Close()

	if bus.Subscribe("a") != bus.Subscribe("a") {
		t.Error("same name must return the same channel")
	}
}

func TestBus_DropOnOverflow(t *testing.T) {
	bus := NewBus(1, nil) // raised to the minimum
	defer bus.Close()

	bus.Subscribe("slow")

	total := constants.MinEventBusBuffer + 6
	for i := 0; i < total; i++ {
		bus.Publish(New(ObjectFree, ""))
	}

	stats := bus.Stats()
	if stats.Published != uint64(total) {
		t.Errorf("published = %d, want %d", stats.Published, total)
	}
	if dropped := stats.DroppedBySubscriber["slow"]; dropped != 6 {
		t.Errorf("dropped = %d, want 6", dropped)
	}
	if stats.QueueDepth["slow"] != constants.MinEventBusBuffer {
		t.Errorf("queue depth = %d, want %d", stats.QueueDepth["slow"], constants.MinEventBusBuffer)
	}
	if bus.Dropped() != 6 {
		t.Errorf("Dropped() = %d, want 6", bus.Dropped())
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus(16, nil)
	defer bus.Close()

	ch1 := bus.Subscribe("sub1")
	ch2 := bus.Subscribe("sub2")

	bus.Publish(New(GarbageCollectionFinish, ""))

	r1 := <-ch1
	r2 := <-ch2
	if r1.Kind != GarbageCollectionFinish || r2.Kind != GarbageCollectionFinish {
		t.Error("both subscribers should receive the event")
	}
	r1.Release()
	if r2.Kind != GarbageCollectionFinish {
		t.Error("event cleared while second subscriber holds it")
	}
	r2.Release()
}

func TestBus_Closed(t *testing.T) {
	bus := NewBus(16, nil)
	ch := bus.Subscribe("s")
	bus.Close()
	bus.Close()

	bus.Publish(New(VMDeath, ""))
	if bus.Published() != 0 {
		t.Error("publish after close must be ignored")
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
	if _, ok := <-bus.Subscribe("late"); ok {
		t.Error("late subscriber should get a closed channel")
	}
}

func BenchmarkBus_Publish(b *testing.B) {
	bus := NewBus(8192, nil)
	defer bus.Close()
	ch := bus.Subscribe("bench")
	go func() {
		for e := range ch {
			e.Release()
		}
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bus.Publish(New(MethodEntry, ""))
	}
}
