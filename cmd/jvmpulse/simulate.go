package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/jvmpulse/internal/agent"
	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/environment"
	"github.com/sureshkrishnan-v/jvmpulse/internal/native"
	"github.com/sureshkrishnan-v/jvmpulse/internal/native/nativetest"
)

var (
	simDuration time.Duration
	simRate     int

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Run the agent against a simulated VM that emits synthetic events",
		Long: `simulate runs the full agent (collectors, event bus and the configured
exporters) on an in-process simulated VM. Use it to check dashboards, NATS
streams or Redis subscribers without attaching to a real JVM.`,
		Args: cobra.NoArgs,
		RunE: runSimulate,
	}
)

// simulation drives a simulated VM with a plausible event mix.
type simulation struct {
	vm      *nativetest.VM
	rng     *rand.Rand
	threads []native.Thread
	gcOpen  bool
}

func newSimulation(vm *nativetest.VM, seed uint64) *simulation {
	s := &simulation{vm: vm, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
	for _, name := range []string{"main", "Reference Handler", "Finalizer", "Signal Dispatcher"} {
		s.threads = append(s.threads, vm.AddThread(nativetest.ThreadRecord{Name: name, Daemon: name != "main"}))
	}
	return s
}

func (s *simulation) thread() native.Thread {
	return s.threads[s.rng.IntN(len(s.threads))]
}

func (s *simulation) handle() uintptr { return uintptr(0x10000 + s.rng.IntN(512)*0x10) }

// step fires one synthetic event.
func (s *simulation) step() {
	t := s.thread()
	switch n := s.rng.IntN(100); {
	case n < 30:
		s.vm.Fire(native.EventClassLoad, nativetest.Args{Thread: t, Class: native.Class(s.handle())})
	case n < 45:
		s.vm.Fire(native.EventVMObjectAlloc, nativetest.Args{
			Thread: t, Object: native.Object(s.handle()), Class: native.Class(s.handle()),
			Size: int64(16 + s.rng.IntN(64<<10)),
		})
	case n < 60:
		var catch native.MethodID
		if s.rng.IntN(4) > 0 {
			catch = native.MethodID(s.handle())
		}
		s.vm.Fire(native.EventException, nativetest.Args{
			Thread: t, Method: native.MethodID(s.handle()), Object: native.Object(s.handle()), CatchMethod: catch,
		})
	case n < 75:
		s.vm.Fire(native.EventMonitorContendedEnter, nativetest.Args{Thread: t, Object: native.Object(s.handle())})
		s.vm.Fire(native.EventMonitorContendedEntered, nativetest.Args{Thread: t, Object: native.Object(s.handle())})
	case n < 85:
		if s.gcOpen {
			s.vm.Fire(native.EventGarbageCollectionFinish, nativetest.Args{})
		} else {
			s.vm.Fire(native.EventGarbageCollectionStart, nativetest.Args{})
		}
		s.gcOpen = !s.gcOpen
	case n < 92 && len(s.threads) < 64:
		w := s.vm.AddThread(nativetest.ThreadRecord{Name: fmt.Sprintf("pool-1-thread-%d", len(s.threads))})
		s.threads = append(s.threads, w)
		s.vm.Fire(native.EventThreadStart, nativetest.Args{Thread: w})
	case len(s.threads) > 4:
		last := len(s.threads) - 1
		s.vm.Fire(native.EventThreadEnd, nativetest.Args{Thread: s.threads[last]})
		s.threads = s.threads[:last]
	default:
		s.vm.Fire(native.EventMonitorWait, nativetest.Args{Thread: t, Object: native.Object(s.handle()), Timeout: int64(s.rng.IntN(1000))})
	}
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := agent.NewLogger(cfg.Agent.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if simDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, simDuration)
		defer cancel()
	}

	vm := nativetest.New()
	a := agent.New(cfg, environment.New(vm.Env(), logger.Named("jvmti")), logger)
	if err := a.Start(ctx); err != nil {
		return err
	}

	sim := newSimulation(vm, uint64(time.Now().UnixNano()))
	vm.Fire(native.EventVMStart, nativetest.Args{})
	vm.Fire(native.EventVMInit, nativetest.Args{Thread: sim.threads[0]})

	fired := sim.run(ctx, simRate)
	vm.Fire(native.EventVMDeath, nativetest.Args{})

	stopCtx, stopCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer stopCancel()
	if err := a.Stop(stopCtx); err != nil {
		return err
	}
	logger.Info("Simulation finished", zap.Int("events_fired", fired))
	return nil
}

// run fires events at rate per second until ctx is done and returns the
// number of steps taken.
func (s *simulation) run(ctx context.Context, rate int) int {
	rate = min(max(rate, 1), 1_000_000)
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	steps := 0
	for {
		select {
		case <-ctx.Done():
			return steps
		case <-ticker.C:
			s.step()
			steps++
		}
	}
}
