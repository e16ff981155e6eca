package collector

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
	"github.com/sureshkrishnan-v/jvmpulse/internal/thread"
)

// Lifecycle reports VM start, init and death. Its events are never sampled.
type Lifecycle struct {
	emitter
	version string
	death   sync.Once
}

// NewLifecycle creates the lifecycle collector.
func NewLifecycle() *Lifecycle { return &Lifecycle{} }

func (l *Lifecycle) Name() string { return constants.CollectorLifecycle }

func (l *Lifecycle) Kinds() []event.Kind {
	return []event.Kind{event.VMStart, event.VMInit, event.VMDeath}
}

func (l *Lifecycle) Init(_ context.Context, deps Dependencies) error {
	l.init(deps)
	if deps.Env != nil {
		l.version = deps.Env.VersionNumber().String()
	}
	return nil
}

func (l *Lifecycle) Register(cb *event.Callbacks) {
	cb.VMStart = func() {
		l.emitAlways(event.VMStart, nil, nil)
	}
	cb.VMInit = func(t thread.Thread) {
		l.deps.Logger.Info("VM initialized",
			zap.String("jvmti_version", l.version),
			zap.String("thread", t.Name),
		)
		l.emitAlways(event.VMInit, &t, func(e *event.Event) {
			e.SetLabel(constants.KeyVersion, l.version)
		})
	}
	cb.VMDeath = func() {
		l.emitAlways(event.VMDeath, nil, nil)
		l.death.Do(func() {
			l.deps.Logger.Info("VM death reported")
			if l.deps.OnVMDeath != nil {
				l.deps.OnVMDeath()
			}
		})
	}
}
