package agent

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/jvmpulse/internal/config"
	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/environment"
	"github.com/sureshkrishnan-v/jvmpulse/internal/native"
	"github.com/sureshkrishnan-v/jvmpulse/internal/native/nativetest"
)

func TestNew_RegistersConfiguredExporters(t *testing.T) {
	vm := nativetest.New()
	cfg := config.Default()
	cfg.Exporters.NATS.Enabled = true
	cfg.Exporters.Redis.Enabled = true

	a := New(cfg, environment.New(vm.Env(), zap.NewNop()), zap.NewNop())
	_, err := uuid.Parse(a.Instance)
	require.NoError(t, err)

	var names []string
	for _, e := range a.Runtime.exporters {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{constants.ExporterPrometheus, constants.ExporterNATS, constants.ExporterRedis}, names)
	assert.Len(t, a.Runtime.collectors, 9)
}

func TestNew_NoExporters(t *testing.T) {
	vm := nativetest.New()
	cfg := config.Default()
	cfg.Exporters.Prometheus.Enabled = false

	a := New(cfg, environment.New(vm.Env(), zap.NewNop()), zap.NewNop())
	assert.Empty(t, a.Runtime.exporters)
	assert.Nil(t, a.prom)
}

func TestLoad_AppliesOptions(t *testing.T) {
	vm := nativetest.New()
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	a, err := Load(vm.Env(), "config="+missing+",collectors=gc+threads,log_level=debug,node=n1")
	require.NoError(t, err)
	assert.True(t, a.Config.CollectorEnabled(constants.CollectorGC))
	assert.True(t, a.Config.CollectorEnabled(constants.CollectorThreads))
	assert.False(t, a.Config.CollectorEnabled(constants.CollectorClasses))
	assert.Equal(t, "debug", a.Config.Agent.LogLevel)
	assert.Equal(t, "n1", a.Config.Agent.NodeName)
}

func TestLoad_BadOptions(t *testing.T) {
	vm := nativetest.New()
	_, err := Load(vm.Env(), "collectors=gc+bogus")
	require.Error(t, err)

	_, err = Load(vm.Env(), "nonsense")
	require.Error(t, err)
}

func TestAgent_StartStop(t *testing.T) {
	vm := nativetest.New()
	cfg := config.Default()
	cfg.Exporters.Prometheus.Enabled = false
	a := New(cfg, environment.New(vm.Env(), zap.NewNop()), zap.NewNop())

	require.NoError(t, a.Start(context.Background()))
	assert.True(t, vm.Enabled(native.EventVMDeath))

	// VM death stops the agent in the background.
	require.True(t, vm.Fire(native.EventVMDeath, nativetest.Args{}))
	assert.Eventually(t, func() bool { return !vm.Enabled(native.EventVMDeath) }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, a.Stop(context.Background()))
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))
	assert.True(t, l.Core().Enabled(zap.WarnLevel))

	_, err = NewLogger("loud")
	require.Error(t, err)
}
