package simvm

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelvm/kestrel/internal/callbacks"
	"github.com/kestrelvm/kestrel/internal/vm"
)

// eventCounts tallies everything the workload should emit.
type eventCounts struct {
	callbacks.NopClassLoadCallback

	threadStarts atomic.Uint64
	threadDeaths atomic.Uint64
	defines      atomic.Uint64
	defineEnds   atomic.Uint64
	loads        atomic.Uint64
	prepares     atomic.Uint64
	contendedIn  atomic.Uint64
	contendedOut atomic.Uint64
	waitStarts   atomic.Uint64
	waitFinishes atomic.Uint64
	parkStarts   atomic.Uint64
	parkFinishes atomic.Uint64
	ddmChunks    atomic.Uint64
	phases       atomic.Uint64
}

func (c *eventCounts) ThreadStart(*vm.Thread) { c.threadStarts.Add(1) }
func (c *eventCounts) ThreadDeath(*vm.Thread) { c.threadDeaths.Add(1) }

func (c *eventCounts) BeginDefineClass()              { c.defines.Add(1) }
func (c *eventCounts) EndDefineClass()                { c.defineEnds.Add(1) }
func (c *eventCounts) ClassLoad(*vm.Class)            { c.loads.Add(1) }
func (c *eventCounts) ClassPrepare(*vm.Class, *vm.Class) { c.prepares.Add(1) }

func (c *eventCounts) MonitorContendedLocking(*vm.Monitor)   { c.contendedIn.Add(1) }
func (c *eventCounts) MonitorContendedLocked(*vm.Monitor)    { c.contendedOut.Add(1) }
func (c *eventCounts) ObjectWaitStart(*vm.Object, int64)     { c.waitStarts.Add(1) }
func (c *eventCounts) MonitorWaitFinished(*vm.Monitor, bool) { c.waitFinishes.Add(1) }

func (c *eventCounts) ThreadParkStart(bool, int64) { c.parkStarts.Add(1) }
func (c *eventCounts) ThreadParkFinished(bool)     { c.parkFinishes.Add(1) }

func (c *eventCounts) DdmPublishChunk(uint32, []byte) { c.ddmChunks.Add(1) }

func (c *eventCounts) NextRuntimePhase(callbacks.RuntimePhase) { c.phases.Add(1) }

func attachCounts(d *callbacks.Dispatcher, c *eventCounts) {
	d.AddThreadLifecycleCallback(c)
	d.AddClassLoadCallback(c)
	d.AddMonitorCallback(c)
	d.AddParkCallback(c)
	d.AddDdmCallback(c)
	d.AddRuntimePhaseCallback(c)
}

func TestWorkloadEmitsCompleteLifecycle(t *testing.T) {
	d := callbacks.New()
	counts := &eventCounts{}
	attachCounts(d, counts)

	cfg := Config{Threads: 3, Classes: 5, Iterations: 4}
	w := New(d, cfg)

	require.NoError(t, w.Run(context.Background()))

	require.Equal(t, uint64(cfg.Threads), counts.threadStarts.Load())
	require.Equal(t, uint64(cfg.Threads), counts.threadDeaths.Load())

	require.Equal(t, uint64(cfg.Classes), counts.defines.Load())
	require.Equal(t, uint64(cfg.Classes), counts.defineEnds.Load())
	require.Equal(t, uint64(cfg.Classes), counts.loads.Load())
	require.Equal(t, uint64(cfg.Classes), counts.prepares.Load())

	rounds := uint64(cfg.Threads * cfg.Iterations)
	require.Equal(t, rounds, counts.waitStarts.Load())
	require.Equal(t, rounds, counts.waitFinishes.Load())
	require.Equal(t, rounds, counts.parkStarts.Load())
	require.Equal(t, rounds, counts.parkFinishes.Load())
	require.Equal(t, rounds, counts.ddmChunks.Load())

	// The contended events fire as a pair, and only for acquisitions that
	// actually observed the monitor held.
	require.Equal(t, counts.contendedIn.Load(), counts.contendedOut.Load())
	require.LessOrEqual(t, counts.contendedIn.Load(), rounds)

	require.Equal(t, uint64(4), counts.phases.Load())

	allowed, vetoed := w.OSRDecisions()
	require.Equal(t, rounds, allowed+vetoed)
	require.Zero(t, vetoed, "no inspection observers registered")
}

// vetoingInspector vetoes every OSR attempt.
type vetoingInspector struct{}

func (vetoingInspector) HaveLocalsChanged() bool { return true }

func TestWorkloadHonorsInspectionVeto(t *testing.T) {
	d := callbacks.New()
	d.AddMethodInspectionCallback(vetoingInspector{})

	cfg := Config{Threads: 2, Classes: 1, Iterations: 3}
	w := New(d, cfg)
	require.NoError(t, w.Run(context.Background()))

	allowed, vetoed := w.OSRDecisions()
	require.Zero(t, allowed)
	require.Equal(t, uint64(cfg.Threads*cfg.Iterations), vetoed)
}

// wrapCounter wraps every bound native method and counts invocations of
// the wrapper.
type wrapCounter struct {
	wrapped atomic.Uint64
	invoked atomic.Uint64
}

func (c *wrapCounter) RegisterNativeMethod(m *vm.Method, current vm.NativeImpl) vm.NativeImpl {
	c.wrapped.Add(1)
	return func(t *vm.Thread, args []any) any {
		c.invoked.Add(1)
		if current != nil {
			return current(t, args)
		}
		return nil
	}
}

func TestWorkloadBindsNativeMethodsThroughChain(t *testing.T) {
	d := callbacks.New()
	wrapper := &wrapCounter{}
	d.AddMethodCallback(wrapper)

	cfg := Config{Threads: 2, Classes: 3, Iterations: 2}
	w := New(d, cfg)
	require.NoError(t, w.Run(context.Background()))

	require.Equal(t, uint64(cfg.Classes), wrapper.wrapped.Load())
	// Each thread invokes a bound method once per iteration.
	require.Equal(t, uint64(cfg.Threads*cfg.Iterations), wrapper.invoked.Load())
}

func TestWorkloadCompactionPatchesMethodReferences(t *testing.T) {
	d := callbacks.New()
	cfg := Config{Threads: 1, Classes: 2, Iterations: 1}
	w := New(d, cfg)

	require.NoError(t, w.Run(context.Background()))

	// compact() replaced every identity; the table must hold the fresh
	// ones, and they must still describe the same methods.
	held := w.methods.methods()
	require.Len(t, held, cfg.Classes)
	for _, m := range held {
		require.True(t, m.IsNative())
	}
}

func TestWorkloadCancelledContextStillDies(t *testing.T) {
	d := callbacks.New()
	rec := &eventCounts{}
	attachCounts(d, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New(d, Config{Threads: 2, Classes: 1, Iterations: 100})
	require.NoError(t, w.Run(ctx))

	// Threads stop early but still detach, and the death phase is always
	// announced.
	require.Equal(t, uint64(2), rec.threadDeaths.Load())
	require.Equal(t, uint64(4), rec.phases.Load())
}
