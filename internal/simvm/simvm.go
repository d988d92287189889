// Package simvm is a miniature stand-in for the kestrel execution engine.
// It drives the callback dispatcher exactly the way the real collaborators
// do: the scheduler's thread start/death pairs, the class loader's
// define/load/prepare pipeline with pre-define negotiation, the monitor
// and park instrumentation points, native method binding, OSR inspection
// queries, DDM publishing, and reflective target fixup after a simulated
// compaction.
//
// It exists for the demo binary and for integration-style tests; nothing
// in here is the production engine.
package simvm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/kestrelvm/kestrel/internal/callbacks"
	"github.com/kestrelvm/kestrel/internal/phase"
	"github.com/kestrelvm/kestrel/internal/vm"
)

// Config sizes the simulated workload.
type Config struct {
	// Threads is the number of simulated runtime threads.
	Threads int

	// Classes is the number of classes pushed through the definition
	// pipeline.
	Classes int

	// Iterations is the number of monitor/park/inspection rounds each
	// thread runs.
	Iterations int
}

// DefaultConfig returns a small workload suitable for a demo run.
func DefaultConfig() Config {
	return Config{Threads: 4, Classes: 8, Iterations: 16}
}

// Workload drives one simulated runtime lifecycle against a dispatcher.
type Workload struct {
	dispatcher *callbacks.Dispatcher
	tracker    *phase.Tracker
	log        zerolog.Logger
	cfg        Config

	// methods holds the natively-bound methods; it doubles as the
	// reflective-reference holder patched after compaction.
	methods *methodTable

	osrAllowed atomic.Uint64
	osrVetoed  atomic.Uint64
}

// Option configures a Workload.
type Option func(*Workload)

// WithLogger sets the structured logger.
func WithLogger(log zerolog.Logger) Option {
	return func(w *Workload) {
		w.log = log
	}
}

// New creates a workload against d. Zero config fields fall back to
// DefaultConfig values.
func New(d *callbacks.Dispatcher, cfg Config, opts ...Option) *Workload {
	def := DefaultConfig()
	if cfg.Threads <= 0 {
		cfg.Threads = def.Threads
	}
	if cfg.Classes <= 0 {
		cfg.Classes = def.Classes
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = def.Iterations
	}

	w := &Workload{
		dispatcher: d,
		tracker:    phase.NewTracker(),
		log:        zerolog.Nop(),
		cfg:        cfg,
		methods:    &methodTable{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run executes one full runtime lifecycle: phase transitions, class
// definitions, native binding, the threaded workload, a compaction pass,
// and finally the death phase. It blocks until the workload finishes or
// ctx is cancelled; either way the death phase is announced before
// returning.
func (w *Workload) Run(ctx context.Context) error {
	d := w.dispatcher

	w.methods.attach(d)
	defer w.methods.detach(d)

	for _, p := range []callbacks.RuntimePhase{
		callbacks.PhaseInitialAgents,
		callbacks.PhaseStart,
		callbacks.PhaseInit,
	} {
		if err := w.tracker.Announce(d, p); err != nil {
			return err
		}
	}

	classes := w.defineClasses()
	w.bindNativeMethods(classes)
	w.runThreads(ctx)
	w.compact()

	w.log.Info().
		Uint64("osr_allowed", w.osrAllowed.Load()).
		Uint64("osr_vetoed", w.osrVetoed.Load()).
		Msg("workload finished")

	return w.tracker.Announce(d, callbacks.PhaseDeath)
}

// defineClasses pushes cfg.Classes classes through the full definition
// pipeline, honoring the begin/end bracket on every path.
func (w *Workload) defineClasses() []*vm.Class {
	d := w.dispatcher
	loader := vm.NewClassLoader("boot")
	file := vm.NewClassFile("boot.kc", make([]byte, 4096))

	classes := make([]*vm.Class, 0, w.cfg.Classes)
	for i := 0; i < w.cfg.Classes; i++ {
		descriptor := fmt.Sprintf("Lkestrel/gen/Class%03d;", i)
		def := vm.NewClassDef(file, descriptor, i)

		d.BeginDefineClass()

		// A pre-define observer may have redirected the artifacts; the
		// negotiated selection is what the class is defined from.
		finalFile, finalDef := d.ClassPreDefine(descriptor, nil, loader, file, def)
		if finalFile != file || finalDef != def {
			w.log.Debug().Str("class", descriptor).
				Str("container", finalFile.Location()).
				Msg("class definition redirected")
		}

		class := vm.NewClass(descriptor, loader)
		d.ClassLoad(class)

		class.MarkLinked()
		d.ClassPrepare(class, class)

		d.EndDefineClass()
		classes = append(classes, class)
	}
	return classes
}

// bindNativeMethods registers one native method per class through the
// wrapping chain and records the installed implementations.
func (w *Workload) bindNativeMethods(classes []*vm.Class) {
	d := w.dispatcher
	for i, class := range classes {
		m := vm.NewMethod(class, fmt.Sprintf("native%02d", i), "()V", true)
		base := vm.NativeImpl(func(*vm.Thread, []any) any { return nil })
		installed := d.RegisterNativeMethod(m, base)
		w.methods.bind(m, installed)
	}
}

// runThreads spawns the simulated threads and waits for them.
func (w *Workload) runThreads(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(w.cfg.Threads)

	shared := vm.NewMonitor(vm.NewObject(1))
	var contended sync.Mutex

	for i := 0; i < w.cfg.Threads; i++ {
		go func(id int64) {
			defer wg.Done()
			w.runThread(ctx, id, shared, &contended)
		}(int64(i + 1))
	}
	wg.Wait()
}

// runThread is one simulated thread: attach, loop over the
// instrumentation points, detach.
func (w *Workload) runThread(ctx context.Context, id int64, shared *vm.Monitor, contended *sync.Mutex) {
	d := w.dispatcher
	t := vm.NewThread(id, fmt.Sprintf("sim-%d", id))

	d.ThreadStart(t)
	defer d.ThreadDeath(t)

	for i := 0; i < w.cfg.Iterations; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// The contended pair fires only when the monitor was observed
		// held; an uncontended acquisition skips both events.
		if !contended.TryLock() {
			d.MonitorContendedLocking(shared)
			contended.Lock()
			d.MonitorContendedLocked(shared)
		}

		d.ObjectWaitStart(shared.Object(), 10)
		contended.Unlock()
		d.MonitorWaitFinished(shared, false)

		d.ThreadParkStart(false, 5)
		d.ThreadParkFinished(false)

		// OSR decision point: any inspection veto blocks replacement.
		if d.HaveLocalsChanged() {
			w.veto()
		} else {
			w.allow()
		}

		if impl := w.methods.any(); impl != nil {
			impl(t, nil)
		}

		d.DdmPublishChunk(chunkTypeHeartbeat, []byte{byte(id), byte(i)})
	}
}

// compact simulates an identity-replacing compaction: every bound method
// gets a fresh identity, and reflective holders are told to patch their
// references.
func (w *Workload) compact() {
	mapping := w.methods.remap()
	w.dispatcher.VisitReflectiveTargets(mapping)
}

func (w *Workload) allow() { w.osrAllowed.Add(1) }
func (w *Workload) veto()  { w.osrVetoed.Add(1) }

// chunkTypeHeartbeat is the DDM type code for workload heartbeats
// ("HBEA").
const chunkTypeHeartbeat = 0x48424541

// OSRDecisions reports how many on-stack replacements the workload
// performed and how many were vetoed by inspection observers.
func (w *Workload) OSRDecisions() (allowed, vetoed uint64) {
	return w.osrAllowed.Load(), w.osrVetoed.Load()
}
