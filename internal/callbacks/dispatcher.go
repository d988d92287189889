package callbacks

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/kestrelvm/kestrel/internal/vm"
)

// Dispatcher fans runtime events out to registered callbacks.
//
// All categories share one reader/writer lock. Add and Remove take it
// exclusively; dispatch entry points hold it shared across the whole
// fan-out, so callbacks run synchronously on the dispatching thread, in
// registration order, and may block. See the package comment for the lock
// ordering rule and the caller contracts.
//
// The zero value is not usable; construct with New.
type Dispatcher struct {
	// mu is the bottom of the runtime lock order. Nothing may be acquired
	// while it is held.
	mu sync.RWMutex

	threadCallbacks          []ThreadLifecycleCallback
	classCallbacks           []ClassLoadCallback
	sigQuitCallbacks         []SigQuitCallback
	phaseCallbacks           []RuntimePhaseCallback
	methodCallbacks          []MethodCallback
	monitorCallbacks         []MonitorCallback
	parkCallbacks            []ParkCallback
	inspectionCallbacks      []MethodInspectionCallback
	ddmCallbacks             []DdmCallback
	debuggerControlCallbacks []DebuggerControlCallback
	reflectiveVisitCallbacks []ReflectiveValueVisitCallback

	log zerolog.Logger

	// Counters are atomics so dispatch paths never take anything beyond
	// the shared lock.
	registered  atomic.Uint64
	removed     atomic.Uint64
	dispatches  atomic.Uint64
	invocations atomic.Uint64
}

// New creates an empty dispatcher. The lists live for the life of the
// process; there is no reset.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// addCallback appends cb to the category list under the exclusive lock.
func addCallback[T comparable](d *Dispatcher, list *[]T, category string, cb T) {
	d.mu.Lock()
	*list = append(*list, cb)
	d.mu.Unlock()

	d.registered.Add(1)
	d.log.Debug().Str("category", category).Msg("callback registered")
}

// removeCallback deletes the first reference equal to cb, preserving the
// order of the remaining entries. Removing a callback that is not
// registered is a no-op.
func removeCallback[T comparable](d *Dispatcher, list *[]T, category string, cb T) {
	found := false

	d.mu.Lock()
	s := *list
	for i, c := range s {
		if c == cb {
			*list = append(s[:i], s[i+1:]...)
			found = true
			break
		}
	}
	d.mu.Unlock()

	if found {
		d.removed.Add(1)
		d.log.Debug().Str("category", category).Msg("callback removed")
	}
}

// AddThreadLifecycleCallback registers cb for thread start and death
// events.
func (d *Dispatcher) AddThreadLifecycleCallback(cb ThreadLifecycleCallback) {
	addCallback(d, &d.threadCallbacks, "thread", cb)
}

// RemoveThreadLifecycleCallback unregisters cb. After it returns, cb is
// never invoked again for this category.
func (d *Dispatcher) RemoveThreadLifecycleCallback(cb ThreadLifecycleCallback) {
	removeCallback(d, &d.threadCallbacks, "thread", cb)
}

// ThreadStart notifies observers that t is attaching to the runtime.
func (d *Dispatcher) ThreadStart(t *vm.Thread) {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.threadCallbacks {
		d.invocations.Add(1)
		cb.ThreadStart(t)
	}
}

// ThreadDeath notifies observers that t is detaching from the runtime.
func (d *Dispatcher) ThreadDeath(t *vm.Thread) {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.threadCallbacks {
		d.invocations.Add(1)
		cb.ThreadDeath(t)
	}
}

// AddClassLoadCallback registers cb for class pipeline events.
func (d *Dispatcher) AddClassLoadCallback(cb ClassLoadCallback) {
	addCallback(d, &d.classCallbacks, "class", cb)
}

// RemoveClassLoadCallback unregisters cb.
func (d *Dispatcher) RemoveClassLoadCallback(cb ClassLoadCallback) {
	removeCallback(d, &d.classCallbacks, "class", cb)
}

// BeginDefineClass marks the start of one class definition attempt. The
// class loader pairs every BeginDefineClass with EndDefineClass on all
// exit paths.
func (d *Dispatcher) BeginDefineClass() {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.classCallbacks {
		d.invocations.Add(1)
		cb.BeginDefineClass()
	}
}

// EndDefineClass marks the end of the current class definition attempt.
func (d *Dispatcher) EndDefineClass() {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.classCallbacks {
		d.invocations.Add(1)
		cb.EndDefineClass()
	}
}

// ClassPreDefine negotiates which bytecode container and definition record
// are used to define descriptor. Observers run in registration order, each
// receiving the selection produced so far; with no observers the initial
// selection is returned unchanged.
func (d *Dispatcher) ClassPreDefine(descriptor string, tempClass *vm.Class,
	loader *vm.ClassLoader, file *vm.ClassFile, def *vm.ClassDef) (*vm.ClassFile, *vm.ClassDef) {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.classCallbacks {
		d.invocations.Add(1)
		newFile, newDef := cb.ClassPreDefine(descriptor, tempClass, loader, file, def)
		if newFile != nil {
			file = newFile
		}
		if newDef != nil {
			def = newDef
		}
	}
	return file, def
}

// ClassLoad notifies observers that class exists but is not yet linked.
func (d *Dispatcher) ClassLoad(class *vm.Class) {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.classCallbacks {
		d.invocations.Add(1)
		cb.ClassLoad(class)
	}
}

// ClassPrepare notifies observers that class is linked. tempClass is the
// object ClassLoad saw; it may differ from class if resolution replaced a
// placeholder.
func (d *Dispatcher) ClassPrepare(tempClass, class *vm.Class) {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.classCallbacks {
		d.invocations.Add(1)
		cb.ClassPrepare(tempClass, class)
	}
}

// AddSigQuitCallback registers cb for SIGQUIT notifications.
func (d *Dispatcher) AddSigQuitCallback(cb SigQuitCallback) {
	addCallback(d, &d.sigQuitCallbacks, "sigquit", cb)
}

// RemoveSigQuitCallback unregisters cb.
func (d *Dispatcher) RemoveSigQuitCallback(cb SigQuitCallback) {
	removeCallback(d, &d.sigQuitCallbacks, "sigquit", cb)
}

// SigQuit notifies observers that the process received SIGQUIT.
func (d *Dispatcher) SigQuit() {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.sigQuitCallbacks {
		d.invocations.Add(1)
		cb.SigQuit()
	}
}

// AddRuntimePhaseCallback registers cb for phase transitions.
func (d *Dispatcher) AddRuntimePhaseCallback(cb RuntimePhaseCallback) {
	addCallback(d, &d.phaseCallbacks, "phase", cb)
}

// RemoveRuntimePhaseCallback unregisters cb.
func (d *Dispatcher) RemoveRuntimePhaseCallback(cb RuntimePhaseCallback) {
	removeCallback(d, &d.phaseCallbacks, "phase", cb)
}

// NextRuntimePhase announces a lifecycle milestone. The dispatcher does
// not validate ordering; see internal/phase for a tracker that does.
func (d *Dispatcher) NextRuntimePhase(phase RuntimePhase) {
	d.dispatches.Add(1)
	d.log.Debug().Stringer("phase", phase).Msg("runtime phase transition")
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.phaseCallbacks {
		d.invocations.Add(1)
		cb.NextRuntimePhase(phase)
	}
}

// AddMethodCallback registers cb for native method registration.
func (d *Dispatcher) AddMethodCallback(cb MethodCallback) {
	addCallback(d, &d.methodCallbacks, "method", cb)
}

// RemoveMethodCallback unregisters cb.
func (d *Dispatcher) RemoveMethodCallback(cb MethodCallback) {
	removeCallback(d, &d.methodCallbacks, "method", cb)
}

// RegisterNativeMethod threads original through every observer in
// registration order and returns the implementation the runtime should
// install. Each observer sees the previous observer's output.
func (d *Dispatcher) RegisterNativeMethod(m *vm.Method, original vm.NativeImpl) vm.NativeImpl {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	impl := original
	for _, cb := range d.methodCallbacks {
		d.invocations.Add(1)
		if next := cb.RegisterNativeMethod(m, impl); next != nil {
			impl = next
		}
	}
	return impl
}

// AddMonitorCallback registers cb for monitor events.
func (d *Dispatcher) AddMonitorCallback(cb MonitorCallback) {
	addCallback(d, &d.monitorCallbacks, "monitor", cb)
}

// RemoveMonitorCallback unregisters cb.
func (d *Dispatcher) RemoveMonitorCallback(cb MonitorCallback) {
	removeCallback(d, &d.monitorCallbacks, "monitor", cb)
}

// MonitorContendedLocking fires just before the calling thread sleeps
// waiting for m.
func (d *Dispatcher) MonitorContendedLocking(m *vm.Monitor) {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.monitorCallbacks {
		d.invocations.Add(1)
		cb.MonitorContendedLocking(m)
	}
}

// MonitorContendedLocked fires just after the calling thread acquired m
// following contention.
func (d *Dispatcher) MonitorContendedLocked(m *vm.Monitor) {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.monitorCallbacks {
		d.invocations.Add(1)
		cb.MonitorContendedLocked(m)
	}
}

// ObjectWaitStart fires on entry to a wait on obj, valid or not.
func (d *Dispatcher) ObjectWaitStart(obj *vm.Object, timeoutMillis int64) {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.monitorCallbacks {
		d.invocations.Add(1)
		cb.ObjectWaitStart(obj, timeoutMillis)
	}
}

// MonitorWaitFinished fires after a wait on m that slept or could have
// slept. The calling thread holds no lock on m at this point.
func (d *Dispatcher) MonitorWaitFinished(m *vm.Monitor, timedOut bool) {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.monitorCallbacks {
		d.invocations.Add(1)
		cb.MonitorWaitFinished(m, timedOut)
	}
}

// AddParkCallback registers cb for thread park events.
func (d *Dispatcher) AddParkCallback(cb ParkCallback) {
	addCallback(d, &d.parkCallbacks, "park", cb)
}

// RemoveParkCallback unregisters cb.
func (d *Dispatcher) RemoveParkCallback(cb ParkCallback) {
	removeCallback(d, &d.parkCallbacks, "park", cb)
}

// ThreadParkStart fires on entry to a park of the calling thread.
func (d *Dispatcher) ThreadParkStart(isAbsolute bool, timeoutMillis int64) {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.parkCallbacks {
		d.invocations.Add(1)
		cb.ThreadParkStart(isAbsolute, timeoutMillis)
	}
}

// ThreadParkFinished fires after the calling thread woke from a park that
// slept or could have slept.
func (d *Dispatcher) ThreadParkFinished(timedOut bool) {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.parkCallbacks {
		d.invocations.Add(1)
		cb.ThreadParkFinished(timedOut)
	}
}

// AddMethodInspectionCallback registers cb for inspection queries.
func (d *Dispatcher) AddMethodInspectionCallback(cb MethodInspectionCallback) {
	addCallback(d, &d.inspectionCallbacks, "inspection", cb)
}

// RemoveMethodInspectionCallback unregisters cb.
func (d *Dispatcher) RemoveMethodInspectionCallback(cb MethodInspectionCallback) {
	removeCallback(d, &d.inspectionCallbacks, "inspection", cb)
}

// HaveLocalsChanged reports whether any observer claims frame locals have
// changed, which vetoes on-stack replacement. Observers run in
// registration order and the query short-circuits on the first true.
func (d *Dispatcher) HaveLocalsChanged() bool {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.inspectionCallbacks {
		d.invocations.Add(1)
		if cb.HaveLocalsChanged() {
			return true
		}
	}
	return false
}

// AddDdmCallback registers cb for DDM chunk publications.
func (d *Dispatcher) AddDdmCallback(cb DdmCallback) {
	addCallback(d, &d.ddmCallbacks, "ddm", cb)
}

// RemoveDdmCallback unregisters cb.
func (d *Dispatcher) RemoveDdmCallback(cb DdmCallback) {
	removeCallback(d, &d.ddmCallbacks, "ddm", cb)
}

// DdmPublishChunk hands an opaque payload tagged with chunkType to every
// DDM observer. Observers must not retain data past the call.
func (d *Dispatcher) DdmPublishChunk(chunkType uint32, data []byte) {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.ddmCallbacks {
		d.invocations.Add(1)
		cb.DdmPublishChunk(chunkType, data)
	}
}

// AddDebuggerControlCallback registers cb as a debugger agent.
func (d *Dispatcher) AddDebuggerControlCallback(cb DebuggerControlCallback) {
	addCallback(d, &d.debuggerControlCallbacks, "debugger", cb)
}

// RemoveDebuggerControlCallback unregisters cb.
func (d *Dispatcher) RemoveDebuggerControlCallback(cb DebuggerControlCallback) {
	removeCallback(d, &d.debuggerControlCallbacks, "debugger", cb)
}

// StartDebugger tells every debugger agent to begin running.
func (d *Dispatcher) StartDebugger() {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.debuggerControlCallbacks {
		d.invocations.Add(1)
		cb.StartDebugger()
	}
}

// StopDebugger tells every debugger agent the runtime is ending.
//
// This is the one entry point that does not take the lock: it is called
// once, during teardown, after all other dispatch activity has ceased and
// mutual exclusion is no longer available. The caller is responsible for
// that ordering.
func (d *Dispatcher) StopDebugger() {
	d.log.Debug().Msg("stopping debugger agents")
	for _, cb := range d.debuggerControlCallbacks {
		cb.StopDebugger()
	}
}

// IsDebuggerConfigured reports whether any debugger agent is configured.
func (d *Dispatcher) IsDebuggerConfigured() bool {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.debuggerControlCallbacks {
		d.invocations.Add(1)
		if cb.IsDebuggerConfigured() {
			return true
		}
	}
	return false
}

// AddReflectiveValueVisitCallback registers cb for reflective target
// visits.
func (d *Dispatcher) AddReflectiveValueVisitCallback(cb ReflectiveValueVisitCallback) {
	addCallback(d, &d.reflectiveVisitCallbacks, "reflective", cb)
}

// RemoveReflectiveValueVisitCallback unregisters cb.
func (d *Dispatcher) RemoveReflectiveValueVisitCallback(cb ReflectiveValueVisitCallback) {
	removeCallback(d, &d.reflectiveVisitCallbacks, "reflective", cb)
}

// VisitReflectiveTargets hands visitor to every observer so each can
// rewrite raw references it holds. Every observer runs.
func (d *Dispatcher) VisitReflectiveTargets(visitor vm.ReflectiveVisitor) {
	d.dispatches.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cb := range d.reflectiveVisitCallbacks {
		d.invocations.Add(1)
		cb.VisitReflectiveTargets(visitor)
	}
}
