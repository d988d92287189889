package callbacks

import (
	"github.com/kestrelvm/kestrel/internal/vm"
)

// ThreadLifecycleCallback observes threads attaching to and detaching from
// the runtime. Start and death are independent events; the dispatcher does
// not pair them, the scheduler delivers each exactly once per real
// transition.
type ThreadLifecycleCallback interface {
	ThreadStart(t *vm.Thread)
	ThreadDeath(t *vm.Thread)
}

// ClassLoadCallback observes the class definition pipeline.
//
// BeginDefineClass and EndDefineClass bracket one definition attempt. The
// class loader pairs them on every exit path, including failure, so
// nesting-sensitive observers stay consistent.
//
// ClassLoad fires once a class object exists but before it is linked.
// ClassPrepare fires after linking with both the possibly-temporary class
// object and the final one; resolution may have replaced a placeholder, so
// observers must treat the two as potentially distinct identities for the
// same logical class.
//
// ClassPreDefine lets an observer redirect which bytecode container and
// class-definition record are used before the class object is created.
// Observers chain: each receives the selection produced by the previous
// observer and returns its own, nil meaning keep the current selection.
type ClassLoadCallback interface {
	BeginDefineClass()
	EndDefineClass()
	ClassPreDefine(descriptor string, tempClass *vm.Class, loader *vm.ClassLoader,
		file *vm.ClassFile, def *vm.ClassDef) (*vm.ClassFile, *vm.ClassDef)
	ClassLoad(class *vm.Class)
	ClassPrepare(tempClass, class *vm.Class)
}

// SigQuitCallback is notified when the process receives SIGQUIT. Purely
// advisory; the conventional response is to dump diagnostic state.
type SigQuitCallback interface {
	SigQuit()
}

// RuntimePhaseCallback observes runtime lifecycle milestones. Callbacks
// must not block the transition.
type RuntimePhaseCallback interface {
	NextRuntimePhase(phase RuntimePhase)
}

// MethodCallback observes native method registration. Each callback
// receives the implementation chosen so far and may return a replacement
// (typically a wrapper around it); nil keeps the current implementation.
// The final result is what the runtime actually installs.
type MethodCallback interface {
	RegisterNativeMethod(m *vm.Method, current vm.NativeImpl) vm.NativeImpl
}

// MonitorCallback observes monitor contention and Object.wait.
//
// MonitorContendedLocking fires just before a thread sleeps waiting for a
// held monitor; MonitorContendedLocked just after it finally acquires it.
// An uncontended acquisition skips both. ObjectWaitStart fires on entry to
// wait regardless of validity; MonitorWaitFinished fires after every wait
// that slept, or could have slept, with no lock held at that point.
type MonitorCallback interface {
	MonitorContendedLocking(m *vm.Monitor)
	MonitorContendedLocked(m *vm.Monitor)
	ObjectWaitStart(obj *vm.Object, timeoutMillis int64)
	MonitorWaitFinished(m *vm.Monitor, timedOut bool)
}

// ParkCallback observes thread parking. ThreadParkFinished follows
// ThreadParkStart whenever a real suspension occurred.
type ParkCallback interface {
	ThreadParkStart(isAbsolute bool, timeoutMillis int64)
	ThreadParkFinished(timedOut bool)
}

// MethodInspectionCallback lets an observer declare that it depends on
// frames staying in their current state. A true result from any callback
// vetoes on-stack replacement; the dispatcher short-circuits on the first
// true. Observers should not rely on always being consulted.
type MethodInspectionCallback interface {
	HaveLocalsChanged() bool
}

// DdmCallback receives DDM chunk publications: opaque byte payloads tagged
// with a type code, forwarded to attached tooling.
type DdmCallback interface {
	DdmPublishChunk(chunkType uint32, data []byte)
}

// DebuggerControlCallback is implemented by debugger agents.
//
// StopDebugger is advisory and is delivered during process teardown
// outside the normal lock discipline; see the package comment.
type DebuggerControlCallback interface {
	StartDebugger()
	StopDebugger()
	IsDebuggerConfigured() bool
}

// ReflectiveValueVisitCallback is notified when reflective targets are
// being visited and updated, so holders of raw method or field references
// can rewrite them through the visitor. Every callback runs; there is no
// short-circuit.
type ReflectiveValueVisitCallback interface {
	VisitReflectiveTargets(visitor vm.ReflectiveVisitor)
}

// NopClassLoadCallback is an embeddable no-op implementation of
// ClassLoadCallback for observers that only care about a subset of the
// class pipeline.
type NopClassLoadCallback struct{}

func (NopClassLoadCallback) BeginDefineClass() {}
func (NopClassLoadCallback) EndDefineClass()   {}

func (NopClassLoadCallback) ClassPreDefine(string, *vm.Class, *vm.ClassLoader,
	*vm.ClassFile, *vm.ClassDef) (*vm.ClassFile, *vm.ClassDef) {
	return nil, nil
}

func (NopClassLoadCallback) ClassLoad(*vm.Class)               {}
func (NopClassLoadCallback) ClassPrepare(*vm.Class, *vm.Class) {}

// NopMonitorCallback is an embeddable no-op implementation of
// MonitorCallback.
type NopMonitorCallback struct{}

func (NopMonitorCallback) MonitorContendedLocking(*vm.Monitor)   {}
func (NopMonitorCallback) MonitorContendedLocked(*vm.Monitor)    {}
func (NopMonitorCallback) ObjectWaitStart(*vm.Object, int64)     {}
func (NopMonitorCallback) MonitorWaitFinished(*vm.Monitor, bool) {}
