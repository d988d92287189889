package simvm

import (
	"sync"

	"github.com/kestrelvm/kestrel/internal/callbacks"
	"github.com/kestrelvm/kestrel/internal/vm"
)

// methodBinding pairs a method identity with its installed native
// implementation.
type methodBinding struct {
	method *vm.Method
	impl   vm.NativeImpl
}

// methodTable is the workload's native-method registry. It holds raw
// method references, which makes it exactly the kind of observer the
// reflective visit protocol exists for: after a compaction it patches its
// references through the visitor.
type methodTable struct {
	mu       sync.Mutex
	bindings []methodBinding
}

func (t *methodTable) attach(d *callbacks.Dispatcher) {
	d.AddReflectiveValueVisitCallback(t)
}

func (t *methodTable) detach(d *callbacks.Dispatcher) {
	d.RemoveReflectiveValueVisitCallback(t)
}

func (t *methodTable) bind(m *vm.Method, impl vm.NativeImpl) {
	t.mu.Lock()
	t.bindings = append(t.bindings, methodBinding{method: m, impl: impl})
	t.mu.Unlock()
}

// any returns one bound implementation, or nil if none are bound yet.
func (t *methodTable) any() vm.NativeImpl {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.bindings) == 0 {
		return nil
	}
	return t.bindings[0].impl
}

// methods returns the currently held method identities.
func (t *methodTable) methods() []*vm.Method {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*vm.Method, len(t.bindings))
	for i, b := range t.bindings {
		out[i] = b.method
	}
	return out
}

// VisitReflectiveTargets implements callbacks.ReflectiveValueVisitCallback
// by rewriting every held method reference.
func (t *methodTable) VisitReflectiveTargets(visitor vm.ReflectiveVisitor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.bindings {
		t.bindings[i].method = visitor.VisitMethod(t.bindings[i].method)
	}
}

// remap builds a visitor that maps every currently held method to a fresh
// identity, simulating what a moving collector does to method metadata.
func (t *methodTable) remap() *remapVisitor {
	t.mu.Lock()
	defer t.mu.Unlock()

	mapping := make(map[*vm.Method]*vm.Method, len(t.bindings))
	for _, b := range t.bindings {
		old := b.method
		mapping[old] = vm.NewMethod(old.Class(), old.Name(), old.Signature(), old.IsNative())
	}
	return &remapVisitor{methods: mapping}
}

// remapVisitor rewrites method references according to a fixed mapping and
// leaves everything else alone.
type remapVisitor struct {
	methods map[*vm.Method]*vm.Method
}

func (v *remapVisitor) VisitMethod(m *vm.Method) *vm.Method {
	if repl, ok := v.methods[m]; ok {
		return repl
	}
	return m
}

func (v *remapVisitor) VisitField(f *vm.Field) *vm.Field { return f }
