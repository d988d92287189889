package vm

import "fmt"

// Thread identifies one runtime thread. The scheduler owns the Thread and
// reuses the same pointer for every event concerning that thread, so
// observers may use pointer identity to correlate start and death.
type Thread struct {
	id   int64
	name string
}

// NewThread creates a thread identity. Called by the scheduler only.
func NewThread(id int64, name string) *Thread {
	return &Thread{id: id, name: name}
}

// ID returns the runtime-assigned thread id.
func (t *Thread) ID() int64 { return t.id }

// Name returns the thread name.
func (t *Thread) Name() string { return t.name }

func (t *Thread) String() string {
	return fmt.Sprintf("thread %d (%s)", t.id, t.name)
}

// Object is a heap object reference.
type Object struct {
	id int64
}

// NewObject creates an object reference with the given identity.
func NewObject(id int64) *Object { return &Object{id: id} }

// ID returns the object identity.
func (o *Object) ID() int64 { return o.id }

// Monitor is the lock word associated with one object. Monitor events carry
// the Monitor, not the Object, because the object may not yet be published
// to the thread observing the contention.
type Monitor struct {
	obj *Object
}

// NewMonitor creates the monitor for obj.
func NewMonitor(obj *Object) *Monitor { return &Monitor{obj: obj} }

// Object returns the object this monitor guards.
func (m *Monitor) Object() *Object { return m.obj }

// ClassLoader identifies the loader a class definition is attributed to.
type ClassLoader struct {
	name string
}

// NewClassLoader creates a loader identity.
func NewClassLoader(name string) *ClassLoader { return &ClassLoader{name: name} }

// Name returns the loader name.
func (l *ClassLoader) Name() string { return l.name }

// ClassFile is a bytecode container: the compiled artifact one or more
// class definitions are read from. Observers may substitute a different
// container during pre-define negotiation.
type ClassFile struct {
	location string
	data     []byte
}

// NewClassFile creates a container backed by data at the given location.
func NewClassFile(location string, data []byte) *ClassFile {
	return &ClassFile{location: location, data: data}
}

// Location returns where the container was loaded from.
func (f *ClassFile) Location() string { return f.location }

// Len returns the container size in bytes.
func (f *ClassFile) Len() int { return len(f.data) }

// ClassDef is one class-definition record inside a ClassFile.
type ClassDef struct {
	file       *ClassFile
	descriptor string
	index      int
}

// NewClassDef creates the definition record at index for descriptor.
func NewClassDef(file *ClassFile, descriptor string, index int) *ClassDef {
	return &ClassDef{file: file, descriptor: descriptor, index: index}
}

// File returns the container this definition lives in.
func (d *ClassDef) File() *ClassFile { return d.file }

// Descriptor returns the class descriptor, e.g. "Lkestrel/Main;".
func (d *ClassDef) Descriptor() string { return d.descriptor }

// Index returns the record's position within its container.
func (d *ClassDef) Index() int { return d.index }

// Class is a runtime class object. During definition the runtime may create
// a temporary Class and later replace it with the final one; observers
// receive both identities at prepare time and must not assume they are the
// same pointer.
type Class struct {
	descriptor string
	loader     *ClassLoader
	linked     bool
}

// NewClass creates a class object for descriptor under loader.
func NewClass(descriptor string, loader *ClassLoader) *Class {
	return &Class{descriptor: descriptor, loader: loader}
}

// Descriptor returns the class descriptor.
func (c *Class) Descriptor() string { return c.descriptor }

// Loader returns the defining loader.
func (c *Class) Loader() *ClassLoader { return c.loader }

// Linked reports whether the class has been linked.
func (c *Class) Linked() bool { return c.linked }

// MarkLinked records that linking completed. Class loader only.
func (c *Class) MarkLinked() { c.linked = true }

// Method identifies one method of a class.
type Method struct {
	class  *Class
	name   string
	sig    string
	native bool
}

// NewMethod creates a method identity.
func NewMethod(class *Class, name, sig string, native bool) *Method {
	return &Method{class: class, name: name, sig: sig, native: native}
}

// Class returns the declaring class.
func (m *Method) Class() *Class { return m.class }

// Name returns the method name.
func (m *Method) Name() string { return m.name }

// Signature returns the method signature.
func (m *Method) Signature() string { return m.sig }

// IsNative reports whether the method is declared native.
func (m *Method) IsNative() bool { return m.native }

func (m *Method) String() string {
	if m.class != nil {
		return m.class.descriptor + "." + m.name + m.sig
	}
	return m.name + m.sig
}

// Field identifies one field of a class.
type Field struct {
	class *Class
	name  string
}

// NewField creates a field identity.
func NewField(class *Class, name string) *Field {
	return &Field{class: class, name: name}
}

// Class returns the declaring class.
func (f *Field) Class() *Class { return f.class }

// Name returns the field name.
func (f *Field) Name() string { return f.name }

// NativeImpl is the implementation installed for a native method. It is a
// func value so that observers can wrap the current implementation and the
// wraps compose in registration order.
type NativeImpl func(t *Thread, args []any) any

// ReflectiveVisitor rewrites raw method and field references after an
// operation that invalidates previously captured identities (compaction, or
// class redefinition replacing a temporary class). Implementations return
// the replacement reference, or the input unchanged if it is still valid.
type ReflectiveVisitor interface {
	VisitMethod(m *Method) *Method
	VisitField(f *Field) *Field
}
