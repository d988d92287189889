// Package agent hosts Lua-scripted runtime observers.
//
// An agent is a single Lua script that declares global handler functions
// for the events it cares about:
//
//	function on_thread_start(id, name) end
//	function on_thread_death(id, name) end
//	function on_class_load(descriptor) end
//	function on_class_prepare(descriptor) end
//	function on_phase(name) end
//	function on_sigquit() end
//
// Missing handlers are skipped. Each Host owns one Lua state; a mutex
// serializes all calls into it because gopher-lua states are not
// goroutine-safe. Scripts run with only the base, table, string, and math
// libraries opened, so they cannot touch the file system or spawn
// processes.
package agent

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/kestrelvm/kestrel/internal/callbacks"
	"github.com/kestrelvm/kestrel/internal/vm"
)

// Host runs one agent script and forwards runtime events to it.
type Host struct {
	callbacks.NopClassLoadCallback

	id   string
	name string
	log  zerolog.Logger

	// mu serializes access to the Lua state.
	mu     sync.Mutex
	state  *lua.LState
	closed bool
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithLogger sets the structured logger used for script errors.
func WithLogger(log zerolog.Logger) HostOption {
	return func(h *Host) {
		h.log = log
	}
}

// NewHost loads the script at path and returns a host ready to attach.
func NewHost(path string, opts ...HostOption) (*Host, error) {
	h := &Host{
		id:   uuid.NewString(),
		name: filepath.Base(path),
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, fmt.Errorf("agent %s: load: %w", h.name, err)
	}

	h.state = L
	h.log.Debug().Str("agent", h.name).Str("id", h.id).Msg("agent loaded")
	return h, nil
}

// openSafeLibraries opens the Lua standard libraries agents are allowed to
// use. io, os, debug, and package stay closed.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// ID returns the host's unique instance id.
func (h *Host) ID() string { return h.id }

// Name returns the script file name.
func (h *Host) Name() string { return h.name }

// Close releases the Lua state. The host must be detached first; events
// delivered after Close are dropped.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.state.Close()
}

// Attach registers the host for the categories agents can script.
func (h *Host) Attach(d *callbacks.Dispatcher) {
	d.AddThreadLifecycleCallback(h)
	d.AddClassLoadCallback(h)
	d.AddRuntimePhaseCallback(h)
	d.AddSigQuitCallback(h)
}

// Detach unregisters the host from every category Attach registered.
func (h *Host) Detach(d *callbacks.Dispatcher) {
	d.RemoveThreadLifecycleCallback(h)
	d.RemoveClassLoadCallback(h)
	d.RemoveRuntimePhaseCallback(h)
	d.RemoveSigQuitCallback(h)
}

// call invokes the global Lua function fn if the script defines one.
// Script errors are logged, never propagated: a broken agent must not take
// down a dispatch.
func (h *Host) call(fn string, args ...lua.LValue) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	target, ok := h.state.GetGlobal(fn).(*lua.LFunction)
	if !ok {
		return
	}

	err := h.state.CallByParam(lua.P{
		Fn:      target,
		NRet:    0,
		Protect: true,
	}, args...)
	if err != nil {
		h.log.Warn().Str("agent", h.name).Str("handler", fn).Err(err).
			Msg("agent handler failed")
	}
}

// ThreadStart implements callbacks.ThreadLifecycleCallback.
func (h *Host) ThreadStart(t *vm.Thread) {
	h.call("on_thread_start", lua.LNumber(t.ID()), lua.LString(t.Name()))
}

// ThreadDeath implements callbacks.ThreadLifecycleCallback.
func (h *Host) ThreadDeath(t *vm.Thread) {
	h.call("on_thread_death", lua.LNumber(t.ID()), lua.LString(t.Name()))
}

// ClassLoad implements callbacks.ClassLoadCallback.
func (h *Host) ClassLoad(class *vm.Class) {
	h.call("on_class_load", lua.LString(class.Descriptor()))
}

// ClassPrepare implements callbacks.ClassLoadCallback.
func (h *Host) ClassPrepare(tempClass, class *vm.Class) {
	h.call("on_class_prepare", lua.LString(class.Descriptor()))
}

// NextRuntimePhase implements callbacks.RuntimePhaseCallback.
func (h *Host) NextRuntimePhase(p callbacks.RuntimePhase) {
	h.call("on_phase", lua.LString(p.String()))
}

// SigQuit implements callbacks.SigQuitCallback.
func (h *Host) SigQuit() {
	h.call("on_sigquit")
}
