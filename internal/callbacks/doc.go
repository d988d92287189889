// Package callbacks is the extension-point dispatcher of the kestrel
// runtime. It lets loosely-coupled observers (debugger agents, telemetry
// collectors, the JIT, monitor and thread-park instrumentation, class
// loading machinery) react to runtime lifecycle events without the engine
// depending on any of them.
//
// # Architecture
//
// The package has two layers:
//
//   - Eleven single-purpose callback interfaces, one per event category
//     (thread lifecycle, class loading, SIGQUIT, runtime phase, native
//     method registration, monitor, thread park, method inspection, DDM
//     publishing, debugger control, reflective value visiting). Each is a
//     leaf with no dependency on the others.
//   - A Dispatcher owning one insertion-ordered list of callback
//     references per category, all guarded by a single reader/writer lock,
//     with per-category Add, Remove, and dispatch entry points.
//
// Registration takes the lock exclusively; dispatch takes it shared and
// holds it across the whole fan-out. Many dispatches may therefore run in
// parallel, and a callback is free to block, but no registration or
// removal can complete while any dispatch is in flight, and no callback
// can still be running a dispatch once its removal has returned.
//
// # Lock ordering
//
// The dispatcher's lock is the bottom of the runtime's lock order: nothing
// is ever acquired while holding it. Dispatch calls into arbitrary
// observer code that may itself take locks, suspend the calling thread, or
// request a runtime-wide pause; acquiring anything above this lock on a
// dispatch path would invert that order. The one exemption is
// StopDebugger, which runs during process teardown after mutual exclusion
// is no longer available and reads its list without the lock.
//
// # Caller contracts
//
// These rules are preconditions, not conditions the dispatcher detects:
//
//   - Only the owner of a callback may add or remove it.
//   - A callback must never add or remove any callback, including itself,
//     while it is running. The lock is not reentrant; violating this
//     deadlocks the calling thread rather than corrupting the lists.
//   - Registering the same callback twice in one category is a bug; it is
//     unspecified whether it is then invoked once or twice per event.
//   - After removing a callback its owner must keep it usable until it can
//     prove no dispatch that started before the removal is still running.
//
// The simplest way to satisfy the contracts is to register once at startup
// and never remove, doing any enabled/disabled checking inside the
// callback itself.
package callbacks
