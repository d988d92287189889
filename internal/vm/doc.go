// Package vm declares the engine objects that cross the runtime callback
// boundary: threads, monitors, classes, methods, and the artifacts a class
// is defined from.
//
// These types are deliberately thin. The dispatcher and its observers only
// ever hold references to them; construction, mutation, and destruction
// belong to the engine subsystems (scheduler, class loader, monitor
// implementation) that produce them. Nothing in this package is safe to
// mutate from an observer.
package vm
