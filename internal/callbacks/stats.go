package callbacks

// Stats is a point-in-time snapshot of dispatcher activity.
type Stats struct {
	// Registered is the total number of Add calls that appended a
	// callback.
	Registered uint64

	// Removed is the total number of Remove calls that deleted a
	// callback.
	Removed uint64

	// Dispatches is the total number of dispatch entry-point calls.
	Dispatches uint64

	// Invocations is the total number of individual callback invocations
	// across all dispatches.
	Invocations uint64
}

// Stats returns a snapshot of the dispatcher's counters. The counters are
// read individually without the lock, so a snapshot taken during heavy
// concurrent dispatch may be slightly inconsistent between fields.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Registered:  d.registered.Load(),
		Removed:     d.removed.Load(),
		Dispatches:  d.dispatches.Load(),
		Invocations: d.invocations.Load(),
	}
}
