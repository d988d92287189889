package callbacks

// RuntimePhase is a runtime lifecycle milestone delivered to
// RuntimePhaseCallback observers. The dispatcher imposes no ordering
// between phases; callers are expected to deliver them in declaration
// order, ending at PhaseDeath.
type RuntimePhase int

const (
	// PhaseInitialAgents means initial agent loading is done.
	PhaseInitialAgents RuntimePhase = iota

	// PhaseStart means the runtime is started.
	PhaseStart

	// PhaseInit means the runtime is initialized and will run user code
	// soon.
	PhaseInit

	// PhaseDeath means the runtime just died. No further runtime activity
	// is expected after this phase is delivered.
	PhaseDeath
)

// String returns the phase name.
func (p RuntimePhase) String() string {
	switch p {
	case PhaseInitialAgents:
		return "initial-agents"
	case PhaseStart:
		return "start"
	case PhaseInit:
		return "init"
	case PhaseDeath:
		return "death"
	default:
		return "unknown"
	}
}
