package emitter

// State is the lifecycle state of an emitter. Exactly one state is live at
// any time; Inactive is both the start and the terminal state.
type State int32

const (
	// StateInactive means the emitter holds no resources.
	StateInactive State = iota
	// StateSpawning means the lifecycle task is initializing the emitter.
	StateSpawning
	// StateVirtual means the emitter is tracked and scored but silent.
	StateVirtual
	// StatePhysical means the emitter occupies a DSP voice slot.
	StatePhysical
	// StateReleasing means the emitter is fading out toward Inactive.
	StateReleasing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateSpawning:
		return "spawning"
	case StateVirtual:
		return "virtual"
	case StatePhysical:
		return "physical"
	case StateReleasing:
		return "releasing"
	default:
		return "unknown"
	}
}

// validTransition reports whether from -> to is an allowed lifecycle edge.
func validTransition(from, to State) bool {
	switch from {
	case StateInactive:
		return to == StateSpawning
	case StateSpawning:
		return to == StateVirtual || to == StatePhysical || to == StateReleasing
	case StateVirtual:
		return to == StatePhysical || to == StateReleasing
	case StatePhysical:
		return to == StateVirtual || to == StateReleasing
	case StateReleasing:
		// Inactive ends a release tail; Virtual ends a demotion fade.
		return to == StateInactive || to == StateVirtual
	default:
		return false
	}
}
