package etl

// RunState tracks where a run is in its linear pass. Transitions are fixed;
// in particular no path reaches SUCCESS without passing through LOADING and
// its dedup check.
type RunState string

const (
	StateIdle        RunState = "IDLE"
	StateExtracting  RunState = "EXTRACTING"
	StateAggregating RunState = "AGGREGATING"
	StateResolving   RunState = "RESOLVING"
	StateLoading     RunState = "LOADING"
	StateSuccess     RunState = "SUCCESS"
	StateError       RunState = "ERROR"
)

var transitions = map[RunState][]RunState{
	StateIdle:        {StateExtracting},
	StateExtracting:  {StateAggregating, StateError},
	StateAggregating: {StateResolving, StateError},
	StateResolving:   {StateLoading, StateError},
	StateLoading:     {StateSuccess, StateError},
	StateSuccess:     {StateIdle},
	StateError:       {StateIdle},
}

// CanTransition reports whether moving to next is a legal state change
func (s RunState) CanTransition(next RunState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the state ends a run
func (s RunState) Terminal() bool {
	return s == StateSuccess || s == StateError
}
