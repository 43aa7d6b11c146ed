package errorhandler

// ErrorPhase indicates where in the consume cycle an error occurred
type ErrorPhase int

const (
	PhaseUnknown   ErrorPhase = iota // zero value - uninitialized phase
	PhasePoll                        // error reported by a poll
	PhaseRebalance                   // error delivered to the rebalance callback
	PhaseDispatch                    // error returned by the message handler
	PhaseCommit                      // error committing offsets
)

func (p ErrorPhase) String() string {
	switch p {
	case PhaseUnknown:
		return "unknown"
	case PhasePoll:
		return "poll"
	case PhaseRebalance:
		return "rebalance"
	case PhaseDispatch:
		return "dispatch"
	case PhaseCommit:
		return "commit"
	default:
		return "unknown"
	}
}
