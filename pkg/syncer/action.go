package syncer

// Action says how a remote update should be taken in.
type Action int

const (
	// BulkSync snaps the replica to the remote state.
	BulkSync Action = iota
	// TurnTransition is a single player's move. It is queued so the move
	// can be replayed before the state is committed.
	TurnTransition
	// Reset replaces the replica and asks the client to reinitialise.
	Reset
)

func (a Action) String() string {
	switch a {
	case BulkSync:
		return "bulk-sync"
	case TurnTransition:
		return "turn-transition"
	case Reset:
		return "reset"
	default:
		return "unknown"
	}
}

// Classify tells a single move apart from a bulk update. An update is a
// move when it is exactly one version ahead and hands the turn to someone
// else. Two unrelated changes can satisfy this by coincidence, in which
// case a bulk update is replayed as a move.
func Classify(oldVersion, newVersion, oldTurn, newTurn int) Action {
	if newVersion == 0 {
		return Reset
	}
	if newVersion == oldVersion+1 && newTurn != oldTurn {
		return TurnTransition
	}
	return BulkSync
}
