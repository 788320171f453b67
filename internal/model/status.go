package model

// Reservation status values.  A reservation starts in PENDING and moves
// forward through the lifecycle as staff hand out and take back physical
// assets, or sideways into a terminal state when it is cancelled or the
// pickup window elapses without any checkout.
const (
	StatusPending   = "PENDING"   // created, no asset handed out yet
	StatusConfirmed = "CONFIRMED" // at least one asset checked out
	StatusCompleted = "COMPLETED" // all outstanding assets checked back in
	StatusCancelled = "CANCELLED" // explicitly cancelled by staff or requester
	StatusMissed    = "MISSED"    // pickup window elapsed with no checkout
)

// Approval status values for the optional approval gate.  Reservations
// created while the gate is enabled start in PENDING_APPROVAL and are
// rejected by the sweeper if never approved before start time.
const (
	ApprovalPending  = "PENDING_APPROVAL"
	ApprovalApproved = "APPROVED"
	ApprovalAuto     = "AUTO_APPROVED"
	ApprovalRejected = "REJECTED"
)

// CommittingStatuses are the statuses whose reservation items count against
// a model's capacity for overlapping windows.  MISSED and CANCELLED
// reservations release their quantities.
var CommittingStatuses = []string{StatusPending, StatusConfirmed, StatusCompleted}

// transitions encodes the full lifecycle table.  Keys are the current
// status, values the set of statuses reachable from it.  Statuses absent
// from the map are terminal.
var transitions = map[string]map[string]bool{
	StatusPending: {
		StatusConfirmed: true, // staff checked out at least one asset
		StatusMissed:    true, // sweeper: start passed cutoff with no checkout
		StatusCancelled: true, // explicit cancel or stale-approval sweep
	},
	StatusConfirmed: {
		StatusCompleted: true, // staff checked the outstanding assets back in
		StatusCancelled: true, // explicit staff cancel
	},
}

// CanTransition reports whether a reservation may move from one status to
// another.  Terminal statuses (COMPLETED, CANCELLED, MISSED) have no
// outgoing edges.  Self transitions are not allowed; callers that need to
// re-confirm an already CONFIRMED reservation should not touch the status.
func CanTransition(from, to string) bool {
	return transitions[from][to]
}

// IsTerminal reports whether no transition leaves the given status.
func IsTerminal(status string) bool {
	return len(transitions[status]) == 0
}

// IsCommitting reports whether a reservation in the given status counts
// against model capacity.
func IsCommitting(status string) bool {
	for _, s := range CommittingStatuses {
		if s == status {
			return true
		}
	}
	return false
}
