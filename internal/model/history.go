package model

import "time"

// LifecycleEvent is one row of the append-only lifecycle_history audit
// trail.  A record is appended for every status transition, whether it was
// driven by a requester, by staff or by the scheduled sweeper.  Records are
// never updated or deleted.
type LifecycleEvent struct {
	ID            uint64    `json:"id"`
	ReservationID uint64    `json:"reservation_id"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	Actor         string    `json:"actor"` // e.g. "requester:42", "staff:7", "sweeper"
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
