// Package queue defines message payloads exchanged over the message broker
// and the publisher/consumer pair for the reservation.lifecycle queue.
// The notification system consumes these events out of process; the engine
// itself never sends mail or chat messages.
package queue

// ReservationEvent is published whenever a reservation changes status.
// It carries enough information for downstream consumers to notify the
// requester or feed analytics without querying the primary database.
type ReservationEvent struct {
	EventID        string `json:"event_id"`
	ReservationID  uint64 `json:"reservation_id"`
	RequesterExtID uint64 `json:"requester_ext_id"`
	RequesterName  string `json:"requester_name"`
	RequesterEmail string `json:"requester_email"`
	FromStatus     string `json:"from_status"`
	ToStatus       string `json:"to_status"`
	StartsAt       string `json:"starts_at"`
	EndsAt         string `json:"ends_at"`
	Trigger        string `json:"trigger"` // "checkout", "staff", "sweeper", "cancel"
	Note           string `json:"note,omitempty"`
	OccurredAt     string `json:"occurred_at"`
}
