package model

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidWindow is returned by constructors when a reservation window
// does not satisfy end > start.
var ErrInvalidWindow = errors.New("reservation window must end after it starts")

// Reservation records a requester's booking of one or more equipment models
// for a time window.  The requester identity is snapshotted at creation
// time so historical records survive changes in the external identity
// system.  Windows are half-open: a reservation ending at T does not
// conflict with one starting at T.
//
// Fields:
//  ID              – primary key identifier.
//  RequesterName   – display name captured at creation.
//  RequesterEmail  – email captured at creation.
//  RequesterExtID  – user id in the external identity system.
//  StartAt         – window start (UTC).
//  EndAt           – window end (UTC), strictly after StartAt.
//  Status          – lifecycle status (see status.go).
//  ApprovalStatus  – approval gate status (see status.go).
//  AssetNameCache  – display names of assets actually handed out, filled
//                    only after a physical checkout occurs.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Reservation struct {
	ID             uint64    `json:"id"`
	RequesterName  string    `json:"requester_name"`
	RequesterEmail string    `json:"requester_email"`
	RequesterExtID uint64    `json:"requester_ext_id"`
	StartAt        time.Time `json:"start_at"`
	EndAt          time.Time `json:"end_at"`
	Status         string    `json:"status"`
	ApprovalStatus string    `json:"approval_status"`
	AssetNameCache *string   `json:"asset_name_cache,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewReservation builds a PENDING reservation after validating the window
// and the requester snapshot.  The approval status must be one of the
// Approval* constants; passing an empty string defaults to AUTO_APPROVED.
func NewReservation(name, email string, extID uint64, start, end time.Time, approval string) (*Reservation, error) {
	if !end.After(start) {
		return nil, ErrInvalidWindow
	}
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || extID == 0 {
		return nil, errors.New("requester snapshot requires name, email and external id")
	}
	if approval == "" {
		approval = ApprovalAuto
	}
	return &Reservation{
		RequesterName:  name,
		RequesterEmail: email,
		RequesterExtID: extID,
		StartAt:        start.UTC(),
		EndAt:          end.UTC(),
		Status:         StatusPending,
		ApprovalStatus: approval,
	}, nil
}

// Overlaps reports whether the reservation window overlaps the given
// half-open interval.  Back-to-back windows do not overlap.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartAt.Before(end) && r.EndAt.After(start)
}

// ReservationItem is one line of a reservation: a quantity of a single
// external model.  Items are created atomically with their parent
// reservation and never mutated afterwards; a changed requirement becomes
// a new reservation.
type ReservationItem struct {
	ID            uint64    `json:"id"`
	ReservationID uint64    `json:"reservation_id"`
	ModelID       uint64    `json:"model_id"`
	Quantity      uint32    `json:"quantity"`
	NameCache     string    `json:"name_cache"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewReservationItem validates a line at construction.  Quantity must be
// at least one and the model id must be set.
func NewReservationItem(modelID uint64, quantity uint32, name string) (*ReservationItem, error) {
	if modelID == 0 {
		return nil, errors.New("reservation item requires a model id")
	}
	if quantity < 1 {
		return nil, errors.New("reservation item quantity must be at least 1")
	}
	return &ReservationItem{ModelID: modelID, Quantity: quantity, NameCache: name}, nil
}
