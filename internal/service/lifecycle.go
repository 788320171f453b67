package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/model"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/repository"
)

// LifecycleService applies explicit actor-driven lifecycle transitions:
// cancellation and the approval gate.  Time-driven transitions live in
// Sweeper, checkout-driven ones in StaffCheckoutService; all three go
// through the same model.CanTransition table and append to the same
// history trail.
type LifecycleService struct {
	store  repository.Store
	events EventPublisher
}

// NewLifecycleService constructs the service.  events may be nil.
func NewLifecycleService(store repository.Store, events EventPublisher) *LifecycleService {
	if store == nil {
		panic("nil store passed to NewLifecycleService")
	}
	return &LifecycleService{store: store, events: events}
}

// Cancel moves a reservation to CANCELLED.  Staff may cancel any
// non-terminal reservation; requesters only their own, and only before
// the pickup window opens.  Attempts to cancel a terminal reservation
// are rejected with a ConflictError, not silently ignored.
func (s *LifecycleService) Cancel(ctx context.Context, id uint64, actor Actor, note string) error {
	if id == 0 {
		return &ValidationError{Field: "reservation_id", Reason: "must be a positive integer"}
	}
	var res *model.Reservation
	txErr := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.GetReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.Staff {
			if res.RequesterExtID != actor.ExternalID {
				return repository.ErrForbidden
			}
			if !res.StartAt.After(time.Now().UTC()) {
				return &ConflictError{Reason: "pickup window already started; contact staff to cancel"}
			}
		}
		if !model.CanTransition(res.Status, model.StatusCancelled) {
			return &ConflictError{Reason: fmt.Sprintf("cannot cancel a %s reservation", res.Status)}
		}
		if err := tx.UpdateStatus(ctx, id, res.Status, model.StatusCancelled); err != nil {
			return err
		}
		if res.ApprovalStatus == model.ApprovalPending {
			if err := tx.UpdateApproval(ctx, id, model.ApprovalRejected); err != nil {
				return err
			}
		}
		return tx.AppendHistory(ctx, &model.LifecycleEvent{
			ReservationID: id,
			FromStatus:    res.Status,
			ToStatus:      model.StatusCancelled,
			Actor:         actor.String(),
			Note:          note,
		})
	})
	if txErr != nil {
		return mapTxError(txErr, "cancel reservation")
	}
	publishEvent(ctx, s.events, res, res.Status, model.StatusCancelled, "cancel", note)
	return nil
}

// Approve grants the approval gate on a reservation that is still waiting
// for it.  Approval does not change the lifecycle status; it only stops
// the stale-approval sweep from cancelling the reservation.
func (s *LifecycleService) Approve(ctx context.Context, id uint64, actor Actor) error {
	return s.decideApproval(ctx, id, actor, true)
}

// RejectApproval denies the approval gate and cancels the reservation if
// it has not already reached a terminal state.
func (s *LifecycleService) RejectApproval(ctx context.Context, id uint64, actor Actor) error {
	return s.decideApproval(ctx, id, actor, false)
}

func (s *LifecycleService) decideApproval(ctx context.Context, id uint64, actor Actor, approve bool) error {
	if id == 0 {
		return &ValidationError{Field: "reservation_id", Reason: "must be a positive integer"}
	}
	if !actor.Staff {
		return repository.ErrForbidden
	}
	var res *model.Reservation
	var cancelled bool
	txErr := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.GetReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if res.ApprovalStatus != model.ApprovalPending {
			return &ConflictError{Reason: fmt.Sprintf("reservation approval is already %s", res.ApprovalStatus)}
		}
		if approve {
			if err := tx.UpdateApproval(ctx, id, model.ApprovalApproved); err != nil {
				return err
			}
			return tx.AppendHistory(ctx, &model.LifecycleEvent{
				ReservationID: id,
				FromStatus:    res.Status,
				ToStatus:      res.Status,
				Actor:         actor.String(),
				Note:          "approval granted",
			})
		}
		if err := tx.UpdateApproval(ctx, id, model.ApprovalRejected); err != nil {
			return err
		}
		// A terminal reservation keeps its status; the history entry must
		// not claim a transition that never happened.
		to := res.Status
		if model.CanTransition(res.Status, model.StatusCancelled) {
			if err := tx.UpdateStatus(ctx, id, res.Status, model.StatusCancelled); err != nil {
				return err
			}
			cancelled = true
			to = model.StatusCancelled
		}
		return tx.AppendHistory(ctx, &model.LifecycleEvent{
			ReservationID: id,
			FromStatus:    res.Status,
			ToStatus:      to,
			Actor:         actor.String(),
			Note:          "approval rejected",
		})
	})
	if txErr != nil {
		return mapTxError(txErr, "approval decision")
	}
	if cancelled {
		publishEvent(ctx, s.events, res, res.Status, model.StatusCancelled, "staff", "approval rejected")
	}
	return nil
}

// mapTxError keeps typed engine errors and repository sentinels intact and
// wraps everything else as a StorageError.
func mapTxError(err error, op string) error {
	var conflict *ConflictError
	var validation *ValidationError
	switch {
	case errors.As(err, &conflict):
		return conflict
	case errors.As(err, &validation):
		return validation
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrForbidden),
		errors.Is(err, repository.ErrStaleStatus):
		return err
	default:
		return &StorageError{Op: op, Err: err}
	}
}
