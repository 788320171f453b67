package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/model"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/repository"
)

// SweepReport summarizes one sweeper run.  Errors holds the failures of
// individual passes; a non-empty Errors never means the run crashed,
// only that some reservations were left for the next run.
type SweepReport struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	MissedCount    int       `json:"missed_count"`
	CancelledCount int       `json:"cancelled_count"`
	Errors         []string  `json:"errors,omitempty"`
}

// Sweeper periodically closes out reservations that nobody acted on:
// PENDING reservations whose pickup window elapsed become MISSED, and
// reservations still awaiting approval long after their start time are
// cancelled.  Both passes release the committed quantities so the units
// become bookable again.
type Sweeper struct {
	store         repository.Store
	events        EventPublisher
	cutoff        time.Duration
	approvalGrace time.Duration
}

// NewSweeper constructs a sweeper.  cutoff is how long after start time a
// PENDING reservation is considered missed; approvalGrace is how long an
// unapproved reservation may sit past its start time before the stale
// approval pass rejects it.  Non-positive values fall back to one hour
// and one day respectively.
func NewSweeper(store repository.Store, events EventPublisher, cutoff, approvalGrace time.Duration) *Sweeper {
	if store == nil {
		panic("nil store passed to NewSweeper")
	}
	if cutoff <= 0 {
		cutoff = time.Hour
	}
	if approvalGrace <= 0 {
		approvalGrace = 24 * time.Hour
	}
	return &Sweeper{store: store, events: events, cutoff: cutoff, approvalGrace: approvalGrace}
}

// Run executes both sweep passes once and reports what changed.  The
// passes run in separate transactions so a failure in one never blocks
// the other, and a failing run is retried naturally on the next tick
// because selection is driven purely by status and start time.
func (s *Sweeper) Run(ctx context.Context) *SweepReport {
	report := &SweepReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	missed, err := s.sweepMissed(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("missed pass: %v", err))
		log.Printf("sweep %s: missed pass failed: %v", report.RunID, err)
	}
	report.MissedCount = len(missed)

	cancelled, err := s.sweepStaleApprovals(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("stale approval pass: %v", err))
		log.Printf("sweep %s: stale approval pass failed: %v", report.RunID, err)
	}
	report.CancelledCount = len(cancelled)

	report.FinishedAt = time.Now().UTC()
	if report.MissedCount > 0 || report.CancelledCount > 0 || len(report.Errors) > 0 {
		log.Printf("sweep %s: %d missed, %d cancelled, %d errors",
			report.RunID, report.MissedCount, report.CancelledCount, len(report.Errors))
	}

	for _, res := range missed {
		publishEvent(ctx, s.events, res, model.StatusPending, model.StatusMissed, "sweeper", "pickup window elapsed with no checkout")
	}
	for _, res := range cancelled {
		publishEvent(ctx, s.events, res, res.Status, model.StatusCancelled, "sweeper", "approval still pending after grace period")
	}
	return report
}

// sweepMissed marks PENDING reservations whose start time passed the
// cutoff as MISSED.  Only PENDING qualifies: a CONFIRMED reservation
// means assets already went out, so the pickup was not missed.
func (s *Sweeper) sweepMissed(ctx context.Context) ([]*model.Reservation, error) {
	var swept []*model.Reservation
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		rows, err := tx.SelectMissedPickups(ctx, time.Now().UTC().Add(-s.cutoff))
		if err != nil {
			return err
		}
		for i := range rows {
			res := &rows[i]
			if err := tx.UpdateStatus(ctx, res.ID, model.StatusPending, model.StatusMissed); err != nil {
				return err
			}
			if err := tx.AppendHistory(ctx, &model.LifecycleEvent{
				ReservationID: res.ID,
				FromStatus:    model.StatusPending,
				ToStatus:      model.StatusMissed,
				Actor:         "sweeper",
				Note:          "pickup window elapsed with no checkout",
			}); err != nil {
				return err
			}
			swept = append(swept, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return swept, nil
}

// sweepStaleApprovals cancels reservations that were never approved and
// whose start time is more than the grace period in the past.  The
// approval status moves to REJECTED so the record shows the gate closed
// rather than a human decision.
func (s *Sweeper) sweepStaleApprovals(ctx context.Context) ([]*model.Reservation, error) {
	var swept []*model.Reservation
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		rows, err := tx.SelectStaleApprovals(ctx, time.Now().UTC().Add(-s.approvalGrace))
		if err != nil {
			return err
		}
		for i := range rows {
			res := &rows[i]
			if !model.CanTransition(res.Status, model.StatusCancelled) {
				continue
			}
			if err := tx.UpdateStatus(ctx, res.ID, res.Status, model.StatusCancelled); err != nil {
				return err
			}
			if err := tx.UpdateApproval(ctx, res.ID, model.ApprovalRejected); err != nil {
				return err
			}
			if err := tx.AppendHistory(ctx, &model.LifecycleEvent{
				ReservationID: res.ID,
				FromStatus:    res.Status,
				ToStatus:      model.StatusCancelled,
				Actor:         "sweeper",
				Note:          "approval still pending after grace period",
			}); err != nil {
				return err
			}
			swept = append(swept, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return swept, nil
}

// Start runs the sweeper on a fixed interval until the context is
// cancelled.  Intended to run in its own goroutine from main.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Printf("sweep: running every %s", interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("sweep: stopping")
			return
		case <-ticker.C:
			s.Run(ctx)
		}
	}
}
