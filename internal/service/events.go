package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/model"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/queue"
)

// publishEvent emits one lifecycle event after a successful commit.  The
// reservation is already durable when this runs, so publish failures are
// logged and otherwise ignored; the engine never attempts a two-phase
// commit across the database and the broker.
func publishEvent(ctx context.Context, events EventPublisher, res *model.Reservation, from, to, trigger, note string) {
	if events == nil {
		return
	}
	ev := queue.ReservationEvent{
		EventID:        uuid.NewString(),
		ReservationID:  res.ID,
		RequesterExtID: res.RequesterExtID,
		RequesterName:  res.RequesterName,
		RequesterEmail: res.RequesterEmail,
		FromStatus:     from,
		ToStatus:       to,
		StartsAt:       res.StartAt.UTC().Format(time.RFC3339),
		EndsAt:         res.EndAt.UTC().Format(time.RFC3339),
		Trigger:        trigger,
		Note:           note,
		OccurredAt:     time.Now().UTC().Format(time.RFC3339),
	}
	if err := events.PublishReservationEvent(ctx, ev); err != nil {
		log.Printf("events: lifecycle publish failed for reservation %d (%s -> %s): %v", res.ID, from, to, err)
	}
}
