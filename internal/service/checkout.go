package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/inventory"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/model"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/repository"
)

// Requester is the identity snapshot captured on the reservation.  The
// caller (HTTP layer) assembles it from verified token claims; the engine
// only validates that the snapshot is complete.
type Requester struct {
	Name       string
	Email      string
	ExternalID uint64
}

// BasketLine is one (model, quantity) selection from the caller-held
// basket.  Name is the model display name for the item name cache; it may
// be empty.
type BasketLine struct {
	ModelID  uint64
	Quantity uint32
	Name     string
}

// CheckoutService is the basket checkout transactor.  Checkout validates
// every line, then re-reads committed quantities inside a single database
// transaction under per-model row locks and inserts the reservation with
// its items only when every line passes.  Either the whole basket becomes
// one reservation or nothing is written.
type CheckoutService struct {
	store           repository.Store
	capacity        CapacityProvider
	events          EventPublisher
	requireApproval bool
}

// NewCheckoutService constructs the transactor.  events may be nil when no
// broker is configured.  When requireApproval is set, new reservations
// start with approval_status PENDING_APPROVAL and are subject to the
// stale-approval sweep.
func NewCheckoutService(store repository.Store, capacity CapacityProvider, events EventPublisher, requireApproval bool) *CheckoutService {
	if store == nil || capacity == nil {
		panic("nil dependency passed to NewCheckoutService")
	}
	return &CheckoutService{store: store, capacity: capacity, events: events, requireApproval: requireApproval}
}

// Checkout validates the basket and commits it as one reservation.
//
// Validation failures are returned before any transaction opens.  Inside
// the transaction, models are locked in ascending id order and the
// committed quantity for each line is recomputed; if any line would
// exceed capacity the whole transaction rolls back and the returned
// ConflictError lists every failing line with requested vs. free counts.
// Capacity provider failures abort with CapacityUnavailableError and are
// never reported as conflicts; a model the asset system has never heard
// of is the caller's mistake and comes back as a ValidationError.
func (s *CheckoutService) Checkout(ctx context.Context, req Requester, start, end time.Time, lines []BasketLine) (*model.Reservation, error) {
	if len(lines) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "basket must contain at least one line"}
	}
	// Merge duplicate model lines so quota math sees one quantity per model.
	merged := make(map[uint64]*model.ReservationItem, len(lines))
	order := make([]uint64, 0, len(lines))
	for _, line := range lines {
		item, err := model.NewReservationItem(line.ModelID, line.Quantity, line.Name)
		if err != nil {
			return nil, &ValidationError{Field: "items", Reason: err.Error()}
		}
		if existing, ok := merged[item.ModelID]; ok {
			existing.Quantity += item.Quantity
			continue
		}
		merged[item.ModelID] = item
		order = append(order, item.ModelID)
	}
	approval := model.ApprovalAuto
	if s.requireApproval {
		approval = model.ApprovalPending
	}
	res, err := model.NewReservation(req.Name, req.Email, req.ExternalID, start, end, approval)
	if err != nil {
		return nil, &ValidationError{Field: "reservation", Reason: err.Error()}
	}

	// Capacity is fetched up front (through the TTL cache) to keep the
	// row locks short.  The committed side is what races, and that is
	// re-read inside the transaction below.
	capacities := make(map[uint64]int, len(order))
	for _, modelID := range order {
		capacity, err := s.capacity.GetCapacity(ctx, modelID)
		if err != nil {
			if errors.Is(err, inventory.ErrAssetNotFound) {
				return nil, &ValidationError{Field: "items", Reason: fmt.Sprintf("model %d does not exist in the asset system", modelID)}
			}
			return nil, &CapacityUnavailableError{ModelID: modelID, Err: err}
		}
		capacities[modelID] = capacity
	}

	// Blackout windows are configured locally and block checkout outright.
	for _, modelID := range order {
		blackouts, err := s.store.ListOverlappingBlackouts(ctx, modelID, res.StartAt, res.EndAt)
		if err != nil {
			return nil, &StorageError{Op: "blackout read", Err: err}
		}
		if len(blackouts) > 0 {
			return nil, &ConflictError{Reason: "window overlaps a blackout slot"}
		}
	}

	// Lock in ascending model order so two baskets sharing models cannot
	// deadlock against each other.
	locked := append([]uint64(nil), order...)
	sort.Slice(locked, func(i, j int) bool { return locked[i] < locked[j] })

	txErr := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var conflicts []ConflictLine
		for _, modelID := range locked {
			if err := tx.LockModel(ctx, modelID); err != nil {
				return err
			}
			committed, err := tx.SumCommitted(ctx, modelID, res.StartAt, res.EndAt)
			if err != nil {
				return err
			}
			capacity := capacities[modelID]
			if capacity <= 0 {
				// Unknown fleet size: cannot guarantee, do not block.
				continue
			}
			requested := merged[modelID].Quantity
			if int(committed)+int(requested) > capacity {
				free := capacity - int(committed)
				if free < 0 {
					free = 0
				}
				conflicts = append(conflicts, ConflictLine{
					ModelID:   modelID,
					Requested: requested,
					Free:      uint32(free),
				})
			}
		}
		if len(conflicts) > 0 {
			return &ConflictError{Reason: "insufficient free units for the requested window", Lines: conflicts}
		}
		if err := tx.InsertReservation(ctx, res); err != nil {
			return err
		}
		items := make([]model.ReservationItem, 0, len(order))
		for _, modelID := range order {
			it := *merged[modelID]
			it.ReservationID = res.ID
			items = append(items, it)
		}
		if err := tx.InsertItems(ctx, items); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, &model.LifecycleEvent{
			ReservationID: res.ID,
			FromStatus:    "",
			ToStatus:      model.StatusPending,
			Actor:         Actor{ExternalID: req.ExternalID}.String(),
			Note:          "reservation created",
		})
	})
	if txErr != nil {
		return nil, mapTxError(txErr, "basket checkout")
	}

	publishEvent(ctx, s.events, res, "", model.StatusPending, "checkout", "reservation created")
	return res, nil
}
