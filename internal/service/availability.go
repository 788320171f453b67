package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/inventory"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/model"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/repository"
)

// AvailabilityResult reports how many units of a model are committed and
// free over a window.  Capacity and Free are nil when the external asset
// system reports an unknown fleet size; callers must treat nil as "do not
// block, but cannot guarantee" rather than zero.
type AvailabilityResult struct {
	ModelID   uint64               `json:"model_id"`
	Capacity  *int                 `json:"capacity"`
	Committed uint32               `json:"committed"`
	Free      *int                 `json:"free"`
	Blackout  bool                 `json:"blackout"`
	Blackouts []model.BlackoutSlot `json:"blackouts,omitempty"`
}

// AvailabilityService is the pure-read availability calculator.  It never
// writes; the checkout transactor re-runs the same committed-quantity
// query inside its transaction, so a preview is only ever advisory.
type AvailabilityService struct {
	store    repository.Store
	capacity CapacityProvider
}

// NewAvailabilityService constructs the calculator.
func NewAvailabilityService(store repository.Store, capacity CapacityProvider) *AvailabilityService {
	if store == nil || capacity == nil {
		panic("nil dependency passed to NewAvailabilityService")
	}
	return &AvailabilityService{store: store, capacity: capacity}
}

// Availability computes committed and free units for a model over the
// half-open window [start, end).  A reservation ending exactly at start
// does not count against the window.  An unknown model id is a
// ValidationError; other capacity provider failures surface as
// CapacityUnavailableError; the committed count is still valid in that
// case but is not returned, because partial answers invite callers to
// fabricate the missing half.
func (s *AvailabilityService) Availability(ctx context.Context, modelID uint64, start, end time.Time) (*AvailabilityResult, error) {
	if modelID == 0 {
		return nil, &ValidationError{Field: "model_id", Reason: "must be a positive integer"}
	}
	if !end.After(start) {
		return nil, &ValidationError{Field: "window", Reason: "end must be after start"}
	}
	committed, err := s.store.SumCommitted(ctx, modelID, start, end)
	if err != nil {
		return nil, &StorageError{Op: "availability read", Err: err}
	}
	blackouts, err := s.store.ListOverlappingBlackouts(ctx, modelID, start, end)
	if err != nil {
		return nil, &StorageError{Op: "blackout read", Err: err}
	}
	capacity, err := s.capacity.GetCapacity(ctx, modelID)
	if err != nil {
		if errors.Is(err, inventory.ErrAssetNotFound) {
			return nil, &ValidationError{Field: "model_id", Reason: fmt.Sprintf("model %d does not exist in the asset system", modelID)}
		}
		return nil, &CapacityUnavailableError{ModelID: modelID, Err: err}
	}
	result := &AvailabilityResult{
		ModelID:   modelID,
		Committed: committed,
		Blackout:  len(blackouts) > 0,
		Blackouts: blackouts,
	}
	if capacity > 0 {
		free := capacity - int(committed)
		if free < 0 {
			free = 0
		}
		result.Capacity = &capacity
		result.Free = &free
	}
	return result, nil
}
