package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/inventory"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/model"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/repository"
)

// CheckoutBatch is the caller-owned working state of one staff checkout
// session against a selected reservation.  The engine is stateless: the
// batch travels with the caller between scans, and Commit rebuilds it
// from scratch so nothing admitted at scan time is trusted at commit
// time.
type CheckoutBatch struct {
	ReservationID uint64
	Status        string
	StartAt       time.Time
	EndAt         time.Time
	// Allowed maps model id -> quantity recorded on the reservation.
	Allowed map[uint64]uint32
	// Admitted counts assets accepted so far per model, reserved and
	// ad-hoc alike.
	Admitted map[uint64]uint32
	Assets   []AdmittedAsset
}

// AdmittedAsset is one physical asset accepted into a checkout batch.
type AdmittedAsset struct {
	AssetID uint64 `json:"asset_id"`
	Tag     string `json:"tag"`
	Name    string `json:"name"`
	ModelID uint64 `json:"model_id"`
	AdHoc   bool   `json:"ad_hoc"`
}

// AssetResult reports the outcome of one asset during a commit or
// check-in.  Per-asset failures never undo other assets' successes.
type AssetResult struct {
	Tag     string `json:"tag"`
	AssetID uint64 `json:"asset_id,omitempty"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// StaffCheckoutService enforces per-reservation checkout quotas while
// staff scan physical assets, and executes the per-asset checkout and
// check-in calls against the external asset system.
type StaffCheckoutService struct {
	store    repository.Store
	capacity CapacityProvider
	assets   AssetGateway
	events   EventPublisher
}

// NewStaffCheckoutService constructs the enforcer.  events may be nil.
func NewStaffCheckoutService(store repository.Store, capacity CapacityProvider, assets AssetGateway, events EventPublisher) *StaffCheckoutService {
	if store == nil || capacity == nil || assets == nil {
		panic("nil dependency passed to NewStaffCheckoutService")
	}
	return &StaffCheckoutService{store: store, capacity: capacity, assets: assets, events: events}
}

// NewBatch loads a reservation and prepares an empty checkout batch with
// the quota map derived from its items.  Terminal reservations cannot be
// checked out against.
func (s *StaffCheckoutService) NewBatch(ctx context.Context, reservationID uint64) (*CheckoutBatch, error) {
	if reservationID == 0 {
		return nil, &ValidationError{Field: "reservation_id", Reason: "must be a positive integer"}
	}
	res, items, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, &StorageError{Op: "load reservation", Err: err}
	}
	if model.IsTerminal(res.Status) {
		return nil, &ConflictError{Reason: fmt.Sprintf("reservation is %s; assets can no longer be checked out against it", res.Status)}
	}
	allowed := make(map[uint64]uint32, len(items))
	for _, it := range items {
		allowed[it.ModelID] += it.Quantity
	}
	return &CheckoutBatch{
		ReservationID: res.ID,
		Status:        res.Status,
		StartAt:       res.StartAt,
		EndAt:         res.EndAt,
		Allowed:       allowed,
		Admitted:      make(map[uint64]uint32, len(allowed)),
	}, nil
}

// Admit decides whether one scanned asset may join the batch.
//
// An asset whose model appears on the reservation is admitted while the
// in-batch count stays below the reserved quantity.  An asset of a model
// the reservation never asked for (a walk-up addition) is admitted only
// if the model still has a unit free after subtracting every other
// overlapping reservation's commitment.  Rejections are ConflictErrors;
// unresolvable tags are ValidationErrors.  On success the batch is
// mutated to include the asset.
func (s *StaffCheckoutService) Admit(ctx context.Context, batch *CheckoutBatch, tag string) (*AdmittedAsset, error) {
	if batch == nil {
		return nil, &ValidationError{Field: "batch", Reason: "checkout batch is required"}
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, &ValidationError{Field: "asset_tag", Reason: "tag is required"}
	}
	for _, a := range batch.Assets {
		if a.Tag == tag {
			return nil, &ValidationError{Field: "asset_tag", Reason: fmt.Sprintf("asset %s is already in this batch", tag)}
		}
	}
	asset, err := s.assets.FindAssetByTag(ctx, tag)
	if err != nil {
		switch {
		case errors.Is(err, inventory.ErrAssetNotFound):
			return nil, &ValidationError{Field: "asset_tag", Reason: fmt.Sprintf("no asset found for tag %s", tag)}
		case errors.Is(err, inventory.ErrAssetAmbiguous):
			return nil, &ValidationError{Field: "asset_tag", Reason: fmt.Sprintf("tag %s matches more than one asset", tag)}
		default:
			return nil, &ExternalActionError{Tag: tag, Op: "lookup", Err: err}
		}
	}

	if allowed, reserved := batch.Allowed[asset.ModelID]; reserved {
		if batch.Admitted[asset.ModelID] >= allowed {
			return nil, &ConflictError{
				Reason: "quota exceeded for this model on this reservation",
				Lines: []ConflictLine{{
					ModelID:   asset.ModelID,
					Requested: batch.Admitted[asset.ModelID] + 1,
					Free:      0,
				}},
			}
		}
	} else if err := s.checkAdHoc(ctx, batch, asset.ModelID); err != nil {
		return nil, err
	}

	admitted := AdmittedAsset{
		AssetID: asset.ID,
		Tag:     asset.Tag,
		Name:    asset.Name,
		ModelID: asset.ModelID,
		AdHoc:   batch.Allowed[asset.ModelID] == 0,
	}
	if admitted.Tag == "" {
		admitted.Tag = tag
	}
	batch.Assets = append(batch.Assets, admitted)
	batch.Admitted[asset.ModelID]++
	return &admitted, nil
}

// checkAdHoc verifies that a walk-up asset's model is not already promised
// to a different reservation overlapping this batch's window.  Unknown
// capacity does not block, matching the availability contract.
func (s *StaffCheckoutService) checkAdHoc(ctx context.Context, batch *CheckoutBatch, modelID uint64) error {
	capacity, err := s.capacity.GetCapacity(ctx, modelID)
	if err != nil {
		return &CapacityUnavailableError{ModelID: modelID, Err: err}
	}
	if capacity <= 0 {
		return nil
	}
	var committedOthers uint32
	txErr := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		committedOthers, err = tx.SumCommittedExcluding(ctx, modelID, batch.StartAt, batch.EndAt, batch.ReservationID)
		return err
	})
	if txErr != nil {
		return &StorageError{Op: "ad-hoc availability check", Err: txErr}
	}
	if int(committedOthers)+int(batch.Admitted[modelID])+1 > capacity {
		return &ConflictError{
			Reason: "model is committed to another reservation for this time window",
			Lines: []ConflictLine{{
				ModelID:   modelID,
				Requested: batch.Admitted[modelID] + 1,
				Free:      0,
			}},
		}
	}
	return nil
}

// Commit performs the physical checkout of the scanned assets.
//
// Quotas and ad-hoc availability are re-verified here from fresh state,
// since the admitted set can change between scanning and submission.  Each
// asset's external checkout succeeds or fails on its own; one failing
// call never rolls back assets that already went out the door.  When at
// least one asset was handed out, the reservation transitions PENDING ->
// CONFIRMED and the asset name cache is filled.
func (s *StaffCheckoutService) Commit(ctx context.Context, reservationID uint64, tags []string, recipientExtID uint64, staff Actor, note string) ([]AssetResult, error) {
	if len(tags) == 0 {
		return nil, &ValidationError{Field: "asset_tags", Reason: "at least one asset tag is required"}
	}
	if recipientExtID == 0 {
		return nil, &ValidationError{Field: "recipient_id", Reason: "must be a positive integer"}
	}
	batch, err := s.NewBatch(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	results := make([]AssetResult, 0, len(tags))
	checkedOut := make([]AdmittedAsset, 0, len(tags))
	for _, tag := range tags {
		admitted, err := s.Admit(ctx, batch, tag)
		if err != nil {
			results = append(results, AssetResult{Tag: tag, Error: err.Error()})
			continue
		}
		if err := s.assets.CheckoutAsset(ctx, admitted.AssetID, recipientExtID, note); err != nil {
			extErr := &ExternalActionError{Tag: admitted.Tag, Op: "checkout", Err: err}
			results = append(results, AssetResult{Tag: admitted.Tag, AssetID: admitted.AssetID, Error: extErr.Error()})
			continue
		}
		results = append(results, AssetResult{Tag: admitted.Tag, AssetID: admitted.AssetID, OK: true})
		checkedOut = append(checkedOut, *admitted)
	}
	if len(checkedOut) == 0 {
		return results, nil
	}

	var res *model.Reservation
	txErr := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.Status == model.StatusPending {
			if err := tx.UpdateStatus(ctx, reservationID, model.StatusPending, model.StatusConfirmed); err != nil {
				return err
			}
			if err := tx.AppendHistory(ctx, &model.LifecycleEvent{
				ReservationID: reservationID,
				FromStatus:    model.StatusPending,
				ToStatus:      model.StatusConfirmed,
				Actor:         staff.String(),
				Note:          fmt.Sprintf("%d asset(s) checked out", len(checkedOut)),
			}); err != nil {
				return err
			}
		}
		names := make([]string, 0, len(checkedOut))
		if res.AssetNameCache != nil && *res.AssetNameCache != "" {
			names = append(names, *res.AssetNameCache)
		}
		for _, a := range checkedOut {
			names = append(names, a.Name)
		}
		return tx.SetAssetNameCache(ctx, reservationID, strings.Join(names, ", "))
	})
	if txErr != nil {
		// The assets are out the door; surface the bookkeeping failure
		// but keep the per-asset outcomes.
		return results, mapTxError(txErr, "staff checkout commit")
	}
	if res.Status == model.StatusPending {
		publishEvent(ctx, s.events, res, model.StatusPending, model.StatusConfirmed, "staff", "assets checked out")
	}
	return results, nil
}

// Checkin records the physical return of assets.  Each asset's external
// check-in is independent; the reservation transitions CONFIRMED ->
// COMPLETED only when every requested asset came back successfully, so a
// partial return leaves the reservation open for a retry.
func (s *StaffCheckoutService) Checkin(ctx context.Context, reservationID uint64, tags []string, staff Actor, note string) ([]AssetResult, error) {
	if len(tags) == 0 {
		return nil, &ValidationError{Field: "asset_tags", Reason: "at least one asset tag is required"}
	}
	res, _, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, &StorageError{Op: "load reservation", Err: err}
	}
	if res.Status != model.StatusConfirmed {
		return nil, &ConflictError{Reason: fmt.Sprintf("cannot check in a %s reservation", res.Status)}
	}

	results := make([]AssetResult, 0, len(tags))
	allOK := true
	for _, tag := range tags {
		asset, err := s.assets.FindAssetByTag(ctx, tag)
		if err != nil {
			results = append(results, AssetResult{Tag: tag, Error: err.Error()})
			allOK = false
			continue
		}
		if err := s.assets.CheckinAsset(ctx, asset.ID, note); err != nil {
			extErr := &ExternalActionError{Tag: tag, Op: "checkin", Err: err}
			results = append(results, AssetResult{Tag: tag, AssetID: asset.ID, Error: extErr.Error()})
			allOK = false
			continue
		}
		results = append(results, AssetResult{Tag: tag, AssetID: asset.ID, OK: true})
	}
	if !allOK {
		return results, nil
	}

	txErr := s.store.WithTx(ctx, func(tx repository.Tx) error {
		fresh, err := tx.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if fresh.Status != model.StatusConfirmed {
			return &ConflictError{Reason: fmt.Sprintf("reservation became %s during check-in", fresh.Status)}
		}
		if err := tx.UpdateStatus(ctx, reservationID, model.StatusConfirmed, model.StatusCompleted); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, &model.LifecycleEvent{
			ReservationID: reservationID,
			FromStatus:    model.StatusConfirmed,
			ToStatus:      model.StatusCompleted,
			Actor:         staff.String(),
			Note:          fmt.Sprintf("%d asset(s) checked in", len(tags)),
		})
	})
	if txErr != nil {
		return results, mapTxError(txErr, "check-in commit")
	}
	publishEvent(ctx, s.events, res, model.StatusConfirmed, model.StatusCompleted, "staff", "assets returned")
	return results, nil
}
