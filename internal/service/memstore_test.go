package service

import (
	"context"
	"sync"
	"time"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/inventory"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/model"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/queue"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/repository"
)

// memStore is an in-memory repository.Store for the service tests.
// WithTx serializes on a store-wide mutex, which gives the tests the same
// mutual exclusion the per-model row locks give the MySQL store, and
// snapshots the state up front so a failed transaction rolls back.
type memStore struct {
	mu           sync.Mutex
	nextResID    uint64
	nextEventID  uint64
	reservations map[uint64]model.Reservation
	items        map[uint64][]model.ReservationItem
	blackouts    []model.BlackoutSlot
	history      map[uint64][]model.LifecycleEvent

	failTx           error // fail WithTx before the callback runs
	failMissedSelect error // fail SelectMissedPickups inside the tx
}

func newMemStore() *memStore {
	return &memStore{
		reservations: make(map[uint64]model.Reservation),
		items:        make(map[uint64][]model.ReservationItem),
		history:      make(map[uint64][]model.LifecycleEvent),
	}
}

// seed inserts a reservation with one item per line, bypassing the
// checkout path, so tests can arrange arbitrary committed state.
func (m *memStore) seed(status, approval string, requesterExtID uint64, start, end time.Time, lines map[uint64]uint32) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextResID++
	id := m.nextResID
	now := time.Now().UTC()
	m.reservations[id] = model.Reservation{
		ID:             id,
		RequesterName:  "Seed User",
		RequesterEmail: "seed@example.com",
		RequesterExtID: requesterExtID,
		StartAt:        start.UTC(),
		EndAt:          end.UTC(),
		Status:         status,
		ApprovalStatus: approval,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for modelID, qty := range lines {
		m.items[id] = append(m.items[id], model.ReservationItem{
			ReservationID: id,
			ModelID:       modelID,
			Quantity:      qty,
		})
	}
	return id
}

func (m *memStore) addBlackout(modelID *uint64, start, end time.Time, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blackouts = append(m.blackouts, model.BlackoutSlot{
		ID:      uint64(len(m.blackouts) + 1),
		StartAt: start.UTC(),
		EndAt:   end.UTC(),
		ModelID: modelID,
		Reason:  reason,
	})
}

func (m *memStore) reservationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reservations)
}

func (m *memStore) get(id uint64) model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reservations[id]
}

func (m *memStore) historyFor(id uint64) []model.LifecycleEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.LifecycleEvent(nil), m.history[id]...)
}

func (m *memStore) snapshot() *memStore {
	clone := newMemStore()
	clone.nextResID = m.nextResID
	clone.nextEventID = m.nextEventID
	for id, r := range m.reservations {
		clone.reservations[id] = r
	}
	for id, its := range m.items {
		clone.items[id] = append([]model.ReservationItem(nil), its...)
	}
	for id, evs := range m.history {
		clone.history[id] = append([]model.LifecycleEvent(nil), evs...)
	}
	clone.blackouts = append([]model.BlackoutSlot(nil), m.blackouts...)
	return clone
}

func (m *memStore) restore(snap *memStore) {
	m.nextResID = snap.nextResID
	m.nextEventID = snap.nextEventID
	m.reservations = snap.reservations
	m.items = snap.items
	m.history = snap.history
	m.blackouts = snap.blackouts
}

func (m *memStore) WithTx(ctx context.Context, fn func(repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTx != nil {
		return m.failTx
	}
	snap := m.snapshot()
	if err := fn(&memTx{store: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// sumCommittedLocked assumes the caller holds the mutex.
func (m *memStore) sumCommittedLocked(modelID uint64, start, end time.Time, exclude uint64) uint32 {
	var sum uint32
	for id, res := range m.reservations {
		if id == exclude || !model.IsCommitting(res.Status) || !res.Overlaps(start, end) {
			continue
		}
		for _, it := range m.items[id] {
			if it.ModelID == modelID {
				sum += it.Quantity
			}
		}
	}
	return sum
}

func (m *memStore) SumCommitted(ctx context.Context, modelID uint64, start, end time.Time) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sumCommittedLocked(modelID, start, end, 0), nil
}

func (m *memStore) GetReservation(ctx context.Context, id uint64) (*model.Reservation, []model.ReservationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.reservations[id]
	if !ok {
		return nil, nil, repository.ErrNotFound
	}
	return &res, append([]model.ReservationItem(nil), m.items[id]...), nil
}

func (m *memStore) ListByRequester(ctx context.Context, extID uint64) ([]repository.ReservationDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.ReservationDetail
	for id, res := range m.reservations {
		if res.RequesterExtID == extID {
			out = append(out, repository.ReservationDetail{
				Reservation: res,
				Items:       append([]model.ReservationItem(nil), m.items[id]...),
			})
		}
	}
	return out, nil
}

func (m *memStore) ListOverlappingBlackouts(ctx context.Context, modelID uint64, start, end time.Time) ([]model.BlackoutSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.BlackoutSlot
	for _, b := range m.blackouts {
		if b.Overlaps(start, end) && b.AppliesTo(modelID) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) ListHistory(ctx context.Context, reservationID uint64) ([]model.LifecycleEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.LifecycleEvent(nil), m.history[reservationID]...), nil
}

// memTx operates directly on the store maps; the WithTx mutex is already
// held for the whole callback.
type memTx struct {
	store *memStore
}

func (t *memTx) LockModel(ctx context.Context, modelID uint64) error { return nil }

func (t *memTx) SumCommitted(ctx context.Context, modelID uint64, start, end time.Time) (uint32, error) {
	return t.store.sumCommittedLocked(modelID, start, end, 0), nil
}

func (t *memTx) SumCommittedExcluding(ctx context.Context, modelID uint64, start, end time.Time, excludeReservationID uint64) (uint32, error) {
	return t.store.sumCommittedLocked(modelID, start, end, excludeReservationID), nil
}

func (t *memTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	t.store.nextResID++
	res.ID = t.store.nextResID
	now := time.Now().UTC()
	res.CreatedAt = now
	res.UpdatedAt = now
	t.store.reservations[res.ID] = *res
	return nil
}

func (t *memTx) InsertItems(ctx context.Context, items []model.ReservationItem) error {
	for _, it := range items {
		t.store.items[it.ReservationID] = append(t.store.items[it.ReservationID], it)
	}
	return nil
}

func (t *memTx) GetReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, ok := t.store.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &res, nil
}

func (t *memTx) GetItems(ctx context.Context, reservationID uint64) ([]model.ReservationItem, error) {
	return append([]model.ReservationItem(nil), t.store.items[reservationID]...), nil
}

func (t *memTx) UpdateStatus(ctx context.Context, id uint64, from, to string) error {
	res, ok := t.store.reservations[id]
	if !ok {
		return repository.ErrNotFound
	}
	if res.Status != from {
		return repository.ErrStaleStatus
	}
	res.Status = to
	res.UpdatedAt = time.Now().UTC()
	t.store.reservations[id] = res
	return nil
}

func (t *memTx) UpdateApproval(ctx context.Context, id uint64, approval string) error {
	res, ok := t.store.reservations[id]
	if !ok {
		return repository.ErrNotFound
	}
	res.ApprovalStatus = approval
	res.UpdatedAt = time.Now().UTC()
	t.store.reservations[id] = res
	return nil
}

func (t *memTx) SetAssetNameCache(ctx context.Context, id uint64, names string) error {
	res, ok := t.store.reservations[id]
	if !ok {
		return repository.ErrNotFound
	}
	res.AssetNameCache = &names
	t.store.reservations[id] = res
	return nil
}

func (t *memTx) SelectMissedPickups(ctx context.Context, startedBefore time.Time) ([]model.Reservation, error) {
	if t.store.failMissedSelect != nil {
		return nil, t.store.failMissedSelect
	}
	var out []model.Reservation
	for _, res := range t.store.reservations {
		if res.Status == model.StatusPending && res.StartAt.Before(startedBefore) {
			out = append(out, res)
		}
	}
	return out, nil
}

func (t *memTx) SelectStaleApprovals(ctx context.Context, startedBefore time.Time) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, res := range t.store.reservations {
		if res.ApprovalStatus != model.ApprovalPending {
			continue
		}
		if res.Status != model.StatusPending && res.Status != model.StatusConfirmed {
			continue
		}
		if res.StartAt.Before(startedBefore) {
			out = append(out, res)
		}
	}
	return out, nil
}

func (t *memTx) AppendHistory(ctx context.Context, ev *model.LifecycleEvent) error {
	t.store.nextEventID++
	ev.ID = t.store.nextEventID
	ev.CreatedAt = time.Now().UTC()
	t.store.history[ev.ReservationID] = append(t.store.history[ev.ReservationID], *ev)
	return nil
}

// fakeCapacity is a canned CapacityProvider.  Absent models report zero,
// which the engine treats as unknown fleet size.
type fakeCapacity struct {
	mu         sync.Mutex
	capacities map[uint64]int
	errs       map[uint64]error
	calls      int
}

func newFakeCapacity(capacities map[uint64]int) *fakeCapacity {
	if capacities == nil {
		capacities = make(map[uint64]int)
	}
	return &fakeCapacity{capacities: capacities, errs: make(map[uint64]error)}
}

func (f *fakeCapacity) GetCapacity(ctx context.Context, modelID uint64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[modelID]; err != nil {
		return 0, err
	}
	return f.capacities[modelID], nil
}

// fakeAssets is a canned AssetGateway recording every external call.
type fakeAssets struct {
	mu          sync.Mutex
	byTag       map[string]inventory.Asset
	checkoutErr map[string]error // keyed by tag
	checkinErr  map[string]error
	checkouts   []uint64
	checkins    []uint64
}

func newFakeAssets(assets ...inventory.Asset) *fakeAssets {
	f := &fakeAssets{
		byTag:       make(map[string]inventory.Asset),
		checkoutErr: make(map[string]error),
		checkinErr:  make(map[string]error),
	}
	for _, a := range assets {
		f.byTag[a.Tag] = a
	}
	return f
}

func (f *fakeAssets) FindAssetByTag(ctx context.Context, tag string) (*inventory.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byTag[tag]
	if !ok {
		return nil, inventory.ErrAssetNotFound
	}
	return &a, nil
}

func (f *fakeAssets) CheckoutAsset(ctx context.Context, assetID, userID uint64, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for tag, a := range f.byTag {
		if a.ID == assetID {
			if err := f.checkoutErr[tag]; err != nil {
				return err
			}
		}
	}
	f.checkouts = append(f.checkouts, assetID)
	return nil
}

func (f *fakeAssets) CheckinAsset(ctx context.Context, assetID uint64, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for tag, a := range f.byTag {
		if a.ID == assetID {
			if err := f.checkinErr[tag]; err != nil {
				return err
			}
		}
	}
	f.checkins = append(f.checkins, assetID)
	return nil
}

// fakeEvents records published lifecycle events.  Publishing happens
// post-commit, possibly from concurrent goroutines, so it locks.
type fakeEvents struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
}

func (f *fakeEvents) PublishReservationEvent(ctx context.Context, ev queue.ReservationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEvents) published() []queue.ReservationEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.ReservationEvent(nil), f.events...)
}
