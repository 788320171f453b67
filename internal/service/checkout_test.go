package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/inventory"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/model"
)

var testRequester = Requester{Name: "Dana Field", Email: "dana@example.com", ExternalID: 42}

func TestCheckoutCreatesReservation(t *testing.T) {
	store := newMemStore()
	events := &fakeEvents{}
	svc := NewCheckoutService(store, newFakeCapacity(map[uint64]int{7: 5}), events, false)

	start, end := window(t, 10, 14)
	res, err := svc.Checkout(context.Background(), testRequester, start, end, []BasketLine{
		{ModelID: 7, Quantity: 2, Name: "Dell Latitude"},
	})
	require.NoError(t, err)
	require.NotZero(t, res.ID)
	assert.Equal(t, model.StatusPending, res.Status)
	assert.Equal(t, model.ApprovalAuto, res.ApprovalStatus)

	stored, items, err := store.GetReservation(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, testRequester.ExternalID, stored.RequesterExtID)
	require.Len(t, items, 1)
	assert.Equal(t, uint32(2), items[0].Quantity)
	assert.Equal(t, "Dell Latitude", items[0].NameCache)

	hist := store.historyFor(res.ID)
	require.Len(t, hist, 1)
	assert.Equal(t, model.StatusPending, hist[0].ToStatus)
	assert.Equal(t, "requester:42", hist[0].Actor)

	published := events.published()
	require.Len(t, published, 1)
	assert.Equal(t, model.StatusPending, published[0].ToStatus)
	assert.Equal(t, "checkout", published[0].Trigger)
}

func TestCheckoutRequireApprovalGate(t *testing.T) {
	store := newMemStore()
	svc := NewCheckoutService(store, newFakeCapacity(map[uint64]int{7: 5}), nil, true)

	start, end := window(t, 10, 14)
	res, err := svc.Checkout(context.Background(), testRequester, start, end, []BasketLine{
		{ModelID: 7, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalPending, res.ApprovalStatus)
	assert.Equal(t, model.StatusPending, res.Status)
}

func TestCheckoutMergesDuplicateLines(t *testing.T) {
	store := newMemStore()
	svc := NewCheckoutService(store, newFakeCapacity(map[uint64]int{7: 5}), nil, false)

	start, end := window(t, 10, 14)
	res, err := svc.Checkout(context.Background(), testRequester, start, end, []BasketLine{
		{ModelID: 7, Quantity: 1},
		{ModelID: 7, Quantity: 2},
	})
	require.NoError(t, err)

	_, items, err := store.GetReservation(context.Background(), res.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, uint32(3), items[0].Quantity)
}

func TestCheckoutAllOrNothing(t *testing.T) {
	store := newMemStore()
	start, end := window(t, 10, 14)
	// Model 9 is fully booked for the window; model 7 has room.
	store.seed(model.StatusConfirmed, model.ApprovalAuto, 99, start, end, map[uint64]uint32{9: 2})
	svc := NewCheckoutService(store, newFakeCapacity(map[uint64]int{7: 5, 9: 2}), nil, false)

	before := store.reservationCount()
	_, err := svc.Checkout(context.Background(), testRequester, start, end, []BasketLine{
		{ModelID: 7, Quantity: 1},
		{ModelID: 9, Quantity: 1},
	})
	var cfErr *ConflictError
	require.ErrorAs(t, err, &cfErr)
	require.Len(t, cfErr.Lines, 1)
	assert.Equal(t, uint64(9), cfErr.Lines[0].ModelID)
	assert.Equal(t, uint32(1), cfErr.Lines[0].Requested)
	assert.Equal(t, uint32(0), cfErr.Lines[0].Free)

	// The passing line must not have been written either.
	assert.Equal(t, before, store.reservationCount())
}

func TestCheckoutValidationBeforeStorage(t *testing.T) {
	store := newMemStore()
	capacity := newFakeCapacity(map[uint64]int{7: 5})
	svc := NewCheckoutService(store, capacity, nil, false)

	start, end := window(t, 10, 14)
	var vErr *ValidationError
	_, err := svc.Checkout(context.Background(), testRequester, start, end, []BasketLine{
		{ModelID: 7, Quantity: 0},
	})
	require.ErrorAs(t, err, &vErr)

	_, err = svc.Checkout(context.Background(), testRequester, end, start, []BasketLine{
		{ModelID: 7, Quantity: 1},
	})
	require.ErrorAs(t, err, &vErr)

	_, err = svc.Checkout(context.Background(), testRequester, start, end, nil)
	require.ErrorAs(t, err, &vErr)

	assert.Zero(t, store.reservationCount())
	assert.Zero(t, capacity.calls, "capacity must not be consulted for invalid baskets")
}

func TestCheckoutUnknownCapacityDoesNotBlock(t *testing.T) {
	store := newMemStore()
	svc := NewCheckoutService(store, newFakeCapacity(nil), nil, false)

	start, end := window(t, 10, 14)
	res, err := svc.Checkout(context.Background(), testRequester, start, end, []BasketLine{
		{ModelID: 7, Quantity: 50},
	})
	require.NoError(t, err)
	assert.NotZero(t, res.ID)
}

func TestCheckoutCapacityFailureIsNotAConflict(t *testing.T) {
	store := newMemStore()
	capacity := newFakeCapacity(nil)
	capacity.errs[7] = context.DeadlineExceeded
	svc := NewCheckoutService(store, capacity, nil, false)

	start, end := window(t, 10, 14)
	_, err := svc.Checkout(context.Background(), testRequester, start, end, []BasketLine{
		{ModelID: 7, Quantity: 1},
	})
	var capErr *CapacityUnavailableError
	require.ErrorAs(t, err, &capErr)
	var cfErr *ConflictError
	assert.False(t, errors.As(err, &cfErr))
	assert.Zero(t, store.reservationCount())
}

func TestCheckoutUnknownModelIsValidation(t *testing.T) {
	store := newMemStore()
	capacity := newFakeCapacity(nil)
	// Same shape the inventory client returns for a model the asset
	// system has never heard of.
	capacity.errs[9999] = fmt.Errorf("%w: model %d", inventory.ErrAssetNotFound, 9999)
	svc := NewCheckoutService(store, capacity, nil, false)

	start, end := window(t, 10, 14)
	_, err := svc.Checkout(context.Background(), testRequester, start, end, []BasketLine{
		{ModelID: 9999, Quantity: 1},
	})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "items", vErr.Field)
	var capErr *CapacityUnavailableError
	assert.False(t, errors.As(err, &capErr))
	assert.Zero(t, store.reservationCount())
}

func TestCheckoutBlackoutBlocks(t *testing.T) {
	store := newMemStore()
	start, end := window(t, 10, 14)
	store.addBlackout(nil, start.Add(3*time.Hour), end.Add(3*time.Hour), "inventory audit")
	svc := NewCheckoutService(store, newFakeCapacity(map[uint64]int{7: 5}), nil, false)

	_, err := svc.Checkout(context.Background(), testRequester, start, end, []BasketLine{
		{ModelID: 7, Quantity: 1},
	})
	var cfErr *ConflictError
	require.ErrorAs(t, err, &cfErr)
	assert.Contains(t, cfErr.Reason, "blackout")
	assert.Zero(t, store.reservationCount())
}

// Two concurrent baskets race for the last unit; exactly one must win.
func TestCheckoutConcurrentLastUnit(t *testing.T) {
	store := newMemStore()
	svc := NewCheckoutService(store, newFakeCapacity(map[uint64]int{7: 1}), nil, false)
	start, end := window(t, 10, 14)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := Requester{Name: "Racer", Email: "racer@example.com", ExternalID: uint64(100 + i)}
			_, errs[i] = svc.Checkout(context.Background(), req, start, end, []BasketLine{
				{ModelID: 7, Quantity: 1},
			})
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		var cfErr *ConflictError
		require.ErrorAs(t, err, &cfErr)
		lost++
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)
	assert.Equal(t, 1, store.reservationCount())
}

// The worked example: 3 units exist, 2 committed for an overlapping
// window.  A basket of 2 is rejected reporting free=1, then a basket of 1
// is accepted.
func TestCheckoutPartialAvailabilityScenario(t *testing.T) {
	store := newMemStore()
	start, end := window(t, 10, 14)
	store.seed(model.StatusConfirmed, model.ApprovalAuto, 99, start.Add(-time.Hour), start.Add(time.Hour), map[uint64]uint32{7: 2})
	svc := NewCheckoutService(store, newFakeCapacity(map[uint64]int{7: 3}), nil, false)

	_, err := svc.Checkout(context.Background(), testRequester, start, end, []BasketLine{
		{ModelID: 7, Quantity: 2},
	})
	var cfErr *ConflictError
	require.ErrorAs(t, err, &cfErr)
	require.Len(t, cfErr.Lines, 1)
	assert.Equal(t, uint32(2), cfErr.Lines[0].Requested)
	assert.Equal(t, uint32(1), cfErr.Lines[0].Free)

	res, err := svc.Checkout(context.Background(), testRequester, start, end, []BasketLine{
		{ModelID: 7, Quantity: 1},
	})
	require.NoError(t, err)
	assert.NotZero(t, res.ID)
}
