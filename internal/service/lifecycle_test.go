package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/model"
	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/repository"
)

func futureWindow() (time.Time, time.Time) {
	start := time.Now().UTC().Add(48 * time.Hour)
	return start, start.Add(4 * time.Hour)
}

func pastWindow() (time.Time, time.Time) {
	start := time.Now().UTC().Add(-2 * time.Hour)
	return start, start.Add(4 * time.Hour)
}

func TestCancelByOwnerBeforeStart(t *testing.T) {
	store := newMemStore()
	events := &fakeEvents{}
	start, end := futureWindow()
	resID := store.seed(model.StatusPending, model.ApprovalAuto, 42, start, end, map[uint64]uint32{7: 1})
	svc := NewLifecycleService(store, events)

	owner := Actor{ExternalID: 42}
	require.NoError(t, svc.Cancel(context.Background(), resID, owner, "plans changed"))

	res := store.get(resID)
	assert.Equal(t, model.StatusCancelled, res.Status)
	hist := store.historyFor(resID)
	require.Len(t, hist, 1)
	assert.Equal(t, "requester:42", hist[0].Actor)
	assert.Equal(t, "plans changed", hist[0].Note)
	require.Len(t, events.published(), 1)
}

func TestCancelByStrangerForbidden(t *testing.T) {
	store := newMemStore()
	start, end := futureWindow()
	resID := store.seed(model.StatusPending, model.ApprovalAuto, 42, start, end, map[uint64]uint32{7: 1})
	svc := NewLifecycleService(store, nil)

	err := svc.Cancel(context.Background(), resID, Actor{ExternalID: 99}, "")
	require.ErrorIs(t, err, repository.ErrForbidden)
	assert.Equal(t, model.StatusPending, store.get(resID).Status)
}

func TestCancelAfterStartNeedsStaff(t *testing.T) {
	store := newMemStore()
	start, end := pastWindow()
	resID := store.seed(model.StatusPending, model.ApprovalAuto, 42, start, end, map[uint64]uint32{7: 1})
	svc := NewLifecycleService(store, nil)

	var cfErr *ConflictError
	err := svc.Cancel(context.Background(), resID, Actor{ExternalID: 42}, "")
	require.ErrorAs(t, err, &cfErr)

	require.NoError(t, svc.Cancel(context.Background(), resID, staffActor, "no-show"))
	assert.Equal(t, model.StatusCancelled, store.get(resID).Status)
}

func TestCancelTerminalRejected(t *testing.T) {
	store := newMemStore()
	start, end := futureWindow()
	resID := store.seed(model.StatusCompleted, model.ApprovalAuto, 42, start, end, map[uint64]uint32{7: 1})
	svc := NewLifecycleService(store, nil)

	var cfErr *ConflictError
	err := svc.Cancel(context.Background(), resID, staffActor, "")
	require.ErrorAs(t, err, &cfErr)
	assert.Contains(t, cfErr.Reason, "COMPLETED")
}

func TestCancelMissingReservation(t *testing.T) {
	svc := NewLifecycleService(newMemStore(), nil)
	err := svc.Cancel(context.Background(), 12345, staffActor, "")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCancelClosesPendingApproval(t *testing.T) {
	store := newMemStore()
	start, end := futureWindow()
	resID := store.seed(model.StatusPending, model.ApprovalPending, 42, start, end, map[uint64]uint32{7: 1})
	svc := NewLifecycleService(store, nil)

	require.NoError(t, svc.Cancel(context.Background(), resID, Actor{ExternalID: 42}, ""))
	res := store.get(resID)
	assert.Equal(t, model.StatusCancelled, res.Status)
	assert.Equal(t, model.ApprovalRejected, res.ApprovalStatus)
}

func TestApproveRequiresStaff(t *testing.T) {
	store := newMemStore()
	start, end := futureWindow()
	resID := store.seed(model.StatusPending, model.ApprovalPending, 42, start, end, map[uint64]uint32{7: 1})
	svc := NewLifecycleService(store, nil)

	err := svc.Approve(context.Background(), resID, Actor{ExternalID: 42})
	require.ErrorIs(t, err, repository.ErrForbidden)
}

func TestApproveGrantsGate(t *testing.T) {
	store := newMemStore()
	start, end := futureWindow()
	resID := store.seed(model.StatusPending, model.ApprovalPending, 42, start, end, map[uint64]uint32{7: 1})
	svc := NewLifecycleService(store, nil)

	require.NoError(t, svc.Approve(context.Background(), resID, staffActor))
	res := store.get(resID)
	assert.Equal(t, model.ApprovalApproved, res.ApprovalStatus)
	assert.Equal(t, model.StatusPending, res.Status, "approval does not advance the lifecycle")

	// Deciding twice conflicts.
	var cfErr *ConflictError
	err := svc.Approve(context.Background(), resID, staffActor)
	require.ErrorAs(t, err, &cfErr)
}

func TestRejectApprovalCancels(t *testing.T) {
	store := newMemStore()
	events := &fakeEvents{}
	start, end := futureWindow()
	resID := store.seed(model.StatusPending, model.ApprovalPending, 42, start, end, map[uint64]uint32{7: 1})
	svc := NewLifecycleService(store, events)

	require.NoError(t, svc.RejectApproval(context.Background(), resID, staffActor))
	res := store.get(resID)
	assert.Equal(t, model.ApprovalRejected, res.ApprovalStatus)
	assert.Equal(t, model.StatusCancelled, res.Status)
	require.Len(t, events.published(), 1)
}

func TestRejectApprovalOnTerminalKeepsStatus(t *testing.T) {
	store := newMemStore()
	events := &fakeEvents{}
	start, end := pastWindow()
	resID := store.seed(model.StatusMissed, model.ApprovalPending, 42, start, end, map[uint64]uint32{7: 1})
	svc := NewLifecycleService(store, events)

	require.NoError(t, svc.RejectApproval(context.Background(), resID, staffActor))
	res := store.get(resID)
	assert.Equal(t, model.ApprovalRejected, res.ApprovalStatus)
	assert.Equal(t, model.StatusMissed, res.Status)

	// The audit trail must not claim a transition that never happened.
	history := store.historyFor(resID)
	require.NotEmpty(t, history)
	last := history[len(history)-1]
	assert.Equal(t, model.StatusMissed, last.FromStatus)
	assert.Equal(t, model.StatusMissed, last.ToStatus)
	assert.Empty(t, events.published())
}
