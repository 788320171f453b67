package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/model"
)

// Store is the storage surface consumed by the service layer.  It exposes
// plain reads directly and funnels every mutation through WithTx so that
// multi-step operations (checkout, sweep passes, staff transitions) are
// atomic.  The MySQL implementation lives in this package; tests provide
// an in-memory implementation.
type Store interface {
	// WithTx runs fn inside a single database transaction.  The
	// transaction is committed when fn returns nil and rolled back
	// otherwise.
	WithTx(ctx context.Context, fn func(Tx) error) error

	// SumCommitted returns the total quantity reserved for a model by
	// reservations in a committing status whose window overlaps the given
	// half-open interval.
	SumCommitted(ctx context.Context, modelID uint64, start, end time.Time) (uint32, error)

	// GetReservation loads a reservation and its items.  Returns
	// ErrNotFound when no such reservation exists.
	GetReservation(ctx context.Context, id uint64) (*model.Reservation, []model.ReservationItem, error)

	// ListByRequester returns all reservations created by the given
	// external user id, newest first, with their items populated.
	ListByRequester(ctx context.Context, extID uint64) ([]ReservationDetail, error)

	// ListOverlappingBlackouts returns blackout slots that overlap the
	// interval and apply to the model (slots with no model id apply
	// fleet-wide).
	ListOverlappingBlackouts(ctx context.Context, modelID uint64, start, end time.Time) ([]model.BlackoutSlot, error)

	// ListHistory returns the append-only lifecycle records for a
	// reservation, oldest first.
	ListHistory(ctx context.Context, reservationID uint64) ([]model.LifecycleEvent, error)
}

// Tx is the transactional half of Store.  All methods operate on the same
// underlying database transaction; row locks taken by LockModel and the
// FOR UPDATE selects are held until the transaction ends.
type Tx interface {
	// LockModel takes an exclusive row lock keyed by the model id.  Two
	// concurrent checkouts competing for the same model serialize here;
	// the lock is released automatically at commit or rollback.  Callers
	// must lock models in ascending id order to avoid deadlock.
	LockModel(ctx context.Context, modelID uint64) error

	// SumCommitted is the in-transaction variant of Store.SumCommitted.
	// It must be called after LockModel for the oversell check to be
	// race-free.
	SumCommitted(ctx context.Context, modelID uint64, start, end time.Time) (uint32, error)

	// SumCommittedExcluding is SumCommitted minus the contribution of one
	// reservation, used when checking whether an ad-hoc asset is free of
	// commitments to other reservations.
	SumCommittedExcluding(ctx context.Context, modelID uint64, start, end time.Time, excludeReservationID uint64) (uint32, error)

	// InsertReservation persists a new reservation and populates its ID
	// and timestamps.
	InsertReservation(ctx context.Context, res *model.Reservation) error

	// InsertItems bulk-inserts the reservation's items.  Every item must
	// carry the parent reservation id.
	InsertItems(ctx context.Context, items []model.ReservationItem) error

	// GetReservationForUpdate loads a reservation under FOR UPDATE so the
	// caller can transition its status without racing other writers.
	GetReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error)

	// GetItems returns the items of a reservation.
	GetItems(ctx context.Context, reservationID uint64) ([]model.ReservationItem, error)

	// UpdateStatus moves a reservation from one status to another.  The
	// `from` status acts as a guard; ErrStaleStatus is returned when the
	// row is no longer in that status.
	UpdateStatus(ctx context.Context, id uint64, from, to string) error

	// UpdateApproval sets the approval status of a reservation.
	UpdateApproval(ctx context.Context, id uint64, approval string) error

	// SetAssetNameCache replaces the denormalized asset display text.
	SetAssetNameCache(ctx context.Context, id uint64, names string) error

	// SelectMissedPickups returns PENDING reservations whose start time is
	// before the given cutoff, locked FOR UPDATE.  Rows already marked
	// MISSED are never selected, which makes the sweep idempotent.
	SelectMissedPickups(ctx context.Context, startedBefore time.Time) ([]model.Reservation, error)

	// SelectStaleApprovals returns reservations still awaiting approval
	// whose start time is before the given cutoff, locked FOR UPDATE.
	SelectStaleApprovals(ctx context.Context, startedBefore time.Time) ([]model.Reservation, error)

	// AppendHistory appends one immutable lifecycle record.
	AppendHistory(ctx context.Context, ev *model.LifecycleEvent) error
}

// ReservationDetail bundles a reservation with its items for listing.
type ReservationDetail struct {
	Reservation model.Reservation       `json:"reservation"`
	Items       []model.ReservationItem `json:"items"`
}

// MySQLStore implements Store on top of database/sql with the MySQL
// driver.  All timestamp columns are DATETIME in UTC; the DSN must set
// parseTime=true and loc=UTC.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore returns a MySQLStore bound to the given database handle.
func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

// DB exposes the underlying handle for health checks and wiring.
func (s *MySQLStore) DB() *sql.DB { return s.db }

// WithTx begins a transaction, runs fn and commits when fn returns nil.
// Any error from fn or from commit rolls the transaction back; the
// rollback error is intentionally discarded since the original error is
// what callers need.
func (s *MySQLStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&mysqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// mysqlTx implements Tx over a live *sql.Tx.
type mysqlTx struct {
	tx *sql.Tx
}

// LockModel materializes a lock row for the model and takes an exclusive
// row lock on it.  The INSERT ... ON DUPLICATE KEY UPDATE is a no-op when
// the row already exists, so the statement is safe to run concurrently.
func (t *mysqlTx) LockModel(ctx context.Context, modelID uint64) error {
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO model_locks (model_id) VALUES (?) ON DUPLICATE KEY UPDATE model_id = model_id`,
		modelID,
	); err != nil {
		return err
	}
	var locked uint64
	return t.tx.QueryRowContext(ctx,
		`SELECT model_id FROM model_locks WHERE model_id = ? FOR UPDATE`,
		modelID,
	).Scan(&locked)
}
