package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/model"
)

// committedStatusList is the SQL fragment enumerating the statuses whose
// items count against model capacity.  It must stay in sync with
// model.CommittingStatuses.
const committedStatusList = `'PENDING','CONFIRMED','COMPLETED'`

// sumCommittedQuery computes the quantity committed for a model over a
// half-open window.  The overlap test is strict: a reservation ending
// exactly when the window starts does not count.
const sumCommittedQuery = `SELECT COALESCE(SUM(ri.quantity), 0)
	FROM reservation_items ri
	JOIN reservations r ON r.id = ri.reservation_id
	WHERE ri.model_id = ?
	  AND r.status IN (` + committedStatusList + `)
	  AND r.start_datetime < ? AND r.end_datetime > ?`

// SumCommitted implements the availability read outside a transaction.
// Used by the preview path where a slightly stale answer is acceptable.
func (s *MySQLStore) SumCommitted(ctx context.Context, modelID uint64, start, end time.Time) (uint32, error) {
	var sum uint32
	err := s.db.QueryRowContext(ctx, sumCommittedQuery, modelID, end.UTC(), start.UTC()).Scan(&sum)
	return sum, err
}

// SumCommitted re-reads the committed quantity inside the transaction.
// Combined with LockModel this is what makes the oversell check correct
// under concurrent checkouts: the second transaction blocks on the model
// lock and then observes the first transaction's committed rows.
func (t *mysqlTx) SumCommitted(ctx context.Context, modelID uint64, start, end time.Time) (uint32, error) {
	var sum uint32
	err := t.tx.QueryRowContext(ctx, sumCommittedQuery, modelID, end.UTC(), start.UTC()).Scan(&sum)
	return sum, err
}

// SumCommittedExcluding is SumCommitted without the contribution of one
// reservation.  The staff quota enforcer uses it to decide whether an
// ad-hoc asset is already promised to a different overlapping reservation.
func (t *mysqlTx) SumCommittedExcluding(ctx context.Context, modelID uint64, start, end time.Time, excludeReservationID uint64) (uint32, error) {
	const q = `SELECT COALESCE(SUM(ri.quantity), 0)
		FROM reservation_items ri
		JOIN reservations r ON r.id = ri.reservation_id
		WHERE ri.model_id = ?
		  AND r.id <> ?
		  AND r.status IN (` + committedStatusList + `)
		  AND r.start_datetime < ? AND r.end_datetime > ?`
	var sum uint32
	err := t.tx.QueryRowContext(ctx, q, modelID, excludeReservationID, end.UTC(), start.UTC()).Scan(&sum)
	return sum, err
}

// reservationColumns is the column list shared by every reservation scan.
const reservationColumns = `id, requester_name, requester_email, requester_ext_id,
	start_datetime, end_datetime, status, approval_status, asset_name_cache,
	created_at, updated_at`

func scanReservation(row interface {
	Scan(dest ...interface{}) error
}) (*model.Reservation, error) {
	var res model.Reservation
	var nameCache sql.NullString
	err := row.Scan(
		&res.ID, &res.RequesterName, &res.RequesterEmail, &res.RequesterExtID,
		&res.StartAt, &res.EndAt, &res.Status, &res.ApprovalStatus, &nameCache,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if nameCache.Valid {
		nc := nameCache.String
		res.AssetNameCache = &nc
	}
	return &res, nil
}

// InsertReservation persists a new reservation row and queries it back to
// populate the generated ID, defaults and timestamps.
func (t *mysqlTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations
		(requester_name, requester_email, requester_ext_id, start_datetime, end_datetime, status, approval_status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := t.tx.ExecContext(ctx, q,
		res.RequesterName, res.RequesterEmail, res.RequesterExtID,
		res.StartAt.UTC(), res.EndAt.UTC(), res.Status, res.ApprovalStatus,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	const sel = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	fresh, err := scanReservation(t.tx.QueryRowContext(ctx, sel, res.ID))
	if err != nil {
		return err
	}
	*res = *fresh
	return nil
}

// InsertItems bulk-inserts reservation items in a single statement.
// Passing an empty slice has no effect and returns nil.
func (t *mysqlTx) InsertItems(ctx context.Context, items []model.ReservationItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `INSERT INTO reservation_items (reservation_id, model_id, quantity, name_cache) VALUES `
	args := make([]interface{}, 0, len(items)*4)
	for i, it := range items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, it.ReservationID, it.ModelID, it.Quantity, it.NameCache)
	}
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

// GetReservationForUpdate loads a reservation with an exclusive row lock so
// the caller can apply a status transition without racing the sweeper or
// another staff action.
func (t *mysqlTx) GetReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? FOR UPDATE`
	res, err := scanReservation(t.tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return res, err
}

const itemColumns = `id, reservation_id, model_id, quantity, name_cache, created_at`

func scanItems(rows *sql.Rows) ([]model.ReservationItem, error) {
	defer rows.Close()
	items := make([]model.ReservationItem, 0, 4)
	for rows.Next() {
		var it model.ReservationItem
		if err := rows.Scan(&it.ID, &it.ReservationID, &it.ModelID, &it.Quantity, &it.NameCache, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetItems returns the items of a reservation in insertion order.
func (t *mysqlTx) GetItems(ctx context.Context, reservationID uint64) ([]model.ReservationItem, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM reservation_items WHERE reservation_id = ? ORDER BY id`,
		reservationID,
	)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

// UpdateStatus transitions a reservation guarded by its current status.
// Zero affected rows means another writer got there first (or the id does
// not exist) and the caller must re-read before deciding anything.
func (t *mysqlTx) UpdateStatus(ctx context.Context, id uint64, from, to string) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`,
		to, id, from,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleStatus
	}
	return nil
}

// UpdateApproval sets the approval gate status.
func (t *mysqlTx) UpdateApproval(ctx context.Context, id uint64, approval string) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE reservations SET approval_status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
		approval, id,
	)
	return err
}

// SetAssetNameCache replaces the denormalized display text of the assets
// handed out against this reservation.
func (t *mysqlTx) SetAssetNameCache(ctx context.Context, id uint64, names string) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE reservations SET asset_name_cache = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
		names, id,
	)
	return err
}

func (t *mysqlTx) selectForSweep(ctx context.Context, q string, startedBefore time.Time) ([]model.Reservation, error) {
	rows, err := t.tx.QueryContext(ctx, q, startedBefore.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0, 16)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// SelectMissedPickups returns PENDING reservations whose pickup window
// opened before the cutoff.  CONFIRMED reservations are excluded on
// purpose: becoming CONFIRMED requires a recorded checkout, so they cannot
// be "missed".  The FOR UPDATE lock keeps two overlapping sweep runs from
// transitioning the same rows.
func (t *mysqlTx) SelectMissedPickups(ctx context.Context, startedBefore time.Time) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
		WHERE status = 'PENDING' AND start_datetime < ?
		ORDER BY id FOR UPDATE`
	return t.selectForSweep(ctx, q, startedBefore)
}

// SelectStaleApprovals returns non-terminal reservations still waiting for
// approval past the cutoff.
func (t *mysqlTx) SelectStaleApprovals(ctx context.Context, startedBefore time.Time) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
		WHERE approval_status = 'PENDING_APPROVAL'
		  AND status IN ('PENDING','CONFIRMED')
		  AND start_datetime < ?
		ORDER BY id FOR UPDATE`
	return t.selectForSweep(ctx, q, startedBefore)
}

// GetReservation loads a reservation and its items outside a transaction.
func (s *MySQLStore) GetReservation(ctx context.Context, id uint64) (*model.Reservation, []model.ReservationItem, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM reservation_items WHERE reservation_id = ? ORDER BY id`,
		id,
	)
	if err != nil {
		return nil, nil, err
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, nil, err
	}
	return res, items, nil
}

// ListByRequester returns all reservations created by the given external
// user, newest first, and populates the items for all of them in a single
// follow-up query.
func (s *MySQLStore) ListByRequester(ctx context.Context, extID uint64) ([]ReservationDetail, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
		WHERE requester_ext_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, q, extID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]ReservationDetail, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		index[res.ID] = len(details)
		details = append(details, ReservationDetail{Reservation: *res, Items: []model.ReservationItem{}})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}
	ids := make([]interface{}, 0, len(details))
	placeholders := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.Reservation.ID)
		placeholders = append(placeholders, "?")
	}
	itemQ := `SELECT ` + itemColumns + ` FROM reservation_items
		WHERE reservation_id IN (` + strings.Join(placeholders, ",") + `)
		ORDER BY reservation_id, id`
	irows, err := s.db.QueryContext(ctx, itemQ, ids...)
	if err != nil {
		return nil, err
	}
	items, err := scanItems(irows)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if idx, ok := index[it.ReservationID]; ok {
			details[idx].Items = append(details[idx].Items, it)
		}
	}
	return details, nil
}
