package repository

import (
	"context"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/model"
)

// AppendHistory appends one lifecycle record inside the transaction that
// performs the corresponding status change, so history and state can never
// diverge.  The table is append-only; there is no update or delete path.
func (t *mysqlTx) AppendHistory(ctx context.Context, ev *model.LifecycleEvent) error {
	const q = `INSERT INTO lifecycle_history (reservation_id, from_status, to_status, actor, note)
		VALUES (?, ?, ?, ?, ?)`
	result, err := t.tx.ExecContext(ctx, q, ev.ReservationID, ev.FromStatus, ev.ToStatus, ev.Actor, ev.Note)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = uint64(id)
	return nil
}

// ListHistory returns the lifecycle records of a reservation, oldest first.
func (s *MySQLStore) ListHistory(ctx context.Context, reservationID uint64) ([]model.LifecycleEvent, error) {
	const q = `SELECT id, reservation_id, from_status, to_status, actor, note, created_at
		FROM lifecycle_history WHERE reservation_id = ? ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]model.LifecycleEvent, 0, 4)
	for rows.Next() {
		var ev model.LifecycleEvent
		if err := rows.Scan(&ev.ID, &ev.ReservationID, &ev.FromStatus, &ev.ToStatus, &ev.Actor, &ev.Note, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
