package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/VitorMRodovalho/SnipeScheduler-FleetManager-sub002/internal/model"
)

// ListOverlappingBlackouts returns blackout slots that overlap the given
// half-open interval and apply to the model.  Fleet-wide slots (NULL
// model_id) always apply.  Blackouts are configured out of band; this
// engine only reads them.
func (s *MySQLStore) ListOverlappingBlackouts(ctx context.Context, modelID uint64, start, end time.Time) ([]model.BlackoutSlot, error) {
	const q = `SELECT id, start_datetime, end_datetime, model_id, reason
		FROM blackout_slots
		WHERE start_datetime < ? AND end_datetime > ?
		  AND (model_id IS NULL OR model_id = ?)
		ORDER BY start_datetime`
	rows, err := s.db.QueryContext(ctx, q, end.UTC(), start.UTC(), modelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	slots := make([]model.BlackoutSlot, 0, 2)
	for rows.Next() {
		var b model.BlackoutSlot
		var mid sql.NullInt64
		if err := rows.Scan(&b.ID, &b.StartAt, &b.EndAt, &mid, &b.Reason); err != nil {
			return nil, err
		}
		if mid.Valid {
			m := uint64(mid.Int64)
			b.ModelID = &m
		}
		slots = append(slots, b)
	}
	return slots, rows.Err()
}
