package postgres

import (
	"context"
	"ride-hail/internal/ports"
	"time"
)

// CountActive returns the number of rides in non-terminal states.
func (repo *RideRepo) CountActive(ctx context.Context) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM rides
		WHERE status IN ('pending', 'accepted', 'arrived', 'started')
	`).Scan(&n)
	if err != nil {
		return 0, err
	}

	return n, nil
}

// CountCreatedBetween returns the number of rides that were created within the specified time range [start, end).
func (repo *RideRepo) CountCreatedBetween(ctx context.Context, start, end time.Time) (int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM rides
		WHERE created_at >= $1 AND created_at < $2
	`, start, end).Scan(&n)
	if err != nil {
		return 0, err
	}

	return n, nil
}

// CancellationRateBetween returns the cancellation rate for rides whose creation time falls within [start, end).
func (repo *RideRepo) CancellationRateBetween(ctx context.Context, start, end time.Time) (float64, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var total, cancelled int64
	err = tx.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE created_at >= $1 AND created_at < $2) AS total_cnt,
			COUNT(*) FILTER (WHERE created_at >= $1 AND created_at < $2 AND status = 'cancelled') AS cancelled_cnt
		FROM rides
	`, start, end).Scan(&total, &cancelled)
	if err != nil {
		return 0, err
	}

	if total == 0 {
		return 0, nil
	}
	return float64(cancelled) / float64(total), nil
}

// SumFareCompletedBetween returns the total revenue from rides completed within [start, end).
func (repo *RideRepo) SumFareCompletedBetween(ctx context.Context, start, end time.Time) (float64, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var total float64
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(actual_fare), 0)
		FROM rides
		WHERE status = 'completed'
		  AND completed_at >= $1 AND completed_at < $2
	`, start, end).Scan(&total)
	if err != nil {
		return 0, err
	}

	return total, nil
}

// AvgWaitMinutesBetween returns the average passenger wait time for rides accepted within [start, end).
func (repo *RideRepo) AvgWaitMinutesBetween(ctx context.Context, start, end time.Time) (float64, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var avg float64
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (accepted_at - created_at)) / 60.0), 0)
		FROM rides
		WHERE accepted_at IS NOT NULL
		  AND created_at IS NOT NULL
		  AND accepted_at >= $1 AND accepted_at < $2
	`, start, end).Scan(&avg)
	if err != nil {
		return 0, err
	}

	return avg, nil
}

// AvgRideDurationMinutesBetween returns the average ride duration for rides completed within [start, end).
func (repo *RideRepo) AvgRideDurationMinutesBetween(ctx context.Context, start, end time.Time) (float64, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var avg float64
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (completed_at - started_at)) / 60.0), 0)
		FROM rides
		WHERE status = 'completed'
		  AND started_at IS NOT NULL
		  AND completed_at IS NOT NULL
		  AND completed_at >= $1 AND completed_at < $2
	`, start, end).Scan(&avg)
	if err != nil {
		return 0, err
	}

	return avg, nil
}

// HydrateActiveRows returns a page of in-progress rides with the driver's last known fix.
func (repo *RideRepo) HydrateActiveRows(ctx context.Context, offset, limit int) ([]ports.ActiveRideRow, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := tx.Query(ctx, `
		SELECT
			r.id,
			r.raid_id,
			r.status,
			r.passenger_id,
			COALESCE(r.driver_ref, ''),
			r.pickup_address,
			r.drop_address,
			r.started_at,
			COALESCE(cur.latitude, 0.0)  AS cur_lat,
			COALESCE(cur.longitude, 0.0) AS cur_lng
		FROM rides r
		LEFT JOIN coordinates cur
			ON cur.entity_id = r.driver_ref
			AND cur.entity_type = 'driver'
			AND cur.is_current = true
		WHERE r.status = 'started' AND r.started_at IS NOT NULL
		ORDER BY r.started_at DESC
		OFFSET $1
		LIMIT  $2
	`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.ActiveRideRow
	for rows.Next() {
		var r ports.ActiveRideRow
		if err := rows.Scan(
			&r.RideID,
			&r.RaidID,
			&r.Status,
			&r.PassengerID,
			&r.DriverID,
			&r.PickupAddress,
			&r.DropAddress,
			&r.StartedAt,
			&r.CurrentDriverLocation.Latitude,
			&r.CurrentDriverLocation.Longitude,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
