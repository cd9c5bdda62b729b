package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ride-hail/internal/domain/ride"
	"ride-hail/internal/ports"

	"github.com/jackc/pgx/v5"
)

// RideRepo persists rides using pgx and plain SQL.
type RideRepo struct{}

// NewRideRepo constructs a new RideRepo.
func NewRideRepo() ports.RideRepository {
	return &RideRepo{}
}

// GetRidesByDriver returns recent rides for a driver.
func (repo *RideRepo) GetRidesByDriver(ctx context.Context, driverID string, limit int) ([]*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get transaction from context: %w", err)
	}

	rows, err := tx.Query(ctx, selectRideColumns+`
		WHERE driver_ref = $1
		ORDER BY created_at DESC
		LIMIT $2`, driverID, limit)
	if err != nil {
		return nil, fmt.Errorf("query rides by driver: %w", err)
	}
	defer rows.Close()

	var rides []*ride.Ride
	for rows.Next() {
		rd, err := scanRideRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		rides = append(rides, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return rides, nil
}

// CreateRide inserts a new ride row and writes an initial RIDE_REQUESTED event.
func (repo *RideRepo) CreateRide(ctx context.Context, r *ride.Ride) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO rides (
			raid_id, passenger_id, passenger_internal_id, passenger_name, passenger_phone,
			vehicle_type, status, pickup_lat, pickup_lng, pickup_address,
			drop_lat, drop_lng, drop_address, distance_km, fare, otp
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at
	`,
		r.RaidID, r.PassengerID, r.PassengerInternalID, r.PassengerName, r.PassengerPhone,
		r.VehicleType.String(), r.Status.String(),
		r.Pickup.Lat, r.Pickup.Lng, r.Pickup.Address,
		r.Drop.Lat, r.Drop.Lng, r.Drop.Address,
		r.DistanceKM, r.Fare, r.OTP,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return err
	}

	return insertRideEvent(ctx, tx, r.ID, "RIDE_REQUESTED", map[string]any{
		"new_status": r.Status.String(),
		"raid_id":    r.RaidID,
	})
}

// GetByID fetches a ride by primary key (uuid).
func (repo *RideRepo) GetByID(ctx context.Context, id string) (*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, selectRideColumns+` WHERE id = $1`, id)
	return scanRideRow(row)
}

// GetByRaidID fetches a ride by its human-readable raidId.
func (repo *RideRepo) GetByRaidID(ctx context.Context, raidID string) (*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, selectRideColumns+` WHERE raid_id = $1`, raidID)
	return scanRideRow(row)
}

// GetActiveForDriver fetches the most recent active (non-terminal) ride for a given driver.
func (repo *RideRepo) GetActiveForDriver(ctx context.Context, driverID string) (*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, selectRideColumns+`
		WHERE driver_ref = $1
		  AND status IN ('accepted', 'arrived', 'started')
		ORDER BY created_at DESC
		LIMIT 1
	`, driverID)

	out, err := scanRideRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return out, err
}

// AssignDriverCAS atomically assigns driverID only if the ride is still
// pending and unassigned (spec §4.4's compare-and-set acceptance).
func (repo *RideRepo) AssignDriverCAS(ctx context.Context, rideID, driverID string, acceptedAt time.Time) (bool, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET driver_ref = $1,
		    status = 'accepted',
		    accepted_at = $2,
		    updated_at = now()
		WHERE id = $3
		  AND status = 'pending'
		  AND driver_ref IS NULL
	`, driverID, acceptedAt, rideID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := insertRideEvent(ctx, tx, rideID, "DRIVER_MATCHED", map[string]any{
		"new_status":  "accepted",
		"driver_id":   driverID,
		"accepted_at": acceptedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		return false, err
	}
	return true, nil
}

// MarkArrived transitions accepted -> arrived.
func (repo *RideRepo) MarkArrived(ctx context.Context, rideID string, arrivedAt time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET status = 'arrived', arrived_at = $1, updated_at = now()
		WHERE id = $2 AND status = 'accepted'
	`, arrivedAt, rideID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ride.ErrInvalidStatusTransition
	}

	return insertRideEvent(ctx, tx, rideID, "DRIVER_ARRIVED", map[string]any{
		"new_status": "arrived",
	})
}

// Start transitions arrived -> started.
func (repo *RideRepo) Start(ctx context.Context, rideID string, startedAt time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET status = 'started', started_at = $1, updated_at = now()
		WHERE id = $2 AND status = 'arrived'
	`, startedAt, rideID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ride.ErrInvalidStatusTransition
	}

	return insertRideEvent(ctx, tx, rideID, "RIDE_STARTED", map[string]any{
		"new_status": "started",
	})
}

// Complete finalizes a ride with actual trip metrics and moves to completed.
func (repo *RideRepo) Complete(ctx context.Context, rideID string, actualDistanceKM, actualFare float64, paymentMethod ride.PaymentMethod, completedAt time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET status = 'completed',
		    actual_distance_km = $1,
		    actual_fare = $2,
		    payment_method = $3,
		    completed_at = $4,
		    updated_at = now()
		WHERE id = $5 AND status = 'started'
	`, actualDistanceKM, actualFare, paymentMethod.String(), completedAt, rideID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ride.ErrInvalidStatusTransition
	}

	return insertRideEvent(ctx, tx, rideID, "RIDE_COMPLETED", map[string]any{
		"actual_distance_km": actualDistanceKM,
		"actual_fare":        actualFare,
	})
}

// Cancel sets cancellation_reason, stamps cancelled_at, and moves to cancelled.
func (repo *RideRepo) Cancel(ctx context.Context, rideID, reason string, cancelledAt time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	var current string
	if err := tx.QueryRow(ctx, `SELECT status FROM rides WHERE id = $1 FOR UPDATE`, rideID).Scan(&current); err != nil {
		return err
	}
	if current == ride.StatusCancelled.String() {
		return nil
	}
	if current == ride.StatusCompleted.String() || current == ride.StatusStarted.String() {
		return ride.ErrInvalidStatusTransition
	}

	_, err = tx.Exec(ctx, `
		UPDATE rides
		SET status = 'cancelled', cancellation_reason = $1, cancelled_at = $2, updated_at = now()
		WHERE id = $3
	`, reason, cancelledAt, rideID)
	if err != nil {
		return err
	}

	return insertRideEvent(ctx, tx, rideID, "RIDE_CANCELLED", map[string]any{
		"old_status": current,
		"reason":     reason,
	})
}

// AddRejection appends a driver decline without altering the ride's status.
func (repo *RideRepo) AddRejection(ctx context.Context, rideID string, rej ride.Rejection) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ride_rejections (ride_id, driver_id, reason, rejected_at)
		VALUES ($1, $2, $3, $4)
	`, rideID, rej.DriverID, rej.Reason, rej.At)
	if err != nil {
		return err
	}

	return insertRideEvent(ctx, tx, rideID, "STATUS_CHANGED", map[string]any{
		"driver_id": rej.DriverID,
		"reason":    rej.Reason,
		"rejected":  true,
	})
}

// --- helpers ---

const selectRideColumns = `
	SELECT id, raid_id, passenger_id, passenger_internal_id, passenger_name, passenger_phone,
	       driver_ref, vehicle_type, status,
	       pickup_lat, pickup_lng, pickup_address, drop_lat, drop_lng, drop_address,
	       distance_km, fare, otp, created_at, updated_at,
	       accepted_at, arrived_at, started_at, completed_at, cancelled_at,
	       actual_distance_km, actual_fare, payment_method, cancellation_reason
	FROM rides
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRideRow(row rowScanner) (*ride.Ride, error) {
	var out ride.Ride
	var vehicleType, status string
	var paymentMethod *string

	err := row.Scan(
		&out.ID, &out.RaidID, &out.PassengerID, &out.PassengerInternalID, &out.PassengerName, &out.PassengerPhone,
		&out.DriverRef, &vehicleType, &status,
		&out.Pickup.Lat, &out.Pickup.Lng, &out.Pickup.Address,
		&out.Drop.Lat, &out.Drop.Lng, &out.Drop.Address,
		&out.DistanceKM, &out.Fare, &out.OTP, &out.CreatedAt, &out.UpdatedAt,
		&out.AcceptedAt, &out.ArrivedAt, &out.StartedAt, &out.CompletedAt, &out.CancelledAt,
		&out.ActualDistanceKM, &out.ActualFare, &paymentMethod, &out.CancellationReason,
	)
	if err != nil {
		return nil, err
	}

	out.VehicleType = ride.VehicleType(vehicleType)
	out.Status = ride.Status(status)
	if paymentMethod != nil {
		out.PaymentMethod = ride.PaymentMethod(*paymentMethod)
	}

	return &out, nil
}

// insertRideEvent writes a row into ride_events with encoded event_data.
func insertRideEvent(ctx context.Context, tx pgx.Tx, rideID, eventType string, eventData any) error {
	body, err := json.Marshal(eventData)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ride_events (ride_id, event_type, event_data)
		VALUES ($1, $2, $3::jsonb)
	`, rideID, eventType, string(body))
	return err
}
