// internal/adapters/postgres/driver_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"ride-hail/internal/domain/driver"
	"ride-hail/internal/domain/ride"
	"ride-hail/internal/ports"
)

// DriverRepo persists drivers using pgx and plain SQL.
type DriverRepo struct{}

// NewDriverRepo constructs a new DriverRepo.
func NewDriverRepo() ports.DriverRepository {
	return &DriverRepo{}
}

// CreateDriver inserts a new driver row. The referenced user must already exist in users(id).
func (repo *DriverRepo) CreateDriver(ctx context.Context, driverObj *driver.Driver) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO drivers (
			id, display_name, phone, license_number, vehicle_type, vehicle_number, vehicle_attrs,
			status, working_hours_deduction
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING internal_id, created_at, updated_at, rating, total_rides, total_earnings, is_verified
	`,
		driverObj.ID,
		driverObj.DisplayName,
		driverObj.Phone,
		driverObj.LicenseNumber,
		driverObj.VehicleType.String(),
		driverObj.VehicleNumber,
		driverObj.VehicleAttrs,
		driverObj.Status.String(),
		driverObj.WorkingHoursDeduction,
	).Scan(
		&driverObj.InternalID, &driverObj.CreatedAt, &driverObj.UpdatedAt,
		&driverObj.Rating, &driverObj.TotalRides, &driverObj.TotalEarnings, &driverObj.IsVerified,
	)
	if err != nil {
		return err
	}

	return nil
}

const selectDriverColumns = `
	SELECT
		id, internal_id, created_at, updated_at,
		display_name, phone, license_number, vehicle_type, vehicle_number, vehicle_attrs,
		rating, total_rides, total_earnings,
		status, is_verified,
		wallet, working_hours_limit, working_hours_deduction, remaining_working_seconds,
		timer_active, warnings_issued, extended_hours_purchased,
		last_known_lat, last_known_lng, push_token
	FROM drivers
`

func scanDriverRow(row rowScanner) (*driver.Driver, error) {
	var out driver.Driver
	var vehicleType, statusText string
	var vehicleAttrs []byte
	var workingHoursLimit int
	var lastLat, lastLng *float64
	var pushToken *string

	err := row.Scan(
		&out.ID, &out.InternalID, &out.CreatedAt, &out.UpdatedAt,
		&out.DisplayName, &out.Phone, &out.LicenseNumber, &vehicleType, &out.VehicleNumber, &vehicleAttrs,
		&out.Rating, &out.TotalRides, &out.TotalEarnings,
		&statusText, &out.IsVerified,
		&out.Wallet, &workingHoursLimit, &out.WorkingHoursDeduction, &out.RemainingWorkingSeconds,
		&out.TimerActive, &out.WarningsIssued, &out.ExtendedHoursPurchased,
		&lastLat, &lastLng, &pushToken,
	)
	if err != nil {
		return nil, err
	}

	out.VehicleType = ride.VehicleType(vehicleType)
	out.Status = driver.Status(statusText)
	out.WorkingHoursLimit = driver.WorkingHoursLimit(workingHoursLimit)
	if pushToken != nil {
		out.PushToken = *pushToken
	}
	if lastLat != nil && lastLng != nil {
		out.LastKnownLocation = &ride.Point{Lat: *lastLat, Lng: *lastLng}
	}

	if len(vehicleAttrs) > 0 {
		if err := json.Unmarshal(vehicleAttrs, &out.VehicleAttrs); err != nil {
			return nil, err
		}
	}

	return &out, nil
}

// GetByID returns one driver by id.
func (repo *DriverRepo) GetByID(ctx context.Context, driverID string) (*driver.Driver, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, selectDriverColumns+` WHERE id = $1`, driverID)
	return scanDriverRow(row)
}

// GetByPhone looks up a driver by its registered phone number, the key the
// OTP-bootstrap auth flow authenticates against (spec §4.9).
func (repo *DriverRepo) GetByPhone(ctx context.Context, phone string) (*driver.Driver, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRow(ctx, selectDriverColumns+` WHERE phone = $1`, phone)
	return scanDriverRow(row)
}

// UpdateStatus sets the driver status (idempotent if unchanged).
func (repo *DriverRepo) UpdateStatus(ctx context.Context, driverID string, status driver.Status) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	var current string
	err = tx.QueryRow(ctx, `
		SELECT status
		FROM drivers
		WHERE id = $1
		FOR UPDATE
	`, driverID).Scan(&current)
	if err != nil {
		return err
	}

	if current == status.String() {
		return nil
	}

	if !status.Valid() {
		return driver.ErrInvalidDriverStatus
	}

	_, err = tx.Exec(ctx, `
		UPDATE drivers
		SET status = $1,
		    updated_at = now()
		WHERE id = $2
	`, status.String(), driverID)
	return err
}

// FindNearbyAvailable returns live drivers of the given vehicle type within radius, ordered by distance then rating.
func (repo *DriverRepo) FindNearbyAvailable(
	ctx context.Context,
	lat, lng float64,
	vehicle ride.VehicleType,
	radiusKm float64,
	limit int,
) ([]driver.Driver, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT
			d.id, d.internal_id, d.created_at, d.updated_at,
			d.display_name, d.phone, d.license_number, d.vehicle_type, d.vehicle_number, d.vehicle_attrs,
			d.rating, d.total_rides, d.total_earnings,
			d.status, d.is_verified,
			d.wallet, d.working_hours_limit, d.working_hours_deduction, d.remaining_working_seconds,
			d.timer_active, d.warnings_issued, d.extended_hours_purchased,
			d.last_known_lat, d.last_known_lng, d.push_token
		FROM drivers d
		JOIN coordinates c
		  ON c.entity_id = d.id
		 AND c.entity_type = 'driver'
		 AND c.is_current = true
		WHERE d.status = 'live'
		  AND d.vehicle_type = $3
		  AND ST_DWithin(
				ST_MakePoint(c.longitude, c.latitude)::geography,
				ST_MakePoint($2, $1)::geography,
				$4 * 1000.0
			  )
		ORDER BY
		  ST_Distance(
			ST_MakePoint(c.longitude, c.latitude)::geography,
			ST_MakePoint($2, $1)::geography
		  ),
		  d.rating DESC
		LIMIT $5
	`, lat, lng, vehicle.String(), radiusKm, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []driver.Driver
	for rows.Next() {
		out, err := scanDriverRow(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, *out)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return drivers, nil
}

// IncrementCountersOnComplete increments total_rides by 1 and adds earnings to total_earnings.
func (repo *DriverRepo) IncrementCountersOnComplete(ctx context.Context, driverID string, earnings float64) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	if earnings < 0 {
		return errors.New("earnings cannot be negative")
	}

	_, err = tx.Exec(ctx, `
		UPDATE drivers
		SET total_rides = total_rides + 1,
		    total_earnings = total_earnings + $1,
		    updated_at = now()
		WHERE id = $2
	`, earnings, driverID)
	return err
}

// UpdateWallet persists a new wallet balance (caller applied the domain mutation already).
func (repo *DriverRepo) UpdateWallet(ctx context.Context, driverID string, newBalance int) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE drivers
		SET wallet = $1, updated_at = now()
		WHERE id = $2
	`, newBalance, driverID)
	return err
}

// UpdateWorkingHoursState persists the shift timer slice (spec §4.6).
func (repo *DriverRepo) UpdateWorkingHoursState(ctx context.Context, driverID string, state ports.WorkingHoursState) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE drivers
		SET working_hours_limit = $1,
		    remaining_working_seconds = $2,
		    timer_active = $3,
		    warnings_issued = $4,
		    extended_hours_purchased = $5,
		    updated_at = now()
		WHERE id = $6
	`, int(state.Limit), state.RemainingSeconds, state.TimerActive, state.WarningsIssued, state.ExtendedHoursPurchased, driverID)
	return err
}

// UpdateLastKnownLocation records the driver's most recent realtime fix.
func (repo *DriverRepo) UpdateLastKnownLocation(ctx context.Context, driverID string, loc ride.Point) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE drivers
		SET last_known_lat = $1, last_known_lng = $2, updated_at = now()
		WHERE id = $3
	`, loc.Lat, loc.Lng, driverID)
	return err
}

// UpdatePushToken stores the driver's current push notification token.
func (repo *DriverRepo) UpdatePushToken(ctx context.Context, driverID, token string) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE drivers
		SET push_token = $1, updated_at = now()
		WHERE id = $2
	`, token, driverID)
	return err
}

// RearmTimers returns every driver whose shift timer was active, so the
// Working-Hours Service can re-arm on process start (spec §6).
func (repo *DriverRepo) RearmTimers(ctx context.Context) ([]driver.Driver, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, selectDriverColumns+` WHERE timer_active = true`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []driver.Driver
	for rows.Next() {
		d, err := scanDriverRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
