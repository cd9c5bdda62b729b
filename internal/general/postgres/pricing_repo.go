package postgres

import (
	"context"

	"ride-hail/internal/domain/ride"
	"ride-hail/internal/ports"
)

// PricingRepo persists per-vehicle-type per-km rates backing the Pricing
// Cache (spec §4.1).
type PricingRepo struct{}

// NewPricingRepo constructs a new PricingRepo.
func NewPricingRepo() ports.PricingRepository {
	return &PricingRepo{}
}

// LoadAll returns every configured rate, keyed by vehicle type.
func (repo *PricingRepo) LoadAll(ctx context.Context) (map[ride.VehicleType]int, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `SELECT vehicle_type, price_per_km FROM ride_prices`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[ride.VehicleType]int)
	for rows.Next() {
		var vt string
		var price int
		if err := rows.Scan(&vt, &price); err != nil {
			return nil, err
		}
		out[ride.VehicleType(vt)] = price
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// SetPrice upserts a single vehicle type's rate.
func (repo *PricingRepo) SetPrice(ctx context.Context, vt ride.VehicleType, pricePerKM int) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ride_prices (vehicle_type, price_per_km, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (vehicle_type) DO UPDATE
		SET price_per_km = EXCLUDED.price_per_km, updated_at = now()
	`, vt.String(), pricePerKM)
	return err
}
