package service

import (
	"context"

	"ride-hail/internal/domain/ride"
	"ride-hail/internal/ports"
)

var allVehicleTypes = []ride.VehicleType{ride.VehicleBike, ride.VehicleTaxi, ride.VehiclePort}

// GetRidePrices returns the current per-km rate for every vehicle type
// (spec §4.1's Pricing Cache, read through to its durable store).
func (service *adminService) GetRidePrices(ctx context.Context) ([]ports.RidePrice, error) {
	var out []ports.RidePrice

	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		prices, err := service.pricingRepo.LoadAll(txCtx)
		if err != nil {
			return err
		}

		for _, vt := range allVehicleTypes {
			out = append(out, ports.RidePrice{VehicleType: vt, PricePerKM: prices[vt]})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// SetRidePrice updates a single vehicle type's per-km rate.
func (service *adminService) SetRidePrice(ctx context.Context, vt ride.VehicleType, pricePerKM int) error {
	if !vt.Valid() {
		return ride.ErrInvalidVehicleType
	}
	if pricePerKM < 0 {
		return ride.ErrNegativeDistance
	}

	return service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return service.pricingRepo.SetPrice(txCtx, vt, pricePerKM)
	})
}
