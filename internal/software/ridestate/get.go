package ridestate

import (
	"context"

	"ride-hail/internal/domain/ride"
)

// GetRide returns the current state of a ride.
func (s *rideStateService) GetRide(ctx context.Context, rideID string) (*ride.Ride, error) {
	return s.rideRepo.GetByID(ctx, rideID)
}
