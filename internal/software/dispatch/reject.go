package dispatch

import (
	"context"

	"ride-hail/internal/domain/ride"
	"ride-hail/internal/general/apperr"
	"ride-hail/internal/general/contracts"
	"ride-hail/internal/ports"
)

// RejectRide records a driver's decline. The ride remains dispatchable for
// every other driver in the room; this is informational only (spec §4.4).
func (s *dispatchService) RejectRide(ctx context.Context, in ports.RejectRideInput) error {
	rej := ride.Rejection{DriverID: in.DriverID, Reason: in.Reason}

	var r *ride.Ride
	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		if err := s.rideRepo.AddRejection(txCtx, in.RideID, rej); err != nil {
			return apperr.New(apperr.StoreUnavailable, "failed to record rejection", err)
		}
		fetched, err := s.rideRepo.GetByID(txCtx, in.RideID)
		if err != nil {
			return apperr.New(apperr.NotFound, "ride not found", err)
		}
		r = fetched
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.SendToPassenger(r.PassengerID, contracts.EventDriverRejectedRide, map[string]any{
		"rideId": r.ID, "raidId": r.RaidID, "driverId": in.DriverID, "reason": in.Reason,
	})
	return nil
}
