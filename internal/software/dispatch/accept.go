package dispatch

import (
	"context"
	"time"

	"ride-hail/internal/domain/ride"
	"ride-hail/internal/general/apperr"
	"ride-hail/internal/general/contracts"
	"ride-hail/internal/ports"
)

// AcceptRide serializes acceptance per rideID through the repository's
// compare-and-set update (spec §4.4): reads-before-write are not sufficient,
// so the single conditional UPDATE is the only arbiter of who wins.
func (s *dispatchService) AcceptRide(ctx context.Context, in ports.AcceptRideInput) (ports.AcceptRideResult, error) {
	var r *ride.Ride

	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		ok, err := s.rideRepo.AssignDriverCAS(txCtx, in.RideID, in.DriverID, time.Now().UTC())
		if err != nil {
			return apperr.New(apperr.StoreUnavailable, "failed to assign driver", err)
		}
		if !ok {
			return apperr.New(apperr.Conflict, "ride already taken", nil)
		}

		fetched, err := s.rideRepo.GetByID(txCtx, in.RideID)
		if err != nil {
			return apperr.New(apperr.Internal, "failed to reload ride after acceptance", err)
		}
		r = fetched
		return nil
	})
	if err != nil {
		return ports.AcceptRideResult{}, err
	}

	driverName := ""
	if d, derr := s.driverRepo.GetByID(ctx, in.DriverID); derr == nil {
		driverName = d.DisplayName
	}

	s.notifier.SendToPassenger(r.PassengerID, contracts.EventRideAccepted, contracts.RideAcceptedEvent{
		Type:   "accepted",
		RideID: r.ID,
		RaidID: r.RaidID,
		Driver: &contracts.DriverBrief{DriverID: in.DriverID, Name: driverName},
	})
	s.notifier.BroadcastToRoom(r.VehicleType.Room(), contracts.EventRideAlreadyAccepted, map[string]any{
		"rideId": r.ID, "raidId": r.RaidID,
	}, in.DriverID)

	return ports.AcceptRideResult{RideID: r.ID, RaidID: r.RaidID, OTP: r.OTP}, nil
}
