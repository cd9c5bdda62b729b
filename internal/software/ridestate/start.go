package ridestate

import (
	"context"
	"time"

	"ride-hail/internal/domain/ride"
	"ride-hail/internal/general/apperr"
	"ride-hail/internal/general/contracts"
	"ride-hail/internal/ports"
)

// StartRide validates the passenger's OTP and transitions arrived -> started
// (spec §4.3).
func (s *rideStateService) StartRide(ctx context.Context, in ports.StartRideInput) (ports.StartRideResult, error) {
	var result ports.StartRideResult

	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		current, err := s.rideRepo.GetByID(txCtx, in.RideID)
		if err != nil {
			return apperr.New(apperr.NotFound, "ride not found", err)
		}
		if current.DriverRef == nil || *current.DriverRef != in.DriverID {
			return apperr.New(apperr.Unauthorized, "ride not assigned to this driver", nil)
		}
		if !current.Status.CanTransitionTo(ride.StatusStarted) {
			return apperr.New(apperr.DomainRule, "ride cannot transition to started", nil)
		}
		if in.OTP != current.OTP {
			return apperr.New(apperr.DomainRule, "otp does not match", ride.ErrInvalidOTP)
		}

		now := time.Now().UTC()
		if err := s.rideRepo.Start(txCtx, current.ID, now); err != nil {
			return apperr.New(apperr.StoreUnavailable, "failed to start ride", err)
		}

		result = ports.StartRideResult{RideID: current.ID, Status: string(ride.StatusStarted), StartedAt: now}

		s.notifier.SendToPassenger(current.PassengerID, contracts.EventRideStatusUpdate, contracts.RideStatusUpdateEvent{
			Type: "status", RideID: current.ID, RaidID: current.RaidID, Status: string(ride.StatusStarted), Timestamp: now,
		})
		return nil
	})
	if err != nil {
		return ports.StartRideResult{}, err
	}
	return result, nil
}
