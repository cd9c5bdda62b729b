package ridestate

import (
	"context"
	"time"

	"ride-hail/internal/domain/ride"
	"ride-hail/internal/general/apperr"
	"ride-hail/internal/general/contracts"
	"ride-hail/internal/ports"
)

// MarkArrived records a driver's arrival at the pickup point, transitioning
// accepted -> arrived (spec §4.3).
func (s *rideStateService) MarkArrived(ctx context.Context, in ports.ArriveInput) error {
	return s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		current, err := s.rideRepo.GetByID(txCtx, in.RideID)
		if err != nil {
			return apperr.New(apperr.NotFound, "ride not found", err)
		}
		if current.DriverRef == nil || *current.DriverRef != in.DriverID {
			return apperr.New(apperr.Unauthorized, "ride not assigned to this driver", nil)
		}
		if !current.Status.CanTransitionTo(ride.StatusArrived) {
			return apperr.New(apperr.DomainRule, "ride cannot transition to arrived", nil)
		}

		now := time.Now().UTC()
		if err := s.rideRepo.MarkArrived(txCtx, current.ID, now); err != nil {
			return apperr.New(apperr.StoreUnavailable, "failed to mark ride arrived", err)
		}

		s.notifier.SendToPassenger(current.PassengerID, contracts.EventRideStatusUpdate, contracts.RideStatusUpdateEvent{
			Type: "status", RideID: current.ID, RaidID: current.RaidID, Status: string(ride.StatusArrived), Timestamp: now,
		})
		return nil
	})
}
