package ridestate

import (
	"context"
	"time"

	"ride-hail/internal/domain/ride"
	"ride-hail/internal/general/apperr"
	"ride-hail/internal/general/contracts"
	"ride-hail/internal/ports"
)

// CancelRide ends a trip before it reaches `started`. Per spec §4.3, a
// cancellation requested once the ride is already `started` has no distinct
// terminal state of its own: it is routed through the same settlement path
// as CompleteRide, using the booking-time distance estimate since no actual
// trip distance has been reported yet.
func (s *rideStateService) CancelRide(ctx context.Context, in ports.CancelRideInput) (ports.CancelRideResult, error) {
	current, err := s.rideRepo.GetByID(ctx, in.RideID)
	if err != nil {
		return ports.CancelRideResult{}, apperr.New(apperr.NotFound, "ride not found", err)
	}

	if current.PassengerID != in.RequestedBy && (current.DriverRef == nil || *current.DriverRef != in.RequestedBy) {
		return ports.CancelRideResult{}, apperr.New(apperr.Unauthorized, "not a party to this ride", nil)
	}

	if current.Status == ride.StatusStarted {
		paymentMethod := in.PaymentMethod
		if paymentMethod == "" {
			// a ride's PaymentMethod field isn't populated until settlement,
			// so current.PaymentMethod is still the zero value here; cash
			// is the safe default since it requires no wallet balance.
			paymentMethod = ride.PaymentCash
		}
		completed, err := s.CompleteRide(ctx, ports.CompleteRideInput{
			DriverID:         *current.DriverRef,
			RideID:           current.ID,
			ActualDistanceKM: current.DistanceKM,
			PaymentMethod:    paymentMethod,
		})
		if err != nil {
			return ports.CancelRideResult{}, err
		}
		return ports.CancelRideResult{
			RideID:      completed.RideID,
			Status:      string(ride.StatusCompleted),
			CancelledAt: completed.CompletedAt.Format(time.RFC3339),
		}, nil
	}

	var result ports.CancelRideResult

	err = s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		current, err := s.rideRepo.GetByID(txCtx, in.RideID)
		if err != nil {
			return apperr.New(apperr.NotFound, "ride not found", err)
		}
		if !current.Status.CanTransitionTo(ride.StatusCancelled) {
			return apperr.New(apperr.DomainRule, "ride cannot transition to cancelled", nil)
		}

		now := time.Now().UTC()
		if err := s.rideRepo.Cancel(txCtx, current.ID, in.Reason, now); err != nil {
			return apperr.New(apperr.StoreUnavailable, "failed to cancel ride", err)
		}

		result = ports.CancelRideResult{RideID: current.ID, Status: string(ride.StatusCancelled), CancelledAt: now.Format(time.RFC3339)}

		event := contracts.RideStatusUpdateEvent{
			Type: "status", RideID: current.ID, RaidID: current.RaidID, Status: string(ride.StatusCancelled), Timestamp: now,
		}
		s.notifier.SendToPassenger(current.PassengerID, contracts.EventRideStatusUpdate, event)
		if current.DriverRef != nil {
			s.notifier.SendToDriver(*current.DriverRef, contracts.EventRideStatusUpdate, event)
		}
		return nil
	})
	if err != nil {
		return ports.CancelRideResult{}, err
	}
	return result, nil
}
