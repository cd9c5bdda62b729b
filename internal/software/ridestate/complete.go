package ridestate

import (
	"context"
	"math"
	"time"

	"ride-hail/internal/domain/ride"
	"ride-hail/internal/domain/wallet"
	"ride-hail/internal/general/apperr"
	"ride-hail/internal/general/contracts"
	"ride-hail/internal/ports"
)

// CompleteRide records trip settlement and transitions started -> completed
// (spec §4.3). When paymentMethod is `wallet`, the passenger's wallet is
// debited and the driver's wallet credited in the same transaction (spec §9
// Open Question, decided: passenger wallet debit on paymentMethod=wallet is
// mandated).
func (s *rideStateService) CompleteRide(ctx context.Context, in ports.CompleteRideInput) (ports.CompleteRideResult, error) {
	if !in.PaymentMethod.Valid() {
		return ports.CompleteRideResult{}, apperr.New(apperr.InvalidInput, "invalid payment method", nil)
	}
	if in.ActualDistanceKM < 0 {
		return ports.CompleteRideResult{}, apperr.New(apperr.InvalidInput, "distance_km cannot be negative", nil)
	}

	var result ports.CompleteRideResult

	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		current, err := s.rideRepo.GetByID(txCtx, in.RideID)
		if err != nil {
			return apperr.New(apperr.NotFound, "ride not found", err)
		}
		if current.DriverRef == nil || *current.DriverRef != in.DriverID {
			return apperr.New(apperr.Unauthorized, "ride not assigned to this driver", nil)
		}
		if !current.Status.CanTransitionTo(ride.StatusCompleted) {
			return apperr.New(apperr.DomainRule, "ride cannot transition to completed", nil)
		}

		actualFare := s.actualFare(txCtx, current.VehicleType, in.ActualDistanceKM, current)

		now := time.Now().UTC()
		if err := s.rideRepo.Complete(txCtx, current.ID, in.ActualDistanceKM, actualFare, in.PaymentMethod, now); err != nil {
			return apperr.New(apperr.StoreUnavailable, "failed to complete ride", err)
		}

		// the driver is credited the fare on every completion, regardless of
		// payment method; the passenger-side wallet debit is the
		// wallet-only extra (spec §4.3).
		if err := s.creditDriverFare(txCtx, current, actualFare); err != nil {
			return err
		}
		if in.PaymentMethod == ride.PaymentWallet {
			if err := s.debitPassengerFare(txCtx, current, actualFare); err != nil {
				return err
			}
		}

		if err := s.driverRepo.IncrementCountersOnComplete(txCtx, in.DriverID, actualFare); err != nil {
			return apperr.New(apperr.StoreUnavailable, "failed to update driver counters", err)
		}

		result = ports.CompleteRideResult{RideID: current.ID, ActualFare: actualFare, CompletedAt: now}

		// spec §4.3 step 4-6: billAlert, then rideCompleted, then the
		// trailing rideStatusUpdate{completed}, strictly in that order.
		s.notifier.SendToPassenger(current.PassengerID, contracts.EventBillAlert, contracts.BillAlertEvent{
			Type: "billAlert", RideID: current.ID, RaidID: current.RaidID, Fare: actualFare,
		})
		s.notifier.SendToPassenger(current.PassengerID, contracts.EventRideCompleted, contracts.RideCompletedEvent{
			Type: "completed", RideID: current.ID, RaidID: current.RaidID,
			ActualDistanceKM: in.ActualDistanceKM, ActualFare: actualFare, PaymentMethod: string(in.PaymentMethod),
		})
		s.notifier.SendToPassenger(current.PassengerID, contracts.EventRideStatusUpdate, contracts.RideStatusUpdateEvent{
			Type: "status", RideID: current.ID, RaidID: current.RaidID, Status: string(ride.StatusCompleted), Timestamp: now,
		})
		return nil
	})
	if err != nil {
		return ports.CompleteRideResult{}, err
	}
	return result, nil
}

// actualFare recomputes the authoritative fare against the trip's actual
// distance, falling back to the fare struck at booking if the Pricing
// Cache's durable store cannot be reached.
func (s *rideStateService) actualFare(ctx context.Context, vt ride.VehicleType, distanceKM float64, r *ride.Ride) float64 {
	prices, err := s.pricingRepo.LoadAll(ctx)
	if err != nil {
		s.logger.Error(ctx, "ridestate_price_lookup_failed", "Falling back to booking-time fare", err, map[string]any{"ride_id": r.ID})
		return r.Fare
	}
	return math.Round(float64(prices[vt]) * distanceKM)
}

// creditDriverFare credits the driver's wallet with the trip's actual fare
// and appends a `ride_fare` ledger entry. Runs on every completion
// regardless of payment method (spec §4.3): the passenger-side debit is the
// wallet-only extra, handled separately by debitPassengerFare.
func (s *rideStateService) creditDriverFare(ctx context.Context, r *ride.Ride, fare float64) error {
	amount := int(math.Round(fare))
	if amount <= 0 {
		return nil
	}

	driverID := *r.DriverRef
	d, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return apperr.New(apperr.NotFound, "driver not found", err)
	}
	if err := d.Credit(amount); err != nil {
		return apperr.New(apperr.Internal, "failed to credit driver wallet", err)
	}
	if err := s.driverRepo.UpdateWallet(ctx, d.ID, d.Wallet); err != nil {
		return apperr.New(apperr.StoreUnavailable, "failed to credit driver wallet", err)
	}
	driverTx, err := wallet.NewTransaction(d.ID, wallet.TypeCredit, wallet.MethodRideFareFull, amount, d.Wallet, "ride fare", &r.ID, "")
	if err != nil {
		return apperr.New(apperr.Internal, "failed to build driver ledger entry", err)
	}
	if _, err := s.txRepo.Create(ctx, driverTx); err != nil {
		return apperr.New(apperr.StoreUnavailable, "failed to record driver ledger entry", err)
	}
	return nil
}

// debitPassengerFare debits the passenger's wallet for paymentMethod=wallet
// rides, appending a paired ledger entry (spec §4.2). fare is in minor
// currency units already (the same unit Driver.Wallet and User.Wallet hold).
func (s *rideStateService) debitPassengerFare(ctx context.Context, r *ride.Ride, fare float64) error {
	amount := int(math.Round(fare))
	if amount <= 0 {
		return nil
	}

	passenger, err := s.userRepo.GetByID(ctx, r.PassengerID)
	if err != nil {
		return apperr.New(apperr.NotFound, "passenger not found", err)
	}
	if err := passenger.DebitWallet(amount); err != nil {
		return apperr.New(apperr.DomainRule, "insufficient passenger wallet balance", err)
	}
	if err := s.userRepo.UpdateWallet(ctx, passenger.ID, passenger.Wallet); err != nil {
		return apperr.New(apperr.StoreUnavailable, "failed to debit passenger wallet", err)
	}
	passengerTx, err := wallet.NewTransaction(passenger.ID, wallet.TypeDebit, wallet.MethodPassengerWallet, amount, passenger.Wallet, "ride fare", &r.ID, "")
	if err != nil {
		return apperr.New(apperr.Internal, "failed to build passenger ledger entry", err)
	}
	if _, err := s.txRepo.Create(ctx, passengerTx); err != nil {
		return apperr.New(apperr.StoreUnavailable, "failed to record passenger ledger entry", err)
	}
	return nil
}
