package dispatch

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"ride-hail/internal/domain/driver"
	"ride-hail/internal/domain/ride"
	"ride-hail/internal/general/apperr"
	"ride-hail/internal/general/contracts"
	"ride-hail/internal/ports"
)

// BookRide runs the Dispatch Engine's booking pipeline end to end (spec
// §4.4): validate, allocate a raidId, price the trip, persist the ride,
// then fan the offer out to the vehicle type's room exactly once.
func (s *dispatchService) BookRide(ctx context.Context, in ports.BookRideInput) (ports.BookRideResult, error) {
	if strings.TrimSpace(in.PassengerID) == "" {
		return ports.BookRideResult{}, apperr.New(apperr.InvalidInput, "passenger id is required", nil)
	}
	if in.Pickup.Lat == 0 && in.Pickup.Lng == 0 {
		return ports.BookRideResult{}, apperr.New(apperr.InvalidInput, "pickup location is required", nil)
	}
	if in.Drop.Lat == 0 && in.Drop.Lng == 0 {
		return ports.BookRideResult{}, apperr.New(apperr.InvalidInput, "drop location is required", nil)
	}
	if in.DistanceKM < 0 {
		return ports.BookRideResult{}, apperr.New(apperr.InvalidInput, "distance_km cannot be negative", nil)
	}
	vt, err := ride.ParseVehicleType(string(in.VehicleType))
	if err != nil {
		return ports.BookRideResult{}, apperr.New(apperr.InvalidInput, "invalid vehicle type", err)
	}

	raidID := s.allocateRaidID(ctx)
	fare := s.pricing.Fare(vt, in.DistanceKM)
	otp := deriveOTP(in.IdempotencyKey)

	r, err := ride.NewRide(raidID, in.PassengerID, vt, in.Pickup, in.Drop, in.DistanceKM, fare, otp)
	if err != nil {
		return ports.BookRideResult{}, apperr.New(apperr.InvalidInput, "could not construct ride", err)
	}
	r.PassengerName = in.PassengerName
	r.PassengerPhone = in.PassengerPhone

	err = s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		return s.rideRepo.CreateRide(txCtx, r)
	})
	if err != nil {
		return ports.BookRideResult{}, apperr.New(apperr.StoreUnavailable, "failed to persist ride", err)
	}

	offeredTo := s.fanOutOffer(ctx, r)

	return ports.BookRideResult{
		RideID:     r.ID,
		RaidID:     r.RaidID,
		Status:     string(r.Status),
		Fare:       r.Fare,
		DistanceKM: r.DistanceKM,
		OfferedTo:  offeredTo,
	}, nil
}

// allocateRaidID tries the Ride Identity Service's durable sequence and
// falls back to a timestamp-seeded id on store error (spec §4.5): rare
// collisions are tolerated because the `raidId` uniqueness constraint
// surfaces as a duplicate-key error the caller can retry on.
func (s *dispatchService) allocateRaidID(ctx context.Context) string {
	var raidID string
	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var nerr error
		raidID, nerr = s.sequenceRepo.NextRaidID(txCtx)
		return nerr
	})
	if err == nil {
		return raidID
	}

	s.logger.Error(ctx, "raid_id_sequence_fallback", "Falling back to timestamp raidId after sequence store error", err, nil)

	millis := time.Now().UnixMilli()
	suffix := millis % 1_000_000
	n, _ := rand.Int(rand.Reader, big.NewInt(1000))
	return fmt.Sprintf("RID%06d%03d", suffix, n.Int64())
}

// deriveOTP takes the last 4 characters of customerID when long enough,
// otherwise falls back to a uniformly random 4-digit code (spec §4.4 step 5).
func deriveOTP(customerID string) string {
	customerID = strings.TrimSpace(customerID)
	if len(customerID) >= 4 {
		return customerID[len(customerID)-4:]
	}
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "0000"
	}
	return fmt.Sprintf("%04d", n.Int64())
}

// fanOutOffer broadcasts `newRideRequest` to the vehicle type's room exactly
// once within the dedup window, then push-notifies every live, matching
// driver with a registered push token who is not connected to the realtime
// gateway (spec §4.4 step 8). It returns the number of nearby drivers found,
// or 0 when the offer was already sent within the window.
func (s *dispatchService) fanOutOffer(ctx context.Context, r *ride.Ride) int {
	if !s.dedup.shouldFanOut(r.RaidID) {
		return 0
	}

	room := r.VehicleType.Room()
	event := contracts.NewRideRequestEvent{
		Type:          "newRideRequest",
		RideID:        r.ID,
		RaidID:        r.RaidID,
		Pickup:        contracts.GeoPoint{Lat: r.Pickup.Lat, Lng: r.Pickup.Lng, Address: r.Pickup.Address},
		Drop:          contracts.GeoPoint{Lat: r.Drop.Lat, Lng: r.Drop.Lng, Address: r.Drop.Address},
		VehicleType:   string(r.VehicleType),
		EstimatedFare: r.Fare,
		Envelope:      contracts.Envelope{Producer: "dispatch", SentAt: time.Now().UTC()},
	}
	s.notifier.BroadcastToRoom(room, contracts.EventNewRideRequest, event, "")

	var drivers []driver.Driver
	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var ferr error
		drivers, ferr = s.driverRepo.FindNearbyAvailable(txCtx, r.Pickup.Lat, r.Pickup.Lng, r.VehicleType, nearbyRadiusKM, nearbyLimit)
		return ferr
	})
	if err != nil {
		s.logger.Error(ctx, "dispatch_nearby_lookup_failed", "Failed to look up nearby drivers for push", err, map[string]any{"raid_id": r.RaidID})
		return 0
	}

	offered := 0
	for _, d := range drivers {
		offered++
		if d.PushToken == "" || s.push == nil || s.notifier.IsDriverConnected(d.ID) {
			continue // realtime room fan-out already reaches connected drivers
		}
		if err := s.push.Send(d.PushToken, "New ride request", "A nearby passenger needs a ride", map[string]string{
			"rideId": r.ID, "raidId": r.RaidID,
		}); err != nil {
			s.logger.Error(ctx, "dispatch_push_failed", "Failed to push-notify driver", err, map[string]any{"driver_id": d.ID})
		}
	}
	return offered
}

const (
	nearbyRadiusKM = 5.0
	nearbyLimit    = 50
)
