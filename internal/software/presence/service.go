// Package presence implements the Presence Registry (spec §4.7): driver
// online/offline state plus the realtime fan-out of live location fixes for
// both drivers and passengers.
package presence

import (
	"context"
	"sync"
	"time"

	"ride-hail/internal/domain/driver"
	"ride-hail/internal/domain/ride"
	"ride-hail/internal/general/apperr"
	"ride-hail/internal/general/contracts"
	"ride-hail/internal/general/logger"
	"ride-hail/internal/ports"
)

// Notifier is the realtime gateway surface location fixes are pushed
// through.
type Notifier interface {
	SendToDriver(driverID, event string, data any) bool
	SendToPassenger(passengerID, event string, data any) bool
}

// RideLocator resolves the active ride a driver is riding along, so a
// location fix can be mirrored to the other party on that trip.
type RideLocator interface {
	GetActiveForDriver(ctx context.Context, driverID string) (*ride.Ride, error)
}

type presenceService struct {
	logger     *logger.Logger
	driverRepo ports.DriverRepository
	rides      RideLocator
	notifier   Notifier

	mu           sync.Mutex
	passengerRef map[string]passengerLink // passengerID -> active driver/ride, learned from the driver's last fix
}

type passengerLink struct {
	driverID string
	rideID   string
}

// NewPresenceService wires the Presence Registry.
func NewPresenceService(log *logger.Logger, driverRepo ports.DriverRepository, rides RideLocator, notifier Notifier) ports.PresenceService {
	return &presenceService{
		logger:       log,
		driverRepo:   driverRepo,
		rides:        rides,
		notifier:     notifier,
		passengerRef: make(map[string]passengerLink),
	}
}

var _ ports.PresenceService = (*presenceService)(nil)

func (s *presenceService) GoLive(ctx context.Context, in ports.GoLiveInput) error {
	d, err := s.driverRepo.GetByID(ctx, in.DriverID)
	if err != nil {
		return apperr.New(apperr.NotFound, "driver not found", err)
	}
	if err := d.GoLive(); err != nil {
		return apperr.New(apperr.DomainRule, "driver cannot go live", err)
	}
	if err := s.driverRepo.UpdateStatus(ctx, in.DriverID, driver.StatusLive); err != nil {
		return apperr.New(apperr.StoreUnavailable, "failed to update driver status", err)
	}
	if err := s.driverRepo.UpdateLastKnownLocation(ctx, in.DriverID, in.Location); err != nil {
		return apperr.New(apperr.StoreUnavailable, "failed to record driver location", err)
	}
	return nil
}

func (s *presenceService) GoOffline(ctx context.Context, driverID string) error {
	d, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return apperr.New(apperr.NotFound, "driver not found", err)
	}
	if err := d.GoOffline(); err != nil {
		return apperr.New(apperr.DomainRule, "driver cannot go offline", err)
	}
	if err := s.driverRepo.UpdateStatus(ctx, driverID, driver.StatusOffline); err != nil {
		return apperr.New(apperr.StoreUnavailable, "failed to update driver status", err)
	}

	s.mu.Lock()
	for passengerID, link := range s.passengerRef {
		if link.driverID == driverID {
			delete(s.passengerRef, passengerID)
		}
	}
	s.mu.Unlock()
	return nil
}

// UpdateLocation records a fresh fix and mirrors it to the other party on
// the subject's active trip, if any (spec §4.7).
func (s *presenceService) UpdateLocation(ctx context.Context, in ports.UpdateLocationInput) error {
	now := time.Now().UTC()
	point := contracts.GeoPoint{Lat: in.Location.Lat, Lng: in.Location.Lng, Address: in.Location.Address}

	if in.IsDriver {
		if err := s.driverRepo.UpdateLastKnownLocation(ctx, in.SubjectID, in.Location); err != nil {
			return apperr.New(apperr.StoreUnavailable, "failed to record driver location", err)
		}

		r, err := s.rides.GetActiveForDriver(ctx, in.SubjectID)
		if err != nil || r == nil {
			return nil
		}

		s.mu.Lock()
		s.passengerRef[r.PassengerID] = passengerLink{driverID: in.SubjectID, rideID: r.ID}
		s.mu.Unlock()

		s.notifier.SendToPassenger(r.PassengerID, contracts.EventDriverLiveLocationUpdate, contracts.DriverLiveLocationUpdateEvent{
			Type: "location", DriverID: in.SubjectID, RideID: r.ID, Location: point, Timestamp: now,
		})
		return nil
	}

	s.mu.Lock()
	link, ok := s.passengerRef[in.SubjectID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	s.notifier.SendToDriver(link.driverID, contracts.EventUserLiveLocationUpdate, contracts.UserLiveLocationUpdateEvent{
		Type: "location", UserID: in.SubjectID, RideID: link.rideID, Location: point, Timestamp: now,
	})
	return nil
}
