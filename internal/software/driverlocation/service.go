// Package driverlocation is the stateless REST ingest side of a driver's
// position: it records a fix to the durable coordinate/history tables and
// relays it onto the location fanout exchange, but holds no in-memory state
// itself (spec §2 reserves the authoritative soft-state copy for the
// realtime gateway process, adapted from the teacher's `dandl` service's
// `UpdateLocation` which additionally mutated online/offline/ride state
// now owned by `presence`/`ridestate`/`dispatch`).
package driverlocation

import (
	"context"
	"encoding/json"
	"time"

	"ride-hail/internal/domain/geo"
	"ride-hail/internal/general/contracts"
	"ride-hail/internal/general/logger"
	"ride-hail/internal/general/rabbitmq"
	"ride-hail/internal/ports"
)

// UpdateLocationInput is the REST ingest DTO for a driver position fix.
type UpdateLocationInput struct {
	DriverID       string
	Latitude       float64
	Longitude      float64
	AccuracyMeters *float64
	SpeedKmh       *float64
	HeadingDegrees *float64
}

// UpdateLocationResult echoes the persisted coordinate back to the caller.
type UpdateLocationResult struct {
	CoordinateID string    `json:"coordinate_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Service struct {
	logger     *logger.Logger
	uow        ports.UnitOfWork
	drivers    ports.DriverRepository
	coords     ports.CoordinatesRepository
	locHistory ports.LocationHistoryRepository
	rides      ports.RideRepository
	pub        *rabbitmq.MQPublisher
}

// NewService wires the driver-location ingest surface.
func NewService(
	log *logger.Logger,
	uow ports.UnitOfWork,
	drivers ports.DriverRepository,
	coords ports.CoordinatesRepository,
	locHistory ports.LocationHistoryRepository,
	rides ports.RideRepository,
	pub *rabbitmq.MQPublisher,
) *Service {
	return &Service{logger: log, uow: uow, drivers: drivers, coords: coords, locHistory: locHistory, rides: rides, pub: pub}
}

// UpdateLocation upserts the driver's current coordinate, archives a
// LocationHistory row and broadcasts the fix to ExchangeLocationFanout so
// the ride service process can relay it to a passenger over the realtime
// gateway. A fix arriving within 3s of the stored coordinate skips the
// upsert and the archive but is still broadcast.
func (s *Service) UpdateLocation(ctx context.Context, in UpdateLocationInput) (UpdateLocationResult, error) {
	var out UpdateLocationResult
	var rideIDPtr *string

	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.drivers.GetByID(ctx, in.DriverID); err != nil {
			return err
		}

		if r, err := s.rides.GetActiveForDriver(ctx, in.DriverID); err == nil && r != nil {
			rid := r.ID
			rideIDPtr = &rid
		}

		if cur, err := s.coords.GetCurrentForDriver(ctx, in.DriverID); err == nil && cur != nil {
			if time.Since(cur.UpdatedAt) < 3*time.Second {
				out.CoordinateID = cur.ID
				out.UpdatedAt = cur.UpdatedAt
				return nil
			}
		}

		coord := geo.Coordinate{
			EntityID:   in.DriverID,
			EntityType: geo.EntityTypeDriver,
			Address:    "N/A",
			Latitude:   in.Latitude,
			Longitude:  in.Longitude,
			IsCurrent:  true,
		}
		coordID, updatedAt, err := s.coords.UpsertForDriver(ctx, in.DriverID, coord, true)
		if err != nil {
			return err
		}
		out.CoordinateID = coordID
		out.UpdatedAt = updatedAt

		lh, err := geo.NewLocationHistory(
			coordID, in.DriverID, rideIDPtr, in.Latitude, in.Longitude,
			in.AccuracyMeters, in.SpeedKmh, in.HeadingDegrees, time.Now().UTC(),
		)
		if err != nil {
			return err
		}
		return s.locHistory.Archive(ctx, lh)
	})
	if err != nil {
		s.logger.Error(ctx, "driver_location_update_failed", "Failed to update driver location", err, map[string]any{
			"driver_id": in.DriverID,
		})
		return UpdateLocationResult{}, err
	}

	var speed, heading float64
	if in.SpeedKmh != nil {
		speed = *in.SpeedKmh
	}
	if in.HeadingDegrees != nil {
		heading = *in.HeadingDegrees
	}

	msg := contracts.LocationUpdateMessage{
		DriverID:       in.DriverID,
		Location:       contracts.GeoPoint{Lat: in.Latitude, Lng: in.Longitude},
		SpeedKMH:       speed,
		HeadingDegrees: heading,
		Timestamp:      time.Now().UTC(),
		Envelope:       contracts.Envelope{Producer: "driver-location-service"},
	}
	if rideIDPtr != nil {
		msg.RideID = *rideIDPtr
	}

	if s.pub != nil {
		if body, mErr := json.Marshal(msg); mErr == nil {
			if err := s.pub.Publish(contracts.ExchangeLocationFanout, "", body); err != nil {
				s.logger.Error(ctx, "location_update_publish_failed", "Failed to broadcast location update", err, map[string]any{
					"driver_id": in.DriverID,
				})
			}
		}
	}

	s.logger.Info(ctx, "driver_location_updated", "Driver location updated and broadcast", map[string]any{
		"driver_id":     in.DriverID,
		"coordinate_id": out.CoordinateID,
		"lat":           in.Latitude,
		"lng":           in.Longitude,
	})

	return out, nil
}
