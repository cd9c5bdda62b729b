// Package ridestate implements the Ride State Machine (spec §4.3): the
// arrived/started/completed/cancelled transitions a driver drives a ride
// through once a passenger's booking has been accepted.
package ridestate

import (
	"ride-hail/internal/general/logger"
	"ride-hail/internal/ports"
)

// Notifier is the realtime gateway surface the Ride State Machine pushes
// transitions through.
type Notifier interface {
	SendToPassenger(passengerID, event string, data any) bool
	SendToDriver(driverID, event string, data any) bool
}

type rideStateService struct {
	logger *logger.Logger
	uow    ports.UnitOfWork

	rideRepo    ports.RideRepository
	driverRepo  ports.DriverRepository
	userRepo    ports.UserRepository
	txRepo      ports.TransactionRepository
	pricingRepo ports.PricingRepository

	notifier Notifier
}

// NewRideStateService wires the Ride State Machine.
func NewRideStateService(
	log *logger.Logger,
	uow ports.UnitOfWork,
	rideRepo ports.RideRepository,
	driverRepo ports.DriverRepository,
	userRepo ports.UserRepository,
	txRepo ports.TransactionRepository,
	pricingRepo ports.PricingRepository,
	notifier Notifier,
) ports.RideStateService {
	return &rideStateService{
		logger:      log,
		uow:         uow,
		rideRepo:    rideRepo,
		driverRepo:  driverRepo,
		userRepo:    userRepo,
		txRepo:      txRepo,
		pricingRepo: pricingRepo,
		notifier:    notifier,
	}
}

var _ ports.RideStateService = (*rideStateService)(nil)
