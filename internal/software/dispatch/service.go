// Package dispatch implements the Dispatch Engine (spec §4.4): booking a
// ride, fanning the offer out to a vehicle type's realtime room exactly
// once, and arbitrating which driver wins the compare-and-set acceptance.
package dispatch

import (
	"context"

	"ride-hail/internal/general/logger"
	"ride-hail/internal/ports"
)

// Notifier is the realtime gateway surface the Dispatch Engine pushes
// through. The websocket.Hub satisfies it without dispatch importing it
// directly, keeping the dependency pointed at the software layer only.
type Notifier interface {
	BroadcastToRoom(room, event string, data any, excludeID string)
	SendToDriver(driverID, event string, data any) bool
	SendToPassenger(passengerID, event string, data any) bool
	IsDriverConnected(driverID string) bool
}

// PushSender delivers a push notification to a driver's device (spec §4.4
// step 8's "push-notify drivers with a non-empty push token").
type PushSender interface {
	Send(token, title, body string, data map[string]string) error
}

type dispatchService struct {
	logger *logger.Logger
	uow    ports.UnitOfWork

	rideRepo     ports.RideRepository
	driverRepo   ports.DriverRepository
	sequenceRepo ports.SequenceRepository

	notifier Notifier
	push     PushSender

	pricing *pricingCache
	dedup   *dedupRegistry
}

// NewDispatchService wires the Dispatch Engine. prices seeds the Pricing
// Cache (loaded once at process start from PricingRepository, spec §4.1).
func NewDispatchService(
	log *logger.Logger,
	uow ports.UnitOfWork,
	rideRepo ports.RideRepository,
	driverRepo ports.DriverRepository,
	sequenceRepo ports.SequenceRepository,
	pricingRepo ports.PricingRepository,
	notifier Notifier,
	push PushSender,
) *dispatchService {
	return &dispatchService{
		logger:       log,
		uow:          uow,
		rideRepo:     rideRepo,
		driverRepo:   driverRepo,
		sequenceRepo: sequenceRepo,
		notifier:     notifier,
		push:         push,
		pricing:      newPricingCache(pricingRepo),
		dedup:        newDedupRegistry(),
	}
}

// LoadPricing hydrates the Pricing Cache from its durable store. Call once
// at process start before serving any booking traffic (spec §6).
func (s *dispatchService) LoadPricing(ctx context.Context) error {
	return s.pricing.Load(ctx)
}

var _ ports.DispatchService = (*dispatchService)(nil)
