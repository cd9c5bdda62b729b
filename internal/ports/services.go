package ports

import (
	"context"
	"time"

	"ride-hail/internal/domain/driver"
	"ride-hail/internal/domain/ride"
)

// GeoPoint represents a simple latitude/longitude pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ---------------------------------------------------------------------------
// Dispatch Engine (spec §4.4)
// ---------------------------------------------------------------------------

// BookRideInput is the validated input for POST /rides.
type BookRideInput struct {
	PassengerID    string
	PassengerName  string
	PassengerPhone string
	Pickup         ride.Point
	Drop           ride.Point
	VehicleType    ride.VehicleType
	DistanceKM     float64 // server-trusted distance, spec §4.4 step 4
	IdempotencyKey string  // dedup window key, spec §4.4
}

// BookRideResult is returned by DispatchService.BookRide.
type BookRideResult struct {
	RideID      string  `json:"ride_id"`
	RaidID      string  `json:"raid_id"`
	Status      string  `json:"status"`
	Fare        float64 `json:"fare"`
	DistanceKM  float64 `json:"distance_km"`
	OfferedTo   int     `json:"offered_to"`
}

// AcceptRideInput is the validated input for a driver's acceptance.
type AcceptRideInput struct {
	DriverID string
	RideID   string
}

// AcceptRideResult is returned on a successful CAS acceptance.
type AcceptRideResult struct {
	RideID string `json:"ride_id"`
	RaidID string `json:"raid_id"`
	OTP    string `json:"otp"`
}

// RejectRideInput is the validated input for a driver's decline.
type RejectRideInput struct {
	DriverID string
	RideID   string
	Reason   string
}

// DispatchService exposes the boundary for ride booking and offer resolution.
type DispatchService interface {
	BookRide(ctx context.Context, in BookRideInput) (BookRideResult, error)
	AcceptRide(ctx context.Context, in AcceptRideInput) (AcceptRideResult, error)
	RejectRide(ctx context.Context, in RejectRideInput) error
}

// ---------------------------------------------------------------------------
// Ride State Machine (spec §4.3)
// ---------------------------------------------------------------------------

// ArriveInput is the validated input for a driver's arrival notice.
type ArriveInput struct {
	DriverID string
	RideID   string
}

// StartRideInput is the validated input for starting a trip (OTP check).
type StartRideInput struct {
	DriverID string
	RideID   string
	OTP      string
}

// StartRideResult matches the state transition response for starting a ride.
type StartRideResult struct {
	RideID    string    `json:"ride_id"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// CompleteRideInput is the validated input for ending a trip.
type CompleteRideInput struct {
	DriverID         string
	RideID           string
	ActualDistanceKM float64
	ActualDrop       ride.Point
	PaymentMethod    ride.PaymentMethod
}

// CompleteRideResult matches the state transition response for completing a ride.
type CompleteRideResult struct {
	RideID      string    `json:"ride_id"`
	ActualFare  float64   `json:"actual_fare"`
	CompletedAt time.Time `json:"completed_at"`
}

// CancelRideInput is the validated input for a pre-trip cancellation.
type CancelRideInput struct {
	RequestedBy string // passenger or driver external id
	RideID      string
	Reason      string
	// PaymentMethod only matters when the ride being cancelled has already
	// reached `started` (spec §4.3: routed through the same settlement path
	// as CompleteRide). Ignored otherwise; defaults to cash if left empty,
	// since a ride's PaymentMethod isn't recorded until settlement.
	PaymentMethod ride.PaymentMethod
}

// CancelRideResult matches the state transition response for a cancellation.
type CancelRideResult struct {
	RideID      string `json:"ride_id"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at"`
}

// RideStateService exposes the ride lifecycle transitions.
type RideStateService interface {
	MarkArrived(ctx context.Context, in ArriveInput) error
	StartRide(ctx context.Context, in StartRideInput) (StartRideResult, error)
	CompleteRide(ctx context.Context, in CompleteRideInput) (CompleteRideResult, error)
	CancelRide(ctx context.Context, in CancelRideInput) (CancelRideResult, error)
	GetRide(ctx context.Context, rideID string) (*ride.Ride, error)
}

// ---------------------------------------------------------------------------
// Working-Hours Service (spec §4.6)
// ---------------------------------------------------------------------------

// StartShiftInput begins a driver's shift timer.
type StartShiftInput struct {
	DriverID string
	Limit    driver.WorkingHoursLimit
}

// ExtendShiftInput purchases additional seconds (add-half/add-full).
type ExtendShiftInput struct {
	DriverID string
	Limit    driver.WorkingHoursLimit
}

// ShiftStatus mirrors the current timer slice for a driver.
type ShiftStatus struct {
	RemainingSeconds int  `json:"remaining_seconds"`
	TimerActive      bool `json:"timer_active"`
	WarningsIssued   int  `json:"warnings_issued"`
}

// WorkingHoursService exposes the driver shift timer lifecycle.
type WorkingHoursService interface {
	Start(ctx context.Context, in StartShiftInput) (ShiftStatus, error)
	Pause(ctx context.Context, driverID string) error
	Resume(ctx context.Context, driverID string) error
	Extend(ctx context.Context, in ExtendShiftInput) (ShiftStatus, error)
	Stop(ctx context.Context, driverID string) error
	Status(ctx context.Context, driverID string) (ShiftStatus, error)
	// Recover re-arms every driver whose timer was active before restart.
	Recover(ctx context.Context) error
}

// ---------------------------------------------------------------------------
// Presence Registry (spec §4.7)
// ---------------------------------------------------------------------------

// GoLiveInput marks a driver available for dispatch.
type GoLiveInput struct {
	DriverID string
	Location ride.Point
}

// UpdateLocationInput carries a realtime position fix for a driver or user.
type UpdateLocationInput struct {
	SubjectID string
	IsDriver  bool
	Location  ride.Point
}

// PresenceService exposes driver online/offline state and location fan-out.
type PresenceService interface {
	GoLive(ctx context.Context, in GoLiveInput) error
	GoOffline(ctx context.Context, driverID string) error
	UpdateLocation(ctx context.Context, in UpdateLocationInput) error
}

// ---------------------------------------------------------------------------
// Wallet Ledger (spec §4.2)
// ---------------------------------------------------------------------------

// WalletService exposes atomic balance mutations and admin adjustments.
type WalletService interface {
	Balance(ctx context.Context, subjectID string, isDriver bool) (int, error)
	AdjustDriverWallet(ctx context.Context, driverID string, delta int, description string) (int, error)

	// AddMoney tops up a passenger's wallet (spec §4.9 `POST /wallet/add-money`).
	AddMoney(ctx context.Context, passengerID string, amount int) (int, error)
	// Pay debits a passenger's wallet for a generic payment (`POST /wallet/payment`).
	Pay(ctx context.Context, passengerID string, amount int, description string) (int, error)
	// Withdraw debits a passenger's wallet back out to an external payout (`POST /wallet/withdraw`).
	Withdraw(ctx context.Context, passengerID string, amount int) (int, error)
	// CreditRide credits a passenger's wallet against a specific ride, e.g. a refund (`POST /wallet/credit-ride`).
	CreditRide(ctx context.Context, passengerID string, amount int, rideID string) (int, error)
}

// ---------------------------------------------------------------------------
// Admin Dashboard
// ---------------------------------------------------------------------------

// OverviewMetrics groups all numeric KPIs for the overview.
type OverviewMetrics struct {
	ActiveRides                int     `json:"active_rides"`
	LiveDrivers                int     `json:"live_drivers"`
	OnRideDrivers              int     `json:"on_ride_drivers"`
	TotalRidesToday            int     `json:"total_rides_today"`
	TotalRevenueToday          float64 `json:"total_revenue_today"`
	AverageWaitTimeMinutes     float64 `json:"average_wait_time_minutes"`
	AverageRideDurationMinutes float64 `json:"average_ride_duration_minutes"`
	CancellationRate           float64 `json:"cancellation_rate"`
}

// DriverDistribution shows driver counts by vehicle type.
type DriverDistribution struct {
	Bike int `json:"bike"`
	Taxi int `json:"taxi"`
	Port int `json:"port"`
}

// Hotspot is a single hotspot entry for the admin overview.
type Hotspot struct {
	Location       string `json:"location"`
	ActiveRides    int    `json:"active_rides"`
	WaitingDrivers int    `json:"waiting_drivers"`
}

// SystemOverviewResult is the top-level response DTO for GET /admin/overview.
type SystemOverviewResult struct {
	Timestamp          time.Time          `json:"timestamp"`
	Metrics            OverviewMetrics    `json:"metrics"`
	DriverDistribution DriverDistribution `json:"driver_distribution"`
	Hotspots           []Hotspot          `json:"hotspots"`
}

// ActiveRideRow represents a single active ride row in the admin overview.
type ActiveRideRow struct {
	RideID                string    `json:"ride_id"`
	RaidID                string    `json:"raid_id"`
	Status                string    `json:"status"`
	PassengerID           string    `json:"passenger_id"`
	DriverID              string    `json:"driver_id"`
	PickupAddress         string    `json:"pickup_address"`
	DropAddress           string    `json:"drop_address"`
	StartedAt             time.Time `json:"started_at"`
	CurrentDriverLocation GeoPoint  `json:"current_driver_location"`
}

// ActiveRidesResult is the top-level response DTO for GET /admin/rides/active.
type ActiveRidesResult struct {
	Rides      []ActiveRideRow `json:"rides"`
	TotalCount int             `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
}

// RidePrice is a single vehicle type's per-km rate.
type RidePrice struct {
	VehicleType ride.VehicleType `json:"vehicle_type"`
	PricePerKM  int              `json:"price_per_km"`
}

// AdminService exposes monitoring, analytics and pricing operations.
type AdminService interface {
	GetSystemOverview(ctx context.Context) (SystemOverviewResult, error)
	GetActiveRides(ctx context.Context, page, pageSize string) (ActiveRidesResult, error)
	GetRidePrices(ctx context.Context) ([]RidePrice, error)
	SetRidePrice(ctx context.Context, vt ride.VehicleType, pricePerKM int) error
	AdjustDriverWallet(ctx context.Context, driverID string, delta int, description string) (int, error)
}
