package ports

import (
	"context"
	"time"

	"ride-hail/internal/domain/driver"
	"ride-hail/internal/domain/geo"
	"ride-hail/internal/domain/ride"
	"ride-hail/internal/domain/user"
	"ride-hail/internal/domain/wallet"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository defines the methods for managing passenger/user data.
type UserRepository interface {
	CreateUser(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByInternalID(ctx context.Context, internalID string) (*user.User, error)
	UpdateWallet(ctx context.Context, userID string, newBalance int) error
}

// CoordinatesRepository defines methods for managing the "current location"
// pointer for drivers and users.
type CoordinatesRepository interface {
	UpsertForDriver(ctx context.Context, driverID string, coord geo.Coordinate, makeCurrent bool) (string, time.Time, error)
	UpsertForUser(ctx context.Context, userID string, coord geo.Coordinate, makeCurrent bool) (string, time.Time, error)
	GetCurrentForDriver(ctx context.Context, driverID string) (*geo.Coordinate, error)
	GetCurrentForUser(ctx context.Context, userID string) (*geo.Coordinate, error)
	SaveDriverLocation(ctx context.Context, driverID string, latitude, longitude, accuracyMeters, speedKmh, headingDegrees float64, address string) (*geo.Coordinate, error)
}

// RideRepository defines the methods for managing ride data.
type RideRepository interface {
	CreateRide(ctx context.Context, r *ride.Ride) error
	GetByID(ctx context.Context, id string) (*ride.Ride, error)
	GetByRaidID(ctx context.Context, raidID string) (*ride.Ride, error)
	GetActiveForDriver(ctx context.Context, driverID string) (*ride.Ride, error)
	GetRidesByDriver(ctx context.Context, driverID string, limit int) ([]*ride.Ride, error)

	// AssignDriverCAS atomically sets driver_ref only if it is still unset and
	// the ride is still pending (spec §4.4's compare-and-set acceptance).
	// ok=false and no error means another driver won the race.
	AssignDriverCAS(ctx context.Context, rideID, driverID string, acceptedAt time.Time) (ok bool, err error)
	MarkArrived(ctx context.Context, rideID string, arrivedAt time.Time) error
	Start(ctx context.Context, rideID string, startedAt time.Time) error
	Complete(ctx context.Context, rideID string, actualDistanceKM, actualFare float64, paymentMethod ride.PaymentMethod, completedAt time.Time) error
	Cancel(ctx context.Context, rideID, reason string, cancelledAt time.Time) error
	AddRejection(ctx context.Context, rideID string, rej ride.Rejection) error

	CountActive(ctx context.Context) (int, error)
	CountCreatedBetween(ctx context.Context, start, end time.Time) (int, error)
	CancellationRateBetween(ctx context.Context, start, end time.Time) (float64, error)
	SumFareCompletedBetween(ctx context.Context, start, end time.Time) (float64, error)
	AvgWaitMinutesBetween(ctx context.Context, start, end time.Time) (float64, error)
	AvgRideDurationMinutesBetween(ctx context.Context, start, end time.Time) (float64, error)
	HydrateActiveRows(ctx context.Context, offset, limit int) ([]ActiveRideRow, error)
}

// RideEventRepository defines the methods for managing the ride audit log.
type RideEventRepository interface {
	Append(ctx context.Context, e *ride.Event) error
}

// DriverRepository defines the methods for managing driver data.
type DriverRepository interface {
	CreateDriver(ctx context.Context, driverObj *driver.Driver) error
	GetByID(ctx context.Context, driverID string) (*driver.Driver, error)
	GetByPhone(ctx context.Context, phone string) (*driver.Driver, error)
	UpdateStatus(ctx context.Context, driverID string, status driver.Status) error
	FindNearbyAvailable(ctx context.Context, lat, lng float64, vehicle ride.VehicleType, radiusKm float64, limit int) ([]driver.Driver, error)
	IncrementCountersOnComplete(ctx context.Context, driverID string, earnings float64) error
	CountByStatus(ctx context.Context, status driver.Status) (int, error)
	CountByVehicleType(ctx context.Context, vehicle ride.VehicleType) (int, error)
	Hotspots(ctx context.Context, limit int) ([]Hotspot, error)

	UpdateWallet(ctx context.Context, driverID string, newBalance int) error
	UpdateWorkingHoursState(ctx context.Context, driverID string, state WorkingHoursState) error
	UpdateLastKnownLocation(ctx context.Context, driverID string, loc ride.Point) error
	UpdatePushToken(ctx context.Context, driverID, token string) error
	// RearmTimers returns every driver whose timer was active at shutdown,
	// so the Working-Hours Service can re-arm on process start (spec §6).
	RearmTimers(ctx context.Context) ([]driver.Driver, error)
}

// WorkingHoursState is the persisted slice of a driver's shift timer.
type WorkingHoursState struct {
	Limit                  driver.WorkingHoursLimit
	RemainingSeconds       int
	TimerActive            bool
	WarningsIssued         int
	ExtendedHoursPurchased int
}

// TransactionRepository defines the methods for the Wallet Ledger's append-only log.
type TransactionRepository interface {
	// Create inserts a transaction. A repeated IdempotencyKey is a no-op
	// success (spec §4.2), reported back via inserted=false.
	Create(ctx context.Context, tx *wallet.Transaction) (inserted bool, err error)
	ListForSubject(ctx context.Context, subjectID string, limit int) ([]*wallet.Transaction, error)
}

// SequenceRepository defines the Ride Identity Service's persistence boundary.
type SequenceRepository interface {
	NextRaidID(ctx context.Context) (string, error)
}

// DriverSessionRepository defines the methods for managing driver shift sessions.
type DriverSessionRepository interface {
	Start(ctx context.Context, driverID string) (sessionID string, err error)
	End(ctx context.Context, sessionID string, summary driver.DriverSession) error
	GetActiveForDriver(ctx context.Context, driverID string) (*driver.DriverSession, error)
	IncrementCounters(ctx context.Context, sessionID string, totalRides int, totalEarnings float64) error
}

// LocationHistoryRepository defines the methods for archiving a driver's route.
type LocationHistoryRepository interface {
	Archive(ctx context.Context, record *geo.LocationHistory) error
}

// PricingRepository backs the Pricing Cache's durable store (spec §4.1).
type PricingRepository interface {
	LoadAll(ctx context.Context) (map[ride.VehicleType]int, error)
	SetPrice(ctx context.Context, vt ride.VehicleType, pricePerKM int) error
}
