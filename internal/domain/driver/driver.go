package driver

import (
	"errors"
	"maps"
	"ride-hail/internal/domain/ride"
	"strings"
	"time"
)

// Attrs is a JSON-friendly bag for vehicle attributes (plate, make, model, color, year, etc.).
type Attrs map[string]any

// WorkingHoursLimit is the plan a driver purchased for the current shift.
type WorkingHoursLimit int

const (
	WorkingHoursHalf WorkingHoursLimit = 12 * 3600
	WorkingHoursFull WorkingHoursLimit = 24 * 3600
)

// Driver is the domain entity corresponding to the `drivers` table.
type Driver struct {
	// Identity & audit
	ID         string // external driver id
	InternalID string // opaque internal id (uuid)
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Profile
	DisplayName   string
	Phone         string
	LicenseNumber string
	VehicleType   ride.VehicleType // immutable once provisioned
	VehicleNumber string
	VehicleAttrs  Attrs

	// KPIs
	Rating        float64
	TotalRides    int
	TotalEarnings float64

	// Operational state
	Status     Status
	IsVerified bool

	// Wallet & working hours (spec §3/§4.6)
	Wallet                   int // balance in minor currency units, >= 0
	WorkingHoursLimit        WorkingHoursLimit
	WorkingHoursDeduction    int // amount deducted per shift, default 100
	RemainingWorkingSeconds  int
	TimerActive              bool
	WarningsIssued           int // 0-3
	ExtendedHoursPurchased   int // cumulative seconds bought via add-half/add-full

	// Realtime presence
	LastKnownLocation *ride.Point
	PushToken         string
}

var (
	ErrUserIDRequired      = errors.New("user id is required")
	ErrLicenseRequired     = errors.New("license number is required")
	ErrInvalidStatusSwitch = errors.New("invalid driver status transition")
	ErrInvalidRating       = errors.New("rating must be between 1.0 and 5.0")
	ErrNegativeTotals      = errors.New("totals cannot be negative")
	ErrInsufficientWallet  = errors.New("insufficient wallet balance")
	ErrNegativeAmount      = errors.New("amount must be non-negative")
)

// NewDriver creates a new Driver entity with sane defaults.
func NewDriver(driverID, licenseNumber string, vehicleType ride.VehicleType, attrs Attrs) (*Driver, error) {
	if driverID = strings.TrimSpace(driverID); driverID == "" {
		return nil, ErrUserIDRequired
	}
	if licenseNumber = strings.TrimSpace(licenseNumber); licenseNumber == "" {
		return nil, ErrLicenseRequired
	}
	if !vehicleType.Valid() {
		return nil, ride.ErrInvalidVehicleType
	}

	now := time.Now().UTC()
	return &Driver{
		ID:                    driverID,
		CreatedAt:             now,
		UpdatedAt:             now,
		LicenseNumber:         licenseNumber,
		VehicleType:           vehicleType,
		VehicleAttrs:          cloneAttrs(attrs),
		Rating:                5.0,
		Status:                StatusOffline,
		IsVerified:            false,
		WorkingHoursDeduction: 100,
	}, nil
}

// ApplyEarnings increments counters after a ride settlement.
func (driver *Driver) ApplyEarnings(ridesDelta int, earningsDelta float64) error {
	if ridesDelta < 0 || earningsDelta < 0 {
		return ErrNegativeTotals
	}
	driver.TotalRides += ridesDelta
	driver.TotalEarnings += earningsDelta
	driver.touch()
	return nil
}

// ---- Wallet mutations (spec §4.2 — callers hold the per-driver serialization) ----

// Credit adds amount to the wallet. amount must be non-negative.
func (driver *Driver) Credit(amount int) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	driver.Wallet += amount
	driver.touch()
	return nil
}

// Debit subtracts amount from the wallet. Fails if it would go negative.
func (driver *Driver) Debit(amount int) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	if driver.Wallet-amount < 0 {
		return ErrInsufficientWallet
	}
	driver.Wallet -= amount
	driver.touch()
	return nil
}

// ---- State transitions ----

// GoLive transitions offline -> live.
func (driver *Driver) GoLive() error {
	if driver.Status != StatusOffline {
		return ErrInvalidStatusSwitch
	}
	driver.setStatus(StatusLive)
	return nil
}

// StartRide transitions live -> onRide (after accepting a ride).
func (driver *Driver) StartRide() error {
	if driver.Status != StatusLive {
		return ErrInvalidStatusSwitch
	}
	driver.setStatus(StatusOnRide)
	return nil
}

// FinishRide transitions onRide -> live.
func (driver *Driver) FinishRide() error {
	if driver.Status != StatusOnRide {
		return ErrInvalidStatusSwitch
	}
	driver.setStatus(StatusLive)
	return nil
}

// GoOffline transitions live -> offline. A driver onRide cannot go offline.
func (driver *Driver) GoOffline() error {
	if driver.Status != StatusLive {
		return ErrInvalidStatusSwitch
	}
	driver.setStatus(StatusOffline)
	driver.TimerActive = false
	return nil
}

// ---- internal helpers ----

func (driver *Driver) setStatus(status Status) {
	driver.Status = status
	driver.touch()
}

func (driver *Driver) touch() {
	driver.UpdatedAt = time.Now().UTC()
}

func cloneAttrs(in Attrs) Attrs {
	if in == nil {
		return nil
	}
	out := make(Attrs, len(in))
	maps.Copy(out, in)
	return out
}
