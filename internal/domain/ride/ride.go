package ride

import (
	"errors"
	"math"
	"strings"
	"time"
)

// PaymentMethod is how the passenger settles the fare.
type PaymentMethod string

const (
	PaymentCash           PaymentMethod = "cash"
	PaymentOnline         PaymentMethod = "online"
	PaymentWallet         PaymentMethod = "wallet"
	PaymentDriverTransfer PaymentMethod = "driver_transfer"
)

// ParsePaymentMethod normalizes (lowercases+trims) and validates a payment method string.
func ParsePaymentMethod(in string) (PaymentMethod, error) {
	method := PaymentMethod(strings.ToLower(strings.TrimSpace(in)))
	if method.Valid() {
		return method, nil
	}
	return "", ErrInvalidPaymentMethod
}

// Valid reports whether method is one of the allowed payment method constants.
func (method PaymentMethod) Valid() bool {
	switch method {
	case PaymentCash, PaymentOnline, PaymentWallet, PaymentDriverTransfer:
		return true
	default:
		return false
	}
}

// String returns the string representation of the PaymentMethod.
func (method PaymentMethod) String() string {
	return string(method)
}

// Point is a lat/lng pair with an optional address label.
type Point struct {
	Lat     float64
	Lng     float64
	Address string
}

// Rejection records a driver's decline for a ride, kept in RejectedBy.
type Rejection struct {
	DriverID string
	Reason   string
	At       time.Time
}

// Ride is the domain entity corresponding to the `rides` table.
type Ride struct {
	// Identity & audit
	ID        string // opaque internal id
	RaidID    string // human-readable RIDnnnnnn
	CreatedAt time.Time
	UpdatedAt time.Time

	// Actors
	PassengerID         string // external passenger/customer id
	PassengerInternalID string // opaque internal id, mirrors userInternalId
	PassengerName       string
	PassengerPhone      string
	DriverRef           *string // set once, on acceptance

	// Core state
	VehicleType VehicleType
	Status      Status

	// Trip
	Pickup     Point
	Drop       Point
	DistanceKM float64
	Fare       float64 // authoritative, server-computed at creation
	OTP        string  // 4-digit

	// Lifecycle timestamps
	AcceptedAt  *time.Time
	ArrivedAt   *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time

	// Completion
	ActualDistanceKM   *float64
	ActualFare         *float64
	ActualPickup       *Point
	ActualDrop         *Point
	PaymentMethod      PaymentMethod
	CancellationReason *string

	RejectedBy []Rejection
}

var (
	ErrPassengerRequired       = errors.New("passenger id is required")
	ErrRaidIDRequired          = errors.New("raid id is required")
	ErrInvalidStatusTransition = errors.New("invalid ride status transition")
	ErrAlreadyAssigned         = errors.New("driver already assigned")
	ErrDriverRequired          = errors.New("driver id is required")
	ErrInvalidOTP              = errors.New("otp does not match")
	ErrNegativeDistance        = errors.New("distance_km cannot be negative")
	ErrInvalidPaymentMethod    = errors.New("invalid payment method")
)

// NewRide creates a new ride in `pending` state. Fare and OTP must already
// be computed by the caller (Pricing Cache / OTP derivation, spec §4.1/§4.4)
// — this constructor never recomputes them itself.
func NewRide(raidID, passengerID string, vt VehicleType, pickup, drop Point, distanceKM, fare float64, otp string) (*Ride, error) {
	if raidID = strings.TrimSpace(raidID); raidID == "" {
		return nil, ErrRaidIDRequired
	}
	if passengerID = strings.TrimSpace(passengerID); passengerID == "" {
		return nil, ErrPassengerRequired
	}
	if !vt.Valid() {
		return nil, ErrInvalidVehicleType
	}
	if distanceKM < 0 {
		return nil, ErrNegativeDistance
	}

	now := time.Now().UTC()
	return &Ride{
		RaidID:      raidID,
		CreatedAt:   now,
		UpdatedAt:   now,
		PassengerID: passengerID,
		VehicleType: vt,
		Status:      StatusPending,
		Pickup:      pickup,
		Drop:        drop,
		DistanceKM:  distanceKM,
		Fare:        fare,
		OTP:         otp,
	}, nil
}

// AssignDriver sets DriverRef and moves pending -> accepted. The actual
// compare-and-set against the store happens at the repository layer
// (spec §4.4); this mutates the in-memory mirror once the CAS succeeds.
func (ride *Ride) AssignDriver(driverID string) error {
	if driverID == "" {
		return ErrDriverRequired
	}
	if ride.DriverRef != nil {
		return ErrAlreadyAssigned
	}
	if ride.Status != StatusPending {
		return ErrInvalidStatusTransition
	}

	ride.DriverRef = &driverID
	now := time.Now().UTC()
	ride.AcceptedAt = &now
	ride.setStatus(StatusAccepted)
	return nil
}

// MarkArrived transitions accepted -> arrived.
func (ride *Ride) MarkArrived() error {
	if ride.Status != StatusAccepted {
		return ErrInvalidStatusTransition
	}
	now := time.Now().UTC()
	ride.ArrivedAt = &now
	ride.setStatus(StatusArrived)
	return nil
}

// Start validates the submitted OTP and transitions arrived -> started.
func (ride *Ride) Start(otpSubmitted string) error {
	if ride.Status != StatusArrived {
		return ErrInvalidStatusTransition
	}
	if otpSubmitted != ride.OTP {
		return ErrInvalidOTP
	}
	now := time.Now().UTC()
	ride.StartedAt = &now
	ride.setStatus(StatusStarted)
	return nil
}

// Complete records the actual trip metrics and transitions started ->
// completed. The authoritative fare must already be computed by the caller
// (calculateFare, spec §4.1) — Complete does not recompute pricing.
func (ride *Ride) Complete(actualDistanceKM, actualFare float64, paymentMethod PaymentMethod) error {
	if ride.Status != StatusStarted {
		return ErrInvalidStatusTransition
	}
	if actualDistanceKM < 0 {
		return ErrNegativeDistance
	}
	now := time.Now().UTC()
	ride.CompletedAt = &now
	ride.ActualDistanceKM = &actualDistanceKM
	ride.ActualFare = &actualFare
	ride.PaymentMethod = paymentMethod
	ride.setStatus(StatusCompleted)
	return nil
}

// Cancel transitions to cancelled from pending/accepted/arrived. Cancellation
// from started has no core semantics (spec §4.3) and is not handled here —
// callers route a started-ride cancel through Complete instead.
func (ride *Ride) Cancel(reason string) error {
	if !ride.Status.CanTransitionTo(StatusCancelled) {
		return ErrInvalidStatusTransition
	}
	now := time.Now().UTC()
	ride.CancelledAt = &now
	if rs := strings.TrimSpace(reason); rs != "" {
		ride.CancellationReason = &rs
	}
	ride.setStatus(StatusCancelled)
	return nil
}

// AddRejection appends a driver's decline; the ride remains dispatchable.
func (ride *Ride) AddRejection(driverID, reason string) {
	ride.RejectedBy = append(ride.RejectedBy, Rejection{
		DriverID: driverID,
		Reason:   reason,
		At:       time.Now().UTC(),
	})
}

// Rejected reports whether driverID has already declined this ride.
func (ride *Ride) Rejected(driverID string) bool {
	for _, rej := range ride.RejectedBy {
		if rej.DriverID == driverID {
			return true
		}
	}
	return false
}

// HaversineKM returns the great-circle distance in kilometers.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0 // Earth radius in km
	a1 := lat1 * math.Pi / 180
	a2 := lat2 * math.Pi / 180
	da := (lat2 - lat1) * math.Pi / 180
	db := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(da/2)*math.Sin(da/2) +
		math.Cos(a1)*math.Cos(a2)*math.Sin(db/2)*math.Sin(db/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// ----- internal helpers -----

func (ride *Ride) setStatus(status Status) {
	ride.Status = status
	ride.touch()
}

func (ride *Ride) touch() {
	ride.UpdatedAt = time.Now().UTC()
}
