package ride

import (
	"errors"
	"strings"
)

// VehicleType is the ride/driver vehicle class. Always lowercase, immutable
// once a ride or driver is provisioned.
type VehicleType string

const (
	VehicleBike VehicleType = "bike"
	VehicleTaxi VehicleType = "taxi"
	VehiclePort VehicleType = "port"
)

var ErrInvalidVehicleType = errors.New("invalid vehicle type")

// ParseVehicleType normalizes (lowercases+trims) and validates a vehicle type string.
func ParseVehicleType(in string) (VehicleType, error) {
	vt := VehicleType(strings.ToLower(strings.TrimSpace(in)))
	if vt.Valid() {
		return vt, nil
	}
	return "", ErrInvalidVehicleType
}

// Valid reports whether vehicleType is one of the allowed vehicle type constants.
func (vehicleType VehicleType) Valid() bool {
	switch vehicleType {
	case VehicleBike, VehicleTaxi, VehiclePort:
		return true
	default:
		return false
	}
}

// String returns the string representation of the VehicleType.
func (vehicleType VehicleType) String() string {
	return string(vehicleType)
}

// Room returns the dispatch fan-out room name for this vehicle type.
func (vehicleType VehicleType) Room() string {
	return "drivers_" + string(vehicleType)
}
