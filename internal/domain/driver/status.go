package driver

import (
	"errors"
	"strings"
)

// Status is a driver's availability state.
type Status string

const (
	StatusOffline Status = "offline"
	StatusLive    Status = "live"
	StatusOnRide  Status = "onRide"
)

var ErrInvalidDriverStatus = errors.New("invalid driver status")

// ParseStatus trims surrounding whitespace from and validates a driver status
// string; case is kept, since statuses are case-sensitive.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.TrimSpace(in))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidDriverStatus
}

// Valid reports whether the status is one of the allowed driver status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusOffline, StatusLive, StatusOnRide:
		return true
	default:
		return false
	}
}

// Terminal indicates if the driver is in a non-working state.
func (status Status) Terminal() bool {
	return status == StatusOffline
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}
