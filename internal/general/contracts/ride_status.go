package contracts

import "time"

// RideStatusMessage is published by the Ride State Machine to show a status update.
// Routing key: "ride.status.{status}" on ExchangeRideTopic.
type RideStatusMessage struct {
	RideID     string    `json:"ride_id"`
	Status     string    `json:"status"` // pending|accepted|arrived|started|completed|cancelled
	Timestamp  time.Time `json:"timestamp"`
	DriverID   string    `json:"driver_id,omitempty"`
	ActualFare *float64  `json:"actual_fare,omitempty"`
	Envelope
}
