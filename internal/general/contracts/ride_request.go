package contracts

// RideMatchRequest is published by the Dispatch Engine to request matching.
// Routing key: "ride.request.{vehicle_type}" on ExchangeRideTopic.
type RideMatchRequest struct {
	RideID         string   `json:"ride_id"` // UUID
	RaidID         string   `json:"raid_id"` // e.g., RID100042
	PickupLocation GeoPoint `json:"pickup_location"`
	Destination    GeoPoint `json:"destination_location"`
	VehicleType    string   `json:"vehicle_type"` // bike|taxi|port
	EstimatedFare  float64  `json:"estimated_fare,omitempty"`
	MaxDistanceKM  float64  `json:"max_distance_km,omitempty"` // e.g., 5.0
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"` // e.g., 30
	Envelope
}
