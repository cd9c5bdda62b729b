package geo

import (
	"errors"
	"math"
	"strings"
	"time"
)

// LocationSample is an append-only realtime position fix for a driver or a
// user, keyed by (SubjectID, Kind, RecordedAt). It is the in-flight shape the
// Presence Registry fans out over the realtime gateway; LocationHistory (location_history.go)
// remains the durable per-ride archive of a driver's route.
type LocationSample struct {
	SubjectID  string
	Kind       EntityType
	Latitude   float64
	Longitude  float64
	RecordedAt time.Time
}

var (
	ErrMissingSubjectID = errors.New("subject id is missing")
)

// NewLocationSample constructs a realtime location fix.
func NewLocationSample(subjectID string, kind EntityType, latitude, longitude float64, recordedAt time.Time) (*LocationSample, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, ErrMissingSubjectID
	}
	if !kind.Valid() {
		return nil, ErrInvalidEntityType
	}
	if latitude < -90 || latitude > 90 || math.IsNaN(latitude) {
		return nil, ErrInvalidLatitude
	}
	if longitude < -180 || longitude > 180 || math.IsNaN(longitude) {
		return nil, ErrInvalidLongitude
	}
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	return &LocationSample{
		SubjectID:  subjectID,
		Kind:       kind,
		Latitude:   latitude,
		Longitude:  longitude,
		RecordedAt: recordedAt,
	}, nil
}
