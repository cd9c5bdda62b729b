package presence

import (
	"context"
	"errors"
	"testing"

	"ride-hail/internal/domain/driver"
	"ride-hail/internal/domain/ride"
	"ride-hail/internal/general/logger"
	"ride-hail/internal/ports"
)

var errFakeNotFound = errors.New("not found")

type fakeDriverRepo struct {
	drivers map[string]*driver.Driver
}

func newFakeDriverRepo(drivers ...*driver.Driver) *fakeDriverRepo {
	m := make(map[string]*driver.Driver)
	for _, d := range drivers {
		m[d.ID] = d
	}
	return &fakeDriverRepo{drivers: m}
}

func (r *fakeDriverRepo) CreateDriver(ctx context.Context, d *driver.Driver) error { return nil }
func (r *fakeDriverRepo) GetByID(ctx context.Context, driverID string) (*driver.Driver, error) {
	d, ok := r.drivers[driverID]
	if !ok {
		return nil, errFakeNotFound
	}
	return d, nil
}
func (r *fakeDriverRepo) GetByPhone(ctx context.Context, phone string) (*driver.Driver, error) {
	for _, d := range r.drivers {
		if d.Phone == phone {
			return d, nil
		}
	}
	return nil, errFakeNotFound
}
func (r *fakeDriverRepo) UpdateStatus(ctx context.Context, driverID string, status driver.Status) error {
	d, ok := r.drivers[driverID]
	if !ok {
		return errFakeNotFound
	}
	d.Status = status
	return nil
}
func (r *fakeDriverRepo) FindNearbyAvailable(ctx context.Context, lat, lng float64, vehicle ride.VehicleType, radiusKm float64, limit int) ([]driver.Driver, error) {
	return nil, nil
}
func (r *fakeDriverRepo) IncrementCountersOnComplete(ctx context.Context, driverID string, earnings float64) error {
	return nil
}
func (r *fakeDriverRepo) CountByStatus(ctx context.Context, status driver.Status) (int, error) {
	return 0, nil
}
func (r *fakeDriverRepo) CountByVehicleType(ctx context.Context, vehicle ride.VehicleType) (int, error) {
	return 0, nil
}
func (r *fakeDriverRepo) Hotspots(ctx context.Context, limit int) ([]ports.Hotspot, error) {
	return nil, nil
}
func (r *fakeDriverRepo) UpdateWallet(ctx context.Context, driverID string, newBalance int) error {
	return nil
}
func (r *fakeDriverRepo) UpdateWorkingHoursState(ctx context.Context, driverID string, state ports.WorkingHoursState) error {
	return nil
}

func (r *fakeDriverRepo) UpdateLastKnownLocation(ctx context.Context, driverID string, loc ride.Point) error {
	d, ok := r.drivers[driverID]
	if !ok {
		return errFakeNotFound
	}
	l := loc
	d.LastKnownLocation = &l
	return nil
}
func (r *fakeDriverRepo) UpdatePushToken(ctx context.Context, driverID, token string) error {
	return nil
}
func (r *fakeDriverRepo) RearmTimers(ctx context.Context) ([]driver.Driver, error) {
	return nil, nil
}

type fakeRideLocator struct {
	active map[string]*ride.Ride
}

func (f *fakeRideLocator) GetActiveForDriver(ctx context.Context, driverID string) (*ride.Ride, error) {
	return f.active[driverID], nil
}

type fakeNotifier struct {
	toDriver    []string
	toPassenger []string
}

func (n *fakeNotifier) SendToDriver(driverID, event string, data any) bool {
	n.toDriver = append(n.toDriver, driverID)
	return true
}
func (n *fakeNotifier) SendToPassenger(passengerID, event string, data any) bool {
	n.toPassenger = append(n.toPassenger, passengerID)
	return true
}

func newTestDriver(id string, status driver.Status) *driver.Driver {
	return &driver.Driver{ID: id, Status: status}
}

func TestGoLive_FromOffline(t *testing.T) {
	d := newTestDriver("d1", driver.StatusOffline)
	repo := newFakeDriverRepo(d)
	svc := NewPresenceService(logger.New("test"), repo, &fakeRideLocator{}, &fakeNotifier{})

	err := svc.GoLive(context.Background(), ports.GoLiveInput{DriverID: "d1", Location: ride.Point{Lat: 1, Lng: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Status != driver.StatusLive {
		t.Fatalf("got status %q, want live", d.Status)
	}
}

func TestGoLive_AlreadyLiveFails(t *testing.T) {
	d := newTestDriver("d1", driver.StatusLive)
	repo := newFakeDriverRepo(d)
	svc := NewPresenceService(logger.New("test"), repo, &fakeRideLocator{}, &fakeNotifier{})

	if err := svc.GoLive(context.Background(), ports.GoLiveInput{DriverID: "d1"}); err == nil {
		t.Fatal("expected error transitioning live->live")
	}
}

func TestGoOffline_ClearsPassengerLinks(t *testing.T) {
	d := newTestDriver("d1", driver.StatusLive)
	repo := newFakeDriverRepo(d)
	rides := &fakeRideLocator{active: map[string]*ride.Ride{"d1": {ID: "r1", PassengerID: "p1"}}}
	notifier := &fakeNotifier{}
	svc := NewPresenceService(logger.New("test"), repo, rides, notifier)

	if err := svc.UpdateLocation(context.Background(), ports.UpdateLocationInput{SubjectID: "d1", IsDriver: true, Location: ride.Point{Lat: 1, Lng: 1}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.toPassenger) != 1 || notifier.toPassenger[0] != "p1" {
		t.Fatalf("expected passenger p1 to be notified, got %+v", notifier.toPassenger)
	}

	if err := svc.GoOffline(context.Background(), "d1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// a subsequent passenger-side fix should find no linked driver anymore
	if err := svc.UpdateLocation(context.Background(), ports.UpdateLocationInput{SubjectID: "p1", IsDriver: false, Location: ride.Point{Lat: 2, Lng: 2}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.toDriver) != 0 {
		t.Fatalf("expected no driver notification after go-offline cleared the link, got %+v", notifier.toDriver)
	}
}

func TestUpdateLocation_PassengerMirroredToDriver(t *testing.T) {
	d := newTestDriver("d1", driver.StatusOnRide)
	repo := newFakeDriverRepo(d)
	rides := &fakeRideLocator{active: map[string]*ride.Ride{"d1": {ID: "r1", PassengerID: "p1"}}}
	notifier := &fakeNotifier{}
	svc := NewPresenceService(logger.New("test"), repo, rides, notifier)

	if err := svc.UpdateLocation(context.Background(), ports.UpdateLocationInput{SubjectID: "d1", IsDriver: true, Location: ride.Point{Lat: 1, Lng: 1}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.UpdateLocation(context.Background(), ports.UpdateLocationInput{SubjectID: "p1", IsDriver: false, Location: ride.Point{Lat: 2, Lng: 2}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.toDriver) != 1 || notifier.toDriver[0] != "d1" {
		t.Fatalf("expected driver d1 to be notified of passenger fix, got %+v", notifier.toDriver)
	}
}

func TestUpdateLocation_PassengerWithNoActiveRideIsNoop(t *testing.T) {
	svc := NewPresenceService(logger.New("test"), newFakeDriverRepo(), &fakeRideLocator{}, &fakeNotifier{})
	if err := svc.UpdateLocation(context.Background(), ports.UpdateLocationInput{SubjectID: "p1", IsDriver: false, Location: ride.Point{Lat: 1, Lng: 1}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
