package driverauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"ride-hail/internal/domain/driver"
	"ride-hail/internal/domain/ride"
	"ride-hail/internal/general/authsecret"
	"ride-hail/internal/general/jwt"
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
	return nil
}
func (r *fakeDriverRepo) UpdatePushToken(ctx context.Context, driverID, token string) error {
	return nil
}
func (r *fakeDriverRepo) RearmTimers(ctx context.Context) ([]driver.Driver, error) {
	return nil, nil
}

func newTestService(drivers ...*driver.Driver) *Service {
	repo := newFakeDriverRepo(drivers...)
	jwtManager := jwt.NewManager("test-secret", time.Hour)
	return NewService(repo, jwtManager, logger.New("test"))
}

func TestRequestOTP_UnknownPhoneFails(t *testing.T) {
	svc := newTestService()
	if _, err := svc.RequestOTP(context.Background(), "+15551234567"); err == nil {
		t.Fatal("expected error for unregistered phone number")
	}
}

func TestCompleteInfo_WithoutRequestFails(t *testing.T) {
	svc := newTestService(&driver.Driver{ID: "d1", Phone: "+15551234567"})
	if _, _, err := svc.CompleteInfo(context.Background(), "+15551234567", "000000"); err == nil {
		t.Fatal("expected error when no otp was ever requested")
	}
}

func TestCompleteInfo_WrongCodeFails(t *testing.T) {
	svc := newTestService(&driver.Driver{ID: "d1", Phone: "+15551234567"})
	if _, err := svc.RequestOTP(context.Background(), "+15551234567"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := svc.CompleteInfo(context.Background(), "+15551234567", "000000"); err == nil {
		t.Fatal("expected error for a code that does not match the issued one")
	}
}

func TestCompleteInfo_ConsumesOTPOnce(t *testing.T) {
	svc := newTestService(&driver.Driver{ID: "d1", Phone: "+15551234567"})

	// Bypass RequestOTP's randomly generated code so the test can redeem a
	// known value deterministically.
	code := "654321"
	hash, err := authsecret.Hash(code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.otps.put("+15551234567", hash)

	token, d, err := svc.CompleteInfo(context.Background(), "+15551234567", code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty access token")
	}
	if d.ID != "d1" {
		t.Fatalf("got driver %q, want d1", d.ID)
	}

	if _, _, err := svc.CompleteInfo(context.Background(), "+15551234567", code); err == nil {
		t.Fatal("expected the same code to be rejected on a second redemption")
	}
}
