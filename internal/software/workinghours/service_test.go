package workinghours

import (
	"context"
	"errors"
	"testing"

	"ride-hail/internal/domain/driver"
	"ride-hail/internal/domain/ride"
	"ride-hail/internal/domain/wallet"
	"ride-hail/internal/general/logger"
	"ride-hail/internal/ports"
)

var errFakeNotFound = errors.New("not found")

// --- fakes ---

type fakeUOW struct{}

func (fakeUOW) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

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
	d, ok := r.drivers[driverID]
	if !ok {
		return errFakeNotFound
	}
	d.Wallet = newBalance
	return nil
}
func (r *fakeDriverRepo) UpdateWorkingHoursState(ctx context.Context, driverID string, state ports.WorkingHoursState) error {
	d, ok := r.drivers[driverID]
	if !ok {
		return errFakeNotFound
	}
	d.WorkingHoursLimit = state.Limit
	d.RemainingWorkingSeconds = state.RemainingSeconds
	d.TimerActive = state.TimerActive
	d.WarningsIssued = state.WarningsIssued
	d.ExtendedHoursPurchased = state.ExtendedHoursPurchased
	return nil
}
func (r *fakeDriverRepo) UpdateLastKnownLocation(ctx context.Context, driverID string, loc ride.Point) error {
	return nil
}
func (r *fakeDriverRepo) UpdatePushToken(ctx context.Context, driverID, token string) error {
	return nil
}
func (r *fakeDriverRepo) RearmTimers(ctx context.Context) ([]driver.Driver, error) {
	var out []driver.Driver
	for _, d := range r.drivers {
		if d.TimerActive {
			out = append(out, *d)
		}
	}
	return out, nil
}

type fakeTxRepo struct {
	entries []*wallet.Transaction
}

func (r *fakeTxRepo) Create(ctx context.Context, tx *wallet.Transaction) (bool, error) {
	r.entries = append(r.entries, tx)
	return true, nil
}
func (r *fakeTxRepo) ListForSubject(ctx context.Context, subjectID string, limit int) ([]*wallet.Transaction, error) {
	return nil, nil
}

type fakeNotifier struct {
	toDriver []string
}

func (n *fakeNotifier) SendToDriver(driverID, event string, data any) bool {
	n.toDriver = append(n.toDriver, driverID)
	return true
}

func newTestDriver(id string, balance int) *driver.Driver {
	return &driver.Driver{ID: id, Status: driver.StatusLive, Wallet: balance, WorkingHoursDeduction: 100}
}

// --- tests ---

func TestStart_NewShiftDebitsFee(t *testing.T) {
	d := newTestDriver("d1", 500)
	drivers := newFakeDriverRepo(d)
	txRepo := &fakeTxRepo{}
	svc := NewWorkingHoursService(logger.New("test"), fakeUOW{}, drivers, txRepo, &fakeNotifier{})

	result, err := svc.Start(context.Background(), ports.StartShiftInput{DriverID: "d1", Limit: driver.WorkingHoursFull})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.TimerActive || result.RemainingSeconds != int(driver.WorkingHoursFull) {
		t.Fatalf("unexpected result: %+v", result)
	}
	if d.Wallet != 400 {
		t.Fatalf("expected shift-start fee debited, got wallet %d", d.Wallet)
	}
	if len(txRepo.entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(txRepo.entries))
	}
}

func TestStart_NewShiftInsufficientBalanceFails(t *testing.T) {
	d := newTestDriver("d1", 50)
	drivers := newFakeDriverRepo(d)
	svc := NewWorkingHoursService(logger.New("test"), fakeUOW{}, drivers, &fakeTxRepo{}, &fakeNotifier{})

	if _, err := svc.Start(context.Background(), ports.StartShiftInput{DriverID: "d1", Limit: driver.WorkingHoursFull}); err == nil {
		t.Fatal("expected error for insufficient wallet balance")
	}
	if d.Wallet != 50 {
		t.Fatalf("wallet should be unchanged on failure, got %d", d.Wallet)
	}
}

func TestStart_DuplicateStartIsNoop(t *testing.T) {
	d := newTestDriver("d1", 500)
	d.TimerActive = true
	d.RemainingWorkingSeconds = 1000
	d.WarningsIssued = 1
	drivers := newFakeDriverRepo(d)
	txRepo := &fakeTxRepo{}
	svc := NewWorkingHoursService(logger.New("test"), fakeUOW{}, drivers, txRepo, &fakeNotifier{})

	result, err := svc.Start(context.Background(), ports.StartShiftInput{DriverID: "d1", Limit: driver.WorkingHoursFull})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RemainingSeconds != 1000 || !result.TimerActive {
		t.Fatalf("unexpected result for duplicate start: %+v", result)
	}
	if d.Wallet != 500 {
		t.Fatalf("duplicate start must not debit, got wallet %d", d.Wallet)
	}
	if len(txRepo.entries) != 0 {
		t.Fatalf("duplicate start must not create a ledger entry, got %d", len(txRepo.entries))
	}
}

func TestStart_ResumeDoesNotDebit(t *testing.T) {
	d := newTestDriver("d1", 500)
	d.TimerActive = false
	d.RemainingWorkingSeconds = 1200
	drivers := newFakeDriverRepo(d)
	txRepo := &fakeTxRepo{}
	svc := NewWorkingHoursService(logger.New("test"), fakeUOW{}, drivers, txRepo, &fakeNotifier{})

	result, err := svc.Start(context.Background(), ports.StartShiftInput{DriverID: "d1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RemainingSeconds != 1200 || !result.TimerActive {
		t.Fatalf("unexpected result for resume: %+v", result)
	}
	if d.Wallet != 500 {
		t.Fatalf("resume must not debit, got wallet %d", d.Wallet)
	}
	if len(txRepo.entries) != 0 {
		t.Fatalf("resume must not create a ledger entry, got %d", len(txRepo.entries))
	}
}

func TestExtend_AddsSecondsAndDebitsFee(t *testing.T) {
	d := newTestDriver("d1", 500)
	drivers := newFakeDriverRepo(d)
	txRepo := &fakeTxRepo{}
	svc := NewWorkingHoursService(logger.New("test"), fakeUOW{}, drivers, txRepo, &fakeNotifier{})

	if _, err := svc.Start(context.Background(), ports.StartShiftInput{DriverID: "d1", Limit: driver.WorkingHoursFull}); err != nil {
		t.Fatalf("setup start failed: %v", err)
	}

	result, err := svc.Extend(context.Background(), ports.ExtendShiftInput{DriverID: "d1", Limit: driver.WorkingHoursHalf})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantRemaining := int(driver.WorkingHoursFull) + int(driver.WorkingHoursHalf)
	if result.RemainingSeconds != wantRemaining {
		t.Fatalf("got remaining %d, want %d", result.RemainingSeconds, wantRemaining)
	}
	if d.Wallet != 300 { // 500 - 100 (start) - 100 (extend)
		t.Fatalf("expected extend fee debited, got wallet %d", d.Wallet)
	}
	if len(txRepo.entries) != 2 {
		t.Fatalf("expected two ledger entries, got %d", len(txRepo.entries))
	}
}

func TestStatus_NoRunningShiftFails(t *testing.T) {
	svc := NewWorkingHoursService(logger.New("test"), fakeUOW{}, newFakeDriverRepo(), &fakeTxRepo{}, &fakeNotifier{})
	if _, err := svc.Status(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for a driver with no in-memory timer")
	}
}

func TestStop_ClearsTimerAndPersists(t *testing.T) {
	d := newTestDriver("d1", 500)
	drivers := newFakeDriverRepo(d)
	svc := NewWorkingHoursService(logger.New("test"), fakeUOW{}, drivers, &fakeTxRepo{}, &fakeNotifier{})

	if _, err := svc.Start(context.Background(), ports.StartShiftInput{DriverID: "d1", Limit: driver.WorkingHoursFull}); err != nil {
		t.Fatalf("setup start failed: %v", err)
	}
	if err := svc.Stop(context.Background(), "d1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.TimerActive {
		t.Fatal("expected timer to be marked inactive after stop")
	}
	if _, err := svc.Status(context.Background(), "d1"); err == nil {
		t.Fatal("expected no in-memory timer after stop")
	}
}

func TestRecover_RearmsActiveDrivers(t *testing.T) {
	d := newTestDriver("d1", 500)
	d.TimerActive = true
	d.RemainingWorkingSeconds = 2000
	drivers := newFakeDriverRepo(d)
	svc := NewWorkingHoursService(logger.New("test"), fakeUOW{}, drivers, &fakeTxRepo{}, &fakeNotifier{})

	if err := svc.Recover(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	status, err := svc.Status(context.Background(), "d1")
	if err != nil {
		t.Fatalf("expected timer to be recovered: %v", err)
	}
	if status.RemainingSeconds != 2000 || !status.TimerActive {
		t.Fatalf("unexpected recovered status: %+v", status)
	}
}
