package ridestate

import (
	"context"
	"errors"
	"testing"
	"time"

	"ride-hail/internal/domain/driver"
	"ride-hail/internal/domain/ride"
	"ride-hail/internal/domain/user"
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

type fakeRideRepo struct {
	rides map[string]*ride.Ride
}

func newFakeRideRepo(rides ...*ride.Ride) *fakeRideRepo {
	m := make(map[string]*ride.Ride)
	for _, r := range rides {
		m[r.ID] = r
	}
	return &fakeRideRepo{rides: m}
}

func (r *fakeRideRepo) CreateRide(ctx context.Context, rd *ride.Ride) error { return nil }
func (r *fakeRideRepo) GetByID(ctx context.Context, id string) (*ride.Ride, error) {
	rd, ok := r.rides[id]
	if !ok {
		return nil, errFakeNotFound
	}
	return rd, nil
}
func (r *fakeRideRepo) GetByRaidID(ctx context.Context, raidID string) (*ride.Ride, error) {
	return nil, errFakeNotFound
}
func (r *fakeRideRepo) GetActiveForDriver(ctx context.Context, driverID string) (*ride.Ride, error) {
	for _, rd := range r.rides {
		if rd.DriverRef != nil && *rd.DriverRef == driverID && !rd.Status.Terminal() {
			return rd, nil
		}
	}
	return nil, nil
}
func (r *fakeRideRepo) GetRidesByDriver(ctx context.Context, driverID string, limit int) ([]*ride.Ride, error) {
	return nil, nil
}
func (r *fakeRideRepo) AssignDriverCAS(ctx context.Context, rideID, driverID string, acceptedAt time.Time) (bool, error) {
	return false, nil
}
func (r *fakeRideRepo) MarkArrived(ctx context.Context, rideID string, arrivedAt time.Time) error {
	rd, ok := r.rides[rideID]
	if !ok {
		return errFakeNotFound
	}
	rd.Status = ride.StatusArrived
	rd.ArrivedAt = &arrivedAt
	return nil
}
func (r *fakeRideRepo) Start(ctx context.Context, rideID string, startedAt time.Time) error {
	rd, ok := r.rides[rideID]
	if !ok {
		return errFakeNotFound
	}
	rd.Status = ride.StatusStarted
	rd.StartedAt = &startedAt
	return nil
}
func (r *fakeRideRepo) Complete(ctx context.Context, rideID string, actualDistanceKM, actualFare float64, paymentMethod ride.PaymentMethod, completedAt time.Time) error {
	rd, ok := r.rides[rideID]
	if !ok {
		return errFakeNotFound
	}
	rd.Status = ride.StatusCompleted
	rd.ActualDistanceKM = &actualDistanceKM
	rd.ActualFare = &actualFare
	rd.PaymentMethod = paymentMethod
	rd.CompletedAt = &completedAt
	return nil
}
func (r *fakeRideRepo) Cancel(ctx context.Context, rideID, reason string, cancelledAt time.Time) error {
	rd, ok := r.rides[rideID]
	if !ok {
		return errFakeNotFound
	}
	rd.Status = ride.StatusCancelled
	rd.CancellationReason = &reason
	rd.CancelledAt = &cancelledAt
	return nil
}
func (r *fakeRideRepo) AddRejection(ctx context.Context, rideID string, rej ride.Rejection) error {
	return nil
}
func (r *fakeRideRepo) CountActive(ctx context.Context) (int, error) { return 0, nil }
func (r *fakeRideRepo) CountCreatedBetween(ctx context.Context, start, end time.Time) (int, error) {
	return 0, nil
}
func (r *fakeRideRepo) CancellationRateBetween(ctx context.Context, start, end time.Time) (float64, error) {
	return 0, nil
}
func (r *fakeRideRepo) SumFareCompletedBetween(ctx context.Context, start, end time.Time) (float64, error) {
	return 0, nil
}
func (r *fakeRideRepo) AvgWaitMinutesBetween(ctx context.Context, start, end time.Time) (float64, error) {
	return 0, nil
}
func (r *fakeRideRepo) AvgRideDurationMinutesBetween(ctx context.Context, start, end time.Time) (float64, error) {
	return 0, nil
}
func (r *fakeRideRepo) HydrateActiveRows(ctx context.Context, offset, limit int) ([]ports.ActiveRideRow, error) {
	return nil, nil
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

type fakeUserRepo struct {
	users map[string]*user.User
}

func newFakeUserRepo(users ...*user.User) *fakeUserRepo {
	m := make(map[string]*user.User)
	for _, u := range users {
		m[u.ID] = u
	}
	return &fakeUserRepo{users: m}
}

func (r *fakeUserRepo) CreateUser(ctx context.Context, u *user.User) error { return nil }
func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, errFakeNotFound
	}
	return u, nil
}
func (r *fakeUserRepo) GetByInternalID(ctx context.Context, internalID string) (*user.User, error) {
	return nil, errFakeNotFound
}
func (r *fakeUserRepo) UpdateWallet(ctx context.Context, userID string, newBalance int) error {
	u, ok := r.users[userID]
	if !ok {
		return errFakeNotFound
	}
	u.Wallet = newBalance
	return nil
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

type fakePricingRepo struct {
	prices map[ride.VehicleType]int
}

func (r *fakePricingRepo) LoadAll(ctx context.Context) (map[ride.VehicleType]int, error) {
	return r.prices, nil
}
func (r *fakePricingRepo) SetPrice(ctx context.Context, vt ride.VehicleType, pricePerKM int) error {
	return nil
}

type fakeNotifier struct {
	toPassenger []string
	toDriver    []string
}

func (n *fakeNotifier) SendToPassenger(passengerID, event string, data any) bool {
	n.toPassenger = append(n.toPassenger, passengerID)
	return true
}
func (n *fakeNotifier) SendToDriver(driverID, event string, data any) bool {
	n.toDriver = append(n.toDriver, driverID)
	return true
}

func newTestRide(id string, status ride.Status, driverID string) *ride.Ride {
	return &ride.Ride{
		ID:          id,
		RaidID:      "RID000001",
		PassengerID: "p1",
		DriverRef:   &driverID,
		VehicleType: ride.VehicleTaxi,
		Status:      status,
		Fare:        100,
		OTP:         "1234",
		PaymentMethod: ride.PaymentCash,
	}
}

// --- tests ---

func TestMarkArrived_Success(t *testing.T) {
	r := newTestRide("r1", ride.StatusAccepted, "d1")
	rides := newFakeRideRepo(r)
	notifier := &fakeNotifier{}
	svc := NewRideStateService(logger.New("test"), fakeUOW{}, rides, newFakeDriverRepo(), newFakeUserRepo(), &fakeTxRepo{}, &fakePricingRepo{}, notifier)

	if err := svc.MarkArrived(context.Background(), ports.ArriveInput{DriverID: "d1", RideID: "r1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != ride.StatusArrived {
		t.Fatalf("got status %q, want arrived", r.Status)
	}
	if len(notifier.toPassenger) != 1 {
		t.Fatalf("expected passenger notification, got %+v", notifier.toPassenger)
	}
}

func TestMarkArrived_WrongDriverRejected(t *testing.T) {
	r := newTestRide("r1", ride.StatusAccepted, "d1")
	rides := newFakeRideRepo(r)
	svc := NewRideStateService(logger.New("test"), fakeUOW{}, rides, newFakeDriverRepo(), newFakeUserRepo(), &fakeTxRepo{}, &fakePricingRepo{}, &fakeNotifier{})

	if err := svc.MarkArrived(context.Background(), ports.ArriveInput{DriverID: "d2", RideID: "r1"}); err == nil {
		t.Fatal("expected error for driver mismatch")
	}
}

func TestStartRide_WrongOTPRejected(t *testing.T) {
	r := newTestRide("r1", ride.StatusArrived, "d1")
	rides := newFakeRideRepo(r)
	svc := NewRideStateService(logger.New("test"), fakeUOW{}, rides, newFakeDriverRepo(), newFakeUserRepo(), &fakeTxRepo{}, &fakePricingRepo{}, &fakeNotifier{})

	_, err := svc.StartRide(context.Background(), ports.StartRideInput{DriverID: "d1", RideID: "r1", OTP: "0000"})
	if err == nil {
		t.Fatal("expected error for otp mismatch")
	}
}

func TestStartRide_Success(t *testing.T) {
	r := newTestRide("r1", ride.StatusArrived, "d1")
	rides := newFakeRideRepo(r)
	svc := NewRideStateService(logger.New("test"), fakeUOW{}, rides, newFakeDriverRepo(), newFakeUserRepo(), &fakeTxRepo{}, &fakePricingRepo{}, &fakeNotifier{})

	result, err := svc.StartRide(context.Background(), ports.StartRideInput{DriverID: "d1", RideID: "r1", OTP: "1234"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != string(ride.StatusStarted) {
		t.Fatalf("got status %q, want started", result.Status)
	}
}

func TestCompleteRide_CashPayment(t *testing.T) {
	r := newTestRide("r1", ride.StatusStarted, "d1")
	r.PaymentMethod = ride.PaymentCash
	rides := newFakeRideRepo(r)
	drivers := newFakeDriverRepo(&driver.Driver{ID: "d1", Wallet: 0})
	txRepo := &fakeTxRepo{}
	pricing := &fakePricingRepo{prices: map[ride.VehicleType]int{ride.VehicleTaxi: 10}}
	notifier := &fakeNotifier{}
	svc := NewRideStateService(logger.New("test"), fakeUOW{}, rides, drivers, newFakeUserRepo(), txRepo, pricing, notifier)

	result, err := svc.CompleteRide(context.Background(), ports.CompleteRideInput{DriverID: "d1", RideID: "r1", ActualDistanceKM: 5, PaymentMethod: ride.PaymentCash})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ActualFare != 50 {
		t.Fatalf("got fare %v, want 50 (5km * 10/km)", result.ActualFare)
	}
	if drivers.drivers["d1"].Wallet != 50 {
		t.Fatalf("driver wallet not credited on cash payment, got %d", drivers.drivers["d1"].Wallet)
	}
	if len(txRepo.entries) != 1 || txRepo.entries[0].Method != wallet.MethodRideFareFull {
		t.Fatalf("expected one ride_fare ledger entry, got %+v", txRepo.entries)
	}
	if len(notifier.toPassenger) != 3 {
		t.Fatalf("expected billAlert, rideCompleted and rideStatusUpdate to the passenger, got %d", len(notifier.toPassenger))
	}
}

func TestCompleteRide_WalletSettlesBothSides(t *testing.T) {
	r := newTestRide("r1", ride.StatusStarted, "d1")
	rides := newFakeRideRepo(r)
	drivers := newFakeDriverRepo(&driver.Driver{ID: "d1", Wallet: 0})
	users := newFakeUserRepo(&user.User{ID: "p1", Wallet: 1000})
	txRepo := &fakeTxRepo{}
	pricing := &fakePricingRepo{prices: map[ride.VehicleType]int{ride.VehicleTaxi: 10}}
	svc := NewRideStateService(logger.New("test"), fakeUOW{}, rides, drivers, users, txRepo, pricing, &fakeNotifier{})

	result, err := svc.CompleteRide(context.Background(), ports.CompleteRideInput{DriverID: "d1", RideID: "r1", ActualDistanceKM: 5, PaymentMethod: ride.PaymentWallet})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ActualFare != 50 {
		t.Fatalf("got fare %v, want 50", result.ActualFare)
	}
	if drivers.drivers["d1"].Wallet != 50 {
		t.Fatalf("driver wallet not credited, got %d", drivers.drivers["d1"].Wallet)
	}
	if users.users["p1"].Wallet != 950 {
		t.Fatalf("passenger wallet not debited, got %d", users.users["p1"].Wallet)
	}
	if len(txRepo.entries) != 2 {
		t.Fatalf("expected two ledger entries, got %d", len(txRepo.entries))
	}
}

func TestCompleteRide_WalletInsufficientBalanceFails(t *testing.T) {
	r := newTestRide("r1", ride.StatusStarted, "d1")
	rides := newFakeRideRepo(r)
	drivers := newFakeDriverRepo(&driver.Driver{ID: "d1", Wallet: 0})
	users := newFakeUserRepo(&user.User{ID: "p1", Wallet: 10})
	pricing := &fakePricingRepo{prices: map[ride.VehicleType]int{ride.VehicleTaxi: 10}}
	svc := NewRideStateService(logger.New("test"), fakeUOW{}, rides, drivers, users, &fakeTxRepo{}, pricing, &fakeNotifier{})

	if _, err := svc.CompleteRide(context.Background(), ports.CompleteRideInput{DriverID: "d1", RideID: "r1", ActualDistanceKM: 5, PaymentMethod: ride.PaymentWallet}); err == nil {
		t.Fatal("expected error for insufficient passenger wallet balance")
	}
}

func TestCancelRide_BeforeStartedIsDirectCancellation(t *testing.T) {
	r := newTestRide("r1", ride.StatusAccepted, "d1")
	rides := newFakeRideRepo(r)
	notifier := &fakeNotifier{}
	svc := NewRideStateService(logger.New("test"), fakeUOW{}, rides, newFakeDriverRepo(), newFakeUserRepo(), &fakeTxRepo{}, &fakePricingRepo{}, notifier)

	result, err := svc.CancelRide(context.Background(), ports.CancelRideInput{RequestedBy: "p1", RideID: "r1", Reason: "changed my mind"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != string(ride.StatusCancelled) {
		t.Fatalf("got status %q, want cancelled", result.Status)
	}
	if len(notifier.toPassenger) != 1 || len(notifier.toDriver) != 1 {
		t.Fatalf("expected both parties notified, got passenger=%+v driver=%+v", notifier.toPassenger, notifier.toDriver)
	}
}

func TestCancelRide_AfterStartedRoutesThroughCompletion(t *testing.T) {
	// The cancel request's PaymentMethod is left unset, so this exercises
	// CancelRide's own cash fallback rather than a value the caller
	// happened to set up.
	r := newTestRide("r1", ride.StatusStarted, "d1")
	r.DistanceKM = 3
	rides := newFakeRideRepo(r)
	drivers := newFakeDriverRepo(&driver.Driver{ID: "d1", Wallet: 0})
	pricing := &fakePricingRepo{prices: map[ride.VehicleType]int{ride.VehicleTaxi: 10}}
	svc := NewRideStateService(logger.New("test"), fakeUOW{}, rides, drivers, newFakeUserRepo(), &fakeTxRepo{}, pricing, &fakeNotifier{})

	result, err := svc.CancelRide(context.Background(), ports.CancelRideInput{RequestedBy: "d1", RideID: "r1", Reason: "passenger no-show"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != string(ride.StatusCompleted) {
		t.Fatalf("got status %q, want completed (settled via completion path)", result.Status)
	}
}

func TestCancelRide_AfterStartedHonorsExplicitPaymentMethod(t *testing.T) {
	r := newTestRide("r1", ride.StatusStarted, "d1")
	r.DistanceKM = 3
	rides := newFakeRideRepo(r)
	drivers := newFakeDriverRepo(&driver.Driver{ID: "d1", Wallet: 0})
	pricing := &fakePricingRepo{prices: map[ride.VehicleType]int{ride.VehicleTaxi: 10}}
	svc := NewRideStateService(logger.New("test"), fakeUOW{}, rides, drivers, newFakeUserRepo(), &fakeTxRepo{}, pricing, &fakeNotifier{})

	_, err := svc.CancelRide(context.Background(), ports.CancelRideInput{
		RequestedBy: "d1", RideID: "r1", Reason: "passenger no-show", PaymentMethod: ride.PaymentOnline,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rides.rides["r1"].PaymentMethod != ride.PaymentOnline {
		t.Fatalf("got payment method %q, want online (caller-supplied value honored)", rides.rides["r1"].PaymentMethod)
	}
}

func TestCancelRide_NotAPartyRejected(t *testing.T) {
	r := newTestRide("r1", ride.StatusAccepted, "d1")
	rides := newFakeRideRepo(r)
	svc := NewRideStateService(logger.New("test"), fakeUOW{}, rides, newFakeDriverRepo(), newFakeUserRepo(), &fakeTxRepo{}, &fakePricingRepo{}, &fakeNotifier{})

	if _, err := svc.CancelRide(context.Background(), ports.CancelRideInput{RequestedBy: "stranger", RideID: "r1"}); err == nil {
		t.Fatal("expected error for non-party cancellation request")
	}
}
