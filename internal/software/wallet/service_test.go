package wallet

import (
	"context"
	"errors"
	"testing"

	"ride-hail/internal/domain/driver"
	"ride-hail/internal/domain/ride"
	"ride-hail/internal/domain/user"
	"ride-hail/internal/domain/wallet"
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
	var out []*wallet.Transaction
	for _, e := range r.entries {
		if e.SubjectID == subjectID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- tests ---

func TestBalance_Driver(t *testing.T) {
	d := &driver.Driver{ID: "d1", Wallet: 500}
	svc := NewWalletService(fakeUOW{}, newFakeDriverRepo(d), newFakeUserRepo(), &fakeTxRepo{})

	got, err := svc.Balance(context.Background(), "d1", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 500 {
		t.Fatalf("got balance %d, want 500", got)
	}
}

func TestBalance_Passenger(t *testing.T) {
	u := &user.User{ID: "p1", Wallet: 200}
	svc := NewWalletService(fakeUOW{}, newFakeDriverRepo(), newFakeUserRepo(u), &fakeTxRepo{})

	got, err := svc.Balance(context.Background(), "p1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 200 {
		t.Fatalf("got balance %d, want 200", got)
	}
}

func TestBalance_DriverNotFound(t *testing.T) {
	svc := NewWalletService(fakeUOW{}, newFakeDriverRepo(), newFakeUserRepo(), &fakeTxRepo{})
	if _, err := svc.Balance(context.Background(), "missing", true); err == nil {
		t.Fatal("expected error for missing driver")
	}
}

func TestAdjustDriverWallet_Credit(t *testing.T) {
	d := &driver.Driver{ID: "d1", Wallet: 100}
	txRepo := &fakeTxRepo{}
	svc := NewWalletService(fakeUOW{}, newFakeDriverRepo(d), newFakeUserRepo(), txRepo)

	newBalance, err := svc.AdjustDriverWallet(context.Background(), "d1", 50, "bonus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if newBalance != 150 {
		t.Fatalf("got balance %d, want 150", newBalance)
	}
	if len(txRepo.entries) != 1 || txRepo.entries[0].Type != wallet.TypeCredit {
		t.Fatalf("expected one credit ledger entry, got %+v", txRepo.entries)
	}
}

func TestAdjustDriverWallet_DebitInsufficientBalance(t *testing.T) {
	d := &driver.Driver{ID: "d1", Wallet: 30}
	svc := NewWalletService(fakeUOW{}, newFakeDriverRepo(d), newFakeUserRepo(), &fakeTxRepo{})

	if _, err := svc.AdjustDriverWallet(context.Background(), "d1", -50, "penalty"); err == nil {
		t.Fatal("expected error for insufficient balance")
	}
	if d.Wallet != 30 {
		t.Fatalf("balance should be unchanged on failure, got %d", d.Wallet)
	}
}

func TestAddMoney_CreditsPassengerWallet(t *testing.T) {
	u := &user.User{ID: "p1", Wallet: 100}
	txRepo := &fakeTxRepo{}
	svc := NewWalletService(fakeUOW{}, newFakeDriverRepo(), newFakeUserRepo(u), txRepo)

	newBalance, err := svc.AddMoney(context.Background(), "p1", 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if newBalance != 300 {
		t.Fatalf("got balance %d, want 300", newBalance)
	}
	if len(txRepo.entries) != 1 || txRepo.entries[0].Type != wallet.TypeCredit {
		t.Fatalf("expected one credit ledger entry, got %+v", txRepo.entries)
	}
}

func TestAddMoney_RejectsNonPositiveAmount(t *testing.T) {
	svc := NewWalletService(fakeUOW{}, newFakeDriverRepo(), newFakeUserRepo(&user.User{ID: "p1"}), &fakeTxRepo{})
	if _, err := svc.AddMoney(context.Background(), "p1", 0); err == nil {
		t.Fatal("expected error for non-positive amount")
	}
}

func TestPay_DebitsPassengerWallet(t *testing.T) {
	u := &user.User{ID: "p1", Wallet: 500}
	svc := NewWalletService(fakeUOW{}, newFakeDriverRepo(), newFakeUserRepo(u), &fakeTxRepo{})

	newBalance, err := svc.Pay(context.Background(), "p1", 150, "ride fare")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if newBalance != 350 {
		t.Fatalf("got balance %d, want 350", newBalance)
	}
}

func TestPay_InsufficientBalanceFails(t *testing.T) {
	u := &user.User{ID: "p1", Wallet: 10}
	svc := NewWalletService(fakeUOW{}, newFakeDriverRepo(), newFakeUserRepo(u), &fakeTxRepo{})

	if _, err := svc.Pay(context.Background(), "p1", 150, "ride fare"); err == nil {
		t.Fatal("expected error for insufficient balance")
	}
}

func TestWithdraw_DebitsPassengerWallet(t *testing.T) {
	u := &user.User{ID: "p1", Wallet: 500}
	svc := NewWalletService(fakeUOW{}, newFakeDriverRepo(), newFakeUserRepo(u), &fakeTxRepo{})

	newBalance, err := svc.Withdraw(context.Background(), "p1", 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if newBalance != 300 {
		t.Fatalf("got balance %d, want 300", newBalance)
	}
}

func TestCreditRide_CreditsPassengerWalletWithRideRef(t *testing.T) {
	u := &user.User{ID: "p1", Wallet: 0}
	txRepo := &fakeTxRepo{}
	svc := NewWalletService(fakeUOW{}, newFakeDriverRepo(), newFakeUserRepo(u), txRepo)

	newBalance, err := svc.CreditRide(context.Background(), "p1", 81, "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if newBalance != 81 {
		t.Fatalf("got balance %d, want 81", newBalance)
	}
	if len(txRepo.entries) != 1 || txRepo.entries[0].RideRef == nil || *txRepo.entries[0].RideRef != "r1" {
		t.Fatalf("expected ledger entry referencing ride r1, got %+v", txRepo.entries)
	}
}
