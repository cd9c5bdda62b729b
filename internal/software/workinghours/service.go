// Package workinghours implements the Working-Hours Service (spec §4.6): a
// per-driver shift timer that counts down from a purchased limit, fires
// warnings as it approaches zero, and auto-stops the driver's shift when it
// expires. The authoritative countdown lives in memory; every mutation is
// mirrored to Postgres so a restart can re-arm in-flight timers.
package workinghours

import (
	"context"
	"sync"
	"time"

	"ride-hail/internal/domain/driver"
	"ride-hail/internal/domain/wallet"
	"ride-hail/internal/general/apperr"
	"ride-hail/internal/general/contracts"
	"ride-hail/internal/general/logger"
	"ride-hail/internal/ports"
)

// warningThresholds are seconds-remaining marks at which a warning fires,
// evaluated high to low (spec §9 Open Question, decided: time-to-expiry
// thresholds at 1h/30m/10m remaining).
var warningThresholds = [3]int{3600, 1800, 600}

const tickInterval = time.Second

// Notifier is the realtime gateway surface the Working-Hours Service pushes
// warnings and auto-stop notices through.
type Notifier interface {
	SendToDriver(driverID, event string, data any) bool
}

type timer struct {
	mu               sync.Mutex
	limit            driver.WorkingHoursLimit
	remainingSeconds int
	active           bool
	warningsIssued   int
	extended         int
}

type workingHoursService struct {
	logger     *logger.Logger
	uow        ports.UnitOfWork
	driverRepo ports.DriverRepository
	txRepo     ports.TransactionRepository
	notifier   Notifier

	mu     sync.Mutex
	timers map[string]*timer

	stopTick chan struct{}
}

// NewWorkingHoursService wires the Working-Hours Service and starts its
// background countdown loop. Call Recover once at process start to re-arm
// timers left active across a restart.
func NewWorkingHoursService(log *logger.Logger, uow ports.UnitOfWork, driverRepo ports.DriverRepository, txRepo ports.TransactionRepository, notifier Notifier) ports.WorkingHoursService {
	s := &workingHoursService{
		logger:     log,
		uow:        uow,
		driverRepo: driverRepo,
		txRepo:     txRepo,
		notifier:   notifier,
		timers:     make(map[string]*timer),
		stopTick:   make(chan struct{}),
	}
	go s.tickLoop()
	return s
}

var _ ports.WorkingHoursService = (*workingHoursService)(nil)

// Start decides between a duplicate-start no-op, a resume, and a new shift
// (spec §4.6's decision table), under the driver-row lock held by the unit
// of work — the sole debit site for the `shift_start_fee` method.
func (s *workingHoursService) Start(ctx context.Context, in ports.StartShiftInput) (ports.ShiftStatus, error) {
	limit := in.Limit
	if limit != driver.WorkingHoursHalf && limit != driver.WorkingHoursFull {
		limit = driver.WorkingHoursFull
	}

	var result ports.ShiftStatus
	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		d, err := s.driverRepo.GetByID(txCtx, in.DriverID)
		if err != nil {
			return apperr.New(apperr.NotFound, "driver not found", err)
		}

		switch {
		case d.TimerActive:
			// duplicate start: idempotent no-op, no mutation.
			result = ports.ShiftStatus{RemainingSeconds: d.RemainingWorkingSeconds, TimerActive: true, WarningsIssued: d.WarningsIssued}
			return nil

		case d.RemainingWorkingSeconds > 0:
			// resume: arm with the existing slice, no wallet debit.
			d.TimerActive = true
			if err := s.driverRepo.UpdateWorkingHoursState(txCtx, d.ID, ports.WorkingHoursState{
				Limit: d.WorkingHoursLimit, RemainingSeconds: d.RemainingWorkingSeconds,
				TimerActive: true, WarningsIssued: d.WarningsIssued, ExtendedHoursPurchased: d.ExtendedHoursPurchased,
			}); err != nil {
				return apperr.New(apperr.StoreUnavailable, "failed to resume shift timer", err)
			}
			result = ports.ShiftStatus{RemainingSeconds: d.RemainingWorkingSeconds, TimerActive: true, WarningsIssued: d.WarningsIssued}

		default:
			// new shift: requires the shift-start fee up front.
			fee := d.WorkingHoursDeduction
			if d.Wallet < fee {
				return apperr.New(apperr.DomainRule, "insufficient wallet balance for shift start", nil)
			}
			if err := d.Debit(fee); err != nil {
				return apperr.New(apperr.Internal, "failed to debit shift start fee", err)
			}
			if err := s.driverRepo.UpdateWallet(txCtx, d.ID, d.Wallet); err != nil {
				return apperr.New(apperr.StoreUnavailable, "failed to persist driver wallet", err)
			}
			tx, err := wallet.NewTransaction(d.ID, wallet.TypeDebit, wallet.MethodWorkingHoursFee, fee, d.Wallet, "shift start fee", nil, "")
			if err != nil {
				return apperr.New(apperr.Internal, "failed to build ledger entry", err)
			}
			if _, err := s.txRepo.Create(txCtx, tx); err != nil {
				return apperr.New(apperr.StoreUnavailable, "failed to record ledger entry", err)
			}

			state := ports.WorkingHoursState{
				Limit: limit, RemainingSeconds: int(limit), TimerActive: true, WarningsIssued: 0, ExtendedHoursPurchased: 0,
			}
			if err := s.driverRepo.UpdateWorkingHoursState(txCtx, d.ID, state); err != nil {
				return apperr.New(apperr.StoreUnavailable, "failed to arm shift timer", err)
			}
			result = ports.ShiftStatus{RemainingSeconds: int(limit), TimerActive: true, WarningsIssued: 0}
		}
		return nil
	})
	if err != nil {
		return ports.ShiftStatus{}, err
	}

	s.mu.Lock()
	s.timers[in.DriverID] = &timer{limit: limit, remainingSeconds: result.RemainingSeconds, active: true, warningsIssued: result.WarningsIssued}
	s.mu.Unlock()

	return result, nil
}

func (s *workingHoursService) Pause(ctx context.Context, driverID string) error {
	t, err := s.get(driverID)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.active = false
	t.mu.Unlock()
	return s.persist(ctx, driverID, t)
}

func (s *workingHoursService) Resume(ctx context.Context, driverID string) error {
	t, err := s.get(driverID)
	if err != nil {
		return err
	}
	t.mu.Lock()
	if t.remainingSeconds <= 0 {
		t.mu.Unlock()
		return apperr.New(apperr.DomainRule, "shift has expired", nil)
	}
	t.active = true
	t.mu.Unlock()
	return s.persist(ctx, driverID, t)
}

// Extend is the manual `extend`/add-half-time/add-full-time action (spec
// §4.6): it always debits the working-hours deduction amount, regardless of
// the remaining slice.
func (s *workingHoursService) Extend(ctx context.Context, in ports.ExtendShiftInput) (ports.ShiftStatus, error) {
	add := int(in.Limit)
	if add <= 0 {
		add = int(driver.WorkingHoursHalf)
	}

	var result ports.ShiftStatus
	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		d, err := s.driverRepo.GetByID(txCtx, in.DriverID)
		if err != nil {
			return apperr.New(apperr.NotFound, "driver not found", err)
		}
		fee := d.WorkingHoursDeduction
		if err := d.Debit(fee); err != nil {
			return apperr.New(apperr.DomainRule, "insufficient wallet balance to extend shift", err)
		}
		if err := s.driverRepo.UpdateWallet(txCtx, d.ID, d.Wallet); err != nil {
			return apperr.New(apperr.StoreUnavailable, "failed to persist driver wallet", err)
		}
		tx, err := wallet.NewTransaction(d.ID, wallet.TypeDebit, wallet.MethodExtendedHoursFee, fee, d.Wallet, "manual shift extension", nil, "")
		if err != nil {
			return apperr.New(apperr.Internal, "failed to build ledger entry", err)
		}
		if _, err := s.txRepo.Create(txCtx, tx); err != nil {
			return apperr.New(apperr.StoreUnavailable, "failed to record ledger entry", err)
		}

		remaining := d.RemainingWorkingSeconds + add
		state := ports.WorkingHoursState{
			Limit: d.WorkingHoursLimit, RemainingSeconds: remaining,
			TimerActive: true, WarningsIssued: 0, ExtendedHoursPurchased: d.ExtendedHoursPurchased + add,
		}
		if err := s.driverRepo.UpdateWorkingHoursState(txCtx, d.ID, state); err != nil {
			return apperr.New(apperr.StoreUnavailable, "failed to persist extended shift", err)
		}
		result = ports.ShiftStatus{RemainingSeconds: remaining, TimerActive: true, WarningsIssued: 0}
		return nil
	})
	if err != nil {
		return ports.ShiftStatus{}, err
	}

	s.mu.Lock()
	if t, ok := s.timers[in.DriverID]; ok {
		t.mu.Lock()
		t.remainingSeconds = result.RemainingSeconds
		t.active = true
		t.warningsIssued = 0
		t.extended += add
		t.mu.Unlock()
	} else {
		s.timers[in.DriverID] = &timer{remainingSeconds: result.RemainingSeconds, active: true, extended: add}
	}
	s.mu.Unlock()

	return result, nil
}

func (s *workingHoursService) Stop(ctx context.Context, driverID string) error {
	s.mu.Lock()
	t, ok := s.timers[driverID]
	if ok {
		delete(s.timers, driverID)
	}
	s.mu.Unlock()
	if !ok {
		return apperr.New(apperr.NotFound, "no shift running", nil)
	}

	t.mu.Lock()
	t.active = false
	t.mu.Unlock()
	return s.persist(ctx, driverID, t)
}

func (s *workingHoursService) Status(ctx context.Context, driverID string) (ports.ShiftStatus, error) {
	t, err := s.get(driverID)
	if err != nil {
		return ports.ShiftStatus{}, err
	}
	return t.status(), nil
}

// Recover re-arms every driver whose timer was active before the process
// last stopped (spec §6).
func (s *workingHoursService) Recover(ctx context.Context) error {
	drivers, err := s.driverRepo.RearmTimers(ctx)
	if err != nil {
		return apperr.New(apperr.StoreUnavailable, "failed to load timers to recover", err)
	}

	s.mu.Lock()
	for i := range drivers {
		d := drivers[i]
		s.timers[d.ID] = &timer{
			limit:            d.WorkingHoursLimit,
			remainingSeconds: d.RemainingWorkingSeconds,
			active:           d.TimerActive,
			warningsIssued:   d.WarningsIssued,
			extended:         d.ExtendedHoursPurchased,
		}
	}
	s.mu.Unlock()

	s.logger.Info(ctx, "workinghours_recovered", "Re-armed driver shift timers", map[string]any{"count": len(drivers)})
	return nil
}

func (s *workingHoursService) get(driverID string) (*timer, error) {
	s.mu.Lock()
	t, ok := s.timers[driverID]
	s.mu.Unlock()
	if !ok {
		return nil, apperr.New(apperr.NotFound, "no shift running", nil)
	}
	return t, nil
}

func (t *timer) status() ports.ShiftStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ports.ShiftStatus{RemainingSeconds: t.remainingSeconds, TimerActive: t.active, WarningsIssued: t.warningsIssued}
}

func (s *workingHoursService) persist(ctx context.Context, driverID string, t *timer) error {
	t.mu.Lock()
	state := ports.WorkingHoursState{
		Limit:                  t.limit,
		RemainingSeconds:       t.remainingSeconds,
		TimerActive:            t.active,
		WarningsIssued:         t.warningsIssued,
		ExtendedHoursPurchased: t.extended,
	}
	t.mu.Unlock()

	if err := s.driverRepo.UpdateWorkingHoursState(ctx, driverID, state); err != nil {
		return apperr.New(apperr.StoreUnavailable, "failed to persist shift timer", err)
	}
	return nil
}

// tickLoop decrements every active timer once a second, firing warnings and
// auto-stop notifications, and persists each driver's slice on those edges.
func (s *workingHoursService) tickLoop() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopTick:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *workingHoursService) tick() {
	s.mu.Lock()
	snapshot := make(map[string]*timer, len(s.timers))
	for id, t := range s.timers {
		snapshot[id] = t
	}
	s.mu.Unlock()

	ctx := context.Background()
	for driverID, t := range snapshot {
		t.mu.Lock()
		if !t.active || t.remainingSeconds <= 0 {
			t.mu.Unlock()
			continue
		}
		t.remainingSeconds--
		remaining := t.remainingSeconds
		warnIdx := nextWarningIndex(remaining)
		shouldWarn := warnIdx > t.warningsIssued
		if shouldWarn {
			t.warningsIssued = warnIdx
		}
		expired := remaining <= 0
		t.mu.Unlock()

		if shouldWarn {
			s.notifier.SendToDriver(driverID, contracts.EventWorkingHoursWarning, contracts.WorkingHoursWarningEvent{
				Type: "warning", DriverID: driverID, RemainingSeconds: remaining,
			})
		}
		if expired {
			s.expire(ctx, driverID, t)
			continue
		}
		if remaining%30 == 0 || shouldWarn {
			if err := s.persist(ctx, driverID, t); err != nil {
				s.logger.Error(ctx, "workinghours_persist_failed", "Failed to persist timer tick", err, map[string]any{"driver_id": driverID})
			}
		}
	}
}

// expire runs at remainingSeconds == 0 (spec §4.6 step 5): it tries an
// auto-debit extension first, and only stops the driver offline if the
// wallet cannot cover it.
func (s *workingHoursService) expire(ctx context.Context, driverID string, t *timer) {
	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		d, err := s.driverRepo.GetByID(txCtx, driverID)
		if err != nil {
			return apperr.New(apperr.NotFound, "driver not found", err)
		}

		if d.Wallet >= d.WorkingHoursDeduction {
			fee := d.WorkingHoursDeduction
			if err := d.Debit(fee); err != nil {
				return apperr.New(apperr.Internal, "failed to auto-debit extended hours fee", err)
			}
			if err := s.driverRepo.UpdateWallet(txCtx, d.ID, d.Wallet); err != nil {
				return apperr.New(apperr.StoreUnavailable, "failed to persist driver wallet", err)
			}
			tx, err := wallet.NewTransaction(d.ID, wallet.TypeDebit, wallet.MethodExtendedHoursFee, fee, d.Wallet, "auto-extended shift", nil, "")
			if err != nil {
				return apperr.New(apperr.Internal, "failed to build ledger entry", err)
			}
			if _, err := s.txRepo.Create(txCtx, tx); err != nil {
				return apperr.New(apperr.StoreUnavailable, "failed to record ledger entry", err)
			}

			t.mu.Lock()
			t.remainingSeconds = int(driver.WorkingHoursHalf)
			t.warningsIssued = 0
			t.extended += int(driver.WorkingHoursHalf)
			t.mu.Unlock()

			return s.driverRepo.UpdateWorkingHoursState(txCtx, d.ID, ports.WorkingHoursState{
				Limit: d.WorkingHoursLimit, RemainingSeconds: int(driver.WorkingHoursHalf),
				TimerActive: true, WarningsIssued: 0, ExtendedHoursPurchased: d.ExtendedHoursPurchased + int(driver.WorkingHoursHalf),
			})
		}

		t.mu.Lock()
		t.active = false
		t.mu.Unlock()
		if err := d.GoOffline(); err != nil {
			s.logger.Error(txCtx, "workinghours_offline_failed", "Failed to move driver offline on auto-stop", err, map[string]any{"driver_id": driverID})
		}
		if err := s.driverRepo.UpdateStatus(txCtx, d.ID, d.Status); err != nil {
			return apperr.New(apperr.StoreUnavailable, "failed to mark driver offline", err)
		}
		return s.driverRepo.UpdateWorkingHoursState(txCtx, d.ID, ports.WorkingHoursState{
			Limit: d.WorkingHoursLimit, RemainingSeconds: 0, TimerActive: false,
			WarningsIssued: d.WarningsIssued, ExtendedHoursPurchased: d.ExtendedHoursPurchased,
		})
	})
	if err != nil {
		s.logger.Error(ctx, "workinghours_expire_failed", "Failed to process shift expiry", err, map[string]any{"driver_id": driverID})
		return
	}

	t.mu.Lock()
	stillActive := t.active
	t.mu.Unlock()
	if stillActive {
		return
	}
	s.notifier.SendToDriver(driverID, contracts.EventAutoStop, contracts.AutoStopEvent{Type: "auto_stop", DriverID: driverID})
}

// nextWarningIndex reports how many of the descending warningThresholds have
// been crossed at or below remaining seconds.
func nextWarningIndex(remaining int) int {
	count := 0
	for _, threshold := range warningThresholds {
		if remaining <= threshold {
			count++
		}
	}
	return count
}
