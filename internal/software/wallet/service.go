// Package wallet implements the Wallet Ledger (spec §4.2) as exposed to the
// realtime gateway: balance lookups and driver wallet adjustments, each
// paired with an immutable ledger entry under the per-subject serialization
// the unit of work provides.
package wallet

import (
	"context"

	"ride-hail/internal/domain/wallet"
	"ride-hail/internal/general/apperr"
	"ride-hail/internal/ports"

	"github.com/google/uuid"
)

type walletService struct {
	uow        ports.UnitOfWork
	driverRepo ports.DriverRepository
	userRepo   ports.UserRepository
	txRepo     ports.TransactionRepository
}

// NewWalletService wires the Wallet Ledger's service-layer boundary.
func NewWalletService(uow ports.UnitOfWork, driverRepo ports.DriverRepository, userRepo ports.UserRepository, txRepo ports.TransactionRepository) ports.WalletService {
	return &walletService{uow: uow, driverRepo: driverRepo, userRepo: userRepo, txRepo: txRepo}
}

var _ ports.WalletService = (*walletService)(nil)

// Balance returns a driver's or a passenger's current wallet balance.
func (s *walletService) Balance(ctx context.Context, subjectID string, isDriver bool) (int, error) {
	if isDriver {
		d, err := s.driverRepo.GetByID(ctx, subjectID)
		if err != nil {
			return 0, apperr.New(apperr.NotFound, "driver not found", err)
		}
		return d.Wallet, nil
	}

	u, err := s.userRepo.GetByID(ctx, subjectID)
	if err != nil {
		return 0, apperr.New(apperr.NotFound, "user not found", err)
	}
	return u.Wallet, nil
}

// AdjustDriverWallet applies a signed ledger adjustment to a driver's wallet.
// delta may be positive (credit) or negative (debit).
func (s *walletService) AdjustDriverWallet(ctx context.Context, driverID string, delta int, description string) (int, error) {
	var newBalance int

	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		d, err := s.driverRepo.GetByID(txCtx, driverID)
		if err != nil {
			return apperr.New(apperr.NotFound, "driver not found", err)
		}

		txType := wallet.TypeCredit
		amount := delta
		if delta < 0 {
			txType = wallet.TypeDebit
			amount = -delta
			if err := d.Debit(amount); err != nil {
				return apperr.New(apperr.DomainRule, "insufficient driver wallet balance", err)
			}
		} else {
			if err := d.Credit(amount); err != nil {
				return apperr.New(apperr.Internal, "failed to credit driver wallet", err)
			}
		}

		if err := s.driverRepo.UpdateWallet(txCtx, d.ID, d.Wallet); err != nil {
			return apperr.New(apperr.StoreUnavailable, "failed to persist driver wallet", err)
		}

		tx, err := wallet.NewTransaction(d.ID, txType, wallet.MethodAdminAdjustment, amount, d.Wallet, description, nil, "")
		if err != nil {
			return apperr.New(apperr.Internal, "failed to build ledger entry", err)
		}
		if _, err := s.txRepo.Create(txCtx, tx); err != nil {
			return apperr.New(apperr.StoreUnavailable, "failed to record ledger entry", err)
		}

		newBalance = d.Wallet
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// AddMoney tops up a passenger's wallet and records the deposit.
func (s *walletService) AddMoney(ctx context.Context, passengerID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, apperr.New(apperr.InvalidInput, "amount must be positive", nil)
	}
	return s.mutatePassengerWallet(ctx, passengerID, wallet.TypeCredit, amount, "wallet top-up", nil)
}

// Pay debits a passenger's wallet for a generic payment.
func (s *walletService) Pay(ctx context.Context, passengerID string, amount int, description string) (int, error) {
	if amount <= 0 {
		return 0, apperr.New(apperr.InvalidInput, "amount must be positive", nil)
	}
	return s.mutatePassengerWallet(ctx, passengerID, wallet.TypeDebit, amount, description, nil)
}

// Withdraw debits a passenger's wallet out to an external payout.
func (s *walletService) Withdraw(ctx context.Context, passengerID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, apperr.New(apperr.InvalidInput, "amount must be positive", nil)
	}
	return s.mutatePassengerWallet(ctx, passengerID, wallet.TypeDebit, amount, "wallet withdrawal", nil)
}

// CreditRide credits a passenger's wallet against a specific ride (e.g. a refund).
func (s *walletService) CreditRide(ctx context.Context, passengerID string, amount int, rideID string) (int, error) {
	if amount <= 0 {
		return 0, apperr.New(apperr.InvalidInput, "amount must be positive", nil)
	}
	return s.mutatePassengerWallet(ctx, passengerID, wallet.TypeCredit, amount, "ride credit", &rideID)
}

// mutatePassengerWallet applies a signed passenger wallet mutation and
// appends a paired ledger entry, under the unit of work's per-subject
// serialization (spec §5). These REST wallet endpoints carry no
// client-supplied idempotency key, so a fresh one is minted per entry to
// satisfy the ledger's unique index.
func (s *walletService) mutatePassengerWallet(ctx context.Context, passengerID string, txType wallet.Type, amount int, description string, rideRef *string) (int, error) {
	var newBalance int
	idempotencyKey := uuid.NewString()

	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		u, err := s.userRepo.GetByID(txCtx, passengerID)
		if err != nil {
			return apperr.New(apperr.NotFound, "passenger not found", err)
		}

		if txType == wallet.TypeDebit {
			if err := u.DebitWallet(amount); err != nil {
				return apperr.New(apperr.DomainRule, "insufficient passenger wallet balance", err)
			}
		} else {
			if err := u.CreditWallet(amount); err != nil {
				return apperr.New(apperr.Internal, "failed to credit passenger wallet", err)
			}
		}

		if err := s.userRepo.UpdateWallet(txCtx, u.ID, u.Wallet); err != nil {
			return apperr.New(apperr.StoreUnavailable, "failed to persist passenger wallet", err)
		}

		tx, err := wallet.NewTransaction(u.ID, txType, wallet.MethodPassengerWallet, amount, u.Wallet, description, rideRef, idempotencyKey)
		if err != nil {
			return apperr.New(apperr.Internal, "failed to build ledger entry", err)
		}
		if _, err := s.txRepo.Create(txCtx, tx); err != nil {
			return apperr.New(apperr.StoreUnavailable, "failed to record ledger entry", err)
		}

		newBalance = u.Wallet
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}
