package service

import (
	"context"

	"ride-hail/internal/domain/wallet"
)

// AdjustDriverWallet applies an admin-initiated ledger adjustment to a
// driver's wallet (spec §6's `POST /admin/direct-wallet/{driverId}`).
// delta may be positive (credit) or negative (debit).
func (service *adminService) AdjustDriverWallet(ctx context.Context, driverID string, delta int, description string) (int, error) {
	var newBalance int

	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		d, err := service.driverRepo.GetByID(txCtx, driverID)
		if err != nil {
			return err
		}

		txType := wallet.TypeCredit
		amount := delta
		if delta < 0 {
			txType = wallet.TypeDebit
			amount = -delta
			if err := d.Debit(amount); err != nil {
				return err
			}
		} else {
			if err := d.Credit(amount); err != nil {
				return err
			}
		}

		if err := service.driverRepo.UpdateWallet(txCtx, d.ID, d.Wallet); err != nil {
			return err
		}

		tx, err := wallet.NewTransaction(d.ID, txType, wallet.MethodAdminAdjustment, amount, d.Wallet, description, nil, "")
		if err != nil {
			return err
		}
		if _, err := service.txRepo.Create(txCtx, tx); err != nil {
			return err
		}

		newBalance = d.Wallet
		return nil
	})
	if err != nil {
		return 0, err
	}

	return newBalance, nil
}
