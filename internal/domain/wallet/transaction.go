// Package wallet holds the ledger entities backing the Wallet Ledger
// component (spec §4.2): every balance mutation for a driver or a passenger
// is recorded as an immutable, signed Transaction.
package wallet

import (
	"errors"
	"strings"
	"time"
)

// Type is the direction of a wallet mutation.
type Type string

const (
	TypeCredit Type = "credit"
	TypeDebit  Type = "debit"
)

func (t Type) Valid() bool {
	switch t {
	case TypeCredit, TypeDebit:
		return true
	default:
		return false
	}
}

// Method records why the transaction happened.
type Method string

const (
	MethodRideFareShare     Method = "ride_fare_share"
	MethodRideFareFull      Method = "ride_fare_full"
	MethodWorkingHoursFee   Method = "shift_start_fee"
	MethodExtendedHoursFee  Method = "extended_hours_fee"
	MethodPassengerWallet   Method = "passenger_wallet"
	MethodAdminAdjustment   Method = "admin_adjustment"
	MethodDriverTransferOut Method = "driver_transfer_out"
)

func (m Method) Valid() bool {
	switch m {
	case MethodRideFareShare, MethodRideFareFull, MethodWorkingHoursFee,
		MethodExtendedHoursFee, MethodPassengerWallet, MethodAdminAdjustment,
		MethodDriverTransferOut:
		return true
	default:
		return false
	}
}

// Transaction is an immutable wallet ledger entry.
type Transaction struct {
	ID            string // opaque internal id (uuid)
	CreatedAt     time.Time
	SubjectID     string // driver id or passenger id
	Type          Type
	Method        Method
	Amount        int // always positive; Type carries the sign
	BalanceAfter  int
	Description   string
	RideRef       *string
	IdempotencyKey string
}

var (
	ErrSubjectRequired  = errors.New("subject id is required")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidMethod    = errors.New("invalid transaction method")
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// NewTransaction constructs a ledger entry. balanceAfter is the subject's
// balance after applying this entry, computed by the caller under the
// per-subject serialization the Wallet Ledger requires (spec §5).
func NewTransaction(subjectID string, txType Type, method Method, amount, balanceAfter int, description string, rideRef *string, idempotencyKey string) (*Transaction, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, ErrSubjectRequired
	}
	if !txType.Valid() {
		return nil, ErrInvalidType
	}
	if !method.Valid() {
		return nil, ErrInvalidMethod
	}
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}

	return &Transaction{
		CreatedAt:      time.Now().UTC(),
		SubjectID:      subjectID,
		Type:           txType,
		Method:         method,
		Amount:         amount,
		BalanceAfter:   balanceAfter,
		Description:    strings.TrimSpace(description),
		RideRef:        rideRef,
		IdempotencyKey: idempotencyKey,
	}, nil
}

// SignedAmount returns Amount with the sign implied by Type.
func (t *Transaction) SignedAmount() int {
	if t.Type == TypeDebit {
		return -t.Amount
	}
	return t.Amount
}
