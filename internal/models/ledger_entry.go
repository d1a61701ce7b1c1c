package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	EntryTypeDeposit     = "deposit"
	EntryTypeWithdrawal  = "withdrawal"
	EntryTypeTransferOut = "transfer_out"
	EntryTypeTransferIn  = "transfer_in"
)

var (
	ErrInvalidEntryType = errors.New("invalid ledger entry type")
	ErrInvalidAmount    = errors.New("ledger entry amount must be positive")
)

// LedgerEntry is one immutable record in an account's transaction history.
// IDs are assigned by the database and increase with every append.
type LedgerEntry struct {
	ID                        uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Reference                 string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"reference"`
	AccountUsername           string          `gorm:"type:varchar(20);not null;index" json:"account_username"`
	AccountNumber             string          `gorm:"type:varchar(10);not null;index" json:"account_number"`
	EntryType                 string          `gorm:"column:type;type:varchar(20);not null" json:"type"`
	Amount                    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	ResultingBalance          decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"resulting_balance"`
	CounterpartyAccountNumber string          `gorm:"type:varchar(10)" json:"counterparty_account_number,omitempty"`
	CreatedAt                 time.Time       `gorm:"not null;index" json:"created_at"`
}

// BeforeCreate hook for LedgerEntry
func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.Reference == "" {
		e.Reference = GenerateTransactionReference()
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	return e.Validate()
}

// BeforeUpdate rejects every update; ledger entries are append-only
func (e *LedgerEntry) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("ledger entries are immutable")
}

// Validate validates the entry fields
func (e *LedgerEntry) Validate() error {
	if e.AccountUsername == "" {
		return errors.New("account username is required")
	}

	if !IsValidEntryType(e.EntryType) {
		return ErrInvalidEntryType
	}

	if e.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	if e.ResultingBalance.LessThan(decimal.Zero) {
		return ErrInvalidBalance
	}

	if e.IsTransfer() && e.CounterpartyAccountNumber == "" {
		return errors.New("transfer entries require a counterparty account number")
	}

	return nil
}

// IsTransfer returns true for either half of a transfer
func (e *LedgerEntry) IsTransfer() bool {
	return e.EntryType == EntryTypeTransferOut || e.EntryType == EntryTypeTransferIn
}

// SignedAmount returns the amount with the sign it has on the balance
func (e *LedgerEntry) SignedAmount() decimal.Decimal {
	switch e.EntryType {
	case EntryTypeWithdrawal, EntryTypeTransferOut:
		return e.Amount.Neg()
	default:
		return e.Amount
	}
}

// TableName returns the table name for LedgerEntry
func (e *LedgerEntry) TableName() string {
	return "ledger_entries"
}

// IsValidEntryType checks if the entry type is valid
func IsValidEntryType(entryType string) bool {
	switch entryType {
	case EntryTypeDeposit, EntryTypeWithdrawal, EntryTypeTransferOut, EntryTypeTransferIn:
		return true
	default:
		return false
	}
}

// ReplayBalance folds entries in order starting from zero
func ReplayBalance(entries []LedgerEntry) decimal.Decimal {
	balance := decimal.Zero
	for i := range entries {
		balance = balance.Add(entries[i].SignedAmount())
	}
	return balance
}

// ReplayMismatch describes the first entry whose resulting balance disagrees with the replay
type ReplayMismatch struct {
	EntryID  uint64
	Expected decimal.Decimal
	Recorded decimal.Decimal
}

func (m ReplayMismatch) Error() string {
	return fmt.Sprintf("entry %d records balance %s, replay gives %s", m.EntryID, m.Recorded.StringFixed(2), m.Expected.StringFixed(2))
}

// VerifyReplay replays entries and checks each recorded resulting balance.
// It returns the replayed total and the first mismatch, if any.
func VerifyReplay(entries []LedgerEntry) (decimal.Decimal, *ReplayMismatch) {
	balance := decimal.Zero
	var previous uint64
	for i := range entries {
		if i > 0 && entries[i].ID <= previous {
			return balance, &ReplayMismatch{EntryID: entries[i].ID, Expected: balance, Recorded: entries[i].ResultingBalance}
		}
		previous = entries[i].ID

		balance = balance.Add(entries[i].SignedAmount())
		if !balance.Equal(entries[i].ResultingBalance) {
			return balance, &ReplayMismatch{EntryID: entries[i].ID, Expected: balance, Recorded: entries[i].ResultingBalance}
		}
	}
	return balance, nil
}

// GenerateTransactionReference generates a unique transaction reference
func GenerateTransactionReference() string {
	return "TXN-" + time.Now().UTC().Format("20060102") + "-" + uuid.New().String()
}
