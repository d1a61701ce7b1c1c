package models

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	AccountNumberLength = 10

	// Account numbers are drawn uniformly from [AccountNumberMin, AccountNumberMax)
	AccountNumberMin int64 = 1460676350
	AccountNumberMax int64 = 3060676350

	UsernameMinLength = 3
	UsernameMaxLength = 20

	MaxFailedLoginAttempts = 3
)

var (
	ErrInvalidBalance       = errors.New("balance cannot be negative")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrNonPositiveAmount    = errors.New("amount must be positive")
	ErrInvalidAccountNumber = errors.New("account number must be 10 digits")
	ErrInvalidUsername      = errors.New("invalid username")

	accountNumberRegex = regexp.MustCompile(`^\d{10}$`)
	usernameRegex      = regexp.MustCompile(`^[A-Za-z0-9!@.*?,_]+$`)

	// MaxAmount is the largest value a decimal(15,2) column holds
	MaxAmount = decimal.RequireFromString("9999999999999.99")
)

// Account is a customer account and its current balance
type Account struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	AccountNumber       string          `gorm:"type:varchar(10);uniqueIndex;not null" json:"account_number"`
	FullName            string          `gorm:"type:varchar(100);not null" json:"full_name"`
	Username            string          `gorm:"type:varchar(20);uniqueIndex;not null" json:"username"`
	PasswordHash        string          `gorm:"type:varchar(255);not null" json:"-"`
	Balance             decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0;check:balance >= 0" json:"balance"`
	FailedLoginAttempts int             `gorm:"default:0" json:"-"`
	LockedAt            *time.Time      `gorm:"index" json:"locked_at,omitempty"`
	LastLoginAt         *time.Time      `json:"last_login_at,omitempty"`
	CreatedAt           time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"not null" json:"updated_at"`
}

// BeforeCreate hook for Account
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}

	return a.Validate()
}

// BeforeUpdate hook for Account
func (a *Account) BeforeUpdate(tx *gorm.DB) error {
	a.UpdatedAt = time.Now()
	return nil
}

// Validate validates the account fields
func (a *Account) Validate() error {
	if !ValidateAccountNumber(a.AccountNumber) {
		return ErrInvalidAccountNumber
	}

	if !ValidateUsername(a.Username) {
		return ErrInvalidUsername
	}

	if strings.TrimSpace(a.FullName) == "" {
		return errors.New("full name is required")
	}

	if a.Balance.LessThan(decimal.Zero) {
		return ErrInvalidBalance
	}

	return nil
}

// CanWithdraw reports whether amount can leave the account without going negative
func (a *Account) CanWithdraw(amount decimal.Decimal) bool {
	return amount.GreaterThan(decimal.Zero) && a.Balance.GreaterThanOrEqual(amount)
}

// Debit returns the balance after removing amount
func (a *Account) Debit(amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return a.Balance, ErrNonPositiveAmount
	}

	if a.Balance.LessThan(amount) {
		return a.Balance, ErrInsufficientFunds
	}

	return a.Balance.Sub(amount), nil
}

// Credit returns the balance after adding amount
func (a *Account) Credit(amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return a.Balance, ErrNonPositiveAmount
	}

	return a.Balance.Add(amount), nil
}

// IsLocked reports whether login is blocked for this account
func (a *Account) IsLocked() bool {
	return a.LockedAt != nil
}

// IncrementFailedAttempts records a failed login and locks the account at maxAttempts
func (a *Account) IncrementFailedAttempts(maxAttempts int) {
	if maxAttempts <= 0 {
		maxAttempts = MaxFailedLoginAttempts
	}

	a.FailedLoginAttempts++
	if a.FailedLoginAttempts >= maxAttempts {
		now := time.Now()
		a.LockedAt = &now
	}
}

// RecordSuccessfulLogin clears failed attempts and stamps the login time
func (a *Account) RecordSuccessfulLogin() {
	now := time.Now()
	a.FailedLoginAttempts = 0
	a.LockedAt = nil
	a.LastLoginAt = &now
}

// TableName returns the table name for Account
func (a *Account) TableName() string {
	return "accounts"
}

// GenerateAccountNumber draws a 10-digit account number from [min, max)
func GenerateAccountNumber(min, max int64) (string, error) {
	if min >= max {
		return "", fmt.Errorf("invalid account number range [%d, %d)", min, max)
	}

	n, err := rand.Int(rand.Reader, big.NewInt(max-min))
	if err != nil {
		return "", fmt.Errorf("failed to draw account number: %w", err)
	}

	number := fmt.Sprintf("%010d", n.Int64()+min)
	if len(number) != AccountNumberLength {
		return "", ErrInvalidAccountNumber
	}

	return number, nil
}

// ValidateAccountNumber validates an account number format
func ValidateAccountNumber(accountNumber string) bool {
	return accountNumberRegex.MatchString(accountNumber)
}

// ValidateUsername checks the username length and allowed characters
func ValidateUsername(username string) bool {
	if len(username) < UsernameMinLength || len(username) > UsernameMaxLength {
		return false
	}
	return usernameRegex.MatchString(username)
}
