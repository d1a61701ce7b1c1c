package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"bankledger/internal/database"
	"bankledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountNumberExists = errors.New("account number already exists")
	ErrUsernameExists      = errors.New("username already exists")
	ErrBalanceConflict     = fmt.Errorf("balance changed since it was read: %w", database.ErrConcurrentUpdate)
)

// accountRepository implements AccountRepositoryInterface
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) AccountRepositoryInterface {
	return &accountRepository{
		db: db,
	}
}

// Create inserts a new account.
// A unique violation is reported as ErrUsernameExists or ErrAccountNumberExists.
func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			taken, lookupErr := r.UsernameExists(ctx, account.Username)
			if lookupErr == nil && taken {
				return ErrUsernameExists
			}
			return ErrAccountNumberExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByUsername retrieves an account by username
func (r *accountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by username: %w", err)
	}
	return &account, nil
}

// GetByAccountNumber retrieves an account by exact account number
func (r *accountRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("account_number = ?", accountNumber).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by number: %w", err)
	}
	return &account, nil
}

// LockByAccountNumbers row-locks the given accounts one at a time in ascending
// account-number order and returns them in that order. Duplicates are locked once.
// Must run inside a transaction for the locks to be held.
func (r *accountRepository) LockByAccountNumbers(ctx context.Context, accountNumbers ...string) ([]*models.Account, error) {
	ordered := make([]string, 0, len(accountNumbers))
	seen := make(map[string]struct{}, len(accountNumbers))
	for _, number := range accountNumbers {
		if _, ok := seen[number]; ok {
			continue
		}
		seen[number] = struct{}{}
		ordered = append(ordered, number)
	}
	sort.Strings(ordered)

	accounts := make([]*models.Account, 0, len(ordered))
	for _, number := range ordered {
		var account models.Account
		err := r.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_number = ?", number).
			First(&account).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, number)
			}
			return nil, fmt.Errorf("failed to lock account %s: %w", number, err)
		}
		accounts = append(accounts, &account)
	}

	return accounts, nil
}

// SetBalance overwrites the balance only if it still equals expected
func (r *accountRepository) SetBalance(ctx context.Context, username string, expected, newBalance decimal.Decimal) error {
	if newBalance.IsNegative() {
		return models.ErrInvalidBalance
	}

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("username = ? AND balance = ?", username, expected).
		UpdateColumns(map[string]interface{}{
			"balance":    newBalance,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set balance: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		exists, err := r.UsernameExists(ctx, username)
		if err != nil {
			return err
		}
		if !exists {
			return ErrAccountNotFound
		}
		return ErrBalanceConflict
	}

	return nil
}

// AccountNumberExists checks if an account number is already taken
func (r *accountRepository) AccountNumberExists(ctx context.Context, accountNumber string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("account_number = ?", accountNumber).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check account number: %w", err)
	}
	return count > 0, nil
}

// UsernameExists checks if a username is already registered
func (r *accountRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Account{}).
		Where("username = ?", username).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return count > 0, nil
}

// UpdateLoginState persists the lockout and last-login fields
func (r *accountRepository) UpdateLoginState(ctx context.Context, account *models.Account) error {
	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", account.ID).
		UpdateColumns(map[string]interface{}{
			"failed_login_attempts": account.FailedLoginAttempts,
			"locked_at":             account.LockedAt,
			"last_login_at":         account.LastLoginAt,
			"updated_at":            time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update login state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ListUsernames returns every username, ordered
func (r *accountRepository) ListUsernames(ctx context.Context) ([]string, error) {
	var usernames []string
	if err := r.db.WithContext(ctx).Model(&models.Account{}).
		Order("username ASC").Pluck("username", &usernames).Error; err != nil {
		return nil, fmt.Errorf("failed to list usernames: %w", err)
	}
	return usernames, nil
}
