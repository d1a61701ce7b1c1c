package repositories

import (
	"context"
	"time"

	"bankledger/internal/models"

	"github.com/shopspring/decimal"
)

// AccountRepositoryInterface is the Account Store: identity and balance per account
type AccountRepositoryInterface interface {
	Create(ctx context.Context, account *models.Account) error
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByAccountNumber(ctx context.Context, accountNumber string) (*models.Account, error)
	LockByAccountNumbers(ctx context.Context, accountNumbers ...string) ([]*models.Account, error)
	SetBalance(ctx context.Context, username string, expected, newBalance decimal.Decimal) error
	AccountNumberExists(ctx context.Context, accountNumber string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	UpdateLoginState(ctx context.Context, account *models.Account) error
	ListUsernames(ctx context.Context) ([]string, error)
}

// LedgerRepositoryInterface is the append-only Ledger Log
type LedgerRepositoryInterface interface {
	Append(ctx context.Context, entry *models.LedgerEntry) error
	ListByUsername(ctx context.Context, username string) ([]models.LedgerEntry, error)
	ListByUsernamePage(ctx context.Context, username string, afterID uint64, limit int) ([]models.LedgerEntry, error)
}

// Stores are the transaction-scoped repositories handed to a unit of work
type Stores struct {
	Accounts AccountRepositoryInterface
	Ledger   LedgerRepositoryInterface
}

// UnitOfWorkInterface runs fn in one database transaction.
// Every write made through stores commits together or not at all.
type UnitOfWorkInterface interface {
	Do(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}

// AuditLogRepositoryInterface defines the contract for audit log repository operations
type AuditLogRepositoryInterface interface {
	Create(ctx context.Context, log *models.AuditLog) error
	DeleteOlderThan(ctx context.Context, duration time.Duration) (int64, error)
}

// BlacklistedTokenRepositoryInterface defines the contract for blacklisted token repository operations
type BlacklistedTokenRepositoryInterface interface {
	Create(ctx context.Context, token *models.BlacklistedToken) error
	GetByJTI(ctx context.Context, jti string) (*models.BlacklistedToken, error)
	DeleteExpired(ctx context.Context) (int64, error)
}
