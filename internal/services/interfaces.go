package services

import (
	"context"
	"time"

	"bankledger/internal/dto"
	"bankledger/internal/models"

	"github.com/shopspring/decimal"
)

type contextKey string

// CorrelationIDKey carries the request trace ID through context.Context
const CorrelationIDKey contextKey = "correlation_id"

// LedgerServiceInterface is the ledger engine as seen by the HTTP layer
type LedgerServiceInterface interface {
	Deposit(ctx context.Context, username string, amount decimal.Decimal) (*OperationResult, error)
	Withdraw(ctx context.Context, username string, amount decimal.Decimal) (*OperationResult, error)
	PreviewTransfer(ctx context.Context, sender, recipientAccountNumber, amount string) (*TransferPreview, error)
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	OpenAccount(ctx context.Context, req OpenAccountRequest) (*models.Account, error)
	GetAccount(ctx context.Context, username string) (*models.Account, error)
	History(ctx context.Context, username string, afterID uint64, limit int) ([]models.LedgerEntry, error)
	Reconcile(ctx context.Context, username string) (*ReconciliationReport, error)
	ReconcileAll(ctx context.Context) ([]*ReconciliationReport, error)
	BreakerState() string
}

type MetricsRecorderInterface interface {
	IncrementCounter(name string, tags map[string]string)
	RecordProcessingTime(name string, duration time.Duration)
	RecordGauge(name string, value float64, tags map[string]string)
}

type AuthServiceInterface interface {
	Signup(ctx context.Context, req *dto.SignupRequest, ipAddress, userAgent string) (*models.Account, error)
	Login(ctx context.Context, req *dto.LoginRequest, ipAddress, userAgent string) (*dto.TokenResponse, error)
	Logout(ctx context.Context, accessToken, ipAddress, userAgent string) error
}

type TokenServiceInterface interface {
	GenerateAccessToken(account *models.Account) (string, time.Time, error)
	ValidateAccessToken(tokenString string) (*models.CustomClaims, error)
	ExtractTokenFromHeader(authHeader string) (string, error)
	GetJTI(tokenString string) (string, error)
	GetTokenExpiry(tokenString string) (time.Time, error)
}

type PasswordServiceInterface interface {
	ValidatePassword(password string) error
	HashPassword(password string) (string, error)
	ComparePassword(password, hash string) bool
}

type AuditLoggerInterface interface {
	LogBalanceChange(ctx context.Context, operation, username, amount, newBalance string, entryID uint64)
	LogOperationRejected(ctx context.Context, operation, username, reason string)
	LogTransferDeclined(ctx context.Context, sender, recipientAccountNumber, amount string)
	LogTransferCompleted(ctx context.Context, sender, fromAccountNumber, toAccountNumber, amount string, outEntryID, inEntryID uint64, durationMs int64)
	LogAccountOpened(ctx context.Context, username, accountNumber, openingDeposit string)
	LogReplayMismatch(ctx context.Context, username, storedBalance, replayedBalance string, mismatch *models.ReplayMismatch)
	LogRetryAttempt(ctx context.Context, operation string, attempt, maxAttempts int, backoffMs int64, errorMsg string)
	LogCircuitBreakerStateChange(ctx context.Context, service string, oldState, newState string)
}
