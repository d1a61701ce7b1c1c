package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/database"
	"bankledger/internal/models"
	"bankledger/internal/repositories"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount          = errors.New("amount must be a positive number with at most 2 decimal places")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrRecipientNotFound      = errors.New("recipient account not found")
	ErrSelfTransfer           = errors.New("cannot transfer to your own account")
	ErrTransientConflict      = errors.New("operation conflicted with a concurrent update")
	ErrStoreUnavailable       = errors.New("account store unavailable")
	ErrAccountNotFound        = errors.New("account not found")
	ErrUsernameTaken          = errors.New("username already taken")
	ErrOpeningDepositTooLow   = errors.New("opening deposit is below the minimum")
	ErrAccountNumberExhausted = errors.New("could not allocate a unique account number")

	errAccountNumberTaken = errors.New("account number taken")
)

// TransferStatus is the outcome of a transfer request that passed validation
type TransferStatus string

const (
	TransferStatusCommitted TransferStatus = "committed"
	TransferStatusDeclined  TransferStatus = "declined"
)

// Confirmation is the customer's answer to the transfer prompt
type Confirmation int

const (
	ConfirmationUnrecognized Confirmation = iota
	ConfirmationYes
	ConfirmationNo
)

// OperationResult is the committed outcome of a deposit or withdrawal
type OperationResult struct {
	Entry   models.LedgerEntry
	Balance decimal.Decimal
}

// TransferRequest carries a transfer as the customer entered it.
// Amount is parsed only after the recipient and self checks pass.
type TransferRequest struct {
	Sender                 string
	RecipientAccountNumber string
	Amount                 string
	Confirmation           string
}

// TransferPreview is what the customer confirms before a transfer commits
type TransferPreview struct {
	RecipientAccountNumber string
	RecipientName          string
	Amount                 decimal.Decimal
	BalanceAfter           decimal.Decimal
}

// TransferResult reports a committed or declined transfer
type TransferResult struct {
	Status         TransferStatus
	RecipientName  string
	SenderEntry    *models.LedgerEntry
	RecipientEntry *models.LedgerEntry
	SenderBalance  decimal.Decimal
}

// OpenAccountRequest holds a validated signup ready to be persisted
type OpenAccountRequest struct {
	FullName       string
	Username       string
	PasswordHash   string
	OpeningDeposit decimal.Decimal
}

// ReconciliationReport compares an account's stored balance with its replayed history
type ReconciliationReport struct {
	Username        string
	AccountNumber   string
	StoredBalance   decimal.Decimal
	ReplayedBalance decimal.Decimal
	EntryCount      int
	Consistent      bool
	Mismatch        *models.ReplayMismatch
}

// LedgerOption customises a LedgerService
type LedgerOption func(*LedgerService)

// WithAccountNumberGenerator replaces the random account number source
func WithAccountNumberGenerator(generate func(min, max int64) (string, error)) LedgerOption {
	return func(s *LedgerService) {
		s.generateNumber = generate
	}
}

// WithSleep replaces the backoff wait between attempts
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) LedgerOption {
	return func(s *LedgerService) {
		s.sleep = sleep
	}
}

// LedgerService keeps balances and the transaction log consistent.
// Every mutation runs as one unit of work, retried on transient conflicts.
type LedgerService struct {
	uow            repositories.UnitOfWorkInterface
	cfg            config.LedgerConfig
	breaker        *StoreBreaker
	auditLogger    AuditLoggerInterface
	metrics        MetricsRecorderInterface
	logger         *slog.Logger
	generateNumber func(min, max int64) (string, error)
	sleep          func(ctx context.Context, d time.Duration) error
}

// NewLedgerService creates the ledger engine
func NewLedgerService(
	uow repositories.UnitOfWorkInterface,
	cfg config.LedgerConfig,
	auditLogger AuditLoggerInterface,
	metrics MetricsRecorderInterface,
	logger *slog.Logger,
	opts ...LedgerOption,
) *LedgerService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.AccountNumberAttempts < 1 {
		cfg.AccountNumberAttempts = 1
	}
	if cfg.AccountNumberMin == 0 && cfg.AccountNumberMax == 0 {
		cfg.AccountNumberMin = models.AccountNumberMin
		cfg.AccountNumberMax = models.AccountNumberMax
	}

	s := &LedgerService{
		uow:            uow,
		cfg:            cfg,
		auditLogger:    auditLogger,
		metrics:        metrics,
		logger:         logger,
		generateNumber: models.GenerateAccountNumber,
		sleep:          sleepContext,
	}
	s.breaker = NewStoreBreaker("account-store", cfg, s.storeHealthy, func(from, to string) {
		s.auditLogger.LogCircuitBreakerStateChange(context.Background(), "account-store", from, to)
		s.metrics.IncrementCounter("circuit_breaker.state_change", map[string]string{"service": "account-store", "state": to})
	})

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ParseAmount parses a customer-entered amount
func ParseAmount(input string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := validateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// ParseConfirmation maps yes/y and no/n, ignoring case and surrounding space
func ParseConfirmation(input string) Confirmation {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "yes", "y":
		return ConfirmationYes
	case "no", "n":
		return ConfirmationNo
	default:
		return ConfirmationUnrecognized
	}
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(2)) {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(models.MaxAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// isBusinessError reports rejections that say nothing about store health
func isBusinessError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrRecipientNotFound) ||
		errors.Is(err, ErrSelfTransfer) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrUsernameTaken) ||
		errors.Is(err, errAccountNumberTaken)
}

func (s *LedgerService) storeHealthy(err error) bool {
	return err == nil || isBusinessError(err) || database.IsTransient(err)
}

// run executes fn as one unit of work with bounded retries on transient conflicts
func (s *LedgerService) run(ctx context.Context, operation string, fn func(ctx context.Context, stores repositories.Stores) error) error {
	var lastErr error

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		err := s.breaker.Execute(func() error {
			attemptCtx := ctx
			if s.cfg.OperationTimeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, s.cfg.OperationTimeout)
				defer cancel()
			}
			return s.uow.Do(attemptCtx, fn)
		})

		switch {
		case err == nil:
			return nil
		case isBusinessError(err):
			return err
		case errors.Is(err, ErrStoreUnavailable):
			return err
		case database.IsTransient(err):
			lastErr = err
		case database.IsUnavailable(err):
			s.logger.WarnContext(ctx, "ledger store unreachable", "operation", operation, "attempt", attempt, "error", err)
			s.metrics.IncrementCounter("ledger.store_failure", map[string]string{"operation": operation, "class": "unreachable"})
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		default:
			s.logger.ErrorContext(ctx, "unexpected ledger store failure", "operation", operation, "attempt", attempt, "error", err)
			s.metrics.IncrementCounter("ledger.store_failure", map[string]string{"operation": operation, "class": "unexpected"})
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		s.metrics.IncrementCounter("ledger.retry", map[string]string{"operation": operation})
		if attempt == s.cfg.MaxAttempts {
			break
		}

		backoff := s.cfg.RetryBaseDelay << (attempt - 1)
		s.auditLogger.LogRetryAttempt(ctx, operation, attempt, s.cfg.MaxAttempts, backoff.Milliseconds(), lastErr.Error())
		if err := s.sleep(ctx, backoff); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrTransientConflict, s.cfg.MaxAttempts, lastErr)
}

// observe records the outcome metrics of one engine operation
func (s *LedgerService) observe(operation string, start time.Time, err error) {
	status := "committed"
	if err != nil {
		status = errorReason(err)
	}
	s.metrics.IncrementCounter("ledger.operation", map[string]string{"operation": operation, "status": status})
	s.metrics.RecordProcessingTime("ledger."+operation, time.Since(start))
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrRecipientNotFound):
		return "recipient_not_found"
	case errors.Is(err, ErrSelfTransfer):
		return "self_transfer"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrTransientConflict):
		return "transient_conflict"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}

func lockOne(ctx context.Context, stores repositories.Stores, username string) (*models.Account, error) {
	account, err := stores.Accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	locked, err := stores.Accounts.LockByAccountNumbers(ctx, account.AccountNumber)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return locked[0], nil
}

// Deposit credits amount to the account and appends a deposit record
func (s *LedgerService) Deposit(ctx context.Context, username string, amount decimal.Decimal) (result *OperationResult, err error) {
	start := time.Now()
	defer func() { s.observe(models.EntryTypeDeposit, start, err) }()

	if err := validateAmount(amount); err != nil {
		s.auditLogger.LogOperationRejected(ctx, models.EntryTypeDeposit, username, err.Error())
		return nil, err
	}

	err = s.run(ctx, models.EntryTypeDeposit, func(ctx context.Context, stores repositories.Stores) error {
		account, err := lockOne(ctx, stores, username)
		if err != nil {
			return err
		}

		newBalance, err := account.Credit(amount)
		if err != nil {
			return ErrInvalidAmount
		}
		if newBalance.GreaterThan(models.MaxAmount) {
			return ErrInvalidAmount
		}

		if err := stores.Accounts.SetBalance(ctx, account.Username, account.Balance, newBalance); err != nil {
			return err
		}

		entry := &models.LedgerEntry{
			AccountUsername:  account.Username,
			AccountNumber:    account.AccountNumber,
			EntryType:        models.EntryTypeDeposit,
			Amount:           amount,
			ResultingBalance: newBalance,
		}
		if err := stores.Ledger.Append(ctx, entry); err != nil {
			return err
		}

		result = &OperationResult{Entry: *entry, Balance: newBalance}
		return nil
	})
	if err != nil {
		s.auditLogger.LogOperationRejected(ctx, models.EntryTypeDeposit, username, err.Error())
		return nil, err
	}

	s.auditLogger.LogBalanceChange(ctx, models.EntryTypeDeposit, username, result.Entry.Amount.StringFixed(2), result.Balance.StringFixed(2), result.Entry.ID)
	return result, nil
}

// Withdraw debits amount from the account and appends a withdrawal record.
// Sufficiency is checked against the locked row, so no partial effect is possible.
func (s *LedgerService) Withdraw(ctx context.Context, username string, amount decimal.Decimal) (result *OperationResult, err error) {
	start := time.Now()
	defer func() { s.observe(models.EntryTypeWithdrawal, start, err) }()

	if err := validateAmount(amount); err != nil {
		s.auditLogger.LogOperationRejected(ctx, models.EntryTypeWithdrawal, username, err.Error())
		return nil, err
	}

	err = s.run(ctx, models.EntryTypeWithdrawal, func(ctx context.Context, stores repositories.Stores) error {
		account, err := lockOne(ctx, stores, username)
		if err != nil {
			return err
		}

		newBalance, err := account.Debit(amount)
		if err != nil {
			if errors.Is(err, models.ErrInsufficientFunds) {
				return ErrInsufficientFunds
			}
			return ErrInvalidAmount
		}

		if err := stores.Accounts.SetBalance(ctx, account.Username, account.Balance, newBalance); err != nil {
			return err
		}

		entry := &models.LedgerEntry{
			AccountUsername:  account.Username,
			AccountNumber:    account.AccountNumber,
			EntryType:        models.EntryTypeWithdrawal,
			Amount:           amount,
			ResultingBalance: newBalance,
		}
		if err := stores.Ledger.Append(ctx, entry); err != nil {
			return err
		}

		result = &OperationResult{Entry: *entry, Balance: newBalance}
		return nil
	})
	if err != nil {
		s.auditLogger.LogOperationRejected(ctx, models.EntryTypeWithdrawal, username, err.Error())
		return nil, err
	}

	s.auditLogger.LogBalanceChange(ctx, models.EntryTypeWithdrawal, username, result.Entry.Amount.StringFixed(2), result.Balance.StringFixed(2), result.Entry.ID)
	return result, nil
}

// checkedTransfer holds the accounts and amount of a transfer that passed its preconditions
type checkedTransfer struct {
	sender    *models.Account
	recipient *models.Account
	amount    decimal.Decimal
}

// checkTransfer runs the transfer preconditions in order: recipient, self, amount, funds
func checkTransfer(ctx context.Context, stores repositories.Stores, sender, recipientNumber, amountInput string) (*checkedTransfer, error) {
	senderAccount, err := stores.Accounts.GetByUsername(ctx, sender)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	recipient, err := stores.Accounts.GetByAccountNumber(ctx, strings.TrimSpace(recipientNumber))
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}

	if recipient.AccountNumber == senderAccount.AccountNumber {
		return nil, ErrSelfTransfer
	}

	amount, err := ParseAmount(amountInput)
	if err != nil {
		return nil, err
	}

	if !senderAccount.CanWithdraw(amount) {
		return nil, ErrInsufficientFunds
	}

	return &checkedTransfer{sender: senderAccount, recipient: recipient, amount: amount}, nil
}

// PreviewTransfer validates a transfer without side effects and names the recipient
func (s *LedgerService) PreviewTransfer(ctx context.Context, sender, recipientAccountNumber, amount string) (*TransferPreview, error) {
	var preview *TransferPreview

	err := s.run(ctx, "transfer_preview", func(ctx context.Context, stores repositories.Stores) error {
		checked, err := checkTransfer(ctx, stores, sender, recipientAccountNumber, amount)
		if err != nil {
			return err
		}

		preview = &TransferPreview{
			RecipientAccountNumber: checked.recipient.AccountNumber,
			RecipientName:          checked.recipient.FullName,
			Amount:                 checked.amount,
			BalanceAfter:           checked.sender.Balance.Sub(checked.amount),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return preview, nil
}

// Transfer moves amount from the sender to the recipient account.
// A declined or unrecognized confirmation returns a declined result and no error.
func (s *LedgerService) Transfer(ctx context.Context, req TransferRequest) (result *TransferResult, err error) {
	start := time.Now()
	defer func() {
		if result != nil && result.Status == TransferStatusDeclined {
			s.metrics.IncrementCounter("ledger.operation", map[string]string{"operation": "transfer", "status": "declined"})
			return
		}
		s.observe("transfer", start, err)
	}()

	preview, err := s.PreviewTransfer(ctx, req.Sender, req.RecipientAccountNumber, req.Amount)
	if err != nil {
		s.auditLogger.LogOperationRejected(ctx, "transfer", req.Sender, err.Error())
		return nil, err
	}

	if ParseConfirmation(req.Confirmation) != ConfirmationYes {
		s.auditLogger.LogTransferDeclined(ctx, req.Sender, preview.RecipientAccountNumber, preview.Amount.StringFixed(2))
		return &TransferResult{Status: TransferStatusDeclined, RecipientName: preview.RecipientName}, nil
	}

	amount := preview.Amount
	err = s.run(ctx, "transfer", func(ctx context.Context, stores repositories.Stores) error {
		checked, err := checkTransfer(ctx, stores, req.Sender, req.RecipientAccountNumber, req.Amount)
		if err != nil {
			return err
		}

		locked, err := stores.Accounts.LockByAccountNumbers(ctx, checked.sender.AccountNumber, checked.recipient.AccountNumber)
		if err != nil {
			if errors.Is(err, repositories.ErrAccountNotFound) {
				return ErrRecipientNotFound
			}
			return err
		}

		var from, to *models.Account
		for _, account := range locked {
			switch account.AccountNumber {
			case checked.sender.AccountNumber:
				from = account
			case checked.recipient.AccountNumber:
				to = account
			}
		}
		if from == nil || to == nil {
			return ErrRecipientNotFound
		}

		// re-checked on the locked row
		newFromBalance, err := from.Debit(amount)
		if err != nil {
			if errors.Is(err, models.ErrInsufficientFunds) {
				return ErrInsufficientFunds
			}
			return ErrInvalidAmount
		}
		newToBalance, err := to.Credit(amount)
		if err != nil {
			return ErrInvalidAmount
		}
		if newToBalance.GreaterThan(models.MaxAmount) {
			return ErrInvalidAmount
		}

		if err := stores.Accounts.SetBalance(ctx, from.Username, from.Balance, newFromBalance); err != nil {
			return err
		}
		out := &models.LedgerEntry{
			AccountUsername:           from.Username,
			AccountNumber:             from.AccountNumber,
			EntryType:                 models.EntryTypeTransferOut,
			Amount:                    amount,
			ResultingBalance:          newFromBalance,
			CounterpartyAccountNumber: to.AccountNumber,
		}
		if err := stores.Ledger.Append(ctx, out); err != nil {
			return err
		}

		if err := stores.Accounts.SetBalance(ctx, to.Username, to.Balance, newToBalance); err != nil {
			return err
		}
		in := &models.LedgerEntry{
			AccountUsername:           to.Username,
			AccountNumber:             to.AccountNumber,
			EntryType:                 models.EntryTypeTransferIn,
			Amount:                    amount,
			ResultingBalance:          newToBalance,
			CounterpartyAccountNumber: from.AccountNumber,
		}
		if err := stores.Ledger.Append(ctx, in); err != nil {
			return err
		}

		result = &TransferResult{
			Status:         TransferStatusCommitted,
			RecipientName:  to.FullName,
			SenderEntry:    out,
			RecipientEntry: in,
			SenderBalance:  newFromBalance,
		}
		return nil
	})
	if err != nil {
		s.auditLogger.LogOperationRejected(ctx, "transfer", req.Sender, err.Error())
		return nil, err
	}

	s.metrics.RecordGauge("transfer_amount", amount.InexactFloat64(), nil)
	s.auditLogger.LogTransferCompleted(ctx, req.Sender, result.SenderEntry.AccountNumber, result.RecipientEntry.AccountNumber,
		amount.StringFixed(2), result.SenderEntry.ID, result.RecipientEntry.ID, time.Since(start).Milliseconds())

	return result, nil
}

// OpenAccount creates an account and records its opening deposit in one unit of work
func (s *LedgerService) OpenAccount(ctx context.Context, req OpenAccountRequest) (account *models.Account, err error) {
	start := time.Now()
	defer func() { s.observe("open_account", start, err) }()

	if req.OpeningDeposit.LessThan(s.cfg.MinOpeningDeposit) {
		return nil, ErrOpeningDepositTooLow
	}
	if !req.OpeningDeposit.IsZero() {
		if err := validateAmount(req.OpeningDeposit); err != nil {
			return nil, err
		}
	}

	for attempt := 1; attempt <= s.cfg.AccountNumberAttempts; attempt++ {
		number, genErr := s.generateNumber(s.cfg.AccountNumberMin, s.cfg.AccountNumberMax)
		if genErr != nil {
			return nil, fmt.Errorf("failed to generate account number: %w", genErr)
		}

		err = s.run(ctx, "open_account", func(ctx context.Context, stores repositories.Stores) error {
			taken, err := stores.Accounts.UsernameExists(ctx, req.Username)
			if err != nil {
				return err
			}
			if taken {
				return ErrUsernameTaken
			}

			exists, err := stores.Accounts.AccountNumberExists(ctx, number)
			if err != nil {
				return err
			}
			if exists {
				return errAccountNumberTaken
			}

			created := &models.Account{
				AccountNumber: number,
				FullName:      strings.TrimSpace(req.FullName),
				Username:      req.Username,
				PasswordHash:  req.PasswordHash,
				Balance:       req.OpeningDeposit,
			}
			if err := stores.Accounts.Create(ctx, created); err != nil {
				switch {
				case errors.Is(err, repositories.ErrUsernameExists):
					return ErrUsernameTaken
				case errors.Is(err, repositories.ErrAccountNumberExists):
					return errAccountNumberTaken
				}
				return err
			}

			if created.Balance.IsPositive() {
				if err := stores.Ledger.Append(ctx, &models.LedgerEntry{
					AccountUsername:  created.Username,
					AccountNumber:    created.AccountNumber,
					EntryType:        models.EntryTypeDeposit,
					Amount:           created.Balance,
					ResultingBalance: created.Balance,
				}); err != nil {
					return err
				}
			}

			account = created
			return nil
		})

		if errors.Is(err, errAccountNumberTaken) {
			s.logger.WarnContext(ctx, "account number collision", "attempt", attempt, "max_attempts", s.cfg.AccountNumberAttempts)
			continue
		}
		if err != nil {
			return nil, err
		}

		s.auditLogger.LogAccountOpened(ctx, account.Username, account.AccountNumber, account.Balance.StringFixed(2))
		return account, nil
	}

	return nil, ErrAccountNumberExhausted
}

// GetAccount returns the current account row
func (s *LedgerService) GetAccount(ctx context.Context, username string) (*models.Account, error) {
	var account *models.Account

	err := s.run(ctx, "get_account", func(ctx context.Context, stores repositories.Stores) error {
		found, err := stores.Accounts.GetByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, repositories.ErrAccountNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		account = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// History returns up to limit records after afterID, oldest first
func (s *LedgerService) History(ctx context.Context, username string, afterID uint64, limit int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry

	err := s.run(ctx, "history", func(ctx context.Context, stores repositories.Stores) error {
		if _, err := stores.Accounts.GetByUsername(ctx, username); err != nil {
			if errors.Is(err, repositories.ErrAccountNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		page, err := stores.Ledger.ListByUsernamePage(ctx, username, afterID, limit)
		if err != nil {
			return err
		}
		entries = page
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Reconcile replays the account's records and compares the result with the stored balance
func (s *LedgerService) Reconcile(ctx context.Context, username string) (*ReconciliationReport, error) {
	var report *ReconciliationReport

	err := s.run(ctx, "reconcile", func(ctx context.Context, stores repositories.Stores) error {
		account, err := stores.Accounts.GetByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, repositories.ErrAccountNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		entries, err := stores.Ledger.ListByUsername(ctx, username)
		if err != nil {
			return err
		}

		replayed, mismatch := models.VerifyReplay(entries)
		report = &ReconciliationReport{
			Username:        account.Username,
			AccountNumber:   account.AccountNumber,
			StoredBalance:   account.Balance,
			ReplayedBalance: replayed,
			EntryCount:      len(entries),
			Mismatch:        mismatch,
			Consistent:      mismatch == nil && replayed.Equal(account.Balance),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !report.Consistent {
		s.metrics.IncrementCounter("ledger.reconciliation.mismatch", nil)
		s.auditLogger.LogReplayMismatch(ctx, report.Username, report.StoredBalance.StringFixed(2), report.ReplayedBalance.StringFixed(2), report.Mismatch)
	}

	return report, nil
}

// ReconcileAll reconciles every account and returns the reports in username order
func (s *LedgerService) ReconcileAll(ctx context.Context) ([]*ReconciliationReport, error) {
	var usernames []string

	err := s.run(ctx, "reconcile", func(ctx context.Context, stores repositories.Stores) error {
		names, err := stores.Accounts.ListUsernames(ctx)
		if err != nil {
			return err
		}
		usernames = names
		return nil
	})
	if err != nil {
		return nil, err
	}

	reports := make([]*ReconciliationReport, 0, len(usernames))
	for _, username := range usernames {
		report, err := s.Reconcile(ctx, username)
		if err != nil {
			return reports, fmt.Errorf("reconcile %s: %w", username, err)
		}
		reports = append(reports, report)
	}

	return reports, nil
}

// BreakerState exposes the store breaker state for health reporting
func (s *LedgerService) BreakerState() string {
	return s.breaker.State()
}
