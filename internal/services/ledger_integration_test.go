package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/database"
	"bankledger/internal/models"
	"bankledger/internal/repositories"
	"bankledger/internal/services"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// LedgerIntegrationSuite runs the engine against an in-memory SQLite store
type LedgerIntegrationSuite struct {
	suite.Suite
	ctx     context.Context
	db      *database.DB
	service *services.LedgerService
}

func (s *LedgerIntegrationSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = database.SetupTestDB(s.T())
	s.service = newIntegrationService(s.db, 3)
}

func newIntegrationService(db *database.DB, maxAttempts int) *services.LedgerService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.LedgerConfig{
		MaxAttempts:           maxAttempts,
		RetryBaseDelay:        time.Millisecond,
		OperationTimeout:      5 * time.Second,
		BreakerMaxRequests:    1,
		BreakerInterval:       time.Minute,
		BreakerOpenTimeout:    time.Minute,
		BreakerFailureTrip:    100,
		MinOpeningDeposit:     decimal.NewFromInt(2000),
		AccountNumberMin:      models.AccountNumberMin,
		AccountNumberMax:      models.AccountNumberMax,
		AccountNumberAttempts: 10,
	}

	return services.NewLedgerService(
		repositories.NewUnitOfWork(db.DB, db.TxOptions()),
		cfg,
		services.NewAuditLogger(logger),
		services.NewPrometheusMetrics(prometheus.NewRegistry()),
		logger,
	)
}

func TestLedgerIntegrationSuite(t *testing.T) {
	suite.Run(t, new(LedgerIntegrationSuite))
}

func (s *LedgerIntegrationSuite) balance(username string) string {
	account, err := s.service.GetAccount(s.ctx, username)
	s.Require().NoError(err)
	return account.Balance.StringFixed(2)
}

func (s *LedgerIntegrationSuite) entryCount(username string) int {
	entries, err := repositories.NewLedgerRepository(s.db.DB).ListByUsername(s.ctx, username)
	s.Require().NoError(err)
	return len(entries)
}

func (s *LedgerIntegrationSuite) totalBalance() decimal.Decimal {
	var accounts []models.Account
	s.Require().NoError(s.db.Find(&accounts).Error)
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}

func (s *LedgerIntegrationSuite) assertConsistent(usernames ...string) {
	for _, username := range usernames {
		report, err := s.service.Reconcile(s.ctx, username)
		s.Require().NoError(err)
		s.True(report.Consistent, "%s: stored %s replayed %s", username, report.StoredBalance, report.ReplayedBalance)
	}
}

func (s *LedgerIntegrationSuite) TestScenario() {
	database.CreateTestAccount(s.T(), s.db, "alice", "1460676351", decimal.NewFromInt(5000))
	database.CreateTestAccount(s.T(), s.db, "bob", "2000000000", decimal.NewFromInt(2000))

	_, err := s.service.Withdraw(s.ctx, "alice", decimal.NewFromInt(6000))
	s.ErrorIs(err, services.ErrInsufficientFunds)
	s.Equal("5000.00", s.balance("alice"))
	s.Equal(1, s.entryCount("alice"))

	result, err := s.service.Withdraw(s.ctx, "alice", decimal.NewFromInt(1500))
	s.Require().NoError(err)
	s.Equal("3500.00", result.Balance.StringFixed(2))

	transfer, err := s.service.Transfer(s.ctx, services.TransferRequest{
		Sender:                 "alice",
		RecipientAccountNumber: "2000000000",
		Amount:                 "1000",
		Confirmation:           "yes",
	})
	s.Require().NoError(err)
	s.Equal(services.TransferStatusCommitted, transfer.Status)

	s.Equal("2500.00", s.balance("alice"))
	s.Equal("3000.00", s.balance("bob"))

	history, err := s.service.History(s.ctx, "alice", 0, 10)
	s.Require().NoError(err)
	s.Require().Len(history, 3)
	s.Equal(models.EntryTypeDeposit, history[0].EntryType)
	s.Equal(models.EntryTypeWithdrawal, history[1].EntryType)
	s.Equal(models.EntryTypeTransferOut, history[2].EntryType)
	s.Equal("2500.00", history[2].ResultingBalance.StringFixed(2))

	s.assertConsistent("alice", "bob")
}

func (s *LedgerIntegrationSuite) TestDeclinedTransferLeavesStateUntouched() {
	database.CreateTestAccount(s.T(), s.db, "alice", "1460676351", decimal.NewFromInt(5000))
	database.CreateTestAccount(s.T(), s.db, "bob", "2000000000", decimal.NewFromInt(2000))

	for _, answer := range []string{"no", "whatever"} {
		result, err := s.service.Transfer(s.ctx, services.TransferRequest{
			Sender:                 "alice",
			RecipientAccountNumber: "2000000000",
			Amount:                 "1000",
			Confirmation:           answer,
		})
		s.Require().NoError(err)
		s.Equal(services.TransferStatusDeclined, result.Status)
	}

	s.Equal("5000.00", s.balance("alice"))
	s.Equal("2000.00", s.balance("bob"))
	s.Equal(1, s.entryCount("alice"))
	s.Equal(1, s.entryCount("bob"))
}

func (s *LedgerIntegrationSuite) TestRejectionsAreIdempotent() {
	database.CreateTestAccount(s.T(), s.db, "alice", "1460676351", decimal.NewFromInt(100))
	database.CreateTestAccount(s.T(), s.db, "bob", "2000000000", decimal.NewFromInt(100))

	attempts := []func() error{
		func() error {
			_, err := s.service.Withdraw(s.ctx, "alice", decimal.NewFromInt(101))
			return err
		},
		func() error {
			_, err := s.service.Deposit(s.ctx, "alice", decimal.Zero)
			return err
		},
		func() error {
			_, err := s.service.Transfer(s.ctx, services.TransferRequest{
				Sender: "alice", RecipientAccountNumber: "3000000000", Amount: "1", Confirmation: "yes",
			})
			return err
		},
		func() error {
			_, err := s.service.Transfer(s.ctx, services.TransferRequest{
				Sender: "alice", RecipientAccountNumber: "1460676351", Amount: "1", Confirmation: "yes",
			})
			return err
		},
		func() error {
			_, err := s.service.Transfer(s.ctx, services.TransferRequest{
				Sender: "alice", RecipientAccountNumber: "2000000000", Amount: "500", Confirmation: "yes",
			})
			return err
		},
	}

	for i := 0; i < 3; i++ {
		for _, attempt := range attempts {
			s.Error(attempt())
		}
	}

	s.Equal("100.00", s.balance("alice"))
	s.Equal("100.00", s.balance("bob"))
	s.Equal(1, s.entryCount("alice"))
	s.Equal(1, s.entryCount("bob"))
}

func (s *LedgerIntegrationSuite) TestTransferAtomicUnderFailure() {
	database.CreateTestAccount(s.T(), s.db, "alice", "1460676351", decimal.NewFromInt(5000))
	database.CreateTestAccount(s.T(), s.db, "bob", "2000000000", decimal.NewFromInt(2000))

	// fail the credit side after the debit side has been written
	err := s.db.Callback().Create().Before("gorm:create").Register("test:fail_transfer_in", func(tx *gorm.DB) {
		if entry, ok := tx.Statement.Dest.(*models.LedgerEntry); ok && entry.EntryType == models.EntryTypeTransferIn {
			_ = tx.AddError(errors.New("simulated write failure"))
		}
	})
	s.Require().NoError(err)

	_, err = s.service.Transfer(s.ctx, services.TransferRequest{
		Sender:                 "alice",
		RecipientAccountNumber: "2000000000",
		Amount:                 "1000",
		Confirmation:           "yes",
	})
	s.ErrorIs(err, services.ErrStoreUnavailable)

	s.Equal("5000.00", s.balance("alice"))
	s.Equal("2000.00", s.balance("bob"))
	s.Equal(1, s.entryCount("alice"))
	s.Equal(1, s.entryCount("bob"))
	s.assertConsistent("alice", "bob")
}

// oppositeTransfers runs rounds of alice->bob 10 and bob->alice 7 in parallel
// and returns how many of each committed. Any failure must be a retryable conflict.
func (s *LedgerIntegrationSuite) oppositeTransfers(rounds int) (aliceSent, bobSent int) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	send := func(sender, recipient, amount string, committed *int) {
		defer wg.Done()
		result, err := s.service.Transfer(s.ctx, services.TransferRequest{
			Sender: sender, RecipientAccountNumber: recipient, Amount: amount, Confirmation: "y",
		})

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			s.ErrorIs(err, services.ErrTransientConflict)
			return
		}
		s.Equal(services.TransferStatusCommitted, result.Status)
		*committed++
	}

	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go send("alice", "2000000000", "10", &aliceSent)
		go send("bob", "1460676351", "7", &bobSent)
	}
	wg.Wait()

	return aliceSent, bobSent
}

func (s *LedgerIntegrationSuite) assertTransfersApplied(aliceSent, bobSent int) {
	alice := decimal.NewFromInt(5000 - 10*int64(aliceSent) + 7*int64(bobSent))
	bob := decimal.NewFromInt(5000 + 10*int64(aliceSent) - 7*int64(bobSent))

	s.Equal(alice.StringFixed(2), s.balance("alice"))
	s.Equal(bob.StringFixed(2), s.balance("bob"))
	s.Equal(1+aliceSent+bobSent, s.entryCount("alice"))
	s.Equal(1+aliceSent+bobSent, s.entryCount("bob"))
	s.True(decimal.NewFromInt(10000).Equal(s.totalBalance()), "total is %s", s.totalBalance())
	s.assertConsistent("alice", "bob")
}

func (s *LedgerIntegrationSuite) TestConcurrentOppositeTransfersConserveTotal() {
	database.CreateTestAccount(s.T(), s.db, "alice", "1460676351", decimal.NewFromInt(5000))
	database.CreateTestAccount(s.T(), s.db, "bob", "2000000000", decimal.NewFromInt(5000))

	aliceSent, bobSent := s.oppositeTransfers(20)

	// a single pooled connection serializes every unit of work
	s.Equal(20, aliceSent)
	s.Equal(20, bobSent)
	s.assertTransfersApplied(aliceSent, bobSent)
}

func (s *LedgerIntegrationSuite) TestConcurrentTransfersUnderLockContention() {
	s.db = database.SetupFileTestDB(s.T(), 8)
	s.service = newIntegrationService(s.db, 10)
	database.CreateTestAccount(s.T(), s.db, "alice", "1460676351", decimal.NewFromInt(5000))
	database.CreateTestAccount(s.T(), s.db, "bob", "2000000000", decimal.NewFromInt(5000))

	aliceSent, bobSent := s.oppositeTransfers(20)

	s.Positive(aliceSent+bobSent, "no transfer committed")
	s.assertTransfersApplied(aliceSent, bobSent)
}

func (s *LedgerIntegrationSuite) TestOpenAccountRecordsOpeningDeposit() {
	username := gofakeit.LetterN(8)

	account, err := s.service.OpenAccount(s.ctx, services.OpenAccountRequest{
		FullName:       gofakeit.FirstName() + " " + gofakeit.LastName(),
		Username:       username,
		PasswordHash:   "hash",
		OpeningDeposit: decimal.RequireFromString("2000.50"),
	})
	s.Require().NoError(err)
	s.True(models.ValidateAccountNumber(account.AccountNumber))

	s.Equal("2000.50", s.balance(username))
	s.Equal(1, s.entryCount(username))
	s.assertConsistent(username)

	_, err = s.service.OpenAccount(s.ctx, services.OpenAccountRequest{
		FullName: "Someone Else", Username: username, PasswordHash: "hash", OpeningDeposit: decimal.NewFromInt(3000),
	})
	s.ErrorIs(err, services.ErrUsernameTaken)
}

func (s *LedgerIntegrationSuite) TestReconcileAllDetectsTampering() {
	database.CreateTestAccount(s.T(), s.db, "alice", "1460676351", decimal.NewFromInt(5000))
	database.CreateTestAccount(s.T(), s.db, "bob", "2000000000", decimal.NewFromInt(2000))

	s.Require().NoError(s.db.Exec("UPDATE accounts SET balance = 1 WHERE username = ?", "bob").Error)

	reports, err := s.service.ReconcileAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(reports, 2)
	s.Equal("alice", reports[0].Username)
	s.True(reports[0].Consistent)
	s.Equal("bob", reports[1].Username)
	s.False(reports[1].Consistent)
}
