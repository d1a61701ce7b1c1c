package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bankledger/internal/dto"
	"bankledger/internal/models"
	"bankledger/internal/services"
	"bankledger/internal/services/service_mocks"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

func TestAccountHandler(t *testing.T) {
	suite.Run(t, new(AccountHandlerSuite))
}

type AccountHandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	ledger  *service_mocks.MockLedgerServiceInterface
	handler *AccountHandler
	e       *echo.Echo
}

func (s *AccountHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ledger = service_mocks.NewMockLedgerServiceInterface(s.ctrl)
	s.handler = NewAccountHandler(s.ledger)
	s.e = echo.New()
	s.e.Validator = NewValidator()
}

func (s *AccountHandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

// authedContext builds a request context as RequireAuth leaves it
func (s *AccountHandlerSuite) authedContext(method, target string, body interface{}) (echo.Context, *httptest.ResponseRecorder) {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}

	req := httptest.NewRequest(method, target, bytes.NewBuffer(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := s.e.NewContext(req, rec)
	c.Set("username", "alice")
	c.Set(TraceIDContextKey, "trace-123")
	return c, rec
}

func (s *AccountHandlerSuite) decodeError(rec *httptest.ResponseRecorder) ErrorResponse {
	var errorResp ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &errorResp))
	return errorResp
}

func ledgerEntry(id uint64, entryType string, amount, resulting string) models.LedgerEntry {
	return models.LedgerEntry{
		ID:               id,
		Reference:        "TXN-test",
		AccountUsername:  "alice",
		AccountNumber:    "1460676351",
		EntryType:        entryType,
		Amount:           decimal.RequireFromString(amount),
		ResultingBalance: decimal.RequireFromString(resulting),
		CreatedAt:        time.Now().UTC(),
	}
}

func (s *AccountHandlerSuite) TestMissingSession() {
	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	rec := httptest.NewRecorder()
	c := s.e.NewContext(req, rec)

	s.NoError(s.handler.GetAccount(c))
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal("AUTH_002", s.decodeError(rec).Error.Code)
}

func (s *AccountHandlerSuite) TestGetAccountAndBalance() {
	account := &models.Account{
		AccountNumber: "1460676351",
		FullName:      "Alice Smith",
		Username:      "alice",
		Balance:       decimal.RequireFromString("3500"),
	}
	s.ledger.EXPECT().GetAccount(gomock.Any(), "alice").Return(account, nil).Times(2)

	c, rec := s.authedContext(http.MethodGet, "/account", nil)
	s.NoError(s.handler.GetAccount(c))
	s.Equal(http.StatusOK, rec.Code)

	var details dto.AccountResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &details))
	s.Equal("Alice Smith", details.FullName)
	s.Equal("3500.00", details.Balance)

	c, rec = s.authedContext(http.MethodGet, "/account/balance", nil)
	s.NoError(s.handler.GetBalance(c))
	s.Equal(http.StatusOK, rec.Code)

	var balance dto.BalanceResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &balance))
	s.Equal("3500.00", balance.Balance)
}

func (s *AccountHandlerSuite) TestDeposit() {
	s.Run("success", func() {
		s.ledger.EXPECT().
			Deposit(gomock.Any(), "alice", decimal.RequireFromString("250.50")).
			Return(&services.OperationResult{
				Entry:   ledgerEntry(7, models.EntryTypeDeposit, "250.50", "3750.50"),
				Balance: decimal.RequireFromString("3750.50"),
			}, nil)

		c, rec := s.authedContext(http.MethodPost, "/account/deposits", map[string]string{"amount": "250.50"})
		s.NoError(s.handler.Deposit(c))
		s.Equal(http.StatusCreated, rec.Code)

		var response dto.OperationResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &response))
		s.Equal("3750.50", response.Balance)
		s.Equal(models.EntryTypeDeposit, response.Entry.Type)
		s.Equal(uint64(7), response.Entry.ID)
	})

	s.Run("invalid amount never reaches the engine", func() {
		for _, amount := range []string{"-5", "0", "abc", "1.001"} {
			c, rec := s.authedContext(http.MethodPost, "/account/deposits", map[string]string{"amount": amount})
			s.NoError(s.handler.Deposit(c))
			s.Equal(http.StatusBadRequest, rec.Code, amount)
			s.Equal("TRANSACTION_002", s.decodeError(rec).Error.Code, amount)
		}
	})

	s.Run("transient conflict is retryable", func() {
		s.ledger.EXPECT().
			Deposit(gomock.Any(), "alice", gomock.Any()).
			Return(nil, services.ErrTransientConflict)

		c, rec := s.authedContext(http.MethodPost, "/account/deposits", map[string]string{"amount": "10"})
		s.NoError(s.handler.Deposit(c))
		s.Equal(http.StatusConflict, rec.Code)

		errorResp := s.decodeError(rec)
		s.Equal("LEDGER_001", errorResp.Error.Code)
		s.True(errorResp.Error.Retryable)
		s.Equal("trace-123", errorResp.Error.TraceID)
	})
}

func (s *AccountHandlerSuite) TestWithdraw() {
	s.Run("insufficient funds", func() {
		s.ledger.EXPECT().
			Withdraw(gomock.Any(), "alice", decimal.RequireFromString("6000")).
			Return(nil, services.ErrInsufficientFunds)

		c, rec := s.authedContext(http.MethodPost, "/account/withdrawals", map[string]string{"amount": "6000"})
		s.NoError(s.handler.Withdraw(c))
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
		s.Equal("TRANSACTION_003", s.decodeError(rec).Error.Code)
	})

	s.Run("store unavailable", func() {
		s.ledger.EXPECT().
			Withdraw(gomock.Any(), "alice", gomock.Any()).
			Return(nil, services.ErrStoreUnavailable)

		c, rec := s.authedContext(http.MethodPost, "/account/withdrawals", map[string]string{"amount": "1500"})
		s.NoError(s.handler.Withdraw(c))
		s.Equal(http.StatusServiceUnavailable, rec.Code)
		s.Equal("SYSTEM_003", s.decodeError(rec).Error.Code)
	})

	s.Run("missing amount", func() {
		c, _ := s.authedContext(http.MethodPost, "/account/withdrawals", map[string]string{})
		s.Error(s.handler.Withdraw(c))
	})
}

func (s *AccountHandlerSuite) TestPreviewTransfer() {
	s.ledger.EXPECT().
		PreviewTransfer(gomock.Any(), "alice", "2000000000", "1000").
		Return(&services.TransferPreview{
			RecipientAccountNumber: "2000000000",
			RecipientName:          "Bob Jones",
			Amount:                 decimal.RequireFromString("1000"),
			BalanceAfter:           decimal.RequireFromString("2500"),
		}, nil)

	c, rec := s.authedContext(http.MethodPost, "/account/transfers/preview", map[string]string{
		"recipient_account_number": "2000000000",
		"amount":                   "1000",
	})
	s.NoError(s.handler.PreviewTransfer(c))
	s.Equal(http.StatusOK, rec.Code)

	var response dto.TransferPreviewResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &response))
	s.Equal("Bob Jones", response.RecipientName)
	s.Equal("2500.00", response.BalanceAfter)
}

func (s *AccountHandlerSuite) TestTransfer() {
	body := map[string]string{
		"recipient_account_number": "2000000000",
		"amount":                   "1000",
		"confirmation":             "yes",
	}

	s.Run("committed", func() {
		out := ledgerEntry(9, models.EntryTypeTransferOut, "1000", "2500")
		out.CounterpartyAccountNumber = "2000000000"

		s.ledger.EXPECT().
			Transfer(gomock.Any(), services.TransferRequest{
				Sender:                 "alice",
				RecipientAccountNumber: "2000000000",
				Amount:                 "1000",
				Confirmation:           "yes",
			}).
			Return(&services.TransferResult{
				Status:        services.TransferStatusCommitted,
				RecipientName: "Bob Jones",
				SenderEntry:   &out,
				SenderBalance: decimal.RequireFromString("2500"),
			}, nil)

		c, rec := s.authedContext(http.MethodPost, "/account/transfers", body)
		s.NoError(s.handler.Transfer(c))
		s.Equal(http.StatusCreated, rec.Code)

		var response dto.TransferResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &response))
		s.Equal("committed", response.Status)
		s.Equal("2500.00", response.Balance)
		s.Require().NotNil(response.Entry)
		s.Equal("2000000000", response.Entry.CounterpartyAccountNumber)
	})

	s.Run("declined", func() {
		s.ledger.EXPECT().
			Transfer(gomock.Any(), gomock.Any()).
			Return(&services.TransferResult{
				Status:        services.TransferStatusDeclined,
				RecipientName: "Bob Jones",
			}, nil)

		declined := map[string]string{
			"recipient_account_number": "2000000000",
			"amount":                   "1000",
			"confirmation":             "maybe",
		}
		c, rec := s.authedContext(http.MethodPost, "/account/transfers", declined)
		s.NoError(s.handler.Transfer(c))
		s.Equal(http.StatusOK, rec.Code)

		var response dto.TransferResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &response))
		s.Equal("declined", response.Status)
		s.Nil(response.Entry)
	})

	s.Run("recipient not found", func() {
		s.ledger.EXPECT().
			Transfer(gomock.Any(), gomock.Any()).
			Return(nil, services.ErrRecipientNotFound)

		c, rec := s.authedContext(http.MethodPost, "/account/transfers", body)
		s.NoError(s.handler.Transfer(c))
		s.Equal(http.StatusNotFound, rec.Code)
		s.Equal("TRANSFER_004", s.decodeError(rec).Error.Code)
	})

	s.Run("self transfer", func() {
		s.ledger.EXPECT().
			Transfer(gomock.Any(), gomock.Any()).
			Return(nil, services.ErrSelfTransfer)

		c, rec := s.authedContext(http.MethodPost, "/account/transfers", body)
		s.NoError(s.handler.Transfer(c))
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("TRANSFER_001", s.decodeError(rec).Error.Code)
	})

	s.Run("malformed amount is left to the ledger", func() {
		s.ledger.EXPECT().
			Transfer(gomock.Any(), services.TransferRequest{
				Sender:                 "alice",
				RecipientAccountNumber: "9999999999",
				Amount:                 "abc",
				Confirmation:           "yes",
			}).
			Return(nil, services.ErrRecipientNotFound)

		c, rec := s.authedContext(http.MethodPost, "/account/transfers", map[string]string{
			"recipient_account_number": "9999999999",
			"amount":                   "abc",
			"confirmation":             "yes",
		})
		s.NoError(s.handler.Transfer(c))
		s.Equal(http.StatusNotFound, rec.Code)
		s.Equal("TRANSFER_004", s.decodeError(rec).Error.Code)
	})
}

func (s *AccountHandlerSuite) TestListTransactions() {
	s.Run("first page with more", func() {
		entries := []models.LedgerEntry{
			ledgerEntry(1, models.EntryTypeDeposit, "5000", "5000"),
			ledgerEntry(2, models.EntryTypeWithdrawal, "1500", "3500"),
			ledgerEntry(3, models.EntryTypeDeposit, "10", "3510"),
		}
		s.ledger.EXPECT().History(gomock.Any(), "alice", uint64(0), 3).Return(entries, nil)

		c, rec := s.authedContext(http.MethodGet, "/account/transactions?limit=2", nil)
		s.NoError(s.handler.ListTransactions(c))
		s.Equal(http.StatusOK, rec.Code)

		var response dto.TransactionHistoryResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &response))
		s.Len(response.Transactions, 2)
		s.True(response.Pagination.HasMore)
		s.Equal("2", response.Pagination.NextCursor)
		s.Equal("3500.00", response.Transactions[1].ResultingBalance)
	})

	s.Run("cursor and capped limit", func() {
		s.ledger.EXPECT().History(gomock.Any(), "alice", uint64(2), maxPageLimit+1).Return(nil, nil)

		c, rec := s.authedContext(http.MethodGet, "/account/transactions?cursor=2&limit=500", nil)
		s.NoError(s.handler.ListTransactions(c))
		s.Equal(http.StatusOK, rec.Code)

		var response dto.TransactionHistoryResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &response))
		s.Empty(response.Transactions)
		s.False(response.Pagination.HasMore)
		s.Equal(maxPageLimit, response.Pagination.Limit)
	})

	s.Run("invalid cursor", func() {
		c, rec := s.authedContext(http.MethodGet, "/account/transactions?cursor=abc", nil)
		s.NoError(s.handler.ListTransactions(c))
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("TRANSACTION_004", s.decodeError(rec).Error.Code)
	})

	s.Run("invalid limit", func() {
		c, rec := s.authedContext(http.MethodGet, "/account/transactions?limit=0", nil)
		s.NoError(s.handler.ListTransactions(c))
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("VALIDATION_001", s.decodeError(rec).Error.Code)
	})
}

func (s *AccountHandlerSuite) TestReconcile() {
	s.ledger.EXPECT().Reconcile(gomock.Any(), "alice").Return(&services.ReconciliationReport{
		Username:        "alice",
		AccountNumber:   "1460676351",
		StoredBalance:   decimal.RequireFromString("2500"),
		ReplayedBalance: decimal.RequireFromString("2400"),
		EntryCount:      3,
		Consistent:      false,
		Mismatch:        &models.ReplayMismatch{EntryID: 3},
	}, nil)

	c, rec := s.authedContext(http.MethodGet, "/account/reconciliation", nil)
	s.NoError(s.handler.Reconcile(c))
	s.Equal(http.StatusOK, rec.Code)

	var response dto.ReconciliationResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &response))
	s.False(response.Consistent)
	s.Equal(uint64(3), response.MismatchEntryID)
	s.Equal("2400.00", response.ReplayedBalance)
}
