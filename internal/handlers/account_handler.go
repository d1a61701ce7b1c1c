package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"bankledger/internal/dto"
	"bankledger/internal/errors"
	"bankledger/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 50
)

// AccountHandler serves the signed-in customer's account and ledger operations
type AccountHandler struct {
	ledger services.LedgerServiceInterface
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(ledger services.LedgerServiceInterface) *AccountHandler {
	return &AccountHandler{ledger: ledger}
}

// GetAccount returns the account details
// @Summary Account details
// @Tags Account
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.AccountResponse
// @Failure 401 {object} errors.ErrorResponse "AUTH_002 - Missing or invalid authentication"
// @Failure 404 {object} errors.ErrorResponse "ACCOUNT_001 - Account not found"
// @Failure 503 {object} errors.ErrorResponse "SYSTEM_003 - Store unavailable"
// @Router /account [get]
func (h *AccountHandler) GetAccount(c echo.Context) error {
	username, err := getUsernameFromContext(c)
	if err != nil {
		return SendError(c, errors.AuthMissingToken)
	}

	account, err := h.ledger.GetAccount(c.Request().Context(), username)
	if err != nil {
		return SendLedgerError(c, err)
	}

	return c.JSON(http.StatusOK, dto.ToAccountResponse(account))
}

// GetBalance returns the current balance
// @Summary Check balance
// @Tags Account
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.BalanceResponse
// @Failure 401 {object} errors.ErrorResponse "AUTH_002 - Missing or invalid authentication"
// @Failure 404 {object} errors.ErrorResponse "ACCOUNT_001 - Account not found"
// @Router /account/balance [get]
func (h *AccountHandler) GetBalance(c echo.Context) error {
	username, err := getUsernameFromContext(c)
	if err != nil {
		return SendError(c, errors.AuthMissingToken)
	}

	account, err := h.ledger.GetAccount(c.Request().Context(), username)
	if err != nil {
		return SendLedgerError(c, err)
	}

	return c.JSON(http.StatusOK, dto.BalanceResponse{
		AccountNumber: account.AccountNumber,
		Balance:       account.Balance.StringFixed(2),
	})
}

// ListTransactions returns the transaction history oldest first
// @Summary Transaction history
// @Description Cursor paginated history. The cursor is the id of the last entry of the previous page.
// @Tags Account
// @Security BearerAuth
// @Produce json
// @Param cursor query string false "Pagination cursor"
// @Param limit query int false "Page size (default 20, max 50)"
// @Success 200 {object} dto.TransactionHistoryResponse
// @Failure 400 {object} errors.ErrorResponse "VALIDATION_001 or TRANSACTION_004 - Invalid parameters"
// @Failure 401 {object} errors.ErrorResponse "AUTH_002 - Missing or invalid authentication"
// @Router /account/transactions [get]
func (h *AccountHandler) ListTransactions(c echo.Context) error {
	username, err := getUsernameFromContext(c)
	if err != nil {
		return SendError(c, errors.AuthMissingToken)
	}

	pagination, err := parsePaginationParams(c)
	if err != nil {
		return SendError(c, errors.ValidationGeneral, errors.WithDetails(err.Error()))
	}

	var afterID uint64
	if pagination.Cursor != "" {
		afterID, err = strconv.ParseUint(pagination.Cursor, 10, 64)
		if err != nil {
			return SendError(c, errors.TransactionInvalidCursor)
		}
	}

	entries, err := h.ledger.History(c.Request().Context(), username, afterID, pagination.Limit+1)
	if err != nil {
		return SendLedgerError(c, err)
	}

	return c.JSON(http.StatusOK, dto.NewTransactionHistoryResponse(entries, pagination.Limit))
}

// Reconcile replays the account's log against its stored balance
// @Summary Reconciliation report
// @Tags Account
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.ReconciliationResponse
// @Failure 401 {object} errors.ErrorResponse "AUTH_002 - Missing or invalid authentication"
// @Router /account/reconciliation [get]
func (h *AccountHandler) Reconcile(c echo.Context) error {
	username, err := getUsernameFromContext(c)
	if err != nil {
		return SendError(c, errors.AuthMissingToken)
	}

	report, err := h.ledger.Reconcile(c.Request().Context(), username)
	if err != nil {
		return SendLedgerError(c, err)
	}

	resp := dto.ReconciliationResponse{
		AccountNumber:   report.AccountNumber,
		StoredBalance:   report.StoredBalance.StringFixed(2),
		ReplayedBalance: report.ReplayedBalance.StringFixed(2),
		EntryCount:      report.EntryCount,
		Consistent:      report.Consistent,
	}
	if report.Mismatch != nil {
		resp.MismatchEntryID = report.Mismatch.EntryID
	}

	return c.JSON(http.StatusOK, resp)
}

// Deposit adds funds to the account
// @Summary Deposit
// @Tags Ledger
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.AmountRequest true "Amount"
// @Success 201 {object} dto.OperationResponse
// @Failure 400 {object} errors.ErrorResponse "VALIDATION_001 or TRANSACTION_002 - Invalid amount"
// @Failure 409 {object} errors.ErrorResponse "LEDGER_001 - Transient conflict, retry"
// @Failure 503 {object} errors.ErrorResponse "SYSTEM_003 - Store unavailable"
// @Router /account/deposits [post]
func (h *AccountHandler) Deposit(c echo.Context) error {
	return h.balanceOperation(c, h.ledger.Deposit)
}

// Withdraw removes funds from the account
// @Summary Withdraw
// @Tags Ledger
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.AmountRequest true "Amount"
// @Success 201 {object} dto.OperationResponse
// @Failure 400 {object} errors.ErrorResponse "VALIDATION_001 or TRANSACTION_002 - Invalid amount"
// @Failure 422 {object} errors.ErrorResponse "TRANSACTION_003 - Insufficient funds"
// @Failure 409 {object} errors.ErrorResponse "LEDGER_001 - Transient conflict, retry"
// @Failure 503 {object} errors.ErrorResponse "SYSTEM_003 - Store unavailable"
// @Router /account/withdrawals [post]
func (h *AccountHandler) Withdraw(c echo.Context) error {
	return h.balanceOperation(c, h.ledger.Withdraw)
}

type balanceOperationFunc func(ctx context.Context, username string, amount decimal.Decimal) (*services.OperationResult, error)

func (h *AccountHandler) balanceOperation(c echo.Context, op balanceOperationFunc) error {
	username, err := getUsernameFromContext(c)
	if err != nil {
		return SendError(c, errors.AuthMissingToken)
	}

	var req dto.AmountRequest
	if err := c.Bind(&req); err != nil {
		return SendError(c, errors.ValidationGeneral, errors.WithDetails("Invalid request body"))
	}

	if err := c.Validate(req); err != nil {
		return err
	}

	amount, err := services.ParseAmount(req.Amount)
	if err != nil {
		return SendLedgerError(c, err)
	}

	result, err := op(c.Request().Context(), username, amount)
	if err != nil {
		return SendLedgerError(c, err)
	}

	return c.JSON(http.StatusCreated, dto.OperationResponse{
		Entry:   dto.ToLedgerEntryResponse(&result.Entry),
		Balance: result.Balance.StringFixed(2),
	})
}

// PreviewTransfer resolves the recipient so the customer can confirm
// @Summary Preview transfer
// @Description Shows the recipient's name and the balance after the transfer. Nothing is changed.
// @Tags Ledger
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.TransferPreviewRequest true "Transfer details"
// @Success 200 {object} dto.TransferPreviewResponse
// @Failure 400 {object} errors.ErrorResponse "TRANSACTION_002 or TRANSFER_001"
// @Failure 404 {object} errors.ErrorResponse "TRANSFER_004 - Recipient not found"
// @Failure 422 {object} errors.ErrorResponse "TRANSACTION_003 - Insufficient funds"
// @Router /account/transfers/preview [post]
func (h *AccountHandler) PreviewTransfer(c echo.Context) error {
	username, err := getUsernameFromContext(c)
	if err != nil {
		return SendError(c, errors.AuthMissingToken)
	}

	var req dto.TransferPreviewRequest
	if err := c.Bind(&req); err != nil {
		return SendError(c, errors.ValidationGeneral, errors.WithDetails("Invalid request body"))
	}

	if err := c.Validate(req); err != nil {
		return err
	}

	preview, err := h.ledger.PreviewTransfer(c.Request().Context(), username, req.RecipientAccountNumber, req.Amount)
	if err != nil {
		return SendLedgerError(c, err)
	}

	return c.JSON(http.StatusOK, dto.TransferPreviewResponse{
		RecipientAccountNumber: preview.RecipientAccountNumber,
		RecipientName:          preview.RecipientName,
		Amount:                 preview.Amount.StringFixed(2),
		BalanceAfter:           preview.BalanceAfter.StringFixed(2),
	})
}

// Transfer moves funds to another account once confirmed
// @Summary Transfer
// @Description Executes the transfer when confirmation is yes. Any other answer declines it and nothing changes.
// @Tags Ledger
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.TransferRequest true "Transfer details with confirmation"
// @Success 201 {object} dto.TransferResponse "Transfer committed"
// @Success 200 {object} dto.TransferResponse "Transfer declined"
// @Failure 400 {object} errors.ErrorResponse "TRANSACTION_002 or TRANSFER_001"
// @Failure 404 {object} errors.ErrorResponse "TRANSFER_004 - Recipient not found"
// @Failure 409 {object} errors.ErrorResponse "LEDGER_001 - Transient conflict, retry"
// @Failure 422 {object} errors.ErrorResponse "TRANSACTION_003 - Insufficient funds"
// @Failure 503 {object} errors.ErrorResponse "SYSTEM_003 - Store unavailable"
// @Router /account/transfers [post]
func (h *AccountHandler) Transfer(c echo.Context) error {
	username, err := getUsernameFromContext(c)
	if err != nil {
		return SendError(c, errors.AuthMissingToken)
	}

	var req dto.TransferRequest
	if err := c.Bind(&req); err != nil {
		return SendError(c, errors.ValidationGeneral, errors.WithDetails("Invalid request body"))
	}

	if err := c.Validate(req); err != nil {
		return err
	}

	result, err := h.ledger.Transfer(c.Request().Context(), services.TransferRequest{
		Sender:                 username,
		RecipientAccountNumber: req.RecipientAccountNumber,
		Amount:                 req.Amount,
		Confirmation:           req.Confirmation,
	})
	if err != nil {
		return SendLedgerError(c, err)
	}

	if result.Status == services.TransferStatusDeclined {
		return c.JSON(http.StatusOK, dto.TransferResponse{
			Status:        string(result.Status),
			RecipientName: result.RecipientName,
			Message:       "Transfer cancelled",
		})
	}

	entry := dto.ToLedgerEntryResponse(result.SenderEntry)
	return c.JSON(http.StatusCreated, dto.TransferResponse{
		Status:        string(result.Status),
		RecipientName: result.RecipientName,
		Entry:         &entry,
		Balance:       result.SenderBalance.StringFixed(2),
		Message:       "Transfer completed",
	})
}

// parsePaginationParams parses pagination parameters from query string
func parsePaginationParams(c echo.Context) (dto.PaginationParams, error) {
	params := dto.PaginationParams{
		Limit: defaultPageLimit,
	}

	if cursor := c.QueryParam("cursor"); cursor != "" {
		params.Cursor = cursor
	}

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return params, fmt.Errorf("invalid limit parameter")
		}

		if limit < 1 {
			return params, fmt.Errorf("limit must be at least 1")
		}

		if limit > maxPageLimit {
			limit = maxPageLimit
		}

		params.Limit = limit
	}

	return params, nil
}
