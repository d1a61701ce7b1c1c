package dto

import (
	"strconv"
	"time"

	"bankledger/internal/models"
)

// Ledger Request DTOs

// AmountRequest is the body of a deposit or withdrawal
type AmountRequest struct {
	Amount string `json:"amount" validate:"required"`
}

// TransferPreviewRequest asks who a transfer would go to
type TransferPreviewRequest struct {
	RecipientAccountNumber string `json:"recipient_account_number" validate:"required,account_number"`
	Amount                 string `json:"amount" validate:"required"`
}

// TransferRequest submits a transfer with the customer's answer to the confirmation prompt
type TransferRequest struct {
	RecipientAccountNumber string `json:"recipient_account_number" validate:"required,account_number"`
	Amount                 string `json:"amount" validate:"required"`
	Confirmation           string `json:"confirmation" validate:"required,max=16"`
}

// PaginationParams contains cursor pagination parameters
type PaginationParams struct {
	Cursor string `query:"cursor"`
	Limit  int    `query:"limit"`
}

// Ledger Response DTOs

// LedgerEntryResponse is one record of the transaction history
type LedgerEntryResponse struct {
	ID                        uint64    `json:"id"`
	Reference                 string    `json:"reference"`
	Type                      string    `json:"type"`
	Amount                    string    `json:"amount"`
	ResultingBalance          string    `json:"resulting_balance"`
	CounterpartyAccountNumber string    `json:"counterparty_account_number,omitempty"`
	CreatedAt                 time.Time `json:"created_at"`
}

// OperationResponse reports a committed deposit or withdrawal
type OperationResponse struct {
	Entry   LedgerEntryResponse `json:"entry"`
	Balance string              `json:"balance"`
}

// TransferPreviewResponse names the recipient before the customer confirms
type TransferPreviewResponse struct {
	RecipientAccountNumber string `json:"recipient_account_number"`
	RecipientName          string `json:"recipient_name"`
	Amount                 string `json:"amount"`
	BalanceAfter           string `json:"balance_after"`
}

// TransferResponse reports a committed or declined transfer
type TransferResponse struct {
	Status        string               `json:"status"`
	RecipientName string               `json:"recipient_name"`
	Entry         *LedgerEntryResponse `json:"entry,omitempty"`
	Balance       string               `json:"balance,omitempty"`
	Message       string               `json:"message,omitempty"`
}

// PaginationInfo contains cursor pagination metadata
type PaginationInfo struct {
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
	Limit      int    `json:"limit"`
}

// TransactionHistoryResponse is a page of the transaction history, oldest first
type TransactionHistoryResponse struct {
	Transactions []LedgerEntryResponse `json:"transactions"`
	Pagination   PaginationInfo        `json:"pagination"`
}

// ReconciliationResponse compares the stored balance with the replayed history
type ReconciliationResponse struct {
	AccountNumber   string `json:"account_number"`
	StoredBalance   string `json:"stored_balance"`
	ReplayedBalance string `json:"replayed_balance"`
	EntryCount      int    `json:"entry_count"`
	Consistent      bool   `json:"consistent"`
	MismatchEntryID uint64 `json:"mismatch_entry_id,omitempty"`
}

// ToLedgerEntryResponse converts a ledger entry to its response shape
func ToLedgerEntryResponse(entry *models.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:                        entry.ID,
		Reference:                 entry.Reference,
		Type:                      entry.EntryType,
		Amount:                    entry.Amount.StringFixed(2),
		ResultingBalance:          entry.ResultingBalance.StringFixed(2),
		CounterpartyAccountNumber: entry.CounterpartyAccountNumber,
		CreatedAt:                 entry.CreatedAt,
	}
}

// NewTransactionHistoryResponse builds a history page; entries holds up to limit+1 rows
func NewTransactionHistoryResponse(entries []models.LedgerEntry, limit int) TransactionHistoryResponse {
	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	out := make([]LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, ToLedgerEntryResponse(&entries[i]))
	}

	resp := TransactionHistoryResponse{
		Transactions: out,
		Pagination:   PaginationInfo{HasMore: hasMore, Limit: limit},
	}
	if hasMore && len(entries) > 0 {
		resp.Pagination.NextCursor = strconv.FormatUint(entries[len(entries)-1].ID, 10)
	}

	return resp
}
