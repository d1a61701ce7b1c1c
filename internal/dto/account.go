package dto

import (
	"time"

	"bankledger/internal/models"
)

// AccountResponse represents the account details view
type AccountResponse struct {
	AccountNumber string    `json:"account_number"`
	FullName      string    `json:"full_name"`
	Username      string    `json:"username"`
	Balance       string    `json:"balance"`
	CreatedAt     time.Time `json:"created_at"`
}

// BalanceResponse is the check-balance view
type BalanceResponse struct {
	AccountNumber string `json:"account_number"`
	Balance       string `json:"balance"`
}

// ToAccountResponse converts an account model to its response shape
func ToAccountResponse(account *models.Account) *AccountResponse {
	if account == nil {
		return nil
	}

	return &AccountResponse{
		AccountNumber: account.AccountNumber,
		FullName:      account.FullName,
		Username:      account.Username,
		Balance:       account.Balance.StringFixed(2),
		CreatedAt:     account.CreatedAt,
	}
}
