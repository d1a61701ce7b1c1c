package dto

import "time"

// Auth Request DTOs

// SignupRequest contains the data needed to open an account
type SignupRequest struct {
	FullName        string `json:"full_name" validate:"required,full_name"`
	Username        string `json:"username" validate:"required,username"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	OpeningDeposit  string `json:"opening_deposit" validate:"required,amount"`
}

// LoginRequest contains login credentials
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Auth Response DTOs

// TokenResponse contains the session token
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SignupResponse is returned once the account has been opened
type SignupResponse struct {
	Account *AccountResponse `json:"account"`
	Message string           `json:"message"`
}
