package models

import "github.com/golang-jwt/jwt/v5"

// CustomClaims are the session claims carried by access tokens
type CustomClaims struct {
	jwt.RegisteredClaims
	AccountID     string `json:"account_id"`
	Username      string `json:"username"`
	AccountNumber string `json:"account_number"`
	TokenType     string `json:"token_type"`
}
