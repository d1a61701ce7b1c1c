package services

import (
	"errors"
	"fmt"
	"regexp"

	"bankledger/internal/config"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBCryptCost = 12

	DefaultMinPasswordLength = 8
	MaxPasswordLength        = 72 // bcrypt limitation
)

var (
	ErrPasswordEmpty       = errors.New("password cannot be empty")
	ErrPasswordTooShort    = errors.New("password is too short")
	ErrPasswordTooLong     = fmt.Errorf("password must not exceed %d characters", MaxPasswordLength)
	ErrPasswordNoUppercase = errors.New("password must contain at least one uppercase letter")
	ErrPasswordNoLowercase = errors.New("password must contain at least one lowercase letter")
	ErrPasswordNoNumber    = errors.New("password must contain at least one number")
	ErrPasswordNoSpecial   = errors.New("password must contain at least one special character")

	uppercaseRegex = regexp.MustCompile(`[A-Z]`)
	lowercaseRegex = regexp.MustCompile(`[a-z]`)
	numberRegex    = regexp.MustCompile(`[0-9]`)
	specialRegex   = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// PasswordService handles password hashing and validation
type PasswordService struct {
	cost   int
	policy config.SecurityConfig
}

// NewPasswordService creates a password service enforcing the configured policy
func NewPasswordService(policy config.SecurityConfig) PasswordServiceInterface {
	cost := policy.BCryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBCryptCost
	}
	if policy.PasswordMinLength <= 0 {
		policy.PasswordMinLength = DefaultMinPasswordLength
	}

	return &PasswordService{
		cost:   cost,
		policy: policy,
	}
}

// ValidatePassword checks a password against the policy
func (ps *PasswordService) ValidatePassword(password string) error {
	if password == "" {
		return ErrPasswordEmpty
	}

	if len(password) < ps.policy.PasswordMinLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrPasswordTooShort, ps.policy.PasswordMinLength)
	}

	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}

	if ps.policy.RequireUppercase && !uppercaseRegex.MatchString(password) {
		return ErrPasswordNoUppercase
	}

	if ps.policy.RequireLowercase && !lowercaseRegex.MatchString(password) {
		return ErrPasswordNoLowercase
	}

	if ps.policy.RequireNumbers && !numberRegex.MatchString(password) {
		return ErrPasswordNoNumber
	}

	if ps.policy.RequireSpecialChars && !specialRegex.MatchString(password) {
		return ErrPasswordNoSpecial
	}

	return nil
}

// HashPassword validates and hashes a password using bcrypt
func (ps *PasswordService) HashPassword(password string) (string, error) {
	if err := ps.ValidatePassword(password); err != nil {
		return "", fmt.Errorf("password validation failed: %w", err)
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), ps.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hashedBytes), nil
}

// ComparePassword reports whether password matches the bcrypt hash
func (ps *PasswordService) ComparePassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
