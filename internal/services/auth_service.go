package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/dto"
	"bankledger/internal/models"
	"bankledger/internal/repositories"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account is locked due to too many failed attempts")
	ErrPasswordMismatch   = errors.New("password confirmation does not match")
)

// AuthService handles signup, login and logout
type AuthService struct {
	accountRepo          repositories.AccountRepositoryInterface
	auditRepo            repositories.AuditLogRepositoryInterface
	blacklistedTokenRepo repositories.BlacklistedTokenRepositoryInterface
	passwordService      PasswordServiceInterface
	tokenService         TokenServiceInterface
	ledger               LedgerServiceInterface
	metrics              MetricsRecorderInterface
	maxFailedAttempts    int
	logger               *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	accountRepo repositories.AccountRepositoryInterface,
	auditRepo repositories.AuditLogRepositoryInterface,
	blacklistedTokenRepo repositories.BlacklistedTokenRepositoryInterface,
	passwordService PasswordServiceInterface,
	tokenService TokenServiceInterface,
	ledger LedgerServiceInterface,
	metrics MetricsRecorderInterface,
	security config.SecurityConfig,
	logger *slog.Logger,
) AuthServiceInterface {
	return &AuthService{
		accountRepo:          accountRepo,
		auditRepo:            auditRepo,
		blacklistedTokenRepo: blacklistedTokenRepo,
		passwordService:      passwordService,
		tokenService:         tokenService,
		ledger:               ledger,
		metrics:              metrics,
		maxFailedAttempts:    security.MaxFailedAttempts,
		logger:               logger,
	}
}

// Signup validates the request, hashes the password and opens the account
// together with its opening deposit record.
func (s *AuthService) Signup(ctx context.Context, req *dto.SignupRequest, ipAddress, userAgent string) (*models.Account, error) {
	src := models.AuditSource{IPAddress: ipAddress, UserAgent: userAgent}

	if req.Password != req.ConfirmPassword {
		s.auditFailedSignup(ctx, req.Username, models.ReasonPasswordMismatch, src)
		return nil, ErrPasswordMismatch
	}

	deposit, err := ParseAmount(req.OpeningDeposit)
	if err != nil {
		s.auditFailedSignup(ctx, req.Username, models.ReasonInvalidOpeningDeposit, src)
		return nil, err
	}

	hashedPassword, err := s.passwordService.HashPassword(req.Password)
	if err != nil {
		s.auditFailedSignup(ctx, req.Username, models.ReasonWeakPassword, src)
		return nil, err
	}

	account, err := s.ledger.OpenAccount(ctx, OpenAccountRequest{
		FullName:       req.FullName,
		Username:       req.Username,
		PasswordHash:   hashedPassword,
		OpeningDeposit: deposit,
	})
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			s.auditFailedSignup(ctx, req.Username, models.ReasonUsernameTaken, src)
		}
		return nil, err
	}

	s.createAuditLog(ctx, models.NewSignupAudit(account, src))
	s.metrics.IncrementCounter("auth.event", map[string]string{"event": "signup", "status": "success"})

	return account, nil
}

// Login authenticates by username and password and issues a session token
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest, ipAddress, userAgent string) (*dto.TokenResponse, error) {
	src := models.AuditSource{IPAddress: ipAddress, UserAgent: userAgent}

	account, err := s.accountRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			s.auditFailedLogin(ctx, nil, req.Username, models.ReasonAccountNotFound, src)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if account.IsLocked() {
		s.auditFailedLogin(ctx, account, req.Username, models.ReasonAccountLocked, src)
		return nil, ErrAccountLocked
	}

	if !s.passwordService.ComparePassword(req.Password, account.PasswordHash) {
		account.IncrementFailedAttempts(s.maxFailedAttempts)
		if err := s.accountRepo.UpdateLoginState(ctx, account); err != nil {
			s.logger.ErrorContext(ctx, "failed to update login attempts",
				"error", err,
				"username", account.Username)
		}

		if account.IsLocked() {
			s.createAuditLog(ctx, models.NewLockoutAudit(account, src))
		}

		s.auditFailedLogin(ctx, account, req.Username, models.ReasonInvalidPassword, src)
		return nil, ErrInvalidCredentials
	}

	account.RecordSuccessfulLogin()
	if err := s.accountRepo.UpdateLoginState(ctx, account); err != nil {
		s.logger.WarnContext(ctx, "failed to record login",
			"error", err,
			"username", account.Username)
	}

	accessToken, expiresAt, err := s.tokenService.GenerateAccessToken(account)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	s.createAuditLog(ctx, models.NewSessionAudit(models.AuditActionLogin, account.ID, account.Username, src))
	s.metrics.IncrementCounter("auth.event", map[string]string{"event": "login", "status": "success"})

	return &dto.TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}, nil
}

// Logout revokes the session token
func (s *AuthService) Logout(ctx context.Context, accessToken, ipAddress, userAgent string) error {
	claims, err := s.tokenService.ValidateAccessToken(accessToken)
	if err != nil {
		// expired or malformed tokens are still revoked when they carry a JTI
		jti, _ := s.tokenService.GetJTI(accessToken)
		if jti != "" {
			if err := s.blacklistToken(ctx, jti, uuid.Nil, time.Now().Add(24*time.Hour)); err != nil {
				s.logger.ErrorContext(ctx, "failed to blacklist expired token",
					"error", err,
					"jti", jti)
			}
		}
		return nil
	}

	accountID, _ := uuid.Parse(claims.AccountID)

	expiry, err := s.tokenService.GetTokenExpiry(accessToken)
	if err != nil {
		expiry = time.Now().Add(24 * time.Hour)
	}
	if err := s.blacklistToken(ctx, claims.ID, accountID, expiry); err != nil {
		s.logger.ErrorContext(ctx, "failed to blacklist token",
			"error", err,
			"jti", claims.ID,
			"username", claims.Username)
	}

	s.createAuditLog(ctx, models.NewSessionAudit(models.AuditActionLogout, accountID, claims.Username, models.AuditSource{IPAddress: ipAddress, UserAgent: userAgent}))
	s.metrics.IncrementCounter("auth.event", map[string]string{"event": "logout", "status": "success"})

	return nil
}

func (s *AuthService) blacklistToken(ctx context.Context, jti string, accountID uuid.UUID, expiresAt time.Time) error {
	return s.blacklistedTokenRepo.Create(ctx, &models.BlacklistedToken{
		JTI:       jti,
		AccountID: accountID,
		ExpiresAt: expiresAt,
	})
}

func (s *AuthService) auditFailedSignup(ctx context.Context, username string, reason models.AuditReason, src models.AuditSource) {
	s.createAuditLog(ctx, models.NewSignupFailedAudit(username, reason, src))
	s.metrics.IncrementCounter("auth.event", map[string]string{"event": "signup", "status": "failure"})
}

func (s *AuthService) auditFailedLogin(ctx context.Context, account *models.Account, username string, reason models.AuditReason, src models.AuditSource) {
	s.createAuditLog(ctx, models.NewFailedLoginAudit(account, username, reason, src))
	s.metrics.IncrementCounter("auth.event", map[string]string{"event": "login", "status": "failure"})
}

func (s *AuthService) createAuditLog(ctx context.Context, log *models.AuditLog) {
	if err := s.auditRepo.Create(ctx, log); err != nil {
		// audit failures never block authentication
		s.logger.ErrorContext(ctx, "failed to create audit log",
			"error", err,
			"action", log.Action,
			"username", log.Username)
	}
}
