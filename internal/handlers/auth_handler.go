package handlers

import (
	"net/http"
	"strings"

	"bankledger/internal/dto"
	"bankledger/internal/errors"
	"bankledger/internal/services"

	"github.com/labstack/echo/v4"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService services.AuthServiceInterface
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService services.AuthServiceInterface) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Signup handles account registration
// @Summary Open a new account
// @Description Create a customer account with an opening deposit. The account number is generated.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.SignupRequest true "Signup details"
// @Success 201 {object} dto.SignupResponse "Account created"
// @Failure 400 {object} errors.ErrorResponse "Validation error - VALIDATION_001, VALIDATION_004, VALIDATION_005 or TRANSACTION_002"
// @Failure 409 {object} errors.ErrorResponse "Username already taken - ACCOUNT_002"
// @Failure 422 {object} errors.ErrorResponse "Opening deposit too low - ACCOUNT_003"
// @Failure 503 {object} errors.ErrorResponse "Store unavailable - SYSTEM_003 or ACCOUNT_005"
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req dto.SignupRequest

	if err := c.Bind(&req); err != nil {
		return SendError(c, errors.ValidationGeneral, errors.WithDetails("Invalid request body"))
	}

	if err := c.Validate(req); err != nil {
		return err
	}

	ipAddress := getClientIP(c)
	userAgent := c.Request().UserAgent()

	account, err := h.authService.Signup(c.Request().Context(), &req, ipAddress, userAgent)
	if err != nil {
		return SendLedgerError(c, err)
	}

	return c.JSON(http.StatusCreated, dto.SignupResponse{
		Account: dto.ToAccountResponse(account),
		Message: "Account created successfully",
	})
}

// Login handles user authentication
// @Summary Login
// @Description Authenticate with username and password and receive a JWT access token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Success 200 {object} dto.TokenResponse "Login successful"
// @Failure 400 {object} errors.ErrorResponse "Validation error - VALIDATION_001"
// @Failure 401 {object} errors.ErrorResponse "Invalid credentials - AUTH_001"
// @Failure 403 {object} errors.ErrorResponse "Account locked - AUTH_006"
// @Failure 500 {object} errors.ErrorResponse "System error - SYSTEM_001"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest

	if err := c.Bind(&req); err != nil {
		return SendError(c, errors.ValidationGeneral, errors.WithDetails("Invalid request body"))
	}

	if err := c.Validate(req); err != nil {
		return err
	}

	ipAddress := getClientIP(c)
	userAgent := c.Request().UserAgent()

	tokens, err := h.authService.Login(c.Request().Context(), &req, ipAddress, userAgent)
	if err != nil {
		return SendLedgerError(c, err)
	}

	return c.JSON(http.StatusOK, tokens)
}

// Logout handles user logout
// @Summary Logout
// @Description Revoke the current access token. Requires Bearer token in Authorization header.
// @Tags Authentication
// @Security BearerAuth
// @Produce json
// @Success 200 {object} SuccessResponse{message=string} "Logout successful"
// @Failure 401 {object} errors.ErrorResponse "Unauthorized - AUTH_002 or AUTH_004"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return SendError(c, errors.AuthMissingToken)
	}

	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
		return SendError(c, errors.AuthInvalidTokenFormat)
	}

	accessToken := tokenParts[1]
	ipAddress := getClientIP(c)
	userAgent := c.Request().UserAgent()

	// The response never reveals whether revocation failed
	_ = h.authService.Logout(c.Request().Context(), accessToken, ipAddress, userAgent)

	return c.JSON(http.StatusOK, SuccessResponse{
		Message: "Logout successful",
	})
}
