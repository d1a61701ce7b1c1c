package handlers

import (
	stderrors "errors"
	"log/slog"
	"net/http"

	"bankledger/internal/errors"
	"bankledger/internal/services"

	"github.com/labstack/echo/v4"
)

// STANDARDIZED ERROR HANDLING PATTERNS
//
// All handlers must use the following standardized error response functions:
//
// 1. SendError - For client errors and business logic errors (4xx responses)
//    - Validation errors: SendError(c, errors.ValidationGeneral, errors.WithDetails("..."))
//    - Authentication errors: SendError(c, errors.AuthInvalidCredentials)
//
// 2. SendLedgerError - For errors returned by the ledger and auth services.
//    Known sentinels map to their API code; anything else becomes a system error.
//
// 3. SendSystemError - For system/internal errors (500 responses)
//
// DO NOT USE:
//    - echo.NewHTTPError() - Use SendError or SendSystemError instead
//    - Direct c.JSON() for errors - Use the helper functions

const (
	// TraceIDContextKey is the context key for storing the trace ID
	TraceIDContextKey = "trace_id"
)

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty" swaggertype:"object"`
	Message string      `json:"message,omitempty"`
	Meta    interface{} `json:"meta,omitempty" swaggertype:"object"`
}

// ErrorResponse is an alias for the standardized error response type
type ErrorResponse = errors.ErrorResponse

// getTraceID extracts the trace ID from the Echo context
func getTraceID(c echo.Context) string {
	traceID, ok := c.Get(TraceIDContextKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// SendError sends a standardized error response with trace ID from context
func SendError(c echo.Context, code errors.ErrorCode, opts ...errors.ErrorOption) error {
	traceID := getTraceID(c)
	errorResponse := errors.NewErrorResponse(code, traceID, opts...)
	return c.JSON(errorResponse.GetHTTPStatus(), errorResponse)
}

// SendSystemError wraps a system error with generic message and logs the internal error
func SendSystemError(c echo.Context, err error) error {
	traceID := getTraceID(c)
	errorResponse, internalErr := errors.WrapSystemError(err, traceID)
	slog.ErrorContext(c.Request().Context(), "internal error",
		"trace_id", traceID,
		"path", c.Request().URL.Path,
		"error", internalErr,
	)
	return c.JSON(http.StatusInternalServerError, errorResponse)
}

type errorMapping struct {
	target error
	code   errors.ErrorCode
}

var serviceErrorCodes = []errorMapping{
	{services.ErrInvalidAmount, errors.TransactionInvalidAmount},
	{services.ErrInsufficientFunds, errors.TransactionInsufficientFunds},
	{services.ErrRecipientNotFound, errors.TransferRecipientNotFound},
	{services.ErrSelfTransfer, errors.TransferSameAccount},
	{services.ErrTransientConflict, errors.LedgerTransientConflict},
	{services.ErrStoreUnavailable, errors.SystemServiceUnavailable},
	{services.ErrAccountNotFound, errors.AccountNotFound},
	{services.ErrUsernameTaken, errors.AccountUsernameTaken},
	{services.ErrOpeningDepositTooLow, errors.AccountOpeningDepositTooLow},
	{services.ErrAccountNumberExhausted, errors.AccountNumberSpaceExhausted},
	{services.ErrInvalidCredentials, errors.AuthInvalidCredentials},
	{services.ErrAccountLocked, errors.AuthAccountLocked},
	{services.ErrPasswordMismatch, errors.ValidationPasswordMatch},
}

var passwordPolicyErrors = []error{
	services.ErrPasswordEmpty,
	services.ErrPasswordTooShort,
	services.ErrPasswordTooLong,
	services.ErrPasswordNoUppercase,
	services.ErrPasswordNoLowercase,
	services.ErrPasswordNoNumber,
	services.ErrPasswordNoSpecial,
}

// SendLedgerError maps a service error to its API error code
func SendLedgerError(c echo.Context, err error) error {
	for _, m := range serviceErrorCodes {
		if stderrors.Is(err, m.target) {
			return SendError(c, m.code)
		}
	}

	for _, target := range passwordPolicyErrors {
		if stderrors.Is(err, target) {
			return SendError(c, errors.ValidationWeakPassword, errors.WithDetails(err.Error()))
		}
	}

	return SendSystemError(c, err)
}
