package errors

// ErrorCode represents a standardized error code used throughout the API
type ErrorCode string

// Authentication error codes (AUTH_*)
const (
	AuthInvalidCredentials ErrorCode = "AUTH_001"
	AuthMissingToken       ErrorCode = "AUTH_002"
	AuthExpiredToken       ErrorCode = "AUTH_003"
	AuthInvalidTokenFormat ErrorCode = "AUTH_004"
	AuthRevokedToken       ErrorCode = "AUTH_005"
	AuthAccountLocked      ErrorCode = "AUTH_006"
)

// Validation error codes (VALIDATION_*)
const (
	ValidationGeneral       ErrorCode = "VALIDATION_001"
	ValidationRequiredField ErrorCode = "VALIDATION_002"
	ValidationInvalidFormat ErrorCode = "VALIDATION_003"
	ValidationWeakPassword  ErrorCode = "VALIDATION_004"
	ValidationPasswordMatch ErrorCode = "VALIDATION_005"
)

// Account error codes (ACCOUNT_*)
const (
	AccountNotFound             ErrorCode = "ACCOUNT_001"
	AccountUsernameTaken        ErrorCode = "ACCOUNT_002"
	AccountOpeningDepositTooLow ErrorCode = "ACCOUNT_003"
	AccountInvalidNumber        ErrorCode = "ACCOUNT_004"
	AccountNumberSpaceExhausted ErrorCode = "ACCOUNT_005"
)

// Transaction error codes (TRANSACTION_*)
const (
	TransactionInvalidAmount     ErrorCode = "TRANSACTION_002"
	TransactionInsufficientFunds ErrorCode = "TRANSACTION_003"
	TransactionInvalidCursor     ErrorCode = "TRANSACTION_004"
)

// Transfer error codes (TRANSFER_*)
const (
	TransferSameAccount       ErrorCode = "TRANSFER_001"
	TransferRecipientNotFound ErrorCode = "TRANSFER_004"
)

// Ledger error codes (LEDGER_*)
const (
	LedgerTransientConflict ErrorCode = "LEDGER_001"
)

// System error codes (SYSTEM_*)
const (
	SystemInternalError      ErrorCode = "SYSTEM_001"
	SystemDatabaseError      ErrorCode = "SYSTEM_002"
	SystemServiceUnavailable ErrorCode = "SYSTEM_003"
	SystemRateLimitExceeded  ErrorCode = "SYSTEM_006"
)

// errorMessages maps error codes to their default human-readable messages
var errorMessages = map[ErrorCode]string{
	// Authentication errors
	AuthInvalidCredentials: "Invalid username or password",
	AuthMissingToken:       "Authorization token is required",
	AuthExpiredToken:       "Authorization token has expired",
	AuthInvalidTokenFormat: "Invalid authorization token format",
	AuthRevokedToken:       "Authorization token has been revoked",
	AuthAccountLocked:      "Account is locked after too many failed login attempts",

	// Validation errors
	ValidationGeneral:       "Validation failed",
	ValidationRequiredField: "Required field is missing",
	ValidationInvalidFormat: "Invalid field format",
	ValidationWeakPassword:  "Password does not meet the security requirements",
	ValidationPasswordMatch: "Password confirmation does not match",

	// Account errors
	AccountNotFound:             "Account not found",
	AccountUsernameTaken:        "Username is already taken",
	AccountOpeningDepositTooLow: "Opening deposit is below the required minimum",
	AccountInvalidNumber:        "Account number must be 10 digits",
	AccountNumberSpaceExhausted: "Could not allocate an account number. Please try again",

	// Transaction errors
	TransactionInvalidAmount:     "Amount must be a positive number with at most 2 decimal places",
	TransactionInsufficientFunds: "Insufficient account balance for this transaction",
	TransactionInvalidCursor:     "Invalid pagination cursor",

	// Transfer errors
	TransferSameAccount:       "Cannot transfer to your own account",
	TransferRecipientNotFound: "Recipient account not found",

	// Ledger errors
	LedgerTransientConflict: "The operation conflicted with a concurrent update. Please retry",

	// System errors
	SystemInternalError:      "An unexpected error occurred. Please contact support with trace ID",
	SystemDatabaseError:      "Database connection error",
	SystemServiceUnavailable: "Service temporarily unavailable",
	SystemRateLimitExceeded:  "Rate limit exceeded. Please try again later",
}

// GetErrorMessage returns the default message for a given error code
// If the error code is not found, it returns a generic error message
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "An error occurred"
}

// IsValidErrorCode checks if the provided error code is a valid registered code
func IsValidErrorCode(code ErrorCode) bool {
	_, ok := errorMessages[code]
	return ok
}

// IsRetryable reports whether the same request may succeed if sent again unchanged
func IsRetryable(code ErrorCode) bool {
	switch code {
	case LedgerTransientConflict, SystemServiceUnavailable, SystemRateLimitExceeded, AccountNumberSpaceExhausted:
		return true
	default:
		return false
	}
}
