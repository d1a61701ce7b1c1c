package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ResponseTestSuite defines the test suite for error responses
type ResponseTestSuite struct {
	suite.Suite
	traceID string
}

// SetupTest runs before each test
func (s *ResponseTestSuite) SetupTest() {
	s.traceID = "550e8400-e29b-41d4-a716-446655440000"
}

// TestResponseTestSuite runs the test suite
func TestResponseTestSuite(t *testing.T) {
	suite.Run(t, new(ResponseTestSuite))
}

func (s *ResponseTestSuite) TestNewErrorResponse_BasicUsage() {
	response := NewErrorResponse(AuthInvalidCredentials, s.traceID)

	s.Equal("AUTH_001", response.Error.Code)
	s.Equal("Invalid username or password", response.Error.Message)
	s.Equal(s.traceID, response.Error.TraceID)
	s.False(response.Error.Retryable)
	s.Empty(response.Error.Details)
}

func (s *ResponseTestSuite) TestNewErrorResponse_WithOptions() {
	response := NewErrorResponse(TransactionInvalidAmount, s.traceID,
		WithMessage("Amount is malformed"),
		WithDetails("amount: 1.005 has more than 2 decimal places"),
	)

	s.Equal("Amount is malformed", response.Error.Message)
	s.Equal([]string{"amount: 1.005 has more than 2 decimal places"}, response.Error.Details)
}

func (s *ResponseTestSuite) TestNewErrorResponse_TransientConflictIsRetryable() {
	response := NewErrorResponse(LedgerTransientConflict, s.traceID)

	s.True(response.Error.Retryable)
	s.Equal(http.StatusConflict, response.GetHTTPStatus())
}

func (s *ResponseTestSuite) TestNewValidationError() {
	response := NewValidationError([]string{"username: is required"}, s.traceID)

	s.Equal(string(ValidationGeneral), response.Error.Code)
	s.Equal([]string{"username: is required"}, response.Error.Details)
}

func (s *ResponseTestSuite) TestWrapSystemError_NoInternalDetailsExposed() {
	internal := errors.New("pq: connection refused to 10.0.0.5")

	response, err := WrapSystemError(internal, s.traceID)

	s.Equal(internal, err)
	s.Equal(string(SystemInternalError), response.Error.Code)
	s.NotContains(response.Error.Message, "10.0.0.5")
}

func (s *ResponseTestSuite) TestToJSON() {
	data, err := NewErrorResponse(TransferSameAccount, s.traceID).ToJSON()
	s.Require().NoError(err)

	var decoded map[string]map[string]interface{}
	s.Require().NoError(json.Unmarshal(data, &decoded))
	s.Equal("TRANSFER_001", decoded["error"]["code"])
	s.Equal(s.traceID, decoded["error"]["trace_id"])
	s.NotContains(decoded["error"], "retryable")
}

func (s *ResponseTestSuite) TestGetHTTPStatus_LedgerCodes() {
	testCases := map[ErrorCode]int{
		TransactionInvalidAmount:     http.StatusBadRequest,
		TransactionInsufficientFunds: http.StatusUnprocessableEntity,
		TransferRecipientNotFound:    http.StatusNotFound,
		TransferSameAccount:          http.StatusBadRequest,
		LedgerTransientConflict:      http.StatusConflict,
		SystemServiceUnavailable:     http.StatusServiceUnavailable,
		AccountNotFound:              http.StatusNotFound,
		AuthInvalidCredentials:       http.StatusUnauthorized,
		AuthAccountLocked:            http.StatusForbidden,
		AccountUsernameTaken:         http.StatusConflict,
		SystemRateLimitExceeded:      http.StatusTooManyRequests,
		ErrorCode("UNKNOWN"):         http.StatusInternalServerError,
	}

	for code, status := range testCases {
		s.Equal(status, GetHTTPStatus(code), string(code))
	}
}

func (s *ResponseTestSuite) TestClientAndServerErrors() {
	s.True(NewErrorResponse(TransactionInvalidAmount, s.traceID).IsClientError())
	s.False(NewErrorResponse(TransactionInvalidAmount, s.traceID).IsServerError())
	s.True(NewErrorResponse(SystemInternalError, s.traceID).IsServerError())
}

func (s *ResponseTestSuite) TestString_FormatsCorrectly() {
	response := NewErrorResponse(AccountNotFound, s.traceID)

	s.Equal("[ACCOUNT_001] Account not found (trace: "+s.traceID+")", response.String())
}
