package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	apierrors "bankledger/internal/errors"
	"bankledger/internal/validation"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
)

// ErrorHandlerTestSuite defines the test suite for error handler middleware
type ErrorHandlerTestSuite struct {
	suite.Suite
	echo    *echo.Echo
	handler *ErrorHandler
}

// SetupTest runs before each test
func (s *ErrorHandlerTestSuite) SetupTest() {
	s.handler = NewErrorHandler(prometheus.NewRegistry(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.echo = echo.New()
	s.echo.HTTPErrorHandler = s.handler.Handle
}

// TestErrorHandlerTestSuite runs the test suite
func TestErrorHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(ErrorHandlerTestSuite))
}

func (s *ErrorHandlerTestSuite) newContext(traceID string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	if traceID != "" {
		c.Set(TraceIDContextKey, traceID)
	}
	return c, rec
}

func (s *ErrorHandlerTestSuite) TestEchoHTTPError() {
	c, rec := s.newContext("test-trace-id")

	s.handler.Handle(echo.NewHTTPError(http.StatusNotFound, "Resource not found"), c)

	s.Equal(http.StatusNotFound, rec.Code)
	s.Contains(rec.Body.String(), "test-trace-id")
	s.Contains(rec.Body.String(), "Resource not found")
}

func (s *ErrorHandlerTestSuite) TestGenericErrorIsHidden() {
	c, rec := s.newContext("test-trace-id")

	s.handler.Handle(errors.New("pq: connection reset"), c)

	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Contains(rec.Body.String(), "SYSTEM_001")
	s.NotContains(rec.Body.String(), "connection reset")
}

func (s *ErrorHandlerTestSuite) TestValidationErrors() {
	c, rec := s.newContext("test-trace-id")

	form := struct {
		Amount string `json:"amount" validate:"required,amount"`
		Number string `json:"recipient_account_number" validate:"required,account_number"`
	}{Amount: "1.001", Number: "123"}
	err := validation.GetValidator().GetValidate().Struct(form)
	s.Require().Error(err)

	s.handler.Handle(err, c)

	s.Equal(http.StatusBadRequest, rec.Code)

	var resp apierrors.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("VALIDATION_001", resp.Error.Code)
	s.ElementsMatch([]string{
		"amount must be a positive amount with at most 2 decimal places",
		"recipient_account_number must be a 10 digit account number",
	}, resp.Error.Details)
}

func (s *ErrorHandlerTestSuite) TestNoTraceID() {
	c, rec := s.newContext("")

	s.handler.Handle(errors.New("test error"), c)

	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Contains(rec.Body.String(), "unknown")
}

func (s *ErrorHandlerTestSuite) TestCommittedResponse() {
	c, rec := s.newContext("")

	_ = c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	s.handler.Handle(errors.New("test error"), c)

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "ok")
}

func (s *ErrorHandlerTestSuite) TestMapHTTPStatusToErrorCode() {
	testCases := []struct {
		status       int
		expectedCode string
	}{
		{http.StatusBadRequest, "VALIDATION_001"},
		{http.StatusUnauthorized, "AUTH_002"},
		{http.StatusNotFound, "ACCOUNT_001"},
		{http.StatusConflict, "LEDGER_001"},
		{http.StatusUnprocessableEntity, "VALIDATION_001"},
		{http.StatusTooManyRequests, "SYSTEM_006"},
		{http.StatusInternalServerError, "SYSTEM_001"},
		{http.StatusServiceUnavailable, "SYSTEM_003"},
		{999, "SYSTEM_001"},
	}

	for _, tc := range testCases {
		s.Run(http.StatusText(tc.status), func() {
			c, rec := s.newContext("test-trace-id")

			s.handler.Handle(echo.NewHTTPError(tc.status), c)

			s.Equal(tc.status, rec.Code)
			s.Contains(rec.Body.String(), tc.expectedCode)
		})
	}
}

func (s *ErrorHandlerTestSuite) TestCountsErrors() {
	for i := 0; i < 3; i++ {
		c, _ := s.newContext("")
		s.handler.Handle(echo.NewHTTPError(http.StatusTooManyRequests), c)
	}

	s.Equal(float64(3), testutil.ToFloat64(s.handler.apiErrorsTotal.WithLabelValues("SYSTEM_006", "", "429")))
}

func (s *ErrorHandlerTestSuite) TestJSONContentType() {
	c, rec := s.newContext("test-trace-id")

	s.handler.Handle(errors.New("test error"), c)

	s.Contains(rec.Header().Get("Content-Type"), "application/json")
}
