package handlers

import (
	"context"
	"net/http"
	"time"

	"bankledger/internal/errors"
	"bankledger/internal/services"

	"github.com/labstack/echo/v4"
)

const healthCheckTimeout = 2 * time.Second

// DatabasePinger reports whether the account store is reachable
type DatabasePinger interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheckHandler handles the health check endpoint
type HealthCheckHandler struct {
	db     DatabasePinger
	ledger services.LedgerServiceInterface
}

// NewHealthCheckHandler creates a new health check handler
func NewHealthCheckHandler(db DatabasePinger, ledger services.LedgerServiceInterface) *HealthCheckHandler {
	return &HealthCheckHandler{db: db, ledger: ledger}
}

// HealthCheck adds the health check endpoint
// @Summary Health check
// @Description Check API and database connectivity status and the store circuit breaker
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,store_breaker=string,time=string} "Service is healthy"
// @Failure 503 {object} errors.ErrorResponse "SYSTEM_003 - Service unavailable (database connection failed or breaker open)"
// @Router /health [get]
func (h *HealthCheckHandler) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	if err := h.db.HealthCheck(ctx); err != nil {
		traceID := getTraceIDFromContext(c)
		errorResponse := errors.NewErrorResponse(
			errors.SystemServiceUnavailable,
			traceID,
			errors.WithDetails("Database connection failed"),
		)
		return c.JSON(http.StatusServiceUnavailable, errorResponse)
	}

	breakerState := h.ledger.BreakerState()
	if breakerState == "open" {
		traceID := getTraceIDFromContext(c)
		errorResponse := errors.NewErrorResponse(
			errors.SystemServiceUnavailable,
			traceID,
			errors.WithDetails("Account store circuit breaker is open"),
		)
		return c.JSON(http.StatusServiceUnavailable, errorResponse)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":        "healthy",
		"store_breaker": breakerState,
		"time":          time.Now().UTC().Format(time.RFC3339),
	})
}
