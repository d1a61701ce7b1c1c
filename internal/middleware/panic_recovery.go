package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"bankledger/internal/errors"

	"github.com/labstack/echo/v4"
)

// PanicRecovery turns a handler panic into a SYSTEM_001 response and logs the stack.
// A ledger operation that panicked has already rolled back its transaction by the time it lands here.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func PanicRecovery(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				err = respondToPanic(c, logger, r)
			}()

			return next(c)
		}
	}
}

func respondToPanic(c echo.Context, logger *slog.Logger, recovered interface{}) error {
	traceID := GetTraceID(c)
	if traceID == "" {
		traceID = "unknown"
	}
	req := c.Request()

	logger.ErrorContext(req.Context(), "panic recovered",
		"trace_id", traceID,
		"panic", fmt.Sprint(recovered),
		"method", req.Method,
		"path", req.URL.Path,
		"stack_trace", string(debug.Stack()),
	)

	// Headers are gone once the handler started writing; all that is left is the log line.
	if c.Response().Committed {
		return nil
	}

	return c.JSON(http.StatusInternalServerError, errors.NewErrorResponse(errors.SystemInternalError, traceID))
}
