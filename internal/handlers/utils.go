package handlers

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
)

// ErrUnauthorized is returned when the session context is invalid
var ErrUnauthorized = fmt.Errorf("unauthorized")

// getUsernameFromContext extracts the authenticated username set by RequireAuth
func getUsernameFromContext(c echo.Context) (string, error) {
	username, ok := c.Get("username").(string)
	if !ok || username == "" {
		return "", ErrUnauthorized
	}
	return username, nil
}

func getClientIP(c echo.Context) string {
	forwarded := c.Request().Header.Get("X-Forwarded-For")
	if forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	realIP := c.Request().Header.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	return c.RealIP()
}

func getTraceIDFromContext(c echo.Context) string {
	traceID := c.Response().Header().Get("X-Trace-ID")
	if traceID == "" {
		traceID = getTraceID(c)
	}
	if traceID == "" {
		traceID = "unknown"
	}
	return traceID
}
