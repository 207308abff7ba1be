package middleware

import (
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/eventsense/internal/observability"
)

// HeaderRequestID carries the request ID in and out of the server.
const HeaderRequestID = echo.HeaderXRequestID

// RequestContext attaches an observability.RequestContext to the request
// context, reusing the caller's X-Request-ID when present, and echoes the ID
// in the response.
func RequestContext(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rc := observability.NewRequestContextWithID(logger, req.Header.Get(HeaderRequestID), c.Path(), max(0, int(req.ContentLength)))
			c.Response().Header().Set(HeaderRequestID, rc.RequestID)
			c.SetRequest(req.WithContext(observability.WithRequestContext(req.Context(), rc)))
			return next(c)
		}
	}
}
