package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"optionscan/pkg/logger"
)

// RequestLogging records every ops request with its status and latency.
// Probes hit the readiness endpoints constantly, so this logs at debug.
func RequestLogging(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			log.Debug("ops request",
				logger.String("method", c.Request().Method),
				logger.String("path", c.Request().RequestURI),
				logger.String("remote", c.Request().RemoteAddr),
				logger.Int("status", c.Response().Status),
				logger.Duration("latency", time.Since(start)))

			return err
		}
	}
}
