package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"

	"optionscan/pkg/logger"
)

// Recover converts a handler panic into a 500 so a bad probe handler cannot
// take the ops server down with it.
func Recover(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if r := recover(); r != nil {
					err, ok := r.(error)
					if !ok {
						err = fmt.Errorf("%v", r)
					}
					log.Error("ops handler panicked",
						logger.Error(err),
						logger.String("path", c.Request().RequestURI),
						logger.String("stack", string(debug.Stack())))
					_ = c.JSON(http.StatusInternalServerError, map[string]string{
						"error": "internal error",
					})
				}
			}()
			return next(c)
		}
	}
}
