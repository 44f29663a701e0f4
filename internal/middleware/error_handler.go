package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

const internalErrorMessage = "Internal server error"

// JSONErrorHandler answers every error as {"status": false, "message": ...}.
// Errors that are not *echo.HTTPError become a 500 with a fixed message; the
// real cause is only logged.
func JSONErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := internalErrorMessage

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if msg, ok := he.Message.(string); ok && msg != "" {
				message = msg
			} else {
				message = http.StatusText(code)
			}
			if code >= http.StatusInternalServerError && he.Internal != nil {
				message = internalErrorMessage
			}
		}

		attrs := []any{
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", code,
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"err", err,
		}
		if code >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "request failed", attrs...)
		} else {
			logger.WarnContext(c.Request().Context(), "request rejected", attrs...)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(code)
		} else {
			writeErr = c.JSON(code, map[string]interface{}{
				"status":  false,
				"message": message,
			})
		}
		if writeErr != nil {
			logger.ErrorContext(c.Request().Context(), "failed to write error response", "err", writeErr)
		}
	}
}
