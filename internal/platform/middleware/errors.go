package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorHandler renders every error as JSON. String messages become
// {"error": msg}; structured messages are written as-is. Unknown errors
// are logged and reported as 500.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if !errors.As(err, &he) {
			he = &echo.HTTPError{Code: http.StatusInternalServerError, Message: "Internal server error", Internal: err}
		}

		if he.Code >= http.StatusInternalServerError {
			cause := err
			if he.Internal != nil {
				cause = he.Internal
			}
			logger.Error().
				Err(cause).
				Str("request_id", GetRequestID(c)).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var body interface{}
		switch m := he.Message.(type) {
		case string:
			body = map[string]string{"error": m}
		case error:
			body = map[string]string{"error": m.Error()}
		case nil:
			body = map[string]string{"error": http.StatusText(he.Code)}
		default:
			body = m
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(he.Code)
		} else {
			werr = c.JSON(he.Code, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}
