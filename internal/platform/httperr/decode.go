package httperr

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/docteurlibre/med-api/internal/validation"
)

// DecodeInput reads the request body as a JSON object. Numbers are kept as
// json.Number so the validation engine decides how to coerce them.
func DecodeInput(c echo.Context) (validation.Input, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return nil, he
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Could not read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return validation.Input{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var in validation.Input
	if err := dec.Decode(&in); err != nil || in == nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Request body must be a JSON object")
	}
	if dec.More() {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Request body must be a single JSON object")
	}
	return in, nil
}
