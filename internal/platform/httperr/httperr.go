// Package httperr maps validation and store errors onto echo HTTP errors with
// the JSON bodies the API promises.
package httperr

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/docteurlibre/med-api/internal/platform/store"
	"github.com/docteurlibre/med-api/internal/validation"
)

// ValidationBody is the 422 response for a ValidationFailure.
type ValidationBody struct {
	Error   string                 `json:"error"`
	Details []validation.Violation `json:"details"`
}

// RetryBody is the 409 response for writes that lost a race and may be retried.
type RetryBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// Responder is implemented by domain errors that render their own response.
type Responder interface {
	HTTPError() *echo.HTTPError
}

// Retrier is implemented by errors the caller should retry after a delay.
type Retrier interface {
	RetryAfter() int
}

// Validation builds the 422 response for ve.
func Validation(ve *validation.Error) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusUnprocessableEntity, ValidationBody{
		Error:   "Validation failed",
		Details: ve.Violations,
	})
}

// Entity describes how store failures of one entity kind are reported.
type Entity struct {
	// Name is the capitalized entity name, e.g. "Patient".
	Name string
	// Duplicate is the 409 message for unique violations.
	Duplicate string
	// References maps the entity's own foreign-key constraint names to the
	// violation reported when the referenced row does not exist. Any other
	// foreign-key failure means a dependent row still references this one.
	References map[string]validation.Violation
}

// NotFound returns the 404 for this entity.
func (e Entity) NotFound() *echo.HTTPError {
	return echo.NewHTTPError(http.StatusNotFound, e.Name+" not found")
}

// BadID returns the 400 for a malformed path id.
func (e Entity) BadID() *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, "Invalid "+lower(e.Name)+" id")
}

// ParseID reads the :id path parameter as a positive integer.
func (e Entity) ParseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, e.BadID()
	}
	return id, nil
}

// Error converts err into the HTTP error for this entity. Errors it does not
// recognize are returned unchanged and end up as 500.
func (e Entity) Error(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var rt Retrier
	if errors.As(err, &rt) && rt.RetryAfter() > 0 {
		c.Response().Header().Set("Retry-After", strconv.Itoa(rt.RetryAfter()))
	}

	var rs Responder
	if errors.As(err, &rs) {
		return rs.HTTPError()
	}

	if ve, ok := validation.AsError(err); ok {
		return Validation(ve)
	}

	// Constraint kinds are matched before ErrNotFound: a missing referenced
	// row is a problem with the input, not with the addressed entity.
	switch {
	case errors.Is(err, store.ErrReference):
		if v, ok := e.References[store.ConstraintName(err)]; ok {
			return Validation(&validation.Error{Entity: lower(e.Name), Violations: []validation.Violation{v}})
		}
		return echo.NewHTTPError(http.StatusConflict, e.Name+" is still referenced")
	case errors.Is(err, store.ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, e.Duplicate)
	case errors.Is(err, store.ErrNotFound):
		return e.NotFound()
	case errors.Is(err, store.ErrCheck):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Invalid "+lower(e.Name)+" data")
	case errors.Is(err, store.ErrRetryable):
		c.Response().Header().Set("Retry-After", "1")
		return echo.NewHTTPError(http.StatusConflict, RetryBody{
			Error:     "Concurrent update, please retry",
			Retryable: true,
		}).SetInternal(err)
	}
	return err
}

// lower lower-cases the first letter of an entity name.
func lower(name string) string {
	if name == "" {
		return name
	}
	b := []byte(name)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
