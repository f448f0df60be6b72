package scheduling

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// DefaultWindow is the half-width of the conflict window.
const DefaultWindow = 30 * time.Minute

// ErrRaceLost is matched by every *RaceLostError.
var ErrRaceLost = errors.New("appointment slot taken concurrently")

// WindowQuerier finds an active appointment of a practitioner whose date lies
// in [from, to], ignoring excludeID when it is non-zero. It returns nil, nil
// when there is none.
type WindowQuerier interface {
	FindActiveInWindow(ctx context.Context, practitionerID int64, from, to time.Time, excludeID int64) (*Appointment, error)
}

// ConflictChecker enforces that no two active appointments of a practitioner
// are closer than Window to each other.
type ConflictChecker struct {
	Window time.Duration
}

func NewConflictChecker(window time.Duration) *ConflictChecker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &ConflictChecker{Window: window}
}

// Find returns the appointment blocking a booking for practitionerID at at,
// or nil when the slot is free.
func (c *ConflictChecker) Find(ctx context.Context, q WindowQuerier, practitionerID int64, at time.Time, excludeID int64) (*Appointment, error) {
	blocking, err := q.FindActiveInWindow(ctx, practitionerID, at.Add(-c.Window), at.Add(c.Window), excludeID)
	if err != nil {
		return nil, fmt.Errorf("query conflict window: %w", err)
	}
	return blocking, nil
}

// Check is Find reporting a blocking appointment as a *ConflictError.
func (c *ConflictChecker) Check(ctx context.Context, q WindowQuerier, practitionerID int64, at time.Time, excludeID int64) error {
	blocking, err := c.Find(ctx, q, practitionerID, at, excludeID)
	if err != nil {
		return err
	}
	if blocking != nil {
		return &ConflictError{AppointmentID: blocking.ID, Window: c.Window}
	}
	return nil
}

// ConflictError reports a booking that falls inside another active
// appointment's window.
type ConflictError struct {
	AppointmentID int64
	Window        time.Duration
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Time conflict: Another appointment exists within %s of this time slot", windowText(e.Window))
}

// ConflictBody is the 409 response for a scheduling conflict.
type ConflictBody struct {
	Error                    string `json:"error"`
	ConflictingAppointmentID int64  `json:"conflictingAppointmentId"`
}

func (e *ConflictError) HTTPError() *echo.HTTPError {
	return echo.NewHTTPError(http.StatusConflict, ConflictBody{
		Error:                    e.Error(),
		ConflictingAppointmentID: e.AppointmentID,
	})
}

// RaceLostError reports a booking that passed the conflict check but lost to a
// concurrent write before commit. Callers may retry.
type RaceLostError struct {
	// ConflictingAppointmentID is set when the winning appointment is known.
	ConflictingAppointmentID int64
	Err                      error
}

func (e *RaceLostError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", ErrRaceLost, e.Err)
	}
	if e.ConflictingAppointmentID != 0 {
		return fmt.Sprintf("%s by appointment %d", ErrRaceLost, e.ConflictingAppointmentID)
	}
	return ErrRaceLost.Error()
}

func (e *RaceLostError) Unwrap() error { return e.Err }

func (e *RaceLostError) Is(target error) bool { return target == ErrRaceLost }

func (e *RaceLostError) RetryAfter() int { return 1 }

// RaceLostBody is the 409 response for a lost booking race.
type RaceLostBody struct {
	Error                    string `json:"error"`
	Retryable                bool   `json:"retryable"`
	ConflictingAppointmentID int64  `json:"conflictingAppointmentId,omitempty"`
}

func (e *RaceLostError) HTTPError() *echo.HTTPError {
	return echo.NewHTTPError(http.StatusConflict, RaceLostBody{
		Error:                    "Time slot was booked concurrently, please retry",
		Retryable:                true,
		ConflictingAppointmentID: e.ConflictingAppointmentID,
	}).SetInternal(e)
}

func windowText(d time.Duration) string {
	if d%time.Minute == 0 {
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}
