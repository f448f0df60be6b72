package httperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/docteurlibre/med-api/internal/platform/store"
	"github.com/docteurlibre/med-api/internal/validation"
)

var bills = Entity{
	Name:      "Bill",
	Duplicate: "Bill already exists for this appointment",
	References: map[string]validation.Violation{
		"fk_bills_appointment": {Field: "appointmentId", Message: "appointment not found"},
	},
}

func newContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	return e.NewContext(httptest.NewRequest(http.MethodPost, "/api/bills", nil), rec), rec
}

func asHTTP(t *testing.T, err error) *echo.HTTPError {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he
}

func TestEntityError_StoreErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"not found", fmt.Errorf("get bill: %w", store.ErrNotFound), http.StatusNotFound, "Bill not found"},
		{"duplicate", &store.ConstraintError{Kind: store.Unique, Constraint: "idx_bills_appointment"}, http.StatusConflict, "Bill already exists for this appointment"},
		{"still referenced", &store.ConstraintError{Kind: store.ForeignKey, Constraint: "fk_other"}, http.StatusConflict, "Bill is still referenced"},
		{"check", &store.ConstraintError{Kind: store.Check}, http.StatusUnprocessableEntity, "Invalid bill data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newContext()
			he := asHTTP(t, bills.Error(c, tt.err))
			if he.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, he.Code)
			}
			if he.Message != tt.msg {
				t.Errorf("expected %q, got %v", tt.msg, he.Message)
			}
		})
	}
}

func TestEntityError_MissingReferenceIsValidation(t *testing.T) {
	c, _ := newContext()
	err := &store.ConstraintError{Kind: store.ForeignKey, Constraint: "fk_bills_appointment"}
	he := asHTTP(t, bills.Error(c, err))

	if he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", he.Code)
	}
	body, ok := he.Message.(ValidationBody)
	if !ok {
		t.Fatalf("expected ValidationBody, got %T", he.Message)
	}
	if len(body.Details) != 1 || body.Details[0].Field != "appointmentId" {
		t.Errorf("unexpected details: %+v", body.Details)
	}
}

func TestEntityError_ReferenceWinsOverNotFound(t *testing.T) {
	c, _ := newContext()
	err := fmt.Errorf("lock: %w", &store.ConstraintError{Kind: store.ForeignKey, Constraint: "fk_bills_appointment", Err: store.ErrNotFound})
	he := asHTTP(t, bills.Error(c, err))

	if he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (%v)", he.Code, he.Message)
	}
	body := he.Message.(ValidationBody)
	if len(body.Details) != 1 || body.Details[0].Field != "appointmentId" {
		t.Errorf("unexpected details: %+v", body.Details)
	}
}

func TestEntityError_Validation(t *testing.T) {
	c, _ := newContext()
	ve := &validation.Error{Entity: "bill", Violations: []validation.Violation{
		{Field: "amount", Message: "amount is required"},
		{Field: "description", Message: "description is required"},
	}}
	he := asHTTP(t, bills.Error(c, fmt.Errorf("create: %w", ve)))
	body := he.Message.(ValidationBody)
	if body.Error != "Validation failed" || len(body.Details) != 2 {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestEntityError_Retryable(t *testing.T) {
	c, rec := newContext()
	he := asHTTP(t, bills.Error(c, store.Retryable(errors.New("deadlock"))))
	if he.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", he.Code)
	}
	if body, ok := he.Message.(RetryBody); !ok || !body.Retryable {
		t.Errorf("expected retryable body, got %#v", he.Message)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After 1, got %q", rec.Header().Get("Retry-After"))
	}
}

type selfRendering struct{}

func (selfRendering) Error() string   { return "self" }
func (selfRendering) RetryAfter() int { return 2 }
func (selfRendering) HTTPError() *echo.HTTPError {
	return echo.NewHTTPError(http.StatusConflict, "custom")
}

func TestEntityError_Responder(t *testing.T) {
	c, rec := newContext()
	he := asHTTP(t, bills.Error(c, fmt.Errorf("wrapped: %w", selfRendering{})))
	if he.Message != "custom" {
		t.Errorf("expected custom message, got %v", he.Message)
	}
	if rec.Header().Get("Retry-After") != "2" {
		t.Errorf("expected Retry-After 2, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestEntityError_Passthrough(t *testing.T) {
	c, _ := newContext()
	plain := errors.New("boom")
	if got := bills.Error(c, plain); got != plain {
		t.Errorf("expected unknown error unchanged, got %v", got)
	}
	if bills.Error(c, nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestParseID(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-4", ""} {
		e := echo.New()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(raw)
		_, err := bills.ParseID(c)
		if he := asHTTP(t, err); he.Code != http.StatusBadRequest || he.Message != "Invalid bill id" {
			t.Errorf("id %q: unexpected error %v", raw, he)
		}
	}

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("42")
	if id, err := bills.ParseID(c); err != nil || id != 42 {
		t.Errorf("expected 42, got %d (%v)", id, err)
	}
}

func TestDecodeInput(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		check   func(t *testing.T, in validation.Input)
	}{
		{"object", `{"amount": 12.50, "patientId": 3}`, false, func(t *testing.T, in validation.Input) {
			if n, ok := in["amount"].(json.Number); !ok || n.String() != "12.50" {
				t.Errorf("expected json.Number 12.50, got %#v", in["amount"])
			}
		}},
		{"empty body", ``, false, func(t *testing.T, in validation.Input) {
			if len(in) != 0 {
				t.Errorf("expected empty input, got %v", in)
			}
		}},
		{"array", `[1,2]`, true, nil},
		{"null", `null`, true, nil},
		{"malformed", `{"a":`, true, nil},
		{"trailing", `{"a":1}{"b":2}`, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c := e.NewContext(req, httptest.NewRecorder())
			in, err := DecodeInput(c)
			if tt.wantErr {
				if he := asHTTP(t, err); he.Code != http.StatusBadRequest {
					t.Errorf("expected 400, got %d", he.Code)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, in)
		})
	}
}
