package scheduling

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/docteurlibre/med-api/internal/platform/httperr"
	"github.com/docteurlibre/med-api/internal/validation"
)

var (
	appointmentErrors = httperr.Entity{
		Name:      "Appointment",
		Duplicate: "Appointment already exists",
		References: map[string]validation.Violation{
			"fk_appointments_patient":      {Field: "patientId", Message: "Patient not found"},
			"fk_appointments_practitioner": {Field: "practitionerId", Message: "Practitioner not found"},
		},
	}
	patientErrors      = httperr.Entity{Name: "Patient"}
	practitionerErrors = httperr.Entity{Name: "Practitioner"}
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/appointments")
	g.GET("", h.ListAppointments)
	g.GET("/:id", h.GetAppointment)
	g.POST("", h.CreateAppointment)
	g.PUT("/:id", h.UpdateAppointment)
	g.DELETE("/:id", h.DeleteAppointment)
	g.GET("/patient/:id/appointments", h.ListPatientAppointments)

	for _, prefix := range []string{"/patients", "/patient"} {
		api.GET(prefix+"/:id/appointments", h.ListPatientAppointments)
	}
	for _, prefix := range []string{"/praticiens", "/praticien"} {
		api.GET(prefix+"/:id/appointments", h.ListPractitionerAppointments)
	}
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	in, err := httperr.DecodeInput(c)
	if err != nil {
		return err
	}
	a, err := h.svc.CreateAppointment(c.Request().Context(), in)
	if err != nil {
		return appointmentErrors.Error(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := appointmentErrors.ParseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return appointmentErrors.Error(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	f := Filter{Status: c.QueryParam("status")}
	var err error
	if f.From, err = h.dateParam(c, "dateFrom"); err != nil {
		return err
	}
	if f.To, err = h.dateParam(c, "dateTo"); err != nil {
		return err
	}
	items, err := h.svc.ListAppointments(c.Request().Context(), f)
	if err != nil {
		return appointmentErrors.Error(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := appointmentErrors.ParseID(c)
	if err != nil {
		return err
	}
	in, err := httperr.DecodeInput(c)
	if err != nil {
		return err
	}
	a, err := h.svc.UpdateAppointment(c.Request().Context(), id, in)
	if err != nil {
		return appointmentErrors.Error(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := appointmentErrors.ParseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), id); err != nil {
		return appointmentErrors.Error(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPatientAppointments(c echo.Context) error {
	id, err := patientErrors.ParseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListByPatient(c.Request().Context(), id)
	if err != nil {
		return patientErrors.Error(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListPractitionerAppointments(c echo.Context) error {
	id, err := practitionerErrors.ParseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListByPractitioner(c.Request().Context(), id)
	if err != nil {
		return practitionerErrors.Error(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) dateParam(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, ok := validation.ParseTime(raw, h.svc.Location())
	if !ok {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name)
	}
	return &t, nil
}
