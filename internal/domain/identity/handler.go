package identity

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/docteurlibre/med-api/internal/platform/httperr"
)

var (
	patientErrors      = httperr.Entity{Name: "Patient", Duplicate: "Patient already exists"}
	practitionerErrors = httperr.Entity{Name: "Practitioner", Duplicate: "Practitioner already exists"}
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts both resources under their plural and singular paths.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	for _, prefix := range []string{"/patients", "/patient"} {
		g := api.Group(prefix)
		g.GET("", h.ListPatients)
		g.GET("/:id", h.GetPatient)
		g.POST("", h.CreatePatient)
		g.PUT("/:id", h.UpdatePatient)
		g.DELETE("/:id", h.DeletePatient)
	}
	for _, prefix := range []string{"/praticiens", "/praticien"} {
		g := api.Group(prefix)
		g.GET("", h.ListPractitioners)
		g.GET("/:id", h.GetPractitioner)
		g.POST("", h.CreatePractitioner)
		g.PUT("/:id", h.UpdatePractitioner)
		g.DELETE("/:id", h.DeletePractitioner)
	}
}

// -- Patient Handlers --

func (h *Handler) CreatePatient(c echo.Context) error {
	in, err := httperr.DecodeInput(c)
	if err != nil {
		return err
	}
	p, err := h.svc.CreatePatient(c.Request().Context(), in)
	if err != nil {
		return patientErrors.Error(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := patientErrors.ParseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return patientErrors.Error(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	items, err := h.svc.ListPatients(c.Request().Context())
	if err != nil {
		return patientErrors.Error(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := patientErrors.ParseID(c)
	if err != nil {
		return err
	}
	in, err := httperr.DecodeInput(c)
	if err != nil {
		return err
	}
	p, err := h.svc.UpdatePatient(c.Request().Context(), id, in)
	if err != nil {
		return patientErrors.Error(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := patientErrors.ParseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePatient(c.Request().Context(), id); err != nil {
		return patientErrors.Error(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Practitioner Handlers --

func (h *Handler) CreatePractitioner(c echo.Context) error {
	in, err := httperr.DecodeInput(c)
	if err != nil {
		return err
	}
	p, err := h.svc.CreatePractitioner(c.Request().Context(), in)
	if err != nil {
		return practitionerErrors.Error(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPractitioner(c echo.Context) error {
	id, err := practitionerErrors.ParseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPractitioner(c.Request().Context(), id)
	if err != nil {
		return practitionerErrors.Error(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPractitioners(c echo.Context) error {
	f := PractitionerFilter{
		Specialty: c.QueryParam("specialty"),
		SortBy:    c.QueryParam("sortBy"),
	}
	items, err := h.svc.ListPractitioners(c.Request().Context(), f)
	if err != nil {
		return practitionerErrors.Error(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdatePractitioner(c echo.Context) error {
	id, err := practitionerErrors.ParseID(c)
	if err != nil {
		return err
	}
	in, err := httperr.DecodeInput(c)
	if err != nil {
		return err
	}
	p, err := h.svc.UpdatePractitioner(c.Request().Context(), id, in)
	if err != nil {
		return practitionerErrors.Error(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePractitioner(c echo.Context) error {
	id, err := practitionerErrors.ParseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePractitioner(c.Request().Context(), id); err != nil {
		return practitionerErrors.Error(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
