package billing

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/docteurlibre/med-api/internal/platform/httperr"
	"github.com/docteurlibre/med-api/internal/validation"
)

var billErrors = httperr.Entity{
	Name:      "Bill",
	Duplicate: "Bill already exists for this appointment",
	References: map[string]validation.Violation{
		"fk_bills_patient":     {Field: "patientId", Message: "Patient not found"},
		"fk_bills_appointment": {Field: "appointmentId", Message: "Appointment not found"},
	},
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/bills")
	g.GET("", h.ListBills)
	g.GET("/:id", h.GetBill)
	g.POST("", h.CreateBill)
	g.PUT("/:id", h.UpdateBill)
	g.DELETE("/:id", h.DeleteBill)
}

func (h *Handler) CreateBill(c echo.Context) error {
	in, err := httperr.DecodeInput(c)
	if err != nil {
		return err
	}
	b, err := h.svc.CreateBill(c.Request().Context(), in)
	if err != nil {
		return billErrors.Error(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBill(c echo.Context) error {
	id, err := billErrors.ParseID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.GetBill(c.Request().Context(), id)
	if err != nil {
		return billErrors.Error(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ListBills(c echo.Context) error {
	items, err := h.svc.ListBills(c.Request().Context())
	if err != nil {
		return billErrors.Error(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateBill(c echo.Context) error {
	id, err := billErrors.ParseID(c)
	if err != nil {
		return err
	}
	in, err := httperr.DecodeInput(c)
	if err != nil {
		return err
	}
	b, err := h.svc.UpdateBill(c.Request().Context(), id, in)
	if err != nil {
		return billErrors.Error(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) DeleteBill(c echo.Context) error {
	id, err := billErrors.ParseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteBill(c.Request().Context(), id); err != nil {
		return billErrors.Error(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
