package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nodorajosh/manilasbkoverdose/internal/model"
	"github.com/nodorajosh/manilasbkoverdose/internal/repository"
)

// AdminTicketHandler manages the catalogue: creating, editing and
// archiving tickets. The sold counter is out of reach here; only the
// reserve and release paths move it.
type AdminTicketHandler struct {
	tickets *repository.TicketRepo
}

// NewAdminTicketHandler constructs an AdminTicketHandler.
func NewAdminTicketHandler(tickets *repository.TicketRepo) *AdminTicketHandler {
	if tickets == nil {
		panic("nil repository passed to NewAdminTicketHandler")
	}
	return &AdminTicketHandler{tickets: tickets}
}

type ticketRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceMinor  int64  `json:"price_minor"`
	Currency    string `json:"currency"`
	Quantity    int    `json:"quantity"`
	Status      string `json:"status"`
}

func (r *ticketRequest) validate() string {
	switch {
	case r.Name == "":
		return "name is required"
	case r.PriceMinor < 0:
		return "price_minor must not be negative"
	case r.Currency == "":
		return "currency is required"
	case r.Quantity < 0:
		return "quantity must not be negative"
	}
	switch r.Status {
	case "", model.TicketStatusActive, model.TicketStatusArchived, model.TicketStatusDraft:
		return ""
	}
	return "unknown status: " + r.Status
}

// Create handles POST /v1/admin/tickets.
func (h *AdminTicketHandler) Create(c echo.Context) error {
	var req ticketRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	status := req.Status
	if status == "" {
		status = model.TicketStatusDraft
	}
	t := &model.Ticket{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		PriceMinor:  req.PriceMinor,
		Currency:    req.Currency,
		Quantity:    req.Quantity,
		Status:      status,
	}
	if err := h.tickets.Create(c.Request().Context(), t); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"ticket": renderAdminTicket(t)})
}

// Update handles PUT /v1/admin/tickets/:id. Lowering quantity below the
// sold count is allowed and simply leaves nothing for sale; existing
// reservations are never clawed back.
func (h *AdminTicketHandler) Update(c echo.Context) error {
	var req ticketRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ctx := c.Request().Context()
	t, err := h.tickets.FindByID(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	t.Name = req.Name
	t.Description = req.Description
	t.PriceMinor = req.PriceMinor
	t.Currency = req.Currency
	t.Quantity = req.Quantity
	if req.Status != "" {
		t.Status = req.Status
	}
	if err := h.tickets.Update(ctx, t); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ticket": renderAdminTicket(t)})
}

// Archive handles DELETE /v1/admin/tickets/:id: a soft archive so orders
// that reference the ticket keep their snapshots intact.
func (h *AdminTicketHandler) Archive(c echo.Context) error {
	if err := h.tickets.Archive(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"archived": true})
}
