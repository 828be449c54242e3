package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nodorajosh/manilasbkoverdose/internal/repository"
)

// TicketHandler serves the public storefront catalogue.
type TicketHandler struct {
	tickets *repository.TicketRepo
}

// NewTicketHandler constructs a TicketHandler.
func NewTicketHandler(tickets *repository.TicketRepo) *TicketHandler {
	if tickets == nil {
		panic("nil repository passed to NewTicketHandler")
	}
	return &TicketHandler{tickets: tickets}
}

// List handles GET /v1/tickets: every active ticket with its remaining
// availability. The remaining count is a snapshot and may be stale by the
// time the buyer checks out.
func (h *TicketHandler) List(c echo.Context) error {
	tickets, err := h.tickets.ListActive(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	views := make([]ticketView, 0, len(tickets))
	for i := range tickets {
		views = append(views, renderTicket(&tickets[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": views})
}

// Get handles GET /v1/tickets/:id for a single active ticket.
func (h *TicketHandler) Get(c echo.Context) error {
	t, err := h.tickets.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ticket": renderTicket(t)})
}
