package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nodorajosh/manilasbkoverdose/internal/repository"
	"github.com/nodorajosh/manilasbkoverdose/internal/service"
)

// writeError maps the service error taxonomy onto HTTP responses. Every
// expected error class carries enough detail for the user to know which
// line item and which constraint failed; only inconsistencies and unknown
// errors collapse into an opaque 500.
func writeError(c echo.Context, err error) error {
	var (
		validation   *service.ValidationError
		notFound     *service.NotFoundError
		stock        *repository.InsufficientStockError
		discount     *service.DiscountInapplicableError
		gateway      *service.GatewayError
		transition   *service.InvalidTransitionError
		inconsistent *service.InconsistencyError
	)
	switch {
	case errors.As(err, &validation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "detail": validation.Msg})
	case errors.As(err, &notFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "detail": notFound.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	case errors.As(err, &stock):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     "insufficient_stock",
			"ticket_id": stock.TicketID,
			"remaining": stock.Remaining,
		})
	case errors.As(err, &discount):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":     "discount_inapplicable",
			"code":      discount.Code,
			"ticket_id": discount.TicketID,
			"reason":    discount.Reason,
		})
	case errors.As(err, &gateway):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment_gateway", "detail": gateway.Error()})
	case errors.As(err, &transition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "invalid_transition", "detail": transition.Error()})
	case errors.As(err, &inconsistent):
		// Already logged loudly where it happened; never leak internals.
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	default:
		log.Printf("handler: unexpected error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
	}
}
