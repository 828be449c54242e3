package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nodorajosh/manilasbkoverdose/internal/model"
	"github.com/nodorajosh/manilasbkoverdose/internal/repository"
	"github.com/nodorajosh/manilasbkoverdose/internal/service"
)

// DiscountHandler serves the pre-checkout discount preview. Validation
// here is advisory: the authoritative check and the atomic consumption
// both happen inside checkout.
type DiscountHandler struct {
	discounts *repository.DiscountRepo
	tickets   *repository.TicketRepo
}

// NewDiscountHandler constructs a DiscountHandler.
func NewDiscountHandler(discounts *repository.DiscountRepo, tickets *repository.TicketRepo) *DiscountHandler {
	if discounts == nil || tickets == nil {
		panic("nil repository passed to NewDiscountHandler")
	}
	return &DiscountHandler{discounts: discounts, tickets: tickets}
}

type validateDiscountRequest struct {
	Code     string `json:"code"`
	TicketID string `json:"ticket_id"`
}

type validateDiscountResponse struct {
	Valid          bool   `json:"valid"`
	Reason         string `json:"reason,omitempty"`
	Code           string `json:"code"`
	UnitPriceMinor int64  `json:"unit_price_minor,omitempty"`
	DiscountedTo   int64  `json:"discounted_unit_price_minor,omitempty"`
	Currency       string `json:"currency,omitempty"`
}

// Validate handles POST /v1/discounts/validate: given a code and a ticket,
// report whether the code would apply right now and the unit price it
// would produce. A rejected code answers 200 with valid=false and the
// reason, because an inapplicable code is an expected answer, not an
// error.
func (h *DiscountHandler) Validate(c echo.Context) error {
	var req validateDiscountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json body"})
	}
	if req.Code == "" || req.TicketID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code and ticket_id are required"})
	}

	ctx := c.Request().Context()
	code := model.NormalizeDiscountCode(req.Code)

	t, err := h.tickets.FindByID(ctx, req.TicketID)
	if err != nil {
		return writeError(c, err)
	}

	d, err := h.discounts.FindByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusOK, validateDiscountResponse{
			Valid:  false,
			Reason: service.DiscountReasonNotFound,
			Code:   code,
		})
	}
	if err != nil {
		return writeError(c, err)
	}

	priced, err := service.ValidateDiscount(d, t, time.Now())
	if err != nil {
		var inapplicable *service.DiscountInapplicableError
		if errors.As(err, &inapplicable) {
			return c.JSON(http.StatusOK, validateDiscountResponse{
				Valid:  false,
				Reason: inapplicable.Reason,
				Code:   code,
			})
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, validateDiscountResponse{
		Valid:          true,
		Code:           code,
		UnitPriceMinor: t.PriceMinor,
		DiscountedTo:   priced,
		Currency:       t.Currency,
	})
}
