package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nodorajosh/manilasbkoverdose/internal/middleware"
	"github.com/nodorajosh/manilasbkoverdose/internal/service"
)

// CheckoutHandler exposes the checkout use case. Authentication and role
// checks are performed by middleware before any method here runs.
type CheckoutHandler struct {
	svc *service.CheckoutService
}

// NewCheckoutHandler constructs a CheckoutHandler.
func NewCheckoutHandler(svc *service.CheckoutService) *CheckoutHandler {
	if svc == nil {
		panic("nil service passed to NewCheckoutHandler")
	}
	return &CheckoutHandler{svc: svc}
}

// Checkout handles POST /v1/checkout. The body carries the cart lines;
// prices and totals are never read from the client. On success it returns
// 201 with the order id and the provider approval link.
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var in service.CheckoutInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json body"})
	}

	result, err := h.svc.Checkout(c.Request().Context(), caller, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}
