package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nodorajosh/manilasbkoverdose/internal/middleware"
	"github.com/nodorajosh/manilasbkoverdose/internal/repository"
	"github.com/nodorajosh/manilasbkoverdose/internal/service"
)

// OrderHandler serves a customer's own orders: listing, detail, the
// user-return capture path and owner cancellation. All methods assume
// JWTAuth ran first.
type OrderHandler struct {
	svc    *service.CheckoutService
	orders *repository.OrderRepo
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(svc *service.CheckoutService, orders *repository.OrderRepo) *OrderHandler {
	if svc == nil || orders == nil {
		panic("nil dependency passed to NewOrderHandler")
	}
	return &OrderHandler{svc: svc, orders: orders}
}

// List handles GET /v1/orders and returns the caller's orders, newest
// first.
func (h *OrderHandler) List(c echo.Context) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orders, err := h.orders.ListByUser(c.Request().Context(), caller.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": renderOrders(orders)})
}

// Get handles GET /v1/orders/:id. Administrators may view any order;
// customers only their own.
func (h *OrderHandler) Get(c echo.Context) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	order, err := h.orders.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	if order.UserID != caller.UserID && !caller.IsAdmin() {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, echo.Map{"order": renderOrder(order)})
}

type captureRequest struct {
	ProviderOrderID string `json:"paypal_order_id"`
}

// Capture handles POST /v1/orders/:id/capture, the user-return
// reconciliation path: the buyer approved the session at the provider and
// came back with its id. The stored session id is authoritative; the
// submitted one only has to match it.
func (h *OrderHandler) Capture(c echo.Context) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req captureRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json body"})
	}
	if req.ProviderOrderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "paypal_order_id is required"})
	}
	order, err := h.svc.CaptureApprovedOrder(c.Request().Context(), caller, c.Param("id"), req.ProviderOrderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"order": renderOrder(order)})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /v1/orders/:id/cancel. Owners may cancel only while
// the order is pending; the reservation is released and a cancellation
// notification fires. Cancelling twice is a no-op.
func (h *OrderHandler) Cancel(c echo.Context) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json body"})
	}
	order, err := h.svc.Cancel(c.Request().Context(), caller, c.Param("id"), req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"order": renderOrder(order)})
}
