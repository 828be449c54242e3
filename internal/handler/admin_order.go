package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nodorajosh/manilasbkoverdose/internal/middleware"
	"github.com/nodorajosh/manilasbkoverdose/internal/model"
	"github.com/nodorajosh/manilasbkoverdose/internal/repository"
	"github.com/nodorajosh/manilasbkoverdose/internal/service"
)

// AdminOrderHandler exposes the back-office order surface. RequireRole
// guards these routes; the service layer re-checks the role anyway for
// operations with side effects.
type AdminOrderHandler struct {
	svc    *service.CheckoutService
	orders *repository.OrderRepo
}

// NewAdminOrderHandler constructs an AdminOrderHandler.
func NewAdminOrderHandler(svc *service.CheckoutService, orders *repository.OrderRepo) *AdminOrderHandler {
	if svc == nil || orders == nil {
		panic("nil dependency passed to NewAdminOrderHandler")
	}
	return &AdminOrderHandler{svc: svc, orders: orders}
}

// List handles GET /v1/admin/orders. An optional ?status= filter narrows
// the result to one lifecycle state.
func (h *AdminOrderHandler) List(c echo.Context) error {
	var status *model.OrderStatus
	if raw := c.QueryParam("status"); raw != "" {
		st := model.OrderStatus(raw)
		if !st.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status filter: " + raw})
		}
		status = &st
	}
	orders, err := h.orders.ListAll(c.Request().Context(), status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": renderOrders(orders)})
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// SetStatus handles PATCH /v1/admin/orders/:id/status. Only moves allowed
// by the lifecycle table succeed; cancellation and refund release the
// order's reserved inventory as part of the move.
func (h *AdminOrderHandler) SetStatus(c echo.Context) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req setStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json body"})
	}
	order, err := h.svc.AdminSetStatus(c.Request().Context(), caller, c.Param("id"), model.OrderStatus(req.Status))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"order": renderOrder(order)})
}
