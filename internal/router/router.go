// Package router wires handlers to routes and applies the per-group
// middleware chain: JWT authentication, role enforcement and the checkout
// rate limiter.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/nodorajosh/manilasbkoverdose/internal/handler"
	"github.com/nodorajosh/manilasbkoverdose/internal/middleware"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Checkout      *handler.CheckoutHandler
	Order         *handler.OrderHandler
	Ticket        *handler.TicketHandler
	Discount      *handler.DiscountHandler
	Webhook       *handler.WebhookHandler
	AdminOrder    *handler.AdminOrderHandler
	AdminTicket   *handler.AdminTicketHandler
	AdminDiscount *handler.AdminDiscountHandler
}

// RegisterRoutes mounts the full API surface.
//
// Public routes need no token: the storefront catalogue, the discount
// preview, the provider webhook (authenticated by its own signature, not
// by JWT) and the health check. Customer routes require a valid access
// token with the CUSTOMER or ADMIN role; the back office requires ADMIN.
// The rate limiter guards only checkout, the endpoint bursts of
// concurrent attempts land on.
func RegisterRoutes(e *echo.Echo, h Handlers, jwtSecret string, rateLimit echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)

	e.GET("/v1/tickets", h.Ticket.List)
	e.GET("/v1/tickets/:id", h.Ticket.Get)
	e.POST("/v1/discounts/validate", h.Discount.Validate)
	e.POST("/v1/paypal/webhook", h.Webhook.Handle)

	user := e.Group("/v1")
	user.Use(middleware.JWTAuth(jwtSecret))
	user.Use(middleware.RequireRole("ADMIN", "CUSTOMER"))
	user.POST("/checkout", h.Checkout.Checkout, rateLimit)
	user.GET("/orders", h.Order.List)
	user.GET("/orders/:id", h.Order.Get)
	user.POST("/orders/:id/capture", h.Order.Capture)
	user.POST("/orders/:id/cancel", h.Order.Cancel)

	admin := e.Group("/v1/admin")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole("ADMIN"))
	admin.GET("/orders", h.AdminOrder.List)
	admin.PATCH("/orders/:id/status", h.AdminOrder.SetStatus)
	admin.GET("/discounts", h.AdminDiscount.List)
	admin.POST("/discounts", h.AdminDiscount.Create)
	admin.PUT("/discounts/:id", h.AdminDiscount.Update)
	admin.POST("/tickets", h.AdminTicket.Create)
	admin.PUT("/tickets/:id", h.AdminTicket.Update)
	admin.DELETE("/tickets/:id", h.AdminTicket.Archive)
}
