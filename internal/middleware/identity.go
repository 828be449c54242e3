package middleware

// identity.go bridges the claims stored in the Echo context by JWTAuth
// into the explicit Identity value the checkout service expects. Nothing
// below the transport layer ever reads ambient request state.

import (
	"github.com/labstack/echo/v4"

	"github.com/nodorajosh/manilasbkoverdose/internal/service"
)

// Caller assembles the verified identity of the current request. It
// returns false when no authenticated identity is present, which only
// happens if a handler is wired without JWTAuth.
func Caller(c echo.Context) (service.Identity, bool) {
	id := service.Identity{}
	if v, ok := c.Get("user_id").(string); ok {
		id.UserID = v
	}
	if v, ok := c.Get("email").(string); ok {
		id.Email = v
	}
	if v, ok := c.Get("role").(string); ok {
		id.Role = v
	}
	return id, id.UserID != ""
}
