package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nodorajosh/manilasbkoverdose/internal/middleware"
	"github.com/nodorajosh/manilasbkoverdose/internal/model"
	"github.com/nodorajosh/manilasbkoverdose/internal/repository"
)

// AdminDiscountHandler manages promotion codes. The used counter is not
// editable from here; only checkout's atomic consume moves it.
type AdminDiscountHandler struct {
	discounts *repository.DiscountRepo
}

// NewAdminDiscountHandler constructs an AdminDiscountHandler.
func NewAdminDiscountHandler(discounts *repository.DiscountRepo) *AdminDiscountHandler {
	if discounts == nil {
		panic("nil repository passed to NewAdminDiscountHandler")
	}
	return &AdminDiscountHandler{discounts: discounts}
}

type discountRequest struct {
	Code      string     `json:"code"`
	Kind      string     `json:"kind"`
	Value     int64      `json:"value"`
	Currency  string     `json:"currency"`
	MaxUses   *int       `json:"max_uses"`
	ExpiresAt *time.Time `json:"expires_at"`
	Active    *bool      `json:"active"`
	AppliesTo []string   `json:"applies_to"`
}

func (r *discountRequest) validate(requireCode bool) string {
	if requireCode && model.NormalizeDiscountCode(r.Code) == "" {
		return "code is required"
	}
	switch r.Kind {
	case model.DiscountKindFixed:
		if r.Value < 0 {
			return "value must not be negative"
		}
	case model.DiscountKindPercent:
		if r.Value < 0 || r.Value > 100 {
			return "percent value must be between 0 and 100"
		}
		if r.Currency != "" {
			return "percent discounts carry no currency"
		}
	default:
		return "kind must be fixed or percent"
	}
	if r.MaxUses != nil && *r.MaxUses < 1 {
		return "max_uses must be at least 1"
	}
	return ""
}

// List handles GET /v1/admin/discounts.
func (h *AdminDiscountHandler) List(c echo.Context) error {
	discounts, err := h.discounts.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	views := make([]discountView, 0, len(discounts))
	for i := range discounts {
		views = append(views, renderDiscount(&discounts[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"discounts": views})
}

// Create handles POST /v1/admin/discounts.
func (h *AdminDiscountHandler) Create(c echo.Context) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req discountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json body"})
	}
	if msg := req.validate(true); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	d := &model.Discount{
		ID:        uuid.NewString(),
		Code:      model.NormalizeDiscountCode(req.Code),
		Kind:      req.Kind,
		Value:     req.Value,
		Currency:  req.Currency,
		MaxUses:   req.MaxUses,
		ExpiresAt: req.ExpiresAt,
		Active:    active,
		AppliesTo: req.AppliesTo,
		CreatedBy: caller.UserID,
	}
	if err := h.discounts.Create(c.Request().Context(), d); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"discount": renderDiscount(d)})
}

// Update handles PUT /v1/admin/discounts/:id. The code itself is
// immutable once issued; everything else, including the kill switch and
// the allow-list, can change.
func (h *AdminDiscountHandler) Update(c echo.Context) error {
	var req discountRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json body"})
	}
	if msg := req.validate(false); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ctx := c.Request().Context()
	d, err := h.discounts.FindByID(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	d.Kind = req.Kind
	d.Value = req.Value
	d.Currency = req.Currency
	d.MaxUses = req.MaxUses
	d.ExpiresAt = req.ExpiresAt
	if req.Active != nil {
		d.Active = *req.Active
	}
	d.AppliesTo = req.AppliesTo
	if err := h.discounts.Update(ctx, d); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"discount": renderDiscount(d)})
}
