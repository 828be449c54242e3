package handler

import (
	"time"

	"github.com/nodorajosh/manilasbkoverdose/internal/model"
)

// Response shapes for the JSON API. Domain models stay free of transport
// tags; these views decide what leaves the service and under which names.

type ticketView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PriceMinor  int64  `json:"price_minor"`
	Currency    string `json:"currency"`
	Remaining   int    `json:"remaining"`
	Status      string `json:"status"`
}

// adminTicketView additionally exposes the raw counters the storefront
// view hides.
type adminTicketView struct {
	ticketView
	Quantity  int       `json:"quantity"`
	Sold      int       `json:"sold"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func renderTicket(t *model.Ticket) ticketView {
	return ticketView{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		PriceMinor:  t.PriceMinor,
		Currency:    t.Currency,
		Remaining:   t.Remaining(),
		Status:      t.Status,
	}
}

func renderAdminTicket(t *model.Ticket) adminTicketView {
	return adminTicketView{
		ticketView: renderTicket(t),
		Quantity:   t.Quantity,
		Sold:       t.Sold,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

type discountView struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Kind      string     `json:"kind"`
	Value     int64      `json:"value"`
	Currency  string     `json:"currency,omitempty"`
	MaxUses   *int       `json:"max_uses,omitempty"`
	Used      int        `json:"used"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Active    bool       `json:"active"`
	AppliesTo []string   `json:"applies_to,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func renderDiscount(d *model.Discount) discountView {
	return discountView{
		ID:        d.ID,
		Code:      d.Code,
		Kind:      d.Kind,
		Value:     d.Value,
		Currency:  d.Currency,
		MaxUses:   d.MaxUses,
		Used:      d.Used,
		ExpiresAt: d.ExpiresAt,
		Active:    d.Active,
		AppliesTo: d.AppliesTo,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type orderItemView struct {
	TicketID       string `json:"ticket_id"`
	Name           string `json:"name"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	Currency       string `json:"currency"`
	Quantity       int    `json:"quantity"`
	DiscountCode   string `json:"discount_code,omitempty"`
	LineTotalMinor int64  `json:"line_total_minor"`
}

type captureView struct {
	CaptureID   string    `json:"capture_id"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

type orderView struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	UserEmail       string          `json:"user_email"`
	Items           []orderItemView `json:"items"`
	TotalMinor      int64           `json:"total_minor"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	Provider        string          `json:"provider"`
	ProviderOrderID string          `json:"provider_order_id,omitempty"`
	ApprovalURL     string          `json:"approval_url,omitempty"`
	Captures        []captureView   `json:"captures,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
}

func renderOrder(o *model.Order) orderView {
	items := make([]orderItemView, 0, len(o.Items))
	for i := range o.Items {
		it := &o.Items[i]
		items = append(items, orderItemView{
			TicketID:       it.TicketID,
			Name:           it.Name,
			UnitPriceMinor: it.UnitPriceMinor,
			Currency:       it.Currency,
			Quantity:       it.Quantity,
			DiscountCode:   it.DiscountCode,
			LineTotalMinor: it.LineTotalMinor(),
		})
	}
	var captures []captureView
	for _, c := range o.Captures {
		captures = append(captures, captureView{
			CaptureID:   c.CaptureID,
			AmountMinor: c.AmountMinor,
			Currency:    c.Currency,
			CreatedAt:   c.CreatedAt,
		})
	}
	return orderView{
		ID:              o.ID,
		UserID:          o.UserID,
		UserEmail:       o.UserEmail,
		Items:           items,
		TotalMinor:      o.TotalMinor,
		Currency:        o.Currency,
		Status:          string(o.Status),
		Provider:        o.Provider,
		ProviderOrderID: o.ProviderOrderID,
		ApprovalURL:     o.ApprovalURL,
		Captures:        captures,
		CreatedAt:       o.CreatedAt,
		PaidAt:          o.PaidAt,
		CancelledAt:     o.CancelledAt,
	}
}

func renderOrders(orders []model.Order) []orderView {
	out := make([]orderView, 0, len(orders))
	for i := range orders {
		out = append(out, renderOrder(&orders[i]))
	}
	return out
}
