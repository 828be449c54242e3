package model

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

// Order lifecycle states.  Fulfilled, cancelled, refunded and failed are
// terminal; paid can still move to fulfilled or refunded by an
// administrator.
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFulfilled OrderStatus = "fulfilled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
	OrderStatusFailed    OrderStatus = "failed"
)

// legalTransitions encodes the full transition table of the order state
// machine.  Anything not listed here is an invalid move.
var legalTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusPaid:    {OrderStatusFulfilled, OrderStatusRefunded},
}

// CanTransition reports whether moving an order from one status to another
// is legal.  A transition to the current status is not a transition and is
// rejected here; callers that want idempotent no-ops must check equality
// themselves first.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return len(legalTransitions[s]) == 0
}

// Valid reports whether the status is one of the known lifecycle states.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFulfilled,
		OrderStatusCancelled, OrderStatusRefunded, OrderStatusFailed:
		return true
	}
	return false
}

// OrderItem is a line of an order.  Name, unit price and currency are
// snapshotted from the ticket at order time; the ticket may be renamed or
// repriced afterwards without affecting the order.
type OrderItem struct {
	ID             uint64 // order_items.id
	OrderID        string // order_items.order_id
	TicketID       string // order_items.ticket_id
	Name           string // order_items.name (snapshot)
	UnitPriceMinor int64  // order_items.unit_price_minor (snapshot, post-discount)
	Currency       string // order_items.currency (snapshot)
	Quantity       int    // order_items.quantity
	DiscountID     string // order_items.discount_id (empty when none applied)
	DiscountCode   string // order_items.discount_code (audit)
}

// LineTotalMinor is the snapshotted unit price times quantity.
func (it *OrderItem) LineTotalMinor() int64 {
	return it.UnitPriceMinor * int64(it.Quantity)
}

// Capture is a record of money captured by the payment provider for an
// order.  Capture rows are append-only and unique per provider capture id,
// which is what makes duplicate provider events detectable.
type Capture struct {
	CaptureID   string    // order_captures.capture_id
	OrderID     string    // order_captures.order_id
	AmountMinor int64     // order_captures.amount_minor
	Currency    string    // order_captures.currency
	CreatedAt   time.Time // order_captures.created_at
}

// Order is the durable record of a purchase attempt.  TotalMinor is always
// recomputed server-side from the item snapshots and never taken from the
// client.
type Order struct {
	ID              string      // orders.id (UUID string)
	UserID          string      // orders.user_id
	UserEmail       string      // orders.user_email
	Items           []OrderItem // order_items rows
	TotalMinor      int64       // orders.total_minor
	Currency        string      // orders.currency
	Status          OrderStatus // orders.status
	Provider        string      // orders.provider (e.g. "paypal")
	ProviderOrderID string      // orders.provider_order_id (gateway session id)
	ApprovalURL     string      // orders.approval_url
	Captures        []Capture   // order_captures rows
	CreatedAt       time.Time   // orders.created_at
	PaidAt          *time.Time  // orders.paid_at (nullable)
	CancelledAt     *time.Time  // orders.cancelled_at (nullable)
	UpdatedAt       time.Time   // orders.updated_at
}

// ComputeTotalMinor sums the snapshotted line totals.
func (o *Order) ComputeTotalMinor() int64 {
	var total int64
	for i := range o.Items {
		total += o.Items[i].LineTotalMinor()
	}
	return total
}

// HasCapture reports whether a capture with the given provider capture id
// is already recorded on the order.
func (o *Order) HasCapture(captureID string) bool {
	for i := range o.Captures {
		if o.Captures[i].CaptureID == captureID {
			return true
		}
	}
	return false
}
