// Package service contains the checkout orchestrator: the use-case layer
// that validates a cart, reserves inventory, applies discounts, persists
// the order and drives it through the payment-provider round trip. All
// identity flows in as an explicit parameter; nothing is read from ambient
// request state.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nodorajosh/manilasbkoverdose/internal/model"
	"github.com/nodorajosh/manilasbkoverdose/internal/payment"
	"github.com/nodorajosh/manilasbkoverdose/internal/repository"
)

// Identity is the verified caller of an orchestrator operation, supplied
// by the transport layer after authentication.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// Roles recognised by the orchestrator.
const (
	RoleAdmin    = "ADMIN"
	RoleCustomer = "CUSTOMER"
)

// IsAdmin reports whether the caller holds the administrator role.
func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }

// TicketStore is the inventory ledger the orchestrator reserves against.
type TicketStore interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.Ticket, error)
	Reserve(ctx context.Context, ticketID string, quantity int) error
	Release(ctx context.Context, ticketID string, quantity int) error
}

// DiscountStore resolves and consumes discount codes.
type DiscountStore interface {
	FindByCode(ctx context.Context, code string) (*model.Discount, error)
	Consume(ctx context.Context, id string) error
}

// OrderStore persists orders, captures and status moves.
type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	FindByID(ctx context.Context, id string) (*model.Order, error)
	FindByProviderOrderID(ctx context.Context, providerOrderID string) (*model.Order, error)
	SetPaymentSession(ctx context.Context, orderID, providerOrderID, approvalURL string) error
	UpdateStatus(ctx context.Context, orderID string, from, to model.OrderStatus) error
	AppendCapture(ctx context.Context, c model.Capture) (bool, error)
}

// Notifier is the best-effort side channel fired on status transitions.
// Implementations must never block a committed order on delivery failure;
// the orchestrator logs and ignores any error it returns.
type Notifier interface {
	OrderCreated(ctx context.Context, o *model.Order) error
	OrderPaid(ctx context.Context, o *model.Order, captureID string) error
	OrderCancelled(ctx context.Context, o *model.Order, reason string) error
}

// CheckoutService composes the inventory ledger, discount validator, order
// store, payment gateway and notifier into the checkout and
// reconciliation use cases.
type CheckoutService struct {
	tickets   TicketStore
	discounts DiscountStore
	orders    OrderStore
	gateway   payment.Gateway
	notifier  Notifier
	baseURL   string
	now       func() time.Time
}

// NewCheckoutService constructs a CheckoutService. baseURL is the public
// origin used to build the provider return and cancel URLs.
func NewCheckoutService(tickets TicketStore, discounts DiscountStore, orders OrderStore,
	gateway payment.Gateway, notifier Notifier, baseURL string) *CheckoutService {
	if tickets == nil || discounts == nil || orders == nil || gateway == nil || notifier == nil {
		panic("nil dependency passed to NewCheckoutService")
	}
	return &CheckoutService{
		tickets:   tickets,
		discounts: discounts,
		orders:    orders,
		gateway:   gateway,
		notifier:  notifier,
		baseURL:   baseURL,
		now:       time.Now,
	}
}

// CheckoutLine is one requested cart line.
type CheckoutLine struct {
	TicketID     string `json:"ticket_id"`
	Quantity     int    `json:"quantity"`
	DiscountCode string `json:"discount_code,omitempty"`
}

// CheckoutInput is the full cart submitted by a caller.
type CheckoutInput struct {
	Lines []CheckoutLine `json:"lines"`
}

// CheckoutResult is returned on a successful checkout: the durable order
// id and the provider approval link the client is redirected to.
type CheckoutResult struct {
	OrderID     string `json:"order_id"`
	ApprovalURL string `json:"approval_url"`
}

// reservation tracks one acquired inventory reservation so a failed
// checkout can compensate in reverse order.
type reservation struct {
	ticketID string
	quantity int
}

// Checkout runs the full checkout algorithm: validate and price the cart,
// reserve inventory in ticket-id order, consume discounts, persist the
// pending order and open the payment session.
//
// Inventory is reserved before discounts are consumed: discount slots are
// a courtesy limit while inventory correctness is the hard constraint, so
// losing a discount race must roll back reservations, not the other way
// round. If the gateway call fails after the order is committed, the
// order is marked failed but inventory and discount consumption stay in
// place for manual reconciliation; auto-reselling a slot under a customer
// who may still retry payment is the worse trade.
func (s *CheckoutService) Checkout(ctx context.Context, caller Identity, in CheckoutInput) (*CheckoutResult, error) {
	if len(in.Lines) == 0 {
		return nil, &ValidationError{Msg: "cart is empty"}
	}
	for _, l := range in.Lines {
		if l.TicketID == "" {
			return nil, &ValidationError{Msg: "ticket_id is required on every line"}
		}
		if l.Quantity < 1 {
			return nil, &ValidationError{Msg: fmt.Sprintf("invalid quantity %d for ticket %s", l.Quantity, l.TicketID)}
		}
	}

	// Step 1: batch-load every referenced ticket and fail fast naming the
	// missing ones.
	ids := make([]string, 0, len(in.Lines))
	seen := make(map[string]bool, len(in.Lines))
	for _, l := range in.Lines {
		if seen[l.TicketID] {
			return nil, &ValidationError{Msg: "duplicate ticket in cart: " + l.TicketID}
		}
		seen[l.TicketID] = true
		ids = append(ids, l.TicketID)
	}
	tickets, err := s.tickets.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := tickets[id]; !ok {
			return nil, &NotFoundError{Kind: "ticket", ID: id}
		}
	}

	// Step 2: pre-check availability and enforce a single cart currency.
	// The availability check here is advisory only; the reserve step is
	// the authoritative one.
	currency := ""
	for _, l := range in.Lines {
		t := tickets[l.TicketID]
		if t.Status != model.TicketStatusActive {
			return nil, &NotFoundError{Kind: "ticket", ID: l.TicketID}
		}
		if remaining := t.Remaining(); l.Quantity > remaining {
			return nil, &repository.InsufficientStockError{TicketID: l.TicketID, Remaining: remaining}
		}
		if currency == "" {
			currency = t.Currency
		} else if currency != t.Currency {
			return nil, &ValidationError{Msg: "all items must use the same currency"}
		}
	}

	// Step 3: validate discounts and snapshot the priced lines. No
	// partial application: the first inapplicable code fails the whole
	// checkout with its specific reason.
	now := s.now()
	items := make([]model.OrderItem, 0, len(in.Lines))
	consumeIDs := make([]string, 0)
	for _, l := range in.Lines {
		t := tickets[l.TicketID]
		item := model.OrderItem{
			TicketID:       t.ID,
			Name:           t.Name,
			UnitPriceMinor: t.PriceMinor,
			Currency:       t.Currency,
			Quantity:       l.Quantity,
		}
		if l.DiscountCode != "" {
			code := model.NormalizeDiscountCode(l.DiscountCode)
			d, err := s.discounts.FindByCode(ctx, code)
			if errors.Is(err, repository.ErrNotFound) {
				return nil, &DiscountInapplicableError{Code: code, TicketID: t.ID, Reason: DiscountReasonNotFound}
			}
			if err != nil {
				return nil, err
			}
			priced, err := ValidateDiscount(d, t, now)
			if err != nil {
				return nil, err
			}
			item.UnitPriceMinor = priced
			item.DiscountID = d.ID
			item.DiscountCode = d.Code
			consumeIDs = append(consumeIDs, d.ID)
		}
		items = append(items, item)
	}

	// Step 4: reserve inventory in ticket-id sort order. The fixed global
	// order keeps contention patterns predictable when many checkouts
	// fight over the same popular tickets. On any failure, release what
	// was acquired in reverse order and surface the first stock error.
	ordered := make([]reservation, 0, len(in.Lines))
	for _, l := range in.Lines {
		ordered = append(ordered, reservation{ticketID: l.TicketID, quantity: l.Quantity})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ticketID < ordered[j].ticketID })

	var acquired []reservation
	for _, res := range ordered {
		if err := s.tickets.Reserve(ctx, res.ticketID, res.quantity); err != nil {
			if rbErr := s.releaseAll(ctx, acquired); rbErr != nil {
				return nil, s.inconsistency("", rbErr)
			}
			return nil, err
		}
		acquired = append(acquired, res)
	}

	// Step 5: consume discounts now that inventory is secured. Losing a
	// consume race rolls the reservations back and fails with the
	// usage-limit reason.
	for _, discountID := range consumeIDs {
		if err := s.discounts.Consume(ctx, discountID); err != nil {
			if rbErr := s.releaseAll(ctx, acquired); rbErr != nil {
				return nil, s.inconsistency("", rbErr)
			}
			if errors.Is(err, repository.ErrConflict) {
				return nil, &DiscountInapplicableError{
					Code:   codeForDiscount(items, discountID),
					Reason: DiscountReasonUsageLimit,
				}
			}
			return nil, err
		}
	}

	// Step 6: persist the pending order with its snapshots and the
	// server-computed total.
	order := &model.Order{
		ID:        uuid.NewString(),
		UserID:    caller.UserID,
		UserEmail: caller.Email,
		Items:     items,
		Currency:  currency,
		Status:    model.OrderStatusPending,
		Provider:  "paypal",
	}
	order.TotalMinor = order.ComputeTotalMinor()
	if err := s.orders.Create(ctx, order); err != nil {
		if rbErr := s.releaseAll(ctx, acquired); rbErr != nil {
			return nil, s.inconsistency(order.ID, rbErr)
		}
		return nil, err
	}

	// Step 7: open the provider session. A failure here marks the order
	// failed but does not roll back steps 4-5; see the method comment.
	session, err := s.gateway.CreateSession(ctx, payment.CreateSessionParams{
		Email:       caller.Email,
		AmountMinor: order.TotalMinor,
		Currency:    order.Currency,
		ReturnURL:   fmt.Sprintf("%s/checkout/complete?orderId=%s", s.baseURL, order.ID),
		CancelURL:   fmt.Sprintf("%s/checkout/cancel?orderId=%s", s.baseURL, order.ID),
		ReferenceID: order.ID,
	})
	if err != nil {
		log.Printf("checkout: gateway session creation failed for order %s, marking failed: %v", order.ID, err)
		if stErr := s.orders.UpdateStatus(ctx, order.ID, model.OrderStatusPending, model.OrderStatusFailed); stErr != nil {
			log.Printf("checkout: could not mark order %s failed: %v", order.ID, stErr)
		}
		return nil, &GatewayError{Op: "create-session", Err: err}
	}
	if err := s.orders.SetPaymentSession(ctx, order.ID, session.ProviderOrderID, session.ApprovalURL); err != nil {
		return nil, err
	}
	order.ProviderOrderID = session.ProviderOrderID
	order.ApprovalURL = session.ApprovalURL

	// Step 8: notify (best-effort) and return.
	if err := s.notifier.OrderCreated(ctx, order); err != nil {
		log.Printf("checkout: order-created notification failed for %s: %v", order.ID, err)
	}
	return &CheckoutResult{OrderID: order.ID, ApprovalURL: session.ApprovalURL}, nil
}

// releaseAll compensates acquired reservations in reverse acquisition
// order. Compensation is synchronous: either every release lands or the
// failure escalates as an inconsistency.
func (s *CheckoutService) releaseAll(ctx context.Context, acquired []reservation) error {
	for i := len(acquired) - 1; i >= 0; i-- {
		if err := s.tickets.Release(ctx, acquired[i].ticketID, acquired[i].quantity); err != nil {
			return fmt.Errorf("release %d of ticket %s: %w", acquired[i].quantity, acquired[i].ticketID, err)
		}
	}
	return nil
}

func (s *CheckoutService) inconsistency(orderID string, err error) error {
	inc := &InconsistencyError{OrderID: orderID, Err: err}
	log.Printf("ALERT %v", inc)
	return inc
}

func codeForDiscount(items []model.OrderItem, discountID string) string {
	for i := range items {
		if items[i].DiscountID == discountID {
			return items[i].DiscountCode
		}
	}
	return ""
}
