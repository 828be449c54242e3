package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nodorajosh/manilasbkoverdose/internal/model"
	"github.com/nodorajosh/manilasbkoverdose/internal/payment"
	"github.com/nodorajosh/manilasbkoverdose/internal/repository"
)

// In-memory ports for the orchestrator tests. Each fake reproduces the
// atomicity contract of its real counterpart (conditional updates under a
// mutex) so the concurrency tests exercise the same guarantees the SQL
// guards provide.

type fakeTickets struct {
	mu      sync.Mutex
	tickets map[string]*model.Ticket
}

func newFakeTickets(tickets ...*model.Ticket) *fakeTickets {
	f := &fakeTickets{tickets: map[string]*model.Ticket{}}
	for _, t := range tickets {
		f.tickets[t.ID] = t
	}
	return f
}

func (f *fakeTickets) FindByIDs(_ context.Context, ids []string) (map[string]*model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]*model.Ticket{}
	for _, id := range ids {
		if t, ok := f.tickets[id]; ok {
			cp := *t
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *fakeTickets) Reserve(_ context.Context, ticketID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[ticketID]
	if !ok || t.Status != model.TicketStatusActive {
		return repository.ErrNotFound
	}
	if t.Sold+quantity > t.Quantity {
		return &repository.InsufficientStockError{TicketID: ticketID, Remaining: t.Remaining()}
	}
	t.Sold += quantity
	return nil
}

func (f *fakeTickets) Release(_ context.Context, ticketID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[ticketID]
	if !ok || t.Sold < quantity {
		return repository.ErrConflict
	}
	t.Sold -= quantity
	return nil
}

func (f *fakeTickets) sold(ticketID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickets[ticketID].Sold
}

type fakeDiscounts struct {
	mu        sync.Mutex
	discounts map[string]*model.Discount
}

func newFakeDiscounts(discounts ...*model.Discount) *fakeDiscounts {
	f := &fakeDiscounts{discounts: map[string]*model.Discount{}}
	for _, d := range discounts {
		f.discounts[d.ID] = d
	}
	return f
}

func (f *fakeDiscounts) FindByCode(_ context.Context, code string) (*model.Discount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.discounts {
		if d.Code == code {
			cp := *d
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeDiscounts) Consume(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.discounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	if d.MaxUses != nil && d.Used >= *d.MaxUses {
		return repository.ErrConflict
	}
	d.Used++
	return nil
}

func (f *fakeDiscounts) used(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discounts[id].Used
}

type fakeOrders struct {
	mu     sync.Mutex
	orders map[string]*model.Order
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: map[string]*model.Order{}}
}

func (f *fakeOrders) Create(_ context.Context, o *model.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *o
	cp.CreatedAt = time.Now().UTC()
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrders) FindByID(_ context.Context, id string) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) FindByProviderOrderID(_ context.Context, providerOrderID string) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.ProviderOrderID == providerOrderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrders) SetPaymentSession(_ context.Context, orderID, providerOrderID, approvalURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	o.ProviderOrderID = providerOrderID
	o.ApprovalURL = approvalURL
	return nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, orderID string, from, to model.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok || o.Status != from {
		return repository.ErrConflict
	}
	o.Status = to
	return nil
}

func (f *fakeOrders) AppendCapture(_ context.Context, c model.Capture) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[c.OrderID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if o.HasCapture(c.CaptureID) {
		return false, nil
	}
	c.CreatedAt = time.Now().UTC()
	o.Captures = append(o.Captures, c)
	return true, nil
}

func (f *fakeOrders) status(orderID string) model.OrderStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[orderID].Status
}

type fakeNotifier struct {
	mu        sync.Mutex
	created   int
	paid      int
	cancelled int
}

func (f *fakeNotifier) OrderCreated(context.Context, *model.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return nil
}

func (f *fakeNotifier) OrderPaid(context.Context, *model.Order, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paid++
	return nil
}

func (f *fakeNotifier) OrderCancelled(context.Context, *model.Order, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled++
	return nil
}

func (f *fakeNotifier) paidCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paid
}

type fakeGateway struct {
	mu           sync.Mutex
	createErr    error
	captures     []payment.Capture
	captureErr   error
	sessions     int
	verifyResult bool
}

func (f *fakeGateway) CreateSession(_ context.Context, params payment.CreateSessionParams) (payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return payment.Session{}, f.createErr
	}
	f.sessions++
	id := fmt.Sprintf("PP-%s-%d", params.ReferenceID, f.sessions)
	return payment.Session{
		ProviderOrderID: id,
		ApprovalURL:     "https://sandbox.example/approve/" + id,
	}, nil
}

func (f *fakeGateway) Capture(context.Context, string) ([]payment.Capture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return f.captures, nil
}

func (f *fakeGateway) VerifyWebhookSignature(context.Context, payment.WebhookHeaders, []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyResult, nil
}
