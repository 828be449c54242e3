package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodorajosh/manilasbkoverdose/internal/model"
	"github.com/nodorajosh/manilasbkoverdose/internal/repository"
)

func activeTicket(id string, priceMinor int64, quantity int) *model.Ticket {
	return &model.Ticket{
		ID:         id,
		Name:       "Ticket " + id,
		PriceMinor: priceMinor,
		Currency:   "USD",
		Quantity:   quantity,
		Status:     model.TicketStatusActive,
	}
}

func testCaller() Identity {
	return Identity{UserID: "user-1", Email: "buyer@example.com", Role: RoleCustomer}
}

func TestCheckoutCreatesPendingOrder(t *testing.T) {
	tickets := newFakeTickets(activeTicket("ga", 5000, 100), activeTicket("vip", 12000, 10))
	orders := newFakeOrders()
	notifier := &fakeNotifier{}
	svc := NewCheckoutService(tickets, newFakeDiscounts(), orders, &fakeGateway{}, notifier, "https://shop.example")

	res, err := svc.Checkout(context.Background(), testCaller(), CheckoutInput{Lines: []CheckoutLine{
		{TicketID: "ga", Quantity: 2},
		{TicketID: "vip", Quantity: 1},
	}})
	require.NoError(t, err)
	require.NotEmpty(t, res.OrderID)
	assert.NotEmpty(t, res.ApprovalURL)

	order, err := orders.FindByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, int64(2*5000+12000), order.TotalMinor)
	assert.Equal(t, "USD", order.Currency)
	assert.NotEmpty(t, order.ProviderOrderID)
	assert.Equal(t, 2, tickets.sold("ga"))
	assert.Equal(t, 1, tickets.sold("vip"))
	assert.Equal(t, 1, notifier.created)
}

func TestCheckoutRejectsBadInput(t *testing.T) {
	tickets := newFakeTickets(activeTicket("ga", 5000, 100))
	svc := NewCheckoutService(tickets, newFakeDiscounts(), newFakeOrders(), &fakeGateway{}, &fakeNotifier{}, "https://shop.example")

	cases := []struct {
		name  string
		lines []CheckoutLine
	}{
		{"empty cart", nil},
		{"zero quantity", []CheckoutLine{{TicketID: "ga", Quantity: 0}}},
		{"negative quantity", []CheckoutLine{{TicketID: "ga", Quantity: -3}}},
		{"missing ticket id", []CheckoutLine{{Quantity: 1}}},
		{"duplicate ticket", []CheckoutLine{{TicketID: "ga", Quantity: 1}, {TicketID: "ga", Quantity: 2}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Checkout(context.Background(), testCaller(), CheckoutInput{Lines: tc.lines})
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
			assert.Equal(t, 0, tickets.sold("ga"))
		})
	}
}

func TestCheckoutUnknownTicket(t *testing.T) {
	svc := NewCheckoutService(newFakeTickets(), newFakeDiscounts(), newFakeOrders(), &fakeGateway{}, &fakeNotifier{}, "https://shop.example")
	_, err := svc.Checkout(context.Background(), testCaller(), CheckoutInput{Lines: []CheckoutLine{
		{TicketID: "ghost", Quantity: 1},
	}})
	var nfe *NotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "ghost", nfe.ID)
}

func TestCheckoutMixedCurrencyRejected(t *testing.T) {
	eur := activeTicket("eur", 4000, 10)
	eur.Currency = "EUR"
	tickets := newFakeTickets(activeTicket("usd", 5000, 10), eur)
	svc := NewCheckoutService(tickets, newFakeDiscounts(), newFakeOrders(), &fakeGateway{}, &fakeNotifier{}, "https://shop.example")

	_, err := svc.Checkout(context.Background(), testCaller(), CheckoutInput{Lines: []CheckoutLine{
		{TicketID: "usd", Quantity: 1},
		{TicketID: "eur", Quantity: 1},
	}})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, tickets.sold("usd"))
	assert.Equal(t, 0, tickets.sold("eur"))
}

func TestCheckoutConcurrentNoOversell(t *testing.T) {
	const capacity = 5
	const buyers = 20
	tickets := newFakeTickets(activeTicket("hot", 9900, capacity))
	svc := NewCheckoutService(tickets, newFakeDiscounts(), newFakeOrders(), &fakeGateway{}, &fakeNotifier{}, "https://shop.example")

	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Checkout(context.Background(), testCaller(), CheckoutInput{Lines: []CheckoutLine{
				{TicketID: "hot", Quantity: 1},
			}})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, soldOut := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		default:
			var stock *repository.InsufficientStockError
			require.ErrorAs(t, err, &stock)
			soldOut++
		}
	}
	assert.Equal(t, capacity, succeeded)
	assert.Equal(t, buyers-capacity, soldOut)
	assert.Equal(t, capacity, tickets.sold("hot"))
}

func TestCheckoutCapacityOneSingleWinner(t *testing.T) {
	tickets := newFakeTickets(activeTicket("last", 2500, 1))
	svc := NewCheckoutService(tickets, newFakeDiscounts(), newFakeOrders(), &fakeGateway{}, &fakeNotifier{}, "https://shop.example")

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Checkout(context.Background(), testCaller(), CheckoutInput{Lines: []CheckoutLine{
				{TicketID: "last", Quantity: 1},
			}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var okCount int
	for err := range errs {
		if err == nil {
			okCount++
		} else {
			var stock *repository.InsufficientStockError
			require.ErrorAs(t, err, &stock)
			assert.Equal(t, 0, stock.Remaining)
		}
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 1, tickets.sold("last"))
}

func TestCheckoutReserveFailureReleasesAcquired(t *testing.T) {
	// Two lines; the second ticket has no stock. The reservation taken for
	// the first must be compensated so nothing stays leaked.
	tickets := newFakeTickets(activeTicket("a-plenty", 3000, 50), activeTicket("b-gone", 3000, 0))
	svc := NewCheckoutService(tickets, newFakeDiscounts(), newFakeOrders(), &fakeGateway{}, &fakeNotifier{}, "https://shop.example")

	_, err := svc.Checkout(context.Background(), testCaller(), CheckoutInput{Lines: []CheckoutLine{
		{TicketID: "a-plenty", Quantity: 2},
		{TicketID: "b-gone", Quantity: 1},
	}})
	var stock *repository.InsufficientStockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, "b-gone", stock.TicketID)
	assert.Equal(t, 0, tickets.sold("a-plenty"))
	assert.Equal(t, 0, tickets.sold("b-gone"))
}

func TestCheckoutAppliesDiscountAndConsumesOnce(t *testing.T) {
	tickets := newFakeTickets(activeTicket("ga", 10000, 100))
	maxUses := 5
	discounts := newFakeDiscounts(&model.Discount{
		ID: "d1", Code: "SAVE10", Kind: model.DiscountKindPercent, Value: 10,
		MaxUses: &maxUses, Active: true,
	})
	orders := newFakeOrders()
	svc := NewCheckoutService(tickets, discounts, orders, &fakeGateway{}, &fakeNotifier{}, "https://shop.example")

	res, err := svc.Checkout(context.Background(), testCaller(), CheckoutInput{Lines: []CheckoutLine{
		{TicketID: "ga", Quantity: 2, DiscountCode: "save10"},
	}})
	require.NoError(t, err)

	order, err := orders.FindByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(9000), order.Items[0].UnitPriceMinor)
	assert.Equal(t, "SAVE10", order.Items[0].DiscountCode)
	assert.Equal(t, int64(18000), order.TotalMinor)
	assert.Equal(t, 1, discounts.used("d1"))
}

func TestCheckoutLastDiscountUseRace(t *testing.T) {
	// One use left on the code; two buyers race. Exactly one checkout may
	// carry the discount, and the loser must leave no reservation behind.
	tickets := newFakeTickets(activeTicket("ga", 10000, 100))
	maxUses := 1
	discounts := newFakeDiscounts(&model.Discount{
		ID: "d1", Code: "LAST1", Kind: model.DiscountKindFixed, Value: 500,
		Currency: "USD", MaxUses: &maxUses, Active: true,
	})
	svc := NewCheckoutService(tickets, discounts, newFakeOrders(), &fakeGateway{}, &fakeNotifier{}, "https://shop.example")

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Checkout(context.Background(), testCaller(), CheckoutInput{Lines: []CheckoutLine{
				{TicketID: "ga", Quantity: 1, DiscountCode: "LAST1"},
			}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	winners, losers := 0, 0
	for err := range errs {
		if err == nil {
			winners++
			continue
		}
		var inapplicable *DiscountInapplicableError
		require.ErrorAs(t, err, &inapplicable)
		assert.Equal(t, DiscountReasonUsageLimit, inapplicable.Reason)
		losers++
	}
	// The pre-validation snapshot may already see the code exhausted, or
	// both may pass validation and race the consume; either way only the
	// single winner keeps inventory.
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, losers)
	assert.Equal(t, 1, discounts.used("d1"))
	assert.Equal(t, 1, tickets.sold("ga"))
}

func TestCheckoutInapplicableDiscountFailsWhole(t *testing.T) {
	tickets := newFakeTickets(activeTicket("ga", 10000, 100), activeTicket("vip", 20000, 10))
	discounts := newFakeDiscounts(&model.Discount{
		ID: "d1", Code: "VIPONLY", Kind: model.DiscountKindPercent, Value: 20,
		Active: true, AppliesTo: []string{"vip"},
	})
	svc := NewCheckoutService(tickets, discounts, newFakeOrders(), &fakeGateway{}, &fakeNotifier{}, "https://shop.example")

	_, err := svc.Checkout(context.Background(), testCaller(), CheckoutInput{Lines: []CheckoutLine{
		{TicketID: "vip", Quantity: 1},
		{TicketID: "ga", Quantity: 1, DiscountCode: "VIPONLY"},
	}})
	var inapplicable *DiscountInapplicableError
	require.ErrorAs(t, err, &inapplicable)
	assert.Equal(t, DiscountReasonNotAllowed, inapplicable.Reason)
	assert.Equal(t, 0, tickets.sold("ga"))
	assert.Equal(t, 0, tickets.sold("vip"))
	assert.Equal(t, 0, discounts.used("d1"))
}

func TestCheckoutGatewayFailureMarksOrderFailed(t *testing.T) {
	tickets := newFakeTickets(activeTicket("ga", 5000, 10))
	orders := newFakeOrders()
	gw := &fakeGateway{createErr: errors.New("provider down")}
	svc := NewCheckoutService(tickets, newFakeDiscounts(), orders, gw, &fakeNotifier{}, "https://shop.example")

	_, err := svc.Checkout(context.Background(), testCaller(), CheckoutInput{Lines: []CheckoutLine{
		{TicketID: "ga", Quantity: 1},
	}})
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)

	// The order exists in the failed state and the reservation is kept for
	// manual follow-up rather than silently resold.
	var failed *model.Order
	orders.mu.Lock()
	for _, o := range orders.orders {
		failed = o
	}
	orders.mu.Unlock()
	require.NotNil(t, failed)
	assert.Equal(t, model.OrderStatusFailed, failed.Status)
	assert.Equal(t, 1, tickets.sold("ga"))
}
