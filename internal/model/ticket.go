package model

import "time"

// Ticket statuses. Archived tickets stay in the catalogue for as long as a
// non-terminal order references them; they are never physically deleted.
const (
	TicketStatusActive   = "active"
	TicketStatusArchived = "archived"
	TicketStatusDraft    = "draft"
)

// Ticket is a sellable item with a finite capacity.  Prices are stored in
// the minor unit of the currency (e.g. 10000 = $100.00).  The pair
// (Quantity, Sold) is the single source of truth for availability:
// remaining stock is always Quantity - Sold and is never cached elsewhere.
//
// Fields:
//  ID          – primary key (UUID string).
//  Name        – display name shown on the storefront.
//  Description – optional longer description.
//  PriceMinor  – unit price in the currency's minor unit.
//  Currency    – ISO currency code (e.g. "USD").
//  Quantity    – total capacity ever sellable.
//  Sold        – units reserved so far; mutated only by the ticket
//                repository's Reserve/Release conditional updates.
//  Status      – active, archived or draft.
type Ticket struct {
	ID          string    // tickets.id
	Name        string    // tickets.name
	Description string    // tickets.description
	PriceMinor  int64     // tickets.price_minor
	Currency    string    // tickets.currency
	Quantity    int       // tickets.quantity
	Sold        int       // tickets.sold
	Status      string    // tickets.status
	CreatedAt   time.Time // tickets.created_at
	UpdatedAt   time.Time // tickets.updated_at
}

// Remaining returns the number of units still available for sale.  It is
// only a snapshot: the authoritative check happens inside the conditional
// reserve statement in the repository.
func (t *Ticket) Remaining() int {
	r := t.Quantity - t.Sold
	if r < 0 {
		return 0
	}
	return r
}
