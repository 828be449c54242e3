package model

import (
	"strings"
	"time"
)

// Discount kinds.  A fixed discount subtracts a minor-currency amount from
// the unit price; a percent discount scales it by (100 - value) / 100.
const (
	DiscountKindFixed   = "fixed"
	DiscountKindPercent = "percent"
)

// Discount is an administratively managed promotion code.  Used is mutated
// only by the discount repository's atomic Consume operation; it never
// decreases except through an explicit administrative reversal.
//
// Fields:
//  ID        – primary key (UUID string).
//  Code      – unique code, stored upper-cased.
//  Kind      – fixed or percent.
//  Value     – minor-currency amount (fixed) or whole percentage (percent).
//  Currency  – optional currency a fixed discount is denominated in.
//  MaxUses   – optional total usage limit; nil means unlimited.
//  Used      – times consumed so far; Used <= MaxUses whenever MaxUses is set.
//  ExpiresAt – optional expiry; a discount past this instant never applies.
//  Active    – kill switch; inactive discounts never apply.
//  AppliesTo – optional allow-list of ticket IDs; empty means all tickets.
type Discount struct {
	ID        string     // discounts.id
	Code      string     // discounts.code
	Kind      string     // discounts.kind
	Value     int64      // discounts.value
	Currency  string     // discounts.currency (may be empty)
	MaxUses   *int       // discounts.max_uses (nullable)
	Used      int        // discounts.used
	ExpiresAt *time.Time // discounts.expires_at (nullable)
	Active    bool       // discounts.active
	AppliesTo []string   // discount_tickets rows
	CreatedBy string     // discounts.created_by
	CreatedAt time.Time  // discounts.created_at
	UpdatedAt time.Time  // discounts.updated_at
}

// NormalizeDiscountCode maps a user-supplied code to its canonical stored
// form: trimmed and upper-cased.
func NormalizeDiscountCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// AppliesToTicket reports whether the discount's allow-list admits the
// given ticket.  An empty allow-list admits every ticket.
func (d *Discount) AppliesToTicket(ticketID string) bool {
	if len(d.AppliesTo) == 0 {
		return true
	}
	for _, id := range d.AppliesTo {
		if id == ticketID {
			return true
		}
	}
	return false
}

// Exhausted reports whether the usage limit has been reached.  A discount
// without a MaxUses limit is never exhausted.
func (d *Discount) Exhausted() bool {
	return d.MaxUses != nil && d.Used >= *d.MaxUses
}

// Expired reports whether the discount is past its expiry at the given
// instant.  A discount without an expiry never expires.
func (d *Discount) Expired(now time.Time) bool {
	return d.ExpiresAt != nil && d.ExpiresAt.Before(now)
}
