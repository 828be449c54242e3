package service

import (
	"time"

	"github.com/nodorajosh/manilasbkoverdose/internal/model"
)

// ValidateDiscount decides whether the discount applies to the given
// ticket at the given instant and, if so, returns the discounted unit
// price in minor units. On failure the returned error is always a
// *DiscountInapplicableError carrying the specific reason; the checkout
// fails as a whole on the first inapplicable line, never partially.
//
// A fixed discount denominated in a different currency than the ticket
// cannot be applied meaningfully and is reported as not allowed.
func ValidateDiscount(d *model.Discount, t *model.Ticket, now time.Time) (int64, error) {
	fail := func(reason string) (int64, error) {
		return 0, &DiscountInapplicableError{Code: d.Code, TicketID: t.ID, Reason: reason}
	}
	if !d.Active {
		return fail(DiscountReasonInactive)
	}
	if d.Expired(now) {
		return fail(DiscountReasonExpired)
	}
	if d.Exhausted() {
		return fail(DiscountReasonUsageLimit)
	}
	if !d.AppliesToTicket(t.ID) {
		return fail(DiscountReasonNotAllowed)
	}
	if d.Kind == model.DiscountKindFixed && d.Currency != "" && d.Currency != t.Currency {
		return fail(DiscountReasonNotAllowed)
	}
	return DiscountedUnitPrice(d, t.PriceMinor), nil
}

// DiscountedUnitPrice computes the unit price after applying the discount,
// clamped at zero. Fixed discounts subtract a minor-unit amount; percent
// discounts scale by (100 - value) / 100 and round half away from zero to
// the currency's minor unit.
func DiscountedUnitPrice(d *model.Discount, unitPriceMinor int64) int64 {
	var out int64
	switch d.Kind {
	case model.DiscountKindFixed:
		out = unitPriceMinor - d.Value
	case model.DiscountKindPercent:
		out = roundHalfAwayDiv(unitPriceMinor*(100-d.Value), 100)
	default:
		out = unitPriceMinor
	}
	if out < 0 {
		return 0
	}
	return out
}

// roundHalfAwayDiv divides num by den rounding half away from zero.
// Both operands are non-negative in practice but negatives are handled so
// a clamped over-100 percent value cannot misround.
func roundHalfAwayDiv(num, den int64) int64 {
	if den == 0 {
		return 0
	}
	neg := num < 0
	if neg {
		num = -num
	}
	q := (num + den/2) / den
	if neg {
		return -q
	}
	return q
}
