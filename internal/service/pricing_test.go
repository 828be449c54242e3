package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodorajosh/manilasbkoverdose/internal/model"
)

func TestDiscountedUnitPrice(t *testing.T) {
	cases := []struct {
		name  string
		kind  string
		value int64
		unit  int64
		want  int64
	}{
		{"fixed subtracts", model.DiscountKindFixed, 500, 10000, 9500},
		{"fixed clamps at zero", model.DiscountKindFixed, 15000, 10000, 0},
		{"fixed exact zero", model.DiscountKindFixed, 10000, 10000, 0},
		{"percent 10 off", model.DiscountKindPercent, 10, 10000, 9000},
		{"percent rounds half up", model.DiscountKindPercent, 10, 105, 95},    // 94.5 -> 95
		{"percent rounds down", model.DiscountKindPercent, 33, 100, 67},       // 67.0
		{"percent half away from zero", model.DiscountKindPercent, 25, 2, 2},  // 1.5 -> 2
		{"percent 100 off", model.DiscountKindPercent, 100, 10000, 0},
		{"percent zero keeps price", model.DiscountKindPercent, 0, 10000, 10000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := &model.Discount{Kind: tc.kind, Value: tc.value}
			assert.Equal(t, tc.want, DiscountedUnitPrice(d, tc.unit))
		})
	}
}

func TestValidateDiscount(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ticket := &model.Ticket{ID: "ga", PriceMinor: 10000, Currency: "USD", Quantity: 10, Status: model.TicketStatusActive}

	base := func() *model.Discount {
		return &model.Discount{
			ID: "d1", Code: "CODE", Kind: model.DiscountKindPercent, Value: 10, Active: true,
		}
	}

	t.Run("applies", func(t *testing.T) {
		priced, err := ValidateDiscount(base(), ticket, now)
		require.NoError(t, err)
		assert.Equal(t, int64(9000), priced)
	})

	t.Run("inactive", func(t *testing.T) {
		d := base()
		d.Active = false
		_, err := ValidateDiscount(d, ticket, now)
		requireReason(t, err, DiscountReasonInactive)
	})

	t.Run("expired", func(t *testing.T) {
		d := base()
		past := now.Add(-time.Hour)
		d.ExpiresAt = &past
		_, err := ValidateDiscount(d, ticket, now)
		requireReason(t, err, DiscountReasonExpired)
	})

	t.Run("not yet expired", func(t *testing.T) {
		d := base()
		future := now.Add(time.Hour)
		d.ExpiresAt = &future
		_, err := ValidateDiscount(d, ticket, now)
		assert.NoError(t, err)
	})

	t.Run("usage limit reached", func(t *testing.T) {
		d := base()
		limit := 3
		d.MaxUses = &limit
		d.Used = 3
		_, err := ValidateDiscount(d, ticket, now)
		requireReason(t, err, DiscountReasonUsageLimit)
	})

	t.Run("unlimited uses never exhaust", func(t *testing.T) {
		d := base()
		d.Used = 1_000_000
		_, err := ValidateDiscount(d, ticket, now)
		assert.NoError(t, err)
	})

	t.Run("allow-list excludes ticket", func(t *testing.T) {
		d := base()
		d.AppliesTo = []string{"vip"}
		_, err := ValidateDiscount(d, ticket, now)
		requireReason(t, err, DiscountReasonNotAllowed)
	})

	t.Run("allow-list includes ticket", func(t *testing.T) {
		d := base()
		d.AppliesTo = []string{"vip", "ga"}
		_, err := ValidateDiscount(d, ticket, now)
		assert.NoError(t, err)
	})

	t.Run("fixed discount currency mismatch", func(t *testing.T) {
		d := base()
		d.Kind = model.DiscountKindFixed
		d.Value = 500
		d.Currency = "EUR"
		_, err := ValidateDiscount(d, ticket, now)
		requireReason(t, err, DiscountReasonNotAllowed)
	})

	t.Run("fixed discount without currency applies anywhere", func(t *testing.T) {
		d := base()
		d.Kind = model.DiscountKindFixed
		d.Value = 500
		priced, err := ValidateDiscount(d, ticket, now)
		require.NoError(t, err)
		assert.Equal(t, int64(9500), priced)
	})
}

func requireReason(t *testing.T, err error, reason string) {
	t.Helper()
	var inapplicable *DiscountInapplicableError
	require.ErrorAs(t, err, &inapplicable)
	assert.Equal(t, reason, inapplicable.Reason)
}
