package repository // repository for order persistence, captures and status moves

import (
	"context"
	"database/sql"
	"time"

	"github.com/nodorajosh/manilasbkoverdose/internal/model"
)

// OrderRepo encapsulates database operations for orders, their line items
// and their capture records. Status changes go through UpdateStatus, a
// compare-and-set on the current status, which is what makes the two
// reconciliation paths (user capture and provider webhook) safe to run
// concurrently against the same order.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo constructs an OrderRepo given a DB handle.
func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// Create persists the order header and all line-item snapshots in one
// transaction so a half-written order can never be observed.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, user_email, total_minor, currency, status, provider, provider_order_id, approval_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.UserEmail, o.TotalMinor, o.Currency, o.Status,
		o.Provider, nullString(o.ProviderOrderID), nullString(o.ApprovalURL),
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO order_items (order_id, ticket_id, name, unit_price_minor, currency, quantity, discount_id, discount_code)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if _, err := stmt.ExecContext(ctx, o.ID, it.TicketID, it.Name,
			it.UnitPriceMinor, it.Currency, it.Quantity,
			nullString(it.DiscountID), nullString(it.DiscountCode)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const orderColumns = `id, user_id, user_email, total_minor, currency, status, provider, provider_order_id, approval_url, created_at, paid_at, cancelled_at, updated_at`

func (r *OrderRepo) scanOrder(ctx context.Context, row interface{ Scan(...any) error }) (*model.Order, error) {
	var o model.Order
	var providerOrderID, approvalURL sql.NullString
	var paidAt, cancelledAt sql.NullTime
	err := row.Scan(&o.ID, &o.UserID, &o.UserEmail, &o.TotalMinor, &o.Currency,
		&o.Status, &o.Provider, &providerOrderID, &approvalURL,
		&o.CreatedAt, &paidAt, &cancelledAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.ProviderOrderID = providerOrderID.String
	o.ApprovalURL = approvalURL.String
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		o.CancelledAt = &t
	}
	if err := r.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	if err := r.loadCaptures(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) loadItems(ctx context.Context, o *model.Order) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, ticket_id, name, unit_price_minor, currency, quantity, discount_id, discount_code
		 FROM order_items WHERE order_id = ? ORDER BY id`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it model.OrderItem
		var discountID, discountCode sql.NullString
		if err := rows.Scan(&it.ID, &it.OrderID, &it.TicketID, &it.Name,
			&it.UnitPriceMinor, &it.Currency, &it.Quantity,
			&discountID, &discountCode); err != nil {
			return err
		}
		it.DiscountID = discountID.String
		it.DiscountCode = discountCode.String
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (r *OrderRepo) loadCaptures(ctx context.Context, o *model.Order) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT capture_id, order_id, amount_minor, currency, created_at
		 FROM order_captures WHERE order_id = ? ORDER BY created_at`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var c model.Capture
		if err := rows.Scan(&c.CaptureID, &c.OrderID, &c.AmountMinor, &c.Currency, &c.CreatedAt); err != nil {
			return err
		}
		o.Captures = append(o.Captures, c)
	}
	return rows.Err()
}

// FindByID returns an order with its items and captures, or ErrNotFound.
func (r *OrderRepo) FindByID(ctx context.Context, id string) (*model.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := r.scanOrder(ctx, row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return o, err
}

// FindByProviderOrderID resolves an order from the payment provider's
// session id. Webhook payloads are mapped to orders exclusively through
// this lookup; an internal order id inside a webhook body is never
// trusted.
func (r *OrderRepo) FindByProviderOrderID(ctx context.Context, providerOrderID string) (*model.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE provider_order_id = ?`, providerOrderID)
	o, err := r.scanOrder(ctx, row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return o, err
}

// SetPaymentSession stores the gateway session id and approval link created
// for a pending order.
func (r *OrderRepo) SetPaymentSession(ctx context.Context, orderID, providerOrderID, approvalURL string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET provider_order_id = ?, approval_url = ?, updated_at = ? WHERE id = ?`,
		providerOrderID, approvalURL, time.Now().UTC(), orderID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus moves an order from one status to another as a single
// compare-and-set. It returns ErrConflict when the order is no longer in
// the expected status, which callers treat either as "someone else already
// did this" (reconciliation) or as a hard invalid-transition error
// (administrative moves). Timestamps are maintained per target status.
func (r *OrderRepo) UpdateStatus(ctx context.Context, orderID string, from, to model.OrderStatus) error {
	now := time.Now().UTC()
	var res sql.Result
	var err error
	switch to {
	case model.OrderStatusPaid:
		res, err = r.db.ExecContext(ctx,
			`UPDATE orders SET status = ?, paid_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
			to, now, now, orderID, from)
	case model.OrderStatusCancelled:
		res, err = r.db.ExecContext(ctx,
			`UPDATE orders SET status = ?, cancelled_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
			to, now, now, orderID, from)
	default:
		res, err = r.db.ExecContext(ctx,
			`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			to, now, orderID, from)
	}
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return ErrConflict
	}
	return nil
}

// AppendCapture records a provider capture exactly once. Capture rows are
// append-only and keyed by the provider capture id, so replaying the same
// capture (user return path plus webhook, or a retried webhook) inserts
// nothing. The returned bool reports whether this call was the first to
// record the capture.
func (r *OrderRepo) AppendCapture(ctx context.Context, c model.Capture) (bool, error) {
	c.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO order_captures (capture_id, order_id, amount_minor, currency, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.CaptureID, c.OrderID, c.AmountMinor, c.Currency, c.CreatedAt)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ListByUser returns a user's orders, newest first.
func (r *OrderRepo) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

// ListAll returns orders for the admin surface, newest first, optionally
// narrowed to a single lifecycle status.
func (r *OrderRepo) ListAll(ctx context.Context, status *model.OrderStatus) ([]model.Order, error) {
	if status != nil {
		return r.list(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE status = ? ORDER BY created_at DESC`, *status)
	}
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (r *OrderRepo) list(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		o, err := r.scanOrder(ctx, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}
