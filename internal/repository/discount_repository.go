package repository // repository for discount persistence and the usage counter

import (
	"context"
	"database/sql"
	"time"

	"github.com/nodorajosh/manilasbkoverdose/internal/model"
)

// DiscountRepo encapsulates database operations for discounts. The used
// counter is mutated exclusively through Consume, a single conditional
// increment, so two concurrent orders can never both take the last slot of
// a limited code.
type DiscountRepo struct {
	db *sql.DB
}

// NewDiscountRepo constructs a DiscountRepo given a DB handle.
func NewDiscountRepo(db *sql.DB) *DiscountRepo {
	return &DiscountRepo{db: db}
}

const discountColumns = `id, code, kind, value, currency, max_uses, used, expires_at, active, created_by, created_at, updated_at`

func (r *DiscountRepo) scanDiscount(ctx context.Context, row interface{ Scan(...any) error }) (*model.Discount, error) {
	var d model.Discount
	var currency sql.NullString
	var maxUses sql.NullInt64
	var expiresAt sql.NullTime
	err := row.Scan(&d.ID, &d.Code, &d.Kind, &d.Value, &currency, &maxUses,
		&d.Used, &expiresAt, &d.Active, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if currency.Valid {
		d.Currency = currency.String
	}
	if maxUses.Valid {
		n := int(maxUses.Int64)
		d.MaxUses = &n
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		d.ExpiresAt = &t
	}

	// Load the optional ticket allow-list. An empty list means the code
	// applies to every ticket.
	rows, err := r.db.QueryContext(ctx,
		`SELECT ticket_id FROM discount_tickets WHERE discount_id = ?`, d.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ticketID string
		if err := rows.Scan(&ticketID); err != nil {
			return nil, err
		}
		d.AppliesTo = append(d.AppliesTo, ticketID)
	}
	return &d, rows.Err()
}

// FindByCode looks a discount up by its canonical (upper-cased) code.
func (r *DiscountRepo) FindByCode(ctx context.Context, code string) (*model.Discount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+discountColumns+` FROM discounts WHERE code = ?`,
		model.NormalizeDiscountCode(code))
	d, err := r.scanDiscount(ctx, row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return d, err
}

// FindByID returns a single discount or ErrNotFound.
func (r *DiscountRepo) FindByID(ctx context.Context, id string) (*model.Discount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+discountColumns+` FROM discounts WHERE id = ?`, id)
	d, err := r.scanDiscount(ctx, row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return d, err
}

// Consume atomically increments the used counter, but only while the usage
// limit has not been reached. Codes without a limit always pass the guard.
// ErrConflict means the caller lost a race for the last remaining use.
func (r *DiscountRepo) Consume(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE discounts
		 SET used = used + 1, updated_at = ?
		 WHERE id = ? AND (max_uses IS NULL OR used < max_uses)`,
		time.Now().UTC(), id)
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

// List returns all discounts, newest first, for the admin surface.
func (r *DiscountRepo) List(ctx context.Context) ([]model.Discount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+discountColumns+` FROM discounts ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Discount
	for rows.Next() {
		d, err := r.scanDiscount(ctx, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Create inserts a discount together with its ticket allow-list in one
// transaction.
func (r *DiscountRepo) Create(ctx context.Context, d *model.Discount) error {
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	d.Code = model.NormalizeDiscountCode(d.Code)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO discounts (id, code, kind, value, currency, max_uses, used, expires_at, active, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Code, d.Kind, d.Value, nullString(d.Currency), nullIntPtr(d.MaxUses),
		d.Used, nullTimePtr(d.ExpiresAt), d.Active, d.CreatedBy, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return err
	}
	for _, ticketID := range d.AppliesTo {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO discount_tickets (discount_id, ticket_id) VALUES (?, ?)`,
			d.ID, ticketID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Update rewrites the administrative fields and replaces the allow-list.
// The used counter is left alone; only Consume moves it forward.
func (r *DiscountRepo) Update(ctx context.Context, d *model.Discount) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE discounts
		 SET kind = ?, value = ?, currency = ?, max_uses = ?, expires_at = ?, active = ?, updated_at = ?
		 WHERE id = ?`,
		d.Kind, d.Value, nullString(d.Currency), nullIntPtr(d.MaxUses),
		nullTimePtr(d.ExpiresAt), d.Active, time.Now().UTC(), d.ID)
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
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM discount_tickets WHERE discount_id = ?`, d.ID); err != nil {
		return err
	}
	for _, ticketID := range d.AppliesTo {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO discount_tickets (discount_id, ticket_id) VALUES (?, ?)`,
			d.ID, ticketID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIntPtr(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func nullTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
