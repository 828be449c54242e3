package repository // repository for ticket persistence and the inventory ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nodorajosh/manilasbkoverdose/internal/model"
)

// InsufficientStockError is returned by Reserve when the requested quantity
// would push sold past capacity. Remaining carries the count observed
// right after the failed attempt so callers can present an accurate error.
type InsufficientStockError struct {
	TicketID  string
	Remaining int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for ticket %s: %d remaining", e.TicketID, e.Remaining)
}

// TicketRepo encapsulates database operations for tickets. It owns the two
// inventory counters: Reserve and Release are the only writers of the sold
// column anywhere in the codebase.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo constructs a TicketRepo given a DB handle.
func NewTicketRepo(db *sql.DB) *TicketRepo {
	return &TicketRepo{db: db}
}

const ticketColumns = `id, name, description, price_minor, currency, quantity, sold, status, created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }) (*model.Ticket, error) {
	var t model.Ticket
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.PriceMinor, &t.Currency,
		&t.Quantity, &t.Sold, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FindByID returns a single ticket or ErrNotFound.
func (r *TicketRepo) FindByID(ctx context.Context, id string) (*model.Ticket, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

// FindByIDs loads all tickets for the given ids in one query. The result
// map is keyed by ticket id; ids that do not exist are simply absent, and
// the caller is responsible for reporting them.
func (r *TicketRepo) FindByIDs(ctx context.Context, ids []string) (map[string]*model.Ticket, error) {
	if len(ids) == 0 {
		return map[string]*model.Ticket{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*model.Ticket, len(ids))
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out[t.ID] = t
	}
	return out, rows.Err()
}

// ListActive returns all tickets currently on sale, newest first.
func (r *TicketRepo) ListActive(ctx context.Context) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE status = ? ORDER BY created_at DESC`,
		model.TicketStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Reserve atomically increments sold by quantity, but only when the result
// stays within capacity. It is a single conditional UPDATE rather than a
// read-then-write pair, so concurrent checkouts on the same ticket cannot
// oversell: the database serializes the row update and at most
// capacity - sold units can ever be reserved. When the guard fails the
// current remaining count is re-read and returned inside
// InsufficientStockError.
func (r *TicketRepo) Reserve(ctx context.Context, ticketID string, quantity int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tickets
		 SET sold = sold + ?, updated_at = ?
		 WHERE id = ? AND status = ? AND sold + ? <= quantity`,
		quantity, time.Now().UTC(), ticketID, model.TicketStatusActive, quantity)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	// The guard failed: either the ticket is gone/archived or there is not
	// enough stock left. Re-read to report which.
	t, err := r.FindByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if t.Status != model.TicketStatusActive {
		return ErrNotFound
	}
	return &InsufficientStockError{TicketID: ticketID, Remaining: t.Remaining()}
}

// Release atomically decrements sold by quantity, used to compensate a
// reservation when a later checkout step fails and when cancellation or
// refund frees a slot. The guard keeps sold from going negative; a failed
// guard is reported as ErrConflict because it means the ledger and the
// caller disagree about how much was reserved.
func (r *TicketRepo) Release(ctx context.Context, ticketID string, quantity int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tickets
		 SET sold = sold - ?, updated_at = ?
		 WHERE id = ? AND sold >= ?`,
		quantity, time.Now().UTC(), ticketID, quantity)
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

// Create inserts a new ticket. Administrative input is assumed validated by
// the handler layer.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tickets (id, name, description, price_minor, currency, quantity, sold, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, t.PriceMinor, t.Currency, t.Quantity, t.Sold, t.Status, t.CreatedAt, t.UpdatedAt)
	return err
}

// Update rewrites the administrative fields of a ticket. The sold counter
// is deliberately not touched here; only Reserve/Release move it.
func (r *TicketRepo) Update(ctx context.Context, t *model.Ticket) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tickets
		 SET name = ?, description = ?, price_minor = ?, currency = ?, quantity = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		t.Name, t.Description, t.PriceMinor, t.Currency, t.Quantity, t.Status, time.Now().UTC(), t.ID)
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

// Archive soft-archives a ticket so it stops selling without breaking the
// orders that still reference it.
func (r *TicketRepo) Archive(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tickets SET status = ?, updated_at = ? WHERE id = ?`,
		model.TicketStatusArchived, time.Now().UTC(), id)
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
