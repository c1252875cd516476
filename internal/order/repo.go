package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store is the persistence surface of the order flow. Methods that take
// a pgx.Tx run on the caller's transaction; the service owns begin,
// commit and rollback.
type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, o *Order) error
	InsertItem(ctx context.Context, tx pgx.Tx, it *Item) error
	SetTotal(ctx context.Context, tx pgx.Tx, id, total string) error
	SetStatus(ctx context.Context, tx pgx.Tx, id, status string) error
	// LockByID takes the exclusive lock on the order row, serializing
	// concurrent lifecycle actions on the same order.
	LockByID(ctx context.Context, tx pgx.Tx, id string) (*Order, error)
	UpdateEmail(ctx context.Context, id, email string) error
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, q ListQuery) ([]Order, error)
	Stats(ctx context.Context) (*Stats, error)
}

type ListQuery struct {
	CustomerEmail string // empty = all (staff)
	Status        string // optional filter
	Limit         int
	Offset        int
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) Insert(ctx context.Context, tx pgx.Tx, o *Order) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO orders (id, customer_email, status, total_amount, created_at, updated_at)
		VALUES ($1,$2,$3,$4,NOW(),NOW())
	`, o.ID, o.CustomerEmail, o.Status, o.TotalAmount)
	return err
}

func (r *PGRepo) InsertItem(ctx context.Context, tx pgx.Tx, it *Item) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_items (id, order_id, product_id, quantity, price)
		VALUES ($1,$2,$3,$4,$5)
	`, it.ID, it.OrderID, it.ProductID, it.Quantity, it.Price)
	return err
}

func (r *PGRepo) SetTotal(ctx context.Context, tx pgx.Tx, id, total string) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders SET total_amount=$2, updated_at=NOW() WHERE id=$1
	`, id, total)
	return err
}

func (r *PGRepo) SetStatus(ctx context.Context, tx pgx.Tx, id, status string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) LockByID(ctx context.Context, tx pgx.Tx, id string) (*Order, error) {
	var o Order
	err := tx.QueryRow(ctx, `
		SELECT id, customer_email, status, total_amount::text, created_at, updated_at
		FROM orders WHERE id=$1
		FOR UPDATE
	`, id).Scan(&o.ID, &o.CustomerEmail, &o.Status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	items, err := r.itemsFor(ctx, tx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return &o, nil
}

func (r *PGRepo) UpdateEmail(ctx context.Context, id, email string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET customer_email=$2, updated_at=NOW() WHERE id=$1
	`, id, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var o Order
	err := r.db.QueryRow(ctx, `
		SELECT id, customer_email, status, total_amount::text, created_at, updated_at
		FROM orders WHERE id=$1
	`, id).Scan(&o.ID, &o.CustomerEmail, &o.Status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	items, err := r.itemsFor(ctx, r.db, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return &o, nil
}

func (r *PGRepo) List(ctx context.Context, q ListQuery) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, customer_email, status, total_amount::text, created_at, updated_at
		FROM orders
		WHERE ($1 = '' OR customer_email = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, q.CustomerEmail, q.Status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	var ids []string
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.CustomerEmail, &o.Status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	items, err := r.itemsFor(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

// querier is the common subset of pgxpool.Pool and pgx.Tx itemsFor needs.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *PGRepo) itemsFor(ctx context.Context, q querier, orderIDs []string) (map[string][]Item, error) {
	rows, err := q.Query(ctx, `
		SELECT i.id, i.order_id, i.product_id, p.name, i.quantity, i.price::text
		FROM order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.order_id = ANY($1)
		ORDER BY i.product_id
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]Item)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		if it.Subtotal, err = subtotal(it.Price, it.Quantity); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

// subtotal = price * quantity, derived and never stored.
func subtotal(price string, quantity int) (string, error) {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return "", fmt.Errorf("bad item price %q: %w", price, err)
	}
	return d.Mul(decimal.NewFromInt(int64(quantity))).StringFixed(2), nil
}

func (r *PGRepo) Stats(ctx context.Context) (*Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var s Stats
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(total_amount), 0)::text,
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'processing'),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'cancelled')
		FROM orders
	`).Scan(&s.TotalOrders, &s.TotalRevenue, &s.PendingOrders, &s.ProcessingOrders, &s.CompletedOrders, &s.CancelledOrders)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
