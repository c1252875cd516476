// Package product provides the repository interface and PostgreSQL
// implementation for the catalog, including the row-locking primitives
// the order transaction builds on.
package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("product not found")

type Query struct {
	Q            string // matches name or category name
	CategorySlug string
	MinPrice     string // decimal strings, empty = unbounded
	MaxPrice     string
	OrderBy      string // price|name|created_at, "-" prefix for DESC
	Limit        int
	Offset       int
}

type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, q Query) ([]Product, error)
	LowStock(ctx context.Context, threshold, limit, offset int) ([]Product, error)
	OutOfStock(ctx context.Context, limit, offset int) ([]Product, error)
	Update(ctx context.Context, p *Product, updatePrice bool) error
	Delete(ctx context.Context, id string) (bool, error)
}

// TxStore is the slice of the repository that participates in order
// transactions. Every method runs on the caller's tx so locks live
// until that tx commits or rolls back.
type TxStore interface {
	LockForUpdate(ctx context.Context, tx pgx.Tx, id string) (*Product, error)
	AdjustStock(ctx context.Context, tx pgx.Tx, id string, delta int) error
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const selectCols = `
	p.id, p.name, p.description, p.price::text, p.stock_quantity, p.image_url,
	p.category_id, c.name, c.slug, p.owner_id, p.created_at, p.updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.StockQuantity, &p.ImageURL,
		&p.CategoryID, &p.CategoryName, &p.CategorySlug, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PGRepo) Create(ctx context.Context, p *Product) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO products (id, name, description, price, stock_quantity, image_url, category_id, owner_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW())
	`, p.ID, p.Name, p.Description, p.Price, p.StockQuantity, p.ImageURL, p.CategoryID, p.OwnerID)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p, err := scanProduct(r.db.QueryRow(ctx, `
		SELECT `+selectCols+`
		FROM products p JOIN categories c ON c.id = p.category_id
		WHERE p.id=$1
	`, id))
	if err != nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// orderings whitelists DRF-style ordering keys.
var orderings = map[string]string{
	"price":       "p.price ASC",
	"-price":      "p.price DESC",
	"name":        "p.name ASC",
	"-name":       "p.name DESC",
	"created_at":  "p.created_at ASC",
	"-created_at": "p.created_at DESC",
}

func (r *PGRepo) List(ctx context.Context, q Query) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	limit, offset := clampPage(q.Limit, q.Offset)
	orderBy, ok := orderings[q.OrderBy]
	if !ok {
		orderBy = "p.created_at DESC"
	}

	search := strings.TrimSpace(q.Q)

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT `+selectCols+`
		FROM products p JOIN categories c ON c.id = p.category_id
		WHERE ($1 = '' OR p.name ILIKE '%%'||$1||'%%' OR c.name ILIKE '%%'||$1||'%%')
		  AND ($2 = '' OR c.slug = $2)
		  AND ($3 = '' OR p.price >= $3::numeric)
		  AND ($4 = '' OR p.price <= $4::numeric)
		ORDER BY %s
		LIMIT $5 OFFSET $6
	`, orderBy), search, q.CategorySlug, q.MinPrice, q.MaxPrice, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *PGRepo) LowStock(ctx context.Context, threshold, limit, offset int) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	limit, offset = clampPage(limit, offset)
	rows, err := r.db.Query(ctx, `
		SELECT `+selectCols+`
		FROM products p JOIN categories c ON c.id = p.category_id
		WHERE p.stock_quantity > 0 AND p.stock_quantity <= $1
		ORDER BY p.stock_quantity ASC
		LIMIT $2 OFFSET $3
	`, threshold, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *PGRepo) OutOfStock(ctx context.Context, limit, offset int) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	limit, offset = clampPage(limit, offset)
	rows, err := r.db.Query(ctx, `
		SELECT `+selectCols+`
		FROM products p JOIN categories c ON c.id = p.category_id
		WHERE p.stock_quantity = 0
		ORDER BY p.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func collect(rows pgx.Rows) ([]Product, error) {
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PGRepo) Update(ctx context.Context, p *Product, updatePrice bool) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// owner_id is never touched: ownership is fixed at creation.
	if updatePrice {
		tag, err := r.db.Exec(ctx, `
			UPDATE products
			SET name = COALESCE(NULLIF($2,''), name),
			    description = COALESCE(NULLIF($3,''), description),
			    price = $4,
			    stock_quantity = $5,
			    image_url = COALESCE(NULLIF($6,''), image_url),
			    updated_at = NOW()
			WHERE id = $1
		`, p.ID, p.Name, p.Description, p.Price, p.StockQuantity, p.ImageURL)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE products
		SET name = COALESCE(NULLIF($2,''), name),
		    description = COALESCE(NULLIF($3,''), description),
		    stock_quantity = $4,
		    image_url = COALESCE(NULLIF($5,''), image_url),
		    updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.StockQuantity, p.ImageURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// LockForUpdate takes the exclusive row lock and re-reads the fields the
// order transaction acts on. A stock value read before this lock is
// untrustworthy under concurrent orders.
func (r *PGRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id string) (*Product, error) {
	var p Product
	err := tx.QueryRow(ctx, `
		SELECT id, name, price::text, stock_quantity
		FROM products WHERE id=$1
		FOR UPDATE
	`, id).Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// AdjustStock applies a delta to stock_quantity; callers hold the row
// lock via LockForUpdate on the same tx.
func (r *PGRepo) AdjustStock(ctx context.Context, tx pgx.Tx, id string, delta int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE products SET stock_quantity = stock_quantity + $2, updated_at = NOW()
		WHERE id = $1
	`, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
