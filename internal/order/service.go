// Package order implements the order transaction manager and lifecycle
// controller: atomic cart-to-order conversion under product row locks,
// and the status state machine with compensating stock restoration.
package order

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Kelvyn2012/e-commerce-API/internal/product"
)

// txTimeout bounds the whole order transaction, lock waits included;
// expiry surfaces as a context error the caller may retry.
const txTimeout = 10 * time.Second

// DB hands out transactions. *pgxpool.Pool satisfies it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// API is what the HTTP handlers program against.
type API interface {
	Create(ctx context.Context, customerEmail string, lines []CartLine) (*Order, error)
	Get(ctx context.Context, id string, actor Actor) (*Order, error)
	List(ctx context.Context, q ListQuery, actor Actor) ([]Order, error)
	UpdateEmail(ctx context.Context, id string, actor Actor, email string) (*Order, error)
	Cancel(ctx context.Context, id string, actor Actor) (*Order, error)
	Complete(ctx context.Context, id string, actor Actor) (*Order, error)
	MarkProcessing(ctx context.Context, id string, actor Actor) (*Order, error)
	Stats(ctx context.Context, actor Actor) (*Stats, error)
}

type Service struct {
	db       DB
	orders   Store
	products product.TxStore
}

func NewService(db DB, orders Store, products product.TxStore) *Service {
	return &Service{db: db, orders: orders, products: products}
}

var _ API = (*Service)(nil)

// NormalizeEmail trims and lowercases; an address must contain '@'.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", validationf("please provide a valid email address")
	}
	return email, nil
}

func validateCart(lines []CartLine) error {
	if len(lines) == 0 {
		return validationf("order must contain at least one item")
	}
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		if l.ProductID == "" {
			return validationf("product is required on every item")
		}
		if l.Quantity <= 0 {
			return validationf("quantity must be greater than 0")
		}
		if seen[l.ProductID] {
			return validationf("duplicate product %s in order", l.ProductID)
		}
		seen[l.ProductID] = true
	}
	return nil
}

// Create converts a cart into a persisted order, or fails atomically
// with no partial effects.
//
// Inside a single transaction: the order row is inserted in pending
// status, then each product is locked FOR UPDATE in ascending
// product-id order (a canonical order, so two carts touching the same
// products can never deadlock), stock is re-read under the lock and
// validated, the item is written with the price frozen, stock is
// decremented and the decimal total accumulated. The total lands on the
// order last; any failure rolls the whole thing back.
func (s *Service) Create(ctx context.Context, customerEmail string, lines []CartLine) (*Order, error) {
	email, err := NormalizeEmail(customerEmail)
	if err != nil {
		return nil, err
	}
	if err := validateCart(lines); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o := &Order{
		ID:            uuid.NewString(),
		CustomerEmail: email,
		Status:        StatusPending,
		TotalAmount:   "0",
	}
	if err := s.orders.Insert(ctx, tx, o); err != nil {
		return nil, err
	}

	locked := make([]CartLine, len(lines))
	copy(locked, lines)
	sort.Slice(locked, func(i, j int) bool { return locked[i].ProductID < locked[j].ProductID })

	total := decimal.Zero
	for _, line := range locked {
		p, err := s.products.LockForUpdate(ctx, tx, line.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return nil, validationf("product %s not found", line.ProductID)
			}
			return nil, err
		}
		if line.Quantity > p.StockQuantity {
			return nil, &InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   line.Quantity,
				Available:   p.StockQuantity,
			}
		}

		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, err
		}
		it := &Item{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			ProductID: p.ID,
			Quantity:  line.Quantity,
			Price:     price.StringFixed(2),
		}
		if err := s.orders.InsertItem(ctx, tx, it); err != nil {
			return nil, err
		}
		if err := s.products.AdjustStock(ctx, tx, p.ID, -line.Quantity); err != nil {
			return nil, err
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	if err := s.orders.SetTotal(ctx, tx, o.ID, total.StringFixed(2)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Printf("[order] created id=%s items=%d total=%s", o.ID, len(lines), total.StringFixed(2))
	return s.orders.GetByID(ctx, o.ID)
}

func canManage(o *Order, actor Actor) bool {
	return actor.Staff || strings.EqualFold(actor.Email, o.CustomerEmail)
}

func (s *Service) Get(ctx context.Context, id string, actor Actor) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(o, actor) {
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, q ListQuery, actor Actor) ([]Order, error) {
	if !actor.Staff {
		// non-staff callers only ever see their own orders
		q.CustomerEmail = strings.ToLower(actor.Email)
	}
	return s.orders.List(ctx, q)
}

// UpdateEmail is the only mutation PUT /orders/:id supports; the item
// list is immutable after creation and handlers reject it up front with
// ErrItemsImmutable.
func (s *Service) UpdateEmail(ctx context.Context, id string, actor Actor, email string) (*Order, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(o, actor) {
		return nil, ErrForbidden
	}
	if err := s.orders.UpdateEmail(ctx, id, normalized); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, id)
}

// Cancel transitions an order to cancelled and restores stock for every
// item, atomically. The order row is locked first so a concurrent
// cancel or complete of the same order serializes here; terminal states
// fail with InvalidTransitionError and mutate nothing.
func (s *Service) Cancel(ctx context.Context, id string, actor Actor) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := s.orders.LockByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !canManage(o, actor) {
		return nil, ErrForbidden
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return nil, &InvalidTransitionError{From: o.Status, To: StatusCancelled}
	}

	// same canonical lock order as creation
	items := make([]Item, len(o.Items))
	copy(items, o.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	for _, it := range items {
		if _, err := s.products.LockForUpdate(ctx, tx, it.ProductID); err != nil {
			return nil, err
		}
		if err := s.products.AdjustStock(ctx, tx, it.ProductID, it.Quantity); err != nil {
			return nil, err
		}
	}
	if err := s.orders.SetStatus(ctx, tx, id, StatusCancelled); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Printf("[order] cancelled id=%s items=%d", id, len(items))
	return s.orders.GetByID(ctx, id)
}

// Complete marks the order completed. Operator only; allowed from any
// non-terminal state.
func (s *Service) Complete(ctx context.Context, id string, actor Actor) (*Order, error) {
	if !actor.Staff {
		return nil, ErrForbidden
	}
	return s.transition(ctx, id, StatusCompleted, func(from string) bool {
		return CanTransition(from, StatusCompleted)
	})
}

// MarkProcessing moves a pending order to processing. Operator only.
func (s *Service) MarkProcessing(ctx context.Context, id string, actor Actor) (*Order, error) {
	if !actor.Staff {
		return nil, ErrForbidden
	}
	return s.transition(ctx, id, StatusProcessing, func(from string) bool {
		return from == StatusPending
	})
}

func (s *Service) transition(ctx context.Context, id, to string, allowed func(from string) bool) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := s.orders.LockByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !allowed(o.Status) {
		return nil, &InvalidTransitionError{From: o.Status, To: to}
	}
	if err := s.orders.SetStatus(ctx, tx, id, to); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, id)
}

func (s *Service) Stats(ctx context.Context, actor Actor) (*Stats, error) {
	if !actor.Staff {
		return nil, ErrForbidden
	}
	return s.orders.Stats(ctx)
}
