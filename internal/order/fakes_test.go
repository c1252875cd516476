package order

// In-memory fakes that model the database's transactional behavior:
// per-row mutexes held until commit or rollback, tx-local staging
// applied atomically on commit. They let the concurrency properties of
// the order flow run as ordinary unit tests.

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Kelvyn2012/e-commerce-API/internal/product"
)

type fakeDB struct {
	mu       sync.Mutex
	products map[string]*product.Product
	orders   map[string]*Order
	locks    map[string]*sync.Mutex
}

func newFakeDB(products ...*product.Product) *fakeDB {
	db := &fakeDB{
		products: make(map[string]*product.Product),
		orders:   make(map[string]*Order),
		locks:    make(map[string]*sync.Mutex),
	}
	for _, p := range products {
		cp := *p
		db.products[p.ID] = &cp
	}
	return db
}

func (db *fakeDB) lockFor(key string) *sync.Mutex {
	db.mu.Lock()
	defer db.mu.Unlock()
	m, ok := db.locks[key]
	if !ok {
		m = &sync.Mutex{}
		db.locks[key] = m
	}
	return m
}

func (db *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{
		db:         db,
		stockDelta: make(map[string]int),
		status:     make(map[string]string),
		totals:     make(map[string]string),
	}, nil
}

func (db *fakeDB) stock(id string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.products[id].StockQuantity
}

// fakeTx stages every write and applies it on Commit, releasing row
// locks either way. The embedded pgx.Tx stays nil: the service only
// ever calls Commit and Rollback on the tx itself.
type fakeTx struct {
	pgx.Tx
	db         *fakeDB
	held       []*sync.Mutex
	newOrders  []*Order
	newItems   []*Item
	stockDelta map[string]int
	status     map[string]string
	totals     map[string]string
	done       bool
}

func (t *fakeTx) release() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.held[i].Unlock()
	}
	t.held = nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.db.mu.Lock()
	for _, o := range t.newOrders {
		cp := *o
		t.db.orders[o.ID] = &cp
	}
	for _, it := range t.newItems {
		o := t.db.orders[it.OrderID]
		cp := *it
		if p, ok := t.db.products[it.ProductID]; ok {
			cp.ProductName = p.Name
		}
		d, _ := decimal.NewFromString(cp.Price)
		cp.Subtotal = d.Mul(decimal.NewFromInt(int64(cp.Quantity))).StringFixed(2)
		o.Items = append(o.Items, cp)
	}
	for id, delta := range t.stockDelta {
		t.db.products[id].StockQuantity += delta
	}
	for id, total := range t.totals {
		t.db.orders[id].TotalAmount = total
	}
	for id, st := range t.status {
		t.db.orders[id].Status = st
	}
	t.db.mu.Unlock()
	t.release()
	t.done = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.release()
	t.done = true
	return nil
}

// fakeStores implements both order.Store and product.TxStore on top of
// a fakeDB.
type fakeStores struct{ db *fakeDB }

var (
	_ Store           = (*fakeStores)(nil)
	_ product.TxStore = (*fakeStores)(nil)
)

func (f *fakeStores) LockForUpdate(ctx context.Context, tx pgx.Tx, id string) (*product.Product, error) {
	ft := tx.(*fakeTx)
	m := f.db.lockFor("product:" + id)
	m.Lock()

	f.db.mu.Lock()
	p, ok := f.db.products[id]
	if !ok {
		f.db.mu.Unlock()
		m.Unlock()
		return nil, product.ErrNotFound
	}
	cp := *p
	f.db.mu.Unlock()

	ft.held = append(ft.held, m)
	return &cp, nil
}

func (f *fakeStores) AdjustStock(ctx context.Context, tx pgx.Tx, id string, delta int) error {
	ft := tx.(*fakeTx)
	ft.stockDelta[id] += delta
	return nil
}

func (f *fakeStores) Insert(ctx context.Context, tx pgx.Tx, o *Order) error {
	ft := tx.(*fakeTx)
	cp := *o
	ft.newOrders = append(ft.newOrders, &cp)
	return nil
}

func (f *fakeStores) InsertItem(ctx context.Context, tx pgx.Tx, it *Item) error {
	ft := tx.(*fakeTx)
	cp := *it
	ft.newItems = append(ft.newItems, &cp)
	return nil
}

func (f *fakeStores) SetTotal(ctx context.Context, tx pgx.Tx, id, total string) error {
	ft := tx.(*fakeTx)
	for _, o := range ft.newOrders {
		if o.ID == id {
			o.TotalAmount = total
			return nil
		}
	}
	ft.totals[id] = total
	return nil
}

func (f *fakeStores) SetStatus(ctx context.Context, tx pgx.Tx, id, status string) error {
	ft := tx.(*fakeTx)
	ft.status[id] = status
	return nil
}

func (f *fakeStores) LockByID(ctx context.Context, tx pgx.Tx, id string) (*Order, error) {
	ft := tx.(*fakeTx)
	m := f.db.lockFor("order:" + id)
	m.Lock()

	f.db.mu.Lock()
	o, ok := f.db.orders[id]
	if !ok {
		f.db.mu.Unlock()
		m.Unlock()
		return nil, ErrNotFound
	}
	cp := deepCopy(o)
	f.db.mu.Unlock()

	ft.held = append(ft.held, m)
	return cp, nil
}

func (f *fakeStores) UpdateEmail(ctx context.Context, id, email string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	o, ok := f.db.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.CustomerEmail = email
	return nil
}

func (f *fakeStores) GetByID(ctx context.Context, id string) (*Order, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	o, ok := f.db.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return deepCopy(o), nil
}

func (f *fakeStores) List(ctx context.Context, q ListQuery) ([]Order, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []Order
	for _, o := range f.db.orders {
		if q.CustomerEmail != "" && o.CustomerEmail != q.CustomerEmail {
			continue
		}
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		out = append(out, *deepCopy(o))
	}
	return out, nil
}

func (f *fakeStores) Stats(ctx context.Context) (*Stats, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s := &Stats{}
	revenue := decimal.Zero
	for _, o := range f.db.orders {
		s.TotalOrders++
		d, _ := decimal.NewFromString(o.TotalAmount)
		revenue = revenue.Add(d)
		switch o.Status {
		case StatusPending:
			s.PendingOrders++
		case StatusProcessing:
			s.ProcessingOrders++
		case StatusCompleted:
			s.CompletedOrders++
		case StatusCancelled:
			s.CancelledOrders++
		}
	}
	s.TotalRevenue = revenue.StringFixed(2)
	return s, nil
}

func deepCopy(o *Order) *Order {
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	return &cp
}
