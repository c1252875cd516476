package order

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kelvyn2012/e-commerce-API/internal/product"
)

func newTestService(products ...*product.Product) (*Service, *fakeDB) {
	db := newFakeDB(products...)
	stores := &fakeStores{db: db}
	return NewService(db, stores, stores), db
}

var (
	owner    = Actor{Email: "buyer@example.com"}
	staff    = Actor{Email: "ops@example.com", Staff: true}
	stranger = Actor{Email: "other@example.com"}
)

func TestCreate_RoundTrip(t *testing.T) {
	svc, db := newTestService(
		&product.Product{ID: "p1", Name: "Mouse", Price: "10.00", StockQuantity: 5},
		&product.Product{ID: "p2", Name: "Pad", Price: "5.00", StockQuantity: 3},
	)

	o, err := svc.Create(context.Background(), "Buyer@Example.com", []CartLine{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "buyer@example.com", o.CustomerEmail) // normalized
	assert.Equal(t, "25.00", o.TotalAmount)
	require.Len(t, o.Items, 2)

	byProduct := map[string]Item{}
	for _, it := range o.Items {
		byProduct[it.ProductID] = it
	}
	assert.Equal(t, 2, byProduct["p1"].Quantity)
	assert.Equal(t, "10.00", byProduct["p1"].Price)
	assert.Equal(t, "20.00", byProduct["p1"].Subtotal)
	assert.Equal(t, "5.00", byProduct["p2"].Subtotal)

	assert.Equal(t, 3, db.stock("p1"))
	assert.Equal(t, 2, db.stock("p2"))
}

func TestCreate_PriceFrozenAtOrderTime(t *testing.T) {
	svc, db := newTestService(&product.Product{ID: "p1", Name: "Mouse", Price: "10.00", StockQuantity: 5})

	o, err := svc.Create(context.Background(), "buyer@example.com", []CartLine{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)

	// a later price change must not touch the persisted item
	db.mu.Lock()
	db.products["p1"].Price = "99.00"
	db.mu.Unlock()

	got, err := svc.Get(context.Background(), o.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "10.00", got.Items[0].Price)
	assert.Equal(t, "10.00", got.TotalAmount)
}

func TestCreate_InsufficientStock_NoPartialEffects(t *testing.T) {
	svc, db := newTestService(&product.Product{ID: "p1", Name: "Mouse", Price: "10.00", StockQuantity: 3})

	_, err := svc.Create(context.Background(), "buyer@example.com", []CartLine{{ProductID: "p1", Quantity: 10}})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "p1", stockErr.ProductID)
	assert.Equal(t, 10, stockErr.Requested)
	assert.Equal(t, 3, stockErr.Available)

	assert.Equal(t, 3, db.stock("p1"), "rejected order must leave stock unchanged")
	assert.Empty(t, db.orders, "no order row may survive the rollback")
}

func TestCreate_SecondLineFailureRollsBackFirst(t *testing.T) {
	svc, db := newTestService(
		&product.Product{ID: "a1", Name: "A", Price: "1.00", StockQuantity: 10},
		&product.Product{ID: "b2", Name: "B", Price: "2.00", StockQuantity: 1},
	)

	_, err := svc.Create(context.Background(), "buyer@example.com", []CartLine{
		{ProductID: "a1", Quantity: 5},
		{ProductID: "b2", Quantity: 2},
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "b2", stockErr.ProductID)
	assert.Equal(t, 10, db.stock("a1"), "earlier line's decrement must roll back")
	assert.Empty(t, db.orders)
}

func TestCreate_Validation(t *testing.T) {
	svc, db := newTestService(&product.Product{ID: "p1", Name: "Mouse", Price: "10.00", StockQuantity: 5})

	cases := []struct {
		name  string
		email string
		lines []CartLine
	}{
		{"empty cart", "buyer@example.com", nil},
		{"zero quantity", "buyer@example.com", []CartLine{{ProductID: "p1", Quantity: 0}}},
		{"negative quantity", "buyer@example.com", []CartLine{{ProductID: "p1", Quantity: -2}}},
		{"missing product id", "buyer@example.com", []CartLine{{Quantity: 1}}},
		{"duplicate product", "buyer@example.com", []CartLine{{ProductID: "p1", Quantity: 1}, {ProductID: "p1", Quantity: 2}}},
		{"bad email", "not-an-email", []CartLine{{ProductID: "p1", Quantity: 1}}},
		{"unknown product", "buyer@example.com", []CartLine{{ProductID: "nope", Quantity: 1}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), c.email, c.lines)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}

	assert.Equal(t, 5, db.stock("p1"))
	assert.Empty(t, db.orders)
}

func TestCancel_RestoresStock(t *testing.T) {
	svc, db := newTestService(&product.Product{ID: "p1", Name: "Mouse", Price: "10.00", StockQuantity: 5})

	o, err := svc.Create(context.Background(), "buyer@example.com", []CartLine{{ProductID: "p1", Quantity: 2}})
	require.NoError(t, err)
	require.Equal(t, 3, db.stock("p1"))

	got, err := svc.Cancel(context.Background(), o.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, 5, db.stock("p1"))
}

func TestCancel_TerminalStatesRejected(t *testing.T) {
	for _, terminal := range []string{StatusCancelled, StatusCompleted} {
		t.Run(terminal, func(t *testing.T) {
			svc, db := newTestService(&product.Product{ID: "p1", Name: "Mouse", Price: "10.00", StockQuantity: 5})
			o, err := svc.Create(context.Background(), "buyer@example.com", []CartLine{{ProductID: "p1", Quantity: 2}})
			require.NoError(t, err)

			if terminal == StatusCancelled {
				_, err = svc.Cancel(context.Background(), o.ID, owner)
			} else {
				_, err = svc.Complete(context.Background(), o.ID, staff)
			}
			require.NoError(t, err)
			stockAfter := db.stock("p1")

			_, err = svc.Cancel(context.Background(), o.ID, owner)
			var trErr *InvalidTransitionError
			require.ErrorAs(t, err, &trErr)
			assert.Equal(t, terminal, trErr.From)
			assert.Equal(t, stockAfter, db.stock("p1"), "failed cancel must not touch stock")
		})
	}
}

func TestCancel_Authorization(t *testing.T) {
	svc, db := newTestService(&product.Product{ID: "p1", Name: "Mouse", Price: "10.00", StockQuantity: 5})
	o, err := svc.Create(context.Background(), "buyer@example.com", []CartLine{{ProductID: "p1", Quantity: 2}})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), o.ID, stranger)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 3, db.stock("p1"))

	// staff may cancel anyone's order
	got, err := svc.Cancel(context.Background(), o.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestComplete_Lifecycle(t *testing.T) {
	svc, _ := newTestService(&product.Product{ID: "p1", Name: "Mouse", Price: "10.00", StockQuantity: 9})

	o, err := svc.Create(context.Background(), "buyer@example.com", []CartLine{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), o.ID, owner)
	assert.ErrorIs(t, err, ErrForbidden, "completion is operator-only")

	got, err := svc.MarkProcessing(context.Background(), o.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)

	_, err = svc.MarkProcessing(context.Background(), o.ID, staff)
	var trErr *InvalidTransitionError
	assert.ErrorAs(t, err, &trErr, "processing only follows pending")

	got, err = svc.Complete(context.Background(), o.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	_, err = svc.Complete(context.Background(), o.ID, staff)
	assert.ErrorAs(t, err, &trErr)
}

func TestUpdateEmail(t *testing.T) {
	svc, _ := newTestService(&product.Product{ID: "p1", Name: "Mouse", Price: "10.00", StockQuantity: 5})
	o, err := svc.Create(context.Background(), "buyer@example.com", []CartLine{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)

	_, err = svc.UpdateEmail(context.Background(), o.ID, stranger, "new@example.com")
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := svc.UpdateEmail(context.Background(), o.ID, owner, "New@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.CustomerEmail)
	assert.Len(t, got.Items, 1, "items survive an email update untouched")
}

func TestList_ScopedToActor(t *testing.T) {
	svc, _ := newTestService(&product.Product{ID: "p1", Name: "Mouse", Price: "10.00", StockQuantity: 50})

	_, err := svc.Create(context.Background(), "buyer@example.com", []CartLine{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "other@example.com", []CartLine{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)

	mine, err := svc.List(context.Background(), ListQuery{}, owner)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := svc.List(context.Background(), ListQuery{}, staff)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStats_StaffOnly(t *testing.T) {
	svc, _ := newTestService(&product.Product{ID: "p1", Name: "Mouse", Price: "10.00", StockQuantity: 50})
	o, err := svc.Create(context.Background(), "buyer@example.com", []CartLine{{ProductID: "p1", Quantity: 2}})
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), o.ID, owner)
	require.NoError(t, err)

	_, err = svc.Stats(context.Background(), owner)
	assert.ErrorIs(t, err, ErrForbidden)

	s, err := svc.Stats(context.Background(), staff)
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalOrders)
	assert.Equal(t, 1, s.CancelledOrders)
	assert.Equal(t, "20.00", s.TotalRevenue)
}

// Two concurrent carts each asking for 3 of a stock of 5: the row lock
// serializes them, exactly one wins and the loser sees the remainder.
func TestCreate_ConcurrentRace(t *testing.T) {
	svc, db := newTestService(&product.Product{ID: "p1", Name: "Mouse", Price: "10.00", StockQuantity: 5})

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), "buyer@example.com", []CartLine{{ProductID: "p1", Quantity: 3}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var failures []error
	for err := range errs {
		if err != nil {
			failures = append(failures, err)
		}
	}
	require.Len(t, failures, 1, "exactly one of the two requests must fail")

	var stockErr *InsufficientStockError
	require.ErrorAs(t, failures[0], &stockErr)
	assert.Equal(t, 2, stockErr.Available, "loser sees the post-commit remainder")
	assert.Equal(t, 2, db.stock("p1"))
}

// No interleaving of concurrent orders may oversell: with stock 5 and
// eight carts of 2, at most two can succeed.
func TestCreate_NoOverselling(t *testing.T) {
	svc, db := newTestService(&product.Product{ID: "p1", Name: "Mouse", Price: "10.00", StockQuantity: 5})

	const workers = 8
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), "buyer@example.com", []CartLine{{ProductID: "p1", Quantity: 2}})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	sold := 0
	for err := range results {
		if err == nil {
			sold += 2
		} else {
			var stockErr *InsufficientStockError
			require.ErrorAs(t, err, &stockErr)
		}
	}
	assert.LessOrEqual(t, sold, 5)
	assert.Equal(t, 4, sold, "two carts of 2 fit into stock 5")
	assert.Equal(t, 1, db.stock("p1"))
}

// Carts listing the same two products in opposite order must not
// deadlock: locks are taken in canonical (ascending id) order.
func TestCreate_OppositeOrderCartsNoDeadlock(t *testing.T) {
	svc, db := newTestService(
		&product.Product{ID: "a1", Name: "A", Price: "1.00", StockQuantity: 100},
		&product.Product{ID: "b2", Name: "B", Price: "2.00", StockQuantity: 100},
	)

	const rounds = 20
	var wg sync.WaitGroup
	errs := make(chan error, rounds*2)
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), "buyer@example.com", []CartLine{
				{ProductID: "a1", Quantity: 1}, {ProductID: "b2", Quantity: 1},
			})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), "buyer@example.com", []CartLine{
				{ProductID: "b2", Quantity: 1}, {ProductID: "a1", Quantity: 1},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 100-rounds*2, db.stock("a1"))
	assert.Equal(t, 100-rounds*2, db.stock("b2"))
}
