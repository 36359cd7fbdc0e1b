package cart

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
)

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(q database.Querier) error) error {
	return fn(nil)
}

func (fakeTx) DB() database.Querier { return nil }

type fakeStore struct {
	lines map[int64]int
}

func (s *fakeStore) Lock(ctx context.Context, q database.Querier, userID int64) (int64, error) {
	return 1, nil
}

func (s *fakeStore) Lines(ctx context.Context, q database.Querier, cartID int64) ([]Line, error) {
	lines := []Line{}
	for id, qty := range s.lines {
		lines = append(lines, Line{ProductID: id, Quantity: qty})
	}
	return lines, nil
}

func (s *fakeStore) Quantity(ctx context.Context, q database.Querier, cartID, productID int64) (int, error) {
	return s.lines[productID], nil
}

func (s *fakeStore) SetQuantity(ctx context.Context, q database.Querier, cartID, productID int64, quantity int) error {
	s.lines[productID] = quantity
	return nil
}

func (s *fakeStore) RemoveItem(ctx context.Context, q database.Querier, cartID, productID int64) error {
	if _, ok := s.lines[productID]; !ok {
		return fmt.Errorf("%w: product %d is not in the cart", domain.ErrNotFound, productID)
	}
	delete(s.lines, productID)
	return nil
}

func (s *fakeStore) Clear(ctx context.Context, q database.Querier, cartID int64) error {
	s.lines = map[int64]int{}
	return nil
}

type fakeStock map[int64]int

func (f fakeStock) HasStock(ctx context.Context, q database.Querier, productID int64, quantity int) (bool, error) {
	stock, ok := f[productID]
	return ok && stock >= quantity, nil
}

func (f fakeStock) GetStock(ctx context.Context, q database.Querier, productID int64) (domain.Inventory, error) {
	stock, ok := f[productID]
	if !ok {
		return domain.Inventory{}, domain.ErrNotFound
	}
	return domain.Inventory{ProductID: productID, StockQuantity: stock}, nil
}

type fakeCatalog map[int64]domain.Product

func (f fakeCatalog) FindProductByID(ctx context.Context, id int64) (domain.Product, error) {
	p, ok := f[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: product %d", domain.ErrNotFound, id)
	}
	return p, nil
}

type fakeUsers struct{}

func (fakeUsers) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	if username != "alice" {
		return domain.User{}, domain.ErrNotFound
	}
	return domain.User{ID: 7, Username: "alice"}, nil
}

func newTestService(stock fakeStock) (*Service, *fakeStore) {
	store := &fakeStore{lines: map[int64]int{}}
	catalog := fakeCatalog{
		1: {ID: 1, Name: "Mug", Price: decimal.RequireFromString("12.50")},
		2: {ID: 2, Name: "Tee", Price: decimal.RequireFromString("20.00")},
	}
	return NewService(fakeTx{}, store, stock, catalog, fakeUsers{}), store
}

func TestService_AddItem(t *testing.T) {
	t.Run("sums quantity and prices lines", func(t *testing.T) {
		svc, _ := newTestService(fakeStock{1: 10, 2: 10})
		ctx := context.Background()

		if _, err := svc.AddItem(ctx, "alice", 1, 2); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := svc.AddItem(ctx, "alice", 2, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		view, err := svc.AddItem(ctx, "alice", 1, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if view.ItemCount != 2 {
			t.Errorf("expected 2 lines, got %d", view.ItemCount)
		}
		if !view.Total.Equal(decimal.RequireFromString("57.50")) {
			t.Errorf("expected total 57.50, got %s", view.Total)
		}
	})

	t.Run("checks stock against the combined quantity", func(t *testing.T) {
		svc, store := newTestService(fakeStock{1: 3})
		ctx := context.Background()

		if _, err := svc.AddItem(ctx, "alice", 1, 2); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := svc.AddItem(ctx, "alice", 1, 2)

		var stockErr *domain.InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Fatalf("expected InsufficientStockError, got %v", err)
		}
		if stockErr.Requested != 4 || stockErr.Available != 3 {
			t.Errorf("unexpected figures: %+v", stockErr)
		}
		if store.lines[1] != 2 {
			t.Errorf("expected quantity to stay 2, got %d", store.lines[1])
		}
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		svc, _ := newTestService(fakeStock{1: 3})
		_, err := svc.AddItem(context.Background(), "alice", 1, 0)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("missing inventory record is a bad request", func(t *testing.T) {
		svc, _ := newTestService(fakeStock{})
		_, err := svc.AddItem(context.Background(), "alice", 1, 1)
		if !errors.Is(err, domain.ErrBadRequest) {
			t.Fatalf("expected ErrBadRequest, got %v", err)
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		svc, _ := newTestService(fakeStock{})
		_, err := svc.AddItem(context.Background(), "alice", 99, 1)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestService_UpdateAndRemove(t *testing.T) {
	svc, store := newTestService(fakeStock{1: 5})
	ctx := context.Background()

	if _, err := svc.UpdateItem(ctx, "alice", 1, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating absent line, got %v", err)
	}

	if _, err := svc.AddItem(ctx, "alice", 1, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.UpdateItem(ctx, "alice", 1, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.lines[1] != 5 {
		t.Errorf("expected quantity 5, got %d", store.lines[1])
	}
	if _, err := svc.UpdateItem(ctx, "alice", 1, 6); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	view, err := svc.RemoveItem(ctx, "alice", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.ItemCount != 0 || !view.Total.IsZero() {
		t.Errorf("expected empty cart, got %+v", view)
	}

	if _, err := svc.RemoveItem(ctx, "alice", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Clear(t *testing.T) {
	svc, store := newTestService(fakeStock{1: 5, 2: 5})
	ctx := context.Background()

	_, _ = svc.AddItem(ctx, "alice", 1, 1)
	_, _ = svc.AddItem(ctx, "alice", 2, 1)

	if err := svc.Clear(ctx, "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.lines) != 0 {
		t.Errorf("expected empty cart, got %v", store.lines)
	}

	if _, err := svc.Get(ctx, "bob"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}
