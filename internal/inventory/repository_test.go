package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const (
	lockQuery   = `SELECT i.product_id, p.name, i.stock_quantity FROM inventory i JOIN products p ON p.id = i.product_id WHERE i.product_id = \$1 FOR UPDATE OF i`
	getQuery    = `SELECT i.product_id, p.name, i.stock_quantity FROM inventory i JOIN products p ON p.id = i.product_id WHERE i.product_id = \$1$`
	removeQuery = `UPDATE inventory SET stock_quantity = stock_quantity - \$2`
	addQuery    = `UPDATE inventory i SET stock_quantity = i.stock_quantity \+ \$2`
	setQuery    = `UPDATE inventory i SET stock_quantity = \$2`
)

func stockRows(productID int64, name string, qty int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"product_id", "name", "stock_quantity"}).AddRow(productID, name, qty)
}

func TestLedger_RemoveStock(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects non-positive quantity without touching the store", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock new: %v", err)
		}
		defer func() { _ = db.Close() }()

		for _, qty := range []int{0, -3} {
			_, err := NewLedger().RemoveStock(ctx, db, 1, qty)
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("qty %d: expected ErrInvalidArgument, got %v", qty, err)
			}
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("fails with insufficient stock and leaves the counter alone", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock new: %v", err)
		}
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(lockQuery).WithArgs(int64(7)).WillReturnRows(stockRows(7, "P", 3))

		_, err = NewLedger().RemoveStock(ctx, db, 7, 5)

		var stockErr *domain.InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Fatalf("expected InsufficientStockError, got %v", err)
		}
		if stockErr.ProductName != "P" || stockErr.Requested != 5 || stockErr.Available != 3 {
			t.Errorf("unexpected error detail: %+v", stockErr)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("decrements under row lock", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock new: %v", err)
		}
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(lockQuery).WithArgs(int64(7)).WillReturnRows(stockRows(7, "P", 10))
		mock.ExpectQuery(removeQuery).WithArgs(int64(7), 4).
			WillReturnRows(sqlmock.NewRows([]string{"stock_quantity"}).AddRow(6))

		inv, err := NewLedger().RemoveStock(ctx, db, 7, 4)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if inv.StockQuantity != 6 {
			t.Errorf("expected stock 6, got %d", inv.StockQuantity)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("missing inventory record is not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock new: %v", err)
		}
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(lockQuery).WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"product_id", "name", "stock_quantity"}))

		_, err = NewLedger().RemoveStock(ctx, db, 99, 1)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestLedger_AddStock(t *testing.T) {
	ctx := context.Background()

	t.Run("increments counter", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock new: %v", err)
		}
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(addQuery).WithArgs(int64(3), 2).WillReturnRows(stockRows(3, "Mug", 12))

		inv, err := NewLedger().AddStock(ctx, db, 3, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if inv.StockQuantity != 12 || inv.ProductName != "Mug" {
			t.Errorf("unexpected inventory: %+v", inv)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("rejects zero", func(t *testing.T) {
		db, _, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock new: %v", err)
		}
		defer func() { _ = db.Close() }()

		if _, err := NewLedger().AddStock(ctx, db, 3, 0); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("unknown product is not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock new: %v", err)
		}
		defer func() { _ = db.Close() }()

		mock.ExpectQuery(addQuery).WithArgs(int64(404), 1).
			WillReturnRows(sqlmock.NewRows([]string{"product_id", "name", "stock_quantity"}))

		if _, err := NewLedger().AddStock(ctx, db, 404, 1); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestLedger_SetStock(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := NewLedger().SetStock(ctx, db, 1, -1); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	mock.ExpectQuery(setQuery).WithArgs(int64(1), 0).WillReturnRows(stockRows(1, "Mug", 0))

	inv, err := NewLedger().SetStock(ctx, db, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.StockQuantity != 0 {
		t.Errorf("expected stock 0, got %d", inv.StockQuantity)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLedger_HasStock(t *testing.T) {
	ctx := context.Background()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(getQuery).WithArgs(int64(1)).WillReturnRows(stockRows(1, "Mug", 2))
	mock.ExpectQuery(getQuery).WithArgs(int64(1)).WillReturnRows(stockRows(1, "Mug", 2))
	mock.ExpectQuery(getQuery).WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "name", "stock_quantity"}))

	ledger := NewLedger()

	if ok, err := ledger.HasStock(ctx, db, 1, 2); err != nil || !ok {
		t.Errorf("expected stock for 2 units, got ok=%v err=%v", ok, err)
	}
	if ok, err := ledger.HasStock(ctx, db, 1, 3); err != nil || ok {
		t.Errorf("expected no stock for 3 units, got ok=%v err=%v", ok, err)
	}
	if ok, err := ledger.HasStock(ctx, db, 2, 1); err != nil || ok {
		t.Errorf("expected missing record to report false without error, got ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
