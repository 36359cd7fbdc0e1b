package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
)

// Ledger owns the per-product stock counters. It holds no state of its own:
// every call runs against the Querier handed in, so mutations join the
// caller's transaction.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) ListAll(ctx context.Context, q database.Querier) ([]domain.Inventory, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT i.product_id, p.name, i.stock_quantity
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		ORDER BY i.product_id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.Inventory{}
	for rows.Next() {
		var inv domain.Inventory
		if err := rows.Scan(&inv.ProductID, &inv.ProductName, &inv.StockQuantity); err != nil {
			return nil, err
		}
		items = append(items, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (l *Ledger) GetStock(ctx context.Context, q database.Querier, productID int64) (domain.Inventory, error) {
	var inv domain.Inventory
	err := q.QueryRowContext(ctx, `
		SELECT i.product_id, p.name, i.stock_quantity
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		WHERE i.product_id = $1
	`, productID).Scan(&inv.ProductID, &inv.ProductName, &inv.StockQuantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Inventory{}, notFound(productID)
		}
		return domain.Inventory{}, err
	}

	return inv, nil
}

// HasStock never reports a missing inventory record as an error.
func (l *Ledger) HasStock(ctx context.Context, q database.Querier, productID int64, quantity int) (bool, error) {
	inv, err := l.GetStock(ctx, q, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return inv.StockQuantity >= quantity, nil
}

func (l *Ledger) AddStock(ctx context.Context, q database.Querier, productID int64, quantity int) (domain.Inventory, error) {
	if quantity <= 0 {
		return domain.Inventory{}, fmt.Errorf("%w: quantity to add must be positive", domain.ErrInvalidArgument)
	}

	return l.update(ctx, q, productID, `
		UPDATE inventory i
		SET stock_quantity = i.stock_quantity + $2, updated_at = NOW()
		FROM products p
		WHERE i.product_id = $1 AND p.id = i.product_id
		RETURNING i.product_id, p.name, i.stock_quantity
	`, quantity)
}

// RemoveStock locks the inventory row, checks sufficiency and decrements in
// the same transaction. The guarded UPDATE keeps the counter non-negative even
// if it were ever called without the lock.
func (l *Ledger) RemoveStock(ctx context.Context, q database.Querier, productID int64, quantity int) (domain.Inventory, error) {
	if quantity <= 0 {
		return domain.Inventory{}, fmt.Errorf("%w: quantity to remove must be positive", domain.ErrInvalidArgument)
	}

	inv, err := l.lock(ctx, q, productID)
	if err != nil {
		return domain.Inventory{}, err
	}

	if inv.StockQuantity < quantity {
		return domain.Inventory{}, &domain.InsufficientStockError{
			ProductID:   productID,
			ProductName: inv.ProductName,
			Requested:   quantity,
			Available:   inv.StockQuantity,
		}
	}

	err = q.QueryRowContext(ctx, `
		UPDATE inventory
		SET stock_quantity = stock_quantity - $2, updated_at = NOW()
		WHERE product_id = $1 AND stock_quantity >= $2
		RETURNING stock_quantity
	`, productID, quantity).Scan(&inv.StockQuantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Inventory{}, &domain.InsufficientStockError{
				ProductID:   productID,
				ProductName: inv.ProductName,
				Requested:   quantity,
				Available:   inv.StockQuantity,
			}
		}
		return domain.Inventory{}, err
	}

	return inv, nil
}

// SetStock is the administrative override; it bypasses the sufficiency check.
func (l *Ledger) SetStock(ctx context.Context, q database.Querier, productID int64, quantity int) (domain.Inventory, error) {
	if quantity < 0 {
		return domain.Inventory{}, fmt.Errorf("%w: quantity cannot be negative", domain.ErrInvalidArgument)
	}

	return l.update(ctx, q, productID, `
		UPDATE inventory i
		SET stock_quantity = $2, updated_at = NOW()
		FROM products p
		WHERE i.product_id = $1 AND p.id = i.product_id
		RETURNING i.product_id, p.name, i.stock_quantity
	`, quantity)
}

func (l *Ledger) lock(ctx context.Context, q database.Querier, productID int64) (domain.Inventory, error) {
	var inv domain.Inventory
	err := q.QueryRowContext(ctx, `
		SELECT i.product_id, p.name, i.stock_quantity
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		WHERE i.product_id = $1
		FOR UPDATE OF i
	`, productID).Scan(&inv.ProductID, &inv.ProductName, &inv.StockQuantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Inventory{}, notFound(productID)
		}
		return domain.Inventory{}, err
	}

	return inv, nil
}

func (l *Ledger) update(ctx context.Context, q database.Querier, productID int64, query string, quantity int) (domain.Inventory, error) {
	var inv domain.Inventory
	err := q.QueryRowContext(ctx, query, productID, quantity).
		Scan(&inv.ProductID, &inv.ProductName, &inv.StockQuantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Inventory{}, notFound(productID)
		}
		return domain.Inventory{}, err
	}

	return inv, nil
}

func notFound(productID int64) error {
	return fmt.Errorf("%w: inventory for product %d", domain.ErrNotFound, productID)
}
