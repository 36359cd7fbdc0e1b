package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
)

// Line is a raw cart row before it is resolved against the catalog.
type Line struct {
	ProductID int64
	Quantity  int
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Lock creates the user's cart on first access and locks its row for the
// rest of the transaction, serializing cart edits and checkout per user.
func (r *Repository) Lock(ctx context.Context, q database.Querier, userID int64) (int64, error) {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return 0, err
	}

	var cartID int64
	err := q.QueryRowContext(ctx, `
		SELECT id FROM carts WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&cartID)
	if err != nil {
		return 0, err
	}

	return cartID, nil
}

// Items returns the cart lines priced at the live catalog price, ordered by
// product id so that stock rows are always locked in the same order.
func (r *Repository) Items(ctx context.Context, q database.Querier, cartID int64) ([]domain.CartItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT ci.product_id, p.name, p.price, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.product_id
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *Repository) Lines(ctx context.Context, q database.Querier, cartID int64) ([]Line, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id, quantity
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY product_id
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	lines := []Line{}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// Quantity reports the current quantity of a product in the cart, or 0.
func (r *Repository) Quantity(ctx context.Context, q database.Querier, cartID, productID int64) (int, error) {
	var qty int
	err := q.QueryRowContext(ctx, `
		SELECT quantity FROM cart_items WHERE cart_id = $1 AND product_id = $2
	`, cartID, productID).Scan(&qty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}

	return qty, nil
}

func (r *Repository) SetQuantity(ctx context.Context, q database.Querier, cartID, productID int64, quantity int) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity
	`, cartID, productID, quantity)
	return err
}

func (r *Repository) RemoveItem(ctx context.Context, q database.Querier, cartID, productID int64) error {
	result, err := q.ExecContext(ctx, `
		DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2
	`, cartID, productID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: product %d is not in the cart", domain.ErrNotFound, productID)
	}

	return nil
}

func (r *Repository) Clear(ctx context.Context, q database.Querier, cartID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}
