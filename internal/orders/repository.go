package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
)

type OrderRepository struct{}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{}
}

// Create inserts the order header and its item snapshots. The caller owns
// the transaction.
func (r *OrderRepository) Create(ctx context.Context, q database.Querier, order *domain.Order) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, shipping_address, total_price, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, order.UserID, order.ShippingAddress, order.TotalPrice, order.Status).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return err
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err = q.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price_at_purchase)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, order.ID, item.ProductID, item.Quantity, item.PriceAtPurchase).Scan(&item.ID)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, q database.Querier, id int64) (domain.Order, error) {
	return r.get(ctx, q, `
		SELECT id, user_id, shipping_address, total_price, status, created_at
		FROM orders
		WHERE id = $1
	`, id)
}

// LockByID loads the order and holds its row lock until the transaction ends,
// so concurrent cancels and status updates on one order serialize.
func (r *OrderRepository) LockByID(ctx context.Context, q database.Querier, id int64) (domain.Order, error) {
	return r.get(ctx, q, `
		SELECT id, user_id, shipping_address, total_price, status, created_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id)
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, q database.Querier, id int64, status domain.OrderStatus) error {
	result, err := q.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return notFound(id)
	}

	return nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, q database.Querier, userID int64) ([]domain.Order, error) {
	return r.list(ctx, q, `
		SELECT id, user_id, shipping_address, total_price, status, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
}

func (r *OrderRepository) List(ctx context.Context, q database.Querier) ([]domain.Order, error) {
	return r.list(ctx, q, `
		SELECT id, user_id, shipping_address, total_price, status, created_at
		FROM orders
		ORDER BY created_at DESC, id DESC
	`)
}

// HasPurchased reports whether the user owns a shipped or delivered order
// containing the product.
func (r *OrderRepository) HasPurchased(ctx context.Context, q database.Querier, userID, productID int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM orders o
			JOIN order_items oi ON oi.order_id = o.id
			WHERE o.user_id = $1
			  AND oi.product_id = $2
			  AND o.status IN ('SHIPPED', 'DELIVERED')
		)
	`, userID, productID).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

func (r *OrderRepository) get(ctx context.Context, q database.Querier, query string, id int64) (domain.Order, error) {
	var order domain.Order
	err := q.QueryRowContext(ctx, query, id).
		Scan(&order.ID, &order.UserID, &order.ShippingAddress, &order.TotalPrice, &order.Status, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, notFound(id)
		}
		return domain.Order{}, err
	}

	items, err := r.items(ctx, q, []int64{id})
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items[id]
	if order.Items == nil {
		order.Items = []domain.OrderItem{}
	}

	return order, nil
}

func (r *OrderRepository) list(ctx context.Context, q database.Querier, query string, args ...any) ([]domain.Order, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var orders []domain.Order
	var orderIDs []int64

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.UserID, &order.ShippingAddress, &order.TotalPrice, &order.Status, &order.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, order)
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	items, err := r.items(ctx, q, orderIDs)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []domain.OrderItem{}
		}
	}

	return orders, nil
}

// items batch-loads the line items of every order in one round trip.
func (r *OrderRepository) items(ctx context.Context, q database.Querier, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price_at_purchase
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, product_id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	byOrder := make(map[int64][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.PriceAtPurchase); err != nil {
			return nil, err
		}
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return byOrder, nil
}

func notFound(id int64) error {
	return fmt.Errorf("%w: order %d", domain.ErrNotFound, id)
}
