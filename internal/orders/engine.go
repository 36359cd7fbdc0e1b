package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/notification"
	"github.com/joao-fontenele/storefront/internal/voucher"
)

type CartStore interface {
	Lock(ctx context.Context, q database.Querier, userID int64) (int64, error)
	Items(ctx context.Context, q database.Querier, cartID int64) ([]domain.CartItem, error)
	Clear(ctx context.Context, q database.Querier, cartID int64) error
}

type Ledger interface {
	GetStock(ctx context.Context, q database.Querier, productID int64) (domain.Inventory, error)
	HasStock(ctx context.Context, q database.Querier, productID int64, quantity int) (bool, error)
	RemoveStock(ctx context.Context, q database.Querier, productID int64, quantity int) (domain.Inventory, error)
	AddStock(ctx context.Context, q database.Querier, productID int64, quantity int) (domain.Inventory, error)
}

type VoucherFinder interface {
	FindByCode(ctx context.Context, q database.Querier, code string) (domain.Voucher, error)
}

type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (domain.User, error)
	FindByID(ctx context.Context, id int64) (domain.User, error)
}

type Store interface {
	Create(ctx context.Context, q database.Querier, order *domain.Order) error
	GetByID(ctx context.Context, q database.Querier, id int64) (domain.Order, error)
	LockByID(ctx context.Context, q database.Querier, id int64) (domain.Order, error)
	UpdateStatus(ctx context.Context, q database.Querier, id int64, status domain.OrderStatus) error
	ListByUser(ctx context.Context, q database.Querier, userID int64) ([]domain.Order, error)
	List(ctx context.Context, q database.Querier) ([]domain.Order, error)
	HasPurchased(ctx context.Context, q database.Querier, userID, productID int64) (bool, error)
}

// Publisher is satisfied by both the kafka producer and the amqp publisher.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Deps struct {
	Tx        database.Transactor
	Carts     CartStore
	Ledger    Ledger
	Vouchers  VoucherFinder
	Users     UserFinder
	Orders    Store
	Notifier  notification.Sink
	Publisher Publisher
	Logger    *slog.Logger
	Now       func() time.Time
}

// Engine turns carts into orders and drives the order lifecycle. Every
// mutation runs in one transaction; notifications and events are sent only
// after it commits and their failures are logged, never returned.
type Engine struct {
	tx        database.Transactor
	carts     CartStore
	ledger    Ledger
	vouchers  VoucherFinder
	users     UserFinder
	orders    Store
	notifier  notification.Sink
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
	metrics   *engineMetrics
}

func NewEngine(deps Deps) (*Engine, error) {
	metrics, err := newEngineMetrics()
	if err != nil {
		return nil, fmt.Errorf("register order metrics: %w", err)
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		tx:        deps.Tx,
		carts:     deps.Carts,
		ledger:    deps.Ledger,
		vouchers:  deps.Vouchers,
		users:     deps.Users,
		orders:    deps.Orders,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		now:       now,
		metrics:   metrics,
	}, nil
}

type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	VoucherCode     string `json:"voucher_code,omitempty"`
}

// Checkout converts the user's cart into a PENDING order. Order creation,
// stock deduction and clearing the cart commit together or not at all.
func (e *Engine) Checkout(ctx context.Context, username string, req CheckoutRequest) (domain.Order, error) {
	address := strings.TrimSpace(req.ShippingAddress)
	if address == "" {
		e.metrics.failed(ctx, "invalid_request")
		return domain.Order{}, fmt.Errorf("%w: shipping address is required", domain.ErrInvalidArgument)
	}

	user, err := e.users.FindByUsername(ctx, username)
	if err != nil {
		e.metrics.failed(ctx, failureReason(err))
		return domain.Order{}, err
	}

	var order domain.Order
	err = e.tx.WithTx(ctx, func(q database.Querier) error {
		cartID, err := e.carts.Lock(ctx, q, user.ID)
		if err != nil {
			return err
		}

		items, err := e.carts.Items(ctx, q, cartID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("%w: cart is empty", domain.ErrBadRequest)
		}

		subtotal := domain.Cart{Items: items}.Subtotal()

		discount := decimal.Zero
		if code := strings.TrimSpace(req.VoucherCode); code != "" {
			v, err := e.vouchers.FindByCode(ctx, q, code)
			if err != nil {
				return err
			}
			if discount, err = voucher.Discount(v, subtotal, e.now()); err != nil {
				return err
			}
		}

		for _, item := range items {
			if err := e.precheck(ctx, q, item); err != nil {
				return err
			}
		}

		order = domain.Order{
			UserID:          user.ID,
			ShippingAddress: address,
			TotalPrice:      subtotal.Sub(discount).Round(2),
			Status:          domain.OrderStatusPending,
			Items:           make([]domain.OrderItem, 0, len(items)),
		}
		for _, item := range items {
			order.Items = append(order.Items, domain.OrderItem{
				ProductID:       item.ProductID,
				Quantity:        item.Quantity,
				PriceAtPurchase: item.UnitPrice,
			})
		}

		if err := e.orders.Create(ctx, q, &order); err != nil {
			return err
		}

		// Items come back ordered by product id, so concurrent checkouts lock
		// inventory rows in the same order.
		for _, item := range order.Items {
			if _, err := e.ledger.RemoveStock(ctx, q, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		return e.carts.Clear(ctx, q, cartID)
	})
	if err != nil {
		e.metrics.failed(ctx, failureReason(err))
		return domain.Order{}, err
	}

	e.metrics.checkoutCompleted.Add(ctx, 1)
	for _, item := range order.Items {
		e.metrics.unitsRemoved.Add(ctx, int64(item.Quantity))
	}

	e.logger.Info("order placed", "order_id", order.ID, "user_id", user.ID, "total", order.TotalPrice.StringFixed(2))
	e.announce(ctx, user, order, domain.OrderEventPlaced,
		fmt.Sprintf("Order #%d placed successfully! Total: $%s", order.ID, order.TotalPrice.StringFixed(2)))

	return order, nil
}

// precheck fails fast before anything is written. The authoritative check is
// the locked decrement in RemoveStock.
func (e *Engine) precheck(ctx context.Context, q database.Querier, item domain.CartItem) error {
	ok, err := e.ledger.HasStock(ctx, q, item.ProductID, item.Quantity)
	if err != nil || ok {
		return err
	}

	inv, err := e.ledger.GetStock(ctx, q, item.ProductID)
	if err != nil {
		return fmt.Errorf("%w: insufficient stock for product: %s", domain.ErrBadRequest, item.ProductName)
	}
	return &domain.InsufficientStockError{
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Requested:   item.Quantity,
		Available:   inv.StockQuantity,
	}
}

// UpdateStatus is the administrative transition. Any of the five statuses is
// accepted from any state.
func (e *Engine) UpdateStatus(ctx context.Context, orderID int64, status string) (domain.Order, error) {
	next, err := domain.ParseOrderStatus(status)
	if err != nil {
		return domain.Order{}, err
	}

	var order domain.Order
	err = e.tx.WithTx(ctx, func(q database.Querier) error {
		var err error
		if order, err = e.orders.LockByID(ctx, q, orderID); err != nil {
			return err
		}
		if err := e.orders.UpdateStatus(ctx, q, orderID, next); err != nil {
			return err
		}
		order.Status = next
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	e.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)

	user, err := e.users.FindByID(ctx, order.UserID)
	if err != nil {
		e.logger.Error("failed to resolve order owner", "error", err, "order_id", order.ID)
		return order, nil
	}
	e.announce(ctx, user, order, domain.OrderEventStatusChanged,
		fmt.Sprintf("Order #%d status updated to: %s", order.ID, order.Status))

	return order, nil
}

// Cancel is the owner-initiated compensation for a checkout: every item's
// quantity goes back to the ledger and the order becomes CANCELLED.
func (e *Engine) Cancel(ctx context.Context, username string, orderID int64) (domain.Order, error) {
	user, err := e.users.FindByUsername(ctx, username)
	if err != nil {
		return domain.Order{}, err
	}

	var order domain.Order
	err = e.tx.WithTx(ctx, func(q database.Querier) error {
		var err error
		order, err = e.orders.LockByID(ctx, q, orderID)
		if err != nil {
			return err
		}
		if order.UserID != user.ID {
			return notFound(orderID)
		}
		if !order.Status.Cancellable() {
			return fmt.Errorf("%w: cannot cancel order in %s status", domain.ErrBadRequest, order.Status)
		}

		for _, item := range order.Items {
			if _, err := e.ledger.AddStock(ctx, q, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if err := e.orders.UpdateStatus(ctx, q, orderID, domain.OrderStatusCancelled); err != nil {
			return err
		}
		order.Status = domain.OrderStatusCancelled
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	e.metrics.orderCancelled.Add(ctx, 1)
	for _, item := range order.Items {
		e.metrics.unitsRestored.Add(ctx, int64(item.Quantity))
	}

	e.logger.Info("order cancelled", "order_id", order.ID, "user_id", user.ID)
	e.announce(ctx, user, order, domain.OrderEventCancelled,
		fmt.Sprintf("Order #%d has been cancelled", order.ID))

	return order, nil
}

func (e *Engine) GetForUser(ctx context.Context, username string, orderID int64) (domain.Order, error) {
	user, err := e.users.FindByUsername(ctx, username)
	if err != nil {
		return domain.Order{}, err
	}

	order, err := e.orders.GetByID(ctx, e.tx.DB(), orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID != user.ID {
		return domain.Order{}, fmt.Errorf("%w: access denied", domain.ErrBadRequest)
	}

	return order, nil
}

func (e *Engine) ListForUser(ctx context.Context, username string) ([]domain.Order, error) {
	user, err := e.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	return e.orders.ListByUser(ctx, e.tx.DB(), user.ID)
}

func (e *Engine) ListAll(ctx context.Context) ([]domain.Order, error) {
	return e.orders.List(ctx, e.tx.DB())
}

// HasPurchased answers the verified-purchase question: a shipped or delivered
// order of the user's contains the product.
func (e *Engine) HasPurchased(ctx context.Context, username string, productID int64) (bool, error) {
	user, err := e.users.FindByUsername(ctx, username)
	if err != nil {
		return false, err
	}

	return e.orders.HasPurchased(ctx, e.tx.DB(), user.ID, productID)
}

// announce writes the in-app notification and publishes the lifecycle event.
// The order is already committed, so failures are only logged.
func (e *Engine) announce(ctx context.Context, user domain.User, order domain.Order, eventType domain.OrderEventType, message string) {
	if e.notifier != nil {
		if err := e.notifier.Emit(ctx, user.ID, message); err != nil {
			e.logger.Error("failed to emit notification", "error", err, "order_id", order.ID, "user_id", user.ID)
		}
	}

	if e.publisher == nil {
		return
	}

	event := domain.OrderEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		OrderID:    order.ID,
		UserID:     user.ID,
		Username:   user.Username,
		Email:      user.Email,
		Status:     order.Status,
		TotalPrice: order.TotalPrice,
		Message:    message,
		Timestamp:  e.now().UTC(),
	}
	if err := e.publisher.Publish(ctx, strconv.FormatInt(order.ID, 10), event); err != nil {
		e.logger.Error("failed to publish order event", "error", err, "order_id", order.ID, "type", eventType)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrVoucherExpired), errors.Is(err, domain.ErrMinimumSpendNotMet):
		return "voucher_rejected"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrBadRequest):
		return "bad_request"
	default:
		return "internal"
	}
}
