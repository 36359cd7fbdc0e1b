package cart

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
)

type Store interface {
	Lock(ctx context.Context, q database.Querier, userID int64) (int64, error)
	Lines(ctx context.Context, q database.Querier, cartID int64) ([]Line, error)
	Quantity(ctx context.Context, q database.Querier, cartID, productID int64) (int, error)
	SetQuantity(ctx context.Context, q database.Querier, cartID, productID int64, quantity int) error
	RemoveItem(ctx context.Context, q database.Querier, cartID, productID int64) error
	Clear(ctx context.Context, q database.Querier, cartID int64) error
}

type StockChecker interface {
	HasStock(ctx context.Context, q database.Querier, productID int64, quantity int) (bool, error)
	GetStock(ctx context.Context, q database.Querier, productID int64) (domain.Inventory, error)
}

type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (domain.User, error)
}

// View is the cart as presented to its owner.
type View struct {
	Cart      domain.Cart     `json:"cart"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

type Service struct {
	tx      database.Transactor
	store   Store
	stock   StockChecker
	catalog catalog.Reader
	users   UserFinder

	maxConcurrent int
}

func NewService(tx database.Transactor, store Store, stock StockChecker, catalog catalog.Reader, users UserFinder) *Service {
	return &Service{
		tx:            tx,
		store:         store,
		stock:         stock,
		catalog:       catalog,
		users:         users,
		maxConcurrent: 8,
	}
}

func (s *Service) Get(ctx context.Context, username string) (View, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return View{}, err
	}

	var (
		cartID int64
		lines  []Line
	)
	err = s.tx.WithTx(ctx, func(q database.Querier) error {
		var err error
		if cartID, err = s.store.Lock(ctx, q, user.ID); err != nil {
			return err
		}
		lines, err = s.store.Lines(ctx, q, cartID)
		return err
	})
	if err != nil {
		return View{}, err
	}

	return s.resolve(ctx, domain.Cart{ID: cartID, UserID: user.ID}, lines)
}

// AddItem adds quantity to the product's line, creating it if needed. The
// stock check covers the combined quantity.
func (s *Service) AddItem(ctx context.Context, username string, productID int64, quantity int) (View, error) {
	if quantity <= 0 {
		return View{}, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidArgument)
	}

	product, err := s.catalog.FindProductByID(ctx, productID)
	if err != nil {
		return View{}, err
	}

	return s.edit(ctx, username, func(q database.Querier, cartID int64) error {
		current, err := s.store.Quantity(ctx, q, cartID, productID)
		if err != nil {
			return err
		}

		if err := s.ensureStock(ctx, q, product, current+quantity); err != nil {
			return err
		}

		return s.store.SetQuantity(ctx, q, cartID, productID, current+quantity)
	})
}

func (s *Service) UpdateItem(ctx context.Context, username string, productID int64, quantity int) (View, error) {
	if quantity <= 0 {
		return View{}, fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidArgument)
	}

	product, err := s.catalog.FindProductByID(ctx, productID)
	if err != nil {
		return View{}, err
	}

	return s.edit(ctx, username, func(q database.Querier, cartID int64) error {
		current, err := s.store.Quantity(ctx, q, cartID, productID)
		if err != nil {
			return err
		}
		if current == 0 {
			return fmt.Errorf("%w: product %d is not in the cart", domain.ErrNotFound, productID)
		}

		if err := s.ensureStock(ctx, q, product, quantity); err != nil {
			return err
		}

		return s.store.SetQuantity(ctx, q, cartID, productID, quantity)
	})
}

func (s *Service) RemoveItem(ctx context.Context, username string, productID int64) (View, error) {
	return s.edit(ctx, username, func(q database.Querier, cartID int64) error {
		return s.store.RemoveItem(ctx, q, cartID, productID)
	})
}

func (s *Service) Clear(ctx context.Context, username string) error {
	_, err := s.edit(ctx, username, func(q database.Querier, cartID int64) error {
		return s.store.Clear(ctx, q, cartID)
	})
	return err
}

func (s *Service) edit(ctx context.Context, username string, fn func(q database.Querier, cartID int64) error) (View, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return View{}, err
	}

	var (
		cartID int64
		lines  []Line
	)
	err = s.tx.WithTx(ctx, func(q database.Querier) error {
		var err error
		if cartID, err = s.store.Lock(ctx, q, user.ID); err != nil {
			return err
		}
		if err := fn(q, cartID); err != nil {
			return err
		}
		lines, err = s.store.Lines(ctx, q, cartID)
		return err
	})
	if err != nil {
		return View{}, err
	}

	return s.resolve(ctx, domain.Cart{ID: cartID, UserID: user.ID}, lines)
}

func (s *Service) ensureStock(ctx context.Context, q database.Querier, product domain.Product, quantity int) error {
	ok, err := s.stock.HasStock(ctx, q, product.ID, quantity)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	inv, err := s.stock.GetStock(ctx, q, product.ID)
	if err != nil {
		return fmt.Errorf("%w: insufficient stock for product: %s", domain.ErrBadRequest, product.Name)
	}
	return &domain.InsufficientStockError{
		ProductID:   product.ID,
		ProductName: product.Name,
		Requested:   quantity,
		Available:   inv.StockQuantity,
	}
}

// resolve prices every line through the catalog, fetching products concurrently.
func (s *Service) resolve(ctx context.Context, c domain.Cart, lines []Line) (View, error) {
	items := make([]domain.CartItem, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for i := range lines {
		g.Go(func() error {
			product, err := s.catalog.FindProductByID(gctx, lines[i].ProductID)
			if err != nil {
				return fmt.Errorf("resolve product %d: %w", lines[i].ProductID, err)
			}
			items[i] = domain.CartItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				UnitPrice:   product.Price,
				Quantity:    lines[i].Quantity,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return View{}, err
	}

	c.Items = items
	return View{Cart: c, Total: c.Subtotal(), ItemCount: len(items)}, nil
}
