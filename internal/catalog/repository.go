package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
)

// Reader is the catalog lookup the storefront consumes. Products are owned
// by the catalog service; this module only reads them.
type Reader interface {
	FindProductByID(ctx context.Context, id int64) (domain.Product, error)
}

type Repository struct {
	db database.Querier
}

func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindProductByID(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, fmt.Errorf("%w: product %d", domain.ErrNotFound, id)
		}
		return domain.Product{}, err
	}

	return p, nil
}
