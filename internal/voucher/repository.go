package voucher

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) FindByCode(ctx context.Context, q database.Querier, code string) (domain.Voucher, error) {
	var v domain.Voucher
	err := q.QueryRowContext(ctx, `
		SELECT id, code, type, value, min_spend, expiry_date
		FROM vouchers
		WHERE code = $1
	`, code).Scan(&v.ID, &v.Code, &v.Type, &v.Value, &v.MinSpend, &v.ExpiryDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Voucher{}, fmt.Errorf("%w: voucher %q", domain.ErrNotFound, code)
		}
		return domain.Voucher{}, err
	}

	return v, nil
}
