// Package identity resolves the acting principal. Authentication itself
// happens upstream; the storefront only maps a username to a user record.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
)

type Repository struct {
	db database.Querier
}

func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, email
		FROM users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, fmt.Errorf("%w: user %q", domain.ErrNotFound, username)
		}
		return domain.User{}, err
	}

	return u, nil
}

func (r *Repository) FindByID(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, email
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Username, &u.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
		}
		return domain.User{}, err
	}

	return u, nil
}
