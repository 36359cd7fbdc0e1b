// Package notification holds the user-facing message feed written as a side
// effect of order lifecycle events.
package notification

import (
	"context"
	"fmt"

	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
)

// Sink accepts fire-and-forget messages for a user.
type Sink interface {
	Emit(ctx context.Context, userID int64, message string) error
}

type Store struct {
	db database.Querier
}

func NewStore(db database.Querier) *Store {
	return &Store{db: db}
}

func (s *Store) Emit(ctx context.Context, userID int64, message string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, message, is_read)
		VALUES ($1, $2, FALSE)
	`, userID, message)
	return err
}

func (s *Store) ListByUser(ctx context.Context, userID int64, unreadOnly bool) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, message, is_read, created_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR is_read = FALSE)
		ORDER BY created_at DESC, id DESC
	`, userID, unreadOnly)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	notifications := []domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return notifications, nil
}

func (s *Store) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE
	`, userID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MarkRead only touches notifications owned by userID; anything else is
// reported as missing.
func (s *Store) MarkRead(ctx context.Context, userID, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: notification %d", domain.ErrNotFound, id)
	}

	return nil
}
