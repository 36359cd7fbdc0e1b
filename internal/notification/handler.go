package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httperr"
	"github.com/joao-fontenele/storefront/internal/identity"
)

type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (domain.User, error)
}

type Handler struct {
	store  *Store
	users  UserFinder
	logger *slog.Logger
}

func NewHandler(store *Store, users UserFinder, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		users:  users,
		logger: logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))

	notifications, err := h.store.ListByUser(r.Context(), user.ID, unreadOnly)
	if err != nil {
		httperr.Respond(w, h.logger, err, "failed to list notifications", "user_id", user.ID)
		return
	}

	httperr.WriteJSON(w, h.logger, http.StatusOK, notifications)
}

func (h *Handler) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	count, err := h.store.CountUnread(r.Context(), user.ID)
	if err != nil {
		httperr.Respond(w, h.logger, err, "failed to count notifications", "user_id", user.ID)
		return
	}

	httperr.WriteJSON(w, h.logger, http.StatusOK, map[string]int{"unread": count})
}

func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		httperr.Respond(w, h.logger, fmt.Errorf("%w: invalid notification id %q", domain.ErrInvalidArgument, raw), "invalid notification id")
		return
	}

	if err := h.store.MarkRead(r.Context(), user.ID, id); err != nil {
		httperr.Respond(w, h.logger, err, "failed to mark notification read", "user_id", user.ID, "id", id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	username, err := identity.UsernameFrom(r)
	if err != nil {
		httperr.Respond(w, h.logger, err, "missing identity")
		return domain.User{}, false
	}

	user, err := h.users.FindByUsername(r.Context(), username)
	if err != nil {
		httperr.Respond(w, h.logger, err, "failed to resolve user", "username", username)
		return domain.User{}, false
	}

	return user, true
}
