package cart

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httperr"
	"github.com/joao-fontenele/storefront/internal/identity"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	username, err := identity.UsernameFrom(r)
	if err != nil {
		httperr.Respond(w, h.logger, err, "missing identity")
		return
	}

	view, err := h.service.Get(r.Context(), username)
	if err != nil {
		httperr.Respond(w, h.logger, err, "failed to get cart", "username", username)
		return
	}

	httperr.WriteJSON(w, h.logger, http.StatusOK, view)
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	username, err := identity.UsernameFrom(r)
	if err != nil {
		httperr.Respond(w, h.logger, err, "missing identity")
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.service.AddItem(r.Context(), username, req.ProductID, req.Quantity)
	if err != nil {
		httperr.Respond(w, h.logger, err, "failed to add cart item", "username", username, "product_id", req.ProductID)
		return
	}

	h.logger.Info("cart item added", "username", username, "product_id", req.ProductID, "quantity", req.Quantity)
	httperr.WriteJSON(w, h.logger, http.StatusOK, view)
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	username, err := identity.UsernameFrom(r)
	if err != nil {
		httperr.Respond(w, h.logger, err, "missing identity")
		return
	}

	productID, err := productIDFrom(r)
	if err != nil {
		httperr.Respond(w, h.logger, err, "invalid product id")
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.service.UpdateItem(r.Context(), username, productID, req.Quantity)
	if err != nil {
		httperr.Respond(w, h.logger, err, "failed to update cart item", "username", username, "product_id", productID)
		return
	}

	h.logger.Info("cart item updated", "username", username, "product_id", productID, "quantity", req.Quantity)
	httperr.WriteJSON(w, h.logger, http.StatusOK, view)
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	username, err := identity.UsernameFrom(r)
	if err != nil {
		httperr.Respond(w, h.logger, err, "missing identity")
		return
	}

	productID, err := productIDFrom(r)
	if err != nil {
		httperr.Respond(w, h.logger, err, "invalid product id")
		return
	}

	view, err := h.service.RemoveItem(r.Context(), username, productID)
	if err != nil {
		httperr.Respond(w, h.logger, err, "failed to remove cart item", "username", username, "product_id", productID)
		return
	}

	h.logger.Info("cart item removed", "username", username, "product_id", productID)
	httperr.WriteJSON(w, h.logger, http.StatusOK, view)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	username, err := identity.UsernameFrom(r)
	if err != nil {
		httperr.Respond(w, h.logger, err, "missing identity")
		return
	}

	if err := h.service.Clear(r.Context(), username); err != nil {
		httperr.Respond(w, h.logger, err, "failed to clear cart", "username", username)
		return
	}

	h.logger.Info("cart cleared", "username", username)
	httperr.WriteJSON(w, h.logger, http.StatusOK, map[string]string{"message": "Cart cleared successfully!"})
}

func productIDFrom(r *http.Request) (int64, error) {
	raw := r.PathValue("productId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid product id %q", domain.ErrInvalidArgument, raw)
	}
	return id, nil
}
