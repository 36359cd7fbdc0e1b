package orders

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
	engine *Engine
	logger *slog.Logger
}

func NewHandler(engine *Engine, logger *slog.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	username, err := identity.UsernameFrom(r)
	if err != nil {
		httperr.Respond(w, h.logger, err, "missing identity")
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.engine.Checkout(r.Context(), username, req)
	if err != nil {
		h.logger.Warn("checkout failed", "error", err, "username", username)
		httperr.Respond(w, h.logger, err, "failed to checkout", "username", username)
		return
	}

	httperr.WriteJSON(w, h.logger, http.StatusCreated, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	username, err := identity.UsernameFrom(r)
	if err != nil {
		httperr.Respond(w, h.logger, err, "missing identity")
		return
	}

	orders, err := h.engine.ListForUser(r.Context(), username)
	if err != nil {
		httperr.Respond(w, h.logger, err, "failed to list orders", "username", username)
		return
	}

	h.logger.Info("orders listed", "username", username, "count", len(orders))
	httperr.WriteJSON(w, h.logger, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	username, err := identity.UsernameFrom(r)
	if err != nil {
		httperr.Respond(w, h.logger, err, "missing identity")
		return
	}

	id, err := orderIDFrom(r)
	if err != nil {
		httperr.Respond(w, h.logger, err, "invalid order id")
		return
	}

	order, err := h.engine.GetForUser(r.Context(), username, id)
	if err != nil {
		httperr.Respond(w, h.logger, err, "failed to get order", "id", id)
		return
	}

	h.logger.Info("order retrieved", "order_id", order.ID)
	httperr.WriteJSON(w, h.logger, http.StatusOK, order)
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	username, err := identity.UsernameFrom(r)
	if err != nil {
		httperr.Respond(w, h.logger, err, "missing identity")
		return
	}

	id, err := orderIDFrom(r)
	if err != nil {
		httperr.Respond(w, h.logger, err, "invalid order id")
		return
	}

	order, err := h.engine.Cancel(r.Context(), username, id)
	if err != nil {
		httperr.Respond(w, h.logger, err, "failed to cancel order", "id", id)
		return
	}

	httperr.WriteJSON(w, h.logger, http.StatusOK, order)
}

func (h *Handler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	orders, err := h.engine.ListAll(r.Context())
	if err != nil {
		httperr.Respond(w, h.logger, err, "failed to list orders")
		return
	}

	h.logger.Info("all orders listed", "count", len(orders))
	httperr.WriteJSON(w, h.logger, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDFrom(r)
	if err != nil {
		httperr.Respond(w, h.logger, err, "invalid order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.engine.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		httperr.Respond(w, h.logger, err, "failed to update order status", "id", id)
		return
	}

	httperr.WriteJSON(w, h.logger, http.StatusOK, order)
}

func (h *Handler) HandleHasPurchased(w http.ResponseWriter, r *http.Request) {
	username, err := identity.UsernameFrom(r)
	if err != nil {
		httperr.Respond(w, h.logger, err, "missing identity")
		return
	}

	raw := r.PathValue("productId")
	productID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		httperr.Respond(w, h.logger, fmt.Errorf("%w: invalid product id %q", domain.ErrInvalidArgument, raw), "invalid product id")
		return
	}

	purchased, err := h.engine.HasPurchased(r.Context(), username, productID)
	if err != nil {
		httperr.Respond(w, h.logger, err, "failed to check purchase", "username", username, "product_id", productID)
		return
	}

	httperr.WriteJSON(w, h.logger, http.StatusOK, map[string]bool{"purchased": purchased})
}

func orderIDFrom(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid order id %q", domain.ErrInvalidArgument, raw)
	}
	return id, nil
}
