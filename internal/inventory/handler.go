package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httperr"
)

type Handler struct {
	ledger *Ledger
	tx     *database.TxRunner
	logger *slog.Logger
}

func NewHandler(ledger *Ledger, tx *database.TxRunner, logger *slog.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		tx:     tx,
		logger: logger,
	}
}

func (h *Handler) HandleListStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.ledger.ListAll(r.Context(), h.tx.DB())
	if err != nil {
		httperr.Respond(w, h.logger, err, "failed to list stock")
		return
	}

	h.logger.Info("stock listed", "count", len(items))
	httperr.WriteJSON(w, h.logger, http.StatusOK, items)
}

func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	productID, err := productIDFrom(r)
	if err != nil {
		httperr.Respond(w, h.logger, err, "invalid product id")
		return
	}

	stock, err := h.ledger.GetStock(r.Context(), h.tx.DB(), productID)
	if err != nil {
		httperr.Respond(w, h.logger, err, "failed to get stock", "product_id", productID)
		return
	}

	h.logger.Info("stock retrieved", "product_id", productID)
	httperr.WriteJSON(w, h.logger, http.StatusOK, stock)
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleSetStock(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "stock set", h.ledger.SetStock)
}

func (h *Handler) HandleAddStock(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "stock added", h.ledger.AddStock)
}

type mutation func(ctx context.Context, q database.Querier, productID int64, quantity int) (domain.Inventory, error)

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, event string, op mutation) {
	productID, err := productIDFrom(r)
	if err != nil {
		httperr.Respond(w, h.logger, err, "invalid product id")
		return
	}

	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	var stock domain.Inventory
	err = h.tx.WithTx(r.Context(), func(q database.Querier) error {
		var err error
		stock, err = op(r.Context(), q, productID, req.Quantity)
		return err
	})
	if err != nil {
		httperr.Respond(w, h.logger, err, "failed to update stock", "product_id", productID, "quantity", req.Quantity)
		return
	}

	h.logger.Info(event, "product_id", productID, "quantity", req.Quantity, "stock_quantity", stock.StockQuantity)
	httperr.WriteJSON(w, h.logger, http.StatusOK, stock)
}

func productIDFrom(r *http.Request) (int64, error) {
	raw := r.PathValue("productId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid product id %q", domain.ErrInvalidArgument, raw)
	}
	return id, nil
}
