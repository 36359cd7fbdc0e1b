package gateway

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joao-fontenele/storefront/internal/httperr"
	"github.com/joao-fontenele/storefront/internal/identity"
)

// Handler is the public edge of the storefront. Routes under /api are
// forwarded to the store with the prefix stripped; admin routes additionally
// require the configured bearer token.
type Handler struct {
	storeProxy *ServiceProxy
	adminToken string
	logger     *slog.Logger
}

func NewHandler(storeProxy *ServiceProxy, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{
		storeProxy: storeProxy,
		adminToken: adminToken,
		logger:     logger,
	}
}

func (h *Handler) HandleStore(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, strings.TrimPrefix(r.URL.Path, "/api"))
}

func (h *Handler) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		httperr.WriteError(w, h.logger, http.StatusForbidden, "admin access required")
		return
	}
	h.proxyRequest(w, r, strings.TrimPrefix(r.URL.Path, "/api"))
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.adminToken == "" {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

// returnedHeaders are the only store response headers passed back.
var returnedHeaders = []string{"Content-Type", "Location", "Retry-After"}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, path string) {
	start := time.Now()

	resp, err := h.storeProxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("store unreachable", "error", err, "method", r.Method, "path", path)
		httperr.WriteError(w, h.logger, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for _, name := range returnedHeaders {
		if value := resp.Header.Get(name); value != "" {
			w.Header().Set(name, value)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err, "path", path)
	}

	h.logger.Info("request proxied",
		"method", r.Method,
		"path", path,
		"user", r.Header.Get(identity.Header),
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
