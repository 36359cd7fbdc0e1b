// Package httperr translates domain errors into JSON HTTP responses.
package httperr

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
)

func Status(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrBadRequest),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrVoucherExpired),
		errors.Is(err, domain.ErrMinimumSpendNotMet):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes err using its mapped status. Unmapped errors are logged
// under msg and reported as a generic internal error.
func Respond(w http.ResponseWriter, logger *slog.Logger, err error, msg string, args ...any) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg, append([]any{"error", err}, args...)...)
		WriteError(w, logger, status, "internal server error")
		return
	}
	WriteError(w, logger, status, err.Error())
}

func WriteJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	WriteJSON(w, logger, status, map[string]string{"error": message})
}
