// Package email is a stand-in mail relay. It validates and logs messages
// instead of delivering them.
package email

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/httperr"
)

const (
	maxRequestBytes = 64 << 10
	maxSubjectLen   = 200
)

type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Validate checks the fields a real relay would reject.
func (m Message) Validate() string {
	if _, err := mail.ParseAddress(m.To); err != nil {
		return "invalid recipient address"
	}
	subject := strings.TrimSpace(m.Subject)
	if subject == "" {
		return "subject is required"
	}
	if len(subject) > maxSubjectLen || strings.ContainsAny(subject, "\r\n") {
		return "invalid subject"
	}
	return ""
}

type sendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		httperr.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if problem := msg.Validate(); problem != "" {
		httperr.WriteError(w, h.logger, http.StatusBadRequest, problem)
		return
	}

	id := uuid.NewString()
	h.logger.Info("email accepted", "id", id, "to", msg.To, "subject", msg.Subject, "body_length", len(msg.Body))

	httperr.WriteJSON(w, h.logger, http.StatusOK, sendResponse{ID: id, Status: "sent"})
}
