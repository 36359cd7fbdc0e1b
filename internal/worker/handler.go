// Package worker turns committed order lifecycle events into customer email.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
)

// OrderEventHandler mails the order owner for every lifecycle event. Events
// are delivered at least once; when a redis client is configured, already
// handled event ids are skipped.
type OrderEventHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	seen            *redis.Client
	seenTTL         time.Duration
	logger          *slog.Logger
}

func NewOrderEventHandler(emailServiceURL string, client *http.Client, seen *redis.Client, logger *slog.Logger) *OrderEventHandler {
	return &OrderEventHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		seen:            seen,
		seenTTL:         24 * time.Hour,
		logger:          logger,
	}
}

func (h *OrderEventHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return messaging.Permanent(fmt.Errorf("unmarshal order event: %w", err))
	}

	h.logger.Info("processing order event", "event_id", event.EventID, "type", event.Type, "order_id", event.OrderID)

	if event.Email == "" {
		h.logger.Warn("order event without recipient, skipping", "event_id", event.EventID, "order_id", event.OrderID)
		return nil
	}

	first, err := h.claim(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("claim event %s: %w", event.EventID, err)
	}
	if !first {
		h.logger.Info("duplicate order event, skipping", "event_id", event.EventID)
		return nil
	}

	if err := h.sendEmail(ctx, compose(event)); err != nil {
		h.release(ctx, event.EventID)
		h.logger.Error("failed to send order email", "error", err, "order_id", event.OrderID, "type", event.Type)
		return fmt.Errorf("send order email: %w", err)
	}

	h.logger.Info("order email sent", "order_id", event.OrderID, "type", event.Type)
	return nil
}

type emailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func compose(event domain.OrderEvent) emailMessage {
	msg := emailMessage{To: event.Email, Body: event.Message}

	switch event.Type {
	case domain.OrderEventPlaced:
		msg.Subject = fmt.Sprintf("Order Confirmation: #%d", event.OrderID)
	case domain.OrderEventCancelled:
		msg.Subject = fmt.Sprintf("Order Cancelled: #%d", event.OrderID)
	default:
		msg.Subject = fmt.Sprintf("Order #%d is now %s", event.OrderID, event.Status)
	}

	return msg
}

func (h *OrderEventHandler) claim(ctx context.Context, eventID string) (bool, error) {
	if h.seen == nil || eventID == "" {
		return true, nil
	}
	return h.seen.SetNX(ctx, "order-event:"+eventID, 1, h.seenTTL).Result()
}

// release forgets a claimed event so the redelivery is not skipped.
func (h *OrderEventHandler) release(ctx context.Context, eventID string) {
	if h.seen == nil || eventID == "" {
		return
	}
	if err := h.seen.Del(ctx, "order-event:"+eventID).Err(); err != nil {
		h.logger.Warn("failed to release event claim", "error", err, "event_id", eventID)
	}
}

func (h *OrderEventHandler) sendEmail(ctx context.Context, msg emailMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return messaging.Permanent(fmt.Errorf("email service rejected message: status %d", resp.StatusCode))
	default:
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}
}
