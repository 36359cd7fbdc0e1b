package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
)

func TestOrderEventHandler_Handle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	event := domain.OrderEvent{
		EventID:    "e-1",
		Type:       domain.OrderEventPlaced,
		OrderID:    12,
		Email:      "alice@example.com",
		Status:     domain.OrderStatusPending,
		TotalPrice: decimal.RequireFromString("90.00"),
		Message:    "Order #12 placed successfully! Total: $90.00",
	}

	t.Run("sends one email per event", func(t *testing.T) {
		var got []emailMessage
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/send" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var msg emailMessage
			if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
				t.Errorf("decode: %v", err)
			}
			got = append(got, msg)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		h := NewOrderEventHandler(server.URL, server.Client(), nil, logger)
		payload, _ := json.Marshal(event)

		if err := h.Handle(context.Background(), payload); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(got) != 1 {
			t.Fatalf("expected 1 email, got %d", len(got))
		}
		if got[0].To != "alice@example.com" || got[0].Subject != "Order Confirmation: #12" || got[0].Body != event.Message {
			t.Errorf("unexpected email %+v", got[0])
		}
	})

	t.Run("email failure is returned for redelivery", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		h := NewOrderEventHandler(server.URL, server.Client(), nil, logger)
		payload, _ := json.Marshal(event)

		err := h.Handle(context.Background(), payload)
		if err == nil {
			t.Fatal("expected error")
		}
		if messaging.IsPermanent(err) {
			t.Errorf("gateway failure should be retried, got permanent error %v", err)
		}
	})

	t.Run("rejected email is not retried", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		h := NewOrderEventHandler(server.URL, server.Client(), nil, logger)
		payload, _ := json.Marshal(event)

		if err := h.Handle(context.Background(), payload); !messaging.IsPermanent(err) {
			t.Fatalf("expected permanent error, got %v", err)
		}
	})

	t.Run("rejects malformed payload", func(t *testing.T) {
		h := NewOrderEventHandler("http://unused", http.DefaultClient, nil, logger)
		if err := h.Handle(context.Background(), []byte("{")); !messaging.IsPermanent(err) {
			t.Fatalf("expected permanent error, got %v", err)
		}
	})
}

func TestCompose(t *testing.T) {
	cases := map[domain.OrderEventType]string{
		domain.OrderEventPlaced:        "Order Confirmation: #5",
		domain.OrderEventCancelled:     "Order Cancelled: #5",
		domain.OrderEventStatusChanged: "Order #5 is now SHIPPED",
	}
	for eventType, want := range cases {
		msg := compose(domain.OrderEvent{Type: eventType, OrderID: 5, Status: domain.OrderStatusShipped, Email: "a@b.c"})
		if msg.Subject != want {
			t.Errorf("%s: expected %q, got %q", eventType, want, msg.Subject)
		}
	}
}
