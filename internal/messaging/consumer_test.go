package messaging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func testConsumer(maxAttempts int) *Consumer {
	return &Consumer{
		topic:   "orders",
		groupID: "test",
		settings: consumerSettings{
			maxAttempts: maxAttempts,
			backoff:     time.Millisecond,
			logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
	}
}

func TestConsumer_deliver(t *testing.T) {
	msg := kafka.Message{Key: []byte("7"), Value: []byte(`{}`)}

	t.Run("retries until the handler succeeds", func(t *testing.T) {
		calls := 0
		err := testConsumer(3).deliver(context.Background(), msg, func(ctx context.Context, payload []byte) error {
			calls++
			if calls < 3 {
				return errors.New("email service down")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 attempts, got %d", calls)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := testConsumer(2).deliver(context.Background(), msg, func(ctx context.Context, payload []byte) error {
			calls++
			return errors.New("still down")
		})
		if err != nil {
			t.Fatalf("exhausted message should be dropped, got %v", err)
		}
		if calls != 2 {
			t.Errorf("expected 2 attempts, got %d", calls)
		}
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		calls := 0
		err := testConsumer(5).deliver(context.Background(), msg, func(ctx context.Context, payload []byte) error {
			calls++
			return Permanent(errors.New("bad payload"))
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 attempt, got %d", calls)
		}
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		err := testConsumer(5).deliver(ctx, msg, func(ctx context.Context, payload []byte) error {
			cancel()
			return errors.New("interrupted")
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}

	base := errors.New("boom")
	err := Permanent(base)
	if !errors.Is(err, base) {
		t.Error("Permanent should wrap the original error")
	}
	if !IsPermanent(errors.Join(errors.New("context"), err)) {
		t.Error("wrapped permanent error should still be permanent")
	}
	if IsPermanent(base) {
		t.Error("plain error should not be permanent")
	}
}
