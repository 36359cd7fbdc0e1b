package messaging

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var consumerTracer = otel.Tracer("messaging/consumer")

// HandlerFunc processes one message payload.
type HandlerFunc func(ctx context.Context, payload []byte) error

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error as not worth retrying. The message is
// logged and committed so it cannot block the partition.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or any error it wraps, was marked Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type consumerSettings struct {
	reader      kafka.ReaderConfig
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
}

type ConsumerOption func(*consumerSettings)

func WithStartOffset(offset int64) ConsumerOption {
	return func(s *consumerSettings) {
		s.reader.StartOffset = offset
	}
}

// WithRetry sets how many times a failing message is handed to the handler
// before it is skipped. Backoff doubles after every failed attempt.
func WithRetry(maxAttempts int, backoff time.Duration) ConsumerOption {
	return func(s *consumerSettings) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		s.backoff = backoff
	}
}

func WithLogger(logger *slog.Logger) ConsumerOption {
	return func(s *consumerSettings) {
		s.logger = logger
	}
}

type Consumer struct {
	reader   *kafka.Reader
	topic    string
	groupID  string
	settings consumerSettings
}

func NewConsumer(brokers []string, topic, groupID string, opts ...ConsumerOption) *Consumer {
	s := consumerSettings{
		reader: kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		},
		maxAttempts: 5,
		backoff:     500 * time.Millisecond,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(&s)
	}

	return &Consumer{
		reader:   kafka.NewReader(s.reader),
		topic:    topic,
		groupID:  groupID,
		settings: s,
	}
}

// Consume blocks until ctx is cancelled or the reader fails. Offsets are
// committed only after the handler succeeds or the message is given up on,
// so delivery is at-least-once.
func (c *Consumer) Consume(ctx context.Context, handler HandlerFunc) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if err := c.deliver(ctx, msg, handler); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

// deliver returns an error only when ctx is done; handler failures are
// retried and then dropped.
func (c *Consumer) deliver(ctx context.Context, msg kafka.Message, handler HandlerFunc) error {
	wait := c.settings.backoff
	for attempt := 1; ; attempt++ {
		err := c.processMessage(ctx, msg, attempt, handler)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger := c.settings.logger.With(
			"error", err,
			"topic", c.topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"attempt", attempt,
		)
		if IsPermanent(err) || attempt >= c.settings.maxAttempts {
			logger.Error("dropping message")
			return nil
		}
		logger.Warn("message handler failed, retrying", "backoff", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, attempt int, handler HandlerFunc) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, NewMessageCarrier(&msg))

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
			attribute.Int("messaging.delivery.attempt", attempt),
		),
	)
	defer span.End()

	if eventType := NewMessageCarrier(&msg).Get(HeaderEventType); eventType != "" {
		span.SetAttributes(attribute.String("messaging.event.type", eventType))
	}

	if err := handler(spanCtx, msg.Value); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
