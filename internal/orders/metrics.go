package orders

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("storefront/orders")

type engineMetrics struct {
	checkoutCompleted metric.Int64Counter
	checkoutFailed    metric.Int64Counter
	orderCancelled    metric.Int64Counter
	unitsRemoved      metric.Int64Counter
	unitsRestored     metric.Int64Counter
}

// newEngineMetrics registers the engine instruments on the global meter
// provider. Without a configured provider they are no-ops.
func newEngineMetrics() (*engineMetrics, error) {
	m := &engineMetrics{}
	var err error

	if m.checkoutCompleted, err = meter.Int64Counter("checkout.completed",
		metric.WithDescription("Orders placed through checkout")); err != nil {
		return nil, err
	}
	if m.checkoutFailed, err = meter.Int64Counter("checkout.failed",
		metric.WithDescription("Checkouts rejected or aborted, by reason")); err != nil {
		return nil, err
	}
	if m.orderCancelled, err = meter.Int64Counter("order.cancelled",
		metric.WithDescription("Orders cancelled by their owner")); err != nil {
		return nil, err
	}
	if m.unitsRemoved, err = meter.Int64Counter("inventory.units_removed",
		metric.WithDescription("Stock units deducted by checkout")); err != nil {
		return nil, err
	}
	if m.unitsRestored, err = meter.Int64Counter("inventory.units_restored",
		metric.WithDescription("Stock units returned by cancellation")); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *engineMetrics) failed(ctx context.Context, reason string) {
	m.checkoutFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
