package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	OrderEventPlaced        OrderEventType = "order.placed"
	OrderEventStatusChanged OrderEventType = "order.status_changed"
	OrderEventCancelled     OrderEventType = "order.cancelled"
)

// OrderEvent is published after an order lifecycle transaction commits.
type OrderEvent struct {
	EventID    string          `json:"event_id"`
	Type       OrderEventType  `json:"type"`
	OrderID    int64           `json:"order_id"`
	UserID     int64           `json:"user_id"`
	Username   string          `json:"username"`
	Email      string          `json:"email"`
	Status     OrderStatus     `json:"status"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Message    string          `json:"message"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (e OrderEvent) RoutingKey() string {
	return string(e.Type)
}
