package types

import (
	"github.com/shopspring/decimal"
)

// Notifications live in the KV store, not in Postgres. They are plain
// JSON-tagged structs so the stored value round-trips without loss.

type NotificationType string

const (
	NotificationWaiterCall      NotificationType = "waiter_call"
	NotificationOrderItemsAdded NotificationType = "order_items_added"
	NotificationOrderFinalized  NotificationType = "order_finalized"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationWaiterCall, NotificationOrderItemsAdded, NotificationOrderFinalized:
		return true
	}
	return false
}

// Aggregable reports whether successive notifications of this type for the
// same entity are merged within the aggregation window.
func (t NotificationType) Aggregable() bool {
	return t == NotificationOrderItemsAdded
}

type WaiterCallContent struct {
	TableID string `json:"table_id"`
	Message string `json:"message"`
}

type ItemsAddedContent struct {
	OrderID string `json:"order_id"`
	TableID string `json:"table_id"`
	Message string `json:"message"`
}

type OrderFinalizedContent struct {
	OrderID string          `json:"order_id"`
	TableID string          `json:"table_id"`
	Total   decimal.Decimal `json:"total"`
	Message string          `json:"message"`
}

// ItemFragment is one merged contribution on an aggregated items-added
// notification: the item that was just added, not the whole order.
type ItemFragment struct {
	OrderID     string  `json:"order_id"`
	TableID     string  `json:"table_id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name,omitempty"`
	Quantity    int     `json:"quantity"`
	Note        *string `json:"note,omitempty"`
}

// Notification is a closed tagged variant: Type selects which of the
// content pointers is set. Items and Count are present only for aggregable
// types.
type Notification struct {
	ID             string                 `json:"id"`
	Type           NotificationType       `json:"type"`
	EntityID       string                 `json:"entity_id"`
	WaiterCall     *WaiterCallContent     `json:"waiter_call,omitempty"`
	ItemsAdded     *ItemsAddedContent     `json:"items_added,omitempty"`
	OrderFinalized *OrderFinalizedContent `json:"order_finalized,omitempty"`
	Items          []ItemFragment         `json:"items,omitempty"`
	Count          int                    `json:"count,omitempty"`
	CreatedAt      int64                  `json:"created_at"`
	UpdatedAt      int64                  `json:"updated_at"`
	Read           bool                   `json:"read"`
}

// AggregationMarker is the ephemeral window record keyed by (type, entity).
// Its TTL is the aggregation window; while it lives, new contributions
// merge into the notification it points at.
type AggregationMarker struct {
	NotificationID string `json:"notification_id"`
	LastUpdate     int64  `json:"last_update"`
}
