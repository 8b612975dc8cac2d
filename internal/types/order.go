package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusOpen          OrderStatus = "OPEN"
	StatusInPreparation OrderStatus = "IN_PREPARATION"
	StatusReady         OrderStatus = "READY"
	StatusDelivered     OrderStatus = "DELIVERED"
	StatusCanceled      OrderStatus = "CANCELED"
	StatusFinalized     OrderStatus = "FINALIZED"
)

// statusRank orders the forward lifecycle. CANCELED and FINALIZED sit
// outside the rank and are handled explicitly in CanTransitionTo.
var statusRank = map[OrderStatus]int{
	StatusOpen:          0,
	StatusInPreparation: 1,
	StatusReady:         2,
	StatusDelivered:     3,
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInPreparation, StatusReady, StatusDelivered, StatusCanceled, StatusFinalized:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == StatusCanceled || s == StatusFinalized
}

// CanTransitionTo reports whether the lifecycle allows moving from s to
// next: forward moves only along OPEN -> IN_PREPARATION -> READY ->
// DELIVERED, CANCELED from any non-terminal status, and FINALIZED from
// anywhere. Writing the current status back is a no-op and always allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.Valid() {
		return false
	}
	if next == s {
		return true
	}
	if next == StatusFinalized {
		return true
	}
	if s.Terminal() {
		return false
	}
	if next == StatusCanceled {
		return true
	}
	from, okFrom := statusRank[s]
	to, okTo := statusRank[next]
	return okFrom && okTo && to > from
}

type Order struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TableID     *string         `gorm:"type:varchar(10);index" json:"table_id,omitempty"`
	Table       *Table          `gorm:"foreignKey:TableID;references:ID" json:"-"`
	Status      OrderStatus     `gorm:"type:varchar(20);not null" json:"status"`
	Total       decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total"`
	GeneralNote *string         `gorm:"type:text" json:"general_note,omitempty"`
	Manual      bool            `gorm:"not null;default:false" json:"manual"`
	Items       []*OrderItem    `gorm:"constraint:OnDelete:CASCADE;foreignKey:OrderID;references:ID" json:"items"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

func (Order) TableName() string {
	return "order"
}

// ItemsMutable reports whether line items may still be added, edited or
// removed. Everything past IN_PREPARATION freezes the item set.
func (o *Order) ItemsMutable() bool {
	return o.Status == StatusOpen || o.Status == StatusInPreparation
}

// ComputedTotal sums quantity x unit price over the loaded items. Used
// where the stored running total must not be trusted.
func (o *Order) ComputedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}
