package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem is one (product, note) line on an order. UnitPrice is captured
// from the product when the line is created and never changes afterwards,
// even if the product is repriced.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;index;not null" json:"order_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;index;not null" json:"product_id"`
	Product   *Product        `gorm:"foreignKey:ProductID;references:ID" json:"product,omitempty"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"unit_price"`
	Note      *string         `gorm:"type:text" json:"note,omitempty"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_item"
}

func (i *OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// NoteMatches implements line-item identity for merge-on-add: both notes
// absent counts as equal, a present note must match exactly.
func (i *OrderItem) NoteMatches(note *string) bool {
	if i.Note == nil && note == nil {
		return true
	}
	if i.Note == nil || note == nil {
		return false
	}
	return *i.Note == *note
}
