package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string          `gorm:"type:varchar(100);not null" json:"name"`
	Description *string         `gorm:"type:text" json:"description,omitempty"`
	Price       decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	Available   bool            `gorm:"not null;default:true" json:"available"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

func (Product) TableName() string {
	return "product"
}
