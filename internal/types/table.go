package types

import (
	"time"
)

// Table is a physical table in the dining room. IDs are short human-assigned
// codes ("M01") rather than uuids so they can be printed on QR cards.
type Table struct {
	ID        string    `gorm:"type:varchar(10);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Table) TableName() string {
	return "dining_table"
}
