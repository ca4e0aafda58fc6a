package models

import (
	"time"

	"github.com/google/uuid"
)

// Order is the committed header. Lines are only ever written in the same
// transaction that writes the header.
type Order struct {
	ID        uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	Lines     []OrderLine `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time   `gorm:"column:created_at;autoCreateTime"`
}
