package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryRecord holds the stock count for exactly one product.
// Quantity is never negative; Version bumps on every write so concurrent
// writers can be detected.
type InventoryRecord struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_inventory_product"`
	Quantity  int       `gorm:"column:quantity;not null;default:0"`
	Version   int       `gorm:"column:version;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
