package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product represents one barcoded listing. Barcode and ClientID are immutable
// after creation.
type Product struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	ClientID  uuid.UUID        `gorm:"column:client_id;type:uuid;not null;index"`
	Barcode   string           `gorm:"column:barcode;not null;uniqueIndex:idx_products_barcode"`
	Name      string           `gorm:"column:name;not null"`
	MRP       decimal.Decimal  `gorm:"column:mrp;type:numeric(12,2);not null"`
	ImageURL  *string          `gorm:"column:image_url"`
	Tags      pq.StringArray   `gorm:"column:tags;type:text[]"`
	Inventory *InventoryRecord `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
