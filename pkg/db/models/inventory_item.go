package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem is the authoritative stock snapshot for a single product.
// Quantity counts physical on-hand units; ReservedQty counts units held
// against pending orders. The invariant 0 <= ReservedQty <= Quantity must
// hold at every commit.
type InventoryItem struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex" json:"product_id"`
	SKU          string    `gorm:"column:sku;not null;uniqueIndex" json:"sku"`
	Location     string    `gorm:"column:location" json:"location"`
	Quantity     int       `gorm:"column:quantity;not null;default:0" json:"quantity"`
	ReservedQty  int       `gorm:"column:reserved_qty;not null;default:0" json:"reserved_qty"`
	MinimumStock int       `gorm:"column:minimum_stock;not null;default:0" json:"minimum_stock"`
	MaximumStock int       `gorm:"column:maximum_stock;not null;default:0" json:"maximum_stock"`
	// Version backs the optimistic compare-and-swap on every write.
	Version   int64     `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// AvailableQty is the sellable quantity: on-hand minus reserved.
func (i InventoryItem) AvailableQty() int {
	return i.Quantity - i.ReservedQty
}

// BelowMinimum reports whether the sellable quantity sits at or under the
// configured low-stock threshold.
func (i InventoryItem) BelowMinimum() bool {
	return i.AvailableQty() <= i.MinimumStock
}
