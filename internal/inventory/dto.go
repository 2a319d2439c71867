package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/harbortrace/stockledger-backend/pkg/enums"
)

// CreateItemInput captures the fields needed to register a product's stock
// record. Quantity seeds the on-hand counter and produces the initial IN
// movement when positive.
type CreateItemInput struct {
	ProductID    uuid.UUID `json:"product_id"`
	SKU          string    `json:"sku"`
	Location     string    `json:"location"`
	Quantity     int       `json:"quantity"`
	MinimumStock int       `json:"minimum_stock"`
	MaximumStock int       `json:"maximum_stock"`
	Actor        string    `json:"actor"`
}

// AdjustStockInput mutates the on-hand counter. Type must be IN, OUT or
// ADJUSTMENT; Quantity is the delta for IN/OUT and the absolute target for
// ADJUSTMENT.
type AdjustStockInput struct {
	ProductID uuid.UUID          `json:"product_id"`
	Type      enums.MovementType `json:"type"`
	Quantity  int                `json:"quantity"`
	Reason    string             `json:"reason"`
	Reference string             `json:"reference"`
	Actor     string             `json:"actor"`
}

// ReserveStockInput places a hold on available units.
type ReserveStockInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Reference string    `json:"reference"`
	Actor     string    `json:"actor"`
}

// ReleaseStockInput returns previously held units to the available pool.
type ReleaseStockInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Reference string    `json:"reference"`
	Actor     string    `json:"actor"`
}

// LowStockAlert describes one item whose available quantity sits at or
// below its minimum-stock threshold.
type LowStockAlert struct {
	InventoryItemID uuid.UUID `json:"inventory_item_id"`
	ProductID       uuid.UUID `json:"product_id"`
	SKU             string    `json:"sku"`
	Location        string    `json:"location"`
	AvailableQty    int       `json:"available_qty"`
	MinimumStock    int       `json:"minimum_stock"`
	Deficit         int       `json:"deficit"`
}

// InventoryReport aggregates warehouse-wide stock totals.
type InventoryReport struct {
	TotalItems     int64           `json:"total_items"`
	TotalOnHand    int64           `json:"total_on_hand"`
	TotalReserved  int64           `json:"total_reserved"`
	TotalAvailable int64           `json:"total_available"`
	LowStockCount  int64           `json:"low_stock_count"`
	OverStockCount int64           `json:"over_stock_count"`
	LowStock       []LowStockAlert `json:"low_stock"`
	GeneratedAt    time.Time       `json:"generated_at"`
}
