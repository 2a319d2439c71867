package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/harbortrace/stockledger-backend/pkg/enums"
)

// StockMovement is one immutable entry in the stock ledger. Rows are only
// ever inserted; PreviousQty/NewQty snapshot the affected counter (on-hand
// for IN/OUT/ADJUSTMENT, reserved for RESERVED/RELEASED).
type StockMovement struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InventoryItemID uuid.UUID          `gorm:"column:inventory_item_id;type:uuid;not null;index" json:"inventory_item_id"`
	ProductID       uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index" json:"product_id"`
	Type            enums.MovementType `gorm:"column:type;type:movement_type_enum;not null" json:"type"`
	Quantity        int                `gorm:"column:quantity;not null" json:"quantity"`
	PreviousQty     int                `gorm:"column:previous_qty;not null" json:"previous_qty"`
	NewQty          int                `gorm:"column:new_qty;not null" json:"new_qty"`
	Reason          string             `gorm:"column:reason" json:"reason"`
	Reference       string             `gorm:"column:reference;index" json:"reference"`
	Actor           string             `gorm:"column:actor" json:"actor"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
