package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/harbortrace/stockledger-backend/pkg/enums"
)

// StockChangedEvent is published after every committed stock mutation. The
// counter field names which quantity the old/new values describe: "on_hand"
// for IN/OUT/ADJUSTMENT movements, "reserved" for RESERVED/RELEASED.
type StockChangedEvent struct {
	ProductID    uuid.UUID          `json:"product_id"`
	SKU          string             `json:"sku"`
	MovementType enums.MovementType `json:"movement_type"`
	Counter      string             `json:"counter"`
	PreviousQty  int                `json:"previous_qty"`
	NewQty       int                `json:"new_qty"`
	AvailableQty int                `json:"available_qty"`
	Reference    string             `json:"reference,omitempty"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

// LowStockEvent fires once when available quantity crosses from above the
// minimum-stock threshold to at-or-below it. It is never re-emitted while
// the item stays depressed.
type LowStockEvent struct {
	ProductID    uuid.UUID `json:"product_id"`
	SKU          string    `json:"sku"`
	AvailableQty int       `json:"available_qty"`
	MinimumStock int       `json:"minimum_stock"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Counter labels used by StockChangedEvent.
const (
	CounterOnHand   = "on_hand"
	CounterReserved = "reserved"
)
