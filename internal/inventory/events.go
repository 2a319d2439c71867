package inventory

import (
	"time"

	"github.com/harbortrace/stockledger-backend/pkg/db/models"
	"github.com/harbortrace/stockledger-backend/pkg/enums"
	"github.com/harbortrace/stockledger-backend/pkg/outbox"
	"github.com/harbortrace/stockledger-backend/pkg/outbox/payloads"
)

const eventSchemaVersion = 1

func stockChangedEvent(item *models.InventoryItem, change *counterChange, occurredAt time.Time) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventStockChanged,
		AggregateType: enums.AggregateInventoryItem,
		AggregateID:   item.ID,
		Actor:         change.actor,
		Version:       eventSchemaVersion,
		OccurredAt:    occurredAt,
		Data: payloads.StockChangedEvent{
			ProductID:    item.ProductID,
			SKU:          item.SKU,
			MovementType: change.movementType,
			Counter:      change.counter,
			PreviousQty:  change.previousQty,
			NewQty:       change.newQty,
			AvailableQty: item.AvailableQty(),
			Reference:    change.reference,
			OccurredAt:   occurredAt,
		},
	}
}

func lowStockEvent(item *models.InventoryItem, actor string, occurredAt time.Time) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventStockLow,
		AggregateType: enums.AggregateInventoryItem,
		AggregateID:   item.ID,
		Actor:         actor,
		Version:       eventSchemaVersion,
		OccurredAt:    occurredAt,
		Data: payloads.LowStockEvent{
			ProductID:    item.ProductID,
			SKU:          item.SKU,
			AvailableQty: item.AvailableQty(),
			MinimumStock: item.MinimumStock,
			OccurredAt:   occurredAt,
		},
	}
}
