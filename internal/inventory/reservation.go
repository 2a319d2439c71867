package inventory

import (
	"context"

	"github.com/google/uuid"

	"github.com/harbortrace/stockledger-backend/pkg/db/models"
	"github.com/harbortrace/stockledger-backend/pkg/enums"
	apperrors "github.com/harbortrace/stockledger-backend/pkg/errors"
	"github.com/harbortrace/stockledger-backend/pkg/outbox/payloads"
)

// Reserve places a hold on available units. The hold does not change the
// on-hand counter; it moves units from available to reserved. Reservations
// never expire on their own; Release is the only way back.
func (s *service) Reserve(ctx context.Context, input ReserveStockInput) (*models.InventoryItem, error) {
	const operation = "reserve"

	if input.ProductID == uuid.Nil {
		return nil, s.fail(operation, apperrors.New(apperrors.CodeValidation, "product id is required"))
	}
	if input.Quantity <= 0 {
		return nil, s.fail(operation, apperrors.New(apperrors.CodeInvalidQuantity, "reservation quantity must be positive").
			WithDetails(map[string]any{"quantity": input.Quantity}))
	}

	return s.mutate(ctx, operation, input.ProductID, func(item *models.InventoryItem) (*counterChange, error) {
		available := item.AvailableQty()
		if available < input.Quantity {
			return nil, apperrors.New(apperrors.CodeInsufficientStock, "not enough available stock to reserve").
				WithDetails(map[string]any{"available": available, "requested": input.Quantity})
		}
		return &counterChange{
			movementType: enums.MovementTypeReserved,
			movementQty:  input.Quantity,
			counter:      payloads.CounterReserved,
			previousQty:  item.ReservedQty,
			newQty:       item.ReservedQty + input.Quantity,
			quantity:     item.Quantity,
			reservedQty:  item.ReservedQty + input.Quantity,
			reference:    input.Reference,
			actor:        input.Actor,
		}, nil
	})
}

// Release returns held units to the available pool. Releasing more than is
// currently reserved is rejected, which also covers releasing the same
// reference twice.
func (s *service) Release(ctx context.Context, input ReleaseStockInput) (*models.InventoryItem, error) {
	const operation = "release"

	if input.ProductID == uuid.Nil {
		return nil, s.fail(operation, apperrors.New(apperrors.CodeValidation, "product id is required"))
	}
	if input.Quantity <= 0 {
		return nil, s.fail(operation, apperrors.New(apperrors.CodeInvalidQuantity, "release quantity must be positive").
			WithDetails(map[string]any{"quantity": input.Quantity}))
	}

	return s.mutate(ctx, operation, input.ProductID, func(item *models.InventoryItem) (*counterChange, error) {
		if input.Quantity > item.ReservedQty {
			return nil, apperrors.New(apperrors.CodeInvalidQuantity, "release exceeds reserved quantity").
				WithDetails(map[string]any{"reserved": item.ReservedQty, "requested": input.Quantity})
		}
		return &counterChange{
			movementType: enums.MovementTypeReleased,
			movementQty:  input.Quantity,
			counter:      payloads.CounterReserved,
			previousQty:  item.ReservedQty,
			newQty:       item.ReservedQty - input.Quantity,
			quantity:     item.Quantity,
			reservedQty:  item.ReservedQty - input.Quantity,
			reference:    input.Reference,
			actor:        input.Actor,
		}, nil
	})
}

// CheckAvailability reports whether the requested quantity could be reserved
// right now, along with the current available count. The answer is advisory:
// Reserve re-checks under the version lock.
func (s *service) CheckAvailability(ctx context.Context, productID uuid.UUID, quantity int) (bool, int, error) {
	if productID == uuid.Nil {
		return false, 0, apperrors.New(apperrors.CodeValidation, "product id is required")
	}
	if quantity <= 0 {
		return false, 0, apperrors.New(apperrors.CodeInvalidQuantity, "quantity must be positive").
			WithDetails(map[string]any{"quantity": quantity})
	}

	item, err := s.GetByProductID(ctx, productID)
	if err != nil {
		return false, 0, err
	}
	available := item.AvailableQty()
	return available >= quantity, available, nil
}
