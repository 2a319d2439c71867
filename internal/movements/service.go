package movements

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harbortrace/stockledger-backend/pkg/db/models"
	"github.com/harbortrace/stockledger-backend/pkg/enums"
	apperrors "github.com/harbortrace/stockledger-backend/pkg/errors"
	"github.com/harbortrace/stockledger-backend/pkg/pagination"
)

// Service records and reads the movement ledger. Append runs inside the
// caller's transaction so the ledger entry commits atomically with the
// stock mutation it describes.
type Service interface {
	Append(ctx context.Context, tx *gorm.DB, input AppendMovementInput) (*models.StockMovement, error)
	ListByItemID(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]models.StockMovement, error)
	ListByProductID(ctx context.Context, productID uuid.UUID, limit, offset int) ([]models.StockMovement, error)
	CountByItemID(ctx context.Context, itemID uuid.UUID) (int64, error)
}

type service struct {
	repo Repository
	// defaultLimit is the configured page size used when the caller does
	// not supply one; zero falls back to pagination.DefaultLimit.
	defaultLimit int
}

// AppendMovementInput captures the immutable data a ledger entry requires.
type AppendMovementInput struct {
	InventoryItemID uuid.UUID          `json:"inventory_item_id"`
	ProductID       uuid.UUID          `json:"product_id"`
	Type            enums.MovementType `json:"type"`
	Quantity        int                `json:"quantity"`
	PreviousQty     int                `json:"previous_qty"`
	NewQty          int                `json:"new_qty"`
	Reason          string             `json:"reason"`
	Reference       string             `json:"reference"`
	Actor           string             `json:"actor"`
}

// NewService wires a movement service with the provided repository and the
// configured default page size for ledger listings.
func NewService(repo Repository, defaultLimit int) (Service, error) {
	if repo == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "movement repository required")
	}
	return &service{repo: repo, defaultLimit: defaultLimit}, nil
}

func (s *service) Append(ctx context.Context, tx *gorm.DB, input AppendMovementInput) (*models.StockMovement, error) {
	if input.InventoryItemID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "inventory item id is required")
	}
	if input.ProductID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "product id is required")
	}
	if !input.Type.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, "invalid movement type").
			WithDetails(map[string]any{"type": string(input.Type)})
	}
	if input.Quantity <= 0 {
		return nil, apperrors.New(apperrors.CodeInvalidQuantity, "movement quantity must be positive").
			WithDetails(map[string]any{"quantity": input.Quantity})
	}

	movement := &models.StockMovement{
		ID:              uuid.New(),
		InventoryItemID: input.InventoryItemID,
		ProductID:       input.ProductID,
		Type:            input.Type,
		Quantity:        input.Quantity,
		PreviousQty:     input.PreviousQty,
		NewQty:          input.NewQty,
		Reason:          input.Reason,
		Reference:       input.Reference,
		Actor:           input.Actor,
	}

	if err := s.repo.WithTx(tx).Create(ctx, movement); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "appending stock movement")
	}
	return movement, nil
}

func (s *service) ListByItemID(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]models.StockMovement, error) {
	if itemID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "inventory item id is required")
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.repo.ListByItemID(ctx, itemID, pagination.NormalizeLimitWithDefault(limit, s.defaultLimit), offset)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing stock movements")
	}
	return rows, nil
}

func (s *service) ListByProductID(ctx context.Context, productID uuid.UUID, limit, offset int) ([]models.StockMovement, error) {
	if productID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "product id is required")
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.repo.ListByProductID(ctx, productID, pagination.NormalizeLimitWithDefault(limit, s.defaultLimit), offset)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing stock movements")
	}
	return rows, nil
}

func (s *service) CountByItemID(ctx context.Context, itemID uuid.UUID) (int64, error) {
	if itemID == uuid.Nil {
		return 0, apperrors.New(apperrors.CodeValidation, "inventory item id is required")
	}
	count, err := s.repo.CountByItemID(ctx, itemID)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, err, "counting stock movements")
	}
	return count, nil
}
