package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/harbortrace/stockledger-backend/internal/movements"
	"github.com/harbortrace/stockledger-backend/pkg/config"
	"github.com/harbortrace/stockledger-backend/pkg/db"
	"github.com/harbortrace/stockledger-backend/pkg/db/models"
	"github.com/harbortrace/stockledger-backend/pkg/enums"
	apperrors "github.com/harbortrace/stockledger-backend/pkg/errors"
	"github.com/harbortrace/stockledger-backend/pkg/logger"
	"github.com/harbortrace/stockledger-backend/pkg/metrics"
	"github.com/harbortrace/stockledger-backend/pkg/outbox"
	"github.com/harbortrace/stockledger-backend/pkg/outbox/payloads"
)

// Service is the stock engine: snapshot reads, on-hand adjustments,
// reservation holds and warehouse reporting. Every write commits the
// counter update, the ledger entry and the outbox event in one transaction.
type Service interface {
	CreateItem(ctx context.Context, input CreateItemInput) (*models.InventoryItem, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	GetByProductID(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error)
	GetBySKU(ctx context.Context, sku string) (*models.InventoryItem, error)
	AdjustStock(ctx context.Context, input AdjustStockInput) (*models.InventoryItem, error)
	Reserve(ctx context.Context, input ReserveStockInput) (*models.InventoryItem, error)
	Release(ctx context.Context, input ReleaseStockInput) (*models.InventoryItem, error)
	CheckAvailability(ctx context.Context, productID uuid.UUID, quantity int) (bool, int, error)
	GetLowStockAlerts(ctx context.Context, limit int) ([]LowStockAlert, error)
	GetInventoryReport(ctx context.Context) (*InventoryReport, error)
}

type service struct {
	db        *gorm.DB
	repo      Repository
	movements movements.Service
	outbox    *outbox.Service
	cache     Cache
	cfg       config.InventoryConfig
	logg      *logger.Logger
	metrics   *metrics.StockMetrics
}

// NewService wires the stock engine. The cache may be nil; reads then always
// hit the store.
func NewService(
	gdb *gorm.DB,
	repo Repository,
	movementSvc movements.Service,
	outboxSvc *outbox.Service,
	cache Cache,
	cfg config.InventoryConfig,
	logg *logger.Logger,
	stockMetrics *metrics.StockMetrics,
) (Service, error) {
	if gdb == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "database handle required")
	}
	if repo == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "inventory repository required")
	}
	if movementSvc == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "movement service required")
	}
	if outboxSvc == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "outbox service required")
	}
	if cache == nil {
		cache = NewNoopCache()
	}
	if cfg.WriteRetryAttempts <= 0 {
		cfg.WriteRetryAttempts = 3
	}
	if cfg.WriteRetryBackoff <= 0 {
		cfg.WriteRetryBackoff = 25 * time.Millisecond
	}
	return &service{
		db:        gdb,
		repo:      repo,
		movements: movementSvc,
		outbox:    outboxSvc,
		cache:     cache,
		cfg:       cfg,
		logg:      logg,
		metrics:   stockMetrics,
	}, nil
}

func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*models.InventoryItem, error) {
	const operation = "create_item"
	start := time.Now()

	if input.ProductID == uuid.Nil {
		return nil, s.fail(operation, apperrors.New(apperrors.CodeValidation, "product id is required"))
	}
	if input.SKU == "" {
		return nil, s.fail(operation, apperrors.New(apperrors.CodeValidation, "sku is required"))
	}
	if input.Quantity < 0 {
		return nil, s.fail(operation, apperrors.New(apperrors.CodeInvalidQuantity, "initial quantity cannot be negative").
			WithDetails(map[string]any{"quantity": input.Quantity}))
	}
	if input.MinimumStock < 0 || input.MaximumStock < 0 {
		return nil, s.fail(operation, apperrors.New(apperrors.CodeValidation, "stock thresholds cannot be negative"))
	}
	if input.MaximumStock > 0 && input.MaximumStock < input.MinimumStock {
		return nil, s.fail(operation, apperrors.New(apperrors.CodeValidation, "maximum stock cannot be below minimum stock"))
	}

	item := &models.InventoryItem{
		ID:           uuid.New(),
		ProductID:    input.ProductID,
		SKU:          input.SKU,
		Location:     input.Location,
		Quantity:     input.Quantity,
		ReservedQty:  0,
		MinimumStock: input.MinimumStock,
		MaximumStock: input.MaximumStock,
		Version:      1,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, item); err != nil {
			if db.IsUniqueViolation(err, "") {
				return apperrors.New(apperrors.CodeAlreadyExists, "inventory item already exists for product or sku").
					WithDetails(map[string]any{"product_id": input.ProductID.String(), "sku": input.SKU})
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "creating inventory item")
		}

		occurredAt := time.Now().UTC()
		if input.Quantity > 0 {
			if _, err := s.movements.Append(ctx, tx, movements.AppendMovementInput{
				InventoryItemID: item.ID,
				ProductID:       item.ProductID,
				Type:            enums.MovementTypeIn,
				Quantity:        input.Quantity,
				PreviousQty:     0,
				NewQty:          input.Quantity,
				Reason:          "initial stock",
				Actor:           input.Actor,
			}); err != nil {
				return err
			}
			change := &counterChange{
				movementType: enums.MovementTypeIn,
				counter:      payloads.CounterOnHand,
				previousQty:  0,
				newQty:       input.Quantity,
				actor:        input.Actor,
			}
			if err := s.outbox.Emit(ctx, tx, stockChangedEvent(item, change, occurredAt)); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "queueing stock event")
			}
		}
		if item.BelowMinimum() {
			if err := s.outbox.Emit(ctx, tx, lowStockEvent(item, input.Actor, occurredAt)); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "queueing low stock event")
			}
			s.metrics.IncLowStockEvent()
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(operation, err)
	}

	s.cache.InvalidateItem(ctx, item)
	s.succeed(ctx, operation, start, item)
	return item, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	if id == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "inventory item id is required")
	}
	return s.getCached(ctx, DimensionID, id.String(), func() (*models.InventoryItem, error) {
		return s.repo.GetByID(ctx, id)
	})
}

func (s *service) GetByProductID(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error) {
	if productID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "product id is required")
	}
	return s.getCached(ctx, DimensionProduct, productID.String(), func() (*models.InventoryItem, error) {
		return s.repo.GetByProductID(ctx, productID)
	})
}

func (s *service) GetBySKU(ctx context.Context, sku string) (*models.InventoryItem, error) {
	if sku == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "sku is required")
	}
	return s.getCached(ctx, DimensionSKU, sku, func() (*models.InventoryItem, error) {
		return s.repo.GetBySKU(ctx, sku)
	})
}

func (s *service) AdjustStock(ctx context.Context, input AdjustStockInput) (*models.InventoryItem, error) {
	const operation = "adjust_stock"

	if input.ProductID == uuid.Nil {
		return nil, s.fail(operation, apperrors.New(apperrors.CodeValidation, "product id is required"))
	}
	if !input.Type.AffectsOnHand() {
		return nil, s.fail(operation, apperrors.New(apperrors.CodeValidation, "adjustment type must be IN, OUT or ADJUSTMENT").
			WithDetails(map[string]any{"type": string(input.Type)}))
	}
	if input.Type != enums.MovementTypeAdjustment && input.Quantity <= 0 {
		return nil, s.fail(operation, apperrors.New(apperrors.CodeInvalidQuantity, "quantity must be positive").
			WithDetails(map[string]any{"quantity": input.Quantity}))
	}
	if input.Type == enums.MovementTypeAdjustment && input.Quantity < 0 {
		return nil, s.fail(operation, apperrors.New(apperrors.CodeInvalidQuantity, "adjustment target cannot be negative").
			WithDetails(map[string]any{"quantity": input.Quantity}))
	}

	return s.mutate(ctx, operation, input.ProductID, func(item *models.InventoryItem) (*counterChange, error) {
		previous := item.Quantity
		var target int
		switch input.Type {
		case enums.MovementTypeIn:
			target = previous + input.Quantity
		case enums.MovementTypeOut:
			target = previous - input.Quantity
			if target < 0 {
				return nil, apperrors.New(apperrors.CodeInvalidQuantity, "cannot remove more units than on hand").
					WithDetails(map[string]any{"on_hand": previous, "requested": input.Quantity})
			}
		default:
			target = input.Quantity
		}
		if target < item.ReservedQty {
			return nil, apperrors.New(apperrors.CodeInvalidQuantity, "on-hand quantity cannot drop below reserved units").
				WithDetails(map[string]any{"reserved": item.ReservedQty, "target": target})
		}
		if target == previous {
			return &counterChange{noop: true}, nil
		}
		magnitude := target - previous
		if magnitude < 0 {
			magnitude = -magnitude
		}
		return &counterChange{
			movementType: input.Type,
			movementQty:  magnitude,
			counter:      payloads.CounterOnHand,
			previousQty:  previous,
			newQty:       target,
			quantity:     target,
			reservedQty:  item.ReservedQty,
			reason:       input.Reason,
			reference:    input.Reference,
			actor:        input.Actor,
		}, nil
	})
}

// counterChange describes one planned counter mutation: which counter moves,
// both snapshot values for the ledger, and the resulting item counters.
type counterChange struct {
	movementType enums.MovementType
	movementQty  int
	counter      string
	previousQty  int
	newQty       int
	quantity     int
	reservedQty  int
	reason       string
	reference    string
	actor        string
	noop         bool
}

// mutate runs one write operation under the optimistic-lock protocol: read
// the snapshot, plan the change, apply counters guarded by the version
// column, append the ledger entry and queue events, all in one transaction.
// A lost version race retries from a fresh read up to the configured bound.
func (s *service) mutate(ctx context.Context, operation string, productID uuid.UUID, plan func(item *models.InventoryItem) (*counterChange, error)) (*models.InventoryItem, error) {
	start := time.Now()

	var updated *models.InventoryItem
	backoff := retry.WithMaxRetries(
		uint64(s.cfg.WriteRetryAttempts-1),
		retry.WithJitter(s.cfg.WriteRetryBackoff/2, retry.NewConstant(s.cfg.WriteRetryBackoff)),
	)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		txErr := s.runMutation(ctx, productID, plan, &updated)
		if txErr == nil {
			return nil
		}
		if typed := apperrors.As(txErr); typed != nil && typed.Code() == apperrors.CodeConcurrencyConflict {
			s.metrics.IncVersionRetry()
			return retry.RetryableError(txErr)
		}
		return txErr
	})
	if err != nil {
		return nil, s.fail(operation, err)
	}

	s.cache.InvalidateItem(ctx, updated)
	s.succeed(ctx, operation, start, updated)
	return updated, nil
}

func (s *service) runMutation(ctx context.Context, productID uuid.UUID, plan func(item *models.InventoryItem) (*counterChange, error), updated **models.InventoryItem) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := repo.GetByProductID(ctx, productID)
		if err != nil {
			return mapReadError(err)
		}

		change, err := plan(item)
		if err != nil {
			return err
		}
		if change.noop {
			*updated = item
			return nil
		}

		applied, err := repo.ApplyCounters(ctx, item.ID, change.quantity, change.reservedQty, item.Version)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "applying counter update")
		}
		if !applied {
			return apperrors.New(apperrors.CodeConcurrencyConflict, "inventory item was modified concurrently")
		}

		if _, err := s.movements.Append(ctx, tx, movements.AppendMovementInput{
			InventoryItemID: item.ID,
			ProductID:       item.ProductID,
			Type:            change.movementType,
			Quantity:        change.movementQty,
			PreviousQty:     change.previousQty,
			NewQty:          change.newQty,
			Reason:          change.reason,
			Reference:       change.reference,
			Actor:           change.actor,
		}); err != nil {
			return err
		}

		after := *item
		after.Quantity = change.quantity
		after.ReservedQty = change.reservedQty
		after.Version = item.Version + 1

		occurredAt := time.Now().UTC()
		if err := s.outbox.Emit(ctx, tx, stockChangedEvent(&after, change, occurredAt)); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "queueing stock event")
		}
		if item.AvailableQty() > item.MinimumStock && after.BelowMinimum() {
			if err := s.outbox.Emit(ctx, tx, lowStockEvent(&after, change.actor, occurredAt)); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "queueing low stock event")
			}
			s.metrics.IncLowStockEvent()
		}

		*updated = &after
		return nil
	})
}

func (s *service) getCached(ctx context.Context, dimension, key string, fetch func() (*models.InventoryItem, error)) (*models.InventoryItem, error) {
	if item, ok := s.cache.GetItem(ctx, dimension, key); ok {
		return item, nil
	}
	item, err := fetch()
	if err != nil {
		return nil, mapReadError(err)
	}
	s.cache.SetItem(ctx, item)
	return item, nil
}

func (s *service) fail(operation string, err error) error {
	code := apperrors.CodeInternal
	if typed := apperrors.As(err); typed != nil {
		code = typed.Code()
	}
	s.metrics.IncFailure(operation, string(code))
	return err
}

func (s *service) succeed(ctx context.Context, operation string, start time.Time, item *models.InventoryItem) {
	s.metrics.IncSuccess(operation)
	s.metrics.ObserveOperation(operation, time.Since(start))
	if s.logg == nil || item == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"operation":    operation,
		"product_id":   item.ProductID.String(),
		"quantity":     item.Quantity,
		"reserved_qty": item.ReservedQty,
		"version":      item.Version,
	})
	s.logg.Info(logCtx, "stock operation committed")
}

func mapReadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.New(apperrors.CodeNotFound, "inventory item not found")
	}
	return apperrors.Wrap(apperrors.CodeInternal, err, "reading inventory item")
}
