package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harbortrace/stockledger-backend/pkg/db/models"
)

// StockTotals aggregates counters across every inventory item.
type StockTotals struct {
	Items         int64
	OnHandUnits   int64
	ReservedUnits int64
}

// Repository manages persistence for inventory snapshots. Counter updates
// go through ApplyCounters, which enforces the optimistic version check.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.InventoryItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	GetByProductID(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error)
	GetBySKU(ctx context.Context, sku string) (*models.InventoryItem, error)
	ApplyCounters(ctx context.Context, id uuid.UUID, quantity, reservedQty int, expectedVersion int64) (bool, error)
	ListBelowMinimum(ctx context.Context, limit int) ([]models.InventoryItem, error)
	Totals(ctx context.Context) (StockTotals, error)
	CountBelowMinimum(ctx context.Context) (int64, error)
	CountAboveMaximum(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) GetByProductID(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).First(&item, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) GetBySKU(ctx context.Context, sku string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).First(&item, "sku = ?", sku).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ApplyCounters writes the new counter values if and only if the row still
// carries the expected version. Returns false when another writer won the
// race; callers retry from a fresh read.
func (r *repository) ApplyCounters(ctx context.Context, id uuid.UUID, quantity, reservedQty int, expectedVersion int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]any{
			"quantity":     quantity,
			"reserved_qty": reservedQty,
			"version":      expectedVersion + 1,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListBelowMinimum(ctx context.Context, limit int) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	if err := r.db.WithContext(ctx).
		Where("quantity - reserved_qty <= minimum_stock").
		Order("quantity - reserved_qty - minimum_stock ASC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) Totals(ctx context.Context) (StockTotals, error) {
	var totals StockTotals
	if err := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Select("COUNT(*) AS items, COALESCE(SUM(quantity), 0) AS on_hand_units, COALESCE(SUM(reserved_qty), 0) AS reserved_units").
		Scan(&totals).Error; err != nil {
		return StockTotals{}, err
	}
	return totals, nil
}

func (r *repository) CountBelowMinimum(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("quantity - reserved_qty <= minimum_stock").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) CountAboveMaximum(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("maximum_stock > 0 AND quantity > maximum_stock").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
