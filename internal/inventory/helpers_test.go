package inventory

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/harbortrace/stockledger-backend/internal/movements"
	"github.com/harbortrace/stockledger-backend/pkg/config"
	"github.com/harbortrace/stockledger-backend/pkg/db/models"
	"github.com/harbortrace/stockledger-backend/pkg/logger"
	"github.com/harbortrace/stockledger-backend/pkg/outbox"
	"github.com/rs/zerolog"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(
		&models.InventoryItem{},
		&models.StockMovement{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// newFileTestDB opens a throwaway on-disk database so multiple goroutines
// can run real write transactions against it. Immediate transactions plus a
// busy timeout queue concurrent writers instead of failing their lock
// upgrades, which shared-cache in-memory databases cannot do.
func newFileTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "stock.db") + "?_busy_timeout=10000&_txlock=immediate"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(
		&models.InventoryItem{},
		&models.StockMovement{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// recordingCache is an in-memory Cache that tracks invalidations so tests
// can assert the commit → invalidate ordering side effects.
type recordingCache struct {
	items         map[string]*models.InventoryItem
	lists         map[string]any
	invalidations int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{
		items: map[string]*models.InventoryItem{},
		lists: map[string]any{},
	}
}

func (c *recordingCache) key(dimension, key string) string { return dimension + ":" + key }

func (c *recordingCache) GetItem(_ context.Context, dimension, key string) (*models.InventoryItem, bool) {
	item, ok := c.items[c.key(dimension, key)]
	return item, ok
}

func (c *recordingCache) SetItem(_ context.Context, item *models.InventoryItem) {
	c.items[c.key(DimensionID, item.ID.String())] = item
	c.items[c.key(DimensionProduct, item.ProductID.String())] = item
	c.items[c.key(DimensionSKU, item.SKU)] = item
}

func (c *recordingCache) InvalidateItem(_ context.Context, item *models.InventoryItem) {
	c.invalidations++
	delete(c.items, c.key(DimensionID, item.ID.String()))
	delete(c.items, c.key(DimensionProduct, item.ProductID.String()))
	delete(c.items, c.key(DimensionSKU, item.SKU))
	c.lists = map[string]any{}
}

func (c *recordingCache) GetList(_ context.Context, name string, dest any) bool {
	raw, ok := c.lists[name]
	if !ok {
		return false
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return false
	}
	return json.Unmarshal(encoded, dest) == nil
}

func (c *recordingCache) SetList(_ context.Context, name string, value any) {
	c.lists[name] = value
}

func (c *recordingCache) InvalidateLists(_ context.Context) {
	c.lists = map[string]any{}
}

type testEnv struct {
	db    *gorm.DB
	svc   Service
	cache *recordingCache
}

func newTestService(t *testing.T) testEnv {
	t.Helper()

	gdb := newTestDB(t)
	logg := logger.New(logger.Options{
		ServiceName: "inventory-test",
		Level:       zerolog.ErrorLevel,
		Output:      io.Discard,
	})

	movementSvc, err := movements.NewService(movements.NewRepository(gdb), 0)
	if err != nil {
		t.Fatalf("movement service: %v", err)
	}
	outboxSvc := outbox.NewService(outbox.NewRepository(gdb), logg)
	cache := newRecordingCache()

	svc, err := NewService(
		gdb,
		NewRepository(gdb),
		movementSvc,
		outboxSvc,
		cache,
		config.InventoryConfig{
			WriteRetryAttempts: 3,
			WriteRetryBackoff:  time.Millisecond,
			MovementListLimit:  50,
			AlertListLimit:     20,
		},
		logg,
		nil,
	)
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}

	return testEnv{db: gdb, svc: svc, cache: cache}
}

func seedItem(t *testing.T, env testEnv, quantity, reserved, minimum int) *models.InventoryItem {
	t.Helper()
	item, err := env.svc.CreateItem(context.Background(), CreateItemInput{
		ProductID:    uuid.New(),
		SKU:          "SKU-" + uuid.NewString()[:8],
		Location:     "A1",
		Quantity:     quantity,
		MinimumStock: minimum,
		Actor:        "test-suite",
	})
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}
	if reserved > 0 {
		item, err = env.svc.Reserve(context.Background(), ReserveStockInput{
			ProductID: item.ProductID,
			Quantity:  reserved,
			Reference: "seed",
			Actor:     "test-suite",
		})
		if err != nil {
			t.Fatalf("seed reservation: %v", err)
		}
	}
	return item
}

func outboxEvents(t *testing.T, gdb *gorm.DB, aggregateID uuid.UUID) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	if err := gdb.Where("aggregate_id = ?", aggregateID).Order("created_at ASC").Find(&rows).Error; err != nil {
		t.Fatalf("read outbox events: %v", err)
	}
	return rows
}

func movementsFor(t *testing.T, gdb *gorm.DB, itemID uuid.UUID) []models.StockMovement {
	t.Helper()
	var rows []models.StockMovement
	if err := gdb.Where("inventory_item_id = ?", itemID).Order("created_at ASC").Find(&rows).Error; err != nil {
		t.Fatalf("read movements: %v", err)
	}
	return rows
}
