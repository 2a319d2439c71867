package movements

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/harbortrace/stockledger-backend/pkg/db/models"
	"github.com/harbortrace/stockledger-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:movements_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.InventoryItem{}, &models.StockMovement{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedMovement(t *testing.T, db *gorm.DB, itemID, productID uuid.UUID, movementType enums.MovementType, qty int, createdAt time.Time) models.StockMovement {
	t.Helper()
	movement := models.StockMovement{
		ID:              uuid.New(),
		InventoryItemID: itemID,
		ProductID:       productID,
		Type:            movementType,
		Quantity:        qty,
		PreviousQty:     0,
		NewQty:          qty,
		CreatedAt:       createdAt,
	}
	if err := db.Create(&movement).Error; err != nil {
		t.Fatalf("seed movement: %v", err)
	}
	return movement
}

func TestRepository_ListByItemIDOrdersNewestFirst(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	itemID := uuid.New()
	productID := uuid.New()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	oldest := seedMovement(t, db, itemID, productID, enums.MovementTypeIn, 10, base)
	middle := seedMovement(t, db, itemID, productID, enums.MovementTypeOut, 3, base.Add(time.Minute))
	newest := seedMovement(t, db, itemID, productID, enums.MovementTypeReserved, 2, base.Add(2*time.Minute))

	// movement for another item must not leak into the listing
	seedMovement(t, db, uuid.New(), uuid.New(), enums.MovementTypeIn, 99, base)

	rows, err := repo.ListByItemID(ctx, itemID, 50, 0)
	if err != nil {
		t.Fatalf("ListByItemID error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].ID != newest.ID || rows[1].ID != middle.ID || rows[2].ID != oldest.ID {
		t.Fatalf("unexpected ordering: %v", []uuid.UUID{rows[0].ID, rows[1].ID, rows[2].ID})
	}
}

func TestRepository_ListByItemIDRespectsLimitAndOffset(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	itemID := uuid.New()
	productID := uuid.New()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		seedMovement(t, db, itemID, productID, enums.MovementTypeIn, i+1, base.Add(time.Duration(i)*time.Minute))
	}

	page, err := repo.ListByItemID(ctx, itemID, 2, 0)
	if err != nil {
		t.Fatalf("ListByItemID error: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(page))
	}
	if page[0].Quantity != 5 || page[1].Quantity != 4 {
		t.Fatalf("unexpected first page: %+v", page)
	}

	next, err := repo.ListByItemID(ctx, itemID, 2, 2)
	if err != nil {
		t.Fatalf("ListByItemID error: %v", err)
	}
	if len(next) != 2 || next[0].Quantity != 3 || next[1].Quantity != 2 {
		t.Fatalf("unexpected second page: %+v", next)
	}
}

func TestRepository_ListByProductID(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	productID := uuid.New()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	seedMovement(t, db, uuid.New(), productID, enums.MovementTypeIn, 10, base)
	seedMovement(t, db, uuid.New(), productID, enums.MovementTypeOut, 4, base.Add(time.Minute))
	seedMovement(t, db, uuid.New(), uuid.New(), enums.MovementTypeIn, 7, base)

	rows, err := repo.ListByProductID(ctx, productID, 50, 0)
	if err != nil {
		t.Fatalf("ListByProductID error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row.ProductID != productID {
			t.Fatalf("row for wrong product: %+v", row)
		}
	}
}

func TestRepository_CountByItemID(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	itemID := uuid.New()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedMovement(t, db, itemID, uuid.New(), enums.MovementTypeIn, 1, base)
	seedMovement(t, db, itemID, uuid.New(), enums.MovementTypeOut, 1, base.Add(time.Second))

	count, err := repo.CountByItemID(ctx, itemID)
	if err != nil {
		t.Fatalf("CountByItemID error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
}
