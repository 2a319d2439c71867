package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/harbortrace/stockledger-backend/internal/inventory"
	"github.com/harbortrace/stockledger-backend/internal/movements"
	"github.com/harbortrace/stockledger-backend/pkg/config"
	"github.com/harbortrace/stockledger-backend/pkg/db/models"
	"github.com/harbortrace/stockledger-backend/pkg/logger"
	"github.com/harbortrace/stockledger-backend/pkg/outbox"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	dsn := "file:router_" + uuid.NewString() + "?mode=memory&cache=shared"
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

	logg := logger.New(logger.Options{ServiceName: "router-test", Level: zerolog.ErrorLevel, Output: io.Discard})

	movementSvc, err := movements.NewService(movements.NewRepository(gdb), 0)
	if err != nil {
		t.Fatalf("movement service: %v", err)
	}
	inventorySvc, err := inventory.NewService(
		gdb,
		inventory.NewRepository(gdb),
		movementSvc,
		outbox.NewService(outbox.NewRepository(gdb), logg),
		nil,
		config.InventoryConfig{WriteRetryAttempts: 3, WriteRetryBackoff: time.Millisecond, AlertListLimit: 20},
		logg,
		nil,
	)
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}

	cfg := &config.Config{}
	cfg.App.Env = "test"

	return NewRouter(cfg, logg, stubPinger{}, nil, inventorySvc, movementSvc, nil)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestInventoryLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	productID := uuid.New()

	// create
	rec := doJSON(t, router, http.MethodPost, "/api/v1/inventory", map[string]any{
		"product_id":    productID.String(),
		"sku":           "HTTP-001",
		"location":      "C7",
		"quantity":      30,
		"minimum_stock": 5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var created models.InventoryItem
	decodeData(t, rec, &created)
	if created.Quantity != 30 {
		t.Fatalf("unexpected created item: %+v", created)
	}

	// duplicate create conflicts
	rec = doJSON(t, router, http.MethodPost, "/api/v1/inventory", map[string]any{
		"product_id": productID.String(),
		"sku":        "HTTP-001",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", rec.Code)
	}

	// reserve
	rec = doJSON(t, router, http.MethodPost, "/api/v1/inventory/reserve", map[string]any{
		"product_id": productID.String(),
		"quantity":   12,
		"reference":  "ORD-77",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("reserve: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	// availability reflects the hold
	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/inventory/availability?product_id=%s&quantity=20", productID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("availability: expected 200, got %d", rec.Code)
	}
	var availability struct {
		Available int  `json:"available"`
		Fulfilled bool `json:"fulfilled"`
	}
	decodeData(t, rec, &availability)
	if availability.Available != 18 || availability.Fulfilled {
		t.Fatalf("unexpected availability: %+v", availability)
	}

	// over-reserving is a conflict
	rec = doJSON(t, router, http.MethodPost, "/api/v1/inventory/reserve", map[string]any{
		"product_id": productID.String(),
		"quantity":   19,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("oversell: expected 409, got %d (%s)", rec.Code, rec.Body.String())
	}

	// release
	rec = doJSON(t, router, http.MethodPost, "/api/v1/inventory/release", map[string]any{
		"product_id": productID.String(),
		"quantity":   12,
		"reference":  "ORD-77",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("release: expected 200, got %d", rec.Code)
	}

	// adjust out
	rec = doJSON(t, router, http.MethodPost, "/api/v1/inventory/adjust", map[string]any{
		"product_id": productID.String(),
		"type":       "OUT",
		"quantity":   26,
		"reference":  "SHIP-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("adjust: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var adjusted models.InventoryItem
	decodeData(t, rec, &adjusted)
	if adjusted.Quantity != 4 {
		t.Fatalf("adjust: expected quantity 4, got %d", adjusted.Quantity)
	}

	// ledger listing byItem
	rec = doJSON(t, router, http.MethodGet, "/api/v1/inventory/"+created.ID.String()+"/movements", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("movements: expected 200, got %d", rec.Code)
	}
	var history struct {
		Movements []models.StockMovement `json:"movements"`
		Total     int64                  `json:"total"`
	}
	decodeData(t, rec, &history)
	if len(history.Movements) != 4 {
		t.Fatalf("expected 4 movements, got %d", len(history.Movements))
	}
	if history.Total != 4 {
		t.Fatalf("expected ledger total 4, got %d", history.Total)
	}

	// alerts now include the item (4 available <= 5 minimum)
	rec = doJSON(t, router, http.MethodGet, "/api/v1/inventory/alerts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("alerts: expected 200, got %d", rec.Code)
	}
	var alerts []inventory.LowStockAlert
	decodeData(t, rec, &alerts)
	if len(alerts) != 1 || alerts[0].ProductID != productID {
		t.Fatalf("unexpected alerts: %+v", alerts)
	}

	// report totals
	rec = doJSON(t, router, http.MethodGet, "/api/v1/inventory/report", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report: expected 200, got %d", rec.Code)
	}
	var report inventory.InventoryReport
	decodeData(t, rec, &report)
	if report.TotalItems != 1 || report.TotalOnHand != 4 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestRouterLookupsAndErrors(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	productID := uuid.New()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/inventory", map[string]any{
		"product_id": productID.String(),
		"sku":        "HTTP-002",
		"quantity":   9,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}
	var created models.InventoryItem
	decodeData(t, rec, &created)

	// by product
	rec = doJSON(t, router, http.MethodGet, "/api/v1/inventory/product/"+productID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("by product: expected 200, got %d", rec.Code)
	}

	// by sku
	rec = doJSON(t, router, http.MethodGet, "/api/v1/inventory/sku/HTTP-002", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("by sku: expected 200, got %d", rec.Code)
	}

	// by id
	rec = doJSON(t, router, http.MethodGet, "/api/v1/inventory/"+created.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("by id: expected 200, got %d", rec.Code)
	}

	// unknown product is a 404
	rec = doJSON(t, router, http.MethodGet, "/api/v1/inventory/product/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing product: expected 404, got %d", rec.Code)
	}

	// malformed id is a 400
	rec = doJSON(t, router, http.MethodGet, "/api/v1/inventory/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", rec.Code)
	}

	// invalid body is a 400 with field details
	rec = doJSON(t, router, http.MethodPost, "/api/v1/inventory/reserve", map[string]any{
		"product_id": "nope",
		"quantity":   1,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad body: expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}

	// zero-quantity reservation is rejected by validation
	rec = doJSON(t, router, http.MethodPost, "/api/v1/inventory/reserve", map[string]any{
		"product_id": productID.String(),
		"quantity":   0,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("zero quantity: expected 400, got %d", rec.Code)
	}

	// adjustment with a type outside the on-hand set is rejected
	rec = doJSON(t, router, http.MethodPost, "/api/v1/inventory/adjust", map[string]any{
		"product_id": productID.String(),
		"type":       "RESERVED",
		"quantity":   1,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad type: expected 400, got %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	for _, path := range []string{"/health/live", "/health/ready", "/healthz"} {
		rec := doJSON(t, router, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}
