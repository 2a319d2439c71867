package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harbortrace/stockledger-backend/api/controllers"
	"github.com/harbortrace/stockledger-backend/api/middleware"
	inventorysvc "github.com/harbortrace/stockledger-backend/internal/inventory"
	movementsvc "github.com/harbortrace/stockledger-backend/internal/movements"
	"github.com/harbortrace/stockledger-backend/pkg/config"
	"github.com/harbortrace/stockledger-backend/pkg/logger"
)

// NewRouter assembles the HTTP surface: the inventory operations, the
// movement ledger listings, health probes and prometheus metrics.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPinger controllers.Pinger,
	redisPinger controllers.Pinger,
	inventoryService inventorysvc.Service,
	movementService movementsvc.Service,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbPinger, redisPinger))
	})
	r.Get("/healthz", controllers.HealthReady(cfg, logg, dbPinger, redisPinger))

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Post("/", controllers.InventoryCreate(inventoryService, logg))
		r.Post("/adjust", controllers.InventoryAdjust(inventoryService, logg))
		r.Post("/reserve", controllers.InventoryReserve(inventoryService, logg))
		r.Post("/release", controllers.InventoryRelease(inventoryService, logg))
		r.Get("/availability", controllers.InventoryAvailability(inventoryService, logg))
		r.Get("/alerts", controllers.InventoryAlerts(inventoryService, logg))
		r.Get("/report", controllers.InventoryReport(inventoryService, logg))

		r.Get("/sku/{sku}", controllers.InventoryGetBySKU(inventoryService, logg))
		r.Route("/product/{productId}", func(r chi.Router) {
			r.Get("/", controllers.InventoryGetByProduct(inventoryService, logg))
			r.Get("/movements", controllers.MovementsByProduct(movementService, logg))
		})
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", controllers.InventoryGetByID(inventoryService, logg))
			r.Get("/movements", controllers.MovementsByItem(movementService, logg))
		})
	})

	return r
}
