package inventory

import (
	"context"
	"time"

	apperrors "github.com/harbortrace/stockledger-backend/pkg/errors"
	"github.com/harbortrace/stockledger-backend/pkg/pagination"
)

// GetLowStockAlerts lists items whose available quantity sits at or below
// their minimum-stock threshold, worst deficit first. The default page is
// cached; custom limits always hit the store.
func (s *service) GetLowStockAlerts(ctx context.Context, limit int) ([]LowStockAlert, error) {
	normalized := pagination.NormalizeLimitWithDefault(limit, s.cfg.AlertListLimit)
	useCache := limit <= 0

	if useCache {
		var cached []LowStockAlert
		if s.cache.GetList(ctx, ListAlerts, &cached) {
			return cached, nil
		}
	}

	items, err := s.repo.ListBelowMinimum(ctx, normalized)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing low stock items")
	}

	alerts := make([]LowStockAlert, 0, len(items))
	for _, item := range items {
		alerts = append(alerts, LowStockAlert{
			InventoryItemID: item.ID,
			ProductID:       item.ProductID,
			SKU:             item.SKU,
			Location:        item.Location,
			AvailableQty:    item.AvailableQty(),
			MinimumStock:    item.MinimumStock,
			Deficit:         item.MinimumStock - item.AvailableQty(),
		})
	}

	if useCache {
		s.cache.SetList(ctx, ListAlerts, alerts)
	}
	return alerts, nil
}

// GetInventoryReport aggregates warehouse-wide totals plus the current
// low-stock list.
func (s *service) GetInventoryReport(ctx context.Context) (*InventoryReport, error) {
	var cached InventoryReport
	if s.cache.GetList(ctx, ListReport, &cached) {
		return &cached, nil
	}

	totals, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "aggregating stock totals")
	}
	lowCount, err := s.repo.CountBelowMinimum(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "counting low stock items")
	}
	overCount, err := s.repo.CountAboveMaximum(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "counting over stock items")
	}
	lowStock, err := s.GetLowStockAlerts(ctx, s.cfg.AlertListLimit)
	if err != nil {
		return nil, err
	}

	report := &InventoryReport{
		TotalItems:     totals.Items,
		TotalOnHand:    totals.OnHandUnits,
		TotalReserved:  totals.ReservedUnits,
		TotalAvailable: totals.OnHandUnits - totals.ReservedUnits,
		LowStockCount:  lowCount,
		OverStockCount: overCount,
		LowStock:       lowStock,
		GeneratedAt:    time.Now().UTC(),
	}
	s.cache.SetList(ctx, ListReport, report)
	return report, nil
}
