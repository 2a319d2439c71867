package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/harbortrace/stockledger-backend/api/responses"
	movementsvc "github.com/harbortrace/stockledger-backend/internal/movements"
	"github.com/harbortrace/stockledger-backend/pkg/db/models"
	pkgerrors "github.com/harbortrace/stockledger-backend/pkg/errors"
	"github.com/harbortrace/stockledger-backend/pkg/logger"
)

type itemHistoryResponse struct {
	Movements []models.StockMovement `json:"movements"`
	Total     int64                  `json:"total"`
}

// MovementsByItem lists the ledger for one inventory item, newest first,
// with the item's full ledger length so clients can page.
func MovementsByItem(svc movementsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid inventory item id"))
			return
		}

		limit := parseOptionalInt(r.URL.Query().Get("limit"))
		offset := parseOptionalInt(r.URL.Query().Get("offset"))

		rows, err := svc.ListByItemID(r.Context(), itemID, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		total, err := svc.CountByItemID(r.Context(), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, itemHistoryResponse{Movements: rows, Total: total})
	}
}

// MovementsByProduct lists the ledger for one product, newest first.
func MovementsByProduct(svc movementsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := uuid.Parse(chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		limit := parseOptionalInt(r.URL.Query().Get("limit"))
		offset := parseOptionalInt(r.URL.Query().Get("offset"))

		rows, err := svc.ListByProductID(r.Context(), productID, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}
