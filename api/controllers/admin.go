package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/panierlocal/amap-backend/api/responses"
	"github.com/panierlocal/amap-backend/api/validators"
	"github.com/panierlocal/amap-backend/internal/inventory"
	internalorders "github.com/panierlocal/amap-backend/internal/orders"
	"github.com/panierlocal/amap-backend/internal/reports"
	"github.com/panierlocal/amap-backend/pkg/enums"
	pkgerrors "github.com/panierlocal/amap-backend/pkg/errors"
	"github.com/panierlocal/amap-backend/pkg/logger"
)

const (
	adminListDefaultLimit = 50
	adminListMaxLimit     = 500
)

type publishStockRequest struct {
	BasketTypeID     string `json:"basket_type_id" validate:"required,uuid"`
	PickupLocationID string `json:"pickup_location_id" validate:"required,uuid"`
	DistributionDate string `json:"distribution_date" validate:"required"`
	Qty              int    `json:"qty" validate:"min=0"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdminPublishStock creates or resizes the ledger entry for one distribution
// slot.
func AdminPublishStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req publishStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		basketTypeID, err := parseUUIDParam(req.BasketTypeID, "basket type id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		locationID, err := parseUUIDParam(req.PickupLocationID, "pickup location id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		date, err := time.Parse(time.DateOnly, req.DistributionDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "distribution_date must be a date (YYYY-MM-DD)"))
			return
		}

		entry, err := svc.PublishStock(r.Context(), inventory.PublishStockInput{
			BasketTypeID:     basketTypeID,
			PickupLocationID: locationID,
			DistributionDate: date,
			Qty:              req.Qty,
			ActorUserID:      actor.UserID,
			ActorRole:        string(actor.Role),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"id":                 entry.ID,
			"basket_type_id":     entry.BasketTypeID,
			"pickup_location_id": entry.PickupLocationID,
			"distribution_date":  entry.DistributionDate.Format(time.DateOnly),
			"published_qty":      entry.PublishedQty,
			"available_qty":      entry.AvailableQty,
		})
	}
}

// AdminOrderList returns orders across all members, filtered for
// distribution-day preparation.
func AdminOrderList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		filter, err := adminOrderFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListAdmin(r.Context(), *filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]orderResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, toOrderResponse(row))
		}
		responses.WriteSuccess(w, out)
	}
}

// AdminOrderStatusUpdate moves an order one step along the fulfilment chain,
// or into a terminal credited state.
func AdminOrderStatusUpdate(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseUUIDParam(strings.TrimSpace(chi.URLParam(r, "orderId")), "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target := enums.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))

		order, err := svc.UpdateStatus(r.Context(), internalorders.UpdateStatusInput{
			OrderID: orderID,
			Target:  target,
			Actor:   actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderResponse(*order))
	}
}

// AdminOrderExport streams the filtered order list as CSV.
func AdminOrderExport(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reports service unavailable"))
			return
		}
		filter, err := adminOrderFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filename := fmt.Sprintf("orders-%s.csv", time.Now().UTC().Format(time.DateOnly))
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

		if err := svc.ExportOrdersCSV(r.Context(), w, *filter); err != nil {
			if logg != nil {
				logg.Error(r.Context(), "csv export failed", err)
			}
		}
	}
}

func adminOrderFilter(r *http.Request) (*internalorders.ListFilter, error) {
	filter := internalorders.ListFilter{}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := enums.OrderStatus(strings.ToLower(raw))
		if !status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").WithDetails(map[string]any{"status": raw})
		}
		filter.Status = &status
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("pickup_date")); raw != "" {
		date, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "pickup_date must be a date (YYYY-MM-DD)")
		}
		filter.PickupDate = &date
	}

	limit, err := validators.ParseQueryInt(r, "limit", adminListDefaultLimit, 1, adminListMaxLimit)
	if err != nil {
		return nil, err
	}
	offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
	if err != nil {
		return nil, err
	}
	filter.Limit = limit
	filter.Offset = offset
	return &filter, nil
}
