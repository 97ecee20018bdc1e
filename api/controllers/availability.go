package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/panierlocal/amap-backend/api/responses"
	"github.com/panierlocal/amap-backend/internal/inventory"
	pkgerrors "github.com/panierlocal/amap-backend/pkg/errors"
	"github.com/panierlocal/amap-backend/pkg/logger"
)

type availabilityResponse struct {
	ID               uuid.UUID `json:"id"`
	BasketTypeID     uuid.UUID `json:"basket_type_id"`
	BasketLabel      string    `json:"basket_label"`
	ProducerName     string    `json:"producer_name"`
	PriceCents       int       `json:"price_cents"`
	PickupLocationID uuid.UUID `json:"pickup_location_id"`
	DistributionDate string    `json:"distribution_date"`
	PublishedQty     int       `json:"published_qty"`
	RemainingQty     int       `json:"remaining_qty"`
}

func toAvailabilityResponse(view inventory.AvailabilityView) availabilityResponse {
	return availabilityResponse{
		ID:               view.Entry.ID,
		BasketTypeID:     view.Entry.BasketTypeID,
		BasketLabel:      view.Entry.BasketType.Label,
		ProducerName:     view.Entry.BasketType.ProducerName,
		PriceCents:       view.Entry.BasketType.PriceCents,
		PickupLocationID: view.Entry.PickupLocationID,
		DistributionDate: view.Entry.DistributionDate.Format(time.DateOnly),
		PublishedQty:     view.Entry.PublishedQty,
		RemainingQty:     view.EffectiveQty,
	}
}

// AvailabilityList returns upcoming ledger entries with the quantity members
// can still reserve.
func AvailabilityList(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var from time.Time
		if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
			parsed, err := time.Parse(time.DateOnly, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, err, "from must be a date (YYYY-MM-DD)"))
				return
			}
			from = parsed
		}

		var locationID *uuid.UUID
		if raw := strings.TrimSpace(r.URL.Query().Get("location_id")); raw != "" {
			id, err := parseUUIDParam(raw, "location id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			locationID = &id
		}

		views, err := svc.ListAvailability(r.Context(), from, locationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]availabilityResponse, 0, len(views))
		for _, view := range views {
			out = append(out, toAvailabilityResponse(view))
		}
		responses.WriteSuccess(w, out)
	}
}

// AvailabilityDetail returns one ledger entry.
func AvailabilityDetail(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		id, err := parseUUIDParam(strings.TrimSpace(chi.URLParam(r, "availabilityId")), "availability id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetAvailability(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toAvailabilityResponse(*view))
	}
}
