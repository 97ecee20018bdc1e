package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/panierlocal/amap-backend/api/responses"
	"github.com/panierlocal/amap-backend/api/validators"
	"github.com/panierlocal/amap-backend/internal/reservations"
	"github.com/panierlocal/amap-backend/pkg/db/models"
	pkgerrors "github.com/panierlocal/amap-backend/pkg/errors"
	"github.com/panierlocal/amap-backend/pkg/logger"
)

type reserveRequest struct {
	AvailabilityID string `json:"availability_id" validate:"required,uuid"`
	Qty            int    `json:"qty" validate:"required,min=1"`
}

type reservationResponse struct {
	AvailabilityID uuid.UUID `json:"availability_id"`
	Qty            int       `json:"qty"`
	ExpiresAt      time.Time `json:"expires_at"`
}

func toReservationResponse(row models.CartReservation) reservationResponse {
	return reservationResponse{
		AvailabilityID: row.AvailabilityID,
		Qty:            row.Qty,
		ExpiresAt:      row.ExpiresAt.UTC(),
	}
}

// ReservationUpsert places or replaces the caller's advisory hold on one
// ledger entry.
func ReservationUpsert(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req reserveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		availabilityID, err := parseUUIDParam(req.AvailabilityID, "availability id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Reserve(r.Context(), reservations.ReserveInput{
			UserID:         actor.UserID,
			AvailabilityID: availabilityID,
			Qty:            req.Qty,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReservationResponse(*row))
	}
}

// ReservationRelease drops the caller's hold; releasing an absent hold
// succeeds.
func ReservationRelease(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		availabilityID, err := parseUUIDParam(strings.TrimSpace(chi.URLParam(r, "availabilityId")), "availability id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Release(r.Context(), actor.UserID, availabilityID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// ReservationList returns the caller's active holds.
func ReservationList(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListForUser(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]reservationResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, toReservationResponse(row))
		}
		responses.WriteSuccess(w, out)
	}
}
