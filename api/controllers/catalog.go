package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/panierlocal/amap-backend/api/responses"
	"github.com/panierlocal/amap-backend/api/validators"
	"github.com/panierlocal/amap-backend/internal/catalog"
	"github.com/panierlocal/amap-backend/pkg/db/models"
	pkgerrors "github.com/panierlocal/amap-backend/pkg/errors"
	"github.com/panierlocal/amap-backend/pkg/logger"
)

type basketTypeRequest struct {
	ProducerName string  `json:"producer_name" validate:"required,max=200"`
	Label        string  `json:"label" validate:"required,max=200"`
	Description  *string `json:"description" validate:"omitempty,max=2000"`
	PriceCents   int     `json:"price_cents" validate:"min=0"`
	Active       *bool   `json:"active"`
}

type locationRequest struct {
	Label   string `json:"label" validate:"required,max=200"`
	Address string `json:"address" validate:"required,max=500"`
	Active  *bool  `json:"active"`
}

type basketTypeResponse struct {
	ID           uuid.UUID `json:"id"`
	ProducerName string    `json:"producer_name"`
	Label        string    `json:"label"`
	Description  *string   `json:"description,omitempty"`
	PriceCents   int       `json:"price_cents"`
	Active       bool      `json:"active"`
}

type locationResponse struct {
	ID      uuid.UUID `json:"id"`
	Label   string    `json:"label"`
	Address string    `json:"address"`
	Active  bool      `json:"active"`
}

func toBasketTypeResponse(b models.BasketType) basketTypeResponse {
	return basketTypeResponse{
		ID:           b.ID,
		ProducerName: b.ProducerName,
		Label:        b.Label,
		Description:  b.Description,
		PriceCents:   b.PriceCents,
		Active:       b.Active,
	}
}

func toLocationResponse(l models.PickupLocation) locationResponse {
	return locationResponse{
		ID:      l.ID,
		Label:   l.Label,
		Address: l.Address,
		Active:  l.Active,
	}
}

// BasketTypeList returns the catalog of basket formulas. Member routes only
// see active entries; the admin route lists everything.
func BasketTypeList(svc catalog.Service, activeOnly bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		rows, err := svc.ListBasketTypes(r.Context(), activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]basketTypeResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, toBasketTypeResponse(row))
		}
		responses.WriteSuccess(w, out)
	}
}

// BasketTypeCreate registers a new basket formula.
func BasketTypeCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		var req basketTypeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		basket, err := svc.CreateBasketType(r.Context(), catalog.BasketTypeInput{
			ProducerName: req.ProducerName,
			Label:        req.Label,
			Description:  req.Description,
			PriceCents:   req.PriceCents,
			Active:       req.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toBasketTypeResponse(*basket))
	}
}

// BasketTypeUpdate replaces a basket formula's attributes.
func BasketTypeUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		id, err := parseUUIDParam(strings.TrimSpace(chi.URLParam(r, "basketTypeId")), "basket type id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req basketTypeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		basket, err := svc.UpdateBasketType(r.Context(), id, catalog.BasketTypeInput{
			ProducerName: req.ProducerName,
			Label:        req.Label,
			Description:  req.Description,
			PriceCents:   req.PriceCents,
			Active:       req.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBasketTypeResponse(*basket))
	}
}

// LocationList returns pickup locations.
func LocationList(svc catalog.Service, activeOnly bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		rows, err := svc.ListLocations(r.Context(), activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]locationResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, toLocationResponse(row))
		}
		responses.WriteSuccess(w, out)
	}
}

// LocationCreate registers a new pickup location.
func LocationCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		var req locationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		location, err := svc.CreateLocation(r.Context(), catalog.LocationInput{
			Label:   req.Label,
			Address: req.Address,
			Active:  req.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toLocationResponse(*location))
	}
}

// LocationUpdate replaces a pickup location's attributes.
func LocationUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		id, err := parseUUIDParam(strings.TrimSpace(chi.URLParam(r, "locationId")), "pickup location id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req locationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		location, err := svc.UpdateLocation(r.Context(), id, catalog.LocationInput{
			Label:   req.Label,
			Address: req.Address,
			Active:  req.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toLocationResponse(*location))
	}
}
