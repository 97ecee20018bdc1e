package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/panierlocal/amap-backend/api/middleware"
	"github.com/panierlocal/amap-backend/api/responses"
	"github.com/panierlocal/amap-backend/api/validators"
	internalorders "github.com/panierlocal/amap-backend/internal/orders"
	"github.com/panierlocal/amap-backend/pkg/db/models"
	pkgerrors "github.com/panierlocal/amap-backend/pkg/errors"
	"github.com/panierlocal/amap-backend/pkg/logger"
)

type orderItemRequest struct {
	AvailabilityID string `json:"availability_id" validate:"required,uuid"`
	Qty            int    `json:"qty" validate:"required,min=1"`
}

type createOrderRequest struct {
	PickupLocationID string             `json:"pickup_location_id" validate:"required,uuid"`
	Items            []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type orderItemResponse struct {
	AvailabilityID uuid.UUID `json:"availability_id"`
	BasketLabel    string    `json:"basket_label"`
	Qty            int       `json:"qty"`
	PriceCents     int       `json:"price_cents"`
}

type orderResponse struct {
	ID               uuid.UUID           `json:"id"`
	OrderNumber      string              `json:"order_number"`
	Status           string              `json:"status"`
	TotalCents       int                 `json:"total_cents"`
	PickupLocationID uuid.UUID           `json:"pickup_location_id"`
	PickupDate       string              `json:"pickup_date"`
	Items            []orderItemResponse `json:"items"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
	CanceledAt       *time.Time          `json:"canceled_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

func toOrderResponse(order models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			AvailabilityID: item.AvailabilityID,
			BasketLabel:    item.BasketLabel,
			Qty:            item.Qty,
			PriceCents:     item.PriceCentsAtOrder,
		})
	}
	return orderResponse{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		Status:           order.Status.String(),
		TotalCents:       order.TotalCents,
		PickupLocationID: order.PickupLocationID,
		PickupDate:       order.PickupDate.Format(time.DateOnly),
		Items:            items,
		PaidAt:           order.PaidAt,
		CanceledAt:       order.CanceledAt,
		CreatedAt:        order.CreatedAt.UTC(),
	}
}

// OrderCreate converts the caller's holds into a priced pending order.
func OrderCreate(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		locationID, err := parseUUIDParam(req.PickupLocationID, "pickup location id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]internalorders.CreateItemInput, 0, len(req.Items))
		for _, item := range req.Items {
			availabilityID, err := parseUUIDParam(item.AvailabilityID, "availability id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			items = append(items, internalorders.CreateItemInput{
				AvailabilityID: availabilityID,
				Qty:            item.Qty,
			})
		}

		order, err := svc.Create(r.Context(), internalorders.CreateInput{
			UserID:           actor.UserID,
			UserEmail:        middleware.EmailFromContext(r.Context()),
			PickupLocationID: locationID,
			Items:            items,
			ActorRole:        actor.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toOrderResponse(*order))
	}
}

// OrderList returns the caller's orders, newest first.
func OrderList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
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

		rows, err := svc.ListForUser(r.Context(), actor.UserID)
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

// OrderDetail returns one order owned by the caller.
func OrderDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
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

		order, err := svc.Get(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderResponse(*order))
	}
}

// OrderCancel cancels a still-cancellable order and returns its quantity to
// the ledger.
func OrderCancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req cancelOrderRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.Cancel(r.Context(), internalorders.CancelInput{
			OrderID: orderID,
			Actor:   actor,
			Reason:  strings.TrimSpace(req.Reason),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderResponse(*order))
	}
}
