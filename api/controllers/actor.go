package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/panierlocal/amap-backend/api/middleware"
	internalorders "github.com/panierlocal/amap-backend/internal/orders"
	"github.com/panierlocal/amap-backend/pkg/enums"
	pkgerrors "github.com/panierlocal/amap-backend/pkg/errors"
)

func actorFromRequest(r *http.Request) (internalorders.Actor, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return internalorders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return internalorders.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user identity")
	}
	role := enums.MemberRole(middleware.RoleFromContext(r.Context()))
	if !role.IsValid() {
		return internalorders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown role")
	}
	return internalorders.Actor{UserID: userID, Role: role}, nil
}

func parseUUIDParam(raw, field string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, field+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	return id, nil
}

func contextWithTimeout(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), timeout)
}
