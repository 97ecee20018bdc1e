package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/panierlocal/amap-backend/pkg/db/models"
	pkgerrors "github.com/panierlocal/amap-backend/pkg/errors"
	"github.com/panierlocal/amap-backend/pkg/logger"
)

const DefaultTTL = 15 * time.Minute

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AvailabilityReader loads ledger entries for hold validation.
type AvailabilityReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.BasketAvailability, error)
}

// Service defines advisory hold operations.
type Service interface {
	Reserve(ctx context.Context, input ReserveInput) (*models.CartReservation, error)
	Release(ctx context.Context, userID, availabilityID uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.CartReservation, error)
	SweepExpired(ctx context.Context) (int64, error)
}

// ReserveInput carries a hold request for one ledger entry.
type ReserveInput struct {
	UserID         uuid.UUID
	AvailabilityID uuid.UUID
	Qty            int
}

type service struct {
	repo         Repository
	availability AvailabilityReader
	tx           txRunner
	logg         *logger.Logger
	ttl          time.Duration
	now          func() time.Time
}

// ServiceParams wires the reservation service dependencies.
type ServiceParams struct {
	Repository   Repository
	Availability AvailabilityReader
	Tx           txRunner
	Logger       *logger.Logger
	TTL          time.Duration
	Now          func() time.Time
}

// NewService builds the reservation service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("reservations repository required")
	}
	if params.Availability == nil {
		return nil, fmt.Errorf("availability reader required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:         params.Repository,
		availability: params.Availability,
		tx:           params.Tx,
		logg:         params.Logger,
		ttl:          ttl,
		now:          now,
	}, nil
}

func (s *service) Reserve(ctx context.Context, input ReserveInput) (*models.CartReservation, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.AvailabilityID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "availability id required")
	}
	if input.Qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	now := s.now()
	var reserved *models.CartReservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		entry, err := s.availability.FindByID(ctx, input.AvailabilityID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "availability not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load availability")
		}
		if entry.DistributionDate.Before(truncateToDay(now)) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "distribution date already passed")
		}

		// The caller's own hold is replaced by the upsert, so it does not
		// count against the quantity check.
		othersHeld, err := repo.ActiveQtyExcludingUser(ctx, input.AvailabilityID, input.UserID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum active reservations")
		}
		if input.Qty > entry.AvailableQty-othersHeld {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough baskets available")
		}

		row := &models.CartReservation{
			UserID:         input.UserID,
			AvailabilityID: input.AvailabilityID,
			Qty:            input.Qty,
			ExpiresAt:      now.Add(s.ttl),
		}
		if err := repo.Upsert(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store reservation")
		}
		reserved = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reserved, nil
}

// Release drops the caller's hold. Releasing a hold that no longer exists is
// a no-op.
func (s *service) Release(ctx context.Context, userID, availabilityID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if availabilityID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "availability id required")
	}
	if _, err := s.repo.Delete(ctx, userID, availabilityID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete reservation")
	}
	return nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.CartReservation, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.FindActiveByUser(ctx, userID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reservations")
	}
	return rows, nil
}

func (s *service) SweepExpired(ctx context.Context) (int64, error) {
	removed, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sweep expired reservations")
	}
	if removed > 0 {
		s.logg.Info(s.logg.WithField(ctx, "removed", removed), "expired reservations swept")
	}
	return removed, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
