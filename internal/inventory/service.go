package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/panierlocal/amap-backend/pkg/db/models"
	"github.com/panierlocal/amap-backend/pkg/enums"
	pkgerrors "github.com/panierlocal/amap-backend/pkg/errors"
	"github.com/panierlocal/amap-backend/pkg/outbox"
	"github.com/panierlocal/amap-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ReservationCounter reports active advisory holds per ledger entry.
type ReservationCounter interface {
	ActiveQtyByAvailability(ctx context.Context, availabilityIDs []uuid.UUID, now time.Time) (map[uuid.UUID]int, error)
}

// Service defines ledger operations.
type Service interface {
	PublishStock(ctx context.Context, input PublishStockInput) (*models.BasketAvailability, error)
	GetAvailability(ctx context.Context, id uuid.UUID) (*AvailabilityView, error)
	ListAvailability(ctx context.Context, from time.Time, locationID *uuid.UUID) ([]AvailabilityView, error)
}

// PublishStockInput carries an admin stock publication for one slot.
type PublishStockInput struct {
	BasketTypeID     uuid.UUID
	PickupLocationID uuid.UUID
	DistributionDate time.Time
	Qty              int
	ActorUserID      uuid.UUID
	ActorRole        string
}

// AvailabilityView is a ledger entry plus the quantity visible to members
// after subtracting active advisory holds.
type AvailabilityView struct {
	Entry        models.BasketAvailability
	EffectiveQty int
}

type service struct {
	repo         Repository
	tx           txRunner
	outbox       outboxPublisher
	reservations ReservationCounter
	now          func() time.Time
}

// ServiceParams wires the ledger service dependencies.
type ServiceParams struct {
	Repository   Repository
	Tx           txRunner
	Outbox       outboxPublisher
	Reservations ReservationCounter
	Now          func() time.Time
}

// NewService builds the ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservation counter required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:         params.Repository,
		tx:           params.Tx,
		outbox:       params.Outbox,
		reservations: params.Reservations,
		now:          now,
	}, nil
}

func (s *service) PublishStock(ctx context.Context, input PublishStockInput) (*models.BasketAvailability, error) {
	if input.BasketTypeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "basket type id required")
	}
	if input.PickupLocationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup location id required")
	}
	if input.DistributionDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "distribution date required")
	}
	if input.Qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	date := truncateToDay(input.DistributionDate)
	var published *models.BasketAvailability
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		entry, err := repo.FindBySlot(ctx, input.BasketTypeID, input.PickupLocationID, date)
		switch {
		case err == nil:
			ok, adjErr := repo.AdjustPublished(ctx, entry.ID, input.Qty)
			if adjErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, adjErr, "adjust published quantity")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot reduce published quantity below sold quantity")
			}
			entry, err = repo.FindByID(ctx, entry.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload availability")
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry = &models.BasketAvailability{
				BasketTypeID:     input.BasketTypeID,
				PickupLocationID: input.PickupLocationID,
				DistributionDate: date,
				PublishedQty:     input.Qty,
				AvailableQty:     input.Qty,
			}
			if err := repo.Create(ctx, entry); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create availability")
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load availability")
		}

		published = entry
		event := outbox.DomainEvent{
			EventType:     enums.EventStockPublished,
			AggregateType: enums.AggregateBasketAvailability,
			AggregateID:   entry.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
			Data: payloads.StockPublishedEvent{
				AvailabilityID:   entry.ID,
				BasketTypeID:     entry.BasketTypeID,
				PickupLocationID: entry.PickupLocationID,
				DistributionDate: entry.DistributionDate,
				PublishedQty:     entry.PublishedQty,
				AvailableQty:     entry.AvailableQty,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return published, nil
}

func (s *service) GetAvailability(ctx context.Context, id uuid.UUID) (*AvailabilityView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "availability id required")
	}
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "availability not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load availability")
	}

	held, err := s.reservations.ActiveQtyByAvailability(ctx, []uuid.UUID{entry.ID}, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservations")
	}
	return &AvailabilityView{Entry: *entry, EffectiveQty: effectiveQty(entry.AvailableQty, held[entry.ID])}, nil
}

func (s *service) ListAvailability(ctx context.Context, from time.Time, locationID *uuid.UUID) ([]AvailabilityView, error) {
	if from.IsZero() {
		from = truncateToDay(s.now())
	}
	entries, err := s.repo.ListUpcoming(ctx, truncateToDay(from), locationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list availability")
	}
	if len(entries) == 0 {
		return []AvailabilityView{}, nil
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}
	held, err := s.reservations.ActiveQtyByAvailability(ctx, ids, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservations")
	}

	views := make([]AvailabilityView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, AvailabilityView{
			Entry:        entry,
			EffectiveQty: effectiveQty(entry.AvailableQty, held[entry.ID]),
		})
	}
	return views, nil
}

func effectiveQty(available, held int) int {
	if held >= available {
		return 0
	}
	return available - held
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
