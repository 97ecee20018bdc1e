package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/panierlocal/amap-backend/pkg/db/models"
)

// Repository exposes ledger persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.BasketAvailability, error)
	FindBySlot(ctx context.Context, basketTypeID, locationID uuid.UUID, date time.Time) (*models.BasketAvailability, error)
	ListUpcoming(ctx context.Context, from time.Time, locationID *uuid.UUID) ([]models.BasketAvailability, error)
	Create(ctx context.Context, entry *models.BasketAvailability) error
	Debit(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	Credit(ctx context.Context, id uuid.UUID, qty int) error
	AdjustPublished(ctx context.Context, id uuid.UUID, newPublished int) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a ledger repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.BasketAvailability, error) {
	var entry models.BasketAvailability
	err := r.db.WithContext(ctx).
		Preload("BasketType").
		Where("id = ?", id).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindBySlot(ctx context.Context, basketTypeID, locationID uuid.UUID, date time.Time) (*models.BasketAvailability, error) {
	var entry models.BasketAvailability
	err := r.db.WithContext(ctx).
		Where("basket_type_id = ? AND pickup_location_id = ? AND distribution_date = ?", basketTypeID, locationID, date).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListUpcoming(ctx context.Context, from time.Time, locationID *uuid.UUID) ([]models.BasketAvailability, error) {
	query := r.db.WithContext(ctx).
		Preload("BasketType").
		Where("distribution_date >= ?", from)
	if locationID != nil {
		query = query.Where("pickup_location_id = ?", *locationID)
	}
	var entries []models.BasketAvailability
	err := query.
		Order("distribution_date ASC").
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *repository) Create(ctx context.Context, entry *models.BasketAvailability) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// Debit decrements available_qty atomically. The guard clause makes a
// concurrent oversell impossible: the row only changes when enough stock
// remains, and the caller inspects the affected row count.
func (r *repository) Debit(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BasketAvailability{}).
		Where("id = ? AND available_qty >= ?", id, qty).
		UpdateColumn("available_qty", gorm.Expr("available_qty - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Credit returns quantity to the ledger, clamped at published_qty so
// replayed cancellations can never inflate stock.
func (r *repository) Credit(ctx context.Context, id uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.BasketAvailability{}).
		Where("id = ?", id).
		UpdateColumn("available_qty", gorm.Expr(
			"CASE WHEN available_qty + ? > published_qty THEN published_qty ELSE available_qty + ? END",
			qty, qty,
		)).Error
}

// AdjustPublished moves published_qty to a new total and shifts available_qty
// by the same delta, clamped to the valid range.
func (r *repository) AdjustPublished(ctx context.Context, id uuid.UUID, newPublished int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BasketAvailability{}).
		Where("id = ? AND available_qty + ? - published_qty >= 0", id, newPublished).
		UpdateColumns(map[string]any{
			"available_qty": gorm.Expr("available_qty + ? - published_qty", newPublished),
			"published_qty": newPublished,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
