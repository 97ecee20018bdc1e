package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/panierlocal/amap-backend/pkg/db/models"
)

// Repository exposes advisory hold persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, reservation *models.CartReservation) error
	FindActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.CartReservation, error)
	ActiveQtyByAvailability(ctx context.Context, availabilityIDs []uuid.UUID, now time.Time) (map[uuid.UUID]int, error)
	ActiveQtyExcludingUser(ctx context.Context, availabilityID, userID uuid.UUID, now time.Time) (int, error)
	Delete(ctx context.Context, userID, availabilityID uuid.UUID) (bool, error)
	DeleteForUser(ctx context.Context, userID uuid.UUID, availabilityIDs []uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reservations repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert replaces any existing hold for the same (user, entry) pair instead of
// accumulating quantity.
func (r *repository) Upsert(ctx context.Context, reservation *models.CartReservation) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "availability_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"qty":        reservation.Qty,
				"expires_at": reservation.ExpiresAt,
				"updated_at": time.Now(),
			}),
		}).
		Create(reservation).Error
}

func (r *repository) FindActiveByUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.CartReservation, error) {
	var rows []models.CartReservation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ActiveQtyByAvailability(ctx context.Context, availabilityIDs []uuid.UUID, now time.Time) (map[uuid.UUID]int, error) {
	if len(availabilityIDs) == 0 {
		return map[uuid.UUID]int{}, nil
	}
	var rows []struct {
		AvailabilityID uuid.UUID
		Total          int
	}
	err := r.db.WithContext(ctx).
		Model(&models.CartReservation{}).
		Select("availability_id, SUM(qty) AS total").
		Where("availability_id IN ? AND expires_at > ?", availabilityIDs, now).
		Group("availability_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	held := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		held[row.AvailabilityID] = row.Total
	}
	return held, nil
}

func (r *repository) ActiveQtyExcludingUser(ctx context.Context, availabilityID, userID uuid.UUID, now time.Time) (int, error) {
	var total *int
	err := r.db.WithContext(ctx).
		Model(&models.CartReservation{}).
		Select("SUM(qty)").
		Where("availability_id = ? AND user_id <> ? AND expires_at > ?", availabilityID, userID, now).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *repository) Delete(ctx context.Context, userID, availabilityID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND availability_id = ?", userID, availabilityID).
		Delete(&models.CartReservation{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) DeleteForUser(ctx context.Context, userID uuid.UUID, availabilityIDs []uuid.UUID) error {
	if len(availabilityIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("user_id = ? AND availability_id IN ?", userID, availabilityIDs).
		Delete(&models.CartReservation{}).Error
}

func (r *repository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.CartReservation{})
	return result.RowsAffected, result.Error
}
