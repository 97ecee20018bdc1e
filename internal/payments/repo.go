package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/panierlocal/amap-backend/pkg/db/models"
	"github.com/panierlocal/amap-backend/pkg/enums"
)

// Repository exposes payment persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByStripeID(ctx context.Context, stripeID string) (*models.Payment, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	UpdateStatusByStripeID(ctx context.Context, stripeID string, from, to enums.PaymentStatus, columns map[string]any) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByStripeID(ctx context.Context, stripeID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("stripe_payment_id = ?", stripeID).
		Order("created_at DESC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var rows []models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// UpdateStatusByStripeID guards the transition on the expected current
// status so settlement replays collapse into no-ops.
func (r *repository) UpdateStatusByStripeID(ctx context.Context, stripeID string, from, to enums.PaymentStatus, columns map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range columns {
		updates[k] = v
	}
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("stripe_payment_id = ? AND status = ?", stripeID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
