package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/panierlocal/amap-backend/pkg/db/models"
)

// Repository exposes catalog persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBasketType(ctx context.Context, basket *models.BasketType) error
	UpdateBasketType(ctx context.Context, basket *models.BasketType) error
	FindBasketTypeByID(ctx context.Context, id uuid.UUID) (*models.BasketType, error)
	ListBasketTypes(ctx context.Context, activeOnly bool) ([]models.BasketType, error)
	CreateLocation(ctx context.Context, location *models.PickupLocation) error
	UpdateLocation(ctx context.Context, location *models.PickupLocation) error
	FindLocationByID(ctx context.Context, id uuid.UUID) (*models.PickupLocation, error)
	ListLocations(ctx context.Context, activeOnly bool) ([]models.PickupLocation, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBasketType(ctx context.Context, basket *models.BasketType) error {
	return r.db.WithContext(ctx).Create(basket).Error
}

func (r *repository) UpdateBasketType(ctx context.Context, basket *models.BasketType) error {
	return r.db.WithContext(ctx).Save(basket).Error
}

func (r *repository) FindBasketTypeByID(ctx context.Context, id uuid.UUID) (*models.BasketType, error) {
	var basket models.BasketType
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&basket).Error
	if err != nil {
		return nil, err
	}
	return &basket, nil
}

func (r *repository) ListBasketTypes(ctx context.Context, activeOnly bool) ([]models.BasketType, error) {
	query := r.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var baskets []models.BasketType
	err := query.Order("label ASC").Find(&baskets).Error
	return baskets, err
}

func (r *repository) CreateLocation(ctx context.Context, location *models.PickupLocation) error {
	return r.db.WithContext(ctx).Create(location).Error
}

func (r *repository) UpdateLocation(ctx context.Context, location *models.PickupLocation) error {
	return r.db.WithContext(ctx).Save(location).Error
}

func (r *repository) FindLocationByID(ctx context.Context, id uuid.UUID) (*models.PickupLocation, error) {
	var location models.PickupLocation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&location).Error
	if err != nil {
		return nil, err
	}
	return &location, nil
}

func (r *repository) ListLocations(ctx context.Context, activeOnly bool) ([]models.PickupLocation, error) {
	query := r.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var locations []models.PickupLocation
	err := query.Order("label ASC").Find(&locations).Error
	return locations, err
}
