package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/panierlocal/amap-backend/pkg/db/models"
	pkgerrors "github.com/panierlocal/amap-backend/pkg/errors"
)

// Service defines catalog management operations.
type Service interface {
	CreateBasketType(ctx context.Context, input BasketTypeInput) (*models.BasketType, error)
	UpdateBasketType(ctx context.Context, id uuid.UUID, input BasketTypeInput) (*models.BasketType, error)
	ListBasketTypes(ctx context.Context, activeOnly bool) ([]models.BasketType, error)
	CreateLocation(ctx context.Context, input LocationInput) (*models.PickupLocation, error)
	UpdateLocation(ctx context.Context, id uuid.UUID, input LocationInput) (*models.PickupLocation, error)
	ListLocations(ctx context.Context, activeOnly bool) ([]models.PickupLocation, error)
}

// BasketTypeInput carries basket type attributes.
type BasketTypeInput struct {
	ProducerName string
	Label        string
	Description  *string
	PriceCents   int
	Active       *bool
}

// LocationInput carries pickup location attributes.
type LocationInput struct {
	Label   string
	Address string
	Active  *bool
}

type service struct {
	repo Repository
}

// NewService builds the catalog service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateBasketType(ctx context.Context, input BasketTypeInput) (*models.BasketType, error) {
	if err := validateBasketType(input); err != nil {
		return nil, err
	}
	basket := &models.BasketType{
		ProducerName: strings.TrimSpace(input.ProducerName),
		Label:        strings.TrimSpace(input.Label),
		Description:  input.Description,
		PriceCents:   input.PriceCents,
		Active:       true,
	}
	if input.Active != nil {
		basket.Active = *input.Active
	}
	if err := s.repo.CreateBasketType(ctx, basket); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create basket type")
	}
	return basket, nil
}

func (s *service) UpdateBasketType(ctx context.Context, id uuid.UUID, input BasketTypeInput) (*models.BasketType, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "basket type id required")
	}
	if err := validateBasketType(input); err != nil {
		return nil, err
	}
	basket, err := s.repo.FindBasketTypeByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "basket type not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load basket type")
	}
	basket.ProducerName = strings.TrimSpace(input.ProducerName)
	basket.Label = strings.TrimSpace(input.Label)
	basket.Description = input.Description
	basket.PriceCents = input.PriceCents
	if input.Active != nil {
		basket.Active = *input.Active
	}
	if err := s.repo.UpdateBasketType(ctx, basket); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update basket type")
	}
	return basket, nil
}

func (s *service) ListBasketTypes(ctx context.Context, activeOnly bool) ([]models.BasketType, error) {
	baskets, err := s.repo.ListBasketTypes(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list basket types")
	}
	return baskets, nil
}

func (s *service) CreateLocation(ctx context.Context, input LocationInput) (*models.PickupLocation, error) {
	if err := validateLocation(input); err != nil {
		return nil, err
	}
	location := &models.PickupLocation{
		Label:   strings.TrimSpace(input.Label),
		Address: strings.TrimSpace(input.Address),
		Active:  true,
	}
	if input.Active != nil {
		location.Active = *input.Active
	}
	if err := s.repo.CreateLocation(ctx, location); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pickup location")
	}
	return location, nil
}

func (s *service) UpdateLocation(ctx context.Context, id uuid.UUID, input LocationInput) (*models.PickupLocation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup location id required")
	}
	if err := validateLocation(input); err != nil {
		return nil, err
	}
	location, err := s.repo.FindLocationByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pickup location not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pickup location")
	}
	location.Label = strings.TrimSpace(input.Label)
	location.Address = strings.TrimSpace(input.Address)
	if input.Active != nil {
		location.Active = *input.Active
	}
	if err := s.repo.UpdateLocation(ctx, location); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update pickup location")
	}
	return location, nil
}

func (s *service) ListLocations(ctx context.Context, activeOnly bool) ([]models.PickupLocation, error) {
	locations, err := s.repo.ListLocations(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pickup locations")
	}
	return locations, nil
}

func validateBasketType(input BasketTypeInput) error {
	if strings.TrimSpace(input.ProducerName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "producer name required")
	}
	if strings.TrimSpace(input.Label) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "label required")
	}
	if input.PriceCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	return nil
}

func validateLocation(input LocationInput) error {
	if strings.TrimSpace(input.Label) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "label required")
	}
	if strings.TrimSpace(input.Address) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "address required")
	}
	return nil
}
