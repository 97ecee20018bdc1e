package reports

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/panierlocal/amap-backend/internal/orders"
	"github.com/panierlocal/amap-backend/pkg/db/models"
	pkgerrors "github.com/panierlocal/amap-backend/pkg/errors"
)

var exportHeader = []string{
	"order_number",
	"user_email",
	"status",
	"pickup_date",
	"items",
	"total_eur",
	"created_at",
}

// Service renders order exports for distribution-day preparation.
type Service interface {
	ExportOrdersCSV(ctx context.Context, w io.Writer, filter orders.ListFilter) error
}

type service struct {
	repo orders.Repository
}

// NewService builds the reports service.
func NewService(repo orders.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ExportOrdersCSV(ctx context.Context, w io.Writer, filter orders.ListFilter) error {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write csv header")
	}
	for _, order := range rows {
		record := []string{
			order.OrderNumber,
			order.UserEmail,
			order.Status.String(),
			order.PickupDate.Format(time.DateOnly),
			itemsSummary(order.Items),
			eurosFromCents(order.TotalCents),
			order.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write csv row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flush csv")
	}
	return nil
}

func itemsSummary(items []models.OrderItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, strconv.Itoa(item.Qty)+"x "+item.BasketLabel)
	}
	return strings.Join(parts, "; ")
}

// eurosFromCents renders an exact decimal amount, never a float.
func eurosFromCents(cents int) string {
	return decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100)).StringFixed(2)
}
