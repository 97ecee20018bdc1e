package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/panierlocal/amap-backend/internal/orders"
	"github.com/panierlocal/amap-backend/pkg/db/models"
	"github.com/panierlocal/amap-backend/pkg/enums"
)

type fakeOrdersRepo struct {
	rows    []models.Order
	listErr error
}

func (f *fakeOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return f }

func (f *fakeOrdersRepo) Create(ctx context.Context, order *models.Order) error { return nil }

func (f *fakeOrdersRepo) CreateItems(ctx context.Context, items []models.OrderItem) error {
	return nil
}

func (f *fakeOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrdersRepo) FindByPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrdersRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeOrdersRepo) List(ctx context.Context, filter orders.ListFilter) ([]models.Order, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.rows, nil
}

func (f *fakeOrdersRepo) FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeOrdersRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, columns map[string]any) (bool, error) {
	return false, nil
}

func (f *fakeOrdersRepo) SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error {
	return nil
}

func TestExportOrdersCSV(t *testing.T) {
	repo := &fakeOrdersRepo{rows: []models.Order{
		{
			OrderNumber: "AMAP-20260901100000-AB12CD",
			UserEmail:   "claire@example.org",
			Status:      enums.OrderStatusPaid,
			TotalCents:  5050,
			PickupDate:  time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
			CreatedAt:   time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
			Items: []models.OrderItem{
				{Qty: 2, BasketLabel: "Panier légumes"},
				{Qty: 1, BasketLabel: "Boîte d'œufs"},
			},
		},
	}}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	var buf bytes.Buffer
	if err := svc.ExportOrdersCSV(context.Background(), &buf, orders.ListFilter{}); err != nil {
		t.Fatalf("export: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header plus one row, got %d records", len(records))
	}
	header := records[0]
	if header[0] != "order_number" || header[5] != "total_eur" {
		t.Fatalf("unexpected header: %v", header)
	}
	row := records[1]
	if row[0] != "AMAP-20260901100000-AB12CD" {
		t.Fatalf("unexpected order number: %s", row[0])
	}
	if row[3] != "2026-09-05" {
		t.Fatalf("unexpected pickup date: %s", row[3])
	}
	if row[4] != "2x Panier légumes; 1x Boîte d'œufs" {
		t.Fatalf("unexpected items summary: %s", row[4])
	}
	if row[5] != "50.50" {
		t.Fatalf("unexpected total: %s", row[5])
	}
	if row[6] != "2026-09-01T10:00:00Z" {
		t.Fatalf("unexpected created_at: %s", row[6])
	}
}

func TestExportOrdersCSVEmpty(t *testing.T) {
	svc, err := NewService(&fakeOrdersRepo{})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	var buf bytes.Buffer
	if err := svc.ExportOrdersCSV(context.Background(), &buf, orders.ListFilter{}); err != nil {
		t.Fatalf("export: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("empty export still carries the header, got %d records", len(records))
	}
}

func TestExportOrdersCSVListFailure(t *testing.T) {
	svc, err := NewService(&fakeOrdersRepo{listErr: errors.New("database down")})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	var buf bytes.Buffer
	if err := svc.ExportOrdersCSV(context.Background(), &buf, orders.ListFilter{}); err == nil {
		t.Fatalf("expected list failure to surface")
	}
	if buf.Len() != 0 {
		t.Fatalf("failed export must not emit partial output")
	}
}

func TestEurosFromCents(t *testing.T) {
	tests := []struct {
		cents int
		want  string
	}{
		{cents: 0, want: "0.00"},
		{cents: 5, want: "0.05"},
		{cents: 1250, want: "12.50"},
		{cents: 99999, want: "999.99"},
	}
	for _, tc := range tests {
		if got := eurosFromCents(tc.cents); got != tc.want {
			t.Fatalf("eurosFromCents(%d) = %s, want %s", tc.cents, got, tc.want)
		}
	}
}
